package hasher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDeterminism(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "alpha")
	b := writeFile(t, dir, "b.txt", "beta")
	parent := digest.FromString("parent")

	sum := func() digest.Digest {
		c := New(nil)
		c.AbsorbDigest(parent)
		require.NoError(t, c.AbsorbFile(a, nil))
		require.NoError(t, c.AbsorbFile(b, nil))
		return c.Sum()
	}

	assert.Equal(t, sum(), sum())
}

func TestOrderSensitivity(t *testing.T) {
	a := digest.FromString("a")
	b := digest.FromString("b")

	c1 := New(nil)
	c1.AbsorbDigest(a)
	c1.AbsorbDigest(b)

	c2 := New(nil)
	c2.AbsorbDigest(b)
	c2.AbsorbDigest(a)

	assert.NotEqual(t, c1.Sum(), c2.Sum())
}

func TestSumMatchesConcatenation(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "main.go", "package main\n")
	parent := digest.FromString("parent")

	c := New(nil)
	c.AbsorbDigest(parent)
	require.NoError(t, c.AbsorbFile(f, nil))

	want := digest.Canonical.FromBytes(append([]byte(parent), []byte("package main\n")...))
	assert.Equal(t, want, c.Sum())
}

func TestEmptyDigestAbsorbsNothing(t *testing.T) {
	c1 := New(nil)
	c1.AbsorbDigest("")

	c2 := New(nil)
	assert.Equal(t, c2.Sum(), c1.Sum())
}

func TestAbsorbFileSkipsMissingAndDirs(t *testing.T) {
	dir := t.TempDir()

	c := New(nil)
	before := c.Sum()
	require.NoError(t, c.AbsorbFile(filepath.Join(dir, "nope.txt"), nil))
	require.NoError(t, c.AbsorbFile(dir, nil))
	assert.Equal(t, before, c.Sum())
}

func TestAbsorbFileSkipsIgnored(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "secret.txt", "shh")

	c := New(nil)
	before := c.Sum()
	require.NoError(t, c.AbsorbFile(f, map[string]struct{}{f: {}}))
	assert.Equal(t, before, c.Sum())
}

func TestSmallBlockSizeStreamsWholeFile(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	c := NewWithBlockSize(nil, 7)
	require.NoError(t, c.AbsorbFile(path, nil))

	assert.Equal(t, digest.Canonical.FromBytes(content), c.Sum())
}
