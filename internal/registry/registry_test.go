package registry

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	existsCalls int
	tags        [][2]string
	pushes      []string
	pulls       []string
	digests     map[string]digest.Digest
}

func (s *stubStore) Exists(context.Context, string) bool {
	s.existsCalls++
	return true
}

func (s *stubStore) Digest(_ context.Context, ref string) (digest.Digest, error) {
	if d, ok := s.digests[ref]; ok {
		return d, nil
	}
	return "", ErrNotFound
}

func (s *stubStore) Tag(_ context.Context, src, dst string) error {
	s.tags = append(s.tags, [2]string{src, dst})
	return nil
}

func (s *stubStore) Push(_ context.Context, ref string) error {
	s.pushes = append(s.pushes, ref)
	return nil
}

func (s *stubStore) Pull(_ context.Context, ref string) error {
	s.pulls = append(s.pulls, ref)
	return nil
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDryRunShortCircuitsMutations(t *testing.T) {
	inner := &stubStore{}
	d := NewDryRun(inner, quiet())
	ctx := context.Background()

	require.NoError(t, d.Tag(ctx, "a:1", "a:2"))
	require.NoError(t, d.Push(ctx, "a:1"))
	require.NoError(t, d.Pull(ctx, "a:1"))

	assert.Empty(t, inner.tags)
	assert.Empty(t, inner.pushes)
	assert.Empty(t, inner.pulls)
}

func TestDryRunExistsReportsNotFound(t *testing.T) {
	inner := &stubStore{}
	d := NewDryRun(inner, quiet())

	assert.False(t, d.Exists(context.Background(), "a:1"))
	assert.Zero(t, inner.existsCalls, "dry-run must not probe the registry")
}

func TestDryRunDigestDelegates(t *testing.T) {
	want := digest.FromString("x")
	inner := &stubStore{digests: map[string]digest.Digest{"a:1": want}}
	d := NewDryRun(inner, quiet())

	got, err := d.Digest(context.Background(), "a:1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = d.Digest(context.Background(), "missing:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientDigestRejectsBadReference(t *testing.T) {
	c := NewClient(true, time.Second, quiet())
	_, err := c.Digest(context.Background(), "Not A Valid Ref")
	assert.Error(t, err)
}
