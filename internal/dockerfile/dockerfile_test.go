package dockerfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Dockerfile")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParentImages(t *testing.T) {
	path := write(t, `
FROM registry.local/base:v1 AS builder
RUN make
FROM builder AS packer
FROM registry.local/runtime:v1
COPY --from=builder /out /app
`)
	df, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"registry.local/base:v1", "registry.local/runtime:v1"}, df.ParentImages())
}

func TestCopiedAndAddedSources(t *testing.T) {
	path := write(t, `
FROM alpine:3.20
COPY main.go /app/
COPY --from=builder /out /app
COPY src/ dst/
ADD archive.tar.gz /opt/
`)
	df, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"main.go", "src/"}, df.CopiedSources())
	assert.Equal(t, []string{"archive.tar.gz"}, df.AddedSources())
}

func TestArgDefaultsMergedWithCallerOverride(t *testing.T) {
	path := write(t, `
ARG REGISTRY=default-registry.local
ARG APP_DIR=/srv
FROM ${REGISTRY}/base:v1
COPY $APP_DIR/main.go /app/
`)
	df, err := Load(path, map[string]string{"REGISTRY": "override.example.com:5000"})
	require.NoError(t, err)

	// Caller value wins over the manifest default; unset defaults apply.
	assert.Equal(t, []string{"override.example.com:5000/base:v1"}, df.ParentImages())
	assert.Equal(t, []string{"/srv/main.go"}, df.CopiedSources())
	assert.Equal(t, "override.example.com:5000", df.Args()["REGISTRY"])
	assert.Equal(t, "/srv", df.Args()["APP_DIR"])
}

func TestUnknownArgsLeftVerbatim(t *testing.T) {
	path := write(t, `
FROM ${UNKNOWN_REGISTRY}/base:$UNKNOWN_TAG
`)
	df, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"${UNKNOWN_REGISTRY}/base:$UNKNOWN_TAG"}, df.ParentImages())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope", "Dockerfile"), nil)
	assert.Error(t, err)
}

func TestExpandArgs(t *testing.T) {
	table := map[string]string{"REGISTRY": "r.local:5000", "GIT_SHA": "abc"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"braced", "${REGISTRY}/app", "r.local:5000/app"},
		{"bare", "$REGISTRY/app", "r.local:5000/app"},
		{"both forms", "${REGISTRY}/app:$GIT_SHA", "r.local:5000/app:abc"},
		{"unknown braced stays", "${NOPE}/app", "${NOPE}/app"},
		{"unknown bare stays", "$NOPE/app", "$NOPE/app"},
		{"no dollar", "plain", "plain"},
		{"lone dollar", "a$", "a$"},
		{"unterminated brace", "${REGISTRY", "${REGISTRY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandArgs(tt.in, table))
		})
	}
}
