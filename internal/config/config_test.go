package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "docker-registry.example.com:5000", cfg.DockerRegistry)
	assert.Equal(t, "images/{image_name}/Dockerfile", cfg.DockerfilePathPattern)
	assert.Equal(t, "hash-{files_hash}", cfg.FilesHashTagPattern)
	assert.Equal(t, "{git_sha}-untested", cfg.GitShaTagPattern)
	assert.Equal(t, 65536, cfg.ReadFileBlocksize)
	assert.Empty(t, cfg.LegacyRegistry)
	assert.True(t, cfg.RegistryInsecure)
	assert.Equal(t, 30*time.Minute, cfg.BuildTimeout)
	assert.Equal(t, 5*time.Minute, cfg.RegistryTimeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("IMAGE_BUILDER_DOCKER_REGISTRY", "custom.example.com:5000")
	t.Setenv("IMAGE_BUILDER_LEGACY_REGISTRY", "old.example.com:5000")
	t.Setenv("IMAGE_BUILDER_BUILD_TIMEOUT", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "custom.example.com:5000", cfg.DockerRegistry)
	assert.Equal(t, "old.example.com:5000", cfg.LegacyRegistry)
	assert.Equal(t, 10*time.Minute, cfg.BuildTimeout)
}

func TestLoadRejectsInvalidBlocksize(t *testing.T) {
	t.Setenv("IMAGE_BUILDER_READ_FILE_BLOCKSIZE", "-1")
	_, err := Load()
	assert.Error(t, err)
}

func TestLocateDockerfile(t *testing.T) {
	cfg := &Config{DockerfilePathPattern: "images/{image_name}/Dockerfile"}
	assert.Equal(t, "images/app/Dockerfile", cfg.LocateDockerfile("app"))
}

func TestLocateDockerfileEnvOverride(t *testing.T) {
	t.Setenv("IMAGE_BUILDER_DOCKERFILE_app", "/custom/Dockerfile.app")
	cfg := &Config{DockerfilePathPattern: "images/{image_name}/Dockerfile"}
	assert.Equal(t, "/custom/Dockerfile.app", cfg.LocateDockerfile("app"))
}

func TestBuildContextOverride(t *testing.T) {
	_, ok := BuildContextOverride("app")
	assert.False(t, ok)

	t.Setenv("IMAGE_BUILDER_BUILD_CONTEXT_app", "/srv/app")
	dir, ok := BuildContextOverride("app")
	assert.True(t, ok)
	assert.Equal(t, "/srv/app", dir)
}

func TestHashTag(t *testing.T) {
	cfg := &Config{FilesHashTagPattern: "hash-{files_hash}"}
	assert.Equal(t, "hash-deadbeef", cfg.HashTag("deadbeef"))
}
