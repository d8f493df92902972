// Package config holds the tool's settings. Every setting is an explicit
// field populated exactly once at startup from an enumerated list of
// (key, default) pairs; an IMAGE_BUILDER_<KEY> environment variable
// overrides the compiled-in default. There is no lazy or reflective
// lookup after Load returns.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable this tool reads.
const EnvPrefix = "IMAGE_BUILDER"

// Config is the resolved settings for one invocation.
type Config struct {
	// DockerRegistry is the cache registry. Images outside it are never
	// built or cached.
	DockerRegistry string

	// DockerfilePathPattern locates an image's Dockerfile by name; the
	// {image_name} placeholder is substituted. A per-image
	// IMAGE_BUILDER_DOCKERFILE_<name> variable overrides it.
	DockerfilePathPattern string

	// FilesHashTagPattern renders a content digest into a registry tag
	// via its {files_hash} placeholder.
	FilesHashTagPattern string

	// GitShaTagPattern is the default --tag-pattern; it must contain
	// exactly one {git_sha} placeholder.
	GitShaTagPattern string

	// ReadFileBlocksize is the read buffer used when hashing files.
	ReadFileBlocksize int

	// LegacyRegistry, when non-empty, enables the one-time migration
	// shim: content tags missing from DockerRegistry are also looked up
	// at this host and bridged over on a hit.
	LegacyRegistry string

	// RegistryInsecure permits plain-HTTP / self-signed registries for
	// digest lookups.
	RegistryInsecure bool

	// BuildTimeout bounds one external build command; zero disables.
	BuildTimeout time.Duration

	// RegistryTimeout bounds each registry operation; zero disables.
	RegistryTimeout time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("docker_registry", "docker-registry.example.com:5000")
	v.SetDefault("dockerfile_path_pattern", "images/{image_name}/Dockerfile")
	v.SetDefault("files_hash_tag_pattern", "hash-{files_hash}")
	v.SetDefault("git_sha_tag_pattern", "{git_sha}-untested")
	v.SetDefault("read_file_blocksize", 65536)
	v.SetDefault("legacy_registry", "")
	v.SetDefault("registry_insecure", true)
	v.SetDefault("build_timeout", 30*time.Minute)
	v.SetDefault("registry_timeout", 5*time.Minute)
}

// Load resolves every setting once: environment first, compiled default
// otherwise.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		DockerRegistry:        v.GetString("docker_registry"),
		DockerfilePathPattern: v.GetString("dockerfile_path_pattern"),
		FilesHashTagPattern:   v.GetString("files_hash_tag_pattern"),
		GitShaTagPattern:      v.GetString("git_sha_tag_pattern"),
		ReadFileBlocksize:     v.GetInt("read_file_blocksize"),
		LegacyRegistry:        v.GetString("legacy_registry"),
		RegistryInsecure:      v.GetBool("registry_insecure"),
		BuildTimeout:          v.GetDuration("build_timeout"),
		RegistryTimeout:       v.GetDuration("registry_timeout"),
	}

	for key, val := range map[string]string{
		"docker_registry":         cfg.DockerRegistry,
		"dockerfile_path_pattern": cfg.DockerfilePathPattern,
		"files_hash_tag_pattern":  cfg.FilesHashTagPattern,
		"git_sha_tag_pattern":     cfg.GitShaTagPattern,
	} {
		if strings.TrimSpace(val) == "" {
			return nil, fmt.Errorf("config: %s is unset (set %s_%s)", key, EnvPrefix, strings.ToUpper(key))
		}
	}
	if cfg.ReadFileBlocksize <= 0 {
		return nil, fmt.Errorf("config: read_file_blocksize must be positive, got %d", cfg.ReadFileBlocksize)
	}
	return cfg, nil
}

// DockerfileOverride returns the per-image Dockerfile path set in the
// environment, if any.
func DockerfileOverride(imageName string) (string, bool) {
	v := os.Getenv(dockerfileEnvKey(imageName))
	return v, v != ""
}

// SetDockerfileOverride exports the Dockerfile chosen on the command line
// so the recursive resolver finds the same file for the top image.
func SetDockerfileOverride(imageName, path string) error {
	return os.Setenv(dockerfileEnvKey(imageName), path)
}

// BuildContextOverride returns the per-image build context directory set
// in the environment, if any.
func BuildContextOverride(imageName string) (string, bool) {
	v := os.Getenv(EnvPrefix + "_BUILD_CONTEXT_" + imageName)
	return v, v != ""
}

// LocateDockerfile resolves the Dockerfile path for an image: the
// per-image environment override wins, otherwise the configured pattern.
func (c *Config) LocateDockerfile(imageName string) string {
	if p, ok := DockerfileOverride(imageName); ok {
		return p
	}
	return strings.ReplaceAll(c.DockerfilePathPattern, "{image_name}", imageName)
}

// HashTag renders a files-hash hex string into its content tag.
func (c *Config) HashTag(filesHash string) string {
	return strings.ReplaceAll(c.FilesHashTagPattern, "{files_hash}", filesHash)
}

func dockerfileEnvKey(imageName string) string {
	return EnvPrefix + "_DOCKERFILE_" + imageName
}
