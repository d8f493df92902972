// Package cli wires the command surface: flag parsing, configuration and
// logger setup, and dispatch into the build orchestrator. Exit codes: 0
// on success, 3 when the top-level build fails to produce a digest, 1 for
// usage and configuration errors.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tclh123/image-builder/internal/builder"
	"github.com/tclh123/image-builder/internal/config"
	"github.com/tclh123/image-builder/internal/imageref"
	"github.com/tclh123/image-builder/internal/registry"
	"github.com/tclh123/image-builder/internal/version"
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 1
	}
	return 0
}

type rootOptions struct {
	dryRun  bool
	verbose int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "image-builder",
		Short:         "Build container images with a registry-backed content cache",
		Example:       "  image-builder -v build . -n image1 -g abcd268122c7ea9ac79f1801108e0b59824c1341",
		Version:       version.String(),
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.dryRun, "dry-run", "d", false, "Dry run mode.")
	cmd.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "Verbosity. Default is WARNING level.")
	cmd.AddCommand(newBuildCmd(opts))
	return cmd
}

type buildOptions struct {
	file       string
	gitSHA     string
	name       string
	buildArgs  []string
	raw        bool
	registryAd string
	tagPattern string
	extraTags  []string
	extraNames []string
	outputHash string
}

func newBuildCmd(root *rootOptions) *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build PATH",
		Short: "Build an image from a Dockerfile",
		Long:  "Build an image from a Dockerfile, caching the image hierarchy in the registry.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runBuild(cmd, root, opts, args[0])
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&opts.file, "file", "f", "", "Name of the Dockerfile. Defaults to the configured dockerfile_path_pattern.")
	fl.StringVarP(&opts.gitSHA, "git-sha", "g", "", "The version of code to build against, passed as the GIT_SHA build argument.")
	fl.StringVarP(&opts.name, "name", "n", "", "The name of the image to build.")
	fl.StringArrayVar(&opts.buildArgs, "build-arg", nil, "Set extra build-time variables (ARG=VALUE). GIT_SHA, TIMESTAMP are passed by default.")
	fl.BoolVarP(&opts.raw, "raw", "r", false, "Use the raw build command directly, skipping all caching logic.")
	fl.StringVar(&opts.registryAd, "registry", "", "Registry that determines the image identity. Defaults from IMAGE_BUILDER_DOCKER_REGISTRY.")
	fl.StringVarP(&opts.tagPattern, "tag-pattern", "t", "", `Tag pattern with exactly one {git_sha} placeholder, such as "{git_sha}-new". If the tag exists, the image is not rebuilt.`)
	fl.StringArrayVarP(&opts.extraTags, "extra-tag", "e", nil, "Extra tags to apply to the final image.")
	fl.StringArrayVar(&opts.extraNames, "extra-name", nil, "Extra names, optionally with a tag in 'name:tag' format.")
	fl.StringVarP(&opts.outputHash, "output-hash", "o", "", "Output filename for the per-file hash log.")
	_ = cmd.MarkFlagRequired("git-sha")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runBuild(cmd *cobra.Command, root *rootOptions, opts *buildOptions, contextArg string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	reg := opts.registryAd
	if reg == "" {
		reg = cfg.DockerRegistry
	}
	if reg == "" {
		return fmt.Errorf("--registry must be provided, or set %s_DOCKER_REGISTRY", config.EnvPrefix)
	}

	pattern := opts.tagPattern
	if pattern == "" {
		pattern = cfg.GitShaTagPattern
	}
	versionTag, err := renderVersionTag(pattern, opts.gitSHA)
	if err != nil {
		return err
	}

	for _, kv := range opts.buildArgs {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("--build-arg must be in ARG=VALUE format, got %q", kv)
		}
	}

	log := newLogger(root.verbose)
	trace, closeTrace, err := newTraceLogger(root.verbose, opts.outputHash)
	if err != nil {
		return err
	}
	defer closeTrace()

	if !imageref.ValidTag(versionTag) {
		log.Warnf("version tag %q is not a valid registry tag", versionTag)
	}

	contextPath, err := expandPath(contextArg)
	if err != nil {
		return err
	}
	file := opts.file
	if file == "" {
		file = cfg.LocateDockerfile(opts.name)
	}
	if file, err = expandPath(file); err != nil {
		return err
	}
	// Export the chosen Dockerfile so recursive resolution of the top
	// image locates the same file.
	if err := config.SetDockerfileOverride(opts.name, file); err != nil {
		return err
	}

	// Source patterns are relative to the build context.
	if err := os.Chdir(contextPath); err != nil {
		return fmt.Errorf("enter build context %s: %w", contextPath, err)
	}

	var store registry.Store = registry.NewClient(cfg.RegistryInsecure, cfg.RegistryTimeout, log)
	if root.dryRun {
		store = registry.NewDryRun(store, log)
	}
	runner := builder.NewDockerRunner(cfg.BuildTimeout, root.dryRun)
	orch := builder.New(cfg, store, runner, log, trace)

	req := builder.Request{
		Registry:    reg,
		Name:        opts.name,
		GitSHA:      opts.gitSHA,
		VersionTag:  versionTag,
		ContextPath: contextPath,
		Dockerfile:  file,
		BuildArgs:   opts.buildArgs,
		ExtraTags:   opts.extraTags,
		ExtraNames:  opts.extraNames,
	}

	ctx := cmd.Context()
	if opts.raw {
		if err := orch.RawBuild(ctx, req); err != nil {
			log.Errorf("raw build failed: %v", err)
			return &exitError{code: 1, err: err}
		}
		return nil
	}

	d, err := orch.Build(ctx, req)
	if err != nil {
		log.Errorf("build failed: %v", err)
		return &exitError{code: 3, err: err}
	}
	if d == "" {
		err := fmt.Errorf("no digest produced for %s/%s:%s", reg, opts.name, versionTag)
		log.Error(err)
		return &exitError{code: 3, err: err}
	}
	fmt.Println(d)
	return nil
}

// renderVersionTag substitutes the git sha into the tag pattern, which
// must contain the {git_sha} placeholder exactly once.
func renderVersionTag(pattern, gitSHA string) (string, error) {
	if strings.Count(pattern, "{git_sha}") != 1 {
		return "", fmt.Errorf(`wrong --tag-pattern %q: must include exactly one {git_sha} placeholder, such as "{git_sha}-new"`, pattern)
	}
	return strings.Replace(pattern, "{git_sha}", gitSHA, 1), nil
}

func newLogger(verbose int) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(verboseLevel(verbose))
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

// newTraceLogger builds the per-file hash logger. Without an output file
// the trace is discarded.
func newTraceLogger(verbose int, path string) (*logrus.Logger, func(), error) {
	trace := logrus.New()
	trace.SetLevel(verboseLevel(verbose))
	trace.SetFormatter(messageFormatter{})
	if path == "" {
		trace.SetOutput(io.Discard)
		return trace, func() {}, nil
	}
	path, err := expandPath(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open hash log %s: %w", path, err)
	}
	trace.SetOutput(f)
	return trace, func() { _ = f.Close() }, nil
}

func verboseLevel(verbose int) logrus.Level {
	switch {
	case verbose <= 0:
		return logrus.WarnLevel
	case verbose == 1:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// messageFormatter emits the bare message, matching the hash log's
// line-per-file format.
type messageFormatter struct{}

func (messageFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(e.Message + "\n"), nil
}

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}
