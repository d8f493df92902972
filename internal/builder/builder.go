// Package builder implements the recursive build-and-cache algorithm.
//
// Resolving an image walks its parent chain depth-first, folds the parent
// digests and the image's own source files into one content digest, and
// uses the registry as a content-addressed cache keyed by that digest:
// hit means retag, miss means build and publish. Results bubble back up
// as image digests, so a parent's content change invalidates every
// dependent image's hash without touching their files.
package builder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"

	"github.com/tclh123/image-builder/internal/config"
	"github.com/tclh123/image-builder/internal/dockerfile"
	"github.com/tclh123/image-builder/internal/hasher"
	"github.com/tclh123/image-builder/internal/ignore"
	"github.com/tclh123/image-builder/internal/imageref"
	"github.com/tclh123/image-builder/internal/registry"
)

// Request is the caller-supplied input for one top-level invocation. It
// is not mutated during the build.
type Request struct {
	Registry    string
	Name        string
	GitSHA      string
	VersionTag  string // tag pattern already rendered with the git sha
	ContextPath string
	Dockerfile  string   // top-level Dockerfile (also exported via env override)
	BuildArgs   []string // ARG=VALUE, caller order preserved
	ExtraTags   []string
	ExtraNames  []string
}

// Orchestrator drives resolve/build/cache for an image hierarchy.
type Orchestrator struct {
	cfg    *config.Config
	store  registry.Store
	runner Runner
	log    *logrus.Logger
	trace  *logrus.Logger
}

// New assembles an orchestrator. trace receives the per-file hash log;
// pass nil to discard it.
func New(cfg *config.Config, store registry.Store, runner Runner, log, trace *logrus.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, store: store, runner: runner, log: log, trace: trace}
}

// resolution is the state owned by one top-level Build call.
type resolution struct {
	req  Request
	args map[string]string // substitution table for every Dockerfile in the chain
	memo map[string]digest.Digest
}

// Build resolves req's target image, building and publishing it and any
// missing parents. It returns the digest of the published version tag; an
// empty digest with a nil error means the target lives outside the cache
// registry and nothing was done.
func (o *Orchestrator) Build(ctx context.Context, req Request) (digest.Digest, error) {
	args, err := parseBuildArgs(req.BuildArgs)
	if err != nil {
		return "", err
	}
	// GIT_SHA and IMAGE_TAG are always available to manifests.
	args["GIT_SHA"] = req.GitSHA
	args["IMAGE_TAG"] = req.VersionTag

	st := &resolution{req: req, args: args, memo: make(map[string]digest.Digest)}
	return o.resolve(ctx, st, imageref.ImageIdentity{
		Registry: req.Registry,
		Name:     req.Name,
		Tag:      req.VersionTag,
	})
}

// resolve builds id and all its parents if needed and returns id's digest.
func (o *Orchestrator) resolve(ctx context.Context, st *resolution, id imageref.ImageIdentity) (digest.Digest, error) {
	// Images outside the cache registry are not ours to build or cache.
	if id.Registry != o.cfg.DockerRegistry {
		return "", nil
	}

	// Two children sharing a parent resolve it once per invocation.
	if d, ok := st.memo[id.String()]; ok {
		o.log.Debugf("memoized %s, digest: %s", id, d)
		return d, nil
	}

	repo := id.Repo()
	versionRef := repo + ":" + id.Tag

	// Already published under this version tag: reuse it.
	o.log.Infof("Pulling version tag %s to check if it already exists", versionRef)
	if o.store.Exists(ctx, versionRef) {
		d, err := o.store.Digest(ctx, versionRef)
		if err != nil {
			return "", fmt.Errorf("get digest for existing image %s: %w", versionRef, err)
		}
		o.log.Infof("version tag %s already exists, digest: %s", versionRef, d)
		o.propagateExtras(ctx, st, repo, id.Tag)
		st.memo[id.String()] = d
		return d, nil
	}

	buildContext, err := enterBuildContext(id.Name)
	if err != nil {
		return "", err
	}

	ignored, err := ignore.ResolveIgnoredSet(buildContext, o.log)
	if err != nil {
		return "", fmt.Errorf("resolve ignored files in %s: %w", buildContext, err)
	}

	dockerfilePath := o.cfg.LocateDockerfile(id.Name)
	if fi, err := os.Stat(dockerfilePath); err != nil || fi.IsDir() {
		return "", fmt.Errorf("%s not exists or is not a file, so %s cannot get built", dockerfilePath, id.Name)
	}

	df, err := dockerfile.Load(dockerfilePath, st.args)
	if err != nil {
		return "", err
	}

	chain := hasher.NewWithBlockSize(o.trace, o.cfg.ReadFileBlocksize)

	// Parents first, in manifest order. A parent failure aborts the whole
	// build; there is no partial result.
	for _, parent := range df.ParentImages() {
		pid := imageref.Parse(parent)
		pd, err := o.resolve(ctx, st, pid)
		if err != nil {
			return "", fmt.Errorf("resolve parent %s of %s: %w", parent, repo, err)
		}
		chain.AbsorbDigest(pd)
		o.traceLog("parent: %s, digest: %s, hash: %s", parent, pd, chain.Sum().Encoded())
	}

	// Then the manifest itself and every copy/add source, each pattern's
	// matches sorted, directories expanded recursively.
	srcs := append([]string{dockerfilePath}, df.CopiedSources()...)
	srcs = append(srcs, df.AddedSources()...)
	for _, src := range srcs {
		for _, f := range ignore.Glob(src) {
			if err := chain.AbsorbFile(f, ignored); err != nil {
				return "", fmt.Errorf("hash %s: %w", f, err)
			}
		}
	}

	filesHash := chain.Sum().Encoded()
	o.traceLog("image: %s, hash: %s", repo, filesHash)

	hashTag := o.cfg.HashTag(filesHash)
	hashRef := repo + ":" + hashTag

	o.log.Infof("Pulling content tag %s to check if it already exists", hashRef)
	switch {
	case o.store.Exists(ctx, hashRef):
		o.log.Infof("content tag %s already exists, content didn't change, tagging it to the new version tag", hashRef)

	case o.bridgeLegacy(ctx, id.Name, hashTag, hashRef):
		// bridged from the legacy registry, proceed as a cache hit

	default:
		o.log.Infof("content tag %s doesn't exist, content may have changed, building from %s", hashRef, dockerfilePath)
		if err := o.runner.Build(ctx, BuildSpec{
			ContextPath: st.req.ContextPath,
			Dockerfile:  dockerfilePath,
			Ref:         hashRef,
			BuildArgs:   commandBuildArgs(st.req),
		}); err != nil {
			return "", fmt.Errorf("build %s: %w", hashRef, err)
		}
		if err := o.store.Push(ctx, hashRef); err != nil {
			return "", err
		}
		o.log.Infof("content tag %s is pushed", hashRef)
	}

	// Publish under the requested version tag and report its digest.
	if err := o.store.Tag(ctx, hashRef, versionRef); err != nil {
		return "", err
	}
	o.propagateExtras(ctx, st, repo, id.Tag)
	if err := o.store.Push(ctx, versionRef); err != nil {
		return "", err
	}
	d, err := o.store.Digest(ctx, versionRef)
	if err != nil {
		return "", fmt.Errorf("get digest for %s after push: %w", versionRef, err)
	}
	o.log.Infof("image %s is pushed, digest: %s", versionRef, d)
	st.memo[id.String()] = d
	return d, nil
}

// bridgeLegacy checks the optional legacy cache registry for the same
// content tag and, on a hit, retags and pushes it into the cache
// registry. It reports whether the bridge succeeded; failures along the
// way only disable the bridge for this image.
func (o *Orchestrator) bridgeLegacy(ctx context.Context, name, hashTag, hashRef string) bool {
	if o.cfg.LegacyRegistry == "" {
		return false
	}
	legacyRef := o.cfg.LegacyRegistry + "/" + name + ":" + hashTag
	if !o.store.Exists(ctx, legacyRef) {
		return false
	}
	o.log.Infof("content tag %s exists at the legacy registry, bridging it to %s", legacyRef, hashRef)
	if err := o.store.Tag(ctx, legacyRef, hashRef); err != nil {
		o.log.Errorf("Failed to tag legacy image: %v", err)
		return false
	}
	if err := o.store.Push(ctx, hashRef); err != nil {
		o.log.Errorf("Failed to push bridged content tag: %v", err)
		return false
	}
	return true
}

// propagateExtras applies every extra tag and extra name to repo:tag.
// Each is attempted independently; failures are logged and never abort
// the build.
func (o *Orchestrator) propagateExtras(ctx context.Context, st *resolution, repo, tag string) {
	src := repo + ":" + tag
	for _, extra := range st.req.ExtraTags {
		if err := o.store.Tag(ctx, src, repo+":"+extra); err != nil {
			o.log.Errorf("Failed to tag image %s to %s: %v", repo, extra, err)
		}
	}
	for _, name := range st.req.ExtraNames {
		if err := o.store.Tag(ctx, src, name); err != nil {
			o.log.Errorf("Failed to tag image %s to %s: %v", repo, name, err)
		}
	}
}

// RawBuild bypasses all caching: one direct build of the literal
// context/Dockerfile under the version tag, then best-effort extra tags.
func (o *Orchestrator) RawBuild(ctx context.Context, req Request) error {
	st := &resolution{req: req}
	if err := o.runner.Build(ctx, BuildSpec{
		ContextPath: req.ContextPath,
		Dockerfile:  req.Dockerfile,
		Ref:         req.Name + ":" + req.VersionTag,
		BuildArgs:   commandBuildArgs(req),
	}); err != nil {
		return err
	}
	o.propagateExtras(ctx, st, req.Name, req.VersionTag)
	return nil
}

func (o *Orchestrator) traceLog(format string, args ...any) {
	if o.trace != nil {
		o.trace.Infof(format, args...)
	}
}

// enterBuildContext switches into the image's build context directory if
// one is configured in the environment and returns the directory the
// image's files resolve against. The switch is process-wide, as relative
// source patterns are expanded against the working directory.
func enterBuildContext(imageName string) (string, error) {
	if dir, ok := config.BuildContextOverride(imageName); ok {
		if err := os.Chdir(dir); err != nil {
			return "", fmt.Errorf("enter build context %s: %w", dir, err)
		}
		return dir, nil
	}
	return os.Getwd()
}

// commandBuildArgs assembles the --build-arg list for the external build:
// the injected GIT_SHA / TIMESTAMP / IMAGE_TAG first, then the caller's
// arguments in the order given.
func commandBuildArgs(req Request) [][2]string {
	args := [][2]string{
		{"GIT_SHA", req.GitSHA},
		{"TIMESTAMP", time.Now().UTC().Format("2006-01-02T15:04:05.000000")},
		{"IMAGE_TAG", req.VersionTag},
	}
	for _, kv := range req.BuildArgs {
		if k, v, ok := strings.Cut(kv, "="); ok {
			args = append(args, [2]string{k, v})
		}
	}
	return args
}

func parseBuildArgs(pairs []string) (map[string]string, error) {
	args := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("build-arg %q must be in ARG=VALUE format", kv)
		}
		args[k] = v
	}
	return args, nil
}
