package builder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tclh123/image-builder/internal/executil"
)

// BuildSpec is one external build invocation.
type BuildSpec struct {
	ContextPath string
	Dockerfile  string
	Ref         string // repo:tag applied to the result
	BuildArgs   [][2]string
}

// Runner executes external builds. The orchestrator only knows this
// interface; tests substitute a recording fake.
type Runner interface {
	Build(ctx context.Context, spec BuildSpec) error
}

// DockerRunner shells out to docker build.
type DockerRunner struct {
	timeout time.Duration
	dryRun  bool
}

// NewDockerRunner returns a Runner invoking the docker CLI. timeout
// bounds each build (zero disables); dryRun echoes instead of executing.
func NewDockerRunner(timeout time.Duration, dryRun bool) *DockerRunner {
	return &DockerRunner{timeout: timeout, dryRun: dryRun}
}

func (r *DockerRunner) Build(ctx context.Context, spec BuildSpec) error {
	args := []string{"build", "-f", spec.Dockerfile, "-t", spec.Ref}
	for _, kv := range spec.BuildArgs {
		if kv[0] != "" {
			args = append(args, "--build-arg", kv[0]+"="+kv[1])
		}
	}
	args = append(args, spec.ContextPath)

	fmt.Printf("Build command: docker %s\n", executil.QuoteArgs(redactBuildArgs(args)))
	if r.dryRun {
		return executil.DryRun("docker", args...)
	}

	ctx, cancel := executil.WithTimeout(ctx, r.timeout)
	defer cancel()
	return executil.Run(ctx, "docker", args...)
}

// redactBuildArgs masks secret-looking --build-arg values in echoed
// commands. The executed command keeps the real values.
func redactBuildArgs(args []string) []string {
	sus := func(k string) bool {
		k = strings.ToUpper(k)
		return strings.Contains(k, "PASSWORD") ||
			strings.Contains(k, "TOKEN") ||
			strings.Contains(k, "SECRET") ||
			k == "AWS_SECRET_ACCESS_KEY" ||
			k == "AWS_SESSION_TOKEN" ||
			k == "GOOGLE_APPLICATION_CREDENTIALS" ||
			k == "KUBECONFIG"
	}
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] != "--build-arg" {
			continue
		}
		if k, v, ok := strings.Cut(out[i+1], "="); ok && sus(k) && v != "" {
			out[i+1] = k + "=REDACTED"
		}
	}
	return out
}
