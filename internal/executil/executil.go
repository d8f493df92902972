// Package executil wraps os/exec for the docker invocations this tool
// makes. Every run takes a context so callers can bound registry and build
// operations with a timeout, and dry-run variants print the exact command
// instead of executing it.
package executil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Run executes the command with inherited stdout/stderr, echoing it first.
func Run(ctx context.Context, name string, args ...string) error {
	return runCore(ctx, false, name, args...)
}

// RunSilent executes the command with captured output and no echo. Used
// for probe-style calls (e.g. docker pull as an existence check) whose
// failure is an answer, not an error worth printing.
func RunSilent(ctx context.Context, name string, args ...string) error {
	return runCore(ctx, true, name, args...)
}

// DryRun logs the command that would be run without executing it.
func DryRun(name string, args ...string) error {
	fmt.Printf("[DRY RUN] %s\n", name+" "+QuoteArgs(args))
	return nil
}

// WithTimeout derives a context bounded by d. A zero or negative d
// disables the bound.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func runCore(ctx context.Context, silent bool, name string, args ...string) error {
	fullCmd := name + " " + QuoteArgs(args)
	if ctx == nil {
		ctx = context.Background()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()

	var buf bytes.Buffer
	if silent {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		fmt.Printf("Running: %s\n", fullCmd)
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				return fmt.Errorf("command failed (exit=%d): %s: %w", status.ExitStatus(), fullCmd, err)
			}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("command canceled: %s", fullCmd)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("command timed out: %s", fullCmd)
		}
		return fmt.Errorf("failed to run command: %s: %w", fullCmd, err)
	}
	return nil
}

// QuoteArgs returns a printable, shell-safe representation of args.
func QuoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'`$\\*?[]{}()<>|&;") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
