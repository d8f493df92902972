// image-builder builds container images from layered Dockerfiles while
// using a remote registry as a content-addressed cache: each unique
// combination of parent content, local files and build arguments is built
// at most once, no matter how many downstream images reference it.
//
// Keep this file simple: load local env overrides, dispatch to the CLI,
// map its result to the process exit code. All the heavy lifting stays
// internal.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/tclh123/image-builder/internal/cli"
)

func main() {
	// Local overrides for dev runs; harmless in CI.
	_ = godotenv.Load()

	os.Exit(cli.Execute())
}
