// Package registry is the cache-store boundary: existence probes, digest
// lookups and tag/push/pull mutations against the cache registry. The
// real client shells out to the docker CLI for image movement and asks
// the registry's manifest endpoint for digests; a dry-run wrapper turns
// every mutation into a logged no-op.
package registry

import (
	"context"
	"errors"

	"github.com/opencontainers/go-digest"
)

// ErrNotFound reports that a reference has no digest in the registry.
// After a successful push this is fatal: nothing can be returned to the
// caller or to dependent images.
var ErrNotFound = errors.New("image not found in registry")

// Store is the set of registry operations the build orchestrator
// consumes. Every call blocks for its full duration, bounded only by the
// configured per-call timeout. None of them retry.
type Store interface {
	// Exists reports whether ref is retrievable. A true result also
	// leaves the image available locally for subsequent tagging.
	Exists(ctx context.Context, ref string) bool

	// Digest returns the content digest the registry reports for ref.
	Digest(ctx context.Context, ref string) (digest.Digest, error)

	// Tag applies dst as a new name for the local image src.
	Tag(ctx context.Context, src, dst string) error

	// Push uploads ref to its registry.
	Push(ctx context.Context, ref string) error

	// Pull downloads ref from its registry.
	Pull(ctx context.Context, ref string) error
}
