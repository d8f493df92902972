package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"

	"github.com/tclh123/image-builder/internal/executil"
)

// Client is the real Store, backed by the docker CLI and the registry's
// manifest API.
type Client struct {
	insecure bool
	timeout  time.Duration
	log      *logrus.Logger
}

// NewClient returns a Store talking to real registries. insecure permits
// plain-HTTP/self-signed registries on digest lookups; timeout bounds
// each operation (zero disables).
func NewClient(insecure bool, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{insecure: insecure, timeout: timeout, log: log}
}

// Exists probes ref with a silent pull. Pulling doubles as the probe so a
// hit leaves the image available for local docker tag calls.
func (c *Client) Exists(ctx context.Context, ref string) bool {
	ctx, cancel := executil.WithTimeout(ctx, c.timeout)
	defer cancel()
	return executil.RunSilent(ctx, "docker", "pull", ref) == nil
}

// Digest asks the registry for ref's manifest digest via a HEAD-style
// request. A missing manifest or absent digest header maps to
// ErrNotFound.
func (c *Client) Digest(ctx context.Context, ref string) (digest.Digest, error) {
	ctx, cancel := executil.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := []name.Option{}
	if c.insecure {
		opts = append(opts, name.Insecure)
	}
	r, err := name.ParseReference(ref, opts...)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}

	desc, err := remote.Head(r, remote.WithContext(ctx))
	if err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		return "", fmt.Errorf("digest lookup for %s: %w", ref, err)
	}
	if desc.Digest.String() == "" {
		return "", fmt.Errorf("%s: registry returned no digest: %w", ref, ErrNotFound)
	}
	return digest.Digest(desc.Digest.String()), nil
}

func (c *Client) Tag(ctx context.Context, src, dst string) error {
	ctx, cancel := executil.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := executil.Run(ctx, "docker", "tag", src, dst); err != nil {
		return fmt.Errorf("tag %s -> %s: %w", src, dst, err)
	}
	return nil
}

func (c *Client) Push(ctx context.Context, ref string) error {
	ctx, cancel := executil.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := executil.Run(ctx, "docker", "push", ref); err != nil {
		return fmt.Errorf("push %s: %w", ref, err)
	}
	return nil
}

func (c *Client) Pull(ctx context.Context, ref string) error {
	ctx, cancel := executil.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := executil.Run(ctx, "docker", "pull", ref); err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	return nil
}
