package registry

import (
	"context"

	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
)

// DryRun wraps a Store so that mutations become logged no-op successes
// and pull-based existence probes report "not found", which steers the
// orchestrator down the Building path. Digest lookups stay real: they
// are read-only, and the original tool performed them even in dry runs.
type DryRun struct {
	store Store
	log   *logrus.Logger
}

// NewDryRun wraps store for a dry-run invocation.
func NewDryRun(store Store, log *logrus.Logger) *DryRun {
	return &DryRun{store: store, log: log}
}

func (d *DryRun) Exists(ctx context.Context, ref string) bool {
	d.log.Infof("[dry-run] skip existence check for %s", ref)
	return false
}

func (d *DryRun) Digest(ctx context.Context, ref string) (digest.Digest, error) {
	return d.store.Digest(ctx, ref)
}

func (d *DryRun) Tag(ctx context.Context, src, dst string) error {
	d.log.Infof("[dry-run] docker tag %s %s", src, dst)
	return nil
}

func (d *DryRun) Push(ctx context.Context, ref string) error {
	d.log.Infof("[dry-run] docker push %s", ref)
	return nil
}

func (d *DryRun) Pull(ctx context.Context, ref string) error {
	d.log.Infof("[dry-run] docker pull %s", ref)
	return nil
}
