// Package hasher computes the content digest that keys the build cache.
//
// A Chain absorbs an ordered sequence of byte sources: every parent
// image digest first, then the bytes of every resolved source file. The
// hash is not commutative: reproducing a digest requires the exact same
// absorption order, which the orchestrator fixes as manifest-declared
// parent order followed by sorted file paths.
package hasher

import (
	"io"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
)

// DefaultBlockSize is the read buffer used when streaming file contents.
const DefaultBlockSize = 64 * 1024

// Chain is a streaming hash over parent digests and file contents.
type Chain struct {
	digester  digest.Digester
	blockSize int
	trace     *logrus.Logger
}

// New returns an empty chain. The trace logger receives one line per
// absorbed source with the running hash; pass a discard logger to skip
// tracing.
func New(trace *logrus.Logger) *Chain {
	return NewWithBlockSize(trace, DefaultBlockSize)
}

// NewWithBlockSize is New with an explicit read buffer size.
func NewWithBlockSize(trace *logrus.Logger, blockSize int) *Chain {
	if trace == nil {
		trace = discardLogger()
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Chain{
		digester:  digest.Canonical.Digester(),
		blockSize: blockSize,
		trace:     trace,
	}
}

// AbsorbDigest folds a parent image digest into the chain. An empty
// digest absorbs nothing but still counts as a step.
func (c *Chain) AbsorbDigest(d digest.Digest) {
	c.digester.Hash().Write([]byte(d))
}

// AbsorbFile folds a file's contents into the chain. Paths that do not
// exist or are not regular files are skipped silently (glob expansion may
// produce stale matches), as are paths in the ignored set. A read error
// on an existing regular file is returned.
func (c *Chain) AbsorbFile(path string, ignored map[string]struct{}) error {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return nil
	}
	if _, skip := ignored[path]; skip {
		c.trace.Debugf("ignore: %s", path)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, c.blockSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			c.digester.Hash().Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	c.trace.Infof("update: %s, hash: %s", path, c.Sum().Encoded())
	return nil
}

// Sum returns the digest of everything absorbed so far. The chain stays
// usable afterwards.
func (c *Chain) Sum() digest.Digest {
	return c.digester.Digest()
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
