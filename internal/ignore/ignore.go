// Package ignore resolves a .dockerignore-style rule file into the
// concrete set of files excluded from content hashing.
//
// Rules apply left to right against the filesystem: a plain pattern adds
// its expansion to the ignored set, a !-negated pattern removes its
// expansion. A later negation therefore un-ignores files an earlier rule
// added, and a later plain rule can re-ignore them. Patterns are globs
// (including ** recursion) relative to the current working directory,
// and directory matches expand to every regular file beneath them.
package ignore

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/sirupsen/logrus"
)

// IgnoreFileName is looked up inside the build context.
const IgnoreFileName = ".dockerignore"

// ResolveIgnoredSet reads the ignore file at root (or <root>/.dockerignore
// when root is a directory) and returns the set of absolute file paths to
// exclude from hashing. A missing ignore file yields an empty set.
func ResolveIgnoredSet(root string, log *logrus.Logger) (map[string]struct{}, error) {
	ignored := make(map[string]struct{})

	path := root
	if st, err := os.Stat(root); err == nil && st.IsDir() {
		path = filepath.Join(root, IgnoreFileName)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("failed to parse %s, %s is not a file or not exists", IgnoreFileName, path)
			return ignored, nil
		}
		return nil, err
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, err
	}

	for _, pattern := range patterns {
		if negated := strings.HasPrefix(pattern, "!"); negated {
			for _, m := range Glob(pattern[1:]) {
				delete(ignored, m)
			}
			continue
		}
		for _, m := range Glob(pattern) {
			ignored[m] = struct{}{}
		}
	}
	return ignored, nil
}

// Glob expands a pattern to the sorted absolute paths of every regular
// file it matches, recursing into matched directories. Patterns that
// match nothing (or are malformed) expand to nothing.
func Glob(pattern string) []string {
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil
	}

	var files []string
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil {
			continue
		}
		if st.IsDir() {
			files = append(files, filesUnder(m)...)
			continue
		}
		if st.Mode().IsRegular() {
			files = append(files, abs(m))
		}
	}
	sort.Strings(files)
	return files
}

func filesUnder(dir string) []string {
	var files []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, abs(p))
		}
		return nil
	})
	return files
}

func abs(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}
