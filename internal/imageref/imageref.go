// Package imageref models container image identities of the form
// [registry/]name[:tag]. Parsing is literal: the registry is everything
// before the last slash and the tag everything after the first colon of
// the remainder, with no implicit defaults. "golang" stays registry-less
// instead of being normalized to docker.io/library/golang, which is what
// the builder's same-registry check relies on.
package imageref

import (
	"regexp"
	"strings"
)

// ImageIdentity is an immutable (by convention) parsed image reference.
// Registry and Tag may be empty.
type ImageIdentity struct {
	Registry string
	Name     string
	Tag      string
}

// Parse splits s into registry, name and tag. It never fails; missing
// parts come back empty.
func Parse(s string) ImageIdentity {
	var id ImageIdentity
	rest := strings.TrimSpace(s)
	if i := strings.LastIndexByte(rest, '/'); i >= 0 {
		id.Registry, rest = rest[:i], rest[i+1:]
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest, id.Tag = rest[:i], rest[i+1:]
	}
	id.Name = rest
	return id
}

// Repo renders [registry/]name without the tag.
func (id ImageIdentity) Repo() string {
	if id.Registry == "" {
		return id.Name
	}
	return id.Registry + "/" + id.Name
}

// String renders the full [registry/]name[:tag] form.
func (id ImageIdentity) String() string {
	s := id.Repo()
	if id.Tag != "" {
		s += ":" + id.Tag
	}
	return s
}

var tagAllowed = regexp.MustCompile(`^[a-z0-9_.-]{1,128}$`)

// ValidTag reports whether tag is acceptable to the registry: lowercase,
// limited charset, at most 128 characters.
func ValidTag(tag string) bool {
	return tagAllowed.MatchString(tag)
}
