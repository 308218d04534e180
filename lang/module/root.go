// Package module implements the module resolver and root registry (spec
// §4.G): the MODULE_ROOTS path grammar, ModuleRoot and ModuleName records,
// rename-rule application, and fully-qualified name decomposition.
//
// The pure decomposition functions here follow the same shape as the
// teacher's lang/resolver/naming.go: deterministic, side-effect-free
// transforms over an already-parsed structure, just applied to the spec's
// own path grammar instead of block naming.
package module

import (
	"fmt"
	"strings"
)

// Repository is the subset of the indexed compiled-module repository (spec
// §1 "persistence format... only its open/read/write/close surface" is in
// scope) that the resolver needs to address a root: just a stable handle,
// not its storage layout.
type Repository interface {
	// Path returns the repository's on-disk location, for diagnostics.
	Path() string
}

// Root is a (name, repository, optional source directory) triple, per spec
// §3 "Module root". Roots with no SourceDir are compiled-only: their
// modules must already exist in Repo.
type Root struct {
	Name      string
	Repo      Repository
	SourceDir string // empty if this root has no source directory
}

// HasSource reports whether this root carries a source directory,
// allowing modules to be compiled from source rather than only loaded
// from the repository.
func (r Root) HasSource() bool { return r.SourceDir != "" }

// RootSet is the insertion-ordered map from root name to Root produced by
// parsing a MODULE_ROOTS path (spec §4.G "Parsing populates an
// insertion-ordered map from root name to ModuleRoot").
type RootSet struct {
	order []string
	byName map[string]Root
}

// NewRootSet returns an empty RootSet.
func NewRootSet() *RootSet {
	return &RootSet{byName: make(map[string]Root)}
}

// Add registers root under its own name, preserving insertion order. It is
// an error to register the same root name twice.
func (s *RootSet) Add(r Root) error {
	if _, exists := s.byName[r.Name]; exists {
		return fmt.Errorf("module: duplicate root name %q", r.Name)
	}
	s.order = append(s.order, r.Name)
	s.byName[r.Name] = r
	return nil
}

// Lookup returns the root registered under name, if any.
func (s *RootSet) Lookup(name string) (Root, bool) {
	r, ok := s.byName[name]
	return r, ok
}

// Roots returns the roots in insertion order.
func (s *RootSet) Roots() []Root {
	out := make([]Root, len(s.order))
	for i, name := range s.order {
		out[i] = s.byName[name]
	}
	return out
}

// fsRepository is the trivial Repository used when no richer repository
// implementation is supplied (spec's persistence format is explicitly out
// of scope; this module only needs something Path()-able).
type fsRepository struct{ path string }

// NewFSRepository builds a Repository that is nothing more than a path
// handle, for callers that don't plug in a real indexed repository.
func NewFSRepository(path string) Repository { return fsRepository{path: path} }

func (r fsRepository) Path() string { return r.path }

// ParsePath parses a MODULE_ROOTS string per spec §4.G's grammar:
//
//	path    := binding (';' binding)*
//	binding := name '=' repoPath (',' sourceDir)?
//
// Both repoPath and sourceDir must be absolute (spec: "Paths must be
// absolute"). If sourceDir is omitted, repoPath is treated as the path to
// an existing indexed repository with no source directory; see §8 scenario
// 8 ("/avail=/r/avail.repo,/r/src;ext=/r/ext.repo") for the literal
// end-to-end example this grammar must parse.
func ParsePath(path string) (*RootSet, error) {
	set := NewRootSet()
	if strings.TrimSpace(path) == "" {
		return set, nil
	}
	for _, binding := range strings.Split(path, ";") {
		binding = strings.TrimSpace(binding)
		if binding == "" {
			continue
		}
		root, err := parseBinding(binding)
		if err != nil {
			return nil, err
		}
		if err := set.Add(root); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func parseBinding(binding string) (Root, error) {
	name, rest, ok := strings.Cut(binding, "=")
	if !ok || name == "" {
		return Root{}, fmt.Errorf("module: malformed root binding %q: missing '='", binding)
	}
	repoPath, sourceDir, _ := strings.Cut(rest, ",")
	repoPath = strings.TrimSpace(repoPath)
	sourceDir = strings.TrimSpace(sourceDir)

	if !isAbsolute(repoPath) {
		return Root{}, fmt.Errorf("module: root %q: repository path %q is not absolute", name, repoPath)
	}
	if sourceDir != "" && !isAbsolute(sourceDir) {
		return Root{}, fmt.Errorf("module: root %q: source directory %q is not absolute", name, sourceDir)
	}

	return Root{
		Name:      name,
		Repo:      NewFSRepository(repoPath),
		SourceDir: sourceDir,
	}, nil
}

func isAbsolute(p string) bool { return strings.HasPrefix(p, "/") }
