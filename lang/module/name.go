package module

import (
	"fmt"
	"strings"
)

// Name is a fully-qualified, canonical module name of the form
// "/R/Seg1/.../Leaf" (spec §3 "Module name"). It decomposes deterministically
// by splitting on '/'.
type Name struct {
	canonical string

	rootName         string
	packageName      string
	localName        string
	rootRelativeName string
}

// ParseName decomposes a canonical fully-qualified module name string,
// per spec §4.G: "split on '/', assert leading empty segment, first
// segment is the root, last is the local name, and the prefix reassembled
// is the package name."
func ParseName(canonical string) (Name, error) {
	if !strings.HasPrefix(canonical, "/") {
		return Name{}, fmt.Errorf("module: name %q must be absolute (start with '/')", canonical)
	}
	segments := strings.Split(canonical, "/")
	if len(segments) < 3 || segments[0] != "" {
		return Name{}, fmt.Errorf("module: name %q is malformed", canonical)
	}
	// segments[0] == "" (the leading empty segment from the leading '/')
	rootName := segments[1]
	localName := segments[len(segments)-1]
	if rootName == "" || localName == "" {
		return Name{}, fmt.Errorf("module: name %q has an empty root or local segment", canonical)
	}

	packageSegments := segments[1 : len(segments)-1]
	packageName := "/" + strings.Join(packageSegments, "/")
	rootRelative := "/" + strings.Join(segments[2:], "/")
	if len(segments) == 3 {
		// root-relative name for a module directly under its root, e.g.
		// "/R/Leaf" -> rootRelativeName "/Leaf".
		rootRelative = "/" + localName
	}

	return Name{
		canonical:        canonical,
		rootName:         rootName,
		packageName:      packageName,
		localName:        localName,
		rootRelativeName: rootRelative,
	}, nil
}

// String returns the canonical name.
func (n Name) String() string { return n.canonical }

// RootName is the first path segment, naming the Root this module belongs
// to.
func (n Name) RootName() string { return n.rootName }

// PackageName is the canonical name with the local (leaf) segment removed,
// i.e. the enclosing package's fully-qualified name.
func (n Name) PackageName() string { return n.packageName }

// LocalName is the last path segment.
func (n Name) LocalName() string { return n.localName }

// RootRelativeName is the canonical name with the root segment stripped,
// i.e. the path used to locate the module's source within its root's
// source directory.
func (n Name) RootRelativeName() string { return n.rootRelativeName }

// Equal reports whether two names denote the same module, by canonical
// string comparison (spec §4.G "The name is considered equal by its
// canonical string").
func (n Name) Equal(other Name) bool { return n.canonical == other.canonical }

// ResolvedName is the result of applying rename rules to a parsed Name
// (spec §3 "Module name... isRename flag").
type ResolvedName struct {
	Name
	IsRename bool
}

// RenameRule maps a module-name pattern to a replacement canonical name.
// A pattern matches only a canonical name equal to it (no prefix matching);
// spec §4.G leaves the rename-rule text format itself as a separate
// out-of-scope concern, so only the resolution contract (pattern ->
// replacement) is modeled here.
type RenameRule struct {
	Pattern     string
	Replacement string
}

// RenameTable applies an ordered list of RenameRules to canonical module
// names. The first matching rule wins.
type RenameTable struct {
	rules []RenameRule
}

// NewRenameTable builds a RenameTable from a newline-separated rename-rule
// text, one rule per line, each of the form "pattern -> replacement".
// Blank lines and lines starting with '#' are ignored.
func NewRenameTable(text string) (*RenameTable, error) {
	var rules []RenameRule
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pattern, replacement, ok := strings.Cut(line, "->")
		if !ok {
			return nil, fmt.Errorf("module: rename rule line %d (%q) missing '->'", i+1, line)
		}
		rules = append(rules, RenameRule{
			Pattern:     strings.TrimSpace(pattern),
			Replacement: strings.TrimSpace(replacement),
		})
	}
	return &RenameTable{rules: rules}, nil
}

// Resolve applies rename rules to name, decomposing the result and
// recording whether a rename occurred.
func (t *RenameTable) Resolve(name Name) (ResolvedName, error) {
	if t == nil {
		return ResolvedName{Name: name}, nil
	}
	for _, rule := range t.rules {
		if name.canonical == rule.Pattern {
			renamed, err := ParseName(rule.Replacement)
			if err != nil {
				return ResolvedName{}, fmt.Errorf("module: rename rule %q -> %q: %w", rule.Pattern, rule.Replacement, err)
			}
			return ResolvedName{Name: renamed, IsRename: true}, nil
		}
	}
	return ResolvedName{Name: name}, nil
}
