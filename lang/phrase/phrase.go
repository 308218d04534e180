// Package phrase defines the boundary interface compiled code uses to refer
// to the surface-language parse tree that produced it (spec §3 "Phrase").
//
// The surface parser of program text is explicitly out of scope (spec §1:
// "only the grammar descriptor it produces is in scope"); Node is kept
// abstract for exactly that reason, per SPEC_FULL.md §3's resolution. A
// real surface-language implementation supplies its own Node; this package
// only carries the contract lang/l1 needs (decompilation and source-context
// rendering) and a trivial Opaque implementation for callers -- tests, or a
// toy line-oriented compiler -- that just need to stash a payload.
package phrase

// Kind classifies a Node for callers that branch on phrase shape without
// depending on a concrete surface-language AST.
type Kind int

const (
	// KindUnknown is the zero value: a phrase whose shape this boundary
	// doesn't distinguish.
	KindUnknown Kind = iota
	// KindOpaque marks an Opaque value.
	KindOpaque
)

// Node is the opaque parse-tree node referenced by CompiledCode.Phrase.
// Real surface-language phrase types (statements, expressions, blocks)
// implement it; lang/l1 never inspects anything beyond this contract.
type Node interface {
	String() string
	Kind() Kind
}

// Opaque is the trivial Node implementation for a caller that has no real
// phrase tree to attach, only a text payload worth keeping around (e.g. a
// test harness, or a toy compiler standing in for a real parser).
type Opaque string

func (o Opaque) String() string { return string(o) }

func (o Opaque) Kind() Kind { return KindOpaque }
