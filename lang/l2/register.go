// Package l2 implements the typed Level-Two intermediate representation:
// typed virtual registers, type restrictions carried on reads and
// control-flow edges, register coloring, and a translator that lowers an
// L2 instruction list into a host-callable chunk.
package l2

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/emberlang/ember/lang/types"
)

// RegisterKind partitions registers by storage representation, per spec
// §3's "L2 register": object, int, float.
type RegisterKind uint8

const (
	Object RegisterKind = iota
	Int
	Float
)

func (k RegisterKind) String() string {
	switch k {
	case Object:
		return "object"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return "unknown"
	}
}

// Register is a single typed virtual register: a kind, a debug ordinal
// (stable identity used by maps and equality, independent of coloring), a
// declared TypeRestriction, and the final index register coloring assigns
// it. FinalIndex is -1 until colored.
type Register struct {
	Kind       RegisterKind
	Ordinal    int
	Restrict   *TypeRestriction
	FinalIndex int
}

func NewRegister(kind RegisterKind, ordinal int, restrict *TypeRestriction) *Register {
	return &Register{Kind: kind, Ordinal: ordinal, Restrict: restrict, FinalIndex: -1}
}

func (r *Register) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.Ordinal)
}

// copyAfterColoring produces a register referring to the same coloring slot
// as r -- used when an instruction needs to reference "the same physical
// register" post-coloring, e.g. representing a value already proven to live
// in the same slot across a move that coloring elided.
func (r *Register) copyAfterColoring() *Register {
	cp := *r
	return &cp
}

// copyForTranslator produces a register with a fresh ordinal, for use when
// the translator needs a genuinely new temporary that must not alias r.
func (r *Register) copyForTranslator(freshOrdinal int) *Register {
	return NewRegister(r.Kind, freshOrdinal, r.Restrict)
}

// TypeRestriction pairs a declared type with an optional known constant
// value -- the currently-known static information about a register or a
// read, per spec §3 and §4.D's RegisterSet.
type TypeRestriction struct {
	Type     *types.Type
	Constant types.Value // nil if not statically known
}

func NewTypeRestriction(t *types.Type) *TypeRestriction {
	return &TypeRestriction{Type: t}
}

func ConstantRestriction(v types.Value, t *types.Type) *TypeRestriction {
	return &TypeRestriction{Type: t, Constant: v}
}

func (tr *TypeRestriction) String() string {
	if tr.Constant != nil {
		return fmt.Sprintf("%s=%s", tr.Type, tr.Constant)
	}
	return tr.Type.String()
}

// normalizeRestriction applies spec §3's TypeRestriction normalization: a
// constant that is no longer an instance of the type collapses the whole
// restriction to (⊥, None); a type with exactly one instance (and not a
// metatype) fills the constant in.
func normalizeRestriction(t *types.Type, c types.Value) *TypeRestriction {
	if c != nil && !types.IsSubtypeOf(valueType(c), t) {
		return &TypeRestriction{Type: types.Bottom}
	}
	if c == nil && types.InstanceCount(t) == 1 && !types.IsInstanceMeta(t) {
		if instances, ok := types.Instances(t); ok {
			c = instances[0]
		}
	}
	return &TypeRestriction{Type: t, Constant: c}
}

// restrictedTo narrows tr by intersecting with t and, if value is non-nil,
// pinning the constant. Used along a specific control-flow successor edge
// (a "phi restriction") rather than mutating the register's own declared
// restriction.
func (tr *TypeRestriction) restrictedTo(t *types.Type, value types.Value) *TypeRestriction {
	if value == nil {
		value = tr.Constant
	}
	return normalizeRestriction(types.Intersection(tr.Type, t), value)
}

// restrictedToValue narrows tr to exactly the singleton type containing v.
func (tr *TypeRestriction) restrictedToValue(v types.Value) *TypeRestriction {
	singleton := types.EnumerationType(v.VKind(), []types.Value{v})
	return normalizeRestriction(types.Intersection(tr.Type, singleton), v)
}

// restrictedWithoutValue narrows tr by excluding the singleton type
// containing v (e.g. along the "not equal to v" edge of a comparison).
func (tr *TypeRestriction) restrictedWithoutValue(v types.Value) *TypeRestriction {
	singleton := types.EnumerationType(v.VKind(), []types.Value{v})
	remaining := types.Minus(tr.Type, singleton)
	c := tr.Constant
	if c != nil {
		if eq, err := types.Equals(c, v); err != nil || eq {
			c = nil
		}
	}
	return normalizeRestriction(remaining, c)
}

// restrictedWithoutType narrows tr by excluding t entirely (e.g. along the
// "not an instance of t" edge of a type test).
func (tr *TypeRestriction) restrictedWithoutType(t *types.Type) *TypeRestriction {
	c := tr.Constant
	if c != nil && types.IsSubtypeOf(valueType(c), t) {
		c = nil
	}
	return normalizeRestriction(types.Minus(tr.Type, t), c)
}

func valueType(v types.Value) *types.Type {
	return types.EnumerationType(v.VKind(), []types.Value{v})
}

// RegisterSet maps each register (by ordinal) to its currently known
// TypeRestriction, threaded through propagateTypes calls during L2
// analysis.
type RegisterSet struct {
	byOrdinal map[int]*TypeRestriction
}

func NewRegisterSet() *RegisterSet {
	return &RegisterSet{byOrdinal: make(map[int]*TypeRestriction)}
}

func (s *RegisterSet) Get(r *Register) *TypeRestriction {
	if tr, ok := s.byOrdinal[r.Ordinal]; ok {
		return tr
	}
	return r.Restrict
}

func (s *RegisterSet) Set(r *Register, tr *TypeRestriction) {
	s.byOrdinal[r.Ordinal] = tr
}

// Clone returns an independent copy, for forking type knowledge along
// divergent control-flow edges.
func (s *RegisterSet) Clone() *RegisterSet {
	return &RegisterSet{byOrdinal: maps.Clone(s.byOrdinal)}
}

// Ordinals returns the registers this set has narrowed, in ascending
// order, for deterministic diagnostics and tests.
func (s *RegisterSet) Ordinals() []int {
	ordinals := maps.Keys(s.byOrdinal)
	sort.Ints(ordinals)
	return ordinals
}

// String renders the set's narrowings in ordinal order, for debug logging.
func (s *RegisterSet) String() string {
	var b strings.Builder
	for i, ord := range s.Ordinals() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "r%d:%s", ord, s.byOrdinal[ord])
	}
	return b.String()
}
