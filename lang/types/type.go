package types

import "fmt"

// shape tags the structural form of a single (non-union) type member.
type shape uint8

const (
	shapePrimitive shape = iota
	shapeEnumeration
	shapeTuple
	shapeFunction
	shapeSet
	shapeMap
	shapeMeta
)

// member is one "simple" (non-union) type. A Type is represented as a
// normalized set of members whose union is the type; Top and Bottom are
// distinguished sentinels rather than members of the set (see Type.isTop /
// Type.members == nil).
type member struct {
	shape shape

	// shapePrimitive / shapeEnumeration
	primitive Kind
	instances []Value // non-nil only for shapeEnumeration: the finite instance set

	// shapeTuple: size range [sizeMin, sizeMax], sizeMax == -1 means unbounded.
	sizeMin, sizeMax int
	leading          []*Type
	defaultElem      *Type

	// shapeFunction
	params   []*Type
	variadic bool
	result   *Type

	// shapeSet / shapeMap
	elem *Type
	key  *Type
	val  *Type

	// shapeMeta: the metatype of base (the type of all subtypes of base).
	base *Type
}

// Type is a value of the type lattice: either Top, Bottom, or a normalized
// non-empty set of member shapes whose pairwise union it represents.
//
// Type itself implements Value (KindType) so that it can be stored as an
// ordinary runtime value (e.g. as a TypeRestriction's type, or the operand of
// an ATTR-like reflective primitive) -- this is the "multiple inheritance of
// descriptor kinds" design note's tagged union applied to types themselves.
type Type struct {
	isTop   bool
	members []member // nil + !isTop means Bottom
}

var (
	Top    = &Type{isTop: true}
	Bottom = &Type{}
)

func (t *Type) VKind() Kind            { return KindType }
func (t *Type) Mutability() Mutability { return Shared }

func (t *Type) String() string {
	switch {
	case t.isTop:
		return "⊤"
	case len(t.members) == 0:
		return "⊥"
	case len(t.members) == 1:
		return memberString(t.members[0])
	default:
		s := ""
		for i, m := range t.members {
			if i > 0 {
				s += " | "
			}
			s += memberString(m)
		}
		return s
	}
}

func memberString(m member) string {
	switch m.shape {
	case shapePrimitive:
		return m.primitive.String()
	case shapeEnumeration:
		return fmt.Sprintf("enum(%s, n=%d)", m.primitive, len(m.instances))
	case shapeTuple:
		return "tuple"
	case shapeFunction:
		return "function"
	case shapeSet:
		return "set"
	case shapeMap:
		return "map"
	case shapeMeta:
		return "meta(" + m.base.String() + ")"
	default:
		return "?"
	}
}

// PrimitiveType returns the type whose sole instances are values of kind k.
func PrimitiveType(k Kind) *Type {
	return &Type{members: []member{{shape: shapePrimitive, primitive: k}}}
}

// EnumerationType returns a type whose instances are exactly the given
// finite set of values, all of kind underlying.
func EnumerationType(underlying Kind, instances []Value) *Type {
	return &Type{members: []member{{shape: shapeEnumeration, primitive: underlying, instances: instances}}}
}

// TupleType returns a tuple type of the given size range (sizeMax == -1 for
// unbounded), the given leading element types, and a default type applied to
// elements beyond the leading ones.
func TupleType(sizeMin, sizeMax int, leading []*Type, defaultElem *Type) *Type {
	if defaultElem == nil {
		defaultElem = Bottom
	}
	return &Type{members: []member{{shape: shapeTuple, sizeMin: sizeMin, sizeMax: sizeMax, leading: leading, defaultElem: defaultElem}}}
}

// FunctionType returns a function type with the given parameter types and
// result type.
func FunctionType(params []*Type, variadic bool, result *Type) *Type {
	return &Type{members: []member{{shape: shapeFunction, params: params, variadic: variadic, result: result}}}
}

func SetType(elem *Type) *Type {
	return &Type{members: []member{{shape: shapeSet, elem: elem}}}
}

func MapType(key, val *Type) *Type {
	return &Type{members: []member{{shape: shapeMap, key: key, val: val}}}
}

// MetaType returns the metatype of t: the type whose instances are exactly
// the types that are subtypes of t. Metacovariance (x ⊑ y ⇒ type(x) ⊑
// type(y)) holds by construction: MetaType's subtype relation is defined to
// mirror the base relation exactly (see isSubtypeMember's shapeMeta case).
func MetaType(t *Type) *Type {
	return &Type{members: []member{{shape: shapeMeta, base: t}}}
}

// IsSubtypeOf reports whether a ⊑ b.
func IsSubtypeOf(a, b *Type) bool {
	if len(a.members) == 0 && !a.isTop {
		return true // Bottom is a subtype of everything
	}
	if b.isTop {
		return true
	}
	if a.isTop {
		return false // Top is only a subtype of Top, handled above
	}
	for _, ma := range a.members {
		if !anySubsumes(ma, b.members) {
			return false
		}
	}
	return true
}

func anySubsumes(ma member, candidates []member) bool {
	for _, mb := range candidates {
		if isSubtypeMember(ma, mb) {
			return true
		}
	}
	return false
}

func isSubtypeMember(a, b member) bool {
	if a.shape != b.shape {
		// an enumeration is a subtype of the primitive type of its underlying kind
		if a.shape == shapeEnumeration && b.shape == shapePrimitive {
			return a.primitive == b.primitive
		}
		return false
	}
	switch a.shape {
	case shapePrimitive:
		return a.primitive == b.primitive
	case shapeEnumeration:
		if a.primitive != b.primitive {
			return false
		}
		for _, ai := range a.instances {
			if !instanceIn(ai, b.instances) {
				return false
			}
		}
		return true
	case shapeTuple:
		if a.sizeMin < b.sizeMin {
			return false
		}
		if b.sizeMax >= 0 && (a.sizeMax < 0 || a.sizeMax > b.sizeMax) {
			return false
		}
		n := len(a.leading)
		if len(b.leading) > n {
			n = len(b.leading)
		}
		for i := 0; i < n; i++ {
			if !IsSubtypeOf(tupleElemAt(a, i), tupleElemAt(b, i)) {
				return false
			}
		}
		return IsSubtypeOf(a.defaultElem, b.defaultElem)
	case shapeFunction:
		if len(a.params) != len(b.params) {
			return false
		}
		for i := range a.params {
			// contravariant: b's param must be a subtype of a's param
			if !IsSubtypeOf(b.params[i], a.params[i]) {
				return false
			}
		}
		return IsSubtypeOf(a.result, b.result) // covariant result
	case shapeSet:
		return IsSubtypeOf(a.elem, b.elem)
	case shapeMap:
		return IsSubtypeOf(a.key, b.key) && IsSubtypeOf(a.val, b.val)
	case shapeMeta:
		return IsSubtypeOf(a.base, b.base)
	default:
		return false
	}
}

func tupleElemAt(m member, i int) *Type {
	if i < len(m.leading) {
		return m.leading[i]
	}
	return m.defaultElem
}

func instanceIn(v Value, set []Value) bool {
	for _, c := range set {
		if eq, err := Equals(v, c); err == nil && eq {
			return true
		}
	}
	return false
}

// Union returns a ⊔ b.
func Union(a, b *Type) *Type {
	if a.isTop || b.isTop {
		return Top
	}
	if len(a.members) == 0 {
		return b
	}
	if len(b.members) == 0 {
		return a
	}
	members := append(append([]member{}, a.members...), b.members...)
	return normalizeUnion(members)
}

// normalizeUnion drops members strictly subsumed by another member in the
// set, leaving a smaller but not necessarily minimal generating set. Type
// equality (TypeEquals) is defined via mutual subsumption rather than
// structural identity of the member list, so failing to reach a unique
// minimal form never breaks the union/intersection laws: a redundant member
// changes no subtype query's answer, only the representation's size.
func normalizeUnion(members []member) *Type {
	keep := make([]member, 0, len(members))
	for _, m := range members {
		redundant := false
		for _, k := range keep {
			if isSubtypeMember(m, k) {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}
		// drop any previously kept member that m subsumes
		filtered := keep[:0]
		for _, k := range keep {
			if !isSubtypeMember(k, m) {
				filtered = append(filtered, k)
			}
		}
		keep = append(filtered, m)
	}
	if len(keep) == 0 {
		return Bottom
	}
	return &Type{members: keep}
}

// Intersection returns a ⊓ b.
func Intersection(a, b *Type) *Type {
	if len(a.members) == 0 && !a.isTop {
		return Bottom
	}
	if len(b.members) == 0 && !b.isTop {
		return Bottom
	}
	if a.isTop {
		return b
	}
	if b.isTop {
		return a
	}
	var result []member
	for _, ma := range a.members {
		for _, mb := range b.members {
			if m, ok := intersectMember(ma, mb); ok {
				result = append(result, m)
			}
		}
	}
	if len(result) == 0 {
		return Bottom
	}
	return normalizeUnion(result)
}

func intersectMember(a, b member) (member, bool) {
	if a.shape != b.shape {
		if a.shape == shapeEnumeration && b.shape == shapePrimitive && a.primitive == b.primitive {
			return a, true
		}
		if b.shape == shapeEnumeration && a.shape == shapePrimitive && a.primitive == b.primitive {
			return b, true
		}
		return member{}, false
	}
	switch a.shape {
	case shapePrimitive:
		if a.primitive == b.primitive {
			return a, true
		}
		return member{}, false
	case shapeEnumeration:
		if a.primitive != b.primitive {
			return member{}, false
		}
		var common []Value
		for _, v := range a.instances {
			if instanceIn(v, b.instances) {
				common = append(common, v)
			}
		}
		if len(common) == 0 {
			return member{}, false
		}
		return member{shape: shapeEnumeration, primitive: a.primitive, instances: common}, true
	case shapeTuple:
		min := a.sizeMin
		if b.sizeMin > min {
			min = b.sizeMin
		}
		max := a.sizeMax
		if b.sizeMax >= 0 && (max < 0 || b.sizeMax < max) {
			max = b.sizeMax
		}
		if max >= 0 && min > max {
			return member{}, false
		}
		n := len(a.leading)
		if len(b.leading) > n {
			n = len(b.leading)
		}
		leading := make([]*Type, n)
		for i := 0; i < n; i++ {
			leading[i] = Intersection(tupleElemAt(a, i), tupleElemAt(b, i))
		}
		return member{shape: shapeTuple, sizeMin: min, sizeMax: max, leading: leading,
			defaultElem: Intersection(a.defaultElem, b.defaultElem)}, true
	case shapeFunction:
		if len(a.params) != len(b.params) {
			return member{}, false
		}
		params := make([]*Type, len(a.params))
		for i := range params {
			params[i] = Union(a.params[i], b.params[i])
		}
		return member{shape: shapeFunction, params: params, result: Intersection(a.result, b.result)}, true
	case shapeSet:
		return member{shape: shapeSet, elem: Intersection(a.elem, b.elem)}, true
	case shapeMap:
		return member{shape: shapeMap, key: Intersection(a.key, b.key), val: Intersection(a.val, b.val)}, true
	case shapeMeta:
		return member{shape: shapeMeta, base: Intersection(a.base, b.base)}, true
	default:
		return member{}, false
	}
}

// Minus returns a with every instance of b excluded. For finite enumerations
// this filters the instance set exactly; otherwise (per spec) the result is
// conservative: a non-enumeration member of a is dropped only when a member
// of b wholly subsumes it and is otherwise kept unchanged, since the
// complement of an infinite or unbounded type generally cannot be
// represented exactly by this lattice.
func Minus(a, b *Type) *Type {
	if a.isTop {
		// conservative: ⊤ minus anything narrower is not expressible in this
		// lattice, so it stays ⊤
		return Top
	}
	if len(a.members) == 0 {
		return Bottom
	}
	result := make([]member, 0, len(a.members))
	for _, ma := range a.members {
		if ma.shape == shapeEnumeration {
			var remaining []Value
			for _, v := range ma.instances {
				excluded := false
				for _, mb := range b.members {
					if mb.shape == shapeEnumeration && mb.primitive == ma.primitive && instanceIn(v, mb.instances) {
						excluded = true
						break
					}
				}
				if !excluded {
					remaining = append(remaining, v)
				}
			}
			if len(remaining) == 0 {
				continue
			}
			result = append(result, member{shape: shapeEnumeration, primitive: ma.primitive, instances: remaining})
			continue
		}
		// conservative: keep the member as-is unless it's wholly subsumed by b
		if anySubsumes(ma, b.members) {
			continue
		}
		result = append(result, ma)
	}
	if len(result) == 0 {
		return Bottom
	}
	return &Type{members: result}
}

// InstanceCount returns the number of distinct instances of t, or -1 if t has
// an unbounded or unknown instance count (any non-enumeration member makes
// the count unbounded).
func InstanceCount(t *Type) int {
	if t.isTop || len(t.members) == 0 {
		return -1
	}
	total := 0
	for _, m := range t.members {
		if m.shape != shapeEnumeration {
			return -1
		}
		total += len(m.instances)
	}
	return total
}

// Instances returns the explicit instance set of t if InstanceCount(t) >= 0.
func Instances(t *Type) ([]Value, bool) {
	if InstanceCount(t) < 0 {
		return nil, false
	}
	var all []Value
	for _, m := range t.members {
		all = append(all, m.instances...)
	}
	return all, true
}

// IsInstanceMeta reports whether t is itself a metatype (the type of types).
func IsInstanceMeta(t *Type) bool {
	if t.isTop || len(t.members) == 0 {
		return false
	}
	for _, m := range t.members {
		if m.shape != shapeMeta {
			return false
		}
	}
	return true
}

// TypeEquals reports structural equality of two types via mutual subsumption
// (x ⊑ y ∧ y ⊑ x ⟺ x = y, per the spec's own definition of type equality).
func TypeEquals(a, b *Type) bool {
	return IsSubtypeOf(a, b) && IsSubtypeOf(b, a)
}

// FunctionResultType and TupleElementType expose the covariant projections
// used by the metacovariance/covariance property tests.
func FunctionResultType(t *Type) *Type {
	if len(t.members) == 1 && t.members[0].shape == shapeFunction {
		return t.members[0].result
	}
	return Bottom
}

func FunctionArgType(t *Type, i int) *Type {
	if len(t.members) == 1 && t.members[0].shape == shapeFunction && i < len(t.members[0].params) {
		return t.members[0].params[i]
	}
	return Bottom
}

func TupleElementType(t *Type, i int) *Type {
	if len(t.members) == 1 && t.members[0].shape == shapeTuple {
		return tupleElemAt(t.members[0], i)
	}
	return Bottom
}

// PrimitiveKindOf reports whether t is a single plain primitive type (no
// enumeration restriction, no union) and, if so, which kind it covers.
func PrimitiveKindOf(t *Type) (Kind, bool) {
	if t.isTop || len(t.members) != 1 || t.members[0].shape != shapePrimitive {
		return 0, false
	}
	return t.members[0].primitive, true
}
