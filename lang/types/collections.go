package types

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// Tuple is a fixed-length sequence of values. It starts Mutable (elements may
// be set in place while being built) and becomes Immutable or Shared only
// through MakeImmutable/MakeShared; installing it in a CompiledCode's literal
// vector or capturing it in a Function does not change its mutability.
//
// redirectTo implements the equality-driven indirection described in the
// spec: when two Tuples are found structurally equal by Equals, the
// less-shared one's redirectTo is set to the more-shared one, so later
// equality/hash checks on the redirected Tuple are answered in O(1) by
// following the link instead of re-walking the structure.
type Tuple struct {
	mutBox
	elems      []Value
	redirectTo *Tuple
}

func NewTuple(elems []Value) *Tuple { return &Tuple{elems: elems} }

func (t *Tuple) resolved() *Tuple {
	for t.redirectTo != nil {
		t = t.redirectTo
	}
	return t
}

func (t *Tuple) String() string {
	r := t.resolved()
	s := "("
	for i, e := range r.elems {
		if i > 0 {
			s += ", "
		}
		s += e.String()
	}
	return s + ")"
}
func (t *Tuple) VKind() Kind { return KindTuple }
func (t *Tuple) Len() int    { return len(t.resolved().elems) }
func (t *Tuple) At(i int) Value {
	return t.resolved().elems[i]
}

// SetAt mutates element i in place; it is an error on an Immutable or Shared
// tuple.
func (t *Tuple) SetAt(i int, v Value) error {
	r := t.resolved()
	if r.Mutability() != Mutable {
		return fmt.Errorf("cannot mutate %s tuple", r.Mutability())
	}
	r.elems[i] = v
	return nil
}

func (t *Tuple) setRedirect(to *Tuple) { t.redirectTo = to }

// Set is an unordered collection of distinct values, backed by a map keyed on
// a computed hash-equal representative. Collisions within a hash bucket are
// resolved linearly, matching the approach the teacher takes for its
// swiss-map-backed Map (a single bucket per hash, list for collisions) scaled
// down to the common case of few collisions.
type Set struct {
	mutBox
	buckets *swiss.Map[uint64, []Value]
}

func NewSet(size int) *Set {
	return &Set{buckets: swiss.NewMap[uint64, []Value](uint32(size + 1))}
}

func (s *Set) VKind() Kind { return KindSet }
func (s *Set) String() string {
	str := "{"
	first := true
	s.buckets.Iter(func(_ uint64, bucket []Value) bool {
		for _, v := range bucket {
			if !first {
				str += ", "
			}
			first = false
			str += v.String()
		}
		return false
	})
	return str + "}"
}

func (s *Set) Len() int {
	n := 0
	s.buckets.Iter(func(_ uint64, b []Value) bool {
		n += len(b)
		return false
	})
	return n
}

func (s *Set) Has(v Value) (bool, error) {
	h, err := Hash(v)
	if err != nil {
		return false, err
	}
	bucket, _ := s.buckets.Get(h)
	for _, cand := range bucket {
		eq, err := Equals(cand, v)
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
	return false, nil
}

// Add inserts v, returning false if it was already present.
func (s *Set) Add(v Value) (bool, error) {
	if s.Mutability() != Mutable {
		return false, fmt.Errorf("cannot mutate %s set", s.Mutability())
	}
	h, err := Hash(v)
	if err != nil {
		return false, err
	}
	bucket, _ := s.buckets.Get(h)
	for _, cand := range bucket {
		eq, err := Equals(cand, v)
		if err != nil {
			return false, err
		}
		if eq {
			return false, nil
		}
	}
	s.buckets.Put(h, append(bucket, v))
	return true, nil
}

// Map is a mapping from values to values.
type Map struct {
	mutBox
	buckets *swiss.Map[uint64, []mapEntry]
	size    int
}

type mapEntry struct {
	key, val Value
}

func NewMap(size int) *Map {
	return &Map{buckets: swiss.NewMap[uint64, []mapEntry](uint32(size + 1))}
}

func (m *Map) VKind() Kind { return KindMap }
func (m *Map) String() string {
	str := "["
	first := true
	m.buckets.Iter(func(_ uint64, bucket []mapEntry) bool {
		for _, e := range bucket {
			if !first {
				str += ", "
			}
			first = false
			str += e.key.String() + " -> " + e.val.String()
		}
		return false
	})
	return str + "]"
}
func (m *Map) Len() int { return m.size }

func (m *Map) Get(k Value) (Value, bool, error) {
	h, err := Hash(k)
	if err != nil {
		return nil, false, err
	}
	bucket, _ := m.buckets.Get(h)
	for _, e := range bucket {
		eq, err := Equals(e.key, k)
		if err != nil {
			return nil, false, err
		}
		if eq {
			return e.val, true, nil
		}
	}
	return nil, false, nil
}

func (m *Map) SetKey(k, v Value) error {
	if m.Mutability() != Mutable {
		return fmt.Errorf("cannot mutate %s map", m.Mutability())
	}
	h, err := Hash(k)
	if err != nil {
		return err
	}
	bucket, _ := m.buckets.Get(h)
	for i, e := range bucket {
		eq, err := Equals(e.key, k)
		if err != nil {
			return err
		}
		if eq {
			bucket[i].val = v
			m.buckets.Put(h, bucket)
			return nil
		}
	}
	m.buckets.Put(h, append(bucket, mapEntry{k, v}))
	m.size++
	return nil
}
