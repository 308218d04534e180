package types

import (
	"fmt"
	"hash/maphash"
)

var hashSeed = maphash.MakeSeed()

// Hash computes a structural hash for v. Hash is invariant under
// MakeImmutable/MakeShared: it never observes mutability state, only value
// content, so promoting a value's mutability never changes where it lands in
// a Set or Map bucket.
func Hash(v Value) (uint64, error) {
	switch x := v.(type) {
	case Nil:
		return 0, nil
	case Bool:
		if x {
			return 1, nil
		}
		return 2, nil
	case Int:
		return hashBytes([]byte{byte(x), byte(x >> 8), byte(x >> 16), byte(x >> 24),
			byte(x >> 32), byte(x >> 40), byte(x >> 48), byte(x >> 56)}), nil
	case Float:
		bits := fmt.Sprintf("%x", float64(x))
		return hashBytes([]byte(bits)), nil
	case String:
		return hashBytes([]byte(x)), nil
	case ByteTuple:
		return hashBytes([]byte(x)), nil
	case *Atom:
		// atoms are identity-compared; hash the pointer's string form so
		// equal atoms (same pointer) always hash equal.
		return hashBytes([]byte(fmt.Sprintf("%p", x))), nil
	case *Tuple:
		r := x.resolved()
		h := uint64(0x9e3779b97f4a7c15)
		for _, e := range r.elems {
			eh, err := Hash(e)
			if err != nil {
				return 0, err
			}
			h = (h ^ eh) * 1099511628211
		}
		return h, nil
	default:
		return 0, fmt.Errorf("unhashable value of kind %s", v.VKind())
	}
}

func hashBytes(b []byte) uint64 {
	var h maphash.Hash
	h.SetSeed(hashSeed)
	h.Write(b)
	return h.Sum64()
}

// Equals reports whether x and y are structurally equal. Tuple is the only
// composite kind it compares: equal tuples cause the less-shared operand to
// be redirected to the more-shared one, per the spec's equality-driven
// unification. Sets, maps and any other kind without a case below report
// an error.
func Equals(x, y Value) (bool, error) {
	if x.VKind() != y.VKind() {
		return false, nil
	}
	switch a := x.(type) {
	case Nil:
		return true, nil
	case Bool:
		return a == y.(Bool), nil
	case Int:
		return a == y.(Int), nil
	case Float:
		return a == y.(Float) || (a != a && y.(Float) != y.(Float)), nil // NaN handling: both NaN treated equal for hashing consistency
	case String:
		return a == y.(String), nil
	case ByteTuple:
		b := y.(ByteTuple)
		if len(a) != len(b) {
			return false, nil
		}
		for i := range a {
			if a[i] != b[i] {
				return false, nil
			}
		}
		return true, nil
	case *Atom:
		return a == y.(*Atom), nil
	case *Tuple:
		bt := y.(*Tuple)
		ra, rb := a.resolved(), bt.resolved()
		if ra == rb {
			return true, nil
		}
		eq, err := tupleElemsEqual(ra, rb)
		if err != nil || !eq {
			return eq, err
		}
		installIndirection(ra, rb)
		return true, nil
	default:
		return false, fmt.Errorf("cannot compare values of kind %s", x.VKind())
	}
}

func tupleElemsEqual(a, b *Tuple) (bool, error) {
	if len(a.elems) != len(b.elems) {
		return false, nil
	}
	for i := range a.elems {
		eq, err := Equals(a.elems[i], b.elems[i])
		if err != nil || !eq {
			return eq, err
		}
	}
	return true, nil
}

// installIndirection redirects the less-shared of a, b to the more-shared
// one, so that future Equals/Hash calls on the redirected value resolve in
// O(1) via resolved(). Ties (equal mutability) redirect a to b arbitrarily.
func installIndirection(a, b *Tuple) {
	if a == b {
		return
	}
	switch {
	case a.Mutability() > b.Mutability():
		b.setRedirect(a)
	default:
		a.setRedirect(b)
	}
}
