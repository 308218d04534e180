// Much of the types package is adapted from the Starlark source code:
// https://github.com/google/starlark-go/tree/ee8ed142361c69d52fe8e9fb5e311d2a0a7c02de
//
// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package types implements the object model of the runtime: the uniform
// Value representation, its mutability state machine, and the Type lattice
// used to describe and check values at both compile and run time.
package types

import "fmt"

// Mutability is the state of a value along the monotonic chain
// mutable -> immutable -> shared. A value may only move forward along this
// chain; attempting to go backward is a programming error.
type Mutability uint8

const (
	Mutable Mutability = iota
	Immutable
	Shared
)

func (m Mutability) String() string {
	switch m {
	case Mutable:
		return "mutable"
	case Immutable:
		return "immutable"
	case Shared:
		return "shared"
	default:
		return fmt.Sprintf("mutability(%d)", uint8(m))
	}
}

// canTransitionTo reports whether m may move to next directly.
func (m Mutability) canTransitionTo(next Mutability) bool {
	return next >= m
}

// Value is the interface implemented by every value manipulated by the
// runtime: literals, compiled code, functions, continuations, fibers,
// tuples, sets, maps and types themselves (a Type is also a Value, so the
// lattice can describe its own instances' types).
type Value interface {
	// String returns the value's textual representation.
	String() string

	// VKind identifies the value's runtime kind, used by the tagged-union
	// dispatch instead of Go type assertions chained across dozens of
	// concrete types.
	VKind() Kind

	// Mutability returns the value's current mutability state.
	Mutability() Mutability
}

// Kind tags the concrete representation of a Value, replacing the need for
// multiple inheritance of descriptor kinds (spec Design Notes) with a single
// tagged union plus a per-kind operation vtable.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindByteTuple
	KindTuple
	KindSet
	KindMap
	KindAtom
	KindType
	KindFunction
	KindCompiledCode
	KindContinuation
	KindFiber
)

var kindNames = [...]string{
	KindNil:          "nil",
	KindBool:         "bool",
	KindInt:          "int",
	KindFloat:        "float",
	KindString:       "string",
	KindByteTuple:    "byte-tuple",
	KindTuple:        "tuple",
	KindSet:          "set",
	KindMap:          "map",
	KindAtom:         "atom",
	KindType:         "type",
	KindFunction:     "function",
	KindCompiledCode: "compiled-code",
	KindContinuation: "continuation",
	KindFiber:        "fiber",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// mutBox is embedded by mutable concrete value kinds to implement the
// monotonic mutability state machine uniformly.
type mutBox struct {
	state Mutability
}

func (b *mutBox) Mutability() Mutability { return b.state }

// MakeImmutable transitions v to Immutable, a no-op if v is already
// Immutable or Shared, or if v is immutable by construction (an atom like
// Int, which carries no mutability box).
func MakeImmutable(v Value) { transition(v, Immutable) }

// MakeShared transitions v to Shared, allowing concurrent read access from
// any fiber. It is idempotent.
func MakeShared(v Value) { transition(v, Shared) }

// transitioner is implemented by concrete kinds that carry a mutable mutBox;
// immutable-by-construction kinds (Int, Float, Bool, String, atoms) do not
// implement it and MakeImmutable/MakeShared on them are no-ops.
type transitioner interface {
	transitionTo(Mutability)
}

func transition(v Value, next Mutability) {
	t, ok := v.(transitioner)
	if !ok {
		return // always-immutable value, nothing to do
	}
	cur := v.Mutability()
	if !cur.canTransitionTo(next) {
		panic(fmt.Sprintf("illegal mutability transition for %s: %s -> %s", v.VKind(), cur, next))
	}
	t.transitionTo(next)
}

func (b *mutBox) transitionTo(next Mutability) {
	if next > b.state {
		b.state = next
	}
}
