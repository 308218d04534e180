package types

import "sync"

// The well-known objects pool: the per-process table of shared type
// instances and singletons that the rest of the runtime treats as
// canonical. It is lazily initialized on first use and can be torn down
// and re-initialized in long-running processes (init/teardown order is:
// teardown invalidates the pool; the next WellKnownType call rebuilds it).
var wellKnown struct {
	mu          sync.Mutex
	initialized bool
	primitives  map[Kind]*Type
}

// WellKnownType returns the canonical shared *Type for primitive kind k.
// Unlike PrimitiveType, which allocates a fresh structurally-equal Type on
// every call, the well-known instance is pointer-stable between Teardown
// calls, so identity-keyed tables (caches keyed by *Type) behave sanely.
func WellKnownType(k Kind) *Type {
	wellKnown.mu.Lock()
	defer wellKnown.mu.Unlock()
	if !wellKnown.initialized {
		wellKnown.primitives = make(map[Kind]*Type)
		wellKnown.initialized = true
	}
	t, ok := wellKnown.primitives[k]
	if !ok {
		t = PrimitiveType(k)
		wellKnown.primitives[k] = t
	}
	return t
}

// TeardownWellKnown drops the pool so a subsequent WellKnownType call
// rebuilds it from scratch. Callers that also hold compiled code should
// detach module links first (lang/l1's DetachAllModules) -- that is the
// defined teardown order.
func TeardownWellKnown() {
	wellKnown.mu.Lock()
	defer wellKnown.mu.Unlock()
	wellKnown.initialized = false
	wellKnown.primitives = nil
}
