package l1

import "sync"

// moduleRegistry tracks every CompiledCode that has a module attached, so
// teardown can clear the links and let a long-running process re-initialize
// the module table without stale handles keeping the old one alive.
var moduleRegistry struct {
	mu    sync.Mutex
	codes []*CompiledCode
}

// AttachModule records m as code's owning module and registers code for
// teardown. Attaching is how code enters the registry; code that never
// gets a module (synthesized plan bodies, test fixtures) is never tracked.
func (c *CompiledCode) AttachModule(m ModuleRef) {
	moduleRegistry.mu.Lock()
	defer moduleRegistry.mu.Unlock()
	if c.Module == nil && m != nil {
		moduleRegistry.codes = append(moduleRegistry.codes, c)
	}
	c.Module = m
}

// DetachAllModules clears the module link of every registered CompiledCode
// and empties the registry. Part of process teardown (the runtime's
// well-known object pool is torn down after this, so nothing re-resolves a
// cleared link against a half-dismantled module table).
func DetachAllModules() {
	moduleRegistry.mu.Lock()
	defer moduleRegistry.mu.Unlock()
	for _, c := range moduleRegistry.codes {
		c.Module = nil
	}
	moduleRegistry.codes = nil
}
