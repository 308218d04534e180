// Package lru implements the two-tier, thread-safe, race-deduplicating
// memoising cache used throughout the runtime (spec §4.H): a small strong
// tier that pins its entries and a larger soft tier that evicts by
// recency, with singleflight-style computation so concurrent misses for
// the same key invoke the user function exactly once.
//
// The spec's "soft reference" tier is a GC-dependent notion with no Go
// analogue; per the spec's own Design Notes ("soft references... replace
// with a bounded size counter plus an explicit eviction policy"), the soft
// tier here is a bounded container/list-ordered LRU instead of anything
// relying on the garbage collector.
package lru

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/dolthub/swiss"
	"golang.org/x/sync/singleflight"
)

// Retire is invoked when an entry is evicted from the soft tier, removed
// explicitly, or dropped by Clear -- outside of any internal lock (spec
// §4.H, §5 "Locks held across user code: none"). Best-effort: an entry
// that was already purged is never retired twice.
type Retire[K comparable, V any] func(key K, value V)

// Cache is the strong+soft tiered cache described by spec §4.H. It is safe
// for concurrent use by multiple goroutines.
type Cache[K comparable, V any] struct {
	mu             sync.Mutex
	strongCapacity int
	softCapacity   int

	strong    *swiss.Map[K, V]
	strongLRU *list.List // front = most recently touched; elements are *strongNode[K]
	strongIdx map[K]*list.Element

	soft    map[K]*list.Element // key -> node in softLRU
	softLRU *list.List          // elements are *softNode[K, V]

	group singleflight.Group
	// inflight counts Get calls that are past the cached-lookup miss and
	// inside the compute path; Clear waits on it so no future can repopulate
	// a tier after the drain (spec §4.H "wait until no futures remain").
	inflight sync.WaitGroup
	retire   Retire[K, V]
}

type strongNode[K comparable] struct{ key K }

type softNode[K comparable, V any] struct {
	key   K
	value V
}

// New builds a Cache with the given strong and soft tier capacities. retire
// may be nil.
func New[K comparable, V any](strongCapacity, softCapacity int, retire Retire[K, V]) *Cache[K, V] {
	if strongCapacity < 0 {
		strongCapacity = 0
	}
	if softCapacity < 1 {
		softCapacity = 1
	}
	return &Cache[K, V]{
		strongCapacity: strongCapacity,
		softCapacity:   softCapacity,
		strong:         swiss.NewMap[K, V](uint32(strongCapacity + 1)),
		strongLRU:      list.New(),
		strongIdx:      make(map[K]*list.Element),
		soft:           make(map[K]*list.Element),
		softLRU:        list.New(),
		retire:         retire,
	}
}

// Poll is the hit-only variant of Get (spec §4.H "poll(key)"): it returns
// the cached value and true on a hit, or the zero value and false on a
// miss, without invoking any user function.
func (c *Cache[K, V]) Poll(key K) (V, bool) {
	c.mu.Lock()
	v, ok, retires := c.lockedLookup(key)
	c.mu.Unlock()
	fireAll(retires)
	return v, ok
}

// lockedLookup implements the soft-lookup-then-promote steps of Get (spec
// §4.H step 1-3). Must be called with c.mu held; returns any retirements
// triggered by eviction during promotion, to be fired after unlock.
func (c *Cache[K, V]) lockedLookup(key K) (V, bool, []func()) {
	if el, ok := c.soft[key]; ok {
		entry := el.Value.(*softNode[K, V])
		c.softLRU.Remove(el)
		delete(c.soft, key)
		retires := c.promoteLocked(key, entry.value)
		return entry.value, true, retires
	}
	if v, ok := c.strong.Get(key); ok {
		c.touchStrongLocked(key)
		return v, true, nil
	}
	return *new(V), false, nil
}

// promoteLocked inserts key/value into the strong tier, evicting the
// least-recently-used strong entry into the soft tier if full, which may
// in turn evict a soft entry and produce a retirement. Must be called with
// c.mu held.
func (c *Cache[K, V]) promoteLocked(key K, value V) []func() {
	if c.strongCapacity == 0 {
		return c.insertSoftLocked(key, value)
	}
	var retires []func()
	if _, exists := c.strong.Get(key); !exists && int(c.strong.Count()) >= c.strongCapacity {
		retires = c.evictOldestStrongLocked()
	}
	c.strong.Put(key, value)
	c.touchStrongLocked(key)
	return retires
}

func (c *Cache[K, V]) touchStrongLocked(key K) {
	if el, ok := c.strongIdx[key]; ok {
		c.strongLRU.MoveToFront(el)
		return
	}
	el := c.strongLRU.PushFront(&strongNode[K]{key: key})
	c.strongIdx[key] = el
}

func (c *Cache[K, V]) evictOldestStrongLocked() []func() {
	e := c.strongLRU.Back()
	if e == nil {
		return nil
	}
	sn := e.Value.(*strongNode[K])
	c.strongLRU.Remove(e)
	delete(c.strongIdx, sn.key)
	if v, ok := c.strong.Get(sn.key); ok {
		c.strong.Delete(sn.key)
		return c.insertSoftLocked(sn.key, v)
	}
	return nil
}

// insertSoftLocked inserts key/value at the front of the soft tier,
// evicting the least-recently-used soft entry (and queuing its
// retirement) if the tier is at capacity. Must be called with c.mu held.
func (c *Cache[K, V]) insertSoftLocked(key K, value V) []func() {
	if el, ok := c.soft[key]; ok {
		c.softLRU.Remove(el)
		delete(c.soft, key)
	}
	el := c.softLRU.PushFront(&softNode[K, V]{key: key, value: value})
	c.soft[key] = el

	var retires []func()
	for len(c.soft) > c.softCapacity {
		back := c.softLRU.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*softNode[K, V])
		c.softLRU.Remove(back)
		delete(c.soft, entry.key)
		if c.retire != nil {
			k, v := entry.key, entry.value
			retires = append(retires, func() { c.retire(k, v) })
		}
	}
	return retires
}

// Get returns the value for key, computing it via fn if absent. Concurrent
// Get calls for the same key invoke fn at most once (spec §4.H, §8 "LRU
// race"); the cache lock is never held while fn runs.
func (c *Cache[K, V]) Get(key K, fn func() (V, error)) (V, error) {
	c.mu.Lock()
	if v, ok, retires := c.lockedLookup(key); ok {
		c.mu.Unlock()
		fireAll(retires)
		return v, nil
	}
	c.mu.Unlock()

	groupKey := fmt.Sprintf("%+v", key)
	c.inflight.Add(1)
	defer c.inflight.Done()
	v, err, _ := c.group.Do(groupKey, func() (interface{}, error) {
		// Re-check: another goroutine may have completed the computation
		// and released the group between our miss above and Do.
		c.mu.Lock()
		if v, ok, retires := c.lockedLookup(key); ok {
			c.mu.Unlock()
			fireAll(retires)
			return v, nil
		}
		c.mu.Unlock()

		value, err := fn()
		if err != nil {
			return *new(V), err
		}

		c.mu.Lock()
		retires := c.promoteLocked(key, value)
		c.mu.Unlock()
		fireAll(retires)
		return value, nil
	})
	if err != nil {
		return *new(V), err
	}
	return v.(V), nil
}

// Remove purges key from both tiers, invoking the retirement callback (if
// set and the key was present). A subsequent Poll(key) returns false until
// the next Get(key) (spec §8).
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	var retires []func()
	if el, ok := c.soft[key]; ok {
		entry := el.Value.(*softNode[K, V])
		c.softLRU.Remove(el)
		delete(c.soft, key)
		if c.retire != nil {
			v := entry.value
			retires = append(retires, func() { c.retire(key, v) })
		}
	}
	if v, ok := c.strong.Get(key); ok {
		c.strong.Delete(key)
		if el, ok := c.strongIdx[key]; ok {
			c.strongLRU.Remove(el)
			delete(c.strongIdx, key)
		}
		if c.retire != nil {
			vv := v
			retires = append(retires, func() { c.retire(key, vv) })
		}
	}
	c.mu.Unlock()
	fireAll(retires)
}

// Clear waits until no in-flight computations remain, then drains both
// tiers, invoking the retirement callback for every surviving binding
// (spec §4.H "wait until no futures remain; drain both maps and strong;
// invoke retirement for every surviving binding"). The wait happens before
// taking the lock -- an in-flight Get needs the lock to store its result,
// so waiting under it would deadlock. A Get that starts after the wait is
// a new computation racing with (or following) the Clear, which is the
// caller's ordering to arrange.
func (c *Cache[K, V]) Clear() {
	c.inflight.Wait()
	c.mu.Lock()
	var retires []func()
	if c.retire != nil {
		for k, el := range c.soft {
			v := el.Value.(*softNode[K, V]).value
			kk := k
			retires = append(retires, func() { c.retire(kk, v) })
		}
		c.strong.Iter(func(k K, v V) bool {
			kk, vv := k, v
			retires = append(retires, func() { c.retire(kk, vv) })
			return false
		})
	}
	c.soft = make(map[K]*list.Element)
	c.softLRU = list.New()
	c.strong = swiss.NewMap[K, V](uint32(c.strongCapacity + 1))
	c.strongLRU = list.New()
	c.strongIdx = make(map[K]*list.Element)
	c.mu.Unlock()
	fireAll(retires)
}

// Len reports the number of entries currently held across both tiers.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.strong.Count()) + len(c.soft)
}

func fireAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
