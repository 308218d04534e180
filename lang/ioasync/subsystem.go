package ioasync

import (
	"log/slog"

	"github.com/emberlang/ember/internal/lru"
)

// Subsystem owns the worker pool and the buffer cache shared by every
// FileHandle it opens (spec §4.F "Buffer cache... Keys are (handle,
// page_start)" -- one cache, addressed by handle identity, not one cache
// per handle).
type Subsystem struct {
	pool  *Pool
	cache *lru.Cache[BufferKey, []byte]
}

// NewSubsystem builds a Subsystem. workerParallelism bounds concurrent
// blocking operations; strongCapacity/softCapacity size the two buffer
// cache tiers (spec §4.H).
func NewSubsystem(workerParallelism, strongCapacity, softCapacity int, log *slog.Logger) *Subsystem {
	return &Subsystem{
		pool:  NewPool(workerParallelism, log),
		cache: lru.New[BufferKey, []byte](strongCapacity, softCapacity, nil),
	}
}
