// Package ioasync implements spec §4.F: async file handles, the aligned
// page buffer cache, and the bounded worker pool backing blocking file
// operations.
//
// Grounded on the teacher's lang/machine/thread.go Stdout/Stderr/Stdin
// io.Writer/io.Reader abstraction boundary (swappable host I/O behind a
// narrow interface), generalized here to full file handles; the worker
// pool shape is grounded on the pack's errgroup-based concurrent-pipeline
// examples (other_examples/oriys-nova/internal/executor).
package ioasync

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Fail is the failure-completion callback shared by every asynchronous
// operation (spec §4.F "read(position, size, succeed, fail)" etc.).
type Fail func(code ErrorCode)

// ReadSuccess is the success-completion callback for Read.
type ReadSuccess func(data []byte)

// WriteSuccess is the success-completion callback for Write.
type WriteSuccess func()

// VoidSuccess is the success-completion callback for Sync and Truncate.
type VoidSuccess func()

// BufferKey identifies one aligned page in the buffer cache: a handle plus
// the page's aligned start offset (spec §3 "A BufferKey = (handle,
// aligned_start)").
type BufferKey struct {
	Handle *FileHandle
	Start  int64
}

// FileHandle wraps a host file channel (spec §3 "File handle"). Mutable
// state (closed, bufferKeys) is protected by mu; the underlying *os.File
// is safe for concurrent use by multiple goroutines on its own.
type FileHandle struct {
	mu sync.Mutex

	file      *os.File
	path      string
	canRead   bool
	canWrite  bool
	alignment int64

	bufferKeys map[BufferKey]struct{}
	closed     bool

	sub *Subsystem
}

// CanRead, CanWrite, Alignment and Filename expose the handle's fixed
// attributes (spec §3 "File handle").
func (h *FileHandle) CanRead() bool    { return h.canRead }
func (h *FileHandle) CanWrite() bool   { return h.canWrite }
func (h *FileHandle) Alignment() int64 { return h.alignment }
func (h *FileHandle) Filename() string { return h.path }

// Open opens path for the requested access, while holding a pool slot
// (spec §4.F "open" is one of the blocking operations the worker pool
// drains). alignment must be a positive power of two.
func (s *Subsystem) Open(ctx context.Context, path string, canRead, canWrite bool, alignment int64) (*FileHandle, ErrorCode) {
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil, ErrInvalidPath
	}
	var (
		f    *os.File
		code ErrorCode
	)
	err := s.pool.Submit(ctx, func() error {
		flag := os.O_RDONLY
		switch {
		case canRead && canWrite:
			flag = os.O_RDWR | os.O_CREATE
		case canWrite:
			flag = os.O_WRONLY | os.O_CREATE
		}
		var openErr error
		f, openErr = os.OpenFile(path, flag, 0o644)
		if openErr != nil {
			code = fromOSError(openErr)
			return openErr
		}
		return nil
	})
	if err != nil {
		if code == 0 {
			code = ErrIOError
		}
		return nil, code
	}
	return &FileHandle{
		file:       f,
		path:       path,
		canRead:    canRead,
		canWrite:   canWrite,
		alignment:  alignment,
		bufferKeys: make(map[BufferKey]struct{}),
		sub:        s,
	}, 0
}

// Close closes the handle (spec §3 "close races with pending I/O; pending
// completions after close deliver failure") and drops every buffer-cache
// page this handle owns, since the page cache is keyed by handle identity
// and a closed handle's pages can never be served again.
func (h *FileHandle) Close(ctx context.Context) ErrorCode {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0
	}
	h.closed = true
	keys := make([]BufferKey, 0, len(h.bufferKeys))
	for k := range h.bufferKeys {
		keys = append(keys, k)
	}
	h.bufferKeys = nil
	h.mu.Unlock()

	for _, k := range keys {
		h.sub.cache.Remove(k)
	}

	var code ErrorCode
	err := h.sub.pool.Submit(ctx, func() error {
		if closeErr := h.file.Close(); closeErr != nil {
			code = fromOSError(closeErr)
			return closeErr
		}
		return nil
	})
	if err != nil {
		if code == 0 {
			code = ErrIOError
		}
		return code
	}
	return 0
}

// checkOpen returns ErrInvalidHandle if the handle has been closed.
func (h *FileHandle) checkOpen() ErrorCode {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrInvalidHandle
	}
	return 0
}

func (h *FileHandle) trackPage(key BufferKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.bufferKeys[key] = struct{}{}
}

func (h *FileHandle) readAt(p []byte, off int64) (int, error) {
	n, err := h.file.ReadAt(p, off)
	if err == io.EOF && n > 0 {
		return n, nil
	}
	return n, err
}

func (h *FileHandle) writeAt(p []byte, off int64) (int, error) {
	return h.file.WriteAt(p, off)
}

// Sync flushes the handle to stable storage.
func (h *FileHandle) Sync(ctx context.Context, succeed VoidSuccess, fail Fail) {
	if code := h.checkOpen(); code != 0 {
		fail(code)
		return
	}
	var code ErrorCode
	err := h.sub.pool.Submit(ctx, func() error {
		if syncErr := h.file.Sync(); syncErr != nil {
			code = fromOSError(syncErr)
			return syncErr
		}
		return nil
	})
	if err != nil {
		if code == 0 {
			code = ErrIOError
		}
		fail(code)
		return
	}
	succeed()
}

// Truncate resizes the handle to size, discarding any cached pages beyond
// it since their content is no longer valid.
func (h *FileHandle) Truncate(ctx context.Context, size int64, succeed VoidSuccess, fail Fail) {
	if code := h.checkOpen(); code != 0 {
		fail(code)
		return
	}
	var code ErrorCode
	err := h.sub.pool.Submit(ctx, func() error {
		if truncErr := h.file.Truncate(size); truncErr != nil {
			code = fromOSError(truncErr)
			return truncErr
		}
		return nil
	})
	if err != nil {
		if code == 0 {
			code = ErrIOError
		}
		fail(code)
		return
	}

	h.mu.Lock()
	var stale []BufferKey
	for k := range h.bufferKeys {
		if k.Start >= size {
			stale = append(stale, k)
			delete(h.bufferKeys, k)
		}
	}
	h.mu.Unlock()
	for _, k := range stale {
		h.sub.cache.Remove(k)
	}
	succeed()
}

// Move renames src to dst (spec §4.F "move(src, dst, replace)"). If
// replace is false and dst already exists, it fails with FileExists.
func (s *Subsystem) Move(ctx context.Context, src, dst string, replace bool) ErrorCode {
	var code ErrorCode
	err := s.pool.Submit(ctx, func() error {
		if !replace {
			if _, statErr := os.Stat(dst); statErr == nil {
				code = ErrFileExists
				return fmt.Errorf("ioasync: move: destination exists: %s", dst)
			}
		}
		if renameErr := os.Rename(src, dst); renameErr != nil {
			code = fromOSError(renameErr)
			return renameErr
		}
		return nil
	})
	if err != nil {
		if code == 0 {
			code = ErrIOError
		}
		return code
	}
	return 0
}

// Unlink removes path (spec §4.F "unlink(path, recursive, mustExist,
// followSymlinks)"). recursive permits removing a non-empty directory
// tree; mustExist turns a missing path into ErrNoFile rather than success.
func (s *Subsystem) Unlink(ctx context.Context, path string, recursive, mustExist bool) ErrorCode {
	var code ErrorCode
	err := s.pool.Submit(ctx, func() error {
		var rmErr error
		if recursive {
			if mustExist {
				if _, statErr := os.Lstat(path); statErr != nil {
					code = fromOSError(statErr)
					return statErr
				}
			}
			rmErr = os.RemoveAll(path)
		} else {
			rmErr = os.Remove(path)
		}
		if rmErr != nil {
			if isNotExist(rmErr) && !mustExist {
				return nil
			}
			code = fromOSError(rmErr)
			return rmErr
		}
		return nil
	})
	if err != nil {
		if code == 0 {
			code = ErrIOError
		}
		return code
	}
	return 0
}
