// Package repository implements the indexed compiled-module repository each
// module root carries (spec §6 "Persisted layout"): per module hash, the
// serialized compiled-code tree (lang/l1's wire format) plus a manifest
// linking source byte ranges to L1 instruction spans. Only the
// open/read/write/close surface is part of the execution core's contract
// (spec §1); the on-disk layout here is this implementation's own.
package repository

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/emberlang/ember/lang/l1"
	"github.com/emberlang/ember/lang/module"
)

var magic = [8]byte{'E', 'M', 'B', 'R', 'R', 'E', 'P', '1'}

// Span links a source byte range to the L1 instruction span it compiled to,
// per spec §6 "a manifest linking source byte ranges to L1 instruction
// spans".
type Span struct {
	SourceStart, SourceEnd uint32
	InsnStart, InsnEnd     uint32
}

// Manifest is one module's ordered span list.
type Manifest []Span

type entry struct {
	name     string
	hash     uint64
	code     *l1.CompiledCode
	manifest Manifest
}

// Repository is an indexed compiled-module repository bound to one file.
// Entries live in memory between Open and Close; Close (or Flush) rewrites
// the file. It satisfies both module.Repository and the load/store side of
// internal/builder's RepositoryStore.
type Repository struct {
	path string

	mu      sync.Mutex
	entries map[string]*entry
	dirty   bool
	closed  bool
}

var _ module.Repository = (*Repository)(nil)

// Open reads the repository at path, creating an empty one if no file
// exists yet.
func Open(path string) (*Repository, error) {
	r := &Repository{path: path, entries: make(map[string]*entry)}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: opening %s: %w", path, err)
	}
	defer f.Close()

	if err := r.readAll(f); err != nil {
		return nil, fmt.Errorf("repository: reading %s: %w", path, err)
	}
	return r, nil
}

// Path satisfies module.Repository.
func (r *Repository) Path() string { return r.path }

// Load returns the compiled code stored under name, if present.
func (r *Repository) Load(name module.Name) (*l1.CompiledCode, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false, errors.New("repository: closed")
	}
	e, ok := r.entries[name.String()]
	if !ok {
		return nil, false, nil
	}
	return e.code, true, nil
}

// LoadManifest returns the manifest stored alongside name's code.
func (r *Repository) LoadManifest(name module.Name) (Manifest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name.String()]
	if !ok {
		return nil, false
	}
	return e.manifest, true
}

// Store records code under name with an empty manifest.
func (r *Repository) Store(name module.Name, code *l1.CompiledCode) error {
	return r.StoreWithManifest(name, code, nil)
}

// StoreWithManifest records code and its source-to-instruction manifest
// under name, replacing any prior entry.
func (r *Repository) StoreWithManifest(name module.Name, code *l1.CompiledCode, m Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("repository: closed")
	}

	// serialize eagerly so a non-persistable literal surfaces at Store time,
	// on the caller that produced it, not at Close
	if err := l1.WriteCode(io.Discard, code, newScalarPool()); err != nil {
		return fmt.Errorf("repository: %s: %w", name.String(), err)
	}

	canonical := name.String()
	r.entries[canonical] = &entry{
		name:     canonical,
		hash:     hashName(canonical),
		code:     code,
		manifest: m,
	}
	r.dirty = true
	return nil
}

// Remove drops name's entry, if present.
func (r *Repository) Remove(name module.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name.String()]; ok {
		delete(r.entries, name.String())
		r.dirty = true
	}
}

// Len returns the number of stored modules.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Flush rewrites the repository file if any entry changed since the last
// flush.
func (r *Repository) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

// Close flushes and marks the repository unusable.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	err := r.flushLocked()
	r.closed = true
	return err
}

func (r *Repository) flushLocked() error {
	if !r.dirty {
		return nil
	}
	tmp := r.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("repository: writing %s: %w", r.path, err)
	}
	if err := r.writeAll(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("repository: writing %s: %w", r.path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("repository: writing %s: %w", r.path, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("repository: writing %s: %w", r.path, err)
	}
	r.dirty = false
	return nil
}

func hashName(name string) uint64 {
	h := fnv.New64a()
	io.WriteString(h, name)
	return h.Sum64()
}

func (r *Repository) writeAll(w io.Writer) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	var b [8]byte
	binary.BigEndian.PutUint32(b[:4], uint32(len(r.entries)))
	if _, err := w.Write(b[:4]); err != nil {
		return err
	}

	// deterministic file contents: entries sorted by canonical name
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := r.entries[name]

		binary.BigEndian.PutUint64(b[:8], e.hash)
		if _, err := w.Write(b[:8]); err != nil {
			return err
		}
		if err := writeLenBytes(w, []byte(e.name)); err != nil {
			return err
		}

		pool := newScalarPool()
		var blob bytes.Buffer
		if err := l1.WriteCode(&blob, e.code, pool); err != nil {
			return err
		}
		if err := writeLenBytes(w, pool.valueBytes()); err != nil {
			return err
		}
		if err := writeLenBytes(w, pool.typeBytes()); err != nil {
			return err
		}
		if err := writeLenBytes(w, pool.moduleBytes()); err != nil {
			return err
		}
		if err := writeLenBytes(w, blob.Bytes()); err != nil {
			return err
		}

		if err := writeUvarint(w, uint64(len(e.manifest))); err != nil {
			return err
		}
		for _, s := range e.manifest {
			binary.BigEndian.PutUint32(b[:4], s.SourceStart)
			binary.BigEndian.PutUint32(b[4:8], s.SourceEnd)
			if _, err := w.Write(b[:8]); err != nil {
				return err
			}
			binary.BigEndian.PutUint32(b[:4], s.InsnStart)
			binary.BigEndian.PutUint32(b[4:8], s.InsnEnd)
			if _, err := w.Write(b[:8]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Repository) readAll(f io.Reader) error {
	var hdr [12]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return err
	}
	if [8]byte(hdr[:8]) != magic {
		return errors.New("bad magic")
	}
	count := int(binary.BigEndian.Uint32(hdr[8:12]))

	var b [16]byte
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(f, b[:8]); err != nil {
			return err
		}
		hash := binary.BigEndian.Uint64(b[:8])

		nameBytes, err := readLenBytes(f)
		if err != nil {
			return err
		}
		valuePool, err := readLenBytes(f)
		if err != nil {
			return err
		}
		typePool, err := readLenBytes(f)
		if err != nil {
			return err
		}
		modulePool, err := readLenBytes(f)
		if err != nil {
			return err
		}
		blob, err := readLenBytes(f)
		if err != nil {
			return err
		}

		pool, err := loadScalarPool(valuePool, typePool, modulePool)
		if err != nil {
			return fmt.Errorf("entry %s: %w", nameBytes, err)
		}
		code, err := l1.ReadCode(bytes.NewReader(blob), pool)
		if err != nil {
			return fmt.Errorf("entry %s: %w", nameBytes, err)
		}

		spanCount, err := readUvarint(f)
		if err != nil {
			return err
		}
		var manifest Manifest
		for j := uint64(0); j < spanCount; j++ {
			if _, err := io.ReadFull(f, b[:16]); err != nil {
				return err
			}
			manifest = append(manifest, Span{
				SourceStart: binary.BigEndian.Uint32(b[:4]),
				SourceEnd:   binary.BigEndian.Uint32(b[4:8]),
				InsnStart:   binary.BigEndian.Uint32(b[8:12]),
				InsnEnd:     binary.BigEndian.Uint32(b[12:16]),
			})
		}

		r.entries[string(nameBytes)] = &entry{
			name:     string(nameBytes),
			hash:     hash,
			code:     code,
			manifest: manifest,
		}
	}
	return nil
}

func writeLenBytes(w io.Writer, b []byte) error {
	if err := writeUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLenBytes(r io.Reader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func readUvarint(r io.Reader) (uint64, error) {
	return binary.ReadUvarint(oneByteReader{r})
}

type oneByteReader struct{ r io.Reader }

func (o oneByteReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(o.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
