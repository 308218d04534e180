package ioasync

import "context"

// alignDown and alignUp translate spec §4.F's 1-indexed augmentedStart/
// augmentedEnd formulas ("augmentedStart = ((pos-1)/alpha)*alpha+1",
// "augmentedEnd = ((pos+size+alpha-2)/alpha)*alpha") to Go's 0-indexed
// byte offsets: align pos down to the containing page, and pos+size up to
// the next page boundary.
func alignDown(pos, alignment int64) int64 {
	return (pos / alignment) * alignment
}

func alignUp(pos, alignment int64) int64 {
	return ((pos + alignment - 1) / alignment) * alignment
}

// Read implements spec §4.F's read path: the request is widened to
// aligned page boundaries, the buffer cache is consulted for a contiguous
// hit run covering the whole widened range, and only the remaining
// (uncached) suffix is actually read from disk -- seeding the cache with
// every full page of that read before handing the exact requested byte
// range to succeed.
func (h *FileHandle) Read(ctx context.Context, position, size int64, succeed ReadSuccess, fail Fail) {
	if code := h.checkOpen(); code != 0 {
		fail(code)
		return
	}
	if !h.canRead {
		fail(ErrNotOpenForRead)
		return
	}
	if size <= 0 {
		succeed(nil)
		return
	}

	alpha := h.alignment
	augStart := alignDown(position, alpha)
	augEnd := alignUp(position+size, alpha)

	pages := make([][]byte, 0, (augEnd-augStart)/alpha)
	missStart := augEnd
	for p := augStart; p < augEnd; p += alpha {
		data, ok := h.sub.cache.Poll(BufferKey{Handle: h, Start: p})
		if !ok {
			missStart = p
			break
		}
		pages = append(pages, data)
	}

	if missStart == augEnd {
		// Every page in range hit: concatenate and slice synchronously.
		succeed(sliceWindow(pages, augStart, alpha, position, size))
		return
	}

	readLen := augEnd - missStart
	buf := make([]byte, readLen)
	var (
		n    int
		code ErrorCode
	)
	err := h.sub.pool.Submit(ctx, func() error {
		var readErr error
		n, readErr = h.readAt(buf, missStart)
		if readErr != nil {
			code = fromOSError(readErr)
			return readErr
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
	buf = buf[:n]

	// Seed the cache with every full aligned page this read returned; a
	// short final page (EOF before alpha bytes) is not cached, since it
	// does not represent a stable page (spec §4.F "not the trailing
	// partial page").
	for off := int64(0); off+alpha <= int64(len(buf)); off += alpha {
		page := make([]byte, alpha)
		copy(page, buf[off:off+alpha])
		key := BufferKey{Handle: h, Start: missStart + off}
		if _, getErr := h.sub.cache.Get(key, func() ([]byte, error) { return page, nil }); getErr != nil {
			fail(ErrIOError)
			return
		}
		h.trackPage(key)
	}

	pages = append(pages, buf)
	result := sliceWindow(pages, augStart, alpha, position, size)
	succeed(result)
}

// sliceWindow concatenates pages (each alignment bytes, except possibly
// the last which may be shorter at EOF) starting at augStart, then slices
// out the [position, position+size) window relative to augStart.
func sliceWindow(pages [][]byte, augStart, alpha, position, size int64) []byte {
	var all []byte
	for _, p := range pages {
		all = append(all, p...)
	}
	lo := position - augStart
	hi := lo + size
	if hi > int64(len(all)) {
		hi = int64(len(all))
	}
	if lo > int64(len(all)) {
		lo = int64(len(all))
	}
	out := make([]byte, hi-lo)
	copy(out, all[lo:hi])
	return out
}
