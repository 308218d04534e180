package ioasync

import "context"

// MaxWriteBufferSize is spec §4.F's MAX_WRITE_BUFFER_SIZE: the largest
// contiguous chunk a single Write call submits to the pool.
const MaxWriteBufferSize = 4 * 1024 * 1024

// Write implements spec §4.F's write path: data is split into chunks of at
// most MaxWriteBufferSize, each chunk (other than the last) shortened so it
// ends on an alignment boundary, and the chunks are written asynchronously
// but strictly in sequence. On success the buffer cache is updated page by
// page; on any chunk's failure the handle's entire cache is discarded and
// fail runs with ErrIOError.
func (h *FileHandle) Write(ctx context.Context, position int64, data []byte, succeed WriteSuccess, fail Fail) {
	if code := h.checkOpen(); code != 0 {
		fail(code)
		return
	}
	if !h.canWrite {
		fail(ErrNotOpenForWrite)
		return
	}
	if len(data) == 0 {
		succeed()
		return
	}

	alpha := h.alignment
	end := position + int64(len(data))

	for chunkStart := position; chunkStart < end; {
		chunkEnd := chunkStart + MaxWriteBufferSize
		if chunkEnd > end {
			chunkEnd = end
		} else if aligned := alignDown(chunkEnd, alpha); aligned > chunkStart {
			chunkEnd = aligned
		}
		chunk := data[chunkStart-position : chunkEnd-position]

		var code ErrorCode
		err := h.sub.pool.Submit(ctx, func() error {
			_, writeErr := h.writeAt(chunk, chunkStart)
			if writeErr != nil {
				code = fromOSError(writeErr)
				return writeErr
			}
			return nil
		})
		if err != nil {
			h.discardCache()
			if code == 0 {
				code = ErrIOError
			}
			fail(code)
			return
		}
		chunkStart = chunkEnd
	}

	h.updateCacheAfterWrite(position, data)
	succeed()
}

// discardCache drops every page this handle owns, per spec §4.F "On
// failure, the handle's entire cache is discarded".
func (h *FileHandle) discardCache() {
	h.mu.Lock()
	keys := make([]BufferKey, 0, len(h.bufferKeys))
	for k := range h.bufferKeys {
		keys = append(keys, k)
	}
	h.bufferKeys = make(map[BufferKey]struct{})
	h.mu.Unlock()
	for _, k := range keys {
		h.sub.cache.Remove(k)
	}
}

// updateCacheAfterWrite applies spec §4.F's cache-update rule for a
// successful write covering [position, position+len(data)): a page fully
// covered by the write gets its cached tuple replaced outright; a page only
// partially covered has the new bytes spliced into its existing cached
// tuple if one exists, and is otherwise left alone (an uncached partial page
// stays uncached rather than being seeded with incomplete data).
func (h *FileHandle) updateCacheAfterWrite(position int64, data []byte) {
	alpha := h.alignment
	end := position + int64(len(data))

	for pageStart := alignDown(position, alpha); pageStart < end; pageStart += alpha {
		pageEnd := pageStart + alpha
		key := BufferKey{Handle: h, Start: pageStart}

		if position <= pageStart && end >= pageEnd {
			page := make([]byte, alpha)
			copy(page, data[pageStart-position:pageEnd-position])
			h.setPage(key, page)
			continue
		}

		existing, ok := h.sub.cache.Poll(key)
		if !ok {
			continue
		}
		spliced := make([]byte, len(existing))
		copy(spliced, existing)

		loData, hiData := position, end
		if loData < pageStart {
			loData = pageStart
		}
		if hiData > pageEnd {
			hiData = pageEnd
		}
		srcLo := loData - position
		dstLo := loData - pageStart
		copy(spliced[dstLo:dstLo+(hiData-loData)], data[srcLo:srcLo+(hiData-loData)])
		h.setPage(key, spliced)
	}
}

func (h *FileHandle) setPage(key BufferKey, data []byte) {
	h.sub.cache.Remove(key)
	h.sub.cache.Get(key, func() ([]byte, error) { return data, nil })
	h.trackPage(key)
}
