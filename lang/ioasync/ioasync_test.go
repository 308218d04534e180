package ioasync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSubsystem(t *testing.T) *Subsystem {
	t.Helper()
	return NewSubsystem(4, 16, 16, nil)
}

func openRW(t *testing.T, sub *Subsystem, path string, alignment int64) *FileHandle {
	t.Helper()
	h, code := sub.Open(context.Background(), path, true, true, alignment)
	require.Zero(t, code)
	return h
}

func TestOpenRejectsNonPowerOfTwoAlignment(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	_, code := sub.Open(context.Background(), filepath.Join(dir, "f"), true, true, 3)
	require.Equal(t, ErrInvalidPath, code)
}

func TestOpenMissingReadOnlyFails(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	_, code := sub.Open(context.Background(), filepath.Join(dir, "nope"), true, false, 4096)
	require.Equal(t, ErrNoFile, code)
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	h := openRW(t, sub, filepath.Join(dir, "f"), 4096)

	var wrote bool
	h.Write(context.Background(), 0, []byte("hello world"), func() { wrote = true }, func(code ErrorCode) {
		t.Fatalf("write failed: %s", code)
	})
	require.True(t, wrote)

	var got []byte
	h.Read(context.Background(), 0, 11, func(data []byte) { got = data }, func(code ErrorCode) {
		t.Fatalf("read failed: %s", code)
	})
	require.Equal(t, []byte("hello world"), got)
}

// Pins spec §8 scenario 7: write 10 bytes at offset 100 into a handle whose
// surrounding bytes are already on disk, then read a wider window and
// confirm it reflects both the untouched prior content and the write.
func TestAsyncWriteThenReadAcrossPageBoundary(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	initial := make([]byte, 4096)
	for i := range initial {
		initial[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, initial, 0o644))

	h := openRW(t, sub, path, 4096)

	written := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	h.Write(context.Background(), 100, written, func() {}, func(code ErrorCode) {
		t.Fatalf("write failed: %s", code)
	})

	var got []byte
	h.Read(context.Background(), 95, 20, func(data []byte) { got = data }, func(code ErrorCode) {
		t.Fatalf("read failed: %s", code)
	})

	want := append(append(append([]byte{}, initial[95:100]...), written...), initial[110:115]...)
	require.Equal(t, want, got)
}

func TestReadServesFromCacheWithoutRereadingDisk(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))

	h := openRW(t, sub, path, 4096)

	var first []byte
	h.Read(context.Background(), 0, 10, func(data []byte) { first = data }, func(code ErrorCode) {
		t.Fatalf("read failed: %s", code)
	})
	require.Len(t, first, 10)

	// Mutate the file on disk directly, bypassing the handle: a cache hit
	// must still return the originally-read bytes, since the handle has no
	// way to know about the out-of-band change.
	require.NoError(t, os.WriteFile(path, bytes4096('X'), 0o644))

	var second []byte
	h.Read(context.Background(), 0, 10, func(data []byte) { second = data }, func(code ErrorCode) {
		t.Fatalf("read failed: %s", code)
	})
	require.Equal(t, first, second)
}

func bytes4096(b byte) []byte {
	out := make([]byte, 4096)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestWriteFailureDiscardsHandleCache(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))

	h := openRW(t, sub, path, 4096)
	h.Read(context.Background(), 0, 10, func(data []byte) {}, func(code ErrorCode) {
		t.Fatalf("read failed: %s", code)
	})
	require.NotEmpty(t, h.bufferKeys)

	// Close the underlying file out from under the handle so the next
	// write fails at the OS level.
	require.NoError(t, h.file.Close())

	var failed ErrorCode
	h.Write(context.Background(), 0, []byte("x"), func() {
		t.Fatal("write should not succeed on a closed descriptor")
	}, func(code ErrorCode) { failed = code })

	require.Equal(t, ErrIOError, failed)
	require.Empty(t, h.bufferKeys)
}

func TestCloseDropsOwnedCachePages(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))

	h := openRW(t, sub, path, 4096)
	h.Read(context.Background(), 0, 10, func(data []byte) {}, func(code ErrorCode) {
		t.Fatalf("read failed: %s", code)
	})
	key := BufferKey{Handle: h, Start: 0}
	_, ok := sub.cache.Poll(key)
	require.True(t, ok)

	require.Zero(t, h.Close(context.Background()))
	_, ok = sub.cache.Poll(key)
	require.False(t, ok)
}

func TestOperationsOnClosedHandleFail(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	h := openRW(t, sub, filepath.Join(dir, "f"), 4096)
	require.Zero(t, h.Close(context.Background()))

	var failed ErrorCode
	h.Read(context.Background(), 0, 1, func([]byte) {}, func(code ErrorCode) { failed = code })
	require.Equal(t, ErrInvalidHandle, failed)
}

func TestReadOnlyHandleRejectsWrite(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	h, code := sub.Open(context.Background(), path, true, false, 4096)
	require.Zero(t, code)

	var failed ErrorCode
	h.Write(context.Background(), 0, []byte("x"), func() {}, func(c ErrorCode) { failed = c })
	require.Equal(t, ErrNotOpenForWrite, failed)
}

func TestTruncateDiscardsPagesBeyondNewSize(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, make([]byte, 8192), 0o644))

	h := openRW(t, sub, path, 4096)
	h.Read(context.Background(), 0, 10, func([]byte) {}, func(ErrorCode) {})
	h.Read(context.Background(), 4096, 10, func([]byte) {}, func(ErrorCode) {})
	require.Len(t, h.bufferKeys, 2)

	var ok bool
	h.Truncate(context.Background(), 4096, func() { ok = true }, func(ErrorCode) {})
	require.True(t, ok)
	require.Len(t, h.bufferKeys, 1)
	_, hit := sub.cache.Poll(BufferKey{Handle: h, Start: 4096})
	require.False(t, hit)
}

func TestMoveRespectsReplaceFlag(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("b"), 0o644))

	code := sub.Move(context.Background(), src, dst, false)
	require.Equal(t, ErrFileExists, code)

	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))
	code = sub.Move(context.Background(), src, dst, true)
	require.Zero(t, code)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), data)
}

func TestUnlinkToleratesMissingUnlessMustExist(t *testing.T) {
	sub := newTestSubsystem(t)
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing")

	require.Zero(t, sub.Unlink(context.Background(), missing, false, false))
	require.Equal(t, ErrNoFile, sub.Unlink(context.Background(), missing, false, true))
}
