package fiber

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/types"
)

func TestSchedulerRunsEnqueuedFiberToTermination(t *testing.T) {
	var ran int32
	step := func(_ context.Context, f *Fiber) error {
		atomic.AddInt32(&ran, 1)
		f.Terminate(Terminated, nil, nil)
		return nil
	}

	s := NewScheduler(2, step, nil)
	f := New(0, nil, nil, nil)
	s.Enqueue(f)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.EqualValues(t, 1, atomic.LoadInt32(&ran))
	require.Equal(t, Terminated, f.State())
}

func TestSchedulerOrdersByPriorityThenFIFO(t *testing.T) {
	var mu sync.Mutex
	var order []uint64

	step := func(_ context.Context, f *Fiber) error {
		mu.Lock()
		order = append(order, f.ID())
		mu.Unlock()
		f.Terminate(Terminated, nil, nil)
		return nil
	}

	s := NewScheduler(1, step, nil)
	low := New(1, nil, nil, nil)
	high := New(10, nil, nil, nil)
	mid := New(5, nil, nil, nil)

	s.Enqueue(low)
	s.Enqueue(high)
	s.Enqueue(mid)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.Equal(t, []uint64{high.ID(), mid.ID(), low.ID()}, order)
}

func TestSchedulerResumesASuspendedFiber(t *testing.T) {
	var calls int32
	step := func(_ context.Context, f *Fiber) error {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			f.mu.Lock()
			f.state = Suspended
			f.mu.Unlock()
			return nil
		}
		f.Terminate(Terminated, nil, nil)
		return nil
	}

	s := NewScheduler(1, step, nil)
	f := New(0, nil, nil, nil)
	s.Enqueue(f)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
	require.Equal(t, Terminated, f.State())
}

func TestSleepReentersSuspendedAndReschedules(t *testing.T) {
	var calls int32
	step := func(_ context.Context, f *Fiber) error {
		atomic.AddInt32(&calls, 1)
		f.Terminate(Terminated, nil, nil)
		return nil
	}
	s := NewScheduler(1, step, nil)
	f := New(0, nil, nil, nil)

	s.Sleep(f, 10*time.Millisecond)
	require.Equal(t, Asleep, f.State())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	require.Equal(t, Terminated, f.State())
}

func TestInterruptAfterFiresCancellation(t *testing.T) {
	f := New(0, nil, nil, nil)
	f.InterruptAfter(5 * time.Millisecond)
	require.Eventually(t, func() bool {
		return f.CheckSafePoint() != nil
	}, time.Second, time.Millisecond)
	require.Equal(t, Aborted, f.State())
}

func TestDelayedForkInheritsParentContext(t *testing.T) {
	step := func(_ context.Context, f *Fiber) error {
		f.Terminate(Terminated, nil, nil)
		return nil
	}
	s := NewScheduler(1, step, nil)

	loader := testLoader{"mod"}
	parent := New(3, loader, map[string]types.Value{"k": types.Int(1)}, "parent-text")

	var setupRan bool
	child := s.DelayedFork(parent, 0, 7, func(c *Fiber) {
		setupRan = true
		require.Equal(t, loader, c.LoaderOf())
	})

	require.True(t, setupRan)
	require.Equal(t, uint8(7), child.Priority())
	v, ok := child.HeritableGlobal("k")
	require.True(t, ok)
	require.Equal(t, types.Int(1), v)
	require.Equal(t, "parent-text", child.TextInterfaceHandle())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Run(ctx)
	require.Equal(t, Terminated, child.State())
}

type testLoader struct{ name string }

func (l testLoader) LoaderName() string { return l.name }
