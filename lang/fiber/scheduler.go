package fiber

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// runnable is one entry in the scheduler's priority+FIFO queue: a fiber
// ready to resume, ordered by priority (higher first) then by
// insertion-order sequence number (spec §4.E "Parallel worker threads pull
// runnable fibers ordered by priority, then by FIFO within a priority").
type runnable struct {
	fiber *Fiber
	seq   uint64
}

// runQueue is a container/heap priority queue over runnable fibers. No
// ecosystem priority-queue library appears anywhere in the retrieval pack,
// so this is the justified stdlib-only piece of the scheduler.
type runQueue []runnable

func (q runQueue) Len() int { return len(q) }
func (q runQueue) Less(i, j int) bool {
	if q[i].fiber.priority != q[j].fiber.priority {
		return q[i].fiber.priority > q[j].fiber.priority
	}
	return q[i].seq < q[j].seq
}
func (q runQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *runQueue) Push(x any)   { *q = append(*q, x.(runnable)) }
func (q *runQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Step runs one fiber until it suspends, parks, joins, or terminates. It
// is supplied by the interpreter (lang/fiber doesn't itself know how to
// execute L1); the scheduler only knows how to drive whatever Step
// returns.
type Step func(ctx context.Context, f *Fiber) error

// Scheduler is the cooperative, priority-ordered fiber scheduler (spec
// §4.E "Scheduling"). Workers are bounded by a weighted semaphore, the
// same mechanism the retrieval pack's compiler examples use to bound
// parallel compilation (kralicky-protocompile, bufbuild-protocompile).
type Scheduler struct {
	mu       sync.Mutex
	queue    runQueue
	nextSeq  uint64
	sem      *semaphore.Weighted
	step     Step
	log      *slog.Logger
	wg       sync.WaitGroup
	stopping bool
}

// NewScheduler builds a Scheduler with the given worker parallelism and
// step function. log may be nil, in which case logging is discarded.
func NewScheduler(parallelism int, step Step, log *slog.Logger) *Scheduler {
	if parallelism < 1 {
		parallelism = 1
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(discard{}, nil))
	}
	return &Scheduler{
		sem:  semaphore.NewWeighted(int64(parallelism)),
		step: step,
		log:  log,
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Enqueue marks f Suspended (if Unstarted or already Suspended) and adds
// it to the run queue.
func (s *Scheduler) Enqueue(f *Fiber) {
	f.mu.Lock()
	if f.state == Unstarted {
		f.state = Suspended
	}
	ready := f.state == Suspended
	f.mu.Unlock()
	if !ready {
		return
	}

	s.mu.Lock()
	s.nextSeq++
	heap.Push(&s.queue, runnable{fiber: f, seq: s.nextSeq})
	s.mu.Unlock()
}

// Run drains the run queue, dispatching each runnable fiber to a worker
// goroutine bounded by the scheduler's semaphore, until ctx is cancelled
// and no fiber remains in flight. Run blocks until that point.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.queue.Len() == 0 {
			s.mu.Unlock()
			if ctx.Err() != nil {
				break
			}
			// No work and not cancelled: give delayed forks a chance to land
			// in the queue, then re-check cancellation at the loop top.
			select {
			case <-ctx.Done():
			case <-time.After(time.Millisecond):
			}
			continue
		}
		item := heap.Pop(&s.queue).(runnable)
		s.mu.Unlock()

		if err := s.sem.Acquire(ctx, 1); err != nil {
			break
		}
		s.wg.Add(1)
		go func(f *Fiber) {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.runOne(ctx, f)
		}(item.fiber)
	}
	s.wg.Wait()
}

func (s *Scheduler) runOne(ctx context.Context, f *Fiber) {
	f.mu.Lock()
	f.state = Running
	f.mu.Unlock()

	s.log.Debug("fiber resumed", "fiber", f.ID(), "priority", f.Priority())
	if err := s.step(ctx, f); err != nil {
		s.log.Debug("fiber step error", "fiber", f.ID(), "error", err)
		return
	}

	f.mu.Lock()
	state := f.state
	f.mu.Unlock()
	if state == Suspended {
		s.Enqueue(f)
	}
}

// Sleep puts f into Asleep for d; when the timeout expires, the fiber
// re-enters Suspended and is scheduled again (spec §4.E's ASLEEP state).
func (s *Scheduler) Sleep(f *Fiber, d time.Duration) {
	f.mu.Lock()
	f.state = Asleep
	f.mu.Unlock()
	time.AfterFunc(d, func() {
		f.mu.Lock()
		woke := f.state == Asleep
		if woke {
			f.state = Suspended
		}
		f.mu.Unlock()
		if woke {
			s.Enqueue(f)
		}
	})
}

// DelayedFork creates a new fiber inheriting loader, heritable globals,
// and text interface from parent (spec §4.E "delayedFork(delayMs,
// function, argsTuple, priority)... shares the function and each
// argument"). setup installs the child's initial continuation (built from
// the shared function and argument tuple by the interpreter, which is the
// only thing that knows how to do so); it runs synchronously here, before
// the child is ever scheduled. A zero delay enqueues the child
// immediately; otherwise the fork is scheduled via a monotonic timer. The
// new fiber is returned synchronously, before it necessarily runs.
func (s *Scheduler) DelayedFork(parent *Fiber, delay time.Duration, priority uint8, setup func(*Fiber)) *Fiber {
	child := New(priority, parent.LoaderOf(), parent.HeritableSnapshot(), parent.TextInterfaceHandle())
	setup(child)

	if delay <= 0 {
		s.Enqueue(child)
		return child
	}
	time.AfterFunc(delay, func() { s.Enqueue(child) })
	return child
}
