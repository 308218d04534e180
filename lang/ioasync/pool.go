package ioasync

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool is the bounded I/O worker pool of spec §4.F ("A bounded pool of
// worker threads drains a queue of file tasks"): blocking operations
// (sync, truncate, metadata queries, and every read/write chunk in this
// implementation, since Go's standard file API is itself blocking) run on
// the calling goroutine once a weighted semaphore grants a slot, the same bounding
// mechanism lang/fiber's scheduler uses for worker parallelism.
type Pool struct {
	sem *semaphore.Weighted
	log *slog.Logger
}

// NewPool builds a Pool allowing up to parallelism blocking tasks to run
// concurrently.
func NewPool(parallelism int, log *slog.Logger) *Pool {
	if parallelism < 1 {
		parallelism = 1
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Pool{sem: semaphore.NewWeighted(int64(parallelism)), log: log}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Submit runs task on the calling goroutine once a slot is available, blocking
// the caller until task completes (the caller is itself already a worker
// goroutine driving a suspended fiber's completion, not the interpreter's
// own dispatch loop, so blocking here is safe per spec §5 "Suspension
// points... async I/O"). Returns ctx.Err() if cancelled before a slot
// frees up.
func (p *Pool) Submit(ctx context.Context, task func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return task()
}

// SubmitAll runs tasks concurrently, each bounded by the pool's semaphore,
// and waits for all of them via errgroup. The write path does not use this:
// spec §4.F requires its chunks written "asynchronously in sequence", so it
// calls Submit once per chunk instead. SubmitAll is for genuinely
// parallelizable groups, such as a directory walk's per-entry stat calls.
func (p *Pool) SubmitAll(ctx context.Context, tasks ...func() error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			return p.Submit(gctx, task)
		})
	}
	return g.Wait()
}
