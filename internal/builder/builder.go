// Package builder implements spec §4.I: given a target module name, resolve
// its dependency closure, compile or load each not-yet-compiled module, and
// report per-module and aggregate progress to caller-supplied callbacks.
//
// Grounded on internal/maincmd/maincmd.go's command-dispatch shape (a small
// struct whose methods the CLI layer calls into) and on the pack's
// other_examples protocompile.Compiler: bounded-parallelism compilation
// gated by golang.org/x/sync/semaphore, with golang.org/x/sync/errgroup
// driving the recursive fan-out and golang.org/x/sync/singleflight (the same
// library internal/lru uses for race-deduplicated gets) deduping concurrent
// requests for the same module.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/emberlang/ember/lang/l1"
	"github.com/emberlang/ember/lang/module"
)

// Status is the builder's terminal state (spec §4.I "finalize with status").
type Status int

const (
	// StatusDone means every module in the closure compiled or loaded
	// successfully.
	StatusDone Status = iota
	// StatusCancelled means the shared interrupt flag was observed set;
	// per spec §7 "Builder cancellation is not an error".
	StatusCancelled
	// StatusAborted means a CompilerError stopped the build.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "Done"
	case StatusCancelled:
		return "Cancelled"
	case StatusAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Result is what Build returns: the final status, and (for StatusAborted)
// the error that caused it.
type Result struct {
	Status Status
	Err    error
}

// Builder orchestrates compile -> link -> install across a module's
// dependency closure.
type Builder struct {
	roots *module.RootSet
	src   SourceLoader
	store RepositoryStore
	comp  Compiler
	deps  DependencyLister

	sem   *semaphore.Weighted
	group singleflight.Group
	log   *slog.Logger

	mu       sync.Mutex
	compiled map[string]*l1.CompiledCode
}

// New builds a Builder. parallelism bounds how many modules may be
// compiled concurrently.
func New(roots *module.RootSet, src SourceLoader, store RepositoryStore, comp Compiler, deps DependencyLister, parallelism int, log *slog.Logger) *Builder {
	if parallelism < 1 {
		parallelism = 1
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Builder{
		roots:    roots,
		src:      src,
		store:    store,
		comp:     comp,
		deps:     deps,
		sem:      semaphore.NewWeighted(int64(parallelism)),
		log:      log,
		compiled: make(map[string]*l1.CompiledCode),
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Options configures one Build call.
type Options struct {
	PerModule PerModuleProgress
	Global    GlobalProgress
	Interrupt *InterruptFlag
	ErrorSink ErrorSink
}

// Build resolves target, walks its dependency closure, and compiles or
// loads every module in it, reporting progress through opts. It is
// synchronous: it does not return until the whole closure has settled into
// StatusDone, StatusCancelled, or StatusAborted (spec §6 "build
// <module-name> (synchronous)").
func (b *Builder) Build(ctx context.Context, target module.Name, opts Options) Result {
	if opts.Interrupt == nil {
		opts.Interrupt = new(InterruptFlag)
	}
	g, gctx := errgroup.WithContext(ctx)
	var globalPos, globalSize uint64
	var progMu sync.Mutex

	g.Go(func() error {
		return b.compileClosure(gctx, target, opts, &progMu, &globalPos, &globalSize)
	})

	err := g.Wait()
	switch {
	case opts.Interrupt.IsSet(), ctx.Err() != nil:
		return Result{Status: StatusCancelled}
	case err != nil:
		var cerr *CompilerError
		if isCompilerError(err, &cerr) {
			if opts.ErrorSink != nil {
				opts.ErrorSink.RenderError(cerr)
			}
			return Result{Status: StatusAborted, Err: cerr}
		}
		return Result{Status: StatusAborted, Err: err}
	default:
		return Result{Status: StatusDone}
	}
}

func isCompilerError(err error, out **CompilerError) bool {
	cerr, ok := err.(*CompilerError)
	if ok {
		*out = cerr
	}
	return ok
}

// compileClosure ensures name, and everything it depends on, is compiled or
// loaded exactly once, recursing over dependencies in parallel.
func (b *Builder) compileClosure(ctx context.Context, name module.Name, opts Options, progMu *sync.Mutex, globalPos, globalSize *uint64) error {
	canonical := name.String()

	_, err, _ := b.group.Do(canonical, func() (interface{}, error) {
		if opts.Interrupt.IsSet() {
			return nil, context.Canceled
		}

		code, err := b.resolveOne(ctx, name, opts, progMu, globalPos, globalSize)
		if err != nil {
			return nil, err
		}

		depNames, err := b.deps.Dependencies(code)
		if err != nil {
			return nil, fmt.Errorf("builder: listing dependencies of %s: %w", canonical, err)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, dep := range depNames {
			dep := dep
			g.Go(func() error {
				return b.compileClosure(gctx, dep, opts, progMu, globalPos, globalSize)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.compiled[canonical] = code
		b.mu.Unlock()
		return code, nil
	})
	return err
}

// resolveOne acquires a worker slot and either loads name from its root's
// repository or compiles it from source, reporting per-module and global
// progress as it goes.
func (b *Builder) resolveOne(ctx context.Context, name module.Name, opts Options, progMu *sync.Mutex, globalPos, globalSize *uint64) (*l1.CompiledCode, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)

	b.log.Debug("resolving module", "module", name.String())

	root, ok := b.roots.Lookup(name.RootName())
	if !ok {
		return nil, fmt.Errorf("builder: %s: no such module root %q", name.String(), name.RootName())
	}

	if code, found, err := b.store.Load(name); err != nil {
		return nil, fmt.Errorf("builder: %s: loading from repository: %w", name.String(), err)
	} else if found {
		b.log.Debug("loaded from repository", "module", name.String())
		return code, nil
	}

	if !root.HasSource() {
		return nil, fmt.Errorf("builder: %s: not in repository and root %q has no source directory", name.String(), root.Name)
	}

	source, size, ok, err := b.src.Load(name)
	if err != nil {
		return nil, fmt.Errorf("builder: %s: reading source: %w", name.String(), err)
	}
	if !ok {
		return nil, fmt.Errorf("builder: %s: source not found under root %q", name.String(), root.Name)
	}

	progMu.Lock()
	*globalSize += uint64(size)
	progMu.Unlock()

	perModule := func(lineNumber, position uint64) bool {
		if opts.PerModule != nil {
			opts.PerModule(name.String(), lineNumber, position, uint64(size))
		}
		if opts.Interrupt.IsSet() {
			return true
		}
		progMu.Lock()
		cur, total := *globalPos+position, *globalSize
		progMu.Unlock()
		if opts.Global != nil {
			opts.Global(name.String(), cur, total)
		}
		return false
	}

	code, cerr := b.comp.Compile(name, source, perModule)
	if opts.Interrupt.IsSet() {
		return nil, context.Canceled
	}
	if cerr != nil {
		cerr.Source = source
		return nil, cerr
	}

	progMu.Lock()
	*globalPos += uint64(size)
	progMu.Unlock()

	if err := b.store.Store(name, code); err != nil {
		return nil, fmt.Errorf("builder: %s: storing compiled code: %w", name.String(), err)
	}
	b.log.Info("compiled module", "module", name.String(), "bytes", size)
	return code, nil
}
