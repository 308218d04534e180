// Package fiber implements the interpreter and fiber scheduler (spec
// §4.E): the fiber state machine, a priority+FIFO scheduler over bounded
// worker threads, parking permits, join sets, delayed fork, heritable
// fiber-local state, and the primitive calling convention that drives the
// L1 interpreter loop.
//
// The interpreter dispatch loop is grounded on the teacher's
// lang/machine.run (a single blocking Thread.RunProgram call over one
// call stack): the same per-call locals+stack single-slice allocation and
// explicit pc-driven switch dispatch, generalized here to many
// cooperatively-suspending fibers rather than one blocking thread.
package fiber

import (
	"fmt"
	"sync"
	"time"

	"github.com/emberlang/ember/lang/types"
)

// State is one of the fiber lifecycle states (spec §4.E).
type State uint8

const (
	Unstarted State = iota
	Running
	Suspended
	Parked
	Asleep
	InterruptedState
	Terminated
	Aborted
	Retired
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Parked:
		return "parked"
	case Asleep:
		return "asleep"
	case InterruptedState:
		return "interrupted"
	case Terminated:
		return "terminated"
	case Aborted:
		return "aborted"
	case Retired:
		return "retired"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// IndicatesTermination reports whether s is one of the terminal states
// (spec §4.E "indicatesTermination() holds on the terminal set").
func (s State) IndicatesTermination() bool {
	switch s {
	case Terminated, Aborted, Retired:
		return true
	default:
		return false
	}
}

// Flag is a bit in a fiber's synchronization-flags bitset.
type Flag uint32

const (
	FlagPermitUnavailable Flag = 1 << iota
	FlagInterrupted
)

// TextInterface is the opaque handle to a fiber's attached I/O surface
// (spec §3 "a text-interface handle"); kept abstract since the surface
// I/O format is an out-of-scope collaborator.
type TextInterface interface{}

// Loader identifies the module loader that owns a fiber, if any (spec §3
// "an owning loader (or none)").
type Loader interface {
	LoaderName() string
}

// Fiber is a cooperative thread of execution scheduled by the runtime
// (spec §3 "Fiber"). Each fiber has its own lock (spec §4.E "Lock order");
// callers must never hold two fiber locks at once except joinee-then-
// joiner, released between.
type Fiber struct {
	mu sync.Mutex

	id       uint64
	priority uint8
	state    State
	flags    Flag

	globals       map[string]types.Value
	heritable     map[string]types.Value
	current       *Continuation
	joining       map[*Fiber]struct{}
	suspendingFn  string // name of the suspending primitive, if any
	textInterface TextInterface
	loader        Loader

	result    types.Value
	resultErr error

	// seq orders fibers FIFO within a priority for the scheduler's run
	// queue (spec §4.E "Scheduling").
	seq uint64
}

var fiberIDs uint64
var fiberIDMu sync.Mutex

func nextFiberID() uint64 {
	fiberIDMu.Lock()
	defer fiberIDMu.Unlock()
	fiberIDs++
	return fiberIDs
}

// New creates an Unstarted fiber at the given priority (0..255), owned by
// loader (nil if none), carrying a snapshot of heritable as its heritable
// fiber-globals (spec §3 Fiber, §5 "heritableFiberGlobals are snapshotted
// (shared) when forking").
func New(priority uint8, loader Loader, heritable map[string]types.Value, text TextInterface) *Fiber {
	snapshot := make(map[string]types.Value, len(heritable))
	for k, v := range heritable {
		snapshot[k] = v
	}
	return &Fiber{
		id:            nextFiberID(),
		priority:      priority,
		state:         Unstarted,
		flags:         0, // permit starts available (spec §4.E "Parking permits")
		globals:       make(map[string]types.Value),
		heritable:     snapshot,
		joining:       make(map[*Fiber]struct{}),
		textInterface: text,
		loader:        loader,
	}
}

// ID returns the fiber's stable identity, for scheduler bookkeeping and
// diagnostics.
func (f *Fiber) ID() uint64 { return f.id }

// Priority returns the fiber's scheduling priority.
func (f *Fiber) Priority() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.priority
}

// State returns the fiber's current lifecycle state.
func (f *Fiber) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// setState transitions the fiber's state. Must be called with f.mu held.
func (f *Fiber) setState(s State) { f.state = s }

// Global looks up a fiber-local global (not inherited by children).
func (f *Fiber) Global(key string) (types.Value, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.globals[key]
	return v, ok
}

// SetGlobal sets a fiber-local global.
func (f *Fiber) SetGlobal(key string, v types.Value) {
	f.mu.Lock()
	f.globals[key] = v
	f.mu.Unlock()
}

// HeritableGlobal looks up a heritable fiber-global, visible to this fiber
// and snapshotted into any fiber it forks.
func (f *Fiber) HeritableGlobal(key string) (types.Value, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.heritable[key]
	return v, ok
}

// SetHeritableGlobal sets a heritable fiber-global.
func (f *Fiber) SetHeritableGlobal(key string, v types.Value) {
	f.mu.Lock()
	f.heritable[key] = v
	f.mu.Unlock()
}

// HeritableSnapshot returns a copy of the fiber's heritable fiber-globals,
// for forking a child fiber (spec §5 "heritableFiberGlobals are
// snapshotted (shared) when forking a new fiber").
func (f *Fiber) HeritableSnapshot() map[string]types.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := make(map[string]types.Value, len(f.heritable))
	for k, v := range f.heritable {
		snapshot[k] = v
	}
	return snapshot
}

// SuspendingFunction returns the name of the suspending primitive the
// fiber is currently blocked in, or "" when it is not suspended in one.
func (f *Fiber) SuspendingFunction() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suspendingFn
}

func (f *Fiber) setSuspendingFunction(name string) {
	f.mu.Lock()
	f.suspendingFn = name
	f.mu.Unlock()
}

// TextInterfaceHandle returns the fiber's attached text-interface handle.
func (f *Fiber) TextInterfaceHandle() TextInterface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textInterface
}

// LoaderOf returns the fiber's owning loader, if any.
func (f *Fiber) LoaderOf() Loader {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loader
}

// Interrupt sets the INTERRUPTED flag (spec §4.E "Cancellation"); the
// fiber observes it at its next safe point and terminates Aborted.
func (f *Fiber) Interrupt() {
	f.mu.Lock()
	f.flags |= FlagInterrupted
	f.mu.Unlock()
}

// InterruptAfter schedules a timer-driven cancellation (spec §4.E "Timeouts
// are timer-scheduled cancellations"). The returned timer may be stopped to
// withdraw the timeout before it fires.
func (f *Fiber) InterruptAfter(d time.Duration) *time.Timer {
	return time.AfterFunc(d, f.Interrupt)
}

// interrupted reports whether the INTERRUPTED flag is set. Must be called
// with f.mu held, or tolerate a benign race (callers needing a safe-point
// check call this without holding the lock, which is fine: the flag only
// ever transitions false->true).
func (f *Fiber) interrupted() bool {
	return f.flags&FlagInterrupted != 0
}

// CheckSafePoint is invoked by the interpreter at L1 back-edges and call
// boundaries (spec §5 "Suspension points"). If the fiber has been
// interrupted, it transitions to Aborted and returns a non-nil error that
// unwinds the running call.
func (f *Fiber) CheckSafePoint() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.interrupted() {
		f.state = Aborted
		return errInterrupted
	}
	return nil
}

var errInterrupted = fmt.Errorf("fiber: interrupted at safe point")

// Result returns the fiber's terminal value and error, valid only once
// State().IndicatesTermination() is true.
func (f *Fiber) Result() (types.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.resultErr
}
