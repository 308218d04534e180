package fiber

import "github.com/emberlang/ember/lang/types"

// Continuation is a reified call frame (spec §3 "Continuation"):
// function, program counter, stack pointer, the combined args+locals+stack
// slot array, a link to the caller's continuation, and -- once the L2
// translator has produced a chunk for this function's code -- the offset
// into that chunk execution should resume at. Continuations are
// first-class values and may escape via reflection, so they are allocated
// on the heap rather than reused from a pool.
type Continuation struct {
	Function *types.Function
	PC       uint32
	SP       int
	Slots    []types.Value // args, then locals, then operand stack
	Caller   *Continuation

	// ChunkOffset is meaningful only once this function's code has been
	// handed to the L2 translator (spec §4.D); -1 means "interpret L1
	// directly".
	ChunkOffset int

	// NestedCursor is the index into Function.Code's NestedCodes consumed
	// by the next `close` instruction. Persisted on the Continuation
	// (rather than kept as run-loop-local state) so a suspend and later
	// Resume mid-function don't replay closures already built.
	NestedCursor int
}

var _ types.Value = (*Continuation)(nil)

// NewContinuation allocates a Continuation for a call to fn, sized for
// numArgs arguments, numLocals locals and maxStack operand-stack slots
// (spec §4.B "MaxStackDepth... for later continuation sizing").
func NewContinuation(fn *types.Function, caller *Continuation, numArgs, numLocals, maxStack int) *Continuation {
	return &Continuation{
		Function:    fn,
		Slots:       make([]types.Value, numArgs+numLocals+maxStack),
		Caller:      caller,
		ChunkOffset: -1,
	}
}

func (c *Continuation) String() string { return "<continuation>" }
func (c *Continuation) VKind() types.Kind {
	return types.KindContinuation
}

// Continuations are always Shared: once reified they may be read from any
// fiber via reflection (spec §3 Lifecycles).
func (c *Continuation) Mutability() types.Mutability { return types.Shared }
