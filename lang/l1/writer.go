package l1

import "fmt"

// Writer incrementally builds an L1 instruction stream, tracking the
// operand-stack depth (spec §4.B's stack tracker) and the source line
// attributed to each instruction as it is appended.
type Writer struct {
	insns      []Instruction
	lines      []int
	stackDepth int
	maxStack   int
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Emit appends one instruction at the given source line, updating the
// running and maximum stack depth per op's stackDelta. It panics on stack
// underflow, which indicates a miscompiled instruction sequence rather than
// a condition a caller can recover from.
func (w *Writer) Emit(op Opcode, operand uint32, line int) {
	w.insns = append(w.insns, Instruction{Op: op, Operand: operand})
	w.lines = append(w.lines, line)
	w.stackDepth += stackDelta(op, operand)
	if w.stackDepth < 0 {
		panic(fmt.Sprintf("l1: stack underflow emitting %s at line %d", op, line))
	}
	if w.stackDepth > w.maxStack {
		w.maxStack = w.stackDepth
	}
}

// MaxStackDepth returns the highest stack depth observed so far.
func (w *Writer) MaxStackDepth() int { return w.maxStack }

// Len returns the number of instructions emitted so far.
func (w *Writer) Len() int { return len(w.insns) }

// Finish runs the variable-usage optimizer over the emitted instructions,
// encodes the per-instruction line-delta tuple relative to startingLine, and
// packs the (possibly rewritten) instruction stream into its nybble
// encoding. It returns the packed stream, its nybble count, the observed max
// stack depth, and the line-delta tuple, ready to populate a CompiledCode.
func (w *Writer) Finish(startingLine int) ([]byte, int, int, []lineDelta) {
	optimizeVariableUsage(w.insns)

	deltas := make([]lineDelta, len(w.lines))
	prev := startingLine
	for i, line := range w.lines {
		deltas[i] = encodeLineDelta(line - prev)
		prev = line
	}
	nybbles, count := Encode(w.insns)
	return nybbles, count, w.maxStack, deltas
}

// optimizeVariableUsage implements spec §4.B's variable-usage optimizer. A
// single backward pass is sufficient: the last occurrence of a get/push for
// a given local or outer slot, in program order, is exactly the occurrence
// whose "access note" the forward description in the spec would end up
// marking isLastAccess=true and canClear=true once every later access has
// been walked past -- every other occurrence of that slot necessarily has a
// later access downstream (the one found first walking backward), so it can
// never be marked final or safe to clear.
func optimizeVariableUsage(insns []Instruction) {
	localDone := make(map[uint32]bool)
	outerDone := make(map[uint32]bool)
	for i := len(insns) - 1; i >= 0; i-- {
		insn := &insns[i]
		switch insn.Op {
		case OpGetLocal, OpGetLocalClearing:
			if !localDone[insn.Operand] {
				insn.Op = OpGetLocalClearing
				localDone[insn.Operand] = true
			} else {
				insn.Op = OpGetLocal
			}
		case OpPushLocal, OpPushLastLocal:
			if !localDone[insn.Operand] {
				insn.Op = OpPushLastLocal
				localDone[insn.Operand] = true
			} else {
				insn.Op = OpPushLocal
			}
		case OpSetLocal:
			localDone[insn.Operand] = true
		case OpGetOuter, OpGetOuterClearing:
			if !outerDone[insn.Operand] {
				insn.Op = OpGetOuterClearing
				outerDone[insn.Operand] = true
			} else {
				insn.Op = OpGetOuter
			}
		case OpPushOuter, OpPushLastOuter:
			if !outerDone[insn.Operand] {
				insn.Op = OpPushLastOuter
				outerDone[insn.Operand] = true
			} else {
				insn.Op = OpPushOuter
			}
		case OpSetOuter:
			outerDone[insn.Operand] = true
		}
	}
}
