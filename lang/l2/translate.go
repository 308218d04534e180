package l2

import (
	"fmt"

	"github.com/emberlang/ember/lang/types"
)

// Frame is the minimal per-call register file a Chunk executes against,
// sized by register coloring: one slice per kind, indexed by a register's
// FinalIndex.
type Frame struct {
	Objects []types.Value
	Ints    []int64
	Floats  []float64
	PC      int

	// Call is how a chunk's L2_CALL instruction invokes a callable: the
	// interpreter that is running the chunk installs it, since only the
	// interpreter knows how to apply a Function (and reify a continuation
	// if the callee suspends). A chunk executed with no Call hook fails on
	// its first L2_CALL rather than silently skipping it.
	Call func(callee types.Value, args []types.Value) (types.Value, error)

	// Result is the value L2_RETURN selected; nil if the chunk fell off
	// the end or returned through a nil-source return.
	Result types.Value
}

func NewFrame(numObjects, numInts, numFloats int) *Frame {
	return &Frame{
		Objects: make([]types.Value, numObjects),
		Ints:    make([]int64, numInts),
		Floats:  make([]float64, numFloats),
	}
}

// Chunk is the opaque, host-callable result of lowering an L2 instruction
// list (spec §4.D). The design permits lowering to use a host JIT; since
// the host here is plain Go, lowering instead composes one closure per
// instruction into a small dispatch loop -- no unsafe, no code generation.
type Chunk func(f *Frame) error

// Action is a single lowered instruction: given a frame, it performs its
// effect and returns the index to resume at, or -1 to stop.
type Action func(f *Frame) (next int, err error)

// Translate lowers an L2 instruction list into a single composed Chunk.
func Translate(insns []Instruction) Chunk {
	steps := make([]Action, len(insns))
	for i, insn := range insns {
		steps[i] = ActionFor(insn, i)
	}
	return func(f *Frame) error {
		pc := f.PC
		for pc >= 0 && pc < len(steps) {
			next, err := steps[pc](f)
			if err != nil {
				return err
			}
			pc = next
		}
		f.PC = pc
		return nil
	}
}

// ActionFor returns the small callable implementing one instruction at the
// given index (spec §4.D "Instruction hooks: actionFor(instruction)").
func ActionFor(insn Instruction, index int) Action {
	switch insn.Op {
	case OpMove:
		dest, src := insn.Dest, insn.Src
		return func(f *Frame) (int, error) {
			switch dest.Kind {
			case Object:
				f.Objects[dest.FinalIndex] = f.Objects[src.FinalIndex]
			case Int:
				f.Ints[dest.FinalIndex] = f.Ints[src.FinalIndex]
			case Float:
				f.Floats[dest.FinalIndex] = f.Floats[src.FinalIndex]
			}
			return index + 1, nil
		}
	case OpJump:
		target := insn.Target
		return func(f *Frame) (int, error) { return target, nil }
	case OpAddIntToIntConstant:
		augend, sum, constant, success, failure := insn.Augend, insn.Sum, insn.Constant, insn.Success, insn.Failure
		return func(f *Frame) (int, error) {
			total, ok := saturatingAdd(f.Ints[augend.FinalIndex], constant)
			if !ok {
				return failure, nil
			}
			f.Ints[sum.FinalIndex] = total
			return success, nil
		}
	case OpCreateFunction:
		codeRef, outers, dest := insn.CodeRef, insn.Outers, insn.FuncDest
		return func(f *Frame) (int, error) {
			if codeRef == nil {
				return 0, fmt.Errorf("l2: create-function at %d has no code", index)
			}
			captured := make([]types.Value, len(outers))
			for i, outer := range outers {
				captured[i] = f.Objects[outer.FinalIndex]
			}
			if dest != nil {
				f.Objects[dest.FinalIndex] = types.NewFunction(codeRef, captured)
			}
			return index + 1, nil
		}
	case OpCall:
		target, argRegs, dest := insn.CallTarget, insn.Args, insn.Dest
		return func(f *Frame) (int, error) {
			if f.Call == nil {
				return 0, fmt.Errorf("l2: call at %d: frame has no Call hook", index)
			}
			args := make([]types.Value, len(argRegs))
			for i, arg := range argRegs {
				args[i] = f.Objects[arg.FinalIndex]
			}
			result, err := f.Call(f.Objects[target.FinalIndex], args)
			if err != nil {
				return 0, err
			}
			if dest != nil {
				f.Objects[dest.FinalIndex] = result
			}
			return index + 1, nil
		}
	case OpReturn:
		src := insn.Src
		return func(f *Frame) (int, error) {
			if src != nil {
				switch src.Kind {
				case Int:
					f.Result = types.Int(f.Ints[src.FinalIndex])
				case Float:
					f.Result = types.Float(f.Floats[src.FinalIndex])
				default:
					f.Result = f.Objects[src.FinalIndex]
				}
			}
			return -1, nil
		}
	default:
		return func(f *Frame) (int, error) {
			return 0, fmt.Errorf("l2: unsupported opcode %s in translated chunk", insn.Op)
		}
	}
}
