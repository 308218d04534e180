package fiber

import (
	"fmt"

	"github.com/emberlang/ember/lang/l1"
	"github.com/emberlang/ember/lang/l2"
	"github.com/emberlang/ember/lang/types"
)

// Interpreter drives a single Fiber's L1 dispatch loop (spec §4.E). One
// Interpreter is created per fiber resumption by the scheduler's Step
// function; Primitives and Chunks are shared across all fibers via the
// owning Runtime.
type Interpreter struct {
	Fiber      *Fiber
	Primitives map[uint16]Primitive
	Chunks     map[*l1.CompiledCode]l2.Chunk
	decoded    map[*l1.CompiledCode][]l1.Instruction
}

// NewInterpreter builds an Interpreter sharing the given primitive table
// and L2 chunk cache (populated by whatever decides code is "hot" -- spec
// §2 Flow: "(E) runs L1 and may hand 'hot' code to (D) for translation").
func NewInterpreter(f *Fiber, primitives map[uint16]Primitive, chunks map[*l1.CompiledCode]l2.Chunk) *Interpreter {
	return &Interpreter{
		Fiber:      f,
		Primitives: primitives,
		Chunks:     chunks,
		decoded:    make(map[*l1.CompiledCode][]l1.Instruction),
	}
}

func (in *Interpreter) instructionsFor(code *l1.CompiledCode) []l1.Instruction {
	if insns, ok := in.decoded[code]; ok {
		return insns
	}
	insns := l1.Decode(code.Nybbles, code.NybbleCount)
	in.decoded[code] = insns
	return insns
}

// Call invokes fn with args as a fresh top-level Continuation and runs it
// to completion or suspension. It returns the fiber's terminal value once
// the call (and any nested calls it makes) finishes; if the call suspends
// (a primitive returns Suspended), Call returns a nil value and nil error,
// leaving the fiber Parked or Suspended for the scheduler to resume later.
func (in *Interpreter) Call(fn *types.Function, args []types.Value) (types.Value, error) {
	code, ok := fn.Code.(*l1.CompiledCode)
	if !ok {
		return nil, fmt.Errorf("fiber: function code is not *l1.CompiledCode: %T", fn.Code)
	}
	cont := NewContinuation(fn, in.Fiber.current, len(args), len(code.LocalTypes), code.MaxStackDepth)
	copy(cont.Slots, args)
	in.Fiber.current = cont
	return in.run(cont, code)
}

// run executes one Continuation's instruction stream from the start until
// it returns, suspends, or is interrupted at a safe point (spec §5 "every
// L1 safe-point check at back-edges and call boundaries").
func (in *Interpreter) run(cont *Continuation, code *l1.CompiledCode) (types.Value, error) {
	stackBase := len(cont.Slots) - code.MaxStackDepth
	return in.loop(cont, code, stackBase, stackBase)
}

// Resume continues a Continuation that previously suspended inside a call
// at cont.PC, feeding it the asynchronously-produced value as that call's
// result. cont.PC already points at the instruction after the suspended
// call (run/loop advances past it before suspending), so loop simply picks
// up from there; Resume only needs to restore the operand-stack depth the
// continuation had reached and push the supplied value in place of the
// call's result.
func (in *Interpreter) Resume(cont *Continuation, code *l1.CompiledCode, value types.Value) (types.Value, error) {
	in.Fiber.setSuspendingFunction("")
	stackBase := len(cont.Slots) - code.MaxStackDepth
	sp := stackBase + cont.SP
	cont.Slots[sp] = value
	sp++
	return in.loop(cont, code, stackBase, sp)
}

// loop runs the shared L1 dispatch loop starting at cont.PC with the given
// operand-stack pointer, used by both a fresh call (run) and a resumed one
// (Resume).
func (in *Interpreter) loop(cont *Continuation, code *l1.CompiledCode, stackBase, sp int) (types.Value, error) {
	insns := in.instructionsFor(code)
	nestedCursor := cont.NestedCursor

	push := func(v types.Value) { cont.Slots[sp] = v; sp++ }
	pop := func() types.Value {
		sp--
		v := cont.Slots[sp]
		cont.Slots[sp] = nil
		return v
	}

	for int(cont.PC) < len(insns) {
		if err := in.Fiber.CheckSafePoint(); err != nil {
			return nil, err
		}

		insn := insns[cont.PC]
		switch insn.Op {
		case l1.OpPushLiteral:
			push(code.Literals[insn.Operand])
		case l1.OpGetLiteral:
			push(code.Literals[insn.Operand])
		case l1.OpSetLiteral:
			code.Literals[insn.Operand] = pop()

		case l1.OpPushLocal, l1.OpPushLastLocal:
			idx := insn.Operand
			push(cont.Slots[idx])
			if insn.Op == l1.OpPushLastLocal {
				cont.Slots[idx] = types.NilValue
			}
		case l1.OpGetLocal, l1.OpGetLocalClearing:
			idx := insn.Operand
			push(cont.Slots[idx])
			if insn.Op == l1.OpGetLocalClearing {
				cont.Slots[idx] = types.NilValue
			}
		case l1.OpSetLocal:
			cont.Slots[insn.Operand] = pop()

		case l1.OpPushOuter, l1.OpPushLastOuter:
			idx := insn.Operand
			push(cont.Function.Outer[idx])
			if insn.Op == l1.OpPushLastOuter {
				cont.Function.Outer[idx] = types.NilValue
			}
		case l1.OpGetOuter, l1.OpGetOuterClearing:
			idx := insn.Operand
			push(cont.Function.Outer[idx])
			if insn.Op == l1.OpGetOuterClearing {
				cont.Function.Outer[idx] = types.NilValue
			}
		case l1.OpSetOuter:
			cont.Function.Outer[insn.Operand] = pop()

		case l1.OpSetSlot:
			cont.Slots[insn.Operand] = pop()
		case l1.OpPushLabel:
			push(types.Int(insn.Operand))
		case l1.OpDuplicate:
			push(cont.Slots[sp-1])
		case l1.OpPermute:
			a, b := pop(), pop()
			push(a)
			push(b)
		case l1.OpPop:
			pop()

		case l1.OpMakeTuple:
			n := int(insn.Operand)
			elems := make([]types.Value, n)
			for i := n - 1; i >= 0; i-- {
				elems[i] = pop()
			}
			push(types.NewTuple(elems))

		case l1.OpClose:
			n := int(insn.Operand)
			if nestedCursor >= len(code.NestedCodes) {
				return nil, fmt.Errorf("fiber: close at pc %d: no nested code available", cont.PC)
			}
			nested := code.NestedCodes[nestedCursor]
			nestedCursor++
			if nested.OuterCount() != n {
				return nil, fmt.Errorf("fiber: close at pc %d: outer count mismatch: code wants %d, instruction has %d", cont.PC, nested.OuterCount(), n)
			}
			outers := make([]types.Value, n)
			for i := n - 1; i >= 0; i-- {
				outers[i] = pop()
			}
			push(types.NewFunction(nested, outers))

		case l1.OpCall, l1.OpSuperCall:
			// The stack tracker's call/superCall delta is 1 - operand (spec
			// §4.B), which only balances against a push-callee-then-args
			// calling convention if operand counts the callee too: operand
			// values come off the stack, one value goes back on. So the
			// bottommost of those operand values (pushed first) is the
			// callee, and the rest are the arguments in order.
			bundle := int(insn.Operand)
			numArgs := bundle - 1
			args := make([]types.Value, numArgs)
			for i := numArgs - 1; i >= 0; i-- {
				args[i] = pop()
			}
			callee := pop()
			result, err := in.dispatch(cont, callee, args)
			if err != nil {
				return nil, err
			}
			if result.Kind == KindSuspended {
				// Advance past this call before suspending, so Resume's
				// restart point is the instruction after it rather than the
				// call itself: Resume supplies the eventual result in place
				// of what this call would have pushed, not a callee to
				// re-invoke.
				cont.PC++
				cont.SP = sp - stackBase
				cont.NestedCursor = nestedCursor
				return nil, nil
			}
			if result.Kind == KindFailure {
				push(failureValue(result.Error))
			} else {
				push(result.Value)
			}

		default:
			return nil, fmt.Errorf("fiber: unsupported L1 opcode %s", insn.Op)
		}

		cont.PC++
	}

	if sp == stackBase {
		return types.NilValue, nil
	}
	return pop(), nil
}

// failureValue wraps an ErrorCode as the single value of the interpreter's
// failure sentinel (spec §7 "a failure sentinel whose single value is the
// error code"): the calling function's failure variable is simply the next
// value on the stack, exactly like a success value, so the bytecode that
// consumes it decides what to do.
func failureValue(code ErrorCode) types.Value {
	return &types.Atom{Name: code.String()}
}

// dispatch calls callee with args. callee must be a *types.Function; any
// other value is an error. A function whose code names a primitive runs
// that primitive, one with a translated L2 chunk runs the chunk, and any
// other runs its L1 body through Call. The result always comes back in the
// primitive-style four-way form (spec §4.E "Primitive calling convention").
func (in *Interpreter) dispatch(cont *Continuation, callee types.Value, args []types.Value) (PrimitiveResult, error) {
	fn, ok := callee.(*types.Function)
	if !ok {
		return PrimitiveResult{}, fmt.Errorf("fiber: cannot call non-function value %s", callee.VKind())
	}

	code, ok := fn.Code.(*l1.CompiledCode)
	if !ok {
		return PrimitiveResult{}, fmt.Errorf("fiber: function code is not *l1.CompiledCode: %T", fn.Code)
	}

	if code.Primitive != nil {
		prim, ok := in.Primitives[code.Primitive.Ordinal]
		if !ok {
			return Failure(ErrNoMethodDefinition), nil
		}
		res := prim(in, args)
		if res.Kind == KindSuspended {
			in.Fiber.setSuspendingFunction(code.CodeName())
		}
		return res, nil
	}

	if chunk, ok := in.Chunks[code]; ok {
		frame := l2.NewFrame(len(args), 0, 0)
		copy(frame.Objects, args)
		frame.Call = func(callee types.Value, callArgs []types.Value) (types.Value, error) {
			calleeFn, ok := callee.(*types.Function)
			if !ok {
				return nil, fmt.Errorf("fiber: chunk cannot call non-function value %s", callee.VKind())
			}
			return in.Call(calleeFn, callArgs)
		}
		if err := chunk(frame); err != nil {
			return PrimitiveResult{}, err
		}
		if frame.Result != nil {
			return Success(frame.Result), nil
		}
		return Success(types.NilValue), nil
	}

	v, err := in.Call(fn, args)
	if err != nil {
		return PrimitiveResult{}, err
	}
	return Success(v), nil
}
