package l2

import (
	"fmt"
	"strings"

	"github.com/emberlang/ember/lang/types"
)

// Opcode identifies an L2 instruction's operation, dispatched through a
// tagged union (per the object model's own "multiple inheritance of
// descriptor kinds" resolution in lang/types) rather than a Go interface
// per opcode: one Instruction struct, a Kind tag, and opcode-specific
// fields that only the relevant Kind populates.
type Opcode uint8

const (
	OpMove Opcode = iota
	OpJump
	OpCreateFunction
	OpAddIntToIntConstant
	OpCall
	OpReturn
)

func (op Opcode) String() string {
	switch op {
	case OpMove:
		return "L2_MOVE"
	case OpJump:
		return "L2_JUMP"
	case OpCreateFunction:
		return "L2_CREATE_FUNCTION"
	case OpAddIntToIntConstant:
		return "L2_ADD_INT_TO_INT_CONSTANT"
	case OpCall:
		return "L2_CALL"
	case OpReturn:
		return "L2_RETURN"
	default:
		return fmt.Sprintf("l2op(%d)", op)
	}
}

// Instruction is one L2 instruction: an opcode plus its operand tuple.
// Operands is the uniform representation every generic pass works from
// (liveness for register coloring, rendering, edge restrictions); the
// named fields are the same information shaped for each opcode's
// propagateTypes/ActionFor, so those don't re-parse the tuple on every
// step. The New* constructors populate both; code that builds an
// Instruction by struct literal gets no Operands and is invisible to the
// generic passes.
type Instruction struct {
	Op       Opcode
	Operands []Operand

	// OpMove / OpReturn (Src) / OpCall (Dest is the result register)
	Dest, Src *Register

	// OpJump
	Target int

	// OpCreateFunction
	Code     *types.Type // the function's declared type (funcType)
	CodeRef  types.Code  // the compiled code the closure is built from
	Outers   []*Register
	FuncDest *Register

	// OpAddIntToIntConstant
	Augend           *Register
	Constant         int64
	Sum              *Register
	Success, Failure int

	// OpCall
	CallTarget *Register
	Args       []*Register
}

// readOperand and writeOperand map a register's kind to the matching
// static operand type of spec §3's L2 instruction model.
func readOperand(r *Register) Operand {
	var t OperandType
	switch r.Kind {
	case Int:
		t = OperandReadInt
	case Float:
		t = OperandReadFloat
	default:
		t = OperandReadPointer
	}
	return Operand{Type: t, Register: r}
}

func writeOperand(r *Register) Operand {
	var t OperandType
	switch r.Kind {
	case Int:
		t = OperandWriteInt
	case Float:
		t = OperandWriteFloat
	default:
		t = OperandWritePointer
	}
	return Operand{Type: t, Register: r}
}

func pcOperand(target int, purpose PCPurpose, restrict *TypeRestriction) Operand {
	return Operand{Type: OperandPC, PCTarget: target, PCPurpose: purpose, Restrict: restrict}
}

// NewMove builds dest := src.
func NewMove(dest, src *Register) Instruction {
	return Instruction{
		Op:       OpMove,
		Dest:     dest,
		Src:      src,
		Operands: []Operand{readOperand(src), writeOperand(dest)},
	}
}

// NewJump builds an unconditional jump to target.
func NewJump(target int) Instruction {
	return Instruction{
		Op:       OpJump,
		Target:   target,
		Operands: []Operand{pcOperand(target, PCNeutral, nil)},
	}
}

// NewCreateFunction builds dest := closure(codeRef, outers...), declared as
// funcType. The declared type rides along as a CONSTANT operand (a Type is
// itself a Value).
func NewCreateFunction(funcType *types.Type, codeRef types.Code, outers []*Register, dest *Register) Instruction {
	operands := make([]Operand, 0, len(outers)+2)
	operands = append(operands, Operand{Type: OperandConstant, Constant: funcType})
	for _, outer := range outers {
		operands = append(operands, readOperand(outer))
	}
	operands = append(operands, writeOperand(dest))
	return Instruction{
		Op:       OpCreateFunction,
		Code:     funcType,
		CodeRef:  codeRef,
		Outers:   outers,
		FuncDest: dest,
		Operands: operands,
	}
}

// NewAddIntToIntConstant builds the saturating add of spec §4.D: sum :=
// augend + constant, branching to success with the narrow result written,
// or to failure on i32 overflow. The success edge's PC operand carries the
// sum read narrowed to the int type (a phi restriction: along that edge the
// sum is known to hold an in-range int, whatever the register's declared
// restriction says).
func NewAddIntToIntConstant(augend *Register, constant int64, sum *Register, success, failure int) Instruction {
	intType := types.PrimitiveType(types.KindInt)
	base := sum.Restrict
	if base == nil {
		base = NewTypeRestriction(types.Top)
	}
	return Instruction{
		Op:       OpAddIntToIntConstant,
		Augend:   augend,
		Constant: constant,
		Sum:      sum,
		Success:  success,
		Failure:  failure,
		Operands: []Operand{
			readOperand(augend),
			{Type: OperandIntImmediate, Constant: types.Int(constant)},
			writeOperand(sum),
			pcOperand(success, PCSuccess, base.restrictedTo(intType, nil)),
			pcOperand(failure, PCFailure, nil),
		},
	}
}

// NewCall builds dest := target(args...). The callee and every argument are
// object registers; invocation goes through the executing Frame's Call hook.
func NewCall(target *Register, args []*Register, dest *Register) Instruction {
	operands := make([]Operand, 0, len(args)+2)
	operands = append(operands, readOperand(target))
	for _, arg := range args {
		operands = append(operands, readOperand(arg))
	}
	operands = append(operands, writeOperand(dest))
	return Instruction{
		Op:         OpCall,
		CallTarget: target,
		Args:       args,
		Dest:       dest,
		Operands:   operands,
	}
}

// NewReturn builds a return of src's value (nil src returns nil).
func NewReturn(src *Register) Instruction {
	insn := Instruction{Op: OpReturn, Src: src}
	if src != nil {
		insn.Operands = []Operand{readOperand(src)}
	}
	return insn
}

// String renders the instruction from its operand tuple, one line per
// instruction in the disassembly listing.
func (insn *Instruction) String() string {
	var b strings.Builder
	b.WriteString(insn.Op.String())
	for _, op := range insn.Operands {
		b.WriteByte(' ')
		b.WriteString(op.String())
	}
	return b.String()
}

// propagateTypes updates rs with the statically-known effect of this
// instruction, per spec §4.D's type-propagation contract.
func (insn *Instruction) propagateTypes(rs *RegisterSet) {
	switch insn.Op {
	case OpMove:
		rs.Set(insn.Dest, rs.Get(insn.Src))
	case OpCreateFunction:
		if insn.FuncDest == nil {
			return
		}
		outerConstants := make([]types.Value, len(insn.Outers))
		allConstant := insn.CodeRef != nil
		for i, outer := range insn.Outers {
			c := rs.Get(outer).Constant
			if c == nil {
				allConstant = false
				break
			}
			outerConstants[i] = c
		}
		if allConstant {
			// Every captured outer is a known constant: the closure itself
			// folds to a constant function (spec §4.D "Type propagation").
			fn := types.NewFunction(insn.CodeRef, outerConstants)
			rs.Set(insn.FuncDest, ConstantRestriction(fn, insn.Code))
			return
		}
		rs.Set(insn.FuncDest, NewTypeRestriction(insn.Code))
	case OpAddIntToIntConstant:
		if insn.Sum == nil {
			return
		}
		// Along the success edge the sum register carries whatever phi
		// restriction the edge's PC operand recorded; the failure edge
		// writes nothing.
		if edge := insn.successEdge(); edge != nil && edge.Restrict != nil {
			rs.Set(insn.Sum, edge.Restrict)
			return
		}
		rs.Set(insn.Sum, NewTypeRestriction(types.PrimitiveType(types.KindInt)))
	}
}

// successEdge returns the PC operand tagged SUCCESS, if the instruction
// carries one.
func (insn *Instruction) successEdge() *Operand {
	for i := range insn.Operands {
		if insn.Operands[i].Type == OperandPC && insn.Operands[i].PCPurpose == PCSuccess {
			return &insn.Operands[i]
		}
	}
	return nil
}

// ExtractFunctionOuterRegister inspects a create-function instruction and,
// for a read of the created function's outer at outerIndex, returns the
// register that was captured into that outer -- letting callers cheaply
// rewrite "read the function's outer" as "read the captured register"
// (spec §4.D "Instruction hooks"). Returns nil if insn is not a
// create-function or the index is out of range.
func ExtractFunctionOuterRegister(insn *Instruction, outerIndex int) *Register {
	if insn.Op != OpCreateFunction || outerIndex < 0 || outerIndex >= len(insn.Outers) {
		return nil
	}
	return insn.Outers[outerIndex]
}

// saturatingAdd computes augend+addend in 64 bits and range-checks the
// result to the 32-bit signed range, reporting whether it fits -- the
// arithmetic half of L2_ADD_INT_TO_INT_CONSTANT's success/failure split.
func saturatingAdd(augend, addend int64) (sum int64, inRange bool) {
	sum = augend + addend
	return sum, sum >= -(1<<31) && sum < (1<<31)
}
