package l2

import (
	"fmt"

	"github.com/emberlang/ember/lang/types"
)

// OperandType is the static kind of one L2 instruction operand, per spec
// §3's "L2 instruction".
type OperandType uint8

const (
	OperandConstant OperandType = iota
	OperandIntImmediate
	OperandReadInt
	OperandWriteInt
	OperandReadFloat
	OperandWriteFloat
	OperandReadPointer
	OperandWritePointer
	OperandReadVector
	OperandWriteVector
	OperandPC
)

func (t OperandType) String() string {
	switch t {
	case OperandConstant:
		return "CONSTANT"
	case OperandIntImmediate:
		return "INT_IMMEDIATE"
	case OperandReadInt:
		return "READ_INT"
	case OperandWriteInt:
		return "WRITE_INT"
	case OperandReadFloat:
		return "READ_FLOAT"
	case OperandWriteFloat:
		return "WRITE_FLOAT"
	case OperandReadPointer:
		return "READ_POINTER"
	case OperandWritePointer:
		return "WRITE_POINTER"
	case OperandReadVector:
		return "READ_VECTOR"
	case OperandWriteVector:
		return "WRITE_VECTOR"
	case OperandPC:
		return "PC"
	default:
		return fmt.Sprintf("operand(%d)", t)
	}
}

// PCPurpose annotates a PC operand's role in control flow: a plain jump
// target, or the success/failure successor of a fallible operation such as
// L2_ADD_INT_TO_INT_CONSTANT.
type PCPurpose uint8

const (
	PCNeutral PCPurpose = iota
	PCSuccess
	PCFailure
)

func (p PCPurpose) String() string {
	switch p {
	case PCSuccess:
		return "SUCCESS"
	case PCFailure:
		return "FAILURE"
	default:
		return "neutral"
	}
}

// IsRead and IsWrite classify register operands for the generic passes
// (liveness scanning in register coloring reads nothing else).
func (t OperandType) IsRead() bool {
	switch t {
	case OperandReadInt, OperandReadFloat, OperandReadPointer, OperandReadVector:
		return true
	default:
		return false
	}
}

func (t OperandType) IsWrite() bool {
	switch t {
	case OperandWriteInt, OperandWriteFloat, OperandWritePointer, OperandWriteVector:
		return true
	default:
		return false
	}
}

// Operand is one operand slot of an L2 instruction: its static type, the
// register it reads or writes (nil for CONSTANT/INT_IMMEDIATE/PC), a
// constant payload (for CONSTANT/INT_IMMEDIATE), a read's TypeRestriction
// (if narrower than the register's own -- on a PC operand this is the phi
// restriction applied along that edge), a PC target block index (for PC
// operands), and that PC operand's purpose.
type Operand struct {
	Type      OperandType
	Register  *Register
	Constant  types.Value // nil unless Type is CONSTANT or INT_IMMEDIATE
	Restrict  *TypeRestriction
	PCTarget  int
	PCPurpose PCPurpose
}

func (o Operand) String() string {
	switch {
	case o.Type == OperandPC && o.PCPurpose != PCNeutral:
		return fmt.Sprintf("pc=%d(%s)", o.PCTarget, o.PCPurpose)
	case o.Type == OperandPC:
		return fmt.Sprintf("pc=%d", o.PCTarget)
	case o.Register != nil:
		return o.Register.String()
	case o.Constant != nil:
		return o.Constant.String()
	default:
		return o.Type.String()
	}
}
