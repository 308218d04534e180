// Package l1 implements the nybble-packed, variable-width Level-One
// bytecode: CompiledCode, the instruction encoder/decoder, the stack-depth
// tracker, the variable-usage optimizer, and a human-readable assembler
// used for tests and debugging.
//
// Much of the package's shape (opcode enum + stack-effect table + textual
// assembler/disassembler) is adapted from the Starlark-derived
// lang/compiler package this runtime's teacher carried, retargeted at the
// spec's own nybble-packed instruction set instead of a byte-oriented stack
// machine.
package l1

import "fmt"

// Opcode identifies an L1 instruction. Ordinals 0..15 are encoded directly
// as a single nybble of the packed stream; ordinals >= 16 are encoded behind
// the Extension opcode, which occupies ordinal 15 and is followed by a
// nybble-packed (ordinal-16) value.
type Opcode uint8

const (
	OpCall Opcode = iota
	OpPushLiteral
	OpPushLastLocal
	OpPushLocal
	OpPushLastOuter
	OpClose // close n: pops n outer values, pushes a new Function
	OpSetLocal
	OpGetLocalClearing
	OpPushOuter
	OpPop
	OpGetOuterClearing
	OpSetOuter
	OpGetLocal
	OpMakeTuple // makeTuple n: pops n values, pushes a Tuple
	OpGetOuter

	OpExtension // ordinals >= 16 are carried behind this one

	// Extension opcodes (ordinal = 16 + the value after the extension nybble)
	OpPushLabel
	OpGetLiteral
	OpSetLiteral
	OpDuplicate
	OpSetSlot
	OpPermute
	OpSuperCall
)

const firstExtension = OpPushLabel

var opcodeNames = [...]string{
	OpCall:             "call",
	OpPushLiteral:      "pushLiteral",
	OpPushLastLocal:    "pushLastLocal",
	OpPushLocal:        "pushLocal",
	OpPushLastOuter:    "pushLastOuter",
	OpClose:            "close",
	OpSetLocal:         "setLocal",
	OpGetLocalClearing: "getLocalClearing",
	OpPushOuter:        "pushOuter",
	OpPop:              "pop",
	OpGetOuterClearing: "getOuterClearing",
	OpSetOuter:         "setOuter",
	OpGetLocal:         "getLocal",
	OpMakeTuple:        "makeTuple",
	OpGetOuter:         "getOuter",
	OpExtension:        "extension",
	OpPushLabel:        "pushLabel",
	OpGetLiteral:       "getLiteral",
	OpSetLiteral:       "setLiteral",
	OpDuplicate:        "duplicate",
	OpSetSlot:          "setSlot",
	OpPermute:          "permute",
	OpSuperCall:        "superCall",
}

var reverseOpcodeNames = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		if name != "" {
			m[name] = Opcode(op)
		}
	}
	return m
}()

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("illegal opcode (%d)", op)
}

// isBasic reports whether op is encoded directly (ordinal 0..14, i.e. below
// OpExtension) rather than behind the extension opcode.
func (op Opcode) isBasic() bool { return op < OpExtension }

// hasOperand reports whether op carries a single nybble-encoded immediate
// operand (an index, literal count, or similar). OpCall and OpSuperCall
// carry the bundle size (the callee plus its arguments); OpClose and
// OpMakeTuple carry n.
func (op Opcode) hasOperand() bool {
	switch op {
	case OpPop, OpDuplicate, OpPermute:
		return false
	default:
		return true
	}
}

// stackDelta returns the effect of op on the operand stack depth, given its
// immediate operand value where relevant (the call's bundle size, counting
// the callee, or the size of a close or makeTuple). This mirrors spec §4.B's stack-tracker
// rules exactly.
func stackDelta(op Opcode, operand uint32) int {
	switch op {
	case OpCall, OpSuperCall:
		return 1 - int(operand)
	case OpClose:
		return 1 - int(operand)
	case OpMakeTuple:
		return 1 - int(operand)
	case OpPermute:
		return 0
	case OpPop:
		return -1
	case OpSetLocal, OpSetOuter, OpSetLiteral, OpSetSlot:
		return -1
	case OpDuplicate:
		return +1
	default:
		// all remaining ops push exactly one value (literal/local/outer/label
		// reads) or are neutral for getLocalClearing/getOuterClearing which
		// exchange a slot's content for the stack top (net zero... except they
		// do push, clearing the slot, so +1 as with any other "get").
		return +1
	}
}
