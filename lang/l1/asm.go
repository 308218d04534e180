package l1

import (
	"fmt"
	"strconv"
	"strings"
)

// Assemble parses the human-readable instruction listing produced by
// Disassemble (or hand-written in tests) back into an instruction
// sequence. Each line holds one opcode mnemonic, optionally followed by a
// decimal operand; blank lines and lines starting with ';' are ignored.
// This mirrors the line-oriented textual format of the teacher's own
// bytecode assembler, retargeted at the spec's opcode set.
func Assemble(src string) ([]Instruction, error) {
	var insns []Instruction
	for lineNo, rawLine := range strings.Split(src, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		op, ok := reverseOpcodeNames[fields[0]]
		if !ok {
			return nil, fmt.Errorf("l1 asm line %d: unknown opcode %q", lineNo+1, fields[0])
		}
		var operand uint32
		switch {
		case op.hasOperand() && len(fields) == 2:
			v, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("l1 asm line %d: bad operand for %s: %v", lineNo+1, fields[0], err)
			}
			operand = uint32(v)
		case op.hasOperand():
			return nil, fmt.Errorf("l1 asm line %d: %s requires an operand", lineNo+1, fields[0])
		case len(fields) > 1:
			return nil, fmt.Errorf("l1 asm line %d: %s takes no operand", lineNo+1, fields[0])
		}
		insns = append(insns, Instruction{Op: op, Operand: operand})
	}
	return insns, nil
}

// DisassembleInstructions renders a bare instruction sequence in the format
// Assemble accepts, without any of the line-number annotations
// CompiledCode.Disassemble adds.
func DisassembleInstructions(insns []Instruction) string {
	var b strings.Builder
	for _, insn := range insns {
		b.WriteString(insn.Op.String())
		if insn.Op.hasOperand() {
			fmt.Fprintf(&b, " %d", insn.Operand)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// AssembleCode is a test convenience: it assembles src exactly as written
// (the variable-usage optimizer is not reapplied, since hand-written
// assembly already chooses the clearing/last-access forms it wants to
// exercise), computes the resulting max stack depth, and returns a
// ready-to-use CompiledCode with empty type vectors (callers fill in
// whatever a given test needs).
func AssembleCode(name string, src string) (*CompiledCode, error) {
	insns, err := Assemble(src)
	if err != nil {
		return nil, err
	}
	depth, maxStack := 0, 0
	for _, insn := range insns {
		depth += stackDelta(insn.Op, insn.Operand)
		if depth < 0 {
			return nil, fmt.Errorf("l1 asm %s: stack underflow at %s", name, insn.Op)
		}
		if depth > maxStack {
			maxStack = depth
		}
	}
	nybbles, count := Encode(insns)
	code := NewCompiledCode(name, nybbles, count, maxStack, nil)
	return code, nil
}
