package l1

// Instruction is one decoded L1 instruction: an opcode plus its single
// nybble-encoded operand, if any (hasOperand reports which opcodes carry
// one). Operand carries the call/superCall bundle size (the callee plus
// its arguments), the close/
// makeTuple size, or the relevant literal/local/outer/label index.
type Instruction struct {
	Op      Opcode
	Operand uint32
}

// Encode packs a sequence of instructions into the nybble stream described
// in spec §4.B: basic opcodes (ordinal < 16) occupy a single nybble;
// extension opcodes are preceded by the extension nybble and a varint
// carrying ordinal-16. It returns the packed bytes (two nybbles per byte,
// high nybble first, last byte zero-padded when the count is odd) and the
// exact nybble count. The count is not recoverable from the packed bytes
// alone -- a padding nybble is indistinguishable from a one-nybble opcode --
// which is why the persisted record leads with it.
func Encode(insns []Instruction) ([]byte, int) {
	w := &nybbleWriter{}
	for _, insn := range insns {
		if insn.Op.isBasic() {
			w.writeNybble(byte(insn.Op))
		} else {
			w.writeNybble(byte(OpExtension))
			w.encodeVarint(uint32(insn.Op) - uint32(firstExtension))
		}
		if insn.Op.hasOperand() {
			w.encodeVarint(insn.Operand)
		}
	}
	return w.bytes, w.nybbleCount()
}

// Decode unpacks a nybble stream (as produced by Encode) back into its
// instruction sequence, reading exactly nybbleCount nybbles.
func Decode(packed []byte, nybbleCount int) []Instruction {
	r := &nybbleReader{bytes: packed, limit: nybbleCount}
	var insns []Instruction
	for !r.atEnd() {
		op := Opcode(r.readNybble())
		if op == OpExtension {
			selector := r.decodeVarint()
			op = Opcode(selector + uint32(firstExtension))
		}
		var operand uint32
		if op.hasOperand() {
			operand = r.decodeVarint()
		}
		insns = append(insns, Instruction{Op: op, Operand: operand})
	}
	return insns
}
