package l2

import "sort"

// LiveRange is the inclusive instruction-index span during which a
// register holds a value that must not be clobbered.
type LiveRange struct {
	Register   *Register
	Start, End int
}

// ComputeLiveRanges scans each instruction's operand tuple and derives the
// live range of every register it mentions: a write opens (or extends) the
// register's range, a read extends it to the reading instruction. This is
// the pass the uniform Operand representation exists for -- it needs no
// knowledge of any opcode's named fields. Straight-line liveness only; a
// PC operand targeting an earlier index extends every range live at the
// target to the branch, since the loop body may re-read them.
func ComputeLiveRanges(insns []Instruction) []LiveRange {
	byRegister := make(map[*Register]*LiveRange)
	var ordered []*Register

	touch := func(r *Register, index int) {
		lr, ok := byRegister[r]
		if !ok {
			byRegister[r] = &LiveRange{Register: r, Start: index, End: index}
			ordered = append(ordered, r)
			return
		}
		if index > lr.End {
			lr.End = index
		}
	}

	for i, insn := range insns {
		for _, op := range insn.Operands {
			switch {
			case op.Register != nil && (op.Type.IsRead() || op.Type.IsWrite()):
				touch(op.Register, i)
			case op.Type == OperandPC && op.PCTarget <= i:
				for _, lr := range byRegister {
					if lr.Start <= op.PCTarget && lr.End >= op.PCTarget {
						touch(lr.Register, i)
					}
				}
			}
		}
	}

	out := make([]LiveRange, len(ordered))
	for i, r := range ordered {
		out[i] = *byRegister[r]
	}
	return out
}

// ColorRegisters assigns each register's FinalIndex, per spec §4.D's
// register-coloring contract: two registers may share a final index only
// if their live ranges don't overlap. This is a linear-scan allocator,
// run independently per register kind since object/int/float registers
// occupy disjoint slot spaces.
func ColorRegisters(ranges []LiveRange) {
	byKind := make(map[RegisterKind][]LiveRange)
	for _, r := range ranges {
		byKind[r.Register.Kind] = append(byKind[r.Register.Kind], r)
	}
	for _, kindRanges := range byKind {
		colorKind(kindRanges)
	}
}

func colorKind(ranges []LiveRange) {
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	var freeAt []int // freeAt[slot] = first instruction index at which slot is free again
	for _, lr := range ranges {
		assigned := -1
		for i, free := range freeAt {
			if free <= lr.Start {
				assigned = i
				break
			}
		}
		if assigned == -1 {
			assigned = len(freeAt)
			freeAt = append(freeAt, 0)
		}
		freeAt[assigned] = lr.End + 1
		lr.Register.FinalIndex = assigned
	}
}
