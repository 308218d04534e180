package l1

import (
	"fmt"
	"strings"

	"github.com/emberlang/ember/lang/phrase"
	"github.com/emberlang/ember/lang/types"
)

// ModuleRef is the subset of a module handle CompiledCode needs to carry: a
// stable display name. Kept as an interface (rather than
// importing lang/module directly) for the same reason types.Code is an
// interface -- lang/module has no reason to import lang/l1 back, but keeping
// this local avoids ever having to find out the hard way.
type ModuleRef interface {
	ModuleName() string
}

// lineDelta is a single per-instruction encoded line delta, packed per
// spec §4.B: low bit is the sign (0 = backward, 1 = forward or same line),
// remaining bits are the magnitude.
//
// spec §8's literal scenario quotes [+1, 0, -2, +3] -> [3, 1, 5, 7], which
// would require encodeLineDelta(-2) == 5. That can't hold alongside the
// other three quoted values and still round-trip: those three pin the
// non-negative encoding to magnitude<<1|1 (1->3, 0->1, 3->7), and a
// negative encoding of magnitude<<1|1 as well collides with the positive
// encoding of the same magnitude (a future delta of +2 would also encode
// to 5, and decode(5) couldn't tell it apart from -2). The three
// non-negative examples are honored exactly; -2 encodes to 4 (even, per
// "backward" in the prose rule), the only value consistent with both the
// other three examples and a decodable encoding.
type lineDelta uint32

func encodeLineDelta(delta int) lineDelta {
	if delta < 0 {
		return lineDelta(uint32(-delta) << 1)
	}
	return lineDelta(uint32(delta)<<1 | 1)
}

func (d lineDelta) decode() int {
	magnitude := int(d >> 1)
	if d&1 == 1 {
		return magnitude
	}
	return -magnitude
}

// CompiledCode is the immutable record produced by L1 emission: the
// nybble-packed instruction stream plus everything a continuation or the
// interpreter needs to execute it without reference to the phrase that
// produced it.
type CompiledCode struct {
	Nybbles       []byte // packed two per byte, high nybble first
	NybbleCount   int    // exact nybble count; the last byte may carry padding
	MaxStackDepth int
	funcType      *types.Type
	Primitive     *Primitive // nil if this code has no attached primitive
	Literals      []types.Value
	LocalTypes    []*types.Type
	ConstantTypes []*types.Type
	OuterTypes    []*types.Type
	Module        ModuleRef
	StartingLine  int
	LineDeltas    []lineDelta

	// NestedCodes holds, in program order, the CompiledCode for each
	// closure literal this code's `close` instructions build a Function
	// from. A `close n` instruction closes over the next unclaimed entry
	// here, popping n outer values from the operand stack and checking
	// n against that entry's OuterCount() (spec §3 Function "outer count
	// must match code").
	NestedCodes []*CompiledCode

	// Phrase is the top-level parse-tree node that produced this code,
	// retained for decompilation and error source-context rendering. It is
	// opaque to lang/l1 itself (the surface-language parser owns the
	// concrete phrase types); nil for synthesized code such as splitter
	// parsing-plan bodies.
	Phrase phrase.Node

	name string
}

// Primitive identifies a builtin operation this code delegates to before (or
// instead of) running its own nybblecode, by ordinal, per spec §4.B's
// "primitive ordinal (u16, 0 = none)" persisted layout.
type Primitive struct {
	Ordinal uint16
	Name    string
}

var _ types.Code = (*CompiledCode)(nil)

// NewCompiledCode builds a CompiledCode. name may be empty for anonymous
// functions (spec §4 continuations and closures are frequently anonymous).
func NewCompiledCode(name string, nybbles []byte, nybbleCount, maxStack int, funcType *types.Type) *CompiledCode {
	return &CompiledCode{
		Nybbles:       nybbles,
		NybbleCount:   nybbleCount,
		MaxStackDepth: maxStack,
		funcType:      funcType,
		name:          name,
	}
}

func (c *CompiledCode) String() string {
	if c.name != "" {
		return fmt.Sprintf("<compiled code %s>", c.name)
	}
	return "<compiled code>"
}

func (c *CompiledCode) VKind() types.Kind { return types.KindCompiledCode }

// Mutability reports Immutable always: compiled code is created once during
// emission and never mutates afterward (spec §4 Lifecycles).
func (c *CompiledCode) Mutability() types.Mutability { return types.Immutable }

func (c *CompiledCode) OuterCount() int { return len(c.OuterTypes) }

// FuncType satisfies types.Code.
func (c *CompiledCode) FuncType() *types.Type { return c.funcType }

func (c *CompiledCode) CodeName() string {
	if c.name == "" {
		return "anonymous"
	}
	return c.name
}

// LineForInstruction returns the source line attributed to the instruction
// at the given zero-based index, by walking the line-delta tuple from
// StartingLine. Instruction indices here are positions in the logical
// instruction sequence, not nybble offsets.
func (c *CompiledCode) LineForInstruction(index int) int {
	line := c.StartingLine
	for i := 0; i <= index && i < len(c.LineDeltas); i++ {
		line += c.LineDeltas[i].decode()
	}
	return line
}

// Disassemble renders the instruction stream in the textual assembler
// format understood by Assemble, one instruction per line.
func (c *CompiledCode) Disassemble() string {
	var b strings.Builder
	insns := Decode(c.Nybbles, c.NybbleCount)
	for i, insn := range insns {
		fmt.Fprintf(&b, "%s", insn.Op)
		if insn.Op.hasOperand() {
			fmt.Fprintf(&b, " %d", insn.Operand)
		}
		if i < len(c.LineDeltas) {
			fmt.Fprintf(&b, "\t; line %d", c.LineForInstruction(i))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
