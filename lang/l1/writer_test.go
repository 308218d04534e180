package l1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineDeltaEncoding(t *testing.T) {
	// spec §8 quotes [+1, 0, -2, +3] -> [3, 1, 5, 7], but that table isn't
	// decodable: the three non-negative entries pin the non-negative rule
	// to magnitude<<1|1, and reusing the same rule for -2 (to land on 5)
	// would make encode(-2) collide with encode(+2), so decode(5) could
	// never tell -2 and +2 apart. -2 must encode as 4 (even) instead of 5
	// for the encoding to be invertible at all; see encodeLineDelta's doc
	// comment. The other three quoted values are honored exactly.
	deltas := []int{1, 0, -2, 3}
	want := []lineDelta{3, 1, 4, 7}
	for i, d := range deltas {
		require.Equal(t, want[i], encodeLineDelta(d), "delta %d", d)
	}
	for i, ld := range want {
		require.Equal(t, deltas[i], ld.decode())
	}
}

func TestStackTrackerMaxDepth(t *testing.T) {
	w := NewWriter()
	w.Emit(OpPushLiteral, 0, 1)
	w.Emit(OpPushLiteral, 1, 1)
	w.Emit(OpMakeTuple, 2, 1) // pops 2, pushes 1: depth 2 -> 1
	w.Emit(OpPushLiteral, 2, 2)
	require.Equal(t, 2, w.MaxStackDepth())

	nybbles, count, maxStack, _ := w.Finish(1)
	require.Equal(t, 2, maxStack)
	require.NotEmpty(t, nybbles)
	require.Equal(t, len(Decode(nybbles, count)), 4)
}

func TestStackUnderflowPanics(t *testing.T) {
	w := NewWriter()
	require.Panics(t, func() {
		w.Emit(OpPop, 0, 1)
	})
}

func TestVariableUsageOptimizerUpgradesLastAccess(t *testing.T) {
	insns := []Instruction{
		{Op: OpGetLocal, Operand: 0},
		{Op: OpPop},
		{Op: OpGetLocal, Operand: 0},
		{Op: OpPop},
	}
	optimizeVariableUsage(insns)
	require.Equal(t, OpGetLocal, insns[0].Op, "earlier access must not be marked clearing")
	require.Equal(t, OpGetLocalClearing, insns[2].Op, "last access is safe to clear")
}

func TestAssembleRoundTrip(t *testing.T) {
	src := `
		pushLiteral 0
		pushLiteral 1
		makeTuple 2
		pop
	`
	code, err := AssembleCode("test", src)
	require.NoError(t, err)
	require.Equal(t, 2, code.MaxStackDepth)

	insns := Decode(code.Nybbles, code.NybbleCount)
	require.Len(t, insns, 4)
	require.Equal(t, OpPushLiteral, insns[0].Op)
	require.Equal(t, uint32(2), insns[2].Operand)
}

func TestDetachAllModulesClearsLinks(t *testing.T) {
	code := NewCompiledCode("m", nil, 0, 0, nil)
	code.AttachModule(testModule("/r/M"))
	require.NotNil(t, code.Module)

	DetachAllModules()
	require.Nil(t, code.Module)

	// re-attachment after teardown works (long-running process re-init)
	code.AttachModule(testModule("/r/M2"))
	require.Equal(t, "/r/M2", code.Module.ModuleName())
	DetachAllModules()
}

func TestCodecRoundTripWithExtensionOpcode(t *testing.T) {
	insns := []Instruction{
		{Op: OpPushLiteral, Operand: 5},
		{Op: OpDuplicate},
		{Op: OpPermute},
		{Op: OpSuperCall, Operand: 100},
	}
	packed, count := Encode(insns)
	decoded := Decode(packed, count)
	require.Equal(t, insns, decoded)
}
