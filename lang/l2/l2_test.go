package l2

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/types"
)

func TestRegisterColoringReusesNonOverlappingSlots(t *testing.T) {
	r1 := NewRegister(Int, 1, nil)
	r2 := NewRegister(Int, 2, nil)
	r3 := NewRegister(Int, 3, nil)

	ranges := []LiveRange{
		{Register: r1, Start: 0, End: 2},
		{Register: r2, Start: 3, End: 5}, // r1's range has ended: may reuse its slot
		{Register: r3, Start: 1, End: 4}, // overlaps both: needs a distinct slot
	}
	ColorRegisters(ranges)

	require.Equal(t, r1.FinalIndex, r2.FinalIndex, "non-overlapping ranges should share a slot")
	require.NotEqual(t, r1.FinalIndex, r3.FinalIndex, "overlapping ranges must not share a slot")
}

func TestSaturatingAddRangeCheck(t *testing.T) {
	sum, ok := saturatingAdd(10, 20)
	require.True(t, ok)
	require.Equal(t, int64(30), sum)

	_, ok = saturatingAdd(1<<31, 1)
	require.False(t, ok, "result outside i32 range must report failure")
}

func TestTranslateAddIntBranchesOnOverflow(t *testing.T) {
	augend := NewRegister(Int, 0, nil)
	augend.FinalIndex = 0
	sum := NewRegister(Int, 1, nil)
	sum.FinalIndex = 1

	insns := []Instruction{
		NewAddIntToIntConstant(augend, 5, sum, 2, 3),
		NewJump(10), // never reached: PC jumps past the program on success/failure
		NewReturn(sum),
		NewReturn(nil),
	}
	chunk := Translate(insns)

	f := NewFrame(0, 2, 0)
	f.Ints[0] = 100
	require.NoError(t, chunk(f))
	require.Equal(t, int64(105), f.Ints[1])
	require.Equal(t, types.Int(105), f.Result, "the success return selects the sum register")

	f2 := NewFrame(0, 2, 0)
	f2.Ints[0] = 1 << 31
	require.NoError(t, chunk(f2))
	// took the failure edge straight to the nil return, never wrote Sum
	require.Equal(t, int64(0), f2.Ints[1])
	require.Nil(t, f2.Result)
}

func TestTranslateCallInvokesThroughFrameHook(t *testing.T) {
	target := NewRegister(Object, 0, nil)
	target.FinalIndex = 0
	arg := NewRegister(Object, 1, nil)
	arg.FinalIndex = 1
	dest := NewRegister(Object, 2, nil)
	dest.FinalIndex = 2

	insns := []Instruction{
		NewCall(target, []*Register{arg}, dest),
		NewReturn(dest),
	}
	chunk := Translate(insns)

	callee := types.String("the-callee")
	f := NewFrame(3, 0, 0)
	f.Objects[0] = callee
	f.Objects[1] = types.Int(5)
	f.Call = func(c types.Value, args []types.Value) (types.Value, error) {
		require.Equal(t, callee, c)
		require.Equal(t, []types.Value{types.Int(5)}, args)
		return types.Int(6), nil
	}

	require.NoError(t, chunk(f))
	require.Equal(t, types.Int(6), f.Objects[2], "the call's result lands in its destination register")
	require.Equal(t, types.Int(6), f.Result)

	// a chunk executed with no Call hook must fail, not skip the call
	bare := NewFrame(3, 0, 0)
	bare.Objects[0] = callee
	require.Error(t, chunk(bare))
}

func TestAddIntSuccessEdgeCarriesPhiRestriction(t *testing.T) {
	augend := NewRegister(Int, 0, nil)
	sum := NewRegister(Int, 1, nil)
	insn := NewAddIntToIntConstant(augend, 1, sum, 2, 3)

	edge := insn.successEdge()
	require.NotNil(t, edge)
	require.Equal(t, PCSuccess, edge.PCPurpose)
	require.NotNil(t, edge.Restrict)
	require.True(t, types.IsSubtypeOf(edge.Restrict.Type, types.PrimitiveType(types.KindInt)))

	failure := insn.Operands[len(insn.Operands)-1]
	require.Equal(t, PCFailure, failure.PCPurpose)

	rs := NewRegisterSet()
	insn.propagateTypes(rs)
	require.True(t, types.IsSubtypeOf(rs.Get(sum).Type, types.PrimitiveType(types.KindInt)),
		"propagation applies the success edge's restriction to the sum")
}

func TestComputeLiveRangesFromOperands(t *testing.T) {
	a := NewRegister(Int, 0, nil)
	b := NewRegister(Int, 1, nil)
	c := NewRegister(Int, 2, nil)

	insns := []Instruction{
		NewAddIntToIntConstant(a, 1, b, 1, 3), // 0: reads a, writes b
		NewMove(c, b),                         // 1: reads b, writes c
		NewReturn(c),                          // 2: reads c
		NewReturn(nil),                        // 3
	}
	ranges := ComputeLiveRanges(insns)
	byOrdinal := map[int]LiveRange{}
	for _, lr := range ranges {
		byOrdinal[lr.Register.Ordinal] = lr
	}

	require.Equal(t, LiveRange{Register: a, Start: 0, End: 0}, byOrdinal[0])
	require.Equal(t, LiveRange{Register: b, Start: 0, End: 1}, byOrdinal[1])
	require.Equal(t, LiveRange{Register: c, Start: 1, End: 2}, byOrdinal[2])

	// feeding the derived ranges to the allocator: a and c never overlap,
	// so they may share a slot; b overlaps both at instruction boundaries
	// it is live across
	ColorRegisters(ranges)
	require.NotEqual(t, a.FinalIndex, b.FinalIndex)
	require.NotEqual(t, b.FinalIndex, c.FinalIndex)
}

func TestCreateFunctionPropagatesDeclaredType(t *testing.T) {
	funcType := types.FunctionType([]*types.Type{types.PrimitiveType(types.KindInt)}, false, types.PrimitiveType(types.KindString))
	dest := NewRegister(Object, 0, nil)
	insn := NewCreateFunction(funcType, nil, nil, dest)

	rs := NewRegisterSet()
	insn.propagateTypes(rs)
	require.True(t, types.TypeEquals(rs.Get(dest).Type, funcType))
}

func TestCreateFunctionFoldsToConstantWhenOutersKnown(t *testing.T) {
	intType := types.PrimitiveType(types.KindInt)
	funcType := types.FunctionType(nil, false, intType)
	code := stubCode{funcType: funcType}

	outer := NewRegister(Object, 1, nil)
	dest := NewRegister(Object, 2, nil)
	insn := NewCreateFunction(funcType, code, []*Register{outer}, dest)

	rs := NewRegisterSet()
	rs.Set(outer, ConstantRestriction(types.Int(7), intType))
	insn.propagateTypes(rs)

	folded := rs.Get(dest)
	require.NotNil(t, folded.Constant, "all-constant outers must fold to a constant function")
	fn, ok := folded.Constant.(*types.Function)
	require.True(t, ok)
	require.Equal(t, []types.Value{types.Int(7)}, fn.Outer)

	require.Same(t, outer, ExtractFunctionOuterRegister(&insn, 0))
	require.Nil(t, ExtractFunctionOuterRegister(&insn, 1))
}

type stubCode struct{ funcType *types.Type }

func (c stubCode) CodeName() string             { return "stub" }
func (c stubCode) FuncType() *types.Type        { return c.funcType }
func (c stubCode) OuterCount() int              { return 1 }
func (c stubCode) VKind() types.Kind            { return types.KindCompiledCode }
func (c stubCode) Mutability() types.Mutability { return types.Immutable }
func (c stubCode) String() string               { return "stub" }

func TestTypeRestrictionNarrowing(t *testing.T) {
	intType := types.PrimitiveType(types.KindInt)
	tr := NewTypeRestriction(intType)

	narrowed := tr.restrictedWithoutValue(types.Int(5))
	require.True(t, types.IsSubtypeOf(narrowed.Type, intType))

	// pinning to a value narrows to the singleton and records the constant
	pinned := tr.restrictedToValue(types.Int(3))
	require.Equal(t, types.Int(3), pinned.Constant)
	require.True(t, types.IsSubtypeOf(pinned.Type, intType))
	require.Equal(t, 1, types.InstanceCount(pinned.Type))

	// excluding a type that holds the known constant drops the constant
	// along with it
	known := ConstantRestriction(types.Int(3), intType)
	without := known.restrictedWithoutType(intType)
	require.Nil(t, without.Constant)

	// excluding an unrelated type leaves the constant in place
	kept := known.restrictedWithoutType(types.PrimitiveType(types.KindString))
	require.Equal(t, types.Int(3), kept.Constant)
}

func TestRestrictedToNormalizesStrandedConstant(t *testing.T) {
	intType := types.PrimitiveType(types.KindInt)
	strType := types.PrimitiveType(types.KindString)

	// a constant that no longer fits the narrowed type collapses the whole
	// restriction to (⊥, None), not (⊥, 5)
	tr := ConstantRestriction(types.Int(5), intType)
	narrowed := tr.restrictedTo(strType, nil)
	require.True(t, types.TypeEquals(narrowed.Type, types.Bottom))
	require.Nil(t, narrowed.Constant)

	// narrowing to a single-instance type fills the constant in
	singleton := types.EnumerationType(types.KindInt, []types.Value{types.Int(7)})
	filled := NewTypeRestriction(types.Top).restrictedTo(singleton, nil)
	require.Equal(t, types.Int(7), filled.Constant)
}

func TestRegisterSetCloneIsIndependent(t *testing.T) {
	r1 := NewRegister(Int, 3, nil)
	r2 := NewRegister(Int, 1, nil)

	rs := NewRegisterSet()
	rs.Set(r1, NewTypeRestriction(types.PrimitiveType(types.KindInt)))

	clone := rs.Clone()
	clone.Set(r2, NewTypeRestriction(types.PrimitiveType(types.KindString)))

	require.Equal(t, []int{3}, rs.Ordinals(), "cloning must not leak writes back into the source set")
	require.Equal(t, []int{1, 3}, clone.Ordinals(), "Ordinals must report in ascending order regardless of insertion order")
	require.Contains(t, clone.String(), "r1:")
	require.Contains(t, clone.String(), "r3:")
}
