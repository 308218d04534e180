package l1

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/types"
)

// memRefs is an in-memory RefWriter/RefReader pair: refs are indexes into
// per-kind pools, the way a real repository would intern them into its own
// object tables.
type memRefs struct {
	values  []types.Value
	typs    []*types.Type
	modules []ModuleRef
	prims   map[uint16]*Primitive
}

func (m *memRefs) ValueRef(v types.Value) (uint32, error) {
	m.values = append(m.values, v)
	return uint32(len(m.values)), nil
}

func (m *memRefs) TypeRef(t *types.Type) (uint32, error) {
	m.typs = append(m.typs, t)
	return uint32(len(m.typs)), nil
}

func (m *memRefs) ModuleRef(mod ModuleRef) (uint32, error) {
	m.modules = append(m.modules, mod)
	return uint32(len(m.modules)), nil
}

func (m *memRefs) ValueAt(ref uint32) (types.Value, error) {
	if ref == 0 || int(ref) > len(m.values) {
		return nil, fmt.Errorf("bad value ref %d", ref)
	}
	return m.values[ref-1], nil
}

func (m *memRefs) TypeAt(ref uint32) (*types.Type, error) {
	if ref == 0 || int(ref) > len(m.typs) {
		return nil, fmt.Errorf("bad type ref %d", ref)
	}
	return m.typs[ref-1], nil
}

func (m *memRefs) ModuleAt(ref uint32) (ModuleRef, error) {
	if ref == 0 || int(ref) > len(m.modules) {
		return nil, fmt.Errorf("bad module ref %d", ref)
	}
	return m.modules[ref-1], nil
}

func (m *memRefs) PrimitiveAt(ordinal uint16) (*Primitive, error) {
	p, ok := m.prims[ordinal]
	if !ok {
		return nil, fmt.Errorf("unknown primitive ordinal %d", ordinal)
	}
	return p, nil
}

type testModule string

func (m testModule) ModuleName() string { return string(m) }

func TestWireRoundTrip(t *testing.T) {
	w := NewWriter()
	w.Emit(OpPushLiteral, 0, 10)
	w.Emit(OpPushLiteral, 1, 10)
	w.Emit(OpMakeTuple, 2, 11)
	w.Emit(OpSetLocal, 0, 9) // backward line delta
	nybbles, count, maxStack, deltas := w.Finish(10)

	intType := types.PrimitiveType(types.KindInt)
	code := NewCompiledCode("pair", nybbles, count, maxStack, types.FunctionType(nil, false, intType))
	code.Literals = []types.Value{types.Int(1), types.Int(2)}
	code.LocalTypes = []*types.Type{intType}
	code.OuterTypes = []*types.Type{intType, types.Top}
	code.Module = testModule("/r/Pair")
	code.StartingLine = 10
	code.LineDeltas = deltas
	code.Primitive = &Primitive{Ordinal: 7, Name: "pairPrim"}

	nested := NewCompiledCode("inner", nil, 0, 0, nil)
	code.NestedCodes = []*CompiledCode{nested}

	refs := &memRefs{prims: map[uint16]*Primitive{7: {Ordinal: 7, Name: "pairPrim"}}}
	var buf bytes.Buffer
	require.NoError(t, WriteCode(&buf, code, refs))

	got, err := ReadCode(&buf, refs)
	require.NoError(t, err)

	require.Equal(t, code.NybbleCount, got.NybbleCount)
	require.Equal(t, code.Nybbles[:(count+1)/2], got.Nybbles)
	require.Equal(t, code.MaxStackDepth, got.MaxStackDepth)
	require.Equal(t, code.Literals, got.Literals)
	require.Equal(t, code.LocalTypes, got.LocalTypes)
	require.Equal(t, code.OuterTypes, got.OuterTypes)
	require.Equal(t, "/r/Pair", got.Module.ModuleName())
	require.Equal(t, code.StartingLine, got.StartingLine)
	require.Equal(t, code.LineDeltas, got.LineDeltas)
	require.Equal(t, "pair", got.CodeName())
	require.Equal(t, uint16(7), got.Primitive.Ordinal)
	require.Len(t, got.NestedCodes, 1)
	require.Equal(t, "inner", got.NestedCodes[0].CodeName())

	// the decoded instruction stream must match the original, padding nybble
	// and all
	require.Equal(t, Decode(code.Nybbles, count), Decode(got.Nybbles, got.NybbleCount))
}

func TestWireNoneRefs(t *testing.T) {
	// nil function type, no primitive, no module: all encode as 0/none and
	// decode back to nil without consulting the ref reader.
	code := NewCompiledCode("", nil, 0, 0, nil)
	refs := &memRefs{}
	var buf bytes.Buffer
	require.NoError(t, WriteCode(&buf, code, refs))

	got, err := ReadCode(&buf, refs)
	require.NoError(t, err)
	require.Nil(t, got.FuncType())
	require.Nil(t, got.Primitive)
	require.Nil(t, got.Module)
	require.Equal(t, "anonymous", got.CodeName())
}
