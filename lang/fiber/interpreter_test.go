package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/l1"
	"github.com/emberlang/ember/lang/l2"
	"github.com/emberlang/ember/lang/types"
)

func mustAssemble(t *testing.T, name, src string) *l1.CompiledCode {
	t.Helper()
	code, err := l1.AssembleCode(name, src)
	require.NoError(t, err)
	return code
}

func newTestInterpreter(f *Fiber, prims map[uint16]Primitive) *Interpreter {
	return NewInterpreter(f, prims, make(map[*l1.CompiledCode]l2.Chunk))
}

func TestInterpreterCallsSuccessfulPrimitive(t *testing.T) {
	primCode := l1.NewCompiledCode("answer", nil, 0, 0, nil)
	primCode.Primitive = &l1.Primitive{Ordinal: 1, Name: "answer"}
	primFn := types.NewFunction(primCode, nil)

	// Bundle of 1: just the callee, no arguments.
	top := mustAssemble(t, "top", `
pushLiteral 0
call 1
`)
	top.Literals = []types.Value{primFn}

	prims := map[uint16]Primitive{
		1: func(_ *Interpreter, args []types.Value) PrimitiveResult {
			require.Empty(t, args)
			return Success(types.Int(42))
		},
	}

	f := New(0, nil, nil, nil)
	interp := newTestInterpreter(f, prims)

	topFn := types.NewFunction(top, nil)
	v, err := interp.Call(topFn, nil)
	require.NoError(t, err)
	require.Equal(t, types.Int(42), v)
}

func TestInterpreterPrimitiveArguments(t *testing.T) {
	primCode := l1.NewCompiledCode("add", nil, 0, 0, nil)
	primCode.Primitive = &l1.Primitive{Ordinal: 2, Name: "add"}
	primFn := types.NewFunction(primCode, nil)

	// Bundle of 3: callee + 2 args (call's operand counts the callee).
	top := mustAssemble(t, "top", `
pushLiteral 0
pushLiteral 1
pushLiteral 2
call 3
`)
	top.Literals = []types.Value{primFn, types.Int(3), types.Int(4)}

	prims := map[uint16]Primitive{
		2: func(_ *Interpreter, args []types.Value) PrimitiveResult {
			require.Len(t, args, 2)
			a := args[0].(types.Int)
			b := args[1].(types.Int)
			return Success(a + b)
		},
	}

	f := New(0, nil, nil, nil)
	interp := newTestInterpreter(f, prims)
	topFn := types.NewFunction(top, nil)
	v, err := interp.Call(topFn, nil)
	require.NoError(t, err)
	require.Equal(t, types.Int(7), v)
}

func TestInterpreterPrimitiveFailurePushesSentinel(t *testing.T) {
	primCode := l1.NewCompiledCode("fails", nil, 0, 0, nil)
	primCode.Primitive = &l1.Primitive{Ordinal: 3, Name: "fails"}
	primFn := types.NewFunction(primCode, nil)

	top := mustAssemble(t, "top", `
pushLiteral 0
call 1
`)
	top.Literals = []types.Value{primFn}

	prims := map[uint16]Primitive{
		3: func(_ *Interpreter, args []types.Value) PrimitiveResult {
			return Failure(ErrKeyNotFound)
		},
	}

	f := New(0, nil, nil, nil)
	interp := newTestInterpreter(f, prims)
	topFn := types.NewFunction(top, nil)
	v, err := interp.Call(topFn, nil)
	require.NoError(t, err)
	atom, ok := v.(*types.Atom)
	require.True(t, ok, "a failed primitive call leaves a failure sentinel atom on the stack")
	require.Equal(t, ErrKeyNotFound.String(), atom.Name)
}

// TestInterpreterSuspendThenResume exercises the suspend/resume path: a
// primitive that suspends mid-call, followed by an out-of-band Resume
// supplying the asynchronously produced value, must leave the calling
// code's result exactly as if the call had returned it directly.
func TestInterpreterSuspendThenResume(t *testing.T) {
	primCode := l1.NewCompiledCode("asyncOp", nil, 0, 0, nil)
	primCode.Primitive = &l1.Primitive{Ordinal: 4, Name: "asyncOp"}
	primFn := types.NewFunction(primCode, nil)

	top := mustAssemble(t, "top", `
pushLiteral 0
call 1
`)
	top.Literals = []types.Value{primFn}

	prims := map[uint16]Primitive{
		4: func(_ *Interpreter, args []types.Value) PrimitiveResult {
			return SuspendedResult(nil)
		},
	}

	f := New(0, nil, nil, nil)
	interp := newTestInterpreter(f, prims)
	topFn := types.NewFunction(top, nil)

	v, err := interp.Call(topFn, nil)
	require.NoError(t, err)
	require.Nil(t, v, "a suspended call returns no value yet")

	cont := f.current
	require.NotNil(t, cont)
	require.Equal(t, uint32(2), cont.PC, "PC must already point past the suspended call")

	result, err := interp.Resume(cont, top, types.Int(42))
	require.NoError(t, err)
	require.Equal(t, types.Int(42), result)
}

func TestInterpreterCloseBuildsFunctionFromNestedCode(t *testing.T) {
	nested := l1.NewCompiledCode("inner", nil, 0, 0, nil)
	nested.OuterTypes = []*types.Type{nil}

	top := mustAssemble(t, "outer", `
pushLiteral 0
close 1
`)
	top.Literals = []types.Value{types.Int(11)}
	top.NestedCodes = []*l1.CompiledCode{nested}

	f := New(0, nil, nil, nil)
	interp := newTestInterpreter(f, nil)
	topFn := types.NewFunction(top, nil)

	v, err := interp.Call(topFn, nil)
	require.NoError(t, err)
	fn, ok := v.(*types.Function)
	require.True(t, ok)
	require.Equal(t, nested, fn.Code)
	require.Equal(t, []types.Value{types.Int(11)}, fn.Outer)
}

func TestInterpreterMakeTuple(t *testing.T) {
	top := mustAssemble(t, "tup", `
pushLiteral 0
pushLiteral 1
makeTuple 2
`)
	top.Literals = []types.Value{types.Int(1), types.Int(2)}

	f := New(0, nil, nil, nil)
	interp := newTestInterpreter(f, nil)
	topFn := types.NewFunction(top, nil)

	v, err := interp.Call(topFn, nil)
	require.NoError(t, err)
	tup, ok := v.(*types.Tuple)
	require.True(t, ok)
	require.Equal(t, 2, tup.Len())
	require.Equal(t, types.Int(1), tup.At(0))
	require.Equal(t, types.Int(2), tup.At(1))
}
