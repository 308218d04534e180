package fiber

import "github.com/emberlang/ember/lang/types"

// ResultKind tags which of the four primitive-result variants a
// PrimitiveResult carries (spec §4.E "Primitive calling convention").
type ResultKind uint8

const (
	KindSuccess ResultKind = iota
	KindFailure
	KindSuspended
	KindContinuationReplaced
)

// PrimitiveResult is the concrete tagged struct realizing the spec's
// four-way sum type returned by a primitive: SUCCESS(value),
// FAILURE(errorCode), SUSPENDED(newFiber), or CONTINUATION_REPLACED.
type PrimitiveResult struct {
	Kind        ResultKind
	Value       types.Value // valid when Kind == KindSuccess
	Error       ErrorCode   // valid when Kind == KindFailure
	NewFiber    *Fiber      // valid when Kind == KindSuspended
}

func Success(v types.Value) PrimitiveResult {
	return PrimitiveResult{Kind: KindSuccess, Value: v}
}

func Failure(code ErrorCode) PrimitiveResult {
	return PrimitiveResult{Kind: KindFailure, Error: code}
}

func SuspendedResult(newFiber *Fiber) PrimitiveResult {
	return PrimitiveResult{Kind: KindSuspended, NewFiber: newFiber}
}

func ContinuationReplaced() PrimitiveResult {
	return PrimitiveResult{Kind: KindContinuationReplaced}
}

// Primitive is the pure-function contract a primitive implements: given
// the running Interpreter and a fixed number of arguments, it produces
// one of the four PrimitiveResult variants. Per spec §1 Non-goals,
// per-primitive leaf logic itself is out of scope here -- only this
// contract and the interpreter's dispatch around it are.
type Primitive func(interp *Interpreter, args []types.Value) PrimitiveResult
