package splitter

import "fmt"

// SignatureErrorCode identifies the class of malformed-message-name error a
// SignatureError carries.
type SignatureErrorCode int

const (
	MalformedNesting SignatureErrorCode = iota + 1
	DaggerOutsideGroup
	InconsistentReordering
	ArgumentTypeMismatch
)

func (c SignatureErrorCode) String() string {
	switch c {
	case MalformedNesting:
		return "malformed nesting"
	case DaggerOutsideGroup:
		return "dagger outside a group"
	case InconsistentReordering:
		return "explicit reordering inconsistent with group structure"
	case ArgumentTypeMismatch:
		return "argument type mismatch"
	default:
		return "unknown signature error"
	}
}

// SignatureError is reported at splitter construction time, never during
// parsing: a message name's grammar is either well-formed or it is rejected
// up front.
type SignatureError struct {
	Code    SignatureErrorCode
	Name    string
	Offset  int // rune offset into Name where the error was detected
	Message string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature error in %q at offset %d: %s: %s", e.Name, e.Offset, e.Code, e.Message)
}

func newSignatureError(name string, offset int, code SignatureErrorCode, format string, args ...interface{}) *SignatureError {
	return &SignatureError{Code: code, Name: name, Offset: offset, Message: fmt.Sprintf(format, args...)}
}
