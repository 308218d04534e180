package fiber

import "fmt"

// ErrorCode enumerates the abstract error kinds of spec §7. These are
// modeled as data (a failure sentinel's single value), not as distinct Go
// error types, per §7's propagation policy: "Primitive failures never
// cross into host-level unwinding; they are returned as a failure
// sentinel whose single value is the error code."
type ErrorCode int

const (
	ErrInvalidPath ErrorCode = iota + 1
	ErrPermissionDenied
	ErrNoFile
	ErrFileExists
	ErrDirectoryNotEmpty
	ErrIOError
	ErrPartialSuccess
	ErrExceedsVMLimit
	ErrInvalidHandle
	ErrSpecialAtom
	ErrNotOpenForRead
	ErrNotOpenForWrite
	ErrFiberCannotJoinItself
	ErrIncorrectNumberOfArguments
	ErrIncorrectArgumentType
	ErrKeyNotFound
	ErrNoMethod
	ErrNoMethodDefinition
	ErrAmbiguousMethodDefinition
	ErrLoadingIsOver
	ErrCannotDefineDuringCompilation
	ErrAtomAlreadyExists
	ErrAmbiguousName
	ErrMalformedMessage
	ErrInconsistentArgumentReordering
	ErrIncorrectTypeForNumberedChoice
	ErrIncorrectTypeForBooleanGroup
	ErrBlockContainsInvalidStatements
	ErrInconsistentPrefixFunction
	ErrOperationNotSupported
)

var errorCodeNames = map[ErrorCode]string{
	ErrInvalidPath:                    "InvalidPath",
	ErrPermissionDenied:               "PermissionDenied",
	ErrNoFile:                         "NoFile",
	ErrFileExists:                     "FileExists",
	ErrDirectoryNotEmpty:              "DirectoryNotEmpty",
	ErrIOError:                        "IoError",
	ErrPartialSuccess:                 "PartialSuccess",
	ErrExceedsVMLimit:                 "ExceedsVmLimit",
	ErrInvalidHandle:                  "InvalidHandle",
	ErrSpecialAtom:                    "SpecialAtom",
	ErrNotOpenForRead:                 "NotOpenForRead",
	ErrNotOpenForWrite:                "NotOpenForWrite",
	ErrFiberCannotJoinItself:          "FiberCannotJoinItself",
	ErrIncorrectNumberOfArguments:     "IncorrectNumberOfArguments",
	ErrIncorrectArgumentType:          "IncorrectArgumentType",
	ErrKeyNotFound:                    "KeyNotFound",
	ErrNoMethod:                       "NoMethod",
	ErrNoMethodDefinition:             "NoMethodDefinition",
	ErrAmbiguousMethodDefinition:      "AmbiguousMethodDefinition",
	ErrLoadingIsOver:                  "LoadingIsOver",
	ErrCannotDefineDuringCompilation:  "CannotDefineDuringCompilation",
	ErrAtomAlreadyExists:              "AtomAlreadyExists",
	ErrAmbiguousName:                  "AmbiguousName",
	ErrMalformedMessage:               "MalformedMessage",
	ErrInconsistentArgumentReordering: "InconsistentArgumentReordering",
	ErrIncorrectTypeForNumberedChoice: "IncorrectTypeForNumberedChoice",
	ErrIncorrectTypeForBooleanGroup:   "IncorrectTypeForBooleanGroup",
	ErrBlockContainsInvalidStatements: "BlockContainsInvalidStatements",
	ErrInconsistentPrefixFunction:     "InconsistentPrefixFunction",
	ErrOperationNotSupported:          "OperationNotSupported",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}
