package ioasync

import "fmt"

// ErrorCode enumerates the subset of spec §7's abstract error kinds that
// async I/O operations can raise. Modeled as data (an argument handed to a
// `fail` function application, per §7 "Async I/O failures become a `fail`
// function application with the error code as its only argument"), not as
// Go error types -- mirrors lang/fiber.ErrorCode's same treatment of the
// same enumeration, kept as its own type here since this package has no
// reason to import lang/fiber.
type ErrorCode int

const (
	ErrInvalidPath ErrorCode = iota + 1
	ErrPermissionDenied
	ErrNoFile
	ErrFileExists
	ErrDirectoryNotEmpty
	ErrIOError
	ErrPartialSuccess
	ErrInvalidHandle
	ErrNotOpenForRead
	ErrNotOpenForWrite
	ErrOperationNotSupported
)

var errorCodeNames = map[ErrorCode]string{
	ErrInvalidPath:           "InvalidPath",
	ErrPermissionDenied:      "PermissionDenied",
	ErrNoFile:                "NoFile",
	ErrFileExists:            "FileExists",
	ErrDirectoryNotEmpty:     "DirectoryNotEmpty",
	ErrIOError:               "IoError",
	ErrPartialSuccess:        "PartialSuccess",
	ErrInvalidHandle:         "InvalidHandle",
	ErrNotOpenForRead:        "NotOpenForRead",
	ErrNotOpenForWrite:       "NotOpenForWrite",
	ErrOperationNotSupported: "OperationNotSupported",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// fromOSError classifies a stdlib os/io error into the nearest ErrorCode,
// for translating host filesystem errors at the handle boundary.
func fromOSError(err error) ErrorCode {
	switch {
	case err == nil:
		return 0
	case isNotExist(err):
		return ErrNoFile
	case isExist(err):
		return ErrFileExists
	case isPermission(err):
		return ErrPermissionDenied
	default:
		return ErrIOError
	}
}
