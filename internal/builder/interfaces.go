package builder

import (
	"github.com/emberlang/ember/lang/l1"
	"github.com/emberlang/ember/lang/module"
)

// SourceLoader reads a module's source text from whichever root owns it.
// Per spec §1's non-goal "a working surface parser/lexer for program text",
// this package never parses source itself; it only needs to hand the bytes
// to a caller-supplied Compiler.
type SourceLoader interface {
	// Load returns the module's source and its size in bytes. ok is false
	// if no source exists for name (distinct from an error: a module that
	// genuinely isn't backed by source, e.g. repository-only roots,
	// reports ok=false with a nil error).
	Load(name module.Name) (source []byte, size int64, ok bool, err error)
}

// RepositoryStore is the indexed compiled-module repository's open/read/
// write surface (spec §1 "persistence format of the indexed repository
// (only its open/read/write/close surface)").
type RepositoryStore interface {
	// Load returns a previously compiled module's code, if present.
	Load(name module.Name) (code *l1.CompiledCode, found bool, err error)
	// Store persists newly compiled code under name.
	Store(name module.Name, code *l1.CompiledCode) error
}

// ProgressFunc is invoked by a Compiler as it works through a module's
// source, reporting the source line and byte position reached so far
// (spec §4.I "per-module progress is reported as (moduleName, lineNumber,
// parsePositionBytes, moduleSizeBytes)" -- moduleName and moduleSizeBytes
// are supplied by the builder around this call, not by the compiler). The
// return value is the shared interrupt flag's current state: a
// well-behaved Compiler checks it and stops compiling as soon as it sees
// true, rather than running to completion (spec §4.I "either callback,
// when the flag is set, raises a cancellation condition that aborts the
// in-flight compile"). The builder checks the flag itself after Compile
// returns regardless, so cancellation is observed even if a particular
// Compiler implementation ignores the return value.
type ProgressFunc func(lineNumber, positionBytes uint64) (cancel bool)

// Compiler compiles one module's source into L1 code. The per-primitive
// leaf logic and the surface parser are out of scope (spec §1 non-goals);
// this interface is the seam a real compiler plugs into.
type Compiler interface {
	Compile(name module.Name, source []byte, progress ProgressFunc) (*l1.CompiledCode, *CompilerError)
}

// DependencyLister extracts the module names a compiled code's dependency
// closure must also resolve. What counts as a "dependency" of a compiled
// module (imports recorded in literals, in nested codes, or elsewhere) is a
// surface-language concern outside this package's scope; callers supply the
// extraction logic appropriate to their own compiled-code conventions.
type DependencyLister interface {
	Dependencies(code *l1.CompiledCode) ([]module.Name, error)
}
