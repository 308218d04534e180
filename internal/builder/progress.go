package builder

import "sync/atomic"

// PerModuleProgress is reported during compilation of one module (spec
// §6 "per_module(name, lineNumber: u64, position: u64, size: u64) called
// during compilation").
type PerModuleProgress func(moduleName string, lineNumber, positionBytes, moduleSizeBytes uint64)

// GlobalProgress is reported as the build advances across the whole plan
// (spec §6 "global(name, position: u64, totalSize: u64) called across the
// plan").
type GlobalProgress func(currentModule string, positionBytes, totalSizeBytes uint64)

// InterruptFlag is the shared cancellation signal spec §4.I describes:
// "Cancellation observes a shared interrupt flag inside the callbacks;
// either callback, when the flag is set, raises a cancellation condition".
// A caller's progress callback calls Set to request cancellation; the
// builder checks IsSet after every progress report and after every module
// resolution.
type InterruptFlag struct {
	set atomic.Bool
}

// Set requests cancellation.
func (f *InterruptFlag) Set() { f.set.Store(true) }

// IsSet reports whether cancellation has been requested.
func (f *InterruptFlag) IsSet() bool { return f.set.Load() }
