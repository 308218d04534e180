package builder

import (
	"bytes"
	"fmt"
	"io"
)

// contextBytes bounds how much source surrounds a CompilerError's location
// in the rendered message (spec §7 "source prefix ...message... source
// suffix (up to 100 bytes)").
const contextBytes = 100

// CompilerError is spec §4.I's compilation failure: "CompilerError
// (moduleName, endOfErrorLine, message)". It satisfies error so it can
// propagate through the builder's errgroup plumbing unwrapped.
type CompilerError struct {
	ModuleName     string
	EndOfErrorLine int
	Message        string

	// Source is the failing module's full source text, attached by the
	// builder (which is the one that read it) so an ErrorSink can render
	// context around the error without re-reading the module.
	Source []byte
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.ModuleName, e.EndOfErrorLine, e.Message)
}

// ErrorSink receives a rendered compile error for display (spec §4.I "the
// builder renders the source context around the error to a caller-supplied
// error sink").
type ErrorSink interface {
	RenderError(err *CompilerError)
}

// WriterErrorSink renders CompilerErrors to an io.Writer (typically
// stdio.Stderr), in the "source prefix …message… source suffix" shape of
// spec §7's user-visible behavior.
type WriterErrorSink struct {
	W io.Writer
}

func (s WriterErrorSink) RenderError(err *CompilerError) {
	prefix, suffix := sourceContext(err.Source, err.EndOfErrorLine)
	fmt.Fprintf(s.W, "%s:%d: %s%s%s\n", err.ModuleName, err.EndOfErrorLine, prefix, err.Message, suffix)
}

// sourceContext returns up to contextBytes of source immediately before and
// after the end of the given 1-based line number.
func sourceContext(source []byte, endOfErrorLine int) (prefix, suffix string) {
	if len(source) == 0 || endOfErrorLine < 1 {
		return "", ""
	}
	offset := 0
	line := 1
	for line < endOfErrorLine {
		idx := bytes.IndexByte(source[offset:], '\n')
		if idx < 0 {
			offset = len(source)
			break
		}
		offset += idx + 1
		line++
	}
	lineEnd := offset
	if idx := bytes.IndexByte(source[offset:], '\n'); idx >= 0 {
		lineEnd = offset + idx
	} else {
		lineEnd = len(source)
	}

	preStart := lineEnd - contextBytes
	if preStart < 0 {
		preStart = 0
	}
	sufEnd := lineEnd + contextBytes
	if sufEnd > len(source) {
		sufEnd = len(source)
	}
	return string(source[preStart:lineEnd]), string(source[lineEnd:sufEnd])
}
