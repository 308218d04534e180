package builder

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/l1"
	"github.com/emberlang/ember/lang/module"
	"github.com/emberlang/ember/lang/phrase"
)

// fakeSource maps a canonical module name to source text.
type fakeSource map[string]string

func (f fakeSource) Load(name module.Name) ([]byte, int64, bool, error) {
	src, ok := f[name.String()]
	if !ok {
		return nil, 0, false, nil
	}
	return []byte(src), int64(len(src)), true, nil
}

// memStore is an in-memory RepositoryStore.
type memStore struct {
	mu   sync.Mutex
	data map[string]*l1.CompiledCode
}

func newMemStore() *memStore { return &memStore{data: make(map[string]*l1.CompiledCode)} }

func (s *memStore) Load(name module.Name) (*l1.CompiledCode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.data[name.String()]
	return code, ok, nil
}

func (s *memStore) Store(name module.Name, code *l1.CompiledCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name.String()] = code
	return nil
}

// lineCompiler "compiles" source by treating each non-empty line as
// "dep <name>" (a dependency declaration) or plain text, calling progress
// once per line, and failing if a line is exactly "FAIL".
type lineCompiler struct{}

func (lineCompiler) Compile(name module.Name, source []byte, progress ProgressFunc) (*l1.CompiledCode, *CompilerError) {
	lines := strings.Split(string(source), "\n")
	pos := uint64(0)
	for i, line := range lines {
		pos += uint64(len(line)) + 1
		progress(uint64(i+1), pos)
		if line == "FAIL" {
			return nil, &CompilerError{ModuleName: name.String(), EndOfErrorLine: i + 1, Message: "boom"}
		}
	}
	code := l1.NewCompiledCode(name.String(), nil, 0, 0, nil)
	code.Phrase = phrase.Opaque(source)
	return code, nil
}

// lineDeps extracts "dep <name>" lines out of the code's stashed Phrase.
type lineDeps struct{}

func (lineDeps) Dependencies(code *l1.CompiledCode) ([]module.Name, error) {
	opaque, _ := code.Phrase.(phrase.Opaque)
	src := string(opaque)
	var deps []module.Name
	for _, line := range strings.Split(src, "\n") {
		rest, ok := strings.CutPrefix(line, "dep ")
		if !ok {
			continue
		}
		n, err := module.ParseName(rest)
		if err != nil {
			return nil, err
		}
		deps = append(deps, n)
	}
	return deps, nil
}

func newTestRoots(t *testing.T) *module.RootSet {
	t.Helper()
	set := module.NewRootSet()
	require.NoError(t, set.Add(module.Root{
		Name:      "r",
		Repo:      module.NewFSRepository("/repo"),
		SourceDir: "/src",
	}))
	return set
}

func mustName(t *testing.T, s string) module.Name {
	t.Helper()
	n, err := module.ParseName(s)
	require.NoError(t, err)
	return n
}

func TestBuildCompilesTargetAndItsDependencies(t *testing.T) {
	roots := newTestRoots(t)
	src := fakeSource{
		"/r/Main":   "dep /r/Helper\nhello",
		"/r/Helper": "world",
	}
	store := newMemStore()
	b := New(roots, src, store, lineCompiler{}, lineDeps{}, 4, nil)

	result := b.Build(context.Background(), mustName(t, "/r/Main"), Options{})
	require.Equal(t, StatusDone, result.Status)

	_, found, err := store.Load(mustName(t, "/r/Main"))
	require.NoError(t, err)
	require.True(t, found)
	_, found, err = store.Load(mustName(t, "/r/Helper"))
	require.NoError(t, err)
	require.True(t, found)
}

func TestBuildSkipsSourceWhenAlreadyInRepository(t *testing.T) {
	roots := newTestRoots(t)
	src := fakeSource{"/r/Main": "FAIL"} // would fail to compile if ever reached
	store := newMemStore()
	pre := l1.NewCompiledCode("/r/Main", nil, 0, 0, nil)
	require.NoError(t, store.Store(mustName(t, "/r/Main"), pre))

	b := New(roots, src, store, lineCompiler{}, lineDeps{}, 4, nil)
	result := b.Build(context.Background(), mustName(t, "/r/Main"), Options{})
	require.Equal(t, StatusDone, result.Status)
}

func TestBuildReportsCompilerErrorAndAborts(t *testing.T) {
	roots := newTestRoots(t)
	src := fakeSource{"/r/Main": "line one\nFAIL\nline three"}
	store := newMemStore()
	b := New(roots, src, store, lineCompiler{}, lineDeps{}, 4, nil)

	var rendered *CompilerError
	sink := sinkFunc(func(err *CompilerError) { rendered = err })

	result := b.Build(context.Background(), mustName(t, "/r/Main"), Options{ErrorSink: sink})
	require.Equal(t, StatusAborted, result.Status)
	require.NotNil(t, rendered)
	require.Equal(t, 2, rendered.EndOfErrorLine)
	require.Equal(t, "boom", rendered.Message)
}

func TestBuildStopsWhenInterruptFlagIsSetDuringProgress(t *testing.T) {
	roots := newTestRoots(t)
	src := fakeSource{"/r/Main": strings.Repeat("line\n", 10)}
	store := newMemStore()
	b := New(roots, src, store, lineCompiler{}, lineDeps{}, 1, nil)

	interrupt := new(InterruptFlag)
	calls := 0
	result := b.Build(context.Background(), mustName(t, "/r/Main"), Options{
		PerModule: func(moduleName string, lineNumber, position, size uint64) {
			calls++
			if calls == 2 {
				interrupt.Set()
			}
		},
		Interrupt: interrupt,
	})
	require.Equal(t, StatusCancelled, result.Status)
}

func TestBuildFailsWhenRootMissingSourceAndNotInRepository(t *testing.T) {
	roots := module.NewRootSet()
	require.NoError(t, roots.Add(module.Root{Name: "r", Repo: module.NewFSRepository("/repo")}))
	store := newMemStore()
	b := New(roots, fakeSource{}, store, lineCompiler{}, lineDeps{}, 2, nil)

	result := b.Build(context.Background(), mustName(t, "/r/Main"), Options{})
	require.Equal(t, StatusAborted, result.Status)
}

type sinkFunc func(*CompilerError)

func (f sinkFunc) RenderError(err *CompilerError) { f(err) }
