package maincmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mna/mainer"

	"github.com/emberlang/ember/internal/builder"
	"github.com/emberlang/ember/internal/repository"
	"github.com/emberlang/ember/lang/l1"
	"github.com/emberlang/ember/lang/module"
)

// Exit codes for the build commands, per the CLI contract: 0 success,
// 1 usage error, 2 compile failure, 3 I/O error, 130 cancelled.
const (
	exitUsage     = mainer.ExitCode(1)
	exitCompile   = mainer.ExitCode(2)
	exitIO        = mainer.ExitCode(3)
	exitCancelled = mainer.ExitCode(130)
)

// sourceExt is the extension of compilable module sources under a root's
// source directory. Sources are textual L1 assembly (lang/l1's assembler
// format): the surface-language compiler is an out-of-scope collaborator,
// and the assembler is the execution core's own compiler seam.
const sourceExt = ".l1s"

type cmdError struct {
	code mainer.ExitCode
	err  error
}

func (e cmdError) Error() string             { return e.err.Error() }
func (e cmdError) ExitCode() mainer.ExitCode { return e.code }
func (e cmdError) Unwrap() error             { return e.err }

func usageErr(format string, args ...interface{}) error {
	return cmdError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func ioErr(err error) error {
	return cmdError{code: exitIO, err: err}
}

// elapsed formats a duration as "s.mss" for the terminal status line
// ("Done (1.234)", "Cancelled (0.052)", "Aborted (2.001)").
func elapsed(since time.Time) string {
	d := time.Since(since)
	return fmt.Sprintf("%d.%03d", d/time.Second, (d%time.Second)/time.Millisecond)
}

// buildEnv is the per-command wiring of the runtime config, the parsed
// module roots, and each root's opened repository.
type buildEnv struct {
	cfg    RuntimeConfig
	roots  *module.RootSet
	stores *rootStores
}

func openBuildEnv() (*buildEnv, error) {
	cfg, err := LoadRuntimeConfig()
	if err != nil {
		return nil, usageErr("%s", err)
	}
	if strings.TrimSpace(cfg.ModuleRoots) == "" {
		return nil, usageErr("MODULE_ROOTS is not set")
	}
	roots, err := module.ParsePath(cfg.ModuleRoots)
	if err != nil {
		return nil, usageErr("%s", err)
	}
	stores, err := openStores(roots)
	if err != nil {
		return nil, ioErr(err)
	}
	return &buildEnv{cfg: cfg, roots: roots, stores: stores}, nil
}

func (e *buildEnv) close() error {
	if err := e.stores.Close(); err != nil {
		return ioErr(err)
	}
	return nil
}

// rootStores opens one repository per configured root and dispatches the
// builder's load/store calls by the module's root name.
type rootStores struct {
	repos map[string]*repository.Repository
}

func openStores(roots *module.RootSet) (*rootStores, error) {
	s := &rootStores{repos: make(map[string]*repository.Repository)}
	for _, root := range roots.Roots() {
		repo, err := repository.Open(root.Repo.Path())
		if err != nil {
			s.Close()
			return nil, err
		}
		s.repos[root.Name] = repo
	}
	return s, nil
}

func (s *rootStores) repoFor(name module.Name) (*repository.Repository, error) {
	repo, ok := s.repos[name.RootName()]
	if !ok {
		return nil, fmt.Errorf("no repository for module root %q", name.RootName())
	}
	return repo, nil
}

func (s *rootStores) Load(name module.Name) (*l1.CompiledCode, bool, error) {
	repo, err := s.repoFor(name)
	if err != nil {
		return nil, false, err
	}
	return repo.Load(name)
}

func (s *rootStores) Store(name module.Name, code *l1.CompiledCode) error {
	repo, err := s.repoFor(name)
	if err != nil {
		return err
	}
	return repo.Store(name, code)
}

func (s *rootStores) Close() error {
	var first error
	for _, repo := range s.repos {
		if err := repo.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// sourceLoader reads module sources from the owning root's source
// directory.
type sourceLoader struct {
	roots *module.RootSet
}

func (l sourceLoader) sourcePath(name module.Name) (string, bool) {
	root, ok := l.roots.Lookup(name.RootName())
	if !ok || !root.HasSource() {
		return "", false
	}
	rel := filepath.FromSlash(strings.TrimPrefix(name.RootRelativeName(), "/"))
	return filepath.Join(root.SourceDir, rel+sourceExt), true
}

func (l sourceLoader) Load(name module.Name) ([]byte, int64, bool, error) {
	path, ok := l.sourcePath(name)
	if !ok {
		return nil, 0, false, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	return data, int64(len(data)), true, nil
}

// asmCompiler is the builder's Compiler over textual L1 assembly sources. A
// line of the form "; use /R/Pkg/Mod" declares a dependency; every other
// non-blank line is one instruction. The compiler doubles as the builder's
// DependencyLister, remembering what each compiled code declared.
type asmCompiler struct {
	mu   sync.Mutex
	deps map[*l1.CompiledCode][]module.Name
}

func newAsmCompiler() *asmCompiler {
	return &asmCompiler{deps: make(map[*l1.CompiledCode][]module.Name)}
}

const usePrefix = "; use "

func (c *asmCompiler) Compile(name module.Name, source []byte, progress builder.ProgressFunc) (*l1.CompiledCode, *builder.CompilerError) {
	lines := strings.Split(string(source), "\n")
	var deps []module.Name
	pos := 0
	for i, line := range lines {
		pos += len(line)
		if i < len(lines)-1 {
			pos++ // the newline
		}
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, usePrefix); ok {
			dep, err := module.ParseName(strings.TrimSpace(rest))
			if err != nil {
				return nil, &builder.CompilerError{
					ModuleName:     name.String(),
					EndOfErrorLine: i + 1,
					Message:        err.Error(),
				}
			}
			deps = append(deps, dep)
		} else if _, err := l1.Assemble(line); err != nil {
			return nil, &builder.CompilerError{
				ModuleName:     name.String(),
				EndOfErrorLine: i + 1,
				Message:        err.Error(),
			}
		}
		if progress != nil && progress(uint64(i+1), uint64(pos)) {
			return nil, nil
		}
	}

	code, err := l1.AssembleCode(name.LocalName(), string(source))
	if err != nil {
		// per-line assembly passed, so this is a whole-program error (stack
		// underflow); attribute it to the last line
		return nil, &builder.CompilerError{
			ModuleName:     name.String(),
			EndOfErrorLine: len(lines),
			Message:        err.Error(),
		}
	}
	code.StartingLine = 1

	c.mu.Lock()
	c.deps[code] = deps
	c.mu.Unlock()
	return code, nil
}

func (c *asmCompiler) Dependencies(code *l1.CompiledCode) ([]module.Name, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deps[code], nil
}
