package maincmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/internal/repository"
	"github.com/emberlang/ember/lang/module"
)

func testStdio() (mainer.Stdio, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return mainer.Stdio{Stdin: bytes.NewReader(nil), Stdout: &stdout, Stderr: &stderr}, &stdout, &stderr
}

func writeSource(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupRoot(t *testing.T) (repoPath, srcDir string) {
	t.Helper()
	dir := t.TempDir()
	repoPath = filepath.Join(dir, "r.repo")
	srcDir = filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	t.Setenv("MODULE_ROOTS", "r="+repoPath+","+srcDir)
	return repoPath, srcDir
}

func TestBuildCommandEndToEnd(t *testing.T) {
	repoPath, srcDir := setupRoot(t)
	writeSource(t, srcDir, "Main.l1s", `
		; use /r/Util
		pushLiteral 0
		pop
	`)
	writeSource(t, srcDir, "Util.l1s", `
		pushLiteral 0
		pop
	`)

	stdio, stdout, stderr := testStdio()
	var c Cmd
	code := c.Main([]string{"ember", "build", "/r/Main"}, stdio)
	require.Equal(t, mainer.Success, code, "stderr: %s", stderr.String())
	require.Contains(t, stdout.String(), "Done (")

	// both the target and its declared dependency must be in the repository
	repo, err := repository.Open(repoPath)
	require.NoError(t, err)
	defer repo.Close()
	for _, canonical := range []string{"/r/Main", "/r/Util"} {
		name, err := module.ParseName(canonical)
		require.NoError(t, err)
		_, found, err := repo.Load(name)
		require.NoError(t, err)
		require.True(t, found, canonical)
	}
}

func TestBuildCommandCompileFailure(t *testing.T) {
	_, srcDir := setupRoot(t)
	writeSource(t, srcDir, "Broken.l1s", `
		pushLiteral 0
		frobnicate 1
	`)

	stdio, stdout, stderr := testStdio()
	var c Cmd
	code := c.Main([]string{"ember", "build", "/r/Broken"}, stdio)
	require.Equal(t, exitCompile, code)
	require.Contains(t, stdout.String(), "Aborted (")
	require.Contains(t, stderr.String(), "frobnicate")
}

func TestBuildCommandUnknownRoot(t *testing.T) {
	setupRoot(t)

	stdio, _, _ := testStdio()
	var c Cmd
	code := c.Main([]string{"ember", "build", "/nosuch/Main"}, stdio)
	require.Equal(t, exitIO, code)
}

func TestCleanCommandRemovesRepository(t *testing.T) {
	repoPath, srcDir := setupRoot(t)
	writeSource(t, srcDir, "Main.l1s", "pushLiteral 0\npop\n")

	stdio, _, stderr := testStdio()
	var c Cmd
	require.Equal(t, mainer.Success, c.Main([]string{"ember", "build", "/r/Main"}, stdio), stderr.String())
	require.FileExists(t, repoPath)

	stdio2, stdout2, _ := testStdio()
	require.Equal(t, mainer.Success, c.Main([]string{"ember", "clean", "r"}, stdio2))
	require.Contains(t, stdout2.String(), "Done (")
	require.NoFileExists(t, repoPath)

	// cleaning an already-clean root succeeds
	stdio3, _, _ := testStdio()
	require.Equal(t, mainer.Success, c.Main([]string{"ember", "clean", "r"}, stdio3))
}

func TestRefreshRecompilesAllSources(t *testing.T) {
	repoPath, srcDir := setupRoot(t)
	writeSource(t, srcDir, "A.l1s", "pushLiteral 0\npop\n")
	writeSource(t, srcDir, "pkg/B.l1s", "pushLiteral 1\npop\n")

	stdio, stdout, stderr := testStdio()
	var c Cmd
	code := c.Main([]string{"ember", "refresh"}, stdio)
	require.Equal(t, mainer.Success, code, stderr.String())
	require.Contains(t, stdout.String(), "Done (")

	repo, err := repository.Open(repoPath)
	require.NoError(t, err)
	defer repo.Close()
	require.Equal(t, 2, repo.Len())
}
