package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/l1"
	"github.com/emberlang/ember/lang/module"
	"github.com/emberlang/ember/lang/types"
)

func mustName(t *testing.T, canonical string) module.Name {
	t.Helper()
	n, err := module.ParseName(canonical)
	require.NoError(t, err)
	return n
}

func sampleCode(t *testing.T) *l1.CompiledCode {
	t.Helper()
	code, err := l1.AssembleCode("sample", `
		pushLiteral 0
		pushLiteral 1
		makeTuple 2
		pop
	`)
	require.NoError(t, err)
	code.Literals = []types.Value{types.Int(42), types.String("answer")}
	code.LocalTypes = []*types.Type{types.PrimitiveType(types.KindInt)}
	code.StartingLine = 3
	return code
}

func TestStoreLoadAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.repo")
	name := mustName(t, "/r/pkg/Sample")

	repo, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, repo.StoreWithManifest(name, sampleCode(t), Manifest{
		{SourceStart: 0, SourceEnd: 20, InsnStart: 0, InsnEnd: 4},
	}))
	require.NoError(t, repo.Close())

	repo2, err := Open(path)
	require.NoError(t, err)
	defer repo2.Close()

	code, found, err := repo2.Load(name)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "sample", code.CodeName())
	require.Equal(t, 3, code.StartingLine)
	require.Equal(t, []types.Value{types.Int(42), types.String("answer")}, code.Literals)
	require.Len(t, code.LocalTypes, 1)
	kind, ok := types.PrimitiveKindOf(code.LocalTypes[0])
	require.True(t, ok)
	require.Equal(t, types.KindInt, kind)

	insns := l1.Decode(code.Nybbles, code.NybbleCount)
	require.Len(t, insns, 4)
	require.Equal(t, l1.OpMakeTuple, insns[2].Op)

	m, ok := repo2.LoadManifest(name)
	require.True(t, ok)
	require.Equal(t, uint32(4), m[0].InsnEnd)
}

func TestLoadMissingModule(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "empty.repo"))
	require.NoError(t, err)
	defer repo.Close()

	_, found, err := repo.Load(mustName(t, "/r/Nope"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestStoreRejectsNonPersistableLiteral(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "test.repo"))
	require.NoError(t, err)
	defer repo.Close()

	code := l1.NewCompiledCode("bad", nil, 0, 0, nil)
	code.Literals = []types.Value{types.NewTuple([]types.Value{types.Int(1)})}
	err = repo.Store(mustName(t, "/r/Bad"), code)
	require.ErrorContains(t, err, "not persistable")

	// the failed store must not leave a partial entry behind
	_, found, err := repo.Load(mustName(t, "/r/Bad"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestRemoveAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.repo")
	name := mustName(t, "/r/Mod")

	repo, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, repo.Store(name, sampleCode(t)))
	require.NoError(t, repo.Flush())

	repo.Remove(name)
	require.NoError(t, repo.Close())

	repo2, err := Open(path)
	require.NoError(t, err)
	defer repo2.Close()
	require.Equal(t, 0, repo2.Len())
}
