package module

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParsePathLiteralExample pins spec §8 scenario 8.
func TestParsePathLiteralExample(t *testing.T) {
	set, err := ParsePath("/avail=/r/avail.repo,/r/src;ext=/r/ext.repo")
	require.NoError(t, err)

	roots := set.Roots()
	require.Len(t, roots, 2)

	require.Equal(t, "/avail", roots[0].Name)
	require.Equal(t, "/r/avail.repo", roots[0].Repo.Path())
	require.Equal(t, "/r/src", roots[0].SourceDir)
	require.True(t, roots[0].HasSource())

	require.Equal(t, "ext", roots[1].Name)
	require.Equal(t, "/r/ext.repo", roots[1].Repo.Path())
	require.Empty(t, roots[1].SourceDir)
	require.False(t, roots[1].HasSource())
}

func TestParsePathRejectsRelativePaths(t *testing.T) {
	_, err := ParsePath("/avail=r/avail.repo")
	require.Error(t, err)

	_, err = ParsePath("/avail=/r/avail.repo,r/src")
	require.Error(t, err)
}

func TestParsePathRejectsDuplicateRootNames(t *testing.T) {
	_, err := ParsePath("/a=/r/a.repo;/a=/r/b.repo")
	require.Error(t, err)
}

func TestParsePathEmpty(t *testing.T) {
	set, err := ParsePath("")
	require.NoError(t, err)
	require.Empty(t, set.Roots())
}

func TestParseNameDecomposition(t *testing.T) {
	name, err := ParseName("/avail/Seg1/Seg2/Leaf")
	require.NoError(t, err)
	require.Equal(t, "avail", name.RootName())
	require.Equal(t, "/avail/Seg1/Seg2", name.PackageName())
	require.Equal(t, "Leaf", name.LocalName())
	require.Equal(t, "/Seg1/Seg2/Leaf", name.RootRelativeName())
}

func TestParseNameDirectlyUnderRoot(t *testing.T) {
	name, err := ParseName("/avail/Leaf")
	require.NoError(t, err)
	require.Equal(t, "avail", name.RootName())
	require.Equal(t, "/avail", name.PackageName())
	require.Equal(t, "Leaf", name.LocalName())
	require.Equal(t, "/Leaf", name.RootRelativeName())
}

func TestParseNameRejectsRelativeOrMalformed(t *testing.T) {
	_, err := ParseName("avail/Leaf")
	require.Error(t, err)

	_, err = ParseName("/avail")
	require.Error(t, err)

	_, err = ParseName("//Leaf")
	require.Error(t, err)
}

func TestNameEqualityByCanonicalString(t *testing.T) {
	a, err := ParseName("/r/Leaf")
	require.NoError(t, err)
	b, err := ParseName("/r/Leaf")
	require.NoError(t, err)
	require.True(t, a.Equal(b))

	c, err := ParseName("/r/Other")
	require.NoError(t, err)
	require.False(t, a.Equal(c))
}

func TestRenameTableResolvesAndFlagsRename(t *testing.T) {
	table, err := NewRenameTable("/old/Leaf -> /new/Leaf\n# a comment\n\n")
	require.NoError(t, err)

	original, err := ParseName("/old/Leaf")
	require.NoError(t, err)
	resolved, err := table.Resolve(original)
	require.NoError(t, err)
	require.True(t, resolved.IsRename)
	require.Equal(t, "/new/Leaf", resolved.String())

	unaffected, err := ParseName("/old/Other")
	require.NoError(t, err)
	resolved, err = table.Resolve(unaffected)
	require.NoError(t, err)
	require.False(t, resolved.IsRename)
	require.Equal(t, "/old/Other", resolved.String())
}

func TestNilRenameTableIsIdentity(t *testing.T) {
	var table *RenameTable
	name, err := ParseName("/r/Leaf")
	require.NoError(t, err)
	resolved, err := table.Resolve(name)
	require.NoError(t, err)
	require.False(t, resolved.IsRename)
}
