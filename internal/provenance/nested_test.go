package provenance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scanorch/internal/provenance"
)

func TestNewNestedProvenance_NormalizesAndDropsRootKey(t *testing.T) {
	root := provenance.NewRepository(provenance.VcsGit, "https://example.com/root.git", "main", "r1", "")
	sub := provenance.NewRepository(provenance.VcsGit, "https://example.com/sub.git", "main", "s1", "")

	n := provenance.NewNestedProvenance(root, map[string]provenance.Provenance{
		"./sub/lib/": sub,
		"":           sub, // must be dropped: root path is never a sub-repository key
	})

	require.Len(t, n.SubRepositories, 1)
	got, ok := n.SubRepositories["sub/lib"]
	require.True(t, ok)
	assert.True(t, got.Equal(sub))
}

func TestPathPrefixes_SortedByDescendingLength(t *testing.T) {
	root := provenance.NewArtifact("root-url", "")
	sub := provenance.NewArtifact("sub-url", "")
	n := provenance.NewNestedProvenance(root, map[string]provenance.Provenance{"sub/lib": sub})

	entries := n.PathPrefixes()
	require.Len(t, entries, 2)
	assert.Equal(t, "sub/lib", entries[0].Prefix)
	assert.Equal(t, "", entries[1].Prefix)
}

func TestPrefixEntry_Matches(t *testing.T) {
	e := provenance.PrefixEntry{Prefix: "sub/lib"}
	assert.True(t, e.Matches("sub/lib"))
	assert.True(t, e.Matches("sub/lib/x.c"))
	assert.False(t, e.Matches("sub/libother/y.c"))

	root := provenance.PrefixEntry{Prefix: ""}
	assert.True(t, root.Matches("anything/at/all"))
}
