package provenance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/scanorch/internal/provenance"
)

func TestEqual_RepositoryIgnoresRequestedRevision(t *testing.T) {
	a := provenance.NewRepository(provenance.VcsGit, "https://example.com/repo.git", "main", "abc123", "")
	b := provenance.NewRepository(provenance.VcsGit, "https://example.com/repo.git", "v2.0.0", "abc123", "")

	assert.True(t, a.Equal(b), "requested revision must not affect equality")
}

func TestEqual_RepositoryDiffersOnResolvedRevision(t *testing.T) {
	a := provenance.NewRepository(provenance.VcsGit, "https://example.com/repo.git", "main", "abc123", "")
	b := provenance.NewRepository(provenance.VcsGit, "https://example.com/repo.git", "main", "def456", "")

	assert.False(t, a.Equal(b))
}

func TestCacheKey_ArtifactFormat(t *testing.T) {
	p := provenance.NewArtifact("https://example.com/a.tar.gz", "sha256:deadbeef")
	assert.Equal(t, "artifact:https://example.com/a.tar.gz|sha256:deadbeef", p.CacheKey())
}

func TestCacheKey_RepositoryFormat(t *testing.T) {
	p := provenance.NewRepository(provenance.VcsGit, "https://example.com/repo.git", "main", "abc123", "sub/lib")
	assert.Equal(t, "vcs:git|https://example.com/repo.git|abc123|sub/lib", p.CacheKey())
}

func TestIsKnown(t *testing.T) {
	assert.False(t, provenance.Unknown.IsKnown())
	assert.True(t, provenance.NewArtifact("u", "").IsKnown())
	assert.True(t, provenance.NewRepository(provenance.VcsGit, "u", "r", "r1", "").IsKnown())
}
