package provenance

import (
	"context"
	"fmt"
	"os"

	"github.com/bryanwahyu/scanorch/internal/vcsutil"
)

// NestedResolver decomposes a KnownProvenance into a NestedProvenance, per
// SPEC_FULL.md §4.2.
type NestedResolver interface {
	Resolve(ctx context.Context, known Provenance) (NestedProvenance, error)
}

// GitSubmoduleResolver is the reference NestedResolver: Artifact provenance
// resolves to a childless tree without any I/O; every Repository provenance
// is cloned into a scratch directory purely to read .gitmodules and the
// pinned submodule commits, and one with no submodules yields a childless
// tree (vcsutil.Submodules never clones the submodules themselves).
type GitSubmoduleResolver struct {
	ScratchRoot string
}

func NewGitSubmoduleResolver(scratchRoot string) *GitSubmoduleResolver {
	return &GitSubmoduleResolver{ScratchRoot: scratchRoot}
}

func (r *GitSubmoduleResolver) Resolve(ctx context.Context, known Provenance) (NestedProvenance, error) {
	if known.Kind != KindRepository {
		return NewNestedProvenance(known, nil), nil
	}

	dir, err := os.MkdirTemp(r.ScratchRoot, "submodule-probe-*")
	if err != nil {
		return NestedProvenance{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	repo, err := vcsutil.CloneAt(ctx, known.VcsURL, known.ResolvedRevision, dir)
	if err != nil {
		return NestedProvenance{}, fmt.Errorf("probe submodules for %s: %w", known.VcsURL, err)
	}

	subs, err := vcsutil.Submodules(repo, known.ResolvedRevision)
	if err != nil {
		return NestedProvenance{}, fmt.Errorf("list submodules for %s: %w", known.VcsURL, err)
	}

	mounts := make(map[string]Provenance, len(subs))
	for _, sm := range subs {
		mounts[sm.Path] = NewRepository(known.VcsType, sm.URL, sm.Hash, sm.Hash, "")
	}
	return NewNestedProvenance(known, mounts), nil
}

// StaticNestedResolver returns a pre-computed NestedProvenance per root
// provenance, for tests and for Artifact-only deployments that never need to
// probe a VCS (satisfies SPEC_FULL.md §4.2's idempotent/pure contract without
// requiring network access).
type StaticNestedResolver struct {
	ByRoot map[string]NestedProvenance // keyed by Provenance.CacheKey()
}

func (r *StaticNestedResolver) Resolve(_ context.Context, known Provenance) (NestedProvenance, error) {
	if n, ok := r.ByRoot[known.CacheKey()]; ok {
		return n, nil
	}
	return NewNestedProvenance(known, nil), nil
}
