package provenance

import (
	"context"
	"fmt"

	"github.com/bryanwahyu/scanorch/internal/pkgmodel"
	"github.com/bryanwahyu/scanorch/internal/vcsutil"
)

// OriginKind is one entry of the priority list a PackageResolver walks
// (SPEC_FULL.md §4.1).
type OriginKind string

const (
	OriginArtifact OriginKind = "ARTIFACT"
	OriginVcs      OriginKind = "VCS"
)

// DefaultPriority matches the downloader configuration default from
// SPEC_FULL.md §6: [VCS, ARTIFACT].
var DefaultPriority = []OriginKind{OriginVcs, OriginArtifact}

// PackageResolver resolves a Package to a concrete Provenance, per
// SPEC_FULL.md §4.1.
type PackageResolver interface {
	Resolve(ctx context.Context, pkg pkgmodel.Package, priority []OriginKind) (Provenance, error)
}

// RevisionResolver resolves a requested VCS revision to its concrete,
// immutable revision. A resolver that cannot validate (e.g. offline) may
// return the request unchanged, in which case ResolvedRevision holds the raw
// request and the result is not cache-sound.
type RevisionResolver interface {
	ResolveRevision(ctx context.Context, vcsType VcsType, url, requestedRevision string) (string, error)
}

// StaticResolver is the package-provenance resolver described in
// SPEC_FULL.md §4.1: it walks the priority list and returns the first
// origin kind whose descriptor is non-empty, validating the VCS revision
// through an injected RevisionResolver when one is configured.
//
// Grounded on the teacher's statusFromExit-style small pure dispatch
// functions (internal/application/scans/services.go).
type StaticResolver struct {
	Revisions RevisionResolver // optional; nil means "trust the request as resolved"
}

func NewStaticResolver(revisions RevisionResolver) *StaticResolver {
	return &StaticResolver{Revisions: revisions}
}

func (r *StaticResolver) Resolve(ctx context.Context, pkg pkgmodel.Package, priority []OriginKind) (Provenance, error) {
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	for _, origin := range priority {
		switch origin {
		case OriginArtifact:
			if !pkg.Artifact.Empty() {
				return NewArtifact(pkg.Artifact.URL, pkg.Artifact.Hash), nil
			}
		case OriginVcs:
			if !pkg.Vcs.Empty() {
				return r.resolveVcs(ctx, pkg)
			}
		}
	}
	return Unknown, nil
}

func (r *StaticResolver) resolveVcs(ctx context.Context, pkg pkgmodel.Package) (Provenance, error) {
	vcsType := VcsType(pkg.Vcs.Type)
	if vcsType == "" {
		vcsType = VcsGit
	}
	resolved := pkg.Vcs.Revision
	if r.Revisions != nil {
		rev, err := r.Revisions.ResolveRevision(ctx, vcsType, pkg.Vcs.URL, pkg.Vcs.Revision)
		if err != nil {
			return Unknown, &ResolutionError{PackageID: string(pkg.ID), Reason: "vcs revision resolution failed", Err: err}
		}
		resolved = rev
	}
	return NewRepository(vcsType, pkg.Vcs.URL, pkg.Vcs.Revision, resolved, pkg.Vcs.Path), nil
}

// GitRevisionResolver adapts vcsutil.ResolveRevision to RevisionResolver.
// Only VcsGit is supported; any other declared type is rejected rather than
// silently trusted as already-resolved.
type GitRevisionResolver struct{}

func NewGitRevisionResolver() *GitRevisionResolver { return &GitRevisionResolver{} }

func (GitRevisionResolver) ResolveRevision(ctx context.Context, vcsType VcsType, url, requestedRevision string) (string, error) {
	if vcsType != VcsGit && vcsType != "" {
		return "", fmt.Errorf("unsupported vcs type %q for revision resolution", vcsType)
	}
	return vcsutil.ResolveRevision(ctx, url, requestedRevision)
}
