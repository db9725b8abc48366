// Package provenance models where a body of scanned source came from.
package provenance

import "fmt"

// Kind tags which variant of Provenance is populated.
type Kind string

const (
	KindArtifact   Kind = "artifact"
	KindRepository Kind = "repository"
	KindUnknown    Kind = "unknown"
)

// VcsType identifies the version-control system of a Repository provenance.
type VcsType string

const (
	VcsUnknown VcsType = "unknown"
	VcsGit     VcsType = "git"
	VcsMercurial VcsType = "mercurial"
	VcsSubversion VcsType = "subversion"
)

// Provenance is the tagged variant described in SPEC_FULL.md §3: exactly one
// of Artifact or Repository is meaningful, selected by Kind.
type Provenance struct {
	Kind Kind

	// Artifact fields.
	ArtifactURL  string
	ArtifactHash string // optional, empty means "none declared"

	// Repository fields.
	VcsType         VcsType
	VcsURL          string
	RequestedRevision string
	ResolvedRevision  string
	Path            string // in-repo path, "" means repo root
}

// Unknown is the zero-information provenance.
var Unknown = Provenance{Kind: KindUnknown}

// IsKnown reports whether p is a KnownProvenance (Artifact or Repository).
func (p Provenance) IsKnown() bool {
	return p.Kind == KindArtifact || p.Kind == KindRepository
}

// Equal implements the structural equality rule from SPEC_FULL.md §3:
// Repository equality is over (VcsType, VcsURL, Path, ResolvedRevision),
// deliberately excluding RequestedRevision.
func (p Provenance) Equal(o Provenance) bool {
	if p.Kind != o.Kind {
		return false
	}
	switch p.Kind {
	case KindArtifact:
		return p.ArtifactURL == o.ArtifactURL && p.ArtifactHash == o.ArtifactHash
	case KindRepository:
		return p.VcsType == o.VcsType && p.VcsURL == o.VcsURL &&
			p.Path == o.Path && p.ResolvedRevision == o.ResolvedRevision
	default:
		return true
	}
}

// CacheKey returns the canonical stringification from SPEC_FULL.md §6,
// used as the index into provenance-keyed storage.
func (p Provenance) CacheKey() string {
	switch p.Kind {
	case KindArtifact:
		return fmt.Sprintf("artifact:%s|%s", p.ArtifactURL, p.ArtifactHash)
	case KindRepository:
		return fmt.Sprintf("vcs:%s|%s|%s|%s", p.VcsType, p.VcsURL, p.ResolvedRevision, p.Path)
	default:
		return "unknown"
	}
}

func (p Provenance) String() string {
	return p.CacheKey()
}

// NewArtifact builds an Artifact provenance. hash may be empty.
func NewArtifact(url, hash string) Provenance {
	return Provenance{Kind: KindArtifact, ArtifactURL: url, ArtifactHash: hash}
}

// NewRepository builds a Repository provenance. resolvedRevision must be the
// concrete immutable revision, not the raw request (SPEC_FULL.md §3).
func NewRepository(vcsType VcsType, url, requestedRevision, resolvedRevision, path string) Provenance {
	return Provenance{
		Kind:              KindRepository,
		VcsType:           vcsType,
		VcsURL:            url,
		RequestedRevision: requestedRevision,
		ResolvedRevision:  resolvedRevision,
		Path:              path,
	}
}
