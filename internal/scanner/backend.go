package scanner

import (
	"context"

	"github.com/bryanwahyu/scanorch/internal/pkgmodel"
	"github.com/bryanwahyu/scanorch/internal/provenance"
)

// Backend is the common contract every scanner backend shape exposes
// (SPEC_FULL.md §4.3).
type Backend interface {
	Name() string
	Details() ScannerDetails
	GetScannerCriteria() ScannerCriteria
}

// PackageGranularBackend resolves its own source and stamps the provenance
// onto the result it returns.
type PackageGranularBackend interface {
	Backend
	ScanPackage(ctx context.Context, pkg pkgmodel.Package) (ScanResult, error)
}

// ProvenanceGranularBackend fetches from the given provenance itself.
type ProvenanceGranularBackend interface {
	Backend
	ScanProvenance(ctx context.Context, known provenance.Provenance) (ScanResult, error)
}

// LocalBackend scans an already-materialized directory; the caller stamps
// the provenance onto the result.
type LocalBackend interface {
	Backend
	ScanPath(ctx context.Context, dir string) (ScanResult, error)
}

// Shape identifies which of the three call shapes a Backend implements.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapePackageGranular
	ShapeProvenanceGranular
	ShapeLocal
)

// ShapeOf performs the exhaustive match SPEC_FULL.md §4.3 calls for. Exactly
// one shape applies to any well-formed backend.
func ShapeOf(b Backend) Shape {
	switch b.(type) {
	case PackageGranularBackend:
		return ShapePackageGranular
	case ProvenanceGranularBackend:
		return ShapeProvenanceGranular
	case LocalBackend:
		return ShapeLocal
	default:
		return ShapeUnknown
	}
}
