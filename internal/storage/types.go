// Package storage defines the cache-lookup and persistence contracts the
// orchestrator consults (SPEC_FULL.md §4.4).
package storage

import (
	"context"

	"github.com/bryanwahyu/scanorch/internal/pkgmodel"
	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
)

// NestedResult pairs a NestedProvenance with every ScanResult collected for
// each provenance in that tree.
type NestedResult struct {
	Nested      provenance.NestedProvenance
	ScanResults map[string][]scanner.ScanResult // keyed by Provenance.CacheKey()
}

// ProvenanceReader looks up cached results for a single provenance.
type ProvenanceReader interface {
	Read(ctx context.Context, known provenance.Provenance, criteria scanner.ScannerCriteria) ([]scanner.ScanResult, error)
}

// ProvenanceWriter persists a single scan result, idempotently per
// (provenance, scanner details).
type ProvenanceWriter interface {
	Write(ctx context.Context, known provenance.Provenance, result scanner.ScanResult) error
}

// PackageReader looks up a previously stored nested result keyed by package
// identity (used when the original scan was package-granular).
type PackageReader interface {
	Read(ctx context.Context, pkg pkgmodel.Package, criteria scanner.ScannerCriteria) ([]NestedResult, error)
}

// PackageWriter persists a nested result keyed by package identity.
type PackageWriter interface {
	Write(ctx context.Context, pkg pkgmodel.Package, result NestedResult) error
}

// ReaderKind distinguishes which flavor a configured reader implements.
type ReaderKind int

const (
	ReaderKindUnknown ReaderKind = iota
	ReaderKindProvenance
	ReaderKindPackage
)

// KindOfReader performs the exhaustive match used when the orchestrator
// walks its configured reader list (SPEC_FULL.md §4.4), mirroring
// scanner.ShapeOf.
func KindOfReader(r any) ReaderKind {
	switch r.(type) {
	case ProvenanceReader:
		return ReaderKindProvenance
	case PackageReader:
		return ReaderKindPackage
	default:
		return ReaderKindUnknown
	}
}

// WriterKind distinguishes which flavor a configured writer implements.
type WriterKind int

const (
	WriterKindUnknown WriterKind = iota
	WriterKindProvenance
	WriterKindPackage
)

// KindOfWriter performs the exhaustive match used when the orchestrator
// fans out writes (SPEC_FULL.md §4.4).
func KindOfWriter(w any) WriterKind {
	switch w.(type) {
	case ProvenanceWriter:
		return WriterKindProvenance
	case PackageWriter:
		return WriterKindPackage
	default:
		return WriterKindUnknown
	}
}

// StorageError wraps a read/write failure from a specific backend so the
// orchestrator can log it and continue (SPEC_FULL.md §7).
type StorageError struct {
	Backend string
	Op      string // "read" or "write"
	Err     error
}

func (e *StorageError) Error() string {
	return e.Backend + ": " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }
