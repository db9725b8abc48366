// Package downloader materializes a Provenance onto local disk
// (SPEC_FULL.md §4.5): a repository checked out at its resolved revision, or
// an artifact archive fetched and extracted.
package downloader

import (
	"context"

	"github.com/bryanwahyu/scanorch/internal/provenance"
)

// Downloader fetches known into destDir and returns the directory the
// scanned content actually lives in (for a Repository with a non-empty
// Path, that is a subdirectory of destDir, not destDir itself).
type Downloader interface {
	Download(ctx context.Context, known provenance.Provenance, destDir string) (string, error)
}

// DownloadError wraps a failure to materialize a provenance so the
// orchestrator can synthesize an error ScanResult per SPEC_FULL.md §7
// instead of aborting the whole run.
type DownloadError struct {
	Provenance provenance.Provenance
	Reason     string
	Err        error
}

func (e *DownloadError) Error() string {
	return "download " + e.Provenance.CacheKey() + ": " + e.Reason + ": " + e.Err.Error()
}

func (e *DownloadError) Unwrap() error { return e.Err }
