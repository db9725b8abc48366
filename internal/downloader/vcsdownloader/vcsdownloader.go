// Package vcsdownloader implements downloader.Downloader for Repository
// provenance using go-git, grounded on internal/vcsutil (itself grounded on
// the resolution strategy in internal/provenance/nestedresolver.go).
package vcsdownloader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bryanwahyu/scanorch/internal/downloader"
	"github.com/bryanwahyu/scanorch/internal/middleware"
	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/vcsutil"
)

type Downloader struct{}

func New() *Downloader { return &Downloader{} }

// Download checks known out at ResolvedRevision into destDir and returns the
// in-repo Path subdirectory, if one was set on the provenance.
func (d *Downloader) Download(ctx context.Context, known provenance.Provenance, destDir string) (string, error) {
	if known.Kind != provenance.KindRepository {
		return "", &downloader.DownloadError{Provenance: known, Reason: "not a repository provenance", Err: fmt.Errorf("unsupported kind %q", known.Kind)}
	}
	if known.ResolvedRevision == "" {
		return "", &downloader.DownloadError{Provenance: known, Reason: "missing resolved revision", Err: fmt.Errorf("provenance was not resolved before download")}
	}

	if _, err := vcsutil.CloneAt(ctx, known.VcsURL, known.ResolvedRevision, destDir); err != nil {
		if vcsutil.IsAuthError(err) {
			return "", &downloader.DownloadError{Provenance: known, Reason: "authentication required", Err: err}
		}
		return "", &downloader.DownloadError{Provenance: known, Reason: "clone failed", Err: err}
	}

	scanRoot := destDir
	sub, err := sanitizedSubpath(known.Path)
	if err != nil {
		return "", &downloader.DownloadError{Provenance: known, Reason: "invalid in-repo path", Err: err}
	}
	if sub != "" {
		scanRoot = filepath.Join(destDir, sub)
	}
	return scanRoot, nil
}

// sanitizedSubpath normalizes known.Path into a clone-relative subpath and
// rejects traversal/absolute paths via the teacher's middleware.ValidatePath.
func sanitizedSubpath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	cleaned := filepath.Clean(p)
	if cleaned == "." {
		return "", nil
	}
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("in-repo path must be relative, got %q", p)
	}
	if err := middleware.ValidatePath(cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}
