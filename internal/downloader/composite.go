package downloader

import (
	"context"
	"fmt"

	"github.com/bryanwahyu/scanorch/internal/provenance"
)

// CompositeDownloader dispatches to the Downloader registered for a
// provenance's Kind, the exhaustive-match style the teacher's docker runner
// uses to pick a tool implementation (internal/infra/executor/docker/runner.go).
type CompositeDownloader struct {
	byKind map[provenance.Kind]Downloader
}

func NewComposite(artifact, repository Downloader) *CompositeDownloader {
	return &CompositeDownloader{byKind: map[provenance.Kind]Downloader{
		provenance.KindArtifact:   artifact,
		provenance.KindRepository: repository,
	}}
}

func (c *CompositeDownloader) Download(ctx context.Context, known provenance.Provenance, destDir string) (string, error) {
	d, ok := c.byKind[known.Kind]
	if !ok || d == nil {
		return "", &DownloadError{Provenance: known, Reason: "no downloader registered", Err: fmt.Errorf("unsupported kind %q", known.Kind)}
	}
	return d.Download(ctx, known, destDir)
}
