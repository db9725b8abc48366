package orchestrator_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scanorch/internal/downloader"
	"github.com/bryanwahyu/scanorch/internal/orchestrator"
	"github.com/bryanwahyu/scanorch/internal/pkgmodel"
	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
	"github.com/bryanwahyu/scanorch/internal/storage"
)

// fakePackageBackend implements scanner.PackageGranularBackend.
type fakePackageBackend struct {
	name    string
	calls   atomic.Int32
	summary scanner.ScanSummary
}

func (f *fakePackageBackend) Name() string { return f.name }
func (f *fakePackageBackend) Details() scanner.ScannerDetails {
	return scanner.ScannerDetails{Name: f.name, Version: "1.0.0"}
}
func (f *fakePackageBackend) GetScannerCriteria() scanner.ScannerCriteria {
	return scanner.ScannerCriteria{NamePattern: f.name, MinVersion: "1.0.0", MaxVersion: "1.0.0"}
}
func (f *fakePackageBackend) ScanPackage(ctx context.Context, pkg pkgmodel.Package) (scanner.ScanResult, error) {
	f.calls.Add(1)
	return scanner.ScanResult{Scanner: f.Details(), Summary: f.summary}, nil
}

// fakeProvenanceBackend implements scanner.ProvenanceGranularBackend.
type fakeProvenanceBackend struct {
	name  string
	calls atomic.Int32
}

func (f *fakeProvenanceBackend) Name() string { return f.name }
func (f *fakeProvenanceBackend) Details() scanner.ScannerDetails {
	return scanner.ScannerDetails{Name: f.name, Version: "1.0.0"}
}
func (f *fakeProvenanceBackend) GetScannerCriteria() scanner.ScannerCriteria {
	return scanner.ScannerCriteria{NamePattern: f.name, MinVersion: "1.0.0", MaxVersion: "1.0.0"}
}
func (f *fakeProvenanceBackend) ScanProvenance(ctx context.Context, known provenance.Provenance) (scanner.ScanResult, error) {
	f.calls.Add(1)
	return scanner.ScanResult{Provenance: known, Scanner: f.Details()}, nil
}

// fakeLocalBackend implements scanner.LocalBackend.
type fakeLocalBackend struct {
	name  string
	calls atomic.Int32
}

func (f *fakeLocalBackend) Name() string { return f.name }
func (f *fakeLocalBackend) Details() scanner.ScannerDetails {
	return scanner.ScannerDetails{Name: f.name, Version: "1.0.0"}
}
func (f *fakeLocalBackend) GetScannerCriteria() scanner.ScannerCriteria {
	return scanner.ScannerCriteria{NamePattern: f.name, MinVersion: "1.0.0", MaxVersion: "1.0.0"}
}
func (f *fakeLocalBackend) ScanPath(ctx context.Context, dir string) (scanner.ScanResult, error) {
	f.calls.Add(1)
	return scanner.ScanResult{Scanner: f.Details()}, nil
}

type fakeProvenanceReader struct {
	byKey map[string][]scanner.ScanResult
}

func (r *fakeProvenanceReader) Read(ctx context.Context, known provenance.Provenance, crit scanner.ScannerCriteria) ([]scanner.ScanResult, error) {
	var out []scanner.ScanResult
	for _, res := range r.byKey[known.CacheKey()] {
		if crit.Satisfies(res.Scanner) {
			out = append(out, res)
		}
	}
	return out, nil
}

type recordingProvenanceWriter struct {
	writes atomic.Int32
}

func (w *recordingProvenanceWriter) Write(ctx context.Context, known provenance.Provenance, result scanner.ScanResult) error {
	w.writes.Add(1)
	return nil
}

type recordingPackageWriter struct {
	writes atomic.Int32
}

func (w *recordingPackageWriter) Write(ctx context.Context, pkg pkgmodel.Package, result storage.NestedResult) error {
	w.writes.Add(1)
	return nil
}

type failDownloader struct{}

func (failDownloader) Download(ctx context.Context, known provenance.Provenance, destDir string) (string, error) {
	return "", &downloader.DownloadError{Provenance: known, Reason: "simulated", Err: assertError{}}
}

type assertError struct{}

func (assertError) Error() string { return "simulated download failure" }

func TestNew_RejectsNoScanners(t *testing.T) {
	_, err := orchestrator.New(orchestrator.Config{}, nil, nil, nil, nil, nil, failDownloader{}, nil)
	require.Error(t, err)
	var cfgErr *orchestrator.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

// S2: package-granular backend, two packages, each scanned exactly once.
func TestRun_PackageGranular_ScansEachPackageOnce(t *testing.T) {
	backend := &fakePackageBackend{name: "pkg-scanner"}
	resolver := provenance.NewStaticResolver(nil)
	nestedResolver := &provenance.StaticNestedResolver{}

	pkgA := pkgmodel.Package{ID: "pkgA", Artifact: pkgmodel.ArtifactDescriptor{URL: "https://example.com/a.tar.gz"}}
	pkgR := pkgmodel.Package{ID: "pkgR", Vcs: pkgmodel.VcsDescriptor{Type: "git", URL: "https://example.com/r.git", Revision: "rev1"}}

	o, err := orchestrator.New(orchestrator.Config{}, resolver, nestedResolver,
		[]scanner.Backend{backend}, nil, nil, failDownloader{}, nil)
	require.NoError(t, err)

	out, err := o.Run(context.Background(), []pkgmodel.Package{pkgA, pkgR})
	require.NoError(t, err)

	require.Contains(t, out, pkgmodel.ID("pkgA"))
	require.Contains(t, out, pkgmodel.ID("pkgR"))
	assert.EqualValues(t, 2, backend.calls.Load())

	artifactProv := provenance.NewArtifact(pkgA.Artifact.URL, "")
	require.Contains(t, out["pkgA"].ScanResults, artifactProv.CacheKey())
}

// S3: provenance-granular backend, two packages sharing the same resolved
// Repository provenance — the backend is invoked exactly once.
func TestRun_ProvenanceGranular_DedupsSharedProvenance(t *testing.T) {
	backend := &fakeProvenanceBackend{name: "prov-scanner"}
	resolver := provenance.NewStaticResolver(nil)
	nestedResolver := &provenance.StaticNestedResolver{}

	pkg1 := pkgmodel.Package{ID: "pkg1", Vcs: pkgmodel.VcsDescriptor{Type: "git", URL: "https://example.com/shared.git", Revision: "rev1"}}
	pkg2 := pkgmodel.Package{ID: "pkg2", Vcs: pkgmodel.VcsDescriptor{Type: "git", URL: "https://example.com/shared.git", Revision: "rev1"}}

	o, err := orchestrator.New(orchestrator.Config{}, resolver, nestedResolver,
		[]scanner.Backend{backend}, nil, nil, failDownloader{}, nil)
	require.NoError(t, err)

	out, err := o.Run(context.Background(), []pkgmodel.Package{pkg1, pkg2})
	require.NoError(t, err)

	assert.EqualValues(t, 1, backend.calls.Load())

	shared := provenance.NewRepository(provenance.VcsGit, "https://example.com/shared.git", "rev1", "rev1", "")
	assert.Len(t, out["pkg1"].ScanResults[shared.CacheKey()], 1)
	assert.Len(t, out["pkg2"].ScanResults[shared.CacheKey()], 1)
}

// S4: a cache hit means the backend is never invoked and no writer runs.
func TestRun_CacheHit_SkipsBackendAndWriters(t *testing.T) {
	backend := &fakeProvenanceBackend{name: "prov-scanner"}
	resolver := provenance.NewStaticResolver(nil)
	nestedResolver := &provenance.StaticNestedResolver{}

	pkg := pkgmodel.Package{ID: "pkg1", Vcs: pkgmodel.VcsDescriptor{Type: "git", URL: "https://example.com/repo.git", Revision: "rev1"}}
	known := provenance.NewRepository(provenance.VcsGit, "https://example.com/repo.git", "rev1", "rev1", "")

	cached := scanner.ScanResult{Provenance: known, Scanner: backend.Details()}
	reader := &fakeProvenanceReader{byKey: map[string][]scanner.ScanResult{known.CacheKey(): {cached}}}
	writer := &recordingProvenanceWriter{}

	o, err := orchestrator.New(orchestrator.Config{}, resolver, nestedResolver,
		[]scanner.Backend{backend}, []any{reader}, []any{writer}, failDownloader{}, nil)
	require.NoError(t, err)

	out, err := o.Run(context.Background(), []pkgmodel.Package{pkg})
	require.NoError(t, err)

	assert.EqualValues(t, 0, backend.calls.Load())
	assert.EqualValues(t, 0, writer.writes.Load())
	assert.Len(t, out["pkg1"].ScanResults[known.CacheKey()], 1)
}

// S5: download failure for a local backend synthesizes a Downloader-sourced
// error issue rather than aborting the run.
func TestRun_DownloadFailure_SynthesizesErrorResult(t *testing.T) {
	backend := &fakeLocalBackend{name: "local-scanner"}
	resolver := provenance.NewStaticResolver(nil)
	nestedResolver := &provenance.StaticNestedResolver{}

	pkg := pkgmodel.Package{ID: "pkg1", Vcs: pkgmodel.VcsDescriptor{Type: "git", URL: "https://example.com/repo.git", Revision: "rev1"}}

	o, err := orchestrator.New(orchestrator.Config{}, resolver, nestedResolver,
		[]scanner.Backend{backend}, nil, nil, failDownloader{}, nil)
	require.NoError(t, err)

	out, err := o.Run(context.Background(), []pkgmodel.Package{pkg})
	require.NoError(t, err)

	assert.EqualValues(t, 0, backend.calls.Load(), "local backend must not run after a download failure")

	known := provenance.NewRepository(provenance.VcsGit, "https://example.com/repo.git", "rev1", "rev1", "")
	results := out["pkg1"].ScanResults[known.CacheKey()]
	require.Len(t, results, 1)
	require.Len(t, results[0].Summary.Issues, 1)
	assert.Equal(t, "Downloader", results[0].Summary.Issues[0].Source)
	assert.Equal(t, scanner.IssueError, results[0].Summary.Issues[0].Severity)
}
