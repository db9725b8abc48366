package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/scanorch/internal/clock"
	"github.com/bryanwahyu/scanorch/internal/pkgmodel"
	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
	"github.com/bryanwahyu/scanorch/internal/splitter"
	"github.com/bryanwahyu/scanorch/internal/storage"
)

// completion is what a scanner/dispatch goroutine hands to the single
// aggregation owner (SPEC_FULL.md §5): the owner is the only thing that
// mutates runState.results, so concurrent dispatch never races on it.
type completion struct {
	scannerName   string
	provenanceKey string
	result        scanner.ScanResult
	notifyWriters bool // invoke provenance-keyed writers once committed
}

type runState struct {
	o *Orchestrator

	provByPkg   map[pkgmodel.ID]provenance.Provenance
	nestedByPkg map[pkgmodel.ID]provenance.NestedProvenance
	allProv     map[string]provenance.Provenance // cacheKey -> provenance

	results map[string]map[string][]scanner.ScanResult // scannerName -> cacheKey -> results

	downloadsMu sync.Mutex
	downloads   map[string]*downloadOutcome // provenance cacheKey -> shared download
}

type downloadOutcome struct {
	ready chan struct{}
	root  string // scratch directory created for this provenance
	dir   string
	err   error
}

// Run executes the full pipeline described in SPEC_FULL.md §4.6 over the
// given packages and returns the assembled nested result tree per package.
func (o *Orchestrator) Run(ctx context.Context, packages []pkgmodel.Package) (map[pkgmodel.ID]storage.NestedResult, error) {
	rs := &runState{
		o:           o,
		provByPkg:   make(map[pkgmodel.ID]provenance.Provenance, len(packages)),
		nestedByPkg: make(map[pkgmodel.ID]provenance.NestedProvenance, len(packages)),
		allProv:     make(map[string]provenance.Provenance),
		results:     make(map[string]map[string][]scanner.ScanResult, len(o.scanners)),
		downloads:   make(map[string]*downloadOutcome),
	}
	for _, s := range o.scanners {
		rs.results[s.Name()] = make(map[string][]scanner.ScanResult)
	}

	// Step 1: resolve package provenances.
	for _, pkg := range packages {
		known, err := o.resolver.Resolve(ctx, pkg, provenance.DefaultPriority)
		if err != nil {
			o.logf("package=%s step=resolve issue=%v", pkg.ID, err)
			known = provenance.Unknown
		}
		rs.provByPkg[pkg.ID] = known
	}

	// Step 2: resolve nested provenances; accumulate allProv.
	for _, pkg := range packages {
		known := rs.provByPkg[pkg.ID]
		if !known.IsKnown() {
			rs.nestedByPkg[pkg.ID] = provenance.NestedProvenance{Root: known}
			continue
		}
		nested, err := o.nestedResolver.Resolve(ctx, known)
		if err != nil {
			o.logf("package=%s step=nested-resolve issue=%v", pkg.ID, err)
			nested = provenance.NestedProvenance{Root: known}
		}
		rs.nestedByPkg[pkg.ID] = nested
		for _, p := range nested.All() {
			rs.allProv[p.CacheKey()] = p
		}
	}

	// Step 3: read cache for every (scanner, provenance) pair.
	rs.readCache(ctx)

	// Step 4: identify incomplete packages.
	incompletePkgs := rs.incompletePackages(packages)

	// Step 5: dispatch package-granular scans for incomplete packages.
	if err := rs.dispatchPackageGranular(ctx, packages, incompletePkgs); err != nil {
		return nil, err
	}

	// Step 6: recompute incomplete provenances.
	incompleteProv := rs.incompleteProvenances()

	// Step 7: dispatch provenance-granular and local scans.
	if err := rs.dispatchProvenanceScoped(ctx, incompleteProv); err != nil {
		return nil, err
	}

	// Step 8: assemble nested results.
	out := make(map[pkgmodel.ID]storage.NestedResult, len(packages))
	for _, pkg := range packages {
		nested := rs.nestedByPkg[pkg.ID]
		perProv := make(map[string][]scanner.ScanResult)
		for _, p := range nested.All() {
			key := p.CacheKey()
			for _, byProv := range rs.results {
				perProv[key] = append(perProv[key], byProv[key]...)
			}
		}
		out[pkg.ID] = storage.NestedResult{Nested: nested, ScanResults: perProv}
	}

	// Step 9: write package-keyed results for every incomplete package.
	for pkgID := range incompletePkgs {
		pkg := findPackage(packages, pkgID)
		nr := out[pkgID]
		for _, w := range o.writers {
			pw, ok := w.(storage.PackageWriter)
			if !ok {
				continue
			}
			if err := pw.Write(ctx, pkg, nr); err != nil {
				o.logf("package=%s step=write-package issue=%v", pkgID, err)
			}
		}
	}

	return out, nil
}

func findPackage(packages []pkgmodel.Package, id pkgmodel.ID) pkgmodel.Package {
	for _, p := range packages {
		if p.ID == id {
			return p
		}
	}
	return pkgmodel.Package{ID: id}
}

// readCache implements step 3: for each scanner, for each provenance, walk
// readers in registration order until a non-empty result is found. Only
// non-empty presence counts as a cache hit (SPEC_FULL.md §9, the
// empty-vs-absent open question).
func (rs *runState) readCache(ctx context.Context) {
	provKeys := rs.sortedProvKeys()
	for _, s := range rs.o.scanners {
		crit := s.GetScannerCriteria()
		for _, key := range provKeys {
			q := rs.allProv[key]
			if len(rs.results[s.Name()][key]) > 0 {
				continue
			}
			for _, r := range rs.o.readers {
				if rs.tryReadProvenance(ctx, s, crit, q, r) {
					break
				}
				if rs.tryReadPackage(ctx, s, crit, q, r) {
					break
				}
			}
		}
	}
}

func (rs *runState) tryReadProvenance(ctx context.Context, s scanner.Backend, crit scanner.ScannerCriteria, q provenance.Provenance, r any) bool {
	pr, ok := r.(storage.ProvenanceReader)
	if !ok {
		return false
	}
	found, err := pr.Read(ctx, q, crit)
	if err != nil {
		rs.o.logf("scanner=%s provenance=%s step=read-cache issue=%v", s.Name(), q.CacheKey(), err)
		return false
	}
	if len(found) == 0 {
		return false
	}
	rs.results[s.Name()][q.CacheKey()] = found
	return true
}

// tryReadPackage implements the package-keyed reader branch: find any
// package whose root-or-sub provenance is q, read its stored nested result,
// and merge the slice whose embedded provenance label equals q.
func (rs *runState) tryReadPackage(ctx context.Context, s scanner.Backend, crit scanner.ScannerCriteria, q provenance.Provenance, r any) bool {
	pkr, ok := r.(storage.PackageReader)
	if !ok {
		return false
	}
	for pkgID, nested := range rs.nestedByPkg {
		if !provenanceInTree(nested, q) {
			continue
		}
		found, err := pkr.Read(ctx, pkgmodel.Package{ID: pkgID}, crit)
		if err != nil {
			rs.o.logf("scanner=%s package=%s step=read-cache issue=%v", s.Name(), pkgID, err)
			continue
		}
		for _, nr := range found {
			if scanResults, ok := nr.ScanResults[q.CacheKey()]; ok && len(scanResults) > 0 {
				rs.results[s.Name()][q.CacheKey()] = scanResults
				return true
			}
		}
	}
	return false
}

func provenanceInTree(nested provenance.NestedProvenance, q provenance.Provenance) bool {
	for _, p := range nested.All() {
		if p.CacheKey() == q.CacheKey() {
			return true
		}
	}
	return false
}

func (rs *runState) sortedProvKeys() []string {
	keys := make([]string, 0, len(rs.allProv))
	for k := range rs.allProv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (rs *runState) covered(scannerName, provKey string) bool {
	return len(rs.results[scannerName][provKey]) > 0
}

// incompletePackages implements step 4.
func (rs *runState) incompletePackages(packages []pkgmodel.Package) map[pkgmodel.ID][]scanner.Backend {
	out := make(map[pkgmodel.ID][]scanner.Backend)
	for _, pkg := range packages {
		known := rs.provByPkg[pkg.ID]
		if !known.IsKnown() {
			continue
		}
		nested := rs.nestedByPkg[pkg.ID]
		for _, s := range rs.o.scanners {
			if !rs.covered(s.Name(), known.CacheKey()) {
				out[pkg.ID] = append(out[pkg.ID], s)
				continue
			}
			for _, p := range nested.All() {
				if !rs.covered(s.Name(), p.CacheKey()) {
					out[pkg.ID] = append(out[pkg.ID], s)
					break
				}
			}
		}
	}
	return out
}

// incompleteProvenances implements step 6: the same coverage rule,
// restricted to a single provenance.
func (rs *runState) incompleteProvenances() map[string][]scanner.Backend {
	out := make(map[string][]scanner.Backend)
	for _, key := range rs.sortedProvKeys() {
		for _, s := range rs.o.scanners {
			if !rs.covered(s.Name(), key) {
				out[key] = append(out[key], s)
			}
		}
	}
	return out
}

// dispatchPackageGranular implements step 5: package-granular backends are
// invoked once per (incomplete package, scanner) pair, in parallel, and
// their whole-tree result is split across the package's nested provenance
// tree by the single aggregation owner.
func (rs *runState) dispatchPackageGranular(ctx context.Context, packages []pkgmodel.Package, incomplete map[pkgmodel.ID][]scanner.Backend) error {
	ch := make(chan completion, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range ch {
			rs.commit(c)
		}
	}()

	eg, egCtx := errgroup.WithContext(ctx)
	for _, pkg := range packages {
		pkg := pkg
		nested := rs.nestedByPkg[pkg.ID]
		for _, s := range incomplete[pkg.ID] {
			backend, ok := s.(scanner.PackageGranularBackend)
			if !ok {
				continue
			}
			s := s
			eg.Go(func() error {
				callCtx, cancel := context.WithTimeout(egCtx, rs.o.cfg.BackendTimeout)
				defer cancel()

				result, err := backend.ScanPackage(callCtx, pkg)
				if err != nil {
					rs.o.logf("scanner=%s package=%s step=scan-package issue=%v", s.Name(), pkg.ID, err)
					result = synthesizeScannerError(rs.o.clock, s, rs.provByPkg[pkg.ID], err)
					ch <- completion{scannerName: s.Name(), provenanceKey: rs.provByPkg[pkg.ID].CacheKey(), result: result}
					return nil
				}
				for key, slice := range splitter.Split(result, nested) {
					ch <- completion{scannerName: s.Name(), provenanceKey: key, result: slice}
				}
				return nil
			})
		}
	}
	err := eg.Wait()
	close(ch)
	<-done
	return err
}

// dispatchProvenanceScoped implements step 7: provenance-granular backends
// are invoked directly; local backends share one scratch download per
// provenance and are invoked once that download completes.
func (rs *runState) dispatchProvenanceScoped(ctx context.Context, incomplete map[string][]scanner.Backend) error {
	ch := make(chan completion, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range ch {
			rs.commit(c)
			if c.notifyWriters {
				rs.notifyProvenanceWriters(ctx, c)
			}
		}
	}()

	eg, egCtx := errgroup.WithContext(ctx)
	for key, backends := range incomplete {
		key := key
		q := rs.allProv[key]
		for _, s := range backends {
			s := s
			switch backend := s.(type) {
			case scanner.ProvenanceGranularBackend:
				eg.Go(func() error {
					callCtx, cancel := context.WithTimeout(egCtx, rs.o.cfg.BackendTimeout)
					defer cancel()
					result, err := backend.ScanProvenance(callCtx, q)
					if err != nil {
						rs.o.logf("scanner=%s provenance=%s step=scan-provenance issue=%v", s.Name(), key, err)
						result = synthesizeScannerError(rs.o.clock, s, q, err)
					} else {
						result.Provenance = q
					}
					ch <- completion{scannerName: s.Name(), provenanceKey: key, result: result, notifyWriters: true}
					return nil
				})
			case scanner.LocalBackend:
				eg.Go(func() error {
					dir, err := rs.ensureDownload(egCtx, q)
					if err != nil {
						rs.o.logf("scanner=%s provenance=%s step=download issue=%v", s.Name(), key, err)
						result := synthesizeDownloadError(rs.o.clock, s, q, err)
						ch <- completion{scannerName: s.Name(), provenanceKey: key, result: result, notifyWriters: true}
						return nil
					}
					callCtx, cancel := context.WithTimeout(egCtx, rs.o.cfg.BackendTimeout)
					defer cancel()
					result, err := backend.ScanPath(callCtx, dir)
					if err != nil {
						rs.o.logf("scanner=%s provenance=%s step=scan-path issue=%v", s.Name(), key, err)
						result = synthesizeScannerError(rs.o.clock, s, q, err)
					} else {
						result.Provenance = q
					}
					ch <- completion{scannerName: s.Name(), provenanceKey: key, result: result, notifyWriters: true}
					return nil
				})
			}
		}
	}
	err := eg.Wait()
	close(ch)
	<-done
	for _, outcome := range rs.downloads {
		if outcome.root != "" {
			os.RemoveAll(outcome.root)
		}
	}
	return err
}

func (rs *runState) commit(c completion) {
	rs.results[c.scannerName][c.provenanceKey] = append(rs.results[c.scannerName][c.provenanceKey], c.result)
}

func (rs *runState) notifyProvenanceWriters(ctx context.Context, c completion) {
	q := rs.allProv[c.provenanceKey]
	for _, w := range rs.o.writers {
		pw, ok := w.(storage.ProvenanceWriter)
		if !ok {
			continue
		}
		if err := pw.Write(ctx, q, c.result); err != nil {
			rs.o.logf("scanner=%s provenance=%s step=write-provenance issue=%v", c.scannerName, c.provenanceKey, err)
		}
	}
}

// ensureDownload shares a single scratch directory across every local
// scanner scanning the same provenance this run, per SPEC_FULL.md §5. The
// scratch directory is removed by dispatchProvenanceScoped once every local
// scan of step 7 has finished.
func (rs *runState) ensureDownload(ctx context.Context, q provenance.Provenance) (string, error) {
	key := q.CacheKey()

	rs.downloadsMu.Lock()
	outcome, exists := rs.downloads[key]
	if !exists {
		outcome = &downloadOutcome{ready: make(chan struct{})}
		rs.downloads[key] = outcome
	}
	rs.downloadsMu.Unlock()

	if exists {
		<-outcome.ready
		return outcome.dir, outcome.err
	}

	dir, err := os.MkdirTemp(rs.o.cfg.ScratchRoot, "scanorch-scratch-*")
	if err == nil {
		outcome.root = dir
		dir, err = rs.o.downloader.Download(ctx, q, dir)
	}
	outcome.dir, outcome.err = dir, err
	close(outcome.ready)
	return dir, err
}

func synthesizeScannerError(c clock.Clock, s scanner.Backend, known provenance.Provenance, cause error) scanner.ScanResult {
	now := c.Now()
	scanErr := &ScannerError{ScannerName: s.Name(), Err: cause}
	return scanner.ScanResult{
		Provenance: known,
		Scanner:    s.Details(),
		Summary: scanner.ScanSummary{
			StartTime: now,
			EndTime:   now,
			Issues: []scanner.Issue{{
				Severity:  scanner.IssueError,
				Source:    s.Name(),
				Message:   scanErr.Error(),
				Timestamp: now,
			}},
		},
	}
}

func synthesizeDownloadError(c clock.Clock, s scanner.Backend, known provenance.Provenance, cause error) scanner.ScanResult {
	now := c.Now()
	return scanner.ScanResult{
		Provenance: known,
		Scanner:    s.Details(),
		Summary: scanner.ScanSummary{
			StartTime: now,
			EndTime:   now,
			Issues: []scanner.Issue{{
				Severity:  scanner.IssueError,
				Source:    "Downloader",
				Message:   fmt.Sprintf("download failed for %s: %v", known.CacheKey(), cause),
				Timestamp: now,
			}},
		},
	}
}
