// Package orchestrator implements the scan-orchestration core: the
// de-duplicating, cache-aware pipeline that drives packages through
// resolution, cache lookup, scanner dispatch, and result assembly
// (SPEC_FULL.md §4.6, the largest single component of this repo).
package orchestrator

import (
	"time"

	"github.com/bryanwahyu/scanorch/internal/clock"
	"github.com/bryanwahyu/scanorch/internal/downloader"
	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
	"github.com/bryanwahyu/scanorch/internal/storage"
)

// Config carries the run-wide knobs that are not themselves collaborators
// (those are passed to New directly): a per-backend invocation timeout and
// the scratch root local backends download into.
type Config struct {
	BackendTimeout time.Duration
	ScratchRoot    string
}

func (c Config) withDefaults() Config {
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = 5 * time.Minute
	}
	if c.ScratchRoot == "" {
		c.ScratchRoot = "."
	}
	return c
}

// Orchestrator is the assembled pipeline. Construct with New.
type Orchestrator struct {
	cfg            Config
	resolver       provenance.PackageResolver
	nestedResolver provenance.NestedResolver
	scanners       []scanner.Backend
	readers        []any // storage.ProvenanceReader and/or storage.PackageReader
	writers        []any // storage.ProvenanceWriter and/or storage.PackageWriter
	downloader     downloader.Downloader
	clock          clock.Clock

	logf func(format string, args ...any)
}

// New validates and assembles an Orchestrator. It returns ConfigurationError
// when scanners is empty, when any one scanner's own criteria have
// contradictory version bounds (min > max after SPEC_FULL.md §6 overrides
// are applied) — a misconfiguration that would make that scanner's cache
// never hit — when a scanner implements none of the three call shapes, when
// a reader or writer implements neither storage flavor, or when dl is nil.
func New(
	cfg Config,
	resolver provenance.PackageResolver,
	nestedResolver provenance.NestedResolver,
	scanners []scanner.Backend,
	readers []any,
	writers []any,
	dl downloader.Downloader,
	logf func(format string, args ...any),
) (*Orchestrator, error) {
	if len(scanners) == 0 {
		return nil, &ConfigurationError{Reason: "no scanner backends configured"}
	}
	for _, s := range scanners {
		crit := s.GetScannerCriteria()
		if crit.MinVersion != "" && crit.MaxVersion != "" && scanner.CompareVersions(crit.MinVersion, crit.MaxVersion) > 0 {
			return nil, &ConfigurationError{Reason: "scanner " + s.Name() + " has minVersion greater than maxVersion"}
		}
		if scanner.ShapeOf(s) == scanner.ShapeUnknown {
			return nil, &ConfigurationError{Reason: "scanner " + s.Name() + " implements none of the three recognized call shapes"}
		}
	}
	for _, r := range readers {
		if storage.KindOfReader(r) == storage.ReaderKindUnknown {
			return nil, &ConfigurationError{Reason: "a configured reader implements neither ProvenanceReader nor PackageReader"}
		}
	}
	for _, w := range writers {
		if storage.KindOfWriter(w) == storage.WriterKindUnknown {
			return nil, &ConfigurationError{Reason: "a configured writer implements neither ProvenanceWriter nor PackageWriter"}
		}
	}
	if dl == nil {
		return nil, &ConfigurationError{Reason: "no downloader configured"}
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Orchestrator{
		cfg:            cfg.withDefaults(),
		resolver:       resolver,
		nestedResolver: nestedResolver,
		scanners:       scanners,
		readers:        readers,
		writers:        writers,
		downloader:     dl,
		clock:          clock.System{},
		logf:           logf,
	}, nil
}
