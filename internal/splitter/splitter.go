// Package splitter partitions a single ScanResult produced against a whole
// NestedProvenance tree into one ScanResult per node in that tree, by
// path-prefix (SPEC_FULL.md §4.7). A package-granular backend scans the
// entire package in one pass; the orchestrator needs per-provenance results
// to cache and aggregate correctly.
package splitter

import (
	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
)

// Split assigns every finding in whole to the most specific (longest
// matching prefix) node of nested, producing one ScanResult for every node
// of the tree, including nodes that received no finding, so the
// orchestrator has somewhere to record scanner identity and issues for each
// provenance even when the scan found nothing there.
func Split(whole scanner.ScanResult, nested provenance.NestedProvenance) map[string]scanner.ScanResult {
	entries := nested.PathPrefixes() // sorted descending by prefix length

	byPrefix := make(map[string]*scanner.ScanResult, len(entries))
	for _, e := range entries {
		r := scanner.ScanResult{
			Provenance: e.Provenance,
			Scanner:    whole.Scanner,
			Summary: scanner.ScanSummary{
				StartTime: whole.Summary.StartTime,
				EndTime:   whole.Summary.EndTime,
			},
		}
		byPrefix[e.Prefix] = &r
	}

	assign(whole.Summary.LicenseFindings, entries, byPrefix, func(r *scanner.ScanResult, f scanner.Finding) {
		r.Summary.LicenseFindings = append(r.Summary.LicenseFindings, f)
	})
	assign(whole.Summary.CopyrightFindings, entries, byPrefix, func(r *scanner.ScanResult, f scanner.Finding) {
		r.Summary.CopyrightFindings = append(r.Summary.CopyrightFindings, f)
	})

	// Issues are not path-scoped; every node of the tree gets a copy so no
	// provenance silently drops a failure the whole-tree scan reported.
	for _, r := range byPrefix {
		r.Summary.Issues = whole.Summary.Issues
	}

	out := make(map[string]scanner.ScanResult, len(byPrefix))
	for _, e := range entries {
		r := *byPrefix[e.Prefix]
		out[e.Provenance.CacheKey()] = r
	}
	return out
}

func assign(findings []scanner.Finding, entries []provenance.PrefixEntry, byPrefix map[string]*scanner.ScanResult, add func(*scanner.ScanResult, scanner.Finding)) {
	for _, f := range findings {
		for _, e := range entries {
			if e.Matches(f.Location.Path) {
				add(byPrefix[e.Prefix], f)
				break // entries is sorted longest-prefix-first: first match wins
			}
		}
	}
}
