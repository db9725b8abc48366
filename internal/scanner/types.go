// Package scanner defines the data model and interface contract scanner
// backends satisfy (SPEC_FULL.md §3-4.3).
package scanner

import (
	"time"

	"github.com/bryanwahyu/scanorch/internal/provenance"
)

// TextLocation pins a finding to a span of text within a provenance's root.
type TextLocation struct {
	Path      string `json:"path"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

// FindingKind distinguishes license from copyright findings.
type FindingKind string

const (
	FindingLicense   FindingKind = "license"
	FindingCopyright FindingKind = "copyright"
)

// Finding is a single license or copyright observation.
type Finding struct {
	Kind       FindingKind  `json:"kind"`
	Value      string       `json:"value"` // license expression or copyright statement text
	Location   TextLocation `json:"location"`
	Confidence float64      `json:"confidence,omitempty"`
}

// IssueSeverity mirrors the teacher's scanerrors severity-as-phase pattern,
// generalized to a closed enum.
type IssueSeverity string

const (
	IssueInfo    IssueSeverity = "INFO"
	IssueWarning IssueSeverity = "WARNING"
	IssueError   IssueSeverity = "ERROR"
)

// Issue is a problem surfaced while producing a ScanResult, carried instead
// of aborting the run (SPEC_FULL.md §7).
type Issue struct {
	Severity  IssueSeverity `json:"severity"`
	Source    string        `json:"source"` // e.g. "Downloader", scanner name
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// ScanSummary bundles everything one scanner invocation produced for one
// provenance.
type ScanSummary struct {
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	VerificationCode  string    `json:"verificationCode,omitempty"`
	LicenseFindings   []Finding `json:"licenseFindings,omitempty"`
	CopyrightFindings []Finding `json:"copyrightFindings,omitempty"`
	Issues            []Issue   `json:"issues,omitempty"`
}

// ScannerDetails identifies exactly which scanner, version, and
// configuration produced a result.
type ScannerDetails struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	ConfigFingerprint string `json:"configFingerprint"`
}

// ScannerCriteria is the cache-lookup predicate from SPEC_FULL.md §3.
type ScannerCriteria struct {
	NamePattern       string
	MinVersion        string
	MaxVersion        string
	ConfigCompatible  func(fingerprint string) bool
}

// Satisfies implements the invariant from SPEC_FULL.md §3: a cached result
// with details D satisfies criteria C iff the name matches, the version
// falls in [min, max], and the config predicate holds.
func (c ScannerCriteria) Satisfies(d ScannerDetails) bool {
	if c.NamePattern != "" && c.NamePattern != d.Name {
		return false
	}
	if c.MinVersion != "" && compareVersions(d.Version, c.MinVersion) < 0 {
		return false
	}
	if c.MaxVersion != "" && compareVersions(d.Version, c.MaxVersion) > 0 {
		return false
	}
	if c.ConfigCompatible != nil && !c.ConfigCompatible(d.ConfigFingerprint) {
		return false
	}
	return true
}

// CriteriaOverride carries the optional config.yaml overrides for one
// scanner's cache-lookup criteria (spec.md §6's
// "<scannerName>.criteria.<property>" keys: minScannerVersion,
// maxScannerVersion, regScannerName, configuration).
type CriteriaOverride struct {
	NamePattern   string
	MinVersion    string
	MaxVersion    string
	Configuration string
}

// Apply overlays any non-empty override field onto own, the backend's
// default criteria, per spec.md §6. A non-empty Configuration relaxes
// ConfigCompatible to an exact-string match against the given value.
func (o CriteriaOverride) Apply(own ScannerCriteria) ScannerCriteria {
	out := own
	if o.NamePattern != "" {
		out.NamePattern = o.NamePattern
	}
	if o.MinVersion != "" {
		out.MinVersion = o.MinVersion
	}
	if o.MaxVersion != "" {
		out.MaxVersion = o.MaxVersion
	}
	if o.Configuration != "" {
		want := o.Configuration
		out.ConfigCompatible = func(fingerprint string) bool { return fingerprint == want }
	}
	return out
}

// ScanResult bundles a provenance, the scanner that produced the summary,
// and the summary itself.
type ScanResult struct {
	Provenance provenance.Provenance `json:"-"`
	Scanner    ScannerDetails        `json:"scanner"`
	Summary    ScanSummary           `json:"summary"`
}
