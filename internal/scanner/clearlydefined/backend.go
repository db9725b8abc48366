// Package clearlydefined implements a scanner.ProvenanceGranularBackend that
// queries a ClearlyDefined-style harvest API for already-computed license
// and copyright facts, keyed by the provenance itself rather than a package
// identity. Grounded on the teacher's plain net/http usage pattern in
// internal/infra/ai/openai (request/response over HTTP) generalized away
// from the OpenAI SDK to a bare REST client, since no example repo ships a
// ClearlyDefined client.
package clearlydefined

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
)

const (
	Name           = "scanorch-clearlydefined"
	defaultBaseURL = "https://api.clearlydefined.io"
)

type Backend struct {
	BaseURL           string
	HTTPClient        *http.Client
	version           string
	configFingerprint string
	criteria          scanner.CriteriaOverride
}

func New(version, configFingerprint string, criteria scanner.CriteriaOverride) *Backend {
	return &Backend{
		BaseURL:           defaultBaseURL,
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		version:           version,
		configFingerprint: configFingerprint,
		criteria:          criteria,
	}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Details() scanner.ScannerDetails {
	return scanner.ScannerDetails{Name: Name, Version: b.version, ConfigFingerprint: b.configFingerprint}
}

func (b *Backend) GetScannerCriteria() scanner.ScannerCriteria {
	return b.criteria.Apply(scanner.ScannerCriteria{NamePattern: Name, MinVersion: b.version, MaxVersion: b.version})
}

type harvestResponse struct {
	Licensed struct {
		Declared string `json:"declared"`
		Facets   struct {
			Core struct {
				Attribution struct {
					Parties []string `json:"parties"`
				} `json:"attribution"`
				Discovered struct {
					Expressions []string `json:"expressions"`
				} `json:"discovered"`
			} `json:"core"`
		} `json:"facets"`
	} `json:"licensed"`
}

// ScanProvenance implements scanner.ProvenanceGranularBackend. Only
// Repository provenance can be mapped onto ClearlyDefined's
// type/provider/namespace/name/revision coordinate scheme; Artifact
// provenance is reported as an issue rather than an error, so the
// orchestrator can still record the attempt.
func (b *Backend) ScanProvenance(ctx context.Context, known provenance.Provenance) (scanner.ScanResult, error) {
	start := time.Now()
	summary := scanner.ScanSummary{StartTime: start}

	coordinate, ok := toCoordinate(known)
	if !ok {
		summary.EndTime = time.Now()
		summary.Issues = append(summary.Issues, scanner.Issue{
			Severity: scanner.IssueInfo, Source: Name,
			Message: "provenance kind not representable as a ClearlyDefined coordinate", Timestamp: time.Now(),
		})
		return scanner.ScanResult{Provenance: known, Scanner: b.Details(), Summary: summary}, nil
	}

	resp, err := b.fetch(ctx, coordinate)
	summary.EndTime = time.Now()
	if err != nil {
		summary.Issues = append(summary.Issues, scanner.Issue{
			Severity: scanner.IssueError, Source: Name, Message: err.Error(), Timestamp: time.Now(),
		})
		return scanner.ScanResult{Provenance: known, Scanner: b.Details(), Summary: summary}, nil
	}

	if resp.Licensed.Declared != "" {
		summary.LicenseFindings = append(summary.LicenseFindings, scanner.Finding{
			Kind: scanner.FindingLicense, Value: resp.Licensed.Declared, Confidence: 0.9,
		})
	}
	for _, expr := range resp.Licensed.Facets.Core.Discovered.Expressions {
		summary.LicenseFindings = append(summary.LicenseFindings, scanner.Finding{
			Kind: scanner.FindingLicense, Value: expr, Confidence: 0.5,
		})
	}
	for _, party := range resp.Licensed.Facets.Core.Attribution.Parties {
		summary.CopyrightFindings = append(summary.CopyrightFindings, scanner.Finding{
			Kind: scanner.FindingCopyright, Value: party, Confidence: 0.5,
		})
	}

	return scanner.ScanResult{Provenance: known, Scanner: b.Details(), Summary: summary}, nil
}

// toCoordinate maps a Repository provenance onto ClearlyDefined's
// git/github.com/<namespace>/<name>/<revision> coordinate shape. Only
// github.com VCS URLs are supported, the common case across the pack.
func toCoordinate(known provenance.Provenance) (string, bool) {
	if known.Kind != provenance.KindRepository || known.ResolvedRevision == "" {
		return "", false
	}
	u, err := url.Parse(known.VcsURL)
	if err != nil || !strings.EqualFold(u.Hostname(), "github.com") {
		return "", false
	}
	path := strings.Trim(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		return "", false
	}
	return fmt.Sprintf("git/%s/%s/%s/%s", u.Hostname(), parts[0], parts[1], known.ResolvedRevision), true
}

func (b *Backend) fetch(ctx context.Context, coordinate string) (harvestResponse, error) {
	reqURL := fmt.Sprintf("%s/definitions/%s", strings.TrimSuffix(b.BaseURL, "/"), coordinate)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return harvestResponse{}, err
	}

	client := b.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return harvestResponse{}, fmt.Errorf("fetch definition: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return harvestResponse{}, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, coordinate)
	}

	var out harvestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return harvestResponse{}, fmt.Errorf("decode definition: %w", err)
	}
	return out, nil
}
