// Package aibackend implements a scanner.PackageGranularBackend that asks a
// chat model to infer license and copyright signals for a package identity,
// grounded on the teacher's internal/infra/ai/openai.Client and
// internal/application/ai.Service wiring.
package aibackend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bryanwahyu/scanorch/internal/pkgmodel"
	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
)

const (
	Name = "scanorch-ai-inference"
)

type Backend struct {
	client            *client
	resolver          provenance.PackageResolver
	version           string
	configFingerprint string
	criteria          scanner.CriteriaOverride
}

// New wires an AI inference backend. resolver is consulted to stamp the
// provenance onto the ScanResult, since this backend's shape is
// package-granular (it never downloads source itself).
func New(apiKey, model, version, configFingerprint string, resolver provenance.PackageResolver, criteria scanner.CriteriaOverride) *Backend {
	return &Backend{
		client:            newClient(apiKey, model),
		resolver:          resolver,
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

// ScanPackage implements scanner.PackageGranularBackend.
func (b *Backend) ScanPackage(ctx context.Context, pkg pkgmodel.Package) (scanner.ScanResult, error) {
	known, err := b.resolver.Resolve(ctx, pkg, provenance.DefaultPriority)
	if err != nil {
		return scanner.ScanResult{}, fmt.Errorf("resolve provenance for %s: %w", pkg.ID, err)
	}

	start := time.Now()
	resp, err := b.client.infer(ctx, string(pkg.ID), pkg.Artifact.URL, pkg.Vcs.URL)
	summary := scanner.ScanSummary{StartTime: start, EndTime: time.Now()}
	if err != nil {
		summary.Issues = append(summary.Issues, scanner.Issue{
			Severity: scanner.IssueError, Source: Name, Message: err.Error(), Timestamp: time.Now(),
		})
		return scanner.ScanResult{Provenance: known, Scanner: b.Details(), Summary: summary}, nil
	}

	for _, lic := range resp.Licenses {
		summary.LicenseFindings = append(summary.LicenseFindings, scanner.Finding{
			Kind:       scanner.FindingLicense,
			Value:      lic,
			Confidence: resp.Confidence,
		})
	}
	for _, cr := range resp.Copyrights {
		summary.CopyrightFindings = append(summary.CopyrightFindings, scanner.Finding{
			Kind:       scanner.FindingCopyright,
			Value:      cr,
			Confidence: resp.Confidence,
		})
	}

	return scanner.ScanResult{Provenance: known, Scanner: b.Details(), Summary: summary}, nil
}

func decodeResponse(raw string) (modelResponse, error) {
	var out modelResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return modelResponse{}, fmt.Errorf("decode model response: %w", err)
	}
	return out, nil
}
