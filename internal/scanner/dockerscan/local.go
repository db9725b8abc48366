// Package dockerscan implements a scanner.LocalBackend that shells out to a
// containerized scancode-toolkit run, grounded directly on the teacher's
// internal/infra/executor/docker/runner.go command-construction and
// exit-code-to-issue mapping.
package dockerscan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/bryanwahyu/scanorch/internal/scanner"
)

const (
	Name  = "scanorch-scancode-docker"
	Image = "scancode/scancode-toolkit:latest"
)

type Backend struct {
	Version           string
	configFingerprint string
	Image             string
	criteria          scanner.CriteriaOverride
}

func New(version, configFingerprint string, criteria scanner.CriteriaOverride) *Backend {
	return &Backend{Version: version, configFingerprint: configFingerprint, Image: Image, criteria: criteria}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Details() scanner.ScannerDetails {
	return scanner.ScannerDetails{Name: Name, Version: b.Version, ConfigFingerprint: b.configFingerprint}
}

func (b *Backend) GetScannerCriteria() scanner.ScannerCriteria {
	return b.criteria.Apply(scanner.ScannerCriteria{NamePattern: Name, MinVersion: b.Version, MaxVersion: b.Version})
}

type scancodeFile struct {
	Path       string `json:"path"`
	Licenses   []struct {
		SPDXLicenseKey string  `json:"spdx_license_key"`
		StartLine      int     `json:"start_line"`
		EndLine        int     `json:"end_line"`
		Score          float64 `json:"score"`
	} `json:"licenses"`
	Copyrights []struct {
		Value     string `json:"copyright"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
	} `json:"copyrights"`
}

type scancodeOutput struct {
	Files []scancodeFile `json:"files"`
}

// ScanPath implements scanner.LocalBackend by running the scancode-toolkit
// container against dir and parsing its JSON report.
func (b *Backend) ScanPath(ctx context.Context, dir string) (scanner.ScanResult, error) {
	start := time.Now()
	summary := scanner.ScanSummary{StartTime: start}

	reportDir, err := os.MkdirTemp("", "scanorch-scancode-*")
	if err != nil {
		return scanner.ScanResult{}, fmt.Errorf("create report dir: %w", err)
	}
	defer os.RemoveAll(reportDir)
	reportPath := filepath.Join(reportDir, "report.json")

	cmd := exec.CommandContext(ctx, "docker", "run", "--rm",
		"-v", fmt.Sprintf("%s:/src:ro", dir),
		"-v", fmt.Sprintf("%s:/out", reportDir),
		b.Image,
		"--license", "--copyright", "--json-pp", "/out/report.json", "/src",
	)

	out, runErr := cmd.CombinedOutput()
	exitCode := 0
	if runErr != nil {
		if ee, ok := runErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			return scanner.ScanResult{}, fmt.Errorf("run scancode: %w, output=%s", runErr, string(out))
		}
	}
	if exitCode != 0 {
		summary.Issues = append(summary.Issues, scanner.Issue{
			Severity: scanner.IssueError, Source: Name,
			Message: fmt.Sprintf("scancode exited %d: %s", exitCode, string(out)), Timestamp: time.Now(),
		})
	}

	report, err := os.ReadFile(reportPath)
	if err != nil {
		summary.EndTime = time.Now()
		summary.Issues = append(summary.Issues, scanner.Issue{
			Severity: scanner.IssueError, Source: Name, Message: "missing report: " + err.Error(), Timestamp: time.Now(),
		})
		return scanner.ScanResult{Scanner: b.Details(), Summary: summary}, nil
	}

	var parsed scancodeOutput
	if err := json.Unmarshal(report, &parsed); err != nil {
		summary.EndTime = time.Now()
		summary.Issues = append(summary.Issues, scanner.Issue{
			Severity: scanner.IssueError, Source: Name, Message: "decode report: " + err.Error(), Timestamp: time.Now(),
		})
		return scanner.ScanResult{Scanner: b.Details(), Summary: summary}, nil
	}

	for _, file := range parsed.Files {
		for _, lic := range file.Licenses {
			summary.LicenseFindings = append(summary.LicenseFindings, scanner.Finding{
				Kind:       scanner.FindingLicense,
				Value:      lic.SPDXLicenseKey,
				Location:   scanner.TextLocation{Path: file.Path, StartLine: lic.StartLine, EndLine: lic.EndLine},
				Confidence: lic.Score / 100,
			})
		}
		for _, cr := range file.Copyrights {
			summary.CopyrightFindings = append(summary.CopyrightFindings, scanner.Finding{
				Kind:     scanner.FindingCopyright,
				Value:    cr.Value,
				Location: scanner.TextLocation{Path: file.Path, StartLine: cr.StartLine, EndLine: cr.EndLine},
			})
		}
	}
	summary.EndTime = time.Now()
	return scanner.ScanResult{Scanner: b.Details(), Summary: summary}, nil
}
