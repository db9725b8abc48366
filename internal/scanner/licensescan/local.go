// Package licensescan implements a native Go scanner.LocalBackend that
// matches SPDX license identifiers and copyright statements in a
// materialized directory tree without shelling out. Grounded on the
// teacher's counts/duration bookkeeping style in
// internal/infra/executor/docker/runner.go, minus the exec.Cmd.
package licensescan

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bryanwahyu/scanorch/internal/scanner"
)

const (
	Name    = "scanorch-license-native"
	Version = "1.0.0"
)

var copyrightPattern = regexp.MustCompile(`(?i)copyright\s+(\(c\)\s*)?\d{4}(-\d{4})?\s+[^\n]{1,120}`)

// spdxIdentifiers is a small, curated set; real deployments would load a
// larger table, but the matching mechanics are the point here.
var spdxIdentifiers = []string{
	"MIT", "Apache-2.0", "BSD-2-Clause", "BSD-3-Clause", "GPL-2.0", "GPL-3.0",
	"LGPL-2.1", "LGPL-3.0", "MPL-2.0", "ISC", "Unlicense",
}

var licenseFileNames = map[string]bool{
	"license": true, "license.md": true, "license.txt": true,
	"licence": true, "copying": true, "notice": true,
}

type Backend struct {
	configFingerprint string
	criteria          scanner.CriteriaOverride
}

func New(configFingerprint string, criteria scanner.CriteriaOverride) *Backend {
	return &Backend{configFingerprint: configFingerprint, criteria: criteria}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Details() scanner.ScannerDetails {
	return scanner.ScannerDetails{Name: Name, Version: Version, ConfigFingerprint: b.configFingerprint}
}

func (b *Backend) GetScannerCriteria() scanner.ScannerCriteria {
	return b.criteria.Apply(scanner.ScannerCriteria{NamePattern: Name, MinVersion: Version, MaxVersion: Version})
}

// ScanPath implements scanner.LocalBackend. The caller (the orchestrator)
// stamps the provenance onto the returned result.
func (b *Backend) ScanPath(ctx context.Context, dir string) (scanner.ScanResult, error) {
	start := time.Now()
	summary := scanner.ScanSummary{StartTime: start}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}

		base := strings.ToLower(d.Name())
		if licenseFileNames[base] {
			findings, ferr := scanLicenseFile(path, rel)
			if ferr == nil {
				summary.LicenseFindings = append(summary.LicenseFindings, findings...)
			} else {
				summary.Issues = append(summary.Issues, scanner.Issue{
					Severity: scanner.IssueWarning, Source: Name, Message: ferr.Error(), Timestamp: time.Now(),
				})
			}
		}

		if isTextLikely(base) {
			copyrights, cerr := scanCopyrights(path, rel)
			if cerr == nil {
				summary.CopyrightFindings = append(summary.CopyrightFindings, copyrights...)
			}
		}
		return nil
	})
	summary.EndTime = time.Now()
	if err != nil {
		summary.Issues = append(summary.Issues, scanner.Issue{
			Severity: scanner.IssueError, Source: Name, Message: err.Error(), Timestamp: time.Now(),
		})
	}

	return scanner.ScanResult{Scanner: b.Details(), Summary: summary}, nil
}

func scanLicenseFile(path, rel string) ([]scanner.Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	var findings []scanner.Finding
	for _, id := range spdxIdentifiers {
		if matchesLicenseText(text, id) {
			findings = append(findings, scanner.Finding{
				Kind:       scanner.FindingLicense,
				Value:      id,
				Location:   scanner.TextLocation{Path: rel, StartLine: 1, EndLine: strings.Count(text, "\n") + 1},
				Confidence: 0.8,
			})
		}
	}
	return findings, nil
}

func matchesLicenseText(text, spdxID string) bool {
	lower := strings.ToLower(text)
	switch spdxID {
	case "MIT":
		return strings.Contains(lower, "permission is hereby granted, free of charge")
	case "Apache-2.0":
		return strings.Contains(lower, "apache license") && strings.Contains(lower, "version 2.0")
	case "BSD-2-Clause", "BSD-3-Clause":
		return strings.Contains(lower, "redistribution and use in source and binary forms")
	case "GPL-2.0":
		return strings.Contains(lower, "gnu general public license") && strings.Contains(lower, "version 2")
	case "GPL-3.0":
		return strings.Contains(lower, "gnu general public license") && strings.Contains(lower, "version 3")
	case "LGPL-2.1", "LGPL-3.0":
		return strings.Contains(lower, "lesser general public license")
	case "MPL-2.0":
		return strings.Contains(lower, "mozilla public license")
	case "ISC":
		return strings.Contains(lower, "permission to use, copy, modify, and/or distribute this software")
	case "Unlicense":
		return strings.Contains(lower, "this is free and unencumbered software")
	default:
		return false
	}
}

func isTextLikely(base string) bool {
	skip := []string{".png", ".jpg", ".jpeg", ".gif", ".ico", ".zip", ".tar", ".gz", ".bin", ".exe", ".so", ".dylib", ".dll"}
	for _, ext := range skip {
		if strings.HasSuffix(base, ext) {
			return false
		}
	}
	return true
}

func scanCopyrights(path, rel string) ([]scanner.Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var findings []scanner.Finding
	scanner_ := bufio.NewScanner(f)
	lineNo := 0
	for scanner_.Scan() {
		lineNo++
		line := scanner_.Text()
		if m := copyrightPattern.FindString(line); m != "" {
			findings = append(findings, scanner.Finding{
				Kind:       scanner.FindingCopyright,
				Value:      strings.TrimSpace(m),
				Location:   scanner.TextLocation{Path: rel, StartLine: lineNo, EndLine: lineNo},
				Confidence: 0.6,
			})
		}
		if lineNo > 2000 {
			break // don't read unbounded generated files line by line
		}
	}
	return findings, scanner_.Err()
}
