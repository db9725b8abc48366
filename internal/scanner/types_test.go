package scanner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/scanorch/internal/scanner"
)

func TestScannerCriteria_Satisfies(t *testing.T) {
	crit := scanner.ScannerCriteria{
		NamePattern: "acme-scanner",
		MinVersion:  "1.0.0",
		MaxVersion:  "2.0.0",
	}

	assert.True(t, crit.Satisfies(scanner.ScannerDetails{Name: "acme-scanner", Version: "1.5.0"}))
	assert.False(t, crit.Satisfies(scanner.ScannerDetails{Name: "other-scanner", Version: "1.5.0"}))
	assert.False(t, crit.Satisfies(scanner.ScannerDetails{Name: "acme-scanner", Version: "0.9.0"}))
	assert.False(t, crit.Satisfies(scanner.ScannerDetails{Name: "acme-scanner", Version: "2.1.0"}))
}

func TestScannerCriteria_ConfigPredicate(t *testing.T) {
	crit := scanner.ScannerCriteria{
		ConfigCompatible: func(fingerprint string) bool { return fingerprint == "exact" },
	}
	assert.True(t, crit.Satisfies(scanner.ScannerDetails{ConfigFingerprint: "exact"}))
	assert.False(t, crit.Satisfies(scanner.ScannerDetails{ConfigFingerprint: "other"}))
}

func TestShapeOf(t *testing.T) {
	assert.Equal(t, scanner.ShapeLocal, scanner.ShapeOf(fakeLocal{}))
	assert.Equal(t, scanner.ShapeUnknown, scanner.ShapeOf(fakeBareBackend{}))
}

type fakeBareBackend struct{}

func (fakeBareBackend) Name() string                             { return "bare" }
func (fakeBareBackend) Details() scanner.ScannerDetails           { return scanner.ScannerDetails{} }
func (fakeBareBackend) GetScannerCriteria() scanner.ScannerCriteria { return scanner.ScannerCriteria{} }

type fakeLocal struct{ fakeBareBackend }

func (fakeLocal) ScanPath(ctx context.Context, dir string) (scanner.ScanResult, error) {
	return scanner.ScanResult{}, nil
}
