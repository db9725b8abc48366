package orchestrator

import "fmt"

// ConfigurationError is returned synchronously from New when the
// orchestrator cannot be constructed (SPEC_FULL.md §7); the run never
// starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return fmt.Sprintf("orchestrator configuration: %s", e.Reason) }

// ScannerError wraps a backend invocation failure or timeout; it is never
// returned from Run, only carried as an Issue on a synthesized ScanResult.
type ScannerError struct {
	ScannerName string
	Err         error
}

func (e *ScannerError) Error() string { return fmt.Sprintf("scanner %s: %v", e.ScannerName, e.Err) }

func (e *ScannerError) Unwrap() error { return e.Err }
