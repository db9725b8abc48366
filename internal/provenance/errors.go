package provenance

import "fmt"

// ResolutionError is returned by a PackageResolver when validation
// is enabled and fails (SPEC_FULL.md §4.1). A resolver that never validates
// never returns this error.
type ResolutionError struct {
	PackageID string
	Reason    string
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve provenance for package %s: %s: %v", e.PackageID, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve provenance for package %s: %s", e.PackageID, e.Reason)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
