package scanner

import (
	"strings"

	"golang.org/x/mod/semver"
)

// compareVersions compares two scanner version strings using semver rules,
// tolerating versions with no "v" prefix (scanner versions are rarely
// written that way).
func compareVersions(a, b string) int {
	return semver.Compare(canonicalSemver(a), canonicalSemver(b))
}

// CompareVersions is the exported form, used by orchestrator construction
// to reject scanners with contradictory min/max criteria.
func CompareVersions(a, b string) int {
	return compareVersions(a, b)
}

func canonicalSemver(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "v0.0.0"
	}
	return v
}
