package splitter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scanorch/internal/provenance"
	"github.com/bryanwahyu/scanorch/internal/scanner"
	"github.com/bryanwahyu/scanorch/internal/splitter"
)

func TestSplit_AssignsByLongestMatchingPrefix(t *testing.T) {
	root := provenance.NewArtifact("root-url", "")
	sub := provenance.NewArtifact("sub-url", "")
	nested := provenance.NewNestedProvenance(root, map[string]provenance.Provenance{"sub/lib": sub})

	whole := scanner.ScanResult{
		Scanner: scanner.ScannerDetails{Name: "test-scanner", Version: "1.0.0"},
		Summary: scanner.ScanSummary{
			LicenseFindings: []scanner.Finding{
				{Kind: scanner.FindingLicense, Value: "MIT", Location: scanner.TextLocation{Path: "src/a.c"}},
				{Kind: scanner.FindingLicense, Value: "MIT", Location: scanner.TextLocation{Path: "sub/lib/x.c"}},
				{Kind: scanner.FindingLicense, Value: "Apache-2.0", Location: scanner.TextLocation{Path: "sub/libother/y.c"}},
			},
		},
	}

	out := splitter.Split(whole, nested)
	require.Len(t, out, 2)

	rootResult := out[root.CacheKey()]
	subResult := out[sub.CacheKey()]

	require.Len(t, rootResult.Summary.LicenseFindings, 2)
	assert.ElementsMatch(t, []string{"src/a.c", "sub/libother/y.c"}, paths(rootResult.Summary.LicenseFindings))

	require.Len(t, subResult.Summary.LicenseFindings, 1)
	assert.Equal(t, "sub/lib/x.c", subResult.Summary.LicenseFindings[0].Location.Path)
}

func TestSplit_SoundnessUnionAndPartition(t *testing.T) {
	root := provenance.NewArtifact("root-url", "")
	sub := provenance.NewArtifact("sub-url", "")
	nested := provenance.NewNestedProvenance(root, map[string]provenance.Provenance{"sub": sub})

	findings := []scanner.Finding{
		{Value: "a", Location: scanner.TextLocation{Path: "x.c"}},
		{Value: "b", Location: scanner.TextLocation{Path: "sub/y.c"}},
		{Value: "c", Location: scanner.TextLocation{Path: "sub/nested/z.c"}},
	}
	whole := scanner.ScanResult{Summary: scanner.ScanSummary{CopyrightFindings: findings}}

	out := splitter.Split(whole, nested)

	var total int
	seen := map[string]int{}
	for _, r := range out {
		total += len(r.Summary.CopyrightFindings)
		for _, f := range r.Summary.CopyrightFindings {
			seen[f.Value]++
		}
	}
	assert.Equal(t, len(findings), total)
	for _, f := range findings {
		assert.Equal(t, 1, seen[f.Value], "finding %q must appear in exactly one slice", f.Value)
	}
}

func paths(findings []scanner.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Location.Path
	}
	return out
}
