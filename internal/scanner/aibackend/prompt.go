package aibackend

import "fmt"

// systemPrompt pins the model to a single JSON object, the same strict
// contract the teacher's internal/infra/ai/prompt package enforces.
func systemPrompt() string {
	return `You are a software composition analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- licenses is an array of SPDX license identifiers you believe apply, most confident first.
- copyrights is an array of copyright statement strings you can infer.
- confidence is a float between 0 and 1 reflecting how certain you are given only the package identity provided (you were not given file contents).

Schema (example with empty values):
{
  "licenses": ["<spdx-id>"],
  "copyrights": ["<copyright statement>"],
  "confidence": 0.0
}`
}

// userPrompt builds a compact message around a package identity, mirroring
// the teacher's GetUserPrompt(fileURL) shape.
func userPrompt(packageID, artifactURL, vcsURL string) string {
	return fmt.Sprintf(
		"Infer the most likely license(s) and copyright holder(s) for this package. Respond with JSON per schema.\nPackage ID: %s\nArtifact URL: %s\nRepository URL: %s",
		packageID, artifactURL, vcsURL,
	)
}

type modelResponse struct {
	Licenses   []string `json:"licenses"`
	Copyrights []string `json:"copyrights"`
	Confidence float64  `json:"confidence"`
}
