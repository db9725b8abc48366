package provenance

import "strings"

// NestedProvenance is the rooted tree described in SPEC_FULL.md §3: a root
// KnownProvenance plus sub-repositories mounted at normal-form relative
// paths. The root path "" is never present as a key in SubRepositories.
type NestedProvenance struct {
	Root             Provenance
	SubRepositories  map[string]Provenance // in-tree path -> sub-provenance
}

// NewNestedProvenance builds a NestedProvenance and normalizes paths.
func NewNestedProvenance(root Provenance, subs map[string]Provenance) NestedProvenance {
	normalized := make(map[string]Provenance, len(subs))
	for path, p := range subs {
		np := normalizePath(path)
		if np == "" {
			continue // root path is never a sub-repository key
		}
		normalized[np] = p
	}
	return NestedProvenance{Root: root, SubRepositories: normalized}
}

// All returns every provenance in the tree: the root followed by each
// sub-repository, in a deterministic (sorted by path) order.
func (n NestedProvenance) All() []Provenance {
	out := make([]Provenance, 0, 1+len(n.SubRepositories))
	out = append(out, n.Root)
	for _, path := range n.sortedPaths() {
		out = append(out, n.SubRepositories[path])
	}
	return out
}

func (n NestedProvenance) sortedPaths() []string {
	paths := make([]string, 0, len(n.SubRepositories))
	for p := range n.SubRepositories {
		paths = append(paths, p)
	}
	// Simple insertion sort keeps this dependency-free and stable; trees are small.
	for i := 1; i < len(paths); i++ {
		for j := i; j > 0 && paths[j-1] > paths[j]; j-- {
			paths[j-1], paths[j] = paths[j], paths[j-1]
		}
	}
	return paths
}

// PathPrefixes returns (prefix, provenance) pairs for "" (root) and every
// sub-repository, sorted by descending prefix length as required by the
// result splitter (SPEC_FULL.md §4.7).
func (n NestedProvenance) PathPrefixes() []PrefixEntry {
	entries := make([]PrefixEntry, 0, 1+len(n.SubRepositories))
	entries = append(entries, PrefixEntry{Prefix: "", Provenance: n.Root})
	for path, p := range n.SubRepositories {
		entries = append(entries, PrefixEntry{Prefix: path, Provenance: p})
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && len(entries[j-1].Prefix) < len(entries[j].Prefix); j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
	return entries
}

// PrefixEntry is one (path-prefix, provenance) pair used by the splitter.
type PrefixEntry struct {
	Prefix     string
	Provenance Provenance
}

// Matches implements the path-boundary-prefix rule from SPEC_FULL.md §4.7:
// prefix P matches path P' iff P == "", P' == P, or P' starts with P + "/".
func (e PrefixEntry) Matches(path string) bool {
	if e.Prefix == "" {
		return true
	}
	if path == e.Prefix {
		return true
	}
	return strings.HasPrefix(path, e.Prefix+"/")
}

// normalizePath puts a relative directory path into normal form: no "./",
// no trailing "/".
func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimSuffix(path, "/")
	if path == "." {
		return ""
	}
	return path
}
