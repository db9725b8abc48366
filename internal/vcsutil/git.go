// Package vcsutil wraps go-git for the two things the orchestration core
// needs from a real VCS: resolving a requested revision to a concrete commit,
// and enumerating the git submodules pinned at a given commit. It has no
// dependency on the provenance package so both the resolver and the
// downloader can share it without an import cycle.
package vcsutil

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Submodule is a submodule pinned at a specific commit in a parent repo.
type Submodule struct {
	Path string
	URL  string
	Hash string
}

// ResolveRevision resolves a branch or tag to the full commit hash it
// currently points to, and returns a full 40-character SHA unchanged; an
// abbreviated SHA is not resolved. It uses a remote ref listing so no
// clone is required (SPEC_FULL.md §4.1: "HEAD-probe the artifact URL,
// resolve the VCS revision to an immutable commit").
func ResolveRevision(ctx context.Context, url, requested string) (string, error) {
	if plumbing.IsHash(requested) && len(requested) == 40 {
		return requested, nil
	}

	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("list remote refs for %s: %w", url, err)
	}

	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(requested),
		plumbing.NewTagReferenceName(requested),
	}
	if requested == "" || requested == "HEAD" {
		candidates = append(candidates, plumbing.HEAD)
	}

	for _, ref := range refs {
		for _, want := range candidates {
			if ref.Name() == want {
				return ref.Hash().String(), nil
			}
		}
		if requested != "" && ref.Name().Short() == requested {
			return ref.Hash().String(), nil
		}
	}

	return "", fmt.Errorf("revision %q not found at %s", requested, url)
}

// CloneAt performs a full clone of url (all branches and tags), checking out
// revision, into dir.
// The caller owns dir and must remove it when done.
func CloneAt(ctx context.Context, url, revision, dir string) (*git.Repository, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          url,
		SingleBranch: false,
		Tags:         git.AllTags,
	})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Hash:  plumbing.NewHash(revision),
		Force: true,
	}); err != nil {
		return nil, fmt.Errorf("checkout %s at %s: %w", url, revision, err)
	}
	return repo, nil
}

// Submodules returns every git submodule pinned at the given (already
// checked-out) revision of repo, reading the pinned commit straight from the
// tree entry (filemode.Submodule) rather than cloning each submodule.
func Submodules(repo *git.Repository, revision string) ([]Submodule, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	subs, err := wt.Submodules()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read submodules: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil
	}

	commit, err := repo.CommitObject(plumbing.NewHash(revision))
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", revision, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	out := make([]Submodule, 0, len(subs))
	for _, sm := range subs {
		cfg := sm.Config()
		entry, err := tree.FindEntry(cfg.Path)
		if err != nil || entry.Mode != filemode.Submodule {
			continue // submodule declared but not present at this revision
		}
		out = append(out, Submodule{
			Path: cfg.Path,
			URL:  cfg.URL,
			Hash: entry.Hash.String(),
		})
	}
	return out, nil
}

// IsAuthError reports whether err looks like a transport authentication
// failure, used by callers to distinguish DownloadError causes for logging.
func IsAuthError(err error) bool {
	return errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed)
}
