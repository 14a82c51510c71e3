package changeset

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// ChangeSet is the ordered list of candidate files for one run.
// Paths are slash separated and relative to Root.
type ChangeSet struct {
	Root  string
	Paths []string
}

// Empty reports whether there is nothing to process.
func (c ChangeSet) Empty() bool { return len(c.Paths) == 0 }

// Abs returns the filesystem path for a change-set entry.
func (c ChangeSet) Abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// Resolver produces the change set for a run. Resolution never fails: any
// problem discovering changes yields an empty set.
type Resolver interface {
	Resolve(ctx context.Context) ChangeSet
}

// GitResolver lists files changed on HEAD relative to the merge base with a
// base branch, the equivalent of `git diff --name-only <remote>/<base>...HEAD`.
type GitResolver struct {
	Dir         string
	Remote      string
	Base        string
	Extensions  []string
	ExcludeDirs []string
}

func (g *GitResolver) Resolve(ctx context.Context) ChangeSet {
	root, paths, err := g.diff(ctx)
	if err != nil {
		slog.Warn("Could not resolve changed files; treating change set as empty",
			"dir", g.Dir,
			"base", g.Base,
			"error", err,
		)
		return ChangeSet{Root: g.Dir}
	}
	kept := Filter(paths, g.Extensions, g.ExcludeDirs)
	slog.Debug("Resolved change set",
		"root", root,
		"base", g.Base,
		"changed", len(paths),
		"candidates", len(kept),
	)
	return ChangeSet{Root: root, Paths: kept}
}

func (g *GitResolver) diff(ctx context.Context) (string, []string, error) {
	dir := g.Dir
	if dir == "" {
		dir = "."
	}
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", nil, fmt.Errorf("opening worktree: %w", err)
	}
	root := wt.Filesystem.Root()

	head, err := repo.Head()
	if err != nil {
		return "", nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", nil, fmt.Errorf("loading HEAD commit: %w", err)
	}

	baseHash, err := g.resolveBase(repo)
	if err != nil {
		return "", nil, err
	}
	baseCommit, err := repo.CommitObject(baseHash)
	if err != nil {
		return "", nil, fmt.Errorf("loading base commit %s: %w", baseHash, err)
	}

	bases, err := baseCommit.MergeBase(headCommit)
	if err != nil {
		return "", nil, fmt.Errorf("computing merge base: %w", err)
	}
	if len(bases) == 0 {
		return "", nil, fmt.Errorf("no merge base between %s and HEAD", g.Base)
	}

	fromTree, err := bases[0].Tree()
	if err != nil {
		return "", nil, fmt.Errorf("loading merge-base tree: %w", err)
	}
	toTree, err := headCommit.Tree()
	if err != nil {
		return "", nil, fmt.Errorf("loading HEAD tree: %w", err)
	}

	changes, err := object.DiffTreeWithOptions(ctx, fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return "", nil, fmt.Errorf("diffing trees: %w", err)
	}

	paths := make([]string, 0, len(changes))
	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			return "", nil, fmt.Errorf("classifying change: %w", err)
		}
		// A deleted file has nothing left to remediate.
		if action == merkletrie.Delete {
			continue
		}
		paths = append(paths, ch.To.Name)
	}
	return root, paths, nil
}

// resolveBase looks the base up as a remote-tracking branch, then as a
// local branch, then as an arbitrary revision.
func (g *GitResolver) resolveBase(repo *gogit.Repository) (plumbing.Hash, error) {
	base := g.Base
	if base == "" {
		base = "main"
	}
	remote := g.Remote
	if remote == "" {
		remote = "origin"
	}

	for _, name := range []plumbing.ReferenceName{
		plumbing.NewRemoteReferenceName(remote, base),
		plumbing.NewBranchReferenceName(base),
	} {
		if ref, err := repo.Reference(name, true); err == nil {
			return ref.Hash(), nil
		}
	}
	h, err := repo.ResolveRevision(plumbing.Revision(base))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving base %q: %w", base, err)
	}
	return *h, nil
}

// StaticResolver returns a fixed list of paths, filtered like a git diff.
type StaticResolver struct {
	Root        string
	Paths       []string
	Extensions  []string
	ExcludeDirs []string
}

func (s *StaticResolver) Resolve(context.Context) ChangeSet {
	paths := make([]string, 0, len(s.Paths))
	for _, p := range s.Paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paths = append(paths, strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./"))
	}
	return ChangeSet{Root: s.Root, Paths: Filter(paths, s.Extensions, s.ExcludeDirs)}
}

// Filter keeps paths with one of the given extensions that are not under an
// excluded directory. Duplicates are dropped and order is preserved. An
// empty extension list keeps every extension.
func Filter(paths, extensions, excludeDirs []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] || !hasExtension(p, extensions) || isExcluded(p, excludeDirs) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func hasExtension(p string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(p))
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func isExcluded(p string, dirs []string) bool {
	for _, d := range dirs {
		d = strings.Trim(filepath.ToSlash(d), "/")
		if d == "" {
			continue
		}
		if strings.HasPrefix(p, d+"/") || strings.Contains(p, "/"+d+"/") {
			return true
		}
	}
	return false
}
