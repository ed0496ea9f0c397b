// Package gitinfo resolves where a post lives in its repository and which
// commit it was built from.
package gitinfo

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// shortHashLen matches git's default abbreviated commit length.
const shortHashLen = 7

// Info is the repository metadata of one file. Both fields are empty when
// the file is not inside a git repository.
type Info struct {
	SourcePath string // slash-separated, relative to the repository root
	Revision   string // abbreviated HEAD commit
}

// Lookup finds the repository enclosing path and reports the repository
// relative path and HEAD revision. A path outside any repository yields a
// zero Info and no error; a repository without commits yields no Revision.
func Lookup(path string) (Info, error) {
	abs, err := canonical(path)
	if err != nil {
		return Info{}, err
	}

	repo, err := git.PlainOpenWithOptions(filepath.Dir(abs), &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("open repository for %s: %w", path, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no working tree to be relative to.
		return Info{}, nil
	}
	root, err := canonical(wt.Filesystem.Root())
	if err != nil {
		return Info{}, err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return Info{}, fmt.Errorf("relativize %s: %w", path, err)
	}
	info := Info{SourcePath: filepath.ToSlash(rel)}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return info, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	info.Revision = head.Hash().String()[:shortHashLen]
	return info, nil
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path of %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
