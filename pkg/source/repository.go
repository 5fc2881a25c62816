package source

import (
	"errors"
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v5"
)

// ErrNotRepository is returned when the directory is not inside a Git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Revision describes the HEAD commit of a work tree.
type Revision struct {
	SHA       string    `json:"sha"`
	Branch    string    `json:"branch,omitempty"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Dirty     bool      `json:"dirty"`
}

// Short returns the abbreviated SHA, suffixed with "-dirty" when the work
// tree has uncommitted changes.
func (r *Revision) Short() string {
	if r == nil {
		return ""
	}
	sha := r.SHA
	if len(sha) > 12 {
		sha = sha[:12]
	}
	if r.Dirty {
		return sha + "-dirty"
	}
	return sha
}

// Describe opens the repository containing dir (searching parent
// directories) and returns its HEAD revision.
func Describe(dir string) (*Revision, error) {
	return describe(dir, true)
}

// DescribeClean is like Describe but skips the work tree status scan, which
// can be slow on large trees.
func DescribeClean(dir string) (*Revision, error) {
	return describe(dir, false)
}

func describe(dir string, withStatus bool) (*Revision, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, ErrNotRepository
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	rev := &Revision{
		SHA:       commit.Hash.String(),
		Author:    commit.Author.Name,
		Timestamp: commit.Author.When,
		Message:   commit.Message,
	}
	if ref.Name().IsBranch() {
		rev.Branch = ref.Name().Short()
	}

	if withStatus {
		wt, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("failed to get worktree: %w", err)
		}
		status, err := wt.Status()
		if err != nil {
			return nil, fmt.Errorf("failed to get worktree status: %w", err)
		}
		rev.Dirty = !status.IsClean()
	}

	return rev, nil
}
