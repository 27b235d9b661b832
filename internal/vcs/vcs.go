// Package vcs abstracts the git operations a Worker needs: creating a
// feature branch, reporting the current branch, resolving a pull
// request url for it, and merging a branch into the integration
// branch. Branching and PR creation for a given feature are out of
// this module's scope to implement against a real forge — the
// interface exists so a concrete implementation (shelling to git and a
// forge CLI) can be swapped for a stub in tests.
package vcs

import "context"

// VCS is the collaborator interface Workers depend on. A null implementation is provided for tests and for dry runs.
type VCS interface {
	// EnsureBranch creates branch (based on the current HEAD) if it
	// does not already exist, and checks it out.
	EnsureBranch(ctx context.Context, branch string) error

	// CurrentBranch reports the name of the currently checked-out
	// branch.
	CurrentBranch(ctx context.Context) (string, error)

	// PRURLForCurrentBranch returns the pull request url associated
	// with the current branch, or "" if none exists yet.
	PRURLForCurrentBranch(ctx context.Context) (string, error)

	// Merge merges branch into the integration branch.
	Merge(ctx context.Context, branch string) error
}

// Null is a no-op VCS for dry runs and unit tests that never shell out.
type Null struct{}

func (Null) EnsureBranch(ctx context.Context, branch string) error { return nil }

func (Null) CurrentBranch(ctx context.Context) (string, error) { return "main", nil }

func (Null) PRURLForCurrentBranch(ctx context.Context) (string, error) { return "", nil }

func (Null) Merge(ctx context.Context, branch string) error { return nil }
