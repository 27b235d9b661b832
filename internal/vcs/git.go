package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Git drives the system git binary against a checked-out working copy.
// PR url lookup shells to the GitHub CLI (gh) when present and returns
// "" if it is not installed or the branch has no open PR — a missing
// forge integration is not a fatal error for a worker.
type Git struct {
	RepoPath          string
	IntegrationBranch string
}

// NewGit returns a Git driver rooted at repoPath, merging feature
// branches into integrationBranch.
func NewGit(repoPath, integrationBranch string) *Git {
	return &Git{RepoPath: repoPath, IntegrationBranch: integrationBranch}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.RepoPath
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, errOut.String())
	}
	return strings.TrimSpace(out.String()), nil
}

func (g *Git) EnsureBranch(ctx context.Context, branch string) error {
	if _, err := g.run(ctx, "rev-parse", "--verify", branch); err == nil {
		_, err := g.run(ctx, "checkout", branch)
		return err
	}
	_, err := g.run(ctx, "checkout", "-b", branch)
	return err
}

func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

func (g *Git) PRURLForCurrentBranch(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", "pr", "view", "--json", "url", "--jq", ".url")
	cmd.Dir = g.RepoPath
	out, err := cmd.Output()
	if err != nil {
		// No gh binary, or no PR yet for this branch: not fatal.
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

// Merge checks out the integration branch, attempts a merge that always
// records a merge commit (--no-ff), and
// on conflict aborts and rebases the feature branch before retrying —
// the same abort-then-rebase recovery a human would reach for.
func (g *Git) Merge(ctx context.Context, branch string) error {
	if _, err := g.run(ctx, "checkout", g.IntegrationBranch); err != nil {
		return fmt.Errorf("vcs: checkout %s: %w", g.IntegrationBranch, err)
	}
	if _, err := g.run(ctx, "merge", "--no-ff", branch); err == nil {
		return nil
	}

	_, _ = g.run(ctx, "merge", "--abort")
	if _, err := g.run(ctx, "checkout", branch); err != nil {
		return fmt.Errorf("vcs: checkout %s for rebase: %w", branch, err)
	}
	if _, err := g.run(ctx, "rebase", g.IntegrationBranch); err != nil {
		_, _ = g.run(ctx, "rebase", "--abort")
		return fmt.Errorf("vcs: rebase %s onto %s failed, needs manual resolution: %w", branch, g.IntegrationBranch, err)
	}
	if _, err := g.run(ctx, "checkout", g.IntegrationBranch); err != nil {
		return fmt.Errorf("vcs: checkout %s: %w", g.IntegrationBranch, err)
	}
	_, err := g.run(ctx, "merge", "--no-ff", branch)
	return err
}
