// Package worktree wraps the git CLI operations the isolation manager
// needs: branch creation, isolated working copies, and merges. Every
// operation takes a context so callers can impose timeouts; command
// failures surface as typed errors carrying the operation name, exit
// status, and captured output.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	errs "github.com/stride-dev/stride/internal/errors"
)

// maxOutputLen bounds the diagnostic output attached to errors.
const maxOutputLen = 2000

// Manager runs git operations against one repository.
type Manager struct {
	repoDir string
}

// FindGitRoot finds the root of the git repository by traversing up from
// startDir. It returns the directory containing .git, which can be a
// directory (normal repo) or a file (worktree).
func FindGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a git repository (or any parent up to mount point)")
		}
		dir = parent
	}
}

// New creates a Manager for the repository containing repoDir.
func New(repoDir string) (*Manager, error) {
	gitRoot, err := FindGitRoot(repoDir)
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %s", repoDir)
	}
	return &Manager{repoDir: gitRoot}, nil
}

// Root returns the repository root directory.
func (m *Manager) Root() string {
	return m.repoDir
}

// run executes a git command in dir (repo root if empty) and returns its
// combined output. Failures come back as *errors.GitError.
func (m *Manager) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir == "" {
		dir = m.repoDir
	}
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err == nil {
		return string(output), nil
	}

	op := args[0]
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		op = args[0] + " " + args[1]
	}

	gitErr := errs.NewGitError(op, err).
		WithOutput(truncateOutput(string(output), maxOutputLen))
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		gitErr = gitErr.WithExitCode(exitErr.ExitCode())
	}
	if ctx.Err() != nil {
		// Killed by cancellation or deadline; worth retrying.
		gitErr = gitErr.WithRetryable(true)
	}
	return string(output), gitErr
}

// BranchExists reports whether a local branch exists.
func (m *Manager) BranchExists(ctx context.Context, branch string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = m.repoDir

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return false, nil
		}
		return false, errs.NewGitError("rev-parse", err).WithBranch(branch)
	}
	return true, nil
}

// CurrentBranch returns the branch checked out in dir.
func (m *Manager) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := m.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// DefaultBranch returns the repository's main branch name, preferring
// "main" and falling back to "master".
func (m *Manager) DefaultBranch(ctx context.Context) string {
	if ok, _ := m.BranchExists(ctx, "main"); ok {
		return "main"
	}
	return "master"
}

// CreateWorktree creates a working copy at path on a new branch based off
// baseBranch.
func (m *Manager) CreateWorktree(ctx context.Context, path, newBranch, baseBranch string) error {
	_, err := m.run(ctx, "", "worktree", "add", "-b", newBranch, path, baseBranch)
	if err != nil {
		var gitErr *errs.GitError
		if errors.As(err, &gitErr) {
			return gitErr.WithBranch(newBranch).WithWorktree(path)
		}
		return err
	}
	return nil
}

// RemoveWorktree removes a working copy. If git refuses, the directory is
// deleted manually and stale worktree references are pruned.
func (m *Manager) RemoveWorktree(ctx context.Context, path string) error {
	if _, err := m.run(ctx, "", "worktree", "remove", "--force", path); err != nil {
		_ = os.RemoveAll(path)
		_, _ = m.run(ctx, "", "worktree", "prune")

		var gitErr *errs.GitError
		if errors.As(err, &gitErr) {
			return gitErr.WithWorktree(path)
		}
		return err
	}
	return nil
}

// DeleteBranch force-deletes a local branch.
func (m *Manager) DeleteBranch(ctx context.Context, branch string) error {
	if _, err := m.run(ctx, "", "branch", "-D", branch); err != nil {
		var gitErr *errs.GitError
		if errors.As(err, &gitErr) {
			return gitErr.WithBranch(branch)
		}
		return err
	}
	return nil
}

// ListWorktrees returns the paths of all working copies attached to the
// repository.
func (m *Manager) ListWorktrees(ctx context.Context) ([]string, error) {
	out, err := m.run(ctx, "", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(out), nil
}

// parseWorktreeList extracts worktree paths from porcelain output.
func parseWorktreeList(out string) []string {
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "worktree ") {
			paths = append(paths, strings.TrimPrefix(line, "worktree "))
		}
	}
	return paths
}

// HasUncommittedChanges reports whether dir has staged or unstaged changes.
func (m *Manager) HasUncommittedChanges(ctx context.Context, dir string) (bool, error) {
	out, err := m.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(strings.TrimSpace(out)) > 0, nil
}

// MergeConflictError reports a merge that stopped on conflicts.
type MergeConflictError struct {
	Branch string   // the branch being merged
	Files  []string // files with conflict markers
	Output string   // raw git output
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on branch %s: %d file(s) affected", e.Branch, len(e.Files))
}

// Merge merges branch into the branch checked out in dir using a merge
// commit. Conflicts come back as *MergeConflictError with the merge left
// in progress; callers decide whether to abort.
func (m *Manager) Merge(ctx context.Context, dir, branch string) error {
	out, err := m.run(ctx, dir, "merge", "--no-ff", branch)
	if err == nil {
		return nil
	}

	if strings.Contains(out, "CONFLICT") || strings.Contains(out, "Automatic merge failed") {
		files, _ := m.ConflictingFiles(ctx, dir)
		return &MergeConflictError{
			Branch: branch,
			Files:  files,
			Output: truncateOutput(out, maxOutputLen),
		}
	}

	var gitErr *errs.GitError
	if errors.As(err, &gitErr) {
		return gitErr.WithBranch(branch).WithWorktree(dir)
	}
	return err
}

// AbortMerge aborts an in-progress merge in dir.
func (m *Manager) AbortMerge(ctx context.Context, dir string) error {
	_, err := m.run(ctx, dir, "merge", "--abort")
	return err
}

// ConflictingFiles returns files with unresolved conflicts in dir.
func (m *Manager) ConflictingFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := m.run(ctx, dir, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return []string{}, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// truncateOutput shortens command output for error messages.
func truncateOutput(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
