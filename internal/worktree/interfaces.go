package worktree

import "context"

// Git is the capability set the isolation manager needs from a
// repository. *Manager implements it with the real git CLI; tests use
// fakes.
type Git interface {
	Root() string
	BranchExists(ctx context.Context, branch string) (bool, error)
	CurrentBranch(ctx context.Context, dir string) (string, error)
	DefaultBranch(ctx context.Context) string
	CreateWorktree(ctx context.Context, path, newBranch, baseBranch string) error
	RemoveWorktree(ctx context.Context, path string) error
	DeleteBranch(ctx context.Context, branch string) error
	ListWorktrees(ctx context.Context) ([]string, error)
	HasUncommittedChanges(ctx context.Context, dir string) (bool, error)
	Merge(ctx context.Context, dir, branch string) error
	AbortMerge(ctx context.Context, dir string) error
	ConflictingFiles(ctx context.Context, dir string) ([]string, error)
}

var _ Git = (*Manager)(nil)
