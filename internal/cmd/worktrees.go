package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/internal/config"
	"github.com/stride-dev/stride/internal/isolation"
	"github.com/stride-dev/stride/internal/logging"
	"github.com/stride-dev/stride/internal/worktree"
)

var worktreesCmd = &cobra.Command{
	Use:   "worktrees",
	Short: "Manage isolated working copies",
}

var worktreesCreateCmd = &cobra.Command{
	Use:   "create <task-id>",
	Short: "Create an isolated working copy for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreesCreate,
}

var worktreesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the working copies attached to this repository",
	RunE:  runWorktreesList,
}

var worktreesBaseBranch string

func init() {
	rootCmd.AddCommand(worktreesCmd)
	worktreesCmd.AddCommand(worktreesCreateCmd)
	worktreesCmd.AddCommand(worktreesListCmd)
	worktreesCreateCmd.Flags().StringVar(&worktreesBaseBranch, "base", "", "Base branch (default: the repository's default branch)")
}

// newIsolationManager builds the isolation stack rooted at the current
// directory's repository.
func newIsolationManager() (*isolation.Manager, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}
	git, err := worktree.New(cwd)
	if err != nil {
		return nil, nil, err
	}

	log, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log = logging.NewNopLogger()
	}

	mgr := isolation.NewManager(git, log, isolation.Options{
		MaxWorktrees:     cfg.Isolation.MaxWorktrees,
		BranchPrefix:     cfg.Isolation.BranchPrefix,
		WorktreeDir:      cfg.Isolation.WorktreeDir,
		RemoveBranches:   cfg.Isolation.RemoveBranches,
		OperationTimeout: cfg.Isolation.OperationTimeout,
	})
	return mgr, log, nil
}

func runWorktreesCreate(cmd *cobra.Command, args []string) error {
	mgr, log, err := newIsolationManager()
	if err != nil {
		return err
	}
	defer log.Close()

	wt, err := mgr.Create(cmd.Context(), isolation.CreateOptions{
		TaskID:     args[0],
		BaseBranch: worktreesBaseBranch,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n  branch: %s\n  path:   %s\n",
		wt.ID, wt.Branch, wt.Path)
	return nil
}

func runWorktreesList(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	git, err := worktree.New(cwd)
	if err != nil {
		return err
	}

	paths, err := git.ListWorktrees(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintln(out, "No worktrees.")
		return nil
	}
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}
	return nil
}
