package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/internal/config"
	"github.com/stride-dev/stride/internal/worktree"
)

// staleWorktree is a leftover working copy a previous run never removed.
type staleWorktree struct {
	Path           string
	HasUncommitted bool
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up stale worktrees and branches",
	Long: `Cleanup removes resources an interrupted run can leave behind:

- Worktrees under the configured worktree directory
- Branches carrying the configured prefix (default: "stride/")

Use --dry-run to see what would be cleaned up without making changes.`,
	RunE: runCleanup,
}

var (
	cleanupDryRun bool
	cleanupForce  bool
)

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be cleaned up without making changes")
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation prompt")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	git, err := worktree.New(cwd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	worktreeDir := cfg.Isolation.WorktreeDir
	if worktreeDir == "" {
		worktreeDir = filepath.Join(git.Root(), ".stride", "worktrees")
	}

	stale, err := findStaleWorktrees(cmd, git, worktreeDir)
	if err != nil {
		return err
	}
	branches, err := findPrefixedBranches(git.Root(), cfg.Isolation.BranchPrefix)
	if err != nil {
		return err
	}

	if len(stale) == 0 && len(branches) == 0 {
		fmt.Fprintln(out, "Nothing to clean up.")
		return nil
	}

	for _, wt := range stale {
		marker := ""
		if wt.HasUncommitted {
			marker = " (has uncommitted changes)"
		}
		fmt.Fprintf(out, "worktree: %s%s\n", wt.Path, marker)
	}
	for _, b := range branches {
		fmt.Fprintf(out, "branch:   %s\n", b)
	}

	if cleanupDryRun {
		fmt.Fprintln(out, "\nDry run; nothing removed.")
		return nil
	}

	if !cleanupForce && !confirm(cmd, "Remove these?") {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	for _, wt := range stale {
		if wt.HasUncommitted && !cleanupForce {
			fmt.Fprintf(out, "skipping %s: uncommitted changes (use --force)\n", wt.Path)
			continue
		}
		if err := git.RemoveWorktree(ctx, wt.Path); err != nil {
			fmt.Fprintf(out, "failed to remove %s: %v\n", wt.Path, err)
		}
	}
	for _, b := range branches {
		if err := git.DeleteBranch(ctx, b); err != nil {
			fmt.Fprintf(out, "failed to delete %s: %v\n", b, err)
		}
	}

	fmt.Fprintln(out, "Done.")
	return nil
}

// findStaleWorktrees lists working copies under dir that git still knows
// about.
func findStaleWorktrees(cmd *cobra.Command, git *worktree.Manager, dir string) ([]staleWorktree, error) {
	paths, err := git.ListWorktrees(cmd.Context())
	if err != nil {
		return nil, err
	}

	var stale []staleWorktree
	for _, p := range paths {
		if !strings.HasPrefix(p, dir+string(filepath.Separator)) {
			continue
		}
		dirty, err := git.HasUncommittedChanges(cmd.Context(), p)
		if err != nil {
			dirty = false
		}
		stale = append(stale, staleWorktree{Path: p, HasUncommitted: dirty})
	}
	return stale, nil
}

// findPrefixedBranches lists local branches carrying the isolation prefix.
func findPrefixedBranches(repoDir, prefix string) ([]string, error) {
	if prefix == "" {
		prefix = "stride/"
	}
	out, err := exec.Command("git", "-C", repoDir, "branch", "--list", prefix+"*", "--format", "%(refname:short)").Output()
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}

	var branches []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
