package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/internal/config"
	"github.com/stride-dev/stride/internal/conflict"
	"github.com/stride-dev/stride/internal/logging"
	"github.com/stride-dev/stride/internal/worktree"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch active worktrees for overlapping file modifications",
	Long: `Watch monitors every isolated working copy attached to this
repository and reports files that more than one task has modified.
Overlapping edits are an early warning for merge conflicts during
consolidation. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	git, err := worktree.New(cwd)
	if err != nil {
		return err
	}

	worktreeDir := cfg.Isolation.WorktreeDir
	if worktreeDir == "" {
		worktreeDir = filepath.Join(git.Root(), ".stride", "worktrees")
	}

	paths, err := git.ListWorktrees(cmd.Context())
	if err != nil {
		return err
	}

	log, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log = logging.NewNopLogger()
	}
	defer log.Close()

	watcher, err := conflict.NewWatcher(log, cfg.Conflict.IgnorePatterns)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	out := cmd.OutOrStdout()
	watched := 0
	for _, p := range paths {
		if !strings.HasPrefix(p, worktreeDir+string(filepath.Separator)) {
			continue
		}
		taskID := filepath.Base(p)
		if err := watcher.Watch(taskID, p); err != nil {
			fmt.Fprintf(out, "cannot watch %s: %v\n", p, err)
			continue
		}
		fmt.Fprintf(out, "watching %s (%s)\n", taskID, p)
		watched++
	}
	if watched == 0 {
		fmt.Fprintln(out, "No worktrees to watch.")
		return nil
	}

	watcher.SetOverlapCallback(func(overlaps []conflict.Overlap) {
		for _, o := range overlaps {
			fmt.Fprintf(out, "overlap: %s modified by %s\n",
				o.RelativePath, strings.Join(o.TaskIDs, ", "))
		}
	})
	watcher.Start()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Fprintln(out, "stopping")
	return nil
}
