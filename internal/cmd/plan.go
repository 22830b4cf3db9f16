package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/internal/analyzer"
	"github.com/stride-dev/stride/internal/config"
	"github.com/stride-dev/stride/internal/coordinator"
	"github.com/stride-dev/stride/internal/task"
)

var planCmd = &cobra.Command{
	Use:   "plan <task-file>",
	Short: "Show how tasks would be batched for parallel execution",
	Long: `Plan analyzes a task list and prints the batches the coordinator
would run, honoring both the dependency order and the worktree cap.
It is the dry-run view of an execution: nothing is created.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tasks, err := task.LoadFile(args[0])
	if err != nil {
		return err
	}

	mgr, log, err := newIsolationManager()
	if err != nil {
		return err
	}
	defer log.Close()

	a := analyzer.NewAnalyzerWithConfig(analyzer.Config{
		ConflictPenalty: cfg.Analyzer.ConflictPenalty,
		SizePenalty:     cfg.Analyzer.SizePenalty,
		SizeThreshold:   cfg.Analyzer.SizeThreshold,
		MinConfidence:   cfg.Analyzer.MinConfidence,
	})
	coord := coordinator.New(a, mgr, log)

	result, batches, err := coord.Plan(tasks)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d task(s) in %d batch(es), cap %d:\n",
		result.Metadata.TotalTasks, len(batches), mgr.MaxWorktrees())
	for i, batch := range batches {
		fmt.Fprintf(out, "  batch %d: %s\n", i+1, strings.Join(batch, ", "))
	}
	fmt.Fprintf(out, "\nEstimated time saving: %s\n", result.Metadata.EstimatedTimeSaving)
	return nil
}
