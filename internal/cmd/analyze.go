package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stride-dev/stride/internal/analyzer"
	"github.com/stride-dev/stride/internal/config"
	"github.com/stride-dev/stride/internal/task"
)

var (
	analyzeJSON bool
	analyzeDot  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <task-file>",
	Short: "Analyze a task list for parallel execution",
	Long: `Analyze reads a YAML task list, builds the dependency graph, and
reports execution levels, parallel-safe groupings, conflicts, and how
much wall-clock time parallel execution would save.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Emit the full analysis as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeDot, "dot", false, "Emit the dependency graph in graphviz format")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tasks, err := task.LoadFile(args[0])
	if err != nil {
		return err
	}

	a := analyzer.NewAnalyzerWithConfig(analyzer.Config{
		ConflictPenalty: cfg.Analyzer.ConflictPenalty,
		SizePenalty:     cfg.Analyzer.SizePenalty,
		SizeThreshold:   cfg.Analyzer.SizeThreshold,
		MinConfidence:   cfg.Analyzer.MinConfidence,
	})
	result := a.Analyze(tasks)

	out := cmd.OutOrStdout()
	switch {
	case analyzeJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case analyzeDot:
		fmt.Fprint(out, result.Graph.Describe())
		return nil
	default:
		printAnalysis(cmd, result)
		return nil
	}
}

func printAnalysis(cmd *cobra.Command, result *analyzer.Result) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Tasks: %d total, %d independent, max parallelism %d\n",
		result.Metadata.TotalTasks,
		result.Metadata.IndependentTasks,
		result.Metadata.MaxParallelism)
	fmt.Fprintf(out, "Estimated time saving: %s\n\n", result.Metadata.EstimatedTimeSaving)

	if len(result.Cycles) > 0 {
		fmt.Fprintf(out, "Dependency cycles (%d):\n", len(result.Cycles))
		for _, cycle := range result.Cycles {
			fmt.Fprintf(out, "  %s\n", strings.Join(cycle, " -> "))
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Execution order:")
	for i, level := range result.ExecutionOrder {
		fmt.Fprintf(out, "  level %d: %s\n", i, strings.Join(level, ", "))
	}
	fmt.Fprintln(out)

	if path, cost := result.Graph.CriticalPath(); len(path) > 0 {
		fmt.Fprintf(out, "Critical path (%s): %s\n\n", cost, strings.Join(path, " -> "))
	}

	if len(result.Groups) > 0 {
		fmt.Fprintln(out, "Parallel groups:")
		for _, g := range result.Groups {
			fmt.Fprintf(out, "  %s [%s, confidence %.2f]: %s\n",
				g.ID, g.Risk, g.Confidence, strings.Join(g.TaskIDs, ", "))
			fmt.Fprintf(out, "    %s\n", g.Reason)
		}
		fmt.Fprintln(out)
	}

	if len(result.Conflicts) > 0 {
		fmt.Fprintf(out, "Conflicts (%d):\n", len(result.Conflicts))
		for _, c := range result.Conflicts {
			fmt.Fprintf(out, "  [%s] %s\n", c.Kind, c.Description)
		}
	}
}
