// Package coordinator connects analysis to isolation: it plans which
// tasks can run together, provisions a worktree per task, runs the
// executor in parallel, and consolidates the results.
package coordinator

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/stride-dev/stride/internal/analyzer"
	errs "github.com/stride-dev/stride/internal/errors"
	"github.com/stride-dev/stride/internal/isolation"
	"github.com/stride-dev/stride/internal/logging"
	"github.com/stride-dev/stride/internal/task"
)

// Executor runs one task inside its isolated working copy.
type Executor interface {
	Execute(ctx context.Context, t task.Task, wt *isolation.Worktree) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, t task.Task, wt *isolation.Worktree) error

func (f ExecutorFunc) Execute(ctx context.Context, t task.Task, wt *isolation.Worktree) error {
	return f(ctx, t, wt)
}

// TaskStatus summarizes how one task ended up.
type TaskStatus string

const (
	// TaskSucceeded means the executor finished and the branch was handed
	// to consolidation.
	TaskSucceeded TaskStatus = "succeeded"
	// TaskFailed means worktree setup or the executor failed.
	TaskFailed TaskStatus = "failed"
	// TaskSkipped means a dependency failed, so the task never ran.
	TaskSkipped TaskStatus = "skipped"
)

// TaskResult is the per-task outcome of a run.
type TaskResult struct {
	TaskID     string     `json:"taskId"`
	WorktreeID string     `json:"worktreeId,omitempty"`
	Status     TaskStatus `json:"status"`
	Err        error      `json:"-"`
}

// RunResult is the outcome of a full run.
type RunResult struct {
	Analysis       *analyzer.Result                 `json:"analysis"`
	Tasks          []TaskResult                     `json:"tasks"`
	Consolidations []*isolation.ConsolidationResult `json:"consolidations"`
}

// Succeeded returns the number of tasks that ran and merged input.
func (r *RunResult) Succeeded() int { return r.countStatus(TaskSucceeded) }

// Failed returns the number of tasks that failed.
func (r *RunResult) Failed() int { return r.countStatus(TaskFailed) }

// Skipped returns the number of tasks skipped because a dependency failed.
func (r *RunResult) Skipped() int { return r.countStatus(TaskSkipped) }

func (r *RunResult) countStatus(s TaskStatus) int {
	n := 0
	for _, t := range r.Tasks {
		if t.Status == s {
			n++
		}
	}
	return n
}

// Coordinator drives parallel execution of a task list.
type Coordinator struct {
	analyzer  *analyzer.Analyzer
	isolation *isolation.Manager
	log       *logging.Logger
}

// New creates a Coordinator.
func New(a *analyzer.Analyzer, m *isolation.Manager, log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Coordinator{
		analyzer:  a,
		isolation: m,
		log:       log.WithComponent("coordinator"),
	}
}

// Plan analyzes the tasks and splits each execution level into batches no
// larger than the worktree cap. It is the dry-run view of Run.
func (c *Coordinator) Plan(tasks []task.Task) (*analyzer.Result, [][]string, error) {
	result := c.analyzer.Analyze(tasks)
	if len(result.Cycles) > 0 {
		return result, nil, errs.NewValidationError(
			fmt.Sprintf("tasks contain %d dependency cycle(s): %v", len(result.Cycles), result.Cycles[0]))
	}

	var batches [][]string
	for _, level := range result.ExecutionOrder {
		batches = append(batches, chunk(level, c.isolation.MaxWorktrees())...)
	}
	return result, batches, nil
}

// Run executes the tasks level by level. Tasks within a level run in
// parallel in batches bounded by the worktree cap, and each batch is
// consolidated before the next starts so merged work is visible to the
// tasks that depend on it. A failing task fails its whole dependency
// chain: downstream tasks are skipped, independent chains keep going.
func (c *Coordinator) Run(ctx context.Context, tasks []task.Task, exec Executor) (*RunResult, error) {
	result, _, err := c.Plan(tasks)
	if err != nil {
		return &RunResult{Analysis: result}, err
	}

	run := &RunResult{Analysis: result}
	failed := make(map[string]bool)

	for _, level := range result.ExecutionOrder {
		runnable, skipped := c.partition(result, level, failed)
		for _, id := range skipped {
			failed[id] = true
			run.Tasks = append(run.Tasks, TaskResult{
				TaskID: id,
				Status: TaskSkipped,
				Err:    fmt.Errorf("dependency of task %s failed", id),
			})
		}

		if err := c.runWave(ctx, result, runnable, exec, run, failed, nil); err != nil {
			return run, err
		}
	}

	c.log.Info("run finished",
		"succeeded", run.Succeeded(), "failed", run.Failed(), "skipped", run.Skipped())
	return run, nil
}

// runWave executes ids in batches sized to the slots actually free at
// dispatch time, not the static cap: preserved worktrees from earlier
// failures keep occupying slots, and a full-width batch would push
// unrelated tasks into capacity errors. Each batch is consolidated
// before the next is sized. When completed is non-nil it records the
// tasks that finished.
func (c *Coordinator) runWave(ctx context.Context, result *analyzer.Result, ids []string, exec Executor, run *RunResult, failed, completed map[string]bool) error {
	remaining := ids
	for len(remaining) > 0 {
		free := c.isolation.MaxWorktrees() - c.isolation.ActiveCount()
		if free <= 0 {
			// Every slot is held by a preserved worktree; nothing in this
			// run will release one.
			for _, id := range remaining {
				failed[id] = true
				run.Tasks = append(run.Tasks, TaskResult{
					TaskID: id,
					Status: TaskFailed,
					Err:    errs.NewCapacityError(c.isolation.MaxWorktrees(), c.isolation.ActiveCount()),
				})
			}
			return nil
		}
		if free > len(remaining) {
			free = len(remaining)
		}
		batch := remaining[:free]
		remaining = remaining[free:]

		batchResults := c.runBatch(ctx, result, batch, exec)

		var mergeable []string
		for _, tr := range batchResults {
			if tr.Status == TaskFailed {
				failed[tr.TaskID] = true
			} else {
				if completed != nil {
					completed[tr.TaskID] = true
				}
				if tr.WorktreeID != "" {
					mergeable = append(mergeable, tr.WorktreeID)
				}
			}
			run.Tasks = append(run.Tasks, tr)
		}

		if len(mergeable) > 0 {
			cons, err := c.isolation.Consolidate(ctx, mergeable)
			if err != nil {
				return err
			}
			run.Consolidations = append(run.Consolidations, cons)
			c.markConflicts(run, cons, failed)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// RunReady executes tasks as soon as their dependencies complete rather
// than waiting for whole levels, still bounded by the worktree cap.
func (c *Coordinator) RunReady(ctx context.Context, tasks []task.Task, exec Executor) (*RunResult, error) {
	result, _, err := c.Plan(tasks)
	if err != nil {
		return &RunResult{Analysis: result}, err
	}

	run := &RunResult{Analysis: result}
	completed := make(map[string]bool)
	failed := make(map[string]bool)

	for {
		ready := c.readyTasks(result, completed, failed)
		if len(ready) == 0 {
			break
		}

		if err := c.runWave(ctx, result, ready, exec, run, failed, completed); err != nil {
			return run, err
		}
	}

	// Whatever never became ready sits behind a failed dependency.
	for _, id := range c.unreached(result, completed, failed) {
		run.Tasks = append(run.Tasks, TaskResult{
			TaskID: id,
			Status: TaskSkipped,
			Err:    fmt.Errorf("dependency of task %s failed", id),
		})
	}

	c.log.Info("run finished",
		"succeeded", run.Succeeded(), "failed", run.Failed(), "skipped", run.Skipped())
	return run, nil
}

// runBatch creates a worktree per task and runs the executor across the
// batch concurrently. Failed tasks keep their worktree out of
// consolidation; the record stays for inspection.
func (c *Coordinator) runBatch(ctx context.Context, result *analyzer.Result, batch []string, exec Executor) []TaskResult {
	results := make([]TaskResult, len(batch))

	var g errgroup.Group
	for i, id := range batch {
		i, id := i, id
		g.Go(func() error {
			results[i] = c.runOne(ctx, result, id, exec)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Coordinator) runOne(ctx context.Context, result *analyzer.Result, id string, exec Executor) TaskResult {
	t, ok := result.Graph.Task(id)
	if !ok {
		return TaskResult{
			TaskID: id,
			Status: TaskFailed,
			Err:    errs.NewNotFoundError("task", id),
		}
	}

	wt, err := c.isolation.Create(ctx, isolation.CreateOptions{TaskID: id})
	if err != nil {
		c.log.Error("worktree creation failed", "task_id", id, "error", err)
		return TaskResult{TaskID: id, Status: TaskFailed, Err: err}
	}

	if err := exec.Execute(ctx, t, wt); err != nil {
		c.log.Error("task failed", "task_id", id, "worktree_id", wt.ID, "error", err)
		return TaskResult{TaskID: id, WorktreeID: wt.ID, Status: TaskFailed, Err: err}
	}

	return TaskResult{TaskID: id, WorktreeID: wt.ID, Status: TaskSucceeded}
}

// markConflicts downgrades tasks whose branch failed to merge.
func (c *Coordinator) markConflicts(run *RunResult, cons *isolation.ConsolidationResult, failed map[string]bool) {
	for _, mr := range cons.Results {
		if mr.Outcome == isolation.OutcomeMerged {
			continue
		}
		failed[mr.TaskID] = true
		for i := range run.Tasks {
			if run.Tasks[i].TaskID == mr.TaskID && run.Tasks[i].Status == TaskSucceeded {
				run.Tasks[i].Status = TaskFailed
				run.Tasks[i].Err = mr.Err
			}
		}
	}
}

// partition splits a level into tasks that can run and tasks blocked by
// an upstream failure.
func (c *Coordinator) partition(result *analyzer.Result, level []string, failed map[string]bool) (runnable, skipped []string) {
	for _, id := range level {
		if c.blockedByFailure(result, id, failed) {
			skipped = append(skipped, id)
		} else {
			runnable = append(runnable, id)
		}
	}
	return runnable, skipped
}

func (c *Coordinator) blockedByFailure(result *analyzer.Result, id string, failed map[string]bool) bool {
	for fid := range failed {
		if result.Graph.HasPath(id, fid) {
			return true
		}
	}
	return false
}

// readyTasks returns tasks whose dependencies are all complete and that
// are not blocked by a failure, sorted for determinism.
func (c *Coordinator) readyTasks(result *analyzer.Result, completed, failed map[string]bool) []string {
	done := make(map[string]bool, len(completed)+len(failed))
	for id := range completed {
		done[id] = true
	}

	var ready []string
	for _, id := range result.Graph.NextTasks(done, failed) {
		if failed[id] || c.blockedByFailure(result, id, failed) {
			continue
		}
		ready = append(ready, id)
	}
	sort.Strings(ready)
	return ready
}

// unreached lists tasks that never ran, sorted.
func (c *Coordinator) unreached(result *analyzer.Result, completed, failed map[string]bool) []string {
	var out []string
	for _, level := range result.ExecutionOrder {
		for _, id := range level {
			if !completed[id] && !failed[id] {
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

// chunk splits ids into slices of at most size.
func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
