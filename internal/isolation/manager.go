package isolation

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "github.com/stride-dev/stride/internal/errors"
	"github.com/stride-dev/stride/internal/logging"
	"github.com/stride-dev/stride/internal/worktree"
)

// DefaultMaxWorktrees caps how many isolated working copies may exist at
// once when no explicit limit is configured.
const DefaultMaxWorktrees = 10

// Options configures a Manager.
type Options struct {
	// MaxWorktrees caps concurrently active working copies. Values <= 0
	// fall back to DefaultMaxWorktrees.
	MaxWorktrees int
	// BranchPrefix prefixes every isolation branch name.
	BranchPrefix string
	// WorktreeDir is where working copies are created. Defaults to
	// <repo>/.stride/worktrees.
	WorktreeDir string
	// RemoveBranches deletes the isolation branch after a clean merge or
	// a destroy.
	RemoveBranches bool
	// OperationTimeout bounds each git operation. Zero means no timeout.
	OperationTimeout time.Duration
}

// Manager tracks isolated working copies and enforces the concurrency
// cap. All methods are safe for concurrent use.
type Manager struct {
	git  worktree.Git
	log  *logging.Logger
	opts Options

	mu      sync.Mutex
	records map[string]*Worktree // by worktree ID
	byTask  map[string]string    // task ID -> worktree ID, live records only
	active  int
}

// NewManager creates a Manager on top of a Git capability.
func NewManager(git worktree.Git, log *logging.Logger, opts Options) *Manager {
	if opts.MaxWorktrees <= 0 {
		opts.MaxWorktrees = DefaultMaxWorktrees
	}
	if opts.BranchPrefix == "" {
		opts.BranchPrefix = "stride/"
	}
	if opts.WorktreeDir == "" {
		opts.WorktreeDir = filepath.Join(git.Root(), ".stride", "worktrees")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Manager{
		git:     git,
		log:     log.WithComponent("isolation"),
		opts:    opts,
		records: make(map[string]*Worktree),
		byTask:  make(map[string]string),
	}
}

// opContext applies the configured per-operation timeout.
func (m *Manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.OperationTimeout > 0 {
		return context.WithTimeout(ctx, m.opts.OperationTimeout)
	}
	return context.WithCancel(ctx)
}

// Create provisions an isolated working copy for a task. It fails with a
// CapacityError when the cap is reached, and with an AlreadyExistsError
// when the task already has a live worktree. No git state is created in
// either case.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Worktree, error) {
	if opts.TaskID == "" {
		return nil, errs.NewValidationError("task id is required").WithField("taskId")
	}

	slug := sanitizeName(opts.TaskID)
	branch := m.opts.BranchPrefix + slug
	path := opts.Path
	if path == "" {
		path = filepath.Join(m.opts.WorktreeDir, slug)
	}

	baseBranch := opts.BaseBranch
	if baseBranch == "" {
		baseBranch = m.git.DefaultBranch(ctx)
	}

	// Reserve a slot before touching git so concurrent creates cannot
	// overshoot the cap.
	rec := &Worktree{
		ID:         uuid.New().String(),
		TaskID:     opts.TaskID,
		Path:       path,
		Branch:     branch,
		BaseBranch: baseBranch,
		Status:     StatusCreating,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	m.mu.Lock()
	if existingID, ok := m.byTask[opts.TaskID]; ok {
		existing := m.records[existingID]
		m.mu.Unlock()
		return nil, errs.NewAlreadyExistsError("worktree for task",
			fmt.Sprintf("%s (worktree %s, %s)", opts.TaskID, existing.ID, existing.Status))
	}
	if m.active >= m.opts.MaxWorktrees {
		limit, active := m.opts.MaxWorktrees, m.active
		m.mu.Unlock()
		return nil, errs.NewCapacityError(limit, active)
	}
	m.active++
	m.records[rec.ID] = rec
	m.byTask[opts.TaskID] = rec.ID
	m.mu.Unlock()

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	if err := m.provision(opCtx, branch, path, baseBranch); err != nil {
		m.fail(rec.ID, err)
		return nil, err
	}

	m.mu.Lock()
	rec.Status = StatusActive
	rec.UpdatedAt = time.Now()
	snapshot := *rec
	m.mu.Unlock()

	m.log.Info("worktree created",
		"worktree_id", rec.ID, "task_id", opts.TaskID,
		"branch", branch, "path", path)
	return &snapshot, nil
}

// provision performs the git side of Create.
func (m *Manager) provision(ctx context.Context, branch, path, baseBranch string) error {
	baseExists, err := m.git.BranchExists(ctx, baseBranch)
	if err != nil {
		return err
	}
	if !baseExists {
		return errs.NewNotFoundError("base branch", baseBranch)
	}

	// Branching reads the ref, not the working tree, so a dirty checkout
	// is only a problem when the base branch itself is checked out: those
	// uncommitted changes would be missing from every worktree cut here.
	current, err := m.git.CurrentBranch(ctx, m.git.Root())
	if err != nil {
		return err
	}
	if current == baseBranch {
		dirty, err := m.git.HasUncommittedChanges(ctx, m.git.Root())
		if err != nil {
			return err
		}
		if dirty {
			return errs.NewValidationError(
				fmt.Sprintf("base branch %s has uncommitted changes", baseBranch),
			).WithField("baseBranch")
		}
	}

	exists, err := m.git.BranchExists(ctx, branch)
	if err != nil {
		return err
	}
	if exists {
		return errs.NewAlreadyExistsError("branch", branch)
	}

	if err := m.git.CreateWorktree(ctx, path, branch, baseBranch); err != nil {
		// Best-effort cleanup of anything git managed to create.
		_ = m.git.RemoveWorktree(context.WithoutCancel(ctx), path)
		_ = m.git.DeleteBranch(context.WithoutCancel(ctx), branch)
		return err
	}
	return nil
}

// Destroy removes a working copy without merging. Destroying an unknown
// or already-removed worktree is a no-op; a failed worktree may be
// destroyed to clean up whatever is left on disk.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok || rec.Status == StatusDestroyed || rec.Status == StatusConsolidated {
		m.mu.Unlock()
		return nil
	}
	path, branch, taskID := rec.Path, rec.Branch, rec.TaskID
	m.mu.Unlock()

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	if err := m.git.RemoveWorktree(opCtx, path); err != nil {
		m.log.Warn("worktree removal failed", "worktree_id", id, "error", err)
		m.fail(id, err)
		return err
	}
	if m.opts.RemoveBranches {
		if err := m.git.DeleteBranch(opCtx, branch); err != nil {
			m.log.Warn("branch removal failed", "branch", branch, "error", err)
		}
	}

	m.mu.Lock()
	if !rec.Status.IsTerminal() {
		m.active--
	}
	rec.Status = StatusDestroyed
	rec.UpdatedAt = time.Now()
	delete(m.byTask, taskID)
	m.mu.Unlock()

	m.log.Info("worktree destroyed", "worktree_id", id, "task_id", taskID)
	return nil
}

// Consolidate merges the given worktrees' branches back into their base
// branch, one at a time. Each merge succeeds or fails independently: a
// conflict aborts that merge, marks that worktree failed, and moves on.
// The base branch must be checked out at the repository root, otherwise
// the worktree is skipped.
func (m *Manager) Consolidate(ctx context.Context, ids []string) (*ConsolidationResult, error) {
	result := &ConsolidationResult{}

	for _, id := range ids {
		result.Results = append(result.Results, m.consolidateOne(ctx, id))
	}

	m.log.Info("consolidation finished",
		"total", len(result.Results),
		"merged", result.Merged(),
		"conflicts", result.Conflicts())
	return result, nil
}

func (m *Manager) consolidateOne(ctx context.Context, id string) MergeResult {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return MergeResult{
			WorktreeID: id,
			Outcome:    OutcomeSkipped,
			Err:        errs.NewNotFoundError("worktree", id),
		}
	}
	if rec.Status != StatusActive {
		res := MergeResult{
			WorktreeID: id,
			TaskID:     rec.TaskID,
			Branch:     rec.Branch,
			Outcome:    OutcomeSkipped,
			Err:        errs.NewValidationError(fmt.Sprintf("worktree %s is %s, not active", id, rec.Status)),
		}
		m.mu.Unlock()
		return res
	}
	rec.Status = StatusMerging
	rec.UpdatedAt = time.Now()
	branch, path, base, taskID := rec.Branch, rec.Path, rec.BaseBranch, rec.TaskID
	m.mu.Unlock()

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	res := MergeResult{WorktreeID: id, TaskID: taskID, Branch: branch}

	current, err := m.git.CurrentBranch(opCtx, m.git.Root())
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		m.fail(id, err)
		return res
	}
	if current != base {
		res.Outcome = OutcomeSkipped
		res.Err = errs.NewValidationError(
			fmt.Sprintf("repository has %s checked out, need %s to merge %s", current, base, branch))
		m.revertToActive(id)
		return res
	}

	if dirty, err := m.git.HasUncommittedChanges(opCtx, path); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		m.fail(id, err)
		return res
	} else if dirty {
		res.Outcome = OutcomeSkipped
		res.Err = errs.NewValidationError(
			fmt.Sprintf("worktree %s has uncommitted changes", path))
		m.revertToActive(id)
		return res
	}

	if err := m.git.Merge(opCtx, m.git.Root(), branch); err != nil {
		if conflict, ok := err.(*worktree.MergeConflictError); ok {
			_ = m.git.AbortMerge(opCtx, m.git.Root())
			res.Outcome = OutcomeConflict
			res.ConflictFiles = conflict.Files
			res.Err = conflict
			m.fail(id, conflict)
			m.log.Warn("merge conflict", "worktree_id", id, "branch", branch,
				"files", len(conflict.Files))
			return res
		}
		res.Outcome = OutcomeFailed
		res.Err = err
		m.fail(id, err)
		return res
	}

	// Merged cleanly; tear down the working copy.
	if err := m.git.RemoveWorktree(opCtx, path); err != nil {
		m.log.Warn("worktree removal after merge failed", "worktree_id", id, "error", err)
	}
	if m.opts.RemoveBranches {
		if err := m.git.DeleteBranch(opCtx, branch); err != nil {
			m.log.Warn("branch removal after merge failed", "branch", branch, "error", err)
		}
	}

	m.mu.Lock()
	// The record may have been destroyed out from under the merge; only
	// a still-merging record owns its slot here.
	if rec.Status == StatusMerging {
		rec.Status = StatusConsolidated
		rec.UpdatedAt = time.Now()
		m.active--
		delete(m.byTask, taskID)
	}
	m.mu.Unlock()

	res.Outcome = OutcomeMerged
	m.log.Info("branch merged", "worktree_id", id, "branch", branch, "base", base)
	return res
}

// fail moves a record to StatusFailed and releases its slot.
func (m *Manager) fail(id string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.Status.IsTerminal() {
		return
	}
	rec.Status = StatusFailed
	rec.LastError = cause.Error()
	rec.UpdatedAt = time.Now()
	m.active--
	delete(m.byTask, rec.TaskID)
}

// revertToActive returns a merging record to active after a skipped merge.
func (m *Manager) revertToActive(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok && rec.Status == StatusMerging {
		rec.Status = StatusActive
		rec.UpdatedAt = time.Now()
	}
}

// Get returns a snapshot of one record.
func (m *Manager) Get(id string) (*Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, errs.NewNotFoundError("worktree", id)
	}
	snapshot := *rec
	return &snapshot, nil
}

// GetByTask returns a snapshot of the live record for a task.
func (m *Manager) GetByTask(taskID string) (*Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byTask[taskID]
	if !ok {
		return nil, errs.NewNotFoundError("worktree for task", taskID)
	}
	snapshot := *m.records[id]
	return &snapshot, nil
}

// List returns snapshots of every record, oldest first.
func (m *Manager) List() []*Worktree {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Worktree, 0, len(m.records))
	for _, rec := range m.records {
		snapshot := *rec
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ActiveCount reports how many worktrees currently occupy a slot.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// MaxWorktrees reports the configured cap.
func (m *Manager) MaxWorktrees() int {
	return m.opts.MaxWorktrees
}

// sanitizeName turns a task id into something safe for branch names and
// directory names.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "task"
	}
	return out
}
