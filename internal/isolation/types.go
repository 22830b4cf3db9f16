// Package isolation manages git-worktree-backed working copies so tasks
// can run in parallel without touching each other's files. A Manager
// tracks each copy through its lifecycle and enforces a cap on how many
// exist at once.
package isolation

import (
	"time"
)

// Status is the lifecycle state of an isolated working copy.
type Status string

const (
	// StatusCreating means the worktree and branch are being set up.
	StatusCreating Status = "creating"
	// StatusActive means the worktree is ready for work.
	StatusActive Status = "active"
	// StatusMerging means consolidation back to the base branch is in
	// progress.
	StatusMerging Status = "merging"
	// StatusConsolidated means the branch merged cleanly and the worktree
	// was cleaned up.
	StatusConsolidated Status = "consolidated"
	// StatusDestroyed means the worktree was removed without merging.
	StatusDestroyed Status = "destroyed"
	// StatusFailed means setup or consolidation failed.
	StatusFailed Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusConsolidated, StatusDestroyed, StatusFailed:
		return true
	}
	return false
}

// Worktree is the record of one isolated working copy.
type Worktree struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	Path       string    `json:"path"`
	Branch     string    `json:"branch"`
	BaseBranch string    `json:"baseBranch"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	// LastError holds the message of the failure that moved the record to
	// StatusFailed, if any.
	LastError string `json:"lastError,omitempty"`
}

// CreateOptions configures worktree creation for a task.
type CreateOptions struct {
	// TaskID identifies the task the worktree belongs to. Required.
	TaskID string
	// BaseBranch is the branch the worktree branches off. Defaults to the
	// repository's default branch.
	BaseBranch string
	// Path overrides the manager-chosen worktree location.
	Path string
}

// MergeOutcome describes how consolidation went for one worktree.
type MergeOutcome string

const (
	// OutcomeMerged means the branch merged cleanly.
	OutcomeMerged MergeOutcome = "merged"
	// OutcomeConflict means the merge hit conflicts and was aborted.
	OutcomeConflict MergeOutcome = "conflict"
	// OutcomeSkipped means the worktree was not in a mergeable state.
	OutcomeSkipped MergeOutcome = "skipped"
	// OutcomeFailed means the merge failed for a non-conflict reason.
	OutcomeFailed MergeOutcome = "failed"
)

// MergeResult is the consolidation result for one worktree.
type MergeResult struct {
	WorktreeID string       `json:"worktreeId"`
	TaskID     string       `json:"taskId"`
	Branch     string       `json:"branch"`
	Outcome    MergeOutcome `json:"outcome"`
	// ConflictFiles lists the files with conflicts when Outcome is
	// OutcomeConflict.
	ConflictFiles []string `json:"conflictFiles,omitempty"`
	Err           error    `json:"-"`
}

// ConsolidationResult aggregates per-worktree merge results. Failures are
// independent: one conflicting branch does not stop the others.
type ConsolidationResult struct {
	Results []MergeResult `json:"results"`
}

// Merged returns the number of branches that merged cleanly.
func (r *ConsolidationResult) Merged() int {
	return r.count(OutcomeMerged)
}

// Conflicts returns the number of merges aborted on conflicts.
func (r *ConsolidationResult) Conflicts() int {
	return r.count(OutcomeConflict)
}

// AllMerged reports whether every attempted merge succeeded.
func (r *ConsolidationResult) AllMerged() bool {
	for _, res := range r.Results {
		if res.Outcome != OutcomeMerged {
			return false
		}
	}
	return true
}

func (r *ConsolidationResult) count(outcome MergeOutcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}
