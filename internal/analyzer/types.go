package analyzer

import (
	"time"

	"github.com/stride-dev/stride/internal/graph"
)

// RiskLevel classifies how risky it is to run a parallel group concurrently.
type RiskLevel string

const (
	// RiskLow marks groups with no detected hazards.
	RiskLow RiskLevel = "low"

	// RiskMedium marks groups whose members share resources pairwise.
	RiskMedium RiskLevel = "medium"

	// RiskHigh marks groups with a member on a detected dependency cycle.
	RiskHigh RiskLevel = "high"
)

// ConflictKind distinguishes the classes of conflicts the analyzer reports.
type ConflictKind string

const (
	// ConflictResource marks two dependency-unrelated tasks that declare
	// overlapping shared resources.
	ConflictResource ConflictKind = "resource"

	// ConflictDependencyAmbiguity marks a task whose declared dependency
	// does not refer to any task in the analyzed list.
	ConflictDependencyAmbiguity ConflictKind = "dependency-ambiguity"
)

// ParallelGroup is a set of same-level tasks with an identical dependency
// set, judged safe (or conditionally safe) to run together.
type ParallelGroup struct {
	// ID identifies the group within one analysis, e.g. "group-1-0".
	ID string `json:"id"`

	// TaskIDs are the member tasks, sorted.
	TaskIDs []string `json:"task_ids"`

	// Reason explains the grouping, e.g. "No dependencies" or
	// "Share dependencies: a,b".
	Reason string `json:"reason"`

	// Risk is the group's risk tier.
	Risk RiskLevel `json:"risk"`

	// Confidence is in [0,1]: 1.0 for a perfectly independent,
	// resource-disjoint single-task group, decreasing with conflicts
	// and group size.
	Confidence float64 `json:"confidence"`
}

// Conflict reports a hazard between tasks that are candidates for
// simultaneous execution.
type Conflict struct {
	// Kind is the conflict class.
	Kind ConflictKind `json:"kind"`

	// Description names the offending resources or references.
	Description string `json:"description"`

	// TaskIDs are the involved tasks, sorted.
	TaskIDs []string `json:"task_ids"`
}

// Metadata aggregates plan-wide counts and the estimated benefit of
// parallel execution.
type Metadata struct {
	// TotalTasks is the number of analyzed tasks.
	TotalTasks int `json:"total_tasks"`

	// IndependentTasks is the number of tasks with no dependencies.
	IndependentTasks int `json:"independent_tasks"`

	// MaxParallelism is the width of the widest execution level.
	MaxParallelism int `json:"max_parallelism"`

	// EstimatedTimeSaving is the sequential total minus the leveled
	// parallel total. Never negative.
	EstimatedTimeSaving time.Duration `json:"estimated_time_saving"`
}

// Result bundles everything the analyzer derives from a task list. It is a
// snapshot: consumers must treat it (and the embedded graph) as read-only.
type Result struct {
	// ExecutionOrder is the ordered sequence of levels, each the sorted
	// set of task ids runnable once prior levels complete.
	ExecutionOrder [][]string `json:"execution_order"`

	// Groups are the parallel-safe groupings per level.
	Groups []ParallelGroup `json:"groups"`

	// Conflicts lists detected hazards. Structural problems are data,
	// not errors: analysis always completes.
	Conflicts []Conflict `json:"conflicts"`

	// Cycles lists detected dependency cycles, each closed (first id
	// repeated at the end).
	Cycles [][]string `json:"cycles"`

	// Metadata carries the aggregate counts.
	Metadata Metadata `json:"metadata"`

	// Graph is the dependency graph built during analysis, exposed for
	// read accessors (adjacency export, critical path, readiness queries).
	Graph *graph.Graph `json:"-"`
}
