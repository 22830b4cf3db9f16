// Package analyzer turns a flat task list into a parallel execution plan:
// leveled execution order, parallel-safe groupings with risk and confidence,
// resource conflicts between unrelated tasks, and aggregate metadata.
//
// Analysis is pure, synchronous, and best-effort: malformed input such as a
// self-dependency degrades to a reported 1-cycle, never a failure.
package analyzer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stride-dev/stride/internal/graph"
	"github.com/stride-dev/stride/internal/task"
)

// Config tunes the risk and confidence policy. The exact curve is a policy
// choice; it must be monotonically non-increasing in conflict count and
// yield 1.0 for a resource-disjoint, acyclic single-task group.
type Config struct {
	// ConflictPenalty is subtracted from a group's confidence for every
	// conflict touching one of its members.
	ConflictPenalty float64

	// SizePenalty is subtracted per member beyond SizeThreshold.
	SizePenalty float64

	// SizeThreshold is the group size above which size penalties apply.
	SizeThreshold int

	// MinConfidence is the floor confidence never drops below.
	MinConfidence float64
}

// DefaultConfig returns the default analysis policy.
func DefaultConfig() Config {
	return Config{
		ConflictPenalty: 0.1,
		SizePenalty:     0.05,
		SizeThreshold:   3,
		MinConfidence:   0.2,
	}
}

// Analyzer computes analysis results for task lists.
type Analyzer struct {
	config Config
}

// NewAnalyzer creates an analyzer with the default policy.
func NewAnalyzer() *Analyzer {
	return &Analyzer{config: DefaultConfig()}
}

// NewAnalyzerWithConfig creates an analyzer with a custom policy.
func NewAnalyzerWithConfig(config Config) *Analyzer {
	return &Analyzer{config: config}
}

// Analyze runs the default analyzer over tasks.
func Analyze(tasks []task.Task) *Result {
	return NewAnalyzer().Analyze(tasks)
}

// Analyze builds the dependency graph from tasks and derives the execution
// order, parallel groups, conflicts, cycles, and metadata. It always
// completes; an empty input yields a Result with zero metadata and empty
// collections.
func (a *Analyzer) Analyze(tasks []task.Task) *Result {
	g := graph.New()
	for _, t := range tasks {
		g.AddCompleteTask(t)
	}

	result := &Result{
		ExecutionOrder: g.ExecutionOrder(),
		Cycles:         g.DetectCycles(),
		Graph:          g,
	}

	known := make(map[string]task.Task, len(tasks))
	for _, t := range tasks {
		known[t.ID] = t
	}

	result.Conflicts = a.detectConflicts(g, tasks, known)
	result.Groups = a.buildGroups(g, result)
	result.Metadata = a.buildMetadata(tasks, known, result.ExecutionOrder)

	return result
}

// detectConflicts reports resource conflicts between dependency-unrelated
// task pairs, plus references to dependencies that are not in the task list.
func (a *Analyzer) detectConflicts(g *graph.Graph, tasks []task.Task, known map[string]task.Task) []Conflict {
	ordered := make([]task.Task, len(tasks))
	copy(ordered, tasks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var conflicts []Conflict

	for _, t := range ordered {
		deps := append([]string(nil), t.DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := known[dep]; ok || dep == "" {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Kind: ConflictDependencyAmbiguity,
				Description: fmt.Sprintf("Task %s depends on %q, which is not part of the task list",
					t.ID, dep),
				TaskIDs: []string{t.ID},
			})
		}
	}

	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			ta, tb := ordered[i], ordered[j]
			if ta.ID == tb.ID {
				continue
			}
			// Only pairs with no ordering between them can actually
			// run simultaneously.
			if g.HasPath(ta.ID, tb.ID) || g.HasPath(tb.ID, ta.ID) {
				continue
			}
			shared := task.ResourceOverlap(ta.Resources, tb.Resources)
			if len(shared) == 0 {
				continue
			}
			sort.Strings(shared)
			conflicts = append(conflicts, Conflict{
				Kind: ConflictResource,
				Description: fmt.Sprintf("Tasks %s and %s share resources: %s",
					ta.ID, tb.ID, strings.Join(shared, ", ")),
				TaskIDs: []string{ta.ID, tb.ID},
			})
		}
	}

	return conflicts
}

// buildGroups merges tasks at the same level with identical dependency sets
// into ParallelGroups and assigns each a risk tier and confidence score.
func (a *Analyzer) buildGroups(g *graph.Graph, result *Result) []ParallelGroup {
	cyclic := make(map[string]bool)
	for _, cycle := range result.Cycles {
		for _, id := range cycle {
			cyclic[id] = true
		}
	}

	conflictCount := make(map[string]int)
	for _, c := range result.Conflicts {
		for _, id := range c.TaskIDs {
			conflictCount[id]++
		}
	}

	var groups []ParallelGroup
	for levelIdx, ids := range result.ExecutionOrder {
		// Bucket by canonical dependency-set key.
		byDeps := make(map[string][]string)
		var keys []string
		for _, id := range ids {
			deps := dependencyKey(g, id)
			if _, seen := byDeps[deps]; !seen {
				keys = append(keys, deps)
			}
			byDeps[deps] = append(byDeps[deps], id)
		}
		sort.Strings(keys)

		for idx, key := range keys {
			members := byDeps[key]
			sort.Strings(members)

			reason := "No dependencies"
			if key != "" {
				reason = "Share dependencies: " + key
			}

			group := ParallelGroup{
				ID:      fmt.Sprintf("group-%d-%d", levelIdx, idx),
				TaskIDs: members,
				Reason:  reason,
			}
			group.Risk = a.groupRisk(g, members, cyclic)
			group.Confidence = a.groupConfidence(members, conflictCount)
			groups = append(groups, group)
		}
	}
	return groups
}

func dependencyKey(g *graph.Graph, id string) string {
	t, ok := g.Task(id)
	if !ok {
		return ""
	}
	deps := make(map[string]struct{}, len(t.DependsOn))
	for _, d := range t.DependsOn {
		if d != "" {
			deps[d] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(deps))
	for d := range deps {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// groupRisk is high when any member sits on a detected cycle, medium when
// members overlap in resources pairwise, and low otherwise.
func (a *Analyzer) groupRisk(g *graph.Graph, members []string, cyclic map[string]bool) RiskLevel {
	for _, id := range members {
		if cyclic[id] {
			return RiskHigh
		}
	}

	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			ta, _ := g.Task(members[i])
			tb, _ := g.Task(members[j])
			if len(task.ResourceOverlap(ta.Resources, tb.Resources)) > 0 {
				return RiskMedium
			}
		}
	}
	return RiskLow
}

// groupConfidence starts at 1.0 and decreases with the number of conflicts
// touching the group and with group size beyond the threshold, floored at
// MinConfidence.
func (a *Analyzer) groupConfidence(members []string, conflictCount map[string]int) float64 {
	conflicts := 0
	for _, id := range members {
		conflicts += conflictCount[id]
	}

	confidence := 1.0
	confidence -= a.config.ConflictPenalty * float64(conflicts)
	if extra := len(members) - a.config.SizeThreshold; extra > 0 {
		confidence -= a.config.SizePenalty * float64(extra)
	}

	if confidence < a.config.MinConfidence {
		confidence = a.config.MinConfidence
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// buildMetadata aggregates counts and the estimated saving of the leveled
// schedule against sequential execution. Placeholder ids referenced but not
// present in the task list are excluded from both sides of the saving.
func (a *Analyzer) buildMetadata(tasks []task.Task, known map[string]task.Task, order [][]string) Metadata {
	meta := Metadata{TotalTasks: len(tasks)}

	var sequential, parallel int64
	for _, t := range tasks {
		if t.IsIndependent() {
			meta.IndependentTasks++
		}
		sequential += int64(t.Duration())
	}

	for _, level := range order {
		if len(level) > meta.MaxParallelism {
			meta.MaxParallelism = len(level)
		}
		var levelMax int64
		for _, id := range level {
			t, ok := known[id]
			if !ok {
				continue
			}
			if d := int64(t.Duration()); d > levelMax {
				levelMax = d
			}
		}
		parallel += levelMax
	}

	if saving := sequential - parallel; saving > 0 {
		meta.EstimatedTimeSaving = time.Duration(saving)
	}
	return meta
}
