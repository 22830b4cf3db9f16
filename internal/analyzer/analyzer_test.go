package analyzer

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stride-dev/stride/internal/task"
)

func taskIDs(groups []ParallelGroup) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = g.TaskIDs
	}
	return out
}

func TestAnalyzeEmptyInput(t *testing.T) {
	result := Analyze(nil)

	if result.Metadata != (Metadata{}) {
		t.Errorf("metadata = %+v, want zero", result.Metadata)
	}
	if len(result.ExecutionOrder) != 0 || len(result.Groups) != 0 ||
		len(result.Conflicts) != 0 || len(result.Cycles) != 0 {
		t.Errorf("expected empty collections, got %+v", result)
	}
}

func TestAnalyzeLinearChain(t *testing.T) {
	result := Analyze([]task.Task{
		{ID: "1"},
		{ID: "2", DependsOn: []string{"1"}},
		{ID: "3", DependsOn: []string{"2"}},
	})

	want := [][]string{{"1"}, {"2"}, {"3"}}
	if !reflect.DeepEqual(result.ExecutionOrder, want) {
		t.Errorf("ExecutionOrder = %v, want %v", result.ExecutionOrder, want)
	}
	if result.Metadata.MaxParallelism != 1 {
		t.Errorf("MaxParallelism = %d, want 1", result.Metadata.MaxParallelism)
	}
	if result.Metadata.EstimatedTimeSaving != 0 {
		t.Errorf("EstimatedTimeSaving = %v, want 0 for a pure chain", result.Metadata.EstimatedTimeSaving)
	}
}

func TestAnalyzeDiamond(t *testing.T) {
	result := Analyze([]task.Task{
		{ID: "1"},
		{ID: "2", DependsOn: []string{"1"}},
		{ID: "3", DependsOn: []string{"1"}},
		{ID: "4", DependsOn: []string{"2", "3"}},
	})

	var branch *ParallelGroup
	for i := range result.Groups {
		if reflect.DeepEqual(result.Groups[i].TaskIDs, []string{"2", "3"}) {
			branch = &result.Groups[i]
		}
	}
	if branch == nil {
		t.Fatalf("no group containing 2 and 3; groups = %v", taskIDs(result.Groups))
	}
	if branch.Reason != "Share dependencies: 1" {
		t.Errorf("Reason = %q, want %q", branch.Reason, "Share dependencies: 1")
	}
	if branch.Risk != RiskLow {
		t.Errorf("Risk = %q, want low", branch.Risk)
	}

	if result.Graph.Level("4") <= result.Graph.Level("2") ||
		result.Graph.Level("4") <= result.Graph.Level("3") {
		t.Error("merge task must sit strictly below both branches")
	}
}

func TestAnalyzeIndependentGroupReason(t *testing.T) {
	result := Analyze([]task.Task{{ID: "a"}, {ID: "b"}})

	if len(result.Groups) != 1 {
		t.Fatalf("groups = %v, want one", taskIDs(result.Groups))
	}
	g := result.Groups[0]
	if g.Reason != "No dependencies" {
		t.Errorf("Reason = %q, want %q", g.Reason, "No dependencies")
	}
	if g.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0 for resource-disjoint independent group", g.Confidence)
	}
}

func TestAnalyzeCycle(t *testing.T) {
	result := Analyze([]task.Task{
		{ID: "1", DependsOn: []string{"3"}},
		{ID: "3", DependsOn: []string{"2"}},
		{ID: "2", DependsOn: []string{"1"}},
	})

	if len(result.Cycles) == 0 {
		t.Fatal("expected a reported cycle")
	}
	cycle := result.Cycles[0]
	if len(cycle) < 4 {
		t.Errorf("cycle %v too short", cycle)
	}
	members := make(map[string]bool)
	for _, id := range cycle {
		members[id] = true
	}
	for _, id := range []string{"1", "2", "3"} {
		if !members[id] {
			t.Errorf("cycle %v missing %s", cycle, id)
		}
	}

	// Cyclic members put their group at high risk.
	high := false
	for _, g := range result.Groups {
		if g.Risk == RiskHigh {
			high = true
		}
	}
	if !high {
		t.Error("expected at least one high-risk group")
	}
}

func TestAnalyzeSelfDependency(t *testing.T) {
	result := Analyze([]task.Task{{ID: "a", DependsOn: []string{"a"}}})

	if len(result.Cycles) != 1 {
		t.Fatalf("cycles = %v, want one 1-cycle", result.Cycles)
	}
	if !reflect.DeepEqual(result.Cycles[0], []string{"a", "a"}) {
		t.Errorf("cycle = %v, want [a a]", result.Cycles[0])
	}
	if result.Metadata.TotalTasks != 1 {
		t.Errorf("TotalTasks = %d, want 1", result.Metadata.TotalTasks)
	}
}

func TestAnalyzeResourceConflict(t *testing.T) {
	result := Analyze([]task.Task{
		{ID: "a", Resources: []string{"database"}},
		{ID: "b", Resources: []string{"database"}},
	})

	if len(result.Conflicts) != 1 {
		t.Fatalf("conflicts = %v, want one", result.Conflicts)
	}
	c := result.Conflicts[0]
	if c.Kind != ConflictResource {
		t.Errorf("Kind = %q, want resource", c.Kind)
	}
	if !strings.Contains(c.Description, "database") {
		t.Errorf("description %q must name the shared resource", c.Description)
	}
	if !reflect.DeepEqual(c.TaskIDs, []string{"a", "b"}) {
		t.Errorf("TaskIDs = %v, want [a b]", c.TaskIDs)
	}

	// Shared resources put the group at medium risk and cost confidence.
	g := result.Groups[0]
	if g.Risk != RiskMedium {
		t.Errorf("Risk = %q, want medium", g.Risk)
	}
	if g.Confidence >= 1.0 {
		t.Errorf("Confidence = %v, want < 1.0 with a conflict", g.Confidence)
	}
}

func TestNoConflictBetweenDependentTasks(t *testing.T) {
	// a and b share a resource but are ordered by a dependency path, so
	// they can never run simultaneously.
	result := Analyze([]task.Task{
		{ID: "a", Resources: []string{"database"}},
		{ID: "b", DependsOn: []string{"a"}, Resources: []string{"database"}},
	})

	if len(result.Conflicts) != 0 {
		t.Errorf("conflicts = %v, want none for ordered tasks", result.Conflicts)
	}
}

func TestAnalyzeFanIn(t *testing.T) {
	result := Analyze([]task.Task{
		{ID: "1"},
		{ID: "2"},
		{ID: "3"},
		{ID: "4", DependsOn: []string{"1", "2", "3"}},
	})

	if result.Metadata.MaxParallelism != 3 {
		t.Errorf("MaxParallelism = %d, want 3", result.Metadata.MaxParallelism)
	}
	if result.Metadata.IndependentTasks != 3 {
		t.Errorf("IndependentTasks = %d, want 3", result.Metadata.IndependentTasks)
	}
}

func TestEstimatedTimeSaving(t *testing.T) {
	result := Analyze([]task.Task{
		{ID: "a", EstimatedDuration: 10 * time.Second},
		{ID: "b", EstimatedDuration: 10 * time.Second},
	})

	if result.Metadata.EstimatedTimeSaving != 10*time.Second {
		t.Errorf("EstimatedTimeSaving = %v, want 10s", result.Metadata.EstimatedTimeSaving)
	}
}

func TestDependencyAmbiguityConflict(t *testing.T) {
	result := Analyze([]task.Task{
		{ID: "a", DependsOn: []string{"ghost"}},
	})

	found := false
	for _, c := range result.Conflicts {
		if c.Kind == ConflictDependencyAmbiguity && strings.Contains(c.Description, "ghost") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected dependency-ambiguity conflict, got %v", result.Conflicts)
	}
}

func TestConfidenceMonotonicInConflicts(t *testing.T) {
	a := NewAnalyzer()

	base := a.groupConfidence([]string{"x"}, map[string]int{})
	one := a.groupConfidence([]string{"x"}, map[string]int{"x": 1})
	two := a.groupConfidence([]string{"x"}, map[string]int{"x": 2})

	if base != 1.0 {
		t.Errorf("conflict-free single-task confidence = %v, want 1.0", base)
	}
	if !(base >= one && one >= two) {
		t.Errorf("confidence must be non-increasing: %v, %v, %v", base, one, two)
	}

	// Oversized groups cost confidence too.
	small := a.groupConfidence([]string{"a", "b", "c"}, map[string]int{})
	large := a.groupConfidence([]string{"a", "b", "c", "d", "e"}, map[string]int{})
	if small < large {
		t.Errorf("larger groups must not gain confidence: %v < %v", small, large)
	}

	// The floor holds for pathological counts.
	floored := a.groupConfidence([]string{"x"}, map[string]int{"x": 100})
	if floored < a.config.MinConfidence {
		t.Errorf("confidence %v below floor %v", floored, a.config.MinConfidence)
	}
}
