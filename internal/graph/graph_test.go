package graph

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stride-dev/stride/internal/task"
)

func TestLinearChainExecutionOrder(t *testing.T) {
	g := New()
	g.AddTask("1", nil)
	g.AddTask("2", []string{"1"})
	g.AddTask("3", []string{"2"})

	want := [][]string{{"1"}, {"2"}, {"3"}}
	if got := g.ExecutionOrder(); !reflect.DeepEqual(got, want) {
		t.Errorf("ExecutionOrder() = %v, want %v", got, want)
	}
}

func TestIndependentTasksOccupyLevelZero(t *testing.T) {
	g := New()
	g.AddTask("a", nil)
	g.AddTask("b", nil)
	g.AddTask("c", nil)

	want := []string{"a", "b", "c"}
	if got := g.IndependentTasks(); !reflect.DeepEqual(got, want) {
		t.Errorf("IndependentTasks() = %v, want %v", got, want)
	}
	for _, id := range want {
		if lvl := g.Level(id); lvl != 0 {
			t.Errorf("Level(%s) = %d, want 0", id, lvl)
		}
	}
}

func TestDiamondLevels(t *testing.T) {
	g := New()
	g.AddTask("1", nil)
	g.AddTask("2", []string{"1"})
	g.AddTask("3", []string{"1"})
	g.AddTask("4", []string{"2", "3"})

	if lvl := g.Level("4"); lvl <= g.Level("2") || lvl <= g.Level("3") {
		t.Errorf("merge level %d must exceed both branch levels (%d, %d)",
			lvl, g.Level("2"), g.Level("3"))
	}
	want := [][]string{{"1"}, {"2", "3"}, {"4"}}
	if got := g.ExecutionOrder(); !reflect.DeepEqual(got, want) {
		t.Errorf("ExecutionOrder() = %v, want %v", got, want)
	}
}

func TestPlaceholderMergedOnExplicitAdd(t *testing.T) {
	g := New()
	// "b" is referenced before being added: placeholder with a dependent.
	g.AddTask("a", []string{"b"})

	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}
	if !g.CanStart("b", nil) {
		t.Error("placeholder should be independent")
	}

	// The explicit add must merge, preserving accumulated dependents.
	g.AddCompleteTask(task.Task{ID: "b", EstimatedDuration: 2 * time.Second})

	if lvl := g.Level("a"); lvl != 1 {
		t.Errorf("Level(a) = %d, want 1 after explicit add of b", lvl)
	}
	path, cost := g.CriticalPath()
	want := []string{"b", "a"}
	if !reflect.DeepEqual(path, want) {
		t.Errorf("CriticalPath() = %v, want %v", path, want)
	}
	if wantCost := 2*time.Second + task.DefaultDuration; cost != wantCost {
		t.Errorf("critical cost = %v, want %v", cost, wantCost)
	}
}

func TestRepeatedAddUnionsDependencies(t *testing.T) {
	g := New()
	g.AddTask("c", []string{"a"})
	g.AddTask("c", []string{"b"})

	adj := g.AdjacencyList()
	want := []string{"a", "b"}
	if !reflect.DeepEqual(adj["c"], want) {
		t.Errorf("dependencies of c = %v, want %v", adj["c"], want)
	}
}

func TestDetectCycles(t *testing.T) {
	t.Run("three node cycle", func(t *testing.T) {
		g := New()
		g.AddTask("1", []string{"3"})
		g.AddTask("3", []string{"2"})
		g.AddTask("2", []string{"1"})

		cycles := g.DetectCycles()
		if len(cycles) == 0 {
			t.Fatal("expected at least one cycle")
		}

		cycle := cycles[0]
		if len(cycle) < 4 {
			t.Fatalf("cycle %v too short, want closed cycle of length >= 4", cycle)
		}
		if cycle[0] != cycle[len(cycle)-1] {
			t.Errorf("cycle %v is not closed", cycle)
		}
		members := make(map[string]bool)
		for _, id := range cycle {
			members[id] = true
		}
		for _, id := range []string{"1", "2", "3"} {
			if !members[id] {
				t.Errorf("cycle %v missing id %s", cycle, id)
			}
		}
	})

	t.Run("self dependency is a one-cycle", func(t *testing.T) {
		g := New()
		g.AddTask("a", []string{"a"})

		cycles := g.DetectCycles()
		if len(cycles) != 1 {
			t.Fatalf("cycles = %v, want exactly one", cycles)
		}
		if !reflect.DeepEqual(cycles[0], []string{"a", "a"}) {
			t.Errorf("cycle = %v, want [a a]", cycles[0])
		}
	})

	t.Run("acyclic graph reports none", func(t *testing.T) {
		g := New()
		g.AddTask("1", nil)
		g.AddTask("2", []string{"1"})

		if cycles := g.DetectCycles(); len(cycles) != 0 {
			t.Errorf("cycles = %v, want none", cycles)
		}
	})

	t.Run("level computation survives cycles", func(t *testing.T) {
		g := New()
		g.AddTask("a", []string{"b"})
		g.AddTask("b", []string{"a"})
		g.AddTask("c", []string{"a"})

		// Must terminate; exact levels inside the cycle are
		// implementation-defined but must be set.
		for _, id := range []string{"a", "b", "c"} {
			if g.Level(id) < 0 {
				t.Errorf("Level(%s) = %d, want >= 0", id, g.Level(id))
			}
		}
	})
}

func TestCriticalPath(t *testing.T) {
	g := New()
	g.AddCompleteTask(task.Task{ID: "root", EstimatedDuration: 1 * time.Second})
	g.AddCompleteTask(task.Task{ID: "fast", DependsOn: []string{"root"}, EstimatedDuration: 1 * time.Second})
	g.AddCompleteTask(task.Task{ID: "slow", DependsOn: []string{"root"}, EstimatedDuration: 10 * time.Second})
	g.AddCompleteTask(task.Task{ID: "leaf", DependsOn: []string{"slow"}, EstimatedDuration: 1 * time.Second})

	path, cost := g.CriticalPath()
	want := []string{"root", "slow", "leaf"}
	if !reflect.DeepEqual(path, want) {
		t.Errorf("CriticalPath() = %v, want %v", path, want)
	}
	if cost != 12*time.Second {
		t.Errorf("cost = %v, want 12s", cost)
	}
}

func TestCanStartAndNextTasks(t *testing.T) {
	g := New()
	g.AddTask("1", nil)
	g.AddTask("2", []string{"1"})
	g.AddTask("3", []string{"1", "2"})

	if !g.CanStart("1", nil) {
		t.Error("independent task should start with nothing completed")
	}
	if g.CanStart("2", nil) {
		t.Error("task 2 needs task 1 completed")
	}
	if g.CanStart("missing", map[string]bool{"1": true}) {
		t.Error("unknown ids cannot start")
	}

	completed := map[string]bool{"1": true}
	if got := g.NextTasks(completed, nil); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("NextTasks = %v, want [2]", got)
	}

	// In-progress tasks are not offered again.
	inProgress := map[string]bool{"2": true}
	if got := g.NextTasks(completed, inProgress); len(got) != 0 {
		t.Errorf("NextTasks = %v, want none", got)
	}

	completed["2"] = true
	if got := g.NextTasks(completed, nil); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("NextTasks = %v, want [3]", got)
	}
}

func TestExecutionLevels(t *testing.T) {
	g := New()
	g.AddCompleteTask(task.Task{ID: "a", Resources: []string{"database"}, EstimatedDuration: 3 * time.Second})
	g.AddCompleteTask(task.Task{ID: "b", Resources: []string{"database"}, EstimatedDuration: 7 * time.Second})
	g.AddCompleteTask(task.Task{ID: "c", DependsOn: []string{"a", "b"}})

	levels := g.ExecutionLevels()
	if len(levels) != 2 {
		t.Fatalf("levels = %d, want 2", len(levels))
	}

	if levels[0].ParallelSafe {
		t.Error("level 0 shares a resource and must not be parallel-safe")
	}
	if levels[0].Duration != 7*time.Second {
		t.Errorf("level 0 duration = %v, want max member duration 7s", levels[0].Duration)
	}

	if !levels[1].ParallelSafe {
		t.Error("single-task level is always parallel-safe")
	}
	if levels[1].Duration != task.DefaultDuration {
		t.Errorf("level 1 duration = %v, want default %v", levels[1].Duration, task.DefaultDuration)
	}
}

func TestHasPath(t *testing.T) {
	g := New()
	g.AddTask("1", nil)
	g.AddTask("2", []string{"1"})
	g.AddTask("3", []string{"2"})
	g.AddTask("x", nil)

	if !g.HasPath("3", "1") {
		t.Error("3 transitively depends on 1")
	}
	if g.HasPath("1", "3") {
		t.Error("dependency paths are directed")
	}
	if g.HasPath("x", "1") || g.HasPath("1", "x") {
		t.Error("x is unrelated")
	}
}

func TestExports(t *testing.T) {
	g := New()
	g.AddTask("b", []string{"a"})

	adj := g.AdjacencyList()
	if !reflect.DeepEqual(adj["b"], []string{"a"}) {
		t.Errorf("adjacency of b = %v, want [a]", adj["b"])
	}
	if len(adj["a"]) != 0 {
		t.Errorf("adjacency of a = %v, want empty", adj["a"])
	}

	desc := g.Describe()
	for _, want := range []string{"digraph tasks {", `"b" -> "a";`} {
		if !strings.Contains(desc, want) {
			t.Errorf("Describe() missing %q:\n%s", want, desc)
		}
	}
}

func TestEmptyGraph(t *testing.T) {
	g := New()

	if got := g.ExecutionOrder(); len(got) != 0 {
		t.Errorf("ExecutionOrder() = %v, want empty", got)
	}
	if got := g.IndependentTasks(); len(got) != 0 {
		t.Errorf("IndependentTasks() = %v, want empty", got)
	}
	path, cost := g.CriticalPath()
	if len(path) != 0 || cost != 0 {
		t.Errorf("CriticalPath() = %v, %v, want empty", path, cost)
	}
}
