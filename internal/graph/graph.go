// Package graph builds and maintains the task dependency graph used for
// parallel execution planning.
//
// The graph owns its node set exclusively. Mutations and queries are guarded
// by an internal mutex, but the structure is designed for single-writer use:
// callers sharing one graph across goroutines must serialize mutation
// externally. All traversals are bounded with explicit stacks and visited
// sets so arbitrary input — self-loops, deep chains, cyclic subgraphs —
// terminates rather than recursing without limit.
package graph

import (
	"sort"
	"sync"
	"time"

	"github.com/stride-dev/stride/internal/task"
)

// Node wraps a task with its computed topological position.
type Node struct {
	// Task carries the task metadata. Placeholder nodes, created when an
	// edge references an id that was never explicitly added, hold a Task
	// with only the ID set.
	Task task.Task

	// Level is the topological depth: 0 for independent tasks, otherwise
	// 1 + the maximum level among dependencies. -1 means unset.
	Level int

	// Dependencies holds the ids this node depends on.
	Dependencies map[string]struct{}

	// Dependents holds the reverse edges: ids that depend on this node.
	Dependents map[string]struct{}

	// placeholder marks nodes created implicitly by an edge reference.
	// An explicit add merges into the placeholder rather than replacing
	// it, preserving accumulated dependents.
	placeholder bool
}

// Graph is the dependency graph over a set of tasks.
type Graph struct {
	mu    sync.Mutex
	nodes map[string]*Node

	// order caches the leveled execution order until the next mutation.
	order [][]string
}

// New creates an empty dependency graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
	}
}

// AddTask upserts a task by id with the given dependencies. Dependencies
// referenced before being added themselves become placeholder nodes that
// are assumed independent until an explicit add fills them in. Repeated
// adds union dependency sets rather than replacing them.
func (g *Graph) AddTask(id string, dependencies []string) {
	g.AddCompleteTask(task.Task{ID: id, DependsOn: dependencies})
}

// AddCompleteTask is AddTask carrying full task metadata (duration,
// resources, tags) instead of placeholder defaults.
func (g *Graph) AddCompleteTask(t task.Task) {
	if t.ID == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	node := g.ensureNode(t.ID)
	// An explicit add replaces placeholder metadata but merges edges.
	node.Task = t
	node.placeholder = false

	for _, dep := range t.DependsOn {
		if dep == "" {
			continue
		}
		node.Dependencies[dep] = struct{}{}
		g.ensureNode(dep).Dependents[t.ID] = struct{}{}
	}

	g.invalidate()
	g.recomputeLevels()
}

// ensureNode returns the node for id, creating a placeholder if needed.
// Caller must hold g.mu.
func (g *Graph) ensureNode(id string) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{
		Task:         task.Task{ID: id},
		Level:        -1,
		Dependencies: make(map[string]struct{}),
		Dependents:   make(map[string]struct{}),
		placeholder:  true,
	}
	g.nodes[id] = n
	return n
}

// invalidate drops derived caches. Caller must hold g.mu.
func (g *Graph) invalidate() {
	g.order = nil
}

// Len returns the number of nodes, placeholders included.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Task returns the task metadata stored for id.
func (g *Graph) Task(id string) (task.Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return task.Task{}, false
	}
	return n.Task, true
}

// Level returns the computed level for id, or -1 if the id is unknown.
func (g *Graph) Level(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return -1
	}
	return n.Level
}

// IndependentTasks returns the ids of tasks with no dependencies, sorted.
func (g *Graph) IndependentTasks() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.independentLocked()
}

func (g *Graph) independentLocked() []string {
	var ids []string
	for id, n := range g.nodes {
		if len(n.Dependencies) == 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// recomputeLevels recalculates every node's level from scratch. The walk
// is iterative with an explicit stack; a dependency that is still being
// computed (a cycle) contributes nothing, so computation terminates on any
// input and cycle members receive best-effort levels. Caller must hold g.mu.
func (g *Graph) recomputeLevels() {
	const (
		unvisited = iota
		inProgress
		done
	)

	state := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		n.Level = -1
	}

	for root := range g.nodes {
		if state[root] != unvisited {
			continue
		}

		stack := []string{root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			n := g.nodes[id]

			switch state[id] {
			case done:
				stack = stack[:len(stack)-1]

			case inProgress:
				// All resolvable dependencies are done by now; the
				// rest are on the current path (cycle) and skipped.
				level := 0
				for dep := range n.Dependencies {
					dn, ok := g.nodes[dep]
					if !ok || state[dep] != done {
						continue
					}
					if dn.Level+1 > level {
						level = dn.Level + 1
					}
				}
				n.Level = level
				state[id] = done
				stack = stack[:len(stack)-1]

			default:
				state[id] = inProgress
				for dep := range n.Dependencies {
					if _, ok := g.nodes[dep]; ok && state[dep] == unvisited {
						stack = append(stack, dep)
					}
				}
			}
		}
	}
}

// ExecutionOrder returns the tasks grouped by level, levels ascending and
// ids sorted within each level. The result is computed lazily and cached
// until the next mutation; the returned slices are copies the caller may
// keep.
func (g *Graph) ExecutionOrder() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return copyOrder(g.executionOrderLocked())
}

func (g *Graph) executionOrderLocked() [][]string {
	if g.order != nil {
		return g.order
	}

	maxLevel := -1
	byLevel := make(map[int][]string)
	for id, n := range g.nodes {
		byLevel[n.Level] = append(byLevel[n.Level], id)
		if n.Level > maxLevel {
			maxLevel = n.Level
		}
	}

	order := make([][]string, 0, maxLevel+1)
	for lvl := 0; lvl <= maxLevel; lvl++ {
		ids := byLevel[lvl]
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		order = append(order, ids)
	}

	g.order = order
	return order
}

func copyOrder(order [][]string) [][]string {
	out := make([][]string, len(order))
	for i, ids := range order {
		out[i] = append([]string(nil), ids...)
	}
	return out
}

// ExecutionLevel is one level of the execution order enriched with
// parallel-safety and cost information.
type ExecutionLevel struct {
	// Index is the level number, 0-based.
	Index int

	// TaskIDs are the tasks at this level, sorted.
	TaskIDs []string

	// ParallelSafe is true iff no two tasks at this level share a resource.
	ParallelSafe bool

	// Duration is the level's critical cost assuming full parallelism:
	// the maximum member duration.
	Duration time.Duration
}

// ExecutionLevels returns the execution order enriched per level with a
// parallel-safety flag and an estimated duration.
func (g *Graph) ExecutionLevels() []ExecutionLevel {
	g.mu.Lock()
	defer g.mu.Unlock()

	order := g.executionOrderLocked()
	levels := make([]ExecutionLevel, 0, len(order))
	for i, ids := range order {
		lvl := ExecutionLevel{
			Index:        i,
			TaskIDs:      append([]string(nil), ids...),
			ParallelSafe: true,
		}
		for _, id := range ids {
			if d := g.nodes[id].Task.Duration(); d > lvl.Duration {
				lvl.Duration = d
			}
		}
		for a := 0; a < len(ids) && lvl.ParallelSafe; a++ {
			for b := a + 1; b < len(ids); b++ {
				ta := g.nodes[ids[a]].Task
				tb := g.nodes[ids[b]].Task
				if len(task.ResourceOverlap(ta.Resources, tb.Resources)) > 0 {
					lvl.ParallelSafe = false
					break
				}
			}
		}
		levels = append(levels, lvl)
	}
	return levels
}

// CanStart returns true iff every dependency of id is in the completed set.
// Unknown ids cannot start.
func (g *Graph) CanStart(id string, completed map[string]bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canStartLocked(id, completed)
}

func (g *Graph) canStartLocked(id string, completed map[string]bool) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	for dep := range n.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// NextTasks returns the ids that are not completed, not in progress, and
// whose dependencies are all completed, sorted. This supports readiness-
// driven scheduling that starts tasks as soon as they unblock instead of
// waiting for a whole level to finish.
func (g *Graph) NextTasks(completed, inProgress map[string]bool) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ready []string
	for id := range g.nodes {
		if completed[id] || inProgress[id] {
			continue
		}
		if g.canStartLocked(id, completed) {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

// HasPath returns true if from transitively depends on to.
func (g *Graph) HasPath(from, to string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hasPathLocked(from, to)
}

func (g *Graph) hasPathLocked(from, to string) bool {
	if from == to {
		return false
	}

	visited := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		for dep := range n.Dependencies {
			if dep == to {
				return true
			}
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}
	return false
}
