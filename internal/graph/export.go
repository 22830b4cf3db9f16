package graph

import (
	"fmt"
	"sort"
	"strings"
)

// AdjacencyList exports the graph as a map from task id to its sorted
// dependency ids. The result is a copy; mutating it does not affect the
// graph.
func (g *Graph) AdjacencyList() map[string][]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	adj := make(map[string][]string, len(g.nodes))
	for id, n := range g.nodes {
		deps := make([]string, 0, len(n.Dependencies))
		for dep := range n.Dependencies {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		adj[id] = deps
	}
	return adj
}

// Describe exports the graph in graphviz dot form for external
// visualization. Pure and side-effect free; nodes are emitted in sorted
// order so output is deterministic.
func (g *Graph) Describe() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("digraph tasks {\n")
	for _, id := range ids {
		n := g.nodes[id]
		fmt.Fprintf(&b, "  %q [label=%q];\n", id, nodeLabel(n))

		deps := make([]string, 0, len(n.Dependencies))
		for dep := range n.Dependencies {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		for _, dep := range deps {
			fmt.Fprintf(&b, "  %q -> %q;\n", id, dep)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func nodeLabel(n *Node) string {
	if n.Task.Description == "" {
		return fmt.Sprintf("%s (L%d)", n.Task.ID, n.Level)
	}
	return fmt.Sprintf("%s (L%d)\n%s", n.Task.ID, n.Level, n.Task.Description)
}
