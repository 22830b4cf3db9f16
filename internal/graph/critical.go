package graph

import (
	"sort"
	"time"
)

// CriticalPath returns the dependency chain with the largest summed
// duration, walking from every independent task down through dependents to
// a leaf, together with that total. Ties keep the first path found in
// sorted root/dependent enumeration order. Cycles are not followed, so the
// walk terminates on any input.
func (g *Graph) CriticalPath() ([]string, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	type result struct {
		path []string
		cost time.Duration
	}

	memo := make(map[string]result, len(g.nodes))
	onPath := make(map[string]bool, len(g.nodes))

	var longestFrom func(id string) result
	longestFrom = func(id string) result {
		if r, ok := memo[id]; ok {
			return r
		}

		n := g.nodes[id]
		onPath[id] = true

		deps := make([]string, 0, len(n.Dependents))
		for d := range n.Dependents {
			if _, ok := g.nodes[d]; ok && !onPath[d] {
				deps = append(deps, d)
			}
		}
		sort.Strings(deps)

		var best result
		for _, d := range deps {
			if r := longestFrom(d); r.cost > best.cost {
				best = r
			}
		}
		onPath[id] = false

		r := result{
			path: append([]string{id}, best.path...),
			cost: n.Task.Duration() + best.cost,
		}
		memo[id] = r
		return r
	}

	var best result
	for _, root := range g.independentLocked() {
		if r := longestFrom(root); r.cost > best.cost {
			best = r
		}
	}
	return best.path, best.cost
}
