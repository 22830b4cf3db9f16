package graph

import "sort"

// DetectCycles finds dependency cycles via depth-first search with an
// explicit recursion stack. Each reported cycle is closed: the first id is
// repeated at the end. A back-edge to a node still on the stack records the
// cycle and that branch is not followed further; fully-visited nodes are
// never re-explored, so the walk terminates on any input.
func (g *Graph) DetectCycles() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	type frame struct {
		id   string
		deps []string
		next int
	}

	visited := make(map[string]bool, len(g.nodes))
	onPath := make(map[string]bool, len(g.nodes))

	roots := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		roots = append(roots, id)
	}
	sort.Strings(roots)

	newFrame := func(id string) frame {
		deps := make([]string, 0, len(g.nodes[id].Dependencies))
		for dep := range g.nodes[id].Dependencies {
			if _, ok := g.nodes[dep]; ok {
				deps = append(deps, dep)
			}
		}
		sort.Strings(deps)
		return frame{id: id, deps: deps}
	}

	var cycles [][]string
	var path []string

	for _, root := range roots {
		if visited[root] {
			continue
		}

		stack := []frame{newFrame(root)}
		visited[root] = true
		onPath[root] = true
		path = append(path[:0], root)

		for len(stack) > 0 {
			f := &stack[len(stack)-1]

			if f.next >= len(f.deps) {
				onPath[f.id] = false
				path = path[:len(path)-1]
				stack = stack[:len(stack)-1]
				continue
			}

			dep := f.deps[f.next]
			f.next++

			if onPath[dep] {
				// Back-edge: close the cycle from the first occurrence
				// of dep on the current path.
				start := 0
				for i, id := range path {
					if id == dep {
						start = i
						break
					}
				}
				cycle := append([]string(nil), path[start:]...)
				cycle = append(cycle, dep)
				cycles = append(cycles, cycle)
				continue
			}
			if visited[dep] {
				continue
			}

			visited[dep] = true
			onPath[dep] = true
			path = append(path, dep)
			stack = append(stack, newFrame(dep))
		}
	}

	return cycles
}
