package dag

// TopologicalSort orders nodes with Kahn's algorithm. Ready nodes are
// taken in first-registration order and successors in edge order, so the
// same input always produces the same sequence.
//
// The result is shorter than NodeCount when a cycle exists: nodes on or
// behind a cycle never reach in-degree zero. The graph is not modified.
func (g *Graph) TopologicalSort() []string {
	inDegree := make(map[string]int, len(g.InDegree))
	for id, degree := range g.InDegree {
		inDegree[id] = degree
	}

	// Queue of nodes with no dependencies
	queue := []string{}
	for _, id := range g.Nodes {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(g.Nodes))

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		sorted = append(sorted, current)

		for _, neighbor := range g.Edges[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	return sorted
}
