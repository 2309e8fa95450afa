package dag

type visitState uint8

const (
	unvisited visitState = iota
	onStack
	done
)

// FindCycle returns one cycle as a closed path (first and last element are
// the same node), or nil when the graph is acyclic. The search starts from
// nodes in registration order so the reported cycle is stable.
func (g *Graph) FindCycle() []string {
	state := make(map[string]visitState, len(g.Nodes))
	var stack []string

	for _, start := range g.Nodes {
		if state[start] != unvisited {
			continue
		}
		if cycle := g.cycleDFS(start, state, &stack); cycle != nil {
			return cycle
		}
	}
	return nil
}

func (g *Graph) cycleDFS(current string, state map[string]visitState, stack *[]string) []string {
	state[current] = onStack
	*stack = append(*stack, current)

	for _, neighbor := range g.Edges[current] {
		switch state[neighbor] {
		case onStack:
			// neighbor is an ancestor: the cycle is the stack from it to here
			for i, id := range *stack {
				if id == neighbor {
					cycle := append([]string{}, (*stack)[i:]...)
					return append(cycle, neighbor)
				}
			}
		case unvisited:
			if cycle := g.cycleDFS(neighbor, state, stack); cycle != nil {
				return cycle
			}
		}
	}

	*stack = (*stack)[:len(*stack)-1]
	state[current] = done
	return nil
}
