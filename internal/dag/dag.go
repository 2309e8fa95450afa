package dag

import (
	"github.com/caesarsage/mini-pm/internal/task"
)

// Graph is the dependency graph of one scheduling request.
//
// Nodes keeps titles in the order they were first registered; every
// traversal iterates that slice rather than the maps so results do not
// depend on map ordering.
type Graph struct {
	Nodes    []string
	Edges    map[string][]string // dependency -> dependent titles
	InDegree map[string]int

	declared map[string]bool
}

// Creates an empty graph
func New() *Graph {
	return &Graph{
		Nodes:    []string{},
		Edges:    make(map[string][]string),
		InDegree: make(map[string]int),
		declared: make(map[string]bool),
	}
}

// Build turns the task list into a graph. Titles are registered first, in
// input order, then dependency edges are added. A dependency naming a title
// that no task declares becomes a ghost node.
func Build(specs []task.Spec) (*Graph, error) {
	if len(specs) == 0 {
		return nil, &GraphError{Kind: ErrInvalidInput, Msg: MsgNoTasks}
	}

	g := New()
	for i, s := range specs {
		if s.Title == "" {
			return nil, invalidf("task %d has no title", i)
		}
		if err := g.AddTask(s.Title); err != nil {
			return nil, err
		}
	}

	for _, s := range specs {
		for _, dep := range s.Dependencies {
			if dep == "" {
				return nil, invalidf("task %q lists an empty dependency", s.Title)
			}
			g.AddDependency(dep, s.Title)
		}
	}

	return g, nil
}

// AddTask registers a declared task title.
func (g *Graph) AddTask(title string) error {
	if g.declared[title] {
		return &GraphError{Kind: ErrDuplicateTitle, Msg: title}
	}
	g.declared[title] = true
	g.addNode(title)
	return nil
}

// AddDependency adds an edge from -> to, registering from as a ghost node
// when it has not been seen yet.
func (g *Graph) AddDependency(from, to string) {
	g.addNode(from)
	g.addNode(to)

	g.Edges[from] = append(g.Edges[from], to)
	g.InDegree[to]++
}

func (g *Graph) addNode(title string) {
	if _, exists := g.Edges[title]; exists {
		return
	}
	g.Nodes = append(g.Nodes, title)
	g.Edges[title] = []string{}
	g.InDegree[title] = 0
}

// TaskCount is the number of declared tasks.
func (g *Graph) TaskCount() int {
	return len(g.declared)
}

// NodeCount is the number of nodes, ghosts included.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of dependency edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, to := range g.Edges {
		n += len(to)
	}
	return n
}

// Ghosts returns nodes that only appear as dependencies, in registration order.
func (g *Graph) Ghosts() []string {
	var ghosts []string
	for _, n := range g.Nodes {
		if !g.declared[n] {
			ghosts = append(ghosts, n)
		}
	}
	return ghosts
}

