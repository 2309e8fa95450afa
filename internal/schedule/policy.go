package schedule

import (
	"fmt"

	"github.com/caesarsage/mini-pm/internal/dag"
)

// GhostPolicy selects how dependencies on undeclared tasks are handled.
type GhostPolicy string

const (
	// GhostTaskCount keeps ghost nodes in the sort but requires the order
	// to be exactly as long as the declared task list. Any ghost therefore
	// surfaces as a cycle.
	GhostTaskCount GhostPolicy = "task_count"

	// GhostNodeCount keeps ghost nodes in the order and requires every
	// node, ghosts included, to be ordered.
	GhostNodeCount GhostPolicy = "node_count"

	// GhostReject fails the request before sorting.
	GhostReject GhostPolicy = "reject"
)

// ParseGhostPolicy accepts the policy names used in configuration. An
// empty string selects GhostTaskCount.
func ParseGhostPolicy(s string) (GhostPolicy, error) {
	switch p := GhostPolicy(s); p {
	case "":
		return GhostTaskCount, nil
	case GhostTaskCount, GhostNodeCount, GhostReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown ghost policy %q", s)
	}
}

func (p GhostPolicy) expected(g *dag.Graph) int {
	if p == GhostNodeCount {
		return g.NodeCount()
	}
	return g.TaskCount()
}
