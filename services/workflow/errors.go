package workflow

import (
	"fmt"
	"strings"

	"agentflow-runner/services/nodes"
)

// ResolutionError reports nodes left unresolved when a resolution pass made
// no progress. On a graph accepted by graph.Validate this indicates a
// malformed reference such as a missing input binding or loop body.
type ResolutionError struct {
	Unresolved []string
	// LoopID is set when the stall happened inside a loop iteration.
	LoopID    string
	Iteration int
}

func (e *ResolutionError) Error() string {
	ids := strings.Join(e.Unresolved, ", ")
	if e.LoopID != "" {
		return fmt.Sprintf("loop node '%s': subgraph execution failed at iteration %d. Unresolved nodes: %s.", e.LoopID, e.Iteration, ids)
	}
	return fmt.Sprintf("Execution failed. Could not resolve all nodes. Unresolved nodes: %s. This may be due to a cycle or missing dependency.", ids)
}

func (e *ResolutionError) Unwrap() error {
	return nodes.ErrResolution
}
