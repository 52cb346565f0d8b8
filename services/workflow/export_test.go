package workflow

import (
	"agentflow-runner/services/graph"
)

func ExecutionResponseFor(g *graph.Graph, result map[string]any, err error) ExecutionResponse {
	return executionResponse(g, result, err)
}

func ValidationResponseFor(err error) ValidationResponse {
	return validationResponse(err)
}
