package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"agentflow-runner/pkg/httpapi"
	"agentflow-runner/services/graph"
	"agentflow-runner/services/nodes"
	"agentflow-runner/services/storage"
)

// maxRequestBody limits the size of request bodies to prevent abuse.
const maxRequestBody = 1 << 20 // 1MB

const (
	statusCompleted = "completed"
	statusFailedRun = "failed"
)

// ExecutionResponse is the outcome of one execute request. Node failures
// are reported here with status "failed" rather than as HTTP errors.
type ExecutionResponse struct {
	ExecutedAt string         `json:"executedAt"`
	Status     string         `json:"status"`
	Result     map[string]any `json:"result"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	FailedNode string         `json:"failedNode,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ValidationResponse reports the validator verdict for a saved workflow.
type ValidationResponse struct {
	Valid   bool         `json:"valid"`
	Reason  graph.Reason `json:"reason,omitempty"`
	NodeID  string       `json:"nodeId,omitempty"`
	Message string       `json:"message,omitempty"`
}

type executeRequest struct {
	Inputs map[string]any `json:"inputs"`
}

type runRequest struct {
	Workflow graph.Document `json:"workflow"`
	Inputs   map[string]any `json:"inputs"`
}

// HandleListWorkflows lists saved workflows, optionally filtered by ?owner=.
func (s *Service) HandleListWorkflows(w http.ResponseWriter, r *http.Request) {
	rid := httpapi.ReqID(r)
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))

	list, err := s.storage.ListWorkflows(r.Context(), owner)
	if err != nil {
		slog.Error("failed to list workflows", "owner", owner, "requestId", rid, "error", err)
		httpapi.WriteError(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	httpapi.WriteJSON(w, r, http.StatusOK, map[string]any{"workflows": list})
}

// HandleGetWorkflow returns the authoring document of a saved workflow.
func (s *Service) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}
	httpapi.WriteJSON(w, r, http.StatusOK, map[string]any{
		"id":         wf.ID,
		"owner":      wf.Owner,
		"name":       wf.Name,
		"nodes":      wf.Nodes,
		"modifiedAt": wf.ModifiedAt,
	})
}

// HandleSaveWorkflow validates and stores a workflow document under the
// path id. Unsound graphs are rejected before they reach storage.
func (s *Service) HandleSaveWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := httpapi.ReqID(r)
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var body struct {
		Owner string `json:"owner"`
		graph.Document
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("failed to decode workflow document", "id", id, "requestId", rid, "error", err)
		httpapi.WriteError(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}

	g := body.Graph()
	if err := graph.Validate(g); err != nil {
		slog.Warn("rejected unsound workflow", "id", id, "requestId", rid, "error", err)
		httpapi.WriteError(w, "INVALID_WORKFLOW", err.Error(), http.StatusUnprocessableEntity)
		return
	}

	wf := &storage.Workflow{ID: id, Owner: body.Owner, Name: body.Name, Nodes: g.Nodes}
	if err := s.storage.UpsertWorkflow(r.Context(), wf); err != nil {
		slog.Error("failed to save workflow", "id", id, "requestId", rid, "error", err)
		httpapi.WriteError(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	slog.Info("workflow saved", "id", id, "nodes", len(wf.Nodes), "requestId", rid)
	httpapi.WriteJSON(w, r, http.StatusOK, map[string]any{"id": wf.ID, "modifiedAt": wf.ModifiedAt})
}

// HandleDeleteWorkflow soft-deletes a saved workflow.
func (s *Service) HandleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := httpapi.ReqID(r)
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.storage.DeleteWorkflow(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("workflow not found for delete", "id", id, "requestId", rid)
			httpapi.WriteError(w, "NOT_FOUND", "workflow not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to delete workflow", "id", id, "requestId", rid, "error", err)
		httpapi.WriteError(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleValidateWorkflow runs the structural validator on a saved workflow.
func (s *Service) HandleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}
	httpapi.WriteJSON(w, r, http.StatusOK, validationResponse(graph.Validate(wf.Graph())))
}

// HandleWorkflowIR exports a saved workflow in its intermediate
// representation.
func (s *Service) HandleWorkflowIR(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}
	ir, err := graph.BuildIR(wf.Name, wf.Graph())
	if err != nil {
		httpapi.WriteError(w, "INVALID_WORKFLOW", err.Error(), http.StatusUnprocessableEntity)
		return
	}
	httpapi.WriteJSON(w, r, http.StatusOK, ir)
}

// HandleExecuteWorkflow loads a saved workflow and resolves it with the
// input bindings from the request body.
func (s *Service) HandleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := httpapi.ReqID(r)
	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var body executeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("failed to decode request body", "id", wf.ID, "requestId", rid, "error", err)
		httpapi.WriteError(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}

	s.run(w, r, wf.ID.String(), wf.Graph(), body.Inputs)
}

// HandleRunDocument resolves an unsaved workflow document.
func (s *Service) HandleRunDocument(w http.ResponseWriter, r *http.Request) {
	rid := httpapi.ReqID(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("failed to decode request body", "requestId", rid, "error", err)
		httpapi.WriteError(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}
	s.run(w, r, body.Workflow.Name, body.Workflow.Graph(), body.Inputs)
}

// run validates g, executes it under the service timeout and writes the
// ExecutionResponse. The executor never sees a rejected graph.
func (s *Service) run(w http.ResponseWriter, r *http.Request, name string, g *graph.Graph, inputs map[string]any) {
	rid := httpapi.ReqID(r)
	if err := graph.Validate(g); err != nil {
		slog.Warn("refusing to execute unsound workflow", "id", name, "requestId", rid, "error", err)
		httpapi.WriteError(w, "INVALID_WORKFLOW", err.Error(), http.StatusUnprocessableEntity)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	executedAt := time.Now().Format(time.RFC3339)
	result, err := s.executor.Execute(ctx, g, inputs)
	resp := executionResponse(g, result, err)
	resp.ExecutedAt = executedAt

	if err != nil {
		slog.Warn("workflow completed with failure",
			"id", name,
			"requestId", rid,
			"failedNode", resp.FailedNode,
			"kind", resp.Kind,
			"error", resp.Error,
		)
	} else {
		slog.Info("workflow executed", "id", name, "nodes", g.Len(), "requestId", rid)
	}
	httpapi.WriteJSON(w, r, http.StatusOK, resp)
}

// loadWorkflow parses the path id and fetches the workflow, writing the
// error response itself when either step fails.
func (s *Service) loadWorkflow(w http.ResponseWriter, r *http.Request) (*storage.Workflow, bool) {
	rid := httpapi.ReqID(r)
	id, ok := parseID(w, r)
	if !ok {
		return nil, false
	}

	wf, err := s.storage.GetWorkflow(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("workflow not found", "id", id, "requestId", rid)
			httpapi.WriteError(w, "NOT_FOUND", "workflow not found", http.StatusNotFound)
			return nil, false
		}
		slog.Error("failed to get workflow", "id", id, "requestId", rid, "error", err)
		httpapi.WriteError(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return wf, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id := mux.Vars(r)["id"]
	wfUUID, err := uuid.Parse(id)
	if err != nil {
		slog.Warn("invalid workflow id", "id", id, "requestId", httpapi.ReqID(r), "error", err)
		httpapi.WriteError(w, "INVALID_ID", "invalid workflow id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return wfUUID, true
}

func validationResponse(err error) ValidationResponse {
	if err == nil {
		return ValidationResponse{Valid: true}
	}
	resp := ValidationResponse{Message: err.Error()}
	var serr *graph.StructuralError
	if errors.As(err, &serr) {
		resp.Reason = serr.Reason
		resp.NodeID = serr.NodeID
	}
	return resp
}

// executionResponse maps an execution outcome onto the response body.
func executionResponse(g *graph.Graph, result map[string]any, err error) ExecutionResponse {
	if err == nil {
		return ExecutionResponse{
			Status:  statusCompleted,
			Result:  result,
			Outputs: Outputs(g, result),
		}
	}

	resp := ExecutionResponse{Status: statusFailedRun, Kind: ErrorKind(err), Error: err.Error()}
	var nerr *nodes.NodeError
	var rerr *ResolutionError
	switch {
	case errors.As(err, &nerr):
		resp.FailedNode = nerr.NodeID
	case errors.As(err, &rerr) && rerr.LoopID != "":
		resp.FailedNode = rerr.LoopID
	}
	return resp
}

// ErrorKind names the error class of an execution failure.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, nodes.ErrType):
		return "type_error"
	case errors.Is(err, nodes.ErrUnsupportedPayload):
		return "unsupported_payload"
	case errors.Is(err, nodes.ErrAdapter):
		return "adapter_error"
	case errors.Is(err, nodes.ErrResolution):
		return "resolution_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal_error"
	}
}
