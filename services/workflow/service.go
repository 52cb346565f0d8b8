package workflow

import (
	"fmt"
	"time"

	"github.com/gorilla/mux"

	"agentflow-runner/pkg/httpapi"
	"agentflow-runner/services/storage"
)

// defaultExecutionTimeout bounds a single execute request.
const defaultExecutionTimeout = 5 * time.Minute

// Service handles HTTP requests for workflow operations.
// It depends on the Storage interface rather than a concrete implementation,
// keeping the HTTP layer decoupled from persistence.
type Service struct {
	storage  storage.Storage
	executor *Executor
	timeout  time.Duration
}

// NewService creates a workflow Service with the given storage backend and
// executor. A zero timeout selects the default execution timeout.
func NewService(store storage.Storage, executor *Executor, timeout time.Duration) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("service: store cannot be nil")
	}
	if executor == nil {
		return nil, fmt.Errorf("service: executor cannot be nil")
	}
	if timeout <= 0 {
		timeout = defaultExecutionTimeout
	}
	return &Service{storage: store, executor: executor, timeout: timeout}, nil
}

func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	router := parentRouter.PathPrefix("/workflows").Subrouter()
	router.StrictSlash(false)
	router.Use(httpapi.JSON)

	router.HandleFunc("", s.HandleListWorkflows).Methods("GET")
	router.HandleFunc("/run", s.HandleRunDocument).Methods("POST")
	router.HandleFunc("/{id}", s.HandleGetWorkflow).Methods("GET")
	router.HandleFunc("/{id}", s.HandleSaveWorkflow).Methods("PUT")
	router.HandleFunc("/{id}", s.HandleDeleteWorkflow).Methods("DELETE")
	router.HandleFunc("/{id}/validate", s.HandleValidateWorkflow).Methods("POST")
	router.HandleFunc("/{id}/ir", s.HandleWorkflowIR).Methods("GET")
	router.HandleFunc("/{id}/execute", s.HandleExecuteWorkflow).Methods("POST")
}
