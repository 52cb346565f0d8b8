package proxy

import (
	"fmt"

	"github.com/gorilla/mux"

	"agentflow-runner/pkg/clients/fetch"
	"agentflow-runner/pkg/clients/llm"
	"agentflow-runner/pkg/clients/search"
	"agentflow-runner/pkg/httpapi"
)

// Providers is the model backend behind the llm and search routes.
type Providers interface {
	llm.Client
	search.Client
	Names() []string
}

// Service exposes the node adapters over HTTP so remote runners can
// execute workflows without holding provider credentials.
type Service struct {
	providers Providers
	fetcher   fetch.Client
}

// NewService creates a proxy Service over the given providers and fetcher.
func NewService(providers Providers, fetcher fetch.Client) (*Service, error) {
	if providers == nil {
		return nil, fmt.Errorf("proxy: providers cannot be nil")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("proxy: fetcher cannot be nil")
	}
	return &Service{providers: providers, fetcher: fetcher}, nil
}

func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	router := parentRouter.NewRoute().Subrouter()
	router.Use(httpapi.JSON)

	router.HandleFunc("/http", s.HandleHTTP).Methods("POST")
	router.HandleFunc("/search", s.HandleSearch).Methods("POST")
	router.HandleFunc("/llm", s.HandleLLM).Methods("POST")
	router.HandleFunc("/providers", s.HandleProviders).Methods("GET")
}
