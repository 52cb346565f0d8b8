package proxy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"agentflow-runner/pkg/clients/fetch"
	"agentflow-runner/pkg/clients/llm"
	"agentflow-runner/pkg/clients/provider"
	"agentflow-runner/pkg/clients/search"
	"agentflow-runner/pkg/httpapi"
)

// maxRequestBody limits proxy request bodies, inline images included.
const maxRequestBody = 10 << 20 // 10MB

type httpRequest struct {
	URLs   []string `json:"urls"`
	Method string   `json:"method"`
}

type searchRequest struct {
	Provider string `json:"provider"`
	Query    string `json:"query"`
}

type llmRequest struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Prompt      *string  `json:"prompt"`
	System      *string  `json:"system"`
	Image       *string  `json:"image"`
	Temperature *float64 `json:"temperature"`
	ExpectJSON  bool     `json:"expectJson"`
}

// HandleHTTP fetches every URL in the request body.
func (s *Service) HandleHTTP(w http.ResponseWriter, r *http.Request) {
	var body httpRequest
	if !decode(w, r, &body) {
		return
	}
	if len(body.URLs) == 0 {
		writeFailure(w, r, http.StatusBadRequest, "The 'urls' property must be a non-empty array.")
		return
	}
	method := body.Method
	if strings.TrimSpace(method) == "" {
		method = http.MethodGet
	}

	result, err := s.fetcher.Fetch(r.Context(), fetch.Request{URLs: body.URLs, Method: method})
	if err != nil {
		slog.Warn("http proxy failed", "urls", len(body.URLs), "requestId", httpapi.ReqID(r), "error", err)
		writeFailure(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, r, result)
}

// HandleSearch runs a grounded search with the requested provider.
func (s *Service) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if !decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		writeFailure(w, r, http.StatusBadRequest, "The 'query' property must be a non-empty string.")
		return
	}

	result, err := s.providers.Search(r.Context(), search.Request{Provider: body.Provider, Query: body.Query})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, provider.ErrSearchUnsupported) {
			status = http.StatusBadRequest
		}
		slog.Warn("search proxy failed", "provider", body.Provider, "requestId", httpapi.ReqID(r), "error", err)
		writeFailure(w, r, status, err.Error())
		return
	}
	writeResult(w, r, result)
}

// HandleLLM forwards a model request to the requested provider.
func (s *Service) HandleLLM(w http.ResponseWriter, r *http.Request) {
	var body llmRequest
	if !decode(w, r, &body) {
		return
	}
	if isBlank(body.Prompt) && isBlank(body.Image) {
		writeFailure(w, r, http.StatusBadRequest, "Provide either a prompt or an image payload.")
		return
	}

	req := llm.Request{
		Provider:    body.Provider,
		Model:       body.Model,
		System:      body.System,
		Image:       body.Image,
		Temperature: body.Temperature,
		ExpectJSON:  body.ExpectJSON,
	}
	if body.Prompt != nil {
		req.Prompt = *body.Prompt
	}

	result, err := s.providers.Generate(r.Context(), req)
	if err != nil {
		slog.Warn("llm proxy failed", "provider", body.Provider, "model", body.Model, "requestId", httpapi.ReqID(r), "error", err)
		writeFailure(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, r, result)
}

// HandleProviders lists the registered provider names.
func (s *Service) HandleProviders(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, r, http.StatusOK, map[string]any{"providers": s.providers.Names()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Warn("failed to decode proxy request", "path", r.URL.Path, "requestId", httpapi.ReqID(r), "error", err)
		writeFailure(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, r *http.Request, result any) {
	httpapi.WriteJSON(w, r, http.StatusOK, map[string]any{"result": result})
}

func writeFailure(w http.ResponseWriter, r *http.Request, status int, message string) {
	httpapi.WriteJSON(w, r, status, map[string]string{"error": message})
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}
