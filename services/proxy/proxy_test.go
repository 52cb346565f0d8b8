package proxy_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"

	"agentflow-runner/pkg/clients/fetch"
	"agentflow-runner/pkg/clients/llm"
	"agentflow-runner/pkg/clients/provider"
	"agentflow-runner/pkg/clients/search"
	"agentflow-runner/services/proxy"
)

// recordingLLM captures the last request it was given.
type recordingLLM struct {
	last llm.Request
	err  error
}

func (r *recordingLLM) Generate(_ context.Context, req llm.Request) (any, error) {
	r.last = req
	if r.err != nil {
		return nil, r.err
	}
	return "reply to " + req.Prompt, nil
}

func newRouter(t *testing.T, model llm.Client, fetcher fetch.Client) *mux.Router {
	t.Helper()
	reg := provider.NewRegistry("google")
	if err := reg.Register(provider.Provider{
		Name: "google",
		LLM:  model,
		Search: search.ClientFunc(func(_ context.Context, req search.Request) (any, error) {
			return "results for " + req.Query, nil
		}),
	}); err != nil {
		t.Fatalf("failed to register provider: %v", err)
	}
	if err := reg.Register(provider.Provider{Name: "local", LLM: model}); err != nil {
		t.Fatalf("failed to register provider: %v", err)
	}

	svc, err := proxy.NewService(reg, fetcher)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	router := mux.NewRouter()
	svc.LoadRoutes(router.PathPrefix("/api/v1").Subrouter())
	return router
}

func post(t *testing.T, router http.Handler, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to unmarshal response: %v (body: %s)", err, rec.Body.String())
	}
	return rec.Code, out
}

func echoFetcher() fetch.ClientFunc {
	return func(_ context.Context, req fetch.Request) (any, error) {
		if strings.Contains(req.URLs[0], "down") {
			return nil, fmt.Errorf("request to %s failed with status 503", req.URLs[0])
		}
		return req.Method + " " + strings.Join(req.URLs, ","), nil
	}
}

func TestNewService_Rejects(t *testing.T) {
	t.Parallel()
	if _, err := proxy.NewService(nil, echoFetcher()); err == nil {
		t.Error("expected error for nil providers, got nil")
	}
	if _, err := proxy.NewService(provider.NewRegistry("google"), nil); err == nil {
		t.Error("expected error for nil fetcher, got nil")
	}
}

func TestProxyRoutes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		want       map[string]any
	}{
		{
			name:       "http defaults to GET",
			path:       "/api/v1/http",
			body:       `{"urls":["https://a.test"]}`,
			wantStatus: http.StatusOK,
			want:       map[string]any{"result": "GET https://a.test"},
		},
		{
			name:       "http requires urls",
			path:       "/api/v1/http",
			body:       `{"urls":[]}`,
			wantStatus: http.StatusBadRequest,
			want:       map[string]any{"error": "The 'urls' property must be a non-empty array."},
		},
		{
			name:       "http upstream failure",
			path:       "/api/v1/http",
			body:       `{"urls":["https://down.test"],"method":"POST"}`,
			wantStatus: http.StatusInternalServerError,
			want:       map[string]any{"error": "request to https://down.test failed with status 503"},
		},
		{
			name:       "search with default provider",
			path:       "/api/v1/search",
			body:       `{"query":"golang"}`,
			wantStatus: http.StatusOK,
			want:       map[string]any{"result": "results for golang"},
		},
		{
			name:       "search requires a query",
			path:       "/api/v1/search",
			body:       `{"query":"   "}`,
			wantStatus: http.StatusBadRequest,
			want:       map[string]any{"error": "The 'query' property must be a non-empty string."},
		},
		{
			name:       "search unsupported by provider",
			path:       "/api/v1/search",
			body:       `{"provider":"local","query":"golang"}`,
			wantStatus: http.StatusBadRequest,
			want:       map[string]any{"error": "provider 'local': provider does not support search"},
		},
		{
			name:       "llm prompt",
			path:       "/api/v1/llm",
			body:       `{"prompt":"hi"}`,
			wantStatus: http.StatusOK,
			want:       map[string]any{"result": "reply to hi"},
		},
		{
			name:       "llm requires prompt or image",
			path:       "/api/v1/llm",
			body:       `{"prompt":"","image":null}`,
			wantStatus: http.StatusBadRequest,
			want:       map[string]any{"error": "Provide either a prompt or an image payload."},
		},
		{
			name:       "llm unknown provider",
			path:       "/api/v1/llm",
			body:       `{"provider":"openai","prompt":"hi"}`,
			wantStatus: http.StatusInternalServerError,
			want:       map[string]any{"error": "LLM provider 'openai': provider is not registered"},
		},
		{
			name:       "malformed body",
			path:       "/api/v1/llm",
			body:       `{"prompt":`,
			wantStatus: http.StatusBadRequest,
			want:       map[string]any{"error": "invalid request body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newRouter(t, &recordingLLM{}, echoFetcher())
			status, got := post(t, router, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%v)", tt.wantStatus, status, got)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandleLLM_ForwardsPayload(t *testing.T) {
	t.Parallel()
	model := &recordingLLM{}
	router := newRouter(t, model, echoFetcher())

	status, _ := post(t, router, "/api/v1/llm",
		`{"provider":"Google","model":"gemini-2.5-flash-image","system":"terse","image":"data:image/png;base64,AA","temperature":0.5,"expectJson":true}`)
	if status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	got := model.last
	if got.Model != "gemini-2.5-flash-image" || !got.ExpectJSON || got.Prompt != "" {
		t.Errorf("unexpected forwarded request %+v", got)
	}
	if got.System == nil || *got.System != "terse" {
		t.Errorf("expected system 'terse', got %v", got.System)
	}
	if got.Temperature == nil || *got.Temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %v", got.Temperature)
	}
}

func TestHandleLLM_AdapterError(t *testing.T) {
	t.Parallel()
	router := newRouter(t, &recordingLLM{err: errors.New("quota exceeded")}, echoFetcher())
	status, got := post(t, router, "/api/v1/llm", `{"prompt":"hi"}`)
	if status != http.StatusInternalServerError || got["error"] != "quota exceeded" {
		t.Errorf("unexpected response %d %v", status, got)
	}
}

func TestHandleProviders(t *testing.T) {
	t.Parallel()
	router := newRouter(t, &recordingLLM{}, echoFetcher())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body struct {
		Providers []string `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if diff := cmp.Diff([]string{"google", "local"}, body.Providers); diff != "" {
		t.Errorf("providers mismatch (-want +got):\n%s", diff)
	}
}
