package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agentflow-runner/pkg/clients/gemini"
	"agentflow-runner/pkg/clients/llm"
	"agentflow-runner/pkg/clients/search"
)

type captured struct {
	path   string
	apiKey string
	body   map[string]any
}

func newServer(t *testing.T, status int, reply string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.apiKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&got.body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okReply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"hello "},{"text":"world"}]}}]}`

func TestGenerate(t *testing.T) {
	t.Parallel()
	var got captured
	srv := newServer(t, http.StatusOK, okReply, &got)
	c := gemini.NewClient(gemini.Config{APIKey: "secret", BaseURL: srv.URL})

	system := "be brief"
	image := "data:image/png;base64,AAAA"
	temp := 0.3
	reply, err := c.Generate(context.Background(), llm.Request{
		Model:       "gemini-2.5-flash-image",
		Prompt:      "describe",
		System:      &system,
		Image:       &image,
		Temperature: &temp,
		ExpectJSON:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hello world" {
		t.Errorf("expected 'hello world', got %v", reply)
	}
	if got.path != "/v1beta/models/gemini-2.5-flash-image:generateContent" {
		t.Errorf("unexpected path %q", got.path)
	}
	if got.apiKey != "secret" {
		t.Errorf("expected api key header, got %q", got.apiKey)
	}

	cfg, _ := got.body["generationConfig"].(map[string]any)
	if cfg["responseMimeType"] != "application/json" || cfg["temperature"] != 0.3 {
		t.Errorf("unexpected generationConfig %v", cfg)
	}
	sys, _ := got.body["systemInstruction"].(map[string]any)
	if sys == nil {
		t.Fatal("expected systemInstruction to be set")
	}
	contents, _ := got.body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %v", parts)
	}
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	if inline["mimeType"] != "image/png" || inline["data"] != "AAAA" {
		t.Errorf("unexpected inline data %v", inline)
	}
}

func TestGenerate_DefaultModelAndPlainConfig(t *testing.T) {
	t.Parallel()
	var got captured
	srv := newServer(t, http.StatusOK, okReply, &got)
	c := gemini.NewClient(gemini.Config{APIKey: "k", BaseURL: srv.URL + "/", DefaultModel: "custom-model"})

	if _, err := c.Generate(context.Background(), llm.Request{Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.path != "/v1beta/models/custom-model:generateContent" {
		t.Errorf("unexpected path %q", got.path)
	}
	if _, ok := got.body["generationConfig"]; ok {
		t.Errorf("expected no generationConfig, got %v", got.body["generationConfig"])
	}
	if _, ok := got.body["systemInstruction"]; ok {
		t.Error("expected no systemInstruction")
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()
	var got captured
	srv := newServer(t, http.StatusOK, okReply, &got)
	c := gemini.NewClient(gemini.Config{APIKey: "k", BaseURL: srv.URL})

	reply, err := c.Search(context.Background(), search.Request{Query: "weather in Lisbon"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hello world" {
		t.Errorf("expected 'hello world', got %v", reply)
	}
	tools, _ := got.body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("expected one tool, got %v", got.body["tools"])
	}
	if _, ok := tools[0].(map[string]any)["googleSearch"]; !ok {
		t.Errorf("expected googleSearch tool, got %v", tools[0])
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing api key", func(t *testing.T) {
		t.Parallel()
		c := gemini.NewClient(gemini.Config{})
		if _, err := c.Generate(context.Background(), llm.Request{Prompt: "x"}); !errors.Is(err, gemini.ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("api error message is surfaced", func(t *testing.T) {
		t.Parallel()
		var got captured
		srv := newServer(t, http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exhausted"}}`, &got)
		c := gemini.NewClient(gemini.Config{APIKey: "k", BaseURL: srv.URL})
		_, err := c.Generate(context.Background(), llm.Request{Prompt: "x"})
		if err == nil || !strings.Contains(err.Error(), "429: quota exhausted") {
			t.Errorf("expected quota error, got %v", err)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		t.Parallel()
		var got captured
		srv := newServer(t, http.StatusOK, `{"candidates":[]}`, &got)
		c := gemini.NewClient(gemini.Config{APIKey: "k", BaseURL: srv.URL})
		if _, err := c.Generate(context.Background(), llm.Request{Prompt: "x"}); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("oversized reply is cut off", func(t *testing.T) {
		t.Parallel()
		var got captured
		reply := `{"candidates":[{"content":{"parts":[{"text":"` + strings.Repeat("a", 10<<20) + `"}]}}]}`
		srv := newServer(t, http.StatusOK, reply, &got)
		c := gemini.NewClient(gemini.Config{APIKey: "k", BaseURL: srv.URL})
		_, err := c.Generate(context.Background(), llm.Request{Prompt: "x"})
		if err == nil || !strings.Contains(err.Error(), "failed to parse gemini response") {
			t.Errorf("expected truncated reply to fail parsing, got %v", err)
		}
	})

	t.Run("malformed image", func(t *testing.T) {
		t.Parallel()
		c := gemini.NewClient(gemini.Config{APIKey: "k"})
		image := "not-a-data-url"
		if _, err := c.Generate(context.Background(), llm.Request{Image: &image}); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestParseImage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in       string
		wantMime string
		wantErr  bool
	}{
		{in: "data:image/jpeg;base64,/9j/4AAQ", wantMime: "image/jpeg"},
		{in: "data:image/png;base64,", wantErr: true},
		{in: "image/png;base64,AAAA", wantErr: true},
		{in: "data:;base64,AAAA", wantErr: true},
		{in: "plain text", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			mime, _, err := gemini.ParseImage(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if mime != tt.wantMime {
				t.Errorf("expected mime %q, got %q", tt.wantMime, mime)
			}
		})
	}
}
