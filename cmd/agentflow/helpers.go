package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"agentflow-runner/pkg/clients/fetch"
	"agentflow-runner/pkg/clients/gemini"
	"agentflow-runner/pkg/clients/provider"
	"agentflow-runner/pkg/clients/remote"
	"agentflow-runner/pkg/config"
	"agentflow-runner/services/graph"
	"agentflow-runner/services/nodes"
)

// loadDocument reads a JSON or YAML workflow document from path, or from
// stdin when path is "-".
func loadDocument(path string, stdin io.Reader) (*graph.Document, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}
	return graph.DecodeDocument(data)
}

// parseInputs turns repeated id=value flags into input bindings. Values
// that parse as JSON are bound decoded, anything else as text.
func parseInputs(pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		id, raw, ok := strings.Cut(pair, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --input %q: expected id=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		inputs[id] = v
	}
	return inputs, nil
}

// cliLogger logs human-readable records to stderr, keeping stdout for results.
func cliLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func nodeDefaults(cfg config.Config) nodes.Defaults {
	return nodes.Defaults{
		Provider: cfg.LLMProvider,
		Models: map[string]nodes.ModelDefaults{
			gemini.ProviderName: {Text: cfg.GoogleDefaultModel, Image: cfg.GoogleImageModel},
		},
	}
}

// newProviders builds the provider registry with the Gemini backend.
func newProviders(cfg config.Config) (*provider.Registry, error) {
	if cfg.GenAIAPIKey == "" {
		slog.Warn("GENAI_API_KEY is not defined. Google provider calls will fail until it is set.")
	}
	reg := provider.NewRegistry(cfg.LLMProvider, provider.WithRateLimit(cfg.ProviderRateLimit, cfg.ProviderRateBurst))
	client := gemini.NewClient(gemini.Config{
		APIKey:       cfg.GenAIAPIKey,
		BaseURL:      cfg.GoogleBaseURL,
		DefaultModel: cfg.GoogleDefaultModel,
		HTTPClient:   &http.Client{Timeout: cfg.AdapterTimeout},
	})
	if err := reg.Register(provider.Provider{Name: gemini.ProviderName, LLM: client, Search: client}); err != nil {
		return nil, err
	}
	return reg, nil
}

// newAdapters wires node adapters either to local providers or, when
// apiURL is set, to a running server's proxy routes.
func newAdapters(cfg config.Config, apiURL string) (nodes.Adapters, error) {
	httpClient := &http.Client{Timeout: cfg.AdapterTimeout}
	if apiURL != "" {
		c := remote.NewClient(apiURL, httpClient)
		return nodes.Adapters{LLM: c, Search: c, HTTP: c}, nil
	}
	reg, err := newProviders(cfg)
	if err != nil {
		return nodes.Adapters{}, err
	}
	return nodes.Adapters{LLM: reg, Search: reg, HTTP: fetch.NewHTTPClient(httpClient)}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
