package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"agentflow-runner/pkg/clients/fetch"
	"agentflow-runner/pkg/clients/llm"
	"agentflow-runner/pkg/clients/search"
)

// Client sends llm, search and http node payloads to a running agentflow
// server's proxy routes.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var (
	_ llm.Client    = (*Client)(nil)
	_ search.Client = (*Client)(nil)
	_ fetch.Client  = (*Client)(nil)
)

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8080". Accepts an optional http.Client for custom
// timeouts or transport settings.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		httpClient: httpClient,
	}
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (any, error) {
	return c.post(ctx, "/llm", req)
}

func (c *Client) Search(ctx context.Context, req search.Request) (any, error) {
	return c.post(ctx, "/search", req)
}

func (c *Client) Fetch(ctx context.Context, req fetch.Request) (any, error) {
	return c.post(ctx, "/http", req)
}

// envelope is the proxy response: exactly one of Result or Error is set.
type envelope struct {
	Result any    `json:"result"`
	Error  string `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, payload any) (any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := c.baseURL + path
	slog.Debug("calling proxy API", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("proxy %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if env.Error != "" {
		return nil, errors.New(env.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy %s returned %d", path, resp.StatusCode)
	}
	return env.Result, nil
}
