package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Request is the payload an http node hands to its adapter.
type Request struct {
	URLs   []string `json:"urls"`
	Method string   `json:"method"`
}

// Client performs the requests described by a Request.
type Client interface {
	Fetch(ctx context.Context, req Request) (any, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (any, error)

func (f ClientFunc) Fetch(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// maxResponseBody caps how much of each response is read.
const maxResponseBody = 10 << 20 // 10MB

// HTTPClient fetches every URL of a request over HTTP. JSON responses are
// decoded, anything else is returned as text. A single URL yields its body
// directly; several URLs yield a slice in request order.
type HTTPClient struct {
	httpClient *http.Client
	// Concurrency bounds how many URLs of one request are in flight.
	Concurrency int
}

// NewHTTPClient creates a fetcher. Accepts an optional http.Client for
// custom timeouts or transport settings.
func NewHTTPClient(httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{httpClient: httpClient, Concurrency: 4}
}

func (c *HTTPClient) Fetch(ctx context.Context, req Request) (any, error) {
	if len(req.URLs) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	results := make([]any, len(req.URLs))
	g, ctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for i, url := range req.URLs {
		g.Go(func() error {
			body, err := c.fetchOne(ctx, method, url)
			if err != nil {
				return err
			}
			results[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

func (c *HTTPClient) fetchOne(ctx context.Context, method, url string) (any, error) {
	slog.Debug("fetching url", "method", method, "url", url)

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("request to %s failed with status %d", url, resp.StatusCode)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("failed to parse JSON from %s: %w", url, err)
		}
		return decoded, nil
	}
	return string(body), nil
}
