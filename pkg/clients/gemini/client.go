package gemini

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

	"agentflow-runner/pkg/clients/llm"
	"agentflow-runner/pkg/clients/search"
)

const (
	// ProviderName is the registry key of this client.
	ProviderName = "google"

	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash"
	searchModel    = "gemini-2.5-flash"

	// maxResponseBody caps how much of a reply is read.
	maxResponseBody = 10 << 20 // 10MB
)

// ErrMissingAPIKey is returned by every call when no API key is configured.
var ErrMissingAPIKey = errors.New("GENAI_API_KEY is not configured on the server")

// Config configures a Client. Empty fields fall back to the public
// endpoint and the stock text model.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	HTTPClient   *http.Client
}

// Client calls the Gemini generateContent REST endpoint. It serves both
// llm and search nodes.
type Client struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

var (
	_ llm.Client    = (*Client)(nil)
	_ search.Client = (*Client)(nil)
)

// NewClient creates a Gemini client.
func NewClient(cfg Config) *Client {
	c := &Client{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
		httpClient:   cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.defaultModel == "" {
		c.defaultModel = defaultModel
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []tool            `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends the prompt, optional system instruction and optional
// inline image to the model and returns the reply text. With ExpectJSON
// the model is asked for a JSON response; decoding is left to the caller.
func (c *Client) Generate(ctx context.Context, req llm.Request) (any, error) {
	user := content{Role: "user", Parts: []part{{Text: req.Prompt}}}
	if req.Image != nil && *req.Image != "" {
		mime, data, err := ParseImage(*req.Image)
		if err != nil {
			return nil, err
		}
		user.Parts = append(user.Parts, part{InlineData: &inlineData{MimeType: mime, Data: data}})
	}

	body := generateRequest{Contents: []content{user}}
	if req.System != nil {
		body.SystemInstruction = &content{Parts: []part{{Text: *req.System}}}
	}
	if req.Temperature != nil || req.ExpectJSON {
		body.GenerationConfig = &generationConfig{Temperature: req.Temperature}
		if req.ExpectJSON {
			body.GenerationConfig.ResponseMimeType = "application/json"
		}
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.defaultModel
	}
	return c.generate(ctx, model, body)
}

// Search answers the query with the googleSearch grounding tool enabled.
func (c *Client) Search(ctx context.Context, req search.Request) (any, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Query}}}},
		Tools:    []tool{{GoogleSearch: &struct{}{}}},
	}
	return c.generate(ctx, searchModel, body)
}

func (c *Client) generate(ctx context.Context, model string, body generateRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)

	slog.Info("calling gemini API", "model", model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("gemini API returned %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("gemini API returned %d: %s", resp.StatusCode, string(raw))
	}

	var result generateResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to parse gemini response: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("gemini API returned no candidates")
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}

// ParseImage splits a base64 data URL into its mime type and payload.
func ParseImage(dataURL string) (mimeType, data string, err error) {
	meta, payload, ok := strings.Cut(dataURL, ",")
	if !ok || payload == "" {
		return "", "", fmt.Errorf("image payload must be a base64 data URL")
	}
	mime, _, ok := strings.Cut(strings.TrimPrefix(meta, "data:"), ";")
	if !ok || !strings.HasPrefix(meta, "data:") || mime == "" {
		return "", "", fmt.Errorf("image payload must be a base64 data URL")
	}
	return mime, payload, nil
}
