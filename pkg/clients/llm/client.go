package llm

import "context"

// Request is the payload an llm node hands to its adapter.
// System and Image are nil when the node has nothing wired to them.
type Request struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	System      *string  `json:"system"`
	Image       *string  `json:"image"`
	Temperature *float64 `json:"temperature,omitempty"`
	ExpectJSON  bool     `json:"expectJson"`
}

// Client generates a model reply. The reply is normally the model's text;
// implementations may return structured data when ExpectJSON is set.
type Client interface {
	Generate(ctx context.Context, req Request) (any, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (any, error)

func (f ClientFunc) Generate(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}
