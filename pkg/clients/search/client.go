package search

import "context"

// Request is the payload a search node hands to its adapter.
type Request struct {
	Provider string `json:"provider"`
	Query    string `json:"query"`
}

// Client runs a grounded web search and returns the provider's answer.
type Client interface {
	Search(ctx context.Context, req Request) (any, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (any, error)

func (f ClientFunc) Search(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}
