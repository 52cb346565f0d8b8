package nodes

import (
	"context"
	"strings"

	"agentflow-runner/pkg/clients/search"
	"agentflow-runner/services/graph"
)

// SearchNode runs its "query" input through the search adapter.
type SearchNode struct {
	BaseFields

	Provider string
}

func NewSearchNode(base BaseFields, n graph.Node, defaults Defaults) (*SearchNode, error) {
	provider, err := stringParam(base, n, "provider")
	if err != nil {
		return nil, err
	}
	return &SearchNode{BaseFields: base, Provider: defaults.ResolveProvider(provider)}, nil
}

// Request builds the adapter payload. Sequences are joined with newlines;
// the resulting query must be a non-blank string.
func (n *SearchNode) Request(query any) (search.Request, error) {
	if seq, ok := asSequence(query); ok {
		query = strings.Join(stringList(seq), "\n")
	}
	q, ok := query.(string)
	if !ok || strings.TrimSpace(q) == "" {
		return search.Request{}, n.typeErrorf("input 'query' must be a non-empty string or a sequence of strings")
	}
	return search.Request{Provider: n.Provider, Query: q}, nil
}

// Execute delegates the query to the search adapter.
func (n *SearchNode) Execute(ctx context.Context, client search.Client, query any) (any, error) {
	req, err := n.Request(query)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, n.adapterError(errNoAdapter, "search failed")
	}
	result, err := client.Search(ctx, req)
	if err != nil {
		return nil, n.adapterError(err, "search failed")
	}
	return result, nil
}
