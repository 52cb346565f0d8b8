package nodes

import (
	"context"
	"strings"

	"agentflow-runner/pkg/clients/fetch"
	"agentflow-runner/services/graph"
)

// HTTPNode fetches one or more URLs through the http adapter.
type HTTPNode struct {
	BaseFields

	Method string
}

func NewHTTPNode(base BaseFields, n graph.Node) (*HTTPNode, error) {
	method, err := stringParam(base, n, "method")
	if err != nil {
		return nil, err
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "GET"
	}
	return &HTTPNode{BaseFields: base, Method: method}, nil
}

// Request builds the adapter payload from the resolved "url" input.
func (n *HTTPNode) Request(url any) (fetch.Request, error) {
	urls := stringList(url)
	if len(urls) == 0 {
		return fetch.Request{}, n.typeErrorf("requires at least one URL input")
	}
	return fetch.Request{URLs: urls, Method: n.Method}, nil
}

// Execute delegates the request to the http adapter.
func (n *HTTPNode) Execute(ctx context.Context, client fetch.Client, url any) (any, error) {
	req, err := n.Request(url)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, n.adapterError(errNoAdapter, "request failed")
	}
	result, err := client.Fetch(ctx, req)
	if err != nil {
		return nil, n.adapterError(err, "request failed")
	}
	return result, nil
}
