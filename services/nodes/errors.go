package nodes

import (
	"errors"
	"fmt"

	"agentflow-runner/services/graph"
)

// Error classes. Every *NodeError matches exactly one of them with errors.Is.
var (
	// ErrType: a value has the wrong shape for its operation.
	ErrType = errors.New("type error")
	// ErrUnsupportedPayload: a payload field is in a format adapters cannot take.
	ErrUnsupportedPayload = errors.New("unsupported payload")
	// ErrAdapter: an llm, search or http adapter failed.
	ErrAdapter = errors.New("adapter error")
	// ErrResolution: the graph cannot be resolved as wired.
	ErrResolution = errors.New("graph resolution error")
)

var errNoAdapter = errors.New("no adapter configured")

// NodeError is a failure attributed to a single node.
type NodeError struct {
	NodeID string
	Kind   graph.Kind
	Class  error
	Msg    string
	Err    error // underlying cause, e.g. the adapter's error
}

func (e *NodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s node '%s': %s: %v", e.Kind, e.NodeID, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s node '%s': %s", e.Kind, e.NodeID, e.Msg)
}

func (e *NodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Class, e.Err}
	}
	return []error{e.Class}
}

func (b BaseFields) fail(class error, cause error, format string, args ...any) *NodeError {
	return &NodeError{
		NodeID: b.ID,
		Kind:   b.NodeKind,
		Class:  class,
		Msg:    fmt.Sprintf(format, args...),
		Err:    cause,
	}
}

func (b BaseFields) typeErrorf(format string, args ...any) *NodeError {
	return b.fail(ErrType, nil, format, args...)
}

func (b BaseFields) payloadErrorf(format string, args ...any) *NodeError {
	return b.fail(ErrUnsupportedPayload, nil, format, args...)
}

func (b BaseFields) resolutionErrorf(format string, args ...any) *NodeError {
	return b.fail(ErrResolution, nil, format, args...)
}

func (b BaseFields) adapterError(cause error, format string, args ...any) *NodeError {
	if cause == nil {
		cause = errors.New("unknown error")
	}
	return b.fail(ErrAdapter, cause, format, args...)
}
