package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWorkflowNotFound is returned when a workflow id cannot be found in a store.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrDocumentNotFound is returned when a knowledge base document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// ErrUnknownAgent is returned when no agent is registered for a kind.
var ErrUnknownAgent = errors.New("unknown agent kind")

// ErrStreamClosed is returned when an event is emitted after error or done.
var ErrStreamClosed = errors.New("event stream closed")

// ErrDuplicateEvent is returned when a node would get a second terminal event.
var ErrDuplicateEvent = errors.New("duplicate terminal event")

// ErrNoAvailableKey is returned when every API key is cooling down.
var ErrNoAvailableKey = errors.New("no available api key")

// ErrEmptyGraph is returned when a graph has no runnable node.
var ErrEmptyGraph = errors.New("graph has no reachable nodes")

// GraphValidationError reports a structural defect that was dropped from the graph.
type GraphValidationError struct {
	NodeID string
	Source string
	Target string
	Reason string
}

func (e *GraphValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("invalid node %q: %s", e.NodeID, e.Reason)
	}
	return fmt.Sprintf("invalid edge %s -> %s: %s", e.Source, e.Target, e.Reason)
}

// GraphCycleError is returned at build time when the reachable subgraph has a cycle.
type GraphCycleError struct {
	Nodes []string
}

func (e *GraphCycleError) Error() string {
	return fmt.Sprintf("graph contains a cycle through: %s", strings.Join(e.Nodes, ", "))
}

// AgentExecutionError wraps a failing agent call. It aborts the run.
type AgentExecutionError struct {
	NodeID string
	Kind   NodeKind
	Err    error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s (%s) failed: %v", e.NodeID, e.Kind, e.Err)
}

func (e *AgentExecutionError) Unwrap() error {
	return e.Err
}
