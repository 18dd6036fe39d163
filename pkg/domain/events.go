package domain

import (
	"context"
	"time"
)

// EventType names an event on the execution stream.
type EventType string

const (
	EventAgentStart    EventType = "agent_start"
	EventAgentComplete EventType = "agent_complete"
	EventError         EventType = "error"
	EventDone          EventType = "done"
)

// Terminal reports whether no event may follow one of this type.
func (t EventType) Terminal() bool {
	return t == EventError || t == EventDone
}

// Event is one entry of the execution stream.
type Event struct {
	Type    EventType   `json:"type"`
	Agent   string      `json:"agent,omitempty"`
	Status  string      `json:"status,omitempty"`
	Step    *StepRecord `json:"step,omitempty"`
	Message string      `json:"message,omitempty"`
	Done    *DoneEvent  `json:"done,omitempty"`
}

// DoneEvent is the payload of the terminal done event.
type DoneEvent struct {
	Answer      string      `json:"answer"`
	ToolOutputs ToolOutputs `json:"tool_outputs"`
	Trace       Trace       `json:"trace"`
	LatencyMs   float64     `json:"latency_ms"`
}

// Trace wraps the ordered step log.
type Trace struct {
	Steps []StepRecord `json:"steps"`
}

// Payload returns the data object sent on the wire for e.
func (e Event) Payload() any {
	switch e.Type {
	case EventAgentStart:
		return map[string]any{"agent": e.Agent, "status": e.Status}
	case EventAgentComplete:
		return map[string]any{"agent": e.Agent, "step": e.Step}
	case EventError:
		return map[string]any{"message": e.Message}
	case EventDone:
		return e.Done
	default:
		return e
	}
}

// NodeEvent is passed to lifecycle hooks around each node.
type NodeEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	NodeID    string         `json:"node_id"`
	Kind      NodeKind       `json:"kind"`
	Outcome   ExecutionState `json:"outcome,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Err       error          `json:"-"`
}

// RunEvent is passed to lifecycle hooks at run boundaries.
type RunEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	Nodes     int           `json:"nodes"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for kernel observability.
type LifecycleHooks struct {
	OnRunStart  func(context.Context, *RunEvent)
	OnRunEnd    func(context.Context, *RunEvent)
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
}

// CombineHooks fans each callback out to every non-nil hook set in order.
func CombineHooks(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	out.OnRunStart = func(ctx context.Context, e *RunEvent) {
		for _, h := range hooks {
			if h.OnRunStart != nil {
				h.OnRunStart(ctx, e)
			}
		}
	}
	out.OnRunEnd = func(ctx context.Context, e *RunEvent) {
		for _, h := range hooks {
			if h.OnRunEnd != nil {
				h.OnRunEnd(ctx, e)
			}
		}
	}
	out.OnNodeEnter = func(ctx context.Context, e *NodeEvent) {
		for _, h := range hooks {
			if h.OnNodeEnter != nil {
				h.OnNodeEnter(ctx, e)
			}
		}
	}
	out.OnNodeLeave = func(ctx context.Context, e *NodeEvent) {
		for _, h := range hooks {
			if h.OnNodeLeave != nil {
				h.OnNodeLeave(ctx, e)
			}
		}
	}
	return out
}
