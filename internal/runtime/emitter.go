package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Emitter writes the events of one run to a sink. It guarantees at most one
// terminal event per node and nothing after error or done.
type Emitter struct {
	sink      ports.EventSink
	completed map[string]bool
	closed    bool
}

// NewEmitter wraps sink. A nil sink discards events.
func NewEmitter(sink ports.EventSink) *Emitter {
	if sink == nil {
		sink = ports.SinkFunc(func(context.Context, domain.Event) error { return nil })
	}
	return &Emitter{sink: sink, completed: make(map[string]bool)}
}

// Start announces that an agent node begins working.
func (e *Emitter) Start(ctx context.Context, nodeID string) error {
	return e.emit(ctx, domain.Event{Type: domain.EventAgentStart, Agent: nodeID, Status: "working"})
}

// Complete emits the terminal event of a node.
func (e *Emitter) Complete(ctx context.Context, step domain.StepRecord) error {
	if e.completed[step.NodeID] {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateEvent, step.NodeID)
	}
	if err := e.emit(ctx, domain.Event{Type: domain.EventAgentComplete, Agent: step.NodeID, Step: &step}); err != nil {
		return err
	}
	e.completed[step.NodeID] = true
	return nil
}

// Fail emits the single error event and closes the stream.
func (e *Emitter) Fail(ctx context.Context, cause error) error {
	err := e.emit(ctx, domain.Event{Type: domain.EventError, Message: cause.Error()})
	e.closed = true
	return err
}

// Done emits the final event and closes the stream.
func (e *Emitter) Done(ctx context.Context, done *domain.DoneEvent) error {
	err := e.emit(ctx, domain.Event{Type: domain.EventDone, Done: done})
	e.closed = true
	return err
}

// Closed reports whether a terminal run event was sent.
func (e *Emitter) Closed() bool { return e.closed }

func (e *Emitter) emit(ctx context.Context, ev domain.Event) error {
	if e.closed {
		return domain.ErrStreamClosed
	}
	if err := e.sink.Emit(ctx, ev); err != nil {
		return fmt.Errorf("emit %s: %w", ev.Type, err)
	}
	return nil
}
