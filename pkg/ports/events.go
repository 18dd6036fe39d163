package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// EventSink receives the events of a run in order.
type EventSink interface {
	Emit(ctx context.Context, e domain.Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, e domain.Event) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, e domain.Event) error {
	return f(ctx, e)
}

// Collector is an EventSink that keeps every event in memory.
type Collector struct {
	Events []domain.Event
}

// Emit appends e.
func (c *Collector) Emit(_ context.Context, e domain.Event) error {
	c.Events = append(c.Events, e)
	return nil
}

// Types returns the event types in emission order.
func (c *Collector) Types() []domain.EventType {
	out := make([]domain.EventType, len(c.Events))
	for i, e := range c.Events {
		out[i] = e.Type
	}
	return out
}
