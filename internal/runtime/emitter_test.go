package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter(t *testing.T) {
	ctx := context.Background()

	t.Run("Duplicate completion", func(t *testing.T) {
		sink := &ports.Collector{}
		e := runtime.NewEmitter(sink)

		require.NoError(t, e.Complete(ctx, domain.StepRecord{NodeID: "a"}))
		err := e.Complete(ctx, domain.StepRecord{NodeID: "a"})
		assert.ErrorIs(t, err, domain.ErrDuplicateEvent)
		assert.Len(t, sink.Events, 1)
	})

	t.Run("Nothing after done", func(t *testing.T) {
		sink := &ports.Collector{}
		e := runtime.NewEmitter(sink)

		require.NoError(t, e.Start(ctx, "a"))
		require.NoError(t, e.Done(ctx, &domain.DoneEvent{Answer: "ok"}))
		assert.True(t, e.Closed())

		assert.ErrorIs(t, e.Start(ctx, "b"), domain.ErrStreamClosed)
		assert.ErrorIs(t, e.Fail(ctx, errors.New("late")), domain.ErrStreamClosed)
		assert.Equal(t, []domain.EventType{domain.EventAgentStart, domain.EventDone}, sink.Types())
	})

	t.Run("Sink failure", func(t *testing.T) {
		boom := errors.New("broken pipe")
		e := runtime.NewEmitter(ports.SinkFunc(func(context.Context, domain.Event) error { return boom }))

		err := e.Start(ctx, "a")
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "emit agent_start")
	})

	t.Run("Nil sink discards", func(t *testing.T) {
		e := runtime.NewEmitter(nil)
		assert.NoError(t, e.Start(ctx, "a"))
	})
}
