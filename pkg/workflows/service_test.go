package workflows_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/workflows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type recordingLocker struct {
	locked   []string
	unlocked int
	err      error
}

func (l *recordingLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locked = append(l.locked, key)
	return func(context.Context) error {
		l.unlocked++
		return nil
	}, nil
}

func newService(opts ...workflows.Option) (*workflows.Service, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	n := 0
	opts = append([]workflows.Option{
		workflows.WithClock(c.now),
		workflows.WithIDGenerator(func() string { n++; return fmt.Sprintf("id%06d", n) }),
	}, opts...)
	return workflows.New(memory.NewStore(), opts...), c
}

func TestService_SaveCreates(t *testing.T) {
	svc, c := newService()
	ctx := context.Background()

	wf, err := svc.Save(ctx, &domain.Workflow{Name: "Basic"})
	require.NoError(t, err)
	assert.Equal(t, "id000001", wf.ID)
	assert.Equal(t, workflows.DefaultUser, wf.UserID)
	assert.Equal(t, c.t, wf.CreatedAt)
	assert.Equal(t, c.t, wf.UpdatedAt)
	assert.NotNil(t, wf.Nodes)
	assert.NotNil(t, wf.Edges)

	loaded, err := svc.Get(ctx, "", wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "Basic", loaded.Name)
}

func TestService_SaveKeepsCreatedAt(t *testing.T) {
	svc, c := newService()
	ctx := context.Background()

	first, err := svc.Save(ctx, &domain.Workflow{Name: "v1", UserID: "alice"})
	require.NoError(t, err)

	c.t = c.t.Add(time.Hour)
	second, err := svc.Save(ctx, &domain.Workflow{ID: first.ID, Name: "v2", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, c.t, second.UpdatedAt)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "v2", list[0].Name)
}

func TestService_SaveValidates(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Save(context.Background(), &domain.Workflow{Name: "  "})
	assert.ErrorIs(t, err, workflows.ErrInvalidWorkflow)
	_, err = svc.Save(context.Background(), nil)
	assert.ErrorIs(t, err, workflows.ErrInvalidWorkflow)
}

func TestService_ListOrderAndLimit(t *testing.T) {
	svc, c := newService(workflows.WithListLimit(2))
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		c.t = c.t.Add(time.Minute)
		_, err := svc.Save(ctx, &domain.Workflow{
			Name:  name,
			Nodes: []domain.Node{{ID: "prompt-1"}, {ID: "response-1"}},
			Edges: []domain.Edge{{Source: "prompt-1", Target: "response-1"}},
		})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].Name)
	assert.Equal(t, "b", list[1].Name)
	assert.Equal(t, 2, list[0].NodeCount)
	assert.Equal(t, 1, list[0].EdgeCount)
}

func TestService_UsersAreIsolated(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	wf, err := svc.Save(ctx, &domain.Workflow{Name: "mine", UserID: "alice"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "bob", wf.ID)
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "bob", wf.ID), domain.ErrWorkflowNotFound)
	require.NoError(t, svc.Delete(ctx, "alice", wf.ID))
}

func TestService_Locker(t *testing.T) {
	locker := &recordingLocker{}
	svc, _ := newService(workflows.WithLocker(locker))

	wf, err := svc.Save(context.Background(), &domain.Workflow{Name: "x", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice:" + wf.ID}, locker.locked)
	assert.Equal(t, 1, locker.unlocked)

	locker.err = errors.New("redis down")
	_, err = svc.Save(context.Background(), &domain.Workflow{Name: "y"})
	assert.ErrorContains(t, err, "redis down")
}

func TestService_DefaultIDs(t *testing.T) {
	svc := workflows.New(memory.NewStore())
	wf, err := svc.Save(context.Background(), &domain.Workflow{Name: "x"})
	require.NoError(t, err)
	assert.Len(t, wf.ID, 8)
}
