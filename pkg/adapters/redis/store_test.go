package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewFromClient(client, opts...), mr
}

func TestRedisStore_Contract(t *testing.T) {
	store, _ := newStore(t)
	ports.RunWorkflowStoreContract(t, store)
}

func TestRedisStore_ListNewestFirst(t *testing.T) {
	store, mr := newStore(t, redis.WithPrefix("test:"))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	offsets := map[string]time.Duration{"old": 0, "new": 2 * time.Hour, "mid": time.Hour}
	for _, id := range []string{"old", "new", "mid"} {
		require.NoError(t, store.Save(ctx, &domain.Workflow{ID: id, UserID: "u", Name: id, UpdatedAt: base.Add(offsets[id])}))
	}
	assert.True(t, mr.Exists("test:u:new"))

	list, err := store.List(ctx, "u")
	require.NoError(t, err)
	ids := []string{}
	for _, wf := range list {
		ids = append(ids, wf.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
}

func TestRedisStore_PrunesStaleIndex(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.Workflow{ID: "a", UserID: "u", UpdatedAt: time.Now()}))
	require.NoError(t, store.Save(ctx, &domain.Workflow{ID: "b", UserID: "u", UpdatedAt: time.Now()}))

	mr.Del(redis.DefaultPrefix + "u:a")

	list, err := store.List(ctx, "u")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)

	members, err := mr.ZMembers(redis.DefaultPrefix + "index:u")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}
