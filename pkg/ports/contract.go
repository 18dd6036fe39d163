package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWorkflowStoreContract runs a suite of tests to verify that a WorkflowStore
// implementation adheres to the defined interface contract.
func RunWorkflowStoreContract(t *testing.T, store WorkflowStore) {
	ctx := context.Background()
	userID := "contract-user-" + time.Now().Format("20060102150405")

	newWorkflow := func(id string) *domain.Workflow {
		now := time.Now().UTC().Truncate(time.Second)
		return &domain.Workflow{
			ID:     id,
			UserID: userID,
			Name:   "Workflow " + id,
			Nodes: []domain.Node{
				{ID: "prompt-1", Kind: domain.KindPrompt},
				{ID: "synthesis-1", Kind: domain.KindSynthesis, Settings: map[string]any{"maxWords": 200}},
			},
			Edges:     []domain.Edge{{Source: "prompt-1", Target: "synthesis-1"}},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	t.Run("Save and Get", func(t *testing.T) {
		wf := newWorkflow("wf-1")
		require.NoError(t, store.Save(ctx, wf), "Save should not return error")

		loaded, err := store.Get(ctx, userID, "wf-1")
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, wf.Name, loaded.Name)
		assert.Equal(t, userID, loaded.UserID)
		require.Len(t, loaded.Nodes, 2)
		assert.Equal(t, domain.KindSynthesis, loaded.Nodes[1].Kind)
		assert.Equal(t, wf.Edges, loaded.Edges)
		assert.True(t, wf.UpdatedAt.Equal(loaded.UpdatedAt))
		// JSON persistence turns ints into float64; only presence is part of the contract.
		assert.NotNil(t, loaded.Nodes[1].Settings["maxWords"])
	})

	t.Run("Save replaces", func(t *testing.T) {
		wf := newWorkflow("wf-1")
		wf.Name = "Renamed"
		require.NoError(t, store.Save(ctx, wf))

		loaded, err := store.Get(ctx, userID, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", loaded.Name)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, userID, "missing")
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	})

	t.Run("Users are isolated", func(t *testing.T) {
		_, err := store.Get(ctx, "other-"+userID, "wf-1")
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newWorkflow("wf-2")))

		list, err := store.List(ctx, userID)
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, wf := range list {
			ids = append(ids, wf.ID)
		}
		assert.ElementsMatch(t, []string{"wf-1", "wf-2"}, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, userID, "wf-2"), "Delete should not return error")

		_, err := store.Get(ctx, userID, "wf-2")
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound, "Get after Delete should return ErrWorkflowNotFound")

		err = store.Delete(ctx, userID, "wf-2")
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	})
}

// RunVectorStoreContract verifies a VectorStore implementation.
func RunVectorStoreContract(t *testing.T, store VectorStore) {
	ctx := context.Background()
	kb := "contract-" + time.Now().Format("20060102150405")

	docs := []struct {
		doc domain.Document
		vec []float32
	}{
		{domain.Document{ID: kb + "-a", KnowledgeBase: kb, Title: "Alpha", Content: "alpha", ContentHash: "ha"}, []float32{1, 0, 0}},
		{domain.Document{ID: kb + "-b", KnowledgeBase: kb, Title: "Beta", Content: "beta", ContentHash: "hb"}, []float32{0, 1, 0}},
		{domain.Document{ID: kb + "-c", KnowledgeBase: kb, Title: "Gamma", Content: "gamma", ContentHash: "hc"}, []float32{0.9, 0.1, 0}},
	}

	t.Run("Upsert and Count", func(t *testing.T) {
		for _, d := range docs {
			require.NoError(t, store.Upsert(ctx, d.doc, d.vec))
		}
		n, err := store.Count(ctx, kb)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("ContentHash", func(t *testing.T) {
		h, ok, err := store.ContentHash(ctx, kb+"-b")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "hb", h)

		_, ok, err = store.ContentHash(ctx, kb+"-missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Search orders by similarity", func(t *testing.T) {
		hits, err := store.Search(ctx, kb, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "Alpha", hits[0].Document.Title)
		assert.Equal(t, "Gamma", hits[1].Document.Title)
		assert.InDelta(t, 1.0, hits[0].Similarity, 1e-4)
	})

	t.Run("Search is scoped to the knowledge base", func(t *testing.T) {
		hits, err := store.Search(ctx, "other-"+kb, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("List", func(t *testing.T) {
		list, err := store.List(ctx, kb)
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, kb+"-a"))
		assert.ErrorIs(t, store.Delete(ctx, kb+"-a"), domain.ErrDocumentNotFound)

		n, err := store.Count(ctx, kb)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		for _, d := range docs[1:] {
			_ = store.Delete(ctx, d.doc.ID)
		}
	})
}
