package lattice_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/agents"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graphOf(kinds ...domain.NodeKind) domain.WorkflowGraph {
	var def domain.WorkflowGraph
	for i, k := range kinds {
		id := string(k) + "-1"
		def.Nodes = append(def.Nodes, domain.Node{ID: id, Kind: k})
		if i > 0 {
			def.Edges = append(def.Edges, domain.Edge{Source: def.Nodes[i-1].ID, Target: id})
		}
	}
	return def
}

func TestNew_Defaults(t *testing.T) {
	eng, err := lattice.New()
	require.NoError(t, err)

	assert.Equal(t, "local", eng.Provider().Name)
	assert.NotNil(t, eng.Retrieval())
	assert.NotNil(t, eng.Workflows())
	assert.ElementsMatch(t, domain.AgentKinds(), eng.Kinds())

	list, err := eng.Examples().List(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}

func TestEngine_ExecuteStreamsEvents(t *testing.T) {
	reg := agents.NewRegistry()
	reg.Register(domain.KindSynthesis, ports.AgentFunc(func(_ context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
		return &domain.AgentResult{
			Agent:          "synthesis",
			Success:        true,
			ContextUpdates: map[string]any{domain.KeyFinalAnswer: "hello " + req.Message},
		}, nil
	}))

	var entered []string
	eng, err := lattice.New(
		lattice.WithAgents(reg),
		lattice.WithLifecycleHooks(domain.LifecycleHooks{
			OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { entered = append(entered, e.NodeID) },
		}),
	)
	require.NoError(t, err)

	var sink ports.Collector
	res, err := eng.Execute(context.Background(), domain.ExecuteRequest{
		Message: "world",
		Graph:   graphOf(domain.KindPrompt, domain.KindSynthesis, domain.KindResponse),
	}, &sink)
	require.NoError(t, err)

	assert.Equal(t, "hello world", res.Answer)
	assert.Equal(t, domain.EventDone, sink.Types()[len(sink.Types())-1])
	assert.Contains(t, entered, "synthesis-1")
}

func TestEngine_RunCycle(t *testing.T) {
	eng, err := lattice.New()
	require.NoError(t, err)

	def := graphOf(domain.KindPrompt, domain.KindSampler, domain.KindFormatting)
	def.Edges = append(def.Edges, domain.Edge{Source: "formatting-1", Target: "sampler-1"})

	_, err = eng.Run(context.Background(), def, "hi")
	var cycle *domain.GraphCycleError
	require.ErrorAs(t, err, &cycle)
}

func TestEngine_Lookup(t *testing.T) {
	ctx := context.Background()
	eng, err := lattice.New()
	require.NoError(t, err)

	saved, err := eng.Workflows().Save(ctx, &domain.Workflow{
		UserID: "alice",
		Name:   "mine",
		Nodes:  graphOf(domain.KindPrompt, domain.KindResponse).Nodes,
	})
	require.NoError(t, err)

	got, err := eng.Lookup(ctx, "alice", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Name)

	got, err = eng.Lookup(ctx, "alice", "basic_qa")
	require.NoError(t, err)
	assert.Equal(t, "basic_qa", got.ID)

	_, err = eng.Lookup(ctx, "bob", saved.ID)
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
}

func TestEngine_ValidateAndMermaid(t *testing.T) {
	eng, err := lattice.New()
	require.NoError(t, err)

	def := graphOf(domain.KindPrompt, domain.KindSummarization, domain.KindResponse)
	report := eng.Validate(def)
	assert.True(t, report.Valid())
	assert.Equal(t, []string{"prompt-1", "summarization-1", "response-1"}, report.Order)

	res, err := eng.Run(context.Background(), def, "Short text to summarise.")
	require.NoError(t, err)

	chart := eng.Mermaid(def, res)
	assert.True(t, strings.HasPrefix(chart, "graph"))
	assert.Contains(t, chart, "summarization_1")
	assert.Contains(t, chart, "executed")
}
