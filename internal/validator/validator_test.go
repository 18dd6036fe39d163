package validator_test

import (
	"strings"
	"testing"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/internal/validator"
	"github.com/aretw0/lattice/pkg/agents"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graph(edges [][2]string, nodes ...string) domain.WorkflowGraph {
	var def domain.WorkflowGraph
	for _, id := range nodes {
		def.Nodes = append(def.Nodes, domain.Node{ID: id})
	}
	for _, e := range edges {
		def.Edges = append(def.Edges, domain.Edge{Source: e[0], Target: e[1]})
	}
	return def
}

func messages(r validator.Report) []string {
	var out []string
	for _, i := range r.Issues {
		out = append(out, i.String())
	}
	return out
}

func TestValidate(t *testing.T) {
	registry := agents.NewDefaultRegistry(agents.Deps{})

	tests := []struct {
		name     string
		def      domain.WorkflowGraph
		valid    bool
		contains []string
	}{
		{
			name:  "valid chain",
			def:   graph([][2]string{{"prompt-1", "synthesis-1"}, {"synthesis-1", "response-1"}}, "prompt-1", "synthesis-1", "response-1"),
			valid: true,
		},
		{
			name:     "cycle",
			def:      graph([][2]string{{"prompt-1", "sampler-1"}, {"sampler-1", "synthesis-1"}, {"synthesis-1", "sampler-1"}}, "prompt-1", "sampler-1", "synthesis-1"),
			contains: []string{"cycle through"},
		},
		{
			name:     "empty",
			def:      domain.WorkflowGraph{},
			contains: []string{"no reachable nodes"},
		},
		{
			name:     "dangling edge and unknown kind",
			def:      graph([][2]string{{"prompt-1", "ghost-1"}, {"prompt-1", "mystery-1"}, {"mystery-1", "response-1"}}, "prompt-1", "mystery-1", "response-1"),
			valid:    true,
			contains: []string{"unknown target", `mystery-1: unknown kind "mystery"`},
		},
		{
			name:     "router without branches and no response",
			def:      graph([][2]string{{"prompt-1", "orchestrator-1"}, {"orchestrator-1", "synthesis-1"}}, "prompt-1", "orchestrator-1", "synthesis-1"),
			valid:    true,
			contains: []string{"orchestrator-1: router has no branch nodes downstream", "no response node"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validator.Validate(tt.def, registry, runtime.DefaultRoutingTable())
			assert.Equal(t, tt.valid, r.Valid(), messages(r))
			if tt.valid {
				assert.NoError(t, r.Err())
			} else {
				assert.Error(t, r.Err())
			}
			for _, want := range tt.contains {
				assert.Contains(t, strings.Join(messages(r), "\n"), want)
			}
		})
	}
}

func TestValidate_Order(t *testing.T) {
	r := validator.Validate(
		graph([][2]string{{"prompt-1", "supervisor-1"}, {"supervisor-1", "synthesis-1"}, {"synthesis-1", "response-1"}},
			"response-1", "synthesis-1", "supervisor-1", "prompt-1"),
		nil, runtime.DefaultRoutingTable())
	require.True(t, r.Valid())
	assert.Equal(t, []string{"prompt-1", "supervisor-1", "synthesis-1", "response-1"}, r.Order)
}

func TestValidate_UnregisteredAgent(t *testing.T) {
	r := validator.Validate(
		graph([][2]string{{"prompt-1", "translator-1"}}, "prompt-1", "translator-1"),
		agents.NewRegistry(), runtime.DefaultRoutingTable())
	assert.True(t, r.Valid())
	assert.Contains(t, messages(r), `translator-1: no agent registered for "translator", will be skipped`)
}
