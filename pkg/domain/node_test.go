package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_UnmarshalEditorForm(t *testing.T) {
	raw := `{"id":"upload-1","data":{"nodeType":"upload","settings":{"maxWords":10},"content":"file body"}}`

	var n domain.Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	assert.Equal(t, "upload-1", n.ID)
	assert.Equal(t, domain.KindUpload, n.Kind)
	assert.Equal(t, "file body", n.Payload)
	assert.EqualValues(t, 10, n.Settings["maxWords"])
}

func TestNode_UnmarshalEditorNodeTypeWins(t *testing.T) {
	raw := `{"id":"sampler-1","type":"workflow","position":{"x":1,"y":2},"data":{"nodeType":"sampler","settings":{"numResponses":2}}}`

	var n domain.Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, domain.KindSampler, n.Kind)
	assert.EqualValues(t, 2, n.Settings["numResponses"])
}

func TestNode_UnmarshalFlatForm(t *testing.T) {
	raw := `{"id":"a","type":"synthesis","settings":{"maxWords":5}}`

	var n domain.Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, domain.KindSynthesis, n.Kind)
	assert.EqualValues(t, 5, n.Settings["maxWords"])
}

func TestInferKind(t *testing.T) {
	assert.Equal(t, domain.KindSynthesis, domain.InferKind("synthesis-3"))
	assert.Equal(t, domain.KindSemanticSearch, domain.InferKind("semantic_search-1"))
	assert.Equal(t, domain.NodeKind("plain"), domain.InferKind("plain"))
}

func TestNodeKind_Sets(t *testing.T) {
	assert.True(t, domain.KindPrompt.IsInput())
	assert.True(t, domain.KindResponse.IsOutput())
	assert.True(t, domain.KindOrchestrator.IsAgent())
	assert.False(t, domain.NodeKind("web_search").IsKnown())
	assert.Len(t, domain.AgentKinds(), 10)
}

func TestStateTable_OneWay(t *testing.T) {
	table := domain.NewStateTable([]string{"a", "b"})

	assert.True(t, table.Resolve("a", domain.StateExecuted))
	assert.False(t, table.Resolve("a", domain.StateExcluded))
	assert.Equal(t, domain.StateExecuted, table.Get("a"))
	assert.Equal(t, domain.StatePending, table.Get("b"))
	assert.Equal(t, []string{"a"}, table.Select([]string{"a", "b"}, domain.StateExecuted))
}
