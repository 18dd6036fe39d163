package file_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/aretw0/lattice/pkg/adapters/file"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlGraph = `name: Image routing
nodes:
  - id: prompt-1
    type: prompt
    payload: draw a fox
  - id: orchestrator-1
    type: orchestrator
    settings:
      maxTools: 2
  - id: image_generator-1
    data:
      nodeType: image_generator
      settings:
        imageType: cartoon
edges:
  - {source: prompt-1, target: orchestrator-1}
  - {source: orchestrator-1, target: image_generator-1}
`

const editorGraph = `{
  "name": "Basic Q&A",
  "nodes": [
    {"id": "prompt-1", "type": "workflow", "position": {"x": 50, "y": 200}, "data": {"nodeType": "prompt", "settings": {}}},
    {"id": "synthesis-1", "type": "workflow", "data": {"nodeType": "synthesis", "settings": {"maxWords": 300}}}
  ],
  "edges": [{"id": "e1", "source": "prompt-1", "target": "synthesis-1"}]
}`

func TestDecode_YAML(t *testing.T) {
	wf, err := file.Decode([]byte(yamlGraph), ".yaml")
	require.NoError(t, err)

	assert.Equal(t, "Image routing", wf.Name)
	require.Len(t, wf.Nodes, 3)
	assert.Equal(t, domain.KindPrompt, wf.Nodes[0].Kind)
	assert.Equal(t, "draw a fox", wf.Nodes[0].Payload)
	assert.EqualValues(t, 2, wf.Nodes[1].Settings["maxTools"])
	assert.Equal(t, domain.KindImageGenerator, wf.Nodes[2].Kind)
	assert.Equal(t, "cartoon", wf.Nodes[2].Settings["imageType"])
	assert.Equal(t, domain.Edge{Source: "orchestrator-1", Target: "image_generator-1"}, wf.Edges[1])
}

func TestDecode_EditorJSON(t *testing.T) {
	wf, err := file.Decode([]byte(editorGraph), ".json")
	require.NoError(t, err)
	assert.Equal(t, domain.KindSynthesis, wf.Nodes[1].Kind)
	assert.Equal(t, []domain.Edge{{Source: "prompt-1", Target: "synthesis-1"}}, wf.Edges)
}

func TestDecode_Errors(t *testing.T) {
	_, err := file.Decode([]byte("a: [1"), ".yml")
	assert.Error(t, err)
	_, err = file.Decode([]byte("{}"), ".toml")
	assert.ErrorContains(t, err, "unsupported")
}

func TestLoadGraph_DefaultsIDToStem(t *testing.T) {
	p := filepath.Join(t.TempDir(), "fox.yaml")
	require.NoError(t, os.WriteFile(p, []byte(yamlGraph), 0o644))

	wf, err := file.LoadGraph(p)
	require.NoError(t, err)
	assert.Equal(t, "fox", wf.ID)
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"b_qa.json":   {Data: []byte(editorGraph)},
		"a_fox.yml":   {Data: []byte(yamlGraph)},
		"README.md":   {Data: []byte("# ignored")},
		"nested/x.go": {Data: []byte("package x")},
	}
	wfs, err := file.LoadFS(fsys)
	require.NoError(t, err)
	require.Len(t, wfs, 2)
	assert.Equal(t, "a_fox", wfs[0].ID)
	assert.Equal(t, "b_qa", wfs[1].ID)
}
