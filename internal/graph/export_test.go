package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/sixthdegree/internal/models"
)

func TestExport(t *testing.T) {
	actor := "actor"
	ps := persons("A", "B", "C")
	ps[0].Category = &actor

	s := NewSnapshot(ps, []models.Connection{
		edge(1, 1, 2),
		edge(2, 1, 2),
		edge(3, 2, 1),
	})
	out := s.Export()

	require.Len(t, out.Nodes, 3)
	assert.Equal(t, Node{ID: "1", Label: "A", Category: &actor}, out.Nodes[0])
	assert.Equal(t, "C", out.Nodes[2].Label)
	assert.Nil(t, out.Nodes[2].Category)

	assert.Equal(t, []Edge{
		{Source: "1", Target: "2"},
		{Source: "1", Target: "2"},
		{Source: "2", Target: "1"},
	}, out.Edges)
}

func TestExport_EmptyGraphEncodesArrays(t *testing.T) {
	b, err := json.Marshal(NewSnapshot(nil, nil).Export())
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, string(b))
}

func TestExport_NullCategory(t *testing.T) {
	b, err := json.Marshal(NewSnapshot(persons("A"), nil).Export())
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[{"id":"1","label":"A","category":null}],"edges":[]}`, string(b))
}
