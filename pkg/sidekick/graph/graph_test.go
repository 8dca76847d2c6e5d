package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNew verifies basic graph creation.
func TestNew(t *testing.T) {
	g := New[Counter]()
	assert.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.NotNil(t, g.edges)
	assert.NotNil(t, g.conditionalEdges)
	assert.Empty(t, g.entryPoint)
}

// TestGraph_AddNode tests successful node addition.
func TestGraph_AddNode(t *testing.T) {
	g := New[Counter]().
		AddNode("a", increment).
		AddNode("b", increment)

	assert.Len(t, g.nodes, 2)
	assert.Contains(t, g.nodes, "a")
	assert.Contains(t, g.nodes, "b")
}

// TestGraph_AddNode_Chaining tests fluent API chaining.
func TestGraph_AddNode_Chaining(t *testing.T) {
	g := New[Counter]()
	result := g.AddNode("a", increment)
	assert.Same(t, g, result) // Should return same pointer for chaining
}

// TestGraph_AddNode_EmptyID_Panics tests that empty node ID panics.
func TestGraph_AddNode_EmptyID_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "graph: node ID cannot be empty", func() {
		New[Counter]().AddNode("", increment)
	})
}

// TestGraph_AddNode_ReservedID_Panics tests that reserved IDs panic.
func TestGraph_AddNode_ReservedID_Panics(t *testing.T) {
	testCases := []struct {
		name string
		id   string
	}{
		{"END uppercase", "END"},
		{"end lowercase", "end"},
		{"End mixed case", "End"},
		{"__end__ literal", "__end__"},
		{"__END__ uppercase", "__END__"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.PanicsWithValue(t, "graph: node ID cannot be reserved word 'END'", func() {
				New[Counter]().AddNode(tc.id, increment)
			})
		})
	}
}

// TestGraph_AddNode_WhitespaceID_Panics tests that IDs with whitespace panic.
func TestGraph_AddNode_WhitespaceID_Panics(t *testing.T) {
	testCases := []struct {
		name string
		id   string
	}{
		{"space", "node a"},
		{"tab", "node\ta"},
		{"newline", "node\na"},
		{"leading space", " node"},
		{"trailing space", "node "},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.PanicsWithValue(t, "graph: node ID cannot contain whitespace", func() {
				New[Counter]().AddNode(tc.id, increment)
			})
		})
	}
}

// TestGraph_AddNode_NilFunc_Panics tests that nil function panics.
func TestGraph_AddNode_NilFunc_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "graph: node function cannot be nil", func() {
		New[Counter]().AddNode("a", nil)
	})
}

// TestGraph_AddNode_DuplicateID_Panics tests that duplicate IDs panic.
func TestGraph_AddNode_DuplicateID_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "graph: duplicate node ID: a", func() {
		New[Counter]().
			AddNode("a", increment).
			AddNode("a", increment)
	})
}

// TestGraph_AddNode_ValidIDs tests various valid node IDs.
func TestGraph_AddNode_ValidIDs(t *testing.T) {
	validIDs := []string{
		"a",
		"worker",
		"fetch-data",
		"process_input",
		"CamelCase",
		"node-with-many-dashes",
		"123",
		"_underscore",
	}

	for _, id := range validIDs {
		t.Run(id, func(t *testing.T) {
			g := New[Counter]().AddNode(id, increment)
			assert.Contains(t, g.nodes, id)
		})
	}
}

// TestGraph_AddEdge tests edge addition.
func TestGraph_AddEdge(t *testing.T) {
	g := New[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END)

	assert.Equal(t, []string{"b"}, g.edges["a"])
	assert.Equal(t, []string{END}, g.edges["b"])
}

// TestGraph_AddEdge_Chaining tests fluent API chaining.
func TestGraph_AddEdge_Chaining(t *testing.T) {
	g := New[Counter]()
	result := g.AddEdge("a", "b")
	assert.Same(t, g, result)
}

// TestGraph_AddEdge_MultipleFromSameNode tests multiple edges from one node.
func TestGraph_AddEdge_MultipleFromSameNode(t *testing.T) {
	g := New[Counter]().
		AddEdge("a", "b").
		AddEdge("a", "c")

	assert.Equal(t, []string{"b", "c"}, g.edges["a"])
}

// TestGraph_AddConditionalEdge tests conditional edge addition.
func TestGraph_AddConditionalEdge(t *testing.T) {
	router := func(ctx Context, s Counter) string {
		if s.Value > 0 {
			return END
		}
		return "loop"
	}

	g := New[Counter]().
		AddNode("check", increment).
		AddConditionalEdge("check", router)

	assert.NotNil(t, g.conditionalEdges["check"])
}

// TestGraph_AddConditionalEdge_NilRouter_Panics tests that nil router panics.
func TestGraph_AddConditionalEdge_NilRouter_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "graph: router function cannot be nil", func() {
		New[Counter]().AddConditionalEdge("check", nil)
	})
}

// TestGraph_SetEntry tests entry point setting.
func TestGraph_SetEntry(t *testing.T) {
	g := New[Counter]().
		AddNode("start", increment).
		SetEntry("start")

	assert.Equal(t, "start", g.entryPoint)
}

// TestGraph_SetEntry_Chaining tests fluent API chaining.
func TestGraph_SetEntry_Chaining(t *testing.T) {
	g := New[Counter]()
	result := g.SetEntry("start")
	assert.Same(t, g, result)
}

// TestGraph_SetEntry_CanBeOverwritten tests that entry can be changed.
func TestGraph_SetEntry_CanBeOverwritten(t *testing.T) {
	g := New[Counter]().
		SetEntry("first").
		SetEntry("second")

	assert.Equal(t, "second", g.entryPoint)
}

// TestGraph_FluentAPI tests full fluent API usage.
func TestGraph_FluentAPI(t *testing.T) {
	g := New[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddNode("c", increment).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a")

	assert.Len(t, g.nodes, 3)
	assert.Equal(t, "a", g.entryPoint)
	assert.Len(t, g.edges, 3)
}
