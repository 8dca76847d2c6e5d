package graph

import (
	"strings"
	"sync"
)

// Graph is a mutable builder for constructing state machine graphs.
// Add nodes and edges, set the entry point, then call Compile() to
// produce an executable CompiledGraph.
//
// Graph methods return the graph itself for fluent chaining:
//
//	g := graph.New[State]().
//	    AddNode("worker", workerFn).
//	    AddNode("evaluator", evalFn).
//	    AddEdge("worker", "evaluator").
//	    AddConditionalEdge("evaluator", routerFn).
//	    SetEntry("worker")
//
// Builder methods panic on programmer errors (empty IDs, nil functions,
// duplicates). Structural problems that depend on the whole graph
// (missing targets, no path to END) are reported by Compile instead.
//
// Graph is not safe for concurrent construction. CompiledGraph is
// immutable and safe for concurrent use.
type Graph[S any] struct {
	mu sync.RWMutex

	nodes            map[string]NodeFunc[S]
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	entryPoint       string
}

// New creates an empty graph builder for state type S.
func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:            make(map[string]NodeFunc[S]),
		edges:            make(map[string][]string),
		conditionalEdges: make(map[string]RouterFunc[S]),
	}
}

// AddNode registers a node function under the given ID.
//
// Panics if the ID is empty, reserved (END in any casing), contains
// whitespace, is a duplicate, or if fn is nil.
func (g *Graph[S]) AddNode(id string, fn NodeFunc[S]) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == "" {
		panic("graph: node ID cannot be empty")
	}
	if strings.EqualFold(id, "end") || strings.EqualFold(id, END) {
		panic("graph: node ID cannot be reserved word 'END'")
	}
	if strings.ContainsAny(id, " \t\n\r") {
		panic("graph: node ID cannot contain whitespace")
	}
	if fn == nil {
		panic("graph: node function cannot be nil")
	}
	if _, exists := g.nodes[id]; exists {
		panic("graph: duplicate node ID: " + id)
	}

	g.nodes[id] = fn
	return g
}

// AddEdge adds a simple edge from one node to another (or to END).
// Edge endpoints are validated at Compile time, not here, so edges
// may be declared before their nodes.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge adds a router-driven edge from the given node.
// The router is called after the node executes and returns the next
// node ID (or END). A conditional edge takes precedence over simple
// edges from the same node.
//
// Panics if router is nil.
func (g *Graph[S]) AddConditionalEdge(from string, router RouterFunc[S]) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if router == nil {
		panic("graph: router function cannot be nil")
	}

	g.conditionalEdges[from] = router
	return g
}

// SetEntry sets the entry point node. Calling it again overwrites the
// previous entry point.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}
