// Package graph implements a small state-machine runtime: named nodes over a
// shared state value, connected by static and conditional edges, with
// per-thread checkpointing. The query pipeline is expressed as one of these
// graphs (writer -> reviewer -> advisor loop).
package graph

import (
	"context"
	"fmt"
)

// END is the sentinel target that terminates execution.
const END = "__end__"

// NodeFunc executes one node: it receives the current state and returns the
// updated state.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// RouteFunc picks the next node after a conditional node. Returning END
// terminates the run.
type RouteFunc[S any] func(ctx context.Context, state S) string

// StateGraph is a builder for a state machine over S.
type StateGraph[S any] struct {
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	conditional map[string]RouteFunc[S]
	entry       string
}

// New creates an empty state graph.
func New[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:       make(map[string]NodeFunc[S]),
		edges:       make(map[string]string),
		conditional: make(map[string]RouteFunc[S]),
	}
}

// AddNode registers a named node.
func (g *StateGraph[S]) AddNode(name string, fn NodeFunc[S]) *StateGraph[S] {
	g.nodes[name] = fn
	return g
}

// AddEdge connects from -> to unconditionally.
func (g *StateGraph[S]) AddEdge(from, to string) *StateGraph[S] {
	g.edges[from] = to
	return g
}

// AddConditionalEdge routes from's successor through fn at runtime.
// A conditional edge takes precedence over a static edge on the same node.
func (g *StateGraph[S]) AddConditionalEdge(from string, fn RouteFunc[S]) *StateGraph[S] {
	g.conditional[from] = fn
	return g
}

// SetEntryPoint sets the node execution starts from.
func (g *StateGraph[S]) SetEntryPoint(name string) *StateGraph[S] {
	g.entry = name
	return g
}

// Compile validates the graph and returns a Runner.
func (g *StateGraph[S]) Compile(opts ...RunnerOption[S]) (*Runner[S], error) {
	if g.entry == "" {
		return nil, fmt.Errorf("graph: entry point not set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("graph: entry node %q not registered", g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: edge from unknown node %q", from)
		}
		if to != END {
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("graph: edge %q -> unknown node %q", from, to)
			}
		}
	}
	for from := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: conditional edge from unknown node %q", from)
		}
	}

	r := &Runner[S]{
		graph:    g,
		maxSteps: defaultMaxSteps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}
