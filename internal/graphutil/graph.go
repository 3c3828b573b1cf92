// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graphutil

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
)

// Digraph is a directed graph over labels of type T, to work with existing graph libraries. It implements the
// methods to satisfy yourbasic's graph.Iterator and Gonum's graph.Directed. Node ids are dense: the i-th label
// added has id i.
type Digraph[T comparable] struct {
	labels []T
	ids    map[T]int64
	succs  [][]int64
	preds  [][]int64
	edges  map[[2]int64]bool
}

// NewDigraph returns an empty graph
func NewDigraph[T comparable]() *Digraph[T] {
	return &Digraph[T]{ids: map[T]int64{}, edges: map[[2]int64]bool{}}
}

// AddNode adds a node labelled x if there is none already, and returns its id.
func (g *Digraph[T]) AddNode(x T) int64 {
	if id, ok := g.ids[x]; ok {
		return id
	}
	id := int64(len(g.labels))
	g.labels = append(g.labels, x)
	g.ids[x] = id
	g.succs = append(g.succs, nil)
	g.preds = append(g.preds, nil)
	return id
}

// AddEdge adds an edge from x to y, adding the nodes if necessary. Duplicate edges are ignored.
func (g *Digraph[T]) AddEdge(x, y T) {
	u, v := g.AddNode(x), g.AddNode(y)
	if g.edges[[2]int64{u, v}] {
		return
	}
	g.edges[[2]int64{u, v}] = true
	g.succs[u] = append(g.succs[u], v)
	g.preds[v] = append(g.preds[v], u)
}

// ID returns the id of the node labelled x
func (g *Digraph[T]) ID(x T) (int64, bool) {
	id, ok := g.ids[x]
	return id, ok
}

// Label returns the label of node id
func (g *Digraph[T]) Label(id int64) T {
	return g.labels[id]
}

// Labels returns the labels of all nodes, in id order
func (g *Digraph[T]) Labels() []T {
	return g.labels
}

// Successors returns the labels of the successors of x
func (g *Digraph[T]) Successors(x T) []T {
	id, ok := g.ids[x]
	if !ok {
		return nil
	}
	res := make([]T, len(g.succs[id]))
	for k, s := range g.succs[id] {
		res[k] = g.labels[s]
	}
	return res
}

// *************** yourbasic graph.Iterator implementation **********************

// Order implements the graph.Iterator interface
func (g *Digraph[T]) Order() int {
	return len(g.labels)
}

// Visit implements the graph.Iterator interface
func (g *Digraph[T]) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if v < 0 || v >= len(g.succs) {
		return false
	}
	for _, w := range g.succs[v] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Gonum graph.Directed implementation **********************

// Node implements the Graph interface
func (g *Digraph[T]) Node(id int64) graph.Node {
	if id < 0 || id >= int64(len(g.labels)) {
		return nil
	}
	return Node{id: id, label: g.labels[id]}
}

// Nodes returns the set of nodes in the graph
func (g *Digraph[T]) Nodes() graph.Nodes {
	nodes := make([]graph.Node, len(g.labels))
	for k := range g.labels {
		nodes[k] = Node{id: int64(k), label: g.labels[k]}
	}
	return iterator.NewOrderedNodes(nodes)
}

func (g *Digraph[T]) nodeSet(ids []int64) graph.Nodes {
	if len(ids) == 0 {
		return graph.Empty
	}
	nodes := make([]graph.Node, len(ids))
	for k, id := range ids {
		nodes[k] = Node{id: id, label: g.labels[id]}
	}
	return iterator.NewOrderedNodes(nodes)
}

// From returns the successors of node id
func (g *Digraph[T]) From(id int64) graph.Nodes {
	if id < 0 || id >= int64(len(g.succs)) {
		return graph.Empty
	}
	return g.nodeSet(g.succs[id])
}

// To returns the predecessors of node id
func (g *Digraph[T]) To(id int64) graph.Nodes {
	if id < 0 || id >= int64(len(g.preds)) {
		return graph.Empty
	}
	return g.nodeSet(g.preds[id])
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers, in any
// direction
func (g *Digraph[T]) HasEdgeBetween(xid, yid int64) bool {
	return g.edges[[2]int64{xid, yid}] || g.edges[[2]int64{yid, xid}]
}

// HasEdgeFromTo returns a boolean indicating whether an edge exists from uid to vid
func (g *Digraph[T]) HasEdgeFromTo(uid, vid int64) bool {
	return g.edges[[2]int64{uid, vid}]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (g *Digraph[T]) Edge(uid, vid int64) graph.Edge {
	if !g.edges[[2]int64{uid, vid}] {
		return nil
	}
	return Edge{from: g.Node(uid), to: g.Node(vid)}
}

// Node is a node of a Digraph. It implements the graph.Node interface.
type Node struct {
	id    int64
	label any
}

// ID returns the id of the node
func (n Node) ID() int64 {
	return n.id
}

// Label returns the label of the node
func (n Node) Label() any {
	return n.label
}

func (n Node) String() string {
	return fmt.Sprintf("%v", n.label)
}

// Edge implements the graph.Edge interface
type Edge struct {
	from graph.Node
	to   graph.Node
}

// From returns the source of the edge
func (e Edge) From() graph.Node { return e.from }

// To returns the destination of the edge
func (e Edge) To() graph.Node { return e.to }

// ReversedEdge returns the edge in the opposite direction
func (e Edge) ReversedEdge() graph.Edge { return Edge{from: e.to, to: e.from} }
