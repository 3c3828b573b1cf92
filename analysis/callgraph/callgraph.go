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

// Package callgraph builds the direct call graph of a program, detects the functions that can never reach
// themselves and orders functions bottom-up for interprocedural analyses.
//
// Only direct calls are edges of the graph. Indirect calls are opaque: a function performing one may reach any
// function whose address is taken, so it is never considered recursion-free. Calls to the handle operations are
// not edges.
package callgraph

import (
	"fmt"
	"strings"

	"github.com/awslabs/cat-optimizer/analysis/ir"
	"github.com/awslabs/cat-optimizer/internal/funcutil"
	"github.com/awslabs/cat-optimizer/internal/graphutil"
	ybgraph "github.com/yourbasic/graph"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"
)

// Node holds the call information of one function.
type Node struct {
	Func *ir.Function

	// Sites are the direct calls to Func in the program
	Sites []*ir.Instruction

	// Out are the direct calls performed by Func, handle operations excluded
	Out []*ir.Instruction

	// Indirect is set when Func performs a call through a function value
	Indirect bool

	// AddressTaken is set when Func is used as a value, i.e. it may be the target of indirect calls
	AddressTaken bool
}

// Graph is the direct call graph of a program.
type Graph struct {
	Prog  *ir.Program
	Nodes map[*ir.Function]*Node
	g     *graphutil.Digraph[*ir.Function]
}

// Build computes the call graph of prog
func Build(prog *ir.Program) *Graph {
	cg := &Graph{Prog: prog, Nodes: map[*ir.Function]*Node{}, g: graphutil.NewDigraph[*ir.Function]()}
	for _, f := range prog.Functions {
		if f.HandleOp() != ir.NotHandleOp {
			continue
		}
		cg.Nodes[f] = &Node{Func: f, AddressTaken: ir.HasUses(f)}
		cg.g.AddNode(f)
	}
	for _, f := range prog.Functions {
		n, ok := cg.Nodes[f]
		if !ok {
			continue
		}
		for _, call := range f.Calls() {
			if call.Callee == nil {
				n.Indirect = true
				continue
			}
			callee, isNode := cg.Nodes[call.Callee]
			if !isNode {
				continue
			}
			n.Out = append(n.Out, call)
			callee.Sites = append(callee.Sites, call)
			cg.g.AddEdge(f, call.Callee)
		}
	}
	return cg
}

// Node returns the node of f, nil for handle operations and functions not in the program
func (cg *Graph) Node(f *ir.Function) *Node {
	return cg.Nodes[f]
}

// Sites returns the direct call sites of f
func (cg *Graph) Sites(f *ir.Function) []*ir.Instruction {
	if n := cg.Nodes[f]; n != nil {
		return n.Sites
	}
	return nil
}

// Callees returns the distinct functions directly called by f
func (cg *Graph) Callees(f *ir.Function) []*ir.Function {
	return cg.g.Successors(f)
}

// Digraph returns the graph of direct calls
func (cg *Graph) Digraph() *graphutil.Digraph[*ir.Function] {
	return cg.g
}

// IsRecursionFree returns true if no path of direct calls from f leads back to f, and neither f nor any
// function it reaches performs an indirect call. External functions are leaves.
func (cg *Graph) IsRecursionFree(f *ir.Function) bool {
	id, ok := cg.g.ID(f)
	if !ok {
		return false
	}
	cycle := false
	// the walk keeps a visited set: it terminates on cyclic call graphs
	w := traverse.DepthFirst{
		Traverse: func(e graph.Edge) bool {
			if e.To().ID() == id {
				cycle = true
				return false
			}
			return true
		},
	}
	stop := w.Walk(cg.g, cg.g.Node(id), func(n graph.Node) bool {
		return cycle || cg.Nodes[cg.g.Label(n.ID())].Indirect
	})
	return stop == nil && !cycle
}

// MarkRecursionFree sets the RecursionFree flag of the functions of the program. A function qualifies if it has
// at least one call site, at most maxEdges outgoing direct calls, and IsRecursionFree holds. It returns true if
// some flag changed.
func MarkRecursionFree(cg *Graph, maxEdges int) bool {
	changed := false
	for _, f := range cg.Prog.Functions {
		n := cg.Nodes[f]
		if n == nil || f.IsExternal() {
			continue
		}
		free := len(n.Sites) > 0 && len(n.Out) <= maxEdges && cg.IsRecursionFree(f)
		if free != f.RecursionFree {
			f.RecursionFree = free
			changed = true
		}
	}
	return changed
}

// BottomUp returns the functions of the program with a body, callees before their callers. Functions in the same
// strongly connected component are contiguous, in program order.
func BottomUp(cg *Graph) []*ir.Function {
	n := cg.g.Order()
	sccs := ybgraph.StrongComponents(cg.g)
	comp := make([]int, n)
	for c, members := range sccs {
		for _, v := range members {
			comp[v] = c
		}
	}
	condensed := ybgraph.New(len(sccs))
	for v := 0; v < n; v++ {
		cg.g.Visit(v, func(w int, _ int64) bool {
			if comp[v] != comp[w] {
				condensed.Add(comp[v], comp[w])
			}
			return false
		})
	}
	order, ok := ybgraph.TopSort(condensed)
	if !ok {
		// cannot happen on a condensation; fall back on the component order, which is reverse topological
		order = make([]int, len(sccs))
		for k := range order {
			order[k] = len(sccs) - 1 - k
		}
	}
	funcutil.Reverse(order)
	var res []*ir.Function
	for _, c := range order {
		funcs := make([]*ir.Function, 0, len(sccs[c]))
		for _, v := range funcutil.SetToOrderedSlice(toSet(sccs[c])) {
			if f := cg.g.Label(int64(v)); !f.IsExternal() {
				funcs = append(funcs, f)
			}
		}
		res = append(res, funcs...)
	}
	return res
}

func toSet(l []int) map[int]bool {
	s := make(map[int]bool, len(l))
	for _, x := range l {
		s[x] = true
	}
	return s
}

// IsReachable returns true if f may execute: it is exported, its address is taken, or it has a direct call site.
func (cg *Graph) IsReachable(f *ir.Function) bool {
	n := cg.Nodes[f]
	if n == nil {
		return false
	}
	return f.Exported || n.AddressTaken || len(n.Sites) > 0
}

func (cg *Graph) String() string {
	var sb strings.Builder
	for _, f := range cg.g.Labels() {
		n := cg.Nodes[f]
		callees := funcutil.Map(cg.Callees(f), func(g *ir.Function) string { return g.RawName() })
		flags := ""
		if n.Indirect {
			flags += " indirect"
		}
		if n.AddressTaken {
			flags += " address-taken"
		}
		if f.RecursionFree {
			flags += " recursion-free"
		}
		fmt.Fprintf(&sb, "%s (%d sites%s) -> [%s]\n", f.RawName(), len(n.Sites), flags, strings.Join(callees, ", "))
	}
	return sb.String()
}
