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

// Package cfg implements control-flow graph utilities over ir functions: dominator trees, reachability, constant
// branch folding and unreachable block removal.
package cfg

import (
	"github.com/awslabs/cat-optimizer/analysis/ir"
	"github.com/awslabs/cat-optimizer/internal/graphutil"
	"gonum.org/v1/gonum/graph/flow"
)

// BlockGraph returns the control-flow graph of fn as a Digraph whose node ids are the block indexes. Self edges
// are omitted: they do not change dominance.
func BlockGraph(fn *ir.Function) *graphutil.Digraph[*ir.BasicBlock] {
	g := graphutil.NewDigraph[*ir.BasicBlock]()
	for _, b := range fn.Blocks {
		g.AddNode(b)
	}
	for _, b := range fn.Blocks {
		for _, s := range b.Succs() {
			if s != b {
				g.AddEdge(b, s)
			}
		}
	}
	return g
}

// DomTree is the dominator tree of a function. Unreachable blocks are not part of the tree.
type DomTree struct {
	idom     map[*ir.BasicBlock]*ir.BasicBlock
	children map[*ir.BasicBlock][]*ir.BasicBlock
	// pre and post are the entry and exit times of a depth-first walk of the tree
	pre, post map[*ir.BasicBlock]int
}

// Dominators computes the dominator tree of fn
func Dominators(fn *ir.Function) *DomTree {
	t := &DomTree{
		idom:     map[*ir.BasicBlock]*ir.BasicBlock{},
		children: map[*ir.BasicBlock][]*ir.BasicBlock{},
		pre:      map[*ir.BasicBlock]int{},
		post:     map[*ir.BasicBlock]int{},
	}
	entry := fn.Entry()
	if entry == nil {
		return t
	}
	g := BlockGraph(fn)
	rootID, _ := g.ID(entry)
	dt := flow.Dominators(g.Node(rootID), g)
	reachable := Reachable(fn)
	for _, b := range fn.Blocks {
		if b == entry || !reachable[b] {
			continue
		}
		id, _ := g.ID(b)
		if d := dt.DominatorOf(id); d != nil {
			parent := g.Label(d.ID())
			t.idom[b] = parent
			t.children[parent] = append(t.children[parent], b)
		}
	}
	clock := 0
	var walk func(b *ir.BasicBlock)
	walk = func(b *ir.BasicBlock) {
		t.pre[b] = clock
		clock++
		for _, c := range t.children[b] {
			walk(c)
		}
		t.post[b] = clock
		clock++
	}
	walk(entry)
	return t
}

// Idom returns the immediate dominator of b, nil for the entry and unreachable blocks
func (t *DomTree) Idom(b *ir.BasicBlock) *ir.BasicBlock {
	return t.idom[b]
}

// Children returns the blocks immediately dominated by b
func (t *DomTree) Children(b *ir.BasicBlock) []*ir.BasicBlock {
	return t.children[b]
}

// Dominates returns true when every path from the entry to b goes through a. A block dominates itself.
func (t *DomTree) Dominates(a, b *ir.BasicBlock) bool {
	if a == b {
		return true
	}
	pa, ok1 := t.pre[a]
	pb, ok2 := t.pre[b]
	if !ok1 || !ok2 {
		return false
	}
	return pa < pb && t.post[b] < t.post[a]
}

// InstrDominates returns true when instruction i executes before j on every path reaching j. An instruction
// does not dominate itself.
func (t *DomTree) InstrDominates(i, j *ir.Instruction) bool {
	bi, bj := i.Block(), j.Block()
	if bi == nil || bj == nil || i == j {
		return false
	}
	if bi == bj {
		for _, x := range bi.Instrs {
			if x == i {
				return true
			}
			if x == j {
				return false
			}
		}
		return false
	}
	return t.Dominates(bi, bj)
}

// Reachable returns the set of blocks reachable from the entry of fn
func Reachable(fn *ir.Function) map[*ir.BasicBlock]bool {
	seen := map[*ir.BasicBlock]bool{}
	entry := fn.Entry()
	if entry == nil {
		return seen
	}
	stack := []*ir.BasicBlock{entry}
	seen[entry] = true
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range b.Succs() {
			if !seen[s] {
				seen[s] = true
				stack = append(stack, s)
			}
		}
	}
	return seen
}
