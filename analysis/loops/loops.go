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

// Package loops unrolls and peels the natural loops of functions that operate on handles.
//
// Loops are found from the back edges of the dominator tree and nested into a forest. Each candidate loop is first
// normalized: it gets a dedicated preheader, a single latch and a single dedicated exit, and every value defined in
// the loop and used after it flows through a join of the exit block. Loops with a small constant trip count are
// then fully unrolled; the others have their first iterations peeled.
package loops

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/cat-optimizer/analysis/cfg"
	"github.com/awslabs/cat-optimizer/analysis/ir"
	"github.com/awslabs/cat-optimizer/internal/graphutil"
)

// Loop is a natural loop.
type Loop struct {
	// Header is the unique entry block of the loop. It dominates every block of the loop.
	Header *ir.BasicBlock

	// Blocks are the blocks of the loop, header included
	Blocks map[*ir.BasicBlock]bool
}

// Contains returns true if b is in the loop
func (l *Loop) Contains(b *ir.BasicBlock) bool {
	return l.Blocks[b]
}

// Latches returns the predecessors of the header inside the loop, i.e. the sources of the back edges
func (l *Loop) Latches() []*ir.BasicBlock {
	var res []*ir.BasicBlock
	for _, p := range l.Header.Preds {
		if l.Blocks[p] {
			res = append(res, p)
		}
	}
	return res
}

// OutsidePreds returns the predecessors of the header outside of the loop
func (l *Loop) OutsidePreds() []*ir.BasicBlock {
	var res []*ir.BasicBlock
	for _, p := range l.Header.Preds {
		if !l.Blocks[p] {
			res = append(res, p)
		}
	}
	return res
}

// OrderedBlocks returns the blocks of the loop in function order
func (l *Loop) OrderedBlocks() []*ir.BasicBlock {
	res := make([]*ir.BasicBlock, 0, len(l.Blocks))
	for b := range l.Blocks {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Index < res[j].Index })
	return res
}

// Exits returns the edges leaving the loop, as (source, target) pairs, in function order
func (l *Loop) Exits() [][2]*ir.BasicBlock {
	var res [][2]*ir.BasicBlock
	for _, b := range l.OrderedBlocks() {
		for _, s := range b.Succs() {
			if !l.Blocks[s] {
				res = append(res, [2]*ir.BasicBlock{b, s})
			}
		}
	}
	return res
}

// HasHandleOp returns true if some instruction of the loop is a call to a handle operation
func (l *Loop) HasHandleOp() bool {
	for b := range l.Blocks {
		for _, i := range b.Instrs {
			if i.IsHandleOp() {
				return true
			}
		}
	}
	return false
}

// InstrCount returns the number of instructions in the loop
func (l *Loop) InstrCount() int {
	n := 0
	for b := range l.Blocks {
		n += len(b.Instrs)
	}
	return n
}

func (l *Loop) String() string {
	names := make([]string, 0, len(l.Blocks))
	for _, b := range l.OrderedBlocks() {
		names = append(names, b.Name())
	}
	return fmt.Sprintf("loop %s {%s}", l.Header.Name(), strings.Join(names, " "))
}

// Forest is the nesting forest of the loops of a function. The root has a nil label; its children are the
// outermost loops.
type Forest = graphutil.Tree[*Loop]

// FindLoops returns the loop forest of fn. Loops sharing a header are merged. Unreachable blocks and irreducible
// cycles are ignored.
func FindLoops(fn *ir.Function, dt *cfg.DomTree) *Forest {
	fn.Renumber()
	reachable := cfg.Reachable(fn)
	byHeader := map[*ir.BasicBlock]*Loop{}
	var headers []*ir.BasicBlock
	for _, b := range fn.Blocks {
		if !reachable[b] {
			continue
		}
		for _, h := range b.Succs() {
			if !dt.Dominates(h, b) {
				continue
			}
			l, ok := byHeader[h]
			if !ok {
				l = &Loop{Header: h, Blocks: map[*ir.BasicBlock]bool{h: true}}
				byHeader[h] = l
				headers = append(headers, h)
			}
			collectBody(l, b, reachable)
		}
	}
	loops := make([]*Loop, 0, len(headers))
	for _, h := range headers {
		loops = append(loops, byHeader[h])
	}
	// larger loops first, so that each loop's parent is already in the forest
	sort.SliceStable(loops, func(i, j int) bool { return len(loops[i].Blocks) > len(loops[j].Blocks) })
	root := graphutil.NewTree[*Loop](nil)
	nodes := map[*Loop]*Forest{}
	for k, l := range loops {
		parent := root
		// the innermost enclosing loop is the smallest one containing the header
		for _, o := range loops[:k] {
			if o.Blocks[l.Header] && (parent == root || len(o.Blocks) < len(parent.Label.Blocks)) {
				parent = nodes[o]
			}
		}
		nodes[l] = parent.AddChild(l)
	}
	return root
}

// collectBody adds to l the blocks that reach the latch without going through the header
func collectBody(l *Loop, latch *ir.BasicBlock, reachable map[*ir.BasicBlock]bool) {
	stack := []*ir.BasicBlock{latch}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if l.Blocks[b] {
			continue
		}
		l.Blocks[b] = true
		for _, p := range b.Preds {
			if reachable[p] && !l.Blocks[p] {
				stack = append(stack, p)
			}
		}
	}
}

// Depth returns the nesting depth of a loop in its forest, 1 for the outermost loops
func Depth(node *Forest) int {
	return node.Depth()
}
