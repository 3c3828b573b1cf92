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

package dataflow

import (
	"github.com/awslabs/cat-optimizer/analysis/ir"
	"golang.org/x/tools/container/intsets"
)

// buildSites classifies every position of the bitsets and computes the Gen and Kill sets of the instructions.
//
// A definition site generates itself. A New, Set, Add or Sub also generates the New, Set, Add and Sub of the
// handles that only may alias its handle, since those may still be observed, and kills the other sites defining a
// handle that must alias its handle. Joins, parameters and calls never kill.
func (a *FunctionAnalysis) buildSites() {
	n := len(a.instrs) + len(a.Fn.Params)
	a.kind = make([]siteKind, n)
	a.target = make([]ir.Value, n)
	a.gen = make([]*intsets.Sparse, n)
	a.kill = make([]*intsets.Sparse, n)
	for k, i := range a.instrs {
		switch {
		case i.Op == ir.OpJoin && i.Type().IsHandle():
			a.kind[k] = siteJoin
			a.target[k] = i
		case i.IsDefinitionSite():
			a.kind[k] = siteDef
			a.target[k] = canon(i.RedefinedHandle())
		case i.IsOpaqueCall():
			a.kind[k] = siteClobber
			if i.Type().IsHandle() {
				a.kind[k] |= siteOrigin
				a.target[k] = i
			}
		}
	}
	for k, p := range a.Fn.Params {
		if p.Type().IsHandle() {
			a.kind[len(a.instrs)+k] = siteOrigin
			a.target[len(a.instrs)+k] = p
		}
	}
	for k := range a.kind {
		a.gen[k] = &intsets.Sparse{}
		a.kill[k] = &intsets.Sparse{}
		if a.kind[k] == 0 {
			continue
		}
		a.gen[k].Insert(k)
		if a.kind[k] != siteDef {
			continue
		}
		t := a.target[k]
		for d, td := range a.target {
			if d == k || td == nil {
				continue
			}
			if td == t || a.must[t][td] {
				a.kill[k].Insert(d)
			} else if a.kind[d] == siteDef && a.may[t][td] {
				a.gen[k].Insert(d)
			}
		}
		a.kill[k].Remove(k)
	}
}

// solve computes the reaching definitions: the Gen and Kill sets of the blocks are folded backward from the
// instructions, the In and Out sets of the blocks are iterated to a fixpoint, and the In set of every instruction is
// derived forward from the In set of its block.
func (a *FunctionAnalysis) solve() {
	blocks := a.Fn.Blocks
	genB := make([]*intsets.Sparse, len(blocks))
	killB := make([]*intsets.Sparse, len(blocks))
	a.blockIn = make([]*intsets.Sparse, len(blocks))
	a.blockOut = make([]*intsets.Sparse, len(blocks))
	for bi, b := range blocks {
		g, k := &intsets.Sparse{}, &intsets.Sparse{}
		tmp := &intsets.Sparse{}
		for x := len(b.Instrs) - 1; x >= 0; x-- {
			i := b.Instrs[x].Index
			tmp.Difference(a.gen[i], k)
			g.UnionWith(tmp)
			k.UnionWith(a.kill[i])
		}
		genB[bi], killB[bi] = g, k
		a.blockIn[bi] = &intsets.Sparse{}
		a.blockOut[bi] = &intsets.Sparse{}
	}
	entryIn := &intsets.Sparse{}
	for k, p := range a.Fn.Params {
		if p.Type().IsHandle() {
			entryIn.Insert(len(a.instrs) + k)
		}
	}

	worklist := make([]*ir.BasicBlock, len(blocks))
	copy(worklist, blocks)
	queued := make([]bool, len(blocks))
	for k := range queued {
		queued[k] = true
	}
	out := &intsets.Sparse{}
	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		queued[b.Index] = false
		in := a.blockIn[b.Index]
		in.Clear()
		if b.Index == 0 {
			in.Copy(entryIn)
		}
		for _, p := range b.Preds {
			in.UnionWith(a.blockOut[p.Index])
		}
		out.Difference(in, killB[b.Index])
		out.UnionWith(genB[b.Index])
		if out.Equals(a.blockOut[b.Index]) {
			continue
		}
		a.blockOut[b.Index].Copy(out)
		for _, s := range b.Succs() {
			if !queued[s.Index] {
				queued[s.Index] = true
				worklist = append(worklist, s)
			}
		}
	}

	a.in = make([]*intsets.Sparse, len(a.instrs))
	for _, b := range blocks {
		cur := &intsets.Sparse{}
		cur.Copy(a.blockIn[b.Index])
		for _, i := range b.Instrs {
			s := &intsets.Sparse{}
			s.Copy(cur)
			a.in[i.Index] = s
			if a.kind[i.Index] != 0 {
				cur.DifferenceWith(a.kill[i.Index])
				cur.UnionWith(a.gen[i.Index])
			}
		}
	}
}

// In returns the definition sites that may reach instruction i. The set must not be modified.
func (a *FunctionAnalysis) In(i *ir.Instruction) *intsets.Sparse {
	if k, ok := a.bit(i); ok && k < len(a.in) && a.in[k] != nil {
		return a.in[k]
	}
	return &intsets.Sparse{}
}

// Out returns the definition sites that may reach the point right after instruction i.
func (a *FunctionAnalysis) Out(i *ir.Instruction) *intsets.Sparse {
	out := &intsets.Sparse{}
	out.Copy(a.In(i))
	if k, ok := a.bit(i); ok && a.kind[k] != 0 {
		out.DifferenceWith(a.kill[k])
		out.UnionWith(a.gen[k])
	}
	return out
}

// Gen returns the definition sites generated by i. The set must not be modified.
func (a *FunctionAnalysis) Gen(i *ir.Instruction) *intsets.Sparse {
	if k, ok := a.bit(i); ok {
		return a.gen[k]
	}
	return &intsets.Sparse{}
}

// Kill returns the definition sites killed by i. It never contains i. The set must not be modified.
func (a *FunctionAnalysis) Kill(i *ir.Instruction) *intsets.Sparse {
	if k, ok := a.bit(i); ok {
		return a.kill[k]
	}
	return &intsets.Sparse{}
}

// DefinitionSites returns the New, Set, Add, Sub and handle joins of the function
func (a *FunctionAnalysis) DefinitionSites() []*ir.Instruction {
	var defs []*ir.Instruction
	for k, i := range a.instrs {
		if a.kind[k]&(siteDef|siteJoin) != 0 {
			defs = append(defs, i)
		}
	}
	return defs
}

// ReachingDefinitions returns the New, Set, Add, Sub and handle joins that may reach instruction i
func (a *FunctionAnalysis) ReachingDefinitions(i *ir.Instruction) []*ir.Instruction {
	var defs []*ir.Instruction
	for _, k := range a.In(i).AppendTo(nil) {
		if k < len(a.instrs) && a.kind[k]&(siteDef|siteJoin) != 0 {
			defs = append(defs, a.instrs[k])
		}
	}
	return defs
}
