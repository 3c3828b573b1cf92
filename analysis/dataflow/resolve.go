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

// Resolve returns the value held by handle h right before instruction at, when every definition that may reach
// at agrees on one constant. It fails if one of the handles that may alias h escapes, is redefined by Add or Sub,
// or comes from outside the function without a known constant.
func (a *FunctionAnalysis) Resolve(h ir.Value, at *ir.Instruction) (int64, bool) {
	return a.resolve(h, at, nil, map[*ir.Instruction]bool{})
}

// ResolveArgument returns the value held by handle argument k of call when the call is made. Passing the handle to
// that call does not count as escaping.
func (a *FunctionAnalysis) ResolveArgument(call *ir.Instruction, k int) (int64, bool) {
	args := call.Args()
	if k >= len(args) {
		return 0, false
	}
	return a.resolve(args[k], call, call, map[*ir.Instruction]bool{})
}

// resolve computes the value of h right before at. The terminator of a block stands for the end of the block, since
// terminators are never definition sites.
func (a *FunctionAnalysis) resolve(h ir.Value, at *ir.Instruction, except *ir.Instruction,
	visiting map[*ir.Instruction]bool) (int64, bool) {
	h = canon(h)
	reach := a.In(at)
	if !a.isTracked[h] {
		return 0, false
	}
	ids := a.ids(h)
	for id := range ids {
		if a.EscapesExcept(id, except) {
			return 0, false
		}
		if l, ok := id.(*ir.Instruction); ok && l.Op == ir.OpLoad && a.MustAlias(h, id) {
			if _, known := a.loadSource[l]; !known {
				return 0, false
			}
		}
	}
	var values []int64
	for _, k := range reach.AppendTo(nil) {
		kind := a.kind[k]
		if kind&siteClobber != 0 {
			call := a.instrs[k]
			// the call producing h runs before h exists
			if call != except && ir.Value(call) != h && a.clobbers(call, ids, at) {
				return 0, false
			}
		}
		t := a.target[k]
		if t == nil || !ids[t] {
			continue
		}
		switch {
		case kind == siteDef:
			def := a.instrs[k]
			var v ir.Value
			switch def.HandleOp() {
			case ir.HandleNew:
				v = def.Operand(0)
			case ir.HandleSet:
				v = def.Operand(1)
			default:
				return 0, false
			}
			c, ok := ir.IntValue(v)
			if !ok {
				return 0, false
			}
			values = append(values, c)
		case kind == siteJoin:
			if !a.MustAlias(h, t) {
				// selecting a handle does not change the cell of h
				continue
			}
			j := a.instrs[k]
			if visiting[j] {
				continue
			}
			visiting[j] = true
			for x, pred := range j.Incoming {
				c, ok := a.resolveAtEnd(j.Operand(x), pred, except, visiting)
				if !ok {
					delete(visiting, j)
					return 0, false
				}
				values = append(values, c)
			}
			delete(visiting, j)
		case kind&siteOrigin != 0:
			if !a.MustAlias(h, t) {
				continue
			}
			c, ok := a.originConstant(k)
			if !ok {
				return 0, false
			}
			values = append(values, c)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	for _, c := range values[1:] {
		if c != values[0] {
			return 0, false
		}
	}
	return values[0], true
}

// resolveAtEnd computes the value of h at the end of block b
func (a *FunctionAnalysis) resolveAtEnd(h ir.Value, b *ir.BasicBlock, except *ir.Instruction,
	visiting map[*ir.Instruction]bool) (int64, bool) {
	t := b.Terminator()
	if t == nil {
		return 0, false
	}
	return a.resolve(h, t, except, visiting)
}

// clobbers returns true if call may modify the cell of one of the handles, other than the one it returns. Cells
// allocated by the function are only reachable by the callee if their handle escapes. When at is not nil, the
// handles created after the last execution of call before at are not affected.
func (a *FunctionAnalysis) clobbers(call *ir.Instruction, ids map[ir.Value]bool, at *ir.Instruction) bool {
	for id := range ids {
		if id == ir.Value(call) || a.isLocalHandle(id) && !a.Escapes(id) {
			continue
		}
		if at != nil && a.runsBefore(call, id, at) {
			continue
		}
		if a.oracle.ModRef(call, loc(id)).IsMod() {
			return true
		}
	}
	return false
}

// runsBefore returns true if call cannot execute between the last creation of h and at. This only holds for the
// handles created by a New or returned by a call: their value at at does not depend on what happened to the cell
// before. A join may keep the cell of a previous iteration.
func (a *FunctionAnalysis) runsBefore(call *ir.Instruction, h ir.Value, at *ir.Instruction) bool {
	d, ok := h.(*ir.Instruction)
	if !ok || d.Op != ir.OpCall || d.Parent() != a.Fn || !a.dom.InstrDominates(d, at) {
		return false
	}
	return !a.between(d, at)[call]
}

func (a *FunctionAnalysis) between(first, second *ir.Instruction) map[*ir.Instruction]bool {
	key := [2]*ir.Instruction{first, second}
	if s, ok := a.betweenCache[key]; ok {
		return s
	}
	s := map[*ir.Instruction]bool{}
	for _, i := range a.instrsBetween(first, second) {
		s[i] = true
	}
	a.betweenCache[key] = s
	return s
}

// isLocalHandle returns true if every cell h may designate is created by a New of the function
func (a *FunctionAnalysis) isLocalHandle(h ir.Value) bool {
	visited := map[ir.Value]bool{}
	var local func(v ir.Value) bool
	local = func(v ir.Value) bool {
		v = canon(v)
		if visited[v] {
			return true
		}
		visited[v] = true
		switch x := v.(type) {
		case *ir.Const:
			return true
		case *ir.Instruction:
			switch {
			case x.HandleOp() == ir.HandleNew:
				return true
			case x.Op == ir.OpJoin:
				for _, in := range x.Operands() {
					if !local(in) {
						return false
					}
				}
				return true
			case x.Op == ir.OpLoad:
				src, ok := a.loadSource[x]
				return ok && local(src)
			}
		}
		return false
	}
	return local(h)
}

// originConstant returns the constant held by the handle received at position k: a parameter or the result of a
// call
func (a *FunctionAnalysis) originConstant(k int) (int64, bool) {
	if k >= len(a.instrs) {
		return a.facts.ArgumentConstant(a.Fn, k-len(a.instrs))
	}
	call := a.instrs[k]
	if call.Callee == nil || call.Callee.IsExternal() {
		return 0, false
	}
	return a.facts.ReturnConstant(call.Callee)
}

// ClobberedBetween returns true if the cell of h may change between instruction first, which dominates second, and
// second: an instruction executed after the last execution of first and before second redefines a handle that may
// alias h, or is a call that may modify it.
func (a *FunctionAnalysis) ClobberedBetween(h ir.Value, first, second *ir.Instruction) bool {
	h = canon(h)
	if !a.dom.InstrDominates(first, second) {
		return true
	}
	ids := a.ids(h)
	diff := &intsets.Sparse{}
	diff.Difference(a.In(second), a.Out(first))
	for _, k := range diff.AppendTo(nil) {
		if t := a.target[k]; t != nil && ids[t] {
			return true
		}
	}
	for _, i := range a.instrsBetween(first, second) {
		if t := i.RedefinedHandle(); t != nil && ids[canon(t)] {
			return true
		}
		if i.IsOpaqueCall() && a.clobbers(i, ids, nil) {
			return true
		}
	}
	return false
}

// instrsBetween returns the instructions that may execute after the last execution of first and before second.
func (a *FunctionAnalysis) instrsBetween(first, second *ir.Instruction) []*ir.Instruction {
	b1, b2 := first.Block(), second.Block()
	var instrs []*ir.Instruction
	if b1 == b2 {
		in := false
		for _, i := range b1.Instrs {
			if i == second {
				break
			}
			if in {
				instrs = append(instrs, i)
			}
			if i == first {
				in = true
			}
		}
		return instrs
	}
	forward := walkBlocks(b1.Succs(), b1, (*ir.BasicBlock).Succs)
	backward := walkBlocks(b2.Preds, b1, func(b *ir.BasicBlock) []*ir.BasicBlock { return b.Preds })
	after := false
	for _, i := range b1.Instrs {
		if after {
			instrs = append(instrs, i)
		}
		after = after || i == first
	}
	for _, b := range a.Fn.Blocks {
		if b != b2 && forward[b] && backward[b] {
			instrs = append(instrs, b.Instrs...)
		}
	}
	// b2 is entirely executed between first and second when it is in a cycle that avoids b1
	if backward[b2] {
		instrs = append(instrs, b2.Instrs...)
	} else {
		for _, i := range b2.Instrs {
			if i == second {
				break
			}
			instrs = append(instrs, i)
		}
	}
	return instrs
}

// walkBlocks returns the blocks reachable from start following next, without going through stop.
func walkBlocks(start []*ir.BasicBlock, stop *ir.BasicBlock,
	next func(*ir.BasicBlock) []*ir.BasicBlock) map[*ir.BasicBlock]bool {
	seen := map[*ir.BasicBlock]bool{}
	stack := append([]*ir.BasicBlock(nil), start...)
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b == stop || seen[b] {
			continue
		}
		seen[b] = true
		stack = append(stack, next(b)...)
	}
	return seen
}
