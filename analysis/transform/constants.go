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

// Package transform contains the intraprocedural rewrites of the optimizer: propagation of the values held by
// handles, folding of Add and Sub, copy propagation between Gets, dead code elimination and generic constant
// folding.
//
// Every rewrite is decided on a FunctionAnalysis computed before any change, and is withdrawn when a fact it needs
// cannot be established. The rewrites decided together never change the value held by a handle at any point, so
// they can be applied in one batch.
package transform

import (
	"github.com/awslabs/cat-optimizer/analysis/alias"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/dataflow"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// NullSentinel is the value a Get of the null handle is replaced with
const NullSentinel int64 = 0

// PropagateArguments replaces the uses of the integer parameters of fn that always receive the same constant by
// that constant. Returns true if some use was replaced.
func PropagateArguments(fn *ir.Function, facts dataflow.Facts, log *config.LogGroup) bool {
	changed := false
	for k, p := range fn.Params {
		if p.Type().Kind() != ir.KindInt || !ir.HasUses(p) {
			continue
		}
		c, ok := facts.ArgumentConstant(fn, k)
		if !ok {
			continue
		}
		log.Debugf("%s: parameter %s is always %d", fn.Name(), p.Name(), c)
		ir.ReplaceAllUses(p, ir.NewInt(c))
		changed = true
	}
	return changed
}

// rewrites are the changes decided on one analysis of a function
type rewrites struct {
	// constants replace the result of Gets and calls
	constants map[*ir.Instruction]int64
	// copies replace a Get with an earlier one
	copies map[*ir.Instruction]*ir.Instruction
	// folds replace an Add or Sub with a Set of the constant
	folds map[*ir.Instruction]int64
	// redundant are the Sets writing the value the handle already holds
	redundant map[*ir.Instruction]bool
	// order is the order in which the instructions were decided
	order []*ir.Instruction
}

func (r *rewrites) touched(i *ir.Instruction) bool {
	_, c := r.constants[i]
	_, p := r.copies[i]
	_, f := r.folds[i]
	return c || p || f || r.redundant[i]
}

// Constants propagates the values held by handles into Gets, folds Add and Sub of known values into Sets, removes
// the Sets that do not change their handle, replaces Gets with earlier Gets of the same handle when the handle
// cannot change in between, and replaces the results of calls to functions returning a known integer. Returns true
// if fn changed.
func Constants(fn *ir.Function, oracle alias.Oracle, facts dataflow.Facts, log *config.LogGroup) bool {
	if fn.IsExternal() {
		return false
	}
	a := dataflow.New(fn, oracle, facts)
	r := &rewrites{
		constants: map[*ir.Instruction]int64{},
		copies:    map[*ir.Instruction]*ir.Instruction{},
		folds:     map[*ir.Instruction]int64{},
		redundant: map[*ir.Instruction]bool{},
	}
	var gets []*ir.Instruction
	for _, b := range fn.Blocks {
		for _, i := range b.Instrs {
			switch i.HandleOp() {
			case ir.HandleGet:
				gets = append(gets, i)
				decideGet(a, r, i)
			case ir.HandleAdd, ir.HandleSub:
				decideFold(a, r, i)
			case ir.HandleSet:
				decideSet(a, r, i)
			case ir.NotHandleOp:
				if i.IsOpaqueCall() {
					decideCall(facts, r, i)
				}
			}
		}
	}
	for _, g := range gets {
		if r.touched(g) {
			continue
		}
		decideCopy(a, r, g, gets)
	}
	return r.apply(fn, log)
}

func (r *rewrites) decide(i *ir.Instruction) {
	r.order = append(r.order, i)
}

func decideGet(a *dataflow.FunctionAnalysis, r *rewrites, get *ir.Instruction) {
	h := get.Operand(0)
	if ir.IsNullHandle(h) {
		r.constants[get] = NullSentinel
		r.decide(get)
		return
	}
	if c, ok := a.Resolve(h, get); ok {
		r.constants[get] = c
		r.decide(get)
	}
}

func decideFold(a *dataflow.FunctionAnalysis, r *rewrites, i *ir.Instruction) {
	if ir.IsNullHandle(i.Operand(0)) {
		return
	}
	x, ok := a.Resolve(i.Operand(1), i)
	if !ok {
		return
	}
	y, ok := a.Resolve(i.Operand(2), i)
	if !ok {
		return
	}
	if i.HandleOp() == ir.HandleAdd {
		r.folds[i] = x + y
	} else {
		r.folds[i] = x - y
	}
	r.decide(i)
}

func decideSet(a *dataflow.FunctionAnalysis, r *rewrites, set *ir.Instruction) {
	v, ok := ir.IntValue(set.Operand(1))
	if !ok {
		return
	}
	if c, ok := a.Resolve(set.Operand(0), set); ok && c == v {
		r.redundant[set] = true
		r.decide(set)
	}
}

func decideCall(facts dataflow.Facts, r *rewrites, call *ir.Instruction) {
	callee := call.Callee
	if callee == nil || callee.IsExternal() || call.Type().Kind() != ir.KindInt || !ir.HasUses(call) {
		return
	}
	if c, ok := facts.ReturnConstant(callee); ok {
		r.constants[call] = c
		r.decide(call)
	}
}

// decideCopy replaces get with the first Get of a handle that must alias its handle, that dominates it and after
// which the handle cannot change. The earlier Get must itself be kept.
func decideCopy(a *dataflow.FunctionAnalysis, r *rewrites, get *ir.Instruction, gets []*ir.Instruction) {
	h := get.Operand(0)
	if ir.IsNullHandle(h) {
		return
	}
	dom := a.Dominators()
	for _, prev := range gets {
		if prev == get || r.touched(prev) || !a.MustAlias(prev.Operand(0), h) {
			continue
		}
		if !dom.InstrDominates(prev, get) || a.ClobberedBetween(h, prev, get) {
			continue
		}
		r.copies[get] = prev
		r.decide(get)
		return
	}
}

func (r *rewrites) apply(fn *ir.Function, log *config.LogGroup) bool {
	if len(r.order) == 0 {
		return false
	}
	setOp := fn.Program().Op(ir.HandleSet)
	// copies first: a kept Get is never replaced in the same batch
	for _, i := range r.order {
		if prev, ok := r.copies[i]; ok {
			log.Debugf("%s: %s reuses %s", fn.Name(), i, prev.Name())
			i.ReplaceWithValue(prev)
		}
	}
	for _, i := range r.order {
		if c, ok := r.constants[i]; ok {
			log.Debugf("%s: %s is %d", fn.Name(), i, c)
			if i.HandleOp() == ir.HandleGet {
				i.ReplaceWithValue(ir.NewInt(c))
			} else {
				// the call may have effects
				i.ReplaceAllUsesWith(ir.NewInt(c))
			}
		}
		if c, ok := r.folds[i]; ok {
			log.Debugf("%s: %s folded to Set %d", fn.Name(), i, c)
			i.Block().InsertBefore(i, ir.NewCall(setOp, i.Operand(0), ir.NewInt(c)))
			i.Erase()
		}
		if r.redundant[i] {
			log.Debugf("%s: deleted redundant %s", fn.Name(), i)
			i.Erase()
		}
	}
	fn.Renumber()
	return true
}
