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

package transform

import (
	"github.com/awslabs/cat-optimizer/analysis/alias"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

type deadState int

const (
	unknown deadState = iota
	inProgress
	dead
	alive
)

// DeadCode removes unused handles and the calls that have no observable effect. The results of the dead call
// predicate are memoized per DeadCode, which must not outlive a change to the callees.
type DeadCode struct {
	oracle alias.Oracle
	log    *config.LogGroup
	calls  map[*ir.Function]deadState
}

// NewDeadCode returns a dead code eliminator using oracle for the alias guard of handle chains
func NewDeadCode(oracle alias.Oracle, log *config.LogGroup) *DeadCode {
	return &DeadCode{oracle: oracle, log: log, calls: map[*ir.Function]deadState{}}
}

// Run removes dead code from fn until no more instruction can be removed. Returns true if fn changed.
func (d *DeadCode) Run(fn *ir.Function) bool {
	if fn.IsExternal() {
		return false
	}
	changed := false
	for d.round(fn) {
		changed = true
	}
	if changed {
		fn.Renumber()
	}
	return changed
}

func (d *DeadCode) round(fn *ir.Function) bool {
	removed := false
	for _, b := range fn.Blocks {
		// iterate over a copy, the block changes
		instrs := append([]*ir.Instruction(nil), b.Instrs...)
		for _, i := range instrs {
			if i.Block() == nil {
				continue
			}
			switch {
			case i.HandleOp() == ir.HandleNew:
				if !ir.HasUses(i) {
					d.log.Debugf("%s: deleted unused %s", fn.Name(), i)
					i.Erase()
					removed = true
				} else if d.removeChain(fn, i) {
					removed = true
				}
			case i.Op == ir.OpJoin:
				if removeJoin(i) {
					d.log.Debugf("%s: deleted unused join %s", fn.Name(), i.Name())
					removed = true
				}
			case i.IsOpaqueCall() && !ir.HasUses(i) && i.Callee != nil:
				if d.IsDeadCall(i) {
					d.log.Debugf("%s: deleted dead %s", fn.Name(), i)
					i.Erase()
					removed = true
				}
			}
		}
	}
	return removed
}

// removeChain removes a New together with the Set, Add and Sub redefining it, when the New is only used as the
// destination of those and no Get may read its cell.
func (d *DeadCode) removeChain(fn *ir.Function, n *ir.Instruction) bool {
	users := ir.Users(n)
	for _, u := range users {
		if !u.IsRedefinition() {
			return false
		}
		for k, op := range u.Operands() {
			if op == ir.Value(n) && k != 0 {
				return false
			}
		}
	}
	for _, i := range fn.Instructions() {
		if i.HandleOp() != ir.HandleGet {
			continue
		}
		if d.oracle.Alias(alias.Location{Ptr: i.Operand(0)}, alias.Location{Ptr: n}) != alias.NoAlias {
			return false
		}
	}
	seen := map[*ir.Instruction]bool{}
	for _, u := range users {
		if !seen[u] {
			seen[u] = true
			u.Erase()
		}
	}
	d.log.Debugf("%s: deleted %s and %d redefinitions", fn.Name(), n, len(seen))
	n.Erase()
	return true
}

// removeJoin erases j if it has no use other than itself
func removeJoin(j *ir.Instruction) bool {
	for _, u := range ir.Users(j) {
		if u != j {
			return false
		}
	}
	for k, op := range j.Operands() {
		if op == ir.Value(j) {
			j.SetOperand(k, zero(j.Type()))
		}
	}
	j.Erase()
	return true
}

func zero(t *ir.Type) ir.Value {
	switch t.Kind() {
	case ir.KindInt:
		return ir.NewInt(0)
	case ir.KindBool:
		return ir.NewBool(false)
	}
	return ir.Null(t)
}

// IsDeadCall returns true if call has no effect observable by its caller: its result is unused and its callee is
// defined, not exported, stores only into its own slots, only redefines the handles it creates and makes only dead
// calls.
func (d *DeadCode) IsDeadCall(call *ir.Instruction) bool {
	if call.Op != ir.OpCall || call.Callee == nil || ir.HasUses(call) {
		return false
	}
	return d.isDeadFunction(call.Callee)
}

func (d *DeadCode) isDeadFunction(f *ir.Function) bool {
	switch d.calls[f] {
	case dead:
		return true
	case alive, inProgress:
		// a function reaching itself is kept
		return false
	}
	if f.IsExternal() || f.Exported || f.HandleOp() != ir.NotHandleOp {
		d.calls[f] = alive
		return false
	}
	d.calls[f] = inProgress
	res := d.hasNoEffect(f)
	if res {
		d.calls[f] = dead
	} else {
		d.calls[f] = alive
	}
	return res
}

func (d *DeadCode) hasNoEffect(f *ir.Function) bool {
	for _, i := range f.Instructions() {
		switch i.Op {
		case ir.OpStore:
			if !isOwnSlot(i.Operand(0)) {
				return false
			}
		case ir.OpCall:
			switch i.HandleOp() {
			case ir.HandleNew, ir.HandleGet:
			case ir.HandleSet, ir.HandleAdd, ir.HandleSub:
				if !isOwnHandle(i.Operand(0)) {
					return false
				}
			default:
				if i.Callee == nil || !d.isDeadFunction(i.Callee) {
					return false
				}
			}
		}
	}
	return true
}

// isOwnSlot returns true if every slot v may point to is allocated by the function
func isOwnSlot(v ir.Value) bool {
	return isCreatedBy(v, func(i *ir.Instruction) bool { return i.Op == ir.OpAlloc })
}

// isOwnHandle returns true if every cell v may designate is created by a New of the function
func isOwnHandle(v ir.Value) bool {
	return isCreatedBy(v, func(i *ir.Instruction) bool { return i.HandleOp() == ir.HandleNew })
}

func isCreatedBy(v ir.Value, creates func(*ir.Instruction) bool) bool {
	visited := map[ir.Value]bool{}
	var visit func(v ir.Value) bool
	visit = func(v ir.Value) bool {
		if visited[v] {
			return true
		}
		visited[v] = true
		i, ok := v.(*ir.Instruction)
		if !ok {
			return false
		}
		switch {
		case creates(i):
			return true
		case i.Op == ir.OpCast:
			return visit(i.Operand(0))
		case i.Op == ir.OpJoin:
			for _, in := range i.Operands() {
				if !visit(in) {
					return false
				}
			}
			return true
		}
		return false
	}
	return visit(v)
}
