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
	"github.com/awslabs/cat-optimizer/analysis/alias"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// escapeQuery is the state of one escape query. The visited sets make the search terminate on cyclic chains of
// stores and joins.
type escapeQuery struct {
	a *FunctionAnalysis
	// except is a call through which escaping is allowed
	except *ir.Instruction
	values map[ir.Value]bool
	stores map[*ir.Instruction]bool
}

func (a *FunctionAnalysis) newEscapeQuery(except *ir.Instruction) *escapeQuery {
	return &escapeQuery{a: a, except: except, values: map[ir.Value]bool{}, stores: map[*ir.Instruction]bool{}}
}

// Escapes returns true if the cell of handle v may be read or written by code the analysis does not see: v is
// passed to a call that is not a handle operation, stored where such code may read it, or loaded from a global.
func (a *FunctionAnalysis) Escapes(v ir.Value) bool {
	return a.newEscapeQuery(nil).value(canon(v))
}

// EscapesExcept is Escapes, except that passing v to the call except does not count.
func (a *FunctionAnalysis) EscapesExcept(v ir.Value, except *ir.Instruction) bool {
	return a.newEscapeQuery(except).value(canon(v))
}

func (q *escapeQuery) value(v ir.Value) bool {
	if q.values[v] {
		return false
	}
	q.values[v] = true
	if i, ok := v.(*ir.Instruction); ok && i.Op == ir.OpLoad && baseObject(i.Operand(0)) == objGlobal {
		return true
	}
	for _, u := range ir.Users(v) {
		switch u.Op {
		case ir.OpCall:
			if q.call(u, v) {
				return true
			}
		case ir.OpStore:
			if u.Operand(1) == v && q.store(u) {
				return true
			}
		case ir.OpJoin, ir.OpCast:
			if q.value(u) {
				return true
			}
		}
	}
	return false
}

// call returns true if passing v to call makes it escape
func (q *escapeQuery) call(call *ir.Instruction, v ir.Value) bool {
	if call.IsHandleOp() || call == q.except {
		return false
	}
	if call.CalleeValue() == v {
		return true
	}
	for k, arg := range call.Args() {
		if arg != v {
			continue
		}
		if f := call.Callee; f != nil && k < len(f.Params) {
			// the parameter has been replaced by the constant it always receives
			if _, ok := q.a.facts.ArgumentConstant(f, k); ok && !ir.HasUses(f.Params[k]) {
				continue
			}
		}
		if q.a.oracle.ModRef(call, loc(v)) != alias.NoModRef {
			return true
		}
	}
	return false
}

// store returns true if the value written by st may be read by code the analysis does not see
func (q *escapeQuery) store(st *ir.Instruction) bool {
	if q.stores[st] {
		return false
	}
	q.stores[st] = true
	if q.a.escapedStores[st] {
		return true
	}
	ptr := st.Operand(0)
	if baseObject(ptr) != objLocal {
		return true
	}
	if q.pointer(ptr) {
		return true
	}
	for _, l := range q.a.instrs {
		if l.Op == ir.OpLoad && q.a.oracle.Alias(loc(l.Operand(0)), loc(ptr)) != alias.NoAlias && q.value(l) {
			return true
		}
	}
	return false
}

// pointer returns true if the slot ptr is itself stored by an escaping store
func (q *escapeQuery) pointer(ptr ir.Value) bool {
	if q.values[ptr] {
		return false
	}
	q.values[ptr] = true
	for _, u := range ir.Users(ptr) {
		switch u.Op {
		case ir.OpStore:
			if u.Operand(1) == ptr && q.store(u) {
				return true
			}
		case ir.OpJoin, ir.OpCast:
			if q.pointer(u) {
				return true
			}
		}
	}
	return false
}
