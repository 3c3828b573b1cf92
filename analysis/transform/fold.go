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
	"github.com/awslabs/cat-optimizer/analysis/cfg"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// Fold evaluates the arithmetic and casts of constants, replaces the joins of a single value by that value, folds
// constant branches and removes unreachable blocks, until none applies. Returns true if fn changed.
func Fold(fn *ir.Function, log *config.LogGroup) bool {
	if fn.IsExternal() {
		return false
	}
	changed := false
	for {
		folded := false
		for _, i := range fn.Instructions() {
			if v := foldInstr(i); v != nil {
				log.Tracef("%s: %s folded to %s", fn.Name(), i, v.Name())
				i.ReplaceWithValue(v)
				folded = true
			}
		}
		if cfg.Simplify(fn) {
			folded = true
		}
		if !folded {
			break
		}
		changed = true
	}
	if changed {
		fn.Renumber()
	}
	return changed
}

// foldInstr returns the value i always produces, or nil
func foldInstr(i *ir.Instruction) ir.Value {
	switch i.Op {
	case ir.OpBinOp:
		x, ok1 := i.Operand(0).(*ir.Const)
		y, ok2 := i.Operand(1).(*ir.Const)
		if !ok1 || !ok2 {
			return nil
		}
		if c, ok := ir.EvalBinOp(i.BinOp, x, y); ok {
			return c
		}
	case ir.OpCast:
		x, ok := i.Operand(0).(*ir.Const)
		if !ok {
			return nil
		}
		if c, ok := ir.EvalCast(x, i.Type()); ok {
			return c
		}
	case ir.OpJoin:
		return uniqueIncoming(i)
	}
	return nil
}

// uniqueIncoming returns the value received by join j from every predecessor, ignoring j itself
func uniqueIncoming(j *ir.Instruction) ir.Value {
	var v ir.Value
	for _, in := range j.Operands() {
		if in == ir.Value(j) {
			continue
		}
		switch {
		case v == nil:
			v = in
		case v == in || ir.SameConst(v, in):
		default:
			return nil
		}
	}
	return v
}
