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

package cfg

import (
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// FoldConstantBranches turns every conditional branch on a boolean constant into a jump to the taken target. The
// join entries of the other target are removed.
func FoldConstantBranches(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		t := b.Terminator()
		if t == nil || t.Op != ir.OpBranch {
			continue
		}
		c, ok := t.Cond().(*ir.Const)
		if !ok || !c.Type().Equal(ir.Bool) {
			continue
		}
		target := t.Targets[1]
		if c.Bool {
			target = t.Targets[0]
		}
		t.MakeJump(target)
		changed = true
	}
	return changed
}

// RemoveUnreachable deletes the blocks that cannot be reached from the entry, pruning the join entries of their
// successors. Afterwards, no block other than the entry has zero predecessors.
func RemoveUnreachable(fn *ir.Function) bool {
	reachable := Reachable(fn)
	dead := map[*ir.BasicBlock]bool{}
	for _, b := range fn.Blocks {
		if !reachable[b] {
			dead[b] = true
		}
	}
	if len(dead) == 0 {
		return false
	}
	fn.RemoveBlocks(dead)
	return true
}

// Simplify folds constant branches and removes unreachable blocks until neither applies.
func Simplify(fn *ir.Function) bool {
	changed := false
	for {
		folded := FoldConstantBranches(fn)
		removed := RemoveUnreachable(fn)
		if !folded && !removed {
			return changed
		}
		changed = true
	}
}
