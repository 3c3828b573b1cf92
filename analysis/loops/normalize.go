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

package loops

import (
	"fmt"

	"github.com/awslabs/cat-optimizer/analysis/cfg"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// Shape is the result of the normalization of a loop.
type Shape struct {
	// Preheader is the unique predecessor of the header outside the loop. Its only successor is the header.
	Preheader *ir.BasicBlock
	// Latch is the unique predecessor of the header inside the loop
	Latch *ir.BasicBlock
	// Exit is the unique target of the edges leaving the loop. All its predecessors are in the loop.
	Exit *ir.BasicBlock
}

// Normalize puts the loop in the form expected by the unroller, adding blocks when necessary:
//   - a preheader,
//   - a single latch,
//   - a single exit block whose predecessors are all in the loop,
//   - every value defined in the loop and used outside goes through a join of the exit block.
//
// l is updated with the blocks added inside the loop. Loops whose edges leave to several distinct blocks, or that
// never exit, cannot be normalized: an error is returned before any change. An error is also returned when a value
// used after the loop does not dominate the exit, in which case the added blocks are kept.
func Normalize(fn *ir.Function, l *Loop) (Shape, error) {
	exits := l.Exits()
	if len(exits) == 0 {
		return Shape{}, fmt.Errorf("%s never exits", l)
	}
	for _, e := range exits[1:] {
		if e[1] != exits[0][1] {
			return Shape{}, fmt.Errorf("%s has several exit blocks", l)
		}
	}
	if len(l.OutsidePreds()) == 0 {
		return Shape{}, fmt.Errorf("%s has no entry", l)
	}
	var s Shape
	outside := l.OutsidePreds()
	if len(outside) == 1 && len(outside[0].Succs()) == 1 {
		s.Preheader = outside[0]
	} else {
		s.Preheader = splitEdges(fn, l.Header, outside, "loop.preheader")
	}
	latches := l.Latches()
	if len(latches) == 1 {
		s.Latch = latches[0]
	} else {
		s.Latch = splitEdges(fn, l.Header, latches, "loop.latch")
		l.Blocks[s.Latch] = true
	}
	exit := exits[0][1]
	dedicated := true
	for _, p := range exit.Preds {
		if !l.Blocks[p] {
			dedicated = false
		}
	}
	if dedicated {
		s.Exit = exit
	} else {
		var sources []*ir.BasicBlock
		for _, e := range exits {
			sources = append(sources, e[0])
		}
		s.Exit = splitEdges(fn, exit, sources, "loop.exit")
	}
	fn.Renumber()
	if err := closeValues(fn, l, s.Exit); err != nil {
		return s, err
	}
	return s, nil
}

// splitEdges redirects the edges from preds to target into a new block jumping to target. The joins of target
// receive their values for those edges from the new block, through new joins when there are several preds.
func splitEdges(fn *ir.Function, target *ir.BasicBlock, preds []*ir.BasicBlock, comment string) *ir.BasicBlock {
	nb := fn.NewBlock(comment)
	for _, p := range preds {
		p.Terminator().ReplaceTarget(target, nb)
	}
	for _, j := range target.Joins() {
		var v ir.Value
		if len(preds) == 1 {
			v = j.IncomingValue(preds[0])
		} else {
			merge := nb.InsertJoin(ir.NewJoin(j.Type()))
			for _, p := range preds {
				merge.AddIncoming(p, j.IncomingValue(p))
			}
			v = merge
		}
		for _, p := range preds {
			j.RemoveIncoming(p)
		}
		j.AddIncoming(nb, v)
	}
	nb.Append(ir.NewJump(target))
	return nb
}

// closeValues rewrites the uses outside l of the values defined in l into uses of joins in exit. A join use
// whose incoming block is in the loop is already closed.
func closeValues(fn *ir.Function, l *Loop, exit *ir.BasicBlock) error {
	dt := cfg.Dominators(fn)
	type openValue struct {
		def  *ir.Instruction
		uses []*ir.Instruction
	}
	var open []openValue
	for _, b := range l.OrderedBlocks() {
		for _, i := range b.Instrs {
			var uses []*ir.Instruction
			for _, u := range ir.Users(i) {
				if isOutsideUse(l, u, i) {
					uses = append(uses, u)
				}
			}
			if len(uses) == 0 {
				continue
			}
			for _, p := range exit.Preds {
				if !dt.Dominates(b, p) {
					return fmt.Errorf("%s is used after %s but does not dominate its exit", i, l)
				}
			}
			open = append(open, openValue{i, uses})
		}
	}
	for _, o := range open {
		closing := exit.InsertJoin(ir.NewJoin(o.def.Type()))
		for _, p := range exit.Preds {
			closing.AddIncoming(p, o.def)
		}
		for _, u := range o.uses {
			for k, op := range u.Operands() {
				if op != o.def {
					continue
				}
				if u.Op == ir.OpJoin && l.Blocks[u.Incoming[k]] {
					continue
				}
				u.SetOperand(k, closing)
			}
		}
	}
	return nil
}

func isOutsideUse(l *Loop, u *ir.Instruction, def *ir.Instruction) bool {
	if u.Op != ir.OpJoin {
		return !l.Blocks[u.Block()]
	}
	for k, op := range u.Operands() {
		if op == def && !l.Blocks[u.Incoming[k]] {
			return true
		}
	}
	return false
}
