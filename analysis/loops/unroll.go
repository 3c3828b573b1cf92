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

	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// ExitingBlock returns the unique block of the loop with an edge leaving the loop, and the target of that edge.
func ExitingBlock(l *Loop) (*ir.BasicBlock, *ir.BasicBlock, bool) {
	exits := l.Exits()
	if len(exits) != 1 {
		return nil, nil, false
	}
	return exits[0][0], exits[0][1], true
}

// TripCount computes the number of times the exiting block of a normalized loop executes its back path before
// leaving the loop, by simulating the header joins from their initial constants. The exiting block must be the
// header or the latch, and its branch condition must be computed from the header joins and constants through
// arithmetic only. The simulation gives up after limit iterations.
//
// A trip count of n means the exiting block leaves the loop the (n+1)-th time it executes.
func TripCount(l *Loop, s Shape, limit int) (int, bool) {
	exiting, exit, ok := ExitingBlock(l)
	if !ok || (exiting != l.Header && exiting != s.Latch) {
		return 0, false
	}
	br := exiting.Terminator()
	if br == nil || br.Cond() == nil {
		return 0, false
	}
	exitOnTrue := br.Targets[0] == exit
	env := map[ir.Value]*ir.Const{}
	for _, j := range l.Header.Joins() {
		c, isConst := j.IncomingValue(s.Preheader).(*ir.Const)
		if !isConst {
			// a join that does not matter for the exit condition may be unknown
			continue
		}
		env[j] = c
	}
	for n := 0; n < limit; n++ {
		memo := map[ir.Value]*ir.Const{}
		cond, ok := evalInLoop(l, br.Cond(), env, memo, 0)
		if !ok || !cond.Type().Equal(ir.Bool) {
			return 0, false
		}
		if cond.Bool == exitOnTrue {
			return n, true
		}
		next := map[ir.Value]*ir.Const{}
		for _, j := range l.Header.Joins() {
			if c, ok := evalInLoop(l, j.IncomingValue(s.Latch), env, memo, 0); ok {
				next[j] = c
			}
		}
		env = next
	}
	return 0, false
}

const maxEvalDepth = 64

// evalInLoop evaluates v during one iteration of l, the header joins holding the values of env.
func evalInLoop(l *Loop, v ir.Value, env, memo map[ir.Value]*ir.Const, depth int) (*ir.Const, bool) {
	if c, ok := v.(*ir.Const); ok {
		return c, true
	}
	if c, ok := env[v]; ok {
		return c, true
	}
	if c, ok := memo[v]; ok {
		return c, true
	}
	i, ok := v.(*ir.Instruction)
	if !ok || depth > maxEvalDepth || !l.Blocks[i.Block()] {
		return nil, false
	}
	var res *ir.Const
	switch i.Op {
	case ir.OpBinOp:
		x, ok1 := evalInLoop(l, i.Operand(0), env, memo, depth+1)
		y, ok2 := evalInLoop(l, i.Operand(1), env, memo, depth+1)
		if !ok1 || !ok2 {
			return nil, false
		}
		res, ok = ir.EvalBinOp(i.BinOp, x, y)
	case ir.OpCast:
		x, ok1 := evalInLoop(l, i.Operand(0), env, memo, depth+1)
		if !ok1 {
			return nil, false
		}
		res, ok = ir.EvalCast(x, i.Type())
	default:
		return nil, false
	}
	if ok {
		memo[v] = res
	}
	return res, ok
}

// Peel copies one iteration of a normalized loop in front of it. The preheader enters the copy, whose back edge
// enters the original loop; the exiting edges of the copy go to the exit block. The loop itself is unchanged, but
// it is no longer normalized: its preheader is the latch of the copy and its exit block has predecessors outside of
// the loop.
func Peel(fn *ir.Function, l *Loop, s Shape) {
	blocks := l.OrderedBlocks()
	vmap := map[ir.Value]ir.Value{}
	bmap := ir.CloneBlocks(fn, blocks, vmap)
	header := l.Header
	hc, lc := bmap[header], bmap[s.Latch]
	mapped := func(v ir.Value) ir.Value {
		if m, ok := vmap[v]; ok {
			return m
		}
		return v
	}

	// the copy's back edge enters the loop
	lc.Terminator().ReplaceTarget(hc, header)
	for _, j := range hc.Joins() {
		j.RemoveIncoming(lc)
	}
	// the loop is now entered from the copy's latch only
	s.Preheader.Terminator().ReplaceTarget(header, hc)
	for _, j := range header.Joins() {
		v := j.IncomingValue(s.Latch)
		j.RemoveIncoming(s.Preheader)
		j.AddIncoming(lc, mapped(v))
	}
	// the exit receives the values of the copy
	for _, b := range blocks {
		if !b.HasSucc(s.Exit) {
			continue
		}
		for _, j := range s.Exit.Joins() {
			j.AddIncoming(bmap[b], mapped(j.IncomingValue(b)))
		}
	}
	hc.Comment = fmt.Sprintf("peel.%s", header.Name())
	fn.Renumber()
}

// Unroll fully unrolls a loop executed trip+1 times, trip being the result of TripCount: trip iterations are peeled,
// and the exiting branch of the loop becomes a jump to the exit, the remaining back path being unreachable. The
// loop is normalized again between peels. It returns an error if the loop cannot be normalized; the peels already
// done are kept and are semantically neutral.
func Unroll(fn *ir.Function, l *Loop, s Shape, trip int) error {
	var err error
	for k := 0; k < trip; k++ {
		Peel(fn, l, s)
		if s, err = Normalize(fn, l); err != nil {
			return err
		}
	}
	exiting, _, ok := ExitingBlock(l)
	if !ok {
		return fmt.Errorf("%s has several exiting blocks", l)
	}
	exiting.Terminator().MakeJump(s.Exit)
	return nil
}

// PeelN peels n iterations of the loop, normalizing it again between peels.
func PeelN(fn *ir.Function, l *Loop, s Shape, n int) error {
	var err error
	for k := 0; k < n; k++ {
		Peel(fn, l, s)
		if k == n-1 {
			break
		}
		if s, err = Normalize(fn, l); err != nil {
			return err
		}
	}
	return nil
}
