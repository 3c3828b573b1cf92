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

// Package inline implements the inlining of recursion-free callees and the cloning of callees reached from several
// call sites.
package inline

import (
	"fmt"

	"github.com/awslabs/cat-optimizer/analysis/callgraph"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// An IllegalInlineError is returned when a call cannot be inlined. The call is left unchanged.
type IllegalInlineError struct {
	Call   *ir.Instruction
	Reason string
}

func (e *IllegalInlineError) Error() string {
	if f := e.Call.Parent(); f != nil {
		return fmt.Sprintf("cannot inline %s in %s: %s", e.Call, f.Name(), e.Reason)
	}
	return fmt.Sprintf("cannot inline %s: %s", e.Call, e.Reason)
}

// Call inlines the direct call call. maxSize bounds the number of instructions of the callee when positive.
//
// The block of the call is split after the call, the callee's blocks are copied into the caller with the
// parameters replaced by the arguments, and the returns jump to the continuation. When the callee has several
// returns and the call result is used, the returned values are merged by a join in the continuation.
func Call(call *ir.Instruction, maxSize int) error {
	callee := call.Callee
	caller := call.Parent()
	switch {
	case call.Op != ir.OpCall || callee == nil:
		return &IllegalInlineError{call, "not a direct call"}
	case caller == nil:
		return &IllegalInlineError{call, "call is not in a function"}
	case callee.IsExternal() || callee.HandleOp() != ir.NotHandleOp:
		return &IllegalInlineError{call, "callee has no body"}
	case callee == caller:
		return &IllegalInlineError{call, "call is recursive"}
	case len(callee.Entry().Preds) > 0:
		return &IllegalInlineError{call, "callee entry block has predecessors"}
	case len(callee.Returns()) == 0 && ir.HasUses(call):
		return &IllegalInlineError{call, "callee never returns but its result is used"}
	case maxSize > 0 && callee.InstrCount() > maxSize:
		return &IllegalInlineError{call, fmt.Sprintf("callee has more than %d instructions", maxSize)}
	}

	block := call.Block()
	cont := caller.SplitAfter(call)
	cont.Comment = "inline.cont"

	vmap := make(map[ir.Value]ir.Value, len(callee.Params))
	for k, p := range callee.Params {
		vmap[p] = call.Args()[k]
	}
	bmap := ir.CloneBlocks(caller, callee.Blocks, vmap)
	for _, nb := range bmap {
		nb.Comment = "inline." + callee.RawName()
	}

	var result ir.Value
	var join *ir.Instruction
	if ir.HasUses(call) && len(callee.Returns()) > 1 {
		join = cont.InsertJoin(ir.NewJoin(call.Type()))
		result = join
	}
	for _, ret := range callee.Returns() {
		r := vmap[ret].(*ir.Instruction)
		rb := r.Block()
		var v ir.Value
		if r.NumOperands() > 0 {
			v = r.Operand(0)
		}
		r.Erase()
		rb.Append(ir.NewJump(cont))
		switch {
		case join != nil:
			join.AddIncoming(rb, v)
		case result == nil:
			result = v
		}
	}
	if result != nil {
		call.ReplaceAllUsesWith(result)
	}
	call.Erase()
	block.Append(ir.NewJump(bmap[callee.Entry()]))
	caller.Renumber()
	return nil
}

// InlineAll inlines every call to a recursion-free callee, until no such call remains. The caller is re-scanned
// after each success since the inlined code may contain new calls. Calls that cannot be inlined are skipped.
// Returns true if some call was inlined.
func InlineAll(cg *callgraph.Graph, c *config.Config, log *config.LogGroup) bool {
	changed := false
	failed := map[*ir.Instruction]bool{}
	for _, f := range cg.Prog.Defined() {
		if !c.MatchFunctionFilter(f.RawName()) {
			continue
		}
		for {
			call := nextCandidate(f, failed)
			if call == nil {
				break
			}
			callee := call.Callee
			if err := Call(call, c.MaxInlineSize); err != nil {
				log.Debugf("%v", err)
				failed[call] = true
				continue
			}
			log.Debugf("inlined %s into %s", callee.Name(), f.Name())
			changed = true
		}
	}
	return changed
}

func nextCandidate(f *ir.Function, failed map[*ir.Instruction]bool) *ir.Instruction {
	for _, call := range f.Calls() {
		if callee := call.Callee; callee != nil && callee != f && callee.RecursionFree && !callee.IsExternal() &&
			!failed[call] {
			return call
		}
	}
	return nil
}

// CloneAll gives each call site of a recursion-free callee a private copy of the callee, so that every callee has a
// unique call site. The first call site keeps the original. Returns true if some copy was made.
func CloneAll(cg *callgraph.Graph, c *config.Config, log *config.LogGroup) bool {
	changed := false
	// Defined returns a snapshot: the copies made here are not revisited
	for _, f := range cg.Prog.Defined() {
		if !f.RecursionFree || f.IsExternal() {
			continue
		}
		sites := cg.Sites(f)
		if len(sites) < 2 {
			continue
		}
		for _, site := range sites[1:] {
			if caller := site.Parent(); caller == nil || !c.MatchFunctionFilter(caller.RawName()) {
				continue
			}
			clone := cg.Prog.CloneFunction(f)
			site.Callee = clone
			log.Debugf("cloned %s into %s for the call in %s", f.Name(), clone.Name(), site.Parent().Name())
			changed = true
		}
	}
	return changed
}
