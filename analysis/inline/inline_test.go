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

package inline

import (
	"errors"
	"strings"
	"testing"

	"github.com/awslabs/cat-optimizer/analysis/callgraph"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// twoReturns builds pick(c) = if c then New(1) else New(2), called twice from main
func twoReturns() (*ir.Program, *ir.Function, *ir.Function) {
	p := ir.NewProgram(ir.DefaultOpNames)
	pick := p.NewFunction("pick", ir.Handle)
	c := pick.AddParam("c", ir.Bool)
	b := ir.NewBuilder(pick)
	then, els := b.NewBlock("then"), b.NewBlock("else")
	b.If(c, then, els)
	b.SetBlock(then)
	b.Return(b.New(ir.NewInt(1)))
	b.SetBlock(els)
	b.Return(b.New(ir.NewInt(2)))

	main := p.NewFunction("main", ir.Int)
	main.Exported = true
	b = ir.NewBuilder(main)
	h1 := b.Call(pick, ir.NewBool(true))
	h2 := b.Call(pick, ir.NewBool(false))
	x := b.Get(h1)
	y := b.Get(h2)
	b.Return(b.BinOp(ir.BinAdd, x, y))
	return p, pick, main
}

func TestCallMergesReturns(t *testing.T) {
	p, pick, main := twoReturns()
	call := main.Calls()[0]
	if err := Call(call, 0); err != nil {
		t.Fatalf("inlining failed: %v", err)
	}
	if err := p.Verify(); err != nil {
		t.Fatalf("program does not verify after inlining: %v\n%s", err, main)
	}
	if call.Block() != nil {
		t.Errorf("the call should be erased")
	}
	var joins int
	for _, b := range main.Blocks {
		for _, j := range b.Joins() {
			joins++
			if len(j.Incoming) != 2 || !j.Type().IsHandle() {
				t.Errorf("the join should merge both returned handles: %s", j)
			}
		}
	}
	if joins != 1 {
		t.Errorf("expected one join, got %d in\n%s", joins, main)
	}
	if n := len(main.Calls()); n != 5 {
		t.Errorf("expected the second call, two News and two Gets, got %d calls", n)
	}
	if len(pick.Blocks) != 3 {
		t.Errorf("callee should be left unchanged")
	}
}

func TestCallIllegal(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	loop := p.NewFunction("loop", ir.Int)
	b := ir.NewBuilder(loop)
	b.Jump(b.Block())
	main := p.NewFunction("main", ir.Int)
	b = ir.NewBuilder(main)
	r := b.Call(loop)
	ext := p.Declare("ext", ir.Void)
	b.Call(ext)
	b.Return(r)

	var illegal *IllegalInlineError
	err := Call(r, 0)
	if !errors.As(err, &illegal) || !strings.Contains(err.Error(), "predecessors") {
		t.Errorf("expected an illegal inline error on the entry predecessors, got %v", err)
	}
	if err := Call(main.Calls()[1], 0); err == nil {
		t.Errorf("external callee cannot be inlined")
	}
	if err := main.Verify(); err != nil || len(main.Blocks) != 1 {
		t.Errorf("failed inlining should not change the caller: %v", err)
	}

	_, _, main2 := twoReturns()
	if err := Call(main2.Calls()[0], 2); err == nil {
		t.Errorf("callee is above the size limit")
	}
}

func TestInlineAllAndCloneAll(t *testing.T) {
	p, pick, main := twoReturns()
	cfg := config.NewDefault()
	log := config.NewDiscardLogGroup()

	cg := callgraph.Build(p)
	callgraph.MarkRecursionFree(cg, cfg.MaxCallEdges)
	if !pick.RecursionFree {
		t.Fatalf("pick should be recursion-free")
	}

	// limit the size so that inlining fails and the callee gets cloned instead
	cfg.MaxInlineSize = 1
	if InlineAll(cg, cfg, log) {
		t.Errorf("no call should be inlined under the size limit")
	}
	if !CloneAll(cg, cfg, log) {
		t.Fatalf("the second call site should get a copy")
	}
	calls := main.Calls()
	if calls[0].Callee != pick || calls[1].Callee == pick {
		t.Errorf("expected the first site to keep the original and the second to call a copy")
	}
	clone := calls[1].Callee
	if !strings.HasPrefix(clone.RawName(), "pick.clone") || clone.Exported || !clone.RecursionFree {
		t.Errorf("unexpected clone %s", clone.Name())
	}
	cg = callgraph.Build(p)
	if len(cg.Sites(pick)) != 1 || len(cg.Sites(clone)) != 1 {
		t.Errorf("every callee should have a unique call site:\n%s", cg)
	}

	cfg.MaxInlineSize = 0
	callgraph.MarkRecursionFree(cg, cfg.MaxCallEdges)
	if !InlineAll(cg, cfg, log) {
		t.Fatalf("calls should be inlined without the size limit")
	}
	for _, c := range main.Calls() {
		if !c.IsHandleOp() {
			t.Errorf("call %s should have been inlined", c)
		}
	}
	if err := p.Verify(); err != nil {
		t.Errorf("program does not verify: %v", err)
	}
}
