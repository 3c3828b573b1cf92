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

package optimizer

import (
	"testing"

	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/interp"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

func newPass(skipInlining bool) *Pass {
	c := config.NewDefault()
	c.SkipInlining = skipInlining
	return NewPass(c, config.NewDiscardLogGroup())
}

func run(t *testing.T, p *ir.Program) *interp.Result {
	t.Helper()
	res, err := interp.Run(p)
	if err != nil {
		t.Fatalf("execution failed: %v\n%s", err, p)
	}
	return res
}

// optimize runs the pipeline on p until it stabilizes and checks that the output of the program is unchanged and
// that it does not perform more handle operations. It returns the result of the optimized program.
func optimize(t *testing.T, pass *Pass, p *ir.Program) *interp.Result {
	t.Helper()
	before := run(t, p)
	pass.Run(p)
	if err := p.Verify(); err != nil {
		t.Fatalf("invalid program after optimization: %v\n%s", err, p)
	}
	after := run(t, p)
	if after.Output != before.Output {
		t.Errorf("output changed from %q to %q\n%s", before.Output, after.Output, p)
	}
	if after.Invocations > before.Invocations {
		t.Errorf("handle operations went from %d to %d", before.Invocations, after.Invocations)
	}
	if pass.RunOnModule(p) {
		t.Errorf("the pipeline changed a stable program\n%s", p)
	}
	return after
}

func countOp(fn *ir.Function, op ir.HandleOp) int {
	n := 0
	for _, i := range fn.Instructions() {
		if i.HandleOp() == op {
			n++
		}
	}
	return n
}

func newMain(p *ir.Program) (*ir.Function, *ir.Builder) {
	main := p.NewFunction("main", ir.Int)
	main.Exported = true
	return main, ir.NewBuilder(main)
}

// twoCallSites builds a program calling twice a function returning New(1), and printing the value of each result.
func twoCallSites() (*ir.Program, *ir.Function) {
	p := ir.NewProgram(ir.DefaultOpNames)
	printFn := p.Declare("println", ir.Void, ir.Int)
	mk := p.NewFunction("mk", ir.Handle)
	b := ir.NewBuilder(mk)
	b.Return(b.New(ir.NewInt(1)))

	main, b := newMain(p)
	b.Call(printFn, b.Get(b.Call(mk)))
	b.Call(printFn, b.Get(b.Call(mk)))
	b.Return(ir.NewInt(0))
	return p, main
}

func TestTwoCallSites(t *testing.T) {
	for _, skipInlining := range []bool{false, true} {
		p, main := twoCallSites()
		res := optimize(t, newPass(skipInlining), p)
		if res.Output != "1\n1\n" {
			t.Errorf("unexpected output %q", res.Output)
		}
		if n := countOp(main, ir.HandleGet); n != 0 {
			t.Errorf("skip-inlining=%v: both Gets should fold, %d left\n%s", skipInlining, n, main)
		}
		if res.Invocations != 0 {
			t.Errorf("skip-inlining=%v: %d handle operations left\n%s", skipInlining, res.Invocations, p)
		}
	}
}

func TestConditionalRedefinition(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	printFn := p.Declare("println", ir.Void, ir.Int)
	main := p.NewFunction("main", ir.Int)
	main.Exported = true
	flag := main.AddParam("flag", ir.Bool)
	b := ir.NewBuilder(main)
	b.New(ir.NewInt(7))
	l, r, merge := b.NewBlock("l"), b.NewBlock("r"), b.NewBlock("merge")
	b.If(flag, l, r)
	b.SetBlock(l)
	x1 := b.New(ir.NewInt(1))
	b.Jump(merge)
	b.SetBlock(r)
	x2 := b.New(ir.NewInt(2))
	b.Jump(merge)
	b.SetBlock(merge)
	j := b.Join(ir.Handle)
	j.AddIncoming(l, x1)
	j.AddIncoming(r, x2)
	b.Call(printFn, b.Get(j))
	b.Return(ir.NewInt(0))

	res := optimize(t, newPass(false), p)
	if res.Output != "2\n" {
		t.Errorf("unexpected output %q", res.Output)
	}
	if countOp(main, ir.HandleGet) != 1 {
		t.Errorf("the Get of 1 or 2 must stay\n%s", main)
	}
	if countOp(main, ir.HandleNew) != 2 {
		t.Errorf("only the unused New(7) should be removed\n%s", main)
	}
}

func TestAddThroughAliases(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	printFn := p.Declare("println", ir.Void, ir.Int)
	main, b := newMain(p)
	x := b.New(ir.NewInt(3))
	s1 := b.Alloc(ir.Handle)
	s2 := b.Alloc(ir.Handle)
	b.Store(s1, x)
	b.Store(s2, x)
	a := b.Load(s1)
	c := b.Load(s2)
	b.Set(a, ir.NewInt(5))
	b.Add(x, a, c)
	b.Call(printFn, b.Get(x))
	b.Return(ir.NewInt(0))

	res := optimize(t, newPass(false), p)
	if res.Output != "10\n" {
		t.Errorf("the Add must read the value set through the alias, got %q", res.Output)
	}
	if countOp(main, ir.HandleGet) != 0 {
		t.Errorf("the Get should fold to 10\n%s", main)
	}
}

func TestUnrolledLoopFolds(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	printFn := p.Declare("println", ir.Void, ir.Int)
	main, b := newMain(p)
	entry := b.Block()
	x := b.New(ir.NewInt(0))
	one := b.New(ir.NewInt(1))
	header, body, exit := b.NewBlock("header"), b.NewBlock("body"), b.NewBlock("exit")
	b.Jump(header)
	b.SetBlock(header)
	i := b.Join(ir.Int)
	b.If(b.BinOp(ir.BinLt, i, ir.NewInt(5)), body, exit)
	b.SetBlock(body)
	b.Add(x, x, one)
	next := b.BinOp(ir.BinAdd, i, ir.NewInt(1))
	b.Jump(header)
	i.AddIncoming(entry, ir.NewInt(0))
	i.AddIncoming(body, next)
	b.SetBlock(exit)
	b.Call(printFn, b.Get(x))
	b.Return(ir.NewInt(0))

	res := optimize(t, newPass(false), p)
	if res.Output != "5\n" {
		t.Errorf("unexpected output %q", res.Output)
	}
	if res.Invocations != 0 {
		t.Errorf("the unrolled loop should fold completely, %d handle operations left\n%s", res.Invocations, main)
	}
}

func TestEscapedHandleKept(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	printFn := p.Declare("println", ir.Void, ir.Int)
	g := p.NewGlobal("g", ir.Handle)
	bump := p.NewFunction("bump", ir.Void)
	b := ir.NewBuilder(bump)
	b.Add(b.Load(g), b.Load(g), b.Load(g))
	b.Return(nil)
	bump.Exported = true

	main, b := newMain(p)
	x := b.New(ir.NewInt(2))
	b.Store(g, x)
	b.Call(bump)
	b.Call(printFn, b.Get(x))
	b.Return(ir.NewInt(0))

	res := optimize(t, newPass(true), p)
	if res.Output != "4\n" {
		t.Errorf("unexpected output %q", res.Output)
	}
	if countOp(main, ir.HandleGet) != 1 {
		t.Errorf("the Get of an escaped handle must stay\n%s", main)
	}
}

func TestRunOnFunction(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	f := p.NewFunction("f", ir.Int)
	b := ir.NewBuilder(f)
	x := b.New(ir.NewInt(20))
	y := b.New(ir.NewInt(22))
	b.Add(x, x, y)
	b.Return(b.Get(x))

	pass := newPass(false)
	if !pass.RunOnFunction(f) {
		t.Fatalf("nothing changed")
	}
	if err := f.Verify(); err != nil {
		t.Fatalf("invalid function: %v", err)
	}
	rets := f.Returns()
	if c, ok := ir.IntValue(rets[0].Operand(0)); !ok || c != 42 {
		t.Errorf("f should return 42\n%s", f)
	}
	if len(f.Instructions()) != 1 {
		t.Errorf("only the return should be left\n%s", f)
	}
	if pass.RunOnFunction(f) {
		t.Errorf("second run changed f")
	}
}
