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
	"math"
	"testing"

	"github.com/awslabs/cat-optimizer/analysis/alias"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/dataflow"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

var discard = config.NewDiscardLogGroup()

type facts struct {
	returns map[*ir.Function]int64
	args    map[*ir.Function]map[int]int64
}

func (f facts) ReturnConstant(fn *ir.Function) (int64, bool) {
	c, ok := f.returns[fn]
	return c, ok
}

func (f facts) ArgumentConstant(fn *ir.Function, pos int) (int64, bool) {
	c, ok := f.args[fn][pos]
	return c, ok
}

func constants(fn *ir.Function) bool {
	return Constants(fn, alias.NewBasicOracle(), dataflow.NoFacts, discard)
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

// returned returns the constant returned by the single return of fn
func returned(t *testing.T, fn *ir.Function) (int64, bool) {
	t.Helper()
	rets := fn.Returns()
	if len(rets) != 1 {
		t.Fatalf("%s has %d returns", fn.Name(), len(rets))
	}
	return ir.IntValue(rets[0].Operand(0))
}

func verify(t *testing.T, fn *ir.Function) {
	t.Helper()
	if err := fn.Verify(); err != nil {
		t.Fatalf("invalid function after transformation: %v\n%s", err, fn)
	}
}

func diamond(left, right int64) *ir.Function {
	p := ir.NewProgram(ir.DefaultOpNames)
	f := p.NewFunction("f", ir.Int)
	flag := f.AddParam("flag", ir.Bool)
	b := ir.NewBuilder(f)
	l, r, merge := b.NewBlock("left"), b.NewBlock("right"), b.NewBlock("merge")
	b.If(flag, l, r)
	b.SetBlock(l)
	x1 := b.New(ir.NewInt(left))
	b.Jump(merge)
	b.SetBlock(r)
	x2 := b.New(ir.NewInt(right))
	b.Jump(merge)
	b.SetBlock(merge)
	j := b.Join(ir.Handle)
	j.AddIncoming(l, x1)
	j.AddIncoming(r, x2)
	b.Return(b.Get(j))
	return f
}

func TestPropagation(t *testing.T) {
	tests := []struct {
		left, right int64
		folds       bool
	}{
		{1, 1, true},
		{1, 2, false},
		{-4, -4, true},
	}
	for _, test := range tests {
		f := diamond(test.left, test.right)
		changed := constants(f)
		verify(t, f)
		if changed != test.folds {
			t.Errorf("New(%d)/New(%d): changed = %v", test.left, test.right, changed)
		}
		c, ok := returned(t, f)
		if ok != test.folds || ok && c != test.left {
			t.Errorf("New(%d)/New(%d): returns %d, %v\n%s", test.left, test.right, c, ok, f)
		}
	}
}

func TestNullGet(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	f := p.NewFunction("f", ir.Int)
	b := ir.NewBuilder(f)
	b.Return(b.Get(ir.Null(ir.Handle)))
	constants(f)
	if c, ok := returned(t, f); !ok || c != NullSentinel {
		t.Errorf("Get(null) should be replaced with %d\n%s", NullSentinel, f)
	}
}

func TestFoldArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       ir.HandleOp
		x, y     int64
		expected int64
	}{
		{"add", ir.HandleAdd, 3, 4, 7},
		{"sub", ir.HandleSub, 3, 4, -1},
		{"add overflow", ir.HandleAdd, math.MaxInt64, 1, math.MinInt64},
		{"sub overflow", ir.HandleSub, math.MinInt64, 1, math.MaxInt64},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := ir.NewProgram(ir.DefaultOpNames)
			f := p.NewFunction("f", ir.Int)
			b := ir.NewBuilder(f)
			x := b.New(ir.NewInt(test.x))
			y := b.New(ir.NewInt(test.y))
			d := b.New(ir.NewInt(0))
			if test.op == ir.HandleAdd {
				b.Add(d, x, y)
			} else {
				b.Sub(d, x, y)
			}
			b.Return(b.Get(d))

			if !constants(f) {
				t.Fatalf("nothing folded")
			}
			if countOp(f, test.op) != 0 || countOp(f, ir.HandleSet) != 1 {
				t.Errorf("%s should become a Set\n%s", test.op, f)
			}
			constants(f)
			verify(t, f)
			if c, ok := returned(t, f); !ok || c != test.expected {
				t.Errorf("returns %d, %v; expected %d\n%s", c, ok, test.expected, f)
			}
		})
	}
}

// TestFoldSelfAdd checks that Add(x, x, x) reads the value of x at the Add
func TestFoldSelfAdd(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	f := p.NewFunction("f", ir.Int)
	b := ir.NewBuilder(f)
	x := b.New(ir.NewInt(1))
	b.Set(x, ir.NewInt(5))
	b.Add(x, x, x)
	b.Return(b.Get(x))
	for constants(f) {
	}
	verify(t, f)
	if c, ok := returned(t, f); !ok || c != 10 {
		t.Errorf("returns %d, %v; expected 10\n%s", c, ok, f)
	}
}

func TestAddOfUnknownDoesNotFold(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	f := p.NewFunction("f", ir.Int)
	h := f.AddParam("h", ir.Handle)
	b := ir.NewBuilder(f)
	x := b.New(ir.NewInt(1))
	b.Add(x, x, h)
	b.Return(b.Get(x))
	if constants(f) {
		t.Errorf("Add of an unknown handle should not be folded\n%s", f)
	}
}

func TestCopyPropagation(t *testing.T) {
	for _, clobber := range []bool{false, true} {
		p := ir.NewProgram(ir.DefaultOpNames)
		ext := p.Declare("ext", ir.Void)
		f := p.NewFunction("f", ir.Int)
		h := f.AddParam("h", ir.Handle)
		b := ir.NewBuilder(f)
		g1 := b.Get(h)
		if clobber {
			b.Call(ext)
		}
		g2 := b.Get(h)
		b.Return(b.BinOp(ir.BinAdd, g1, g2))

		changed := constants(f)
		verify(t, f)
		if changed == clobber {
			t.Errorf("clobber=%v: changed = %v\n%s", clobber, changed, f)
		}
		if !clobber && (g2.Block() != nil || countOp(f, ir.HandleGet) != 1) {
			t.Errorf("the second Get should reuse the first\n%s", f)
		}
	}
}

func TestRedundantSet(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	f := p.NewFunction("f", ir.Int)
	b := ir.NewBuilder(f)
	x := b.New(ir.NewInt(5))
	b.Set(x, ir.NewInt(5))
	b.Set(x, ir.NewInt(6))
	b.Return(b.Get(x))
	constants(f)
	verify(t, f)
	if n := countOp(f, ir.HandleSet); n != 1 {
		t.Errorf("expected one Set left, got %d\n%s", n, f)
	}
	if c, ok := returned(t, f); !ok || c != 6 {
		t.Errorf("returns %d, %v; expected 6", c, ok)
	}
}

func TestSummaryPropagation(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	g := p.NewFunction("g", ir.Int)
	n := g.AddParam("n", ir.Int)
	b := ir.NewBuilder(g)
	b.Return(n)

	f := p.NewFunction("f", ir.Int)
	b = ir.NewBuilder(f)
	call := b.Call(g, ir.NewInt(4))
	b.Return(call)

	fs := facts{
		returns: map[*ir.Function]int64{g: 4},
		args:    map[*ir.Function]map[int]int64{g: {0: 4}},
	}
	if !PropagateArguments(g, fs, discard) {
		t.Errorf("argument not propagated")
	}
	if c, ok := returned(t, g); !ok || c != 4 {
		t.Errorf("g returns %d, %v; expected 4", c, ok)
	}
	if ir.HasUses(n) {
		t.Errorf("parameter still used")
	}
	if !Constants(f, alias.NewBasicOracle(), fs, discard) {
		t.Errorf("call result not propagated")
	}
	if c, ok := returned(t, f); !ok || c != 4 {
		t.Errorf("f returns %d, %v; expected 4", c, ok)
	}
	if call.Block() == nil {
		t.Errorf("the call must stay")
	}
	if Constants(f, alias.NewBasicOracle(), fs, discard) {
		t.Errorf("second run changed f")
	}
}

func TestFold(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	f := p.NewFunction("f", ir.Int)
	b := ir.NewBuilder(f)
	then, els, merge := b.NewBlock("then"), b.NewBlock("else"), b.NewBlock("merge")
	sum := b.BinOp(ir.BinAdd, ir.NewInt(2), ir.NewInt(3))
	cond := b.BinOp(ir.BinLt, sum, ir.NewInt(10))
	b.If(cond, then, els)
	b.SetBlock(then)
	b.Jump(merge)
	b.SetBlock(els)
	b.Jump(merge)
	b.SetBlock(merge)
	j := b.Join(ir.Int)
	j.AddIncoming(then, sum)
	j.AddIncoming(els, ir.NewInt(0))
	b.Return(j)

	if !Fold(f, discard) {
		t.Fatalf("nothing folded")
	}
	verify(t, f)
	if c, ok := returned(t, f); !ok || c != 5 {
		t.Errorf("returns %d, %v; expected 5\n%s", c, ok, f)
	}
	if len(f.Blocks) != 3 {
		t.Errorf("the else block should be removed\n%s", f)
	}
}
