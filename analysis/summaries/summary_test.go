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

package summaries

import (
	"testing"

	"github.com/awslabs/cat-optimizer/analysis/alias"
	"github.com/awslabs/cat-optimizer/analysis/callgraph"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

func build(p *ir.Program, rounds int) *Table {
	return Build(callgraph.Build(p), alias.NewBasicOracle(), rounds, config.NewDiscardLogGroup())
}

func newMain(p *ir.Program) (*ir.Function, *ir.Builder) {
	main := p.NewFunction("main", ir.Int)
	main.Exported = true
	return main, ir.NewBuilder(main)
}

func TestReturnSummary(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	mk := p.NewFunction("mk", ir.Handle)
	b := ir.NewBuilder(mk)
	b.Return(b.New(ir.NewInt(1)))

	main, b := newMain(p)
	r1 := b.Call(mk)
	r2 := b.Call(mk)
	b.Return(b.BinOp(ir.BinAdd, b.Get(r1), b.Get(r2)))

	tab := build(p, 2)
	if c, ok := tab.ReturnConstant(mk); !ok || c != 1 {
		t.Errorf("ReturnConstant(mk) = %d, %v; expected 1", c, ok)
	}
	if _, ok := tab.ReturnConstant(main); ok {
		t.Errorf("main returns a sum, not a known constant")
	}
	if s := tab.Summary(mk); s == nil || len(s.Args) != 0 || len(s.ImmArgs) != 0 {
		t.Errorf("unexpected summary %v", s)
	}
}

func TestReturnsMustAgree(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	f := p.NewFunction("f", ir.Int)
	flag := f.AddParam("flag", ir.Bool)
	b := ir.NewBuilder(f)
	l, r := b.NewBlock("l"), b.NewBlock("r")
	b.If(flag, l, r)
	b.SetBlock(l)
	b.Return(ir.NewInt(1))
	b.SetBlock(r)
	b.Return(ir.NewInt(2))

	_, b = newMain(p)
	b.Return(b.Call(f, ir.NewBool(true)))

	tab := build(p, 2)
	if _, ok := tab.ReturnConstant(f); ok {
		t.Errorf("f returns 1 or 2")
	}
}

func TestArgumentSummary(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	g := p.NewFunction("g", ir.Int)
	h := g.AddParam("h", ir.Handle)
	n := g.AddParam("n", ir.Int)
	b := ir.NewBuilder(g)
	b.Return(b.BinOp(ir.BinAdd, b.Get(h), n))

	main, b := newMain(p)
	x := b.New(ir.NewInt(5))
	b.Return(b.Call(g, x, ir.NewInt(3)))

	tab := build(p, 2)
	s := tab.Summary(g)
	if s == nil {
		t.Fatalf("no summary for g")
	}
	if c, ok := s.Args[0]; !ok || c != 5 {
		t.Errorf("Args[0] = %d, %v; expected 5", c, ok)
	}
	if c, ok := s.ImmArgs[1]; !ok || c != 3 {
		t.Errorf("ImmArgs[1] = %d, %v; expected 3", c, ok)
	}
	if c, ok := tab.ArgumentConstant(g, 0); !ok || c != 5 {
		t.Errorf("ArgumentConstant(g, 0) = %d, %v; expected 5", c, ok)
	}
	if _, ok := tab.ImmediateArgument(g, 0); ok {
		t.Errorf("parameter 0 is a handle")
	}
	if tab.Summary(main) != nil && !tab.Summary(main).IsEmpty() {
		t.Errorf("unexpected summary for main: %v", tab.Summary(main))
	}
}

func TestHandleArgumentThroughSummary(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	g := p.NewFunction("g", ir.Int)
	h := g.AddParam("h", ir.Handle)
	b := ir.NewBuilder(g)
	b.Return(b.Get(h))

	main, b := newMain(p)
	b.Return(b.Call(g, b.New(ir.NewInt(5))))

	tab := build(p, 2)
	if c, ok := tab.ReturnConstant(g); !ok || c != 5 {
		t.Errorf("ReturnConstant(g) = %d, %v; expected 5", c, ok)
	}
	if c, ok := tab.ReturnConstant(main); !ok || c != 5 {
		t.Errorf("ReturnConstant(main) = %d, %v; expected 5", c, ok)
	}
}

func TestNoArgumentSummary(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *ir.Program, g *ir.Function, b *ir.Builder)
	}{
		{"two call sites", func(p *ir.Program, g *ir.Function, b *ir.Builder) {
			b.Call(g, b.New(ir.NewInt(1)), ir.NewInt(1))
			b.Call(g, b.New(ir.NewInt(1)), ir.NewInt(1))
		}},
		{"exported", func(p *ir.Program, g *ir.Function, b *ir.Builder) {
			g.Exported = true
			b.Call(g, b.New(ir.NewInt(1)), ir.NewInt(1))
		}},
		{"address taken", func(p *ir.Program, g *ir.Function, b *ir.Builder) {
			b.CallIndirect(g, ir.Int, b.New(ir.NewInt(1)), ir.NewInt(1))
			b.Call(g, b.New(ir.NewInt(1)), ir.NewInt(1))
		}},
		{"unknown values", func(p *ir.Program, g *ir.Function, b *ir.Builder) {
			ext := p.Declare("ext", ir.Handle)
			num := p.Declare("num", ir.Int)
			b.Call(g, b.Call(ext), b.Call(num))
		}},
		{"escaped handle", func(p *ir.Program, g *ir.Function, b *ir.Builder) {
			sink := p.Declare("sink", ir.Void, ir.Handle)
			num := p.Declare("num", ir.Int)
			x := b.New(ir.NewInt(1))
			b.Call(sink, x)
			b.Call(g, x, b.Call(num))
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := ir.NewProgram(ir.DefaultOpNames)
			g := p.NewFunction("g", ir.Int)
			h := g.AddParam("h", ir.Handle)
			n := g.AddParam("n", ir.Int)
			gb := ir.NewBuilder(g)
			gb.Return(gb.BinOp(ir.BinAdd, gb.Get(h), n))

			_, b := newMain(p)
			test.setup(p, g, b)
			b.Return(ir.NewInt(0))

			tab := build(p, 2)
			if _, ok := tab.ArgumentConstant(g, 0); ok {
				t.Errorf("unexpected handle argument constant: %v", tab.Summary(g))
			}
			if _, ok := tab.ArgumentConstant(g, 1); ok {
				t.Errorf("unexpected immediate argument constant: %v", tab.Summary(g))
			}
		})
	}
}

// TestRounds checks that facts flow one call level per round when they move down the call graph:
// main calls g2(3), g2(n) calls g3(n), and g3(m) returns m.
func TestRounds(t *testing.T) {
	mk := func() (*ir.Program, *ir.Function, *ir.Function, *ir.Function) {
		p := ir.NewProgram(ir.DefaultOpNames)
		g3 := p.NewFunction("g3", ir.Int)
		m := g3.AddParam("m", ir.Int)
		b := ir.NewBuilder(g3)
		b.Return(m)

		g2 := p.NewFunction("g2", ir.Int)
		n := g2.AddParam("n", ir.Int)
		b = ir.NewBuilder(g2)
		b.Return(b.Call(g3, n))

		main, b := newMain(p)
		b.Return(b.Call(g2, ir.NewInt(3)))
		return p, main, g2, g3
	}

	p, _, g2, g3 := mk()
	tab := build(p, 2)
	if c, ok := tab.ImmediateArgument(g3, 0); !ok || c != 3 {
		t.Errorf("after 2 rounds, ImmediateArgument(g3, 0) = %d, %v; expected 3", c, ok)
	}
	if _, ok := tab.ReturnConstant(g2); ok {
		t.Errorf("after 2 rounds, the return of g2 should not be known yet")
	}

	p, main, g2, g3 := mk()
	tab = build(p, 5)
	for _, f := range []*ir.Function{g3, g2, main} {
		if c, ok := tab.ReturnConstant(f); !ok || c != 3 {
			t.Errorf("ReturnConstant(%s) = %d, %v; expected 3", f.Name(), c, ok)
		}
	}
	if s := tab.String(); s == "" {
		t.Errorf("empty table")
	}
}
