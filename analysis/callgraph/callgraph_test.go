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

package callgraph

import (
	"testing"

	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// callProgram builds:
//
//	main -> leaf, main -> mid, mid -> leaf
//	main -> even <-> odd
//	main -> self -> self
//	main -> indirect, which calls through a function value
//	main -> ext where ext has no body
func callProgram() *ir.Program {
	p := ir.NewProgram(ir.DefaultOpNames)
	ext := p.Declare("ext", ir.Void)
	body := func(name string, calls ...*ir.Function) *ir.Function {
		f := p.NewFunction(name, ir.Void)
		b := ir.NewBuilder(f)
		b.New(ir.NewInt(1))
		for _, c := range calls {
			b.Call(c)
		}
		b.Return(nil)
		return f
	}
	leaf := body("leaf")
	mid := body("mid", leaf)
	even := p.NewFunction("even", ir.Void)
	odd := body("odd", even)
	b := ir.NewBuilder(even)
	b.Call(odd)
	b.Return(nil)
	self := p.NewFunction("self", ir.Void)
	b = ir.NewBuilder(self)
	b.Call(self)
	b.Return(nil)
	indirect := p.NewFunction("indirect", ir.Void)
	b = ir.NewBuilder(indirect)
	b.CallIndirect(leaf, ir.Void)
	b.Return(nil)
	main := body("main", leaf, mid, even, self, indirect, ext)
	main.Exported = true
	return p
}

func TestBuild(t *testing.T) {
	p := callProgram()
	cg := Build(p)
	if cg.Node(p.Op(ir.HandleNew)) != nil {
		t.Errorf("handle operations should not be part of the call graph")
	}
	leaf := p.Func("leaf")
	if n := len(cg.Sites(leaf)); n != 2 {
		t.Errorf("leaf should have 2 direct call sites, got %d", n)
	}
	if !cg.Node(leaf).AddressTaken {
		t.Errorf("leaf is used as a function value")
	}
	if !cg.Node(p.Func("indirect")).Indirect {
		t.Errorf("indirect performs an indirect call")
	}
	if n := len(cg.Callees(p.Func("main"))); n != 6 {
		t.Errorf("main should have 6 callees, got %d:\n%s", n, cg)
	}
	if cg.IsReachable(p.Func("main")) != true || !cg.IsReachable(leaf) {
		t.Errorf("main and leaf are reachable")
	}
}

func TestMarkRecursionFree(t *testing.T) {
	p := callProgram()
	cg := Build(p)
	if !MarkRecursionFree(cg, 100) {
		t.Fatalf("flags should change")
	}
	tests := map[string]bool{
		"leaf":     true,
		"mid":      true,
		"even":     false,
		"odd":      false,
		"self":     false,
		"indirect": false,
		"main":     false, // no call site
		"ext":      false, // no body
	}
	for name, want := range tests {
		if got := p.Func(name).RecursionFree; got != want {
			t.Errorf("%s: RecursionFree = %v, expected %v", name, got, want)
		}
	}
	if MarkRecursionFree(cg, 100) {
		t.Errorf("second run should not change anything")
	}
	// with no edge allowed, mid has too many calls
	MarkRecursionFree(cg, 0)
	if p.Func("mid").RecursionFree || !p.Func("leaf").RecursionFree {
		t.Errorf("edge limit not respected")
	}
}

func TestBottomUp(t *testing.T) {
	p := callProgram()
	cg := Build(p)
	order := BottomUp(cg)
	pos := map[string]int{}
	for k, f := range order {
		pos[f.RawName()] = k
	}
	if _, ok := pos["ext"]; ok {
		t.Errorf("external functions should not be in the order")
	}
	if len(order) != 7 {
		t.Errorf("expected the 7 defined functions, got %d", len(order))
	}
	before := [][2]string{{"leaf", "mid"}, {"mid", "main"}, {"even", "main"}, {"odd", "main"},
		{"self", "main"}, {"leaf", "main"}}
	for _, pair := range before {
		if pos[pair[0]] >= pos[pair[1]] {
			t.Errorf("%s should come before %s in %v", pair[0], pair[1], pos)
		}
	}
	if d := pos["even"] - pos["odd"]; d != 1 && d != -1 {
		t.Errorf("even and odd are in the same component and should be contiguous: %v", pos)
	}
}
