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

package ir

import (
	"strings"
	"testing"
)

// diamond builds:
//
//	entry: x = New(1); br c then else
//	then:  Set(x, 2); jump done
//	else:  jump done
//	done:  j = join; v = Get(x); ret v
func diamond(t *testing.T) (*Program, *Function) {
	p := NewProgram(DefaultOpNames)
	f := p.NewFunction("f", Int)
	c := f.AddParam("c", Bool)
	b := NewBuilder(f)
	x := b.New(NewInt(1))
	then := b.NewBlock("then")
	els := b.NewBlock("else")
	done := b.NewBlock("done")
	b.If(c, then, els)
	b.SetBlock(then)
	b.Set(x, NewInt(2))
	b.Jump(done)
	b.SetBlock(els)
	b.Jump(done)
	b.SetBlock(done)
	j := b.Join(Int)
	j.AddIncoming(then, NewInt(2))
	j.AddIncoming(els, NewInt(1))
	v := b.Get(x)
	sum := b.BinOp(BinAdd, v, j)
	b.Return(sum)
	if err := f.Verify(); err != nil {
		t.Fatalf("diamond does not verify: %v", err)
	}
	return p, f
}

func TestUseLists(t *testing.T) {
	_, f := diamond(t)
	x := f.Blocks[0].Instrs[0]
	if x.HandleOp() != HandleNew {
		t.Fatalf("expected New, got %s", x)
	}
	if n := len(Users(x)); n != 2 {
		t.Errorf("expected 2 users of %s, got %d", x, n)
	}
	get := f.Blocks[3].Instrs[1]
	if get.HandleOp() != HandleGet {
		t.Fatalf("expected Get, got %s", get)
	}
	get.ReplaceWithValue(NewInt(7))
	if n := len(Users(x)); n != 1 {
		t.Errorf("expected 1 user of %s after replacement, got %d", x, n)
	}
	if err := f.Verify(); err != nil {
		t.Errorf("function does not verify after replacement: %v", err)
	}
	if !strings.Contains(f.String(), "add 7") {
		t.Errorf("replacement not visible in\n%s", f)
	}
}

func TestErasePanicsOnUsedValue(t *testing.T) {
	_, f := diamond(t)
	defer func() {
		if recover() == nil {
			t.Errorf("erasing a used instruction should panic")
		}
	}()
	f.Blocks[0].Instrs[0].Erase()
}

func TestSplitAfter(t *testing.T) {
	_, f := diamond(t)
	entry := f.Blocks[0]
	x := entry.Instrs[0]
	tail := f.SplitAfter(x)
	entry.Append(NewJump(tail))
	if err := f.Verify(); err != nil {
		t.Fatalf("function does not verify after split: %v", err)
	}
	if len(tail.Succs()) != 2 {
		t.Errorf("expected the tail to hold the conditional branch")
	}
	for _, s := range tail.Succs() {
		if !s.HasPred(tail) || s.HasPred(entry) {
			t.Errorf("successor %s has wrong predecessors %v", s, s.Preds)
		}
	}
}

func TestCloneFunction(t *testing.T) {
	p, f := diamond(t)
	g := p.CloneFunction(f)
	if err := g.Verify(); err != nil {
		t.Fatalf("clone does not verify: %v", err)
	}
	if g.InstrCount() != f.InstrCount() {
		t.Errorf("clone has %d instructions, original %d", g.InstrCount(), f.InstrCount())
	}
	for _, i := range g.Instructions() {
		for _, v := range i.Operands() {
			if x, ok := v.(*Instruction); ok && x.Parent() != g {
				t.Errorf("clone instruction %s refers to %s of the original", i, x)
			}
			if a, ok := v.(*Arg); ok && a.Parent() != g {
				t.Errorf("clone instruction %s refers to a parameter of the original", i)
			}
		}
	}
	if p.Func(g.RawName()) != g {
		t.Errorf("clone %s is not registered", g.Name())
	}
}

func TestMakeJumpPrunesJoins(t *testing.T) {
	_, f := diamond(t)
	br := f.Blocks[0].Terminator()
	then := br.Targets[0]
	br.MakeJump(then)
	done := f.Blocks[3]
	j := done.Joins()[0]
	if len(j.Incoming) != 2 {
		t.Fatalf("join should still have two entries, got %d", len(j.Incoming))
	}
	els := f.Blocks[2]
	if len(els.Preds) != 0 {
		t.Errorf("else block should be unreachable, preds %v", els.Preds)
	}
	f.RemoveBlocks(map[*BasicBlock]bool{els: true})
	if len(j.Incoming) != 1 || j.Incoming[0] != then {
		t.Errorf("join should only keep the then entry: %s", j)
	}
	if err := f.Verify(); err != nil {
		t.Errorf("function does not verify: %v", err)
	}
}

func TestDefinitionSites(t *testing.T) {
	_, f := diamond(t)
	var defs []string
	for _, i := range f.Instructions() {
		if i.IsDefinitionSite() {
			defs = append(defs, i.HandleOp().String())
		}
	}
	// the join merges integers, not handles
	if strings.Join(defs, ",") != "New,Set" {
		t.Errorf("unexpected definition sites %v", defs)
	}
	set := f.Blocks[1].Instrs[0]
	if set.RedefinedHandle() != f.Blocks[0].Instrs[0] {
		t.Errorf("Set should redefine the New handle")
	}
}
