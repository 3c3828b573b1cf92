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

package interp

import (
	"errors"
	"strings"
	"testing"

	"github.com/awslabs/cat-optimizer/analysis/ir"
)

func newMain(p *ir.Program) *ir.Builder {
	return ir.NewBuilder(p.NewFunction("main", ir.Void))
}

func TestHandleRuntime(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	printFn := p.Declare("println", ir.Void)
	b := newMain(p)
	x := b.New(ir.NewInt(3))
	y := b.New(ir.NewInt(4))
	d := b.New(ir.NewInt(0))
	b.Add(d, x, y)
	b.Call(printFn, b.Get(d))
	b.Sub(d, x, y)
	b.Call(printFn, b.Get(d))
	b.Set(x, ir.NewInt(10))
	b.Add(x, x, x)
	b.Call(printFn, b.Get(x), ir.NewBool(true))
	b.Return(nil)

	res, err := Run(p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != "7\n-1\n20 true\n" {
		t.Errorf("unexpected output %q", res.Output)
	}
	if res.Invocations != 10 {
		t.Errorf("%d invocations, expected 10", res.Invocations)
	}
}

func TestAborts(t *testing.T) {
	null := ir.Null(ir.Handle)
	tests := []struct {
		name  string
		body  func(b *ir.Builder)
		abort bool
	}{
		{"get null", func(b *ir.Builder) { b.Get(null) }, true},
		{"set null", func(b *ir.Builder) { b.Set(null, ir.NewInt(1)) }, true},
		{"add from null", func(b *ir.Builder) {
			b.Add(b.New(ir.NewInt(1)), null, b.New(ir.NewInt(2)))
		}, false},
		{"add into null", func(b *ir.Builder) {
			x := b.New(ir.NewInt(1))
			b.Add(null, x, x)
		}, true},
		{"division by zero", func(b *ir.Builder) {
			b.BinOp(ir.BinDiv, b.Get(b.New(ir.NewInt(1))), ir.NewInt(0))
		}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := ir.NewProgram(ir.DefaultOpNames)
			b := newMain(p)
			test.body(b)
			b.Return(nil)
			_, err := Run(p)
			if aborted := errors.Is(err, ErrAbort); aborted != test.abort {
				t.Errorf("aborted = %v (%v), expected %v", aborted, err, test.abort)
			}
		})
	}
}

func TestCorruptedCell(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	corrupt := p.Declare("corrupt", ir.Void, ir.Handle)
	b := newMain(p)
	x := b.New(ir.NewInt(1))
	b.Call(corrupt, x)
	b.Get(x)
	b.Return(nil)

	m := New(p, &strings.Builder{})
	m.SetExternal("corrupt", func(m *Machine, args []Value) (Value, error) {
		args[0].(*Cell).Corrupt()
		return nil, nil
	})
	_, err := m.Call(p.Entry())
	if !errors.Is(err, ErrAbort) || !strings.Contains(err.Error(), "corrupted") {
		t.Errorf("expected a corruption abort, got %v", err)
	}
}

// TestJoins checks that the joins of a block are assigned at once
func TestJoins(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	printFn := p.Declare("println", ir.Void)
	b := newMain(p)
	entry := b.Block()
	header, body, exit := b.NewBlock("header"), b.NewBlock("body"), b.NewBlock("exit")
	b.Jump(header)
	b.SetBlock(header)
	x := b.Join(ir.Int)
	y := b.Join(ir.Int)
	b.If(b.BinOp(ir.BinLt, x, y), body, exit)
	b.SetBlock(body)
	b.Jump(header)
	x.AddIncoming(entry, ir.NewInt(1))
	x.AddIncoming(body, y)
	y.AddIncoming(entry, ir.NewInt(2))
	y.AddIncoming(body, x)
	b.SetBlock(exit)
	b.Call(printFn, x, y)
	b.Return(nil)

	res, err := Run(p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != "2 1\n" {
		t.Errorf("unexpected output %q", res.Output)
	}
}

func TestStepLimit(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	b := newMain(p)
	loop := b.NewBlock("loop")
	b.Jump(loop)
	b.SetBlock(loop)
	b.Jump(loop)

	m := New(p, &strings.Builder{})
	m.StepLimit = 1000
	if _, err := m.Call(p.Entry()); !errors.Is(err, ErrStepLimit) {
		t.Errorf("expected the step limit to stop the execution, got %v", err)
	}
}

func TestGlobalsAndInit(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	printFn := p.Declare("println", ir.Void)
	invocations := p.Declare("CAT_invocations", ir.Int)
	g := p.NewGlobal("g", ir.Handle)
	b := ir.NewBuilder(p.NewFunction("init", ir.Void))
	b.Store(g, b.New(ir.NewInt(5)))
	b.Return(nil)

	b = newMain(p)
	slot := b.Alloc(ir.Int)
	b.Store(slot, b.Get(b.Load(g)))
	b.Call(printFn, b.Load(slot), b.Call(invocations))
	b.Return(nil)

	res, err := Run(p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != "5 2\n" {
		t.Errorf("unexpected output %q", res.Output)
	}
}

func TestMissingExternal(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	ext := p.Declare("ext", ir.Void)
	b := newMain(p)
	b.Call(ext)
	b.Return(nil)
	if _, err := Run(p); err == nil || !strings.Contains(err.Error(), "ext") {
		t.Errorf("expected an error naming the missing external, got %v", err)
	}
}
