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

package alias

import (
	"testing"

	"github.com/awslabs/cat-optimizer/analysis/ir"
)

func TestBasicOracleAlias(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	observe := p.Declare("observe", ir.Void, ir.Handle)
	f := p.NewFunction("f", ir.Void)
	a := f.AddParam("a", ir.Handle)
	bArg := f.AddParam("b", ir.Handle)
	b := ir.NewBuilder(f)
	x := b.New(ir.NewInt(1))
	y := b.New(ir.NewInt(2))
	z := b.New(ir.NewInt(3))
	b.Call(observe, z)
	slot := b.Alloc(ir.Handle)
	b.Store(slot, x)
	l := b.Load(slot)
	castSlot := b.Cast(slot, ir.PointerTo(ir.Handle))
	b.Return(nil)

	o := NewBasicOracle()
	loc := func(v ir.Value) Location { return Location{Ptr: v} }
	tests := []struct {
		name string
		a, b ir.Value
		want AliasResult
	}{
		{"same value", x, x, MustAlias},
		{"distinct news", x, y, NoAlias},
		{"two parameters", a, bArg, MayAlias},
		{"fresh handle and parameter", y, a, NoAlias},
		{"captured handle and parameter", z, a, MayAlias},
		{"stored handle and its load", x, l, MayAlias},
		{"slot through a cast", slot, castSlot, MustAlias},
		{"null handle", ir.Null(ir.Handle), ir.Null(ir.Handle), NoAlias},
	}
	for _, test := range tests {
		if got := o.Alias(loc(test.a), loc(test.b)); got != test.want {
			t.Errorf("%s: Alias(%s, %s) = %s, want %s", test.name, test.a.Name(), test.b.Name(), got, test.want)
		}
		if got := o.Alias(loc(test.b), loc(test.a)); got != test.want {
			t.Errorf("%s: alias query is not symmetric", test.name)
		}
	}
}

func TestBasicOracleModRef(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	opaque := p.Declare("opaque", ir.Void, ir.PointerTo(ir.Handle))
	printFn := p.Declare("print", ir.Void, ir.Int)
	f := p.NewFunction("f", ir.Void)
	b := ir.NewBuilder(f)
	x := b.New(ir.NewInt(1))
	passed := b.Alloc(ir.Handle)
	local := b.Alloc(ir.Handle)
	st1 := b.Store(passed, x)
	st2 := b.Store(local, x)
	g := p.NewGlobal("g", ir.Handle)
	st3 := b.Store(g, x)
	call := b.Call(opaque, passed)
	printCall := b.Call(printFn, ir.NewInt(1))
	get := b.Get(x)
	b.Return(nil)

	o := NewBasicOracle()
	locOf := func(i *ir.Instruction) Location {
		l, ok := LocationOf(i)
		if !ok {
			t.Fatalf("%s has no location", i)
		}
		return l
	}
	if r := o.ModRef(call, locOf(st1)); r == NoModRef {
		t.Errorf("call receiving the slot should access it")
	}
	if r := o.ModRef(call, locOf(st2)); r != NoModRef {
		t.Errorf("call should not access an uncaptured local slot, got %s", r)
	}
	if r := o.ModRef(printCall, locOf(st3)); r != ModRef {
		t.Errorf("any opaque call may access a global, got %s", r)
	}
	if r := o.ModRef(get, Location{Ptr: x}); !r.IsRef() || r.IsMod() {
		t.Errorf("Get should only read its handle, got %s", r)
	}
}
