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

// Package ir defines the program representation the optimizer works on: functions made of basic blocks holding
// tagged instructions, with use lists maintained by the mutation primitives.
package ir

import (
	"fmt"
	"strings"
)

// OpNames are the symbols of the five runtime operations.
type OpNames struct {
	New string `yaml:"new"`
	Get string `yaml:"get"`
	Set string `yaml:"set"`
	Add string `yaml:"add"`
	Sub string `yaml:"sub"`
}

// DefaultOpNames are the symbols of the CAT runtime
var DefaultOpNames = OpNames{New: "CAT_new", Get: "CAT_get", Set: "CAT_set", Add: "CAT_add", Sub: "CAT_sub"}

// A Program is a set of functions and globals. The five handle operations are always declared.
type Program struct {
	// Functions are all the functions of the program, declarations included
	Functions []*Function

	// Globals are the global slots of the program
	Globals []*Global

	// EntryPoint is the name of the function run first
	EntryPoint string

	ops    [HandleSub + 1]*Function
	byName map[string]*Function
	clones int
}

// NewProgram returns a program declaring the handle operations under the given names.
func NewProgram(names OpNames) *Program {
	p := &Program{EntryPoint: "main", byName: map[string]*Function{}}
	decl := func(op HandleOp, name string, result *Type, params ...*Type) {
		f := p.Declare(name, result, params...)
		f.handleOp = op
		p.ops[op] = f
	}
	decl(HandleNew, names.New, Handle, Int)
	decl(HandleGet, names.Get, Int, Handle)
	decl(HandleSet, names.Set, Void, Handle, Int)
	decl(HandleAdd, names.Add, Void, Handle, Handle, Handle)
	decl(HandleSub, names.Sub, Void, Handle, Handle, Handle)
	return p
}

// Op returns the declaration of a handle operation
func (p *Program) Op(op HandleOp) *Function {
	return p.ops[op]
}

// NewFunction adds a function with the given name and result type. Parameters are added with AddParam.
func (p *Program) NewFunction(name string, result *Type) *Function {
	if _, ok := p.byName[name]; ok {
		panic(fmt.Sprintf("function %s already declared", name))
	}
	f := &Function{name: name, Result: result, prog: p}
	p.Functions = append(p.Functions, f)
	p.byName[name] = f
	return f
}

// Declare adds an external function.
func (p *Program) Declare(name string, result *Type, params ...*Type) *Function {
	f := p.NewFunction(name, result)
	for _, t := range params {
		f.AddParam("", t)
	}
	return f
}

// Func returns the function with the given name, nil if there is none.
func (p *Program) Func(name string) *Function {
	return p.byName[name]
}

// Entry returns the entry point function
func (p *Program) Entry() *Function {
	return p.byName[p.EntryPoint]
}

// NewGlobal adds a global slot holding values of type elem
func (p *Program) NewGlobal(name string, elem *Type) *Global {
	g := &Global{name: name, elem: elem, typ: PointerTo(elem)}
	p.Globals = append(p.Globals, g)
	return g
}

// Defined returns the functions that have a body
func (p *Program) Defined() []*Function {
	var fns []*Function
	for _, f := range p.Functions {
		if !f.IsExternal() {
			fns = append(fns, f)
		}
	}
	return fns
}

// CloneFunction adds a copy of f to the program and returns it. The copy is not exported.
func (p *Program) CloneFunction(f *Function) *Function {
	p.clones++
	name := fmt.Sprintf("%s.clone%d", f.name, p.clones)
	for p.byName[name] != nil {
		p.clones++
		name = fmt.Sprintf("%s.clone%d", f.name, p.clones)
	}
	g := p.NewFunction(name, f.Result)
	g.RecursionFree = f.RecursionFree
	vmap := make(map[Value]Value, len(f.Params))
	for _, a := range f.Params {
		vmap[a] = g.AddParam(a.name, a.typ)
	}
	CloneBlocks(g, f.Blocks, vmap)
	return g
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, g := range p.Globals {
		sb.WriteString(g.String() + "\n")
	}
	for _, f := range p.Functions {
		if f.handleOp != NotHandleOp {
			continue
		}
		sb.WriteString(f.String() + "\n")
	}
	return sb.String()
}
