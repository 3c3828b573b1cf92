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

package frontend

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"sort"

	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/ir"
	"golang.org/x/tools/go/ssa"
)

// module holds the state shared by the lowering of all the functions of a program
type module struct {
	config *config.Config
	log    *config.LogGroup
	prog   *ir.Program

	// lowered are the packages whose functions are lowered. Functions of other packages are declared.
	lowered map[*ssa.Package]bool
	funcs   map[*ssa.Function]*ir.Function
	globals map[*ssa.Global]*ir.Global
	names   map[string]bool
	// decls are the function declarations of the lowered files, by position of their name
	decls map[token.Pos]*ast.FuncDecl
	queue []*ssa.Function
	errs    []error
}

// Lower converts the functions of pkgs into a program. Functions of other packages called by pkgs are declared
// as externals. Functions named like the operations of the runtime become the handle operations, and their body
// is ignored. The directives of a function are read from its declaration in files.
func Lower(c *config.Config, log *config.LogGroup, pkgs []*ssa.Package, files []*ast.File) (*ir.Program, error) {
	m := &module{
		config:  c,
		log:     log,
		prog:    ir.NewProgram(c.HandleOps),
		lowered: map[*ssa.Package]bool{},
		funcs:   map[*ssa.Function]*ir.Function{},
		globals: map[*ssa.Global]*ir.Global{},
		names:   map[string]bool{},
		decls:   map[token.Pos]*ast.FuncDecl{},
	}
	for _, file := range files {
		for _, d := range file.Decls {
			if decl, ok := d.(*ast.FuncDecl); ok {
				m.decls[decl.Name.Pos()] = decl
			}
		}
	}
	m.prog.EntryPoint = c.EntryPoint
	for _, pkg := range pkgs {
		m.lowered[pkg] = true
	}
	for _, pkg := range pkgs {
		for _, f := range members(pkg) {
			m.function(f)
		}
	}
	for len(m.queue) > 0 {
		f := m.queue[0]
		m.queue = m.queue[1:]
		m.lowerFunction(f)
	}
	if len(m.errs) > 0 {
		return nil, errors.Join(m.errs...)
	}
	m.log.Debugf("lowered %d functions", len(m.prog.Defined()))
	return m.prog, nil
}

// members returns the functions of pkg in source order
func members(pkg *ssa.Package) []*ssa.Function {
	var fns []*ssa.Function
	for _, mem := range pkg.Members {
		if f, ok := mem.(*ssa.Function); ok {
			fns = append(fns, f)
		}
	}
	sort.Slice(fns, func(i, j int) bool {
		if fns[i].Pos() != fns[j].Pos() {
			return fns[i].Pos() < fns[j].Pos()
		}
		return fns[i].Name() < fns[j].Name()
	})
	return fns
}

func (m *module) errorf(pos token.Pos, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p := m.position(pos); p.IsValid() {
		msg = p.String() + ": " + msg
	}
	m.errs = append(m.errs, errors.New(msg))
}

func (m *module) position(pos token.Pos) token.Position {
	for pkg := range m.lowered {
		return pkg.Prog.Fset.Position(pos)
	}
	return token.Position{}
}

// freshName returns name, qualified by the package path when name is taken
func (m *module) freshName(name string, pkg *ssa.Package) string {
	if !m.names[name] && m.prog.Func(name) == nil {
		m.names[name] = true
		return name
	}
	base := name
	if pkg != nil {
		base = pkg.Pkg.Path() + "." + name
	}
	name = base
	for k := 1; m.names[name] || m.prog.Func(name) != nil; k++ {
		name = fmt.Sprintf("%s#%d", base, k)
	}
	m.names[name] = true
	return name
}

// handleOp returns the handle operation f stands for, if any
func (m *module) handleOp(f *ssa.Function) *ir.Function {
	if f.Signature.Recv() != nil || f.Parent() != nil || !m.lowered[f.Pkg] {
		return nil
	}
	names := m.config.HandleOps
	for op, name := range map[ir.HandleOp]string{
		ir.HandleNew: names.New,
		ir.HandleGet: names.Get,
		ir.HandleSet: names.Set,
		ir.HandleAdd: names.Add,
		ir.HandleSub: names.Sub,
	} {
		if f.Name() == name {
			return m.prog.Op(op)
		}
	}
	return nil
}

// function returns the function f is lowered to, declaring it on first use. Returns nil when f cannot be
// represented, after recording the error.
func (m *module) function(f *ssa.Function) *ir.Function {
	if fn, ok := m.funcs[f]; ok {
		return fn
	}
	if op := m.handleOp(f); op != nil {
		if err := m.checkSignature(f, op); err != nil {
			m.errorf(f.Pos(), "%v", err)
		}
		m.funcs[f] = op
		return op
	}
	result, err := m.resultType(f.Signature)
	if err != nil {
		m.errorf(f.Pos(), "function %s: %v", f.Name(), err)
		m.funcs[f] = nil
		return nil
	}
	name := f.Name()
	if recv := f.Signature.Recv(); recv != nil {
		name = recv.Type().String() + "." + name
	}

	if len(f.Blocks) == 0 || !m.lowered[f.Pkg] {
		var params []*ir.Type
		sig := f.Signature.Params()
		for k := 0; k < sig.Len(); k++ {
			t, err := m.irType(sig.At(k).Type())
			if err != nil {
				m.errorf(f.Pos(), "function %s: %v", f.Name(), err)
				m.funcs[f] = nil
				return nil
			}
			params = append(params, t)
		}
		if m.lowered[f.Pkg] || f.Pkg == nil {
			name = m.freshName(name, f.Pkg)
		} else {
			name = m.freshName(f.Pkg.Pkg.Path()+"."+name, nil)
		}
		fn := m.prog.Declare(name, result, params...)
		m.funcs[f] = fn
		return fn
	}

	fn := m.prog.NewFunction(m.freshName(name, f.Pkg), result)
	for _, p := range f.Params {
		t, err := m.irType(p.Type())
		if err != nil {
			m.errorf(p.Pos(), "parameter %s of %s: %v", p.Name(), f.Name(), err)
			t = ir.Int
		}
		fn.AddParam(p.Name(), t)
	}
	fn.Exported = m.config.IsExported(fn.RawName()) || m.hasDirective(f, DirectiveExport)
	m.funcs[f] = fn
	m.queue = append(m.queue, f)
	return fn
}

func (m *module) checkSignature(f *ssa.Function, op *ir.Function) error {
	sig := f.Signature
	bad := fmt.Errorf("runtime function %s must have the signature of %s", f.Name(), op.HandleOp())
	if sig.Params().Len() != len(op.Params) {
		return bad
	}
	for k, p := range op.Params {
		t, err := m.irType(sig.Params().At(k).Type())
		if err != nil || !t.Equal(p.Type()) {
			return bad
		}
	}
	if r, err := m.resultType(sig); err != nil || !r.Equal(op.Result) {
		return bad
	}
	return nil
}

func (m *module) global(g *ssa.Global) *ir.Global {
	if x, ok := m.globals[g]; ok {
		return x
	}
	elem, err := m.irType(deref(g.Type()))
	if err != nil {
		m.errorf(g.Pos(), "global %s: %v", g.Name(), err)
		m.globals[g] = nil
		return nil
	}
	name := g.Name()
	if !m.lowered[g.Pkg] {
		name = g.Pkg.Pkg.Path() + "." + name
	}
	x := m.prog.NewGlobal(m.freshName(name, g.Pkg), elem)
	m.globals[g] = x
	return x
}

// isForeignInit returns true for the initializer of a package that is not lowered. Calls to those are dropped.
func (m *module) isForeignInit(f *ssa.Function) bool {
	return f.Name() == "init" && f.Pkg != nil && !m.lowered[f.Pkg] && f.Signature.Recv() == nil
}

// Directives are comments of the form //catopt:directive in the documentation of a function
const (
	// DirectiveExport marks a function as callable from outside the program
	DirectiveExport = "export"
)

const directivePrefix = "//catopt:"

func (m *module) hasDirective(f *ssa.Function, directive string) bool {
	if f.Origin() != nil {
		f = f.Origin()
	}
	decl, ok := m.decls[f.Pos()]
	if !ok || decl.Doc == nil {
		return false
	}
	for _, c := range decl.Doc.List {
		if c.Text == directivePrefix+directive {
			return true
		}
	}
	return false
}
