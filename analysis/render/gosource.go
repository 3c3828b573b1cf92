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

// Package render writes programs back out: as Go source compiled together with the CAT runtime, as text, or as the
// Graphviz drawing of their call graph.
package render

import (
	"fmt"
	"go/token"
	"io"
	"regexp"
	"strconv"

	"github.com/awslabs/cat-optimizer/analysis/ir"
	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
)

// GoOptions controls the rendering of Go source
type GoOptions struct {
	// Package is the name of the package clause
	Package string
	// HandleType is the name of the handle type of the runtime
	HandleType string
	// IntType is the integer type used by the runtime operations
	IntType string
}

// DefaultGoOptions render a main package for the CAT runtime
var DefaultGoOptions = GoOptions{Package: "main", HandleType: "CATData", IntType: "int64"}

// WriteGo renders the defined functions and the globals of prog as a Go file. The handle type, the runtime
// operations and the externals other than println and print are not rendered: the file is meant to be compiled
// together with the runtime.
func WriteGo(prog *ir.Program, opts GoOptions, w io.Writer) error {
	file, err := GoFile(prog, opts)
	if err != nil {
		return err
	}
	if err := decorator.Fprint(w, file); err != nil {
		return fmt.Errorf("could not print Go source: %w", err)
	}
	return nil
}

// GoFile returns the syntax tree of the Go rendering of prog
func GoFile(prog *ir.Program, opts GoOptions) (*dst.File, error) {
	r := &goRenderer{opts: opts, globals: map[string]bool{}}
	file := &dst.File{Name: dst.NewIdent(opts.Package)}
	for _, f := range prog.Functions {
		r.globals[identifier(f.RawName())] = true
	}
	for _, g := range prog.Globals {
		r.globals[identifier(g.Name()[1:])] = true
		t, err := r.typeExpr(g.Elem())
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", g.Name(), err)
		}
		file.Decls = append(file.Decls, &dst.GenDecl{
			Tok:   token.VAR,
			Specs: []dst.Spec{&dst.ValueSpec{Names: []*dst.Ident{r.ident(g)}, Type: t}},
		})
	}
	for _, f := range prog.Defined() {
		decl, err := r.function(f)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name(), err)
		}
		decl.Decs.Before = dst.EmptyLine
		file.Decls = append(file.Decls, decl)
	}
	return file, nil
}

var notIdentChar = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// identifier returns a valid Go identifier for name
func identifier(name string) string {
	id := notIdentChar.ReplaceAllString(name, "_")
	if id == "" || token.Lookup(id).IsKeyword() || (id[0] >= '0' && id[0] <= '9') {
		id = "_" + id
	}
	return id
}

type goRenderer struct {
	opts    GoOptions
	globals map[string]bool

	// per function
	names  map[ir.Value]string
	labels map[*ir.BasicBlock]string
}

func (r *goRenderer) typeExpr(t *ir.Type) (dst.Expr, error) {
	switch t.Kind() {
	case ir.KindInt:
		return dst.NewIdent(r.opts.IntType), nil
	case ir.KindBool:
		return dst.NewIdent("bool"), nil
	case ir.KindHandle:
		return dst.NewIdent(r.opts.HandleType), nil
	case ir.KindPointer:
		elem, err := r.typeExpr(t.Elem())
		if err != nil {
			return nil, err
		}
		return &dst.StarExpr{X: elem}, nil
	}
	return nil, fmt.Errorf("type %s cannot be rendered", t)
}

func (r *goRenderer) ident(v ir.Value) *dst.Ident {
	switch x := v.(type) {
	case *ir.Function:
		return dst.NewIdent(identifier(x.RawName()))
	case *ir.Global:
		return dst.NewIdent(identifier(x.Name()[1:]))
	}
	return dst.NewIdent(r.names[v])
}

// usedElsewhere returns true if some instruction other than i uses it
func usedElsewhere(i *ir.Instruction) bool {
	for _, u := range i.Referrers() {
		if u != i {
			return true
		}
	}
	return false
}

var tempName = regexp.MustCompile(`^t[0-9]+$`)

func (r *goRenderer) function(f *ir.Function) (*dst.FuncDecl, error) {
	r.names = map[ir.Value]string{}
	r.labels = map[*ir.BasicBlock]string{}
	taken := map[string]bool{}

	sig := &dst.FuncType{Params: &dst.FieldList{}}
	for k, a := range f.Params {
		name := identifier(a.Name()[1:])
		if a.Name() == "%" || taken[name] || r.globals[name] || tempName.MatchString(name) {
			name = fmt.Sprintf("arg%d", k)
		}
		taken[name] = true
		r.names[a] = name
		t, err := r.typeExpr(a.Type())
		if err != nil {
			return nil, err
		}
		sig.Params.List = append(sig.Params.List, &dst.Field{Names: []*dst.Ident{dst.NewIdent(name)}, Type: t})
	}
	if f.Result != ir.Void {
		t, err := r.typeExpr(f.Result)
		if err != nil {
			return nil, err
		}
		sig.Results = &dst.FieldList{List: []*dst.Field{{Type: t}}}
	}

	// every value with a use is a variable declared upfront: gotos cannot jump over declarations
	var vars []dst.Spec
	n := 0
	for _, b := range f.Blocks {
		for _, i := range b.Instrs {
			if i.Type() == ir.Void || !usedElsewhere(i) {
				continue
			}
			name := fmt.Sprintf("t%d", n)
			for taken[name] || r.globals[name] {
				n++
				name = fmt.Sprintf("t%d", n)
			}
			n++
			r.names[i] = name
			t, err := r.typeExpr(i.Type())
			if err != nil {
				return nil, err
			}
			vars = append(vars, &dst.ValueSpec{Names: []*dst.Ident{dst.NewIdent(name)}, Type: t})
		}
	}
	for _, b := range f.Blocks {
		for _, s := range b.Succs() {
			if r.labels[s] == "" {
				r.labels[s] = identifier(s.Name())
			}
		}
	}

	body := &dst.BlockStmt{}
	if len(vars) > 0 {
		decl := &dst.GenDecl{Tok: token.VAR, Lparen: len(vars) > 1, Specs: vars}
		body.List = append(body.List, &dst.DeclStmt{Decl: decl})
	}
	for _, b := range f.Blocks {
		stmts, err := r.block(b)
		if err != nil {
			return nil, err
		}
		if label, ok := r.labels[b]; ok {
			stmts[0] = &dst.LabeledStmt{Label: dst.NewIdent(label), Stmt: stmts[0]}
			stmts[0].Decorations().Before = dst.EmptyLine
		}
		body.List = append(body.List, stmts...)
	}
	return &dst.FuncDecl{Name: dst.NewIdent(identifier(f.RawName())), Type: sig, Body: body}, nil
}

func (r *goRenderer) block(b *ir.BasicBlock) ([]dst.Stmt, error) {
	var stmts []dst.Stmt
	for _, i := range b.Instrs {
		switch i.Op {
		case ir.OpJoin:
			// assigned by the predecessors
		case ir.OpBranch:
			stmts = append(stmts, r.branch(b, i)...)
		case ir.OpReturn:
			ret := &dst.ReturnStmt{}
			if i.NumOperands() > 0 {
				ret.Results = []dst.Expr{r.value(i.Operand(0))}
			}
			stmts = append(stmts, ret)
		case ir.OpStore:
			stmts = append(stmts, &dst.AssignStmt{
				Lhs: []dst.Expr{r.deref(i.Operand(0))},
				Tok: token.ASSIGN,
				Rhs: []dst.Expr{r.value(i.Operand(1))},
			})
		default:
			e, err := r.expr(i)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, r.define(i, e))
		}
	}
	return stmts, nil
}

// define assigns the value of i to its variable, or evaluates it for its effects when it has no variable
func (r *goRenderer) define(i *ir.Instruction, e dst.Expr) dst.Stmt {
	if name, ok := r.names[i]; ok {
		return &dst.AssignStmt{Lhs: []dst.Expr{dst.NewIdent(name)}, Tok: token.ASSIGN, Rhs: []dst.Expr{e}}
	}
	if _, ok := e.(*dst.CallExpr); ok && i.Op == ir.OpCall {
		return &dst.ExprStmt{X: e}
	}
	return &dst.AssignStmt{Lhs: []dst.Expr{dst.NewIdent("_")}, Tok: token.ASSIGN, Rhs: []dst.Expr{e}}
}

// edge returns the statements taking the edge from b to target: the parallel assignment of the joins of target,
// then the jump.
func (r *goRenderer) edge(b, target *ir.BasicBlock) []dst.Stmt {
	var stmts []dst.Stmt
	assign := &dst.AssignStmt{Tok: token.ASSIGN}
	for _, j := range target.Joins() {
		v := j.IncomingValue(b)
		if _, ok := r.names[j]; !ok || v == ir.Value(j) {
			continue
		}
		assign.Lhs = append(assign.Lhs, dst.NewIdent(r.names[j]))
		assign.Rhs = append(assign.Rhs, r.value(v))
	}
	if len(assign.Lhs) > 0 {
		stmts = append(stmts, assign)
	}
	return append(stmts, &dst.BranchStmt{Tok: token.GOTO, Label: dst.NewIdent(r.labels[target])})
}

func (r *goRenderer) branch(b *ir.BasicBlock, br *ir.Instruction) []dst.Stmt {
	if len(br.Targets) == 1 {
		return r.edge(b, br.Targets[0])
	}
	ifStmt := &dst.IfStmt{Cond: r.value(br.Cond()), Body: &dst.BlockStmt{List: r.edge(b, br.Targets[0])}}
	return append([]dst.Stmt{ifStmt}, r.edge(b, br.Targets[1])...)
}

func (r *goRenderer) value(v ir.Value) dst.Expr {
	switch x := v.(type) {
	case *ir.Const:
		switch x.Type().Kind() {
		case ir.KindInt:
			return &dst.BasicLit{Kind: token.INT, Value: strconv.FormatInt(x.Int, 10)}
		case ir.KindBool:
			return dst.NewIdent(strconv.FormatBool(x.Bool))
		}
		return dst.NewIdent("nil")
	case *ir.Global:
		return &dst.UnaryExpr{Op: token.AND, X: r.ident(x)}
	}
	return r.ident(v)
}

// deref returns the expression of the slot pointed to by ptr
func (r *goRenderer) deref(ptr ir.Value) dst.Expr {
	if g, ok := ptr.(*ir.Global); ok {
		return r.ident(g)
	}
	return &dst.StarExpr{X: r.value(ptr)}
}

var goBinOps = map[ir.BinOp]token.Token{
	ir.BinAdd: token.ADD,
	ir.BinSub: token.SUB,
	ir.BinMul: token.MUL,
	ir.BinDiv: token.QUO,
	ir.BinRem: token.REM,
	ir.BinAnd: token.AND,
	ir.BinOr:  token.OR,
	ir.BinXor: token.XOR,
	ir.BinShl: token.SHL,
	ir.BinShr: token.SHR,
	ir.BinEq:  token.EQL,
	ir.BinNe:  token.NEQ,
	ir.BinLt:  token.LSS,
	ir.BinLe:  token.LEQ,
	ir.BinGt:  token.GTR,
	ir.BinGe:  token.GEQ,
}

func (r *goRenderer) expr(i *ir.Instruction) (dst.Expr, error) {
	switch i.Op {
	case ir.OpCall:
		if i.Callee == nil {
			return nil, fmt.Errorf("indirect call %s cannot be rendered", i)
		}
		call := &dst.CallExpr{Fun: r.ident(i.Callee)}
		for _, a := range i.Args() {
			call.Args = append(call.Args, r.value(a))
		}
		return call, nil
	case ir.OpLoad:
		return r.deref(i.Operand(0)), nil
	case ir.OpAlloc:
		t, err := r.typeExpr(i.Elem)
		if err != nil {
			return nil, err
		}
		return &dst.CallExpr{Fun: dst.NewIdent("new"), Args: []dst.Expr{t}}, nil
	case ir.OpBinOp:
		return &dst.BinaryExpr{X: r.value(i.Operand(0)), Op: goBinOps[i.BinOp], Y: r.value(i.Operand(1))}, nil
	case ir.OpCast:
		return r.cast(i)
	}
	return nil, fmt.Errorf("%s cannot be rendered", i)
}

func (r *goRenderer) cast(i *ir.Instruction) (dst.Expr, error) {
	x := i.Operand(0)
	from, to := x.Type(), i.Type()
	switch {
	case to.Kind() == from.Kind() && to.Kind() != ir.KindPointer:
		return r.value(x), nil
	case to.Kind() == ir.KindPointer || to.Kind() == ir.KindHandle:
		t, err := r.typeExpr(to)
		if err != nil {
			return nil, err
		}
		return &dst.CallExpr{Fun: &dst.ParenExpr{X: t}, Args: []dst.Expr{r.value(x)}}, nil
	}
	return nil, fmt.Errorf("cast from %s to %s cannot be rendered", from, to)
}
