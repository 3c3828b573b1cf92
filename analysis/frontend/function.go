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
	"go/constant"
	"go/token"

	"github.com/awslabs/cat-optimizer/analysis/ir"
	"golang.org/x/tools/go/ssa"
)

// lowerer converts the body of one function. It implements instrOp.
type lowerer struct {
	m      *module
	ssaFn  *ssa.Function
	b      *ir.Builder
	blocks map[*ssa.BasicBlock]*ir.BasicBlock
	// splits are the blocks inserted on the second edge of a branch whose two targets are the same block
	splits map[*ssa.BasicBlock]*ir.BasicBlock
	values map[ssa.Value]ir.Value
	phis   []*ssa.Phi
	failed bool
}

func (m *module) lowerFunction(f *ssa.Function) {
	fn := m.funcs[f]
	l := &lowerer{
		m:      m,
		ssaFn:  f,
		b:      ir.NewBuilder(fn),
		blocks: map[*ssa.BasicBlock]*ir.BasicBlock{},
		splits: map[*ssa.BasicBlock]*ir.BasicBlock{},
		values: map[ssa.Value]ir.Value{},
	}
	for k, p := range f.Params {
		l.values[p] = fn.Params[k]
	}
	order := f.DomPreorder()
	for k, blk := range order {
		if k == 0 {
			l.blocks[blk] = l.b.Block()
		} else {
			l.blocks[blk] = l.b.NewBlock(blk.Comment)
		}
	}
	for _, blk := range order {
		l.b.SetBlock(l.blocks[blk])
		for _, instr := range blk.Instrs {
			instrSwitch(l, instr)
			if l.failed {
				return
			}
		}
	}
	for _, phi := range l.phis {
		if !l.fillPhi(phi) {
			return
		}
	}
	m.log.Tracef("lowered %s\n%s", f.Name(), fn)
}

func (l *lowerer) fail(pos token.Pos, format string, args ...any) {
	if !pos.IsValid() {
		pos = l.ssaFn.Pos()
	}
	l.m.errorf(pos, "in %s: "+format, append([]any{l.ssaFn.Name()}, args...)...)
	l.failed = true
}

// value returns the representation of v, or nil after recording an error
func (l *lowerer) value(v ssa.Value) ir.Value {
	if x, ok := l.values[v]; ok {
		return x
	}
	switch x := v.(type) {
	case *ssa.Const:
		return l.constant(x)
	case *ssa.Global:
		if g := l.m.global(x); g != nil {
			return g
		}
		l.failed = true
	case *ssa.Function:
		if f := l.m.function(x); f != nil {
			return f
		}
		l.failed = true
	case *ssa.FreeVar:
		l.fail(x.Pos(), "closures are not supported")
	case *ssa.Builtin:
		l.fail(x.Pos(), "builtin %s cannot be used as a value", x.Name())
	default:
		l.fail(v.Pos(), "%s is used before its definition", v.Name())
	}
	return nil
}

// operands returns the representation of each of vs, or false if one of them cannot be represented
func (l *lowerer) operands(vs ...ssa.Value) ([]ir.Value, bool) {
	res := make([]ir.Value, len(vs))
	for k, v := range vs {
		res[k] = l.value(v)
		if res[k] == nil {
			return nil, false
		}
	}
	return res, true
}

func (l *lowerer) constant(c *ssa.Const) ir.Value {
	t, err := l.m.irType(c.Type())
	if err != nil {
		l.fail(c.Pos(), "constant %s: %v", c.Name(), err)
		return nil
	}
	if c.Value == nil {
		switch t.Kind() {
		case ir.KindInt:
			return ir.NewInt(0)
		case ir.KindBool:
			return ir.NewBool(false)
		}
		return ir.Null(t)
	}
	switch c.Value.Kind() {
	case constant.Int:
		if x, exact := constant.Int64Val(c.Value); exact {
			return ir.NewInt(x)
		}
		if x, exact := constant.Uint64Val(c.Value); exact {
			return ir.NewInt(int64(x))
		}
	case constant.Bool:
		return ir.NewBool(constant.BoolVal(c.Value))
	}
	l.fail(c.Pos(), "unsupported constant %s", c.Name())
	return nil
}

func (l *lowerer) define(v ssa.Value, x ir.Value) {
	l.values[v] = x
}

func (l *lowerer) unsupported(instr ssa.Instruction) {
	l.fail(instr.Pos(), "unsupported %s", instrKind(instr))
}

func (l *lowerer) doAlloc(a *ssa.Alloc) {
	elem, err := l.m.irType(deref(a.Type()))
	if err != nil {
		l.fail(a.Pos(), "variable %s: %v", a.Comment, err)
		return
	}
	l.define(a, l.b.Alloc(elem))
}

func (l *lowerer) doStore(s *ssa.Store) {
	ops, ok := l.operands(s.Addr, s.Val)
	if !ok {
		return
	}
	l.b.Store(ops[0], ops[1])
}

func (l *lowerer) doUnOp(u *ssa.UnOp) {
	x := l.value(u.X)
	if x == nil {
		return
	}
	switch u.Op {
	case token.MUL:
		l.define(u, l.b.Load(x))
	case token.SUB:
		l.define(u, l.b.BinOp(ir.BinSub, ir.NewInt(0), x))
	case token.NOT:
		l.define(u, l.b.BinOp(ir.BinEq, x, ir.NewBool(false)))
	case token.XOR:
		l.define(u, l.b.BinOp(ir.BinXor, x, ir.NewInt(-1)))
	default:
		l.fail(u.Pos(), "unsupported operator %s", u.Op)
	}
}

var binOps = map[token.Token]ir.BinOp{
	token.ADD: ir.BinAdd,
	token.SUB: ir.BinSub,
	token.MUL: ir.BinMul,
	token.QUO: ir.BinDiv,
	token.REM: ir.BinRem,
	token.AND: ir.BinAnd,
	token.OR:  ir.BinOr,
	token.XOR: ir.BinXor,
	token.SHL: ir.BinShl,
	token.SHR: ir.BinShr,
	token.EQL: ir.BinEq,
	token.NEQ: ir.BinNe,
	token.LSS: ir.BinLt,
	token.LEQ: ir.BinLe,
	token.GTR: ir.BinGt,
	token.GEQ: ir.BinGe,
}

// signedOnly are the operators whose result differs on unsigned operands
var signedOnly = map[token.Token]bool{
	token.QUO: true, token.REM: true, token.SHR: true,
	token.LSS: true, token.LEQ: true, token.GTR: true, token.GEQ: true,
}

func (l *lowerer) doBinOp(op *ssa.BinOp) {
	if signedOnly[op.Op] && isUnsigned(op.X.Type()) {
		l.fail(op.Pos(), "operator %s on unsigned integers is not supported", op.Op)
		return
	}
	ops, ok := l.operands(op.X, op.Y)
	if !ok {
		return
	}
	if op.Op == token.AND_NOT {
		l.define(op, l.b.BinOp(ir.BinAnd, ops[0], l.b.BinOp(ir.BinXor, ops[1], ir.NewInt(-1))))
		return
	}
	bop, ok := binOps[op.Op]
	if !ok {
		l.fail(op.Pos(), "unsupported operator %s", op.Op)
		return
	}
	l.define(op, l.b.BinOp(bop, ops[0], ops[1]))
}

func (l *lowerer) conversion(v ssa.Value, x ssa.Value) {
	t, err := l.m.irType(v.Type())
	if err != nil {
		l.fail(v.Pos(), "conversion: %v", err)
		return
	}
	operand := l.value(x)
	if operand == nil {
		return
	}
	if operand.Type().Equal(t) {
		l.define(v, operand)
		return
	}
	l.define(v, l.b.Cast(operand, t))
}

func (l *lowerer) doConvert(c *ssa.Convert) { l.conversion(c, c.X) }

func (l *lowerer) doChangeType(c *ssa.ChangeType) { l.conversion(c, c.X) }

func (l *lowerer) doPanic(p *ssa.Panic) {
	l.fail(p.Pos(), "unsupported panic")
}

func (l *lowerer) doCall(call *ssa.Call) {
	common := call.Common()
	if common.IsInvoke() {
		l.fail(call.Pos(), "interface method calls are not supported")
		return
	}
	args, ok := l.operands(common.Args...)
	if !ok {
		return
	}
	var res *ir.Instruction
	switch callee := common.Value.(type) {
	case *ssa.Builtin:
		switch callee.Name() {
		case "println", "print":
			res = l.b.Call(l.m.external(callee.Name()), args...)
		default:
			l.fail(call.Pos(), "unsupported builtin %s", callee.Name())
			return
		}
	case *ssa.Function:
		if l.m.isForeignInit(callee) {
			return
		}
		f := l.m.function(callee)
		if f == nil {
			l.failed = true
			return
		}
		res = l.b.Call(f, args...)
	default:
		fv := l.value(callee)
		if fv == nil {
			return
		}
		result, err := l.m.resultType(common.Signature())
		if err != nil {
			l.fail(call.Pos(), "call: %v", err)
			return
		}
		res = l.b.CallIndirect(fv, result, args...)
	}
	if res.Type() != ir.Void {
		l.define(call, res)
	}
}

// external returns the declaration of a function provided by the execution environment
func (m *module) external(name string) *ir.Function {
	if f := m.prog.Func(name); f != nil {
		return f
	}
	m.names[name] = true
	return m.prog.Declare(name, ir.Void)
}

func (l *lowerer) doReturn(r *ssa.Return) {
	switch len(r.Results) {
	case 0:
		l.b.Return(nil)
	case 1:
		if v := l.value(r.Results[0]); v != nil {
			l.b.Return(v)
		}
	default:
		l.fail(r.Pos(), "multiple results are not supported")
	}
}

func (l *lowerer) doIf(i *ssa.If) {
	cond := l.value(i.Cond)
	if cond == nil {
		return
	}
	blk := i.Block()
	then, els := l.blocks[blk.Succs[0]], l.blocks[blk.Succs[1]]
	if then == els {
		// a block on the second edge keeps one predecessor per edge for the joins of the target
		split := l.b.NewBlock("split")
		l.splits[blk] = split
		l.b.If(cond, then, split)
		l.b.SetBlock(split)
		l.b.Jump(els)
		l.b.SetBlock(l.blocks[blk])
		return
	}
	l.b.If(cond, then, els)
}

func (l *lowerer) doJump(j *ssa.Jump) {
	l.b.Jump(l.blocks[j.Block().Succs[0]])
}

func (l *lowerer) doPhi(phi *ssa.Phi) {
	t, err := l.m.irType(phi.Type())
	if err != nil {
		l.fail(phi.Pos(), "%s: %v", phi.Comment, err)
		return
	}
	l.define(phi, l.b.Join(t))
	l.phis = append(l.phis, phi)
}

// fillPhi adds the entries of the join of phi, once every block has been lowered
func (l *lowerer) fillPhi(phi *ssa.Phi) bool {
	j := l.values[phi].(*ir.Instruction)
	blk := phi.Block()
	for k, edge := range phi.Edges {
		pred := blk.Preds[k]
		from := l.blocks[pred]
		if from == nil {
			// unreachable predecessor
			continue
		}
		if l.seenBefore(blk.Preds, k) {
			from = l.splits[pred]
		}
		v := l.value(edge)
		if v == nil {
			return false
		}
		j.AddIncoming(from, v)
	}
	if j.NumOperands() != len(j.Block().Preds) {
		l.fail(phi.Pos(), "%s has %d entries for %d predecessors", phi.Name(), j.NumOperands(), len(j.Block().Preds))
		return false
	}
	return true
}

// seenBefore returns true when preds[k] also appears before index k
func (l *lowerer) seenBefore(preds []*ssa.BasicBlock, k int) bool {
	for _, p := range preds[:k] {
		if p == preds[k] {
			return true
		}
	}
	return false
}

