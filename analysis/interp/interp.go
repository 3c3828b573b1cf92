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

// Package interp executes ir programs against a reference implementation of the handle runtime.
//
// The interpreter is the test oracle of the optimizer: an optimized program must print the same output as the
// original program, and must not invoke the runtime more often. Values are represented by Go values:
//   - int64 for integers and bool for booleans,
//   - *Cell for handles, nil being the null handle,
//   - *Slot for pointers to memory slots (allocations and globals),
//   - *ir.Function for function values.
package interp

import (
	"fmt"
	"io"
	"strings"

	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// Value is a runtime value
type Value = any

// A Slot is a memory location
type Slot struct {
	V Value
}

// An External implements a function without body
type External func(m *Machine, args []Value) (Value, error)

// DefaultStepLimit is the default number of instructions executed before an execution is stopped
const DefaultStepLimit = 10_000_000

// maxCallDepth bounds the depth of the interpreter's call stack
const maxCallDepth = 10_000

// Machine holds the state of an execution.
type Machine struct {
	// StepLimit is the number of instructions the machine executes before stopping with ErrStepLimit
	StepLimit int

	prog        *ir.Program
	out         io.Writer
	globals     map[*ir.Global]*Slot
	externals   map[string]External
	invocations int64
	steps       int
	depth       int
}

// Result is the outcome of a run
type Result struct {
	// Return is the value returned by the entry point
	Return Value
	// Output is the text printed by the program
	Output string
	// Invocations is the number of calls to the handle runtime
	Invocations int64
	// Steps is the number of instructions executed
	Steps int
}

// New returns a machine for prog printing to out. The externals println, print and CAT_invocations are
// predefined.
func New(prog *ir.Program, out io.Writer) *Machine {
	m := &Machine{
		StepLimit: DefaultStepLimit,
		prog:      prog,
		out:       out,
		globals:   map[*ir.Global]*Slot{},
		externals: map[string]External{},
	}
	for _, g := range prog.Globals {
		m.globals[g] = &Slot{V: zero(g.Elem())}
	}
	m.externals["println"] = func(m *Machine, args []Value) (Value, error) {
		return nil, m.print(args, " ", "\n")
	}
	m.externals["print"] = func(m *Machine, args []Value) (Value, error) {
		return nil, m.print(args, "", "")
	}
	m.externals["CAT_invocations"] = func(m *Machine, _ []Value) (Value, error) {
		return m.invocations, nil
	}
	return m
}

// SetExternal defines the implementation of the external function name
func (m *Machine) SetExternal(name string, f External) {
	m.externals[name] = f
}

// Invocations returns the number of calls to the handle runtime so far
func (m *Machine) Invocations() int64 {
	return m.invocations
}

// Run executes the init function of prog, if any, then its entry point, and returns the printed output.
func Run(prog *ir.Program) (*Result, error) {
	var out strings.Builder
	m := New(prog, &out)
	res := &Result{}
	var err error
	if init := prog.Func("init"); init != nil && !init.IsExternal() && len(init.Params) == 0 {
		_, err = m.Call(init)
	}
	if err == nil {
		entry := prog.Entry()
		if entry == nil {
			return nil, fmt.Errorf("no entry point %q", prog.EntryPoint)
		}
		args := make([]Value, len(entry.Params))
		for k, p := range entry.Params {
			args[k] = zero(p.Type())
		}
		res.Return, err = m.Call(entry, args...)
	}
	res.Output = out.String()
	res.Invocations = m.invocations
	res.Steps = m.steps
	return res, err
}

func (m *Machine) print(args []Value, sep string, end string) error {
	s := make([]string, len(args))
	for k, a := range args {
		switch x := a.(type) {
		case nil:
			s[k] = "0x0"
		case *Cell, *Slot, *ir.Function:
			s[k] = fmt.Sprintf("%p", x)
		default:
			s[k] = fmt.Sprintf("%v", x)
		}
	}
	_, err := io.WriteString(m.out, strings.Join(s, sep)+end)
	return err
}

func zero(t *ir.Type) Value {
	switch t.Kind() {
	case ir.KindInt:
		return int64(0)
	case ir.KindBool:
		return false
	}
	return nil
}

type frame struct {
	fn     *ir.Function
	args   []Value
	values map[*ir.Instruction]Value
}

func (fr *frame) eval(m *Machine, v ir.Value) (Value, error) {
	switch x := v.(type) {
	case *ir.Const:
		switch x.Type().Kind() {
		case ir.KindInt:
			return x.Int, nil
		case ir.KindBool:
			return x.Bool, nil
		}
		return nil, nil
	case *ir.Arg:
		return fr.args[x.Index()], nil
	case *ir.Instruction:
		r, ok := fr.values[x]
		if !ok {
			return nil, fmt.Errorf("in %s: %s used before being computed", fr.fn.Name(), x.Name())
		}
		return r, nil
	case *ir.Global:
		return m.globals[x], nil
	case *ir.Function:
		return x, nil
	}
	return nil, fmt.Errorf("unknown value %v", v)
}

// Call executes f on args
func (m *Machine) Call(f *ir.Function, args ...Value) (Value, error) {
	switch f.HandleOp() {
	case ir.HandleNew:
		return m.handleNew(args[0])
	case ir.HandleGet:
		return m.handleGet(args[0])
	case ir.HandleSet:
		return nil, m.handleSet(args[0], args[1])
	case ir.HandleAdd:
		return nil, m.handleArith(false, args[0], args[1], args[2])
	case ir.HandleSub:
		return nil, m.handleArith(true, args[0], args[1], args[2])
	}
	if f.IsExternal() {
		ext, ok := m.externals[f.RawName()]
		if !ok {
			return nil, fmt.Errorf("no implementation for external function %s", f.Name())
		}
		return ext(m, args)
	}
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", f.Name(), len(f.Params), len(args))
	}
	m.depth++
	defer func() { m.depth-- }()
	if m.depth > maxCallDepth {
		return nil, fmt.Errorf("call stack exceeds %d frames in %s", maxCallDepth, f.Name())
	}
	fr := &frame{fn: f, args: args, values: map[*ir.Instruction]Value{}}
	var prev *ir.BasicBlock
	b := f.Entry()
	for {
		if err := fr.enter(m, b, prev); err != nil {
			return nil, err
		}
		next, ret, done, err := fr.run(m, b)
		if err != nil || done {
			return ret, err
		}
		prev, b = b, next
	}
}

// enter assigns the joins of b for the edge coming from prev, all at once
func (fr *frame) enter(m *Machine, b *ir.BasicBlock, prev *ir.BasicBlock) error {
	joins := b.Joins()
	if len(joins) == 0 {
		return nil
	}
	vals := make([]Value, len(joins))
	for k, j := range joins {
		v := j.IncomingValue(prev)
		if v == nil {
			return fmt.Errorf("in %s: join %s has no entry for %v", fr.fn.Name(), j.Name(), prev)
		}
		x, err := fr.eval(m, v)
		if err != nil {
			return err
		}
		vals[k] = x
	}
	for k, j := range joins {
		fr.values[j] = vals[k]
	}
	m.steps += len(joins)
	return nil
}

// run executes the instructions of b after its joins. It returns the next block, or the returned value.
//
//gocyclo:ignore
func (fr *frame) run(m *Machine, b *ir.BasicBlock) (*ir.BasicBlock, Value, bool, error) {
	for _, i := range b.Instrs {
		if i.Op == ir.OpJoin {
			continue
		}
		m.steps++
		if m.StepLimit > 0 && m.steps > m.StepLimit {
			return nil, nil, true, ErrStepLimit
		}
		ops := make([]Value, i.NumOperands())
		for k, op := range i.Operands() {
			v, err := fr.eval(m, op)
			if err != nil {
				return nil, nil, true, err
			}
			ops[k] = v
		}
		switch i.Op {
		case ir.OpCall:
			callee := i.Callee
			args := ops
			if callee == nil {
				fv, ok := ops[0].(*ir.Function)
				if !ok || fv == nil {
					return nil, nil, true, fmt.Errorf("%w: call through a null function value", ErrAbort)
				}
				callee, args = fv, ops[1:]
			}
			r, err := m.Call(callee, args...)
			if err != nil {
				return nil, nil, true, err
			}
			fr.values[i] = r
		case ir.OpLoad:
			s, ok := ops[0].(*Slot)
			if !ok || s == nil {
				return nil, nil, true, fmt.Errorf("%w: load from a null pointer", ErrAbort)
			}
			fr.values[i] = s.V
		case ir.OpStore:
			s, ok := ops[0].(*Slot)
			if !ok || s == nil {
				return nil, nil, true, fmt.Errorf("%w: store to a null pointer", ErrAbort)
			}
			s.V = ops[1]
		case ir.OpAlloc:
			fr.values[i] = &Slot{V: zero(i.Elem)}
		case ir.OpBinOp:
			r, err := binOp(i.BinOp, ops[0], ops[1])
			if err != nil {
				return nil, nil, true, fmt.Errorf("in %s: %w", fr.fn.Name(), err)
			}
			fr.values[i] = r
		case ir.OpCast:
			fr.values[i] = ops[0]
		case ir.OpBranch:
			if len(ops) == 0 {
				return i.Targets[0], nil, false, nil
			}
			if c, _ := ops[0].(bool); c {
				return i.Targets[0], nil, false, nil
			}
			return i.Targets[1], nil, false, nil
		case ir.OpReturn:
			if len(ops) == 0 {
				return nil, nil, true, nil
			}
			return nil, ops[0], true, nil
		}
	}
	return nil, nil, true, fmt.Errorf("in %s: block %s has no terminator", fr.fn.Name(), b.Name())
}

func binOp(op ir.BinOp, x, y Value) (Value, error) {
	cx, okx := toConst(x)
	cy, oky := toConst(y)
	if okx && oky {
		r, ok := ir.EvalBinOp(op, cx, cy)
		if !ok {
			return nil, fmt.Errorf("%w: undefined %s on %v and %v", ErrAbort, op, x, y)
		}
		if r.Type().Equal(ir.Bool) {
			return r.Bool, nil
		}
		return r.Int, nil
	}
	// references are compared by identity
	switch op {
	case ir.BinEq:
		return x == y, nil
	case ir.BinNe:
		return x != y, nil
	}
	return nil, fmt.Errorf("%s is not defined on %T and %T", op, x, y)
}

func toConst(v Value) (*ir.Const, bool) {
	switch x := v.(type) {
	case int64:
		return ir.NewInt(x), true
	case bool:
		return ir.NewBool(x), true
	}
	return nil, false
}
