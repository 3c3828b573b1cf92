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
	"fmt"
	"strconv"
)

// A Value is anything that can be an operand of an instruction.
//
// The implementations are *Instruction, *Arg, *Const, *Global and *Function.
type Value interface {
	// Type returns the type of the value
	Type() *Type
	// Name returns the short name of the value as it appears in operand position
	Name() string
	String() string
}

// Referrable values keep track of the instructions that use them as operand.
type Referrable interface {
	Value
	// Referrers returns the instructions using the value, one entry per operand slot
	Referrers() []*Instruction
	addReferrer(i *Instruction)
	removeReferrer(i *Instruction)
}

type referrers struct {
	refs []*Instruction
}

func (r *referrers) Referrers() []*Instruction {
	return r.refs
}

func (r *referrers) addReferrer(i *Instruction) {
	r.refs = append(r.refs, i)
}

func (r *referrers) removeReferrer(i *Instruction) {
	for k, x := range r.refs {
		if x == i {
			r.refs = append(r.refs[:k], r.refs[k+1:]...)
			return
		}
	}
}

// Users returns the distinct instructions using v, in order of first use. Constants have no users.
func Users(v Value) []*Instruction {
	r, ok := v.(Referrable)
	if !ok {
		return nil
	}
	seen := make(map[*Instruction]bool, len(r.Referrers()))
	var users []*Instruction
	for _, u := range r.Referrers() {
		if !seen[u] {
			seen[u] = true
			users = append(users, u)
		}
	}
	return users
}

// HasUses returns true when some instruction uses v.
func HasUses(v Value) bool {
	r, ok := v.(Referrable)
	return ok && len(r.Referrers()) > 0
}

// ReplaceAllUses rewrites every operand slot holding old to hold v instead.
func ReplaceAllUses(old Referrable, v Value) {
	if old == v {
		return
	}
	users := append([]*Instruction(nil), old.Referrers()...)
	for _, u := range users {
		for k, op := range u.operands {
			if op == old {
				u.SetOperand(k, v)
			}
		}
	}
}

// A Const is an immediate integer, boolean or null pointer/handle.
type Const struct {
	typ  *Type
	Int  int64
	Bool bool
}

// NewInt returns an integer constant
func NewInt(v int64) *Const {
	return &Const{typ: Int, Int: v}
}

// NewBool returns a boolean constant
func NewBool(b bool) *Const {
	return &Const{typ: Bool, Bool: b}
}

// Null returns the null value of a handle, pointer or function type.
func Null(t *Type) *Const {
	return &Const{typ: t}
}

// IsNull returns true for the null handle, pointer or function value.
func (c *Const) IsNull() bool {
	switch c.typ.kind {
	case KindHandle, KindPointer, KindFunc:
		return true
	}
	return false
}

// Type returns the type of the constant
func (c *Const) Type() *Type { return c.typ }

// Name returns the literal text of the constant
func (c *Const) Name() string {
	switch c.typ.kind {
	case KindInt:
		return strconv.FormatInt(c.Int, 10)
	case KindBool:
		return strconv.FormatBool(c.Bool)
	}
	return "null"
}

func (c *Const) String() string { return c.Name() }

// SameConst returns true when a and b are both constants with the same type and value.
func SameConst(a, b Value) bool {
	ca, ok1 := a.(*Const)
	cb, ok2 := b.(*Const)
	if !ok1 || !ok2 || !ca.typ.Equal(cb.typ) {
		return false
	}
	return ca.Int == cb.Int && ca.Bool == cb.Bool
}

// IntValue returns the integer held by v if v is an integer constant.
func IntValue(v Value) (int64, bool) {
	if c, ok := v.(*Const); ok && c.typ.kind == KindInt {
		return c.Int, true
	}
	return 0, false
}

// IsNullHandle returns true if v is the null handle constant.
func IsNullHandle(v Value) bool {
	c, ok := v.(*Const)
	return ok && c.typ.IsHandle()
}

// An Arg is a formal parameter of a function.
type Arg struct {
	referrers
	parent *Function
	index  int
	name   string
	typ    *Type
}

// Parent returns the function declaring the parameter
func (a *Arg) Parent() *Function { return a.parent }

// Index returns the position of the parameter
func (a *Arg) Index() int { return a.index }

func (a *Arg) Type() *Type { return a.typ }

func (a *Arg) Name() string { return "%" + a.name }

func (a *Arg) String() string { return fmt.Sprintf("%s %s", a.Name(), a.typ) }

// A Global is a process-level memory slot. Globals are the escaping storage of a program: any value stored into
// a global or loaded from it is observable by code outside the current function.
type Global struct {
	referrers
	name string
	elem *Type
	typ  *Type
}

// Elem returns the type of the value held by the global slot
func (g *Global) Elem() *Type { return g.elem }

func (g *Global) Type() *Type { return g.typ }

func (g *Global) Name() string { return "@" + g.name }

func (g *Global) String() string { return fmt.Sprintf("global %s %s", g.Name(), g.elem) }
