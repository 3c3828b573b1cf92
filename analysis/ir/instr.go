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
	"strings"
)

// Opcode is the tag of an Instruction.
type Opcode int

const (
	// OpCall calls Callee with the operands as arguments. When Callee is nil the call is indirect and the first
	// operand is the function value being called.
	OpCall Opcode = iota
	// OpLoad reads the slot pointed to by its single operand
	OpLoad
	// OpStore writes operand 1 into the slot pointed to by operand 0
	OpStore
	// OpJoin merges one operand per predecessor, Incoming[i] being the predecessor of operand i
	OpJoin
	// OpBranch jumps to Targets[0], or to Targets[0]/Targets[1] depending on its optional condition operand
	OpBranch
	// OpReturn returns from the function with its optional operand
	OpReturn
	// OpAlloc allocates a fresh slot of type Elem each time it executes
	OpAlloc
	// OpBinOp applies BinOp to its two operands
	OpBinOp
	// OpCast converts its operand to the instruction type
	OpCast
)

var opcodeNames = [...]string{
	OpCall:   "call",
	OpLoad:   "load",
	OpStore:  "store",
	OpJoin:   "join",
	OpBranch: "br",
	OpReturn: "ret",
	OpAlloc:  "alloc",
	OpBinOp:  "binop",
	OpCast:   "cast",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("opcode(%d)", int(o))
}

// BinOp is an arithmetic or comparison operator.
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

var binOpNames = [...]string{"add", "sub", "mul", "div", "rem", "and", "or", "xor", "shl", "shr",
	"eq", "ne", "lt", "le", "gt", "ge"}

func (b BinOp) String() string {
	if int(b) < len(binOpNames) {
		return binOpNames[b]
	}
	return fmt.Sprintf("binop(%d)", int(b))
}

// IsComparison returns true for operators producing a boolean
func (b BinOp) IsComparison() bool {
	return b >= BinEq
}

// HandleOp identifies the five operations of the handle runtime.
type HandleOp int

const (
	// NotHandleOp is the HandleOp of every function that is not part of the runtime
	NotHandleOp HandleOp = iota
	// HandleNew allocates a handle initialized with its argument
	HandleNew
	// HandleGet reads the value of a handle
	HandleGet
	// HandleSet overwrites the value of a handle
	HandleSet
	// HandleAdd stores the sum of operands 1 and 2 into operand 0
	HandleAdd
	// HandleSub stores the difference of operands 1 and 2 into operand 0
	HandleSub
)

var handleOpNames = [...]string{"", "New", "Get", "Set", "Add", "Sub"}

func (h HandleOp) String() string {
	if int(h) < len(handleOpNames) {
		return handleOpNames[h]
	}
	return fmt.Sprintf("handleop(%d)", int(h))
}

// An Instruction is a tagged variant over the opcodes. Fields that are irrelevant for an opcode are zero.
type Instruction struct {
	referrers

	Op Opcode

	// Index is the position of the instruction in its function, as assigned by Function.Renumber. Analyses use it
	// as the instruction's bitset position; it is only valid until the next structural change.
	Index int

	// Callee is the function called by a direct call
	Callee *Function

	// BinOp is the operator of an OpBinOp instruction
	BinOp BinOp

	// Elem is the type of the slot allocated by an OpAlloc instruction
	Elem *Type

	// Incoming lists the predecessors of a join, parallel to its operands
	Incoming []*BasicBlock

	// Targets lists the successors of a branch
	Targets []*BasicBlock

	// Comment is free text printed after the instruction
	Comment string

	id       int
	typ      *Type
	operands []Value
	block    *BasicBlock
}

func newInstruction(op Opcode, typ *Type, operands ...Value) *Instruction {
	i := &Instruction{Op: op, typ: typ, id: -1}
	for _, v := range operands {
		i.appendOperand(v)
	}
	return i
}

// Type returns the type of the value produced by the instruction
func (i *Instruction) Type() *Type { return i.typ }

// Name returns the register name of the instruction
func (i *Instruction) Name() string {
	if i.id < 0 {
		return "%?"
	}
	return fmt.Sprintf("%%%d", i.id)
}

// Block returns the block containing the instruction, nil once erased
func (i *Instruction) Block() *BasicBlock { return i.block }

// Parent returns the function containing the instruction
func (i *Instruction) Parent() *Function {
	if i.block == nil {
		return nil
	}
	return i.block.parent
}

// Operands returns the operands of the instruction. The slice must not be modified.
func (i *Instruction) Operands() []Value { return i.operands }

// Operand returns operand k
func (i *Instruction) Operand(k int) Value { return i.operands[k] }

// NumOperands returns the number of operands
func (i *Instruction) NumOperands() int { return len(i.operands) }

// SetOperand replaces operand k by v, updating use lists.
func (i *Instruction) SetOperand(k int, v Value) {
	if old, ok := i.operands[k].(Referrable); ok {
		old.removeReferrer(i)
	}
	i.operands[k] = v
	if r, ok := v.(Referrable); ok {
		r.addReferrer(i)
	}
}

func (i *Instruction) appendOperand(v Value) {
	i.operands = append(i.operands, v)
	if r, ok := v.(Referrable); ok {
		r.addReferrer(i)
	}
}

func (i *Instruction) removeOperand(k int) {
	if old, ok := i.operands[k].(Referrable); ok {
		old.removeReferrer(i)
	}
	i.operands = append(i.operands[:k], i.operands[k+1:]...)
}

func (i *Instruction) dropOperands() {
	for k := range i.operands {
		if old, ok := i.operands[k].(Referrable); ok {
			old.removeReferrer(i)
		}
	}
	i.operands = nil
}

// HandleOp returns which handle operation the instruction calls, or NotHandleOp.
func (i *Instruction) HandleOp() HandleOp {
	if i.Op != OpCall || i.Callee == nil {
		return NotHandleOp
	}
	return i.Callee.handleOp
}

// IsHandleOp returns true if the instruction is a call to one of the runtime operations.
func (i *Instruction) IsHandleOp() bool {
	return i.HandleOp() != NotHandleOp
}

// IsOpaqueCall returns true for calls that are not handle operations, direct or indirect.
func (i *Instruction) IsOpaqueCall() bool {
	return i.Op == OpCall && i.HandleOp() == NotHandleOp
}

// IsRedefinition returns true for Set, Add and Sub.
func (i *Instruction) IsRedefinition() bool {
	switch i.HandleOp() {
	case HandleSet, HandleAdd, HandleSub:
		return true
	}
	return false
}

// IsDefinitionSite returns true when the instruction creates or redefines a handle's value: New, Set, Add, Sub, or
// a join of handles.
func (i *Instruction) IsDefinitionSite() bool {
	if i.Op == OpJoin {
		return i.typ.IsHandle()
	}
	return i.HandleOp() == HandleNew || i.IsRedefinition()
}

// RedefinedHandle returns the handle whose value a definition site changes: the instruction itself for New and
// Join, the first operand for Set, Add and Sub. Returns nil for any other instruction.
func (i *Instruction) RedefinedHandle() Value {
	switch {
	case i.HandleOp() == HandleNew:
		return i
	case i.IsRedefinition():
		return i.operands[0]
	case i.Op == OpJoin && i.typ.IsHandle():
		return i
	}
	return nil
}

// IsTerminator returns true for branches and returns
func (i *Instruction) IsTerminator() bool {
	return i.Op == OpBranch || i.Op == OpReturn
}

// Args returns the arguments of a call.
func (i *Instruction) Args() []Value {
	if i.Op != OpCall {
		return nil
	}
	if i.Callee == nil {
		return i.operands[1:]
	}
	return i.operands
}

// ArgOperandIndex returns the operand index of argument k of a call
func (i *Instruction) ArgOperandIndex(k int) int {
	if i.Callee == nil {
		return k + 1
	}
	return k
}

// CalleeValue returns the function value called by an indirect call
func (i *Instruction) CalleeValue() Value {
	if i.Op != OpCall || i.Callee != nil {
		return nil
	}
	return i.operands[0]
}

// Cond returns the condition of a conditional branch, nil for jumps
func (i *Instruction) Cond() Value {
	if i.Op != OpBranch || len(i.operands) == 0 {
		return nil
	}
	return i.operands[0]
}

// IncomingValue returns the value a join receives from pred, or nil if pred is not an incoming block.
func (i *Instruction) IncomingValue(pred *BasicBlock) Value {
	for k, b := range i.Incoming {
		if b == pred {
			return i.operands[k]
		}
	}
	return nil
}

// AddIncoming adds an entry to a join
func (i *Instruction) AddIncoming(pred *BasicBlock, v Value) {
	i.Incoming = append(i.Incoming, pred)
	i.appendOperand(v)
}

// RemoveIncoming removes the entry of pred from a join. It returns false if pred was not an incoming block.
func (i *Instruction) RemoveIncoming(pred *BasicBlock) bool {
	for k, b := range i.Incoming {
		if b == pred {
			i.Incoming = append(i.Incoming[:k], i.Incoming[k+1:]...)
			i.removeOperand(k)
			return true
		}
	}
	return false
}

// ReplaceIncomingBlock renames the incoming block old to nb.
func (i *Instruction) ReplaceIncomingBlock(old, nb *BasicBlock) {
	for k, b := range i.Incoming {
		if b == old {
			i.Incoming[k] = nb
		}
	}
}

// ReplaceTarget redirects the edges of a branch going to old so that they go to nb, updating predecessor lists.
// Join entries are left untouched.
func (i *Instruction) ReplaceTarget(old, nb *BasicBlock) {
	found := false
	for k, t := range i.Targets {
		if t == old {
			i.Targets[k] = nb
			found = true
		}
	}
	if !found || i.block == nil {
		return
	}
	old.removePred(i.block)
	nb.addPred(i.block)
	if len(i.Targets) == 2 && i.Targets[0] == i.Targets[1] {
		// both edges now reach nb: keep a single one
		nb.removePred(i.block)
		i.makeJump(nb)
	}
}

// MakeJump turns a branch into an unconditional jump to target. Edges to the other targets are removed and the
// joins of those targets lose their entry for the branch block.
func (i *Instruction) MakeJump(target *BasicBlock) {
	for _, t := range i.Targets {
		if t != target {
			t.removePred(i.block)
			for _, j := range t.Joins() {
				j.RemoveIncoming(i.block)
			}
		}
	}
	i.makeJump(target)
}

func (i *Instruction) makeJump(target *BasicBlock) {
	if len(i.operands) > 0 {
		i.dropOperands()
	}
	i.Targets = []*BasicBlock{target}
}

// ReplaceAllUsesWith rewrites every use of the instruction's value into a use of v.
func (i *Instruction) ReplaceAllUsesWith(v Value) {
	ReplaceAllUses(i, v)
}

// ReplaceWithValue replaces all uses of the instruction by v and erases it.
func (i *Instruction) ReplaceWithValue(v Value) {
	i.ReplaceAllUsesWith(v)
	i.Erase()
}

// Erase removes the instruction from its block and releases its operands. The instruction must not have any
// remaining uses.
func (i *Instruction) Erase() {
	if len(i.refs) > 0 {
		panic(fmt.Sprintf("erasing %s which still has %d uses", i, len(i.refs)))
	}
	if i.block != nil {
		if i.Op == OpBranch {
			for _, t := range i.Targets {
				t.removePred(i.block)
			}
		}
		i.block.remove(i)
	}
	i.dropOperands()
	i.block = nil
}

func (i *Instruction) String() string {
	var sb strings.Builder
	if !i.typ.Equal(Void) {
		sb.WriteString(i.Name())
		sb.WriteString(" = ")
	}
	names := func(vals []Value) string {
		s := make([]string, len(vals))
		for k, v := range vals {
			s[k] = v.Name()
		}
		return strings.Join(s, ", ")
	}
	switch i.Op {
	case OpCall:
		if i.Callee != nil {
			fmt.Fprintf(&sb, "call %s(%s)", i.Callee.Name(), names(i.operands))
		} else {
			fmt.Fprintf(&sb, "call %s(%s)", i.operands[0].Name(), names(i.operands[1:]))
		}
	case OpLoad:
		fmt.Fprintf(&sb, "load %s", i.operands[0].Name())
	case OpStore:
		fmt.Fprintf(&sb, "store %s -> %s", i.operands[1].Name(), i.operands[0].Name())
	case OpJoin:
		entries := make([]string, len(i.Incoming))
		for k, b := range i.Incoming {
			entries[k] = fmt.Sprintf("%s: %s", b.Name(), i.operands[k].Name())
		}
		fmt.Fprintf(&sb, "join %s [%s]", i.typ, strings.Join(entries, ", "))
	case OpBranch:
		if c := i.Cond(); c != nil {
			fmt.Fprintf(&sb, "br %s %s %s", c.Name(), i.Targets[0].Name(), i.Targets[1].Name())
		} else {
			fmt.Fprintf(&sb, "jump %s", i.Targets[0].Name())
		}
	case OpReturn:
		sb.WriteString("ret")
		if len(i.operands) > 0 {
			sb.WriteString(" " + i.operands[0].Name())
		}
	case OpAlloc:
		fmt.Fprintf(&sb, "alloc %s", i.Elem)
	case OpBinOp:
		fmt.Fprintf(&sb, "%s %s %s", i.BinOp, i.operands[0].Name(), i.operands[1].Name())
	case OpCast:
		fmt.Fprintf(&sb, "cast %s %s", i.typ, i.operands[0].Name())
	}
	if i.Comment != "" {
		sb.WriteString(" ; " + i.Comment)
	}
	return sb.String()
}
