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

// A Builder appends instructions at the end of a current block.
type Builder struct {
	fn    *Function
	block *BasicBlock
}

// NewBuilder returns a builder for fn. If fn has no block yet, an entry block is created.
func NewBuilder(fn *Function) *Builder {
	b := &Builder{fn: fn}
	if len(fn.Blocks) == 0 {
		b.block = fn.NewBlock("entry")
	} else {
		b.block = fn.Blocks[len(fn.Blocks)-1]
	}
	return b
}

// Function returns the function being built
func (b *Builder) Function() *Function { return b.fn }

// Block returns the current block
func (b *Builder) Block() *BasicBlock { return b.block }

// SetBlock makes blk the current block
func (b *Builder) SetBlock(blk *BasicBlock) { b.block = blk }

// NewBlock creates a block without changing the current block
func (b *Builder) NewBlock(comment string) *BasicBlock { return b.fn.NewBlock(comment) }

func (b *Builder) emit(i *Instruction) *Instruction {
	return b.block.Append(i)
}

func (b *Builder) op(op HandleOp) *Function {
	return b.fn.prog.Op(op)
}

// New emits a call creating a handle initialized with v
func (b *Builder) New(v Value) *Instruction {
	return b.Call(b.op(HandleNew), v)
}

// Get emits a call reading handle h
func (b *Builder) Get(h Value) *Instruction {
	return b.Call(b.op(HandleGet), h)
}

// Set emits a call overwriting handle h with v
func (b *Builder) Set(h Value, v Value) *Instruction {
	return b.Call(b.op(HandleSet), h, v)
}

// Add emits dest = x + y on handles
func (b *Builder) Add(dest, x, y Value) *Instruction {
	return b.Call(b.op(HandleAdd), dest, x, y)
}

// Sub emits dest = x - y on handles
func (b *Builder) Sub(dest, x, y Value) *Instruction {
	return b.Call(b.op(HandleSub), dest, x, y)
}

// Call emits a direct call
func (b *Builder) Call(callee *Function, args ...Value) *Instruction {
	i := NewCall(callee, args...)
	return b.emit(i)
}

// CallIndirect emits a call through a function value
func (b *Builder) CallIndirect(callee Value, result *Type, args ...Value) *Instruction {
	i := newInstruction(OpCall, result, append([]Value{callee}, args...)...)
	return b.emit(i)
}

// Load emits a read of the slot ptr
func (b *Builder) Load(ptr Value) *Instruction {
	return b.emit(newInstruction(OpLoad, ptr.Type().Elem(), ptr))
}

// Store emits a write of v into the slot ptr
func (b *Builder) Store(ptr, v Value) *Instruction {
	return b.emit(newInstruction(OpStore, Void, ptr, v))
}

// Alloc emits the allocation of a slot holding values of type elem
func (b *Builder) Alloc(elem *Type) *Instruction {
	i := newInstruction(OpAlloc, PointerTo(elem))
	i.Elem = elem
	return b.emit(i)
}

// BinOp emits an arithmetic or comparison instruction
func (b *Builder) BinOp(op BinOp, x, y Value) *Instruction {
	return b.emit(NewBinOp(op, x, y))
}

// Cast emits a conversion of x to type t
func (b *Builder) Cast(x Value, t *Type) *Instruction {
	return b.emit(newInstruction(OpCast, t, x))
}

// Join emits an empty join of type t at the head of the current block. Entries are added with AddIncoming.
func (b *Builder) Join(t *Type) *Instruction {
	return b.block.InsertJoin(NewJoin(t))
}

// Jump terminates the current block with an unconditional branch
func (b *Builder) Jump(target *BasicBlock) *Instruction {
	return b.emit(NewJump(target))
}

// If terminates the current block with a conditional branch. Identical targets produce a jump.
func (b *Builder) If(cond Value, then, els *BasicBlock) *Instruction {
	if then == els {
		return b.Jump(then)
	}
	i := newInstruction(OpBranch, Void, cond)
	i.Targets = []*BasicBlock{then, els}
	return b.emit(i)
}

// Return terminates the current block. v may be nil.
func (b *Builder) Return(v Value) *Instruction {
	return b.emit(NewReturn(v))
}

// NewCall returns a detached direct call instruction
func NewCall(callee *Function, args ...Value) *Instruction {
	i := newInstruction(OpCall, callee.Result, args...)
	i.Callee = callee
	return i
}

// NewBinOp returns a detached arithmetic or comparison instruction
func NewBinOp(op BinOp, x, y Value) *Instruction {
	t := x.Type()
	if op.IsComparison() {
		t = Bool
	}
	i := newInstruction(OpBinOp, t, x, y)
	i.BinOp = op
	return i
}

// NewJoin returns a detached join without entries
func NewJoin(t *Type) *Instruction {
	return newInstruction(OpJoin, t)
}

// NewJump returns a detached unconditional branch
func NewJump(target *BasicBlock) *Instruction {
	i := newInstruction(OpBranch, Void)
	i.Targets = []*BasicBlock{target}
	return i
}

// NewReturn returns a detached return instruction. v may be nil.
func NewReturn(v Value) *Instruction {
	if v == nil {
		return newInstruction(OpReturn, Void)
	}
	return newInstruction(OpReturn, Void, v)
}

// NewInstruction returns a detached instruction with the given opcode, type and operands. It is meant for
// frontends that fill the opcode-specific fields themselves.
func NewInstruction(op Opcode, t *Type, operands ...Value) *Instruction {
	i := newInstruction(op, t, operands...)
	if op == OpAlloc && t.IsPointer() {
		i.Elem = t.Elem()
	}
	return i
}
