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

// A Function is a control-flow graph of basic blocks. Blocks[0] is the entry block. A function without blocks is
// an external declaration.
type Function struct {
	referrers

	// Params are the formal parameters of the function
	Params []*Arg

	// Result is the type returned by the function, Void if it returns nothing
	Result *Type

	// Blocks are the blocks of the function, the entry first
	Blocks []*BasicBlock

	// Exported functions may be called from outside the program
	Exported bool

	// RecursionFree is set by the call graph analysis for functions that can never reach themselves
	RecursionFree bool

	name     string
	handleOp HandleOp
	prog     *Program
	nextID   int
	nextBlk  int
}

// Name returns the symbol of the function
func (f *Function) Name() string { return "@" + f.name }

// RawName returns the name of the function without decoration
func (f *Function) RawName() string { return f.name }

// Type returns the type of function values
func (f *Function) Type() *Type { return Func }

// Program returns the program declaring the function
func (f *Function) Program() *Program { return f.prog }

// HandleOp returns which runtime operation the function is, NotHandleOp for ordinary functions.
func (f *Function) HandleOp() HandleOp { return f.handleOp }

// IsExternal returns true for declarations
func (f *Function) IsExternal() bool { return len(f.Blocks) == 0 }

// Entry returns the entry block, nil for declarations
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// AddParam appends a formal parameter.
func (f *Function) AddParam(name string, t *Type) *Arg {
	if name == "" {
		name = fmt.Sprintf("p%d", len(f.Params))
	}
	a := &Arg{parent: f, index: len(f.Params), name: name, typ: t}
	f.Params = append(f.Params, a)
	return a
}

// NewBlock appends a new empty block to the function.
func (f *Function) NewBlock(comment string) *BasicBlock {
	b := &BasicBlock{Comment: comment, parent: f, id: f.nextBlk, Index: len(f.Blocks)}
	f.nextBlk++
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Function) newID() int {
	id := f.nextID
	f.nextID++
	return id
}

// Renumber assigns consecutive indexes to blocks and instructions, in block order. It returns the number of
// instructions.
func (f *Function) Renumber() int {
	n := 0
	for bi, b := range f.Blocks {
		b.Index = bi
		for _, i := range b.Instrs {
			i.Index = n
			n++
		}
	}
	return n
}

// Instructions returns all instructions of the function in block order.
func (f *Function) Instructions() []*Instruction {
	var all []*Instruction
	for _, b := range f.Blocks {
		all = append(all, b.Instrs...)
	}
	return all
}

// InstrCount returns the number of instructions in the function
func (f *Function) InstrCount() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}

// Calls returns the call instructions of the function
func (f *Function) Calls() []*Instruction {
	var calls []*Instruction
	for _, b := range f.Blocks {
		for _, i := range b.Instrs {
			if i.Op == OpCall {
				calls = append(calls, i)
			}
		}
	}
	return calls
}

// Returns returns the return instructions of the function
func (f *Function) Returns() []*Instruction {
	var rets []*Instruction
	for _, b := range f.Blocks {
		if t := b.Terminator(); t != nil && t.Op == OpReturn {
			rets = append(rets, t)
		}
	}
	return rets
}

// SplitAfter moves the instructions following pos into a new block and returns it. The successors of pos's block
// become successors of the new block, and their joins are updated accordingly. pos's block is left without
// terminator.
func (f *Function) SplitAfter(pos *Instruction) *BasicBlock {
	b := pos.block
	tail := b.takeTail(pos)
	nb := f.NewBlock(b.Comment)
	for _, i := range tail {
		i.block = nb
		nb.Instrs = append(nb.Instrs, i)
	}
	for _, s := range nb.Succs() {
		s.replacePred(b, nb)
		for _, j := range s.Joins() {
			j.ReplaceIncomingBlock(b, nb)
		}
	}
	return nb
}

// RemoveBlocks deletes the blocks in dead from the function. Edges from dead blocks to live blocks are removed
// together with the matching join entries. Instructions of dead blocks must only be used inside dead blocks.
func (f *Function) RemoveBlocks(dead map[*BasicBlock]bool) {
	if len(dead) == 0 {
		return
	}
	for b := range dead {
		for _, s := range b.Succs() {
			if dead[s] {
				continue
			}
			s.removePred(b)
			for _, j := range s.Joins() {
				j.RemoveIncoming(b)
			}
		}
	}
	for b := range dead {
		for _, i := range b.Instrs {
			i.dropOperands()
		}
	}
	for b := range dead {
		for _, i := range b.Instrs {
			i.refs = nil
			i.block = nil
		}
		b.Instrs = nil
		b.Preds = nil
	}
	live := f.Blocks[:0]
	for _, b := range f.Blocks {
		if !dead[b] {
			live = append(live, b)
		}
	}
	for k := len(live); k < len(f.Blocks); k++ {
		f.Blocks[k] = nil
	}
	f.Blocks = live
	f.Renumber()
}

func (f *Function) signature() string {
	params := make([]string, len(f.Params))
	for k, p := range f.Params {
		params[k] = p.String()
	}
	s := fmt.Sprintf("func %s(%s)", f.Name(), strings.Join(params, ", "))
	if !f.Result.Equal(Void) {
		s += " " + f.Result.String()
	}
	return s
}

// String returns the textual form of the whole function
func (f *Function) String() string {
	var sb strings.Builder
	sb.WriteString(f.signature())
	if f.IsExternal() {
		return sb.String()
	}
	sb.WriteString(" {\n")
	for _, b := range f.Blocks {
		fmt.Fprintf(&sb, "%s:", b.Name())
		if b.Comment != "" {
			fmt.Fprintf(&sb, " ; %s", b.Comment)
		}
		if len(b.Preds) > 0 {
			preds := make([]string, len(b.Preds))
			for k, p := range b.Preds {
				preds[k] = p.Name()
			}
			fmt.Fprintf(&sb, " ; preds %s", strings.Join(preds, " "))
		}
		sb.WriteString("\n")
		for _, i := range b.Instrs {
			sb.WriteString("  " + i.String() + "\n")
		}
	}
	sb.WriteString("}")
	return sb.String()
}
