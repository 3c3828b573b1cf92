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

import "fmt"

// A BasicBlock is a sequence of instructions: joins first, then ordinary instructions, then exactly one terminator.
//
// Preds holds one entry per incoming edge. Successors are the targets of the terminator.
type BasicBlock struct {
	// Index is the position of the block in its function, as assigned by Function.Renumber
	Index int

	// Comment describes the block, e.g. "for.body"
	Comment string

	// Instrs are the instructions of the block, in execution order
	Instrs []*Instruction

	// Preds are the predecessors of the block
	Preds []*BasicBlock

	// Peeled marks loop headers that have already been peeled or unrolled
	Peeled bool

	id     int
	parent *Function
}

// Parent returns the function containing the block
func (b *BasicBlock) Parent() *Function { return b.parent }

// Name returns the label of the block
func (b *BasicBlock) Name() string { return fmt.Sprintf("b%d", b.id) }

func (b *BasicBlock) String() string {
	if b.Comment != "" {
		return b.Name() + " (" + b.Comment + ")"
	}
	return b.Name()
}

// Terminator returns the last instruction of the block if it is a branch or return, nil otherwise.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// Succs returns the successors of the block.
func (b *BasicBlock) Succs() []*BasicBlock {
	t := b.Terminator()
	if t == nil || t.Op != OpBranch {
		return nil
	}
	return t.Targets
}

// Joins returns the join instructions at the head of the block
func (b *BasicBlock) Joins() []*Instruction {
	n := 0
	for n < len(b.Instrs) && b.Instrs[n].Op == OpJoin {
		n++
	}
	return b.Instrs[:n]
}

// HasPred returns true if p is a predecessor of b
func (b *BasicBlock) HasPred(p *BasicBlock) bool {
	for _, x := range b.Preds {
		if x == p {
			return true
		}
	}
	return false
}

// HasSucc returns true if s is a successor of b
func (b *BasicBlock) HasSucc(s *BasicBlock) bool {
	for _, x := range b.Succs() {
		if x == s {
			return true
		}
	}
	return false
}

// Append adds an instruction at the end of the block. Branch targets gain b as predecessor.
func (b *BasicBlock) Append(i *Instruction) *Instruction {
	b.attach(i)
	b.Instrs = append(b.Instrs, i)
	return i
}

// InsertBefore inserts i right before pos, which must be in b.
func (b *BasicBlock) InsertBefore(pos *Instruction, i *Instruction) *Instruction {
	for k, x := range b.Instrs {
		if x == pos {
			b.attach(i)
			b.Instrs = append(b.Instrs, nil)
			copy(b.Instrs[k+1:], b.Instrs[k:])
			b.Instrs[k] = i
			return i
		}
	}
	panic(fmt.Sprintf("%s is not in block %s", pos, b))
}

// InsertJoin inserts a join at the head of the block
func (b *BasicBlock) InsertJoin(j *Instruction) *Instruction {
	if len(b.Instrs) == 0 {
		return b.Append(j)
	}
	return b.InsertBefore(b.Instrs[0], j)
}

func (b *BasicBlock) attach(i *Instruction) {
	if i.block != nil {
		panic(fmt.Sprintf("%s is already in block %s", i, i.block))
	}
	i.block = b
	if i.id < 0 && b.parent != nil {
		i.id = b.parent.newID()
	}
	if i.Op == OpBranch {
		for _, t := range i.Targets {
			t.addPred(b)
		}
	}
}

func (b *BasicBlock) remove(i *Instruction) {
	for k, x := range b.Instrs {
		if x == i {
			b.Instrs = append(b.Instrs[:k], b.Instrs[k+1:]...)
			return
		}
	}
}

// takeTail moves the instructions after pos (excluded) out of b and returns them, detached.
func (b *BasicBlock) takeTail(pos *Instruction) []*Instruction {
	for k, x := range b.Instrs {
		if x == pos {
			tail := append([]*Instruction(nil), b.Instrs[k+1:]...)
			b.Instrs = b.Instrs[:k+1]
			return tail
		}
	}
	return nil
}

func (b *BasicBlock) addPred(p *BasicBlock) {
	b.Preds = append(b.Preds, p)
}

func (b *BasicBlock) removePred(p *BasicBlock) {
	for k, x := range b.Preds {
		if x == p {
			b.Preds = append(b.Preds[:k], b.Preds[k+1:]...)
			return
		}
	}
}

func (b *BasicBlock) replacePred(old, nb *BasicBlock) {
	for k, x := range b.Preds {
		if x == old {
			b.Preds[k] = nb
		}
	}
}
