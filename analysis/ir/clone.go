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

// CloneBlocks copies blocks at the end of dst and returns the mapping from original to copied blocks.
//
// vmap is used to translate operands and is extended with the mapping from original to copied instructions; values
// absent from vmap are used as-is. Branch targets and join entries referring to blocks outside the cloned set are
// kept: the caller is responsible for adding the matching join entries in outside targets.
func CloneBlocks(dst *Function, blocks []*BasicBlock, vmap map[Value]Value) map[*BasicBlock]*BasicBlock {
	bmap := make(map[*BasicBlock]*BasicBlock, len(blocks))
	for _, b := range blocks {
		nb := dst.NewBlock(b.Comment)
		nb.Peeled = b.Peeled
		bmap[b] = nb
	}
	for _, b := range blocks {
		for _, i := range b.Instrs {
			vmap[i] = &Instruction{
				Op:      i.Op,
				Callee:  i.Callee,
				BinOp:   i.BinOp,
				Elem:    i.Elem,
				Comment: i.Comment,
				typ:     i.typ,
				id:      -1,
			}
		}
	}
	mapBlock := func(b *BasicBlock) *BasicBlock {
		if nb, ok := bmap[b]; ok {
			return nb
		}
		return b
	}
	for _, b := range blocks {
		nb := bmap[b]
		for _, i := range b.Instrs {
			c := vmap[i].(*Instruction)
			for _, v := range i.operands {
				if m, ok := vmap[v]; ok {
					c.appendOperand(m)
				} else {
					c.appendOperand(v)
				}
			}
			for _, in := range i.Incoming {
				c.Incoming = append(c.Incoming, mapBlock(in))
			}
			for _, t := range i.Targets {
				c.Targets = append(c.Targets, mapBlock(t))
			}
			nb.Append(c)
		}
	}
	return bmap
}
