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
	"errors"
	"fmt"
)

// Verify checks the structural invariants of the function: terminators, join placement, predecessor lists
// matching the branches, join entries matching the predecessors, and use lists matching the operands.
func (f *Function) Verify() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]any{f.Name()}, args...)...))
	}
	inFunc := make(map[*BasicBlock]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		inFunc[b] = true
	}
	edges := map[[2]*BasicBlock]int{}
	for _, b := range f.Blocks {
		if b.parent != f {
			fail("block %s has wrong parent", b)
		}
		if b.Terminator() == nil {
			fail("block %s has no terminator", b)
		}
		for k, i := range b.Instrs {
			if i.block != b {
				fail("%s in %s has wrong block", i, b)
			}
			if i.IsTerminator() && k != len(b.Instrs)-1 {
				fail("terminator %s in the middle of %s", i, b)
			}
			if i.Op == OpJoin && k > 0 && b.Instrs[k-1].Op != OpJoin {
				fail("join %s is not at the head of %s", i, b)
			}
			for _, v := range i.operands {
				if v == nil {
					fail("%s has a nil operand", i)
					continue
				}
				if r, ok := v.(Referrable); ok && !containsInstr(r.Referrers(), i) {
					fail("%s is missing from the uses of %s", i, v.Name())
				}
				switch x := v.(type) {
				case *Instruction:
					if x.block == nil || x.block.parent != f {
						fail("%s uses %s which is not in the function", i, x)
					}
				case *Arg:
					if x.parent != f {
						fail("%s uses parameter %s of another function", i, x.Name())
					}
				}
			}
			for _, t := range i.Targets {
				if !inFunc[t] {
					fail("%s targets %s outside of the function", i, t)
				}
				edges[[2]*BasicBlock{b, t}]++
			}
			if i.Op == OpJoin {
				if len(i.Incoming) != len(i.operands) {
					fail("join %s has %d blocks for %d values", i, len(i.Incoming), len(i.operands))
				}
				if !sameBlocks(i.Incoming, b.Preds) {
					fail("join %s entries do not match the predecessors of %s", i, b)
				}
			}
		}
	}
	for _, b := range f.Blocks {
		for _, p := range b.Preds {
			edges[[2]*BasicBlock{p, b}]--
		}
	}
	for e, n := range edges {
		if n != 0 {
			fail("edge %s -> %s does not match the predecessor list", e[0], e[1])
		}
	}
	return errors.Join(errs...)
}

// Verify checks every defined function of the program
func (p *Program) Verify() error {
	var errs []error
	for _, f := range p.Functions {
		if err := f.Verify(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func containsInstr(instrs []*Instruction, i *Instruction) bool {
	for _, x := range instrs {
		if x == i {
			return true
		}
	}
	return false
}

func sameBlocks(a, b []*BasicBlock) bool {
	if len(a) != len(b) {
		return false
	}
	count := map[*BasicBlock]int{}
	for _, x := range a {
		count[x]++
	}
	for _, x := range b {
		count[x]--
	}
	for _, n := range count {
		if n != 0 {
			return false
		}
	}
	return true
}
