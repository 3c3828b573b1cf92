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

// Package summaries computes the interprocedural constants of a program: the constant returned by a function, and
// the constants received by the parameters of functions that have a single call site.
//
// Summaries are computed callees first, for a bounded number of rounds. A round may use the facts established by
// the previous rounds, and facts are never retracted, so every round can only add facts.
package summaries

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/cat-optimizer/analysis/alias"
	"github.com/awslabs/cat-optimizer/analysis/callgraph"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/dataflow"
	"github.com/awslabs/cat-optimizer/analysis/ir"
	"github.com/awslabs/cat-optimizer/internal/funcutil"
)

// Summary holds the constant facts about one function
type Summary struct {
	Func *ir.Function

	// Return is the constant returned by every execution of the function. For a function returning a handle, it is
	// the value held by the returned handle.
	Return funcutil.Optional[int64]

	// Args maps the positions of handle parameters to the value their handle holds at every entry
	Args map[int]int64

	// ImmArgs maps the positions of the other parameters to the constant they always receive
	ImmArgs map[int]int64
}

func newSummary(f *ir.Function) *Summary {
	return &Summary{Func: f, Return: funcutil.None[int64](), Args: map[int]int64{}, ImmArgs: map[int]int64{}}
}

// IsEmpty returns true if the summary holds no fact
func (s *Summary) IsEmpty() bool {
	return s.Return.IsNone() && len(s.Args) == 0 && len(s.ImmArgs) == 0
}

func (s *Summary) String() string {
	var parts []string
	if c, ok := funcutil.Get(s.Return); ok {
		parts = append(parts, fmt.Sprintf("ret=%d", c))
	}
	for _, k := range sortedKeys(s.Args) {
		parts = append(parts, fmt.Sprintf("arg%d=*%d", k, s.Args[k]))
	}
	for _, k := range sortedKeys(s.ImmArgs) {
		parts = append(parts, fmt.Sprintf("arg%d=%d", k, s.ImmArgs[k]))
	}
	return fmt.Sprintf("%s {%s}", s.Func.Name(), strings.Join(parts, ", "))
}

func sortedKeys(m map[int]int64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Table holds the summaries of the functions of a program. It implements dataflow.Facts.
type Table struct {
	summaries map[*ir.Function]*Summary
	order     []*ir.Function
}

// NewTable returns an empty table
func NewTable() *Table {
	return &Table{summaries: map[*ir.Function]*Summary{}}
}

// Summary returns the summary of f, nil if nothing is known about f.
func (t *Table) Summary(f *ir.Function) *Summary {
	return t.summaries[f]
}

func (t *Table) summary(f *ir.Function) *Summary {
	s, ok := t.summaries[f]
	if !ok {
		s = newSummary(f)
		t.summaries[f] = s
		t.order = append(t.order, f)
	}
	return s
}

// ReturnConstant returns the constant returned by f
func (t *Table) ReturnConstant(f *ir.Function) (int64, bool) {
	if s := t.summaries[f]; s != nil {
		return funcutil.Get(s.Return)
	}
	return 0, false
}

// ArgumentConstant returns the constant received by parameter pos of f. For a handle parameter, this is the value
// held by the handle.
func (t *Table) ArgumentConstant(f *ir.Function, pos int) (int64, bool) {
	s := t.summaries[f]
	if s == nil || pos >= len(f.Params) {
		return 0, false
	}
	if f.Params[pos].Type().IsHandle() {
		c, ok := s.Args[pos]
		return c, ok
	}
	c, ok := s.ImmArgs[pos]
	return c, ok
}

// ImmediateArgument returns the constant received by the non-handle parameter pos of f
func (t *Table) ImmediateArgument(f *ir.Function, pos int) (int64, bool) {
	if s := t.summaries[f]; s != nil {
		c, ok := s.ImmArgs[pos]
		return c, ok
	}
	return 0, false
}

// Summaries returns the non-empty summaries, in the order they were created.
func (t *Table) Summaries() []*Summary {
	var res []*Summary
	for _, f := range t.order {
		if s := t.summaries[f]; !s.IsEmpty() {
			res = append(res, s)
		}
	}
	return res
}

func (t *Table) String() string {
	var sb strings.Builder
	for _, s := range t.Summaries() {
		sb.WriteString(s.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

var _ dataflow.Facts = (*Table)(nil)

// Build computes the summaries of the functions of the call graph, in at most rounds rounds. It stops early when a
// round establishes no new fact.
func Build(cg *callgraph.Graph, oracle alias.Oracle, rounds int, log *config.LogGroup) *Table {
	t := NewTable()
	order := callgraph.BottomUp(cg)
	for r := 0; r < rounds; r++ {
		changed := false
		for _, f := range order {
			if !cg.IsReachable(f) {
				continue
			}
			a := dataflow.New(f, oracle, t)
			if t.summarizeReturn(a) {
				changed = true
			}
			if t.summarizeCalls(cg, a) {
				changed = true
			}
		}
		log.Tracef("summary round %d:\n%s", r, t)
		if !changed {
			break
		}
	}
	return t
}

// summarizeReturn records the return constant of the function analyzed by a, if every return agrees on one
func (t *Table) summarizeReturn(a *dataflow.FunctionAnalysis) bool {
	f := a.Fn
	if _, known := t.ReturnConstant(f); known {
		return false
	}
	if f.Result.Kind() != ir.KindInt && !f.Result.IsHandle() {
		return false
	}
	rets := f.Returns()
	if len(rets) == 0 {
		return false
	}
	var value int64
	for k, ret := range rets {
		if ret.NumOperands() == 0 {
			return false
		}
		var c int64
		var ok bool
		if f.Result.IsHandle() {
			c, ok = a.Resolve(ret.Operand(0), ret)
		} else {
			c, ok = t.intConstant(a, ret.Operand(0))
		}
		if !ok || k > 0 && c != value {
			return false
		}
		value = c
	}
	t.summary(f).Return = funcutil.Some(value)
	return true
}

// summarizeCalls records the argument constants of the callees of the function analyzed by a that are only called
// from that function, at a single site.
func (t *Table) summarizeCalls(cg *callgraph.Graph, a *dataflow.FunctionAnalysis) bool {
	changed := false
	for _, call := range a.Fn.Calls() {
		callee := call.Callee
		if callee == nil || callee.IsExternal() || callee.Exported {
			continue
		}
		n := cg.Node(callee)
		if n == nil || n.AddressTaken || len(n.Sites) != 1 {
			continue
		}
		for k, arg := range call.Args() {
			if k >= len(callee.Params) {
				break
			}
			s := t.summary(callee)
			if callee.Params[k].Type().IsHandle() {
				if _, known := s.Args[k]; known {
					continue
				}
				if c, ok := a.ResolveArgument(call, k); ok {
					s.Args[k] = c
					changed = true
				}
				continue
			}
			if _, known := s.ImmArgs[k]; known || callee.Params[k].Type().Kind() != ir.KindInt {
				continue
			}
			if c, ok := t.intConstant(a, arg); ok {
				s.ImmArgs[k] = c
				changed = true
			}
		}
	}
	return changed
}

// intConstant returns the constant an integer value always has: an immediate, a parameter with a known constant,
// a Get of a handle with a known value, or the result of a call to a function returning a constant.
func (t *Table) intConstant(a *dataflow.FunctionAnalysis, v ir.Value) (int64, bool) {
	if c, ok := ir.IntValue(v); ok {
		return c, true
	}
	switch x := v.(type) {
	case *ir.Arg:
		if x.Parent() == a.Fn {
			return t.ImmediateArgument(a.Fn, x.Index())
		}
	case *ir.Instruction:
		switch {
		case x.HandleOp() == ir.HandleGet:
			return a.Resolve(x.Operand(0), x)
		case x.IsOpaqueCall() && x.Callee != nil && !x.Callee.IsExternal():
			return t.ReturnConstant(x.Callee)
		}
	}
	return 0, false
}
