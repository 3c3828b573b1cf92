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

package dataflow

import (
	"fmt"
	"strings"

	"github.com/awslabs/cat-optimizer/analysis/alias"
	"github.com/awslabs/cat-optimizer/analysis/cfg"
	"github.com/awslabs/cat-optimizer/analysis/ir"
	"golang.org/x/tools/container/intsets"
)

// Facts gives the interprocedural constants known about the functions of a program. For handles, the constant is
// the value held by the handle.
type Facts interface {
	// ReturnConstant returns the constant returned by every execution of f
	ReturnConstant(f *ir.Function) (int64, bool)

	// ArgumentConstant returns the constant always received by parameter pos of f
	ArgumentConstant(f *ir.Function, pos int) (int64, bool)
}

type noFacts struct{}

func (noFacts) ReturnConstant(*ir.Function) (int64, bool) { return 0, false }

func (noFacts) ArgumentConstant(*ir.Function, int) (int64, bool) { return 0, false }

// NoFacts is the Facts implementation that knows nothing
var NoFacts Facts = noFacts{}

// siteKind classifies the positions of the reaching definition bitsets
type siteKind uint8

const (
	// siteDef is a New, Set, Add or Sub
	siteDef siteKind = 1 << iota
	// siteJoin is a join of handles
	siteJoin
	// siteOrigin is a handle received from outside the function: a parameter or the result of a call
	siteOrigin
	// siteClobber is a call that may modify any cell reachable by the callee
	siteClobber
)

// FunctionAnalysis holds the analysis state of one function. It must be rebuilt after any change to the function.
type FunctionAnalysis struct {
	// Fn is the function analyzed
	Fn *ir.Function

	oracle alias.Oracle
	facts  Facts
	dom    *cfg.DomTree

	// instrs maps instruction indexes to instructions. Bit len(instrs)+k of the bitsets stands for parameter k.
	instrs []*ir.Instruction

	// handles are the handle values of the function, in order of appearance
	handles []ir.Value
	isTracked map[ir.Value]bool

	// must and may are the alias sets. may includes must, and no value is in its own sets.
	must map[ir.Value]map[ir.Value]bool
	may  map[ir.Value]map[ir.Value]bool

	// loadSource maps loads of handles to the value stored by their unique source store
	loadSource map[*ir.Instruction]ir.Value

	escapedStores map[*ir.Instruction]bool

	kind   []siteKind
	target []ir.Value
	gen    []*intsets.Sparse
	kill   []*intsets.Sparse

	blockIn  []*intsets.Sparse
	blockOut []*intsets.Sparse
	in       []*intsets.Sparse

	betweenCache map[[2]*ir.Instruction]map[*ir.Instruction]bool
}

// New analyzes fn. The function is renumbered.
func New(fn *ir.Function, oracle alias.Oracle, facts Facts) *FunctionAnalysis {
	if facts == nil {
		facts = NoFacts
	}
	a := &FunctionAnalysis{
		Fn:            fn,
		oracle:        oracle,
		facts:         facts,
		isTracked:     map[ir.Value]bool{},
		must:          map[ir.Value]map[ir.Value]bool{},
		may:           map[ir.Value]map[ir.Value]bool{},
		loadSource:    map[*ir.Instruction]ir.Value{},
		escapedStores: map[*ir.Instruction]bool{},
		betweenCache:  map[[2]*ir.Instruction]map[*ir.Instruction]bool{},
	}
	n := fn.Renumber()
	a.instrs = make([]*ir.Instruction, 0, n)
	for _, b := range fn.Blocks {
		a.instrs = append(a.instrs, b.Instrs...)
	}
	if !fn.IsExternal() {
		a.dom = cfg.Dominators(fn)
	}
	a.collectHandles()
	a.findEscapedStores()
	a.buildAliasSets()
	a.buildSites()
	a.solve()
	return a
}

// Dominators returns the dominator tree computed for the function
func (a *FunctionAnalysis) Dominators() *cfg.DomTree {
	return a.dom
}

// canon returns the value a handle value designates, looking through casts
func canon(v ir.Value) ir.Value {
	for {
		i, ok := v.(*ir.Instruction)
		if !ok || i.Op != ir.OpCast {
			return v
		}
		v = i.Operand(0)
	}
}

func (a *FunctionAnalysis) track(v ir.Value) {
	v = canon(v)
	if _, isConst := v.(*ir.Const); isConst || !v.Type().IsHandle() || a.isTracked[v] {
		return
	}
	a.isTracked[v] = true
	a.handles = append(a.handles, v)
}

func (a *FunctionAnalysis) collectHandles() {
	for _, p := range a.Fn.Params {
		a.track(p)
	}
	for _, i := range a.instrs {
		if i.Type().IsHandle() {
			a.track(i)
		}
		for _, op := range i.Operands() {
			a.track(op)
		}
	}
}

func (a *FunctionAnalysis) bit(v ir.Value) (int, bool) {
	switch x := v.(type) {
	case *ir.Instruction:
		if x.Parent() == a.Fn {
			return x.Index, true
		}
	case *ir.Arg:
		if x.Parent() == a.Fn {
			return len(a.instrs) + x.Index(), true
		}
	}
	return 0, false
}

// site returns the instruction or parameter at position k of the bitsets
func (a *FunctionAnalysis) site(k int) ir.Value {
	if k < len(a.instrs) {
		return a.instrs[k]
	}
	return a.Fn.Params[k-len(a.instrs)]
}

// String prints the alias sets and the reaching definitions of every instruction
func (a *FunctionAnalysis) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "analysis of %s\n", a.Fn.Name())
	for _, h := range a.handles {
		fmt.Fprintf(&sb, "  %s must %s may %s\n", h.Name(), names(a.Must(h)), names(a.MayMust(h)))
	}
	for _, i := range a.instrs {
		fmt.Fprintf(&sb, "  %-40s in %s\n", i.String(), names(a.siteValues(a.In(i))))
	}
	return sb.String()
}

func (a *FunctionAnalysis) siteValues(s *intsets.Sparse) []ir.Value {
	var vals []ir.Value
	for _, k := range s.AppendTo(nil) {
		vals = append(vals, a.site(k))
	}
	return vals
}

func names(vals []ir.Value) string {
	s := make([]string, len(vals))
	for k, v := range vals {
		s[k] = v.Name()
	}
	return "{" + strings.Join(s, ", ") + "}"
}
