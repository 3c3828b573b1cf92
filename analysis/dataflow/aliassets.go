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
	"github.com/awslabs/cat-optimizer/analysis/alias"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

func loc(v ir.Value) alias.Location {
	return alias.Location{Ptr: v}
}

func addPair(rel map[ir.Value]map[ir.Value]bool, x, y ir.Value) {
	if x == y {
		return
	}
	for _, p := range [2][2]ir.Value{{x, y}, {y, x}} {
		s, ok := rel[p[0]]
		if !ok {
			s = map[ir.Value]bool{}
			rel[p[0]] = s
		}
		s[p[1]] = true
	}
}

func (a *FunctionAnalysis) addMust(x, y ir.Value) {
	addPair(a.must, x, y)
	addPair(a.may, x, y)
}

// buildAliasSets queries the oracle on every pair of handle values. A load of a handle additionally must-aliases
// the value stored by its unique source store, and loads with the same source must-alias each other.
func (a *FunctionAnalysis) buildAliasSets() {
	for k, x := range a.handles {
		for _, y := range a.handles[k+1:] {
			switch a.oracle.Alias(loc(x), loc(y)) {
			case alias.MustAlias:
				a.addMust(x, y)
			case alias.MayAlias, alias.PartialAlias:
				addPair(a.may, x, y)
			}
		}
	}
	bySource := map[ir.Value][]ir.Value{}
	var sources []ir.Value
	for _, i := range a.instrs {
		if i.Op != ir.OpLoad || !i.Type().IsHandle() {
			continue
		}
		src := a.uniqueSource(i)
		if src == nil {
			continue
		}
		a.loadSource[i] = src
		if _, ok := bySource[src]; !ok {
			sources = append(sources, src)
		}
		bySource[src] = append(bySource[src], i)
	}
	// a load with a known source is that source: it takes the relations of the source instead of the ones the
	// oracle gives for an unknown value
	for _, src := range sources {
		for _, l := range bySource[src] {
			a.drop(l)
		}
	}
	for _, src := range sources {
		for _, l := range bySource[src] {
			for _, z := range a.ordered(a.may[src]) {
				addPair(a.may, l, z)
			}
			for _, z := range a.ordered(a.must[src]) {
				a.addMust(l, z)
			}
		}
		group := append([]ir.Value{src}, bySource[src]...)
		for k, x := range group {
			for _, y := range group[k+1:] {
				a.addMust(x, y)
			}
		}
	}
}

// drop removes v from the alias sets
func (a *FunctionAnalysis) drop(v ir.Value) {
	for _, rel := range []map[ir.Value]map[ir.Value]bool{a.must, a.may} {
		for z := range rel[v] {
			delete(rel[z], v)
		}
		delete(rel, v)
	}
}

// uniqueSource returns the handle stored by the only store that may write the slot read by load, if that store
// certainly writes the slot, dominates the load and is not escaped. It returns nil otherwise.
func (a *FunctionAnalysis) uniqueSource(load *ir.Instruction) ir.Value {
	ptr := load.Operand(0)
	if baseObject(ptr) != objLocal {
		return nil
	}
	var source *ir.Instruction
	for _, i := range a.instrs {
		if i.Op != ir.OpStore || a.oracle.Alias(loc(i.Operand(0)), loc(ptr)) == alias.NoAlias {
			continue
		}
		if source != nil {
			return nil
		}
		source = i
	}
	if source == nil || a.escapedStores[source] {
		return nil
	}
	if a.oracle.Alias(loc(source.Operand(0)), loc(ptr)) != alias.MustAlias || !a.dom.InstrDominates(source, load) {
		return nil
	}
	v := canon(source.Operand(1))
	if !a.isTracked[v] {
		return nil
	}
	return v
}

// findEscapedStores marks the stores into escaping storage, and the stores whose target may be accessed by a call
// that is not a handle operation.
func (a *FunctionAnalysis) findEscapedStores() {
	var calls []*ir.Instruction
	for _, i := range a.instrs {
		if i.IsOpaqueCall() {
			calls = append(calls, i)
		}
	}
	for _, st := range a.instrs {
		if st.Op != ir.OpStore {
			continue
		}
		if baseObject(st.Operand(0)) == objGlobal {
			a.escapedStores[st] = true
			continue
		}
		l, _ := alias.LocationOf(st)
		for _, c := range calls {
			if a.oracle.ModRef(c, l) != alias.NoModRef {
				a.escapedStores[st] = true
				break
			}
		}
	}
}

// IsEscapedStore returns true if the target of st may be accessed by code outside the function's control
func (a *FunctionAnalysis) IsEscapedStore(st *ir.Instruction) bool {
	return a.escapedStores[st]
}

// Must returns the values that must refer to the same cell as v, v excluded
func (a *FunctionAnalysis) Must(v ir.Value) []ir.Value {
	return a.ordered(a.must[canon(v)])
}

// MayMust returns the values that may refer to the same cell as v, v excluded. It includes Must(v).
func (a *FunctionAnalysis) MayMust(v ir.Value) []ir.Value {
	return a.ordered(a.may[canon(v)])
}

// MustAlias returns true if x and y certainly refer to the same cell
func (a *FunctionAnalysis) MustAlias(x, y ir.Value) bool {
	x, y = canon(x), canon(y)
	return x == y || a.must[x][y]
}

// MayAlias returns true if x and y may refer to the same cell
func (a *FunctionAnalysis) MayAlias(x, y ir.Value) bool {
	x, y = canon(x), canon(y)
	return x == y || a.may[x][y]
}

// LoadSource returns the handle a load must read, if it is known
func (a *FunctionAnalysis) LoadSource(load *ir.Instruction) (ir.Value, bool) {
	v, ok := a.loadSource[load]
	return v, ok
}

func (a *FunctionAnalysis) ordered(set map[ir.Value]bool) []ir.Value {
	var vals []ir.Value
	for _, h := range a.handles {
		if set[h] {
			vals = append(vals, h)
		}
	}
	return vals
}

// ids returns h and every value that may alias it
func (a *FunctionAnalysis) ids(h ir.Value) map[ir.Value]bool {
	ids := map[ir.Value]bool{h: true}
	for v := range a.may[h] {
		ids[v] = true
	}
	return ids
}

// objKind classifies the memory a pointer may refer to
type objKind int

const (
	objNone objKind = iota
	objLocal
	objUnknown
	objGlobal
)

// baseObject returns the worst kind of object ptr may refer to: a local allocation, a global, or unknown memory.
func baseObject(ptr ir.Value) objKind {
	visited := map[ir.Value]bool{}
	var visit func(v ir.Value) objKind
	visit = func(v ir.Value) objKind {
		v = canon(v)
		if visited[v] {
			return objNone
		}
		visited[v] = true
		switch x := v.(type) {
		case *ir.Const:
			return objNone
		case *ir.Global:
			return objGlobal
		case *ir.Instruction:
			switch x.Op {
			case ir.OpAlloc:
				return objLocal
			case ir.OpJoin:
				worst := objNone
				for _, in := range x.Operands() {
					if k := visit(in); k > worst {
						worst = k
					}
				}
				return worst
			}
		}
		return objUnknown
	}
	return visit(ptr)
}
