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

package alias

import (
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// BasicOracle is an intra-procedural oracle reasoning on the objects a value may refer to.
//
// Identified objects are allocations (Alloc), global slots and handles created by New. Any other source of a
// pointer or handle (parameters, loads, results of calls) is unknown and may refer to any object that has been
// captured, i.e. made visible outside the value flow of its creator. Two distinct values are never reported as
// MustAlias, since a single allocation site may produce different objects when executed repeatedly.
type BasicOracle struct{}

// NewBasicOracle returns the default oracle
func NewBasicOracle() *BasicOracle {
	return &BasicOracle{}
}

// objects is the set of underlying objects of a value
type objects struct {
	identified map[ir.Value]bool
	unknown    bool
}

func stripCasts(v ir.Value) ir.Value {
	for {
		i, ok := v.(*ir.Instruction)
		if !ok || i.Op != ir.OpCast {
			return v
		}
		v = i.Operand(0)
	}
}

func underlyingObjects(v ir.Value) objects {
	objs := objects{identified: map[ir.Value]bool{}}
	visited := map[ir.Value]bool{}
	var visit func(v ir.Value)
	visit = func(v ir.Value) {
		v = stripCasts(v)
		if visited[v] {
			return
		}
		visited[v] = true
		switch x := v.(type) {
		case *ir.Const:
			// null refers to nothing
		case *ir.Global:
			objs.identified[x] = true
		case *ir.Instruction:
			switch {
			case x.Op == ir.OpAlloc, x.HandleOp() == ir.HandleNew:
				objs.identified[x] = true
			case x.Op == ir.OpJoin:
				for _, in := range x.Operands() {
					visit(in)
				}
			default:
				objs.unknown = true
			}
		default:
			objs.unknown = true
		}
	}
	visit(v)
	return objs
}

// isCaptured returns true when the object can be reached through a value that is not derived from its creating
// instruction by joins and casts: stored into memory, passed to an opaque call or returned. Globals are always
// captured.
func isCaptured(obj ir.Value) bool {
	if _, ok := obj.(*ir.Global); ok {
		return true
	}
	visited := map[ir.Value]bool{}
	var captured func(v ir.Value) bool
	captured = func(v ir.Value) bool {
		if visited[v] {
			return false
		}
		visited[v] = true
		for _, u := range ir.Users(v) {
			switch u.Op {
			case ir.OpStore:
				if u.Operand(1) == v {
					return true
				}
			case ir.OpCall:
				if u.IsOpaqueCall() {
					return true
				}
			case ir.OpReturn:
				return true
			case ir.OpJoin, ir.OpCast:
				if captured(u) {
					return true
				}
			}
		}
		return false
	}
	return captured(obj)
}

// Alias implements Oracle
func (o *BasicOracle) Alias(a, b Location) AliasResult {
	pa, pb := stripCasts(a.Ptr), stripCasts(b.Ptr)
	if pa == pb {
		if c, ok := pa.(*ir.Const); ok && c.IsNull() {
			return NoAlias
		}
		return MustAlias
	}
	oa, ob := underlyingObjects(pa), underlyingObjects(pb)
	if oa.unknown && ob.unknown {
		return MayAlias
	}
	for x := range oa.identified {
		if ob.identified[x] {
			return MayAlias
		}
	}
	if oa.unknown && anyCaptured(ob) || ob.unknown && anyCaptured(oa) {
		return MayAlias
	}
	return NoAlias
}

func anyCaptured(objs objects) bool {
	for x := range objs.identified {
		if isCaptured(x) {
			return true
		}
	}
	return false
}

// ModRef implements Oracle
func (o *BasicOracle) ModRef(call *ir.Instruction, loc Location) ModRefResult {
	if call.Op != ir.OpCall {
		return NoModRef
	}
	switch call.HandleOp() {
	case ir.HandleNew:
		return NoModRef
	case ir.HandleGet:
		return o.access(call.Operand(0), loc, Ref)
	case ir.HandleSet:
		return o.access(call.Operand(0), loc, Mod)
	case ir.HandleAdd, ir.HandleSub:
		r := o.access(call.Operand(0), loc, Mod) | o.access(call.Operand(1), loc, Ref) |
			o.access(call.Operand(2), loc, Ref)
		if r&ModRef == ModRef {
			// the read and the write are not both certain
			r &^= mustBit
		}
		return r
	}
	objs := underlyingObjects(loc.Ptr)
	if objs.unknown {
		return ModRef
	}
	for x := range objs.identified {
		if _, isGlobal := x.(*ir.Global); isGlobal {
			return ModRef
		}
	}
	for _, arg := range call.Args() {
		if o.Alias(Location{Ptr: arg}, loc) != NoAlias {
			return ModRef
		}
	}
	// captured objects may have been handed to the callee through memory
	if anyCaptured(objs) {
		return ModRef
	}
	return NoModRef
}

func (o *BasicOracle) access(operand ir.Value, loc Location, kind ModRefResult) ModRefResult {
	switch o.Alias(Location{Ptr: operand}, loc) {
	case NoAlias:
		return NoModRef
	case MustAlias:
		return kind | mustBit
	}
	return kind
}
