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

// Package alias defines the alias oracle consumed by the optimizer and a default implementation based on the
// underlying objects of values.
package alias

import (
	"fmt"

	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// AliasResult is the answer of an alias query.
type AliasResult int

const (
	NoAlias AliasResult = iota
	MayAlias
	PartialAlias
	MustAlias
)

func (r AliasResult) String() string {
	switch r {
	case NoAlias:
		return "NoAlias"
	case MayAlias:
		return "MayAlias"
	case PartialAlias:
		return "PartialAlias"
	case MustAlias:
		return "MustAlias"
	}
	return fmt.Sprintf("AliasResult(%d)", int(r))
}

// ModRefResult is the answer of a mod/ref query. Results are bit sets: bit 0 is Ref, bit 1 is Mod and bit 2
// means the access is certain.
type ModRefResult int

const (
	NoModRef   ModRefResult = 0
	Ref        ModRefResult = 1
	Mod        ModRefResult = 2
	ModRef                  = Ref | Mod
	mustBit    ModRefResult = 4
	MustRef                 = Ref | mustBit
	MustMod                 = Mod | mustBit
	MustModRef              = ModRef | mustBit
)

// IsMod returns true when the call may write the location
func (r ModRefResult) IsMod() bool { return r&Mod != 0 }

// IsRef returns true when the call may read the location
func (r ModRefResult) IsRef() bool { return r&Ref != 0 }

func (r ModRefResult) String() string {
	switch r {
	case NoModRef:
		return "NoModRef"
	case Ref:
		return "Ref"
	case Mod:
		return "Mod"
	case ModRef:
		return "ModRef"
	case MustRef:
		return "MustRef"
	case MustMod:
		return "MustMod"
	case MustModRef:
		return "MustModRef"
	}
	return fmt.Sprintf("ModRefResult(%d)", int(r))
}

// A Location is a memory location designated by a value: the slot a pointer refers to, or the cell of a handle.
type Location struct {
	Ptr ir.Value
}

func (l Location) String() string {
	return "loc(" + l.Ptr.Name() + ")"
}

// LocationOf returns the location accessed by a load or a store.
func LocationOf(i *ir.Instruction) (Location, bool) {
	switch i.Op {
	case ir.OpLoad, ir.OpStore:
		return Location{Ptr: i.Operand(0)}, true
	}
	return Location{}, false
}

// An Oracle answers alias and mod/ref queries. Implementations must be conservative: MustAlias and NoAlias are
// only returned when certain.
type Oracle interface {
	// Alias returns how the two locations relate
	Alias(a, b Location) AliasResult
	// ModRef returns how a call may access the location
	ModRef(call *ir.Instruction, loc Location) ModRefResult
}
