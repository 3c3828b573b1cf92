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

package frontend

import (
	"fmt"

	"golang.org/x/tools/go/ssa"
)

// An instrOp must implement methods for ALL possible SSA instructions, so that adding a construct to the accepted
// subset is a matter of filling one method.
type instrOp interface {
	doUnOp(*ssa.UnOp)
	doBinOp(*ssa.BinOp)
	doCall(*ssa.Call)
	doChangeType(*ssa.ChangeType)
	doConvert(*ssa.Convert)
	doReturn(*ssa.Return)
	doPanic(*ssa.Panic)
	doStore(*ssa.Store)
	doIf(*ssa.If)
	doJump(*ssa.Jump)
	doAlloc(*ssa.Alloc)
	doPhi(*ssa.Phi)
	// unsupported is called for every other instruction
	unsupported(ssa.Instruction)
}

// instrSwitch maps the instructions to the methods of the visitor. Debug references are skipped.
//
//gocyclo:ignore
func instrSwitch(visitor instrOp, instr ssa.Instruction) {
	switch instr := instr.(type) {
	case *ssa.DebugRef:
	// no-op
	case *ssa.UnOp:
		visitor.doUnOp(instr)
	case *ssa.BinOp:
		visitor.doBinOp(instr)
	case *ssa.Call:
		visitor.doCall(instr)
	case *ssa.ChangeType:
		visitor.doChangeType(instr)
	case *ssa.Convert:
		visitor.doConvert(instr)
	case *ssa.Return:
		visitor.doReturn(instr)
	case *ssa.Panic:
		visitor.doPanic(instr)
	case *ssa.Store:
		visitor.doStore(instr)
	case *ssa.If:
		visitor.doIf(instr)
	case *ssa.Jump:
		visitor.doJump(instr)
	case *ssa.Alloc:
		visitor.doAlloc(instr)
	case *ssa.Phi:
		visitor.doPhi(instr)
	case *ssa.ChangeInterface, *ssa.SliceToArrayPointer, *ssa.MakeInterface, *ssa.Extract, *ssa.Slice,
		*ssa.RunDefers, *ssa.Send, *ssa.Defer, *ssa.Go, *ssa.MakeChan, *ssa.MakeSlice, *ssa.MakeMap, *ssa.Range,
		*ssa.Next, *ssa.FieldAddr, *ssa.Field, *ssa.IndexAddr, *ssa.Index, *ssa.Lookup, *ssa.MapUpdate,
		*ssa.TypeAssert, *ssa.MakeClosure, *ssa.Select:
		visitor.unsupported(instr)
	default:
		panic(fmt.Sprintf("unknown instruction %T", instr))
	}
}

// instrKind returns a short description of an instruction for error messages
func instrKind(instr ssa.Instruction) string {
	switch instr.(type) {
	case *ssa.MakeClosure:
		return "closure"
	case *ssa.Defer, *ssa.RunDefers:
		return "defer"
	case *ssa.Go:
		return "goroutine"
	case *ssa.Send, *ssa.Select, *ssa.MakeChan:
		return "channel operation"
	case *ssa.MakeMap, *ssa.Lookup, *ssa.MapUpdate:
		return "map operation"
	case *ssa.MakeSlice, *ssa.Slice, *ssa.Index, *ssa.IndexAddr, *ssa.SliceToArrayPointer:
		return "slice or array operation"
	case *ssa.Field, *ssa.FieldAddr:
		return "struct field"
	case *ssa.MakeInterface, *ssa.ChangeInterface, *ssa.TypeAssert:
		return "interface"
	case *ssa.Extract:
		return "multiple results"
	case *ssa.Range, *ssa.Next:
		return "range loop"
	}
	return fmt.Sprintf("%T", instr)
}
