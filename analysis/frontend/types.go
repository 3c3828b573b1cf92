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
	"go/types"

	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// irType returns the type representing t. Integers narrower than 64 bits are rejected: their overflow behavior
// cannot be expressed with the 64-bit integers of the representation.
func (m *module) irType(t types.Type) (*ir.Type, error) {
	if n, ok := t.(*types.Named); ok && n.Obj().Name() == m.config.HandleType {
		return ir.Handle, nil
	}
	switch u := t.Underlying().(type) {
	case *types.Basic:
		switch u.Kind() {
		case types.Int, types.Int64, types.Uint, types.Uint64, types.Uintptr, types.UntypedInt:
			return ir.Int, nil
		case types.Bool, types.UntypedBool:
			return ir.Bool, nil
		}
	case *types.Pointer:
		elem, err := m.irType(u.Elem())
		if err != nil {
			return nil, err
		}
		return ir.PointerTo(elem), nil
	case *types.Signature:
		return ir.Func, nil
	}
	return nil, fmt.Errorf("unsupported type %s", t)
}

// resultType returns the type of the result of a function of signature sig
func (m *module) resultType(sig *types.Signature) (*ir.Type, error) {
	switch sig.Results().Len() {
	case 0:
		return ir.Void, nil
	case 1:
		return m.irType(sig.Results().At(0).Type())
	}
	return nil, fmt.Errorf("multiple results in %s", sig)
}

// isUnsigned returns true when t is an unsigned integer type
func isUnsigned(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsUnsigned != 0
}

// deref returns the element type of pointer type t
func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}
