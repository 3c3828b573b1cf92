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

// EvalBinOp computes op on two constants with 64-bit two's complement arithmetic. It returns false when the
// result is undefined (division by zero, negative shift) or the operand types do not fit the operator.
//
//gocyclo:ignore
func EvalBinOp(op BinOp, x, y *Const) (*Const, bool) {
	if x.typ.kind == KindBool && y.typ.kind == KindBool {
		switch op {
		case BinEq:
			return NewBool(x.Bool == y.Bool), true
		case BinNe:
			return NewBool(x.Bool != y.Bool), true
		case BinAnd:
			return NewBool(x.Bool && y.Bool), true
		case BinOr:
			return NewBool(x.Bool || y.Bool), true
		case BinXor:
			return NewBool(x.Bool != y.Bool), true
		}
		return nil, false
	}
	if x.typ.kind != KindInt || y.typ.kind != KindInt {
		return nil, false
	}
	a, b := x.Int, y.Int
	switch op {
	case BinAdd:
		return NewInt(a + b), true
	case BinSub:
		return NewInt(a - b), true
	case BinMul:
		return NewInt(a * b), true
	case BinDiv:
		if b == 0 {
			return nil, false
		}
		return NewInt(a / b), true
	case BinRem:
		if b == 0 {
			return nil, false
		}
		return NewInt(a % b), true
	case BinAnd:
		return NewInt(a & b), true
	case BinOr:
		return NewInt(a | b), true
	case BinXor:
		return NewInt(a ^ b), true
	case BinShl:
		if b < 0 {
			return nil, false
		}
		return NewInt(a << uint64(b)), true
	case BinShr:
		if b < 0 {
			return nil, false
		}
		return NewInt(a >> uint64(b)), true
	case BinEq:
		return NewBool(a == b), true
	case BinNe:
		return NewBool(a != b), true
	case BinLt:
		return NewBool(a < b), true
	case BinLe:
		return NewBool(a <= b), true
	case BinGt:
		return NewBool(a > b), true
	case BinGe:
		return NewBool(a >= b), true
	}
	return nil, false
}

// EvalCast converts a constant to type t. Only conversions between identical scalar types, and of the null value
// between handle, pointer and function types, are folded.
func EvalCast(x *Const, t *Type) (*Const, bool) {
	switch {
	case x.typ.Equal(t) && (t.kind == KindInt || t.kind == KindBool):
		return x, true
	case x.IsNull() && (t.kind == KindHandle || t.kind == KindPointer || t.kind == KindFunc):
		return Null(t), true
	}
	return nil, false
}
