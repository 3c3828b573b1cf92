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

// Kind is the kind of a Type.
type Kind int

const (
	// KindVoid is the type of instructions that do not produce a value
	KindVoid Kind = iota
	// KindInt is a 64-bit two's complement integer
	KindInt
	// KindBool is a boolean
	KindBool
	// KindHandle is the opaque CAT handle type
	KindHandle
	// KindFunc is the type of function values
	KindFunc
	// KindPointer is a pointer to a memory slot holding a value of the element type
	KindPointer
)

// Type is the type of a Value. Types are compared with Equal, except for the basic types which are singletons.
type Type struct {
	kind Kind
	elem *Type
}

var (
	Void   = &Type{kind: KindVoid}
	Int    = &Type{kind: KindInt}
	Bool   = &Type{kind: KindBool}
	Handle = &Type{kind: KindHandle}
	Func   = &Type{kind: KindFunc}
)

// PointerTo returns the type of pointers to slots of type elem.
func PointerTo(elem *Type) *Type {
	return &Type{kind: KindPointer, elem: elem}
}

// Kind returns the kind of t
func (t *Type) Kind() Kind { return t.kind }

// Elem returns the element type of a pointer type, nil otherwise.
func (t *Type) Elem() *Type { return t.elem }

// IsHandle returns true when t is the handle type
func (t *Type) IsHandle() bool { return t != nil && t.kind == KindHandle }

// IsPointer returns true when t is a pointer type
func (t *Type) IsPointer() bool { return t != nil && t.kind == KindPointer }

// Equal returns true when t and u denote the same type.
func (t *Type) Equal(u *Type) bool {
	if t == u {
		return true
	}
	if t == nil || u == nil || t.kind != u.kind {
		return false
	}
	if t.kind == KindPointer {
		return t.elem.Equal(u.elem)
	}
	return true
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.kind {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindHandle:
		return "handle"
	case KindFunc:
		return "func"
	case KindPointer:
		return "*" + t.elem.String()
	}
	return "?"
}
