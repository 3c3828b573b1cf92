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

package funcutil

import "fmt"

// Optional is a value that may be absent. The zero Optional is none.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns the optional holding x
func Some[T any](x T) Optional[T] {
	return Optional[T]{value: x, ok: true}
}

// None returns the empty optional
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// IsNone returns true if o holds no value
func (o Optional[T]) IsNone() bool {
	return !o.ok
}

func (o Optional[T]) String() string {
	if !o.ok {
		return "none"
	}
	return fmt.Sprintf("%v", o.value)
}

// Get returns the value of the optional and whether it has one, in the comma-ok style.
func Get[T any](o Optional[T]) (T, bool) {
	return o.value, o.ok
}
