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

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// Map returns a new slice b such for any i <= len(a), b[i] = f(a[i])
func Map[T any, S any](a []T, f func(T) S) []S {
	b := make([]S, 0, len(a))
	for _, x := range a {
		b = append(b, f(x))
	}
	return b
}

// SetToOrderedSlice converts a set represented as a map from elements to booleans into a slice of its elements,
// sorted in increasing order. Only the keys mapped to true are kept.
func SetToOrderedSlice[T constraints.Ordered](set map[T]bool) []T {
	s := make([]T, 0, len(set))
	for x, ok := range set {
		if ok {
			s = append(s, x)
		}
	}
	slices.Sort(s)
	return s
}

// Reverse reverses the slice in place
// @mutates a
func Reverse[T any](a []T) {
	for i, j := 0, len(a)-1; i < j; i, j = i+1, j-1 {
		a[i], a[j] = a[j], a[i]
	}
}
