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
	"strconv"
	"testing"
)

func TestOptional(t *testing.T) {
	var zero Optional[int64]
	if !zero.IsNone() || zero.String() != "none" {
		t.Errorf("the zero optional must be none")
	}
	if _, ok := Get(None[int64]()); ok {
		t.Errorf("none has no value")
	}
	if v, ok := Get(Some[int64](0)); !ok || v != 0 {
		t.Errorf("some(0) = %v, %v", v, ok)
	}
}

func TestCollections(t *testing.T) {
	s := SetToOrderedSlice(map[int]bool{3: true, 1: true, 2: false, 7: true})
	Reverse(s)
	got := Map(s, strconv.Itoa)
	expected := []string{"7", "3", "1"}
	if len(got) != len(expected) {
		t.Fatalf("got %v, expected %v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("got %v, expected %v", got, expected)
		}
	}
}
