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

package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/interp"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

func TestSameBehavior(t *testing.T) {
	abort := fmt.Errorf("%w: get of a null handle", interp.ErrAbort)
	out := func(s string) *interp.Result { return &interp.Result{Output: s} }
	tests := []struct {
		name      string
		before    *interp.Result
		beforeErr error
		after     *interp.Result
		afterErr  error
		want      bool
	}{
		{"same output", out("1\n"), nil, out("1\n"), nil, true},
		{"different output", out("1\n"), nil, out("2\n"), nil, false},
		{"both abort", out(""), abort, out(""), abort, true},
		{"abort removed", out(""), abort, out(""), nil, false},
		{"step limit", out(""), interp.ErrStepLimit, out(""), interp.ErrStepLimit, false},
		{"no entry point", nil, errors.New("no entry point"), nil, errors.New("no entry point"), false},
	}
	for _, test := range tests {
		if got := sameBehavior(test.before, test.beforeErr, test.after, test.afterErr); got != test.want {
			t.Errorf("%s: sameBehavior = %v", test.name, got)
		}
	}
}

func TestWriters(t *testing.T) {
	p := ir.NewProgram(ir.DefaultOpNames)
	b := ir.NewBuilder(p.NewFunction("main", ir.Void))
	b.Get(b.New(ir.NewInt(1)))
	b.Return(nil)

	for format, expected := range map[string]string{"ir": "@main", "go": "func main()", "dot": "digraph"} {
		write, err := writer(format)
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		var sb strings.Builder
		if err := write(config.NewDefault(), p, &sb); err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !strings.Contains(sb.String(), expected) {
			t.Errorf("%s output does not contain %q:\n%s", format, expected, sb.String())
		}
	}
	if _, err := writer("html"); err == nil {
		t.Errorf("html is not a format")
	}
}
