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

package analysistest

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestReadPrograms(t *testing.T) {
	fsys := fstest.MapFS{
		"data/b.go":      {Data: []byte("package main\n\n// @Output(\"1 2\\n\")\n// @Invocations(4)\nfunc main() {}\n")},
		"data/a.go":      {Data: []byte("package main\n\n// @Output(\"\")\nfunc main() {}\n")},
		"data/notes.txt": {Data: []byte("not a program")},
	}
	programs := ReadPrograms(t, fsys, "data")
	if len(programs) != 2 {
		t.Fatalf("expected 2 programs, got %d", len(programs))
	}
	if programs[0].Filename != "data/a.go" || programs[0].Output != "" || programs[0].Invocations != -1 {
		t.Errorf("unexpected program %+v", programs[0])
	}
	if programs[1].Output != "1 2\n" || programs[1].Invocations != 4 {
		t.Errorf("unexpected program %+v", programs[1])
	}
}

func TestMissingOutput(t *testing.T) {
	_, err := parseProgram("p.go", "package main\n\nfunc main() {}\n")
	if !errors.Is(err, errMissingOutput) {
		t.Errorf("expected a missing annotation error, got %v", err)
	}
	_, err = parseProgram("p.go", "package main\n\n// @Output(\"\\q\")\nfunc main() {}\n")
	var annotationErr *AnnotationError
	if !errors.As(err, &annotationErr) || annotationErr.Pos.Line != 3 {
		t.Errorf("expected an error on line 3, got %v", err)
	}
}
