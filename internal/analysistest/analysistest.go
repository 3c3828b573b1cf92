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

// Package analysistest reads the sample programs of the tests, with the expectations written in their comments.
package analysistest

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"testing"
)

// Match annotations of the form @Output("1\n"), whose argument is a Go string literal
var OutputRegex = regexp.MustCompile(`//\s*@Output\((".*")\)`)

// Match annotations of the form "@Invocations(3)"
var InvocationsRegex = regexp.MustCompile(`//\s*@Invocations\(\s*(\d+)\s*\)`)

// Program is a sample program and the expected result of its execution.
type Program struct {
	Filename string
	Source   string

	// Output is what the program prints
	Output string

	// Invocations is the number of handle operations the optimized program executes, -1 if not specified
	Invocations int64
}

// ReadPrograms returns the .go files of dir in fsys, sorted by name. The test fails if a file does not parse or has
// no @Output annotation.
func ReadPrograms(t *testing.T, fsys fs.FS, dir string) []Program {
	t.Helper()
	names, err := fs.Glob(fsys, path.Join(dir, "*.go"))
	if err != nil || len(names) == 0 {
		t.Fatalf("no programs in %s: %v", dir, err)
	}
	sort.Strings(names)
	programs := make([]Program, 0, len(names))
	for _, name := range names {
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			t.Fatalf("could not read %s: %v", name, err)
		}
		p, err := parseProgram(name, string(src))
		if err != nil {
			t.Fatalf("%v", err)
		}
		programs = append(programs, p)
	}
	return programs
}

func parseProgram(filename string, src string) (Program, error) {
	p := Program{Filename: filename, Source: src, Invocations: -1}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return p, err
	}
	hasOutput := false
	for _, group := range f.Comments {
		for _, c := range group.List {
			pos := fset.Position(c.Pos())
			if a := OutputRegex.FindStringSubmatch(c.Text); len(a) > 1 {
				p.Output, err = strconv.Unquote(a[1])
				if err != nil {
					return p, &AnnotationError{Pos: pos, Err: err}
				}
				hasOutput = true
			}
			if a := InvocationsRegex.FindStringSubmatch(c.Text); len(a) > 1 {
				p.Invocations, err = strconv.ParseInt(a[1], 10, 64)
				if err != nil {
					return p, &AnnotationError{Pos: pos, Err: err}
				}
			}
		}
	}
	if !hasOutput {
		return p, &AnnotationError{Pos: token.Position{Filename: filename}, Err: errMissingOutput}
	}
	return p, nil
}
