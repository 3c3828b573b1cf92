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

// Package frontend turns Go programs written against the CAT runtime into the program representation of package
// ir. Programs are loaded with go/packages, built in SSA form with go/ssa, and lowered function by function.
//
// The handle type is recognized by name (CATData by default) and calls to the five runtime functions become handle
// operations. Only a subset of Go is accepted: integers, booleans, handles, pointers to those and functions, with
// direct and indirect calls. Everything else is reported as an error naming the position of the construct.
package frontend

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"

	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/ir"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// PkgLoadMode is the loading mode of the frontend. Comments are needed for the directives.
const PkgLoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedTypesSizes

// Load loads the packages matching patterns, builds their SSA form and lowers the functions of the initial packages.
// platform sets GOOS when not empty. To understand how to specify the patterns, look at the documentation of
// packages.Load.
func Load(c *config.Config, log *config.LogGroup, platform string, patterns []string) (*ir.Program, error) {
	pcfg := &packages.Config{
		Mode:  PkgLoadMode,
		Tests: false,
		Fset:  token.NewFileSet(),
	}
	if platform != "" {
		pcfg.Env = append(os.Environ(), fmt.Sprintf("GOOS=%s", platform))
	}

	initialPackages, err := packages.Load(pcfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %v", err)
	}
	if len(initialPackages) == 0 {
		return nil, fmt.Errorf("no packages")
	}
	if packages.PrintErrors(initialPackages) > 0 {
		return nil, fmt.Errorf("errors found, exiting")
	}

	program, ssaPackages := ssautil.AllPackages(initialPackages, ssa.InstantiateGenerics)
	for i, p := range ssaPackages {
		if p == nil {
			return nil, fmt.Errorf("cannot build SSA for package %s", initialPackages[i])
		}
	}
	program.Build()
	log.Debugf("built SSA for %d packages", len(ssaPackages))

	var files []*ast.File
	for _, p := range initialPackages {
		files = append(files, p.Syntax...)
	}
	return Lower(c, log, ssaPackages, files)
}

// FromSource lowers a single-file main package. The file may only import packages of the standard library.
func FromSource(c *config.Config, log *config.LogGroup, filename string, src string) (*ir.Program, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", filename, err)
	}
	pkg := types.NewPackage(f.Name.Name, f.Name.Name)
	tc := &types.Config{Importer: importer.Default()}
	ssaPkg, _, err := ssautil.BuildPackage(tc, fset, pkg, []*ast.File{f}, ssa.SanityCheckFunctions)
	if err != nil {
		return nil, fmt.Errorf("could not build %s: %w", filename, err)
	}
	return Lower(c, log, []*ssa.Package{ssaPkg}, []*ast.File{f})
}
