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

package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/awslabs/cat-optimizer/analysis/callgraph"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// nodeAttrs defines the attributes of the node of f
// - exported functions are drawn with a double border
// - functions that may be recursive are red
// - unreachable functions are grey
func nodeAttrs(cg *callgraph.Graph, f *ir.Function) string {
	attrs := ""
	if f.Exported {
		attrs += " peripheries=2"
	}
	switch {
	case !cg.IsReachable(f):
		attrs += " color=grey fontcolor=grey"
	case !cg.IsRecursionFree(f):
		attrs += " color=red"
	}
	return "[label=\"" + f.RawName() + "\"" + attrs + "]"
}

// WriteGraphviz writes a graphviz representation of the call graph to w. Each call site is an edge; calls through
// function values are drawn as dashed edges from the caller to a node "indirect".
func WriteGraphviz(cg *callgraph.Graph, w io.Writer) error {
	var err error
	write := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	fns := make([]*ir.Function, 0, len(cg.Nodes))
	for f := range cg.Nodes {
		if !f.IsExternal() || len(cg.Sites(f)) > 0 {
			fns = append(fns, f)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].RawName() < fns[j].RawName() })

	write("digraph callgraph {\n")
	indirect := false
	for _, f := range fns {
		write("  %q %s;\n", f.RawName(), nodeAttrs(cg, f))
	}
	for _, f := range fns {
		n := cg.Node(f)
		for _, call := range n.Out {
			write("  %q -> %q;\n", f.RawName(), call.Callee.RawName())
		}
		if n.Indirect {
			write("  %q -> \"indirect\" [style=dashed];\n", f.RawName())
			indirect = true
		}
	}
	if indirect {
		write("  \"indirect\" [shape=point];\n")
	}
	write("}\n")
	if err != nil {
		return fmt.Errorf("error while writing graph: %w", err)
	}
	return nil
}

// GraphvizToFile writes the graphviz representation of the call graph in filename
func GraphvizToFile(cg *callgraph.Graph, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := WriteGraphviz(cg, w); err != nil {
		return err
	}
	return w.Flush()
}
