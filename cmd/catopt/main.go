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

// catopt: an optimizer for programs using the CAT handle runtime.
// The packages given as arguments are lowered to the optimizer's IR, optimized, and printed as IR (-format ir),
// as Go source (-format go) or as the graphviz call graph (-format dot).
// -run interprets the program before and after the optimization, and reports the handle operations executed.

package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/awslabs/cat-optimizer/analysis/callgraph"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/frontend"
	"github.com/awslabs/cat-optimizer/analysis/interp"
	"github.com/awslabs/cat-optimizer/analysis/ir"
	"github.com/awslabs/cat-optimizer/analysis/optimizer"
	"github.com/awslabs/cat-optimizer/analysis/render"
	"github.com/awslabs/cat-optimizer/internal/formatutil"
)

var (
	configPath   = flag.String("config", "", "Config file")
	outFlag      = flag.String("o", "", "Output file (standard output if not specified)")
	formatFlag   = flag.String("format", "ir", "Output format. One of: ir, go, dot")
	runFlag      = flag.Bool("run", false, "Interpret the program before and after the optimization")
	noOptFlag    = flag.Bool("noopt", false, "Do not optimize")
	skipInlining = flag.Bool("skip-inlining", false, "Skip the inlining and cloning phase")
	skipLoops    = flag.Bool("skip-loops", false, "Skip the loop transformations")
	platform     = flag.String("platform", "", "GOOS/GOARCH of the packages, if different from the host")
	noColor      = flag.Bool("nocolor", false, "Do not color the messages")
	verbose      = flag.Bool("v", false, "Log every transformation")
)

const usage = ` Optimize programs using the CAT handle runtime.
Usage:
    catopt [options] <package path(s)>
Examples:
Print the optimized IR of the package in the current directory
% catopt .
Check that the optimization preserves the output, and count the handle operations saved
% catopt -run ./example
Print the optimized program as Go source
% catopt -format go -o optimized.go ./example
`

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *noColor {
		formatutil.SetColors(false)
	}

	write, err := writer(*formatFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatutil.Red(err))
		os.Exit(2)
	}

	config.SetGlobalConfig(*configPath)
	c, err := config.LoadGlobal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *skipInlining {
		c.SkipInlining = true
	}
	if *skipLoops {
		c.SkipLoops = true
	}
	if *verbose {
		c.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(c)

	fmt.Fprintln(os.Stderr, formatutil.Faint("Reading sources"))
	prog, err := frontend.Load(c, logger, *platform, flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, formatutil.Red("could not load program: ", err))
		os.Exit(1)
	}

	var before *interp.Result
	var beforeErr error
	if *runFlag {
		before, beforeErr = interp.Run(prog)
		report("before", before, beforeErr)
	}

	if !*noOptFlag {
		fmt.Fprintln(os.Stderr, formatutil.Faint("Optimizing"))
		start := time.Now()
		runs := optimizer.NewPass(c, logger).Run(prog)
		fmt.Fprintln(os.Stderr, formatutil.Faint(fmt.Sprintf("%d pipeline runs in %.3f s", runs,
			time.Since(start).Seconds())))
		if err := prog.Verify(); err != nil {
			fmt.Fprintln(os.Stderr, formatutil.Red("the optimized program is invalid: ", err))
			os.Exit(1)
		}
	}

	if *runFlag {
		after, afterErr := interp.Run(prog)
		report("after", after, afterErr)
		if !sameBehavior(before, beforeErr, after, afterErr) {
			fmt.Fprintln(os.Stderr, formatutil.Red("the optimization changed the behavior of the program"))
			os.Exit(1)
		}
		if before != nil && after != nil {
			fmt.Fprintln(os.Stderr, formatutil.Green(fmt.Sprintf("handle operations: %d -> %d",
				before.Invocations, after.Invocations)))
		}
	}

	if err := output(*outFlag, func(w io.Writer) error { return write(c, prog, w) }); err != nil {
		fmt.Fprintln(os.Stderr, formatutil.Red("could not write output: ", err))
		os.Exit(1)
	}
}

type writeFunc func(c *config.Config, prog *ir.Program, w io.Writer) error

func writer(format string) (writeFunc, error) {
	switch format {
	case "ir":
		return func(_ *config.Config, prog *ir.Program, w io.Writer) error {
			_, err := io.WriteString(w, prog.String())
			return err
		}, nil
	case "go":
		return func(c *config.Config, prog *ir.Program, w io.Writer) error {
			opts := render.DefaultGoOptions
			opts.HandleType = c.HandleType
			return render.WriteGo(prog, opts, w)
		}, nil
	case "dot":
		return func(c *config.Config, prog *ir.Program, w io.Writer) error {
			cg := callgraph.Build(prog)
			callgraph.MarkRecursionFree(cg, c.MaxCallEdges)
			return render.WriteGraphviz(cg, w)
		}, nil
	}
	return nil, fmt.Errorf("format %s not recognized", format)
}

// output calls write on the file filename, or on the standard output if filename is empty
func output(filename string, write func(w io.Writer) error) error {
	out := os.Stdout
	if filename != "" {
		f, err := os.Create(filename)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
		fmt.Fprintln(os.Stderr, formatutil.Faint("Writing "+filename))
	}
	w := bufio.NewWriter(out)
	if err := write(w); err != nil {
		return err
	}
	return w.Flush()
}

func report(when string, res *interp.Result, err error) {
	switch {
	case errors.Is(err, interp.ErrAbort):
		fmt.Fprintln(os.Stderr, formatutil.Yellow(when+": the program aborted: ", err))
	case err != nil:
		fmt.Fprintln(os.Stderr, formatutil.Red(when+": execution failed: ", err))
	default:
		fmt.Fprintln(os.Stderr, formatutil.Faint(fmt.Sprintf("%s: %d handle operations, %d steps", when,
			res.Invocations, res.Steps)))
	}
}

// sameBehavior holds when both runs print the same output and either both abort or neither does. A run that fails
// for another reason, such as the step limit, cannot be compared.
func sameBehavior(before *interp.Result, beforeErr error, after *interp.Result, afterErr error) bool {
	if before == nil || after == nil {
		return false
	}
	aborted := errors.Is(beforeErr, interp.ErrAbort)
	if aborted != errors.Is(afterErr, interp.ErrAbort) {
		return false
	}
	if !aborted && (beforeErr != nil || afterErr != nil) {
		return false
	}
	return before.Output == after.Output
}
