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

// Package optimizer drives the passes of the optimizer over a function or a whole program.
//
// On a program, the pipeline is: recursion detection, inlining, cloning, loop transformation, summaries, and then
// the function pipeline on every reachable function, callees first. The function pipeline repeats argument
// propagation, handle constant propagation with folding and copy propagation, dead code elimination and generic
// constant folding until a round changes nothing.
package optimizer

import (
	"time"

	"github.com/awslabs/cat-optimizer/analysis/alias"
	"github.com/awslabs/cat-optimizer/analysis/callgraph"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/dataflow"
	"github.com/awslabs/cat-optimizer/analysis/inline"
	"github.com/awslabs/cat-optimizer/analysis/ir"
	"github.com/awslabs/cat-optimizer/analysis/loops"
	"github.com/awslabs/cat-optimizer/analysis/summaries"
	"github.com/awslabs/cat-optimizer/analysis/transform"
)

// Pass holds the configuration of the optimizer. A Pass is not safe for concurrent use.
type Pass struct {
	Config *config.Config
	Log    *config.LogGroup
	Oracle alias.Oracle

	// Summaries are the summaries computed by the last RunOnModule, used by RunOnFunction. Nil before.
	Summaries *summaries.Table
}

// NewPass returns a pass with the default alias oracle
func NewPass(c *config.Config, log *config.LogGroup) *Pass {
	return &Pass{Config: c, Log: log, Oracle: alias.NewBasicOracle()}
}

func (p *Pass) facts() dataflow.Facts {
	if p.Summaries == nil {
		return dataflow.NoFacts
	}
	return p.Summaries
}

// RunOnFunction repeats the function pipeline on fn until it stabilizes, or the maximum number of rounds is
// reached. Returns true if fn changed.
func (p *Pass) RunOnFunction(fn *ir.Function) bool {
	if fn.IsExternal() {
		return false
	}
	facts := p.facts()
	changed := false
	for round := 0; ; round++ {
		if round >= p.Config.MaxRounds {
			p.Log.Warnf("%s did not stabilize after %d rounds", fn.Name(), p.Config.MaxRounds)
			break
		}
		dce := transform.NewDeadCode(p.Oracle, p.Log)
		propagated := transform.PropagateArguments(fn, facts, p.Log)
		constants := transform.Constants(fn, p.Oracle, facts, p.Log)
		removed := dce.Run(fn)
		folded := transform.Fold(fn, p.Log)
		if !propagated && !constants && !removed && !folded {
			break
		}
		changed = true
	}
	return changed
}

// RunOnModule runs the whole pipeline on prog. Returns true if some phase changed the program.
func (p *Pass) RunOnModule(prog *ir.Program) bool {
	start := time.Now()
	c := p.Config
	changed := false

	cg := callgraph.Build(prog)
	callgraph.MarkRecursionFree(cg, c.MaxCallEdges)
	if !c.SkipInlining {
		if inline.InlineAll(cg, c, p.Log) {
			changed = true
		}
		// each round of copies may make new functions recursion-free callees with many sites
		for cloned := true; cloned; {
			cg = callgraph.Build(prog)
			callgraph.MarkRecursionFree(cg, c.MaxCallEdges)
			cloned = inline.CloneAll(cg, c, p.Log)
			changed = changed || cloned
		}
	}
	if !c.SkipLoops {
		if loops.TransformAll(cg, c, p.Log) {
			changed = true
		}
	}
	// the loop transformer copies calls
	cg = callgraph.Build(prog)
	p.Summaries = summaries.Build(cg, p.Oracle, c.SummaryRounds, p.Log)
	for _, s := range p.Summaries.Summaries() {
		p.Log.Tracef("summary %s", s)
	}

	n := 0
	for _, f := range callgraph.BottomUp(cg) {
		if !cg.IsReachable(f) || !c.MatchFunctionFilter(f.RawName()) {
			continue
		}
		if p.RunOnFunction(f) {
			p.Log.Debugf("optimized %s", f.Name())
			changed = true
			n++
		}
	}
	p.Log.Infof("optimized %d functions in %.3fs", n, time.Since(start).Seconds())
	return changed
}

// Run reruns RunOnModule while it reports a change, at most the configured number of times. Returns the number of
// runs that changed the program.
func (p *Pass) Run(prog *ir.Program) int {
	runs := 0
	for runs < p.Config.MaxPipelineRuns && p.RunOnModule(prog) {
		runs++
	}
	if runs > 0 && runs == p.Config.MaxPipelineRuns {
		p.Log.Warnf("the program still changes after %d runs", runs)
	}
	return runs
}
