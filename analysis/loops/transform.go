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

package loops

import (
	"github.com/awslabs/cat-optimizer/analysis/callgraph"
	"github.com/awslabs/cat-optimizer/analysis/cfg"
	"github.com/awslabs/cat-optimizer/analysis/config"
	"github.com/awslabs/cat-optimizer/analysis/ir"
)

// TransformAll transforms the loops of every reachable function of the program. Returns true if some function
// changed.
func TransformAll(cg *callgraph.Graph, c *config.Config, log *config.LogGroup) bool {
	changed := false
	for _, f := range cg.Prog.Defined() {
		if !cg.IsReachable(f) || !c.MatchFunctionFilter(f.RawName()) {
			continue
		}
		if TransformFunction(f, c, log) {
			changed = true
		}
	}
	return changed
}

// TransformFunction unrolls or peels the loops of fn, innermost first, while fn has fewer instructions than the
// configured ceiling. A loop is a candidate if it is not nested deeper than the maximum depth, contains a handle
// operation, and has not been transformed yet. After each transformed loop, constant branches are folded,
// unreachable blocks are removed and the loops are recomputed.
func TransformFunction(fn *ir.Function, c *config.Config, log *config.LogGroup) bool {
	if fn.IsExternal() {
		return false
	}
	changed := cfg.RemoveUnreachable(fn)
	failed := map[*ir.BasicBlock]bool{}
	for fn.InstrCount() <= c.LoopInstrCeiling {
		forest := FindLoops(fn, cfg.Dominators(fn))
		transformed := false
		forest.PostOrder(func(node *Forest) bool {
			l := node.Label
			if l == nil || l.Header.Peeled || failed[l.Header] {
				return false
			}
			if node.Depth() > c.MaxLoopDepth || !l.HasHandleOp() {
				return false
			}
			applied, modified := transformLoop(fn, l, c, log)
			changed = changed || modified
			if applied {
				transformed = true
				return true
			}
			failed[l.Header] = true
			return false
		})
		if !transformed {
			break
		}
		cfg.Simplify(fn)
	}
	if changed {
		fn.Renumber()
	}
	return changed
}

// transformLoop normalizes l and unrolls or peels it. It returns whether l was transformed and whether fn changed.
func transformLoop(fn *ir.Function, l *Loop, c *config.Config, log *config.LogGroup) (bool, bool) {
	nblocks := len(fn.Blocks)
	s, err := Normalize(fn, l)
	if err != nil {
		log.Debugf("in %s: %v", fn.Name(), err)
		return false, len(fn.Blocks) != nblocks
	}
	header := l.Header
	if trip, ok := TripCount(l, s, c.MaxUnrollTripCount); ok {
		if err := Unroll(fn, l, s, trip); err != nil {
			log.Debugf("in %s: unrolling stopped: %v", fn.Name(), err)
		} else {
			log.Debugf("in %s: unrolled %s (trip count %d)", fn.Name(), l, trip)
		}
	} else if c.PeelCount > 0 {
		if err := PeelN(fn, l, s, c.PeelCount); err != nil {
			log.Debugf("in %s: peeling stopped: %v", fn.Name(), err)
		} else {
			log.Debugf("in %s: peeled %d iterations of %s", fn.Name(), c.PeelCount, l)
		}
	} else {
		return false, len(fn.Blocks) != nblocks
	}
	header.Peeled = true
	return true, true
}
