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

package config

const (
	// DefaultEntryPoint is the function run first by programs
	DefaultEntryPoint = "main"
	// DefaultHandleType is the name of the handle type of the CAT runtime
	DefaultHandleType = "CATData"
	// DefaultMaxCallEdges is the number of outgoing call edges above which the recursion check gives up
	DefaultMaxCallEdges = 100
	// DefaultLoopInstrCeiling is the size of the largest function whose loops are transformed
	DefaultLoopInstrCeiling = 500
	// DefaultMaxLoopDepth is the deepest loop nesting level that is transformed
	DefaultMaxLoopDepth = 3
	// DefaultMaxUnrollTripCount is the smallest trip count that prevents full unrolling
	DefaultMaxUnrollTripCount = 20
	// DefaultPeelCount is the number of iterations peeled when a loop cannot be unrolled
	DefaultPeelCount = 10
	// DefaultSummaryRounds is the number of rounds of the summary computation: facts from the first round may
	// unlock facts in the second.
	DefaultSummaryRounds = 2
	// DefaultMaxRounds bounds the transformation rounds of a function
	DefaultMaxRounds = 64
	// DefaultMaxPipelineRuns bounds the number of runs of the module pipeline in the driver
	DefaultMaxPipelineRuns = 4
)
