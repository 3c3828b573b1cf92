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

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/awslabs/cat-optimizer/analysis/ir"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	if configFile == "" {
		return NewDefault(), nil
	}
	return Load(configFile)
}

// Config contains the settings of the optimizer.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will take its default value.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// EntryPoint is the name of the function executed first by the program. It is always considered exported.
	EntryPoint string `yaml:"entry-point"`

	// HandleType is the name of the handle type in source programs
	HandleType string `yaml:"handle-type"`

	// HandleOps are the names of the five runtime operations in source programs
	HandleOps ir.OpNames `yaml:"handle-ops"`

	// Exported lists additional functions that may be called from outside the program
	Exported []string `yaml:"exported"`

	// if the FunctionFilter is specified
	functionFilterRegex *regexp.Regexp
}

// Options holds the thresholds and switches of the passes
type Options struct {
	// MaxCallEdges is the maximum number of direct call edges of a function for the recursion check. Functions with
	// more edges are never considered recursion-free.
	MaxCallEdges int `yaml:"max-call-edges"`

	// MaxInlineSize is the maximum number of instructions of an inlined callee. If <= 0, there is no limit.
	MaxInlineSize int `yaml:"max-inline-size"`

	// LoopInstrCeiling is the instruction count above which the loops of a function are not transformed
	LoopInstrCeiling int `yaml:"loop-instr-ceiling"`

	// MaxLoopDepth is the maximum nesting depth of a transformed loop, 1 being an outermost loop
	MaxLoopDepth int `yaml:"max-loop-depth"`

	// MaxUnrollTripCount bounds the trip count of fully unrolled loops (excluded)
	MaxUnrollTripCount int `yaml:"max-unroll-trip-count"`

	// PeelCount is the number of iterations peeled off loops that are not fully unrolled
	PeelCount int `yaml:"peel-count"`

	// SummaryRounds is the number of rounds of the function summary computation
	SummaryRounds int `yaml:"summary-rounds"`

	// MaxRounds bounds the number of transformation rounds on a single function
	MaxRounds int `yaml:"max-rounds"`

	// MaxPipelineRuns bounds the number of times a driver re-runs the whole pipeline while it reports changes
	MaxPipelineRuns int `yaml:"max-pipeline-runs"`

	// SkipInlining disables inlining and cloning
	SkipInlining bool `yaml:"skip-inlining"`

	// SkipLoops disables the loop transformer
	SkipLoops bool `yaml:"skip-loops"`

	// FunctionFilter is a regular expression restricting the functions being transformed. Empty matches all.
	FunctionFilter string `yaml:"function-filter"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns a config with the default options.
func NewDefault() *Config {
	return &Config{
		EntryPoint: DefaultEntryPoint,
		HandleType: DefaultHandleType,
		HandleOps:  ir.DefaultOpNames,
		Options: Options{
			MaxCallEdges:       DefaultMaxCallEdges,
			MaxInlineSize:      0,
			LoopInstrCeiling:   DefaultLoopInstrCeiling,
			MaxLoopDepth:       DefaultMaxLoopDepth,
			MaxUnrollTripCount: DefaultMaxUnrollTripCount,
			PeelCount:          DefaultPeelCount,
			SummaryRounds:      DefaultSummaryRounds,
			MaxRounds:          DefaultMaxRounds,
			MaxPipelineRuns:    DefaultMaxPipelineRuns,
			LogLevel:           int(InfoLevel),
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return LoadFromBytes(filename, b)
}

// LoadFromBytes parses the content of a configuration file. filename is only used to resolve relative paths.
func LoadFromBytes(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file %s: %w", filename, err)
	}
	cfg.sourceFile = filename
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//gocyclo:ignore
func (c *Config) applyDefaults() error {
	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if c.LogLevel == 0 {
		c.LogLevel = int(InfoLevel)
	}
	if c.MaxCallEdges <= 0 {
		c.MaxCallEdges = DefaultMaxCallEdges
	}
	if c.LoopInstrCeiling <= 0 {
		c.LoopInstrCeiling = DefaultLoopInstrCeiling
	}
	if c.MaxLoopDepth <= 0 {
		c.MaxLoopDepth = DefaultMaxLoopDepth
	}
	if c.MaxUnrollTripCount <= 0 {
		c.MaxUnrollTripCount = DefaultMaxUnrollTripCount
	}
	if c.PeelCount < 0 {
		c.PeelCount = DefaultPeelCount
	}
	if c.SummaryRounds <= 0 {
		c.SummaryRounds = DefaultSummaryRounds
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.MaxPipelineRuns <= 0 {
		c.MaxPipelineRuns = DefaultMaxPipelineRuns
	}
	if c.EntryPoint == "" {
		c.EntryPoint = DefaultEntryPoint
	}
	if c.HandleType == "" {
		c.HandleType = DefaultHandleType
	}
	fillOpName(&c.HandleOps.New, ir.DefaultOpNames.New)
	fillOpName(&c.HandleOps.Get, ir.DefaultOpNames.Get)
	fillOpName(&c.HandleOps.Set, ir.DefaultOpNames.Set)
	fillOpName(&c.HandleOps.Add, ir.DefaultOpNames.Add)
	fillOpName(&c.HandleOps.Sub, ir.DefaultOpNames.Sub)
	if c.FunctionFilter != "" {
		r, err := regexp.Compile(c.FunctionFilter)
		if err != nil {
			return fmt.Errorf("invalid function filter %q: %w", c.FunctionFilter, err)
		}
		c.functionFilterRegex = r
	}
	return nil
}

func fillOpName(name *string, def string) {
	if *name == "" {
		*name = def
	}
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchFunctionFilter returns true if the function name matches the function filter set in the config file. If no
// filter has been set, every function matches.
func (c Config) MatchFunctionFilter(name string) bool {
	if c.functionFilterRegex != nil {
		return c.functionFilterRegex.MatchString(name)
	}
	return c.FunctionFilter == "" || strings.HasPrefix(name, c.FunctionFilter)
}

// IsExported returns true if the function name is the entry point or listed in Exported
func (c Config) IsExported(name string) bool {
	if name == c.EntryPoint {
		return true
	}
	for _, e := range c.Exported {
		if e == name {
			return true
		}
	}
	return false
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}
