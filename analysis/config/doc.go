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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml or json format. The top-level fields can be any of the fields defined in the Config
struct type, the options being inlined at the top level. Fields that are absent keep their default value.
For example, a valid config file is as follows:

	log-level: 4
	entry-point: main
	handle-ops:
	  new: CAT_new
	  get: CAT_get
	max-unroll-trip-count: 8
	skip-inlining: true

# Handle operations

The optimizer recognizes exactly five runtime operations by name. The names default to the CAT runtime's (CAT_new,
CAT_get, CAT_set, CAT_add and CAT_sub) and can be overridden one by one in the handle-ops section.

# Thresholds

The thresholds (max-call-edges, loop-instr-ceiling, max-loop-depth, max-unroll-trip-count, peel-count) bound the
amount of code growth. A threshold set to zero or a negative value takes its default, except for max-inline-size where
zero means no limit and peel-count where zero disables peeling.
*/
package config
