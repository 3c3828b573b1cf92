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

// Package formatutil colors the messages of the command line tool.
package formatutil

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// colors are on when the messages go to a terminal
var colors = term.IsTerminal(int(os.Stderr.Fd()))

var (
	Bold   = Color("1")
	Faint  = Color("2")
	Red    = Color("1;31")
	Green  = Color("1;32")
	Yellow = Color("1;33")
)

// SetColors overrides the detection of the terminal
func SetColors(on bool) {
	colors = on
}

// Color returns a function formatting its arguments like fmt.Sprint, wrapped in the ANSI escape code when colors are
// enabled.
func Color(code string) func(...any) string {
	return func(args ...any) string {
		s := fmt.Sprint(args...)
		if !colors {
			return s
		}
		return "\033[" + code + "m" + s + "\033[0m"
	}
}
