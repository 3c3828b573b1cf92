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

package analysistest

import (
	"errors"
	"fmt"
	"go/token"
)

var errMissingOutput = errors.New("missing @Output annotation")

// AnnotationError is a malformed or missing annotation
type AnnotationError struct {
	Pos token.Position
	Err error
}

func (e *AnnotationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Pos, e.Err)
}

func (e *AnnotationError) Unwrap() error {
	return e.Err
}
