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

package interp

import (
	"errors"
	"fmt"
)

// CanaryString is written before and after the value of every cell. A cell whose canaries differ is corrupted.
const CanaryString = "p6pbbUlpLo0BL1bM2k8K"

// canarySize is the length of the canary markers
const canarySize = len(CanaryString)

// ErrAbort is wrapped by the errors of executions aborted by the runtime: a Get or Set on a null or corrupted
// handle, or a division by zero.
var ErrAbort = errors.New("runtime abort")

// ErrStepLimit is returned when an execution runs more instructions than the machine's step limit.
var ErrStepLimit = errors.New("step limit exceeded")

// A Cell is the memory of one handle.
type Cell struct {
	begin [canarySize]byte
	Value int64
	end   [canarySize]byte
}

func newCell(v int64) *Cell {
	c := &Cell{Value: v}
	copy(c.begin[:], CanaryString)
	copy(c.end[:], CanaryString)
	return c
}

// Corrupt overwrites the first canary of the cell. Any later access to the cell aborts.
func (c *Cell) Corrupt() {
	c.begin[0] ^= 0xff
}

// checkCell returns the cell of handle h, or an abort error if h is null or corrupted
func checkCell(h Value) (*Cell, error) {
	c, ok := h.(*Cell)
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: input is NULL", ErrAbort)
	}
	if string(c.begin[:]) != CanaryString || string(c.end[:]) != CanaryString {
		return nil, fmt.Errorf("%w: data has been corrupted", ErrAbort)
	}
	return c, nil
}

func isNull(h Value) bool {
	c, ok := h.(*Cell)
	return !ok || c == nil
}

// handleNew implements New
func (m *Machine) handleNew(v Value) (Value, error) {
	m.invocations++
	x, ok := v.(int64)
	if !ok {
		return nil, fmt.Errorf("New expects an integer, got %v", v)
	}
	return newCell(x), nil
}

// handleGet implements Get
func (m *Machine) handleGet(h Value) (Value, error) {
	m.invocations++
	c, err := checkCell(h)
	if err != nil {
		return nil, err
	}
	return c.Value, nil
}

// handleSet implements Set
func (m *Machine) handleSet(h Value, v Value) error {
	m.invocations++
	c, err := checkCell(h)
	if err != nil {
		return err
	}
	x, ok := v.(int64)
	if !ok {
		return fmt.Errorf("Set expects an integer, got %v", v)
	}
	c.Value = x
	return nil
}

// handleArith implements Add and Sub. The operation does nothing if a source is null.
func (m *Machine) handleArith(sub bool, dest, x, y Value) error {
	m.invocations++
	if isNull(x) || isNull(y) {
		return nil
	}
	cx, err := checkCell(x)
	if err != nil {
		return err
	}
	cy, err := checkCell(y)
	if err != nil {
		return err
	}
	cd, err := checkCell(dest)
	if err != nil {
		return err
	}
	if sub {
		cd.Value = cx.Value - cy.Value
	} else {
		cd.Value = cx.Value + cy.Value
	}
	return nil
}
