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
Package dataflow implements the intra-procedural analyses the optimizer relies on to find the constants held by
handles.

A FunctionAnalysis is built for one function at a time, and is only valid until the function is modified. It
contains:

  - the alias sets of the handle values of the function: for each value, the values that must refer to the same
    cell and the values that may refer to the same cell,
  - the escaped stores, i.e. the stores whose target may be accessed by a call to a function that is not part of
    the handle runtime,
  - the reaching definitions of every instruction, as bitsets over the definition sites of the function,
  - the escape analysis of handle values, computed on demand.

The analysis never claims a fact it cannot establish: Resolve only returns a constant when every definition that
may reach the query point agrees on it and none of the handles involved escapes.

The interprocedural facts (constants returned by functions, constants received by parameters) are provided by a
Facts implementation, typically the summaries of the summaries package.
*/
package dataflow
