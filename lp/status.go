// Copyright 2021-2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lp

import "errors"

// Status is the outcome of one solve, surfaced verbatim in the trade
// summary per spec.md §4.6.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	Undefined
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	default:
		return "undefined"
	}
}

// ErrDidNotConverge names the case where the simplex iteration limit is
// reached without a terminal tableau. Solve does not return it: it reports
// that case as Status Undefined in the Solution, which never indicates the
// problem is actually infeasible or unbounded.
var ErrDidNotConverge = errors.New("lp: simplex did not converge within iteration limit")

// Solution is the result of solving a Problem.
type Solution struct {
	Status    Status
	Values    []float64 // indexed the same as Problem.Vars
	Objective float64
}

// Value returns the solved value of variable idx, or 0 if the solution has
// no values (non-optimal status).
func (s *Solution) Value(idx int) float64 {
	if idx < 0 || idx >= len(s.Values) {
		return 0
	}
	return s.Values[idx]
}
