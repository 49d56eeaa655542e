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

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveSimpleMinimization(t *testing.T) {
	// minimize x + y subject to x + 2y >= 4, x, y >= 0.
	// Optimal at x=4, y=0 (or x=0,y=2, both objective 4); simplex
	// (Bland's rule) should find a vertex with objective 4.
	p := NewProblem()
	x := p.AddVar("x", Continuous, 0, math.Inf(1))
	y := p.AddVar("y", Continuous, 0, math.Inf(1))
	p.SetObjCoef(x, 1)
	p.SetObjCoef(y, 1)
	p.AddConstraint("c1", map[int]float64{x: 1, y: 2}, GE, 4)

	sol := Solve(p)
	require.Equal(t, Optimal, sol.Status)
	assert.InDelta(t, 4, sol.Objective, 1e-6)
	assert.GreaterOrEqual(t, sol.Value(x)+2*sol.Value(y), 4-1e-6)
}

func TestSolveWithUpperBounds(t *testing.T) {
	// maximize x + y (minimize -x -y) subject to x<=3, y<=4, x+y<=5.
	p := NewProblem()
	x := p.AddVar("x", Continuous, 0, 3)
	y := p.AddVar("y", Continuous, 0, 4)
	p.SetObjCoef(x, -1)
	p.SetObjCoef(y, -1)
	p.AddConstraint("cap", map[int]float64{x: 1, y: 1}, LE, 5)

	sol := Solve(p)
	require.Equal(t, Optimal, sol.Status)
	assert.InDelta(t, -5, sol.Objective, 1e-6)
	assert.LessOrEqual(t, sol.Value(x), 3+1e-6)
	assert.LessOrEqual(t, sol.Value(y), 4+1e-6)
}

func TestSolveEqualityConstraint(t *testing.T) {
	// minimize 2x + 3y subject to x + y = 10, x,y >= 0.
	p := NewProblem()
	x := p.AddVar("x", Continuous, 0, math.Inf(1))
	y := p.AddVar("y", Continuous, 0, math.Inf(1))
	p.SetObjCoef(x, 2)
	p.SetObjCoef(y, 3)
	p.AddConstraint("eq", map[int]float64{x: 1, y: 1}, EQ, 10)

	sol := Solve(p)
	require.Equal(t, Optimal, sol.Status)
	// Cheapest is all-x: objective 20.
	assert.InDelta(t, 20, sol.Objective, 1e-6)
	assert.InDelta(t, 10, sol.Value(x), 1e-6)
	assert.InDelta(t, 0, sol.Value(y), 1e-6)
}

func TestSolveInfeasible(t *testing.T) {
	// x <= 1 and x >= 5 simultaneously is infeasible.
	p := NewProblem()
	x := p.AddVar("x", Continuous, 0, 1)
	p.SetObjCoef(x, 1)
	p.AddConstraint("c1", map[int]float64{x: 1}, GE, 5)

	sol := Solve(p)
	assert.Equal(t, Infeasible, sol.Status)
}

func TestSolveFixedVariable(t *testing.T) {
	p := NewProblem()
	x := p.AddVar("x", Continuous, 0, math.Inf(1))
	p.Fix(x, 3)
	p.SetObjCoef(x, 5)

	sol := Solve(p)
	require.Equal(t, Optimal, sol.Status)
	assert.InDelta(t, 3, sol.Value(x), 1e-9)
	assert.InDelta(t, 15, sol.Objective, 1e-9)
}
