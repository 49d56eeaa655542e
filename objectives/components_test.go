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

package objectives

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penny-vault/oracle/lp"
)

func TestComponentsFromSolutionNonOptimalReturnsZeroValue(t *testing.T) {
	sol := &lp.Solution{Status: lp.Infeasible}
	got := ComponentsFromSolution(&Inputs{}, sol)
	assert.Zero(t, got)
}

func TestComponentsFromSolutionDecomposesTaxAndTransaction(t *testing.T) {
	problem := lp.NewProblem()
	buyVar := map[string]int{"AAPL": problem.AddVar("buy_AAPL", lp.Continuous, 0, math.Inf(1))}
	sellVar := map[string]int{"l1": problem.AddVar("sell_l1", lp.Continuous, 0, 10)}
	in := baseInputs(problem, buyVar, sellVar)
	Assemble(in)

	problem.Fix(sellVar["l1"], 4)
	problem.Fix(buyVar["AAPL"], 0)

	sol := lp.Solve(problem)
	require.Equal(t, lp.Optimal, sol.Status)

	comps := ComponentsFromSolution(in, sol)
	// tax = qty * perShareTaxLiability = 4*3 = 12
	assert.InDelta(t, 12, comps.Tax, 1e-6)
	// transaction = qty*price*half = 4*100*0.005 = 2
	assert.InDelta(t, 2, comps.Transaction, 1e-6)
	assert.InDelta(t, sol.Objective, comps.Overall, 1e-9)
}
