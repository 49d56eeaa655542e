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

package constraints

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penny-vault/oracle/lp"
	"github.com/penny-vault/oracle/model"
)

func newTestLotsAndPrices() ([]*model.TaxLot, map[string]*model.Price) {
	lots := []*model.TaxLot{
		{LotID: "l1", Identifier: "AAPL", Quantity: 10, CostBasis: 1000, PurchaseDate: time.Now().AddDate(-1, 0, 0)},
	}
	prices := map[string]*model.Price{"AAPL": {Identifier: "AAPL", Price: 100}}
	return lots, prices
}

func TestAddCashFloorBlocksOverspend(t *testing.T) {
	lots, prices := newTestLotsAndPrices()
	problem := lp.NewProblem()
	buyVar := map[string]int{"AAPL": problem.AddVar("buy_AAPL", lp.Continuous, 0, math.Inf(1))}
	sellVar := map[string]int{}

	mgr := NewManager(problem, buyVar, sellVar)
	mgr.AddCashFloor(lots, prices, map[string]float64{"AAPL": 0}, 500, 0)

	// Minimize -buy (i.e. maximize buy); cash floor should cap buy at 5 shares (500/100).
	problem.SetObjCoef(buyVar["AAPL"], -1)
	sol := lp.Solve(problem)
	require.Equal(t, lp.Optimal, sol.Status)
	assert.InDelta(t, 5, sol.Value(buyVar["AAPL"]), 1e-6)
}

func TestAddLotAvailabilityCapsAggregateSells(t *testing.T) {
	lots := []*model.TaxLot{
		{LotID: "l1", Identifier: "AAPL", Quantity: 5},
		{LotID: "l2", Identifier: "AAPL", Quantity: 5},
	}
	problem := lp.NewProblem()
	sellVar := map[string]int{
		"l1": problem.AddVar("sell_l1", lp.Continuous, 0, 5),
		"l2": problem.AddVar("sell_l2", lp.Continuous, 0, 5),
	}
	mgr := NewManager(problem, map[string]int{}, sellVar)
	mgr.AddLotAvailability(lots)

	// Maximize total sells; aggregate cap should be 10 total (matches bound sum).
	problem.SetObjCoef(sellVar["l1"], -1)
	problem.SetObjCoef(sellVar["l2"], -1)
	sol := lp.Solve(problem)
	require.Equal(t, lp.Optimal, sol.Status)
	assert.InDelta(t, 10, sol.Value(sellVar["l1"])+sol.Value(sellVar["l2"]), 1e-6)
}

func TestAddHoldingPeriodFixesYoungLotSellToZero(t *testing.T) {
	currentDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []*model.TaxLot{
		{LotID: "young", Identifier: "AAPL", Quantity: 10, PurchaseDate: currentDate.AddDate(0, 0, -5)},
		{LotID: "old", Identifier: "AAPL", Quantity: 10, PurchaseDate: currentDate.AddDate(-1, 0, 0)},
	}
	problem := lp.NewProblem()
	sellVar := map[string]int{
		"young": problem.AddVar("sell_young", lp.Continuous, 0, 10),
		"old":   problem.AddVar("sell_old", lp.Continuous, 0, 10),
	}
	mgr := NewManager(problem, map[string]int{}, sellVar)
	mgr.AddHoldingPeriod(lots, currentDate, 30)

	assert.InDelta(t, 0, problem.Vars[sellVar["young"]].Upper, 1e-9)
	assert.InDelta(t, 10, problem.Vars[sellVar["old"]].Upper, 1e-9)
}

func TestAddHoldingPeriodNoOpWhenZeroDays(t *testing.T) {
	lots := []*model.TaxLot{{LotID: "l1", Identifier: "AAPL", Quantity: 10, PurchaseDate: time.Now()}}
	problem := lp.NewProblem()
	sellVar := map[string]int{"l1": problem.AddVar("sell_l1", lp.Continuous, 0, 10)}
	mgr := NewManager(problem, map[string]int{}, sellVar)
	mgr.AddHoldingPeriod(lots, time.Now(), 0)
	assert.InDelta(t, 10, problem.Vars[sellVar["l1"]].Upper, 1e-9)
}

func TestAddWashSaleBlocksRestrictedAndSoldAtLoss(t *testing.T) {
	problem := lp.NewProblem()
	buyVar := map[string]int{
		"AAPL": problem.AddVar("buy_AAPL", lp.Continuous, 0, math.Inf(1)),
		"MSFT": problem.AddVar("buy_MSFT", lp.Continuous, 0, math.Inf(1)),
		"GOOG": problem.AddVar("buy_GOOG", lp.Continuous, 0, math.Inf(1)),
	}
	mgr := NewManager(problem, buyVar, map[string]int{})
	mgr.AddWashSale(&WashSaleRestriction{
		RestrictedFromBuying: map[string]bool{"AAPL": true},
		SoldAtLossThisRound:  map[string]bool{"MSFT": true},
		ReplacementTargets:   map[string]bool{"GOOG": true},
	})

	assert.InDelta(t, 0, problem.Vars[buyVar["AAPL"]].Upper, 1e-9)
	assert.InDelta(t, 0, problem.Vars[buyVar["MSFT"]].Upper, 1e-9)
	assert.True(t, math.IsInf(problem.Vars[buyVar["GOOG"]].Upper, 1))
}

func TestAddWashSaleNilRestrictionIsNoOp(t *testing.T) {
	problem := lp.NewProblem()
	buyVar := map[string]int{"AAPL": problem.AddVar("buy_AAPL", lp.Continuous, 0, math.Inf(1))}
	mgr := NewManager(problem, buyVar, map[string]int{})
	mgr.AddWashSale(nil)
	assert.True(t, math.IsInf(problem.Vars[buyVar["AAPL"]].Upper, 1))
}

func TestAddWithdrawalRequiresExactProceeds(t *testing.T) {
	lots, prices := newTestLotsAndPrices()
	problem := lp.NewProblem()
	sellVar := map[string]int{"l1": problem.AddVar("sell_l1", lp.Continuous, 0, 10)}
	mgr := NewManager(problem, map[string]int{}, sellVar)
	mgr.AddWithdrawal(lots, prices, map[string]float64{"AAPL": 0}, 300)

	sol := lp.Solve(problem)
	require.Equal(t, lp.Optimal, sol.Status)
	assert.InDelta(t, 3, sol.Value(sellVar["l1"]), 1e-6) // 3 shares * 100 = 300
}

func TestAddWithdrawalZeroAmountIsNoOp(t *testing.T) {
	lots, prices := newTestLotsAndPrices()
	problem := lp.NewProblem()
	sellVar := map[string]int{"l1": problem.AddVar("sell_l1", lp.Continuous, 0, 10)}
	mgr := NewManager(problem, map[string]int{}, sellVar)
	mgr.AddWithdrawal(lots, prices, map[string]float64{}, 0)
	assert.Empty(t, problem.Constraints)
}

func TestAddMinimumNotionalEnforcesDisjunction(t *testing.T) {
	prices := map[string]*model.Price{"AAPL": {Identifier: "AAPL", Price: 100}}
	problem := lp.NewProblem()
	buyVar := map[string]int{"AAPL": problem.AddVar("buy_AAPL", lp.Continuous, 0, 1)} // at most 1 share = $100 notional
	mgr := NewManager(problem, buyVar, map[string]int{})
	mgr.AddMinimumNotional([]string{"AAPL"}, buyVar, prices, 500)

	// Force a nonzero buy; minimum notional ($500) cannot be met with <=1 share
	// ($100 max), so the binary indicator must be 0 and buy forced to 0 too.
	problem.AddConstraint("force_nonzero", map[int]float64{buyVar["AAPL"]: 1}, lp.GE, 0.5)
	sol := lp.BranchAndBound(problem)
	assert.Equal(t, lp.Infeasible, sol.Status)
}

func TestBuildAggregateSellVarsLinksToLotSells(t *testing.T) {
	lots := []*model.TaxLot{
		{LotID: "l1", Identifier: "AAPL", Quantity: 5},
		{LotID: "l2", Identifier: "AAPL", Quantity: 5},
	}
	problem := lp.NewProblem()
	sellVar := map[string]int{
		"l1": problem.AddVar("sell_l1", lp.Continuous, 0, 5),
		"l2": problem.AddVar("sell_l2", lp.Continuous, 0, 5),
	}
	mgr := NewManager(problem, map[string]int{}, sellVar)
	agg := mgr.BuildAggregateSellVars(lots)

	problem.Fix(sellVar["l1"], 3)
	problem.Fix(sellVar["l2"], 2)
	problem.SetObjCoef(agg["AAPL"], 1)

	sol := lp.Solve(problem)
	require.Equal(t, lp.Optimal, sol.Status)
	assert.InDelta(t, 5, sol.Value(agg["AAPL"]), 1e-6)
}
