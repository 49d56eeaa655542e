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

package oracle

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penny-vault/oracle/lp"
	"github.com/penny-vault/oracle/model"
)

func TestExtractTradesBuildsTradesAndFiltersTolerance(t *testing.T) {
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []*model.TaxLot{
		{LotID: "l1", Identifier: "AAPL", Quantity: 10, CostBasis: 800},
	}
	prices := map[string]*model.Price{
		"AAPL": {Identifier: "AAPL", Price: 100},
		"MSFT": {Identifier: "MSFT", Price: 50},
	}
	gainLoss := []*model.GainLossRow{
		{LotID: "l1", Identifier: "AAPL", PerShareTaxLiability: 3},
	}

	problem := lp.NewProblem()
	sellVar := map[string]int{"l1": problem.AddVar("sell_l1", lp.Continuous, 0, 10)}
	buyVar := map[string]int{
		"MSFT": problem.AddVar("buy_MSFT", lp.Continuous, 0, math.Inf(1)),
		"AAPL": problem.AddVar("buy_AAPL", lp.Continuous, 0, math.Inf(1)),
	}
	problem.Fix(sellVar["l1"], 4)
	problem.Fix(buyVar["MSFT"], 2)
	problem.Fix(buyVar["AAPL"], 0) // below tolerance, should be filtered

	sol := lp.Solve(problem)
	require.Equal(t, lp.Optimal, sol.Status)

	trades := extractTrades(problem, sol, buyVar, sellVar, lots, prices, gainLoss, asOf)
	require.Len(t, trades, 2)

	// Deterministic (Identifier, Action, LotID) ordering: AAPL SELL before MSFT BUY.
	assert.Equal(t, "AAPL", trades[0].Identifier)
	assert.Equal(t, model.Sell, trades[0].Action)
	assert.InDelta(t, 4, trades[0].Quantity, 1e-9)
	assert.InDelta(t, 400, trades[0].EstimatedValue, 1e-9)
	assert.InDelta(t, 12, trades[0].TaxImpact, 1e-9) // 3 * 4
	assert.NotEmpty(t, trades[0].SourceID)

	assert.Equal(t, "MSFT", trades[1].Identifier)
	assert.Equal(t, model.Buy, trades[1].Action)
	assert.InDelta(t, 2, trades[1].Quantity, 1e-9)
	assert.InDelta(t, 100, trades[1].EstimatedValue, 1e-9)
	assert.Zero(t, trades[1].TaxImpact)
}

func TestStampSourceIDIsDeterministic(t *testing.T) {
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := &model.Trade{Identifier: "AAPL", Action: model.Buy, Quantity: 5, EstimatedPrice: 100, EstimatedValue: 500}
	t2 := &model.Trade{Identifier: "AAPL", Action: model.Buy, Quantity: 5, EstimatedPrice: 100, EstimatedValue: 500}
	stampSourceID(t1, asOf)
	stampSourceID(t2, asOf)
	assert.Equal(t, t1.SourceID, t2.SourceID)
	assert.NotEmpty(t, t1.SourceID)
}

func newApplyTradesFixture() *model.Strategy {
	return &model.Strategy{
		ID:   "s1",
		Cash: 1000,
		TaxLots: []*model.TaxLot{
			{LotID: "l1", Identifier: "AAPL", Quantity: 10, CostBasis: 800, AccountID: "acct-1", AccountType: model.Taxable},
			{LotID: "l2", Identifier: "AAPL", Quantity: 2, CostBasis: 150, AccountID: "acct-2", AccountType: model.Roth},
		},
		Prices: map[string]*model.Price{"AAPL": {Identifier: "AAPL", Price: 100}, "MSFT": {Identifier: "MSFT", Price: 50}},
	}
}

func TestApplyTradesPartialSellShrinksLotProportionally(t *testing.T) {
	before := newApplyTradesFixture()
	trades := []*model.Trade{
		{Identifier: "AAPL", Action: model.Sell, Quantity: 4, EstimatedValue: 400, LotID: "l1"},
	}

	after := ApplyTrades(before, trades, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	var l1 *model.TaxLot
	for _, lot := range after.TaxLots {
		if lot.LotID == "l1" {
			l1 = lot
		}
	}
	require.NotNil(t, l1)
	assert.InDelta(t, 6, l1.Quantity, 1e-9)
	// cost basis per share (80) must be preserved: 6 * 80 = 480
	assert.InDelta(t, 80, l1.CostBasisPerShare(), 1e-9)
	assert.InDelta(t, 1400, after.Cash, 1e-9)

	// original strategy untouched
	assert.InDelta(t, 10, before.TaxLots[0].Quantity, 1e-9)
	assert.InDelta(t, 1000, before.Cash, 1e-9)
}

func TestApplyTradesFullSellDeletesLot(t *testing.T) {
	before := newApplyTradesFixture()
	trades := []*model.Trade{
		{Identifier: "AAPL", Action: model.Sell, Quantity: 10, EstimatedValue: 1000, LotID: "l1"},
	}

	after := ApplyTrades(before, trades, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	for _, lot := range after.TaxLots {
		assert.NotEqual(t, "l1", lot.LotID)
	}
	assert.Len(t, after.TaxLots, 1)
	assert.InDelta(t, 2000, after.Cash, 1e-9)
}

func TestApplyTradesBuyCreatesNewLotInheritingLargestAccount(t *testing.T) {
	before := newApplyTradesFixture()
	trades := []*model.Trade{
		{Identifier: "AAPL", Action: model.Buy, Quantity: 3, EstimatedValue: 300},
	}
	asOf := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	after := ApplyTrades(before, trades, asOf)

	require.Len(t, after.TaxLots, 3)
	var newLot *model.TaxLot
	for _, lot := range after.TaxLots {
		if lot.LotID != "l1" && lot.LotID != "l2" {
			newLot = lot
		}
	}
	require.NotNil(t, newLot)
	assert.InDelta(t, 3, newLot.Quantity, 1e-9)
	assert.InDelta(t, 300, newLot.CostBasis, 1e-9)
	assert.True(t, newLot.PurchaseDate.Equal(asOf))
	// l1 has the largest existing AAPL position (10 > 2), so the new lot inherits its account.
	assert.Equal(t, "acct-1", newLot.AccountID)
	assert.Equal(t, model.Taxable, newLot.AccountType)
	assert.InDelta(t, 700, after.Cash, 1e-9)
}

func TestAccountForIdentifierFallsBackWhenNoExistingPosition(t *testing.T) {
	lots := []*model.TaxLot{
		{LotID: "l1", Identifier: "MSFT", Quantity: 5, AccountID: "acct-msft", AccountType: model.TaxDeferred},
	}
	assert.Equal(t, "acct-msft", accountIDForIdentifier(lots, "AAPL"))
	assert.Equal(t, model.TaxDeferred, accountTypeForIdentifier(lots, "AAPL"))
}

func TestAccountForIdentifierEmptyWhenNoLots(t *testing.T) {
	assert.Equal(t, "", accountIDForIdentifier(nil, "AAPL"))
	assert.Equal(t, model.Taxable, accountTypeForIdentifier(nil, "AAPL"))
}
