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

package tlh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penny-vault/oracle/lp"
	"github.com/penny-vault/oracle/model"
)

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.MinNotional = 10
	cfg.MinTLHSizeBps = 50
	cfg.TradeRounding = 1
	cfg.RangeMinWeightMultiplier = 0.5
	return cfg
}

func TestCalculateHarvestQuantitiesBelowSoftMinReturnsNil(t *testing.T) {
	cfg := testConfig()
	lots := []EligibleLot{{LotID: "l1", Identifier: "AAPL", Quantity: 20, Price: 100, PerShareTaxLiability: -5}}
	trades := CalculateHarvestQuantities(0.05, 0.1, 10000, 2000, lots, cfg)
	assert.Nil(t, trades)
}

func TestCalculateHarvestQuantitiesHarvestsWithinRange(t *testing.T) {
	cfg := testConfig()
	lots := []EligibleLot{{LotID: "l1", Identifier: "AAPL", Quantity: 20, Price: 100, PerShareTaxLiability: -5}}
	// softMin = 0.1 - 0.9*(0.1-0.05) = 0.055; maxHarvestValue = (0.2-0.055)*10000 = 1450
	trades := CalculateHarvestQuantities(0.2, 0.1, 10000, 2000, lots, cfg)
	require.Len(t, trades, 1)
	assert.InDelta(t, 14, trades[0].HarvestQuantity, 1e-9)
	assert.InDelta(t, 70, trades[0].PotentialTaxSavings, 1e-9) // 5*14
}

func TestCalculateHarvestQuantitiesOrdersMostLossFirst(t *testing.T) {
	cfg := testConfig()
	lots := []EligibleLot{
		{LotID: "small-loss", Identifier: "AAPL", Quantity: 5, Price: 100, PerShareTaxLiability: -1},
		{LotID: "big-loss", Identifier: "AAPL", Quantity: 5, Price: 100, PerShareTaxLiability: -10},
	}
	trades := CalculateHarvestQuantities(0.2, 0.1, 10000, 1000, lots, cfg)
	require.NotEmpty(t, trades)
	assert.Equal(t, "big-loss", trades[0].TaxLotID)
}

func TestCalculateHarvestQuantitiesBelowMinHarvestValueReturnsNil(t *testing.T) {
	cfg := testConfig()
	cfg.MinNotional = 100000 // unreachable minimum
	lots := []EligibleLot{{LotID: "l1", Identifier: "AAPL", Quantity: 20, Price: 100, PerShareTaxLiability: -5}}
	trades := CalculateHarvestQuantities(0.2, 0.1, 10000, 2000, lots, cfg)
	assert.Nil(t, trades)
}

func TestIdentifyDirectIndexFiltersByLossThresholdAndRestriction(t *testing.T) {
	cfg := testConfig()
	cfg.TLHMinLossThreshold = 0.05

	gainLoss := []*model.GainLossRow{
		{LotID: "eligible", Identifier: "AAPL", Quantity: 20, MarketValue: 2000, TaxGainLossPercentage: -0.1, PerShareTaxLiability: -5},
		{LotID: "too-small-loss", Identifier: "MSFT", Quantity: 10, MarketValue: 1000, TaxGainLossPercentage: -0.01, PerShareTaxLiability: -0.5},
		{LotID: "restricted", Identifier: "GOOG", Quantity: 10, MarketValue: 1000, TaxGainLossPercentage: -0.2, PerShareTaxLiability: -10},
	}
	weights := DriftWeights{
		CurrentWeight: map[string]float64{"AAPL": 0.2, "MSFT": 0.2, "GOOG": 0.2},
		TargetWeight:  map[string]float64{"AAPL": 0.1, "MSFT": 0.1, "GOOG": 0.1},
		PositionValue: map[string]float64{"AAPL": 2000, "MSFT": 1000, "GOOG": 1000},
	}
	restricted := map[string]bool{"restricted": true}

	trades := IdentifyDirectIndex(gainLoss, weights, 10000, restricted, cfg)
	require.Len(t, trades, 1)
	assert.Equal(t, "AAPL", trades[0].Identifier)
}

func TestIdentifyPairsPicksReplacementAndPinsDollarNeutral(t *testing.T) {
	cfg := testConfig()
	classes := []*model.Target{
		{AssetClass: "tech", TargetWeight: 0.2, Identifiers: []string{"AAPL", "MSFT"}},
	}
	gainLoss := []*model.GainLossRow{
		{LotID: "l1", Identifier: "AAPL", Quantity: 20, MarketValue: 2000, TaxGainLossPercentage: -0.1, PerShareTaxLiability: -5},
	}
	weights := DriftWeights{
		CurrentWeight: map[string]float64{"AAPL": 0.2},
		TargetWeight:  map[string]float64{},
		PositionValue: map[string]float64{"AAPL": 2000},
	}

	trades := IdentifyPairs(classes, gainLoss, weights, 10000, map[string]bool{}, map[string]bool{}, cfg)
	require.Len(t, trades, 1)
	assert.Equal(t, "AAPL", trades[0].Identifier)
	require.Contains(t, trades[0].ReplacementBuys, "MSFT")
	assert.Greater(t, trades[0].ReplacementBuys["MSFT"], 0.0)
}

func TestIdentifyPairsSkipsWhenReplacementRestricted(t *testing.T) {
	cfg := testConfig()
	classes := []*model.Target{
		{AssetClass: "tech", TargetWeight: 0.2, Identifiers: []string{"AAPL", "MSFT"}},
	}
	gainLoss := []*model.GainLossRow{
		{LotID: "l1", Identifier: "AAPL", Quantity: 20, MarketValue: 2000, TaxGainLossPercentage: -0.1, PerShareTaxLiability: -5},
	}
	weights := DriftWeights{
		CurrentWeight: map[string]float64{"AAPL": 0.2},
		PositionValue: map[string]float64{"AAPL": 2000},
	}

	trades := IdentifyPairs(classes, gainLoss, weights, 10000, map[string]bool{}, map[string]bool{"MSFT": true}, cfg)
	assert.Empty(t, trades)
}

func TestInjectConstraintsPinsHarvestAndBlocksRebuy(t *testing.T) {
	problem := lp.NewProblem()
	buyVar := map[string]int{"AAPL": problem.AddVar("buy_AAPL", lp.Continuous, 0, math.Inf(1))}
	sellVar := map[string]int{"l1": problem.AddVar("sell_l1", lp.Continuous, 0, 20)}
	prices := map[string]*model.Price{"AAPL": {Identifier: "AAPL", Price: 100}}

	trades := []*model.TLHTrade{
		{TaxLotID: "l1", Identifier: "AAPL", HarvestQuantity: 14},
	}

	InjectConstraints(problem, buyVar, sellVar, trades, prices, map[string][]string{})

	assert.InDelta(t, 14, problem.Vars[sellVar["l1"]].Lower, 1e-9)
	assert.InDelta(t, 14, problem.Vars[sellVar["l1"]].Upper, 1e-9)
	assert.InDelta(t, 0, problem.Vars[buyVar["AAPL"]].Upper, 1e-9)
}

func TestInjectConstraintsPairsReplacementPinsDollarNeutralBuy(t *testing.T) {
	problem := lp.NewProblem()
	buyVar := map[string]int{
		"AAPL": problem.AddVar("buy_AAPL", lp.Continuous, 0, math.Inf(1)),
		"MSFT": problem.AddVar("buy_MSFT", lp.Continuous, 0, math.Inf(1)),
	}
	sellVar := map[string]int{
		"l1":      problem.AddVar("sell_l1", lp.Continuous, 0, 20),
		"msft-l1": problem.AddVar("sell_msft_l1", lp.Continuous, 0, 10),
	}
	prices := map[string]*model.Price{
		"AAPL": {Identifier: "AAPL", Price: 100},
		"MSFT": {Identifier: "MSFT", Price: 50},
	}

	trades := []*model.TLHTrade{
		{TaxLotID: "l1", Identifier: "AAPL", HarvestQuantity: 14, ReplacementBuys: map[string]float64{"MSFT": 1400}},
	}
	ownLots := map[string][]string{"MSFT": {"msft-l1"}}

	InjectConstraints(problem, buyVar, sellVar, trades, prices, ownLots)

	// replacement buy pinned to dollars/price = 1400/50 = 28
	assert.InDelta(t, 28, problem.Vars[buyVar["MSFT"]].Lower, 1e-9)
	assert.InDelta(t, 28, problem.Vars[buyVar["MSFT"]].Upper, 1e-9)
	// replacement's own lots are fixed to no further selling
	assert.InDelta(t, 0, problem.Vars[sellVar["msft-l1"]].Upper, 1e-9)
	// AAPL itself gets no further buy since it's the harvested identifier,
	// not a replacement target.
	assert.InDelta(t, 0, problem.Vars[buyVar["AAPL"]].Upper, 1e-9)
}
