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

// Package objectives assembles the composite linear objective described in
// spec.md §4.5 onto an lp.Problem: drift, tax, transaction, factor-model,
// cash-drag, and rank-penalty terms, each scaled by a fixed normalization
// constant and a user weight. Absolute-value terms (drift, factor) are
// linearized with paired non-negative over/under auxiliary variables,
// following the source's ObjectiveManager.calculate_objectives.
package objectives

import (
	"fmt"
	"math"

	"github.com/penny-vault/oracle/lp"
	"github.com/penny-vault/oracle/model"
)

// Inputs bundles everything the objective assembly needs to read but does
// not own: the decision-variable index, current holdings, and the
// reporting context.
type Inputs struct {
	Problem *lp.Problem
	BuyVar  map[string]int
	SellVar map[string]int // lot_id -> var index

	Lots           []*model.TaxLot
	Prices         map[string]*model.Price
	Spreads        map[string]float64
	GainLoss       []*model.GainLossRow
	Targets        []*model.Target
	FactorModel    *model.FactorModel
	StartingCash   float64
	TotalValue     float64
	CashTarget     float64
	RankPriority   map[string]int // lot_id -> priority rank, ascending = sell-first preference

	Config *model.Config
}

// currentValue returns, per identifier, the market value held today.
func currentValue(lots []*model.TaxLot, prices map[string]*model.Price) map[string]float64 {
	out := make(map[string]float64)
	for _, lot := range lots {
		if p, ok := prices[lot.Identifier]; ok {
			out[lot.Identifier] += lot.Quantity * p.Price
		}
	}
	return out
}

func lotsOfIdentifier(lots []*model.TaxLot, identifier string) []*model.TaxLot {
	out := make([]*model.TaxLot, 0)
	for _, l := range lots {
		if l.Identifier == identifier {
			out = append(out, l)
		}
	}
	return out
}

// Assemble adds every objective term in in to in.Problem. It returns
// nothing; ComponentsFromSolution decomposes a solved objective back into
// named parts by reading the auxiliary variables (drift_over_*, cash_drag,
// and so on) that Assemble creates.
func Assemble(in *Inputs) {
	curVal := currentValue(in.Lots, in.Prices)

	identifiers := make([]string, 0, len(in.BuyVar))
	for id := range in.BuyVar {
		identifiers = append(identifiers, id)
	}

	targetWeight := make(map[string]float64, len(in.Targets))
	for _, t := range in.Targets {
		if len(t.Identifiers) == 1 {
			targetWeight[t.Identifiers[0]] = t.TargetWeight
		} else if len(t.Identifiers) > 1 {
			per := t.TargetWeight / float64(len(t.Identifiers))
			for _, id := range t.Identifiers {
				targetWeight[id] += per
			}
		}
	}

	addDriftCost(in, identifiers, curVal, targetWeight)
	addTaxCost(in)
	addTransactionCost(in)
	addFactorCost(in, identifiers, curVal)
	addCashDragCost(in)
	addRankPenalty(in)
}

func addDriftCost(in *Inputs, identifiers []string, curVal, targetWeight map[string]float64) {
	if in.TotalValue <= 0 {
		return
	}
	for _, id := range identifiers {
		buyIdx := in.BuyVar[id]
		price := in.Prices[id].Price

		coeffs := map[int]float64{buyIdx: price / in.TotalValue}
		for _, lot := range lotsOfIdentifier(in.Lots, id) {
			if sellIdx, ok := in.SellVar[lot.LotID]; ok {
				coeffs[sellIdx] -= price / in.TotalValue
			}
		}

		over := in.Problem.AddVar(fmt.Sprintf("drift_over_%s", id), lp.Continuous, 0, 1)
		under := in.Problem.AddVar(fmt.Sprintf("drift_under_%s", id), lp.Continuous, 0, 1)
		coeffs[over] = -1
		coeffs[under] = 1

		rhs := targetWeight[id] - curVal[id]/in.TotalValue
		in.Problem.AddConstraint(fmt.Sprintf("drift_link_%s", id), coeffs, lp.EQ, rhs)

		w := model.DriftNormalization * in.Config.WeightDrift
		in.Problem.SetObjCoef(over, w)
		in.Problem.SetObjCoef(under, w)
	}
}

func addTaxCost(in *Inputs) {
	byLot := make(map[string]*model.GainLossRow, len(in.GainLoss))
	for _, row := range in.GainLoss {
		byLot[row.LotID] = row
	}
	w := model.TaxNormalization * in.Config.WeightTax
	for lotID, idx := range in.SellVar {
		row, ok := byLot[lotID]
		if !ok {
			continue
		}
		in.Problem.SetObjCoef(idx, row.PerShareTaxLiability*w)
	}
}

func addTransactionCost(in *Inputs) {
	w := model.TransactionNormalization * in.Config.WeightTransaction
	for id, idx := range in.BuyVar {
		price := in.Prices[id].Price
		half := in.Spreads[id] / 2
		in.Problem.SetObjCoef(idx, price*half*w)
	}
	for lotID, idx := range in.SellVar {
		lot := lotFor(in.Lots, lotID)
		if lot == nil {
			continue
		}
		price := in.Prices[lot.Identifier].Price
		half := in.Spreads[lot.Identifier] / 2
		in.Problem.SetObjCoef(idx, price*half*w)
	}
}

func addFactorCost(in *Inputs, identifiers []string, curVal map[string]float64) {
	if in.FactorModel == nil || in.TotalValue <= 0 {
		return
	}
	w := model.FactorModelNormalization * in.Config.WeightFactorModel

	for factor, target := range in.FactorModel.TargetExposure {
		coeffs := make(map[int]float64)
		rhs := target

		for _, id := range identifiers {
			loading, ok := in.FactorModel.Loadings[id]
			if !ok {
				continue
			}
			l := loading.Loadings[factor]
			if l == 0 {
				continue
			}
			buyIdx := in.BuyVar[id]
			coeffs[buyIdx] += l * in.Prices[id].Price / in.TotalValue
			for _, lot := range lotsOfIdentifier(in.Lots, id) {
				if sellIdx, ok := in.SellVar[lot.LotID]; ok {
					coeffs[sellIdx] -= l * in.Prices[id].Price / in.TotalValue
				}
			}
			rhs -= l * curVal[id] / in.TotalValue
		}

		over := in.Problem.AddVar(fmt.Sprintf("factor_over_%s", factor), lp.Continuous, 0, 1)
		under := in.Problem.AddVar(fmt.Sprintf("factor_under_%s", factor), lp.Continuous, 0, 1)
		coeffs[over] = -1
		coeffs[under] = 1

		in.Problem.AddConstraint(fmt.Sprintf("factor_link_%s", factor), coeffs, lp.EQ, -rhs)

		in.Problem.SetObjCoef(over, w)
		in.Problem.SetObjCoef(under, w)
	}
}

func addCashDragCost(in *Inputs) {
	w := model.CashDragNormalization * in.Config.WeightCashDrag

	coeffs := make(map[int]float64)
	for lotID, idx := range in.SellVar {
		lot := lotFor(in.Lots, lotID)
		if lot == nil {
			continue
		}
		price := in.Prices[lot.Identifier].Price
		half := in.Spreads[lot.Identifier] / 2
		coeffs[idx] += price * (1 - half)
	}
	for id, idx := range in.BuyVar {
		price := in.Prices[id].Price
		half := in.Spreads[id] / 2
		coeffs[idx] -= price * (1 + half)
	}

	drag := in.Problem.AddVar("cash_drag", lp.Continuous, 0, math.Inf(1))
	coeffs[drag] = -1
	// ending_cash - drag <= cashTarget, written as
	// net proceeds - drag <= cashTarget - startingCash, drag >= 0
	in.Problem.AddConstraint("cash_drag_link", coeffs, lp.LE, in.CashTarget-in.StartingCash)

	in.Problem.SetObjCoef(drag, w)
}

func addRankPenalty(in *Inputs) {
	if in.Config.RankPenaltyFactor == 0 || in.RankPriority == nil {
		return
	}
	for lotID, idx := range in.SellVar {
		rank, ok := in.RankPriority[lotID]
		if !ok {
			continue
		}
		in.Problem.SetObjCoef(idx, in.Config.RankPenaltyFactor*float64(rank))
	}
}

func lotFor(lots []*model.TaxLot, lotID string) *model.TaxLot {
	for _, l := range lots {
		if l.LotID == lotID {
			return l
		}
	}
	return nil
}

