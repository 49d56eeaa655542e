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
	"github.com/penny-vault/oracle/lp"
	"github.com/penny-vault/oracle/model"
)

// ComponentsFromSolution re-derives the named objective terms (in their
// natural economic units, not normalization-scaled) from a solved Problem,
// the equivalent of the source's extract_component_values.
func ComponentsFromSolution(in *Inputs, sol *lp.Solution) model.ObjectiveComponents {
	if sol.Status != lp.Optimal {
		return model.ObjectiveComponents{}
	}

	byLot := make(map[string]*model.GainLossRow, len(in.GainLoss))
	for _, row := range in.GainLoss {
		byLot[row.LotID] = row
	}

	var tax, transaction, drift, factor, cashDrag, rank float64

	for lotID, idx := range in.SellVar {
		qty := sol.Value(idx)
		lot := lotFor(in.Lots, lotID)
		if lot == nil {
			continue
		}
		price := in.Prices[lot.Identifier].Price
		half := in.Spreads[lot.Identifier] / 2
		transaction += qty * price * half

		if row, ok := byLot[lotID]; ok {
			tax += qty * row.PerShareTaxLiability
		}
		if in.RankPriority != nil {
			if r, ok := in.RankPriority[lotID]; ok {
				rank += in.Config.RankPenaltyFactor * float64(r) * qty
			}
		}
	}

	for id, idx := range in.BuyVar {
		qty := sol.Value(idx)
		price := in.Prices[id].Price
		half := in.Spreads[id] / 2
		transaction += qty * price * half
	}

	for id := range in.BuyVar {
		overIdx := in.Problem.Index("drift_over_" + id)
		underIdx := in.Problem.Index("drift_under_" + id)
		if overIdx >= 0 {
			drift += sol.Value(overIdx)
		}
		if underIdx >= 0 {
			drift += sol.Value(underIdx)
		}
	}

	if in.FactorModel != nil {
		for factorName := range in.FactorModel.TargetExposure {
			overIdx := in.Problem.Index("factor_over_" + factorName)
			underIdx := in.Problem.Index("factor_under_" + factorName)
			if overIdx >= 0 {
				factor += sol.Value(overIdx)
			}
			if underIdx >= 0 {
				factor += sol.Value(underIdx)
			}
		}
	}

	if dragIdx := in.Problem.Index("cash_drag"); dragIdx >= 0 {
		cashDrag = sol.Value(dragIdx)
	}

	return model.ObjectiveComponents{
		Tax:         tax,
		Drift:       drift,
		Transaction: transaction,
		Factor:      factor,
		CashDrag:    cashDrag,
		RankPenalty: rank,
		Overall:     sol.Objective,
	}
}
