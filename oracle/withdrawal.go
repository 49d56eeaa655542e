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
	"github.com/penny-vault/oracle/constraints"
	"github.com/penny-vault/oracle/initialize"
	"github.com/penny-vault/oracle/lp"
	"github.com/penny-vault/oracle/model"
	"github.com/penny-vault/oracle/reports"
)

// MaxWithdrawal is the result of EstimateMaxWithdrawal: the largest amount
// the portfolio can currently raise in cash, and the tax cost of raising
// it.
type MaxWithdrawal struct {
	Amount  float64
	TaxCost float64
	Status  lp.Status
}

// EstimateMaxWithdrawal solves the dedicated LP named in spec.md §4.9: it
// maximizes total sell proceeds (after half-spread cost) subject to lot
// availability and the holding-period restriction, with no buys at all. A
// liquidation-only solve never creates a new wash-sale restriction, so the
// wash-sale tracker has nothing to contribute here. When preserveTargets is
// true, each identifier's sells are additionally capped at the shares
// needed to bring it down to its target weight, so the estimate reflects
// what can be raised without abandoning the allocation entirely.
func EstimateMaxWithdrawal(s *model.Strategy, preserveTargets bool) (*MaxWithdrawal, error) {
	lots, err := initialize.ValidateTaxLots(s.TaxLots)
	if err != nil {
		return nil, err
	}
	targets, err := initialize.MergeTargets(s.Targets, s.Config.DeminimusCashTarget, 0)
	if err != nil {
		return nil, err
	}
	universe := initialize.Universe(lots, targets)
	if err := initialize.ValidatePrices(universe, s.Prices); err != nil {
		return nil, err
	}
	spreads := initialize.NormalizeSpreads(universe, s.Spreads)

	lotByID := make(map[string]*model.TaxLot, len(lots))
	for _, lot := range lots {
		lotByID[lot.LotID] = lot
	}

	problem := lp.NewProblem()
	sellVar := make(map[string]int, len(lots))
	for _, lot := range lots {
		sellVar[lot.LotID] = problem.AddVar("sell_"+lot.LotID, lp.Continuous, 0, lot.Quantity)
	}

	mgr := constraints.NewManager(problem, map[string]int{}, sellVar)
	mgr.AddHoldingPeriod(lots, s.Config.CurrentDate, s.Config.HoldingTimeDays)

	if preserveTargets {
		addWithdrawalTargetCaps(problem, lots, sellVar, targets, s)
	}

	gainLoss := reports.GainLossReport(lots, s.Prices, s.Config.CurrentDate, s.TaxRates)
	byLot := make(map[string]*model.GainLossRow, len(gainLoss))
	for _, row := range gainLoss {
		byLot[row.LotID] = row
	}

	for lotID, idx := range sellVar {
		lot := lotByID[lotID]
		price := s.Prices[lot.Identifier].Price
		half := spreads[lot.Identifier] / 2
		// Maximize net proceeds by minimizing their negation.
		problem.SetObjCoef(idx, -(price * (1 - half)))
	}

	sol := lp.BranchAndBound(problem)
	if sol.Status != lp.Optimal {
		return &MaxWithdrawal{Status: sol.Status}, nil
	}

	var amount, taxCost float64
	for lotID, idx := range sellVar {
		qty := sol.Value(idx)
		if qty <= tradeTolerance {
			continue
		}
		lot := lotByID[lotID]
		price := s.Prices[lot.Identifier].Price
		half := spreads[lot.Identifier] / 2
		amount += qty * price * (1 - half)
		if row, ok := byLot[lotID]; ok {
			taxCost += row.PerShareTaxLiability * qty
		}
	}

	return &MaxWithdrawal{Amount: amount, TaxCost: taxCost, Status: lp.Optimal}, nil
}

func addWithdrawalTargetCaps(problem *lp.Problem, lots []*model.TaxLot, sellVar map[string]int, targets []*model.Target, s *model.Strategy) {
	actualWeights := reports.ActualWeights(lots, s.Cash, s.Prices)
	totalValue := s.TotalValue()

	targetWeight := make(map[string]float64)
	for _, t := range targets {
		if len(t.Identifiers) == 1 {
			targetWeight[t.Identifiers[0]] = t.TargetWeight
		} else {
			per := t.TargetWeight / float64(len(t.Identifiers))
			for _, id := range t.Identifiers {
				targetWeight[id] += per
			}
		}
	}

	byIdentifier := make(map[string][]string)
	for _, lot := range lots {
		byIdentifier[lot.Identifier] = append(byIdentifier[lot.Identifier], lot.LotID)
	}

	for identifier, lotIDs := range byIdentifier {
		excess := (actualWeights[identifier] - targetWeight[identifier]) * totalValue
		if excess < 0 {
			excess = 0
		}
		price := s.Prices[identifier].Price
		maxShares := excess / price

		coeffs := make(map[int]float64, len(lotIDs))
		for _, lotID := range lotIDs {
			coeffs[sellVar[lotID]] = 1
		}
		problem.AddConstraint("withdrawal_cap_"+identifier, coeffs, lp.LE, maxShares)
	}
}
