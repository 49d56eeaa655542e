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

// Package constraints assembles the linear constraint rows described in
// spec.md §4.4 onto an already-built lp.Problem: the cash floor,
// lot-availability, minimum-notional, holding-period, wash-sale, and
// withdrawal-equality rows. It mirrors the source's ConstraintsManager,
// which oracle_strategy.py calls once per strategy-type setup before the
// main solve.
package constraints

import (
	"fmt"
	"math"
	"time"

	"github.com/penny-vault/oracle/lp"
	"github.com/penny-vault/oracle/model"
)

// bigM is used to encode the minimum-notional disjunction
// (buy*price >= minNotional) OR (buy == 0) as buy*price <= bigM*indicator
// and buy*price >= minNotional*indicator. It must dominate any realistic
// trade notional without inflating the tableau's numerical scale past the
// 1e8 diagnostics threshold spec.md §9 names.
const bigM = 100_000_000

// Manager adds constraint rows to a shared lp.Problem over a fixed set of
// buy/sell decision variables, keyed by identifier and lot_id
// respectively.
type Manager struct {
	Problem *lp.Problem
	BuyVar  map[string]int
	SellVar map[string]int // lot_id -> var index
}

// NewManager wraps an existing problem and its decision-variable index, as
// constructed by the oracle package before constraint assembly.
func NewManager(problem *lp.Problem, buyVar, sellVar map[string]int) *Manager {
	return &Manager{Problem: problem, BuyVar: buyVar, SellVar: sellVar}
}

// AddCashFloor enforces invariant 1: ending cash, after applying the
// half-spread cost to every buy and sell, must be at least minCash.
func (m *Manager) AddCashFloor(lots []*model.TaxLot, prices map[string]*model.Price, spreads map[string]float64, startingCash, minCash float64) {
	coeffs := make(map[int]float64)

	for lotID, idx := range m.SellVar {
		lot := lotByID(lots, lotID)
		if lot == nil {
			continue
		}
		price := prices[lot.Identifier].Price
		half := spreads[lot.Identifier] / 2
		coeffs[idx] += price * (1 - half)
	}
	for id, idx := range m.BuyVar {
		price := prices[id].Price
		half := spreads[id] / 2
		coeffs[idx] -= price * (1 + half)
	}

	// ending_cash = startingCash + sells - buys >= minCash
	// => Σ sells - Σ buys >= minCash - startingCash
	m.Problem.AddConstraint("cash_floor", coeffs, lp.GE, minCash-startingCash)
}

// AddLotAvailability enforces invariant 2 via each sell variable's own
// upper bound (set to lot.Quantity when the variable is created); this
// adds nothing beyond what the variable bound already guarantees, but the
// per-identifier aggregate row protects against a caller that created
// multiple sell variables referencing overlapping lots.
func (m *Manager) AddLotAvailability(lots []*model.TaxLot) {
	byIdentifier := make(map[string][]string)
	for _, lot := range lots {
		byIdentifier[lot.Identifier] = append(byIdentifier[lot.Identifier], lot.LotID)
	}

	for identifier, lotIDs := range byIdentifier {
		coeffs := make(map[int]float64)
		var totalQty float64
		for _, lotID := range lotIDs {
			idx, ok := m.SellVar[lotID]
			if !ok {
				continue
			}
			coeffs[idx] = 1
			totalQty += lotByID(lots, lotID).Quantity
		}
		if len(coeffs) > 0 {
			m.Problem.AddConstraint(fmt.Sprintf("lot_avail_%s", identifier), coeffs, lp.LE, totalQty)
		}
	}
}

// AddMinimumNotional encodes invariant 5 for either the buy side or the
// aggregated per-identifier sell side via a binary indicator and a big-M
// pair of rows: notional <= bigM*indicator and notional >= minNotional*indicator.
func (m *Manager) AddMinimumNotional(identifiers []string, notionalVar map[string]int, prices map[string]*model.Price, minNotional float64) {
	if minNotional <= 0 {
		return
	}
	for _, id := range identifiers {
		varIdx, ok := notionalVar[id]
		if !ok {
			continue
		}
		price := prices[id].Price
		indicator := m.Problem.AddVar(fmt.Sprintf("notional_ind_%s", id), lp.Binary, 0, 1)

		m.Problem.AddConstraint(fmt.Sprintf("min_notional_upper_%s", id),
			map[int]float64{varIdx: price, indicator: -bigM}, lp.LE, 0)
		m.Problem.AddConstraint(fmt.Sprintf("min_notional_lower_%s", id),
			map[int]float64{varIdx: price, indicator: -minNotional}, lp.GE, 0)
	}
}

// BuildAggregateSellVars adds one continuous variable per identifier,
// linked by an equality constraint to the sum of that identifier's lot
// sell variables, priced in shares. AddMinimumNotional applies to these
// aggregate variables for the sell side, since invariant 5 is stated over
// "aggregated per-identifier sells", not individual lots.
func (m *Manager) BuildAggregateSellVars(lots []*model.TaxLot) map[string]int {
	byIdentifier := make(map[string][]string)
	for _, lot := range lots {
		byIdentifier[lot.Identifier] = append(byIdentifier[lot.Identifier], lot.LotID)
	}

	out := make(map[string]int, len(byIdentifier))
	for identifier, lotIDs := range byIdentifier {
		agg := m.Problem.AddVar(fmt.Sprintf("sell_total_%s", identifier), lp.Continuous, 0, math.Inf(1))
		coeffs := map[int]float64{agg: -1}
		for _, lotID := range lotIDs {
			if idx, ok := m.SellVar[lotID]; ok {
				coeffs[idx] = 1
			}
		}
		m.Problem.AddConstraint(fmt.Sprintf("sell_total_link_%s", identifier), coeffs, lp.EQ, 0)
		out[identifier] = agg
	}
	return out
}

// AddHoldingPeriod enforces invariant 6: any lot younger than holdingDays
// has its sell variable fixed to zero.
func (m *Manager) AddHoldingPeriod(lots []*model.TaxLot, currentDate time.Time, holdingDays int) {
	if holdingDays <= 0 {
		return
	}
	for _, lot := range lots {
		if lot.AgeDays(currentDate) < float64(holdingDays) {
			if idx, ok := m.SellVar[lot.LotID]; ok {
				m.Problem.Fix(idx, 0)
			}
		}
	}
}

// WashSaleRestriction names one identifier currently blocked from
// repurchase, and the set of identifiers being sold at a loss in this
// optimization (for the symmetric same-optimization exclusion).
type WashSaleRestriction struct {
	RestrictedFromBuying map[string]bool
	SoldAtLossThisRound  map[string]bool
	// ReplacementTargets exempts a buy pinned as a pairs-TLH replacement
	// from the same-optimization sell/buy exclusion (spec.md §8 invariant 3's
	// explicitly allowed corner case).
	ReplacementTargets map[string]bool
}

// AddWashSale enforces invariants 3 and 4: no buy of an identifier with an
// active 30-day wash-sale restriction, and no same-optimization rebuy of an
// identifier being sold at a loss, unless that buy is a pairs-TLH
// replacement pin.
func (m *Manager) AddWashSale(r *WashSaleRestriction) {
	if r == nil {
		return
	}
	for id, idx := range m.BuyVar {
		if r.RestrictedFromBuying[id] {
			m.Problem.Fix(idx, 0)
			continue
		}
		if r.SoldAtLossThisRound[id] && !r.ReplacementTargets[id] {
			m.Problem.Fix(idx, 0)
		}
	}
}

// AddWithdrawal enforces invariant covered by §4.4 constraint 6: net sale
// proceeds (after spread cost) must equal the withdrawal target exactly.
// The row covers sells only and places no limit on buy variables: buys in
// the same problem are bounded only by the other rows, such as the cash
// floor.
func (m *Manager) AddWithdrawal(lots []*model.TaxLot, prices map[string]*model.Price, spreads map[string]float64, withdrawalAmount float64) {
	if withdrawalAmount <= 0 {
		return
	}
	coeffs := make(map[int]float64)
	for lotID, idx := range m.SellVar {
		lot := lotByID(lots, lotID)
		if lot == nil {
			continue
		}
		price := prices[lot.Identifier].Price
		half := spreads[lot.Identifier] / 2
		coeffs[idx] += price * (1 - half)
	}
	m.Problem.AddConstraint("withdrawal", coeffs, lp.EQ, withdrawalAmount)
}

func lotByID(lots []*model.TaxLot, lotID string) *model.TaxLot {
	for _, l := range lots {
		if l.LotID == lotID {
			return l
		}
	}
	return nil
}
