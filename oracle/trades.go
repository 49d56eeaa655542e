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
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/oracle/lp"
	"github.com/penny-vault/oracle/model"
)

// extractTrades reads every non-zero buy/sell variable out of a solved
// problem and turns it into a model.Trade with a deterministic source ID,
// a total tax impact (per-share liability times quantity) for sells, and a stable (identifier, then lot_id)
// ordering for reproducible output.
func extractTrades(problem *lp.Problem, sol *lp.Solution, buyVar, sellVar map[string]int, lots []*model.TaxLot, prices map[string]*model.Price, gainLoss []*model.GainLossRow, asOf time.Time) []*model.Trade {
	byLot := make(map[string]*model.GainLossRow, len(gainLoss))
	for _, row := range gainLoss {
		byLot[row.LotID] = row
	}
	lotByID := make(map[string]*model.TaxLot, len(lots))
	for _, l := range lots {
		lotByID[l.LotID] = l
	}

	trades := make([]*model.Trade, 0)

	for lotID, idx := range sellVar {
		qty := sol.Value(idx)
		if qty <= tradeTolerance {
			continue
		}
		lot, ok := lotByID[lotID]
		if !ok {
			continue
		}
		price := prices[lot.Identifier].Price

		var taxImpact float64
		if row, ok := byLot[lotID]; ok {
			taxImpact = row.PerShareTaxLiability * qty
		}

		t := &model.Trade{
			Identifier:     lot.Identifier,
			Action:         model.Sell,
			Quantity:       qty,
			EstimatedPrice: price,
			EstimatedValue: qty * price,
			TaxImpact:      taxImpact,
			LotID:          lotID,
		}
		stampSourceID(t, asOf)
		trades = append(trades, t)
	}

	for id, idx := range buyVar {
		qty := sol.Value(idx)
		if qty <= tradeTolerance {
			continue
		}
		price := prices[id].Price

		t := &model.Trade{
			Identifier:     id,
			Action:         model.Buy,
			Quantity:       qty,
			EstimatedPrice: price,
			EstimatedValue: qty * price,
		}
		stampSourceID(t, asOf)
		trades = append(trades, t)
	}

	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Identifier != trades[j].Identifier {
			return trades[i].Identifier < trades[j].Identifier
		}
		if trades[i].Action != trades[j].Action {
			return trades[i].Action < trades[j].Action
		}
		return trades[i].LotID < trades[j].LotID
	})

	return trades
}

func stampSourceID(t *model.Trade, asOf time.Time) {
	id, err := model.ComputeTradeSourceID(t, asOf)
	if err != nil {
		log.Error().Err(err).Str("Identifier", t.Identifier).Msg("failed to compute trade source id")
		return
	}
	t.SourceID = id
}

// ApplyTrades produces the post-trade snapshot strategy described in
// spec.md §4.8: every SELL trade reduces or removes the lot it references
// (a partial sell shrinks Quantity and CostBasis proportionally, keeping
// CostBasisPerShare unchanged); every BUY trade creates a brand-new lot
// dated asOf with cost basis equal to its estimated value. The input
// strategy is never mutated; the result is an independent sibling.
func ApplyTrades(before *model.Strategy, trades []*model.Trade, asOf time.Time) *model.Strategy {
	lotsByID := make(map[string]*model.TaxLot, len(before.TaxLots))
	order := make([]string, 0, len(before.TaxLots))
	for _, lot := range before.TaxLots {
		cp := *lot
		lotsByID[lot.LotID] = &cp
		order = append(order, lot.LotID)
	}

	cash := before.Cash

	for _, t := range trades {
		switch t.Action {
		case model.Sell:
			lot, ok := lotsByID[t.LotID]
			if !ok {
				continue
			}
			basisPerShare := lot.CostBasisPerShare()
			lot.Quantity -= t.Quantity
			lot.CostBasis -= basisPerShare * t.Quantity
			if lot.Quantity <= tradeTolerance {
				delete(lotsByID, t.LotID)
			}
			cash += t.EstimatedValue

		case model.Buy:
			newLot := &model.TaxLot{
				LotID:        model.NewLotID(),
				Identifier:   t.Identifier,
				Quantity:     t.Quantity,
				CostBasis:    t.EstimatedValue,
				PurchaseDate: asOf,
				AccountID:    accountIDForIdentifier(before.TaxLots, t.Identifier),
				AccountType:  accountTypeForIdentifier(before.TaxLots, t.Identifier),
			}
			lotsByID[newLot.LotID] = newLot
			order = append(order, newLot.LotID)
			cash -= t.EstimatedValue
		}
	}

	out := make([]*model.TaxLot, 0, len(lotsByID))
	for _, lotID := range order {
		if lot, ok := lotsByID[lotID]; ok {
			out = append(out, lot)
		}
	}

	return &model.Strategy{
		ID:          before.ID,
		TaxLots:     out,
		Cash:        cash,
		Targets:     before.Targets,
		Prices:      before.Prices,
		Spreads:     before.Spreads,
		TaxRates:    before.TaxRates,
		FactorModel: before.FactorModel,
		Config:      before.Config,
	}
}

// accountIDForIdentifier and accountTypeForIdentifier pick the account a
// new buy lot lands in: the account already holding the largest position
// in that identifier or, if none is held yet, the account of the first lot
// in the portfolio whatever its account type (an empty ID and Taxable when
// there are no lots at all). Multi-account placement is otherwise out of scope
// (spec.md Non-goals).
func accountIDForIdentifier(lots []*model.TaxLot, identifier string) string {
	var best *model.TaxLot
	for _, lot := range lots {
		if lot.Identifier != identifier {
			continue
		}
		if best == nil || lot.Quantity > best.Quantity {
			best = lot
		}
	}
	if best != nil {
		return best.AccountID
	}
	if len(lots) > 0 {
		return lots[0].AccountID
	}
	return ""
}

func accountTypeForIdentifier(lots []*model.TaxLot, identifier string) model.AccountType {
	var best *model.TaxLot
	for _, lot := range lots {
		if lot.Identifier != identifier {
			continue
		}
		if best == nil || lot.Quantity > best.Quantity {
			best = lot
		}
	}
	if best != nil {
		return best.AccountType
	}
	if len(lots) > 0 {
		return lots[0].AccountType
	}
	return model.Taxable
}
