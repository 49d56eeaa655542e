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

// Package reports builds the gain/loss and drift report rows the rest of
// the pipeline (TLH identification, objective assembly, comparison
// reports) reads from. Reports are recomputed whenever prices or the
// current date change; they never mutate their inputs.
package reports

import (
	"time"

	"github.com/penny-vault/oracle/model"
)

const longTermCutoffDays = 365

// GainLossReport produces one row per lot: market value, unrealized gain,
// holding-period classification, and per-share/total tax liability.
func GainLossReport(lots []*model.TaxLot, prices map[string]*model.Price, currentDate time.Time, taxRates map[model.GainType]*model.TaxRate) []*model.GainLossRow {
	rows := make([]*model.GainLossRow, 0, len(lots))

	for _, lot := range lots {
		price, ok := prices[lot.Identifier]
		if !ok {
			continue
		}

		marketValue := lot.Quantity * price.Price
		unrealizedGain := marketValue - lot.CostBasis

		var pctGainLoss float64
		if lot.CostBasis != 0 {
			pctGainLoss = unrealizedGain / lot.CostBasis
		}

		gainType := model.ShortTerm
		if lot.CostBasisUnknown || lot.AgeDays(currentDate) > longTermCutoffDays {
			gainType = model.LongTerm
		}

		var totalRate float64
		if tr, ok := taxRates[gainType]; ok {
			totalRate = tr.TotalRate
		}

		var perShareTaxLiability float64
		if !lot.CostBasisUnknown {
			perShareTaxLiability = (price.Price - lot.CostBasisPerShare()) * totalRate
		}

		rows = append(rows, &model.GainLossRow{
			LotID:                 lot.LotID,
			Identifier:            lot.Identifier,
			Quantity:              lot.Quantity,
			CostBasis:             lot.CostBasis,
			MarketValue:           marketValue,
			TaxGainLossPercentage: pctGainLoss,
			GainType:              gainType,
			PerShareTaxLiability:  perShareTaxLiability,
			TaxLiability:          perShareTaxLiability * lot.Quantity,
		})
	}

	return rows
}

// PositionsFromLots aggregates tax lots into a per-identifier
// Position, the derived entity spec.md §3 names.
func PositionsFromLots(lots []*model.TaxLot, prices map[string]*model.Price) map[string]*model.Position {
	positions := make(map[string]*model.Position)

	for _, lot := range lots {
		price, ok := prices[lot.Identifier]
		if !ok {
			continue
		}
		pos, ok := positions[lot.Identifier]
		if !ok {
			pos = &model.Position{Identifier: lot.Identifier, CurrentPrice: price.Price}
			positions[lot.Identifier] = pos
		}
		pos.TotalQuantity += lot.Quantity
		pos.MarketValue += lot.Quantity * price.Price
		pos.UnrealizedGain += (lot.Quantity * price.Price) - lot.CostBasis
	}

	for _, pos := range positions {
		if pos.TotalQuantity > 0 {
			pos.AvgCost = (pos.MarketValue - pos.UnrealizedGain) / pos.TotalQuantity
		}
	}

	return positions
}
