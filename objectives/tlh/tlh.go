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

// Package tlh identifies tax-loss harvesting opportunities, direct-index
// style (per identifier) and pairs style (sell a losing identifier, buy a
// correlated replacement). It is grounded line-for-line on
// original_source/oracle/src/service/objectives/taxes/tlh.py:
// _calculate_harvest_quantities, _identify_direct_index_tlh_opportunities,
// _identify_pairs_tlh_opportunities, and calculate_tlh_impact.
package tlh

import (
	"math"
	"sort"

	"github.com/penny-vault/oracle/lp"
	"github.com/penny-vault/oracle/model"
)

// EligibleLot is one candidate lot for harvesting: a loss-making lot not
// restricted from selling.
type EligibleLot struct {
	LotID                string
	Identifier           string
	Quantity             float64
	Price                float64
	PerShareTaxLiability float64 // negative for a loss
}

func (l EligibleLot) marketValue() float64 { return l.Quantity * l.Price }

// CalculateHarvestQuantities mirrors tlh.py's _calculate_harvest_quantities:
// given the current and target weight of one identifier, it bounds the
// harvestable dollar value between the soft and hard minimum weights and
// greedily assigns harvest quantity to the most tax-advantaged lots first.
func CalculateHarvestQuantities(currentWeight, targetWeight, totalValue, positionValue float64, lots []EligibleLot, cfg *model.Config) []*model.TLHTrade {
	hardMin := targetWeight * cfg.RangeMinWeightMultiplier
	softMin := targetWeight - 0.90*(targetWeight-hardMin)

	if currentWeight <= softMin {
		return nil
	}

	maxHarvestValue := (currentWeight - softMin) * totalValue

	minHarvestValue := (cfg.MinTLHSizeBps / 10000) * positionValue
	if cfg.MinNotional > minHarvestValue {
		minHarvestValue = cfg.MinNotional
	}

	ranked := make([]EligibleLot, len(lots))
	copy(ranked, lots)
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].PerShareTaxLiability < ranked[j].PerShareTaxLiability
	})

	trades := make([]*model.TLHTrade, 0, len(ranked))
	var harvested float64

	for _, lot := range ranked {
		remaining := maxHarvestValue - harvested
		if remaining <= 0 {
			break
		}

		proposedValue := lot.marketValue()
		if proposedValue > remaining {
			proposedValue = remaining
		}

		qty := proposedValue / lot.Price
		if cfg.TradeRounding > 0 {
			qty = math.Floor(qty/cfg.TradeRounding) * cfg.TradeRounding
		}
		if qty <= 0 {
			continue
		}
		if qty > lot.Quantity {
			qty = lot.Quantity
		}

		value := qty * lot.Price
		if value < cfg.MinNotional {
			continue
		}

		trades = append(trades, &model.TLHTrade{
			TaxLotID:            lot.LotID,
			Identifier:          lot.Identifier,
			HarvestQuantity:     qty,
			LossPercentage:      lot.PerShareTaxLiability / lot.Price,
			PotentialTaxSavings: -lot.PerShareTaxLiability * qty,
		})
		harvested += value
	}

	if harvested < minHarvestValue {
		return nil
	}

	return trades
}

// DriftWeights is the minimal per-identifier weight/value context the TLH
// identifier needs from the drift and gain/loss reports.
type DriftWeights struct {
	CurrentWeight map[string]float64
	TargetWeight  map[string]float64
	PositionValue map[string]float64
}

// IdentifyDirectIndex scans every identifier in the buy/sell universe and
// proposes a harvest for each one whose current weight exceeds its soft
// minimum and that has loss-making, unrestricted lots.
func IdentifyDirectIndex(gainLoss []*model.GainLossRow, weights DriftWeights, totalValue float64, restrictedFromSelling map[string]bool, cfg *model.Config) []*model.TLHTrade {
	byIdentifier := make(map[string][]EligibleLot)
	for _, row := range gainLoss {
		if row.TaxGainLossPercentage >= -cfg.TLHMinLossThreshold {
			continue
		}
		if restrictedFromSelling[row.LotID] {
			continue
		}
		price := row.MarketValue / row.Quantity
		byIdentifier[row.Identifier] = append(byIdentifier[row.Identifier], EligibleLot{
			LotID:                row.LotID,
			Identifier:           row.Identifier,
			Quantity:             row.Quantity,
			Price:                price,
			PerShareTaxLiability: row.PerShareTaxLiability,
		})
	}

	identifiers := make([]string, 0, len(byIdentifier))
	for id := range byIdentifier {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)

	out := make([]*model.TLHTrade, 0)
	for _, id := range identifiers {
		trades := CalculateHarvestQuantities(
			weights.CurrentWeight[id], weights.TargetWeight[id], totalValue, weights.PositionValue[id],
			byIdentifier[id], cfg)
		out = append(out, trades...)
	}
	return out
}

// IdentifyPairs operates per asset class: it finds the identifier with the
// largest aggregate harvestable tax benefit, pairs it with the first
// not-restricted-from-buying replacement in the same class, and records a
// dollar-neutral replacement buy.
func IdentifyPairs(classes []*model.Target, gainLoss []*model.GainLossRow, weights DriftWeights, totalValue float64, restrictedFromSelling, restrictedFromBuying map[string]bool, cfg *model.Config) []*model.TLHTrade {
	rowsByIdentifier := make(map[string][]*model.GainLossRow)
	for _, row := range gainLoss {
		rowsByIdentifier[row.Identifier] = append(rowsByIdentifier[row.Identifier], row)
	}

	out := make([]*model.TLHTrade, 0)

	for _, class := range classes {
		if len(class.Identifiers) < 2 {
			continue
		}

		type benefit struct {
			identifier string
			value      float64
			lots       []EligibleLot
		}
		var best *benefit

		ids := make([]string, len(class.Identifiers))
		copy(ids, class.Identifiers)
		sort.Strings(ids)

		for _, id := range ids {
			var totalBenefit float64
			lots := make([]EligibleLot, 0)
			for _, row := range rowsByIdentifier[id] {
				if row.TaxGainLossPercentage >= -cfg.TLHMinLossThreshold {
					continue
				}
				if restrictedFromSelling[row.LotID] {
					continue
				}
				price := row.MarketValue / row.Quantity
				totalBenefit += -row.PerShareTaxLiability * row.Quantity
				lots = append(lots, EligibleLot{
					LotID:                row.LotID,
					Identifier:           id,
					Quantity:             row.Quantity,
					Price:                price,
					PerShareTaxLiability: row.PerShareTaxLiability,
				})
			}
			if len(lots) == 0 {
				continue
			}
			if best == nil || totalBenefit > best.value {
				best = &benefit{identifier: id, value: totalBenefit, lots: lots}
			}
		}

		if best == nil {
			continue
		}

		var replacement string
		for _, id := range ids {
			if id == best.identifier {
				continue
			}
			if restrictedFromBuying[id] {
				continue
			}
			replacement = id
			break
		}
		if replacement == "" {
			continue
		}

		perIDTarget := class.TargetWeight / float64(len(class.Identifiers))
		trades := CalculateHarvestQuantities(
			weights.CurrentWeight[best.identifier], perIDTarget, totalValue, weights.PositionValue[best.identifier],
			best.lots, cfg)

		if len(trades) == 0 {
			continue
		}

		var harvestedValue float64
		for _, t := range trades {
			lot := lotInSlice(best.lots, t.TaxLotID)
			harvestedValue += t.HarvestQuantity * lot.Price
		}
		// Every harvest in this class gets the same replacement pin; only
		// the last trade carries the map to avoid double-counting the
		// dollar-neutral buy when applied to the LP.
		trades[len(trades)-1].ReplacementBuys = map[string]float64{replacement: harvestedValue}

		out = append(out, trades...)
	}

	return out
}

func lotInSlice(lots []EligibleLot, lotID string) EligibleLot {
	for _, l := range lots {
		if l.LotID == lotID {
			return l
		}
	}
	return EligibleLot{}
}

// InjectConstraints pins the LP to the identified harvests, mirroring
// calculate_tlh_impact: each harvest's sell variable is fixed to its
// quantity, each harvested identifier's buy variable is fixed to zero
// unless it is itself a pairs replacement target, and pairs replacements
// get their buy variable fixed to the dollar-neutral quantity with their
// own lots' sells fixed to zero.
func InjectConstraints(problem *lp.Problem, buyVar, sellVar map[string]int, trades []*model.TLHTrade, prices map[string]*model.Price, ownLots map[string][]string) {
	replacementTargets := make(map[string]bool)
	for _, t := range trades {
		for replacement := range t.ReplacementBuys {
			replacementTargets[replacement] = true
		}
	}

	harvestedIdentifiers := make(map[string]bool)
	for _, t := range trades {
		if idx, ok := sellVar[t.TaxLotID]; ok {
			problem.Fix(idx, t.HarvestQuantity)
		}
		harvestedIdentifiers[t.Identifier] = true

		for replacement, dollars := range t.ReplacementBuys {
			price := prices[replacement].Price
			if idx, ok := buyVar[replacement]; ok {
				problem.Fix(idx, dollars/price)
			}
			for _, lotID := range ownLots[replacement] {
				if idx, ok := sellVar[lotID]; ok {
					problem.Fix(idx, 0)
				}
			}
		}
	}

	for id := range harvestedIdentifiers {
		if replacementTargets[id] {
			continue
		}
		if idx, ok := buyVar[id]; ok {
			problem.Fix(idx, 0)
		}
	}
}
