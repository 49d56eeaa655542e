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

// Package initialize normalizes the raw inputs to an optimization — tax
// lots, targets, prices, spreads, and the optional factor model — into the
// canonical form the rest of the pipeline consumes. Every function here is
// a pure validating transform: it either returns a usable value or a
// *model.ValidationError, never a panic.
package initialize

import (
	"fmt"
	"sort"

	"github.com/penny-vault/oracle/model"
)

// ValidateTaxLots rejects lots with non-positive quantity, a missing
// identifier, or a lot_id that collides with another lot in the set. It
// returns the lots re-sorted by (identifier, lot_id) for deterministic
// downstream iteration, per spec.md §5's tie-breaking rule.
func ValidateTaxLots(lots []*model.TaxLot) ([]*model.TaxLot, error) {
	seen := make(map[string]struct{}, len(lots))
	out := make([]*model.TaxLot, len(lots))
	copy(out, lots)

	for _, lot := range out {
		if lot.Quantity <= 0 {
			return nil, model.NewValidationError(model.ErrNonPositiveQuantity, "lot_id", lot.LotID)
		}
		if lot.Identifier == "" {
			return nil, model.NewValidationError(model.ErrMissingIdentifier, "lot_id", lot.LotID)
		}
		if _, dup := seen[lot.LotID]; dup {
			return nil, model.NewValidationError(model.ErrDuplicateLotID, "lot_id", lot.LotID)
		}
		seen[lot.LotID] = struct{}{}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Identifier != out[j].Identifier {
			return out[i].Identifier < out[j].Identifier
		}
		return out[i].LotID < out[j].LotID
	})

	return out, nil
}

// MergeTargets inserts an explicit CASH target equal to the greater of the
// configured deminimus cash fraction, the requested withdrawal fraction,
// and (1 - sum of non-cash target weights). When that cash target exceeds
// the residual, the non-cash weights are scaled down proportionally so the
// merged weights sum to 1; non-cash weights summing to more than 1 are
// rejected. Every non-cash target must name its Identifiers: a target with
// an empty Identifiers set is rejected with ErrUnresolvedAssetClass, and no
// one-identifier class is derived from its AssetClass name.
func MergeTargets(targets []*model.Target, deminimusCash, withdrawFraction float64) ([]*model.Target, error) {
	out := make([]*model.Target, 0, len(targets)+1)
	var nonCashWeight float64

	for _, t := range targets {
		if t.AssetClass == model.CashIdentifier {
			continue // re-inserted below, computed fresh
		}
		if len(t.Identifiers) == 0 {
			return nil, model.NewValidationError(model.ErrUnresolvedAssetClass, "asset_class", t.AssetClass)
		}
		merged := *t
		nonCashWeight += t.TargetWeight
		out = append(out, &merged)
	}
	if nonCashWeight > 1.000001 {
		return nil, model.NewValidationError(model.ErrTargetWeightsInvalid, "sum", nonCashWeight)
	}

	cashWeight := deminimusCash
	if withdrawFraction > cashWeight {
		cashWeight = withdrawFraction
	}
	if residual := 1 - nonCashWeight; residual > cashWeight {
		cashWeight = residual
	}

	if nonCashWeight > 0 && nonCashWeight+cashWeight > 1 {
		scale := (1 - cashWeight) / nonCashWeight
		if scale < 0 {
			scale = 0
		}
		for _, t := range out {
			t.TargetWeight *= scale
		}
	}

	out = append(out, &model.Target{
		AssetClass:   model.CashIdentifier,
		TargetWeight: cashWeight,
		Identifiers:  []string{model.CashIdentifier},
	})

	var total float64
	for _, t := range out {
		total += t.TargetWeight
	}
	if total < 0.999999 || total > 1.000001 {
		return nil, model.NewValidationError(model.ErrTargetWeightsInvalid, "sum", total)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AssetClass < out[j].AssetClass })

	return out, nil
}

// ValidatePrices checks that every non-cash identifier in the union of
// held and targeted identifiers has a strictly positive price.
func ValidatePrices(universe []string, prices map[string]*model.Price) error {
	for _, id := range universe {
		if id == model.CashIdentifier {
			continue
		}
		p, ok := prices[id]
		if !ok || p.Price <= 0 {
			return model.NewValidationError(model.ErrPriceMissing, "identifier", id)
		}
	}
	return nil
}

// NormalizeSpreads returns the full bid-ask spread fraction for every
// identifier in universe (consumers apply half of it to each side of a
// trade), defaulting to zero when the caller supplied no spread map or
// omitted an identifier.
func NormalizeSpreads(universe []string, spreads map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(universe))
	for _, id := range universe {
		if spreads == nil {
			out[id] = 0
			continue
		}
		if s, ok := spreads[id]; ok && s >= 0 {
			out[id] = s
		} else {
			out[id] = 0
		}
	}
	return out
}

// Universe returns the sorted, de-duplicated set of identifiers held in
// lots or named by any target, excluding the cash sentinel.
func Universe(lots []*model.TaxLot, targets []*model.Target) []string {
	set := make(map[string]struct{})
	for _, l := range lots {
		set[l.Identifier] = struct{}{}
	}
	for _, t := range targets {
		for _, id := range t.Identifiers {
			if id != model.CashIdentifier {
				set[id] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SetupFactorModel fills in the sparse factor-loading tables: every
// identifier in universe without a loading gets an empty one, and every
// loading missing a factor named in the target exposure vector gets a zero
// for it. It never returns a non-nil error; a nil model is a no-op.
func SetupFactorModel(fm *model.FactorModel, universe []string) error {
	if fm == nil {
		return nil
	}
	for _, id := range universe {
		if _, ok := fm.Loadings[id]; !ok {
			fm.Loadings[id] = &model.FactorLoading{Identifier: id, Loadings: map[string]float64{}}
		}
	}
	for factor := range fm.TargetExposure {
		for _, loading := range fm.Loadings {
			if _, ok := loading.Loadings[factor]; !ok {
				loading.Loadings[factor] = 0
			}
		}
	}
	return nil
}

// fmtPct formats a weight as a percentage string with four decimals.
func fmtPct(w float64) string {
	return fmt.Sprintf("%.4f%%", w*100)
}
