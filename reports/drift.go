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

package reports

import (
	"sort"

	"github.com/penny-vault/oracle/model"
)

// ActualWeights returns the current market-value weight of every
// identifier held, plus cash, as a fraction of total portfolio value.
func ActualWeights(lots []*model.TaxLot, cash float64, prices map[string]*model.Price) map[string]float64 {
	weights := make(map[string]float64)
	total := cash

	for _, lot := range lots {
		price, ok := prices[lot.Identifier]
		if !ok {
			continue
		}
		mv := lot.Quantity * price.Price
		weights[lot.Identifier] += mv
		total += mv
	}

	if total <= 0 {
		return weights
	}
	for id := range weights {
		weights[id] /= total
	}
	weights[model.CashIdentifier] = cash / total
	return weights
}

// DriftReport produces one row per identifier named by a target, plus one
// synthetic row per asset class for a pairs-style strategy where the
// target is defined at the class level over multiple identifiers.
func DriftReport(targets []*model.Target, actualWeights map[string]float64) []*model.DriftRow {
	rows := make([]*model.DriftRow, 0, len(targets))

	for _, t := range targets {
		if len(t.Identifiers) == 1 {
			id := t.Identifiers[0]
			actual := actualWeights[id]
			rows = append(rows, &model.DriftRow{
				Identifier:   id,
				AssetClass:   t.AssetClass,
				ActualWeight: actual,
				TargetWeight: t.TargetWeight,
				Drift:        actual - t.TargetWeight,
			})
			continue
		}

		var classActual float64
		for _, id := range t.Identifiers {
			classActual += actualWeights[id]
		}
		rows = append(rows, &model.DriftRow{
			AssetClass:   t.AssetClass,
			ActualWeight: classActual,
			TargetWeight: t.TargetWeight,
			Drift:        classActual - t.TargetWeight,
		})

		perIDTarget := t.TargetWeight / float64(len(t.Identifiers))
		for _, id := range t.Identifiers {
			actual := actualWeights[id]
			rows = append(rows, &model.DriftRow{
				Identifier:   id,
				AssetClass:   t.AssetClass,
				ActualWeight: actual,
				TargetWeight: perIDTarget,
				Drift:        actual - perIDTarget,
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AssetClass != rows[j].AssetClass {
			return rows[i].AssetClass < rows[j].AssetClass
		}
		return rows[i].Identifier < rows[j].Identifier
	})

	return rows
}
