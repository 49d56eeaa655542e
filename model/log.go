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

package model

import (
	"encoding/hex"

	"github.com/rs/zerolog"
)

func (l *TaxLot) MarshalZerologObject(e *zerolog.Event) {
	e.Str("LotID", l.LotID).
		Str("Identifier", l.Identifier).
		Time("PurchaseDate", l.PurchaseDate).
		Float64("Quantity", l.Quantity).
		Float64("CostBasis", l.CostBasis).
		Bool("CostBasisUnknown", l.CostBasisUnknown)
}

func (t *Trade) MarshalZerologObject(e *zerolog.Event) {
	e.Str("SourceID", hex.EncodeToString(t.SourceID)).
		Str("Identifier", t.Identifier).
		Str("Action", string(t.Action)).
		Float64("Quantity", t.Quantity).
		Float64("EstimatedPrice", t.EstimatedPrice).
		Float64("EstimatedValue", t.EstimatedValue).
		Float64("TaxImpact", t.TaxImpact).
		Str("LotID", t.LotID)
}

func (tt *TLHTrade) MarshalZerologObject(e *zerolog.Event) {
	e.Str("TaxLotID", tt.TaxLotID).
		Str("Identifier", tt.Identifier).
		Float64("HarvestQuantity", tt.HarvestQuantity).
		Float64("LossPercentage", tt.LossPercentage).
		Float64("PotentialTaxSavings", tt.PotentialTaxSavings).
		Int("ReplacementBuys", len(tt.ReplacementBuys))
}

func (o ObjectiveComponents) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("Tax", o.Tax).
		Float64("Drift", o.Drift).
		Float64("Transaction", o.Transaction).
		Float64("Factor", o.Factor).
		Float64("CashDrag", o.CashDrag).
		Float64("RankPenalty", o.RankPenalty).
		Float64("Overall", o.Overall)
}

func (s *TradeSummary) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("ShouldTrade", s.ShouldTrade).
		Str("Scenario", string(s.Scenario)).
		Int("NumTrades", len(s.Trades)).
		Float64("Improvement", s.Improvement).
		Object("Before", s.Before).
		Object("After", s.After).
		Str("ExplanationCaseType", s.Explanation.CaseType)
}
