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

import "time"

// OptimizationType selects the strategy variant, mirroring the source's
// OracleOptimizationType enum and its per-type setup/gating hooks.
type OptimizationType string

const (
	TaxAware    OptimizationType = "TAX_AWARE"
	PairsTLH    OptimizationType = "PAIRS_TLH"
	DirectIndex OptimizationType = "DIRECT_INDEX"
	BuyOnly     OptimizationType = "BUY_ONLY"
	Hold        OptimizationType = "HOLD"
)

// ShouldTLH reports whether this optimization type ever runs the TLH
// identifier. It is ANDed with the caller's Config.ShouldTLH flag.
func (t OptimizationType) ShouldTLH() bool {
	switch t {
	case DirectIndex, PairsTLH:
		return true
	default:
		return false
	}
}

// CanHandleWithdrawal reports whether this optimization type accepts a
// nonzero withdrawal amount. HOLD never trades, so a withdrawal against it
// is a configuration error.
func (t OptimizationType) CanHandleWithdrawal() bool {
	return t != Hold
}

// Config carries every per-call tunable named in the objective, constraint,
// and TLH sections: weights, thresholds, rounding, and strategy type.
type Config struct {
	OptimizationType OptimizationType

	// Objective weights (multiplied by the fixed normalization constants).
	WeightDrift       float64
	WeightTax         float64
	WeightTransaction float64
	WeightFactorModel float64
	WeightCashDrag    float64
	RankPenaltyFactor float64

	// Constraint tunables.
	MinNotional               float64
	HoldingTimeDays           int
	EnforceWashSalePrevention bool
	DeminimusCashTarget       float64

	// Two-phase solve tunables.
	RebalanceThreshold float64
	BuyThreshold       float64

	// TLH tunables.
	ShouldTLH             bool
	TLHMinLossThreshold   float64
	RangeMinWeightMultiplier float64
	// MinTLHSizeBps is the minimum harvest size, in basis points of
	// current position value, used by both the direct-indexing and pairs
	// TLH identifiers. Named per spec design note rather than hardcoded.
	MinTLHSizeBps float64

	// Withdrawal.
	WithdrawalAmount float64

	TradeRounding float64

	CurrentDate time.Time
}

// DefaultConfig returns a Config with the normalization-adjacent defaults
// observed in the source: unity weights, a 50bps TLH floor, and a 0.5
// minimum range multiplier.
func DefaultConfig() *Config {
	return &Config{
		OptimizationType:         TaxAware,
		WeightDrift:              1.0,
		WeightTax:                1.0,
		WeightTransaction:        1.0,
		WeightFactorModel:        1.0,
		WeightCashDrag:           1.0,
		RankPenaltyFactor:        0,
		MinNotional:              10,
		HoldingTimeDays:          0,
		EnforceWashSalePrevention: true,
		DeminimusCashTarget:      0.0003,
		RebalanceThreshold:       0,
		BuyThreshold:             0,
		ShouldTLH:                false,
		TLHMinLossThreshold:      0.05,
		RangeMinWeightMultiplier: 0.5,
		MinTLHSizeBps:            50,
		WithdrawalAmount:         0,
		TradeRounding:            1,
	}
}

// Normalization constants, fixed so that user-facing weights of order unity
// yield comparable marginal impact across objective terms.
const (
	TaxNormalization         = 800
	DriftNormalization       = 100
	TransactionNormalization = 1200
	FactorModelNormalization = 60
	CashDragNormalization    = 50
)

// DeminimusCashTargetPercent is the default fraction of portfolio value
// treated as an acceptable cash residue when no explicit cash target is
// configured.
const DeminimusCashTargetPercent = 0.0003

// Strategy is the full, self-contained input (and, for a post-trade
// snapshot, output) to one optimization: its tax-lot set, cash balance,
// targets, and the market/tax context needed to derive reports. A Strategy
// exclusively owns its tax-lot set; post-trade snapshots are owned
// siblings, never children, of the pre-trade strategy, and share no
// mutable state with it.
type Strategy struct {
	ID          string
	TaxLots     []*TaxLot
	Cash        float64
	Targets     []*Target
	Prices      map[string]*Price
	Spreads     map[string]float64
	TaxRates    map[GainType]*TaxRate
	FactorModel *FactorModel
	Config      *Config
}

// TotalValue returns the portfolio's total market value: cash plus the
// market value of every held tax lot at the current price snapshot.
func (s *Strategy) TotalValue() float64 {
	total := s.Cash
	for _, lot := range s.TaxLots {
		if price, ok := s.Prices[lot.Identifier]; ok {
			total += lot.Quantity * price.Price
		}
	}
	return total
}

// MinCashAmount returns the minimum ending cash balance this strategy must
// respect, per §4.4 invariant 1: the greater of the deminimus cash target
// and 97.5% of the target cash weight, capped at the current cash balance,
// expressed in dollars.
func (s *Strategy) MinCashAmount() float64 {
	totalValue := s.TotalValue()
	deminimus := s.Config.DeminimusCashTarget * totalValue

	var targetCashWeight float64
	for _, t := range s.Targets {
		if t.AssetClass == CashIdentifier {
			targetCashWeight = t.TargetWeight
			break
		}
	}

	fromTarget := 0.975 * targetCashWeight * totalValue
	min := deminimus
	if fromTarget > min {
		min = fromTarget
	}

	currentCashWeight := 0.0
	if totalValue > 0 {
		currentCashWeight = s.Cash / totalValue
	}
	capped := currentCashWeight * totalValue
	if min > capped {
		min = capped
	}
	return min
}
