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

// Package model defines the data types shared by every stage of the
// optimization pipeline: tax lots, targets, prices, tax rates, the
// derived report rows, and the trades the optimizer emits.
package model

import "time"

// CashIdentifier is the sentinel identifier representing uninvested cash.
// Cash carries no tax lots; its market value is Strategy.Cash.
const CashIdentifier = "CASH"

// AssetType categorizes a tax lot for reporting and asset-class grouping.
type AssetType string

// AccountType is the tax treatment of the account holding a lot.
type AccountType string

const (
	Roth        AccountType = "ROTH"
	TaxDeferred AccountType = "DEFERRED"
	Taxable     AccountType = "TAXABLE"
)

// GainType distinguishes short-term from long-term capital gains, and
// qualified dividends, for tax-rate lookup.
type GainType string

const (
	ShortTerm         GainType = "short_term"
	LongTerm          GainType = "long_term"
	QualifiedDividend GainType = "qualified_dividend"
)

// TradeAction is the direction of an emitted trade.
type TradeAction string

const (
	Buy  TradeAction = "BUY"
	Sell TradeAction = "SELL"
)

// Scenario names the winning solve in a TradeSummary.
type Scenario string

const (
	ScenarioFull     Scenario = "full"
	ScenarioBuyOnly  Scenario = "buy_only"
	ScenarioNoTrade  Scenario = "no_trade"
)

// TaxLot is an atomic parcel of shares acquired on one date at one price;
// the unit of cost-basis and tax accounting.
type TaxLot struct {
	LotID         string
	Identifier    string
	Quantity      float64
	PurchaseDate  time.Time
	CostBasis     float64
	AssetType     AssetType
	AccountID     string
	AccountType   AccountType

	// CostBasisUnknown flags a lot whose cost basis could not be
	// established on ingestion (e.g. a broker import with no transaction
	// history). Such lots are treated as long-term with an unknown gain
	// rather than having their basis silently coerced to market value.
	CostBasisUnknown bool
}

// CostBasisPerShare returns the stable per-share cost basis. It does not
// change across a partial sell because both Quantity and CostBasis shrink
// proportionally when a lot is split.
func (l *TaxLot) CostBasisPerShare() float64 {
	if l.Quantity == 0 {
		return 0
	}
	return l.CostBasis / l.Quantity
}

// AgeDays returns the age of the lot, in days, as of asOf.
func (l *TaxLot) AgeDays(asOf time.Time) float64 {
	return asOf.Sub(l.PurchaseDate).Hours() / 24
}

// Position is a derived, per-identifier aggregate over the tax lots held
// for that identifier, computed on demand from lots and prices.
type Position struct {
	Identifier     string
	TotalQuantity  float64
	AvgCost        float64
	CurrentPrice   float64
	MarketValue    float64
	UnrealizedGain float64
}

// Target is a single asset-class allocation target. Identifiers lists the
// tickers considered equivalent within this class for pairs-style
// strategies; for a per-identifier target it is a single-element set.
type Target struct {
	AssetClass    string
	TargetWeight  float64
	Identifiers   []string
}

// Price is a single identifier's price as of the current snapshot date.
type Price struct {
	Identifier string
	Price      float64
}

// TaxRate is the resolved total tax rate for one gain type.
type TaxRate struct {
	GainType     GainType
	FederalRate  float64
	StateRate    float64
	TotalRate    float64
}

// FactorLoading is one identifier's exposure to the factor model, indexed
// by factor name.
type FactorLoading struct {
	Identifier string
	Loadings   map[string]float64
}

// FactorModel bundles per-identifier loadings with the strategy's target
// factor exposure vector.
type FactorModel struct {
	Loadings      map[string]*FactorLoading
	TargetExposure map[string]float64
}

// GainLossRow is one lot's tax position as of the current date, recomputed
// whenever prices or current_date change.
type GainLossRow struct {
	LotID                 string
	Identifier            string
	Quantity              float64
	CostBasis             float64
	MarketValue           float64
	TaxGainLossPercentage float64
	GainType              GainType
	PerShareTaxLiability  float64
	TaxLiability          float64
}

// DriftRow is the actual-vs-target weight comparison for one identifier,
// or one synthetic asset-class row for pairs-style strategies.
type DriftRow struct {
	Identifier   string
	AssetClass   string
	ActualWeight float64
	TargetWeight float64
	Drift        float64
}

// TLHTrade is a harvest proposal produced by the TLH identifier and
// consumed by the optimizer as pinning constraints.
type TLHTrade struct {
	TaxLotID            string
	Identifier          string
	HarvestQuantity     float64
	LossPercentage      float64
	PotentialTaxSavings float64

	// ReplacementBuys is populated only for pairs-style harvests: the
	// replacement identifier mapped to the dollar value of the pinned buy.
	ReplacementBuys map[string]float64
}

// Trade is one emitted buy or sell.
type Trade struct {
	SourceID       []byte
	Identifier     string
	Action         TradeAction
	Quantity       float64
	EstimatedPrice float64
	EstimatedValue float64
	TaxImpact      float64

	// LotID is set for SELL trades; empty for BUY trades, which create a
	// new lot rather than draw down an existing one.
	LotID string
}

// ExplanationContext records why no trades were produced, or records the
// improvement figures that justified the winning scenario.
type ExplanationContext struct {
	CaseType          string
	BaselineImprove   float64
	OptimizedImprove  float64
	RebalanceThreshold float64
	BuyThreshold      float64
}

// ObjectiveComponents is the decomposition of the composite objective into
// its named terms, used both for the pre/post comparison and for
// per-scenario reporting.
type ObjectiveComponents struct {
	Tax         float64
	Drift       float64
	Transaction float64
	Factor      float64
	CashDrag    float64
	RankPenalty float64
	Overall     float64
}

// TradeSummary is the full result of one optimization call.
type TradeSummary struct {
	Trades            []*Trade
	ShouldTrade       bool
	Scenario          Scenario
	Before            ObjectiveComponents
	After             ObjectiveComponents
	Improvement       float64
	Explanation       ExplanationContext
	Timings           *Timings
}

// Timings is the optional stage-by-stage duration breakdown of one
// optimization call, logged at debug level rather than returned as an
// error.
type Timings struct {
	Initialization        time.Duration
	ReportGeneration      time.Duration
	ProblemSetup           time.Duration
	ObjectiveCalculation  time.Duration
	NoTradeScenario       time.Duration
	ConstraintsSetup      time.Duration
	TLHOptimization       time.Duration
	MainSolve             time.Duration
	BuyOnlyOptimization   time.Duration
	ApplyTrades           time.Duration
	TradeSummaryGeneration time.Duration
	PostProcessing        time.Duration
	Total                 time.Duration
}
