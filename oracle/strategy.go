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

// Package oracle is the optimizer driver: it builds decision variables,
// runs the two-phase solve with buy-only fallback, invokes the TLH
// identifier, and extracts/applies the winning trade set. It is grounded
// directly on original_source/oracle/src/service/oracle_strategy.py's
// OracleStrategy.compute_optimal_trades, including its stage ordering and
// the TLH-pinned baseline substitution rule.
package oracle

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/oracle/common"
	"github.com/penny-vault/oracle/constraints"
	"github.com/penny-vault/oracle/initialize"
	"github.com/penny-vault/oracle/lp"
	"github.com/penny-vault/oracle/model"
	"github.com/penny-vault/oracle/objectives"
	"github.com/penny-vault/oracle/objectives/tlh"
	"github.com/penny-vault/oracle/reports"
	"github.com/penny-vault/oracle/washsale"
)

const tradeTolerance = 1e-6

// Strategy wraps one model.Strategy with the Oracle-level context
// (wash-sale tracker, shared tax-rate table) it needs by reference, rather
// than holding a mutual back-pointer the way the source's Oracle/Strategy
// classes do (spec.md §9 design note).
type Strategy struct {
	Input   *model.Strategy
	Tracker *washsale.Tracker
}

// NewStrategy builds a Strategy driver over an input snapshot.
func NewStrategy(input *model.Strategy, tracker *washsale.Tracker) *Strategy {
	return &Strategy{Input: input, Tracker: tracker}
}

// decisionVars holds the constructed buy/sell variable index alongside the
// problem they live on.
type decisionVars struct {
	problem *lp.Problem
	buyVar  map[string]int
	sellVar map[string]int
}

func (s *Strategy) buildDecisionVariables(universe []string, lots []*model.TaxLot) *decisionVars {
	problem := lp.NewProblem()
	buyVar := make(map[string]int, len(universe))
	sellVar := make(map[string]int, len(lots))

	for _, id := range universe {
		buyVar[id] = problem.AddVar("buy_"+id, lp.Continuous, 0, math.Inf(1))
	}
	for _, lot := range lots {
		sellVar[lot.LotID] = problem.AddVar("sell_"+lot.LotID, lp.Continuous, 0, lot.Quantity)
	}

	return &decisionVars{problem: problem, buyVar: buyVar, sellVar: sellVar}
}

// setupOptimizationType applies the strategy-type pre-constraint hook: BUY_ONLY
// forces every sell to zero up front (the optimizer never realizes a gain
// or loss), mirroring OracleOptimizationType.setup_optimization.
func setupOptimizationType(optType model.OptimizationType, dv *decisionVars) {
	if optType != model.BuyOnly {
		return
	}
	for _, idx := range dv.sellVar {
		dv.problem.Fix(idx, 0)
	}
}

func noTradeSummary(caseType string, before model.ObjectiveComponents, cfg *model.Config) *model.TradeSummary {
	return &model.TradeSummary{
		Trades:      nil,
		ShouldTrade: false,
		Scenario:    model.ScenarioNoTrade,
		Before:      before,
		After:       before,
		Improvement: 0,
		Explanation: model.ExplanationContext{
			CaseType:           caseType,
			RebalanceThreshold: cfg.RebalanceThreshold,
			BuyThreshold:       cfg.BuyThreshold,
		},
	}
}

// ComputeOptimalTrades runs the full pipeline described in spec.md §4 and
// returns the winning scenario's trade summary.
func (s *Strategy) ComputeOptimalTrades() (*model.TradeSummary, error) {
	start := time.Now()
	timings := &model.Timings{}
	cfg := s.Input.Config

	if cfg.WithdrawalAmount > 0 {
		if !cfg.OptimizationType.CanHandleWithdrawal() {
			return nil, model.ErrWithdrawalIncompatible
		}
		if cfg.WithdrawalAmount > s.Input.TotalValue() {
			return nil, model.ErrWithdrawalTooLarge
		}
	}

	if cfg.OptimizationType == model.Hold {
		return noTradeSummary("hold", model.ObjectiveComponents{}, cfg), nil
	}

	stage := time.Now()
	lots, err := initialize.ValidateTaxLots(s.Input.TaxLots)
	if err != nil {
		return nil, err
	}
	targets, err := initialize.MergeTargets(s.Input.Targets, cfg.DeminimusCashTarget, withdrawFraction(s.Input, cfg))
	if err != nil {
		return nil, err
	}
	universe := initialize.Universe(lots, targets)
	if err := initialize.ValidatePrices(universe, s.Input.Prices); err != nil {
		return nil, err
	}
	spreads := initialize.NormalizeSpreads(universe, s.Input.Spreads)
	if err := initialize.SetupFactorModel(s.Input.FactorModel, universe); err != nil {
		return nil, err
	}
	timings.Initialization = time.Since(stage)

	stage = time.Now()
	gainLoss := reports.GainLossReport(lots, s.Input.Prices, cfg.CurrentDate, s.Input.TaxRates)
	actualWeights := reports.ActualWeights(lots, s.Input.Cash, s.Input.Prices)
	timings.ReportGeneration = time.Since(stage)

	totalValue := s.Input.TotalValue()
	minCash := s.Input.MinCashAmount()

	stage = time.Now()
	dv := s.buildDecisionVariables(universe, lots)
	setupOptimizationType(cfg.OptimizationType, dv)
	timings.ProblemSetup = time.Since(stage)

	targetWeight, positionValue := targetAndPositionValues(targets, lots, s.Input.Prices)

	stage = time.Now()
	in := &objectives.Inputs{
		Problem:      dv.problem,
		BuyVar:       dv.buyVar,
		SellVar:      dv.sellVar,
		Lots:         lots,
		Prices:       s.Input.Prices,
		Spreads:      spreads,
		GainLoss:     gainLoss,
		Targets:      targets,
		FactorModel:  s.Input.FactorModel,
		StartingCash: s.Input.Cash,
		TotalValue:   totalValue,
		CashTarget:   targetWeight[model.CashIdentifier] * totalValue,
		RankPriority: rankPriorityFromGainLoss(gainLoss),
		Config:       cfg,
	}
	objectives.Assemble(in)
	timings.ObjectiveCalculation = time.Since(stage)

	// No-trade baseline: solved BEFORE any constraints.Manager row is
	// added, matching compute_optimal_trades's ordering.
	stage = time.Now()
	baselineProblem := dv.problem.Clone()
	for _, idx := range dv.buyVar {
		baselineProblem.Fix(idx, 0)
	}
	for _, idx := range dv.sellVar {
		baselineProblem.Fix(idx, 0)
	}
	baselineSol := lp.BranchAndBound(baselineProblem)
	baselineIn := *in
	baselineIn.Problem = baselineProblem
	baseline := objectives.ComponentsFromSolution(&baselineIn, baselineSol)
	timings.NoTradeScenario = time.Since(stage)

	stage = time.Now()
	mgr := constraints.NewManager(dv.problem, dv.buyVar, dv.sellVar)
	mgr.AddLotAvailability(lots)
	mgr.AddHoldingPeriod(lots, cfg.CurrentDate, cfg.HoldingTimeDays)
	mgr.AddCashFloor(lots, s.Input.Prices, spreads, s.Input.Cash, minCash)

	if cfg.WithdrawalAmount > 0 {
		mgr.AddWithdrawal(lots, s.Input.Prices, spreads, cfg.WithdrawalAmount)
	}

	restrictedFromBuying := s.Tracker.RestrictedSet(cfg.CurrentDate)
	soldAtLoss := soldAtLossIdentifiers(gainLoss)

	// TLH candidates are identified here, before the wash-sale constraint
	// row is added, purely from gainLoss/weights/restriction data (no LP
	// mutation) so that a pairs-TLH replacement buy can be exempted from
	// the same-optimization sell/buy exclusion below. Injecting the
	// resulting pins into dv.problem itself still happens after the
	// buy-only fallback is cloned, per spec.md §4.6.
	shouldTLH := cfg.ShouldTLH && cfg.OptimizationType.ShouldTLH()
	var tlhTrades []*model.TLHTrade
	if shouldTLH {
		restrictedFromSelling := holdingPeriodRestrictedLots(lots, cfg.CurrentDate, cfg.HoldingTimeDays)
		weights := tlh.DriftWeights{CurrentWeight: actualWeights, TargetWeight: targetWeight, PositionValue: positionValue}

		switch cfg.OptimizationType {
		case model.DirectIndex:
			tlhTrades = tlh.IdentifyDirectIndex(gainLoss, weights, totalValue, restrictedFromSelling, cfg)
		case model.PairsTLH:
			multiIDClasses := multiIdentifierClasses(targets)
			tlhTrades = tlh.IdentifyPairs(multiIDClasses, gainLoss, weights, totalValue, restrictedFromSelling, restrictedFromBuying, cfg)
		}
	}

	mgr.AddWashSale(&constraints.WashSaleRestriction{
		RestrictedFromBuying: ternaryMap(cfg.EnforceWashSalePrevention, restrictedFromBuying),
		SoldAtLossThisRound:  soldAtLoss,
		ReplacementTargets:   replacementTargets(tlhTrades),
	})

	aggSell := mgr.BuildAggregateSellVars(lots)
	mgr.AddMinimumNotional(universe, dv.buyVar, s.Input.Prices, cfg.MinNotional)
	mgr.AddMinimumNotional(universe, aggSell, s.Input.Prices, cfg.MinNotional)
	timings.ConstraintsSetup = time.Since(stage)

	// Buy-only fallback problem copied BEFORE TLH pinning, per spec.md §4.6.
	buyOnlyProblem := dv.problem.Clone()

	stage = time.Now()
	if shouldTLH {
		ownLots := lotsByIdentifier(lots)
		tlh.InjectConstraints(dv.problem, dv.buyVar, dv.sellVar, tlhTrades, s.Input.Prices, ownLots)

		if len(tlhTrades) > 0 {
			tlhBaseline := dv.problem.Clone()
			for _, idx := range dv.buyVar {
				if tlhBaseline.Vars[idx].Lower != tlhBaseline.Vars[idx].Upper {
					tlhBaseline.Fix(idx, 0)
				}
			}
			for _, idx := range dv.sellVar {
				if tlhBaseline.Vars[idx].Lower != tlhBaseline.Vars[idx].Upper {
					tlhBaseline.Fix(idx, 0)
				}
			}
			tlhBaselineSol := lp.BranchAndBound(tlhBaseline)
			tlhBaselineIn := *in
			tlhBaselineIn.Problem = tlhBaseline
			baseline = objectives.ComponentsFromSolution(&tlhBaselineIn, tlhBaselineSol)
		}
	}
	timings.TLHOptimization = time.Since(stage)

	stage = time.Now()
	mainSol := lp.BranchAndBound(dv.problem)
	timings.MainSolve = time.Since(stage)

	if mainSol.Status != lp.Optimal {
		log.Warn().Str("status", mainSol.Status.String()).Msg("main optimization did not return an optimal solution")
		return noTradeSummary("infeasible", baseline, cfg), nil
	}

	after := objectives.ComponentsFromSolution(in, mainSol)
	improvement := baseline.Overall - after.Overall
	winningProblem := dv.problem
	scenario := model.ScenarioFull

	if cfg.RebalanceThreshold > 0 && improvement < cfg.RebalanceThreshold {
		stage = time.Now()
		for _, idx := range dv.sellVar {
			buyOnlyProblem.Fix(idx, 0)
		}
		if s.Input.Cash < minCash {
			timings.BuyOnlyOptimization = time.Since(stage)
			return noTradeSummary("not_enough_cash_to_buy_only", baseline, cfg), nil
		}

		buyOnlySol := lp.BranchAndBound(buyOnlyProblem)
		buyOnlyIn := *in
		buyOnlyIn.Problem = buyOnlyProblem
		buyOnlyComponents := objectives.ComponentsFromSolution(&buyOnlyIn, buyOnlySol)
		buyOnlyImprovement := baseline.Overall - buyOnlyComponents.Overall
		timings.BuyOnlyOptimization = time.Since(stage)

		if buyOnlySol.Status == lp.Optimal && buyOnlyImprovement >= cfg.BuyThreshold {
			mainSol = buyOnlySol
			after = buyOnlyComponents
			improvement = buyOnlyImprovement
			winningProblem = buyOnlyProblem
			scenario = model.ScenarioBuyOnly
		} else {
			return noTradeSummary("below_rebalance_threshold", baseline, cfg), nil
		}
	}

	stage = time.Now()
	trades := extractTrades(winningProblem, mainSol, dv.buyVar, dv.sellVar, lots, s.Input.Prices, gainLoss, cfg.CurrentDate)
	timings.ApplyTrades = time.Since(stage)

	stage = time.Now()
	summary := &model.TradeSummary{
		Trades:      trades,
		ShouldTrade: len(trades) > 0,
		Scenario:    scenario,
		Before:      baseline,
		After:       after,
		Improvement: improvement,
		Explanation: model.ExplanationContext{
			CaseType:           "optimized",
			BaselineImprove:    baseline.Overall,
			OptimizedImprove:   after.Overall,
			RebalanceThreshold: cfg.RebalanceThreshold,
			BuyThreshold:       cfg.BuyThreshold,
		},
	}
	timings.TradeSummaryGeneration = time.Since(stage)
	timings.Total = time.Since(start)
	summary.Timings = timings

	log.Debug().Object("TradeSummary", summary).Dur("Total", timings.Total).Msg("computed optimal trades")

	return summary, nil
}

func withdrawFraction(s *model.Strategy, cfg *model.Config) float64 {
	total := s.TotalValue()
	if total <= 0 {
		return 0
	}
	return cfg.WithdrawalAmount / total
}

func soldAtLossIdentifiers(gainLoss []*model.GainLossRow) map[string]bool {
	out := make(map[string]bool)
	for _, row := range gainLoss {
		if row.TaxGainLossPercentage < 0 {
			out[row.Identifier] = true
		}
	}
	return out
}

func holdingPeriodRestrictedLots(lots []*model.TaxLot, currentDate time.Time, holdingDays int) map[string]bool {
	out := make(map[string]bool)
	if holdingDays <= 0 {
		return out
	}
	for _, lot := range lots {
		if lot.AgeDays(currentDate) < float64(holdingDays) {
			out[lot.LotID] = true
		}
	}
	return out
}

func lotsByIdentifier(lots []*model.TaxLot) map[string][]string {
	out := make(map[string][]string)
	for _, lot := range lots {
		out[lot.Identifier] = append(out[lot.Identifier], lot.LotID)
	}
	return out
}

func multiIdentifierClasses(targets []*model.Target) []*model.Target {
	out := make([]*model.Target, 0)
	for _, t := range targets {
		if len(t.Identifiers) > 1 {
			out = append(out, t)
		}
	}
	return out
}

func targetAndPositionValues(targets []*model.Target, lots []*model.TaxLot, prices map[string]*model.Price) (map[string]float64, map[string]float64) {
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

	positionValue := make(map[string]float64)
	for _, lot := range lots {
		if p, ok := prices[lot.Identifier]; ok {
			positionValue[lot.Identifier] += lot.Quantity * p.Price
		}
	}

	return targetWeight, positionValue
}

func ternaryMap(enabled bool, m map[string]bool) map[string]bool {
	if !enabled {
		return nil
	}
	return m
}

// rankPriorityFromGainLoss ranks every lot ascending by PerShareTaxLiability
// (most negative, i.e. most tax-beneficial to sell, first) via
// common.PairList, the same convention spec.md uses for TLH candidate
// ordering. The resulting index feeds addRankPenalty so the objective
// breaks ties toward selling tax-preferred lots first.
func rankPriorityFromGainLoss(gainLoss []*model.GainLossRow) map[string]int {
	pairs := make(common.PairList, 0, len(gainLoss))
	for _, row := range gainLoss {
		pairs = append(pairs, common.Pair{Key: row.LotID, Value: row.PerShareTaxLiability})
	}
	sort.Sort(pairs)

	out := make(map[string]int, len(pairs))
	for i, p := range pairs {
		out[p.Key] = i
	}
	return out
}

// replacementTargets collects the identifiers a pairs-TLH harvest would buy
// as a same-asset-class replacement, so the wash-sale constraint can exempt
// them from the sold-at-loss same-round restriction (spec.md §8 invariant 3).
func replacementTargets(trades []*model.TLHTrade) map[string]bool {
	out := make(map[string]bool)
	for _, t := range trades {
		for id := range t.ReplacementBuys {
			out[id] = true
		}
	}
	return out
}
