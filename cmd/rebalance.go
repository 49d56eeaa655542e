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

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/oracle/database"
	"github.com/penny-vault/oracle/model"
	"github.com/penny-vault/oracle/oracle"
	"github.com/penny-vault/oracle/washsale"
)

var (
	rebalanceInputPath string
	rebalancePersist   bool
)

func init() {
	rootCmd.AddCommand(rebalanceCmd)
	rebalanceCmd.Flags().StringVar(&rebalanceInputPath, "input", "", "path to a JSON-encoded model.Strategy snapshot")
	rebalanceCmd.MarkFlagRequired("input")
	rebalanceCmd.Flags().BoolVar(&rebalancePersist, "persist", false, "save the wash-sale closures and trade log to the database")
}

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Compute the optimal tax-aware trades for a strategy snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		raw, err := os.ReadFile(rebalanceInputPath)
		if err != nil {
			return err
		}

		var strategy model.Strategy
		if err := json.Unmarshal(raw, &strategy); err != nil {
			return err
		}

		tracker := washsale.NewTracker()
		if rebalancePersist {
			if err := database.Connect(ctx); err != nil {
				return err
			}
			defer database.Close()

			closures, err := database.LoadWashSaleClosures(ctx)
			if err != nil {
				return err
			}
			for identifier, closeDate := range closures {
				tracker.ApplyClosures(identifier, closeDate)
			}
		}

		summary, err := oracle.NewStrategy(&strategy, tracker).ComputeOptimalTrades()
		if err != nil {
			return err
		}

		printTradeSummary(summary)

		if rebalancePersist && summary.ShouldTrade {
			if err := database.SaveTradeSummary(ctx, strategy.ID, strategy.Config.CurrentDate, summary); err != nil {
				return err
			}
			for _, t := range summary.Trades {
				if t.Action == model.Sell && t.TaxImpact < 0 {
					if err := database.SaveWashSaleClosure(ctx, t.Identifier, strategy.Config.CurrentDate); err != nil {
						log.Error().Err(err).Str("Identifier", t.Identifier).Msg("failed to save wash sale closure")
					}
				}
			}
		}

		return nil
	},
}

func printTradeSummary(summary *model.TradeSummary) {
	fmt.Printf("scenario=%s should_trade=%t improvement=%.2f case=%s\n\n",
		summary.Scenario, summary.ShouldTrade, summary.Improvement, summary.Explanation.CaseType)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Action", "Identifier", "Lot", "Quantity", "Price", "Value", "Tax Impact"})
	for _, t := range summary.Trades {
		table.Append([]string{
			string(t.Action),
			t.Identifier,
			t.LotID,
			strconv.FormatFloat(t.Quantity, 'f', 4, 64),
			strconv.FormatFloat(t.EstimatedPrice, 'f', 2, 64),
			strconv.FormatFloat(t.EstimatedValue, 'f', 2, 64),
			strconv.FormatFloat(t.TaxImpact, 'f', 2, 64),
		})
	}
	table.Render()
}
