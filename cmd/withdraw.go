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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/penny-vault/oracle/model"
	"github.com/penny-vault/oracle/oracle"
)

var (
	withdrawInputPath      string
	withdrawPreserveTarget bool
)

func init() {
	rootCmd.AddCommand(withdrawCmd)
	withdrawCmd.Flags().StringVar(&withdrawInputPath, "input", "", "path to a JSON-encoded model.Strategy snapshot")
	withdrawCmd.MarkFlagRequired("input")
	withdrawCmd.Flags().BoolVar(&withdrawPreserveTarget, "preserve-targets", false, "cap each identifier's sells at what keeps it from falling below its target weight")
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Estimate the maximum cash a strategy snapshot can currently raise",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(withdrawInputPath)
		if err != nil {
			return err
		}

		var strategy model.Strategy
		if err := json.Unmarshal(raw, &strategy); err != nil {
			return err
		}

		result, err := oracle.EstimateMaxWithdrawal(&strategy, withdrawPreserveTarget)
		if err != nil {
			return err
		}

		fmt.Printf("status=%s max_withdrawal=%.2f tax_cost=%.2f\n", result.Status, result.Amount, result.TaxCost)
		return nil
	},
}
