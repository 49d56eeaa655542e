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

// Package cmd is the oracle CLI: a rebalance subcommand that reads a
// strategy snapshot and prints the resulting trade summary, a withdraw
// subcommand that estimates maximum raisable cash, and a version
// subcommand. Grounded on the teacher's cmd/root.go
// viper.BindEnv/PersistentFlags/BindPFlag triple pattern.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/oracle/common"
)

func init() {
	viper.BindEnv("database.url", "ORACLE_DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	viper.BindEnv("log.level", "ORACLE_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "ORACLE_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "ORACLE_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output: a file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "ORACLE_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Write human-readable console logs instead of JSON")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	cobra.OnInitialize(common.SetupLogging)
}

var rootCmd = &cobra.Command{
	Use:     "oracle",
	Version: common.CurrentVersion.String(),
	Short:   "Oracle is a tax-aware portfolio rebalancing and optimization engine",
	Long:    `Oracle computes tax-lot-aware rebalancing trades, tax-loss-harvesting harvests, and maximum-withdrawal estimates for a single portfolio snapshot.`,
}

// Execute runs the root command, exiting the process with status 1 on
// failure, matching the teacher's Execute.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
