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

// Package database persists the two pieces of state a batch of strategy
// solves needs across process restarts: the wash-sale closed-lot history
// (so a restart doesn't forget a loss realized an hour ago) and an audit
// log of every trade a solve emitted. It is grounded on the teacher's
// database/database.go connection-pool pattern and portfolio.go's
// upsert-by-primary-key SQL style, adapted from logrus to zerolog per the
// rest of this module's logging stack.
package database

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/penny-vault/oracle/model"
)

var pool *pgxpool.Pool

// Connect opens the connection pool against database.url and verifies it
// with a ping, mirroring the teacher's Connect.
func Connect(ctx context.Context) error {
	var err error
	pool, err = pgxpool.Connect(ctx, viper.GetString("database.url"))
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Close releases the connection pool. Safe to call even if Connect was
// never called.
func Close() {
	if pool != nil {
		pool.Close()
	}
}

// SaveWashSaleClosure upserts the most recent loss-realizing close date for
// one identifier, the durable backing store for washsale.Tracker.
func SaveWashSaleClosure(ctx context.Context, identifier string, closeDate time.Time) error {
	const sql = `
		INSERT INTO wash_sale_closure (identifier, last_loss_close)
		VALUES ($1, $2)
		ON CONFLICT (identifier) DO UPDATE
		SET last_loss_close = GREATEST(wash_sale_closure.last_loss_close, EXCLUDED.last_loss_close)`
	_, err := pool.Exec(ctx, sql, identifier, closeDate)
	if err != nil {
		log.Error().Err(err).Str("Identifier", identifier).Msg("failed to save wash sale closure")
	}
	return err
}

// LoadWashSaleClosures returns every identifier's most recent loss close
// date, used to rehydrate a washsale.Tracker on process startup.
func LoadWashSaleClosures(ctx context.Context) (map[string]time.Time, error) {
	rows, err := pool.Query(ctx, "SELECT identifier, last_loss_close FROM wash_sale_closure")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var identifier string
		var closeDate time.Time
		if err := rows.Scan(&identifier, &closeDate); err != nil {
			return nil, err
		}
		out[identifier] = closeDate
	}
	return out, rows.Err()
}

// SaveTradeSummary persists the winning scenario of one optimization call
// as an audit record: one row per emitted trade, keyed by the trade's
// content-addressed source ID so re-running the same solve twice is
// idempotent.
func SaveTradeSummary(ctx context.Context, strategyID string, asOf time.Time, summary *model.TradeSummary) error {
	trx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer trx.Rollback(ctx) //nolint:errcheck

	const sql = `
		INSERT INTO trade_log (source_id, strategy_id, as_of, identifier, action, lot_id,
			quantity, estimated_price, estimated_value, tax_impact, scenario)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source_id) DO NOTHING`

	for _, t := range summary.Trades {
		_, err := trx.Exec(ctx, sql,
			hex.EncodeToString(t.SourceID), strategyID, asOf, t.Identifier, string(t.Action), t.LotID,
			t.Quantity, t.EstimatedPrice, t.EstimatedValue, t.TaxImpact, string(summary.Scenario))
		if err != nil {
			log.Error().Err(err).Str("StrategyID", strategyID).Object("Trade", t).Msg("failed to save trade")
			return err
		}
	}

	return trx.Commit(ctx)
}
