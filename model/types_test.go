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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCostBasisPerShareStableAcrossSplit(t *testing.T) {
	lot := &TaxLot{Quantity: 100, CostBasis: 1000}
	perShare := lot.CostBasisPerShare()
	assert.InDelta(t, 10, perShare, 1e-9)

	// Simulate a partial sell: both fields shrink proportionally.
	lot.Quantity = 40
	lot.CostBasis = 400
	assert.InDelta(t, perShare, lot.CostBasisPerShare(), 1e-9)
}

func TestCostBasisPerShareZeroQuantity(t *testing.T) {
	lot := &TaxLot{Quantity: 0, CostBasis: 0}
	assert.Equal(t, 0.0, lot.CostBasisPerShare())
}

func TestAgeDays(t *testing.T) {
	purchase := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	lot := &TaxLot{PurchaseDate: purchase}
	assert.InDelta(t, 30, lot.AgeDays(asOf), 1e-9)
}
