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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// NewLotID returns a fresh random lot identifier.
func NewLotID() string {
	return uuid.New().String()
}

// ComputeTradeSourceID computes a deterministic, content-addressed ID for
// a trade from its economically-significant fields: date, identifier,
// action, lot ID, quantity, price, and estimated value. Two trades emitted from the same (inputs,
// solver, seed) hash identically, which is what spec.md's ordering
// guarantee needs once trades are persisted.
func ComputeTradeSourceID(t *Trade, asOf time.Time) ([]byte, error) {
	h := blake3.New()

	d, err := asOf.UTC().MarshalText()
	if err != nil {
		return nil, err
	}
	h.Write(d)
	h.Write([]byte(t.Identifier))
	h.Write([]byte(t.Action))
	h.Write([]byte(t.LotID))
	h.Write([]byte(fmt.Sprintf("%.5f", t.Quantity)))
	h.Write([]byte(fmt.Sprintf("%.5f", t.EstimatedPrice)))
	h.Write([]byte(fmt.Sprintf("%.5f", t.EstimatedValue)))

	digest := h.Digest()
	buf := make([]byte, 16)
	n, err := digest.Read(buf)
	if err != nil {
		return nil, err
	}
	if n != 16 {
		return nil, errors.New("generate hash failed -- couldn't read 16 bytes from digest")
	}
	return buf, nil
}
