// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairListSortsAscendingByValue(t *testing.T) {
	pairs := PairList{
		{Key: "l1", Value: 5},
		{Key: "l2", Value: -3},
		{Key: "l3", Value: 1},
	}
	sort.Sort(pairs)

	assert.Equal(t, []string{"l2", "l3", "l1"}, []string{pairs[0].Key, pairs[1].Key, pairs[2].Key})
}

func TestGetTimezoneReturnsNewYork(t *testing.T) {
	loc := GetTimezone()
	assert.Equal(t, "America/New_York", loc.String())
}
