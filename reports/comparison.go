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

package reports

import (
	"sort"

	"github.com/penny-vault/oracle/model"
	"gonum.org/v1/gonum/stat"
)

// DriftComparisonRow pairs a pre- and post-trade drift observation for the
// same identifier or asset class.
type DriftComparisonRow struct {
	Identifier string
	AssetClass string
	Before     float64
	After      float64
	Improved   bool
}

// GenerateDriftComparisonReport pairs before/after drift rows by
// (identifier, asset_class) key and reports whether the absolute drift
// shrank.
func GenerateDriftComparisonReport(before, after []*model.DriftRow) []*DriftComparisonRow {
	afterByKey := make(map[string]*model.DriftRow, len(after))
	for _, row := range after {
		afterByKey[row.AssetClass+"|"+row.Identifier] = row
	}

	out := make([]*DriftComparisonRow, 0, len(before))
	for _, b := range before {
		a, ok := afterByKey[b.AssetClass+"|"+b.Identifier]
		if !ok {
			continue
		}
		out = append(out, &DriftComparisonRow{
			Identifier: b.Identifier,
			AssetClass: b.AssetClass,
			Before:     b.Drift,
			After:      a.Drift,
			Improved:   absF(a.Drift) <= absF(b.Drift),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetClass != out[j].AssetClass {
			return out[i].AssetClass < out[j].AssetClass
		}
		return out[i].Identifier < out[j].Identifier
	})

	return out
}

// FactorComparisonRow reports a single factor's pre/post exposure gap to
// target, along with the tracking-error contribution of that gap.
type FactorComparisonRow struct {
	Factor            string
	BeforeExposure    float64
	AfterExposure     float64
	TargetExposure    float64
	TrackingErrorBefore float64
	TrackingErrorAfter  float64
}

// GenerateFactorModelComparisonReport computes, per factor, the pre- and
// post-trade portfolio exposure against the target exposure vector, plus
// the tracking-error (sample standard deviation, via stat.StdDev, of the
// per-identifier exposure gaps, weighted by position) contributed by that factor. This
// generalizes the teacher's gonum/stat usage for portfolio statistics to
// factor-exposure tracking error.
func GenerateFactorModelComparisonReport(fm *model.FactorModel, beforeWeights, afterWeights map[string]float64) []*FactorComparisonRow {
	if fm == nil {
		return nil
	}

	factors := make([]string, 0, len(fm.TargetExposure))
	for f := range fm.TargetExposure {
		factors = append(factors, f)
	}
	sort.Strings(factors)

	out := make([]*FactorComparisonRow, 0, len(factors))
	for _, factor := range factors {
		target := fm.TargetExposure[factor]

		beforeExposure, beforeGaps := factorExposure(fm, beforeWeights, factor, target)
		afterExposure, afterGaps := factorExposure(fm, afterWeights, factor, target)

		out = append(out, &FactorComparisonRow{
			Factor:              factor,
			BeforeExposure:      beforeExposure,
			AfterExposure:       afterExposure,
			TargetExposure:      target,
			TrackingErrorBefore: stat.StdDev(beforeGaps, nil),
			TrackingErrorAfter:  stat.StdDev(afterGaps, nil),
		})
	}

	return out
}

func factorExposure(fm *model.FactorModel, weights map[string]float64, factor string, target float64) (float64, []float64) {
	var exposure float64
	gaps := make([]float64, 0, len(weights))

	for id, weight := range weights {
		loading, ok := fm.Loadings[id]
		if !ok {
			continue
		}
		l := loading.Loadings[factor]
		exposure += weight * l
		gaps = append(gaps, weight*(l-target))
	}

	return exposure, gaps
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
