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

package lp

import "math"

const maxBranchNodes = 5000

// BranchAndBound solves the MILP relaxation-branch loop for problems with
// binary variables: the minimum-notional indicators per spec.md §4.3. It depth-first searches on the first fractional binary
// variable, fixing it to 0 then 1, and prunes a branch whose relaxed bound
// is already no better than the best integral incumbent found so far.
// Continuous-only problems are solved directly by Solve.
func BranchAndBound(p *Problem) *Solution {
	if !p.HasBinaries() {
		return Solve(p)
	}

	var best *Solution
	nodes := 0

	var explore func(node *Problem)
	explore = func(node *Problem) {
		nodes++
		if nodes > maxBranchNodes {
			return
		}

		sol := Solve(node)
		if sol.Status != Optimal {
			return
		}
		if best != nil && sol.Objective >= best.Objective-tolerance {
			return // bound prune: this relaxation can't beat the incumbent
		}

		branchVar := -1
		for i, v := range node.Vars {
			if v.Kind != Binary {
				continue
			}
			frac := sol.Values[i]
			if math.Abs(frac-math.Round(frac)) > 1e-6 {
				branchVar = i
				break
			}
		}

		if branchVar == -1 {
			best = sol
			return
		}

		zero := node.Clone()
		zero.Fix(branchVar, 0)
		explore(zero)

		one := node.Clone()
		one.Fix(branchVar, 1)
		explore(one)
	}

	explore(p)

	if best == nil {
		return &Solution{Status: Infeasible}
	}
	return best
}
