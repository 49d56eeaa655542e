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

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	tolerance     = 1e-9
	maxIterations = 20000
)

// tableau holds one phase of the simplex method: the working matrix
// (constraint rows + objective row, augmented with the RHS column) and
// the column index currently basic in each row.
type tableau struct {
	m     *mat.Dense
	basis []int
	rows  int
	cols  int // excludes the rhs column
}

func newTableau(rows, cols int) *tableau {
	return &tableau{
		m:     mat.NewDense(rows+1, cols+1, nil),
		basis: make([]int, rows),
		rows:  rows,
		cols:  cols,
	}
}

func (t *tableau) objRow() []float64 { return t.m.RawRowView(t.rows) }
func (t *tableau) row(i int) []float64 { return t.m.RawRowView(i) }

// pivot performs Gauss-Jordan elimination around (pivotRow, pivotCol),
// zeroing that column in every other row including the objective row.
func (t *tableau) pivot(pivotRow, pivotCol int) {
	pr := t.row(pivotRow)
	pv := pr[pivotCol]
	for j := range pr {
		pr[j] /= pv
	}

	for i := 0; i <= t.rows; i++ {
		if i == pivotRow {
			continue
		}
		r := t.rowAny(i)
		factor := r[pivotCol]
		if math.Abs(factor) < tolerance {
			continue
		}
		for j := range r {
			r[j] -= factor * pr[j]
		}
	}
	t.basis[pivotRow] = pivotCol
}

func (t *tableau) rowAny(i int) []float64 {
	if i == t.rows {
		return t.objRow()
	}
	return t.row(i)
}

// runSimplex performs Bland's-rule simplex iteration (anti-cycling, at the
// cost of some performance) until optimal or unbounded, or the iteration
// cap is hit. blocked columns are never chosen to enter (used to keep
// phase-2 from re-admitting artificial columns).
func (t *tableau) runSimplex(blocked map[int]bool) Status {
	for iter := 0; iter < maxIterations; iter++ {
		obj := t.objRow()

		entering := -1
		for j := 0; j < t.cols; j++ {
			if blocked != nil && blocked[j] {
				continue
			}
			if obj[j] < -tolerance {
				entering = j
				break // Bland's rule: smallest index
			}
		}
		if entering == -1 {
			return Optimal
		}

		leaving := -1
		bestRatio := math.Inf(1)
		for i := 0; i < t.rows; i++ {
			r := t.row(i)
			coeff := r[entering]
			if coeff <= tolerance {
				continue
			}
			ratio := r[t.cols] / coeff
			if ratio < bestRatio-tolerance {
				bestRatio = ratio
				leaving = i
			} else if ratio < bestRatio+tolerance && leaving != -1 && t.basis[i] < t.basis[leaving] {
				leaving = i
			}
		}
		if leaving == -1 {
			return Unbounded
		}

		t.pivot(leaving, entering)
	}
	return Undefined
}

func (t *tableau) objectiveValue() float64 {
	return -t.objRow()[t.cols]
}

func (t *tableau) basicValue(col int) float64 {
	for i, b := range t.basis {
		if b == col {
			return t.row(i)[t.cols]
		}
	}
	return 0
}

// shiftedColumn describes how an original variable maps onto the
// simplex's nonnegative-only columns: value = shift + y, where y is the
// tableau column's solved value.
type shiftedColumn struct {
	col   int
	shift float64
}

// Solve runs the two-phase simplex method on the LP relaxation of p (binary
// variables are treated as continuous on [0,1]; use BranchAndBound for an
// integral solution). Variables are shifted so every tableau column is
// nonnegative; finite upper bounds become extra <= rows.
func Solve(p *Problem) *Solution {
	n := len(p.Vars)
	varShift := make([]float64, n)
	varUpper := make([]float64, n) // shifted upper bound, +Inf if none

	for i, v := range p.Vars {
		lower := v.Lower
		if isInf(lower) {
			lower = 0
		}
		varShift[i] = lower
		if isInf(v.Upper) {
			varUpper[i] = math.Inf(1)
		} else {
			varUpper[i] = v.Upper - lower
			if varUpper[i] < 0 {
				varUpper[i] = 0
			}
		}
	}

	type row struct {
		coeffs map[int]float64
		sense  Sense
		rhs    float64
	}
	rows := make([]row, 0, len(p.Constraints)+n)

	for _, c := range p.Constraints {
		rhs := c.RHS
		coeffs := make(map[int]float64, len(c.Coeffs))
		for idx, coeff := range c.Coeffs {
			coeffs[idx] = coeff
			rhs -= coeff * varShift[idx]
		}
		rows = append(rows, row{coeffs: coeffs, sense: c.Sense, rhs: rhs})
	}
	for i := range p.Vars {
		if !isInf(varUpper[i]) {
			rows = append(rows, row{coeffs: map[int]float64{i: 1}, sense: LE, rhs: varUpper[i]})
		}
	}

	// Normalize so every RHS is nonnegative, flipping sense as needed.
	for i := range rows {
		if rows[i].rhs < 0 {
			for k, v := range rows[i].coeffs {
				rows[i].coeffs[k] = -v
			}
			rows[i].rhs = -rows[i].rhs
			switch rows[i].sense {
			case LE:
				rows[i].sense = GE
			case GE:
				rows[i].sense = LE
			}
		}
	}

	m := len(rows)
	extraCols := 0
	artificialCols := make([]int, m)
	for i := range artificialCols {
		artificialCols[i] = -1
	}
	slackSurplusCol := make([]int, m)
	for i := range slackSurplusCol {
		slackSurplusCol[i] = -1
	}

	// First pass: count extra columns needed (slack/surplus + artificial).
	needsArtificial := make([]bool, m)
	for i, r := range rows {
		switch r.sense {
		case LE:
			extraCols++ // slack
		case GE:
			extraCols++ // surplus
			needsArtificial[i] = true
		case EQ:
			needsArtificial[i] = true
		}
	}
	artificialCount := 0
	for _, need := range needsArtificial {
		if need {
			artificialCount++
		}
	}

	totalCols := n + extraCols + artificialCount
	t := newTableau(m, totalCols)

	nextCol := n
	artificialIdx := make([]int, 0, artificialCount)
	for i, r := range rows {
		tr := t.row(i)
		for idx, coeff := range r.coeffs {
			tr[idx] = coeff
		}
		tr[t.cols] = r.rhs

		switch r.sense {
		case LE:
			tr[nextCol] = 1
			slackSurplusCol[i] = nextCol
			t.basis[i] = nextCol
			nextCol++
		case GE:
			tr[nextCol] = -1
			slackSurplusCol[i] = nextCol
			nextCol++
			tr[nextCol] = 1
			artificialCols[i] = nextCol
			artificialIdx = append(artificialIdx, nextCol)
			t.basis[i] = nextCol
			nextCol++
		case EQ:
			tr[nextCol] = 1
			artificialCols[i] = nextCol
			artificialIdx = append(artificialIdx, nextCol)
			t.basis[i] = nextCol
			nextCol++
		}
	}

	blockedInPhase2 := make(map[int]bool, len(artificialIdx))
	for _, c := range artificialIdx {
		blockedInPhase2[c] = true
	}

	if len(artificialIdx) > 0 {
		obj := t.objRow()
		for _, c := range artificialIdx {
			obj[c] = 1
		}
		for i, b := range t.basis {
			if blockedInPhase2[b] {
				r := t.row(i)
				for j := range obj {
					obj[j] -= r[j]
				}
			}
		}

		status := t.runSimplex(nil)
		if status != Optimal {
			return &Solution{Status: Undefined}
		}
		if t.objectiveValue() > 1e-6 {
			return &Solution{Status: Infeasible}
		}

		// Drive any artificial left in the basis at (near) zero out, if
		// possible, so it cannot re-enter during phase 2.
		for i, b := range t.basis {
			if !blockedInPhase2[b] {
				continue
			}
			r := t.row(i)
			for j := 0; j < n+extraCols; j++ {
				if blockedInPhase2[j] {
					continue
				}
				if math.Abs(r[j]) > tolerance {
					t.pivot(i, j)
					break
				}
			}
		}
	}

	// Phase 2: install the real objective over non-artificial columns.
	obj := t.objRow()
	for j := range obj {
		obj[j] = 0
	}
	for i, v := range p.Vars {
		obj[i] = v.ObjCoef
	}
	obj[t.cols] = 0
	for i, b := range t.basis {
		if obj[b] == 0 {
			continue
		}
		factor := obj[b]
		r := t.row(i)
		for j := range obj {
			obj[j] -= factor * r[j]
		}
	}

	status := t.runSimplex(blockedInPhase2)
	if status != Optimal {
		return &Solution{Status: status}
	}

	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = varShift[i] + t.basicValue(i)
	}

	var objective float64
	for i, v := range p.Vars {
		objective += v.ObjCoef * values[i]
	}

	return &Solution{Status: Optimal, Values: values, Objective: objective}
}
