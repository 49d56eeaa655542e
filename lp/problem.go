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

// Package lp implements a from-scratch two-phase simplex solver with a
// branch-and-bound layer for binary variables, backed by gonum/mat for the
// tableau arithmetic. No pack example or ecosystem pure-Go LP/MILP package
// was available to build on (see DESIGN.md); this keeps the numerical
// core on a real dependency and confines the original control flow to
// pivoting and branching.
package lp

import "math"

// Kind distinguishes a continuous decision variable from a binary
// indicator introduced for minimum-notional encodings.
type Kind int

const (
	Continuous Kind = iota
	Binary
)

// Sense is the comparison operator of a linear constraint row.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

// Variable is one column of the problem.
type Variable struct {
	Name    string
	Kind    Kind
	Lower   float64
	Upper   float64 // math.Inf(1) for unbounded above
	ObjCoef float64

	// InitialValue is an optional warm-start hint. The simplex/B&B
	// implementation here always solves from scratch, but the field is
	// carried so callers can seed it the way the source's
	// _set_initial_values does, and a future solver swap has somewhere to
	// plug it in without an API change.
	InitialValue float64
}

// Constraint is one row: Σ coeff[i]·x[i] (sense) RHS.
type Constraint struct {
	Name   string
	Coeffs map[int]float64
	Sense  Sense
	RHS    float64
}

// Problem is a mixed-integer linear program in the engine's working
// representation: a list of bounded variables, a list of constraint rows,
// and a linear objective to minimize.
type Problem struct {
	Vars        []*Variable
	Constraints []*Constraint
	varIndex    map[string]int
}

// NewProblem returns an empty problem ready for AddVar/AddConstraint.
func NewProblem() *Problem {
	return &Problem{varIndex: make(map[string]int)}
}

// AddVar appends a variable and returns its index.
func (p *Problem) AddVar(name string, kind Kind, lower, upper float64) int {
	idx := len(p.Vars)
	p.Vars = append(p.Vars, &Variable{Name: name, Kind: kind, Lower: lower, Upper: upper})
	p.varIndex[name] = idx
	return idx
}

// Index returns the variable index for name, or -1 if not found.
func (p *Problem) Index(name string) int {
	if idx, ok := p.varIndex[name]; ok {
		return idx
	}
	return -1
}

// SetObjCoef adds coeff to the objective coefficient of variable idx, so
// repeated calls accumulate.
func (p *Problem) SetObjCoef(idx int, coeff float64) {
	p.Vars[idx].ObjCoef += coeff
}

// AddConstraint appends a constraint row.
func (p *Problem) AddConstraint(name string, coeffs map[int]float64, sense Sense, rhs float64) *Constraint {
	c := &Constraint{Name: name, Coeffs: coeffs, Sense: sense, RHS: rhs}
	p.Constraints = append(p.Constraints, c)
	return c
}

// Fix pins a variable to an exact value by tightening both bounds, the
// encoding used to inject TLH-pinned buy/sell quantities into the LP
// (spec.md §4.7).
func (p *Problem) Fix(idx int, value float64) {
	p.Vars[idx].Lower = value
	p.Vars[idx].Upper = value
}

// Clone returns a deep copy, used before mutating a problem for the
// no-trade baseline, the buy-only fallback, or a branch-and-bound child
// node.
func (p *Problem) Clone() *Problem {
	out := &Problem{
		Vars:        make([]*Variable, len(p.Vars)),
		Constraints: make([]*Constraint, len(p.Constraints)),
		varIndex:    make(map[string]int, len(p.varIndex)),
	}
	for i, v := range p.Vars {
		cp := *v
		out.Vars[i] = &cp
	}
	for name, idx := range p.varIndex {
		out.varIndex[name] = idx
	}
	for i, c := range p.Constraints {
		coeffs := make(map[int]float64, len(c.Coeffs))
		for k, v := range c.Coeffs {
			coeffs[k] = v
		}
		out.Constraints[i] = &Constraint{Name: c.Name, Coeffs: coeffs, Sense: c.Sense, RHS: c.RHS}
	}
	return out
}

// HasBinaries reports whether the problem needs branch-and-bound.
func (p *Problem) HasBinaries() bool {
	for _, v := range p.Vars {
		if v.Kind == Binary {
			return true
		}
	}
	return false
}

func isInf(f float64) bool {
	return math.IsInf(f, 1) || math.IsInf(f, -1)
}
