// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package optim implements the Adam optimizers that drive splat training.
// Each cloud parameter gets its own independent [Adam] with its own
// learning rate, and the [Ensemble] keeps all six in lockstep with cloud
// surgery by remapping moment state through a [gauss.Mapping].
package optim

//go:generate core generate

import (
	"fmt"

	"cogentcore.org/core/math32"
	"cogentcore.org/splat/gauss"
)

// Adam default hyperparameters.
const (
	DefaultBeta1 = 0.9
	DefaultBeta2 = 0.999
	DefaultEps   = 1e-8
)

// Adam is the Adam optimizer for one splat parameter array, keeping first
// and second moment estimates with the same shape as the parameter.
type Adam struct {

	// LR is the learning rate.
	LR float32

	// Beta1 and Beta2 are the exponential decay rates of the first and
	// second moment estimates.
	Beta1, Beta2 float32

	// Eps is added to the update denominator for numerical stability.
	Eps float32

	// M and V are the first and second moment estimates.
	M, V *gauss.Param

	// Steps is the number of updates applied, used for bias correction.
	// It is shared by all rows, including ones added by [Adam.Resize].
	Steps int
}

// NewAdam returns a new Adam optimizer for a parameter of the given shape,
// with the given learning rate and default hyperparameters.
func NewAdam(p *gauss.Param, lr float32) *Adam {
	return &Adam{
		LR:    lr,
		Beta1: DefaultBeta1,
		Beta2: DefaultBeta2,
		Eps:   DefaultEps,
		M:     gauss.NewParam(p.Name+".m", p.Cell, p.Rows()),
		V:     gauss.NewParam(p.Name+".v", p.Cell, p.Rows()),
	}
}

// Step applies one bias-corrected Adam update to the parameter using the
// given gradient. The parameter, gradient, and moment shapes must all
// match; after cloud surgery, call [Adam.Resize] first.
func (a *Adam) Step(p, g *gauss.Param) error {
	if len(g.Values) != len(p.Values) {
		return fmt.Errorf("optim.Adam %s: gradient has %d values, parameter has %d", p.Name, len(g.Values), len(p.Values))
	}
	if len(a.M.Values) != len(p.Values) {
		return fmt.Errorf("optim.Adam %s: moments have %d values, parameter has %d: missing Resize after surgery", p.Name, len(a.M.Values), len(p.Values))
	}
	a.Steps++
	c1 := 1 - math32.Pow(a.Beta1, float32(a.Steps))
	c2 := 1 - math32.Pow(a.Beta2, float32(a.Steps))
	for i, gv := range g.Values {
		m := a.Beta1*a.M.Values[i] + (1-a.Beta1)*gv
		v := a.Beta2*a.V.Values[i] + (1-a.Beta2)*gv*gv
		a.M.Values[i] = m
		a.V.Values[i] = v
		p.Values[i] -= a.LR * (m / c1) / (math32.Sqrt(v/c2) + a.Eps)
	}
	return nil
}

// Resize remaps the moment estimates after cloud surgery so that each
// splat keeps its accumulated state: surviving rows keep their moments,
// rows appended by growth inherit their parent's, and removed rows are
// dropped. The step count is unchanged.
func (a *Adam) Resize(m *gauss.Mapping) {
	a.M = gatherRows(a.M, m)
	a.V = gatherRows(a.V, m)
}

// ResetMoments zeros the moment estimates of every row, keeping the step
// count, so that accumulated momentum does not carry a sudden parameter
// rewrite forward.
func (a *Adam) ResetMoments() {
	a.M.Zero()
	a.V.Zero()
}

// gatherRows returns a new parameter with the rows of p rearranged
// according to the mapping.
func gatherRows(p *gauss.Param, m *gauss.Mapping) *gauss.Param {
	np := gauss.NewParam(p.Name, p.Cell, m.NewRows())
	for i, j := range m.NewToOld {
		np.CopyRow(i, p, j)
	}
	return np
}
