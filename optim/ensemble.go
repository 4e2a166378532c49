// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import (
	"fmt"

	"cogentcore.org/splat/gauss"
)

// LRs holds the learning rate for each of the six cloud parameters.
type LRs struct {
	Means, Scales, Quats, FeatDC, FeatRest, Opacities float32
}

// DefaultMeansLRFinal is the position learning rate at the end of the
// standard [ExpDecay] schedule.
const DefaultMeansLRFinal = 1.6e-6

// DefaultLRs returns the standard per parameter learning rates. The
// means rate is only the initial value of its decay schedule.
func DefaultLRs() LRs {
	return LRs{
		Means:     0.00016,
		Scales:    0.005,
		Quats:     0.001,
		FeatDC:    0.0025,
		FeatRest:  0.000125,
		Opacities: 0.05,
	}
}

// FrozenGeometryLRs returns learning rates for surface constrained
// training: geometry rates are driven to effectively zero so positions,
// scales, and rotations stay put, while colors and opacities train
// normally.
func FrozenGeometryLRs() LRs {
	lrs := DefaultLRs()
	lrs.Means = 1e-11
	lrs.Scales = 1e-10
	lrs.Quats = 1e-11
	return lrs
}

// Ensemble holds one independent [Adam] per cloud parameter, plus the
// staged gradients that the backward pass accumulates between steps. All
// moment buffers are kept in lockstep with cloud surgery through
// [Ensemble.Resize].
type Ensemble struct {
	Means, Scales, Quats, FeatDC, FeatRest, Opacities *Adam

	// Grads stages the gradients accumulated by the backward pass,
	// consumed by [Ensemble.Step] and cleared by [Ensemble.ZeroGrad].
	Grads *gauss.Grads
}

// NewEnsemble returns a new ensemble for the given cloud with the given
// per-parameter learning rates.
func NewEnsemble(cl *gauss.Cloud, lr LRs) *Ensemble {
	return &Ensemble{
		Means:     NewAdam(cl.Means, lr.Means),
		Scales:    NewAdam(cl.Scales, lr.Scales),
		Quats:     NewAdam(cl.Quats, lr.Quats),
		FeatDC:    NewAdam(cl.FeatDC, lr.FeatDC),
		FeatRest:  NewAdam(cl.FeatRest, lr.FeatRest),
		Opacities: NewAdam(cl.Opacities, lr.Opacities),
	}
}

// Opts returns the six optimizers in the same canonical order as
// [gauss.Cloud.Params].
func (en *Ensemble) Opts() []*Adam {
	return []*Adam{en.Means, en.Scales, en.Quats, en.FeatDC, en.FeatRest, en.Opacities}
}

// ZeroGrad clears the staged gradients, allocating them if needed.
// It must be called before the first backward pass and after each step.
func (en *Ensemble) ZeroGrad(cl *gauss.Cloud) {
	if en.Grads == nil || en.Grads.Means.Rows() != cl.NumSplats() {
		en.Grads = gauss.NewGrads(cl)
		return
	}
	en.Grads.Zero()
}

// Step applies one update to every cloud parameter from the staged
// gradients. The cloud, gradient, and moment shapes must all match.
func (en *Ensemble) Step(cl *gauss.Cloud) error {
	if en.Grads == nil {
		return fmt.Errorf("optim.Ensemble: no staged gradients: call ZeroGrad before the backward pass")
	}
	gp := en.Grads.Params()
	for i, p := range cl.Params() {
		if err := en.Opts()[i].Step(p, gp[i]); err != nil {
			return err
		}
	}
	return nil
}

// Resize remaps all six optimizers' moment buffers after cloud surgery
// using the combined mapping the surgery returned, and reallocates the
// staged gradients to the new size. The mapping must produce exactly the
// cloud's current number of splats.
func (en *Ensemble) Resize(cl *gauss.Cloud, m *gauss.Mapping) error {
	if m.NewRows() != cl.NumSplats() {
		return fmt.Errorf("optim.Ensemble: mapping produces %d rows but cloud has %d splats", m.NewRows(), cl.NumSplats())
	}
	for _, a := range en.Opts() {
		a.Resize(m)
	}
	en.Grads = gauss.NewGrads(cl)
	return nil
}
