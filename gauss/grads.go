// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gauss

import "fmt"

// Grads holds gradients for the six parameter arrays of a [Cloud], with
// matching shapes. The backward pass accumulates into it, and the
// optimizers consume it.
type Grads struct {
	Means, Scales, Quats, FeatDC, FeatRest, Opacities *Param
}

// NewGrads returns zero-valued gradients shaped like the given cloud.
func NewGrads(cl *Cloud) *Grads {
	return &Grads{
		Means:     NewParam(cl.Means.Name, cl.Means.Cell, cl.Means.Rows()),
		Scales:    NewParam(cl.Scales.Name, cl.Scales.Cell, cl.Scales.Rows()),
		Quats:     NewParam(cl.Quats.Name, cl.Quats.Cell, cl.Quats.Rows()),
		FeatDC:    NewParam(cl.FeatDC.Name, cl.FeatDC.Cell, cl.FeatDC.Rows()),
		FeatRest:  NewParam(cl.FeatRest.Name, cl.FeatRest.Cell, cl.FeatRest.Rows()),
		Opacities: NewParam(cl.Opacities.Name, cl.Opacities.Cell, cl.Opacities.Rows()),
	}
}

// Params returns the six gradient arrays in the same canonical order as
// [Cloud.Params].
func (g *Grads) Params() []*Param {
	return []*Param{g.Means, g.Scales, g.Quats, g.FeatDC, g.FeatRest, g.Opacities}
}

// Zero clears all gradients.
func (g *Grads) Zero() {
	for _, p := range g.Params() {
		p.Zero()
	}
}

// Add accumulates the given gradients into these. The shapes must match.
func (g *Grads) Add(o *Grads) error {
	op := o.Params()
	for i, p := range g.Params() {
		if len(op[i].Values) != len(p.Values) {
			return fmt.Errorf("gauss.Grads: %s has %d values, adding %d", p.Name, len(p.Values), len(op[i].Values))
		}
		for j, v := range op[i].Values {
			p.Values[j] += v
		}
	}
	return nil
}
