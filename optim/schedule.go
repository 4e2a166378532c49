// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import "cogentcore.org/core/math32"

// ExpDecay is an exponential learning rate decay schedule, interpolating
// from Init at step 0 to Final at step Steps on a log scale. The splat
// position optimizer uses it so that coarse placement happens early and
// fine adjustment late.
type ExpDecay struct {

	// Init is the learning rate at step 0. It must be positive.
	Init float32

	// Final is the learning rate at the last step. It must be positive.
	Final float32

	// Steps is the total number of steps to decay over.
	Steps int
}

// At returns the learning rate at step t, clamped to [Init, Final] outside
// the schedule range.
func (e *ExpDecay) At(t int) float32 {
	if t <= 0 {
		return e.Init
	}
	if t >= e.Steps {
		return e.Final
	}
	return e.Init * math32.Pow(e.Final/e.Init, float32(t)/float32(e.Steps))
}
