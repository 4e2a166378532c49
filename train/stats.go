// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"fmt"

	"cogentcore.org/core/math32"
	"cogentcore.org/splat/render"
)

// Stats accumulates the per splat view space statistics that density
// refinement decides on, gathered from every forward and backward pass
// between two refinements and reset after each one.
type Stats struct {

	// GradNormSum is the summed L2 norm of each visible splat's screen
	// position gradient.
	GradNormSum []float32

	// VisCount is the number of passes each splat was visible in.
	VisCount []int32

	// MaxRadiiFrac is the largest projected radius of each splat seen
	// so far, as a fraction of the larger image dimension.
	MaxRadiiFrac []float32
}

// NewStats returns zeroed statistics for n splats.
func NewStats(n int) *Stats {
	st := &Stats{}
	st.Reset(n)
	return st
}

// NumSplats returns the number of splats the statistics cover.
func (st *Stats) NumSplats() int { return len(st.GradNormSum) }

// Reset zeroes all statistics and sizes them for n splats. It must be
// called whenever the splat count changes; calling it again with the same
// count is a no-op beyond re-zeroing.
func (st *Stats) Reset(n int) {
	if len(st.GradNormSum) != n {
		st.GradNormSum = make([]float32, n)
		st.VisCount = make([]int32, n)
		st.MaxRadiiFrac = make([]float32, n)
		return
	}
	for i := range st.GradNormSum {
		st.GradNormSum[i] = 0
		st.VisCount[i] = 0
		st.MaxRadiiFrac[i] = 0
	}
}

// Update accumulates one pass's screen space outputs: for each visible
// splat the screen position gradient norm is added, the visibility count
// incremented, and the maximum projected radius fraction updated. The
// image dimensions are taken from the rendered output.
func (st *Stats) Update(out *render.Output, dScreen []math32.Vector2) error {
	n := st.NumSplats()
	if len(out.Visible) != n || len(dScreen) != n || len(out.Radii) != n {
		return fmt.Errorf("train.Stats: pass covers %d splats, stats cover %d", len(out.Visible), n)
	}
	dim := float32(max(out.Image.Width, out.Image.Height))
	for i, vis := range out.Visible {
		if !vis {
			continue
		}
		st.GradNormSum[i] += dScreen[i].Length()
		st.VisCount[i]++
		st.MaxRadiiFrac[i] = max(st.MaxRadiiFrac[i], out.Radii[i]/dim)
	}
	return nil
}

// AvgGradNorm returns the average screen position gradient norm of splat
// i over the passes it was visible in, or 0 if it was never visible.
func (st *Stats) AvgGradNorm(i int) float32 {
	if st.VisCount[i] == 0 {
		return 0
	}
	return st.GradNormSum[i] / float32(st.VisCount[i])
}
