// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"errors"
	"fmt"

	"cogentcore.org/core/base/logx"
	"cogentcore.org/core/base/randx"
	"cogentcore.org/core/math32"
	"cogentcore.org/splat/gauss"
	"cogentcore.org/splat/optim"
)

// Refiner adaptively controls splat density during training: splats whose
// accumulated screen gradients show they cannot represent their region
// are duplicated or split, and splats that have faded out or ballooned
// are pruned. All structural changes go through the cloud's surgery
// operations, and the optimizer ensemble is resized in lockstep with the
// combined index mapping.
type Refiner struct {

	// Config supplies all thresholds and cadences.
	Config *Config

	// Refines is the number of completed refinements, counted for the
	// periodic opacity reset.
	Refines int
}

// RefineCounts reports what one refinement did.
type RefineCounts struct {
	Duplicated, Split, Pruned int

	// ResetAlpha is whether this refinement reset all opacities.
	ResetAlpha bool
}

func (rc *RefineCounts) String() string {
	return fmt.Sprintf("duplicated %d, split %d, pruned %d", rc.Duplicated, rc.Split, rc.Pruned)
}

// Refine runs one density refinement at the given step, mutating the
// cloud, mirroring the surgery into the ensemble's optimizer state, and
// resetting the statistics for the new splat count. An empty resulting
// cloud is an unrecoverable configuration error.
func (rf *Refiner) Refine(cl *gauss.Cloud, en *optim.Ensemble, st *Stats, step int, rnd randx.Rand) (*RefineCounts, error) {
	c := rf.Config
	n := cl.NumSplats()
	if st.NumSplats() != n {
		return nil, fmt.Errorf("train.Refiner: stats cover %d splats, cloud has %d", st.NumSplats(), n)
	}
	counts := &RefineCounts{}

	// densification candidates: enough accumulated gradient evidence,
	// small ones duplicated in place, large ones split in two
	var dups, splits []int
	for i := 0; i < n; i++ {
		if st.VisCount[i] == 0 || st.AvgGradNorm(i) <= c.DensifyGradThresh {
			continue
		}
		if cl.MaxScale(i) < c.DensifySizeThresh {
			dups = append(dups, i)
		} else {
			splits = append(splits, i)
		}
	}
	m1 := cl.Grow(dups, 1, nil)
	counts.Duplicated = len(dups)
	m2 := cl.Grow(splits, c.SplitSamples, func(parent, _ int) gauss.Splat {
		return splitChild(cl, parent, c.SplitSizeFactor, rnd)
	})
	counts.Split = len(splits)
	grown := m1.Compose(m2)

	// prune: split originals are replaced by their children; faded and
	// oversized splats are removed outright
	isSplit := make([]bool, n)
	for _, i := range splits {
		isSplit[i] = true
	}
	keep := make([]bool, cl.NumSplats())
	for i := range keep {
		if i >= n {
			keep[i] = true // fresh children survive this cycle
			continue
		}
		if isSplit[i] {
			continue
		}
		if cl.Alpha(i) < c.PruneOpacity {
			counts.Pruned++
			continue
		}
		if step < c.StopScreenSizeAt &&
			(st.MaxRadiiFrac[i] > c.SplitScreenSize || cl.MaxScale(i) > c.PruneScale3D) {
			counts.Pruned++
			continue
		}
		keep[i] = true
	}
	m3, err := cl.Shrink(keep)
	if errors.Is(err, gauss.ErrNoSplats) {
		return nil, fmt.Errorf("train: refinement at step %d would remove all splats; the configured thresholds cannot represent this scene: %w", step, err)
	}
	if err != nil {
		return nil, err
	}
	if err := en.Resize(cl, grown.Compose(m3)); err != nil {
		return nil, err
	}

	rf.Refines++
	if c.ResetAlphaEvery > 0 && rf.Refines%c.ResetAlphaEvery == 0 {
		rf.resetAlpha(cl, en)
		counts.ResetAlpha = true
	}
	st.Reset(cl.NumSplats())
	logx.PrintfDebug("train: step %d refine: %s -> %d splats\n", step, counts, cl.NumSplats())
	return counts, nil
}

// resetAlpha sets every opacity logit to a fixed low baseline just above
// the prune threshold and clears the opacity optimizer's momentum, so
// that only splats the gradients re-justify regain their opacity.
func (rf *Refiner) resetAlpha(cl *gauss.Cloud, en *optim.Ensemble) {
	logit := gauss.Logit(2 * rf.Config.PruneOpacity)
	for i := range cl.Opacities.Values {
		cl.Opacities.Values[i] = logit
	}
	en.Opacities.ResetMoments()
}

// splitChild samples one replacement splat for a split: positioned at a
// gaussian sample of the parent's own covariance, with scales shrunk by
// the split size factor and rotation, color, and opacity inherited.
func splitChild(cl *gauss.Cloud, parent int, sizeFactor float32, rnd randx.Rand) gauss.Splat {
	s := cl.Splat(parent)
	ws := cl.WorldScale(parent)
	local := math32.Vec3(
		float32(rnd.NormFloat64())*ws.X,
		float32(rnd.NormFloat64())*ws.Y,
		float32(rnd.NormFloat64())*ws.Z)
	s.Mean = s.Mean.Add(local.MulQuat(cl.Rotation(parent)))
	shrink := math32.Log(sizeFactor)
	s.Scale.SetSubScalar(shrink)
	return s
}
