// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"testing"

	"cogentcore.org/core/base/randx"
	"cogentcore.org/core/base/tolassert"
	"cogentcore.org/core/math32"
	"cogentcore.org/splat/gauss"
	"cogentcore.org/splat/optim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// refineSetup returns an n splat cloud with distinctive parameter and
// moment values, its ensemble, and zeroed stats. Splats start small
// (log scale -6), identity rotation, and well above the prune opacity.
func refineSetup(n int) (*gauss.Cloud, *optim.Ensemble, *Stats) {
	cl := gauss.NewCloud(1, n)
	for i := 0; i < n; i++ {
		cl.SetSplat(i, gauss.Splat{
			Mean:    math32.Vec3(float32(i), 0, 0),
			Scale:   math32.Vec3(-6, -6, -6),
			Quat:    math32.Quat{W: 1},
			DC:      math32.Vec3(0.1*float32(i), 0, 0),
			Opacity: 2,
		})
	}
	en := optim.NewEnsemble(cl, optim.DefaultLRs())
	for _, a := range en.Opts() {
		for i := range a.M.Values {
			a.M.Values[i] = float32(i) + 0.5
			a.V.Values[i] = float32(i) + 0.25
		}
	}
	return cl, en, NewStats(n)
}

func refineConfig() *Config {
	return &Config{
		RefineEvery: 100, WarmupLength: 500, StopSplitAt: 15000,
		DensifyGradThresh: 0.001, DensifySizeThresh: 0.01,
		StopScreenSizeAt: 4000, SplitScreenSize: 0.05,
		PruneOpacity: 0.1, PruneScale3D: 0.5,
		SplitSamples: 2, SplitSizeFactor: 1.6,
		ResetAlphaEvery: 30,
	}
}

// checkLockstep asserts the core invariant: all six parameter arrays and
// all twelve moment buffers share the cloud's splat count.
func checkLockstep(t *testing.T, cl *gauss.Cloud, en *optim.Ensemble) {
	require.NoError(t, cl.Validate())
	n := cl.NumSplats()
	for i, a := range en.Opts() {
		assert.Equal(t, n, a.M.Rows(), "optimizer %d first moment", i)
		assert.Equal(t, n, a.V.Rows(), "optimizer %d second moment", i)
	}
}

// All ten small splats above the gradient threshold duplicate: count
// doubles and each child inherits a bit-identical copy of its parent's
// moments while the originals keep theirs.
func TestRefineDuplicateAll(t *testing.T) {
	cl, en, st := refineSetup(10)
	for i := 0; i < 10; i++ {
		st.GradNormSum[i] = 0.01
		st.VisCount[i] = 1
	}
	preM := en.Means.M.Clone()

	rf := &Refiner{Config: refineConfig()}
	counts, err := rf.Refine(cl, en, st, 600, randx.NewSysRand(1))
	require.NoError(t, err)
	assert.Equal(t, 10, counts.Duplicated)
	assert.Equal(t, 0, counts.Split)
	assert.Equal(t, 0, counts.Pruned)
	assert.Equal(t, 20, cl.NumSplats())
	checkLockstep(t, cl, en)

	for i := 0; i < 10; i++ {
		assert.Equal(t, preM.Row(i), en.Means.M.Row(i))
		assert.Equal(t, preM.Row(i), en.Means.M.Row(10+i))
		assert.Equal(t, cl.Means.Row(i), cl.Means.Row(10+i))
	}
	assert.Equal(t, 20, st.NumSplats())
	assert.Equal(t, float32(0), st.GradNormSum[0])
}

// A faded splat among five is pruned and its moment entries are excised
// from every optimizer.
func TestRefinePruneOpacity(t *testing.T) {
	cl, en, st := refineSetup(5)
	cl.Opacities.Row(2)[0] = -10 // sigmoid ~ 0.00005

	rf := &Refiner{Config: refineConfig()}
	counts, err := rf.Refine(cl, en, st, 600, randx.NewSysRand(1))
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Pruned)
	assert.Equal(t, 4, cl.NumSplats())
	checkLockstep(t, cl, en)

	// surviving splats 0,1,3,4 keep their rows in order
	want := []float32{0, 1, 3, 4}
	for i, w := range want {
		assert.Equal(t, w, cl.Means.Row(i)[0])
	}
	for _, a := range en.Opts() {
		cell := a.M.Cell
		for i, w := range want {
			assert.Equal(t, float32(w)*float32(cell)+0.5, a.M.Row(i)[0])
		}
	}
}

// Large high gradient splats split in two: the original is removed and
// both children carry shrunken scales and the parent's moments.
func TestRefineSplit(t *testing.T) {
	cl, en, st := refineSetup(4)
	big := math32.Log(float32(0.1)) // above DensifySizeThresh
	copy(cl.Scales.Row(1), []float32{big, big, big})
	st.GradNormSum[1] = 0.01
	st.VisCount[1] = 1

	rf := &Refiner{Config: refineConfig()}
	counts, err := rf.Refine(cl, en, st, 600, randx.NewSysRand(7))
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Split)
	assert.Equal(t, 5, cl.NumSplats()) // 4 - 1 + 2
	checkLockstep(t, cl, en)

	// children are the last two rows, scales shrunk by the size factor
	wantScale := big - math32.Log(1.6)
	for _, i := range []int{3, 4} {
		tolassert.EqualTol(t, wantScale, cl.Scales.Row(i)[0], 1e-5)
		// moments inherited from the split parent (old row 1)
		assert.Equal(t, float32(1*3)+0.5, en.Means.M.Row(i)[0])
	}
	// the parent's mean is gone; children scatter around it
	for i := 0; i < cl.NumSplats(); i++ {
		if cl.Means.Row(i)[0] == 1 && cl.Scales.Row(i)[0] == big {
			t.Error("split parent still present")
		}
	}
}

// With the gradient threshold above every observed norm, a refinement
// densifies nothing but still prunes and resets opacity.
func TestRefineThresholdBoundary(t *testing.T) {
	cl, en, st := refineSetup(6)
	for i := 0; i < 6; i++ {
		st.GradNormSum[i] = 0.5
		st.VisCount[i] = 1
	}
	cl.Opacities.Row(5)[0] = -10

	cfg := refineConfig()
	cfg.DensifyGradThresh = 1 // above all
	cfg.ResetAlphaEvery = 1
	rf := &Refiner{Config: cfg}
	counts, err := rf.Refine(cl, en, st, 600, randx.NewSysRand(1))
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Duplicated)
	assert.Equal(t, 0, counts.Split)
	assert.Equal(t, 1, counts.Pruned)
	assert.True(t, counts.ResetAlpha)
	assert.Equal(t, 5, cl.NumSplats())
	checkLockstep(t, cl, en)
}

// Zero visibility excludes a splat from densification regardless of its
// accumulated gradient sum.
func TestRefineNoEvidence(t *testing.T) {
	cl, en, st := refineSetup(3)
	st.GradNormSum[1] = 100
	st.VisCount[1] = 0

	rf := &Refiner{Config: refineConfig()}
	counts, err := rf.Refine(cl, en, st, 600, randx.NewSysRand(1))
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Duplicated+counts.Split)
	assert.Equal(t, 3, cl.NumSplats())
	checkLockstep(t, cl, en)
}

// Oversized splats are pruned by screen fraction and world scale, but
// only before StopScreenSizeAt.
func TestRefinePruneOversized(t *testing.T) {
	cl, en, st := refineSetup(4)
	st.MaxRadiiFrac[0] = 0.1 // above SplitScreenSize
	huge := math32.Log(float32(0.6))
	copy(cl.Scales.Row(1), []float32{huge, huge, huge}) // above PruneScale3D

	rf := &Refiner{Config: refineConfig()}
	counts, err := rf.Refine(cl, en, st, 600, randx.NewSysRand(1))
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Pruned)
	assert.Equal(t, 2, cl.NumSplats())
	checkLockstep(t, cl, en)

	// past StopScreenSizeAt the same stats prune nothing
	cl2, en2, st2 := refineSetup(4)
	st2.MaxRadiiFrac[0] = 0.1
	copy(cl2.Scales.Row(1), []float32{huge, huge, huge})
	rf2 := &Refiner{Config: refineConfig()}
	counts, err = rf2.Refine(cl2, en2, st2, 5000, randx.NewSysRand(1))
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Pruned)
	assert.Equal(t, 4, cl2.NumSplats())
}

// Every ResetAlphaEvery refinements, all opacity logits are set to the
// fixed baseline regardless of their trained values.
func TestRefineResetAlpha(t *testing.T) {
	cl, en, st := refineSetup(5)
	cfg := refineConfig()
	cfg.ResetAlphaEvery = 2
	rf := &Refiner{Config: cfg}

	counts, err := rf.Refine(cl, en, st, 600, randx.NewSysRand(1))
	require.NoError(t, err)
	assert.False(t, counts.ResetAlpha)
	assert.Equal(t, float32(2), cl.Opacities.Row(0)[0]) // untouched

	counts, err = rf.Refine(cl, en, st, 700, randx.NewSysRand(1))
	require.NoError(t, err)
	assert.True(t, counts.ResetAlpha)
	want := gauss.Logit(2 * cfg.PruneOpacity)
	for i := 0; i < cl.NumSplats(); i++ {
		assert.Equal(t, want, cl.Opacities.Row(i)[0])
	}
	// opacity momentum cleared, others kept
	for _, v := range en.Opacities.M.Values {
		assert.Equal(t, float32(0), v)
	}
	assert.NotEqual(t, float32(0), en.Means.M.Values[0])
}

// Removing every splat is an unrecoverable configuration error.
func TestRefineAllPruned(t *testing.T) {
	cl, en, st := refineSetup(3)
	for i := 0; i < 3; i++ {
		cl.Opacities.Row(i)[0] = -10
	}
	rf := &Refiner{Config: refineConfig()}
	_, err := rf.Refine(cl, en, st, 600, randx.NewSysRand(1))
	assert.ErrorIs(t, err, gauss.ErrNoSplats)
	assert.Equal(t, 3, cl.NumSplats()) // left unchanged
}

// The refine count equation holds for a mixed refinement:
// newN = oldN - pruned - split + duplicated + SplitSamples*split.
func TestRefineCountEquation(t *testing.T) {
	cl, en, st := refineSetup(6)
	// 0: duplicate; 1: split; 2: prune by opacity; 3: keep;
	// 4: prune by screen size; 5: high gradient but never visible
	st.GradNormSum[0], st.VisCount[0] = 0.01, 1
	big := math32.Log(float32(0.1))
	copy(cl.Scales.Row(1), []float32{big, big, big})
	st.GradNormSum[1], st.VisCount[1] = 0.01, 1
	cl.Opacities.Row(2)[0] = -10
	st.MaxRadiiFrac[4] = 0.2
	st.GradNormSum[5], st.VisCount[5] = 10, 0

	rf := &Refiner{Config: refineConfig()}
	counts, err := rf.Refine(cl, en, st, 600, randx.NewSysRand(1))
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Duplicated)
	assert.Equal(t, 1, counts.Split)
	assert.Equal(t, 2, counts.Pruned)
	want := 6 - 2 - 1 + 1 + 2
	assert.Equal(t, want, cl.NumSplats())
	checkLockstep(t, cl, en)
	assert.Equal(t, want, st.NumSplats())
}
