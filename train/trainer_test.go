// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"os"
	"path/filepath"
	"testing"

	"cogentcore.org/core/math32"
	"cogentcore.org/splat/gauss"
	"cogentcore.org/splat/optim"
	"cogentcore.org/splat/render"
	"cogentcore.org/splat/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer renders a constant gray image and returns small constant
// gradients, enough to drive the trainer's plumbing deterministically.
type fakeRenderer struct {
	n       int // splat count at last render
	renders int
	nanLoss bool
}

func (f *fakeRenderer) Render(cl *gauss.Cloud, cam *render.Camera, shDegree int, background math32.Vector3) (*render.Output, error) {
	f.n = cl.NumSplats()
	f.renders++
	out := &render.Output{
		Image:     render.NewImageFill(cam.Width, cam.Height, math32.Vec3(0.5, 0.5, 0.5)),
		ScreenPos: make([]math32.Vector2, f.n),
		Radii:     make([]float32, f.n),
		Visible:   make([]bool, f.n),
	}
	if f.nanLoss {
		out.Image.Pix[0] = math32.NaN()
	}
	for i := range out.Visible {
		out.Visible[i] = true
		out.Radii[i] = 1
	}
	return out, nil
}

func (f *fakeRenderer) Backward(dImage *render.Image) (*render.Grads, error) {
	cl := gauss.NewCloud(1, f.n)
	g := &render.Grads{
		Params:    gauss.NewGrads(cl),
		ScreenPos: make([]math32.Vector2, f.n),
	}
	for i := range g.ScreenPos {
		g.ScreenPos[i] = math32.Vec2(1e-5, 0)
	}
	for i := range g.Params.Means.Values {
		g.Params.Means.Values[i] = 1e-4
	}
	return g, nil
}

func testFrames(n, w, h int) []*scene.Frame {
	frames := make([]*scene.Frame, n)
	for i := range frames {
		frames[i] = &scene.Frame{
			FilePath: "cam" + string(rune('a'+i)) + ".png",
			Camera:   render.Camera{Width: w, Height: h, Fx: 10, Fy: 10, Cx: float32(w) / 2, Cy: float32(h) / 2},
			Image:    render.NewImageFill(w, h, math32.Vec3(0.25, 0.25, 0.25)),
		}
	}
	return frames
}

func testCloud(n int) *gauss.Cloud {
	cl := gauss.NewCloud(1, n)
	for i := 0; i < n; i++ {
		cl.SetSplat(i, gauss.Splat{
			Mean:    math32.Vec3(float32(i), 0, 0),
			Scale:   math32.Vec3(-6, -6, -6),
			Quat:    math32.Quat{W: 1},
			Opacity: 2,
		})
	}
	return cl
}

func testConfig(dir string) *Config {
	return &Config{
		Output:    filepath.Join(dir, "splat.ply"),
		Seed:      42,
		MaxSteps:  12,
		SHDegree:  1, SHDegreeInterval: 4,
		NumDownscales: 0, ResolutionSchedule: 4,
		SSIMWeight:  0,
		RefineEvery: 4, WarmupLength: 2, StopSplitAt: 12,
		ResetAlphaEvery:   30,
		DensifyGradThresh: 1, DensifySizeThresh: 0.01,
		StopScreenSizeAt: 0, SplitScreenSize: 0.05,
		PruneOpacity: 0.1, PruneScale3D: 0.5,
		SplitSamples: 2, SplitSizeFactor: 1.6,
		SaveEvery: -1,
	}
}

func TestTrainerRun(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	fake := &fakeRenderer{}
	tr, err := NewTrainer(cfg, testCloud(5), fake, testFrames(3, 8, 6), nil, math32.Vec3(0, 0, 0))
	require.NoError(t, err)
	require.NoError(t, tr.Run())

	assert.Equal(t, 12, fake.renders)
	// every camera visited exactly once per epoch: 12 steps over 3
	// cameras is 4 losses each
	for i, ls := range tr.Losses {
		assert.Equal(t, 4, len(ls), "camera %d", i)
		for _, l := range ls {
			assert.InDelta(t, 0.25, l, 1e-5) // |0.5 - 0.25|
		}
	}
	// final save and loss history
	_, err = os.Stat(cfg.Output)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "losses.txt"))
	assert.NoError(t, err)

	// cloud still intact after scheduled refinements
	assert.NoError(t, tr.Cloud.Validate())
	assert.Equal(t, tr.Cloud.NumSplats(), tr.Stats.NumSplats())
}

func TestTrainerEpochCoverage(t *testing.T) {
	cfg := testConfig(t.TempDir())
	tr, err := NewTrainer(cfg, testCloud(2), &fakeRenderer{}, testFrames(4, 4, 4), nil, math32.Vector3{})
	require.NoError(t, err)
	for epoch := 0; epoch < 3; epoch++ {
		seen := map[int]int{}
		for i := 0; i < 4; i++ {
			ci, _ := tr.nextFrame()
			seen[ci]++
		}
		for ci := 0; ci < 4; ci++ {
			assert.Equal(t, 1, seen[ci], "epoch %d camera %d", epoch, ci)
		}
	}
}

func TestTrainerCheckpoints(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.SaveEvery = 5
	tr, err := NewTrainer(cfg, testCloud(3), &fakeRenderer{}, testFrames(2, 4, 4), nil, math32.Vector3{})
	require.NoError(t, err)
	require.NoError(t, tr.Run())
	for _, step := range []int{5, 10} {
		_, err := os.Stat(stepFilename(cfg.Output, step))
		assert.NoError(t, err, "step %d", step)
	}
	splats, deg, err := gauss.OpenSplats(filepath.Join(dir, "splat_10.ply"))
	assert.NoError(t, err)
	assert.Equal(t, 1, deg)
	assert.Equal(t, 3, len(splats))
}

func TestTrainerDivergence(t *testing.T) {
	cfg := testConfig(t.TempDir())
	tr, err := NewTrainer(cfg, testCloud(2), &fakeRenderer{nanLoss: true}, testFrames(2, 4, 4), nil, math32.Vector3{})
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Run(), ErrDiverged)
}

func TestTrainerValidation(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	frames := testFrames(3, 4, 4)
	tr, err := NewTrainer(cfg, testCloud(2), &fakeRenderer{}, frames[:2], frames[2], math32.Vector3{})
	require.NoError(t, err)
	require.NoError(t, tr.Run())
	vl, err := tr.Validate()
	assert.NoError(t, err)
	assert.InDelta(t, 0.25, vl, 1e-5)
}

func TestNewTrainerErrors(t *testing.T) {
	cfg := testConfig(t.TempDir())
	_, err := NewTrainer(cfg, testCloud(2), &fakeRenderer{}, nil, nil, math32.Vector3{})
	assert.Error(t, err)
	_, err = NewTrainer(cfg, gauss.NewCloud(1, 0), &fakeRenderer{}, testFrames(1, 4, 4), nil, math32.Vector3{})
	assert.Error(t, err)
}

func TestFrozenGeometryTrainer(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cl := testCloud(3)
	cl.FixedGeometry = true
	tr, err := NewTrainer(cfg, cl, &fakeRenderer{}, testFrames(2, 4, 4), nil, math32.Vector3{})
	require.NoError(t, err)
	assert.Equal(t, optim.FrozenGeometryLRs().Means, tr.Ensemble.Means.LR)
	require.NoError(t, tr.Run())
	assert.Equal(t, 3, cl.NumSplats()) // no refinement with frozen geometry
}

func TestStepFilename(t *testing.T) {
	assert.Equal(t, "out/splat_100.ply", stepFilename("out/splat.ply", 100))
	assert.Equal(t, "splat_5", stepFilename("splat", 5))
}
