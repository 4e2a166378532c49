// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package train drives gaussian splat optimization: the [Trainer] runs
// the step loop against a renderer backend, [Config] holds all cadences
// and thresholds, [Stats] accumulates the per splat screen space evidence,
// and [Refiner] adaptively splits, duplicates, and prunes splats from it.
package train

//go:generate core generate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cogentcore.org/core/base/iox/imagex"
	"cogentcore.org/core/base/logx"
	"cogentcore.org/core/base/randx"
	"cogentcore.org/core/math32"
	"cogentcore.org/splat/gauss"
	"cogentcore.org/splat/loss"
	"cogentcore.org/splat/optim"
	"cogentcore.org/splat/render"
	"cogentcore.org/splat/scene"
)

// ErrDiverged indicates that training produced a non-finite loss or
// parameter value. Continuing would silently corrupt the optimizer state,
// so the run aborts instead.
var ErrDiverged = errors.New("train: numerical divergence")

// Trainer owns one training run: the cloud being optimized, its optimizer
// ensemble, the refiner, and the camera schedule. Everything runs on the
// calling goroutine; only the renderer backend may be internally parallel,
// and it synchronizes before returning.
type Trainer struct {

	// Config holds all training controls.
	Config *Config

	// Cloud is the splat cloud being optimized.
	Cloud *gauss.Cloud

	// Ensemble holds the per parameter Adam optimizers.
	Ensemble *optim.Ensemble

	// Renderer is the rasterization backend.
	Renderer render.Renderer

	// Frames are the training cameras, visited once per epoch in a
	// reshuffled order.
	Frames []*scene.Frame

	// ValFrame is the withheld validation camera, or nil.
	ValFrame *scene.Frame

	// Background is the color rendered behind the splats.
	Background math32.Vector3

	// Stats accumulates the refinement statistics.
	Stats *Stats

	// Refiner controls splat density.
	Refiner *Refiner

	// MeansLR is the exponential decay schedule of the position
	// learning rate.
	MeansLR optim.ExpDecay

	// Step is the current step number, 1 to Config.MaxSteps.
	Step int

	// Losses records each step's loss, grouped by camera, for the loss
	// history dump.
	Losses [][]float32

	rand *randx.SysRand
	perm []int
	pos  int
}

// NewTrainer returns a trainer for the given cloud, frames, and renderer
// backend. The optimizer ensemble is built with the standard learning
// rates, or with geometry frozen if the cloud's geometry is fixed.
func NewTrainer(cfg *Config, cl *gauss.Cloud, rend render.Renderer, frames []*scene.Frame, valFrame *scene.Frame, background math32.Vector3) (*Trainer, error) {
	if len(frames) == 0 {
		return nil, errors.New("train: no training cameras")
	}
	if cl.NumSplats() == 0 {
		return nil, errors.New("train: cloud has no splats")
	}
	lrs := optim.DefaultLRs()
	if cl.FixedGeometry {
		lrs = optim.FrozenGeometryLRs()
	}
	tr := &Trainer{
		Config:     cfg,
		Cloud:      cl,
		Ensemble:   optim.NewEnsemble(cl, lrs),
		Renderer:   rend,
		Frames:     frames,
		ValFrame:   valFrame,
		Background: background,
		Stats:      NewStats(cl.NumSplats()),
		Refiner:    &Refiner{Config: cfg},
		MeansLR:    optim.ExpDecay{Init: lrs.Means, Final: optim.DefaultMeansLRFinal, Steps: cfg.MaxSteps},
		Losses:     make([][]float32, len(frames)),
		rand:       randx.NewSysRand(cfg.Seed),
	}
	if cl.FixedGeometry {
		tr.MeansLR.Final = lrs.Means
	}
	return tr, nil
}

// nextFrame returns the next training camera, reshuffling the visit order
// at the start of each epoch so every camera is used exactly once before
// any repeats.
func (tr *Trainer) nextFrame() (int, *scene.Frame) {
	if tr.pos >= len(tr.perm) {
		tr.perm = tr.rand.Perm(len(tr.Frames))
		tr.pos = 0
	}
	i := tr.perm[tr.pos]
	tr.pos++
	return i, tr.Frames[i]
}

// Run executes the whole training run: MaxSteps optimization steps with
// scheduled refinements and checkpoints, then the final save, the loss
// history dump, and a validation pass if a camera was withheld.
func (tr *Trainer) Run() error {
	c := tr.Config
	for tr.Step = 1; tr.Step <= c.MaxSteps; tr.Step++ {
		ci, fr := tr.nextFrame()
		if c.ValRender != "" && tr.Step%c.ValEvery == 0 {
			if err := tr.renderAll(); err != nil {
				return err
			}
		}
		// checkpoints happen between completed steps, never while the
		// cloud is mid-surgery
		if c.SaveEvery > 0 && tr.Step%c.SaveEvery == 0 {
			if err := gauss.SaveSplats(tr.Cloud, stepFilename(c.Output, tr.Step), true); err != nil {
				return err
			}
		}
		l, err := tr.TrainStep(fr)
		if err != nil {
			return err
		}
		tr.Losses[ci] = append(tr.Losses[ci], l)
		logx.PrintfInfo("step %d: %g\n", tr.Step, l)

		if c.RefineAt(tr.Step) && !tr.Cloud.FixedGeometry {
			if err := tr.checkFinite(); err != nil {
				return err
			}
			if _, err := tr.Refiner.Refine(tr.Cloud, tr.Ensemble, tr.Stats, tr.Step, tr.rand); err != nil {
				return err
			}
		}
	}
	if err := gauss.SaveSplats(tr.Cloud, c.Output, true); err != nil {
		return err
	}
	if err := tr.saveLosses(); err != nil {
		return err
	}
	if tr.ValFrame != nil {
		vl, err := tr.Validate()
		if err != nil {
			return err
		}
		logx.PrintfInfo("%s validation loss: %g\n", tr.ValFrame.FilePath, vl)
	}
	return nil
}

// TrainStep runs one optimization step against the given camera: render
// at the scheduled resolution and degree, compute the loss and its image
// gradient, run the backward pass, accumulate refinement statistics, and
// apply the optimizers. It returns the step's loss.
func (tr *Trainer) TrainStep(fr *scene.Frame) (float32, error) {
	c := tr.Config
	cl := tr.Cloud
	tr.Ensemble.ZeroGrad(cl)

	ds := c.Downscale(tr.Step)
	cam := fr.Camera.Downscaled(ds)
	out, err := tr.Renderer.Render(cl, &cam, c.SHDegreeAt(tr.Step), tr.Background)
	if err != nil {
		return 0, err
	}
	gt := fr.ImageAt(ds)
	l, dImage, err := loss.WeightedGrad(out.Image, gt, c.SSIMWeight)
	if err != nil {
		return 0, err
	}
	if math32.IsNaN(l) || math32.IsInf(l, 0) {
		return 0, fmt.Errorf("%w: loss is %v at step %d", ErrDiverged, l, tr.Step)
	}
	grads, err := tr.Renderer.Backward(dImage)
	if err != nil {
		return 0, err
	}
	if err := tr.Ensemble.Grads.Add(grads.Params); err != nil {
		return 0, err
	}
	if err := tr.Stats.Update(out, grads.ScreenPos); err != nil {
		return 0, err
	}
	tr.Ensemble.Means.LR = tr.MeansLR.At(tr.Step)
	if err := tr.Ensemble.Step(cl); err != nil {
		return 0, err
	}
	return l, nil
}

// Validate renders the withheld validation camera at full resolution and
// returns its loss against the ground truth.
func (tr *Trainer) Validate() (float32, error) {
	c := tr.Config
	ds := c.Downscale(c.MaxSteps)
	cam := tr.ValFrame.Camera.Downscaled(ds)
	out, err := tr.Renderer.Render(tr.Cloud, &cam, c.SHDegreeAt(c.MaxSteps), tr.Background)
	if err != nil {
		return 0, err
	}
	return loss.Weighted(out.Image, tr.ValFrame.ImageAt(ds), c.SSIMWeight)
}

// checkFinite surfaces NaN or Inf parameter values before refinement
// statistics are acted on.
func (tr *Trainer) checkFinite() error {
	for _, p := range tr.Cloud.Params() {
		for _, v := range p.Values {
			if math32.IsNaN(v) || math32.IsInf(v, 0) {
				return fmt.Errorf("%w: parameter %s contains %v at step %d", ErrDiverged, p.Name, v, tr.Step)
			}
		}
	}
	return nil
}

// renderAll dumps a render and its ground truth for every training
// camera into the ValRender directory, named by step and camera index.
func (tr *Trainer) renderAll() error {
	c := tr.Config
	if err := os.MkdirAll(c.ValRender, 0750); err != nil {
		return err
	}
	ds := c.Downscale(tr.Step)
	for i, fr := range tr.Frames {
		cam := fr.Camera.Downscaled(ds)
		out, err := tr.Renderer.Render(tr.Cloud, &cam, c.SHDegreeAt(tr.Step), tr.Background)
		if err != nil {
			return err
		}
		name := filepath.Join(c.ValRender, fmt.Sprintf("%d_%d.png", tr.Step, i))
		if err := imagex.Save(out.Image.ToGo(), name); err != nil {
			return err
		}
		gtName := filepath.Join(c.ValRender, fmt.Sprintf("%d_gt_%d.png", tr.Step, i))
		if err := imagex.Save(fr.ImageAt(ds).ToGo(), gtName); err != nil {
			return err
		}
	}
	return nil
}

// saveLosses writes losses.txt next to the output file: the camera count,
// one line of losses per camera, and a final line of per step averages
// across cameras.
func (tr *Trainer) saveLosses() error {
	path := filepath.Join(filepath.Dir(tr.Config.Output), "losses.txt")
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n", len(tr.Frames))
	maxLen := 0
	for _, ls := range tr.Losses {
		for _, l := range ls {
			fmt.Fprintf(&b, "%g ", l)
		}
		fmt.Fprintf(&b, "\n")
		maxLen = max(maxLen, len(ls))
	}
	for i := 0; i < maxLen; i++ {
		sum := float32(0)
		n := 0
		for _, ls := range tr.Losses {
			if i < len(ls) {
				sum += ls[i]
				n++
			}
		}
		fmt.Fprintf(&b, "%g ", sum/float32(n))
	}
	return os.WriteFile(path, []byte(b.String()), 0666)
}

// stepFilename inserts the step number before the extension of the given
// output path, for intermediate checkpoint saves.
func stepFilename(output string, step int) string {
	ext := filepath.Ext(output)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(output, ext), step, ext)
}
