// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

// Config is the full set of training controls, with defaults matching
// standard gaussian splatting practice. It is used directly as the cli
// configuration struct of the splat command.
type Config struct {

	// Input is the path of the project to train on: a directory with a
	// transforms.json camera manifest.
	Input string `posarg:"0" required:"+"`

	// Output is the path where the final splat file is saved.
	Output string `flag:"o,output" default:"splat.ply"`

	// SaveEvery saves an intermediate splat file every this many steps,
	// with the step number appended to the output name. -1 disables
	// intermediate saves.
	SaveEvery int `flag:"s,save-every" default:"-1"`

	// Validate withholds one camera from training for validating the
	// scene loss at the end.
	Validate bool `flag:"val"`

	// ValImage is the file name of the image to withhold for
	// validation, or "random" to pick one.
	ValImage string `flag:"val-image" default:"random"`

	// ValRender is a directory where renders of every training camera
	// are dumped periodically, empty to disable.
	ValRender string `flag:"val-render"`

	// ValEvery is the number of steps between validation render dumps.
	ValEvery int `flag:"val-every" default:"50"`

	// MeshFile is an optional splat file whose gaussians define a fixed
	// surface to constrain training: geometry is frozen and only colors
	// and opacities train.
	MeshFile string `flag:"mesh-file"`

	// Fixed disables all splitting, duplicating, and pruning, keeping
	// the initial splat count for the whole run.
	Fixed bool

	// Renderer is the name of the renderer backend to use, empty for
	// the only registered one.
	Renderer string

	// Seed seeds all stochastic training behavior: camera ordering,
	// initial rotations, and split sampling.
	Seed int64 `default:"42"`

	// DownscaleFactor scales all input images down by this factor
	// before training, independent of the resolution schedule.
	DownscaleFactor float32 `flag:"d,downscale-factor" default:"1" min:"1"`

	// MaxSteps is the total number of optimization steps.
	MaxSteps int `flag:"n,num-iters" default:"30000"`

	// NumDownscales is the number of halvings applied to the training
	// resolution at the start; the resolution doubles every
	// ResolutionSchedule steps until full.
	NumDownscales int `default:"2"`

	// ResolutionSchedule is the number of steps between resolution
	// doublings.
	ResolutionSchedule int `default:"3000"`

	// SHDegree is the maximum spherical harmonics degree of the color
	// representation.
	SHDegree int `default:"3"`

	// SHDegreeInterval is the number of steps between increases of the
	// active spherical harmonics degree, which starts at 0 and grows to
	// SHDegree.
	SHDegreeInterval int `default:"1000"`

	// SSIMWeight is the weight of the structural similarity term in the
	// loss; 0 trains on mean absolute error alone.
	SSIMWeight float32 `flag:"ssim-weight" default:"0.2"`

	// RefineEvery is the number of steps between density refinements
	// (split, duplicate, prune).
	RefineEvery int `default:"100"`

	// WarmupLength is the number of steps before the first refinement.
	WarmupLength int `default:"500"`

	// ResetAlphaEvery resets all opacities to a low baseline every this
	// many refinements (not steps), forcing splats to re-justify their
	// existence.
	ResetAlphaEvery int `default:"30"`

	// StopSplitAt is the step after which no more refinement happens.
	StopSplitAt int `default:"15000"`

	// DensifyGradThresh is the average view space position gradient
	// norm above which a splat is densified.
	DensifyGradThresh float32 `default:"0.0002"`

	// DensifySizeThresh is the world scale below which a densified
	// splat is duplicated rather than split.
	DensifySizeThresh float32 `default:"0.01"`

	// StopScreenSizeAt is the step after which oversized splats are no
	// longer pruned by screen size.
	StopScreenSizeAt int `default:"4000"`

	// SplitScreenSize is the fraction of the screen above which a
	// splat's projected radius marks it for removal (before
	// StopScreenSizeAt).
	SplitScreenSize float32 `default:"0.05"`

	// PruneOpacity is the opacity below which a splat is pruned; the
	// periodic opacity reset baseline is twice this value.
	PruneOpacity float32 `default:"0.1"`

	// PruneScale3D is the world scale, relative to the normalized scene
	// size, above which a splat is pruned as a runaway floater (before
	// StopScreenSizeAt).
	PruneScale3D float32 `default:"0.5"`

	// SplitSamples is the number of children a split produces.
	SplitSamples int `default:"2"`

	// SplitSizeFactor is the factor the scale of split children is
	// divided by.
	SplitSizeFactor float32 `default:"1.6"`
}

// Downscale returns the ground truth downscale factor at the given step:
// 2^NumDownscales at the start, halving every ResolutionSchedule steps
// down to 1.
func (c *Config) Downscale(step int) int {
	n := c.NumDownscales
	if c.ResolutionSchedule > 0 {
		n -= step / c.ResolutionSchedule
	}
	if n <= 0 {
		return 1
	}
	return 1 << n
}

// SHDegreeAt returns the active spherical harmonics degree at the given
// step, growing from 0 by one degree every SHDegreeInterval steps up to
// SHDegree.
func (c *Config) SHDegreeAt(step int) int {
	if c.SHDegreeInterval <= 0 {
		return c.SHDegree
	}
	return min(c.SHDegree, step/c.SHDegreeInterval)
}

// RefineAt returns whether a density refinement runs at the given step:
// every RefineEvery steps after WarmupLength and up to StopSplitAt.
func (c *Config) RefineAt(step int) bool {
	if c.Fixed {
		return false
	}
	return step > c.WarmupLength && step <= c.StopSplitAt && step%c.RefineEvery == 0
}
