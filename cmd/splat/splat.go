// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command splat reconstructs a 3D scene as gaussian splats from a posed
// photograph project, by differentiably rendering the splats and
// optimizing them against the photographs. A renderer backend package
// must be blank-imported to provide the rasterization kernel.
package main

import (
	"errors"

	"cogentcore.org/core/base/logx"
	"cogentcore.org/core/base/randx"
	"cogentcore.org/core/cli"
	"cogentcore.org/splat/gauss"
	"cogentcore.org/splat/render"
	"cogentcore.org/splat/scene"
	"cogentcore.org/splat/train"
)

//go:generate core generate -add-types -add-funcs

// Initial opacities: splats from a sparse point cloud start faint and
// must earn their opacity, while surface constrained splats start solid.
const (
	baseOpacity     = 0.1
	baseOpacityMesh = 0.6
)

func main() {
	opts := cli.DefaultOptions("splat", "Train a 3D gaussian splatting scene from a posed photograph project.")
	cli.Run(opts, &train.Config{}, Train)
}

// Train trains a splat scene on the given project and saves the result.
func Train(c *train.Config) error { //cli:cmd -root
	sc, err := scene.Open(c.Input)
	if err != nil {
		return err
	}
	rnd := randx.NewSysRand(c.Seed)

	df := c.DownscaleFactor
	if df < 1 {
		df = 1
	}
	for _, fr := range sc.Frames {
		logx.PrintlnDebug("loading", fr.FilePath)
		if err := fr.Load(df); err != nil {
			return err
		}
	}
	validate := c.Validate || c.ValRender != ""
	frames, valFrame, err := sc.Split(validate, c.ValImage, rnd)
	if err != nil {
		return err
	}

	var cl *gauss.Cloud
	if c.MeshFile != "" {
		splats, _, err := gauss.OpenSplats(c.MeshFile)
		if err != nil {
			return err
		}
		sc.NormalizeSplats(splats)
		cl, err = gauss.FromSplats(splats, c.SHDegree, baseOpacityMesh)
		if err != nil {
			return err
		}
	} else {
		if len(sc.Points) == 0 {
			return errors.New("splat: project has no initial point cloud (ply_file_path is empty) and no mesh file was given")
		}
		cl, err = gauss.FromPoints(sc.Points, sc.Colors, c.SHDegree, baseOpacity, rnd)
		if err != nil {
			return err
		}
	}
	cl.Scale = sc.Scale
	cl.Translation = sc.Translation
	logx.PrintfInfo("training %d splats against %d cameras\n", cl.NumSplats(), len(frames))

	rend, err := render.New(c.Renderer)
	if err != nil {
		return err
	}
	tr, err := train.NewTrainer(c, cl, rend, frames, valFrame, sc.Background)
	if err != nil {
		return err
	}
	if err := tr.Run(); err != nil {
		return err
	}
	logx.PrintlnInfo("saved", c.Output)
	return nil
}
