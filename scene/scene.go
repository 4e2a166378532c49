// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scene loads the training input: a nerfstudio style project with
// a transforms.json camera manifest, per frame photographs, and a sparse
// initial point cloud. Camera poses and points are normalized into a
// centered unit scale frame at load time, and each [Frame] serves its
// ground truth image at the downscale factors the resolution schedule
// asks for.
package scene

//go:generate core generate

import (
	"fmt"
	"os"
	"path/filepath"

	"cogentcore.org/core/base/logx"
	"cogentcore.org/core/base/randx"
	"cogentcore.org/core/math32"
	"cogentcore.org/splat/gauss"
	"cogentcore.org/splat/render"
)

// Scene is a loaded training project: the posed frames, the initial
// sparse point cloud in the normalized frame, and the normalization that
// produced it.
type Scene struct {

	// Frames are the training photographs with their cameras, sorted by
	// file path.
	Frames []*Frame

	// Points and Colors are the initial sparse point cloud in the
	// normalized frame, empty if the project supplies none.
	Points []math32.Vector3
	Colors []math32.Vector3

	// Background is the color rendered behind the splats.
	Background math32.Vector3

	// Scale and Translation record the normalization applied to poses
	// and points: normalized = (input - Translation) * Scale.
	Scale float32

	// Translation is the centroid of the input camera positions.
	Translation math32.Vector3
}

// Open loads the project at the given root directory, which must contain
// a transforms.json manifest. Camera poses are centered on their centroid
// and scaled so the farthest camera sits at unit distance, and the
// initial point cloud named by the manifest, if any, is read and carried
// into the same frame. Images are not read here; call [Frame.Load] on
// each frame before training.
func Open(root string) (*Scene, error) {
	tpath := filepath.Join(root, "transforms.json")
	if _, err := os.Stat(tpath); err != nil {
		return nil, fmt.Errorf("scene: %s is not a nerfstudio project: %w", root, err)
	}
	t, err := OpenTransforms(tpath)
	if err != nil {
		return nil, err
	}
	if len(t.Frames) == 0 {
		return nil, fmt.Errorf("scene: %s has no frames", tpath)
	}
	sc := &Scene{Background: t.Background()}
	for i := range t.Frames {
		f := &t.Frames[i]
		fr := &Frame{
			FilePath: filepath.Join(root, f.FilePath),
			Camera: render.Camera{
				Width: f.Width, Height: f.Height,
				Fx: float32(f.Fx), Fy: float32(f.Fy),
				Cx: float32(f.Cx), Cy: float32(f.Cy),
				K1: float32(f.K1), K2: float32(f.K2), K3: float32(f.K3),
				P1: float32(f.P1), P2: float32(f.P2),
				CamToWorld: f.CamToWorld(),
			},
		}
		sc.Frames = append(sc.Frames, fr)
	}
	sc.normalizePoses()

	if t.PlyFilePath != "" {
		points, colors, err := gauss.OpenPoints(filepath.Join(root, t.PlyFilePath))
		if err != nil {
			return nil, err
		}
		sc.Points = make([]math32.Vector3, len(points))
		for i, p := range points {
			sc.Points[i] = sc.Normalize(p)
		}
		sc.Colors = colors
		logx.PrintfDebug("scene: loaded %d points from %s\n", len(points), t.PlyFilePath)
	}
	return sc, nil
}

// Normalize maps a world position from the input frame to the normalized
// training frame.
func (sc *Scene) Normalize(p math32.Vector3) math32.Vector3 {
	return p.Sub(sc.Translation).MulScalar(sc.Scale)
}

// normalizePoses centers the camera positions on their centroid and
// scales them so the farthest camera is at unit distance, recording the
// transform in Scale and Translation.
func (sc *Scene) normalizePoses() {
	var centroid math32.Vector3
	for _, fr := range sc.Frames {
		centroid.SetAdd(fr.Camera.Position())
	}
	centroid.SetDivScalar(float32(len(sc.Frames)))
	maxDist := float32(0)
	for _, fr := range sc.Frames {
		maxDist = max(maxDist, fr.Camera.Position().Sub(centroid).Length())
	}
	sc.Translation = centroid
	sc.Scale = 1
	if maxDist > 0 {
		sc.Scale = 1 / maxDist
	}
	for _, fr := range sc.Frames {
		fr.Camera.CamToWorld.SetPos(sc.Normalize(fr.Camera.Position()))
	}
}

// NormalizeSplats maps full splats read from an input frame file into the
// normalized training frame, shifting positions and log scales in place.
func (sc *Scene) NormalizeSplats(splats []gauss.Splat) {
	logScale := math32.Log(sc.Scale)
	for i := range splats {
		s := &splats[i]
		s.Mean = sc.Normalize(s.Mean)
		s.Scale.SetAddScalar(logScale)
	}
}

// Split partitions the frames for validation: with validate false all
// frames train and there is no validation frame. Otherwise one frame is
// withheld, either the one whose image file name matches valImage, or a
// random one if valImage is "random". A non-matching name is a
// configuration error.
func (sc *Scene) Split(validate bool, valImage string, rnd randx.Rand) (train []*Frame, val *Frame, err error) {
	if !validate {
		return sc.Frames, nil, nil
	}
	idx := -1
	if valImage == "random" {
		if rnd == nil {
			rnd = randx.NewGlobalRand()
		}
		idx = rnd.Intn(len(sc.Frames))
	} else {
		for i, fr := range sc.Frames {
			if filepath.Base(fr.FilePath) == valImage {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, fmt.Errorf("scene: validation image %s is not in the list of cameras", valImage)
		}
	}
	for i, fr := range sc.Frames {
		if i == idx {
			val = fr
		} else {
			train = append(train, fr)
		}
	}
	return train, val, nil
}
