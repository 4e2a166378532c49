// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"fmt"
	"sort"

	"cogentcore.org/core/base/iox/jsonx"
	"cogentcore.org/core/math32"
)

// FrameInfo is the JSON model of one frame in a nerfstudio style
// transforms.json manifest: one photograph with its intrinsics,
// distortion coefficients, and camera to world transform. Intrinsics
// left at zero fall back to the manifest's global values.
type FrameInfo struct {
	FilePath        string      `json:"file_path"`
	Width           int         `json:"w"`
	Height          int         `json:"h"`
	Fx              float64     `json:"fl_x"`
	Fy              float64     `json:"fl_y"`
	Cx              float64     `json:"cx"`
	Cy              float64     `json:"cy"`
	K1              float64     `json:"k1"`
	K2              float64     `json:"k2"`
	P1              float64     `json:"p1"`
	P2              float64     `json:"p2"`
	K3              float64     `json:"k3"`
	TransformMatrix [][]float64 `json:"transform_matrix"`
}

// Transforms is the JSON model of a nerfstudio style transforms.json
// manifest. Global intrinsics apply to frames that do not specify their
// own.
type Transforms struct {
	CameraModel     string      `json:"camera_model"`
	Width           int         `json:"w"`
	Height          int         `json:"h"`
	Fx              float64     `json:"fl_x"`
	Fy              float64     `json:"fl_y"`
	Cx              float64     `json:"cx"`
	Cy              float64     `json:"cy"`
	K1              float64     `json:"k1"`
	K2              float64     `json:"k2"`
	P1              float64     `json:"p1"`
	P2              float64     `json:"p2"`
	K3              float64     `json:"k3"`
	Frames          []FrameInfo `json:"frames"`
	PlyFilePath     string      `json:"ply_file_path"`
	BackgroundColor *[3]float32 `json:"background_color"`
}

// DefaultBackground is the background color used when a manifest does not
// specify one: a saturated magenta that stands out against typical scene
// content.
var DefaultBackground = math32.Vec3(0.6130, 0.0101, 0.3984)

// Background returns the manifest's background color, or
// [DefaultBackground] if it does not specify one.
func (t *Transforms) Background() math32.Vector3 {
	if t.BackgroundColor == nil {
		return DefaultBackground
	}
	return math32.Vec3(t.BackgroundColor[0], t.BackgroundColor[1], t.BackgroundColor[2])
}

// OpenTransforms reads a transforms.json manifest from the given file,
// fills each frame's unset intrinsics from the global values, and sorts
// the frames by file path.
func OpenTransforms(filename string) (*Transforms, error) {
	t := &Transforms{}
	if err := jsonx.Open(t, filename); err != nil {
		return nil, err
	}
	for i := range t.Frames {
		f := &t.Frames[i]
		if len(f.TransformMatrix) != 4 {
			return nil, fmt.Errorf("scene: frame %s has no 4x4 transform_matrix", f.FilePath)
		}
		for _, row := range f.TransformMatrix {
			if len(row) != 4 {
				return nil, fmt.Errorf("scene: frame %s has no 4x4 transform_matrix", f.FilePath)
			}
		}
		if f.Width == 0 {
			f.Width = t.Width
		}
		if f.Height == 0 {
			f.Height = t.Height
		}
		if f.Fx == 0 {
			f.Fx = t.Fx
		}
		if f.Fy == 0 {
			f.Fy = t.Fy
		}
		if f.Cx == 0 {
			f.Cx = t.Cx
		}
		if f.Cy == 0 {
			f.Cy = t.Cy
		}
		if f.K1 == 0 {
			f.K1 = t.K1
		}
		if f.K2 == 0 {
			f.K2 = t.K2
		}
		if f.P1 == 0 {
			f.P1 = t.P1
		}
		if f.P2 == 0 {
			f.P2 = t.P2
		}
		if f.K3 == 0 {
			f.K3 = t.K3
		}
	}
	sort.Slice(t.Frames, func(i, j int) bool {
		return t.Frames[i].FilePath < t.Frames[j].FilePath
	})
	return t, nil
}

// CamToWorld returns the frame's transform matrix as a math32 matrix.
func (f *FrameInfo) CamToWorld() math32.Matrix4 {
	var m math32.Matrix4
	tm := f.TransformMatrix
	m.Set(
		float32(tm[0][0]), float32(tm[0][1]), float32(tm[0][2]), float32(tm[0][3]),
		float32(tm[1][0]), float32(tm[1][1]), float32(tm[1][2]), float32(tm[1][3]),
		float32(tm[2][0]), float32(tm[2][1]), float32(tm[2][2]), float32(tm[2][3]),
		float32(tm[3][0]), float32(tm[3][1]), float32(tm[3][2]), float32(tm[3][3]))
	return m
}
