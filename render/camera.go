// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import "cogentcore.org/core/math32"

// Camera is a posed pinhole camera: the intrinsics and pose a [Renderer]
// projects splats through. Cameras handed to the renderer must already be
// undistorted (see [Camera.HasDistortion]); the distortion coefficients
// are retained only so that image loading can resolve them.
type Camera struct {

	// Width and Height are the image dimensions in pixels.
	Width, Height int

	// Fx and Fy are the focal lengths in pixels.
	Fx, Fy float32

	// Cx and Cy are the principal point in pixels.
	Cx, Cy float32

	// CamToWorld is the camera to world rigid transform.
	CamToWorld math32.Matrix4

	// K1, K2, K3 are radial distortion coefficients and P1, P2 are
	// tangential distortion coefficients of the source photograph,
	// zero once the image has been undistorted.
	K1, K2, K3, P1, P2 float32
}

// Position returns the camera center in world space.
func (c *Camera) Position() math32.Vector3 {
	return c.CamToWorld.Pos()
}

// HasDistortion returns whether any distortion coefficient is nonzero.
func (c *Camera) HasDistortion() bool {
	return c.K1 != 0 || c.K2 != 0 || c.K3 != 0 || c.P1 != 0 || c.P2 != 0
}

// Distort applies the Brown-Conrady distortion model to the given
// normalized image plane coordinates, returning the distorted normalized
// coordinates where the source photograph actually sampled that ray.
func (c *Camera) Distort(x, y float32) (float32, float32) {
	r2 := x*x + y*y
	radial := 1 + r2*(c.K1+r2*(c.K2+r2*c.K3))
	xd := x*radial + 2*c.P1*x*y + c.P2*(r2+2*x*x)
	yd := y*radial + c.P1*(r2+2*y*y) + 2*c.P2*x*y
	return xd, yd
}

// Downscaled returns a copy of the camera at 1/factor resolution, with
// intrinsics scaled to match, used by the resolution schedule. A factor
// of 1 or less returns an unmodified copy.
func (c *Camera) Downscaled(factor int) Camera {
	nc := *c
	if factor <= 1 {
		return nc
	}
	f := float32(factor)
	nc.Width = c.Width / factor
	nc.Height = c.Height / factor
	nc.Fx = c.Fx / f
	nc.Fy = c.Fy / f
	nc.Cx = c.Cx / f
	nc.Cy = c.Cy / f
	return nc
}
