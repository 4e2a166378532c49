// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gauss

import (
	"errors"
	"fmt"
	"math"

	"cogentcore.org/core/base/randx"
	"cogentcore.org/core/math32"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// SHC0 is the value of the constant degree 0 spherical harmonic basis.
const SHC0 = 0.28209479177387814

// ColorToSH converts an RGB color channel in [0, 1] to its constant band
// spherical harmonic coefficient.
func ColorToSH(c float32) float32 {
	return (c - 0.5) / SHC0
}

// SHToColor converts a constant band spherical harmonic coefficient back to
// an RGB color channel value. The result is not clamped.
func SHToColor(s float32) float32 {
	return s*SHC0 + 0.5
}

// RandomQuat returns a uniformly distributed random unit quaternion.
func RandomQuat(rnd randx.Rand) math32.Quat {
	u := rnd.Float32()
	v := rnd.Float32()
	w := rnd.Float32()
	su, cu := math32.Sqrt(1-u), math32.Sqrt(u)
	return math32.Quat{
		X: su * math32.Sin(2*math32.Pi*v),
		Y: su * math32.Cos(2*math32.Pi*v),
		Z: cu * math32.Sin(2*math32.Pi*w),
		W: cu * math32.Cos(2*math32.Pi*w),
	}
}

// nearestScales returns, for each point, the log of the mean distance to its
// three nearest neighbors, used as the initial isotropic splat scale.
func nearestScales(points []math32.Vector3) []float32 {
	pts := make(kdtree.Points, len(points))
	for i, p := range points {
		pts[i] = kdtree.Point{float64(p.X), float64(p.Y), float64(p.Z)}
	}
	tree := kdtree.New(pts, false)
	ls := make([]float32, len(points))
	for i := range pts {
		keep := kdtree.NewNKeeper(4)
		tree.NearestSet(keep, pts[i])
		sum := 0.0
		n := 0
		for _, cd := range keep.Heap {
			if cd.Comparable == nil || cd.Dist <= 0 {
				continue
			}
			sum += math.Sqrt(cd.Dist)
			n++
		}
		d := 1e-6 // coincident or singleton points
		if n > 0 {
			d = sum / float64(n)
		}
		ls[i] = math32.Log(float32(d))
	}
	return ls
}

// FromPoints returns a new cloud initialized from a colored point cloud in
// the normalized scene frame. Splat positions are the points themselves;
// scales start isotropic at the mean distance to each point's three nearest
// neighbors; rotations are random; the constant spherical harmonic band
// encodes the point color with all higher bands zero; and every opacity
// starts at the logit of baseOpacity. colors are RGB in [0, 1] and may be
// nil for mid-gray. rnd may be nil to use the global random source.
func FromPoints(points, colors []math32.Vector3, degree int, baseOpacity float32, rnd randx.Rand) (*Cloud, error) {
	if len(points) == 0 {
		return nil, errors.New("gauss.FromPoints: no points")
	}
	if colors != nil && len(colors) != len(points) {
		return nil, fmt.Errorf("gauss.FromPoints: %d colors for %d points", len(colors), len(points))
	}
	if rnd == nil {
		rnd = randx.NewGlobalRand()
	}
	cl := NewCloud(degree, len(points))
	ls := nearestScales(points)
	op := Logit(baseOpacity)
	for i, pt := range points {
		m := cl.Means.Row(i)
		m[0], m[1], m[2] = pt.X, pt.Y, pt.Z
		sc := cl.Scales.Row(i)
		sc[0], sc[1], sc[2] = ls[i], ls[i], ls[i]
		q := RandomQuat(rnd)
		qr := cl.Quats.Row(i)
		qr[0], qr[1], qr[2], qr[3] = q.W, q.X, q.Y, q.Z
		c := math32.Vec3(0.5, 0.5, 0.5)
		if colors != nil {
			c = colors[i]
		}
		dc := cl.FeatDC.Row(i)
		dc[0], dc[1], dc[2] = ColorToSH(c.X), ColorToSH(c.Y), ColorToSH(c.Z)
		cl.Opacities.Row(i)[0] = op
	}
	return cl, nil
}

// FromSplats returns a new cloud initialized from existing splats, such as
// ones fitted to a mesh surface, keeping their positions, scales, rotations,
// and constant color band while zeroing the higher bands and setting every
// opacity to the logit of baseOpacity. The result has FixedGeometry set so
// that training preserves the given surface.
func FromSplats(splats []Splat, degree int, baseOpacity float32) (*Cloud, error) {
	if len(splats) == 0 {
		return nil, errors.New("gauss.FromSplats: no splats")
	}
	cl := NewCloud(degree, len(splats))
	op := Logit(baseOpacity)
	for i, s := range splats {
		s.Rest = nil
		s.Opacity = op
		cl.SetSplat(i, s)
	}
	cl.FixedGeometry = true
	return cl, nil
}
