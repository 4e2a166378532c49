// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gauss implements the Gaussian splat point cloud that is optimized
// during radiance field training. A [Cloud] holds one row per splat across
// six parallel parameter arrays (position, scale, rotation, spherical
// harmonic color, opacity), supports whole-cloud surgery through
// [Cloud.Grow] and [Cloud.Shrink] with index [Mapping] results so that
// optimizer state can follow the splats, and reads and writes the
// interchange PLY formats used by other splatting tools.
package gauss

//go:generate core generate

import (
	"fmt"

	"cogentcore.org/core/math32"
)

// Param is one splat parameter array, stored as a dense row-major matrix of
// float32 values with one row per splat and [Param.Cell] values per row.
// Values is exported for direct indexing in inner loops; use [Param.Row]
// for a per-splat view, and [Param.SetRows] to resize.
type Param struct {

	// Name identifies this parameter in logs, errors, and optimizer state.
	Name string

	// Cell is the number of float32 values per row (per splat).
	Cell int

	// Values holds Rows x Cell values in row-major order.
	Values []float32

	rows int
}

// NewParam returns a new zero-valued parameter with the given name,
// values per row, and number of rows.
func NewParam(name string, cell, rows int) *Param {
	p := &Param{Name: name, Cell: cell}
	p.SetRows(rows)
	return p
}

// Rows returns the current number of rows (splats).
func (p *Param) Rows() int { return p.rows }

// Row returns the values of row i as a slice into [Param.Values].
func (p *Param) Row(i int) []float32 {
	return p.Values[i*p.Cell : (i+1)*p.Cell]
}

// SetRows resizes the parameter to the given number of rows, preserving
// existing values up to the new size and zero-filling any new rows.
func (p *Param) SetRows(rows int) {
	n := rows * p.Cell
	if cap(p.Values) >= n {
		old := len(p.Values)
		p.Values = p.Values[:n]
		for i := old; i < n; i++ {
			p.Values[i] = 0
		}
	} else {
		nv := make([]float32, n)
		copy(nv, p.Values)
		p.Values = nv
	}
	p.rows = rows
}

// CopyRow copies row j of the source parameter into row i of this one.
// The two parameters must have the same cell size.
func (p *Param) CopyRow(i int, src *Param, j int) {
	copy(p.Row(i), src.Row(j))
}

// Clone returns a deep copy of the parameter.
func (p *Param) Clone() *Param {
	np := &Param{Name: p.Name, Cell: p.Cell, rows: p.rows}
	np.Values = make([]float32, len(p.Values))
	copy(np.Values, p.Values)
	return np
}

// Zero sets all values to zero.
func (p *Param) Zero() {
	for i := range p.Values {
		p.Values[i] = 0
	}
}

// NumBases returns the number of spherical harmonic bases for the given
// degree: (degree+1)^2.
func NumBases(degree int) int {
	return (degree + 1) * (degree + 1)
}

// RestCells returns the number of values per row of the FeatRest parameter
// for the given maximum spherical harmonic degree: 3 color channels for
// each basis beyond the constant one.
func RestCells(degree int) int {
	return 3 * (NumBases(degree) - 1)
}

// Cloud is a Gaussian splat point cloud: six parallel parameter arrays with
// one row per splat, all resized in lockstep by [Cloud.Grow] and
// [Cloud.Shrink]. Parameters are stored in optimization space: Scales holds
// log scales, Quats holds unnormalized w, x, y, z quaternions, Opacities
// holds logits, and the color parameters hold spherical harmonic
// coefficients. Use the accessor methods for decoded per-splat values.
type Cloud struct {

	// SHDegree is the maximum spherical harmonic degree of the color
	// representation, determining the cell size of FeatRest.
	SHDegree int

	// Means holds splat center positions, 3 values per row, in the
	// normalized scene frame.
	Means *Param

	// Scales holds per-axis log scales, 3 values per row.
	Scales *Param

	// Quats holds unnormalized rotation quaternions, 4 values per row
	// in w, x, y, z order.
	Quats *Param

	// FeatDC holds the constant (degree 0) spherical harmonic color
	// coefficients, 3 values per row.
	FeatDC *Param

	// FeatRest holds the higher-degree spherical harmonic coefficients,
	// 3 values per basis in basis-major order, [RestCells] values per row.
	FeatRest *Param

	// Opacities holds opacity logits, 1 value per row.
	Opacities *Param

	// Scale and Translation record the normalization applied to the
	// input scene: stored means are (input - Translation) * Scale.
	Scale float32

	// Translation is the offset subtracted from input positions,
	// typically the scene centroid.
	Translation math32.Vector3

	// FixedGeometry indicates the cloud was initialized from an existing
	// surface (see [FromSplats]) whose geometry should be preserved,
	// which the trainer honors with near-zero geometry learning rates
	// and by skipping densification.
	FixedGeometry bool
}

// NewCloud returns a new cloud with the given maximum spherical harmonic
// degree and number of zero-valued splats, with Scale 1.
func NewCloud(degree, rows int) *Cloud {
	cl := &Cloud{SHDegree: degree, Scale: 1}
	cl.Means = NewParam("means", 3, rows)
	cl.Scales = NewParam("scales", 3, rows)
	cl.Quats = NewParam("quats", 4, rows)
	cl.FeatDC = NewParam("featdc", 3, rows)
	cl.FeatRest = NewParam("featrest", RestCells(degree), rows)
	cl.Opacities = NewParam("opacities", 1, rows)
	return cl
}

// Params returns the six parameter arrays in canonical order: means,
// scales, quats, featdc, featrest, opacities.
func (cl *Cloud) Params() []*Param {
	return []*Param{cl.Means, cl.Scales, cl.Quats, cl.FeatDC, cl.FeatRest, cl.Opacities}
}

// NumSplats returns the current number of splats.
func (cl *Cloud) NumSplats() int { return cl.Means.Rows() }

// Validate checks that all six parameter arrays have the same number of
// rows and the cell sizes implied by SHDegree, returning a descriptive
// error otherwise.
func (cl *Cloud) Validate() error {
	cells := []int{3, 3, 4, 3, RestCells(cl.SHDegree), 1}
	n := cl.Means.Rows()
	for i, p := range cl.Params() {
		if p.Cell != cells[i] {
			return fmt.Errorf("gauss.Cloud: parameter %s has cell size %d, expected %d", p.Name, p.Cell, cells[i])
		}
		if p.Rows() != n {
			return fmt.Errorf("gauss.Cloud: parameter %s has %d rows, expected %d", p.Name, p.Rows(), n)
		}
	}
	return nil
}

// Splat is the full value of one splat row across all six parameters, in
// the same storage spaces as [Cloud] (log scales, w, x, y, z quaternion,
// logit opacity). It specifies explicit values for new rows in [Cloud.Grow].
type Splat struct {
	Mean    math32.Vector3
	Scale   math32.Vector3
	Quat    math32.Quat
	DC      math32.Vector3
	Rest    []float32
	Opacity float32
}

// Splat returns a copy of the values of splat i.
func (cl *Cloud) Splat(i int) Splat {
	var s Splat
	m := cl.Means.Row(i)
	s.Mean.Set(m[0], m[1], m[2])
	sc := cl.Scales.Row(i)
	s.Scale.Set(sc[0], sc[1], sc[2])
	q := cl.Quats.Row(i)
	s.Quat.Set(q[1], q[2], q[3], q[0])
	dc := cl.FeatDC.Row(i)
	s.DC.Set(dc[0], dc[1], dc[2])
	s.Rest = make([]float32, cl.FeatRest.Cell)
	copy(s.Rest, cl.FeatRest.Row(i))
	s.Opacity = cl.Opacities.Row(i)[0]
	return s
}

// SetSplat sets the values of splat i. A nil or short Rest zero-fills the
// remaining FeatRest values.
func (cl *Cloud) SetSplat(i int, s Splat) {
	m := cl.Means.Row(i)
	m[0], m[1], m[2] = s.Mean.X, s.Mean.Y, s.Mean.Z
	sc := cl.Scales.Row(i)
	sc[0], sc[1], sc[2] = s.Scale.X, s.Scale.Y, s.Scale.Z
	q := cl.Quats.Row(i)
	q[0], q[1], q[2], q[3] = s.Quat.W, s.Quat.X, s.Quat.Y, s.Quat.Z
	dc := cl.FeatDC.Row(i)
	dc[0], dc[1], dc[2] = s.DC.X, s.DC.Y, s.DC.Z
	rest := cl.FeatRest.Row(i)
	n := copy(rest, s.Rest)
	for ; n < len(rest); n++ {
		rest[n] = 0
	}
	cl.Opacities.Row(i)[0] = s.Opacity
}

// WorldScale returns the decoded (exponentiated) per-axis scale of splat i.
func (cl *Cloud) WorldScale(i int) math32.Vector3 {
	sc := cl.Scales.Row(i)
	return math32.Vec3(math32.Exp(sc[0]), math32.Exp(sc[1]), math32.Exp(sc[2]))
}

// MaxScale returns the largest decoded scale of splat i across its axes.
func (cl *Cloud) MaxScale(i int) float32 {
	sc := cl.Scales.Row(i)
	return math32.Exp(max(sc[0], max(sc[1], sc[2])))
}

// Rotation returns the normalized rotation quaternion of splat i.
func (cl *Cloud) Rotation(i int) math32.Quat {
	q := cl.Quats.Row(i)
	r := math32.Quat{X: q[1], Y: q[2], Z: q[3], W: q[0]}
	r.Normalize()
	return r
}

// Alpha returns the decoded opacity of splat i, in [0, 1].
func (cl *Cloud) Alpha(i int) float32 {
	return Sigmoid(cl.Opacities.Row(i)[0])
}

// Sigmoid returns the logistic function 1 / (1 + exp(-x)), mapping an
// opacity logit to [0, 1].
func Sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// Logit returns the inverse of [Sigmoid], log(x / (1 - x)).
// x must be in (0, 1).
func Logit(x float32) float32 {
	return math32.Log(x / (1 - x))
}

// Clone returns a deep copy of the cloud.
func (cl *Cloud) Clone() *Cloud {
	nc := &Cloud{}
	*nc = *cl
	nc.Means = cl.Means.Clone()
	nc.Scales = cl.Scales.Clone()
	nc.Quats = cl.Quats.Clone()
	nc.FeatDC = cl.FeatDC.Clone()
	nc.FeatRest = cl.FeatRest.Clone()
	nc.Opacities = cl.Opacities.Clone()
	return nc
}
