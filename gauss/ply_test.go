// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gauss

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"cogentcore.org/core/base/tolassert"
	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
)

func TestSplatsRoundTrip(t *testing.T) {
	cl := patternCloud(3)
	var b bytes.Buffer
	assert.NoError(t, WriteSplats(cl, &b, false))

	splats, degree, err := ReadSplats(&b)
	assert.NoError(t, err)
	assert.Equal(t, 1, degree)
	assert.Equal(t, 3, len(splats))
	for i := range splats {
		assert.Equal(t, cl.Splat(i), splats[i])
	}
}

func TestSplatsInputFrame(t *testing.T) {
	cl := NewCloud(0, 1)
	cl.Scale = 2
	cl.Translation = math32.Vec3(1, 2, 3)
	cl.SetSplat(0, Splat{
		Mean:    math32.Vec3(2, 4, 6),
		Quat:    math32.Quat{W: 1},
		Opacity: -1,
	})
	var b bytes.Buffer
	assert.NoError(t, WriteSplats(cl, &b, true))

	splats, degree, err := ReadSplats(&b)
	assert.NoError(t, err)
	assert.Equal(t, 0, degree)
	tolassert.Equal(t, 2, splats[0].Mean.X)
	tolassert.Equal(t, 4, splats[0].Mean.Y)
	tolassert.Equal(t, 6, splats[0].Mean.Z)
	tolassert.EqualTol(t, -math32.Log(2), splats[0].Scale.X, 1.0e-6)
	tolassert.Equal(t, -1, splats[0].Opacity)
}

func TestSaveOpenSplats(t *testing.T) {
	cl := patternCloud(2)
	fn := filepath.Join(t.TempDir(), "test.ply")
	assert.NoError(t, SaveSplats(cl, fn, false))

	splats, degree, err := OpenSplats(fn)
	assert.NoError(t, err)
	assert.Equal(t, 1, degree)
	assert.Equal(t, 2, len(splats))
	assert.Equal(t, cl.Splat(1), splats[1])

	_, _, err = OpenSplats(filepath.Join(t.TempDir(), "missing.ply"))
	assert.Error(t, err)
}

func TestReadPointsASCII(t *testing.T) {
	data := `ply
format ascii 1.0
comment test data
element vertex 3
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
end_header
0 0 0 255 0 0
1 0.5 0 0 255 0
-1 2 3.5 0 0 255
`
	points, colors, err := ReadPoints(strings.NewReader(data))
	assert.NoError(t, err)
	assert.Equal(t, 3, len(points))
	assert.Equal(t, 3, len(colors))
	assert.Equal(t, math32.Vec3(1, 0.5, 0), points[1])
	assert.Equal(t, math32.Vec3(-1, 2, 3.5), points[2])
	tolassert.Equal(t, 1, colors[0].X)
	tolassert.Equal(t, 0, colors[0].Y)
	tolassert.Equal(t, 1, colors[1].Y)
}

func TestReadPointsNoColors(t *testing.T) {
	data := `ply
format ascii 1.0
element vertex 1
property double x
property double y
property double z
end_header
1.5 2.5 3.5
`
	points, colors, err := ReadPoints(strings.NewReader(data))
	assert.NoError(t, err)
	assert.Nil(t, colors)
	assert.Equal(t, math32.Vec3(1.5, 2.5, 3.5), points[0])
}

func TestReadPointsFromSplatFile(t *testing.T) {
	cl := patternCloud(2)
	var b bytes.Buffer
	assert.NoError(t, WriteSplats(cl, &b, false))

	points, colors, err := ReadPoints(&b)
	assert.NoError(t, err)
	assert.Nil(t, colors)
	assert.Equal(t, 2, len(points))
	assert.Equal(t, cl.Splat(1).Mean, points[1])
}

func TestReadPLYErrors(t *testing.T) {
	_, _, err := ReadPoints(strings.NewReader("not a ply\n"))
	assert.Error(t, err)

	_, _, err = ReadPoints(strings.NewReader("ply\nformat binary_big_endian 1.0\nend_header\n"))
	assert.Error(t, err)

	data := `ply
format ascii 1.0
element vertex 1
property float x
property float y
end_header
1 2
`
	_, _, err = ReadPoints(strings.NewReader(data))
	assert.Error(t, err)

	_, _, err = ReadSplats(strings.NewReader(data))
	assert.Error(t, err)
}
