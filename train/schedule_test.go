// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownscale(t *testing.T) {
	c := &Config{NumDownscales: 2, ResolutionSchedule: 3000}
	assert.Equal(t, 4, c.Downscale(0))
	assert.Equal(t, 4, c.Downscale(2999))
	assert.Equal(t, 2, c.Downscale(3000))
	assert.Equal(t, 2, c.Downscale(5999))
	// exactly 1 for every step from ResolutionSchedule*NumDownscales on
	for _, step := range []int{6000, 6001, 10000, 1 << 30} {
		assert.Equal(t, 1, c.Downscale(step))
	}

	c = &Config{NumDownscales: 0, ResolutionSchedule: 3000}
	assert.Equal(t, 1, c.Downscale(0))
}

func TestSHDegreeAt(t *testing.T) {
	c := &Config{SHDegree: 3, SHDegreeInterval: 1000}
	assert.Equal(t, 0, c.SHDegreeAt(0))
	assert.Equal(t, 0, c.SHDegreeAt(999))
	assert.Equal(t, 1, c.SHDegreeAt(1000))
	assert.Equal(t, 2, c.SHDegreeAt(2500))
	assert.Equal(t, 3, c.SHDegreeAt(3000))
	assert.Equal(t, 3, c.SHDegreeAt(100000)) // clamped

	c = &Config{SHDegree: 2, SHDegreeInterval: 0}
	assert.Equal(t, 2, c.SHDegreeAt(0))
}

func TestRefineAt(t *testing.T) {
	c := &Config{RefineEvery: 100, WarmupLength: 500, StopSplitAt: 15000}
	assert.False(t, c.RefineAt(100))
	assert.False(t, c.RefineAt(500))
	assert.True(t, c.RefineAt(600))
	assert.False(t, c.RefineAt(601))
	assert.True(t, c.RefineAt(15000))
	assert.False(t, c.RefineAt(15100))

	c.Fixed = true
	assert.False(t, c.RefineAt(600))
}
