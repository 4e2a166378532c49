// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import (
	"testing"

	"cogentcore.org/core/base/tolassert"
	"cogentcore.org/core/math32"
	"cogentcore.org/splat/gauss"
	"github.com/stretchr/testify/assert"
)

func TestAdamStep(t *testing.T) {
	p := gauss.NewParam("x", 1, 1)
	g := gauss.NewParam("x", 1, 1)
	a := NewAdam(p, 0.1)

	// with a constant unit gradient, the bias-corrected update is
	// exactly -lr each step (up to eps)
	g.Values[0] = 1
	assert.NoError(t, a.Step(p, g))
	assert.Equal(t, 1, a.Steps)
	tolassert.EqualTol(t, -0.1, p.Values[0], 1.0e-6)
	tolassert.Equal(t, 0.1, a.M.Values[0])
	tolassert.EqualTol(t, 0.001, a.V.Values[0], 1.0e-9)

	assert.NoError(t, a.Step(p, g))
	tolassert.EqualTol(t, -0.2, p.Values[0], 1.0e-6)
}

func TestAdamStepErrors(t *testing.T) {
	p := gauss.NewParam("x", 3, 2)
	a := NewAdam(p, 0.1)

	g := gauss.NewParam("x", 3, 1)
	assert.Error(t, a.Step(p, g))

	g = gauss.NewParam("x", 3, 2)
	p.SetRows(3)
	assert.Error(t, a.Step(p, gauss.NewParam("x", 3, 3)))
}

func TestAdamResize(t *testing.T) {
	p := gauss.NewParam("x", 2, 3)
	a := NewAdam(p, 0.1)
	for i := range a.M.Values {
		a.M.Values[i] = float32(i)
		a.V.Values[i] = float32(i) * 10
	}
	a.Steps = 7

	// duplicate row 1, drop row 0
	m := &gauss.Mapping{OldRows: 3, NewToOld: []int{1, 2, 1}}
	a.Resize(m)
	assert.Equal(t, 3, a.M.Rows())
	assert.Equal(t, []float32{2, 3}, a.M.Row(0))
	assert.Equal(t, []float32{4, 5}, a.M.Row(1))
	assert.Equal(t, []float32{2, 3}, a.M.Row(2))
	assert.Equal(t, []float32{20, 30}, a.V.Row(0))
	assert.Equal(t, []float32{20, 30}, a.V.Row(2))
	assert.Equal(t, 7, a.Steps)
}

func TestAdamResetMoments(t *testing.T) {
	p := gauss.NewParam("x", 1, 2)
	a := NewAdam(p, 0.1)
	a.M.Values[0] = 3
	a.V.Values[1] = 4
	a.Steps = 5
	a.ResetMoments()
	assert.Equal(t, []float32{0, 0}, a.M.Values)
	assert.Equal(t, []float32{0, 0}, a.V.Values)
	assert.Equal(t, 5, a.Steps)
}

func testLRs() LRs {
	return LRs{Means: 0.1, Scales: 0.05, Quats: 0.01, FeatDC: 0.01, FeatRest: 0.001, Opacities: 0.05}
}

func TestEnsembleStep(t *testing.T) {
	cl := gauss.NewCloud(1, 2)
	en := NewEnsemble(cl, testLRs())

	assert.Error(t, en.Step(cl))

	en.ZeroGrad(cl)
	en.Grads.Means.Row(0)[0] = 1
	en.Grads.Opacities.Row(1)[0] = -1
	assert.NoError(t, en.Step(cl))
	tolassert.EqualTol(t, -0.1, cl.Means.Row(0)[0], 1.0e-6)
	assert.Equal(t, float32(0), cl.Means.Row(1)[0])
	tolassert.EqualTol(t, 0.05, cl.Opacities.Row(1)[0], 1.0e-6)

	en.ZeroGrad(cl)
	assert.Equal(t, float32(0), en.Grads.Means.Row(0)[0])
}

func TestEnsembleResize(t *testing.T) {
	n := 10
	cl := gauss.NewCloud(3, n)
	en := NewEnsemble(cl, testLRs())
	en.ZeroGrad(cl)
	for _, a := range en.Opts() {
		for i := range a.M.Values {
			a.M.Values[i] = float32(i) + 0.5
			a.V.Values[i] = float32(i) * 2
		}
	}

	// duplicating every splat doubles every moment buffer, with the new
	// entries exact copies of their parents'
	parents := make([]int, n)
	for i := range parents {
		parents[i] = i
	}
	m := cl.Grow(parents, 1, nil)
	assert.NoError(t, en.Resize(cl, m))
	for _, a := range en.Opts() {
		assert.Equal(t, 2*n, a.M.Rows())
		assert.Equal(t, 2*n, a.V.Rows())
		for i := 0; i < n; i++ {
			assert.Equal(t, a.M.Row(i), a.M.Row(n+i))
			assert.Equal(t, a.V.Row(i), a.V.Row(n+i))
		}
	}
	assert.Equal(t, 2*n, en.Grads.Means.Rows())

	assert.Error(t, en.Resize(cl, gauss.IdentityMapping(3)))
}

func TestEnsembleStepAfterShrink(t *testing.T) {
	cl := gauss.NewCloud(0, 4)
	en := NewEnsemble(cl, testLRs())
	m, err := cl.Shrink([]bool{true, false, true, true})
	assert.NoError(t, err)
	assert.NoError(t, en.Resize(cl, m))
	en.ZeroGrad(cl)
	assert.NoError(t, en.Step(cl))
	assert.Equal(t, 3, en.Means.M.Rows())
}

func TestExpDecay(t *testing.T) {
	e := &ExpDecay{Init: 0.00016, Final: 0.0000016, Steps: 30000}
	tolassert.Equal(t, 0.00016, e.At(0))
	tolassert.Equal(t, 0.00016, e.At(-1))
	tolassert.Equal(t, 0.0000016, e.At(30000))
	tolassert.Equal(t, 0.0000016, e.At(40000))
	tolassert.EqualTol(t, math32.Sqrt(0.00016*0.0000016), e.At(15000), 1.0e-9)

	mid := e.At(15000)
	assert.Less(t, mid, e.At(14999))
	assert.Greater(t, mid, e.At(15001))
}
