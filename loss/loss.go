// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loss implements the photometric training objective for splat
// optimization: mean absolute error ([L1]) blended with structural
// dissimilarity ([SSIM]) by [Weighted]. Because the rendering backend only
// consumes a ready loss gradient image, each objective also has an
// analytic gradient with respect to the rendered image, combined by
// [WeightedGrad].
package loss

//go:generate core generate

import (
	"math"

	"cogentcore.org/splat/render"
)

// L1 returns the mean absolute error between the two images, averaged
// over all pixels and channels.
func L1(rendered, gt *render.Image) (float32, error) {
	if err := rendered.SameSize(gt); err != nil {
		return 0, err
	}
	sum := 0.0
	for i, v := range rendered.Pix {
		sum += math.Abs(float64(v - gt.Pix[i]))
	}
	return float32(sum / float64(len(rendered.Pix))), nil
}

// Weighted returns the training loss
// (1-ssimWeight)*L1 + ssimWeight*(1-SSIM), which degenerates to plain
// mean absolute error at ssimWeight 0.
func Weighted(rendered, gt *render.Image, ssimWeight float32) (float32, error) {
	l, _, err := weighted(rendered, gt, ssimWeight, false)
	return l, err
}

// WeightedGrad returns the [Weighted] training loss along with its
// gradient with respect to the rendered image, shaped like it, ready to
// feed the renderer's backward pass.
func WeightedGrad(rendered, gt *render.Image, ssimWeight float32) (float32, *render.Image, error) {
	return weighted(rendered, gt, ssimWeight, true)
}

func weighted(rendered, gt *render.Image, ssimWeight float32, wantGrad bool) (float32, *render.Image, error) {
	if err := rendered.SameSize(gt); err != nil {
		return 0, nil, err
	}
	var grad *render.Image
	var gpix []float32
	if wantGrad {
		grad = render.NewImage(rendered.Width, rendered.Height)
		gpix = grad.Pix
	}
	n := float64(len(rendered.Pix))
	l1w := float64(1 - ssimWeight)
	sum := 0.0
	for i, v := range rendered.Pix {
		d := float64(v - gt.Pix[i])
		sum += math.Abs(d)
		if gpix != nil && d != 0 {
			s := l1w / n
			if d < 0 {
				s = -s
			}
			gpix[i] = float32(s)
		}
	}
	l := l1w * sum / n
	if ssimWeight != 0 {
		sv := ssim(rendered, gt, gpix, -float64(ssimWeight))
		l += float64(ssimWeight) * (1 - sv)
	}
	return float32(l), grad, nil
}

// PSNR returns the peak signal to noise ratio in dB between the two
// images, assuming unit dynamic range.
func PSNR(rendered, gt *render.Image) (float32, error) {
	if err := rendered.SameSize(gt); err != nil {
		return 0, err
	}
	sum := 0.0
	for i, v := range rendered.Pix {
		d := float64(v - gt.Pix[i])
		sum += d * d
	}
	mse := sum / float64(len(rendered.Pix))
	return float32(-10 * math.Log10(mse)), nil
}
