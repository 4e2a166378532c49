// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loss

import (
	"math"

	"cogentcore.org/splat/render"
)

// SSIM parameters, fixed to the standard values for unit dynamic range:
// an 11 tap gaussian window with sigma 1.5, applied per channel over the
// full image with zero padding.
const (
	ssimWindow = 11
	ssimSigma  = 1.5
	ssimC1     = 0.01 * 0.01
	ssimC2     = 0.03 * 0.03
)

var ssimKernel = gaussianKernel(ssimWindow, ssimSigma)

func gaussianKernel(size int, sigma float64) []float64 {
	k := make([]float64, size)
	sum := 0.0
	for i := range k {
		d := float64(i - size/2)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// SSIM returns the mean structural similarity index between the two
// images, averaged over all window positions and the three channels.
// Identical images score 1.
func SSIM(a, b *render.Image) (float32, error) {
	if err := a.SameSize(b); err != nil {
		return 0, err
	}
	return float32(ssim(a, b, nil, 0)), nil
}

// ssim returns the mean SSIM of the two images. If grad is non-nil,
// gradScale times the gradient of the mean SSIM with respect to image a
// is accumulated into it.
func ssim(a, b *render.Image, grad []float32, gradScale float64) float64 {
	w, h := a.Width, a.Height
	np := w * h
	x := make([]float64, np)
	y := make([]float64, np)
	total := 0.0
	for c := 0; c < 3; c++ {
		for i := 0; i < np; i++ {
			x[i] = float64(a.Pix[i*3+c])
			y[i] = float64(b.Pix[i*3+c])
		}
		total += ssimChannel(x, y, w, h, grad, c, gradScale)
	}
	return total / float64(3*np)
}

// ssimChannel returns the sum of the SSIM map of one channel plane and,
// if grad is non-nil, accumulates gradScale/(3*w*h) times the gradient of
// that sum with respect to x into channel c of grad.
func ssimChannel(x, y []float64, w, h int, grad []float32, c int, gradScale float64) float64 {
	np := w * h
	mux := blur(x, w, h)
	muy := blur(y, w, h)
	xx := make([]float64, np)
	yy := make([]float64, np)
	xy := make([]float64, np)
	for i := range x {
		xx[i] = x[i] * x[i]
		yy[i] = y[i] * y[i]
		xy[i] = x[i] * y[i]
	}
	sxx := blur(xx, w, h)
	syy := blur(yy, w, h)
	sxy := blur(xy, w, h)

	var fmu, fp, fq []float64
	if grad != nil {
		fmu = make([]float64, np)
		fp = make([]float64, np)
		fq = make([]float64, np)
	}
	sum := 0.0
	for i := 0; i < np; i++ {
		vx := sxx[i] - mux[i]*mux[i]
		vy := syy[i] - muy[i]*muy[i]
		cov := sxy[i] - mux[i]*muy[i]
		a1 := 2*mux[i]*muy[i] + ssimC1
		a2 := 2*cov + ssimC2
		b1 := mux[i]*mux[i] + muy[i]*muy[i] + ssimC1
		b2 := vx + vy + ssimC2
		s := a1 * a2 / (b1 * b2)
		sum += s
		if grad == nil {
			continue
		}
		// Backprop through s = a1*a2/(b1*b2), treating the blurred
		// moments mux, vx, cov as independent inputs; dvar/dmux = -2*mux
		// and dcov/dmux = -muy fold the variance definitions back into
		// the mean term below.
		dMu := 2*muy[i]*a2/(b1*b2) - 2*mux[i]*s/b1
		dVx := -s / b2
		dCov := 2 * a1 / (b1 * b2)
		fmu[i] = dMu + dVx*(-2*mux[i]) + dCov*(-muy[i])
		fp[i] = dVx
		fq[i] = dCov
	}
	if grad == nil {
		return sum
	}
	// The gaussian window is symmetric, so the transpose of each blur is
	// the same blur; the x and y products distribute pointwise.
	bmu := blur(fmu, w, h)
	bp := blur(fp, w, h)
	bq := blur(fq, w, h)
	scale := gradScale / float64(3*np)
	for i := 0; i < np; i++ {
		g := bmu[i] + 2*x[i]*bp[i] + y[i]*bq[i]
		grad[i*3+c] += float32(scale * g)
	}
	return sum
}

// blur returns the plane convolved with the separable gaussian window,
// zero padded to the same size.
func blur(src []float64, w, h int) []float64 {
	half := ssimWindow / 2
	tmp := make([]float64, len(src))
	dst := make([]float64, len(src))
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		out := tmp[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			sum := 0.0
			for k, kv := range ssimKernel {
				sx := x + k - half
				if sx < 0 || sx >= w {
					continue
				}
				sum += kv * row[sx]
			}
			out[x] = sum
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.0
			for k, kv := range ssimKernel {
				sy := y + k - half
				if sy < 0 || sy >= h {
					continue
				}
				sum += kv * tmp[sy*w+x]
			}
			dst[y*w+x] = sum
		}
	}
	return dst
}
