// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"fmt"

	"cogentcore.org/core/base/iox/imagex"
	"cogentcore.org/core/math32"
	"cogentcore.org/splat/render"
)

// Frame is one posed training photograph: its camera and, once
// [Frame.Load] has run, its undistorted ground truth image together with
// a cache of downscaled versions for the resolution schedule.
type Frame struct {

	// Camera is the frame's camera. Load updates its intrinsics and
	// dimensions to match the processed image.
	Camera render.Camera

	// FilePath is the path of the image file.
	FilePath string

	// Image is the full resolution ground truth image, set by Load.
	Image *render.Image

	pyramid map[int]*render.Image
}

// Load reads the frame's image file and resolves it against the camera:
// intrinsics are rescaled if the file's dimensions differ from the
// manifest's, the image is scaled down by the given global factor if it
// is above 1, and any lens distortion is resampled away and the result
// cropped to the valid region, zeroing the camera's distortion
// coefficients. It must be called exactly once, before training starts.
func (fr *Frame) Load(downscaleFactor float32) error {
	if fr.Image != nil {
		return fmt.Errorf("scene: frame %s already loaded", fr.FilePath)
	}
	src, _, err := imagex.Open(fr.FilePath)
	if err != nil {
		return err
	}
	im := render.FromGo(src)

	cam := &fr.Camera
	scale := float32(1)
	if downscaleFactor > 1 {
		scale = 1 / downscaleFactor
	}
	rescale := float32(1)
	if im.Height != cam.Height || im.Width != cam.Width {
		rescale = float32(im.Height) / float32(cam.Height)
	}
	cam.Fx *= scale * rescale
	cam.Fy *= scale * rescale
	cam.Cx *= scale * rescale
	cam.Cy *= scale * rescale
	if scale != 1 {
		im = im.Resized(int(float32(im.Width)*scale+0.5), int(float32(im.Height)*scale+0.5))
	}
	cam.Width = im.Width
	cam.Height = im.Height

	if cam.HasDistortion() {
		im, err = undistort(im, cam)
		if err != nil {
			return fmt.Errorf("scene: frame %s: %w", fr.FilePath, err)
		}
		cam.K1, cam.K2, cam.K3, cam.P1, cam.P2 = 0, 0, 0, 0, 0
	}
	fr.Image = im
	return nil
}

// ImageAt returns the ground truth image downscaled by the given integer
// factor, rendering and caching it on first request. A factor of 1 or
// less returns the full resolution image.
func (fr *Frame) ImageAt(downscale int) *render.Image {
	if downscale <= 1 {
		return fr.Image
	}
	if im, ok := fr.pyramid[downscale]; ok {
		return im
	}
	if fr.pyramid == nil {
		fr.pyramid = map[int]*render.Image{}
	}
	im := fr.Image.Resized(fr.Image.Width/downscale, fr.Image.Height/downscale)
	fr.pyramid[downscale] = im
	return im
}

// undistort resamples the image so that the camera's Brown-Conrady
// distortion is removed, then crops to the largest clean rectangle and
// updates the camera's principal point and dimensions for the crop.
func undistort(im *render.Image, cam *render.Camera) (*render.Image, error) {
	w, h := im.Width, im.Height
	out := render.NewImage(w, h)
	valid := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			nx := (float32(x) - cam.Cx) / cam.Fx
			ny := (float32(y) - cam.Cy) / cam.Fy
			dx, dy := cam.Distort(nx, ny)
			sx := dx*cam.Fx + cam.Cx
			sy := dy*cam.Fy + cam.Cy
			c, ok := sampleBilinear(im, sx, sy)
			if ok {
				out.Set(x, y, c)
				valid[y*w+x] = true
			}
		}
	}
	x0, y0, x1, y1, err := validRect(valid, w, h)
	if err != nil {
		return nil, err
	}
	if x0 == 0 && y0 == 0 && x1 == w && y1 == h {
		return out, nil
	}
	crop := render.NewImage(x1-x0, y1-y0)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			crop.Set(x-x0, y-y0, out.At(x, y))
		}
	}
	cam.Cx -= float32(x0)
	cam.Cy -= float32(y0)
	cam.Width = crop.Width
	cam.Height = crop.Height
	return crop, nil
}

// sampleBilinear samples the image at the given fractional pixel
// coordinates, reporting false if they fall outside the image.
func sampleBilinear(im *render.Image, x, y float32) (math32.Vector3, bool) {
	if x < 0 || y < 0 || x > float32(im.Width-1) || y > float32(im.Height-1) {
		return math32.Vector3{}, false
	}
	x0 := int(x)
	y0 := int(y)
	x1 := min(x0+1, im.Width-1)
	y1 := min(y0+1, im.Height-1)
	fx := x - float32(x0)
	fy := y - float32(y0)
	top := im.At(x0, y0).Lerp(im.At(x1, y0), fx)
	bot := im.At(x0, y1).Lerp(im.At(x1, y1), fx)
	return top.Lerp(bot, fy), true
}

// validRect returns the bounds of a rectangle containing only valid
// pixels, found by repeatedly shaving the edge with the most invalid
// pixels, or an error if no pixels are valid at all.
func validRect(valid []bool, w, h int) (x0, y0, x1, y1 int, err error) {
	x1, y1 = w, h
	for x1 > x0 && y1 > y0 {
		top, bot, left, right := 0, 0, 0, 0
		for x := x0; x < x1; x++ {
			if !valid[y0*w+x] {
				top++
			}
			if !valid[(y1-1)*w+x] {
				bot++
			}
		}
		for y := y0; y < y1; y++ {
			if !valid[y*w+x0] {
				left++
			}
			if !valid[y*w+x1-1] {
				right++
			}
		}
		if top == 0 && bot == 0 && left == 0 && right == 0 {
			return x0, y0, x1, y1, nil
		}
		m := max(top, max(bot, max(left, right)))
		switch m {
		case top:
			y0++
		case bot:
			y1--
		case left:
			x0++
		default:
			x1--
		}
	}
	return 0, 0, 0, 0, fmt.Errorf("undistortion left no valid pixels")
}
