// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"fmt"
	"image"

	"cogentcore.org/core/math32"
	"golang.org/x/image/draw"
)

// Image is an RGB image with float32 channel values, the pixel format
// exchanged between the rasterizer, the loss, and ground truth images.
// Values are nominally in [0, 1] but are not clamped, since loss
// gradients and unclamped renders flow through the same type.
type Image struct {

	// Width and Height are the image dimensions in pixels.
	Width, Height int

	// Pix holds Height x Width x 3 interleaved RGB values in row-major
	// order.
	Pix []float32
}

// NewImage returns a new zero (black) image of the given size.
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]float32, width*height*3)}
}

// NewImageFill returns a new image of the given size with every pixel set
// to the given color.
func NewImageFill(width, height int, color math32.Vector3) *Image {
	im := NewImage(width, height)
	for i := 0; i < len(im.Pix); i += 3 {
		im.Pix[i] = color.X
		im.Pix[i+1] = color.Y
		im.Pix[i+2] = color.Z
	}
	return im
}

// At returns the color of the pixel at x, y.
func (im *Image) At(x, y int) math32.Vector3 {
	i := (y*im.Width + x) * 3
	return math32.Vec3(im.Pix[i], im.Pix[i+1], im.Pix[i+2])
}

// Set sets the color of the pixel at x, y.
func (im *Image) Set(x, y int, color math32.Vector3) {
	i := (y*im.Width + x) * 3
	im.Pix[i], im.Pix[i+1], im.Pix[i+2] = color.X, color.Y, color.Z
}

// Clone returns a deep copy of the image.
func (im *Image) Clone() *Image {
	ni := &Image{Width: im.Width, Height: im.Height, Pix: make([]float32, len(im.Pix))}
	copy(ni.Pix, im.Pix)
	return ni
}

// SameSize returns an error describing the mismatch if the two images do
// not have identical dimensions, nil otherwise.
func (im *Image) SameSize(o *Image) error {
	if im.Width != o.Width || im.Height != o.Height {
		return fmt.Errorf("render: image size mismatch: %dx%d vs %dx%d", im.Width, im.Height, o.Width, o.Height)
	}
	return nil
}

// FromGo returns a new image with the pixels of the given [image.Image],
// mapping 8 bit channels to [0, 1] and dropping alpha.
func FromGo(src image.Image) *Image {
	b := src.Bounds()
	rgba, ok := src.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(b)
		draw.Draw(rgba, b, src, b.Min, draw.Src)
	}
	im := NewImage(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			s := rgba.PixOffset(x, y)
			im.Pix[i] = float32(rgba.Pix[s]) / 255
			im.Pix[i+1] = float32(rgba.Pix[s+1]) / 255
			im.Pix[i+2] = float32(rgba.Pix[s+2]) / 255
			i += 3
		}
	}
	return im
}

// ToGo returns the image as an opaque [image.RGBA], clamping values
// to [0, 1].
func (im *Image) ToGo() *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, im.Width, im.Height))
	i := 0
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			s := rgba.PixOffset(x, y)
			rgba.Pix[s] = uint8(math32.Clamp(im.Pix[i], 0, 1)*255 + 0.5)
			rgba.Pix[s+1] = uint8(math32.Clamp(im.Pix[i+1], 0, 1)*255 + 0.5)
			rgba.Pix[s+2] = uint8(math32.Clamp(im.Pix[i+2], 0, 1)*255 + 0.5)
			rgba.Pix[s+3] = 255
			i += 3
		}
	}
	return rgba
}

// Resized returns the image resampled to the given size with bilinear
// interpolation, used for the ground truth resolution schedule. The
// original image is unchanged.
func (im *Image) Resized(width, height int) *Image {
	if width == im.Width && height == im.Height {
		return im.Clone()
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), im.ToGo(), image.Rect(0, 0, im.Width, im.Height), draw.Src, nil)
	return FromGo(dst)
}
