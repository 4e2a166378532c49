// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package render defines the contract between the splat training engine
// and the differentiable rasterizer that projects gaussians to screen
// space and composites pixels. The rasterizer itself is not implemented
// here: concrete [Renderer] backends live in separate packages (typically
// wrapping a GPU kernel) and register themselves with [Register] from an
// init function, so that programs select one with a blank import, in the
// manner of GPU accelerator backends. The training engine only sees the
// synchronous [Renderer] interface: a forward pass producing an [Output]
// and a backward pass producing [Grads] for every cloud parameter.
package render

//go:generate core generate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"cogentcore.org/core/math32"
	"cogentcore.org/splat/gauss"
)

// Output is the result of one forward rendering pass: the composited
// image plus the per-splat screen space quantities that density control
// statistics are gathered from. The three per-splat slices all have one
// entry per splat in the rendered cloud; entries for splats with Visible
// false are undefined.
type Output struct {

	// Image is the rendered RGB image at the camera's resolution.
	Image *Image

	// ScreenPos is the projected center of each splat in pixels.
	ScreenPos []math32.Vector2

	// Radii is the projected screen radius of each splat in pixels.
	Radii []float32

	// Visible reports whether each splat contributed to the image:
	// splats outside the view frustum or culled during compositing
	// are not visible.
	Visible []bool
}

// Grads is the result of one backward pass: the gradient of the loss
// with respect to every cloud parameter, plus the gradient with respect
// to each splat's projected screen position, which density control uses
// as its densification signal.
type Grads struct {

	// Params holds the gradients for the six cloud parameter arrays.
	Params *gauss.Grads

	// ScreenPos is the loss gradient of each splat's projected screen
	// position, one entry per splat, zero for invisible splats.
	ScreenPos []math32.Vector2
}

// Renderer is a differentiable gaussian splat rasterizer. Render composites
// the given cloud through the given camera, decoding the stored parameters
// (exponentiated scales, normalized quaternions, sigmoid opacities, and
// spherical harmonic colors evaluated up to shDegree against the view
// direction), over the given background color. Backward then propagates
// the given loss gradient image back to every parameter of the cloud most
// recently rendered; it must be called after the matching Render, before
// the next one. Both calls block until the backend, which may be massively
// parallel internally, has fully synchronized its result.
type Renderer interface {
	Render(cl *gauss.Cloud, cam *Camera, shDegree int, background math32.Vector3) (*Output, error)

	Backward(dImage *Image) (*Grads, error)
}

// ErrNoBackends is returned by [New] when no renderer backend has been
// registered. Programs must blank-import a backend package.
var ErrNoBackends = errors.New("render: no renderer backends registered")

var (
	backends   = map[string]func() (Renderer, error){}
	backendsMu sync.Mutex
)

// Register registers a renderer backend constructor under the given name,
// replacing any existing registration of that name. It is typically called
// from a backend package's init function.
func Register(name string, maker func() (Renderer, error)) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = maker
}

// Backends returns the names of the registered renderer backends, sorted.
func Backends() []string {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns a new renderer from the backend registered under the given
// name. An empty name selects the only registered backend, or errors if
// there are several. [ErrNoBackends] is returned if there are none.
func New(name string) (Renderer, error) {
	backendsMu.Lock()
	maker, ok := backends[name]
	n := len(backends)
	if !ok && name == "" && n == 1 {
		for _, maker = range backends {
		}
		ok = true
	}
	backendsMu.Unlock()
	if n == 0 {
		return nil, ErrNoBackends
	}
	if !ok {
		if name == "" {
			return nil, fmt.Errorf("render: multiple backends registered, select one of %v", Backends())
		}
		return nil, fmt.Errorf("render: no backend named %q, have %v", name, Backends())
	}
	return maker()
}
