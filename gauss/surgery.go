// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gauss

import (
	"errors"
	"fmt"
)

// ErrNoSplats is returned by [Cloud.Shrink] when the keep mask would
// remove every splat.
var ErrNoSplats = errors.New("gauss: operation would remove all splats")

// Grow appends children new splats for each of the given parent rows, in
// parent order with each parent's children adjacent, resizing all six
// parameter arrays in lockstep. The value function provides the explicit
// values of child number c (0-based) of the given parent; if it is nil,
// each child is an exact copy of its parent. Existing rows keep their
// indices. The returned mapping records the parent of every row for
// carrying optimizer state across the growth.
func (cl *Cloud) Grow(parents []int, children int, value func(parent, c int) Splat) *Mapping {
	old := cl.NumSplats()
	add := len(parents) * children
	for _, p := range cl.Params() {
		p.SetRows(old + add)
	}
	m := IdentityMapping(old)
	m.NewToOld = append(m.NewToOld, make([]int, add)...)
	for pi, parent := range parents {
		for c := 0; c < children; c++ {
			i := old + pi*children + c
			if value == nil {
				cl.SetSplat(i, cl.Splat(parent))
			} else {
				cl.SetSplat(i, value(parent, c))
			}
			m.NewToOld[i] = parent
		}
	}
	return m
}

// Shrink removes every row i for which keep[i] is false, compacting the
// surviving rows in order across all six parameter arrays. len(keep) must
// equal [Cloud.NumSplats]. If keep would remove every row, the cloud is
// left unchanged and [ErrNoSplats] is returned.
func (cl *Cloud) Shrink(keep []bool) (*Mapping, error) {
	n := cl.NumSplats()
	if len(keep) != n {
		return nil, fmt.Errorf("gauss.Cloud.Shrink: keep mask has %d entries for %d splats", len(keep), n)
	}
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	if kept == 0 {
		return nil, ErrNoSplats
	}
	m := &Mapping{OldRows: n, NewToOld: make([]int, 0, kept)}
	w := 0
	for i, k := range keep {
		if !k {
			continue
		}
		if w != i {
			for _, p := range cl.Params() {
				p.CopyRow(w, p, i)
			}
		}
		m.NewToOld = append(m.NewToOld, i)
		w++
	}
	for _, p := range cl.Params() {
		p.SetRows(kept)
	}
	return m, nil
}
