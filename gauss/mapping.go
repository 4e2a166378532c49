// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gauss

// Mapping records how a surgery operation ([Cloud.Grow] or [Cloud.Shrink])
// rearranged splat rows. NewToOld has one entry per row after the operation,
// giving the row before the operation that it derives from: surviving rows
// map to their previous index, and rows appended by Grow map to their
// parent. Optimizer state follows surgery by gathering with NewToOld.
type Mapping struct {

	// OldRows is the number of rows before the operation.
	OldRows int

	// NewToOld maps each row after the operation to the row before it
	// that it derives from. Multiple new rows may share a source row.
	NewToOld []int
}

// IdentityMapping returns a mapping that leaves n rows unchanged.
func IdentityMapping(n int) *Mapping {
	m := &Mapping{OldRows: n, NewToOld: make([]int, n)}
	for i := range m.NewToOld {
		m.NewToOld[i] = i
	}
	return m
}

// NewRows returns the number of rows after the operation.
func (m *Mapping) NewRows() int { return len(m.NewToOld) }

// Compose returns the mapping equivalent to applying m first and then next,
// so that the result maps rows after next directly to rows before m.
// next.OldRows must equal m.NewRows().
func (m *Mapping) Compose(next *Mapping) *Mapping {
	c := &Mapping{OldRows: m.OldRows, NewToOld: make([]int, next.NewRows())}
	for i, j := range next.NewToOld {
		c.NewToOld[i] = m.NewToOld[j]
	}
	return c
}
