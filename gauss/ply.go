// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gauss

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"cogentcore.org/core/math32"
)

// PLY is the interchange format shared with other splatting tools.
// Splat files store one vertex per splat with the fields
// x y z nx ny nz f_dc_* f_rest_* opacity scale_* rot_*, where f_rest is
// channel-major (all red coefficients, then green, then blue), scales are
// logs, rotations are unnormalized w, x, y, z quaternions, and opacities
// are logits. Point files need only x y z and optional colors.

type plyProperty struct {
	name    string
	typ     string
	listTyp string
	list    bool
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format string
	elems  []plyElement
}

var plyTypeSize = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4, "double": 8, "float64": 8,
}

func readPLYHeader(br *bufio.Reader) (*plyHeader, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("ply: reading magic: %w", err)
	}
	if strings.TrimSpace(line) != "ply" {
		return nil, fmt.Errorf("ply: not a PLY file")
	}
	h := &plyHeader{}
	for {
		line, err = br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("ply: reading header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment", "obj_info":
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("ply: malformed format line %q", strings.TrimSpace(line))
			}
			h.format = fields[1]
			if h.format != "ascii" && h.format != "binary_little_endian" {
				return nil, fmt.Errorf("ply: unsupported format %q", h.format)
			}
		case "element":
			if len(fields) < 3 {
				return nil, fmt.Errorf("ply: malformed element line %q", strings.TrimSpace(line))
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("ply: bad element count %q", fields[2])
			}
			h.elems = append(h.elems, plyElement{name: fields[1], count: n})
		case "property":
			if len(h.elems) == 0 {
				return nil, fmt.Errorf("ply: property before element")
			}
			el := &h.elems[len(h.elems)-1]
			switch {
			case len(fields) == 3:
				if _, ok := plyTypeSize[fields[1]]; !ok {
					return nil, fmt.Errorf("ply: unsupported property type %q", fields[1])
				}
				el.props = append(el.props, plyProperty{name: fields[2], typ: fields[1]})
			case len(fields) == 5 && fields[1] == "list":
				if _, ok := plyTypeSize[fields[2]]; !ok {
					return nil, fmt.Errorf("ply: unsupported list count type %q", fields[2])
				}
				if _, ok := plyTypeSize[fields[3]]; !ok {
					return nil, fmt.Errorf("ply: unsupported list value type %q", fields[3])
				}
				el.props = append(el.props, plyProperty{name: fields[4], typ: fields[3], listTyp: fields[2], list: true})
			default:
				return nil, fmt.Errorf("ply: malformed property line %q", strings.TrimSpace(line))
			}
		case "end_header":
			if h.format == "" {
				return nil, fmt.Errorf("ply: missing format line")
			}
			return h, nil
		default:
			return nil, fmt.Errorf("ply: unexpected header line %q", strings.TrimSpace(line))
		}
	}
}

func plyDecode(typ string, buf []byte) float64 {
	switch typ {
	case "char", "int8":
		return float64(int8(buf[0]))
	case "uchar", "uint8":
		return float64(buf[0])
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(buf)))
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(buf))
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(buf)))
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(buf))
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case "double", "float64":
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
	return 0
}

// readPLYElement reads all rows of one element, calling row with the scalar
// property values of each. List property values are read and discarded.
// row may be nil to skip the element entirely.
func readPLYElement(br *bufio.Reader, format string, el plyElement, row func(vals []float64) error) error {
	hasList := false
	stride := 0
	for _, p := range el.props {
		if p.list {
			hasList = true
		} else {
			stride += plyTypeSize[p.typ]
		}
	}
	vals := make([]float64, len(el.props))
	if format == "ascii" {
		for i := 0; i < el.count; i++ {
			for j, p := range el.props {
				if p.list {
					var n int
					if _, err := fmt.Fscan(br, &n); err != nil {
						return fmt.Errorf("ply: element %s row %d: %w", el.name, i, err)
					}
					var v float64
					for k := 0; k < n; k++ {
						if _, err := fmt.Fscan(br, &v); err != nil {
							return fmt.Errorf("ply: element %s row %d: %w", el.name, i, err)
						}
					}
					continue
				}
				if _, err := fmt.Fscan(br, &vals[j]); err != nil {
					return fmt.Errorf("ply: element %s row %d: %w", el.name, i, err)
				}
			}
			if row != nil {
				if err := row(vals); err != nil {
					return err
				}
			}
		}
		return nil
	}
	buf := make([]byte, stride)
	for i := 0; i < el.count; i++ {
		if !hasList {
			if _, err := io.ReadFull(br, buf); err != nil {
				return fmt.Errorf("ply: element %s row %d: %w", el.name, i, err)
			}
			off := 0
			for j, p := range el.props {
				sz := plyTypeSize[p.typ]
				vals[j] = plyDecode(p.typ, buf[off:off+sz])
				off += sz
			}
		} else {
			for j, p := range el.props {
				if p.list {
					cb := make([]byte, plyTypeSize[p.listTyp])
					if _, err := io.ReadFull(br, cb); err != nil {
						return fmt.Errorf("ply: element %s row %d: %w", el.name, i, err)
					}
					n := int(plyDecode(p.listTyp, cb))
					if _, err := io.CopyN(io.Discard, br, int64(n*plyTypeSize[p.typ])); err != nil {
						return fmt.Errorf("ply: element %s row %d: %w", el.name, i, err)
					}
					continue
				}
				vb := make([]byte, plyTypeSize[p.typ])
				if _, err := io.ReadFull(br, vb); err != nil {
					return fmt.Errorf("ply: element %s row %d: %w", el.name, i, err)
				}
				vals[j] = plyDecode(p.typ, vb)
			}
		}
		if row != nil {
			if err := row(vals); err != nil {
				return err
			}
		}
	}
	return nil
}

func plyPropIndex(el plyElement, name string) int {
	for i, p := range el.props {
		if p.name == name {
			return i
		}
	}
	return -1
}

func plyVertexElement(h *plyHeader) (plyElement, error) {
	for _, el := range h.elems {
		if el.name == "vertex" {
			return el, nil
		}
	}
	return plyElement{}, fmt.Errorf("ply: no vertex element")
}

// ReadPoints reads a raw colored point cloud from PLY data, in the file's
// coordinate frame. Colors are taken from red, green, blue properties when
// present, scaled from bytes to [0, 1] as needed; colors is nil otherwise.
func ReadPoints(r io.Reader) (points, colors []math32.Vector3, err error) {
	br := bufio.NewReader(r)
	h, err := readPLYHeader(br)
	if err != nil {
		return nil, nil, err
	}
	vert, err := plyVertexElement(h)
	if err != nil {
		return nil, nil, err
	}
	xi, yi, zi := plyPropIndex(vert, "x"), plyPropIndex(vert, "y"), plyPropIndex(vert, "z")
	if xi < 0 || yi < 0 || zi < 0 {
		return nil, nil, fmt.Errorf("ply: vertex element missing x, y, z")
	}
	ri, gi, bi := plyPropIndex(vert, "red"), plyPropIndex(vert, "green"), plyPropIndex(vert, "blue")
	hasColor := ri >= 0 && gi >= 0 && bi >= 0
	cdiv := float32(1)
	if hasColor && plyTypeSize[vert.props[ri].typ] == 1 {
		cdiv = 255
	}
	points = make([]math32.Vector3, 0, vert.count)
	if hasColor {
		colors = make([]math32.Vector3, 0, vert.count)
	}
	for _, el := range h.elems {
		if el.name != "vertex" {
			if err := readPLYElement(br, h.format, el, nil); err != nil {
				return nil, nil, err
			}
			continue
		}
		err := readPLYElement(br, h.format, el, func(vals []float64) error {
			points = append(points, math32.Vec3(float32(vals[xi]), float32(vals[yi]), float32(vals[zi])))
			if hasColor {
				c := math32.Vec3(float32(vals[ri]), float32(vals[gi]), float32(vals[bi]))
				colors = append(colors, c.DivScalar(cdiv))
			}
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		break
	}
	return points, colors, nil
}

// OpenPoints reads a raw colored point cloud from the given PLY file.
// See [ReadPoints].
func OpenPoints(filename string) (points, colors []math32.Vector3, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadPoints(f)
}

// ReadSplats reads full splats from PLY data written by [WriteSplats] or
// another splatting tool, returning them in the file's coordinate frame
// along with the spherical harmonic degree implied by the f_rest field
// count. Splats missing opacity or f_rest fields get zeros there.
func ReadSplats(r io.Reader) ([]Splat, int, error) {
	br := bufio.NewReader(r)
	h, err := readPLYHeader(br)
	if err != nil {
		return nil, 0, err
	}
	vert, err := plyVertexElement(h)
	if err != nil {
		return nil, 0, err
	}
	var need [9]int
	for i, name := range []string{"x", "y", "z", "f_dc_0", "f_dc_1", "f_dc_2", "scale_0", "scale_1", "scale_2"} {
		need[i] = plyPropIndex(vert, name)
		if need[i] < 0 {
			return nil, 0, fmt.Errorf("ply: vertex element missing splat property %s", name)
		}
	}
	var rot [4]int
	for i := range rot {
		rot[i] = plyPropIndex(vert, fmt.Sprintf("rot_%d", i))
		if rot[i] < 0 {
			return nil, 0, fmt.Errorf("ply: vertex element missing splat property rot_%d", i)
		}
	}
	oi := plyPropIndex(vert, "opacity")
	nrest := 0
	for plyPropIndex(vert, fmt.Sprintf("f_rest_%d", nrest)) >= 0 {
		nrest++
	}
	if nrest%3 != 0 {
		return nil, 0, fmt.Errorf("ply: %d f_rest properties is not divisible by 3", nrest)
	}
	degree := 0
	if nrest > 0 {
		k := nrest/3 + 1
		for NumBases(degree) < k {
			degree++
		}
		if NumBases(degree) != k {
			return nil, 0, fmt.Errorf("ply: %d f_rest properties does not match a spherical harmonic degree", nrest)
		}
	}
	rest := make([]int, nrest)
	for i := range rest {
		rest[i] = plyPropIndex(vert, fmt.Sprintf("f_rest_%d", i))
	}
	kr := nrest / 3
	splats := make([]Splat, 0, vert.count)
	for _, el := range h.elems {
		if el.name != "vertex" {
			if err := readPLYElement(br, h.format, el, nil); err != nil {
				return nil, 0, err
			}
			continue
		}
		err := readPLYElement(br, h.format, el, func(vals []float64) error {
			var s Splat
			s.Mean.Set(float32(vals[need[0]]), float32(vals[need[1]]), float32(vals[need[2]]))
			s.DC.Set(float32(vals[need[3]]), float32(vals[need[4]]), float32(vals[need[5]]))
			s.Scale.Set(float32(vals[need[6]]), float32(vals[need[7]]), float32(vals[need[8]]))
			s.Quat.Set(float32(vals[rot[1]]), float32(vals[rot[2]]), float32(vals[rot[3]]), float32(vals[rot[0]]))
			if oi >= 0 {
				s.Opacity = float32(vals[oi])
			}
			if kr > 0 {
				s.Rest = make([]float32, 3*kr)
				for c := 0; c < 3; c++ {
					for j := 0; j < kr; j++ {
						s.Rest[j*3+c] = float32(vals[rest[c*kr+j]])
					}
				}
			}
			splats = append(splats, s)
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
		break
	}
	return splats, degree, nil
}

// OpenSplats reads full splats from the given PLY file. See [ReadSplats].
func OpenSplats(filename string) ([]Splat, int, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return ReadSplats(f)
}

// WriteSplats writes the cloud as a binary PLY splat file. If inputFrame is
// true, positions and scales are mapped back to the original input frame by
// undoing the cloud's Scale and Translation normalization; otherwise they
// are written in the normalized training frame.
func WriteSplats(cl *Cloud, w io.Writer, inputFrame bool) error {
	n := cl.NumSplats()
	kr := cl.FeatRest.Cell / 3
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat binary_little_endian 1.0\n")
	fmt.Fprintf(bw, "comment generated by splat\n")
	fmt.Fprintf(bw, "element vertex %d\n", n)
	for _, f := range []string{"x", "y", "z", "nx", "ny", "nz"} {
		fmt.Fprintf(bw, "property float %s\n", f)
	}
	for i := 0; i < 3; i++ {
		fmt.Fprintf(bw, "property float f_dc_%d\n", i)
	}
	for i := 0; i < 3*kr; i++ {
		fmt.Fprintf(bw, "property float f_rest_%d\n", i)
	}
	fmt.Fprintf(bw, "property float opacity\n")
	for i := 0; i < 3; i++ {
		fmt.Fprintf(bw, "property float scale_%d\n", i)
	}
	for i := 0; i < 4; i++ {
		fmt.Fprintf(bw, "property float rot_%d\n", i)
	}
	fmt.Fprintf(bw, "end_header\n")
	logScale := math32.Log(cl.Scale)
	row := make([]float32, 17+3*kr)
	for i := 0; i < n; i++ {
		m := cl.Means.Row(i)
		sc := cl.Scales.Row(i)
		q := cl.Quats.Row(i)
		dc := cl.FeatDC.Row(i)
		fr := cl.FeatRest.Row(i)
		x, y, z := m[0], m[1], m[2]
		s0, s1, s2 := sc[0], sc[1], sc[2]
		if inputFrame {
			x = x/cl.Scale + cl.Translation.X
			y = y/cl.Scale + cl.Translation.Y
			z = z/cl.Scale + cl.Translation.Z
			s0 -= logScale
			s1 -= logScale
			s2 -= logScale
		}
		row[0], row[1], row[2] = x, y, z
		row[3], row[4], row[5] = 0, 0, 0
		row[6], row[7], row[8] = dc[0], dc[1], dc[2]
		o := 9
		for c := 0; c < 3; c++ {
			for j := 0; j < kr; j++ {
				row[o] = fr[j*3+c]
				o++
			}
		}
		row[o] = cl.Opacities.Row(i)[0]
		row[o+1], row[o+2], row[o+3] = s0, s1, s2
		row[o+4], row[o+5], row[o+6], row[o+7] = q[0], q[1], q[2], q[3]
		if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveSplats writes the cloud as a binary PLY splat file to the given
// filename. See [WriteSplats].
func SaveSplats(cl *Cloud, filename string, inputFrame bool) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteSplats(cl, f, inputFrame)
}
