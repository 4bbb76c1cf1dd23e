// Copyright (c) 2025 SciGo RTree Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package core defines the on-page data model of the rtree index:
// coordinates, cells and the serialized node page format.
package core

import "math"

// Hard limits of the node format.
const (
	// MaxDims is the largest number of dimensions an index may carry.
	MaxDims = 5

	// MaxDepth bounds the length of any root-to-leaf path. A stored depth
	// beyond this is treated as corruption.
	MaxDepth = 40

	// MaxCellsPerNode caps the cell capacity of a single node page.
	MaxCellsPerNode = 51

	// MinNodeSize is the smallest legal node page.
	MinNodeSize = 448
)

// CoordType selects the 32-bit representation of stored coordinates.
// It is fixed once per index.
type CoordType int

const (
	// CoordReal32 stores coordinates as IEEE-754 single-precision floats.
	CoordReal32 CoordType = iota
	// CoordInt32 stores coordinates as signed 32-bit integers.
	CoordInt32
)

// Coord is the raw 32-bit payload of one stored coordinate. Interpretation
// (float or integer) is carried on the index, not on the value.
type Coord uint32

// RealCoord builds a Coord from a single-precision float.
func RealCoord(f float32) Coord {
	return Coord(math.Float32bits(f))
}

// IntCoord builds a Coord from a signed 32-bit integer.
func IntCoord(i int32) Coord {
	return Coord(uint32(i)) //nolint:gosec // G115: two's complement round trip is intentional
}

// Real interprets the payload as a single-precision float.
func (c Coord) Real() float32 {
	return math.Float32frombits(uint32(c))
}

// Int interprets the payload as a signed 32-bit integer.
func (c Coord) Int() int32 {
	return int32(uint32(c)) //nolint:gosec // G115: two's complement round trip is intentional
}

// ValueDown narrows d to the nearest float32 not greater than d, so that a
// stored lower bound always contains the requested envelope.
func ValueDown(d float64) float32 {
	f := float32(d)
	if float64(f) > d {
		f = math.Nextafter32(f, float32(math.Inf(-1)))
	}
	return f
}

// ValueUp narrows d to the nearest float32 not less than d, so that a
// stored upper bound always contains the requested envelope.
func ValueUp(d float64) float32 {
	f := float32(d)
	if float64(f) < d {
		f = math.Nextafter32(f, float32(math.Inf(1)))
	}
	return f
}
