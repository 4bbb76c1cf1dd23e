// Copyright (c) 2025 SciGo RTree Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package core

import "github.com/scigolib/rtree/internal/utils"

// Node page layout (all scalars big-endian):
//   - [0..2): tree depth. Meaningful only on the root node.
//   - [2..4): number of cells on this page.
//   - [4..):  packed cell records of BytesPerCell bytes each, comprising an
//     int64 rowid followed by 2*Dims coordinates of 4 bytes.

// PageHeaderSize is the fixed prefix before the packed cell array.
const PageHeaderSize = 4

// BytesPerCell returns the serialized size of one cell record.
func (s Shape) BytesPerCell() int {
	return 8 + 8*s.Dims
}

// MaxCells returns the cell capacity M of a page of the given size,
// capped at MaxCellsPerNode.
func (s Shape) MaxCells(nodeSize int) int {
	n := (nodeSize - PageHeaderSize) / s.BytesPerCell()
	if n > MaxCellsPerNode {
		n = MaxCellsPerNode
	}
	return n
}

// PageDepth reads the tree depth stored in the page header.
func PageDepth(data []byte) int {
	return int(utils.ReadUint16(data))
}

// SetPageDepth stores the tree depth in the page header.
func SetPageDepth(data []byte, depth int) {
	utils.WriteUint16(data, uint16(depth)) //nolint:gosec // G115: depth is bounded by MaxDepth
}

// PageCellCount reads the number of cells on the page.
func PageCellCount(data []byte) int {
	return int(utils.ReadUint16(data[2:]))
}

// SetPageCellCount stores the number of cells on the page.
func SetPageCellCount(data []byte, n int) {
	utils.WriteUint16(data[2:], uint16(n)) //nolint:gosec // G115: n is bounded by MaxCellsPerNode
}

// ReadCell decodes cell i from the page.
func (s Shape) ReadCell(data []byte, i int) Cell {
	off := PageHeaderSize + i*s.BytesPerCell()
	var c Cell
	c.ID = utils.ReadInt64(data[off:])
	off += 8
	for j := 0; j < s.Dims*2; j++ {
		c.Coords[j] = Coord(utils.ReadUint32(data[off:]))
		off += 4
	}
	return c
}

// WriteCell encodes the cell into slot i of the page.
func (s Shape) WriteCell(data []byte, i int, c *Cell) {
	off := PageHeaderSize + i*s.BytesPerCell()
	off += utils.WriteInt64(data[off:], c.ID)
	for j := 0; j < s.Dims*2; j++ {
		off += utils.WriteUint32(data[off:], uint32(c.Coords[j]))
	}
}

// CellRowid reads just the rowid of cell i.
func (s Shape) CellRowid(data []byte, i int) int64 {
	return utils.ReadInt64(data[PageHeaderSize+i*s.BytesPerCell():])
}

// CellCoord reads coordinate j of cell i.
func (s Shape) CellCoord(data []byte, i, j int) Coord {
	off := PageHeaderSize + i*s.BytesPerCell() + 8 + j*4
	return Coord(utils.ReadUint32(data[off:]))
}

// DeleteCell shift-deletes cell i and decrements the page's cell count.
func (s Shape) DeleteCell(data []byte, i int) {
	b := s.BytesPerCell()
	n := PageCellCount(data)
	dst := PageHeaderSize + i*b
	src := dst + b
	end := PageHeaderSize + n*b
	copy(data[dst:], data[src:end])
	SetPageCellCount(data, n-1)
}
