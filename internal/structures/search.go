// Copyright (c) 2025 SciGo RTree Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package structures

import "github.com/scigolib/rtree/internal/core"

// Op identifies one constraint operator. The byte values are the ones
// used in the serialized query plan.
type Op byte

// Constraint operators.
const (
	OpEQ    Op = 0x41
	OpLE    Op = 0x42
	OpLT    Op = 0x43
	OpGE    Op = 0x44
	OpGT    Op = 0x45
	OpMatch Op = 0x46
)

// Relation is a geometry callback's verdict on one bounding box.
type Relation int

// Geometry callback results.
const (
	Disjoint Relation = iota
	Overlapping
	Within
)

// Geometry is a per-cursor geometry predicate attached to a MATCH
// constraint. Query receives the widened coordinate vector of a cell.
type Geometry interface {
	Query(coords []float64) (Relation, error)
	Close()
}

// Constraint is one active filter of a running query.
type Constraint struct {
	Op    Op
	Coord int     // zero-based coordinate index (0 = lo0, 1 = hi0, ...)
	Value float64 // comparison operand; unused for MATCH
	Geom  Geometry
}

// Cursor iterates the leaf cells satisfying a constraint list. The node
// it points at is kept pinned between steps.
type Cursor struct {
	tree        *Tree
	node        *Node
	cell        int
	byRowid     bool
	constraints []Constraint
}

// NewCursor builds an unpositioned cursor over the tree.
func (t *Tree) NewCursor() *Cursor {
	return &Cursor{tree: t}
}

// Reset releases the cursor's pinned node and closes any geometry state.
func (c *Cursor) Reset() error {
	err := c.tree.release(c.node)
	c.node = nil
	c.cell = 0
	c.byRowid = false
	for i := range c.constraints {
		if c.constraints[i].Geom != nil {
			c.constraints[i].Geom.Close()
		}
	}
	c.constraints = nil
	return err
}

// EOF reports whether the cursor has run off the end of the result set.
func (c *Cursor) EOF() bool {
	return c.node == nil
}

// Rowid returns the rowid of the current cell.
func (c *Cursor) Rowid() int64 {
	return c.tree.nodeRowid(c.node, c.cell)
}

// Coord returns coordinate j of the current cell.
func (c *Cursor) Coord(j int) core.Coord {
	return c.tree.Shape.CellCoord(c.node.Data, c.cell, j)
}

// SeekRowid positions the cursor on the single cell with the given rowid,
// or at EOF when the rowid is not indexed.
func (c *Cursor) SeekRowid(rowid int64) error {
	if err := c.Reset(); err != nil {
		return err
	}
	c.byRowid = true
	leaf, err := c.tree.findLeafNode(rowid)
	if err != nil || leaf == nil {
		return err
	}
	i, err := c.tree.nodeRowidIndex(leaf, rowid)
	if err != nil {
		_ = c.tree.release(leaf)
		return err
	}
	c.node = leaf
	c.cell = i
	return nil
}

// Seek positions the cursor on the first leaf cell satisfying every
// constraint, or at EOF when there is none.
func (c *Cursor) Seek(constraints []Constraint) error {
	if err := c.Reset(); err != nil {
		return err
	}
	c.constraints = constraints

	root, err := c.tree.acquire(1, nil)
	if err != nil {
		return err
	}
	c.node = root
	eof := true
	count := c.tree.nodeCount(root)
	for i := 0; eof && i < count; i++ {
		c.cell = i
		eof, err = c.descendToCell(c.tree.Depth)
		if err != nil {
			return err
		}
	}
	if eof {
		err = c.tree.release(c.node)
		c.node = nil
	}
	return err
}

// Next advances the cursor to the next matching leaf cell.
func (c *Cursor) Next() error {
	if c.byRowid {
		err := c.tree.release(c.node)
		c.node = nil
		return err
	}
	height := 0
	for c.node != nil {
		node := c.node
		count := c.tree.nodeCount(node)
		for i := c.cell + 1; i < count; i++ {
			c.cell = i
			eof, err := c.descendToCell(height)
			if err != nil {
				return err
			}
			if !eof {
				return nil
			}
		}

		// This node is exhausted; resume scanning its parent's cells.
		if node.Parent == nil {
			err := c.tree.release(node)
			c.node = nil
			return err
		}
		i, err := c.tree.nodeParentIndex(node)
		if err != nil {
			return err
		}
		parent := node.Parent
		parent.nRef++
		if err := c.tree.release(node); err != nil {
			return err
		}
		c.node = parent
		c.cell = i
		height++
	}
	return nil
}

// descendToCell tests the cursor's current cell and, for internal cells
// that survive pruning, descends into the child looking for a matching
// leaf cell. When the whole subtree is filtered out the cursor is put
// back where it was so the caller can continue with the next sibling.
func (c *Cursor) descendToCell(height int) (eof bool, err error) {
	saved, savedCell := c.node, c.cell

	if height > 0 {
		eof, err = c.testCell()
	} else {
		eof, err = c.testEntry()
	}
	if err != nil || eof || height == 0 {
		return eof, err
	}

	child, err := c.tree.acquire(c.tree.nodeRowid(c.node, c.cell), c.node)
	if err != nil {
		return false, err
	}
	if err := c.tree.release(c.node); err != nil {
		_ = c.tree.release(child)
		return false, err
	}
	c.node = child

	eof = true
	count := c.tree.nodeCount(child)
	for i := 0; eof && i < count; i++ {
		c.cell = i
		eof, err = c.descendToCell(height - 1)
		if err != nil {
			return false, err
		}
	}

	if eof {
		saved.nRef++
		if err := c.tree.release(child); err != nil {
			return false, err
		}
		c.node = saved
		c.cell = savedCell
	}
	return eof, nil
}

// testCell prunes an internal cell: a constraint filters the subtree when
// no coordinate inside the cell's range on the constrained dimension can
// satisfy it.
func (c *Cursor) testCell() (bool, error) {
	cell := c.tree.nodeCell(c.node, c.cell)
	s := c.tree.Shape
	for i := range c.constraints {
		p := &c.constraints[i]
		if p.Op == OpMatch {
			rel, err := p.Geom.Query(c.wideCoords(&cell))
			if err != nil {
				return false, err
			}
			if rel == Disjoint {
				return true, nil
			}
			continue
		}
		dim := p.Coord / 2
		lo := s.Wide(cell.Coords[dim*2])
		hi := s.Wide(cell.Coords[dim*2+1])
		var prune bool
		switch p.Op {
		case OpLE, OpLT:
			prune = p.Value < lo
		case OpGE, OpGT:
			prune = p.Value > hi
		case OpEQ:
			prune = p.Value < lo || p.Value > hi
		}
		if prune {
			return true, nil
		}
	}
	return false, nil
}

// testEntry applies the exact constraint tests to a leaf cell.
func (c *Cursor) testEntry() (bool, error) {
	cell := c.tree.nodeCell(c.node, c.cell)
	s := c.tree.Shape
	for i := range c.constraints {
		p := &c.constraints[i]
		if p.Op == OpMatch {
			rel, err := p.Geom.Query(c.wideCoords(&cell))
			if err != nil {
				return false, err
			}
			if rel == Disjoint {
				return true, nil
			}
			continue
		}
		v := s.Wide(cell.Coords[p.Coord])
		var keep bool
		switch p.Op {
		case OpLE:
			keep = v <= p.Value
		case OpLT:
			keep = v < p.Value
		case OpGE:
			keep = v >= p.Value
		case OpGT:
			keep = v > p.Value
		case OpEQ:
			keep = v == p.Value
		}
		if !keep {
			return true, nil
		}
	}
	return false, nil
}

// wideCoords widens the cell's coordinate vector for a geometry callback.
func (c *Cursor) wideCoords(cell *core.Cell) []float64 {
	s := c.tree.Shape
	coords := make([]float64, s.Dims*2)
	for j := range coords {
		coords[j] = s.Wide(cell.Coords[j])
	}
	return coords
}
