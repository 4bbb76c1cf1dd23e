// Copyright (c) 2025 SciGo RTree Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package structures

import (
	"sort"

	"github.com/scigolib/rtree/internal/core"
)

// Insert adds a leaf cell to the tree. The caller supplies a fully built
// cell (rowid plus rounded coordinates); the rowid mapping is maintained
// as part of the descent.
func (t *Tree) Insert(cell *core.Cell) error {
	t.reinsertHeight = -1
	leaf, err := t.chooseLeaf(cell, 0)
	if err != nil {
		return err
	}
	err = t.insertCell(leaf, cell, 0)
	if rerr := t.release(leaf); err == nil {
		err = rerr
	}
	return err
}

// chooseLeaf descends from the root to the node at the requested height
// that should receive the cell.
//
// At the level whose children are leaves the subtree is chosen by minimum
// overlap enlargement against its siblings (ties broken by area growth,
// then by smaller area). At every other level minimum area growth decides,
// with the smaller current area breaking ties.
func (t *Tree) chooseLeaf(cell *core.Cell, height int) (*Node, error) {
	node, err := t.acquire(1, nil)
	if err != nil {
		return nil, err
	}

	for level := 0; level < t.Depth-height; level++ {
		count := t.nodeCount(node)

		// Sibling boxes are only needed for the overlap criterion.
		var siblings []core.Cell
		if level == t.Depth-1 {
			siblings = make([]core.Cell, count)
			for i := 0; i < count; i++ {
				siblings[i] = t.nodeCell(node, i)
			}
		}

		var best int64
		var minGrowth, minArea, minOverlap float64
		for i := 0; i < count; i++ {
			c := t.nodeCell(node, i)
			growth := t.Shape.Growth(&c, cell)
			area := t.Shape.Area(&c)
			overlap := 0.0
			if siblings != nil {
				overlap = t.Shape.OverlapEnlargement(&c, cell, siblings, i)
			}
			if i == 0 ||
				overlap < minOverlap ||
				(overlap == minOverlap && growth < minGrowth) ||
				(overlap == minOverlap && growth == minGrowth && area < minArea) {
				minOverlap = overlap
				minGrowth = growth
				minArea = area
				best = c.ID
			}
		}

		child, err := t.acquire(best, node)
		rerr := t.release(node)
		if err != nil {
			return nil, err
		}
		if rerr != nil {
			_ = t.release(child)
			return nil, rerr
		}
		node = child
	}
	return node, nil
}

// insertCell places a cell into a node at the given height, splitting or
// force-reinserting on overflow. On success the rowid map (leaf cells) or
// parent map (internal cells) is updated and ancestor boxes are adjusted.
func (t *Tree) insertCell(n *Node, cell *core.Cell, height int) error {
	if height > 0 {
		// The cell points at a child node. If that child is cached, its
		// parent pointer must follow the cell to the new owner.
		if child := t.hashLookup(cell.ID); child != nil {
			if err := t.release(child.Parent); err != nil {
				return err
			}
			n.nRef++
			child.Parent = n
		}
	}

	if !t.nodeInsertCell(n, cell) {
		if height <= t.reinsertHeight || n.ID == 1 {
			return t.splitNode(n, cell, height)
		}
		t.reinsertHeight = height
		return t.reinsert(n, cell, height)
	}

	if err := t.adjustTree(n, cell); err != nil {
		return err
	}
	return t.writeMapping(cell.ID, n, height)
}

// writeMapping records which node now holds the given rowid: the rowid map
// for leaf entries, the parent map for child pointers.
func (t *Tree) writeMapping(rowid int64, n *Node, height int) error {
	if height == 0 {
		return t.Store.WriteRowid(rowid, n.ID)
	}
	return t.Store.WriteParent(rowid, n.ID)
}

// updateMapping is writeMapping plus the cache fixup for internal cells:
// a cached child re-homed by a split or reinsert has its parent pointer
// moved to the new owner.
func (t *Tree) updateMapping(rowid int64, n *Node, height int) error {
	if height > 0 {
		if child := t.hashLookup(rowid); child != nil {
			if err := t.release(child.Parent); err != nil {
				return err
			}
			n.nRef++
			child.Parent = n
		}
	}
	return t.writeMapping(rowid, n, height)
}

// adjustTree widens ancestor bounding boxes to cover a newly placed cell.
// The walk continues to the root; each ancestor cell is only rewritten
// when it does not already contain the new cell.
func (t *Tree) adjustTree(n *Node, cell *core.Cell) error {
	for p := n; p.Parent != nil; p = p.Parent {
		i, err := t.nodeParentIndex(p)
		if err != nil {
			return err
		}
		box := t.nodeCell(p.Parent, i)
		if !t.Shape.Contains(&box, cell) {
			t.Shape.Union(&box, cell)
			t.nodeOverwriteCell(p.Parent, &box, i)
		}
	}
	return nil
}

// reinsert implements the forced-reinsert overflow treatment: the cells
// farthest from the node's centroid are pulled out and re-inserted from
// the root at the same height, which tends to defer splits and tighten
// the tree. It runs at most once per height per top-level insert and is
// never applied to the root.
func (t *Tree) reinsert(n *Node, cell *core.Cell, height int) error {
	if t.ReinsertHook != nil {
		t.ReinsertHook(height)
	}

	count := t.nodeCount(n)
	cells := make([]core.Cell, count+1)
	for i := 0; i < count; i++ {
		cells[i] = t.nodeCell(n, i)
	}
	cells[count] = *cell
	count++

	// Centroid of all cell centers, per dimension.
	var center [core.MaxDims]float64
	for i := range cells {
		for d := 0; d < t.Shape.Dims; d++ {
			center[d] += t.Shape.Wide(cells[i].Coords[d*2])
			center[d] += t.Shape.Wide(cells[i].Coords[d*2+1])
		}
	}
	for d := 0; d < t.Shape.Dims; d++ {
		center[d] /= float64(count) * 2
	}

	distance := make([]float64, count)
	for i := range cells {
		for d := 0; d < t.Shape.Dims; d++ {
			mid := (t.Shape.Wide(cells[i].Coords[d*2]) + t.Shape.Wide(cells[i].Coords[d*2+1])) / 2
			distance[i] += (mid - center[d]) * (mid - center[d])
		}
	}

	order := make([]int, count)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return distance[order[a]] < distance[order[b]]
	})

	// The nearest cells stay; the node is rebuilt around them.
	keep := count - t.MinCell
	t.zero(n)
	for i := 0; i < keep; i++ {
		c := &cells[order[i]]
		t.nodeInsertCell(n, c)
		if c.ID == cell.ID {
			if err := t.writeMapping(c.ID, n, height); err != nil {
				return err
			}
		}
	}
	if err := t.fixBoundingBox(n); err != nil {
		return err
	}

	// The farthest cells re-enter the tree from the top.
	for i := keep; i < count; i++ {
		c := &cells[order[i]]
		target, err := t.chooseLeaf(c, height)
		if err != nil {
			return err
		}
		err = t.insertCell(target, c, height)
		if rerr := t.release(target); err == nil {
			err = rerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// splitNode divides an overfull node's cells (plus the incoming cell)
// between two siblings using the margin/overlap driven split:
//
//  1. For each dimension, order the cells by (lo, hi) and evaluate every
//     legal split position, accumulating the margin sum and tracking the
//     position with the least overlap (ties: least combined area).
//  2. Split along the dimension with the minimum margin sum at its best
//     position.
//
// Splitting the root allocates two fresh children and deepens the tree;
// any other node is reused as the left sibling.
func (t *Tree) splitNode(n *Node, cell *core.Cell, height int) error {
	count := t.nodeCount(n)
	cells := make([]core.Cell, count+1)
	for i := 0; i < count; i++ {
		cells[i] = t.nodeCell(n, i)
	}
	cells[count] = *cell
	count++

	t.zero(n)

	var left, right *Node
	if n.ID == 1 {
		left = t.newNode(n)
		right = t.newNode(n)
		t.Depth++
		core.SetPageDepth(n.Data, t.Depth)
		n.dirty = true
	} else {
		left = n
		left.nRef++
		right = t.newNode(n.Parent)
	}

	splitIdx, dim := t.pickSplit(cells)

	order := sortedByDimension(t.Shape, cells, dim)
	boxLeft := cells[order[0]]
	boxRight := cells[order[splitIdx]]
	for i, idx := range order {
		target, box := left, &boxLeft
		if i >= splitIdx {
			target, box = right, &boxRight
		}
		t.nodeInsertCell(target, &cells[idx])
		t.Shape.Union(box, &cells[idx])
	}

	err := t.write(right)
	if err == nil {
		err = t.write(left)
	}
	if err != nil {
		t.releasePair(left, right)
		return err
	}
	boxLeft.ID = left.ID
	boxRight.ID = right.ID

	if n.ID == 1 {
		err = t.insertCell(left.Parent, &boxLeft, height+1)
	} else {
		parent := left.Parent
		var i int
		i, err = t.nodeParentIndex(left)
		if err == nil {
			t.nodeOverwriteCell(parent, &boxLeft, i)
			err = t.adjustTree(parent, &boxLeft)
		}
	}
	if err == nil {
		err = t.insertCell(right.Parent, &boxRight, height+1)
	}
	if err != nil {
		t.releasePair(left, right)
		return err
	}

	newCellIsRight := false
	rightCount := t.nodeCount(right)
	for i := 0; i < rightCount && err == nil; i++ {
		rowid := t.nodeRowid(right, i)
		if rowid == cell.ID {
			newCellIsRight = true
		}
		err = t.updateMapping(rowid, right, height)
	}
	if err == nil && n.ID == 1 {
		leftCount := t.nodeCount(left)
		for i := 0; i < leftCount && err == nil; i++ {
			err = t.updateMapping(t.nodeRowid(left, i), left, height)
		}
	} else if err == nil && !newCellIsRight {
		err = t.updateMapping(cell.ID, left, height)
	}
	if err != nil {
		t.releasePair(left, right)
		return err
	}

	if err = t.release(right); err == nil {
		err = t.release(left)
	}
	return err
}

func (t *Tree) releasePair(left, right *Node) {
	_ = t.release(left)
	_ = t.release(right)
}

// pickSplit evaluates every dimension and legal split position over the
// cells and returns the chosen position and dimension.
func (t *Tree) pickSplit(cells []core.Cell) (splitIdx, dim int) {
	count := len(cells)
	bestMargin := 0.0

	for d := 0; d < t.Shape.Dims; d++ {
		order := sortedByDimension(t.Shape, cells, d)

		margin := 0.0
		bestOverlap, bestArea := 0.0, 0.0
		bestLeft := t.MinCell
		for nLeft := t.MinCell; nLeft <= count-t.MinCell; nLeft++ {
			left := cells[order[0]]
			right := cells[order[count-1]]
			for k := 1; k < count-1; k++ {
				if k < nLeft {
					t.Shape.Union(&left, &cells[order[k]])
				} else {
					t.Shape.Union(&right, &cells[order[k]])
				}
			}
			margin += t.Shape.Margin(&left)
			margin += t.Shape.Margin(&right)
			overlap := t.Shape.Overlap(&left, []core.Cell{right}, -1)
			area := t.Shape.Area(&left) + t.Shape.Area(&right)
			if nLeft == t.MinCell ||
				overlap < bestOverlap ||
				(overlap == bestOverlap && area < bestArea) {
				bestLeft = nLeft
				bestOverlap = overlap
				bestArea = area
			}
		}

		if d == 0 || margin < bestMargin {
			bestMargin = margin
			splitIdx = bestLeft
			dim = d
		}
	}
	return splitIdx, dim
}

// sortedByDimension returns cell indices ordered by (lo, hi) along one
// dimension.
func sortedByDimension(s core.Shape, cells []core.Cell, dim int) []int {
	order := make([]int, len(cells))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		la := s.Wide(cells[order[a]].Coords[dim*2])
		lb := s.Wide(cells[order[b]].Coords[dim*2])
		if la != lb {
			return la < lb
		}
		return s.Wide(cells[order[a]].Coords[dim*2+1]) < s.Wide(cells[order[b]].Coords[dim*2+1])
	})
	return order
}
