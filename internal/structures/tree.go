// Copyright (c) 2025 SciGo RTree Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package structures implements the rtree engine: the ref-counted node
// cache and the insert, delete and search algorithms that run on top of
// the backing store.
package structures

import (
	"github.com/scigolib/rtree/internal/core"
	"github.com/scigolib/rtree/internal/store"
	"github.com/scigolib/rtree/internal/utils"
)

// hashSize is the fixed bucket count of the node cache.
const hashSize = 128

// Node is the in-memory image of one serialized node page.
//
// A node is pinned in the cache while its reference count is positive.
// Each populated Parent slot accounts for exactly one reference on the
// parent node; the chain of parents is what AdjustTree and fixBoundingBox
// walk upward.
type Node struct {
	ID     int64 // node number; zero until first flush
	Parent *Node
	Data   []byte
	nRef   int
	dirty  bool
	next   *Node // hash-bucket chain
}

// Tree owns the node cache and the mutation machinery of one index.
type Tree struct {
	Store    store.Store
	Shape    core.Shape
	NodeSize int
	MaxCell  int // M: capacity of one page
	MinCell  int // m: minimum fill of a non-root page
	Depth    int // valid while the root is cached; -1 otherwise

	hash [hashSize]*Node

	// reinsertHeight guards the forced-reinsert pass: within one top-level
	// insert, each height triggers at most one reinsert.
	reinsertHeight int

	// pending collects nodes removed by the condense step, with the height
	// their cells must be re-inserted at.
	pending []pendingNode

	// ReinsertHook, when set, observes every forced-reinsert invocation.
	ReinsertHook func(height int)
}

type pendingNode struct {
	node   *Node
	height int
}

// NewTree builds the engine for one index instance.
func NewTree(st store.Store, shape core.Shape, nodeSize int) *Tree {
	maxCell := shape.MaxCells(nodeSize)
	return &Tree{
		Store:    st,
		Shape:    shape,
		NodeSize: nodeSize,
		MaxCell:  maxCell,
		MinCell:  maxCell / 3,
		Depth:    -1,
	}
}

// nodeHash folds the eight bytes of a node number into a bucket index.
func nodeHash(id int64) int {
	u := uint64(id) //nolint:gosec // G115: hashing the raw bit pattern
	h := u ^ (u >> 8) ^ (u >> 16) ^ (u >> 24) ^ (u >> 32) ^ (u >> 40) ^ (u >> 48) ^ (u >> 56)
	return int(h % hashSize)
}

func (t *Tree) hashLookup(id int64) *Node {
	for n := t.hash[nodeHash(id)]; n != nil; n = n.next {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (t *Tree) hashInsert(n *Node) {
	i := nodeHash(n.ID)
	n.next = t.hash[i]
	t.hash[i] = n
}

func (t *Tree) hashDelete(n *Node) {
	i := nodeHash(n.ID)
	if t.hash[i] == n {
		t.hash[i] = n.next
		n.next = nil
		return
	}
	for p := t.hash[i]; p != nil; p = p.next {
		if p.next == n {
			p.next = n.next
			n.next = nil
			return
		}
	}
}

// acquire pins the node with the given number, loading its page from the
// backing store on a cache miss. The parent hint, when non-nil, is attached
// (and referenced) if the node does not know its parent yet.
func (t *Tree) acquire(id int64, parent *Node) (*Node, error) {
	if n := t.hashLookup(id); n != nil {
		if parent != nil && n.Parent == nil {
			parent.nRef++
			n.Parent = parent
		}
		n.nRef++
		return n, nil
	}

	data, ok, err := t.Store.ReadNode(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.Corruptf("node %d not found", id)
	}
	if len(data) < t.NodeSize {
		return nil, utils.Corruptf("node %d page truncated", id)
	}

	n := &Node{ID: id, Data: data[:t.NodeSize], nRef: 1}

	if id == 1 {
		t.Depth = core.PageDepth(n.Data)
		if t.Depth > core.MaxDepth {
			return nil, utils.Corruptf("tree depth %d exceeds limit", t.Depth)
		}
	}
	if core.PageCellCount(n.Data) > t.MaxCell {
		return nil, utils.Corruptf("node %d cell count exceeds capacity", id)
	}

	if parent != nil {
		parent.nRef++
		n.Parent = parent
	}
	t.hashInsert(n)
	return n, nil
}

// release unpins a node. When the last reference drops, the parent
// reference is released in turn, a dirty page is flushed, and the node
// leaves the cache.
func (t *Tree) release(n *Node) error {
	if n == nil {
		return nil
	}
	n.nRef--
	if n.nRef > 0 {
		return nil
	}

	if n.ID == 1 {
		t.Depth = -1
	}
	var err error
	if n.Parent != nil {
		err = t.release(n.Parent)
		n.Parent = nil
	}
	if err == nil {
		err = t.write(n)
	}
	t.hashDelete(n)
	return err
}

// newNode creates a zero-filled dirty node with no number assigned yet.
func (t *Tree) newNode(parent *Node) *Node {
	n := &Node{Data: make([]byte, t.NodeSize), nRef: 1, dirty: true}
	if parent != nil {
		parent.nRef++
		n.Parent = parent
	}
	return n
}

// write flushes a dirty page. The first flush of a fresh node obtains its
// node number from the backing store, at which point the node is hashed.
func (t *Tree) write(n *Node) error {
	if !n.dirty {
		return nil
	}
	id, err := t.Store.WriteNode(n.ID, n.Data)
	if err != nil {
		return err
	}
	n.dirty = false
	if n.ID == 0 {
		n.ID = id
		t.hashInsert(n)
	}
	return nil
}

// zero resets a node's page to an empty state.
func (t *Tree) zero(n *Node) {
	for i := range n.Data {
		n.Data[i] = 0
	}
	n.dirty = true
}

// nodeCount returns the number of cells on a node's page.
func (t *Tree) nodeCount(n *Node) int {
	return core.PageCellCount(n.Data)
}

// nodeCell decodes cell i of a node.
func (t *Tree) nodeCell(n *Node, i int) core.Cell {
	return t.Shape.ReadCell(n.Data, i)
}

// nodeRowid reads the rowid of cell i of a node.
func (t *Tree) nodeRowid(n *Node, i int) int64 {
	return t.Shape.CellRowid(n.Data, i)
}

// nodeInsertCell appends a cell to a node. It reports false when the node
// is already at capacity, in which case the page is unchanged.
func (t *Tree) nodeInsertCell(n *Node, c *core.Cell) bool {
	count := t.nodeCount(n)
	if count >= t.MaxCell {
		return false
	}
	t.Shape.WriteCell(n.Data, count, c)
	core.SetPageCellCount(n.Data, count+1)
	n.dirty = true
	return true
}

// nodeOverwriteCell replaces cell i of a node in place.
func (t *Tree) nodeOverwriteCell(n *Node, c *core.Cell, i int) {
	t.Shape.WriteCell(n.Data, i, c)
	n.dirty = true
}

// nodeDeleteCell shift-deletes cell i of a node.
func (t *Tree) nodeDeleteCell(n *Node, i int) {
	t.Shape.DeleteCell(n.Data, i)
	n.dirty = true
}

// nodeRowidIndex locates the cell carrying the given rowid within a node.
func (t *Tree) nodeRowidIndex(n *Node, rowid int64) (int, error) {
	count := t.nodeCount(n)
	for i := 0; i < count; i++ {
		if t.nodeRowid(n, i) == rowid {
			return i, nil
		}
	}
	return 0, utils.Corruptf("rowid %d not present in node %d", rowid, n.ID)
}

// nodeParentIndex locates the cell in n's parent that points at n.
func (t *Tree) nodeParentIndex(n *Node) (int, error) {
	if n.Parent == nil {
		return 0, utils.Corruptf("node %d has no parent", n.ID)
	}
	return t.nodeRowidIndex(n.Parent, n.ID)
}
