// Copyright (c) 2025 SciGo RTree Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package structures

import (
	"github.com/scigolib/rtree/internal/core"
	"github.com/scigolib/rtree/internal/utils"
)

// Delete removes the entry with the given rowid from the tree.
//
// Removal may leave nodes under-full; those are condensed out of the tree
// and their surviving cells re-inserted at their original height. A root
// left with a single child is collapsed into it, shrinking the depth.
// Deleting a rowid that is not indexed is a no-op.
func (t *Tree) Delete(rowid int64) error {
	// The root is held for the whole operation so the depth is known.
	root, err := t.acquire(1, nil)
	if err != nil {
		return err
	}

	leaf, err := t.findLeafNode(rowid)
	if err == nil && leaf != nil {
		var i int
		i, err = t.nodeRowidIndex(leaf, rowid)
		if err == nil {
			err = t.deleteCell(leaf, i, 0)
		}
		if rerr := t.release(leaf); err == nil {
			err = rerr
		}
	}

	if err == nil && leaf != nil {
		err = t.Store.DeleteRowid(rowid)
	}

	// A root with a single child is one level too tall: pull the child's
	// cells up and shrink the tree.
	if err == nil && t.Depth > 0 && t.nodeCount(root) == 1 {
		child, cerr := t.acquire(t.nodeRowid(root, 0), root)
		err = cerr
		if err == nil {
			err = t.removeNode(child, t.Depth-1)
		}
		if rerr := t.release(child); err == nil {
			err = rerr
		}
		if err == nil {
			t.Depth--
			core.SetPageDepth(root.Data, t.Depth)
			root.dirty = true
		}
	}

	// Re-insert the contents of any nodes condensed out of the tree.
	for err == nil && len(t.pending) > 0 {
		p := t.pending[len(t.pending)-1]
		t.pending = t.pending[:len(t.pending)-1]
		err = t.reinsertNodeContent(p.node, p.height)
		p.node.nRef--
	}
	t.pending = t.pending[:0]

	if rerr := t.release(root); err == nil {
		err = rerr
	}
	return err
}

// findLeafNode resolves a rowid to its leaf through the rowid map. A nil
// node (with nil error) means the rowid is not indexed.
func (t *Tree) findLeafNode(rowid int64) (*Node, error) {
	nodeNo, ok, err := t.Store.ReadRowid(rowid)
	if err != nil || !ok {
		return nil, err
	}
	return t.acquire(nodeNo, nil)
}

// deleteCell removes cell i from a node. A non-root node that drops below
// the minimum fill is condensed out of the tree; otherwise the ancestor
// boxes are tightened.
func (t *Tree) deleteCell(n *Node, i, height int) error {
	if err := t.fixLeafParent(n); err != nil {
		return err
	}

	t.nodeDeleteCell(n, i)

	if n.Parent == nil {
		return nil
	}
	if t.nodeCount(n) < t.MinCell {
		return t.removeNode(n, height)
	}
	return t.fixBoundingBox(n)
}

// fixLeafParent populates the ancestor chain of a node from the parent
// map, refusing assignments that would close a reference cycle.
func (t *Tree) fixLeafParent(leaf *Node) error {
	for child := leaf; child.ID != 1 && child.Parent == nil; child = child.Parent {
		parentNo, ok, err := t.Store.ReadParent(child.ID)
		if err != nil {
			return err
		}
		if !ok {
			return utils.Corruptf("node %d has no parent entry", child.ID)
		}
		for test := leaf; test != nil; test = test.Parent {
			if test.ID == parentNo {
				return utils.Corruptf("parent entry of node %d closes a cycle", child.ID)
			}
		}
		parent, err := t.acquire(parentNo, nil)
		if err != nil {
			return err
		}
		child.Parent = parent
	}
	return nil
}

// removeNode detaches an under-full node from the tree: its cell in the
// parent is deleted, its backing rows dropped, and the node itself queued
// for re-insertion of its contents at the given height.
func (t *Tree) removeNode(n *Node, height int) error {
	i, err := t.nodeParentIndex(n)
	if err != nil {
		return err
	}
	parent := n.Parent
	n.Parent = nil
	err = t.deleteCell(parent, i, height+1)
	if rerr := t.release(parent); err == nil {
		err = rerr
	}
	if err != nil {
		return err
	}

	if err := t.Store.DeleteNode(n.ID); err != nil {
		return err
	}
	if err := t.Store.DeleteParent(n.ID); err != nil {
		return err
	}

	t.hashDelete(n)
	n.nRef++
	t.pending = append(t.pending, pendingNode{node: n, height: height})
	return nil
}

// fixBoundingBox rewrites the parent cell of a node to the tight union of
// the node's cells, recursing upward.
func (t *Tree) fixBoundingBox(n *Node) error {
	if n.Parent == nil {
		return nil
	}
	i, err := t.nodeParentIndex(n)
	if err != nil {
		return err
	}
	count := t.nodeCount(n)
	box := t.nodeCell(n, 0)
	for j := 1; j < count; j++ {
		c := t.nodeCell(n, j)
		t.Shape.Union(&box, &c)
	}
	box.ID = n.ID
	t.nodeOverwriteCell(n.Parent, &box, i)
	return t.fixBoundingBox(n.Parent)
}

// reinsertNodeContent feeds every cell of a condensed node back into the
// tree at the height the node was removed from.
func (t *Tree) reinsertNodeContent(n *Node, height int) error {
	count := t.nodeCount(n)
	for i := 0; i < count; i++ {
		cell := t.nodeCell(n, i)
		target, err := t.chooseLeaf(&cell, height)
		if err != nil {
			return err
		}
		err = t.insertCell(target, &cell, height)
		if rerr := t.release(target); err == nil {
			err = rerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
