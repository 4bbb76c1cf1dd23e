package structures

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/rtree/internal/core"
	"github.com/scigolib/rtree/internal/store"
	"github.com/scigolib/rtree/internal/utils"
)

// newTestTree builds a float engine of the given dimension count over an
// in-memory store. For 1-D, a node size of 112 gives M=6, m=2, small
// enough to force splits quickly.
func newTestTree(dims, nodeSize int) (*Tree, *store.MemStore) {
	ms := store.NewMemStore(nodeSize)
	tr := NewTree(ms, core.Shape{Dims: dims, Type: core.CoordReal32}, nodeSize)
	return tr, ms
}

// leafCell builds a float cell from interleaved (lo, hi) bounds.
func leafCell(id int64, bounds ...float64) core.Cell {
	var c core.Cell
	c.ID = id
	for i, b := range bounds {
		c.Coords[i] = core.RealCoord(float32(b))
	}
	return c
}

// checkInvariants walks the whole tree and asserts the structural
// invariants that must hold between top-level operations: tight parent
// boxes, cell-count bounds, consistent depth and consistent rowid and
// parent maps.
func checkInvariants(t *testing.T, tr *Tree) {
	t.Helper()

	root, err := tr.acquire(1, nil)
	require.NoError(t, err)
	depth := tr.Depth

	leafRowids := make(map[int64]int64)

	var walk func(n *Node, level int)
	walk = func(n *Node, level int) {
		count := tr.nodeCount(n)
		require.LessOrEqual(t, count, tr.MaxCell)
		if n.ID != 1 {
			require.GreaterOrEqual(t, count, tr.MinCell,
				"node %d under-full", n.ID)
		}

		if level == depth {
			for i := 0; i < count; i++ {
				rowid := tr.nodeRowid(n, i)
				_, seen := leafRowids[rowid]
				require.False(t, seen, "rowid %d appears twice", rowid)
				leafRowids[rowid] = n.ID
			}
			return
		}

		require.Greater(t, count, 0, "internal node %d is empty", n.ID)
		for i := 0; i < count; i++ {
			cell := tr.nodeCell(n, i)
			child, err := tr.acquire(cell.ID, n)
			require.NoError(t, err)

			// The cell must be the tight union of the child's cells.
			cc := tr.nodeCount(child)
			require.Greater(t, cc, 0)
			box := tr.nodeCell(child, 0)
			for j := 1; j < cc; j++ {
				c := tr.nodeCell(child, j)
				tr.Shape.Union(&box, &c)
			}
			require.Equal(t, box.Coords, cell.Coords,
				"cell %d of node %d is not tight", i, n.ID)

			parentNo, ok, err := tr.Store.ReadParent(child.ID)
			require.NoError(t, err)
			require.True(t, ok, "node %d missing parent entry", child.ID)
			require.Equal(t, n.ID, parentNo)

			walk(child, level+1)
			require.NoError(t, tr.release(child))
		}
	}
	walk(root, 0)

	for rowid, leaf := range leafRowids {
		nodeNo, ok, err := tr.Store.ReadRowid(rowid)
		require.NoError(t, err)
		require.True(t, ok, "rowid %d missing from rowid map", rowid)
		require.Equal(t, leaf, nodeNo, "rowid %d maps to the wrong leaf", rowid)
	}

	require.NoError(t, tr.release(root))
}

func TestTreeParameters(t *testing.T) {
	tr, _ := newTestTree(1, 112)
	require.Equal(t, 6, tr.MaxCell)
	require.Equal(t, 2, tr.MinCell)
}

func TestNodeHashSpreadsBytes(t *testing.T) {
	require.Equal(t, nodeHash(1), nodeHash(1))
	require.NotEqual(t, nodeHash(1), nodeHash(2))
	// The high bytes fold into the bucket index rather than being dropped.
	require.Equal(t, nodeHash(1), nodeHash(1<<56))
	require.NotEqual(t, nodeHash(0), nodeHash(1<<56))
}

func TestAcquireCachesAndPins(t *testing.T) {
	tr, _ := newTestTree(1, 112)

	a, err := tr.acquire(1, nil)
	require.NoError(t, err)
	b, err := tr.acquire(1, nil)
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, 2, a.nRef)

	require.NoError(t, tr.release(b))
	require.Equal(t, 1, a.nRef)
	require.NoError(t, tr.release(a))
	require.Nil(t, tr.hashLookup(1))
}

func TestAcquireMissingNodeIsCorrupt(t *testing.T) {
	tr, _ := newTestTree(1, 112)
	_, err := tr.acquire(99, nil)
	require.ErrorIs(t, err, utils.ErrCorrupt)
}

func TestAcquireRejectsExcessiveDepth(t *testing.T) {
	tr, ms := newTestTree(1, 112)
	core.SetPageDepth(ms.Nodes[1], core.MaxDepth+1)
	_, err := tr.acquire(1, nil)
	require.ErrorIs(t, err, utils.ErrCorrupt)
}

func TestAcquireRejectsOversizedCellCount(t *testing.T) {
	tr, ms := newTestTree(1, 112)
	core.SetPageCellCount(ms.Nodes[1], tr.MaxCell+1)
	_, err := tr.acquire(1, nil)
	require.ErrorIs(t, err, utils.ErrCorrupt)
}

func TestReleaseFlushesDirtyNode(t *testing.T) {
	tr, ms := newTestTree(1, 112)

	root, err := tr.acquire(1, nil)
	require.NoError(t, err)
	cell := leafCell(42, 1, 2)
	require.True(t, tr.nodeInsertCell(root, &cell))
	require.NoError(t, tr.release(root))

	require.Equal(t, 1, core.PageCellCount(ms.Nodes[1]))
}

func TestNewNodeFlushAssignsNumber(t *testing.T) {
	tr, ms := newTestTree(1, 112)

	n := tr.newNode(nil)
	require.Equal(t, int64(0), n.ID)
	cell := leafCell(7, 0, 1)
	require.True(t, tr.nodeInsertCell(n, &cell))

	require.NoError(t, tr.write(n))
	require.GreaterOrEqual(t, n.ID, int64(2))
	require.Same(t, n, tr.hashLookup(n.ID))
	require.Equal(t, 1, core.PageCellCount(ms.Nodes[n.ID]))

	require.NoError(t, tr.release(n))
}

func TestNodeInsertCellReportsFull(t *testing.T) {
	tr, _ := newTestTree(1, 112)
	root, err := tr.acquire(1, nil)
	require.NoError(t, err)

	for i := 0; i < tr.MaxCell; i++ {
		cell := leafCell(int64(i+1), float64(i), float64(i)+0.5)
		require.True(t, tr.nodeInsertCell(root, &cell))
	}
	overflow := leafCell(99, 0, 1)
	require.False(t, tr.nodeInsertCell(root, &overflow))
	require.Equal(t, tr.MaxCell, tr.nodeCount(root))

	require.NoError(t, tr.release(root))
}
