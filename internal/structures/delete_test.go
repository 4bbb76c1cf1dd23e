package structures

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/rtree/internal/core"
	"github.com/scigolib/rtree/internal/utils"
)

func TestDeleteFromRootLeaf(t *testing.T) {
	tr, ms := newTestTree(1, 112)
	insertRange(t, tr, 3)

	require.NoError(t, tr.Delete(2))

	root, err := tr.acquire(1, nil)
	require.NoError(t, err)
	require.Equal(t, 2, tr.nodeCount(root))
	require.NoError(t, tr.release(root))

	_, ok, err := ms.ReadRowid(2)
	require.NoError(t, err)
	require.False(t, ok)
	checkInvariants(t, tr)
}

func TestDeleteMissingRowidIsNoop(t *testing.T) {
	tr, ms := newTestTree(1, 112)
	insertRange(t, tr, 3)

	before := core.PageCellCount(ms.Nodes[1])
	require.NoError(t, tr.Delete(99))
	require.Equal(t, before, core.PageCellCount(ms.Nodes[1]))
}

func TestDeleteCondensesUnderfullLeaf(t *testing.T) {
	tr, ms := newTestTree(1, 112)
	insertRange(t, tr, 7) // depth 1, two leaves

	// Shrinking one leaf below the minimum fill condenses it away; the
	// root is left with a single child and collapses into it.
	require.NoError(t, tr.Delete(1))

	root, err := tr.acquire(1, nil)
	require.NoError(t, err)
	require.Equal(t, 0, tr.Depth)
	require.Equal(t, 6, tr.nodeCount(root))

	seen := map[int64]bool{}
	for i := 0; i < 6; i++ {
		seen[tr.nodeRowid(root, i)] = true
	}
	require.NoError(t, tr.release(root))
	for id := int64(2); id <= 7; id++ {
		require.True(t, seen[id], "rowid %d lost during condense", id)
	}

	// Every auxiliary row of the removed level is gone.
	require.Empty(t, ms.Parents)
	require.Len(t, ms.Nodes, 1)
	checkInvariants(t, tr)
}

func TestDeleteEverything(t *testing.T) {
	tr, ms := newTestTree(1, 112)
	insertRange(t, tr, 7)

	for id := int64(1); id <= 7; id++ {
		require.NoError(t, tr.Delete(id))
		checkInvariants(t, tr)
	}

	root, err := tr.acquire(1, nil)
	require.NoError(t, err)
	require.Equal(t, 0, tr.Depth)
	require.Equal(t, 0, tr.nodeCount(root))
	require.NoError(t, tr.release(root))
	require.Empty(t, ms.Rowids)
	require.Empty(t, ms.Parents)
}

func TestDeleteInterleavedWithInserts(t *testing.T) {
	tr, _ := newTestTree(1, 112)
	for i := 1; i <= 60; i++ {
		cell := leafCell(int64(i), float64(i), float64(i)+2)
		require.NoError(t, tr.Insert(&cell))
		if i%3 == 0 {
			require.NoError(t, tr.Delete(int64(i-1)))
		}
	}
	checkInvariants(t, tr)
}

func TestDeleteRefusesParentCycle(t *testing.T) {
	tr, ms := newTestTree(1, 112)
	insertRange(t, tr, 7) // depth 1, two leaves

	// Corrupt the parent map: one leaf claims to be its own parent.
	leafNo, ok, err := ms.ReadRowid(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, ms.WriteParent(leafNo, leafNo))

	nodesBefore := len(ms.Nodes)
	dataBefore := append([]byte(nil), ms.Nodes[leafNo]...)

	err = tr.Delete(7)
	require.ErrorIs(t, err, utils.ErrCorrupt)

	// The failed operation must not have touched the node table.
	require.Len(t, ms.Nodes, nodesBefore)
	require.Equal(t, dataBefore, ms.Nodes[leafNo])
}

func TestDeleteMissingParentEntryIsCorrupt(t *testing.T) {
	tr, ms := newTestTree(1, 112)
	insertRange(t, tr, 7)

	leafNo, ok, err := ms.ReadRowid(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, ms.DeleteParent(leafNo))

	require.ErrorIs(t, tr.Delete(7), utils.ErrCorrupt)
}
