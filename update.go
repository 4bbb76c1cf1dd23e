package rtree

import (
	"github.com/scigolib/rtree/internal/core"
	"github.com/scigolib/rtree/internal/utils"
)

// Conflict selects what happens when an insert collides with an already
// indexed rowid.
type Conflict int

const (
	// Abort rejects the insert with a constraint error.
	Abort Conflict = iota
	// Replace deletes the existing entry first.
	Replace
)

// Insert indexes a new entry under a fresh auto-assigned rowid. coords
// holds 2N values interleaved as (lo0, hi0, lo1, hi1, ...).
func (x *Index) Insert(coords []float64) (int64, error) {
	return x.update(nil, nil, coords, Abort)
}

// InsertRowid indexes a new entry under an explicit rowid.
func (x *Index) InsertRowid(rowid int64, coords []float64, onConflict Conflict) error {
	_, err := x.update(nil, &rowid, coords, onConflict)
	return err
}

// Delete removes the entry with the given rowid. Deleting a rowid that is
// not indexed is a no-op.
func (x *Index) Delete(rowid int64) error {
	_, err := x.update(&rowid, nil, nil, Abort)
	return err
}

// Update replaces the entry oldRowid with a new entry newRowid carrying
// the given coordinates. The rowids may differ.
func (x *Index) Update(oldRowid, newRowid int64, coords []float64, onConflict Conflict) error {
	_, err := x.update(&oldRowid, &newRowid, coords, onConflict)
	return err
}

// update is the single mutation entry point: a delete when coords is nil,
// otherwise an insert, optionally preceded by the removal of an existing
// entry. The coordinate envelope is validated (and, for float indexes,
// widened to the nearest representable bounds) before anything is
// touched, so a rejected call leaves the backing tables unchanged.
func (x *Index) update(oldRowid, newRowid *int64, coords []float64, onConflict Conflict) (int64, error) {
	t := x.tree
	var cell core.Cell

	if coords != nil {
		if len(coords) != t.Shape.Dims*2 {
			return 0, utils.Constraint("wrong number of coordinates")
		}
		if t.Shape.Type == core.CoordReal32 {
			for d := 0; d < t.Shape.Dims; d++ {
				lo := core.ValueDown(coords[d*2])
				hi := core.ValueUp(coords[d*2+1])
				if hi < lo {
					return 0, utils.Constraint("coordinate range is inverted")
				}
				cell.Coords[d*2] = core.RealCoord(lo)
				cell.Coords[d*2+1] = core.RealCoord(hi)
			}
		} else {
			for d := 0; d < t.Shape.Dims; d++ {
				lo := int32(coords[d*2])
				hi := int32(coords[d*2+1])
				if hi < lo {
					return 0, utils.Constraint("coordinate range is inverted")
				}
				cell.Coords[d*2] = core.IntCoord(lo)
				cell.Coords[d*2+1] = core.IntCoord(hi)
			}
		}

		if newRowid != nil {
			cell.ID = *newRowid
			if oldRowid == nil || *oldRowid != cell.ID {
				_, exists, err := t.Store.ReadRowid(cell.ID)
				if err != nil {
					return 0, err
				}
				if exists {
					if onConflict != Replace {
						return 0, utils.Constraint("rowid already indexed")
					}
					if err := t.Delete(cell.ID); err != nil {
						return 0, err
					}
				}
			}
		}
	}

	if oldRowid != nil {
		if err := t.Delete(*oldRowid); err != nil {
			return 0, err
		}
	}

	if coords != nil {
		if newRowid == nil {
			id, err := t.Store.NewRowid()
			if err != nil {
				return 0, err
			}
			cell.ID = id
		}
		if err := t.Insert(&cell); err != nil {
			return 0, err
		}
	}
	return cell.ID, nil
}
