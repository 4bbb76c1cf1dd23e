package rtree

import (
	"github.com/scigolib/rtree/internal/structures"
	"github.com/scigolib/rtree/internal/utils"
)

// Cursor iterates the entries a filtered query produces.
type Cursor struct {
	idx *Index
	cur *structures.Cursor
}

// Open creates an unpositioned cursor. Every cursor must be closed; the
// index defers its own teardown while cursors are open.
func (x *Index) Open() *Cursor {
	x.nBusy++
	return &Cursor{idx: x, cur: x.tree.NewCursor()}
}

// Filter positions the cursor according to a plan produced by BestIndex.
// args carries one value per consumed constraint, in Used order: the
// rowid for strategy 1, comparison operands or MATCH blobs for strategy 2.
func (c *Cursor) Filter(plan Plan, args []interface{}) error {
	if plan.Num == 1 {
		if len(args) < 1 {
			return utils.Constraint("missing rowid filter argument")
		}
		rowid, err := toInt64(args[0])
		if err != nil {
			return err
		}
		return c.cur.SeekRowid(rowid)
	}

	n := len(plan.Str) / 2
	if len(args) < n {
		return utils.Constraint("missing filter arguments")
	}
	cons := make([]structures.Constraint, 0, n)
	for i := 0; i < n; i++ {
		op := structures.Op(plan.Str[i*2])
		col := int(plan.Str[i*2+1] - 'a')
		if op == structures.OpMatch {
			blob, ok := args[i].([]byte)
			if !ok {
				return utils.Constraint("match argument is not a blob")
			}
			geom, err := c.idx.registry.deserialize(blob)
			if err != nil {
				return err
			}
			cons = append(cons, structures.Constraint{Op: op, Coord: col, Geom: geomAdapter{geom}})
			continue
		}
		v, err := toFloat64(args[i])
		if err != nil {
			return err
		}
		cons = append(cons, structures.Constraint{Op: op, Coord: col, Value: v})
	}
	return c.cur.Seek(cons)
}

// Next advances to the next matching entry.
func (c *Cursor) Next() error {
	return c.cur.Next()
}

// EOF reports whether the cursor has run off the end of the result set.
func (c *Cursor) EOF() bool {
	return c.cur.EOF()
}

// Rowid returns the rowid of the current entry.
func (c *Cursor) Rowid() int64 {
	return c.cur.Rowid()
}

// Column returns column i of the current entry: the rowid for column 0,
// a coordinate for columns 1..2N (float64 or int64 depending on the
// index coordinate type).
func (c *Cursor) Column(i int) interface{} {
	if i == 0 {
		return c.cur.Rowid()
	}
	coord := c.cur.Coord(i - 1)
	if c.idx.tree.Shape.Type == coordType(Int32) {
		return int64(coord.Int())
	}
	return float64(coord.Real())
}

// Close releases the cursor and any geometry state its constraints hold.
func (c *Cursor) Close() error {
	err := c.cur.Reset()
	if derr := c.idx.decBusy(); err == nil {
		err = derr
	}
	return err
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	}
	return 0, utils.Constraint("filter argument is not numeric")
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	}
	return 0, utils.Constraint("filter argument is not numeric")
}
