// Package rtree provides a pure Go R*-tree spatial index backed by three
// shadow tables in a relational database. It maps N-dimensional bounding
// boxes (1 to 5 dimensions, float or integer coordinates) to 64-bit
// rowids and supports range queries, custom geometry predicates and
// direct rowid lookup.
package rtree

import (
	"database/sql"
	"strings"

	"github.com/scigolib/rtree/internal/core"
	"github.com/scigolib/rtree/internal/store"
	"github.com/scigolib/rtree/internal/structures"
	"github.com/scigolib/rtree/internal/utils"
)

// CoordType selects the stored coordinate representation of an index.
type CoordType int

const (
	// Real32 stores coordinates as 32-bit floats (the default).
	Real32 CoordType = iota
	// Int32 stores coordinates as signed 32-bit integers.
	Int32
)

// Option configures Create and Connect.
type Option func(*options)

type options struct {
	coordType CoordType
	registry  *Registry
	pageSize  int
}

// WithCoordType selects the coordinate representation. It must be the
// same on Create and every later Connect of the index.
func WithCoordType(t CoordType) Option {
	return func(o *options) { o.coordType = t }
}

// WithRegistry attaches a geometry predicate registry used to resolve
// MATCH constraints.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithPageSize overrides the database page size used to derive the node
// size on Create. Useful for tests; ignored by Connect.
func WithPageSize(size int) Option {
	return func(o *options) { o.pageSize = size }
}

// Index is one open rtree index instance.
type Index struct {
	db       *sql.DB
	store    *store.SQLStore
	tree     *structures.Tree
	registry *Registry

	dbName  string
	name    string
	columns []string

	// nBusy counts the instance itself plus its open cursors; teardown
	// happens when it reaches zero.
	nBusy int
}

// Column-count validation errors, reported by Create and Connect.
var (
	errTooFewColumns  = utils.Constraint("Too few columns for an rtree table")
	errTooManyColumns = utils.Constraint("Too many columns for an rtree table")
	errWrongColumns   = utils.Constraint("Wrong number of columns for an rtree table")
)

// checkColumns validates the declared column list: one rowid alias plus
// an even number (2, 4, ... 10) of coordinate columns.
func checkColumns(columns []string) (dims int, err error) {
	argc := len(columns) + 3 // module, database and table slots
	switch {
	case argc < 6:
		return 0, errTooFewColumns
	case argc > core.MaxDims*2+4:
		return 0, errTooManyColumns
	case argc%2 != 0:
		return 0, errWrongColumns
	}
	return (len(columns) - 1) / 2, nil
}

// Create builds a new index: the three backing tables are created in the
// named database, a zero-filled root page is seeded, and the instance is
// opened. columns names the rowid alias followed by the 2N coordinate
// columns (lo, hi per dimension).
func Create(db *sql.DB, dbName, name string, columns []string, opts ...Option) (*Index, error) {
	o := applyOptions(opts)
	dims, err := checkColumns(columns)
	if err != nil {
		return nil, err
	}

	pageSize := o.pageSize
	if pageSize == 0 {
		pageSize, err = store.PageSize(db, dbName)
		if err != nil {
			return nil, err
		}
	}
	shape := core.Shape{Dims: dims, Type: coordType(o.coordType)}
	nodeSize := pageSize - 64
	if limit := core.PageHeaderSize + core.MaxCellsPerNode*shape.BytesPerCell(); nodeSize > limit {
		nodeSize = limit
	}
	if nodeSize < core.MinNodeSize {
		nodeSize = core.MinNodeSize
	}

	if err := store.Create(db, dbName, name, nodeSize); err != nil {
		return nil, err
	}
	return open(db, dbName, name, columns, shape, nodeSize, o)
}

// Connect opens an existing index, re-deriving the node size from the
// stored root page.
func Connect(db *sql.DB, dbName, name string, columns []string, opts ...Option) (*Index, error) {
	o := applyOptions(opts)
	dims, err := checkColumns(columns)
	if err != nil {
		return nil, err
	}
	nodeSize, err := store.NodeSize(db, dbName, name)
	if err != nil {
		return nil, err
	}
	shape := core.Shape{Dims: dims, Type: coordType(o.coordType)}
	return open(db, dbName, name, columns, shape, nodeSize, o)
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func coordType(t CoordType) core.CoordType {
	if t == Int32 {
		return core.CoordInt32
	}
	return core.CoordReal32
}

func open(db *sql.DB, dbName, name string, columns []string, shape core.Shape, nodeSize int, o *options) (*Index, error) {
	st, err := store.Open(db, dbName, name)
	if err != nil {
		return nil, err
	}
	registry := o.registry
	if registry == nil {
		registry = NewRegistry()
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Index{
		db:       db,
		store:    st,
		tree:     structures.NewTree(st, shape, nodeSize),
		registry: registry,
		dbName:   dbName,
		name:     name,
		columns:  cols,
		nBusy:    1,
	}, nil
}

// Schema returns the virtual-table declaration the host should use for
// this index: the rowid alias followed by the coordinate columns.
func (x *Index) Schema() string {
	return "CREATE TABLE x(" + strings.Join(x.columns, ",") + ")"
}

// Registry returns the geometry predicate registry of this index.
func (x *Index) Registry() *Registry {
	return x.registry
}

// Dims returns the dimension count of the index.
func (x *Index) Dims() int {
	return x.tree.Shape.Dims
}

// Rename moves the three backing tables to a new index name. The
// prepared statements are rebuilt against the new names.
func (x *Index) Rename(newName string) error {
	if err := store.Rename(x.db, x.dbName, x.name, newName); err != nil {
		return err
	}
	if err := x.store.Close(); err != nil {
		return err
	}
	st, err := store.Open(x.db, x.dbName, newName)
	if err != nil {
		return err
	}
	x.store = st
	x.tree.Store = st
	x.name = newName
	return nil
}

// Destroy drops the three backing tables. The instance must still be
// closed afterwards.
func (x *Index) Destroy() error {
	return store.Destroy(x.db, x.dbName, x.name)
}

// Close releases the instance. Teardown of the prepared statements is
// deferred until every open cursor has been closed as well.
func (x *Index) Close() error {
	return x.decBusy()
}

func (x *Index) decBusy() error {
	x.nBusy--
	if x.nBusy > 0 {
		return nil
	}
	return x.store.Close()
}
