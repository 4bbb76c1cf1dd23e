package store

import "github.com/scigolib/rtree/internal/utils"

// MemStore is an in-memory Store used by engine tests. It mirrors the
// auto-assignment behavior of the SQL implementation.
type MemStore struct {
	Nodes   map[int64][]byte
	Rowids  map[int64]int64
	Parents map[int64]int64

	nextNode  int64
	nextRowid int64

	// FailWrites, when set, makes every mutating operation return an error.
	FailWrites bool
}

// NewMemStore builds a MemStore seeded with a zero-filled root page.
func NewMemStore(nodeSize int) *MemStore {
	m := &MemStore{
		Nodes:     make(map[int64][]byte),
		Rowids:    make(map[int64]int64),
		Parents:   make(map[int64]int64),
		nextNode:  2,
		nextRowid: 1,
	}
	m.Nodes[1] = make([]byte, nodeSize)
	return m
}

func (m *MemStore) failure() error {
	if m.FailWrites {
		return utils.WrapError("memstore", errWriteFailure)
	}
	return nil
}

var errWriteFailure = utils.Corrupt("simulated write failure")

// ReadNode implements Store.
func (m *MemStore) ReadNode(nodeNo int64) ([]byte, bool, error) {
	data, ok := m.Nodes[nodeNo]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true, nil
}

// WriteNode implements Store.
func (m *MemStore) WriteNode(nodeNo int64, data []byte) (int64, error) {
	if err := m.failure(); err != nil {
		return 0, err
	}
	if nodeNo == 0 {
		nodeNo = m.nextNode
		m.nextNode++
	} else if nodeNo >= m.nextNode {
		m.nextNode = nodeNo + 1
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.Nodes[nodeNo] = cp
	return nodeNo, nil
}

// DeleteNode implements Store.
func (m *MemStore) DeleteNode(nodeNo int64) error {
	if err := m.failure(); err != nil {
		return err
	}
	delete(m.Nodes, nodeNo)
	return nil
}

// ReadRowid implements Store.
func (m *MemStore) ReadRowid(rowid int64) (int64, bool, error) {
	nodeNo, ok := m.Rowids[rowid]
	return nodeNo, ok, nil
}

// WriteRowid implements Store.
func (m *MemStore) WriteRowid(rowid, nodeNo int64) error {
	if err := m.failure(); err != nil {
		return err
	}
	if rowid >= m.nextRowid {
		m.nextRowid = rowid + 1
	}
	m.Rowids[rowid] = nodeNo
	return nil
}

// DeleteRowid implements Store.
func (m *MemStore) DeleteRowid(rowid int64) error {
	if err := m.failure(); err != nil {
		return err
	}
	delete(m.Rowids, rowid)
	return nil
}

// NewRowid implements Store.
func (m *MemStore) NewRowid() (int64, error) {
	if err := m.failure(); err != nil {
		return 0, err
	}
	rowid := m.nextRowid
	m.nextRowid++
	m.Rowids[rowid] = 0
	return rowid, nil
}

// ReadParent implements Store.
func (m *MemStore) ReadParent(nodeNo int64) (int64, bool, error) {
	parent, ok := m.Parents[nodeNo]
	return parent, ok, nil
}

// WriteParent implements Store.
func (m *MemStore) WriteParent(nodeNo, parent int64) error {
	if err := m.failure(); err != nil {
		return err
	}
	m.Parents[nodeNo] = parent
	return nil
}

// DeleteParent implements Store.
func (m *MemStore) DeleteParent(nodeNo int64) error {
	if err := m.failure(); err != nil {
		return err
	}
	delete(m.Parents, nodeNo)
	return nil
}
