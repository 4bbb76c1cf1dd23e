// Copyright (c) 2025 SciGo RTree Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package store adapts the three backing tables of an rtree index
// (%_node, %_rowid, %_parent) to the operations the tree engine needs.
// The SQL implementation drives nine prepared statements; tests may use
// the in-memory implementation instead.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/scigolib/rtree/internal/utils"
)

// Store is the backing-table surface the tree engine runs against.
type Store interface {
	// ReadNode returns the serialized page of a node, or ok=false when no
	// such node exists.
	ReadNode(nodeNo int64) (data []byte, ok bool, err error)
	// WriteNode upserts a node page. A nodeNo of zero requests a fresh
	// auto-assigned node number, which is returned.
	WriteNode(nodeNo int64, data []byte) (int64, error)
	// DeleteNode removes a node page.
	DeleteNode(nodeNo int64) error

	// ReadRowid returns the leaf node holding a rowid, or ok=false.
	ReadRowid(rowid int64) (nodeNo int64, ok bool, err error)
	// WriteRowid upserts the rowid-to-leaf mapping.
	WriteRowid(rowid, nodeNo int64) error
	// DeleteRowid removes a rowid mapping.
	DeleteRowid(rowid int64) error
	// NewRowid allocates and returns a fresh auto-assigned rowid.
	NewRowid() (int64, error)

	// ReadParent returns the parent of a node, or ok=false.
	ReadParent(nodeNo int64) (parent int64, ok bool, err error)
	// WriteParent upserts the node-to-parent mapping.
	WriteParent(nodeNo, parent int64) error
	// DeleteParent removes a parent mapping.
	DeleteParent(nodeNo int64) error
}

// SQLStore implements Store over prepared statements on a live database.
type SQLStore struct {
	db *sql.DB

	readNode   *sql.Stmt
	writeNode  *sql.Stmt
	deleteNode *sql.Stmt

	readRowid   *sql.Stmt
	writeRowid  *sql.Stmt
	deleteRowid *sql.Stmt

	readParent   *sql.Stmt
	writeParent  *sql.Stmt
	deleteParent *sql.Stmt
}

// quoteIdent quotes a SQL identifier, doubling embedded quote characters.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableName builds the qualified name of one backing table.
func tableName(dbName, indexName, suffix string) string {
	return quoteIdent(dbName) + "." + quoteIdent(indexName+suffix)
}

// Create creates the three backing tables of a new index and seeds a
// zero-filled root page of the given node size.
func Create(db *sql.DB, dbName, indexName string, nodeSize int) error {
	ddl := []string{
		fmt.Sprintf("CREATE TABLE %s(nodeno INTEGER PRIMARY KEY, data BLOB)",
			tableName(dbName, indexName, "_node")),
		fmt.Sprintf("CREATE TABLE %s(rowid INTEGER PRIMARY KEY, nodeno INTEGER)",
			tableName(dbName, indexName, "_rowid")),
		fmt.Sprintf("CREATE TABLE %s(nodeno INTEGER PRIMARY KEY, parentnode INTEGER)",
			tableName(dbName, indexName, "_parent")),
	}
	for _, q := range ddl {
		if _, err := db.Exec(q); err != nil {
			return utils.WrapError("backing table create failed", err)
		}
	}
	root := make([]byte, nodeSize)
	q := fmt.Sprintf("INSERT INTO %s VALUES(1, ?)", tableName(dbName, indexName, "_node"))
	if _, err := db.Exec(q, root); err != nil {
		return utils.WrapError("root node seed failed", err)
	}
	return nil
}

// Open prepares the nine statements of an existing index. It fails when
// any of the three backing tables does not exist.
func Open(db *sql.DB, dbName, indexName string) (*SQLStore, error) {
	s := &SQLStore{db: db}
	node := tableName(dbName, indexName, "_node")
	rowid := tableName(dbName, indexName, "_rowid")
	parent := tableName(dbName, indexName, "_parent")

	for _, tbl := range []string{node, rowid, parent} {
		rows, err := db.Query(fmt.Sprintf("SELECT 1 FROM %s LIMIT 0", tbl))
		if err != nil {
			return nil, utils.WrapError("backing table missing", err)
		}
		_ = rows.Close()
	}

	stmts := []struct {
		target **sql.Stmt
		query  string
	}{
		{&s.readNode, fmt.Sprintf("SELECT data FROM %s WHERE nodeno = ?", node)},
		{&s.writeNode, fmt.Sprintf("INSERT OR REPLACE INTO %s VALUES(?, ?)", node)},
		{&s.deleteNode, fmt.Sprintf("DELETE FROM %s WHERE nodeno = ?", node)},
		{&s.readRowid, fmt.Sprintf("SELECT nodeno FROM %s WHERE rowid = ?", rowid)},
		{&s.writeRowid, fmt.Sprintf("INSERT OR REPLACE INTO %s VALUES(?, ?)", rowid)},
		{&s.deleteRowid, fmt.Sprintf("DELETE FROM %s WHERE rowid = ?", rowid)},
		{&s.readParent, fmt.Sprintf("SELECT parentnode FROM %s WHERE nodeno = ?", parent)},
		{&s.writeParent, fmt.Sprintf("INSERT OR REPLACE INTO %s VALUES(?, ?)", parent)},
		{&s.deleteParent, fmt.Sprintf("DELETE FROM %s WHERE nodeno = ?", parent)},
	}
	for _, st := range stmts {
		prepared, err := db.Prepare(st.query)
		if err != nil {
			_ = s.Close()
			return nil, utils.WrapError("statement prepare failed", err)
		}
		*st.target = prepared
	}
	return s, nil
}

// Close releases the prepared statements.
func (s *SQLStore) Close() error {
	var firstErr error
	for _, stmt := range []*sql.Stmt{
		s.readNode, s.writeNode, s.deleteNode,
		s.readRowid, s.writeRowid, s.deleteRowid,
		s.readParent, s.writeParent, s.deleteParent,
	} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReadNode implements Store.
func (s *SQLStore) ReadNode(nodeNo int64) ([]byte, bool, error) {
	var data []byte
	err := s.readNode.QueryRow(nodeNo).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, utils.WrapError("node read failed", err)
	}
	return data, true, nil
}

// WriteNode implements Store.
func (s *SQLStore) WriteNode(nodeNo int64, data []byte) (int64, error) {
	var key interface{}
	if nodeNo != 0 {
		key = nodeNo
	}
	res, err := s.writeNode.Exec(key, data)
	if err != nil {
		return 0, utils.WrapError("node write failed", err)
	}
	if nodeNo != 0 {
		return nodeNo, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, utils.WrapError("node number fetch failed", err)
	}
	return id, nil
}

// DeleteNode implements Store.
func (s *SQLStore) DeleteNode(nodeNo int64) error {
	_, err := s.deleteNode.Exec(nodeNo)
	return utils.WrapError("node delete failed", err)
}

// ReadRowid implements Store.
func (s *SQLStore) ReadRowid(rowid int64) (int64, bool, error) {
	var nodeNo int64
	err := s.readRowid.QueryRow(rowid).Scan(&nodeNo)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, utils.WrapError("rowid read failed", err)
	}
	return nodeNo, true, nil
}

// WriteRowid implements Store.
func (s *SQLStore) WriteRowid(rowid, nodeNo int64) error {
	_, err := s.writeRowid.Exec(rowid, nodeNo)
	return utils.WrapError("rowid write failed", err)
}

// DeleteRowid implements Store.
func (s *SQLStore) DeleteRowid(rowid int64) error {
	_, err := s.deleteRowid.Exec(rowid)
	return utils.WrapError("rowid delete failed", err)
}

// NewRowid implements Store.
func (s *SQLStore) NewRowid() (int64, error) {
	res, err := s.writeRowid.Exec(nil, 0)
	if err != nil {
		return 0, utils.WrapError("rowid allocation failed", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, utils.WrapError("rowid allocation failed", err)
	}
	return id, nil
}

// ReadParent implements Store.
func (s *SQLStore) ReadParent(nodeNo int64) (int64, bool, error) {
	var parent int64
	err := s.readParent.QueryRow(nodeNo).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, utils.WrapError("parent read failed", err)
	}
	return parent, true, nil
}

// WriteParent implements Store.
func (s *SQLStore) WriteParent(nodeNo, parent int64) error {
	_, err := s.writeParent.Exec(nodeNo, parent)
	return utils.WrapError("parent write failed", err)
}

// DeleteParent implements Store.
func (s *SQLStore) DeleteParent(nodeNo int64) error {
	_, err := s.deleteParent.Exec(nodeNo)
	return utils.WrapError("parent delete failed", err)
}

// NodeSize reads back the node size of an existing index from the stored
// size of the root page.
func NodeSize(db *sql.DB, dbName, indexName string) (int, error) {
	q := fmt.Sprintf("SELECT length(data) FROM %s WHERE nodeno = 1",
		tableName(dbName, indexName, "_node"))
	var size int
	if err := db.QueryRow(q).Scan(&size); err != nil {
		return 0, utils.WrapError("node size read failed", err)
	}
	return size, nil
}

// PageSize returns the database page size used to derive the node size.
func PageSize(db *sql.DB, dbName string) (int, error) {
	q := fmt.Sprintf("PRAGMA %s.page_size", quoteIdent(dbName))
	var size int
	if err := db.QueryRow(q).Scan(&size); err != nil {
		return 0, utils.WrapError("page size read failed", err)
	}
	return size, nil
}

// Rename moves the three backing tables to a new index name.
func Rename(db *sql.DB, dbName, oldName, newName string) error {
	for _, suffix := range []string{"_node", "_rowid", "_parent"} {
		q := fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
			tableName(dbName, oldName, suffix), quoteIdent(newName+suffix))
		if _, err := db.Exec(q); err != nil {
			return utils.WrapError("backing table rename failed", err)
		}
	}
	return nil
}

// Destroy drops the three backing tables.
func Destroy(db *sql.DB, dbName, indexName string) error {
	for _, suffix := range []string{"_node", "_rowid", "_parent"} {
		q := fmt.Sprintf("DROP TABLE %s", tableName(dbName, indexName, suffix))
		if _, err := db.Exec(q); err != nil {
			return utils.WrapError("backing table drop failed", err)
		}
	}
	return nil
}
