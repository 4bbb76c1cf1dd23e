// Copyright (c) 2025 SciGo RTree Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package rtree

import (
	"math"

	"github.com/scigolib/rtree/internal/structures"
	"github.com/scigolib/rtree/internal/utils"
)

// Relation is a geometry predicate's verdict on one bounding box.
type Relation int

// Geometry predicate results. Disjoint prunes the box (and every entry
// below it); the other two keep it.
const (
	Disjoint Relation = iota
	Overlapping
	Within
)

// Geometry is the per-cursor state of one MATCH predicate. Query receives
// the widened coordinate vector (lo0, hi0, ...) of the box under test;
// Close is invoked when the owning cursor is closed or re-filtered.
type Geometry interface {
	Query(coords []float64) (Relation, error)
	Close()
}

// GeometryFactory builds the per-cursor state of a registered predicate
// from the parameters carried by the match blob.
type GeometryFactory func(params []float64) (Geometry, error)

// Match blob layout: a magic word, the 8-byte registration handle and an
// 8-byte context slot written as zero (together the width of the
// original's callback/context pointer pair), the parameter count, then
// the wide parameters. All fields big-endian.
const (
	matchMagic      = 0x891245AB
	matchHeaderSize = 4 + 8 + 8 + 4
)

// Registry resolves MATCH constraints to registered geometry predicates.
type Registry struct {
	names   map[string]uint64
	entries map[uint64]GeometryFactory
	next    uint64
}

// NewRegistry creates an empty predicate registry.
func NewRegistry() *Registry {
	return &Registry{
		names:   make(map[string]uint64),
		entries: make(map[uint64]GeometryFactory),
		next:    1,
	}
}

// Register installs a geometry predicate under a name. Re-registering a
// name replaces the previous predicate for blobs built afterwards.
func (r *Registry) Register(name string, factory GeometryFactory) {
	handle := r.next
	r.next++
	r.names[name] = handle
	r.entries[handle] = factory
}

// MatchBlob serializes a MATCH right-hand side for a registered predicate
// with the given parameters. The blob is what a host passes back through
// Filter for a MATCH constraint.
func (r *Registry) MatchBlob(name string, params ...float64) ([]byte, error) {
	handle, ok := r.names[name]
	if !ok {
		return nil, utils.Constraint("unknown geometry predicate " + name)
	}
	blob := make([]byte, matchHeaderSize+8*len(params))
	off := utils.WriteUint32(blob, matchMagic)
	off += utils.WriteUint64(blob[off:], handle)
	off += utils.WriteUint64(blob[off:], 0) // context travels inside the factory
	off += utils.WriteUint32(blob[off:], uint32(len(params))) //nolint:gosec // G115: parameter counts are small
	for _, p := range params {
		off += utils.WriteUint64(blob[off:], math.Float64bits(p))
	}
	return blob, nil
}

// deserialize validates a match blob and builds the per-cursor geometry
// state it describes.
func (r *Registry) deserialize(blob []byte) (Geometry, error) {
	if len(blob) < matchHeaderSize {
		return nil, utils.Constraint("match blob too short")
	}
	if utils.ReadUint32(blob) != matchMagic {
		return nil, utils.Constraint("match blob has wrong magic")
	}
	handle := utils.ReadUint64(blob[4:])
	nParam := int(utils.ReadUint32(blob[20:]))
	if len(blob) != matchHeaderSize+8*nParam {
		return nil, utils.Constraint("match blob has wrong size")
	}
	factory, ok := r.entries[handle]
	if !ok {
		return nil, utils.Constraint("match blob names an unregistered predicate")
	}
	params := make([]float64, nParam)
	for i := range params {
		params[i] = math.Float64frombits(utils.ReadUint64(blob[matchHeaderSize+8*i:]))
	}
	return factory(params)
}

// geomAdapter bridges the public Geometry interface into the engine.
type geomAdapter struct {
	g Geometry
}

func (a geomAdapter) Query(coords []float64) (structures.Relation, error) {
	rel, err := a.g.Query(coords)
	return structures.Relation(rel), err
}

func (a geomAdapter) Close() {
	a.g.Close()
}
