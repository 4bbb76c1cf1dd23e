// Package utils provides utility functions for the rtree library.
package utils

import "encoding/binary"

// All scalars inside a node page are stored big-endian.

// ReadUint16 reads a 16-bit big-endian value from the start of p.
func ReadUint16(p []byte) uint16 {
	return binary.BigEndian.Uint16(p)
}

// WriteUint16 writes a 16-bit big-endian value and returns the number of
// bytes written.
func WriteUint16(p []byte, v uint16) int {
	binary.BigEndian.PutUint16(p, v)
	return 2
}

// ReadUint32 reads a 32-bit big-endian value from the start of p.
func ReadUint32(p []byte) uint32 {
	return binary.BigEndian.Uint32(p)
}

// WriteUint32 writes a 32-bit big-endian value and returns the number of
// bytes written.
func WriteUint32(p []byte, v uint32) int {
	binary.BigEndian.PutUint32(p, v)
	return 4
}

// ReadUint64 reads a 64-bit big-endian value from the start of p.
func ReadUint64(p []byte) uint64 {
	return binary.BigEndian.Uint64(p)
}

// WriteUint64 writes a 64-bit big-endian value and returns the number of
// bytes written.
func WriteUint64(p []byte, v uint64) int {
	binary.BigEndian.PutUint64(p, v)
	return 8
}

// ReadInt64 reads a 64-bit big-endian signed value from the start of p.
func ReadInt64(p []byte) int64 {
	return int64(binary.BigEndian.Uint64(p)) //nolint:gosec // G115: two's complement round trip is intentional
}

// WriteInt64 writes a 64-bit big-endian signed value and returns the number
// of bytes written.
func WriteInt64(p []byte, v int64) int {
	binary.BigEndian.PutUint64(p, uint64(v)) //nolint:gosec // G115: two's complement round trip is intentional
	return 8
}
