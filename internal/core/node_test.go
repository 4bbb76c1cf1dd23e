package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesPerCell(t *testing.T) {
	require.Equal(t, 16, Shape{Dims: 1}.BytesPerCell())
	require.Equal(t, 24, Shape{Dims: 2}.BytesPerCell())
	require.Equal(t, 48, Shape{Dims: 5}.BytesPerCell())
}

func TestMaxCells(t *testing.T) {
	// 1-D: (112-4)/16 = 6
	require.Equal(t, 6, Shape{Dims: 1}.MaxCells(112))
	// Large pages are capped.
	require.Equal(t, MaxCellsPerNode, Shape{Dims: 1}.MaxCells(65536))
}

func TestPageHeader(t *testing.T) {
	data := make([]byte, 112)
	SetPageDepth(data, 3)
	SetPageCellCount(data, 5)
	require.Equal(t, 3, PageDepth(data))
	require.Equal(t, 5, PageCellCount(data))
	require.Equal(t, []byte{0, 3, 0, 5}, data[:4])
}

func TestCellRoundTripReal(t *testing.T) {
	s := Shape{Dims: 2, Type: CoordReal32}
	data := make([]byte, 256)

	in := Cell{ID: -12345}
	in.Coords[0] = RealCoord(1.25)
	in.Coords[1] = RealCoord(2.5)
	in.Coords[2] = RealCoord(-3.75)
	in.Coords[3] = RealCoord(0)

	s.WriteCell(data, 3, &in)
	out := s.ReadCell(data, 3)
	require.Equal(t, in.ID, out.ID)
	require.Equal(t, in.Coords, out.Coords)
	require.Equal(t, in.ID, s.CellRowid(data, 3))
	require.Equal(t, in.Coords[2], s.CellCoord(data, 3, 2))
}

func TestCellRoundTripInt(t *testing.T) {
	s := Shape{Dims: 1, Type: CoordInt32}
	data := make([]byte, 128)

	in := Cell{ID: 9000000000}
	in.Coords[0] = IntCoord(-2147483648)
	in.Coords[1] = IntCoord(2147483647)

	s.WriteCell(data, 0, &in)
	out := s.ReadCell(data, 0)
	require.Equal(t, in.ID, out.ID)
	require.Equal(t, int32(-2147483648), out.Coords[0].Int())
	require.Equal(t, int32(2147483647), out.Coords[1].Int())
}

func TestDeleteCellShifts(t *testing.T) {
	s := Shape{Dims: 1, Type: CoordReal32}
	data := make([]byte, 112)
	for i := 0; i < 4; i++ {
		c := Cell{ID: int64(i + 1)}
		c.Coords[0] = RealCoord(float32(i))
		c.Coords[1] = RealCoord(float32(i) + 0.5)
		s.WriteCell(data, i, &c)
	}
	SetPageCellCount(data, 4)

	s.DeleteCell(data, 1)

	require.Equal(t, 3, PageCellCount(data))
	require.Equal(t, int64(1), s.CellRowid(data, 0))
	require.Equal(t, int64(3), s.CellRowid(data, 1))
	require.Equal(t, int64(4), s.CellRowid(data, 2))
	require.Equal(t, float32(3), s.ReadCell(data, 2).Coords[0].Real())
}
