package hmmer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDenseMatrixMainSpecialShape(t *testing.T) {
	mx, err := NewDenseMatrix(3, 4)
	require.NoError(t, err)
	require.Equal(t, 3, mx.M)
	require.Equal(t, 4, mx.L)

	cell := mx.Main(2, 1)
	require.Len(t, cell, nMainCells)
	cell[MLc] = 1.25
	require.Equal(t, float32(1.25), mx.Main(2, 1)[MLc])

	sp := mx.Special(2)
	require.Len(t, sp, nSpecialCells)
	sp[Ec] = -4.0
	require.Equal(t, float32(-4.0), mx.Special(2)[Ec])
}

func TestDenseMatrixResetClearsToNegInf(t *testing.T) {
	mx, err := NewDenseMatrix(2, 2)
	require.NoError(t, err)
	mx.Main(1, 1)[MLc] = 7
	mx.Special(1)[Ec] = 7
	mx.Reset()
	require.Equal(t, negInf, mx.Main(1, 1)[MLc])
	require.Equal(t, negInf, mx.Special(1)[Ec])
}

func TestDenseMatrixGrowToRejectsNegative(t *testing.T) {
	mx, err := NewDenseMatrix(2, 2)
	require.NoError(t, err)
	err = mx.GrowTo(-1, 2)
	require.ErrorIs(t, err, ErrInvalidArg)
}

func TestDenseMatrixReuseKeepsStorageWithinCapacity(t *testing.T) {
	mx, err := NewDenseMatrix(5, 5)
	require.NoError(t, err)
	mx.Main(3, 3)[MLc] = 9
	require.NoError(t, mx.Reuse(2, 2))
	require.Equal(t, 2, mx.M)
	require.Equal(t, 2, mx.L)
	// Growing back up within original capacity must not have reallocated
	// (the stale value at the old, now out-of-logical-range cell survives).
	require.NoError(t, mx.Reuse(5, 5))
	require.Equal(t, float32(9), mx.Main(3, 3)[MLc])
}

func TestDenseMatrixGrowBeyondCapacityReallocates(t *testing.T) {
	mx, err := NewDenseMatrix(1, 1)
	require.NoError(t, err)
	require.NoError(t, mx.GrowTo(10, 10))
	require.Equal(t, 10, mx.M)
	require.Equal(t, 10, mx.L)
	// newly grown cells are zero-valued (not asserted -Inf without Reset);
	// just confirm the larger shape is addressable without panicking.
	require.NotPanics(t, func() { _ = mx.Main(10, 10) })
}
