package hmmer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fullMask(m, l int) *SparseMask {
	mask := NewSparseMask(l)
	ks := make([]int, m)
	for k := 1; k <= m; k++ {
		ks[k-1] = k
	}
	for i := 1; i <= l; i++ {
		_ = mask.SetRow(i, ks)
	}
	return mask
}

func TestSparseMaskSetRowRejectsSingleCell(t *testing.T) {
	mask := NewSparseMask(3)
	err := mask.SetRow(1, []int{2})
	require.ErrorIs(t, err, ErrInvalidArg)
}

func TestSparseMaskSetRowRejectsOutOfRange(t *testing.T) {
	mask := NewSparseMask(3)
	err := mask.SetRow(0, []int{1, 2})
	require.ErrorIs(t, err, ErrInvalidArg)
	err = mask.SetRow(4, []int{1, 2})
	require.ErrorIs(t, err, ErrInvalidArg)
}

func TestSparseMaskSegments(t *testing.T) {
	mask := NewSparseMask(6)
	require.NoError(t, mask.SetRow(1, []int{0, 1}))
	require.NoError(t, mask.SetRow(2, []int{0, 1}))
	require.NoError(t, mask.SetRow(4, []int{0, 1}))
	require.NoError(t, mask.SetRow(5, []int{0, 1}))
	segs := mask.Segments()
	require.Equal(t, [][2]int{{1, 2}, {4, 5}}, segs)
}

func TestSparseMaskContains(t *testing.T) {
	mask := NewSparseMask(3)
	require.NoError(t, mask.SetRow(1, []int{2, 0}))
	require.True(t, mask.Contains(1, 0))
	require.True(t, mask.Contains(1, 2))
	require.False(t, mask.Contains(1, 1))
	require.False(t, mask.Contains(2, 0))
}

func TestSparseViterbiMatchesReferenceOnFullMask(t *testing.T) {
	p, _, dsq := buildSinglePathProfile(t)
	mask := fullMask(p.M, 2)

	smx, err := NewSparseMatrix(mask, p.M)
	require.NoError(t, err)
	ssc, err := SparseViterbi(dsq, p, mask, smx)
	require.NoError(t, err)

	dmx, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	dsc, err := ReferenceViterbi(dsq, 2, p, dmx)
	require.NoError(t, err)

	require.InDelta(t, dsc, ssc, 1e-5)
}

func TestSparseForwardMatchesReferenceOnFullMask(t *testing.T) {
	p, _, dsq := buildBranchingProfile(t)
	mask := fullMask(p.M, 1)

	smx, err := NewSparseMatrix(mask, p.M)
	require.NoError(t, err)
	ssc, err := SparseForward(dsq, p, mask, smx)
	require.NoError(t, err)

	dmx, err := NewDenseMatrix(p.M, 1)
	require.NoError(t, err)
	dsc, err := ReferenceForward(dsq, 1, p, dmx)
	require.NoError(t, err)

	require.InDelta(t, dsc, ssc, 1e-5)
}

func TestSparseBackwardMatchesForwardOnFullMask(t *testing.T) {
	p, _, dsq := buildSinglePathProfile(t)
	mask := fullMask(p.M, 2)

	fmx, err := NewSparseMatrix(mask, p.M)
	require.NoError(t, err)
	fsc, err := SparseForward(dsq, p, mask, fmx)
	require.NoError(t, err)

	bmx, err := NewSparseMatrix(mask, p.M)
	require.NoError(t, err)
	bsc, err := SparseBackward(dsq, p, mask, bmx)
	require.NoError(t, err)

	require.InDelta(t, fsc, bsc, 1e-4)
}

func TestSparseDecodingRowSumsToOneOnFullMask(t *testing.T) {
	p, _, dsq := buildSinglePathProfile(t)
	mask := fullMask(p.M, 2)

	fmx, err := NewSparseMatrix(mask, p.M)
	require.NoError(t, err)
	totsc, err := SparseForward(dsq, p, mask, fmx)
	require.NoError(t, err)

	bmx, err := NewSparseMatrix(mask, p.M)
	require.NoError(t, err)
	_, err = SparseBackward(dsq, p, mask, bmx)
	require.NoError(t, err)

	dec, err := NewSparseMatrix(mask, p.M)
	require.NoError(t, err)
	require.NoError(t, SparseDecoding(fmx, bmx, p, totsc, dec))

	for i := 1; i <= 2; i++ {
		sp := dec.Special(i)
		sum := sp[JJc] + sp[CCc] + sp[Nc]
		for k := 1; k <= p.M; k++ {
			c := dec.Main(i, k)
			sum += c[MLc] + c[MGc] + c[ILc] + c[IGc]
		}
		require.InDelta(t, 1.0, sum, 1e-3, "row %d", i)
	}
}

func TestSparseMatrixMainReturnsNilOutsideMask(t *testing.T) {
	mask := NewSparseMask(3)
	require.NoError(t, mask.SetRow(1, []int{0, 2}))
	smx, err := NewSparseMatrix(mask, 4)
	require.NoError(t, err)
	require.Nil(t, smx.Main(1, 1))
	require.NotNil(t, smx.Main(1, 0))
	require.NotNil(t, smx.Main(1, 2))
}

func TestSparseViterbiWithGapAdvancesSpecialsAcrossEmptyRow(t *testing.T) {
	// A mask that includes row 1 but leaves row 2 empty: specials must
	// still advance across the gap (spec.md's sparse segment rule), even
	// though buildSinglePathProfile's unique path needs a match cell at
	// row 2 to reach C. With row 2 empty, the path can only complete via
	// L/G skipping straight to E with no residues consumed at i=2, which
	// this profile disallows, so Viterbi should report no reachable path.
	p, _, dsq := buildSinglePathProfile(t)
	mask := NewSparseMask(2)
	require.NoError(t, mask.SetRow(1, []int{1, 2}))
	// row 2 left empty

	smx, err := NewSparseMatrix(mask, p.M)
	require.NoError(t, err)
	sc, err := SparseViterbi(dsq, p, mask, smx)
	require.NoError(t, err)
	require.Equal(t, float32(negInf), sc)
}
