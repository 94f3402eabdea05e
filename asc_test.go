package hmmer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAnchorsRejectsOutOfRangeRow(t *testing.T) {
	err := validateAnchors([]Anchor{{I: 0, K: 1}}, 5, 3)
	require.ErrorIs(t, err, ErrInvalidArg)
}

func TestValidateAnchorsRejectsOutOfRangeColumn(t *testing.T) {
	err := validateAnchors([]Anchor{{I: 1, K: 0}}, 5, 3)
	require.ErrorIs(t, err, ErrInvalidArg)
	err = validateAnchors([]Anchor{{I: 1, K: 4}}, 5, 3)
	require.ErrorIs(t, err, ErrInvalidArg)
}

func TestValidateAnchorsRejectsNonAscendingRows(t *testing.T) {
	err := validateAnchors([]Anchor{{I: 2, K: 1}, {I: 2, K: 2}}, 5, 3)
	require.ErrorIs(t, err, ErrInvalidArg)
	err = validateAnchors([]Anchor{{I: 3, K: 1}, {I: 2, K: 2}}, 5, 3)
	require.ErrorIs(t, err, ErrInvalidArg)
}

func TestValidateAnchorsAcceptsAscending(t *testing.T) {
	require.NoError(t, validateAnchors([]Anchor{{I: 1, K: 1}, {I: 2, K: 2}}, 5, 3))
}

func TestASCForwardMatchesReferenceForwardSingleAnchor(t *testing.T) {
	p, _, dsq := buildSinglePathProfile(t)
	// The unique path visits M_G,2 at row 2: an anchor there should
	// reproduce the unconstrained Forward score exactly, since no other
	// path exists to constrain away.
	anchors := []Anchor{{I: 2, K: 2}}

	mxu, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	mxd, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	ascSc, err := ASCForward(dsq, 2, p, anchors, mxu, mxd)
	require.NoError(t, err)

	fmx, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	refSc, err := ReferenceForward(dsq, 2, p, fmx)
	require.NoError(t, err)

	require.InDelta(t, refSc, ascSc, 1e-4)
}

func TestASCBackwardMatchesASCForwardSingleAnchor(t *testing.T) {
	p, _, dsq := buildSinglePathProfile(t)
	anchors := []Anchor{{I: 2, K: 2}}

	mxu, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	mxd, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	fsc, err := ASCForward(dsq, 2, p, anchors, mxu, mxd)
	require.NoError(t, err)

	bmxu, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	bmxd, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	bsc, err := ASCBackward(dsq, 2, p, anchors, bmxu, bmxd)
	require.NoError(t, err)

	require.InDelta(t, fsc, bsc, 1e-3)
}

func TestASCForwardMatchesASCBackwardTwoAnchors(t *testing.T) {
	// buildMultihitSingleNodeProfile gives Xsc(XE, LOOP) and Xsc(XJ, LOOP)
	// distinct values, so a two-domain anchor set only reconciles against
	// ASCBackward if the E->J transition at each domain boundary reads the
	// right one.
	p, _, dsq := buildMultihitSingleNodeProfile(t)
	anchors := []Anchor{{I: 1, K: 1}, {I: 2, K: 1}}

	mxu, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	mxd, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	fsc, err := ASCForward(dsq, 2, p, anchors, mxu, mxd)
	require.NoError(t, err)

	bmxu, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	bmxd, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	bsc, err := ASCBackward(dsq, 2, p, anchors, bmxu, bmxd)
	require.NoError(t, err)

	require.InDelta(t, fsc, bsc, 1e-4)
}

func TestASCDecodingRowSumsToOneSingleAnchor(t *testing.T) {
	p, _, dsq := buildSinglePathProfile(t)
	anchors := []Anchor{{I: 2, K: 2}}

	mxu, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	mxd, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	totsc, err := ASCForward(dsq, 2, p, anchors, mxu, mxd)
	require.NoError(t, err)

	bmxu, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	bmxd, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	_, err = ASCBackward(dsq, 2, p, anchors, bmxu, bmxd)
	require.NoError(t, err)

	du, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	dd, err := NewDenseMatrix(p.M, 2)
	require.NoError(t, err)
	require.NoError(t, ASCDecoding(dsq, 2, p, anchors, mxu, mxd, bmxu, bmxd, totsc, du, dd))

	sp := dd.Special(2)
	sum := sp[JJc] + sp[CCc] + sp[Nc]
	for k := 0; k <= p.M; k++ {
		c := dd.Main(2, k)
		sum += c[MLc] + c[MGc] + c[ILc] + c[IGc]
	}
	require.InDelta(t, 1.0, sum, 1e-3)
}
