package hmmer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProfileRejectsNonPositiveDims(t *testing.T) {
	_, err := NewProfile(0, 4)
	require.ErrorIs(t, err, ErrInvalidArg)
	_, err = NewProfile(4, 0)
	require.ErrorIs(t, err, ErrInvalidArg)
}

func TestNewProfileDefaultsToNegInf(t *testing.T) {
	p, err := NewProfile(3, 4)
	require.NoError(t, err)
	require.Equal(t, negInf, p.Msc(1, 0))
	require.Equal(t, negInf, p.Isc(1, 0))
	require.Equal(t, negInf, p.Tsc(1, TMM))
	require.Equal(t, negInf, p.Xsc(XB, LOOP))
}

func TestSetMscIscTscXscRoundtrip(t *testing.T) {
	p, err := NewProfile(2, 4)
	require.NoError(t, err)
	p.SetMsc(1, 2, -0.5)
	p.SetIsc(1, 2, -1.5)
	p.SetTsc(1, TMD, -2.5)
	p.SetXsc(XE, MOVE, -3.5)
	require.Equal(t, float32(-0.5), p.Msc(1, 2))
	require.Equal(t, float32(-1.5), p.Isc(1, 2))
	require.Equal(t, float32(-2.5), p.Tsc(1, TMD))
	require.Equal(t, float32(-3.5), p.Xsc(XE, MOVE))
}

func TestExitScoreLocalVsGlocal(t *testing.T) {
	p, err := NewProfile(3, 4)
	require.NoError(t, err)

	p.SetLocal(false)
	require.Equal(t, negInf, p.ExitScore(1))
	require.Equal(t, negInf, p.ExitScore(2))
	require.Equal(t, float32(0.0), p.ExitScore(3)) // k==M always exits

	p.SetLocal(true)
	require.Equal(t, float32(0.0), p.ExitScore(1))
	require.Equal(t, float32(0.0), p.ExitScore(3))
}

func TestSetLengthConfiguresGeometricLoop(t *testing.T) {
	p, err := NewProfile(2, 4)
	require.NoError(t, err)
	require.NoError(t, p.SetLength(10))
	// loop probability 10/11 should be < 1, move probability 1/11 > 0,
	// and LOOP+MOVE should combine (in probability space) to ~1.
	loop := p.Xsc(XN, LOOP)
	move := p.Xsc(XN, MOVE)
	require.Less(t, loop, float32(0.0))
	require.Less(t, move, float32(0.0))
	sum := expApprox(loop) + expApprox(move)
	require.InDelta(t, 1.0, sum, 1e-4)
}

func TestSetLengthZeroDegeneratesToAllMove(t *testing.T) {
	p, err := NewProfile(2, 4)
	require.NoError(t, err)
	require.NoError(t, p.SetLength(0))
	require.Equal(t, negInf, p.Xsc(XC, LOOP))
	require.Equal(t, float32(0.0), p.Xsc(XC, MOVE))
}

func TestSetLengthRejectsNegative(t *testing.T) {
	p, err := NewProfile(2, 4)
	require.NoError(t, err)
	require.ErrorIs(t, p.SetLength(-1), ErrInvalidArg)
}

func TestSetGlocalFractionSplitsB(t *testing.T) {
	p, err := NewProfile(2, 4)
	require.NoError(t, err)
	require.NoError(t, p.SetGlocalFraction(0.25))
	sum := expApprox(p.Xsc(XB, LOOP)) + expApprox(p.Xsc(XB, MOVE))
	require.InDelta(t, 1.0, sum, 1e-4)
	require.InDelta(t, 0.25, expApprox(p.Xsc(XB, MOVE)), 1e-4)
}

func TestSetGlocalFractionRejectsOutOfRange(t *testing.T) {
	p, err := NewProfile(2, 4)
	require.NoError(t, err)
	require.ErrorIs(t, p.SetGlocalFraction(-0.1), ErrInvalidArg)
	require.ErrorIs(t, p.SetGlocalFraction(1.1), ErrInvalidArg)
}
