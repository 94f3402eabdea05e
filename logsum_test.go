package hmmer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogSumInitialized(t *testing.T) {
	require.True(t, LogSumInitialized())
}

func TestFLogSumNegInfAbsorbing(t *testing.T) {
	require.Equal(t, float32(3.5), FLogSum(negInf, 3.5))
	require.Equal(t, float32(3.5), FLogSum(3.5, negInf))
	require.Equal(t, negInf, FLogSum(negInf, negInf))
}

func TestFLogSumSymmetric(t *testing.T) {
	a, b := float32(-2.3), float32(1.7)
	require.InDelta(t, FLogSum(a, b), FLogSum(b, a), 1e-6)
}

func TestFLogSumMatchesExactLog(t *testing.T) {
	a, b := float32(-1.0), float32(-1.0)
	want := math.Log(2 * math.Exp(-1.0))
	require.InDelta(t, want, float64(FLogSum(a, b)), 1e-3)
}

func TestFLogSum3(t *testing.T) {
	got := FLogSum3(negInf, 0.0, negInf)
	require.InDelta(t, 0.0, got, 1e-6)
}

func TestFMaxFamily(t *testing.T) {
	require.Equal(t, float32(5), fMax(5, 3))
	require.Equal(t, float32(5), fMax3(5, 3, -1))
	require.Equal(t, float32(5), fMax4(5, 3, -1, 2))
}

func TestExpApprox(t *testing.T) {
	require.Equal(t, float32(0), expApprox(negInf))
	require.InDelta(t, 1.0, expApprox(0.0), 1e-6)
}
