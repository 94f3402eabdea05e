package hmmer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSequenceDigitizesAndLen(t *testing.T) {
	a := AlphaDNA()
	seq, err := NewSequence("q1", "ACGT", a)
	require.NoError(t, err)
	require.Equal(t, 4, seq.Len())
	require.Equal(t, Sentinel, seq.Residue(0))
	require.Equal(t, Sentinel, seq.Residue(5))
	require.Equal(t, 0, seq.Residue(1))
}

func TestNewSequenceEmptyStringIsLenZero(t *testing.T) {
	a := AlphaDNA()
	seq, err := NewSequence("empty", "", a)
	require.NoError(t, err)
	require.Equal(t, 0, seq.Len())
}

func TestNewSequenceRejectsUnknownSymbol(t *testing.T) {
	a := AlphaDNA()
	_, err := NewSequence("bad", "AZGT", a)
	require.ErrorIs(t, err, ErrInvalidArg)
}
