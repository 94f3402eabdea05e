package hmmer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func init() {
	LogSumInit()
}

// stubRNG returns a fixed sequence of floats, repeating the last value
// once exhausted. Tests that drive a forced (single-candidate) choice
// only care that it implements RNG, not what it returns.
type stubRNG struct {
	vals []float64
	idx  int
}

func (s *stubRNG) Float64() float64 {
	if len(s.vals) == 0 {
		return 0.5
	}
	v := s.vals[s.idx]
	if s.idx < len(s.vals)-1 {
		s.idx++
	}
	return v
}

// buildSinglePathProfile returns a glocal-only, M=2 profile with exactly
// one non--Inf candidate at every DP choice point: G->M1 (score 0), M1->M2
// (score 0), matching residue 'A' at node 1 and 'C' at node 2, and every
// flanking bridge scored 0. Every DP routine and every stochastic/generative
// draw against it is forced onto the same unique path, regardless of
// tie-breaking or RNG input - useful for exact, hand-checkable assertions.
func buildSinglePathProfile(t *testing.T) (*Profile, *Alphabet, []int) {
	t.Helper()
	alpha := AlphaDNA()
	p, err := NewProfile(2, alpha.Kp())
	require.NoError(t, err)
	p.SetLocal(false)

	p.SetMsc(1, 0, 0.0) // node 1 matches 'A' (index 0)
	p.SetMsc(2, 1, 0.0) // node 2 matches 'C' (index 1)

	p.SetTsc(0, TGM, 0.0) // G -> M1
	p.SetTsc(1, TMM, 0.0) // M1 -> M2

	p.SetXsc(XB, MOVE, 0.0) // B -> G (glocal only)
	p.SetXsc(XN, MOVE, 0.0) // N -> B, no looping
	p.SetXsc(XJ, MOVE, 0.0) // J -> B, unused here but kept bridgeable
	p.SetXsc(XE, MOVE, 0.0) // E -> C, unihit
	p.SetXsc(XC, MOVE, 0.0) // C -> T, no looping

	dsq, err := alpha.Digitize("AC")
	require.NoError(t, err)
	return p, alpha, dsq
}

// buildBranchingProfile returns a local-only, M=2 profile over a
// single-residue sequence "A" with two equally-scored (-1.0) entry paths
// to E: L->M1->E and L->M2->E. Viterbi takes the max of the two identical
// path scores (-1.0); Forward sums both, giving exactly -1.0+ln(2).
func buildBranchingProfile(t *testing.T) (*Profile, *Alphabet, []int) {
	t.Helper()
	alpha := AlphaDNA()
	p, err := NewProfile(2, alpha.Kp())
	require.NoError(t, err)
	p.SetLocal(true)

	p.SetMsc(1, 0, 0.0)
	p.SetMsc(2, 0, 0.0)
	p.SetTsc(0, TLM, -1.0) // L -> M1
	p.SetTsc(1, TLM, -1.0) // L -> M2

	p.SetXsc(XB, LOOP, 0.0) // B -> L (local only)
	p.SetXsc(XN, MOVE, 0.0)
	p.SetXsc(XJ, MOVE, 0.0)
	p.SetXsc(XE, MOVE, 0.0)
	p.SetXsc(XC, MOVE, 0.0)

	dsq, err := alpha.Digitize("A")
	require.NoError(t, err)
	return p, alpha, dsq
}

// buildMultihitSingleNodeProfile returns a local-only, M=1 profile over
// "AA" that admits exactly two domains (one match per residue), with
// Xsc(XE,LOOP) and Xsc(XJ,LOOP) set to distinct values so that confusing
// the two (spec.md §4.7's E->J transition) changes the score.
func buildMultihitSingleNodeProfile(t *testing.T) (*Profile, *Alphabet, []int) {
	t.Helper()
	alpha := AlphaDNA()
	p, err := NewProfile(1, alpha.Kp())
	require.NoError(t, err)
	p.SetLocal(true)

	p.SetMsc(1, 0, 0.0)
	p.SetTsc(0, TLM, 0.0) // L -> M1

	p.SetXsc(XB, LOOP, 0.0) // B -> L (local only)
	p.SetXsc(XN, MOVE, 0.0)
	p.SetXsc(XJ, LOOP, -0.3)
	p.SetXsc(XJ, MOVE, 0.0)
	p.SetXsc(XE, LOOP, -0.7) // E -> J, deliberately != Xsc(XJ, LOOP)
	p.SetXsc(XE, MOVE, 0.0)
	p.SetXsc(XC, MOVE, 0.0)

	dsq, err := alpha.Digitize("AA")
	require.NoError(t, err)
	return p, alpha, dsq
}

// buildGlocalDeleteWingProfile returns a glocal-only, M=3 profile over a
// single-residue sequence "A" whose unique path matches at node 1 then
// takes the delete wing D2->D3->E on the same row, exercising the
// glocal exit chain at k<M that a plain match-only path never reaches.
func buildGlocalDeleteWingProfile(t *testing.T) (*Profile, *Alphabet, []int) {
	t.Helper()
	alpha := AlphaDNA()
	p, err := NewProfile(3, alpha.Kp())
	require.NoError(t, err)
	p.SetLocal(false)

	p.SetMsc(1, 0, 0.0) // node 1 matches 'A'

	p.SetTsc(0, TGM, 0.0) // G -> M1
	p.SetTsc(1, TMD, 0.0) // M1 -> D2
	p.SetTsc(2, TDD, 0.0) // D2 -> D3

	p.SetXsc(XB, MOVE, 0.0) // B -> G (glocal only)
	p.SetXsc(XN, MOVE, 0.0)
	p.SetXsc(XJ, MOVE, 0.0)
	p.SetXsc(XE, MOVE, 0.0) // unihit
	p.SetXsc(XC, MOVE, 0.0)

	dsq, err := alpha.Digitize("A")
	require.NoError(t, err)
	return p, alpha, dsq
}
