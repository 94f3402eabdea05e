package hmmer

import (
	"embed"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"gonum.org/v1/gonum/floats"
)

//go:embed testdata/*.yaml
var fixtureFS embed.FS

// fixtureXsc mirrors one flanking state's LOOP/MOVE pair, the way
// inference-sim's YAML config loads a named parameter pair rather than a
// positional array.
type fixtureXsc struct {
	Loop float64 `yaml:"loop"`
	Move float64 `yaml:"move"`
}

// fixtureTsc mirrors one node's tnode transition scores. YAML float
// literals ".inf"/"-.inf" stand for "no such transition"; toScore maps
// them onto the package's internal negInf sentinel.
type fixtureTsc struct {
	MM float64 `yaml:"mm"`
	IM float64 `yaml:"im"`
	DM float64 `yaml:"dm"`
	MD float64 `yaml:"md"`
	DD float64 `yaml:"dd"`
	MI float64 `yaml:"mi"`
	II float64 `yaml:"ii"`
	LM float64 `yaml:"lm"`
	GM float64 `yaml:"gm"`
}

// fixtureProfile is the checked-in-YAML shape of a Profile, used by
// scenario tests that need a profile richer than the hand-built helpers in
// testutil_test.go can conveniently express in Go literals.
type fixtureProfile struct {
	M      int           `yaml:"m"`
	Kp     int           `yaml:"alphabet_size"`
	Local  bool          `yaml:"local"`
	Msc    [][]float64   `yaml:"msc"`
	Isc    [][]float64   `yaml:"isc"`
	Tsc    []fixtureTsc  `yaml:"tsc"`
	XB     fixtureXsc    `yaml:"xb"`
	XN     fixtureXsc    `yaml:"xn"`
	XJ     fixtureXsc    `yaml:"xj"`
	XE     fixtureXsc    `yaml:"xe"`
	XC     fixtureXsc    `yaml:"xc"`
}

// toScore maps a YAML float onto float32, folding +-Inf onto the package's
// negInf sentinel rather than carrying a second "no transition" encoding.
func toScore(v float64) float32 {
	if math.IsInf(v, -1) || math.IsInf(v, 1) {
		return negInf
	}
	return float32(v)
}

func loadFixtureProfile(t *testing.T, name string) (*Profile, *Alphabet) {
	t.Helper()
	raw, err := fixtureFS.ReadFile("testdata/" + name)
	require.NoError(t, err)

	var f fixtureProfile
	require.NoError(t, yaml.Unmarshal(raw, &f))

	p, err := NewProfile(f.M, f.Kp)
	require.NoError(t, err)
	p.SetLocal(f.Local)

	for k, row := range f.Msc {
		for x, v := range row {
			p.SetMsc(k, x, toScore(v))
		}
	}
	for k, row := range f.Isc {
		for x, v := range row {
			p.SetIsc(k, x, toScore(v))
		}
	}
	for k, ts := range f.Tsc {
		p.SetTsc(k, TMM, toScore(ts.MM))
		p.SetTsc(k, TIM, toScore(ts.IM))
		p.SetTsc(k, TDM, toScore(ts.DM))
		p.SetTsc(k, TMD, toScore(ts.MD))
		p.SetTsc(k, TDD, toScore(ts.DD))
		p.SetTsc(k, TMI, toScore(ts.MI))
		p.SetTsc(k, TII, toScore(ts.II))
		p.SetTsc(k, TLM, toScore(ts.LM))
		p.SetTsc(k, TGM, toScore(ts.GM))
	}
	p.SetXsc(XB, LOOP, toScore(f.XB.Loop))
	p.SetXsc(XB, MOVE, toScore(f.XB.Move))
	p.SetXsc(XN, LOOP, toScore(f.XN.Loop))
	p.SetXsc(XN, MOVE, toScore(f.XN.Move))
	p.SetXsc(XJ, LOOP, toScore(f.XJ.Loop))
	p.SetXsc(XJ, MOVE, toScore(f.XJ.Move))
	p.SetXsc(XE, LOOP, toScore(f.XE.Loop))
	p.SetXsc(XE, MOVE, toScore(f.XE.Move))
	p.SetXsc(XC, LOOP, toScore(f.XC.Loop))
	p.SetXsc(XC, MOVE, toScore(f.XC.Move))

	var alpha *Alphabet
	if f.Kp == 5 {
		alpha = AlphaDNA()
	} else {
		alpha = NewAlphabet('0', '1')
	}
	return p, alpha
}

// TestScenarioAViterbiNeverExceedsForward checks spec.md's Scenario A
// invariant (Viterbi <= Forward, both scored against the same checked-in
// "brute-test" profile) over target sequences of increasing length, and
// that the Viterbi traceback is internally consistent with its own score.
func TestScenarioAViterbiNeverExceedsForward(t *testing.T) {
	p, alpha := loadFixtureProfile(t, "scenario_a.yaml")

	for _, seq := range []string{"A", "AA", "AAA", "AAAA"} {
		dsq, err := alpha.Digitize(seq)
		require.NoError(t, err)
		l := len(seq)
		require.NoError(t, p.SetLength(l))

		vmx, err := NewDenseMatrix(p.M, l)
		require.NoError(t, err)
		vsc, err := ReferenceViterbi(dsq, l, p, vmx)
		require.NoError(t, err)

		fmx, err := NewDenseMatrix(p.M, l)
		require.NoError(t, err)
		fsc, err := ReferenceForward(dsq, l, p, fmx)
		require.NoError(t, err)

		require.LessOrEqualf(t, vsc, fsc+1e-4, "seq=%q: Viterbi %v should not exceed Forward %v", seq, vsc, fsc)

		if vsc == negInf {
			continue
		}
		tr, err := ReferenceTraceback(dsq, p, vmx)
		require.NoError(t, err)
		require.NoError(t, tr.Validate())
		trsc, err := tr.Score(p, dsq)
		require.NoError(t, err)
		require.InDelta(t, vsc, trsc, 1e-4, "seq=%q: traceback score should match Viterbi", seq)
	}
}

// TestScenarioDForwardSumsToOne is the finite-length stand-in for spec.md's
// normalization check: scenario_d.yaml encodes a fully generative HMM (every
// outgoing transition distribution at every state sums to 1.0) with
// emission scores as log-odds against a uniform 2-symbol background, the
// same units in which N/C flanking residues score 0. Adding the background
// log-likelihood l*log(0.5) to each Forward score gives log P(seq | model),
// so summing those probabilities over every sequence up to a practical
// length bound must converge to 1.0, the tail beyond that bound being
// vanishingly small under the profile's fast-decaying loop probabilities.
func TestScenarioDForwardSumsToOne(t *testing.T) {
	p, _ := loadFixtureProfile(t, "scenario_d.yaml")
	const maxLen = 14

	// SetLength is deliberately not called here: scenario_d.yaml's N/J/C
	// loop/move scores are fixed, hand-normalized probabilities (the
	// generative-model invariant this test checks depends on them staying
	// put, not on a length-dependent reconfiguration).
	var masses []float64
	for l := 0; l <= maxLen; l++ {
		n := 1 << uint(l)
		for code := 0; code < n; code++ {
			dsq := make([]int, l+2)
			dsq[0] = Sentinel
			dsq[l+1] = Sentinel
			for pos := 0; pos < l; pos++ {
				if code&(1<<uint(pos)) != 0 {
					dsq[pos+1] = 1
				} else {
					dsq[pos+1] = 0
				}
			}
			mx, err := NewDenseMatrix(p.M, l)
			require.NoError(t, err)
			sc, err := ReferenceForward(dsq, l, p, mx)
			require.NoError(t, err)
			if sc == negInf {
				continue
			}
			masses = append(masses, math.Exp(float64(sc)+float64(l)*math.Log(0.5)))
		}
	}

	total := floats.Sum(masses)
	require.InDelta(t, 1.0, total, 0.02, "total probability mass over sequences of length 0..%d", maxLen)
}
