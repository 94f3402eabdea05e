package hmmer

import "math"

// Residue is a single digitized alphabet symbol. Index 0..K-1 are
// canonical residues; K..Kp-1 are degeneracy codes. spec.md §1 scopes
// "biological alphabet details beyond symbol count" out of this core, so
// Alphabet here is deliberately thin: it digitizes ASCII residues to
// indices and, for degenerate codes, says how to combine canonical
// emission scores by a weighted sum against background frequencies.
type Residue byte

// Alphabet maps ASCII residue letters to dense indices in [0, Kp).
// Adapted from TuftsBCB-seq's Alphabet type; narrowed to the digitization
// concern this core actually needs (DP consumes indices, not letters).
type Alphabet struct {
	symbols []Residue      // canonical symbols, index 0..K-1
	degen   map[Residue][]float32 // ASCII code -> per-canonical-symbol combining weights
	index   [256]int
	k       int // canonical symbol count
}

// NewAlphabet builds an Alphabet from its canonical symbols, in order.
// Indices 0..len(canonical)-1 are assigned in the given order.
func NewAlphabet(canonical ...Residue) *Alphabet {
	a := &Alphabet{symbols: canonical, degen: make(map[Residue][]float32), k: len(canonical)}
	for i := range a.index {
		a.index[i] = -1
	}
	for i, r := range canonical {
		a.index[r] = i
	}
	return a
}

// AddDegenerate registers a degeneracy code (e.g. 'X', 'N') with weights
// over the canonical symbols; weights need not be normalized. The code is
// assigned the next free index, growing Kp by one.
func (a *Alphabet) AddDegenerate(code Residue, weights []float32) {
	if len(weights) != a.k {
		panic("hmmer: degenerate weight vector length must equal canonical symbol count")
	}
	a.index[code] = a.k + len(a.degen)
	cp := make([]float32, len(weights))
	copy(cp, weights)
	a.degen[code] = cp
}

// K returns the number of canonical symbols.
func (a *Alphabet) K() int { return a.k }

// Kp returns the total symbol count, canonical plus degeneracy codes.
func (a *Alphabet) Kp() int { return a.k + len(a.degen) }

// Digitize converts an ASCII residue string into a dsq: a slice of length
// len(s)+2 with SENTINEL values at index 0 and len(s)+1, and digitized
// symbols at 1..len(s), per spec.md §3.1/§6.
func (a *Alphabet) Digitize(s string) ([]int, error) {
	dsq := make([]int, len(s)+2)
	dsq[0] = Sentinel
	dsq[len(s)+1] = Sentinel
	for i := 0; i < len(s); i++ {
		idx := a.index[s[i]]
		if idx < 0 {
			return nil, ErrInvalidArg
		}
		dsq[i+1] = idx
	}
	return dsq, nil
}

// Sentinel is the dsq[0] and dsq[L+1] boundary marker (spec.md §3.1/§6).
const Sentinel = -1

// CombineDegenerate computes the log-odds emission score for a degenerate
// symbol at alphabet index x as a weighted sum of canonical probabilities
// against background frequencies null, returning it in the same log-odds
// units as msc/isc (spec.md §3.2). canon supplies the canonical-symbol
// log-odds scores (length K) to combine; this is the one place emission
// scores for degeneracy codes are derived rather than stored directly, a
// concern otherwise left to the out-of-scope HMM-file loader.
func (a *Alphabet) CombineDegenerate(x int, canon []float32, null []float32) float32 {
	for code, w := range a.degen {
		if a.index[code] == x {
			var num, den float64
			for i, wi := range w {
				p := float64(null[i]) * math.Exp(float64(canon[i]))
				num += float64(wi) * p
				den += float64(wi) * float64(null[i])
			}
			if den == 0 || num == 0 {
				return negInf
			}
			return float32(math.Log(num / den))
		}
	}
	return negInf
}

// AlphaDNA is the default alphabet for DNA sequences, adapted from
// TuftsBCB-seq's AlphaDNA preset, with N wired as a degenerate code
// evenly weighted across the four canonical bases.
func AlphaDNA() *Alphabet {
	a := NewAlphabet('A', 'C', 'G', 'T')
	a.AddDegenerate('N', []float32{0.25, 0.25, 0.25, 0.25})
	return a
}

// AlphaProtein is the default amino-acid alphabet, adapted from
// TuftsBCB-seq's AlphaBlosum62 preset (canonical residues only; X is
// wired as a uniformly-weighted degenerate code).
func AlphaProtein() *Alphabet {
	canon := []Residue{
		'A', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'K', 'L',
		'M', 'N', 'P', 'Q', 'R', 'S', 'T', 'V', 'W', 'Y',
	}
	a := NewAlphabet(canon...)
	w := make([]float32, len(canon))
	for i := range w {
		w[i] = 1.0 / float32(len(canon))
	}
	a.AddDegenerate('X', w)
	return a
}
