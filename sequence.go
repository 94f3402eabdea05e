package hmmer

// Sequence pairs a name with a digitized target (dsq), sentineled at 0
// and L+1 per spec.md §3.1/§6. Adapted from TuftsBCB-seq's Sequence type,
// which carried raw ASCII Residues directly consumable by its own
// Viterbi; this core's DP consumes dsq indices instead.
type Sequence struct {
	Name string
	Dsq  []int // length L+2, Dsq[0]=Dsq[L+1]=Sentinel
}

// NewSequence digitizes s against alphabet a, producing a Sequence ready
// for DP. An empty string yields a valid L=0 sequence (spec.md §3.1).
func NewSequence(name, s string, a *Alphabet) (Sequence, error) {
	dsq, err := a.Digitize(s)
	if err != nil {
		return Sequence{}, err
	}
	return Sequence{Name: name, Dsq: dsq}, nil
}

// Len returns L, the number of digitized residues (excluding sentinels).
func (s Sequence) Len() int {
	if len(s.Dsq) < 2 {
		return 0
	}
	return len(s.Dsq) - 2
}

// Residue returns the digitized symbol at 1-indexed position i, i in
// [0, L+1] (0 and L+1 are the sentinels).
func (s Sequence) Residue(i int) int { return s.Dsq[i] }
