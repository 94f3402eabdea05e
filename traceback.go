package hmmer

import (
	"math"
)

// traceTol is the absolute float tolerance for reconstructive edge
// matching (spec.md §4.4.1, §9): near-ties may yield a near-optimal trace
// rather than the strict optimum, which is documented, accepted behavior.
const traceTol = 1e-5

func approxEqual(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return float64(d) <= traceTol
}

// picker abstracts the one choice reconstructive traceback makes at every
// cell: which incoming edge produced the stored value. A deterministic
// picker re-derives the Viterbi argmax by tolerance match; a stochastic
// picker samples among the candidates by their normalized log-sum-exp
// weight (spec.md §4.4.2). Sharing this interface keeps one traceback
// walk for both variants, per spec.md §9's polymorphism note.
type picker interface {
	pick(cand []float32, want float32, st State, k, i int) (int, error)
}

type tolerancePicker struct{}

func (tolerancePicker) pick(cand []float32, want float32, st State, k, i int) (int, error) {
	for idx, v := range cand {
		if approxEqual(v, want) {
			return idx, nil
		}
	}
	return 0, &TraceError{State: st, K: k, I: i, Value: want}
}

type stochasticPicker struct{ rng RNG }

func (p stochasticPicker) pick(cand []float32, _ float32, _ State, _, _ int) (int, error) {
	return sampleIndex(p.rng, cand), nil
}

// ReferenceTraceback reconstructs the optimal Viterbi path through mx (a
// DenseMatrix filled by ReferenceViterbi) without a shadow pointer
// matrix, by recomputing candidate incoming edges at each cell and
// matching the stored value within traceTol (spec.md §4.4.1). Returns an
// empty trace, not an error, when mx.Special(mx.L)[Cc] is -Inf (no path).
func ReferenceTraceback(dsq []int, p *Profile, mx *DenseMatrix) (*Trace, error) {
	if mx.Special(mx.L)[Cc] == negInf {
		return NewTrace(0), nil
	}
	return runTraceback(dsq, p, mx, tolerancePicker{})
}

// StochasticTraceback samples a path through mx (a Forward matrix)
// proportional to its posterior probability, using rng as the source of
// uniform randoms (spec.md §4.4.2, §6). Unlike ReferenceTraceback, an
// unreachable starting cell is an error, not an empty trace (spec.md §7).
func StochasticTraceback(dsq []int, p *Profile, mx *DenseMatrix, rng RNG) (*Trace, error) {
	if mx.Special(mx.L)[Cc] == negInf {
		return nil, ErrUnreachablePath
	}
	return runTraceback(dsq, p, mx, stochasticPicker{rng: rng})
}

func runTraceback(dsq []int, p *Profile, mx *DenseMatrix, pk picker) (*Trace, error) {
	l, m := mx.L, mx.M
	tr := NewTrace(2*(l+m) + 16)
	tr.Append(STT, 0, l)
	cur := TraceStep{St: STC, I: l}
	for {
		tr.Append(cur.St, cur.K, cur.I)
		if cur.St == S {
			break
		}
		next, extra, err := stepBack(dsq, p, mx, cur, pk)
		if err != nil {
			return nil, err
		}
		for _, e := range extra {
			tr.Append(e.St, e.K, e.I)
		}
		cur = next
	}
	tr.Reverse()
	return tr, nil
}

// stepBack computes the cell or special state that produced cur's stored
// value, plus any intermediate steps that belong between them (wing
// retraction's D_G chain is the only case that needs more than one).
func stepBack(dsq []int, p *Profile, mx *DenseMatrix, cur TraceStep, pk picker) (TraceStep, []TraceStep, error) {
	i, k := cur.I, cur.K
	switch cur.St {
	case STC:
		sp := mx.Special(i)
		if i == 0 {
			return TraceStep{}, nil, &TraceError{State: STC, I: i, Value: sp[Cc]}
		}
		cand := []float32{mx.Special(i-1)[Cc] + p.Xsc(XC, LOOP), sp[Ec] + p.Xsc(XE, MOVE)}
		idx, err := pk.pick(cand, sp[Cc], STC, 0, i)
		if err != nil {
			return TraceStep{}, nil, err
		}
		if idx == 0 {
			return TraceStep{St: STC, I: i - 1}, nil, nil
		}
		return TraceStep{St: STE, I: i}, nil, nil

	case STE:
		sp := mx.Special(i)
		type exitCand struct {
			v float32
			st State
			k  int
		}
		var cands []exitCand
		for kk := 1; kk < m; kk++ {
			if esc := p.ExitScore(kk); esc != negInf {
				cands = append(cands, exitCand{mx.Main(i, kk)[MLc] + esc, STML, kk})
			}
		}
		cellM := mx.Main(i, m)
		cands = append(cands, exitCand{cellM[MLc], STML, m})
		cands = append(cands, exitCand{cellM[MGc], STMG, m})
		cands = append(cands, exitCand{cellM[DGc], STDG, m})
		vals := make([]float32, len(cands))
		for idx, c := range cands {
			vals[idx] = c.v
		}
		idx, err := pk.pick(vals, sp[Ec], STE, 0, i)
		if err != nil {
			return TraceStep{}, nil, err
		}
		c := cands[idx]
		return TraceStep{St: c.st, K: c.k, I: i}, nil, nil

	case STML, STMG:
		return stepBackMatch(dsq, p, mx, cur, pk)

	case STIL:
		prev := mx.Main(i-1, k)
		cur0 := mx.Main(i, k)
		iEmit := p.Isc(k, dsq[i])
		cand := []float32{
			prev[MLc] + p.Tsc(k, TMI) + iEmit,
			prev[ILc] + p.Tsc(k, TII) + iEmit,
		}
		idx, err := pk.pick(cand, cur0[ILc], STIL, k, i)
		if err != nil {
			return TraceStep{}, nil, err
		}
		if idx == 0 {
			return TraceStep{St: STML, K: k, I: i - 1}, nil, nil
		}
		return TraceStep{St: STIL, K: k, I: i - 1}, nil, nil

	case STIG:
		prev := mx.Main(i-1, k)
		cur0 := mx.Main(i, k)
		iEmit := p.Isc(k, dsq[i])
		cand := []float32{
			prev[MGc] + p.Tsc(k, TMI) + iEmit,
			prev[IGc] + p.Tsc(k, TII) + iEmit,
		}
		idx, err := pk.pick(cand, cur0[IGc], STIG, k, i)
		if err != nil {
			return TraceStep{}, nil, err
		}
		if idx == 0 {
			return TraceStep{St: STMG, K: k, I: i - 1}, nil, nil
		}
		return TraceStep{St: STIG, K: k, I: i - 1}, nil, nil

	case STDL:
		prev := mx.Main(i, k-1)
		cur0 := mx.Main(i, k)
		cand := []float32{
			prev[MLc] + p.Tsc(k-1, TMD),
			prev[DLc] + p.Tsc(k-1, TDD),
		}
		idx, err := pk.pick(cand, cur0[DLc], STDL, k, i)
		if err != nil {
			return TraceStep{}, nil, err
		}
		if idx == 0 {
			return TraceStep{St: STML, K: k - 1, I: i}, nil, nil
		}
		return TraceStep{St: STDL, K: k - 1, I: i}, nil, nil

	case STDG:
		prev := mx.Main(i, k-1)
		cur0 := mx.Main(i, k)
		cand := []float32{
			prev[MGc] + p.Tsc(k-1, TMD),
			prev[DGc] + p.Tsc(k-1, TDD),
		}
		idx, err := pk.pick(cand, cur0[DGc], STDG, k, i)
		if err != nil {
			return TraceStep{}, nil, err
		}
		if idx == 0 {
			return TraceStep{St: STMG, K: k - 1, I: i}, nil, nil
		}
		return TraceStep{St: STDG, K: k - 1, I: i}, nil, nil

	case STB:
		sp := mx.Special(i)
		cand := []float32{sp[Nc] + p.Xsc(XN, MOVE), sp[Jc] + p.Xsc(XJ, MOVE)}
		idx, err := pk.pick(cand, sp[Bc], STB, 0, i)
		if err != nil {
			return TraceStep{}, nil, err
		}
		if idx == 0 {
			return TraceStep{St: STN, I: i}, nil, nil
		}
		return TraceStep{St: STJ, I: i}, nil, nil

	case STJ:
		sp := mx.Special(i)
		var loopVal float32 = negInf
		if i > 0 {
			loopVal = mx.Special(i-1)[Jc] + p.Xsc(XJ, LOOP)
		}
		cand := []float32{loopVal, sp[Ec] + p.Xsc(XE, LOOP)}
		idx, err := pk.pick(cand, sp[Jc], STJ, 0, i)
		if err != nil {
			return TraceStep{}, nil, err
		}
		if idx == 0 {
			return TraceStep{St: STJ, I: i - 1}, nil, nil
		}
		return TraceStep{St: STE, I: i}, nil, nil

	case STN:
		if i == 0 {
			return TraceStep{St: S}, nil, nil
		}
		return TraceStep{St: STN, I: i - 1}, nil, nil

	case STL:
		return TraceStep{St: STB, I: i}, nil, nil

	case STG:
		return TraceStep{St: STB, I: i}, nil, nil
	}
	return TraceStep{}, nil, &TraceError{State: cur.St, K: k, I: i, Value: float32(math.NaN())}
}

// stepBackMatch handles STML/STMG: the shared logic of matching one of
// the four incoming edges (MM, IM, DM, and the L/G entry), with wing
// retraction inserted on a glocal entry with k>1 (spec.md §9).
func stepBackMatch(dsq []int, p *Profile, mx *DenseMatrix, cur TraceStep, pk picker) (TraceStep, []TraceStep, error) {
	i, k := cur.I, cur.K
	glocal := cur.St == STMG
	mEmit := p.Msc(k, dsq[i])

	if i == 0 {
		return TraceStep{}, nil, &TraceError{State: cur.St, K: k, I: i, Value: float32(math.NaN())}
	}
	prevK1 := mx.Main(i-1, k-1)
	prevSp := mx.Special(i - 1)

	var want float32
	var cand []float32
	if !glocal {
		cur0 := mx.Main(i, k)
		want = cur0[MLc]
		cand = []float32{
			prevK1[MLc] + p.Tsc(k-1, TMM) + mEmit,
			prevK1[ILc] + p.Tsc(k-1, TIM) + mEmit,
			prevK1[DLc] + p.Tsc(k-1, TDM) + mEmit,
			prevSp[Lc] + p.Tsc(k-1, TLM) + mEmit,
		}
	} else {
		cur0 := mx.Main(i, k)
		want = cur0[MGc]
		cand = []float32{
			prevK1[MGc] + p.Tsc(k-1, TMM) + mEmit,
			prevK1[IGc] + p.Tsc(k-1, TIM) + mEmit,
			prevK1[DGc] + p.Tsc(k-1, TDM) + mEmit,
			prevSp[Gc] + p.Tsc(k-1, TGM) + mEmit,
		}
	}
	idx, err := pk.pick(cand, want, cur.St, k, i)
	if err != nil {
		return TraceStep{}, nil, err
	}
	switch idx {
	case 0:
		if glocal {
			return TraceStep{St: STMG, K: k - 1, I: i - 1}, nil, nil
		}
		return TraceStep{St: STML, K: k - 1, I: i - 1}, nil, nil
	case 1:
		if glocal {
			return TraceStep{St: STIG, K: k - 1, I: i - 1}, nil, nil
		}
		return TraceStep{St: STIL, K: k - 1, I: i - 1}, nil, nil
	case 2:
		if glocal {
			return TraceStep{St: STDG, K: k - 1, I: i - 1}, nil, nil
		}
		return TraceStep{St: STDL, K: k - 1, I: i - 1}, nil, nil
	default:
		if !glocal {
			return TraceStep{St: STL, I: i - 1}, nil, nil
		}
		// Glocal entry: unfold the implicit D_G,1..D_G,k-1 chain the core
		// DP folds into the single G->M_k transition (spec.md §3.3, §9).
		var extra []TraceStep
		for j := k - 1; j >= 1; j-- {
			extra = append(extra, TraceStep{St: STDG, K: j, I: i - 1})
		}
		return TraceStep{St: STG, I: i - 1}, extra, nil
	}
}
