package hmmer

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// CheckpointedMatrix bounds Forward/Backward memory to O(√L·M) by storing
// only a subset of rows and recomputing the rest during Backward, per
// spec.md §3.6/§4.5. Rows partition into three zones:
//
//   - A ("all"): the first Ra rows, each stored in full.
//   - B ("between"): at most one partial checkpoint block of width Lb.
//   - C ("checkpointed"): Rc blocks of shrinking width (Rc+1 down to 2),
//     only the last row of each block stored.
//
// Grounded on TuftsBCB-seq/hmm.go's flat-slice row storage, generalized
// to a two-tier (stored rows + scratch recompute buffer) layout; the
// layout arithmetic itself has no teacher analogue (the teacher never
// bounds memory), so it follows spec.md §3.6's closed form directly.
type CheckpointedMatrix struct {
	M, L int

	Ra, Rb, Rc int // row counts per zone
	La, Lb, Lc int // residue counts per zone
	Redline    bool

	rows       []*DenseMatrix // one single-row DenseMatrix per stored row, index 0..Ra+Rb+Rc
	rowAtIndex []int          // rows[j] holds data for original row rowAtIndex[j]

	scratch *DenseMatrix // recompute buffer for one checkpoint block, reused across blocks
}

// bytesPerRow estimates the per-row storage cost of a dense row at width
// m, for layout purposes: (m+1) main supercells * 6 floats + 9 specials,
// 4 bytes each.
func bytesPerRow(m int) int {
	return ((m+1)*nMainCells + nSpecialCells) * 4
}

// computeCheckpointLayout solves spec.md §3.6's quadratic closed form for
// the (Ra,Rb,Rc,Lb,Lc) layout that maximizes Ra (fewest rows needing
// recomputation) subject to a row budget, redlining (exceeding the
// budget) only when even the minimal √L checkpointing can't fit.
func computeCheckpointLayout(l, perRow, ramlimit int) (ra, rb, rc, lb, lc int, redline bool) {
	if l <= 0 {
		return 0, 0, 0, 0, 0, false
	}
	budgetRows := 0
	if perRow > 0 {
		budgetRows = ramlimit / perRow
	}
	lcOf := func(c int) int { return (c+2)*(c+1)/2 - 1 }

	if budgetRows >= l {
		return l, 0, 0, 0, 0, false
	}

	// Minimal Rc such that using the whole remaining budget as zone A
	// plus one full-width B block can reach L: (budgetRows-1) + Lc(Rc) >= L-1.
	findRc := func(maxRows int) int {
		need := l - maxRows + 1
		if need <= 0 {
			return 0
		}
		// (c+2)(c+1) >= 2*(need+1)
		c := int(math.Ceil((math.Sqrt(8*float64(need+1)+1) - 3) / 2))
		if c < 0 {
			c = 0
		}
		for lcOf(c)+c < need { // guard rounding
			c++
		}
		return c
	}

	rcCand := findRc(budgetRows)
	if rcCand <= budgetRows-1 && lcOf(rcCand)+(budgetRows-rcCand-1)+rcCand >= l {
		rc = rcCand
		ra = budgetRows - rc - 1
		if ra < 0 {
			ra = 0
		}
		lc = lcOf(rc)
		lb = l - ra - lc
		if lb < 0 {
			lb = 0
		}
		if lb > rc {
			lb = rc
		}
		ra = l - lb - lc
		rb = 0
		if lb > 0 {
			rb = 1
		}
		return ra, rb, rc, lb, lc, false
	}

	// Redline: ignore the budget and use the largest Rc whose checkpointed
	// zone fits inside L, a single partial block of at most Rc rows, and
	// Ra (0 or 1) for whatever remains.
	rc = findRc(0)
	for rc > 0 && lcOf(rc) > l {
		rc--
	}
	lc = lcOf(rc)
	lb = l - lc
	if lb < 0 {
		lb = 0
	}
	if lb > rc {
		lb = rc
	}
	ra = l - lb - lc
	if ra < 0 {
		ra = 0
	}
	rb = 0
	if lb > 0 {
		rb = 1
	}
	logrus.WithFields(logrus.Fields{"L": l, "ramlimit": ramlimit, "Ra": ra, "Rb": rb, "Rc": rc}).
		Warn("hmmer: checkpointed matrix redlining past ramlimit")
	return ra, rb, rc, lb, lc, true
}

// NewCheckpointedMatrix allocates layout and storage for a matrix of
// width m over a sequence of length l, targeting ramlimit bytes.
func NewCheckpointedMatrix(m, l, ramlimit int) (*CheckpointedMatrix, error) {
	if m <= 0 || l < 0 {
		return nil, fmt.Errorf("%w: invalid checkpoint matrix shape M=%d L=%d", ErrInvalidArg, m, l)
	}
	ra, rb, rc, lb, lc, redline := computeCheckpointLayout(l, bytesPerRow(m), ramlimit)
	cm := &CheckpointedMatrix{
		M: m, L: l,
		Ra: ra, Rb: rb, Rc: rc,
		La: ra, Lb: lb, Lc: lc,
		Redline: redline,
	}
	total := ra + rb + rc
	cm.rows = make([]*DenseMatrix, total+1) // +1 for row 0
	cm.rowAtIndex = make([]int, total+1)
	for i := range cm.rows {
		dm, err := NewDenseMatrix(m, 0)
		if err != nil {
			return nil, err
		}
		cm.rows[i] = dm
	}
	scratch, err := NewDenseMatrix(m, rc+1)
	if err != nil {
		return nil, err
	}
	cm.scratch = scratch
	logrus.WithFields(logrus.Fields{"M": m, "L": l, "Ra": ra, "Rb": rb, "Rc": rc}).Debug("hmmer: checkpointed matrix allocated")
	return cm, nil
}

// storedRowIndices computes, in ascending row order, which original rows
// 0..L are physically stored, mirroring the A/B/C zone layout.
func (cm *CheckpointedMatrix) storedRowIndices() []int {
	idx := make([]int, 0, cm.Ra+cm.Rb+cm.Rc+1)
	idx = append(idx, 0)
	for i := 1; i <= cm.Ra; i++ {
		idx = append(idx, i)
	}
	next := cm.Ra
	if cm.Rb > 0 {
		next += cm.Lb
		idx = append(idx, next)
	}
	width := cm.Rc + 1
	for b := 0; b < cm.Rc; b++ {
		next += width
		idx = append(idx, next)
		width--
	}
	return idx
}

// Forward runs the Forward recurrence across the full sequence, writing
// only to the stored rows (spec.md §4.5): "Forward pass writes to the
// stored rows only (one row per checkpoint block's end, plus every row
// in zone A)". Rows not stored are computed transiently and discarded;
// only cells needed to seed the next stored row survive past each step.
func (cm *CheckpointedMatrix) Forward(dsq []int, p *Profile) (float32, error) {
	stored := cm.storedRowIndices()
	storedSet := make(map[int]int, len(stored))
	for slot, r := range stored {
		storedSet[r] = slot
		if err := cm.rows[slot].Reuse(cm.M, 0); err != nil {
			return 0, err
		}
		cm.rowAtIndex[slot] = r
	}

	// A scratch two-row rolling buffer drives the recurrence; every row
	// that lands in storedSet gets copied into its permanent slot.
	roll, err := NewDenseMatrix(cm.M, 1)
	if err != nil {
		return 0, err
	}
	initForwardRow0(p, roll, cm.M)
	if slot, ok := storedSet[0]; ok {
		copyRow(roll, 0, cm.rows[slot], 0)
	}

	prev := roll
	var finalSp []float32
	for i := 1; i <= cm.L; i++ {
		cur, err := NewDenseMatrix(cm.M, 1)
		if err != nil {
			return 0, err
		}
		forwardRowStep(dsq, i, p, prev, 0, cur, 0)
		if slot, ok := storedSet[i]; ok {
			cm.rows[slot].Reuse(cm.M, 0)
			copyRow(cur, 0, cm.rows[slot], 0)
			cm.rowAtIndex[slot] = i
		}
		if i == cm.L {
			finalSp = append([]float32(nil), cur.Special(0)...)
		}
		prev = cur
	}
	if cm.L == 0 {
		return negInf, nil
	}
	return finalSp[Cc] + p.Xsc(XC, MOVE), nil
}

// copyRow copies row src of matrix from into row dst of matrix to; both
// matrices must share width M.
func copyRow(from *DenseMatrix, src int, to *DenseMatrix, dst int) {
	m := from.M
	for k := 0; k <= m; k++ {
		copy(to.Main(dst, k), from.Main(src, k))
	}
	copy(to.Special(dst), from.Special(src))
}

func initForwardRow0(p *Profile, mx *DenseMatrix, m int) {
	for k := 0; k <= m; k++ {
		cell := mx.Main(0, k)
		for c := range cell {
			cell[c] = negInf
		}
	}
	sp0 := mx.Special(0)
	sp0[Nc] = 0.0
	sp0[Bc] = p.Xsc(XN, MOVE)
	sp0[Lc] = sp0[Bc] + p.Xsc(XB, LOOP)
	sp0[Gc] = sp0[Bc] + p.Xsc(XB, MOVE)
	sp0[Ec], sp0[Jc], sp0[Cc], sp0[JJc], sp0[CCc] = negInf, negInf, negInf, negInf, negInf
}

// forwardRowStep fills row dstRow of dst from row srcRow of src (the
// preceding row), one Forward step, sharing the exact recurrence
// referenceRecursion uses for the Forward monoid.
func forwardRowStep(dsq []int, i int, p *Profile, src *DenseMatrix, srcRow int, dst *DenseMatrix, dstRow int) {
	m := p.M
	x := dsq[i]
	prevSp := src.Special(srcRow)
	xL, xG := prevSp[Lc], prevSp[Gc]

	cell0 := dst.Main(dstRow, 0)
	for c := range cell0 {
		cell0[c] = negInf
	}

	var dlv, dgv float32 = negInf, negInf
	var xE float32 = negInf

	for k := 1; k < m; k++ {
		prevK1 := src.Main(srcRow, k-1)
		cur := dst.Main(dstRow, k)

		mlv := p.Msc(k, x) + FLogSum(FLogSum(
			prevK1[MLc]+p.Tsc(k-1, TMM),
			prevK1[ILc]+p.Tsc(k-1, TIM)),
			FLogSum(prevK1[DLc]+p.Tsc(k-1, TDM), xL+p.Tsc(k-1, TLM)))
		mgv := p.Msc(k, x) + FLogSum(FLogSum(
			prevK1[MGc]+p.Tsc(k-1, TMM),
			prevK1[IGc]+p.Tsc(k-1, TIM)),
			FLogSum(prevK1[DGc]+p.Tsc(k-1, TDM), xG+p.Tsc(k-1, TGM)))

		prevK := src.Main(srcRow, k)
		ilv := p.Isc(k, x) + FLogSum(prevK[MLc]+p.Tsc(k, TMI), prevK[ILc]+p.Tsc(k, TII))
		igv := p.Isc(k, x) + FLogSum(prevK[MGc]+p.Tsc(k, TMI), prevK[IGc]+p.Tsc(k, TII))

		esc := p.ExitScore(k)
		xE = FLogSum3(mlv+esc, dlv+esc, xE)

		cur[MLc], cur[MGc], cur[ILc], cur[IGc] = mlv, mgv, ilv, igv
		cur[DLc], cur[DGc] = dlv, dgv

		dlv = FLogSum(mlv+p.Tsc(k, TMD), dlv+p.Tsc(k, TDD))
		dgv = FLogSum(mgv+p.Tsc(k, TMD), dgv+p.Tsc(k, TDD))
	}

	prevK1 := src.Main(srcRow, m-1)
	cur := dst.Main(dstRow, m)
	mlv := p.Msc(m, x) + FLogSum(FLogSum(
		prevK1[MLc]+p.Tsc(m-1, TMM),
		prevK1[ILc]+p.Tsc(m-1, TIM)),
		FLogSum(prevK1[DLc]+p.Tsc(m-1, TDM), xL+p.Tsc(m-1, TLM)))
	mgv := p.Msc(m, x) + FLogSum(FLogSum(
		prevK1[MGc]+p.Tsc(m-1, TMM),
		prevK1[IGc]+p.Tsc(m-1, TIM)),
		FLogSum(prevK1[DGc]+p.Tsc(m-1, TDM), xG+p.Tsc(m-1, TGM)))
	cur[MLc], cur[MGc] = mlv, mgv
	cur[ILc], cur[IGc] = negInf, negInf
	cur[DLc], cur[DGc] = dlv, dgv

	xE = FLogSum3(xE, mlv, dlv)
	xE = FLogSum3(xE, mgv, dgv)

	sp := dst.Special(dstRow)
	sp[Ec] = xE
	sp[Jc] = FLogSum(prevSp[Jc]+p.Xsc(XJ, LOOP), xE+p.Xsc(XE, LOOP))
	sp[Cc] = FLogSum(prevSp[Cc]+p.Xsc(XC, LOOP), xE+p.Xsc(XE, MOVE))
	sp[Nc] = prevSp[Nc] + p.Xsc(XN, LOOP)
	sp[Bc] = FLogSum(sp[Nc]+p.Xsc(XN, MOVE), sp[Jc]+p.Xsc(XJ, MOVE))
	sp[Lc] = sp[Bc] + p.Xsc(XB, LOOP)
	sp[Gc] = sp[Bc] + p.Xsc(XB, MOVE)
	sp[JJc], sp[CCc] = negInf, negInf
}

// Backward walks checkpoint blocks from last to first (spec.md §4.5): for
// each block it recomputes the Forward rows within the block, forward
// from the prior stored row, then runs Backward across those rows
// interleaved with a single rolling Backward row, invoking visit(i, fRow,
// bRow) for every row so the caller can accumulate Decoding in one pass
// without materializing a full second DenseMatrix.
func (cm *CheckpointedMatrix) Backward(dsq []int, p *Profile, visit func(i int, f, b *DenseMatrix, fRow, bRow int)) (float32, error) {
	stored := cm.storedRowIndices()
	slotOf := func(row int) int {
		for slot, r := range stored {
			if r == row {
				return slot
			}
		}
		return -1
	}

	bPrev, err := NewDenseMatrix(cm.M, 1)
	if err != nil {
		return 0, err
	}
	initBackwardRowL(p, bPrev, cm.M)
	if fSlot := slotOf(cm.L); fSlot >= 0 {
		visit(cm.L, cm.rows[fSlot], bPrev, 0, 0)
	}

	for s := len(stored) - 1; s >= 1; s-- {
		blockStart := stored[s-1]
		blockEnd := stored[s]
		width := blockEnd - blockStart
		if width <= 0 {
			continue
		}
		// Recompute Forward rows blockStart+1..blockEnd into scratch,
		// seeded from the stored row at blockStart.
		if err := cm.scratch.Reuse(cm.M, width); err != nil {
			return 0, err
		}
		copyRow(cm.rows[s-1], 0, cm.scratch, 0)
		for off := 1; off <= width; off++ {
			forwardRowStep(dsq, blockStart+off, p, cm.scratch, off-1, cm.scratch, off)
		}
		// Walk Backward across the block from blockEnd-1 down to
		// blockStart (row blockEnd was computed by the previous step),
		// visiting each row against its recomputed Forward counterpart.
		for i := blockEnd - 1; i >= blockStart; i-- {
			bCur, err := NewDenseMatrix(cm.M, 1)
			if err != nil {
				return 0, err
			}
			backwardRowStep(dsq, i, p, bPrev, 0, bCur, 0)
			visit(i, cm.scratch, bCur, i-blockStart, 0)
			bPrev = bCur
		}
	}
	if cm.L == 0 {
		return negInf, nil
	}
	return bPrev.Special(0)[Nc], nil
}

func initBackwardRowL(p *Profile, mx *DenseMatrix, m int) {
	spL := mx.Special(0)
	spL[Cc] = p.Xsc(XC, MOVE)
	spL[Ec] = spL[Cc] + p.Xsc(XE, MOVE)
	spL[Jc], spL[Bc], spL[Lc], spL[Gc], spL[Nc] = negInf, negInf, negInf, negInf, negInf
	spL[JJc], spL[CCc] = negInf, negInf

	cell0 := mx.Main(0, 0)
	for c := range cell0 {
		cell0[c] = negInf
	}
	for k := m; k >= 1; k-- {
		cell := mx.Main(0, k)
		cell[MLc] = spL[Ec] + p.ExitScore(k)
		cell[MGc] = spL[Ec]
		cell[DLc] = spL[Ec] + p.ExitScore(k)
		cell[DGc] = spL[Ec]
		cell[ILc], cell[IGc] = negInf, negInf
	}
	for k := 1; k < m; k++ {
		cell := mx.Main(0, k)
		cell[MGc], cell[DGc] = negInf, negInf
	}
}

// backwardRowStep fills row dstRow of dst (row i's Backward values) from
// row srcRow of src (row i+1's Backward values), sharing
// ReferenceBackward's recurrence.
func backwardRowStep(dsq []int, i int, p *Profile, src *DenseMatrix, srcRow int, dst *DenseMatrix, dstRow int) {
	m := p.M
	x := dsq[i+1]
	nextSp := src.Special(srcRow)
	sp := dst.Special(dstRow)

	var xL, xG float32 = negInf, negInf
	for k := 1; k <= m; k++ {
		nxt := src.Main(srcRow, k)
		mEmit := p.Msc(k, x)
		xL = FLogSum(xL, p.Tsc(k-1, TLM)+mEmit+nxt[MLc])
		xG = FLogSum(xG, p.Tsc(k-1, TGM)+mEmit+nxt[MGc])
	}
	sp[Lc], sp[Gc] = xL, xG
	sp[Bc] = FLogSum(sp[Lc]+p.Xsc(XB, LOOP), sp[Gc]+p.Xsc(XB, MOVE))
	sp[Cc] = nextSp[Cc] + p.Xsc(XC, LOOP)
	sp[Jc] = FLogSum(nextSp[Jc]+p.Xsc(XJ, LOOP), sp[Bc]+p.Xsc(XJ, MOVE))
	sp[Ec] = FLogSum(sp[Jc]+p.Xsc(XE, LOOP), sp[Cc]+p.Xsc(XE, MOVE))
	sp[Nc] = FLogSum(nextSp[Nc]+p.Xsc(XN, LOOP), sp[Bc]+p.Xsc(XN, MOVE))
	sp[JJc], sp[CCc] = negInf, negInf

	cell0 := dst.Main(dstRow, 0)
	for c := range cell0 {
		cell0[c] = negInf
	}

	cellM := dst.Main(dstRow, m)
	cellM[MLc] = sp[Ec] + p.ExitScore(m)
	cellM[MGc] = sp[Ec]
	cellM[DLc] = sp[Ec] + p.ExitScore(m)
	cellM[DGc] = sp[Ec]
	cellM[ILc], cellM[IGc] = negInf, negInf

	dlv, dgv := cellM[DLc], cellM[DGc]
	for k := m - 1; k >= 1; k-- {
		cur := dst.Main(dstRow, k)
		nxt := src.Main(srcRow, k+1)
		nxtSame := src.Main(srcRow, k)
		mEmit := p.Msc(k+1, x)
		iEmit := p.Isc(k, x)
		esc := p.ExitScore(k)

		mlv := FLogSum3(
			p.Tsc(k, TMM)+mEmit+nxt[MLc],
			p.Tsc(k, TMI)+iEmit+nxtSame[ILc],
			p.Tsc(k, TMD)+dlv)
		mlv = FLogSum(mlv, sp[Ec]+esc)
		mgv := FLogSum3(
			p.Tsc(k, TMM)+mEmit+nxt[MGc],
			p.Tsc(k, TMI)+iEmit+nxtSame[IGc],
			p.Tsc(k, TMD)+dgv)
		ilv := FLogSum(p.Tsc(k, TIM)+mEmit+nxt[MLc], p.Tsc(k, TII)+iEmit+nxtSame[ILc])
		igv := FLogSum(p.Tsc(k, TIM)+mEmit+nxt[MGc], p.Tsc(k, TII)+iEmit+nxtSame[IGc])

		newDlv := FLogSum3(p.Tsc(k, TDM)+mEmit+nxt[MLc], p.Tsc(k, TDD)+dlv, sp[Ec]+esc)
		newDgv := FLogSum(p.Tsc(k, TDM)+mEmit+nxt[MGc], p.Tsc(k, TDD)+dgv)

		cur[MLc], cur[MGc], cur[ILc], cur[IGc] = mlv, mgv, ilv, igv
		cur[DLc], cur[DGc] = newDlv, newDgv
		dlv, dgv = newDlv, newDgv
	}
}
