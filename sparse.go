package hmmer

import (
	"fmt"
	"sort"
)

// SparseMask is the per-row list of model positions a prefilter judged
// worth computing, per spec.md §3.5. Row i's list must be sorted
// ascending and either empty or at least two entries long; a run of
// empty rows is a segment boundary that sparse DP must still advance
// flanking-state loops across (spec.md §4.6).
type SparseMask struct {
	L    int
	rows [][]int // index 0..L; rows[0] always unused/empty
}

// NewSparseMask allocates an empty mask for a sequence of length l.
func NewSparseMask(l int) *SparseMask {
	return &SparseMask{L: l, rows: make([][]int, l+1)}
}

// SetRow records the included model positions for row i, sorting them.
// An empty slice is valid (no cells active on that row); a single-entry
// slice is rejected, per spec.md §3.5's "at least 2 cells per row"
// validity rule.
func (sm *SparseMask) SetRow(i int, ks []int) error {
	if i < 1 || i > sm.L {
		return fmt.Errorf("%w: sparse mask row %d out of range [1,%d]", ErrInvalidArg, i, sm.L)
	}
	if len(ks) == 1 {
		return fmt.Errorf("%w: sparse mask row %d has exactly one cell, need 0 or >=2", ErrInvalidArg, i)
	}
	cp := append([]int(nil), ks...)
	sort.Ints(cp)
	sm.rows[i] = cp
	return nil
}

// Row returns the sorted included positions for row i (nil if empty).
func (sm *SparseMask) Row(i int) []int { return sm.rows[i] }

// Contains reports whether position k is included at row i.
func (sm *SparseMask) Contains(i, k int) bool {
	if i < 0 || i > sm.L {
		return false
	}
	ks := sm.rows[i]
	idx := sort.SearchInts(ks, k)
	return idx < len(ks) && ks[idx] == k
}

// Segments returns the inclusive [start,end] row ranges of consecutive
// non-empty rows, in ascending order; the gaps between them are the
// empty-row runs sparse DP must advance specials across without
// touching any main cell.
func (sm *SparseMask) Segments() [][2]int {
	var segs [][2]int
	start := -1
	for i := 1; i <= sm.L; i++ {
		if len(sm.rows[i]) > 0 {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			segs = append(segs, [2]int{start, i - 1})
			start = -1
		}
	}
	if start >= 0 {
		segs = append(segs, [2]int{start, sm.L})
	}
	return segs
}

// SparseMatrix stores only the main-supercell values the mask includes,
// plus a dense specials row for every i (specials are never sparse:
// every row has a flanking-state value even when no main cell is
// active). Adapted from DenseMatrix's flat-backing-array idiom, with a
// per-row offset table standing in for DenseMatrix's fixed stride.
type SparseMatrix struct {
	mask    *SparseMask
	M       int
	main    []float32
	offsets []int // offsets[i] = start index into main for row i
	special []float32
	Type    string
}

// NewSparseMatrix allocates storage sized exactly to mask's occupied
// cells, for a profile of width m.
func NewSparseMatrix(mask *SparseMask, m int) (*SparseMatrix, error) {
	if mask == nil {
		return nil, fmt.Errorf("%w: nil sparse mask", ErrInvalidArg)
	}
	l := mask.L
	offsets := make([]int, l+2)
	total := 0
	for i := 1; i <= l; i++ {
		offsets[i] = total
		total += len(mask.rows[i]) * nMainCells
	}
	offsets[l+1] = total
	return &SparseMatrix{
		mask:    mask,
		M:       m,
		main:    make([]float32, total),
		offsets: offsets,
		special: make([]float32, (l+1)*nSpecialCells),
	}, nil
}

// cellOffset returns the offset of (i,k)'s six floats within main, and
// whether that cell is present in the mask.
func (sx *SparseMatrix) cellOffset(i, k int) (int, bool) {
	if i < 0 || i > sx.mask.L {
		return 0, false
	}
	ks := sx.mask.rows[i]
	idx := sort.SearchInts(ks, k)
	if idx >= len(ks) || ks[idx] != k {
		return 0, false
	}
	return sx.offsets[i] + idx*nMainCells, true
}

// Main returns the six main-state cells at (i,k), or nil if that cell
// is absent from the mask (the sparse DP substitutes -Inf for nil reads,
// per spec.md §4.6).
func (sx *SparseMatrix) Main(i, k int) []float32 {
	off, ok := sx.cellOffset(i, k)
	if !ok {
		return nil
	}
	return sx.main[off : off+nMainCells]
}

// Special returns the nine special cells at row i (always present).
func (sx *SparseMatrix) Special(i int) []float32 {
	o := i * nSpecialCells
	return sx.special[o : o+nSpecialCells]
}

func cellOrNegInf(cell []float32, idx int) float32 {
	if cell == nil {
		return negInf
	}
	return cell[idx]
}

// SparseViterbi fills mx with the max-plus sparse recurrence restricted
// to mask's cells (spec.md §4.6).
func SparseViterbi(dsq []int, p *Profile, mask *SparseMask, mx *SparseMatrix) (float32, error) {
	return sparseRecursion(dsq, p, mask, mx, fMax, fMax3, fMax4, false)
}

// SparseForward fills mx with the log-sum-plus sparse recurrence
// restricted to mask's cells (spec.md §4.6).
func SparseForward(dsq []int, p *Profile, mask *SparseMask, mx *SparseMatrix) (float32, error) {
	return sparseRecursion(dsq, p, mask, mx, FLogSum, FLogSum3, flogsum4, true)
}

// sparseRecursion shares the forward-sweep structure with
// referenceRecursion (spec.md §9), restricted to mask-included cells.
// Missing predecessors (a cell absent from the previous row's mask, or
// from the current row when chaining delete states) contribute -Inf,
// per spec.md §4.6's substitution rule; a run of empty rows still
// advances N/J/C once per residue via the specials update, which runs
// unconditionally regardless of how many cells (if any) the row's mask
// includes.
func sparseRecursion(dsq []int, p *Profile, mask *SparseMask, mx *SparseMatrix,
	comb2 func(a, b float32) float32,
	comb3 func(a, b, c float32) float32,
	comb4 func(a, b, c, d float32) float32,
	includeDLinE bool) (float32, error) {

	if err := checkDPArgs(p, dsq, mask.L); err != nil {
		return 0, err
	}
	l, m := mask.L, p.M
	mx.Type = "SparseDP"

	sp0 := mx.Special(0)
	sp0[Nc] = 0.0
	sp0[Bc] = p.Xsc(XN, MOVE)
	sp0[Lc] = sp0[Bc] + p.Xsc(XB, LOOP)
	sp0[Gc] = sp0[Bc] + p.Xsc(XB, MOVE)
	sp0[Ec], sp0[Jc], sp0[Cc], sp0[JJc], sp0[CCc] = negInf, negInf, negInf, negInf, negInf

	for i := 1; i <= l; i++ {
		x := dsq[i]
		prevSp := mx.Special(i - 1)
		xL, xG := prevSp[Lc], prevSp[Gc]
		ks := mask.Row(i)

		var xE float32 = negInf
		lastK := -1
		var dlvEntry, dgvEntry float32 = negInf, negInf
		var carryDlv, carryDgv float32 = negInf, negInf

		for _, k := range ks {
			if lastK == k-1 {
				dlvEntry, dgvEntry = carryDlv, carryDgv
			} else {
				dlvEntry, dgvEntry = negInf, negInf
			}

			prevK1 := mx.Main(i-1, k-1)
			prevK := mx.Main(i-1, k)

			mlv := p.Msc(k, x) + comb4(
				cellOrNegInf(prevK1, MLc)+p.Tsc(k-1, TMM),
				cellOrNegInf(prevK1, ILc)+p.Tsc(k-1, TIM),
				cellOrNegInf(prevK1, DLc)+p.Tsc(k-1, TDM),
				xL+p.Tsc(k-1, TLM))
			mgv := p.Msc(k, x) + comb4(
				cellOrNegInf(prevK1, MGc)+p.Tsc(k-1, TMM),
				cellOrNegInf(prevK1, IGc)+p.Tsc(k-1, TIM),
				cellOrNegInf(prevK1, DGc)+p.Tsc(k-1, TDM),
				xG+p.Tsc(k-1, TGM))

			var ilv, igv float32 = negInf, negInf
			if k < m {
				ilv = p.Isc(k, x) + comb2(cellOrNegInf(prevK, MLc)+p.Tsc(k, TMI), cellOrNegInf(prevK, ILc)+p.Tsc(k, TII))
				igv = p.Isc(k, x) + comb2(cellOrNegInf(prevK, MGc)+p.Tsc(k, TMI), cellOrNegInf(prevK, IGc)+p.Tsc(k, TII))
			}

			esc := p.ExitScore(k)
			if includeDLinE {
				xE = comb3(mlv+esc, dlvEntry+esc, xE)
			} else {
				xE = comb2(mlv+esc, xE)
			}
			if k == m {
				xE = comb3(xE, mgv, dgvEntry)
			}

			cur := mx.Main(i, k)
			cur[MLc], cur[MGc], cur[ILc], cur[IGc] = mlv, mgv, ilv, igv
			cur[DLc], cur[DGc] = dlvEntry, dgvEntry

			carryDlv = comb2(mlv+p.Tsc(k, TMD), dlvEntry+p.Tsc(k, TDD))
			carryDgv = comb2(mgv+p.Tsc(k, TMD), dgvEntry+p.Tsc(k, TDD))
			lastK = k
		}

		sp := mx.Special(i)
		sp[Ec] = xE
		sp[Jc] = comb2(prevSp[Jc]+p.Xsc(XJ, LOOP), xE+p.Xsc(XE, LOOP))
		sp[Cc] = comb2(prevSp[Cc]+p.Xsc(XC, LOOP), xE+p.Xsc(XE, MOVE))
		sp[Nc] = prevSp[Nc] + p.Xsc(XN, LOOP)
		sp[Bc] = comb2(sp[Nc]+p.Xsc(XN, MOVE), sp[Jc]+p.Xsc(XJ, MOVE))
		sp[Lc] = sp[Bc] + p.Xsc(XB, LOOP)
		sp[Gc] = sp[Bc] + p.Xsc(XB, MOVE)
		sp[JJc], sp[CCc] = negInf, negInf
	}

	if l == 0 {
		return negInf, nil
	}
	return mx.Special(l)[Cc] + p.Xsc(XC, MOVE), nil
}

// SparseBackward fills mx with the Backward recurrence restricted to
// mask's cells, mirroring ReferenceBackward (spec.md §4.3.3, §4.6).
func SparseBackward(dsq []int, p *Profile, mask *SparseMask, mx *SparseMatrix) (float32, error) {
	if err := checkDPArgs(p, dsq, mask.L); err != nil {
		return 0, err
	}
	l, m := mask.L, p.M
	mx.Type = "SparseDP"

	spL := mx.Special(l)
	spL[Cc] = p.Xsc(XC, MOVE)
	spL[Ec] = spL[Cc] + p.Xsc(XE, MOVE)
	spL[Jc], spL[Bc], spL[Lc], spL[Gc], spL[Nc] = negInf, negInf, negInf, negInf, negInf
	spL[JJc], spL[CCc] = negInf, negInf

	ksL := mask.Row(l)
	var dlvL, dgvL float32 = negInf, negInf // D values of cell k+1 on row L, when it is in the mask
	for idx := len(ksL) - 1; idx >= 0; idx-- {
		k := ksL[idx]
		if idx == len(ksL)-1 || ksL[idx+1] != k+1 {
			dlvL, dgvL = negInf, negInf
		}
		cell := mx.Main(l, k)
		esc := p.ExitScore(k)
		cell[MLc] = FLogSum(p.Tsc(k, TMD)+dlvL, spL[Ec]+esc)
		cell[DLc] = FLogSum(p.Tsc(k, TDD)+dlvL, spL[Ec]+esc)
		if k == m {
			cell[MGc], cell[DGc] = spL[Ec], spL[Ec]
		} else {
			cell[MGc], cell[DGc] = p.Tsc(k, TMD)+dgvL, p.Tsc(k, TDD)+dgvL
		}
		cell[ILc], cell[IGc] = negInf, negInf
		dlvL, dgvL = cell[DLc], cell[DGc]
	}

	for i := l - 1; i >= 0; i-- {
		x := dsq[i+1]
		nextSp := mx.Special(i + 1)
		sp := mx.Special(i)
		nextKs := mask.Row(i + 1)

		var xL, xG float32 = negInf, negInf
		for _, k := range nextKs {
			nxt := mx.Main(i+1, k)
			mEmit := p.Msc(k, x)
			xL = FLogSum(xL, p.Tsc(k-1, TLM)+mEmit+cellOrNegInf(nxt, MLc))
			xG = FLogSum(xG, p.Tsc(k-1, TGM)+mEmit+cellOrNegInf(nxt, MGc))
		}
		sp[Lc], sp[Gc] = xL, xG
		sp[Bc] = FLogSum(sp[Lc]+p.Xsc(XB, LOOP), sp[Gc]+p.Xsc(XB, MOVE))
		sp[Cc] = nextSp[Cc] + p.Xsc(XC, LOOP)
		sp[Jc] = FLogSum(nextSp[Jc]+p.Xsc(XJ, LOOP), sp[Bc]+p.Xsc(XJ, MOVE))
		sp[Ec] = FLogSum(sp[Jc]+p.Xsc(XE, LOOP), sp[Cc]+p.Xsc(XE, MOVE))
		sp[Nc] = FLogSum(nextSp[Nc]+p.Xsc(XN, LOOP), sp[Bc]+p.Xsc(XN, MOVE))
		sp[JJc], sp[CCc] = negInf, negInf

		if i == l {
			continue
		}
		ks := mask.Row(i)
		lastK := -1
		var dlv, dgv float32 = negInf, negInf
		for idx := len(ks) - 1; idx >= 0; idx-- {
			k := ks[idx]
			if lastK != k+1 {
				dlv, dgv = negInf, negInf
				if k == m {
					dlv, dgv = sp[Ec]+p.ExitScore(m), sp[Ec]
				}
			}
			var nxt, nxtSame []float32
			if k < m {
				nxt = mx.Main(i+1, k+1)
				nxtSame = mx.Main(i+1, k)
			}
			mEmit := p.Msc(k+1, x)
			iEmit := p.Isc(k, x)
			esc := p.ExitScore(k)

			var mlv, mgv, ilv, igv float32
			if k == m {
				mlv, mgv = sp[Ec]+esc, sp[Ec]
				ilv, igv = negInf, negInf
			} else {
				mlv = FLogSum3(
					p.Tsc(k, TMM)+mEmit+cellOrNegInf(nxt, MLc),
					p.Tsc(k, TMI)+iEmit+cellOrNegInf(nxtSame, ILc),
					p.Tsc(k, TMD)+dlv)
				mlv = FLogSum(mlv, sp[Ec]+esc)
				mgv = FLogSum3(
					p.Tsc(k, TMM)+mEmit+cellOrNegInf(nxt, MGc),
					p.Tsc(k, TMI)+iEmit+cellOrNegInf(nxtSame, IGc),
					p.Tsc(k, TMD)+dgv)
				ilv = FLogSum(p.Tsc(k, TIM)+mEmit+cellOrNegInf(nxt, MLc), p.Tsc(k, TII)+iEmit+cellOrNegInf(nxtSame, ILc))
				igv = FLogSum(p.Tsc(k, TIM)+mEmit+cellOrNegInf(nxt, MGc), p.Tsc(k, TII)+iEmit+cellOrNegInf(nxtSame, IGc))
			}

			cur := mx.Main(i, k)
			cur[MLc], cur[MGc], cur[ILc], cur[IGc] = mlv, mgv, ilv, igv

			if k < m {
				newDlv := FLogSum3(p.Tsc(k, TDM)+mEmit+cellOrNegInf(nxt, MLc), p.Tsc(k, TDD)+dlv, sp[Ec]+esc)
				newDgv := FLogSum(p.Tsc(k, TDM)+mEmit+cellOrNegInf(nxt, MGc), p.Tsc(k, TDD)+dgv)
				cur[DLc], cur[DGc] = newDlv, newDgv
				dlv, dgv = newDlv, newDgv
			} else {
				cur[DLc], cur[DGc] = dlv, dgv
			}
			lastK = k
		}
	}
	return mx.Special(0)[Nc], nil
}

// SparseDecoding computes posterior probabilities from sparse Forward
// matrix f and Backward matrix b onto dec, mirroring ReferenceDecoding
// (spec.md §4.3.4) restricted to mask's cells.
func SparseDecoding(f, b *SparseMatrix, p *Profile, totsc float32, dec *SparseMatrix) error {
	mask := f.mask
	l := mask.L
	for i := 0; i <= l; i++ {
		fsp, bsp := f.Special(i), b.Special(i)
		dsp := dec.Special(i)
		for s := 0; s < nSpecialCells; s++ {
			dsp[s] = 0
		}
		dsp[Ec] = postProb(fsp[Ec], bsp[Ec], totsc)
		dsp[Bc] = postProb(fsp[Bc], bsp[Bc], totsc)
		dsp[Lc] = postProb(fsp[Lc], bsp[Lc], totsc)
		dsp[Gc] = postProb(fsp[Gc], bsp[Gc], totsc)
		if i > 0 {
			dsp[JJc] = postProb(f.Special(i-1)[Jc]+p.Xsc(XJ, LOOP), bsp[Jc], totsc)
			dsp[CCc] = postProb(f.Special(i-1)[Cc]+p.Xsc(XC, LOOP), bsp[Cc], totsc)
			dsp[Nc] = postProb(f.Special(i-1)[Nc]+p.Xsc(XN, LOOP), bsp[Nc], totsc)
		}
		dsp[Jc] = postProb(fsp[Jc], bsp[Jc], totsc)
		dsp[Cc] = postProb(fsp[Cc], bsp[Cc], totsc)

		rowSum := dsp[JJc] + dsp[CCc] + dsp[Nc]
		for _, k := range mask.Row(i) {
			fc, bc := f.Main(i, k), b.Main(i, k)
			dc := dec.Main(i, k)
			for c := 0; c < nMainCells; c++ {
				dc[c] = postProb(fc[c], bc[c], totsc)
			}
			if i > 0 {
				rowSum += dc[MLc] + dc[MGc] + dc[ILc] + dc[IGc]
			}
		}
		if i > 0 && rowSum > 0 {
			scale := 1.0 / rowSum
			for _, k := range mask.Row(i) {
				dc := dec.Main(i, k)
				dc[MLc] *= scale
				dc[MGc] *= scale
				dc[ILc] *= scale
				dc[IGc] *= scale
			}
			dsp[JJc] *= scale
			dsp[CCc] *= scale
			dsp[Nc] *= scale
		}
	}
	return nil
}
