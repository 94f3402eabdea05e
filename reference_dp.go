package hmmer

import "fmt"

// ReferenceDP implements the dense, unbanded DP recurrences of spec.md
// §4.3: Viterbi (max-plus), Forward/Backward (log-sum-plus), posterior
// Decoding, and gamma-centroid Alignment. All operate on a DenseMatrix
// sized for the given profile and sequence, and all follow the same row
// order: main cells for k=1..M, then specials, for i=1..L (spec.md §5's
// "row i must be fully computed before row i+1 begins").
//
// Grounded on TuftsBCB-seq/hmm.go's ViterbiScoreMem, generalized from its
// 3-state (M/I/D) single-hit local model to the 6-state dual local/
// glocal multihit model spec.md §3.2/§4.3 describes; the deferred-
// storage trick for delete states (spec.md §9) is carried over from that
// recurrence's here/table.set bookkeeping.

func checkDPArgs(p *Profile, dsq []int, l int) error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", ErrInvalidArg)
	}
	if l < 0 {
		return fmt.Errorf("%w: negative sequence length %d", ErrInvalidArg, l)
	}
	if len(dsq) < l+2 {
		return fmt.Errorf("%w: dsq too short for L=%d", ErrInvalidArg, l)
	}
	return nil
}

// ReferenceViterbi fills mx with the Viterbi (max-plus) matrix for dsq
// against p and returns the raw score in nats, per spec.md §4.3.1.
func ReferenceViterbi(dsq []int, l int, p *Profile, mx *DenseMatrix) (float32, error) {
	if err := checkDPArgs(p, dsq, l); err != nil {
		return 0, err
	}
	if err := mx.GrowTo(p.M, l); err != nil {
		return 0, err
	}
	mx.Type = "Viterbi"
	return referenceRecursion(dsq, l, p, mx, fMax, fMax3, fMax4, false)
}

// ReferenceForward fills mx with the Forward (log-sum-plus) matrix for
// dsq against p and returns the raw Forward score in nats, per spec.md
// §4.3.2.
func ReferenceForward(dsq []int, l int, p *Profile, mx *DenseMatrix) (float32, error) {
	if err := checkDPArgs(p, dsq, l); err != nil {
		return 0, err
	}
	if err := mx.GrowTo(p.M, l); err != nil {
		return 0, err
	}
	mx.Type = "Forward"
	return referenceRecursion(dsq, l, p, mx, FLogSum, FLogSum3, flogsum4, true)
}

func flogsum4(a, b, c, d float32) float32 {
	return FLogSum(FLogSum(a, b), FLogSum(c, d))
}

// referenceRecursion is the shared forward-sweep structure behind
// Viterbi and Forward (spec.md §9: "Implementers may abstract this as a
// capability {combine(x,y), zero} or they may duplicate the code"). comb2/
// comb3/comb4 are the 2/3/4-ary combine of the chosen monoid; includeDLinE
// selects whether the local D_L->E edge contributes to xE (true only for
// the sum semantics of Forward, per spec.md §4.3.2).
func referenceRecursion(dsq []int, l int, p *Profile, mx *DenseMatrix,
	comb2 func(a, b float32) float32,
	comb3 func(a, b, c float32) float32,
	comb4 func(a, b, c, d float32) float32,
	includeDLinE bool) (float32, error) {

	m := p.M
	row0 := mx.Main(0, 0)
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
	_ = row0

	for i := 1; i <= l; i++ {
		x := dsq[i]
		prevSp := mx.Special(i - 1)
		xL, xG := prevSp[Lc], prevSp[Gc]

		cell0 := mx.Main(i, 0)
		for c := range cell0 {
			cell0[c] = negInf
		}

		var dlv, dgv float32 = negInf, negInf
		var xE float32 = negInf

		for k := 1; k < m; k++ {
			prevK1 := mx.Main(i-1, k-1)
			cur := mx.Main(i, k)

			mlv := p.Msc(k, x) + comb4(
				prevK1[MLc]+p.Tsc(k-1, TMM),
				prevK1[ILc]+p.Tsc(k-1, TIM),
				prevK1[DLc]+p.Tsc(k-1, TDM),
				xL+p.Tsc(k-1, TLM))
			mgv := p.Msc(k, x) + comb4(
				prevK1[MGc]+p.Tsc(k-1, TMM),
				prevK1[IGc]+p.Tsc(k-1, TIM),
				prevK1[DGc]+p.Tsc(k-1, TDM),
				xG+p.Tsc(k-1, TGM))

			prevK := mx.Main(i-1, k)
			ilv := p.Isc(k, x) + comb2(prevK[MLc]+p.Tsc(k, TMI), prevK[ILc]+p.Tsc(k, TII))
			igv := p.Isc(k, x) + comb2(prevK[MGc]+p.Tsc(k, TMI), prevK[IGc]+p.Tsc(k, TII))

			esc := p.ExitScore(k) // 0 if local, -Inf if glocal-only (k<M)
			if includeDLinE {
				xE = comb3(mlv+esc, dlv+esc, xE)
			} else {
				xE = comb2(mlv+esc, xE)
			}

			cur[MLc], cur[MGc], cur[ILc], cur[IGc] = mlv, mgv, ilv, igv
			cur[DLc], cur[DGc] = dlv, dgv

			dlv = comb2(mlv+p.Tsc(k, TMD), dlv+p.Tsc(k, TDD))
			dgv = comb2(mgv+p.Tsc(k, TMD), dgv+p.Tsc(k, TDD))
		}

		// k==M: unrolled. No insert state; glocal exit unconditional.
		prevK1 := mx.Main(i-1, m-1)
		cur := mx.Main(i, m)
		mlv := p.Msc(m, x) + comb4(
			prevK1[MLc]+p.Tsc(m-1, TMM),
			prevK1[ILc]+p.Tsc(m-1, TIM),
			prevK1[DLc]+p.Tsc(m-1, TDM),
			xL+p.Tsc(m-1, TLM))
		mgv := p.Msc(m, x) + comb4(
			prevK1[MGc]+p.Tsc(m-1, TMM),
			prevK1[IGc]+p.Tsc(m-1, TIM),
			prevK1[DGc]+p.Tsc(m-1, TDM),
			xG+p.Tsc(m-1, TGM))
		cur[MLc], cur[MGc] = mlv, mgv
		cur[ILc], cur[IGc] = negInf, negInf
		cur[DLc], cur[DGc] = dlv, dgv

		if includeDLinE {
			xE = comb3(xE, mlv, dlv)
		} else {
			xE = comb2(xE, mlv)
		}
		xE = comb3(xE, mgv, dgv) // glocal exit is unconditional at k=M

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
	finalSp := mx.Special(l)
	return finalSp[Cc] + p.Xsc(XC, MOVE), nil
}

// ReferenceBackward fills mx with the Backward matrix for dsq against p
// and returns the raw Backward score (N(0) under exact arithmetic, equal
// to the Forward score), per spec.md §4.3.3.
//
// Each cell (i,k) holds "probability of generating x_{i+1..L} starting
// from that state at row i". Because none of exit (->E), entry (B->L/G),
// or the J/C/N loop-vs-move choice consume a residue, every special on
// row i is a function of row i+1 alone and so is filled before row i's
// main cells (the mirror image of the forward fill, which computes main
// cells before specials). The delete-state deferred-storage trick is
// mirrored too: D(i,k) depends on D(i,k+1), so k descends from M to 1.
func ReferenceBackward(dsq []int, l int, p *Profile, mx *DenseMatrix) (float32, error) {
	if err := checkDPArgs(p, dsq, l); err != nil {
		return 0, err
	}
	if err := mx.GrowTo(p.M, l); err != nil {
		return 0, err
	}
	mx.Type = "Backward"
	m := p.M

	spL := mx.Special(l)
	spL[Cc] = p.Xsc(XC, MOVE)
	spL[Ec] = spL[Cc] + p.Xsc(XE, MOVE)
	spL[Jc], spL[Bc], spL[Lc], spL[Gc], spL[Nc] = negInf, negInf, negInf, negInf, negInf
	spL[JJc], spL[CCc] = negInf, negInf

	cell0L := mx.Main(l, 0)
	for c := range cell0L {
		cell0L[c] = negInf
	}

	cellM := mx.Main(l, m)
	cellM[MLc] = spL[Ec] + p.ExitScore(m)
	cellM[MGc] = spL[Ec] // unconditional glocal exit, k==M only
	cellM[DLc] = spL[Ec] + p.ExitScore(m)
	cellM[DGc] = spL[Ec]
	cellM[ILc], cellM[IGc] = negInf, negInf

	// Same-row delete-wing propagation for k=M-1..1 (spec.md §4.3.3): with
	// no row L+1, every M_k/I_k contribution that requires emitting one
	// more residue is unreachable, but the D_k->D_{k+1} chain and the
	// direct D_k->E/M_k->E exit still reach row L's E, mirroring the
	// interior-row recursion below with its cross-row terms dropped.
	dlv, dgv := cellM[DLc], cellM[DGc]
	for k := m - 1; k >= 1; k-- {
		cur := mx.Main(l, k)
		esc := p.ExitScore(k)

		mlv := FLogSum(p.Tsc(k, TMD)+dlv, spL[Ec]+esc)
		mgv := p.Tsc(k, TMD) + dgv

		newDlv := FLogSum(p.Tsc(k, TDD)+dlv, spL[Ec]+esc)
		newDgv := p.Tsc(k, TDD) + dgv

		cur[MLc], cur[MGc] = mlv, mgv
		cur[ILc], cur[IGc] = negInf, negInf
		cur[DLc], cur[DGc] = newDlv, newDgv
		dlv, dgv = newDlv, newDgv
	}

	for i := l - 1; i >= 0; i-- {
		x := dsq[i+1]
		nextSp := mx.Special(i + 1)
		sp := mx.Special(i)

		var xL, xG float32 = negInf, negInf
		for k := 1; k <= m; k++ {
			nxt := mx.Main(i+1, k)
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

		cell0 := mx.Main(i, 0)
		for c := range cell0 {
			cell0[c] = negInf
		}

		cellM := mx.Main(i, m)
		cellM[MLc] = sp[Ec] + p.ExitScore(m)
		cellM[MGc] = sp[Ec]
		cellM[DLc] = sp[Ec] + p.ExitScore(m)
		cellM[DGc] = sp[Ec]
		cellM[ILc], cellM[IGc] = negInf, negInf

		dlv, dgv := cellM[DLc], cellM[DGc]
		for k := m - 1; k >= 1; k-- {
			cur := mx.Main(i, k)
			nxt := mx.Main(i+1, k+1)
			nxtSame := mx.Main(i+1, k)
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
	return mx.Special(0)[Nc], nil
}

// ReferenceDecoding computes posterior probabilities from Forward matrix
// f and Backward matrix b (both for the same sequence), writing them
// into dec, per spec.md §4.3.4. totsc is the Forward score. Row-wise
// renormalization guards against flogsum table drift: emitting-state
// posteriors on each row are rescaled to sum to exactly 1.0.
func ReferenceDecoding(f, b *DenseMatrix, p *Profile, dsq []int, totsc float32, dec *DenseMatrix) error {
	if f.M != b.M || f.L != b.L {
		return fmt.Errorf("%w: forward/backward matrix shape mismatch", ErrInvalidArg)
	}
	if err := dec.GrowTo(f.M, f.L); err != nil {
		return err
	}
	dec.Type = "Decoding"
	m, l := f.M, f.L

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
			fprevJ := f.Special(i - 1)[Jc]
			dsp[JJc] = postProb(fprevJ+p.Xsc(XJ, LOOP), bsp[Jc], totsc)
			fprevC := f.Special(i - 1)[Cc]
			dsp[CCc] = postProb(fprevC+p.Xsc(XC, LOOP), bsp[Cc], totsc)
			dsp[Nc] = postProb(f.Special(i-1)[Nc]+p.Xsc(XN, LOOP), bsp[Nc], totsc)
		}
		dsp[Jc] = postProb(fsp[Jc], bsp[Jc], totsc)
		dsp[Cc] = postProb(fsp[Cc], bsp[Cc], totsc)

		rowSum := dsp[JJc] + dsp[CCc] + dsp[Nc]
		for k := 0; k <= m; k++ {
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
			for k := 0; k <= m; k++ {
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

func postProb(f, b, totsc float32) float32 {
	if f == negInf || b == negInf {
		return 0
	}
	return expApprox(f + b - totsc)
}

// indicator is the gamma-centroid transition substitute (spec.md §4.3.5):
// 0 (log 1) if the profile permits this transition at all, -Inf otherwise.
func indicator(v float32) float32 {
	if v == negInf {
		return negInf
	}
	return 0
}

// ReferenceAlignment runs the gamma-centroid (maximum expected accuracy)
// DP of spec.md §4.3.5: a max-plus recurrence structurally identical to
// Viterbi, but emitting gain(cell) = pp(cell) - 1/(1+gamma) in place of
// emission log-odds, and an indicator-delta in place of every transition
// score. pp must be a Decoding matrix already computed for the same
// (profile, sequence length) as mx is being filled for.
func ReferenceAlignment(pp *DenseMatrix, p *Profile, gamma float32, mx *DenseMatrix) (float32, error) {
	if pp == nil {
		return 0, fmt.Errorf("%w: nil decoding matrix", ErrInvalidArg)
	}
	l, m := pp.L, pp.M
	if err := mx.GrowTo(m, l); err != nil {
		return 0, err
	}
	mx.Type = "Alignment"
	thresh := float32(1.0 / (1.0 + gamma))

	for k := 0; k <= m; k++ {
		cell := mx.Main(0, k)
		for c := range cell {
			cell[c] = negInf
		}
	}
	sp0 := mx.Special(0)
	sp0[Nc] = 0
	sp0[Bc] = indicator(p.Xsc(XN, MOVE))
	sp0[Lc] = sp0[Bc] + indicator(p.Xsc(XB, LOOP))
	sp0[Gc] = sp0[Bc] + indicator(p.Xsc(XB, MOVE))
	sp0[Ec], sp0[Jc], sp0[Cc] = negInf, negInf, negInf
	sp0[JJc], sp0[CCc] = negInf, negInf

	for i := 1; i <= l; i++ {
		prevSp := mx.Special(i - 1)
		xL, xG := prevSp[Lc], prevSp[Gc]
		cell0 := mx.Main(i, 0)
		for c := range cell0 {
			cell0[c] = negInf
		}

		var dlv, dgv float32 = negInf, negInf
		var xE float32 = negInf

		for k := 1; k < m; k++ {
			prevK1 := mx.Main(i-1, k-1)
			cur := mx.Main(i, k)
			ppCell := pp.Main(i, k)

			mlv := ppCell[MLc] - thresh + fMax4(
				prevK1[MLc]+indicator(p.Tsc(k-1, TMM)),
				prevK1[ILc]+indicator(p.Tsc(k-1, TIM)),
				prevK1[DLc]+indicator(p.Tsc(k-1, TDM)),
				xL+indicator(p.Tsc(k-1, TLM)))
			mgv := ppCell[MGc] - thresh + fMax4(
				prevK1[MGc]+indicator(p.Tsc(k-1, TMM)),
				prevK1[IGc]+indicator(p.Tsc(k-1, TIM)),
				prevK1[DGc]+indicator(p.Tsc(k-1, TDM)),
				xG+indicator(p.Tsc(k-1, TGM)))

			prevK := mx.Main(i-1, k)
			ilv := ppCell[ILc] - thresh + fMax(prevK[MLc]+indicator(p.Tsc(k, TMI)), prevK[ILc]+indicator(p.Tsc(k, TII)))
			igv := ppCell[IGc] - thresh + fMax(prevK[MGc]+indicator(p.Tsc(k, TMI)), prevK[IGc]+indicator(p.Tsc(k, TII)))

			escInd := indicator(p.ExitScore(k))
			xE = fMax3(mlv+escInd, dlv+escInd, xE)

			cur[MLc], cur[MGc], cur[ILc], cur[IGc] = mlv, mgv, ilv, igv
			cur[DLc], cur[DGc] = dlv, dgv

			dlv = fMax(mlv+indicator(p.Tsc(k, TMD)), dlv+indicator(p.Tsc(k, TDD)))
			dgv = fMax(mgv+indicator(p.Tsc(k, TMD)), dgv+indicator(p.Tsc(k, TDD)))
		}

		prevK1 := mx.Main(i-1, m-1)
		cur := mx.Main(i, m)
		ppCell := pp.Main(i, m)
		mlv := ppCell[MLc] - thresh + fMax4(
			prevK1[MLc]+indicator(p.Tsc(m-1, TMM)),
			prevK1[ILc]+indicator(p.Tsc(m-1, TIM)),
			prevK1[DLc]+indicator(p.Tsc(m-1, TDM)),
			xL+indicator(p.Tsc(m-1, TLM)))
		mgv := ppCell[MGc] - thresh + fMax4(
			prevK1[MGc]+indicator(p.Tsc(m-1, TMM)),
			prevK1[IGc]+indicator(p.Tsc(m-1, TIM)),
			prevK1[DGc]+indicator(p.Tsc(m-1, TDM)),
			xG+indicator(p.Tsc(m-1, TGM)))
		cur[MLc], cur[MGc] = mlv, mgv
		cur[ILc], cur[IGc] = negInf, negInf
		cur[DLc], cur[DGc] = dlv, dgv

		xE = fMax3(xE, mlv, dlv)
		xE = fMax3(xE, mgv, dgv)

		sp := mx.Special(i)
		sp[Ec] = xE
		sp[Jc] = fMax(prevSp[Jc]+indicator(p.Xsc(XJ, LOOP)), xE+indicator(p.Xsc(XE, LOOP)))
		sp[Cc] = fMax(prevSp[Cc]+indicator(p.Xsc(XC, LOOP)), xE+indicator(p.Xsc(XE, MOVE)))
		sp[Nc] = prevSp[Nc] + indicator(p.Xsc(XN, LOOP))
		sp[Bc] = fMax(sp[Nc]+indicator(p.Xsc(XN, MOVE)), sp[Jc]+indicator(p.Xsc(XJ, MOVE)))
		sp[Lc] = sp[Bc] + indicator(p.Xsc(XB, LOOP))
		sp[Gc] = sp[Bc] + indicator(p.Xsc(XB, MOVE))
		sp[JJc], sp[CCc] = negInf, negInf
	}

	if l == 0 {
		return negInf, nil
	}
	finalSp := mx.Special(l)
	return finalSp[Cc] + indicator(p.Xsc(XC, MOVE)), nil
}
