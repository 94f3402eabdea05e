package hmmer

import "fmt"

// Anchor constrains an ASC alignment to pass through model position K in
// an M state on row I, per spec.md §3.7/§4.7. A sorted slice of Anchors
// partitions a sequence into D domains.
type Anchor struct {
	I, K int
}

func validateAnchors(anchors []Anchor, l, m int) error {
	prev := 0
	for idx, a := range anchors {
		if a.I < 1 || a.I > l {
			return fmt.Errorf("%w: anchor %d row %d out of range [1,%d]", ErrInvalidArg, idx, a.I, l)
		}
		if a.K < 1 || a.K > m {
			return fmt.Errorf("%w: anchor %d column %d out of range [1,%d]", ErrInvalidArg, idx, a.K, m)
		}
		if a.I <= prev {
			return fmt.Errorf("%w: anchors not strictly ascending by row at index %d", ErrInvalidArg, idx)
		}
		prev = a.I
	}
	return nil
}

// ASCForward fills mxu (UP sectors) and mxd (DOWN sectors, plus all
// specials) with the anchor-set-constrained Forward matrices and
// returns the ASC Forward score, per spec.md §4.7. mxu and mxd are
// DenseMatrix-shaped like any other dense matrix (spec.md §3.7: ASC
// matrices are logically (L+1)x(M+1)x6 but only the sector cells a
// given domain's UP or DOWN region touches are ever written).
//
// Grounded on original_source/reference_asc_fwdback.c's p7_ReferenceASCForward,
// adapted from pointer-stepping to the Main/Special accessor idiom this
// package already uses for ReferenceForward.
func ASCForward(dsq []int, l int, p *Profile, anchors []Anchor, mxu, mxd *DenseMatrix) (float32, error) {
	if err := checkDPArgs(p, dsq, l); err != nil {
		return 0, err
	}
	m := p.M
	if err := validateAnchors(anchors, l, m); err != nil {
		return 0, err
	}
	if err := mxu.GrowTo(m, l); err != nil {
		return 0, err
	}
	if err := mxd.GrowTo(m, l); err != nil {
		return 0, err
	}
	mxu.Type, mxd.Type = "ASCForwardUP", "ASCForwardDOWN"
	d := len(anchors)

	iend := 1
	if d > 0 {
		iend = anchors[0].I
	}
	for i := 0; i < iend; i++ {
		xc := mxd.Special(i)
		xc[Nc] = 0
		if i > 0 {
			xc[Nc] = mxd.Special(i - 1)[Nc] + p.Xsc(XN, LOOP)
		}
		xc[Bc] = xc[Nc] + p.Xsc(XN, MOVE)
		xc[Lc] = xc[Bc] + p.Xsc(XB, LOOP)
		xc[Gc] = xc[Bc] + p.Xsc(XB, MOVE)
		xc[Ec], xc[Jc], xc[Cc], xc[JJc], xc[CCc] = negInf, negInf, negInf, negInf, negInf
	}

	for dIdx := 0; dIdx < d; dIdx++ {
		anchor := anchors[dIdx]
		prevI := 0
		if dIdx > 0 {
			prevI = anchors[dIdx-1].I
		}

		// UP sector: initialize the row above (prevI), then compute
		// remaining rows down through anchor.I-1.
		for k := 0; k < anchor.K; k++ {
			cell := mxu.Main(prevI, k)
			for c := range cell {
				cell[c] = negInf
			}
		}
		for i := prevI + 1; i < anchor.I; i++ {
			x := dsq[i]
			xp := mxd.Special(i - 1)
			cell0 := mxu.Main(i, 0)
			for c := range cell0 {
				cell0[c] = negInf
			}
			var dlv, dgv float32 = negInf, negInf
			for k := 1; k < anchor.K; k++ {
				prevK1 := mxu.Main(i-1, k-1)
				prevK := mxu.Main(i-1, k)
				cur := mxu.Main(i, k)

				mlv := p.Msc(k, x) + flogsum4(
					prevK1[MLc]+p.Tsc(k-1, TMM),
					prevK1[ILc]+p.Tsc(k-1, TIM),
					prevK1[DLc]+p.Tsc(k-1, TDM),
					xp[Lc]+p.Tsc(k-1, TLM))
				mgv := p.Msc(k, x) + flogsum4(
					prevK1[MGc]+p.Tsc(k-1, TMM),
					prevK1[IGc]+p.Tsc(k-1, TIM),
					prevK1[DGc]+p.Tsc(k-1, TDM),
					xp[Gc]+p.Tsc(k-1, TGM))
				ilv := p.Isc(k, x) + FLogSum(prevK[MLc]+p.Tsc(k, TMI), prevK[ILc]+p.Tsc(k, TII))
				igv := p.Isc(k, x) + FLogSum(prevK[MGc]+p.Tsc(k, TMI), prevK[IGc]+p.Tsc(k, TII))

				cur[MLc], cur[MGc], cur[ILc], cur[IGc] = mlv, mgv, ilv, igv
				cur[DLc], cur[DGc] = dlv, dgv
				dlv = FLogSum(mlv+p.Tsc(k, TMD), dlv+p.Tsc(k, TDD))
				dgv = FLogSum(mgv+p.Tsc(k, TMD), dgv+p.Tsc(k, TDD))
			}
		}

		// DOWN sector: the anchor row starts with one final UP-style
		// step at (anchor.I, anchor.K), entering the domain exactly here.
		dpp := mxu.Main(anchor.I-1, anchor.K-1)
		xp := mxd.Special(anchor.I - 1)
		x := dsq[anchor.I]

		boundary := mxd.Main(anchor.I, anchor.K-1)
		for c := range boundary {
			boundary[c] = negInf
		}

		mlv := p.Msc(anchor.K, x) + flogsum4(
			dpp[MLc]+p.Tsc(anchor.K-1, TMM),
			dpp[ILc]+p.Tsc(anchor.K-1, TIM),
			dpp[DLc]+p.Tsc(anchor.K-1, TDM),
			xp[Lc]+p.Tsc(anchor.K-1, TLM))
		mgv := p.Msc(anchor.K, x) + flogsum4(
			dpp[MGc]+p.Tsc(anchor.K-1, TMM),
			dpp[IGc]+p.Tsc(anchor.K-1, TIM),
			dpp[DGc]+p.Tsc(anchor.K-1, TDM),
			xp[Gc]+p.Tsc(anchor.K-1, TGM))
		anchorCell := mxd.Main(anchor.I, anchor.K)
		anchorCell[MLc], anchorCell[MGc] = mlv, mgv
		anchorCell[ILc], anchorCell[IGc] = negInf, negInf
		dlv := mlv + p.Tsc(anchor.K, TMD)
		dgv := mgv + p.Tsc(anchor.K, TMD)
		anchorCell[DLc], anchorCell[DGc] = negInf, negInf // the anchor's M->D contribution is carried in dlv/dgv to k+1

		var xE float32
		if anchor.K == m {
			xE = FLogSum(mlv, mgv)
		} else {
			xE = mlv
		}

		for k := anchor.K + 1; k <= m; k++ {
			cur := mxd.Main(anchor.I, k)
			cur[MLc], cur[MGc], cur[ILc], cur[IGc] = negInf, negInf, negInf, negInf
			cur[DLc], cur[DGc] = dlv, dgv
			if k == m {
				xE = FLogSum(xE, FLogSum(dlv, dgv))
			} else {
				xE = FLogSum(xE, dlv)
			}
			dlv = dlv + p.Tsc(k, TDD)
			dgv = dgv + p.Tsc(k, TDD)
		}

		xc := mxd.Special(anchor.I)
		xc[Ec] = xE
		xc[Nc] = negInf
		if dIdx == d-1 {
			xc[Jc] = negInf
		} else {
			xc[Jc] = xc[Ec] + p.Xsc(XE, LOOP)
		}
		xc[Bc] = xc[Jc] + p.Xsc(XJ, MOVE)
		xc[Lc] = xc[Bc] + p.Xsc(XB, LOOP)
		xc[Gc] = xc[Bc] + p.Xsc(XB, MOVE)
		if dIdx == d-1 {
			xc[Cc] = xc[Ec] + p.Xsc(XE, MOVE)
		} else {
			xc[Cc] = negInf
		}
		xc[JJc], xc[CCc] = negInf, negInf

		iendDown := l + 1
		if dIdx < d-1 {
			iendDown = anchors[dIdx+1].I
		}
		for i := anchor.I + 1; i < iendDown; i++ {
			x := dsq[i]
			boundary := mxd.Main(i, anchor.K-1)
			for c := range boundary {
				boundary[c] = negInf
			}
			var dlv, dgv, xE float32 = negInf, negInf, negInf
			for k := anchor.K; k <= m; k++ {
				prevK1 := mxd.Main(i-1, k-1)
				prevK := mxd.Main(i-1, k)
				cur := mxd.Main(i, k)

				mlv := p.Msc(k, x) + FLogSum3(prevK1[MLc]+p.Tsc(k-1, TMM), prevK1[ILc]+p.Tsc(k-1, TIM), prevK1[DLc]+p.Tsc(k-1, TDM))
				mgv := p.Msc(k, x) + FLogSum3(prevK1[MGc]+p.Tsc(k-1, TMM), prevK1[IGc]+p.Tsc(k-1, TIM), prevK1[DGc]+p.Tsc(k-1, TDM))
				ilv := p.Isc(k, x) + FLogSum(prevK[MLc]+p.Tsc(k, TMI), prevK[ILc]+p.Tsc(k, TII))
				igv := p.Isc(k, x) + FLogSum(prevK[MGc]+p.Tsc(k, TMI), prevK[IGc]+p.Tsc(k, TII))

				if k == m {
					xE = FLogSum(xE, flogsum4(mlv, dlv, mgv, dgv))
				} else {
					xE = FLogSum(xE, FLogSum(mlv, dlv))
				}

				cur[MLc], cur[MGc], cur[ILc], cur[IGc] = mlv, mgv, ilv, igv
				cur[DLc], cur[DGc] = dlv, dgv
				dlv = FLogSum(mlv+p.Tsc(k, TMD), dlv+p.Tsc(k, TDD))
				dgv = FLogSum(mgv+p.Tsc(k, TMD), dgv+p.Tsc(k, TDD))
			}

			xp := mxd.Special(i - 1)
			xc := mxd.Special(i)
			xc[Ec] = xE
			xc[Nc] = negInf
			if dIdx == d-1 {
				xc[Jc] = negInf
			} else {
				xc[Jc] = FLogSum(xp[Jc]+p.Xsc(XJ, LOOP), xc[Ec]+p.Xsc(XE, LOOP))
			}
			xc[Bc] = xc[Jc] + p.Xsc(XJ, MOVE)
			xc[Lc] = xc[Bc] + p.Xsc(XB, LOOP)
			xc[Gc] = xc[Bc] + p.Xsc(XB, MOVE)
			if dIdx == d-1 {
				xc[Cc] = FLogSum(xp[Cc]+p.Xsc(XC, LOOP), xc[Ec]+p.Xsc(XE, MOVE))
			} else {
				xc[Cc] = negInf
			}
			xc[JJc], xc[CCc] = negInf, negInf
		}
	}

	final := mxd.Special(l)
	return final[Cc] + p.Xsc(XC, MOVE), nil
}

// ASCBackward fills mxu/mxd with the time-reversed ASC recurrence,
// walking domains from last to first and, within each, DOWN then UP,
// per spec.md §4.7. Grounded on
// original_source/reference_asc_fwdback.c's p7_ReferenceASCBackward.
func ASCBackward(dsq []int, l int, p *Profile, anchors []Anchor, mxu, mxd *DenseMatrix) (float32, error) {
	if err := checkDPArgs(p, dsq, l); err != nil {
		return 0, err
	}
	m := p.M
	if err := validateAnchors(anchors, l, m); err != nil {
		return 0, err
	}
	if err := mxu.GrowTo(m, l); err != nil {
		return 0, err
	}
	if err := mxd.GrowTo(m, l); err != nil {
		return 0, err
	}
	mxu.Type, mxd.Type = "ASCBackwardUP", "ASCBackwardDOWN"
	d := len(anchors)

	iend0 := 0
	if d > 0 {
		iend0 = anchors[d-1].I
	}
	var xC float32 = negInf
	for i := l; i >= iend0; i-- {
		xc := mxd.Special(i)
		xc[CCc], xc[JJc] = negInf, negInf
		if i == l {
			xC = p.Xsc(XC, MOVE)
		} else {
			xC = xC + p.Xsc(XC, LOOP)
		}
		xc[Cc] = xC
		xc[Gc], xc[Lc], xc[Bc], xc[Jc], xc[Nc] = negInf, negInf, negInf, negInf, negInf
		xc[Ec] = xC + p.Xsc(XE, MOVE)
	}

	var xG, xL, xJ, xN float32 = negInf, negInf, negInf, negInf

	for dIdx := d - 1; dIdx >= 0; dIdx-- {
		anchor := anchors[dIdx]

		iend := l
		if dIdx < d-1 {
			iend = anchors[dIdx+1].I - 1
		}

		for i := iend; i >= anchor.I; i-- {
			xE := mxd.Special(i)[Ec]
			hasNext := i != iend
			var mgn, mln, ign, iln, dgn, dln float32 = negInf, negInf, negInf, negInf, negInf, negInf

			for k := m; k >= anchor.K; k-- {
				if hasNext {
					nxt := mxd.Main(i+1, k)
					ign, iln = nxt[IGc], nxt[ILc]
				}
				var mgc float32
				if k == m {
					mgc = xE
				} else {
					mgc = FLogSum3(mgn+p.Tsc(k, TMM), ign+p.Tsc(k, TMI), dgn+p.Tsc(k, TMD))
				}
				mlc := FLogSum(FLogSum(mln+p.Tsc(k, TMM), iln+p.Tsc(k, TMI)), FLogSum(dln+p.Tsc(k, TMD), xE))

				var newDgn float32
				if k == m {
					newDgn = xE
				} else {
					newDgn = FLogSum(mgn+p.Tsc(k, TDM), dgn+p.Tsc(k, TDD))
				}
				newDln := FLogSum(xE, FLogSum(mln+p.Tsc(k, TDM), dln+p.Tsc(k, TDD)))

				cur := mxd.Main(i, k)
				cur[DGc], cur[DLc] = newDgn, newDln
				cur[IGc] = FLogSum(mgn+p.Tsc(k, TIM), ign+p.Tsc(k, TII))
				cur[ILc] = FLogSum(mln+p.Tsc(k, TIM), iln+p.Tsc(k, TII))
				dgn, dln = newDgn, newDln

				if hasNext {
					nxt := mxd.Main(i+1, k)
					mgn = nxt[MGc] + p.Msc(k, dsq[i+1])
					mln = nxt[MLc] + p.Msc(k, dsq[i+1])
				} else {
					mgn, mln = negInf, negInf
				}
				cur[MGc], cur[MLc] = mgc, mlc
			}
		}

		anchorCell := mxd.Main(anchor.I, anchor.K)
		rsc := p.Msc(anchor.K, dsq[anchor.I])
		mgnCarry := anchorCell[MGc] + rsc
		mlnCarry := anchorCell[MLc] + rsc
		xG = mgnCarry + p.Tsc(anchor.K-1, TGM)
		xL = mlnCarry + p.Tsc(anchor.K-1, TLM)
		xJ, xN = negInf, negInf

		iendUP := 1
		if dIdx > 0 {
			iendUP = anchors[dIdx-1].I + 1
		}

		for i := anchor.I - 1; i >= iendUP; i-- {
			x := dsq[i]
			xc := mxd.Special(i)
			xc[CCc], xc[JJc] = negInf, negInf
			xc[Cc] = negInf
			xc[Gc], xc[Lc] = xG, xL
			xc[Bc] = FLogSum(xG+p.Xsc(XB, MOVE), xL+p.Xsc(XB, LOOP))
			if dIdx == 0 {
				xc[Jc] = negInf
			} else {
				xJ = FLogSum(xJ+p.Xsc(XJ, LOOP), xc[Bc]+p.Xsc(XJ, MOVE))
				xc[Jc] = xJ
			}
			if dIdx > 0 {
				xc[Nc] = negInf
			} else {
				xN = FLogSum(xN+p.Xsc(XN, LOOP), xc[Bc]+p.Xsc(XN, MOVE))
				xc[Nc] = xN
			}
			xc[Ec] = xc[Jc] + p.Xsc(XE, LOOP)

			hasNext := i != anchor.I-1
			var mgn, mln float32
			if hasNext {
				mgn, mln = negInf, negInf
			} else {
				mgn, mln = mgnCarry, mlnCarry
			}
			var ign, iln, dgn, dln float32 = negInf, negInf, negInf, negInf
			var newXG, newXL float32 = negInf, negInf

			for k := anchor.K - 1; k >= 1; k-- {
				if hasNext {
					nxt := mxu.Main(i+1, k)
					ign, iln = nxt[IGc], nxt[ILc]
				}
				mgc := FLogSum3(mgn+p.Tsc(k, TMM), ign+p.Tsc(k, TMI), dgn+p.Tsc(k, TMD))
				mlc := FLogSum3(mln+p.Tsc(k, TMM), iln+p.Tsc(k, TMI), dln+p.Tsc(k, TMD))

				rscK := p.Msc(k, x)
				newXG = FLogSum(newXG, mgc+rscK+p.Tsc(k-1, TGM))
				newXL = FLogSum(newXL, mlc+rscK+p.Tsc(k-1, TLM))

				newDgn := FLogSum(mgn+p.Tsc(k, TDM), dgn+p.Tsc(k, TDD))
				newDln := FLogSum(mln+p.Tsc(k, TDM), dln+p.Tsc(k, TDD))

				cur := mxu.Main(i, k)
				cur[DGc], cur[DLc] = newDgn, newDln
				cur[IGc] = FLogSum(mgn+p.Tsc(k, TIM), ign+p.Tsc(k, TII))
				cur[ILc] = FLogSum(mln+p.Tsc(k, TIM), iln+p.Tsc(k, TII))
				dgn, dln = newDgn, newDln

				if hasNext {
					nxt := mxu.Main(i+1, k)
					mgn = nxt[MGc] + p.Msc(k, dsq[i+1])
					mln = nxt[MLc] + p.Msc(k, dsq[i+1])
				} else {
					mgn, mln = negInf, negInf
				}
				cur[MGc], cur[MLc] = mgc, mlc
			}
			xG, xL = newXG, newXL
		}

		boundaryRow := 0
		if dIdx > 0 {
			boundaryRow = anchors[dIdx-1].I
		}
		xc := mxd.Special(boundaryRow)
		xc[CCc], xc[JJc] = negInf, negInf
		xc[Cc] = negInf
		xc[Gc], xc[Lc] = xG, xL
		xc[Bc] = FLogSum(xG+p.Xsc(XB, MOVE), xL+p.Xsc(XB, LOOP))
		if dIdx == 0 {
			xc[Jc] = negInf
		} else {
			xJ = FLogSum(xJ+p.Xsc(XJ, LOOP), xc[Bc]+p.Xsc(XJ, MOVE))
			xc[Jc] = xJ
		}
		if dIdx > 0 {
			xc[Nc] = negInf
		} else {
			xN = FLogSum(xN+p.Xsc(XN, LOOP), xc[Bc]+p.Xsc(XN, MOVE))
			xc[Nc] = xN
		}
		xc[Ec] = xc[Jc] + p.Xsc(XE, LOOP)
	}

	return xN, nil
}

// ASCDecoding computes posterior probabilities from ASC Forward
// matrices (fu,fd) and ASC Backward matrices (bu,bd) onto (du,dd), then
// performs the glocal wing-unfolding correction for each anchor cell: the
// posterior mass of the G->M_K entry straight into anchor (I,K) is added
// to D_G,1..D_G,K-1 on row I-1, since the core recurrence folds that chain
// into one transition (spec.md §4.7, §9; same unfolding traceback.go
// performs for single-path reconstruction). G->M_k entries into UP-sector
// cells are not unfolded.
func ASCDecoding(dsq []int, l int, p *Profile, anchors []Anchor, fu, fd, bu, bd *DenseMatrix, totsc float32, du, dd *DenseMatrix) error {
	m := p.M
	if err := du.GrowTo(m, l); err != nil {
		return err
	}
	if err := dd.GrowTo(m, l); err != nil {
		return err
	}
	du.Type, dd.Type = "ASCDecodingUP", "ASCDecodingDOWN"

	for i := 0; i <= l; i++ {
		ffsp, bbsp := fd.Special(i), bd.Special(i)
		dsp := dd.Special(i)
		for s := 0; s < nSpecialCells; s++ {
			dsp[s] = postProb(ffsp[s], bbsp[s], totsc)
		}
	}

	d := len(anchors)
	for dIdx := 0; dIdx < d; dIdx++ {
		anchor := anchors[dIdx]
		prevI := 0
		if dIdx > 0 {
			prevI = anchors[dIdx-1].I
		}
		for i := prevI + 1; i < anchor.I; i++ {
			for k := 1; k < anchor.K; k++ {
				fc, bc := fu.Main(i, k), bu.Main(i, k)
				dc := du.Main(i, k)
				for c := 0; c < nMainCells; c++ {
					dc[c] = postProb(fc[c], bc[c], totsc)
				}
			}
		}
		iendDown := l + 1
		if dIdx < d-1 {
			iendDown = anchors[dIdx+1].I
		}
		for i := anchor.I; i < iendDown; i++ {
			for k := anchor.K; k <= m; k++ {
				fc, bc := fd.Main(i, k), bd.Main(i, k)
				dc := dd.Main(i, k)
				for c := 0; c < nMainCells; c++ {
					dc[c] = postProb(fc[c], bc[c], totsc)
				}
			}
		}

		// Glocal wing unfolding: the G->M_{anchor.K} entry step folds
		// D_G,1..D_G,anchor.K-1 into one transition; redistribute that
		// entry's posterior mass across those cells on the preceding
		// row, matching traceback.go's stepBackMatch unfolding for a
		// single path. Only applies when domain d's UP sector is
		// non-empty (anchor.I-1 > prevI) and the entry column is >1.
		if anchor.K > 1 && anchor.I-1 > prevI {
			gEntry := fd.Special(anchor.I - 1)[Gc]
			mgEntry := bd.Main(anchor.I, anchor.K)[MGc]
			entryMass := postProb(gEntry+p.Tsc(anchor.K-1, TGM)+p.Msc(anchor.K, dsq[anchor.I]), mgEntry, totsc)
			for j := 1; j < anchor.K; j++ {
				du.Main(anchor.I-1, j)[DGc] += entryMass
			}
		}
	}

	for i := 0; i <= l; i++ {
		dsp := dd.Special(i)
		rowSum := dsp[JJc] + dsp[CCc] + dsp[Nc]
		for dIdx := 0; dIdx < d; dIdx++ {
			anchor := anchors[dIdx]
			prevI := 0
			if dIdx > 0 {
				prevI = anchors[dIdx-1].I
			}
			if i > prevI && i < anchor.I {
				for k := 1; k < anchor.K; k++ {
					dc := du.Main(i, k)
					rowSum += dc[MLc] + dc[MGc] + dc[ILc] + dc[IGc]
				}
			}
			iendDown := l + 1
			if dIdx < d-1 {
				iendDown = anchors[dIdx+1].I
			}
			if i >= anchor.I && i < iendDown {
				for k := anchor.K; k <= m; k++ {
					dc := dd.Main(i, k)
					rowSum += dc[MLc] + dc[MGc] + dc[ILc] + dc[IGc]
				}
			}
		}
		if i > 0 && rowSum > 0 {
			scale := 1.0 / rowSum
			dsp[JJc] *= scale
			dsp[CCc] *= scale
			dsp[Nc] *= scale
			for dIdx := 0; dIdx < d; dIdx++ {
				anchor := anchors[dIdx]
				prevI := 0
				if dIdx > 0 {
					prevI = anchors[dIdx-1].I
				}
				if i > prevI && i < anchor.I {
					for k := 1; k < anchor.K; k++ {
						c := du.Main(i, k)
						c[MLc] *= scale
						c[MGc] *= scale
						c[ILc] *= scale
						c[IGc] *= scale
					}
				}
				iendDown := l + 1
				if dIdx < d-1 {
					iendDown = anchors[dIdx+1].I
				}
				if i >= anchor.I && i < iendDown {
					for k := anchor.K; k <= m; k++ {
						c := dd.Main(i, k)
						c[MLc] *= scale
						c[MGc] *= scale
						c[ILc] *= scale
						c[IGc] *= scale
					}
				}
			}
		}
	}
	return nil
}
