package hmmer

import "fmt"

// emitWalk carries the running state of a generative walk through the
// profile: the trace steps recorded so far, the digitized residues
// emitted, and the current sequence position.
type emitWalk struct {
	tr  *Trace
	seq []int
	i   int
}

// sampleResidue draws one canonical symbol (index 0..K-1) at node k,
// state st (STML/STMG for match, STIL/STIG for insert), weighting each
// candidate by its stored emission score. Msc/Isc hold log-odds scores
// relative to a null model this core does not carry (spec.md §1 scopes
// alphabet detail out of the DP core), so this samples proportional to
// exp(score) directly rather than recovering an exact generative
// probability — a documented approximation (see DESIGN.md) rather than
// the true per-residue distribution, which would require a null model
// this module has no component for.
func sampleResidue(rng RNG, p *Profile, k int, st State, nCanon int) int {
	w := make([]float32, nCanon)
	for x := range w {
		if st == STML || st == STMG {
			w[x] = p.Msc(k, x)
		} else {
			w[x] = p.Isc(k, x)
		}
	}
	return sampleIndex(rng, w)
}

// sampleCoreDomain walks B -> {L|G} -> (M/I/D chain) -> E once, starting
// from w.i, appending every visited state (including B/L/G/E) to w.tr and
// every emitted residue to w.seq. spec.md §4.8 describes core_emit and
// profile_emit as sharing this multinomial walk; the two operations
// differ only in what frames it (spec.md §4.8, §9 wing-retraction note).
func sampleCoreDomain(rng RNG, p *Profile, nCanon int, w *emitWalk) {
	w.tr.Append(STB, 0, w.i)

	glocal := sampleIndex(rng, []float32{p.Xsc(XB, LOOP), p.Xsc(XB, MOVE)}) == 1
	kWeights := make([]float32, p.M)
	for kk := 1; kk <= p.M; kk++ {
		if glocal {
			kWeights[kk-1] = p.Tsc(kk-1, TGM)
		} else {
			kWeights[kk-1] = p.Tsc(kk-1, TLM)
		}
	}
	k := 1 + sampleIndex(rng, kWeights)

	if glocal {
		w.tr.Append(STG, 0, w.i)
		for j := 1; j < k; j++ {
			// Wing-unfolding of the implicit G->D_G,1..D_G,k-1 chain the
			// core DP folds into one G->M_k transition (spec.md §3.3, §9),
			// mirrored here the same way stepBackMatch unfolds it in
			// traceback.go.
			w.tr.Append(STDG, j, w.i)
		}
	} else {
		w.tr.Append(STL, 0, w.i)
	}

	st := STML
	if glocal {
		st = STMG
	}

	for {
		w.i++
		w.seq = append(w.seq, sampleResidue(rng, p, k, st, nCanon))
		w.tr.Append(st, k, w.i)

		if k == p.M {
			w.tr.Append(STE, 0, w.i)
			return
		}

		mm, mi, md := p.Tsc(k, TMM), p.Tsc(k, TMI), p.Tsc(k, TMD)
		var cand []float32
		if glocal {
			cand = []float32{mm, mi, md}
		} else {
			cand = []float32{mm, mi, md, p.ExitScore(k)}
		}
		choice := sampleIndex(rng, cand)

		switch choice {
		case 3: // local exit; never reached when glocal (len(cand)==3)
			w.tr.Append(STE, 0, w.i)
			return

		case 1: // insert at k
			insSt := STIL
			if glocal {
				insSt = STIG
			}
			for {
				w.i++
				w.seq = append(w.seq, sampleResidue(rng, p, k, insSt, nCanon))
				w.tr.Append(insSt, k, w.i)
				if sampleIndex(rng, []float32{p.Tsc(k, TIM), p.Tsc(k, TII)}) == 1 {
					continue
				}
				break
			}
			k++
			st = STML
			if glocal {
				st = STMG
			}

		case 2: // delete from k+1 onward, possibly a multi-node run
			delSt := STDL
			if glocal {
				delSt = STDG
			}
			k++
			for {
				w.tr.Append(delSt, k, w.i)
				if k == p.M {
					w.tr.Append(STE, 0, w.i)
					return
				}
				if sampleIndex(rng, []float32{p.Tsc(k, TDM), p.Tsc(k, TDD)}) == 0 {
					break
				}
				k++
			}
			k++
			st = STML
			if glocal {
				st = STMG
			}

		default: // 0: M_k -> M_k+1
			k++
			st = STML
			if glocal {
				st = STMG
			}
		}
	}
}

// sampleFlankLoop draws a geometric run length for a LOOP/MOVE flanking
// state (N, J, or C), appending st once per LOOP draw and returning once
// the MOVE branch is drawn. With emits set, each LOOP draw also consumes
// one uniformly sampled residue; ProfileEmit sets it for N, J and C alike,
// as the DP recurrences charge one residue per N/J/C self-loop.
func sampleFlankLoop(rng RNG, p *Profile, s XState, st State, emits bool, nCanon int, w *emitWalk) {
	for {
		if sampleIndex(rng, []float32{p.Xsc(s, LOOP), p.Xsc(s, MOVE)}) == 1 {
			return
		}
		if emits {
			w.i++
			w.seq = append(w.seq, sampleIndex(rng, uniformWeights(nCanon)))
		}
		w.tr.Append(st, 0, w.i)
	}
}

func uniformWeights(n int) []float32 {
	w := make([]float32, n)
	for i := range w {
		w[i] = 0
	}
	return w
}

// CoreEmit samples a sequence and trace from the core model alone: no
// N/J/C flanking loops and no multihit, a single B->{L|G}->chain->E
// domain (spec.md §4.8). Empty (L=0) samples are rejected and resampled
// until at least one residue is emitted. dsq is returned sentinel-framed
// the same way Alphabet.Digitize formats one, ready to hand to the DP
// entry points.
func CoreEmit(p *Profile, alpha *Alphabet, rng RNG) ([]int, *Trace, error) {
	if p == nil || alpha == nil || rng == nil {
		return nil, nil, fmt.Errorf("%w: nil profile, alphabet, or rng", ErrInvalidArg)
	}
	for {
		tr := NewTrace(2*p.M + 8)
		w := &emitWalk{tr: tr, i: 0}
		tr.Append(S, 0, 0)
		tr.Append(STN, 0, 0)
		sampleCoreDomain(rng, p, alpha.K(), w)
		if len(w.seq) == 0 {
			continue
		}
		tr.Append(STC, 0, w.i)
		tr.Append(STT, 0, w.i)
		return wrapDsq(w.seq), tr, nil
	}
}

// ProfileEmit samples a sequence and trace from the fully configured
// profile: N/C flanking loops and J-looped multihit between domains, as
// set by SetLength (spec.md §4.8). Empty (L=0) samples are rejected and
// resampled until at least one residue is emitted.
func ProfileEmit(p *Profile, alpha *Alphabet, rng RNG) ([]int, *Trace, error) {
	if p == nil || alpha == nil || rng == nil {
		return nil, nil, fmt.Errorf("%w: nil profile, alphabet, or rng", ErrInvalidArg)
	}
	for {
		tr := NewTrace(4 * (p.M + 4))
		w := &emitWalk{tr: tr, i: 0}
		tr.Append(S, 0, 0)
		sampleFlankLoop(rng, p, XN, STN, true, alpha.K(), w)
		tr.Append(STN, 0, w.i)

		for {
			sampleCoreDomain(rng, p, alpha.K(), w)
			if sampleIndex(rng, []float32{p.Xsc(XE, LOOP), p.Xsc(XE, MOVE)}) == 0 {
				sampleFlankLoop(rng, p, XJ, STJ, true, alpha.K(), w)
				tr.Append(STJ, 0, w.i)
				continue
			}
			break
		}

		sampleFlankLoop(rng, p, XC, STC, true, alpha.K(), w)
		tr.Append(STC, 0, w.i)
		tr.Append(STT, 0, w.i)

		if len(w.seq) == 0 {
			continue
		}
		return wrapDsq(w.seq), tr, nil
	}
}

// wrapDsq formats a generated residue slice (0-based canonical indices)
// into the sentinel-framed dsq layout Alphabet.Digitize and the DP entry
// points expect (spec.md §3.1/§6).
func wrapDsq(residues []int) []int {
	dsq := make([]int, len(residues)+2)
	dsq[0] = Sentinel
	dsq[len(residues)+1] = Sentinel
	copy(dsq[1:], residues)
	return dsq
}
