package hmmer

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// TransType names a main-state transition score slot, per spec.md §3.2.
type TransType int

const (
	TMM TransType = iota
	TIM
	TDM
	TMD
	TDD
	TMI
	TII
	TLM // off-by-one: tsc[k-1].LM is the score for L->M_k
	TGM // off-by-one: tsc[k-1].GM is the score for G->M_k
	nTransTypes
)

// XState names a flanking ("special") state, per spec.md §3.2.
type XState int

const (
	XN XState = iota
	XJ
	XC
	XE
	XB
)

// Move names the LOOP/MOVE slot of a flanking-state transition pair.
type Move int

const (
	LOOP Move = iota
	MOVE
)

// tnode holds the seven inter-node transition scores plus the two
// off-by-one entry scores, mirroring P7_PROFILE's tsc layout.
type tnode struct {
	MM, IM, DM, MD, DD, MI, II, LM, GM float32
}

// Profile is the query model described in spec.md §3.2: M consensus
// positions ("nodes"), each with a match/insert emission vector and a
// transition vector, plus the flanking N/J/C/E/B/L/G states.
//
// A Profile is configured once against a target length via SetLength and
// is immutable thereafter for the duration of DP against sequences of
// that length; concurrent DP calls against a single, already-configured
// Profile are safe (spec.md §5), but SetLength itself is not.
type Profile struct {
	M        int
	Kp       int // alphabet size, including degeneracy codes
	msc      [][]float32
	isc      [][]float32
	tsc      []tnode // indexed 0..M; tsc[0] only carries LM/GM for node 1
	xsc      [5][2]float32
	isLocal  bool
	length   int
	pglocal  float32 // probability (not log) of glocal (G) entry, shared by xsc(B,*)
}

// NewProfile allocates an unconfigured Profile for M consensus nodes over
// an alphabet of Kp symbols (canonical + degeneracy codes). All scores
// start at -Inf; the caller (an HMM-file loader, out of this core's
// scope per spec.md §6) must populate msc/isc/tsc/xsc before any DP call.
func NewProfile(m, kp int) (*Profile, error) {
	if m <= 0 || kp <= 0 {
		return nil, fmt.Errorf("%w: M=%d Kp=%d must be positive", ErrInvalidArg, m, kp)
	}
	p := &Profile{M: m, Kp: kp}
	p.msc = make([][]float32, m+1)
	p.isc = make([][]float32, m+1)
	p.tsc = make([]tnode, m+1)
	for k := 0; k <= m; k++ {
		p.msc[k] = fill(make([]float32, kp), negInf)
		p.isc[k] = fill(make([]float32, kp), negInf)
		p.tsc[k] = tnode{MM: negInf, IM: negInf, DM: negInf, MD: negInf,
			DD: negInf, MI: negInf, II: negInf, LM: negInf, GM: negInf}
	}
	for s := 0; s < 5; s++ {
		p.xsc[s] = [2]float32{negInf, negInf}
	}
	return p, nil
}

func fill(s []float32, v float32) []float32 {
	for i := range s {
		s[i] = v
	}
	return s
}

// Msc returns the match emission log-odds score for node k, symbol x.
func (p *Profile) Msc(k, x int) float32 { return p.msc[k][x] }

// Isc returns the insert emission log-odds score for node k, symbol x.
// Undefined (callers should not invoke) at k==M.
func (p *Profile) Isc(k, x int) float32 { return p.isc[k][x] }

// SetMsc sets the match emission score for node k, symbol x.
func (p *Profile) SetMsc(k, x int, v float32) { p.msc[k][x] = v }

// SetIsc sets the insert emission score for node k, symbol x.
func (p *Profile) SetIsc(k, x int, v float32) { p.isc[k][x] = v }

// Tsc returns the transition score named by which, for the inter-node
// transition out of node k (LM/GM are stored off-by-one: Tsc(k-1, TLM)
// is the score of L->M_k, per spec.md §4.2/§9).
func (p *Profile) Tsc(k int, which TransType) float32 {
	t := &p.tsc[k]
	switch which {
	case TMM:
		return t.MM
	case TIM:
		return t.IM
	case TDM:
		return t.DM
	case TMD:
		return t.MD
	case TDD:
		return t.DD
	case TMI:
		return t.MI
	case TII:
		return t.II
	case TLM:
		return t.LM
	case TGM:
		return t.GM
	}
	panic("hmmer: unknown TransType")
}

// SetTsc sets the transition score named by which for node k.
func (p *Profile) SetTsc(k int, which TransType, v float32) {
	t := &p.tsc[k]
	switch which {
	case TMM:
		t.MM = v
	case TIM:
		t.IM = v
	case TDM:
		t.DM = v
	case TMD:
		t.MD = v
	case TDD:
		t.DD = v
	case TMI:
		t.MI = v
	case TII:
		t.II = v
	case TLM:
		t.LM = v
	case TGM:
		t.GM = v
	}
}

// Xsc returns the special-state transition score for state s, slot
// LOOP|MOVE. Xsc(XB, LOOP) returns log(1-pglocal) (L-entry weight) and
// Xsc(XB, MOVE) returns log(pglocal) (G-entry weight), per spec.md §4.2.
func (p *Profile) Xsc(s XState, mv Move) float32 { return p.xsc[s][mv] }

// SetXsc sets the special-state transition score for state s, slot
// LOOP|MOVE.
func (p *Profile) SetXsc(s XState, mv Move, v float32) { p.xsc[s][mv] = v }

// IsLocal reports whether the configured profile allows local alignment.
// When false, M_k->E is -Inf except at k==M (spec.md §3.2).
func (p *Profile) IsLocal() bool { return p.isLocal }

// SetLocal sets whether the profile is in local/dual mode rather than
// pure glocal.
func (p *Profile) SetLocal(local bool) { p.isLocal = local }

// ExitScore returns the M_k->E (or D_k->E) exit contribution at position
// k: 0.0 (log 1, implicit-probability-1 exit) if the profile is local or
// k == M, -Inf otherwise (glocal at k < M). The backward recurrences call
// it with k == M as well.
func (p *Profile) ExitScore(k int) float32 {
	if p.isLocal || k == p.M {
		return 0.0
	}
	return negInf
}

// SetLength configures the N/J/C self-loop and move probabilities so that
// expected random-segment lengths match a target sequence length L. It
// must be called before DP against a sequence of that length, and the
// Profile is then immutable for the duration of DP calls against
// sequences of length L (spec.md §3.2, §4.2, §5). Changing the length
// requires either a fresh Profile or external serialization by the
// caller; this function does not lock.
func (p *Profile) SetLength(length int) error {
	if length < 0 {
		return fmt.Errorf("%w: negative target length %d", ErrInvalidArg, length)
	}
	// Expected-length parameterization: a geometric loop over N/J/C with
	// self-loop probability p = L/(L+1) (L==0 degenerates to p=0), the
	// same length-dependent reconfiguration p7_ReconfigLength performs
	// in the original implementation.
	var loop float32
	if length > 0 {
		loop = float32(length) / float32(length+1)
	}
	loopLog := logProb(loop)
	moveLog := logProb(1 - loop)
	p.xsc[XN][LOOP] = loopLog
	p.xsc[XN][MOVE] = moveLog
	p.xsc[XJ][LOOP] = loopLog
	p.xsc[XJ][MOVE] = moveLog
	p.xsc[XC][LOOP] = loopLog
	p.xsc[XC][MOVE] = moveLog
	p.length = length
	logrus.WithFields(logrus.Fields{"M": p.M, "L": length}).Debug("hmmer: profile reconfigured for target length")
	return nil
}

func logProb(p float32) float32 {
	if p <= 0 {
		return negInf
	}
	return float32(math.Log(float64(p)))
}

// SetGlocalFraction sets xsc(B,LOOP)=log(1-pglocal) (local entry weight)
// and xsc(B,MOVE)=log(pglocal) (glocal entry weight), per spec.md §4.2.
// pglocal==0 yields a pure-local profile's B distribution; pglocal==1
// yields pure glocal; 0.5 is HMMER3's default dual-mode split.
func (p *Profile) SetGlocalFraction(pglocal float32) error {
	if pglocal < 0 || pglocal > 1 {
		return fmt.Errorf("%w: pglocal=%v must be in [0,1]", ErrInvalidArg, pglocal)
	}
	p.pglocal = pglocal
	p.xsc[XB][LOOP] = logProb(1 - pglocal)
	p.xsc[XB][MOVE] = logProb(pglocal)
	return nil
}
