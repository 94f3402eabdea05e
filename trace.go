package hmmer

import "fmt"

// State names one vertex of the Plan7 state machine a Trace walks,
// per spec.md §3.3.
type State int

const (
	S State = iota
	STN
	STB
	STL
	STG
	STML
	STMG
	STIL
	STIG
	STDL
	STDG
	STE
	STJ
	STC
	STT
)

var stateNames = [...]string{
	"S", "N", "B", "L", "G", "ML", "MG", "IL", "IG", "DL", "DG", "E", "J", "C", "T",
}

func (s State) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// IsMain reports whether s is one of the six per-node main states
// (ML/MG/IL/IG/DL/DG), as opposed to a flanking/special state.
func (s State) IsMain() bool { return s >= STML && s <= STDG }

// Emits reports whether a visit to s consumes a residue: match and
// insert states emit, delete and flanking states do not. N/J/C emit only
// on their LOOP self-transition; a trace records that as a repeated
// STN/STJ/STC step, with no distinct emitting State value, so Emits
// reports false for them.
func (s State) Emits() bool {
	switch s {
	case STML, STMG, STIL, STIG:
		return true
	}
	return false
}

// TraceStep is one (state, model position k, sequence position i) tuple
// in a Trace, per spec.md §3.3. PP is the posterior probability of this
// step, populated by AnnotatePosteriors; zero otherwise.
type TraceStep struct {
	St State
	K  int // model position, 0 if not applicable
	I  int // sequence position, 0 if not applicable
	PP float32
}

// Trace is an ordered sequence of TraceSteps describing one path through
// the profile, from S to T. Traces are built back-to-front during
// traceback (append in reverse, then Reverse), per spec.md §3.3/§4.4.
type Trace struct {
	Steps []TraceStep
}

// NewTrace returns an empty trace with capacity hinted by cap.
func NewTrace(cap int) *Trace {
	return &Trace{Steps: make([]TraceStep, 0, cap)}
}

// Append adds a step to the end of the trace as currently ordered (i.e.
// appends in whatever direction the caller is building: traceback
// appends back-to-front and later calls Reverse).
func (t *Trace) Append(st State, k, i int) {
	t.Steps = append(t.Steps, TraceStep{St: st, K: k, I: i})
}

// Reverse reverses the trace in place. Traceback builds a trace from T
// back to S; Reverse puts it back into canonical S-to-T order.
func (t *Trace) Reverse() {
	for l, r := 0, len(t.Steps)-1; l < r; l, r = l+1, r-1 {
		t.Steps[l], t.Steps[r] = t.Steps[r], t.Steps[l]
	}
}

// Domain is one B...E subpath of a trace, identified by the step indices
// (inclusive) of its B and E steps, and the i/k ranges covered.
type Domain struct {
	BStep, EStep int
	IStart, IEnd int
	KStart, KEnd int
	Glocal       bool
}

// Domains computes domain boundaries by scanning for B...E subpaths
// (spec.md §3.3: "each B...E subpath is a domain"). Multiple domains
// occur in multihit traces, joined by J.
func (t *Trace) Domains() []Domain {
	var doms []Domain
	var bIdx = -1
	var glocal bool
	for idx, step := range t.Steps {
		switch step.St {
		case STB:
			bIdx = idx
		case STL:
			glocal = false
		case STG:
			glocal = true
		case STE:
			if bIdx < 0 {
				continue
			}
			d := Domain{BStep: bIdx, EStep: idx, Glocal: glocal}
			d.IStart, d.KStart = firstEmittingPos(t.Steps[bIdx:idx+1])
			d.IEnd, d.KEnd = lastEmittingPos(t.Steps[bIdx:idx+1])
			doms = append(doms, d)
			bIdx = -1
		}
	}
	return doms
}

func firstEmittingPos(steps []TraceStep) (i, k int) {
	for _, s := range steps {
		if s.St.IsMain() {
			return s.I, s.K
		}
	}
	return 0, 0
}

func lastEmittingPos(steps []TraceStep) (i, k int) {
	for idx := len(steps) - 1; idx >= 0; idx-- {
		if steps[idx].St.IsMain() {
			return steps[idx].I, steps[idx].K
		}
	}
	return 0, 0
}

// Validate checks state-transition legality and basic shape invariants:
// the trace begins S,N (N repeated zero or more times), ends ...C,T, and
// every domain is B -> {L|G} -> main-state chain -> E (spec.md §3.3).
func (t *Trace) Validate() error {
	if len(t.Steps) < 2 {
		return fmt.Errorf("%w: trace too short to be valid", ErrInvalidArg)
	}
	if t.Steps[0].St != S {
		return fmt.Errorf("%w: trace must begin at S", ErrInvalidArg)
	}
	if t.Steps[len(t.Steps)-1].St != STT {
		return fmt.Errorf("%w: trace must end at T", ErrInvalidArg)
	}
	idx := 1
	for idx < len(t.Steps) && t.Steps[idx].St == STN {
		idx++
	}
	for idx < len(t.Steps)-1 {
		if t.Steps[idx].St != STB {
			return fmt.Errorf("%w: expected B at step %d, got %s", ErrInvalidArg, idx, t.Steps[idx].St)
		}
		idx++
		if idx >= len(t.Steps) || (t.Steps[idx].St != STL && t.Steps[idx].St != STG) {
			return fmt.Errorf("%w: expected L or G after B at step %d", ErrInvalidArg, idx)
		}
		glocal := t.Steps[idx].St == STG
		idx++
		sawMain := false
		for idx < len(t.Steps) && t.Steps[idx].St != STE {
			if t.Steps[idx].St.IsMain() {
				sawMain = true
			}
			idx++
		}
		if idx >= len(t.Steps) || t.Steps[idx].St != STE {
			return fmt.Errorf("%w: domain did not terminate at E", ErrInvalidArg)
		}
		if glocal && !sawMain {
			return fmt.Errorf("%w: glocal domain did not reach a main state", ErrInvalidArg)
		}
		idx++
		for idx < len(t.Steps)-1 && (t.Steps[idx].St == STJ || t.Steps[idx].St == STC) {
			idx++
		}
	}
	return nil
}

// Score sums transition and emission log-probabilities along the trace
// against profile p and sequence dsq, per spec.md §3.3. It is used by the
// "trace-scores-viterbi" and "generated-trace bound" tests (spec.md §8).
func (t *Trace) Score(p *Profile, dsq []int) (float32, error) {
	var sc float32
	for idx := 1; idx < len(t.Steps); idx++ {
		prev, cur := t.Steps[idx-1], t.Steps[idx]
		edge, err := transitionScore(p, prev, cur)
		if err != nil {
			return 0, err
		}
		sc += edge
		if cur.St.Emits() {
			sc += emissionScore(p, cur, dsq)
		}
	}
	return sc, nil
}

func emissionScore(p *Profile, cur TraceStep, dsq []int) float32 {
	x := dsq[cur.I]
	switch cur.St {
	case STML, STMG:
		return p.Msc(cur.K, x)
	case STIL, STIG:
		return p.Isc(cur.K, x)
	}
	return 0
}

func transitionScore(p *Profile, prev, cur TraceStep) (float32, error) {
	switch prev.St {
	case S:
		if cur.St == STN {
			return 0, nil
		}
	case STN:
		if cur.St == STN {
			return p.Xsc(XN, LOOP), nil
		}
		if cur.St == STB {
			return p.Xsc(XN, MOVE), nil
		}
	case STB:
		if cur.St == STL {
			return p.Xsc(XB, LOOP), nil
		}
		if cur.St == STG {
			return p.Xsc(XB, MOVE), nil
		}
	case STL:
		if cur.St == STML {
			return p.Tsc(cur.K-1, TLM), nil
		}
	case STG:
		if cur.St == STMG || cur.St == STDG {
			return p.Tsc(cur.K-1, TGM), nil
		}
	case STML:
		switch cur.St {
		case STML, STMG:
			return p.Tsc(prev.K, TMM), nil
		case STIL, STIG:
			return p.Tsc(prev.K, TMI), nil
		case STDL, STDG:
			return p.Tsc(prev.K, TMD), nil
		case STE:
			return p.ExitScore(prev.K), nil
		}
	case STMG:
		switch cur.St {
		case STMG:
			return p.Tsc(prev.K, TMM), nil
		case STIG:
			return p.Tsc(prev.K, TMI), nil
		case STDG:
			return p.Tsc(prev.K, TMD), nil
		case STE:
			if prev.K == p.M {
				return 0, nil
			}
		}
	case STIL, STIG:
		switch cur.St {
		case STML, STMG:
			return p.Tsc(prev.K, TIM), nil
		case STIL, STIG:
			return p.Tsc(prev.K, TII), nil
		}
	case STDL:
		switch cur.St {
		case STML, STMG:
			return p.Tsc(prev.K, TDM), nil
		case STDL, STDG:
			return p.Tsc(prev.K, TDD), nil
		}
	case STDG:
		switch cur.St {
		case STMG:
			return p.Tsc(prev.K, TDM), nil
		case STDG:
			return p.Tsc(prev.K, TDD), nil
		case STE:
			if prev.K == p.M {
				return 0, nil
			}
		}
	case STE:
		if cur.St == STJ {
			return p.Xsc(XE, LOOP), nil
		}
		if cur.St == STC {
			return p.Xsc(XE, MOVE), nil
		}
	case STJ:
		if cur.St == STJ {
			return p.Xsc(XJ, LOOP), nil
		}
		if cur.St == STB {
			return p.Xsc(XJ, MOVE), nil
		}
	case STC:
		if cur.St == STC {
			return p.Xsc(XC, LOOP), nil
		}
		if cur.St == STT {
			return p.Xsc(XC, MOVE), nil
		}
	}
	return 0, fmt.Errorf("%w: illegal transition %s -> %s", ErrInvalidArg, prev.St, cur.St)
}

// AnnotatePosteriors copies per-cell posterior probabilities from a
// Decoding matrix onto each emitting step of the trace, per spec.md
// §3.3/§4.3.4.
func (t *Trace) AnnotatePosteriors(dec *DenseMatrix) {
	for idx := range t.Steps {
		s := &t.Steps[idx]
		if !s.St.Emits() {
			continue
		}
		cell := dec.Main(s.I, s.K)
		switch s.St {
		case STML:
			s.PP = cell[MLc]
		case STMG:
			s.PP = cell[MGc]
		case STIL:
			s.PP = cell[ILc]
		case STIG:
			s.PP = cell[IGc]
		}
	}
}
