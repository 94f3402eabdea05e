package hmmer

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Main-supercell cell indices, in the fixed order spec.md §3.4 mandates:
// [ML, MG, IL, IG, DL, DG].
const (
	MLc = iota
	MGc
	ILc
	IGc
	DLc
	DGc
	nMainCells
)

// Special-supercell cell indices, in the fixed order spec.md §3.4
// mandates: [E, N, J, B, L, G, C, JJ, CC].
const (
	Ec = iota
	Nc
	Jc
	Bc
	Lc
	Gc
	Cc
	JJc
	CCc
	nSpecialCells
)

// DenseMatrix is the reference DP matrix of spec.md §3.4: a row-major
// array of (M+1) main supercells (six floats each) plus one specials
// supercell (nine floats) per row, for rows 0..L. Adapted from
// TuftsBCB-seq's flat-slice DynamicTable idiom (a single backing array
// indexed by a computed offset, rather than a slice-of-slices), scaled up
// to the six/nine-cell-per-position layout this spec requires.
type DenseMatrix struct {
	main    []float32 // (L+1)*(M+1)*nMainCells
	special []float32 // (L+1)*nSpecialCells
	M, L    int        // logical shape currently filled
	capM    int        // allocated capacity, may exceed M (grow-in-place)
	capL    int
	Type    string // "Viterbi", "Forward", "Backward", "Decoding", "Alignment"
}

// NewDenseMatrix allocates a DenseMatrix sized for M nodes and sequence
// length L.
func NewDenseMatrix(m, l int) (*DenseMatrix, error) {
	d := &DenseMatrix{}
	if err := d.GrowTo(m, l); err != nil {
		return nil, err
	}
	return d, nil
}

// GrowTo reallocates the matrix if its current capacity is smaller than
// (m,l), reusing the backing arrays otherwise. This mirrors
// p7_refmx_GrowTo's "grow in place on larger (M,L); reuse clears flags
// without freeing" contract (spec.md §3.4). A failed allocation is
// reported as an error wrapping ErrAlloc.
func (d *DenseMatrix) GrowTo(m, l int) (err error) {
	if m < 0 || l < 0 {
		return fmt.Errorf("%w: negative matrix shape M=%d L=%d", ErrInvalidArg, m, l)
	}
	needMain := (l + 1) * (m + 1) * nMainCells
	needSpec := (l + 1) * nSpecialCells
	if m > d.capM || l > d.capL || d.main == nil {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithFields(logrus.Fields{"M": m, "L": l}).Warn("hmmer: dense matrix allocation failed")
				err = fmt.Errorf("%w: dense matrix M=%d L=%d", ErrAlloc, m, l)
			}
		}()
		d.main = make([]float32, needMain)
		d.special = make([]float32, needSpec)
		d.capM, d.capL = m, l
		logrus.WithFields(logrus.Fields{"M": m, "L": l}).Debug("hmmer: dense matrix grown")
	}
	d.M, d.L = m, l
	return nil
}

// Reuse clears logical shape without releasing backing storage, so a
// matrix can be refilled for a new (M,L) <= its current capacity without
// reallocating.
func (d *DenseMatrix) Reuse(m, l int) error {
	if m <= d.capM && l <= d.capL {
		d.M, d.L = m, l
		return nil
	}
	return d.GrowTo(m, l)
}

func (d *DenseMatrix) mainOffset(i, k int) int {
	return (i*(d.capM+1) + k) * nMainCells
}

func (d *DenseMatrix) specOffset(i int) int {
	return i * nSpecialCells
}

// Main returns the six main-state cells [ML,MG,IL,IG,DL,DG] at row i,
// node k, as a slice sharing storage with the matrix (mutate through it
// to write).
func (d *DenseMatrix) Main(i, k int) []float32 {
	o := d.mainOffset(i, k)
	return d.main[o : o+nMainCells]
}

// Special returns the nine special cells [E,N,J,B,L,G,C,JJ,CC] at row i.
func (d *DenseMatrix) Special(i int) []float32 {
	o := d.specOffset(i)
	return d.special[o : o+nSpecialCells]
}

// Reset sets every cell to -Inf, matching spec.md §4.3.1's "all M/I/D =
// -Inf" row-0 convention generalized to the whole matrix; callers that
// rely on deferred-storage fill order don't strictly need this before a
// full Viterbi/Forward/Backward pass (every cell in range is written),
// but it guards stale values in unfilled sparse regions when reused.
func (d *DenseMatrix) Reset() {
	for i := range d.main {
		d.main[i] = negInf
	}
	for i := range d.special {
		d.special[i] = negInf
	}
}

// Dump writes a human-readable rendering of the matrix, in the teacher's
// spirit of an inspectable table rather than a binary dump.
func (d *DenseMatrix) Dump() string {
	s := fmt.Sprintf("DenseMatrix type=%s M=%d L=%d\n", d.Type, d.M, d.L)
	for i := 0; i <= d.L; i++ {
		s += fmt.Sprintf("row %3d: special=%v\n", i, d.Special(i))
		for k := 0; k <= d.M; k++ {
			s += fmt.Sprintf("  k=%3d: %v\n", k, d.Main(i, k))
		}
	}
	return s
}
