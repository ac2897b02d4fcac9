// Package ddrtree is the call contract for the dimension-reduction
// learner that fits a principal tree (DDRTree) to expression data. The
// fit itself is an external concern; ordering only consumes its
// outputs.
package ddrtree

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted reports a learner asked for a tree it never fit.
var ErrNotFitted = errors.New("ddrtree: not fitted")

// ErrDimension reports an inconsistently shaped fit result.
var ErrDimension = errors.New("ddrtree: dimension mismatch")

// ncellsLimit is the cell count up to which every cell gets its own
// principal point.
const ncellsLimit = 100

// NCenter returns the number of principal points for a cell count:
// one per cell up to ncellsLimit, then a logarithmic growth curve.
func NCenter(nCells int) int {
	if nCells <= ncellsLimit {
		return nCells
	}
	n := float64(nCells)
	return int(math.Round(2 * ncellsLimit * math.Log(n) / (math.Log(n) + math.Log(ncellsLimit))))
}

// Options parameterize one tree fit.
type Options struct {
	// Dim is the target embedding dimension.
	Dim int
	// NCenter is the number of principal points.
	NCenter int
	// MaxIter bounds the alternating optimization.
	MaxIter int
	// Sigma is the bandwidth of the soft assignment.
	Sigma float64
	// Lambda weights the tree regularization.
	Lambda float64
	// Gamma weights the assignment entropy.
	Gamma float64
	// Tol is the relative objective change that stops iteration early.
	Tol float64
}

// DefaultOptions returns the fit parameters used when a caller does
// not override them.
func DefaultOptions(nCells int) Options {
	return Options{
		Dim:     2,
		NCenter: NCenter(nCells),
		MaxIter: 10,
		Sigma:   0.001,
		Lambda:  5 * float64(nCells),
		Gamma:   10,
		Tol:     0,
	}
}

// Result is a fitted principal tree: reduced cell coordinates Z
// (cells by dimensions), principal points Y (points by dimensions),
// the learned tree adjacency Stree (points by points), the soft
// assignment R (cells by points) and the objective trace.
type Result struct {
	Z         *mat.Dense
	Y         *mat.Dense
	Stree     *mat.Dense
	R         *mat.Dense
	Objective []float64
}

// NCells returns the number of cells the tree was fit to.
func (r *Result) NCells() int {
	n, _ := r.Z.Dims()
	return n
}

// NCenters returns the number of principal points.
func (r *Result) NCenters() int {
	k, _ := r.Y.Dims()
	return k
}

// Validate checks the shapes of a fit result against each other.
func (r *Result) Validate() error {
	n, d := r.Z.Dims()
	k, dy := r.Y.Dims()
	if d != dy {
		return fmt.Errorf("%w: Z is %d-dimensional, Y %d-dimensional", ErrDimension, d, dy)
	}
	sr, sc := r.Stree.Dims()
	if sr != k || sc != k {
		return fmt.Errorf("%w: Stree is %dx%d for %d principal points", ErrDimension, sr, sc, k)
	}
	if r.R != nil {
		rr, rc := r.R.Dims()
		if rr != n || rc != k {
			return fmt.Errorf("%w: R is %dx%d, want %dx%d", ErrDimension, rr, rc, n, k)
		}
	}
	return nil
}

// Learner fits a principal tree to expression data.
type Learner interface {
	FitTree(x *mat.Dense, opts Options) (*Result, error)
}

// Precomputed is a Learner that hands back a fit produced elsewhere.
type Precomputed struct {
	res *Result
}

// NewPrecomputed wraps an existing fit result as a Learner.
func NewPrecomputed(res *Result) *Precomputed {
	return &Precomputed{res: res}
}

// FitTree returns the wrapped result, validating its shapes.
func (p *Precomputed) FitTree(_ *mat.Dense, _ Options) (*Result, error) {
	if p.res == nil {
		return nil, ErrNotFitted
	}
	if err := p.res.Validate(); err != nil {
		return nil, err
	}
	return p.res, nil
}
