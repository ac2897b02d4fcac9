package veccalc

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Convention states how a field function lays out its points: one per row
// (n by d) or one per column (d by n). The Jacobian values are identical
// either way; only the wrapping changes.
type Convention int

const (
	// RowConvention marks fields taking points as rows.
	RowConvention Convention = iota
	// ColumnConvention marks fields taking points as columns.
	ColumnConvention
)

var cubeEps = math.Pow(math.Nextafter(1, 2)-1, 1./3.)

// NumericalJacobian wraps a field function into a central-difference
// JacobianFunc. The step per coordinate is cbrt(eps)*max(1,|x|), the
// standard relative sizing for second-order differences.
func NumericalJacobian(f func(*mat.Dense) *mat.Dense, convention Convention) JacobianFunc {
	eval := f
	if convention == ColumnConvention {
		eval = func(x *mat.Dense) *mat.Dense {
			var xt mat.Dense
			xt.CloneFrom(x.T())
			var out mat.Dense
			out.CloneFrom(f(&xt).T())
			return &out
		}
	}
	return func(x *mat.Dense) (JacobianTensor, error) {
		n, d := x.Dims()
		res := make(JacobianTensor, n)
		hi := make([]float64, d)
		lo := make([]float64, d)
		for i := 0; i < n; i++ {
			xi := x.RawRowView(i)
			ji := mat.NewDense(d, d, nil)
			for b := 0; b < d; b++ {
				copy(hi, xi)
				copy(lo, xi)
				h := math.Copysign(cubeEps, xi[b]) * math.Max(1, math.Abs(xi[b]))
				hi[b] = xi[b] + h
				lo[b] = xi[b] - h
				// Recover the step actually representable at xi[b].
				h = (hi[b] - lo[b]) / 2
				fh := eval(mat.NewDense(1, d, hi))
				fl := eval(mat.NewDense(1, d, lo))
				inv := 1 / (2 * h)
				for a := 0; a < d; a++ {
					ji.Set(a, b, (fh.At(0, a)-fl.At(0, a))*inv)
				}
			}
			res[i] = ji
		}
		return res, nil
	}
}
