// Package transform maps differential quantities and the vector-field
// function itself between a reduced embedding and the original feature
// space through a fixed linear loading matrix.
package transform

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YanshiHu/dynamo-release/veccalc"
)

// ErrDimension reports loading-matrix shapes that do not line up with the
// Jacobian or velocity dimensions.
var ErrDimension = errors.New("transform: dimension mismatch")

// ElementwiseJacobian inverse-transforms one Jacobian entry per point back
// to feature space: the scalar qi . J . qj for a single regulator/effector
// loading-row pair.
func ElementwiseJacobian(jac veccalc.JacobianFunc, x *mat.Dense, qi, qj []float64) ([]float64, error) {
	jt, err := jac(x)
	if err != nil {
		return nil, err
	}
	d := jt.Dim()
	if len(qi) != d || len(qj) != d {
		return nil, fmt.Errorf("transform: loading rows of length %d and %d against a %d-dimensional Jacobian: %w",
			len(qi), len(qj), d, ErrDimension)
	}

	res := make([]float64, jt.N())
	for i, j := range jt {
		var s float64
		for a := 0; a < d; a++ {
			for b := 0; b < d; b++ {
				s += qi[a] * j.At(a, b) * qj[b]
			}
		}
		res[i] = s
	}
	return res, nil
}

// Jacobian transforms an already computed tensor: Qi * J * Qj' per point,
// yielding a (rows(Qi) by rows(Qj)) matrix per point.
func Jacobian(jt veccalc.JacobianTensor, qi, qj *mat.Dense) (veccalc.JacobianTensor, error) {
	if err := checkLoadings(jt.Dim(), qi, qj); err != nil {
		return nil, err
	}
	res := make(veccalc.JacobianTensor, jt.N())
	transformRange(jt, qi, qj, res, 0, jt.N())
	return res, nil
}

// SubsetJacobian computes the Jacobian once and transforms every point by
// Qi * J * Qj'. With workers > 1 the point range is split into contiguous
// chunks, one goroutine per chunk, results concatenated in input order;
// the output is identical to a single-worker run.
func SubsetJacobian(jac veccalc.JacobianFunc, x *mat.Dense, qi, qj *mat.Dense, workers int) (veccalc.JacobianTensor, error) {
	jt, err := jac(x)
	if err != nil {
		return nil, err
	}
	if err := checkLoadings(jt.Dim(), qi, qj); err != nil {
		return nil, err
	}

	n := jt.N()
	res := make(veccalc.JacobianTensor, n)
	if workers <= 1 || n <= 1 {
		transformRange(jt, qi, qj, res, 0, n)
		return res, nil
	}
	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			transformRange(jt, qi, qj, res, lo, hi)
		}(lo, hi)
	}
	wg.Wait()
	return res, nil
}

func transformRange(jt veccalc.JacobianTensor, qi, qj *mat.Dense, res veccalc.JacobianTensor, lo, hi int) {
	for i := lo; i < hi; i++ {
		var tmp, out mat.Dense
		tmp.Mul(qi, jt[i])
		out.Mul(&tmp, qj.T())
		res[i] = &out
	}
}

// VectorField projects a reduced-space field function into feature space:
// x maps to vf(x) * Q'.
func VectorField(vf func(*mat.Dense) *mat.Dense, q *mat.Dense) func(*mat.Dense) *mat.Dense {
	return func(x *mat.Dense) *mat.Dense {
		var out mat.Dense
		out.Mul(vf(x), q.T())
		return &out
	}
}

// Vectors projects per-point reduced-space vectors (n by d) into feature
// space through the loading matrix (genes by d).
func Vectors(v, q *mat.Dense) (*mat.Dense, error) {
	_, d := v.Dims()
	_, qd := q.Dims()
	if d != qd {
		return nil, fmt.Errorf("transform: %d-dimensional vectors against %d-column loadings: %w", d, qd, ErrDimension)
	}
	var out mat.Dense
	out.Mul(v, q.T())
	return &out, nil
}

func checkLoadings(d int, qi, qj *mat.Dense) error {
	_, qiCols := qi.Dims()
	_, qjCols := qj.Dims()
	if qiCols != d || qjCols != d {
		return fmt.Errorf("transform: loadings with %d and %d columns against a %d-dimensional Jacobian: %w",
			qiCols, qjCols, d, ErrDimension)
	}
	return nil
}
