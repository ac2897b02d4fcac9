// Package veccalc derives differential-geometric quantities from a
// reconstructed vector field: Jacobian, divergence, curl, acceleration,
// curvature and torsion, each as a batched operator over query points.
package veccalc

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YanshiHu/dynamo-release/kernel"
)

// JacobianTensor stacks one (d by d) Jacobian per query point, J[a][b]
// holding the partial of output a with respect to coordinate b.
type JacobianTensor []*mat.Dense

// N returns the number of query points.
func (jt JacobianTensor) N() int { return len(jt) }

// Dim returns the embedding dimension, 0 for an empty tensor.
func (jt JacobianTensor) Dim() int {
	if len(jt) == 0 {
		return 0
	}
	d, _ := jt[0].Dims()
	return d
}

// Pick returns the sub-tensor at the given positions.
func (jt JacobianTensor) Pick(positions []int) JacobianTensor {
	res := make(JacobianTensor, len(positions))
	for i, p := range positions {
		res[i] = jt[p]
	}
	return res
}

// JacobianFunc evaluates the field Jacobian at the rows of a query matrix.
type JacobianFunc func(x *mat.Dense) (JacobianTensor, error)

// AnalyticalJacobian computes the closed-form Jacobian of a Gaussian-family
// field at the rows of x, one point at a time:
//
//	J_i = -2*beta * (C' scaled by K_i) * D_i'
//
// where D_i collects the coordinate differences against the control points.
func AnalyticalJacobian(x *mat.Dense, model *kernel.Model) (JacobianTensor, error) {
	k, diff, err := analyticalParts(x, model)
	if err != nil {
		return nil, err
	}
	n, d := x.Dims()
	nCtrl, _ := model.C.Dims()

	res := make(JacobianTensor, n)
	scaled := mat.NewDense(d, nCtrl, nil)
	for i := 0; i < n; i++ {
		ki := k.RawRowView(i)
		for a := 0; a < d; a++ {
			for j := 0; j < nCtrl; j++ {
				scaled.Set(a, j, model.C.At(j, a)*ki[j])
			}
		}
		ji := mat.NewDense(d, d, nil)
		ji.Mul(scaled, diff[i].T())
		ji.Scale(-2*model.Beta, ji)
		res[i] = ji
	}
	return res, nil
}

// AnalyticalJacobianVectorized computes the same quantity through whole-batch
// matrix products: for each coordinate pair (a, b) the column over all points
// is (K elementwise D_b) * C[:,a]. Kept as an independent code path; both must
// agree to floating-point tolerance.
func AnalyticalJacobianVectorized(x *mat.Dense, model *kernel.Model) (JacobianTensor, error) {
	k, diff, err := analyticalParts(x, model)
	if err != nil {
		return nil, err
	}
	n, d := x.Dims()
	nCtrl, _ := model.C.Dims()

	res := make(JacobianTensor, n)
	for i := range res {
		res[i] = mat.NewDense(d, d, nil)
	}

	scaled := mat.NewDense(n, nCtrl, nil)
	col := mat.NewVecDense(n, nil)
	for b := 0; b < d; b++ {
		for i := 0; i < n; i++ {
			ki := k.RawRowView(i)
			for j := 0; j < nCtrl; j++ {
				scaled.Set(i, j, ki[j]*diff[i].At(b, j))
			}
		}
		for a := 0; a < d; a++ {
			col.MulVec(scaled, model.C.ColView(a))
			for i := 0; i < n; i++ {
				res[i].Set(a, b, -2*model.Beta*col.AtVec(i))
			}
		}
	}
	return res, nil
}

// AnalyticalJacobianParallel splits the query rows into contiguous chunks,
// one goroutine per chunk, and reassembles the tensor in input order.
func AnalyticalJacobianParallel(x *mat.Dense, model *kernel.Model, workers int) (JacobianTensor, error) {
	n, d := x.Dims()
	if workers <= 1 || n <= 1 {
		return AnalyticalJacobian(x, model)
	}
	if workers > n {
		workers = n
	}
	if err := checkAnalyticalModel(x, model); err != nil {
		return nil, err
	}

	res := make(JacobianTensor, n)
	errs := make([]error, workers)
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
		go func(w, lo, hi int) {
			defer wg.Done()
			sub := mat.NewDense(hi-lo, d, nil)
			for i := lo; i < hi; i++ {
				sub.SetRow(i-lo, x.RawRowView(i))
			}
			part, err := AnalyticalJacobian(sub, model)
			if err != nil {
				errs[w] = err
				return
			}
			copy(res[lo:hi], part)
		}(w, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// AnalyticalJacobianFunc closes the model and worker count into a
// JacobianFunc. The kernel family is validated once up front.
func AnalyticalJacobianFunc(model *kernel.Model, workers int) (JacobianFunc, error) {
	if model.Family != kernel.FamilyGaussian {
		return nil, fmt.Errorf("veccalc: analytical Jacobian needs the Gaussian family: %w", kernel.ErrInvalidKernelVariant)
	}
	return func(x *mat.Dense) (JacobianTensor, error) {
		return AnalyticalJacobianParallel(x, model, workers)
	}, nil
}

func analyticalParts(x *mat.Dense, model *kernel.Model) (*mat.Dense, []*mat.Dense, error) {
	if err := checkAnalyticalModel(x, model); err != nil {
		return nil, nil, err
	}
	return kernel.GaussianWithDiff(x, model.XCtrl, model.Beta)
}

func checkAnalyticalModel(x *mat.Dense, model *kernel.Model) error {
	if model.Family != kernel.FamilyGaussian {
		return fmt.Errorf("veccalc: analytical Jacobian needs the Gaussian family: %w", kernel.ErrInvalidKernelVariant)
	}
	_, d := x.Dims()
	if d != model.Dim() {
		return fmt.Errorf("veccalc: query dimension %d against model dimension %d: %w", d, model.Dim(), ErrDimension)
	}
	return nil
}
