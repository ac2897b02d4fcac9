package veccalc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Speed returns the per-point norm of the field evaluated at the rows of x.
func Speed(vf func(*mat.Dense) *mat.Dense, x *mat.Dense) []float64 {
	v := vf(x)
	n, _ := v.Dims()
	res := make([]float64, n)
	for i := 0; i < n; i++ {
		res[i] = floats.Norm(v.RawRowView(i), 2)
	}
	return res
}

// Divergence returns the per-point trace of the Jacobian at the rows of x,
// computed in batches to bound memory. batchSize of 1 runs fully
// sequentially; batchSize <= 0 uses one batch for everything.
func Divergence(jac JacobianFunc, x *mat.Dense, batchSize int) ([]float64, error) {
	n, d := x.Dims()
	if batchSize <= 0 {
		batchSize = n
	}
	res := make([]float64, n)
	for i := 0; i < n; i += batchSize {
		end := i + batchSize
		if end > n {
			end = n
		}
		sub := x.Slice(i, end, 0, d).(*mat.Dense)
		jt, err := jac(sub)
		if err != nil {
			return nil, err
		}
		for p, j := range jt {
			res[i+p] = trace(j)
		}
	}
	return res, nil
}

// DivergenceFromJacobian returns the per-point trace of an already
// computed Jacobian tensor.
func DivergenceFromJacobian(jt JacobianTensor) []float64 {
	res := make([]float64, jt.N())
	for i, j := range jt {
		res[i] = trace(j)
	}
	return res
}

func trace(j *mat.Dense) float64 {
	d, _ := j.Dims()
	var s float64
	for a := 0; a < d; a++ {
		s += j.At(a, a)
	}
	return s
}

// Curl2D returns the scalar curl J[1,0]-J[0,1] of a 2-D Jacobian.
func Curl2D(j *mat.Dense) (float64, error) {
	r, c := j.Dims()
	if r != 2 || c != 2 {
		return 0, fmt.Errorf("veccalc: curl2D on a %dx%d Jacobian: %w", r, c, ErrDimension)
	}
	return j.At(1, 0) - j.At(0, 1), nil
}

// Curl3D returns the curl vector of a 3-D Jacobian.
func Curl3D(j *mat.Dense) (*mat.VecDense, error) {
	r, c := j.Dims()
	if r != 3 || c != 3 {
		return nil, fmt.Errorf("veccalc: curl3D on a %dx%d Jacobian: %w", r, c, ErrDimension)
	}
	return mat.NewVecDense(3, []float64{
		j.At(2, 1) - j.At(1, 2),
		j.At(0, 2) - j.At(2, 0),
		j.At(1, 0) - j.At(0, 1),
	}), nil
}

// Acceleration returns J*v, the field acceleration at one point.
func Acceleration(v mat.Vector, j *mat.Dense) (*mat.VecDense, error) {
	r, c := j.Dims()
	if c != v.Len() {
		return nil, fmt.Errorf("veccalc: %dx%d Jacobian against a %d-vector: %w", r, c, v.Len(), ErrDimension)
	}
	res := mat.NewVecDense(r, nil)
	res.MulVec(j, v)
	return res, nil
}

// Curvature returns |v x a| / |v|^3 for 2-D or 3-D points. A zero-norm
// velocity yields NaN together with ErrDegenerateGeometry.
func Curvature(a, v mat.Vector) (float64, error) {
	d := v.Len()
	if d != a.Len() || (d != 2 && d != 3) {
		return 0, fmt.Errorf("veccalc: curvature of a %d-dimensional field: %w", d, ErrDimension)
	}
	nv := mat.Norm(v, 2)
	if nv == 0 {
		return math.NaN(), fmt.Errorf("veccalc: zero-norm velocity: %w", ErrDegenerateGeometry)
	}
	return crossNorm(v, a) / (nv * nv * nv), nil
}

// Torsion returns (v x a) . (J*a) / |v x a|^2, defined in 3-D only.
// A degenerate v x a yields NaN together with ErrDegenerateGeometry.
func Torsion(v mat.Vector, j *mat.Dense, a mat.Vector) (float64, error) {
	if v.Len() != 3 || a.Len() != 3 {
		return 0, fmt.Errorf("veccalc: torsion of a %d-dimensional field: %w", v.Len(), ErrDimension)
	}
	r, c := j.Dims()
	if r != 3 || c != 3 {
		return 0, fmt.Errorf("veccalc: torsion with a %dx%d Jacobian: %w", r, c, ErrDimension)
	}
	cx := cross3(v, a)
	den := cx[0]*cx[0] + cx[1]*cx[1] + cx[2]*cx[2]
	if den == 0 {
		return math.NaN(), fmt.Errorf("veccalc: velocity and acceleration colinear: %w", ErrDegenerateGeometry)
	}
	ja, err := Acceleration(a, j)
	if err != nil {
		return 0, err
	}
	num := cx[0]*ja.AtVec(0) + cx[1]*ja.AtVec(1) + cx[2]*ja.AtVec(2)
	return num / den, nil
}

// ComputeAcceleration evaluates J*v at every row of x, returning the
// per-point norms and the full (n by d) acceleration matrix.
func ComputeAcceleration(vf func(*mat.Dense) *mat.Dense, jac JacobianFunc, x *mat.Dense) ([]float64, *mat.Dense, error) {
	n, d := x.Dims()
	v := vf(x)
	jt, err := jac(x)
	if err != nil {
		return nil, nil, err
	}

	norms := make([]float64, n)
	vectors := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		acc, err := Acceleration(v.RowView(i), jt[i])
		if err != nil {
			return nil, nil, err
		}
		vectors.SetRow(i, acc.RawVector().Data)
		norms[i] = floats.Norm(acc.RawVector().Data, 2)
	}
	return norms, vectors, nil
}

// ComputeCurvature evaluates the curvature at every row of x. Degenerate
// points keep NaN in the result; the returned error reports how many.
func ComputeCurvature(vf func(*mat.Dense) *mat.Dense, jac JacobianFunc, x *mat.Dense) ([]float64, error) {
	n, d := x.Dims()
	if d != 2 && d != 3 {
		return nil, fmt.Errorf("veccalc: curvature of a %d-dimensional field: %w", d, ErrDimension)
	}
	v := vf(x)
	jt, err := jac(x)
	if err != nil {
		return nil, err
	}

	res := make([]float64, n)
	degenerate := 0
	for i := 0; i < n; i++ {
		vi := v.RowView(i)
		acc, err := Acceleration(vi, jt[i])
		if err != nil {
			return nil, err
		}
		res[i], err = Curvature(acc, vi)
		if err != nil {
			degenerate++
		}
	}
	return res, degenerateError(degenerate, n)
}

// ComputeTorsion evaluates the torsion at every row of x, 3-D only.
func ComputeTorsion(vf func(*mat.Dense) *mat.Dense, jac JacobianFunc, x *mat.Dense) ([]float64, error) {
	n, d := x.Dims()
	if d != 3 {
		return nil, fmt.Errorf("veccalc: torsion of a %d-dimensional field: %w", d, ErrDimension)
	}
	v := vf(x)
	jt, err := jac(x)
	if err != nil {
		return nil, err
	}

	res := make([]float64, n)
	degenerate := 0
	for i := 0; i < n; i++ {
		vi := v.RowView(i)
		acc, err := Acceleration(vi, jt[i])
		if err != nil {
			return nil, err
		}
		res[i], err = Torsion(vi, jt[i], acc)
		if err != nil {
			degenerate++
		}
	}
	return res, degenerateError(degenerate, n)
}

// ComputeCurl evaluates the curl at every row of x. In 2-D the scalars
// carry the result and the matrix is nil; in 3-D the matrix holds the curl
// vectors and the scalars their norms.
func ComputeCurl(jac JacobianFunc, x *mat.Dense) ([]float64, *mat.Dense, error) {
	n, d := x.Dims()
	if d != 2 && d != 3 {
		return nil, nil, fmt.Errorf("veccalc: curl of a %d-dimensional field: %w", d, ErrDimension)
	}
	jt, err := jac(x)
	if err != nil {
		return nil, nil, err
	}

	scalars := make([]float64, n)
	if d == 2 {
		for i := 0; i < n; i++ {
			scalars[i], err = Curl2D(jt[i])
			if err != nil {
				return nil, nil, err
			}
		}
		return scalars, nil, nil
	}

	vectors := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		c, err := Curl3D(jt[i])
		if err != nil {
			return nil, nil, err
		}
		vectors.SetRow(i, c.RawVector().Data)
		scalars[i] = floats.Norm(c.RawVector().Data, 2)
	}
	return scalars, vectors, nil
}

func crossNorm(v, a mat.Vector) float64 {
	if v.Len() == 2 {
		return math.Abs(v.AtVec(0)*a.AtVec(1) - v.AtVec(1)*a.AtVec(0))
	}
	c := cross3(v, a)
	return math.Sqrt(c[0]*c[0] + c[1]*c[1] + c[2]*c[2])
}

func cross3(v, a mat.Vector) [3]float64 {
	return [3]float64{
		v.AtVec(1)*a.AtVec(2) - v.AtVec(2)*a.AtVec(1),
		v.AtVec(2)*a.AtVec(0) - v.AtVec(0)*a.AtVec(2),
		v.AtVec(0)*a.AtVec(1) - v.AtVec(1)*a.AtVec(0),
	}
}

func degenerateError(count, n int) error {
	if count == 0 {
		return nil
	}
	return fmt.Errorf("veccalc: %d of %d points degenerate: %w", count, n, ErrDegenerateGeometry)
}
