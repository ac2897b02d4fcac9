package veccalc

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// identityField is f(x) = x; its Jacobian is the identity everywhere.
func identityField(x *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.CloneFrom(x)
	return &out
}

// rotationField2D is f(x, y) = (-y, x), a pure rotation with curl 2.
func rotationField2D(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, -x.At(i, 1))
		out.Set(i, 1, x.At(i, 0))
	}
	return out
}

// rotationField3D is f(x, y, z) = (-y, x, 0), curl (0, 0, 2).
func rotationField3D(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, -x.At(i, 1))
		out.Set(i, 1, x.At(i, 0))
	}
	return out
}

func TestDivergenceOfIdentityField(t *testing.T) {
	for _, d := range []int{2, 3} {
		x := mat.NewDense(4, d, nil)
		for i := 0; i < 4; i++ {
			for k := 0; k < d; k++ {
				x.Set(i, k, float64(i)+0.3*float64(k))
			}
		}
		jac := NumericalJacobian(identityField, RowConvention)

		for _, batch := range []int{0, 1, 3} {
			div, err := Divergence(jac, x, batch)
			require.NoError(t, err)
			require.Len(t, div, 4)
			for i := range div {
				assert.InDelta(t, float64(d), div[i], 1e-6, "dimension %d batch %d", d, batch)
			}
		}
	}
}

func TestDivergenceFromJacobian(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{0, 0, 1, 1, 2, 2})
	jac := NumericalJacobian(identityField, RowConvention)

	jt, err := jac(x)
	require.NoError(t, err)
	fromTensor := DivergenceFromJacobian(jt)

	direct, err := Divergence(jac, x, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, direct, fromTensor, 1e-12)
}

func TestCurlOfRotationField(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{0, 0, 1, 2, -3, 0.5})
	jac := NumericalJacobian(rotationField2D, RowConvention)

	scalars, vectors, err := ComputeCurl(jac, x)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	for i := range scalars {
		assert.InDelta(t, 2, scalars[i], 1e-6)
	}

	x3 := mat.NewDense(2, 3, []float64{0.5, 1, 2, -1, 0.3, 0})
	jac3 := NumericalJacobian(rotationField3D, RowConvention)
	norms, curls, err := ComputeCurl(jac3, x3)
	require.NoError(t, err)
	require.NotNil(t, curls)
	for i := 0; i < 2; i++ {
		assert.InDelta(t, 0, curls.At(i, 0), 1e-6)
		assert.InDelta(t, 0, curls.At(i, 1), 1e-6)
		assert.InDelta(t, 2, curls.At(i, 2), 1e-6)
		assert.InDelta(t, 2, norms[i], 1e-6)
	}
}

func TestCurlDimensionErrors(t *testing.T) {
	_, err := Curl2D(mat.NewDense(3, 3, nil))
	assert.True(t, errors.Is(err, ErrDimension))
	_, err = Curl3D(mat.NewDense(2, 2, nil))
	assert.True(t, errors.Is(err, ErrDimension))

	x := mat.NewDense(1, 4, nil)
	jac := NumericalJacobian(identityField, RowConvention)
	_, _, err = ComputeCurl(jac, x)
	assert.True(t, errors.Is(err, ErrDimension))
}

func TestAcceleration(t *testing.T) {
	j := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	v := mat.NewVecDense(2, []float64{1, -1})

	a, err := Acceleration(v, j)
	require.NoError(t, err)
	assert.InDelta(t, -1, a.AtVec(0), 1e-12)
	assert.InDelta(t, -1, a.AtVec(1), 1e-12)

	_, err = Acceleration(mat.NewVecDense(3, nil), j)
	assert.True(t, errors.Is(err, ErrDimension))
}

func TestCurvatureUnitCircle(t *testing.T) {
	// On f(x,y) = (-y, x) every orbit is a circle of radius |p|, so the
	// curvature at p is 1/|p|.
	x := mat.NewDense(2, 2, []float64{1, 0, 0, 2})
	jac := NumericalJacobian(rotationField2D, RowConvention)

	curv, err := ComputeCurvature(rotationField2D, jac, x)
	require.NoError(t, err)
	assert.InDelta(t, 1, curv[0], 1e-6)
	assert.InDelta(t, 0.5, curv[1], 1e-6)
}

func TestCurvatureDegenerate(t *testing.T) {
	v := mat.NewVecDense(2, nil)
	a := mat.NewVecDense(2, []float64{1, 1})

	k, err := Curvature(a, v)
	assert.True(t, math.IsNaN(k))
	assert.True(t, errors.Is(err, ErrDegenerateGeometry))

	// The origin is the fixed point of the rotation field.
	x := mat.NewDense(2, 2, []float64{0, 0, 1, 0})
	jac := NumericalJacobian(rotationField2D, RowConvention)
	curv, err := ComputeCurvature(rotationField2D, jac, x)
	assert.True(t, errors.Is(err, ErrDegenerateGeometry))
	assert.True(t, math.IsNaN(curv[0]))
	assert.InDelta(t, 1, curv[1], 1e-6)
}

func TestCurvatureDimensionError(t *testing.T) {
	v := mat.NewVecDense(4, []float64{1, 0, 0, 0})
	a := mat.NewVecDense(4, []float64{0, 1, 0, 0})
	_, err := Curvature(a, v)
	assert.True(t, errors.Is(err, ErrDimension))
}

func TestTorsionHelixField(t *testing.T) {
	// f(x,y,z) = (-y, x, c) traces helices; the torsion is c/(1+c^2).
	c := 0.5
	helix := func(x *mat.Dense) *mat.Dense {
		n, _ := x.Dims()
		out := mat.NewDense(n, 3, nil)
		for i := 0; i < n; i++ {
			out.Set(i, 0, -x.At(i, 1))
			out.Set(i, 1, x.At(i, 0))
			out.Set(i, 2, c)
		}
		return out
	}
	x := mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 5})
	jac := NumericalJacobian(helix, RowConvention)

	tor, err := ComputeTorsion(helix, jac, x)
	require.NoError(t, err)
	want := c / (1 + c*c)
	assert.InDelta(t, want, tor[0], 1e-6)
	assert.InDelta(t, want, tor[1], 1e-6)
}

func TestTorsionOutside3D(t *testing.T) {
	_, err := Torsion(mat.NewVecDense(2, nil), mat.NewDense(2, 2, nil), mat.NewVecDense(2, nil))
	assert.True(t, errors.Is(err, ErrDimension))

	x := mat.NewDense(1, 2, []float64{1, 1})
	jac := NumericalJacobian(rotationField2D, RowConvention)
	_, err = ComputeTorsion(rotationField2D, jac, x)
	assert.True(t, errors.Is(err, ErrDimension))
}

func TestTorsionDegenerate(t *testing.T) {
	v := mat.NewVecDense(3, []float64{1, 0, 0})
	a := mat.NewVecDense(3, []float64{2, 0, 0})
	j := mat.NewDense(3, 3, nil)

	tau, err := Torsion(v, j, a)
	assert.True(t, math.IsNaN(tau))
	assert.True(t, errors.Is(err, ErrDegenerateGeometry))
}

func TestComputeAcceleration(t *testing.T) {
	// For f(x) = x the acceleration J*v equals v itself.
	x := mat.NewDense(3, 2, []float64{1, 0, 3, 4, -2, 2})
	jac := NumericalJacobian(identityField, RowConvention)

	norms, vectors, err := ComputeAcceleration(identityField, jac, x)
	require.NoError(t, err)
	require.Len(t, norms, 3)

	for i := 0; i < 3; i++ {
		assert.InDelta(t, x.At(i, 0), vectors.At(i, 0), 1e-6)
		assert.InDelta(t, x.At(i, 1), vectors.At(i, 1), 1e-6)
	}
	assert.InDelta(t, 1, norms[0], 1e-6)
	assert.InDelta(t, 5, norms[1], 1e-6)
}

func TestSpeed(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{3, 4, 0, 0})
	speeds := Speed(identityField, x)
	assert.InDelta(t, 5, speeds[0], 1e-12)
	assert.InDelta(t, 0, speeds[1], 1e-12)
}
