package kernel

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Family identifies the kernel family a model was fitted with.
type Family int

const (
	// FamilyGaussian marks a model fitted with the scalar Gaussian kernel.
	FamilyGaussian Family = iota
	// FamilyDivCurlFree marks a model fitted with the block
	// divergence-free/curl-free kernel.
	FamilyDivCurlFree
)

// Variant selects which part of a div/curl-free kernel evaluates the field.
type Variant int

const (
	// Full evaluates the combined kernel.
	Full Variant = iota
	// DivFree evaluates the divergence-free part only.
	DivFree
	// CurlFree evaluates the curl-free part only.
	CurlFree
)

// Model is a fitted vector-field record: control points, coefficients and
// kernel parameters. Immutable once constructed.
type Model struct {
	// XCtrl holds the control points, one per row (n_ctrl by d).
	XCtrl *mat.Dense
	// C holds the fitted coefficients, one row per control point
	// (n_ctrl by d).
	C *mat.Dense
	// Beta is the Gaussian kernel bandwidth.
	Beta float64
	// Sigma and Eta parameterize the div/curl-free kernel: sigma is the
	// bandwidth, eta in [0,1] weights the curl-free term.
	Sigma float64
	Eta   float64
	// Family selects the kernel-construction path and the Jacobian formula.
	Family Family
}

// Dim returns the embedding dimension of the model.
func (m *Model) Dim() int {
	_, d := m.XCtrl.Dims()
	return d
}

// NewGaussianModel returns a Gaussian-family model after checking the
// coefficient rows line up with the control points.
func NewGaussianModel(xCtrl, c *mat.Dense, beta float64) (*Model, error) {
	if err := checkModelShapes(xCtrl, c); err != nil {
		return nil, err
	}
	return &Model{XCtrl: xCtrl, C: c, Beta: beta, Family: FamilyGaussian}, nil
}

// NewDivCurlFreeModel returns a div/curl-free-family model.
func NewDivCurlFreeModel(xCtrl, c *mat.Dense, sigma, eta float64) (*Model, error) {
	if err := checkModelShapes(xCtrl, c); err != nil {
		return nil, err
	}
	if eta < 0 || eta > 1 {
		return nil, fmt.Errorf("kernel: eta %v outside [0,1]", eta)
	}
	return &Model{XCtrl: xCtrl, C: c, Sigma: sigma, Eta: eta, Family: FamilyDivCurlFree}, nil
}

func checkModelShapes(xCtrl, c *mat.Dense) error {
	nCtrl, d := xCtrl.Dims()
	cRows, cCols := c.Dims()
	if cRows != nCtrl || cCols != d {
		return fmt.Errorf("kernel: coefficients %dx%d against %d control points in %d dimensions: %w",
			cRows, cCols, nCtrl, d, ErrDimension)
	}
	return nil
}

// Evaluate computes the reconstructed field at the rows of x, returning one
// velocity row per query point. A single query row yields a 1 by d result.
func Evaluate(x *mat.Dense, model *Model, variant Variant) (*mat.Dense, error) {
	n, d := x.Dims()
	if d != model.Dim() {
		return nil, fmt.Errorf("kernel: query dimension %d against model dimension %d: %w", d, model.Dim(), ErrDimension)
	}

	if model.Family == FamilyGaussian {
		if variant != Full {
			return nil, fmt.Errorf("kernel: variant %d on a Gaussian-family model: %w", variant, ErrInvalidKernelVariant)
		}
		k, err := Gaussian(x, model.XCtrl, model.Beta)
		if err != nil {
			return nil, err
		}
		var res mat.Dense
		res.Mul(k, model.C)
		return &res, nil
	}

	g, df, cf, err := DivCurlFree(x, model.XCtrl, model.Sigma, model.Eta)
	if err != nil {
		return nil, err
	}
	var k *mat.Dense
	switch variant {
	case Full:
		k = g
	case DivFree:
		k = df
	case CurlFree:
		k = cf
	default:
		return nil, fmt.Errorf("kernel: unknown variant %d: %w", variant, ErrInvalidKernelVariant)
	}

	// The block kernel multiplies the coefficients flattened control-major,
	// matching its column layout.
	nCtrl, _ := model.C.Dims()
	cvec := mat.NewVecDense(nCtrl*d, nil)
	for c := 0; c < nCtrl; c++ {
		for a := 0; a < d; a++ {
			cvec.SetVec(c*d+a, model.C.At(c, a))
		}
	}
	flat := mat.NewVecDense(n*d, nil)
	flat.MulVec(k, cvec)

	res := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for a := 0; a < d; a++ {
			res.Set(i, a, flat.AtVec(i*d+a))
		}
	}
	return res, nil
}

// EvaluateAt computes the field at a single point.
func EvaluateAt(x []float64, model *Model, variant Variant) ([]float64, error) {
	v, err := Evaluate(mat.NewDense(1, len(x), x), model, variant)
	if err != nil {
		return nil, err
	}
	return v.RawRowView(0), nil
}

// EvaluateDim computes one output component of the field at the rows of x,
// the kernel matrix times a single coefficient column. Only the Gaussian
// family supports component slicing.
func EvaluateDim(x *mat.Dense, model *Model, dim int) ([]float64, error) {
	if model.Family != FamilyGaussian {
		return nil, fmt.Errorf("kernel: component slicing requires the Gaussian family: %w", ErrInvalidKernelVariant)
	}
	d := model.Dim()
	if dim < 0 || dim >= d {
		return nil, fmt.Errorf("kernel: component %d of a %d-dimensional field: %w", dim, d, ErrDimension)
	}
	k, err := Gaussian(x, model.XCtrl, model.Beta)
	if err != nil {
		return nil, err
	}
	n, _ := x.Dims()
	nCtrl, _ := model.C.Dims()
	res := make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < nCtrl; j++ {
			s += k.At(i, j) * model.C.At(j, dim)
		}
		res[i] = s
	}
	return res, nil
}

// FieldFunc returns the reconstructed field as a closure over the model,
// the form consumed by numerical differentiation, space transforms and
// trajectory integration. The variant is validated once up front.
func FieldFunc(model *Model, variant Variant) (func(*mat.Dense) *mat.Dense, error) {
	if model.Family == FamilyGaussian && variant != Full {
		return nil, fmt.Errorf("kernel: variant %d on a Gaussian-family model: %w", variant, ErrInvalidKernelVariant)
	}
	if variant != Full && variant != DivFree && variant != CurlFree {
		return nil, fmt.Errorf("kernel: unknown variant %d: %w", variant, ErrInvalidKernelVariant)
	}
	return func(x *mat.Dense) *mat.Dense {
		v, err := Evaluate(x, model, variant)
		if err != nil {
			panic(err)
		}
		return v
	}, nil
}
