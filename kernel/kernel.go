// Package kernel builds the reproducing-kernel matrices behind the
// reconstructed vector field and evaluates the field at arbitrary points.
// Two kernel families are supported: the scalar Gaussian kernel
// K[i,j] = exp(-beta*|x_i-y_j|^2) and a block kernel combining a
// divergence-free and a curl-free term, see
// https://en.wikipedia.org/wiki/Reproducing_kernel_Hilbert_space.
package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YanshiHu/dynamo-release/gonumext"
)

// Gaussian returns the (n by m) kernel matrix between the rows of
// x (n by d) and the rows of y (m by d), K[i,j] = exp(-beta*|x_i-y_j|^2).
func Gaussian(x, y *mat.Dense, beta float64) (*mat.Dense, error) {
	if err := checkPointDims(x, y); err != nil {
		return nil, err
	}
	k := gonumext.PairwiseSquaredDistances(x, y)
	k.Apply(func(_, _ int, v float64) float64 { return math.Exp(-beta * v) }, k)
	return k, nil
}

// GaussianWithDiff returns the Gaussian kernel matrix together with the
// pairwise-difference tensor: diff[i] is a (d by m) matrix whose column j
// equals x_i - y_j. The tensor feeds the analytical Jacobian, which needs
// the raw coordinate differences next to the kernel values.
func GaussianWithDiff(x, y *mat.Dense, beta float64) (*mat.Dense, []*mat.Dense, error) {
	if err := checkPointDims(x, y); err != nil {
		return nil, nil, err
	}
	n, d := x.Dims()
	m, _ := y.Dims()

	k := mat.NewDense(n, m, nil)
	diff := make([]*mat.Dense, n)
	for i := 0; i < n; i++ {
		xi := x.RawRowView(i)
		di := mat.NewDense(d, m, nil)
		for j := 0; j < m; j++ {
			yj := y.RawRowView(j)
			var s float64
			for a := 0; a < d; a++ {
				r := xi[a] - yj[a]
				di.Set(a, j, r)
				s += r * r
			}
			k.Set(i, j, math.Exp(-beta*s))
		}
		diff[i] = di
	}
	return k, diff, nil
}

// DivCurlFree returns the combined, divergence-free and curl-free block
// kernels between the rows of x (n by d) and the rows of y (m by d). Each
// point pair (q, c) occupies a (d by d) block; the full matrices are
// (n*d by m*d). With r = x_q - y_c and g = exp(-|r|^2/(2*sigma^2))/sigma^2:
//
//	df block = (1-eta) * g * (r*r'/sigma^2 + (d-1-|r|^2/sigma^2)*I)
//	cf block = eta * g * (I - r*r'/sigma^2)
//
// and the combined kernel is their sum.
func DivCurlFree(x, y *mat.Dense, sigma, eta float64) (g, df, cf *mat.Dense, err error) {
	if err := checkPointDims(x, y); err != nil {
		return nil, nil, nil, err
	}
	n, d := x.Dims()
	m, _ := y.Dims()
	s2 := sigma * sigma

	df = mat.NewDense(n*d, m*d, nil)
	cf = mat.NewDense(n*d, m*d, nil)
	r := make([]float64, d)
	for q := 0; q < n; q++ {
		xq := x.RawRowView(q)
		for c := 0; c < m; c++ {
			yc := y.RawRowView(c)
			var rsq float64
			for a := 0; a < d; a++ {
				r[a] = xq[a] - yc[a]
				rsq += r[a] * r[a]
			}
			gk := math.Exp(-rsq/(2*s2)) / s2
			dfDiag := gk * (float64(d) - 1 - rsq/s2)
			for a := 0; a < d; a++ {
				for b := 0; b < d; b++ {
					outer := gk * r[a] * r[b] / s2
					dfv := outer
					cfv := -outer
					if a == b {
						dfv += dfDiag
						cfv += gk
					}
					df.Set(q*d+a, c*d+b, (1-eta)*dfv)
					cf.Set(q*d+a, c*d+b, eta*cfv)
				}
			}
		}
	}
	g = mat.NewDense(n*d, m*d, nil)
	g.Add(df, cf)
	return g, df, cf, nil
}

func checkPointDims(x, y *mat.Dense) error {
	_, dx := x.Dims()
	_, dy := y.Dims()
	if dx != dy {
		return fmt.Errorf("kernel: query dimension %d against control dimension %d: %w", dx, dy, ErrDimension)
	}
	return nil
}
