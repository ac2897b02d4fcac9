package kernel

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// EstimateBandwidth returns a Gaussian bandwidth beta from the distribution
// of squared distances among the rows of x: beta = 1/(2*q) where q is the
// requested quantile (0.5 gives the median heuristic). Needs at least two
// distinct rows.
func EstimateBandwidth(x *mat.Dense, quantile float64) (float64, error) {
	n, _ := x.Dims()
	if n < 2 {
		return 0, fmt.Errorf("kernel: bandwidth estimate needs at least 2 points, got %d: %w", n, ErrDimension)
	}
	if quantile <= 0 || quantile > 1 {
		return 0, fmt.Errorf("kernel: quantile %v outside (0,1]", quantile)
	}

	sq := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		xi := x.RawRowView(i)
		for j := i + 1; j < n; j++ {
			xj := x.RawRowView(j)
			var s float64
			for a := range xi {
				diff := xi[a] - xj[a]
				s += diff * diff
			}
			sq = append(sq, s)
		}
	}
	sort.Float64s(sq)
	q := stat.Quantile(quantile, stat.Empirical, sq, nil)
	if q <= 0 {
		return 0, fmt.Errorf("kernel: all points coincide, bandwidth undefined")
	}
	return 1 / (2 * q), nil
}
