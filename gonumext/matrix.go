// Package gonumext collects small dense-matrix helpers missing from gonum.
package gonumext

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Ones returns a (m by n) matrix filled with ones
func Ones(m, n int) *mat.Dense {
	return Full(m, n, 1.)
}

// Full returns a (m by n) matrix filled with value
func Full(m, n int, value float64) *mat.Dense {
	data := make([]float64, m*n)
	for index := range data {
		data[index] = value
	}
	return mat.NewDense(m, n, data)
}

// Eye returns the (n by n) identity matrix
func Eye(n int) *mat.Dense {
	res := mat.NewDense(n, n, nil)
	for index := 0; index < n; index++ {
		res.Set(index, index, 1)
	}
	return res
}

// NaNOrInf checks if there are any NaN or Inf entries in matrix
func NaNOrInf(matrix mat.Matrix) bool {
	m, n := matrix.Dims()
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			if math.IsNaN(matrix.At(row, col)) || math.IsInf(matrix.At(row, col), 0) {
				return true
			}
		}
	}
	return false
}

// PairwiseSquaredDistances returns the (n by m) matrix of squared euclidean
// distances between the rows of x (n by d) and the rows of y (m by d).
func PairwiseSquaredDistances(x, y *mat.Dense) *mat.Dense {
	n, d := x.Dims()
	m, _ := y.Dims()
	res := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		xi := x.RawRowView(i)
		for j := 0; j < m; j++ {
			yj := y.RawRowView(j)
			var s float64
			for k := 0; k < d; k++ {
				diff := xi[k] - yj[k]
				s += diff * diff
			}
			res.Set(i, j, s)
		}
	}
	return res
}

// PairwiseDistances returns the (n by m) matrix of euclidean distances
// between the rows of x (n by d) and the rows of y (m by d).
func PairwiseDistances(x, y *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	m, _ := y.Dims()
	res := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		xi := x.RawRowView(i)
		for j := 0; j < m; j++ {
			res.Set(i, j, floats.Distance(xi, y.RawRowView(j), 2))
		}
	}
	return res
}

// MinPositive returns the smallest strictly positive entry of matrix,
// or +Inf when no such entry exists.
func MinPositive(matrix mat.Matrix) float64 {
	m, n := matrix.Dims()
	res := math.Inf(1)
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			if v := matrix.At(row, col); v > 0 && v < res {
				res = v
			}
		}
	}
	return res
}

// ArgMin returns the index of the first minimal entry of values.
// It returns -1 for an empty slice.
func ArgMin(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for index := 1; index < len(values); index++ {
		if values[index] < values[best] {
			best = index
		}
	}
	return best
}
