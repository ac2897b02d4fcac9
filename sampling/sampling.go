// Package sampling selects cell subsets that bound the compute cost of the
// differential operators on large datasets: uniformly at random, weighted
// by velocity magnitude, or through a topology-representing network.
package sampling

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Method selects a cell-subset strategy.
type Method int

const (
	// All keeps every cell.
	All Method = iota
	// Random draws a uniform subset without replacement.
	Random
	// Velocity draws a subset weighted by velocity magnitude,
	// without replacement.
	Velocity
	// TRN places a topology-representing network over the coordinates and
	// keeps the cells nearest its units.
	TRN
)

var (
	// ErrSampleSize reports a requested subset larger than the population.
	ErrSampleSize = errors.New("sampling: sample size exceeds population")

	// ErrUnknownMethod reports an unrecognized sampling method.
	ErrUnknownMethod = errors.New("sampling: unknown method")
)

// RandomSample returns size distinct indices from [0, n).
func RandomSample(n, size int, src rand.Source) ([]int, error) {
	if size > n {
		return nil, fmt.Errorf("sampling: %d of %d cells: %w", size, n, ErrSampleSize)
	}
	return rand.New(src).Perm(n)[:size], nil
}

// VelocitySample returns size distinct row indices of v drawn without
// replacement with probability proportional to each row's norm.
func VelocitySample(v *mat.Dense, size int, src rand.Source) ([]int, error) {
	n, _ := v.Dims()
	if size > n {
		return nil, fmt.Errorf("sampling: %d of %d cells: %w", size, n, ErrSampleSize)
	}

	weights := make([]float64, n)
	var total float64
	for i := 0; i < n; i++ {
		weights[i] = floats.Norm(v.RawRowView(i), 2)
		total += weights[i]
	}
	if total == 0 {
		return nil, fmt.Errorf("sampling: all velocities have zero norm")
	}

	w := sampleuv.NewWeighted(weights, src)
	res := make([]int, size)
	for i := range res {
		idx, ok := w.Take()
		if !ok {
			return nil, fmt.Errorf("sampling: weighted sampler exhausted after %d draws", i)
		}
		res[i] = idx
	}
	return res, nil
}

// Sample dispatches to the requested strategy. x carries the coordinates
// (used by TRN), v the velocities (used by Velocity).
func Sample(method Method, x, v *mat.Dense, size int, src rand.Source) ([]int, error) {
	switch method {
	case All:
		n, _ := x.Dims()
		res := make([]int, n)
		for i := range res {
			res[i] = i
		}
		return res, nil
	case Random:
		n, _ := x.Dims()
		return RandomSample(n, size, src)
	case Velocity:
		return VelocitySample(v, size, src)
	case TRN:
		return TRNSample(x, size, src, nil)
	default:
		return nil, fmt.Errorf("sampling: method %d: %w", method, ErrUnknownMethod)
	}
}
