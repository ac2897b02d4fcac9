package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TRNOptions tunes the neural-gas adaptation behind TRNSample.
type TRNOptions struct {
	// Iterations is the number of adaptation steps; 200 per unit when zero.
	Iterations int
	// EpsInit and EpsFinal bound the exponentially decaying learning rate.
	EpsInit  float64
	EpsFinal float64
	// LambdaInit and LambdaFinal bound the decaying neighborhood range.
	LambdaInit  float64
	LambdaFinal float64
}

func defaultTRNOptions(size int) TRNOptions {
	return TRNOptions{
		Iterations:  200 * size,
		EpsInit:     0.3,
		EpsFinal:    0.05,
		LambdaInit:  0.2 * float64(size),
		LambdaFinal: 0.01,
	}
}

// TRNSample fits a topology-representing network of size units to the rows
// of x by neural-gas adaptation and returns, per unit, the index of the
// nearest still-unclaimed cell. The subset covers the manifold rather than
// the density, which keeps sparse branches represented.
func TRNSample(x *mat.Dense, size int, src rand.Source, opts *TRNOptions) ([]int, error) {
	n, d := x.Dims()
	if size > n {
		return nil, fmt.Errorf("sampling: %d of %d cells: %w", size, n, ErrSampleSize)
	}
	o := defaultTRNOptions(size)
	if opts != nil {
		o = *opts
		if o.Iterations <= 0 {
			o.Iterations = 200 * size
		}
	}
	rng := rand.New(src)

	// Units start on distinct randomly drawn cells.
	w := mat.NewDense(size, d, nil)
	for u, c := range rng.Perm(n)[:size] {
		w.SetRow(u, x.RawRowView(c))
	}

	ranks := make([]int, size)
	dists := make([]float64, size)
	tmax := float64(o.Iterations)
	for t := 0; t < o.Iterations; t++ {
		sample := x.RawRowView(rng.IntN(n))

		for u := 0; u < size; u++ {
			dists[u] = sqDist(w.RawRowView(u), sample)
			ranks[u] = u
		}
		sort.Slice(ranks, func(i, j int) bool { return dists[ranks[i]] < dists[ranks[j]] })

		frac := float64(t) / tmax
		lambda := o.LambdaInit * math.Pow(o.LambdaFinal/o.LambdaInit, frac)
		eps := o.EpsInit * math.Pow(o.EpsFinal/o.EpsInit, frac)
		for k, u := range ranks {
			step := eps * math.Exp(-float64(k)/lambda)
			row := w.RawRowView(u)
			for a := 0; a < d; a++ {
				row[a] += step * (sample[a] - row[a])
			}
		}
	}

	// Map each unit onto its nearest distinct cell.
	taken := make(map[int]bool, size)
	res := make([]int, size)
	cellDists := make([]float64, n)
	order := make([]int, n)
	for u := 0; u < size; u++ {
		wu := w.RawRowView(u)
		for i := 0; i < n; i++ {
			cellDists[i] = sqDist(x.RawRowView(i), wu)
			order[i] = i
		}
		sort.Slice(order, func(i, j int) bool { return cellDists[order[i]] < cellDists[order[j]] })
		for _, i := range order {
			if !taken[i] {
				taken[i] = true
				res[u] = i
				break
			}
		}
	}
	return res, nil
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		diff := a[i] - b[i]
		s += diff * diff
	}
	return s
}
