// Package ode integrates ordinary differential equations with explicit
// Runge-Kutta methods, see
// https://en.wikipedia.org/wiki/Runge–Kutta_methods. Cell-fate
// trajectories drive it with an autonomous velocity field through the
// FieldSystem adapter.
package ode

import (
	"errors"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// DifferentiableSystem yields the state derivative at a time.
type DifferentiableSystem interface {
	Derivative(t float64, state mat.Vector) mat.Vector
}

// butcherTableau describes the approximate solution, see
// https://en.wikipedia.org/wiki/Runge–Kutta_methods.
type butcherTableau struct {
	stages           int
	weights          [][]float64
	nodes            []float64
	rungeKuttaMatrix [][]float64
}

// RungeKutta holds the butcherTableau which describes the Runge-Kutta
// method.
type RungeKutta struct {
	Description butcherTableau
}

// Compute advances value from t = from to t = to in one step, in
// place. The returned vector is the embedded local error estimate,
// zero for tableaus without one.
func (rk RungeKutta) Compute(from, to float64, value *mat.VecDense, system DifferentiableSystem) mat.Vector {
	m := value.Len()
	// The precomputed derivative points
	K := make([]mat.Vector, rk.Description.stages)
	// Step length
	h := to - from

	var tempV mat.VecDense
	for index := range K {
		tempV.CloneFromVec(value)
		// Combine previously computed derivative points according to
		// the Butcher tableau.
		for index2, a := range rk.Description.rungeKuttaMatrix[index] {
			tempV.AddScaledVec(&tempV, h*a, K[index2])
		}
		K[index] = system.Derivative(from+h*rk.Description.nodes[index], &tempV)
	}

	errVec := mat.NewVecDense(m, nil)
	tempV.CloneFromVec(value)
	// Sum up the contributions with their weights.
	for index, k := range K {
		tempV.AddScaledVec(&tempV, h*rk.Description.weights[0][index], k)
		if len(rk.Description.weights) == 2 {
			errVec.AddScaledVec(errVec, h*(rk.Description.weights[1][index]-rk.Description.weights[0][index]), k)
		}
	}
	value.CopyVec(&tempV)
	return errVec
}

// ComputeBatch advances every row of states over the same interval,
// one goroutine per row. Rows are independent states, so no
// synchronization beyond completion is needed.
func (rk RungeKutta) ComputeBatch(from, to float64, states *mat.Dense, system DifferentiableSystem) {
	n, d := states.Dims()

	var wg sync.WaitGroup
	wg.Add(n)
	for row := 0; row < n; row++ {
		// the vector aliases the row, so the step writes straight back
		v := mat.NewVecDense(d, states.RawRowView(row))
		go rk.computeRow(from, to, v, system, &wg)
	}
	wg.Wait()
}

func (rk RungeKutta) computeRow(from, to float64, value *mat.VecDense, system DifferentiableSystem, wg *sync.WaitGroup) {
	defer wg.Done()
	rk.Compute(from, to, value, system)
}

// AdaptiveCompute advances value from t = from forward to t = to,
// halving the step whenever the local error estimate exceeds tol, so
// the tableau needs embedded error weights. It fails after too many
// rejected steps.
func (rk RungeKutta) AdaptiveCompute(from, to, tol float64, value *mat.VecDense, system DifferentiableSystem) error {
	const maxNumberOfIterations = 10000

	var (
		currentError float64
		count        int
	)
	tnow := from

	m := value.Len()
	tmpState1 := mat.NewVecDense(m, nil)
	tmpState2 := mat.NewVecDense(m, nil)
	tmpState1.CloneFromVec(value)

	for tnow < to {
		tnext := to
		for {
			tmpState2.CopyVec(tmpState1)
			currentErrorVector := rk.Compute(tnow, tnext, tmpState2, system)
			currentError = 0.
			for index := 0; index < m; index++ {
				currentError += math.Abs(currentErrorVector.AtVec(index))
			}
			if currentError < tol {
				break
			}
			// Halve the integration interval and try again
			tnext = (tnext-tnow)/2. + tnow

			count++
			if count >= maxNumberOfIterations {
				return errors.New("ode: adaptive Runge-Kutta does not converge")
			}
		}
		tmpState1.CopyVec(tmpState2)
		tnow = tnext
	}
	value.CopyVec(tmpState1)
	return nil
}

// NewRK4 returns a fourth order Runge-Kutta object.
func NewRK4() *RungeKutta {
	var temp butcherTableau
	temp.stages = 4
	temp.nodes = []float64{0, 1. / 2., 1. / 2., 1}
	temp.weights = [][]float64{{1. / 6., 1. / 3., 1. / 3., 1. / 6.}}
	temp.rungeKuttaMatrix = [][]float64{
		nil,
		{1. / 2.},
		{0, 1. / 2.},
		{0, 0, 1.},
	}
	return &RungeKutta{temp}
}

// NewEulerMethod returns a Runge-Kutta that does the Euler method.
func NewEulerMethod() *RungeKutta {
	var temp butcherTableau
	temp.stages = 1
	temp.nodes = []float64{0}
	temp.weights = [][]float64{{1}}
	temp.rungeKuttaMatrix = [][]float64{nil}
	return &RungeKutta{temp}
}

// NewFehlberg45 implements
// https://en.wikipedia.org/wiki/Runge%E2%80%93Kutta%E2%80%93Fehlberg_method
// with an embedded fourth order error estimate.
func NewFehlberg45() *RungeKutta {
	var temp butcherTableau
	temp.stages = 6
	temp.nodes = []float64{0, 1. / 4., 3. / 8., 12. / 13., 1., 1. / 2.}
	temp.weights = [][]float64{
		{16. / 135., 0, 6656. / 12825., 28561. / 56430., -9. / 50., 2. / 55.},
		{25. / 216., 0, 1408. / 2565., 2197. / 4104., -1. / 5., 0},
	}
	temp.rungeKuttaMatrix = [][]float64{
		nil,
		{1. / 4.},
		{3. / 32., 9. / 32.},
		{1932. / 2197., -7200. / 2197., 7296. / 2197.},
		{439. / 216., -8., 3680. / 513., -845. / 4104.},
		{-8. / 27., 2, -3544. / 2565., 1859. / 4104., -11. / 40.},
	}
	return &RungeKutta{temp}
}
