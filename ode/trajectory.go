package ode

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// VectorField is an autonomous velocity field x' = f(x).
type VectorField func(x []float64) []float64

// FieldSystem adapts a VectorField to the DifferentiableSystem
// interface.
type FieldSystem struct {
	field VectorField
}

// NewFieldSystem wraps a velocity field.
func NewFieldSystem(f VectorField) *FieldSystem {
	return &FieldSystem{field: f}
}

// Derivative evaluates the field at state. The field is autonomous so
// the time argument is unused.
func (s *FieldSystem) Derivative(_ float64, state mat.Vector) mat.Vector {
	x := make([]float64, state.Len())
	for i := range x {
		x[i] = state.AtVec(i)
	}
	return mat.NewVecDense(len(x), s.field(x))
}

// Trajectory integrates x' = f(x) from x0 across steps uniform steps
// between t0 and t1, returning the step times and the state at each of
// them, x0 first. A t1 before t0 integrates backward.
func Trajectory(rk *RungeKutta, f VectorField, x0 []float64, t0, t1 float64, steps int) ([]float64, *mat.Dense, error) {
	if steps < 1 {
		return nil, nil, fmt.Errorf("ode: need at least one step, got %d", steps)
	}
	if len(x0) == 0 {
		return nil, nil, errors.New("ode: empty initial state")
	}

	d := len(x0)
	sys := NewFieldSystem(f)
	times := make([]float64, steps+1)
	states := mat.NewDense(steps+1, d, nil)
	times[0] = t0
	states.SetRow(0, x0)

	v := mat.NewVecDense(d, append([]float64(nil), x0...))
	h := (t1 - t0) / float64(steps)
	for s := 1; s <= steps; s++ {
		rk.Compute(t0+float64(s-1)*h, t0+float64(s)*h, v, sys)
		times[s] = t0 + float64(s)*h
		states.SetRow(s, v.RawVector().Data)
	}
	return times, states, nil
}
