package veccalc

import "errors"

var (
	// ErrDimension reports an operator applied outside its supported
	// embedding dimensionality.
	ErrDimension = errors.New("veccalc: unsupported dimension")

	// ErrDegenerateGeometry reports a zero-norm velocity or cross product
	// where a curvature or torsion denominator needs one. The numeric
	// result stays NaN; the error is the explicit diagnostic.
	ErrDegenerateGeometry = errors.New("veccalc: degenerate geometry")
)
