package pseudotime

import "errors"

var (
	// ErrPrecedence reports a root-state request before any state labels
	// exist. Order cells once without a root state first.
	ErrPrecedence = errors.New("pseudotime: no state assignment yet")

	// ErrMissingPrerequisite reports root selection without a spanning
	// tree to take a diameter on.
	ErrMissingPrerequisite = errors.New("pseudotime: no spanning tree available")

	// ErrEmptyCandidateSet reports a requested root state that no cell
	// carries.
	ErrEmptyCandidateSet = errors.New("pseudotime: no cells carry the requested state")

	// ErrDimension reports mismatched input dimensions.
	ErrDimension = errors.New("pseudotime: dimension mismatch")
)
