package kernel

import "errors"

var (
	// ErrInvalidKernelVariant reports a kernel variant request the fitted
	// model's kernel family cannot serve.
	ErrInvalidKernelVariant = errors.New("kernel: variant not available for this kernel family")

	// ErrDimension reports mismatched matrix dimensions.
	ErrDimension = errors.New("kernel: dimension mismatch")
)
