package dynamo

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/YanshiHu/dynamo-release/kernel"
	"github.com/YanshiHu/dynamo-release/ode"
	"github.com/YanshiHu/dynamo-release/store"
)

// FateOptions configure one trajectory integration.
type FateOptions struct {
	// Variant selects the kernel part driving the integration, the
	// full field by default.
	Variant kernel.Variant
	// T0 and T1 bound the integration window; T1 before T0 integrates
	// backward.
	T0, T1 float64
	// Steps fixes the number of fixed-size steps, 100 when 0 or less.
	Steps int
}

// FateRecord is the persisted outcome of one trajectory run.
type FateRecord struct {
	RunID string
	X0    []float64
	Times []float64
	// Path holds one state row per time point, the start first.
	Path *mat.Dense
}

// Fate integrates the fitted field from x0 across the window with a
// classical fourth-order scheme and persists the trajectory for the
// basis.
func (s *Session) Fate(basis string, x0 []float64, opts FateOptions) (*FateRecord, error) {
	basis = s.basisOrDefault(basis)
	rec, err := s.Field(basis)
	if err != nil {
		return nil, err
	}
	if len(x0) != rec.Model.Dim() {
		return nil, fmt.Errorf("dynamo: %d-dimensional start for a %d-dimensional field", len(x0), rec.Model.Dim())
	}
	vf, err := kernel.FieldFunc(rec.Model, opts.Variant)
	if err != nil {
		return nil, err
	}

	steps := opts.Steps
	if steps <= 0 {
		steps = 100
	}
	f := func(x []float64) []float64 {
		return vf(mat.NewDense(1, len(x), x)).RawRowView(0)
	}
	times, path, err := ode.Trajectory(ode.NewRK4(), f, x0, opts.T0, opts.T1, steps)
	if err != nil {
		return nil, err
	}

	out := &FateRecord{RunID: uuid.NewString(), X0: x0, Times: times, Path: path}
	s.store.SetUns(store.FateKey(basis), out)
	s.log.Debug("integrated trajectory",
		zap.String("basis", basis), zap.String("run_id", out.RunID),
		zap.Float64("t0", opts.T0), zap.Float64("t1", opts.T1), zap.Int("steps", steps))
	return out, nil
}
