// Package dynamo analyzes single-cell expression dynamics. A fitted
// vector field turns discrete per-cell velocity estimates into a
// continuous function of the expression state; from it the package
// derives speed, Jacobian, divergence, curl, acceleration, curvature
// and torsion, orders cells along a learned principal tree and
// integrates field trajectories. A Session binds these operations to a
// shared store of per-cell results.
//
// The numerics live in the subpackages: kernel fits and evaluates the
// field, veccalc differentiates it, transform maps results between the
// embedding and gene space, pseudotime orders cells and ode integrates
// trajectories. The session adds the store contract, sampling,
// caching and run bookkeeping on top.
package dynamo

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/YanshiHu/dynamo-release/kernel"
	"github.com/YanshiHu/dynamo-release/logging"
	"github.com/YanshiHu/dynamo-release/store"
	"github.com/YanshiHu/dynamo-release/veccalc"
)

// ErrNoVectorField reports a field operation before any vector field
// was fitted and stored for the basis.
var ErrNoVectorField = errors.New("dynamo: no fitted vector field")

// ErrGeneSelection reports regulator or effector rows outside the
// loading matrix.
var ErrGeneSelection = errors.New("dynamo: gene selection outside the dynamics genes")

// ErrUnknownMethod reports a derivative method outside the enum.
var ErrUnknownMethod = errors.New("dynamo: unknown derivative method")

// Method selects how field derivatives are evaluated.
type Method int

const (
	// Analytical uses the closed form of the fitted kernel model.
	Analytical Method = iota
	// Numerical uses central differences over the field function.
	Numerical
)

// FieldRecord is the fitted vector-field artifact a session persists
// per basis: the kernel model together with the coordinates and
// velocities it was fitted on.
type FieldRecord struct {
	Model *kernel.Model
	// X holds the training coordinates, one cell per row.
	X *mat.Dense
	// V holds the velocity estimates aligned with X.
	V *mat.Dense
}

// Session runs the analysis pipeline over one store. Intermediates
// stay in return values; only the named store keys are written.
type Session struct {
	store *store.Store
	cfg   *Config
	log   *logging.Logger
	src   rand.Source
}

// NewSession binds a store to a configuration. A nil config uses the
// defaults, a nil logger discards diagnostics.
func NewSession(st *store.Store, cfg *Config, log *logging.Logger) *Session {
	if cfg == nil {
		cfg = Default()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Session{
		store: st,
		cfg:   cfg,
		log:   log,
		src:   rand.NewPCG(rand.Uint64(), rand.Uint64()),
	}
}

// Store returns the bound store.
func (s *Session) Store() *store.Store { return s.store }

// SetRand replaces the sampling source, fixing it for reproducible
// runs.
func (s *Session) SetRand(src rand.Source) { s.src = src }

func (s *Session) basisOrDefault(basis string) string {
	if basis == "" {
		return s.cfg.Basis
	}
	return basis
}

// StoreField persists a fitted vector field for the basis after
// checking the record shapes line up.
func (s *Session) StoreField(basis string, rec *FieldRecord) error {
	basis = s.basisOrDefault(basis)
	if rec == nil || rec.Model == nil || rec.X == nil || rec.V == nil {
		return fmt.Errorf("dynamo: incomplete field record for basis %q", basis)
	}
	xr, xc := rec.X.Dims()
	vr, vc := rec.V.Dims()
	if vr != xr || vc != xc {
		return fmt.Errorf("dynamo: velocities %dx%d against coordinates %dx%d", vr, vc, xr, xc)
	}
	if xc != rec.Model.Dim() {
		return fmt.Errorf("dynamo: %d-dimensional coordinates for a %d-dimensional model", xc, rec.Model.Dim())
	}
	s.store.SetUns(store.VecFldKey(basis), rec)
	s.log.Debug("stored vector field",
		zap.String("basis", basis), zap.Int("cells", xr), zap.Int("dim", xc))
	return nil
}

// Field returns the fitted vector field stored for the basis.
func (s *Session) Field(basis string) (*FieldRecord, error) {
	basis = s.basisOrDefault(basis)
	raw, err := s.store.Uns(store.VecFldKey(basis))
	if err != nil {
		return nil, fmt.Errorf("basis %q: %w", basis, ErrNoVectorField)
	}
	rec, ok := raw.(*FieldRecord)
	if !ok {
		return nil, fmt.Errorf("basis %q holds a foreign record: %w", basis, ErrNoVectorField)
	}
	return rec, nil
}

// jacobianFunc builds the derivative evaluator for a method.
func (s *Session) jacobianFunc(rec *FieldRecord, method Method, workers int) (veccalc.JacobianFunc, error) {
	switch method {
	case Analytical:
		return veccalc.AnalyticalJacobianFunc(rec.Model, workers)
	case Numerical:
		vf, err := kernel.FieldFunc(rec.Model, kernel.Full)
		if err != nil {
			return nil, err
		}
		return veccalc.NumericalJacobian(vf, veccalc.RowConvention), nil
	default:
		return nil, fmt.Errorf("method %d: %w", method, ErrUnknownMethod)
	}
}

// tensorFunc wraps an evaluated tensor as a JacobianFunc so cached
// results flow through the same operator paths as fresh ones.
func tensorFunc(jt veccalc.JacobianTensor) veccalc.JacobianFunc {
	return func(*mat.Dense) (veccalc.JacobianTensor, error) { return jt, nil }
}

// pickRows gathers matrix rows in the given order.
func pickRows(m *mat.Dense, rows []int) *mat.Dense {
	_, d := m.Dims()
	out := mat.NewDense(len(rows), d, nil)
	for i, r := range rows {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}
