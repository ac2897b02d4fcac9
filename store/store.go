// Package store holds the shared per-cell data container the analysis
// components read and write. It is a key-value contract over per-cell
// scalar columns, per-cell matrices, per-gene matrices and unstructured
// records. Writes are last-writer-wins; callers serialize their own
// access to a given key.
package store

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrKeyNotFound reports a read of an absent key.
var ErrKeyNotFound = errors.New("store: key not found")

// ErrLength reports a write whose length does not match the cell count.
var ErrLength = errors.New("store: length mismatch")

// Well-known keys of the contract.
const (
	KeyPseudotime      = "Pseudotime"
	KeyCellPseudoState = "cell_pseudo_state"
	KeyCellOrder       = "cell_order"
	KeyPCs             = "PCs"
	KeyDynamicsMask    = "use_for_dynamics"

	// KeyVelocityLayer holds the gene-space spliced velocities, the base
	// the acceleration layer is written over.
	KeyVelocityLayer = "velocity_S"
	// KeyAccelerationLayer holds the gene-space accelerations.
	KeyAccelerationLayer = "acceleration"
)

// EmbeddingKey returns the obsm key of a basis embedding.
func EmbeddingKey(basis string) string { return "X_" + basis }

// VelocityKey returns the obsm key of the per-cell raw velocities.
func VelocityKey(basis string) string { return "velocity_" + basis }

// VecFldKey returns the uns key of a fitted vector-field record.
func VecFldKey(basis string) string { return "VecFld_" + basis }

// JacobianKey returns the uns key of a cached Jacobian record.
func JacobianKey(basis string) string { return "jacobian_" + basis }

// SpeedKey returns the obs key of the per-cell speed column.
func SpeedKey(basis string) string { return "speed_" + basis }

// CurlKey returns the obs key of the per-cell curl column.
func CurlKey(basis string) string { return "curl_" + basis }

// DivergenceKey returns the obs key of the per-cell divergence column.
func DivergenceKey(basis string) string { return "divergence_" + basis }

// AccelerationKey returns the obs/obsm key of the acceleration results.
func AccelerationKey(basis string) string { return "acceleration_" + basis }

// CurvatureKey returns the obs key of the per-cell curvature column.
func CurvatureKey(basis string) string { return "curvature_" + basis }

// TorsionKey returns the obs key of the per-cell torsion column.
func TorsionKey(basis string) string { return "torsion_" + basis }

// FateKey returns the uns key of a persisted trajectory record.
func FateKey(basis string) string { return "fate_" + basis }

// Store is the shared data container.
type Store struct {
	nCells int

	obs    map[string][]float64
	obsInt map[string][]int
	obsm   map[string]*mat.Dense
	varm   map[string]*mat.Dense
	layers map[string]*mat.Dense
	vars   map[string][]bool
	uns    map[string]any
}

// New returns an empty container for nCells cells.
func New(nCells int) *Store {
	return &Store{
		nCells: nCells,
		obs:    make(map[string][]float64),
		obsInt: make(map[string][]int),
		obsm:   make(map[string]*mat.Dense),
		varm:   make(map[string]*mat.Dense),
		layers: make(map[string]*mat.Dense),
		vars:   make(map[string][]bool),
		uns:    make(map[string]any),
	}
}

// NCells returns the number of cells the container was created for.
func (s *Store) NCells() int { return s.nCells }

// SetObs stores a per-cell scalar column.
func (s *Store) SetObs(key string, values []float64) error {
	if len(values) != s.nCells {
		return fmt.Errorf("store: obs %q has %d values for %d cells: %w", key, len(values), s.nCells, ErrLength)
	}
	s.obs[key] = values
	return nil
}

// Obs returns a per-cell scalar column.
func (s *Store) Obs(key string) ([]float64, error) {
	values, ok := s.obs[key]
	if !ok {
		return nil, fmt.Errorf("store: obs %q: %w", key, ErrKeyNotFound)
	}
	return values, nil
}

// HasObs reports whether a per-cell scalar column exists.
func (s *Store) HasObs(key string) bool {
	_, ok := s.obs[key]
	return ok
}

// SetObsInt stores a per-cell discrete label column.
func (s *Store) SetObsInt(key string, values []int) error {
	if len(values) != s.nCells {
		return fmt.Errorf("store: obs %q has %d values for %d cells: %w", key, len(values), s.nCells, ErrLength)
	}
	s.obsInt[key] = values
	return nil
}

// ObsInt returns a per-cell discrete label column.
func (s *Store) ObsInt(key string) ([]int, error) {
	values, ok := s.obsInt[key]
	if !ok {
		return nil, fmt.Errorf("store: obs %q: %w", key, ErrKeyNotFound)
	}
	return values, nil
}

// HasObsInt reports whether a per-cell discrete label column exists.
func (s *Store) HasObsInt(key string) bool {
	_, ok := s.obsInt[key]
	return ok
}

// SetObsm stores a per-cell matrix (one row per cell).
func (s *Store) SetObsm(key string, m *mat.Dense) error {
	rows, _ := m.Dims()
	if rows != s.nCells {
		return fmt.Errorf("store: obsm %q has %d rows for %d cells: %w", key, rows, s.nCells, ErrLength)
	}
	s.obsm[key] = m
	return nil
}

// Obsm returns a per-cell matrix.
func (s *Store) Obsm(key string) (*mat.Dense, error) {
	m, ok := s.obsm[key]
	if !ok {
		return nil, fmt.Errorf("store: obsm %q: %w", key, ErrKeyNotFound)
	}
	return m, nil
}

// SetLayer stores a cells-by-genes matrix, e.g. gene-space
// accelerations.
func (s *Store) SetLayer(key string, m *mat.Dense) error {
	rows, _ := m.Dims()
	if rows != s.nCells {
		return fmt.Errorf("store: layer %q has %d rows for %d cells: %w", key, rows, s.nCells, ErrLength)
	}
	s.layers[key] = m
	return nil
}

// Layer returns a cells-by-genes matrix.
func (s *Store) Layer(key string) (*mat.Dense, error) {
	m, ok := s.layers[key]
	if !ok {
		return nil, fmt.Errorf("store: layer %q: %w", key, ErrKeyNotFound)
	}
	return m, nil
}

// HasLayer reports whether a layer exists.
func (s *Store) HasLayer(key string) bool {
	_, ok := s.layers[key]
	return ok
}

// SetVarm stores a per-gene matrix, e.g. the PCA loading matrix.
func (s *Store) SetVarm(key string, m *mat.Dense) {
	s.varm[key] = m
}

// Varm returns a per-gene matrix.
func (s *Store) Varm(key string) (*mat.Dense, error) {
	m, ok := s.varm[key]
	if !ok {
		return nil, fmt.Errorf("store: varm %q: %w", key, ErrKeyNotFound)
	}
	return m, nil
}

// SetVarMask stores a per-gene boolean mask, e.g. the dynamics gene set.
func (s *Store) SetVarMask(key string, mask []bool) {
	s.vars[key] = mask
}

// VarMask returns a per-gene boolean mask.
func (s *Store) VarMask(key string) ([]bool, error) {
	mask, ok := s.vars[key]
	if !ok {
		return nil, fmt.Errorf("store: var %q: %w", key, ErrKeyNotFound)
	}
	return mask, nil
}

// SetUns stores an unstructured record.
func (s *Store) SetUns(key string, value any) {
	s.uns[key] = value
}

// Uns returns an unstructured record.
func (s *Store) Uns(key string) (any, error) {
	value, ok := s.uns[key]
	if !ok {
		return nil, fmt.Errorf("store: uns %q: %w", key, ErrKeyNotFound)
	}
	return value, nil
}

// HasUns reports whether an unstructured record exists.
func (s *Store) HasUns(key string) bool {
	_, ok := s.uns[key]
	return ok
}

// DeleteUns removes an unstructured record if present.
func (s *Store) DeleteUns(key string) {
	delete(s.uns, key)
}
