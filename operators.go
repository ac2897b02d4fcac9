package dynamo

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YanshiHu/dynamo-release/kernel"
	"github.com/YanshiHu/dynamo-release/sampling"
	"github.com/YanshiHu/dynamo-release/store"
	"github.com/YanshiHu/dynamo-release/transform"
	"github.com/YanshiHu/dynamo-release/veccalc"
)

// Speed writes the per-cell field magnitude for the basis and returns
// it. Numerical skips the model and reads the stored raw velocities
// instead.
func (s *Session) Speed(basis string, method Method) ([]float64, error) {
	basis = s.basisOrDefault(basis)

	var speed []float64
	switch method {
	case Analytical:
		rec, err := s.Field(basis)
		if err != nil {
			return nil, err
		}
		x, err := s.embedding(basis, rec)
		if err != nil {
			return nil, err
		}
		vf, err := kernel.FieldFunc(rec.Model, kernel.Full)
		if err != nil {
			return nil, err
		}
		speed = veccalc.Speed(vf, x)
	case Numerical:
		v, err := s.store.Obsm(store.VelocityKey(basis))
		if err != nil {
			return nil, err
		}
		n, _ := v.Dims()
		speed = make([]float64, n)
		for i := range speed {
			speed[i] = floats.Norm(v.RawRowView(i), 2)
		}
	default:
		return nil, fmt.Errorf("method %d: %w", method, ErrUnknownMethod)
	}

	if err := s.store.SetObs(store.SpeedKey(basis), speed); err != nil {
		return nil, err
	}
	return speed, nil
}

// JacobianOptions configure one Jacobian run.
type JacobianOptions struct {
	// Method selects the derivative evaluation, Analytical by default.
	Method Method
	// Sampling bounds the cells the Jacobian is evaluated at, All by
	// default. SampleSize 0 falls back to the configured size.
	Sampling   sampling.Method
	SampleSize int
	// Regulators and Effectors select loading rows for the gene-space
	// back-transform: regulators are the coordinates derivatives are
	// taken with respect to, effectors the responding outputs. Both
	// empty keeps the embedding-space tensor only.
	Regulators []int
	Effectors  []int
	// Workers 0 falls back to the configured count.
	Workers int
}

// JacobianRecord is the persisted outcome of one Jacobian run, cached
// under the basis for later divergence and curl reuse.
type JacobianRecord struct {
	RunID string
	// Raw holds one embedding-space Jacobian per entry of CellIdx.
	Raw veccalc.JacobianTensor
	// Transformed holds one effectors-by-regulators gene-space matrix
	// per cell, nil when no loadings were requested.
	Transformed veccalc.JacobianTensor
	// Elementwise holds the per-cell scalar of a single
	// regulator/effector pair, nil otherwise.
	Elementwise []float64
	Regulators  []int
	Effectors   []int
	// CellIdx names the cells Raw was evaluated at, in order.
	CellIdx []int
}

// Jacobian evaluates the field Jacobian at a cell subset, optionally
// back-transforms it to gene space through the loading rows, and
// caches the outcome for the basis.
func (s *Session) Jacobian(basis string, opts JacobianOptions) (*JacobianRecord, error) {
	basis = s.basisOrDefault(basis)
	rec, err := s.Field(basis)
	if err != nil {
		return nil, err
	}

	size := opts.SampleSize
	if size <= 0 {
		size = s.cfg.SampleSize
	}
	cells, err := sampling.Sample(opts.Sampling, rec.X, rec.V, size, s.src)
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = s.cfg.Workers
	}

	jac, err := s.jacobianFunc(rec, opts.Method, workers)
	if err != nil {
		return nil, err
	}
	xs := pickRows(rec.X, cells)
	raw, err := jac(xs)
	if err != nil {
		return nil, err
	}

	out := &JacobianRecord{
		RunID:      uuid.NewString(),
		Raw:        raw,
		Regulators: opts.Regulators,
		Effectors:  opts.Effectors,
		CellIdx:    cells,
	}

	switch {
	case len(opts.Regulators) == 0 && len(opts.Effectors) == 0:
	case len(opts.Regulators) == 0 || len(opts.Effectors) == 0:
		return nil, fmt.Errorf("regulators and effectors must be requested together: %w", ErrGeneSelection)
	default:
		q, err := s.loadings(rec.Model.Dim())
		if err != nil {
			return nil, err
		}
		qEff, err := pickLoadingRows(q, opts.Effectors)
		if err != nil {
			return nil, err
		}
		qReg, err := pickLoadingRows(q, opts.Regulators)
		if err != nil {
			return nil, err
		}
		if len(opts.Regulators) == 1 && len(opts.Effectors) == 1 {
			out.Elementwise, err = transform.ElementwiseJacobian(
				tensorFunc(raw), xs, qEff.RawRowView(0), qReg.RawRowView(0))
		} else {
			out.Transformed, err = transform.Jacobian(raw, qEff, qReg)
		}
		if err != nil {
			return nil, err
		}
	}

	s.store.SetUns(store.JacobianKey(basis), out)
	s.log.Debug("computed Jacobian",
		zap.String("basis", basis), zap.String("run_id", out.RunID),
		zap.Int("cells", len(cells)),
		zap.Int("regulators", len(opts.Regulators)), zap.Int("effectors", len(opts.Effectors)))
	return out, nil
}

// DivergenceOptions configure one divergence run.
type DivergenceOptions struct {
	Method Method
	// Cells names the cells directly; non-nil skips sampling.
	Cells []int
	// Sampling bounds the cells when Cells is nil, All by default;
	// SampleSize 0 falls back to the configured size.
	Sampling   sampling.Method
	SampleSize int
	// BatchSize bounds the rows differentiated at once, 0 falls back
	// to the configured size.
	BatchSize int
}

// Divergence writes the per-cell field divergence and returns the
// values together with the cells they belong to. Jacobians cached by
// a previous run are reused for exactly the cells they cover, matched
// by cell identity; the remainder is computed fresh. Cells outside the
// sample keep NaN in the column.
func (s *Session) Divergence(basis string, opts DivergenceOptions) ([]float64, []int, error) {
	basis = s.basisOrDefault(basis)
	rec, err := s.Field(basis)
	if err != nil {
		return nil, nil, err
	}
	n, _ := rec.X.Dims()

	cells := opts.Cells
	if cells == nil {
		size := opts.SampleSize
		if size <= 0 {
			size = s.cfg.SampleSize
		}
		cells, err = sampling.Sample(opts.Sampling, rec.X, rec.V, size, s.src)
		if err != nil {
			return nil, nil, err
		}
	} else {
		for _, c := range cells {
			if c < 0 || c >= n {
				return nil, nil, fmt.Errorf("dynamo: cell %d of %d", c, n)
			}
		}
	}

	div := make([]float64, len(cells))
	done := make([]bool, len(cells))
	if cached := s.cachedJacobian(basis); cached != nil {
		pos := make(map[int]int, len(cached.CellIdx))
		for p, c := range cached.CellIdx {
			pos[c] = p
		}
		var hitAt, hitPos []int
		for i, c := range cells {
			if p, ok := pos[c]; ok {
				hitAt = append(hitAt, i)
				hitPos = append(hitPos, p)
			}
		}
		for k, v := range veccalc.DivergenceFromJacobian(cached.Raw.Pick(hitPos)) {
			div[hitAt[k]] = v
			done[hitAt[k]] = true
		}
		if len(hitAt) > 0 {
			s.log.Debug("reused cached Jacobians",
				zap.String("basis", basis), zap.String("run_id", cached.RunID),
				zap.Int("cells", len(hitAt)))
		}
	}

	var rest []int
	for i := range cells {
		if !done[i] {
			rest = append(rest, i)
		}
	}
	if len(rest) > 0 {
		jac, err := s.jacobianFunc(rec, opts.Method, s.cfg.Workers)
		if err != nil {
			return nil, nil, err
		}
		restCells := make([]int, len(rest))
		for k, i := range rest {
			restCells[k] = cells[i]
		}
		batch := opts.BatchSize
		if batch <= 0 {
			batch = s.cfg.BatchSize
		}
		vals, err := veccalc.Divergence(jac, pickRows(rec.X, restCells), batch)
		if err != nil {
			return nil, nil, err
		}
		for k, i := range rest {
			div[i] = vals[k]
		}
	}

	col := make([]float64, s.store.NCells())
	if prev, err := s.store.Obs(store.DivergenceKey(basis)); err == nil {
		copy(col, prev)
	} else {
		for i := range col {
			col[i] = math.NaN()
		}
	}
	for i, c := range cells {
		col[c] = div[i]
	}
	if err := s.store.SetObs(store.DivergenceKey(basis), col); err != nil {
		return nil, nil, err
	}
	return div, cells, nil
}

// Curl writes the per-cell curl for a 2- or 3-dimensional basis and
// returns the scalars. In two dimensions the scalar is the signed
// rotation; in three the column holds the norms and the vectors go to
// obsm under the same key. A cached Jacobian run covering every cell
// is reused instead of fresh evaluation.
func (s *Session) Curl(basis string, method Method) ([]float64, error) {
	basis = s.basisOrDefault(basis)
	_, _, fresh, x, err := s.fieldParts(basis, method)
	if err != nil {
		return nil, err
	}
	n, _ := x.Dims()

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	jac := s.cachedOrFresh(basis, all, fresh)

	scalars, vectors, err := veccalc.ComputeCurl(jac, x)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetObs(store.CurlKey(basis), scalars); err != nil {
		return nil, err
	}
	if vectors != nil {
		if err := s.store.SetObsm(store.CurlKey(basis), vectors); err != nil {
			return nil, err
		}
	}
	return scalars, nil
}

// Acceleration writes the per-cell acceleration norms and vectors for
// the basis and returns the norms. On the pca basis the vectors are
// also projected back through the loadings into the gene-space layer,
// filling the dynamics-gene columns over a copy of the velocity layer.
func (s *Session) Acceleration(basis string, method Method) ([]float64, error) {
	basis = s.basisOrDefault(basis)
	rec, vf, jac, x, err := s.fieldParts(basis, method)
	if err != nil {
		return nil, err
	}

	norms, vectors, err := veccalc.ComputeAcceleration(vf, jac, x)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetObs(store.AccelerationKey(basis), norms); err != nil {
		return nil, err
	}
	if err := s.store.SetObsm(store.AccelerationKey(basis), vectors); err != nil {
		return nil, err
	}
	if basis == "pca" {
		if err := s.projectAcceleration(vectors, rec.Model.Dim()); err != nil {
			return nil, err
		}
	}
	return norms, nil
}

// Curvature writes the per-cell path curvature for a 2- or
// 3-dimensional basis and returns it. Degenerate zero-velocity points
// keep NaN and are reported through the returned error; the column is
// written either way.
func (s *Session) Curvature(basis string, method Method) ([]float64, error) {
	basis = s.basisOrDefault(basis)
	_, vf, jac, x, err := s.fieldParts(basis, method)
	if err != nil {
		return nil, err
	}
	vals, err := veccalc.ComputeCurvature(vf, jac, x)
	if vals == nil {
		return nil, err
	}
	if serr := s.store.SetObs(store.CurvatureKey(basis), vals); serr != nil {
		return nil, serr
	}
	if err != nil {
		s.log.Warn("degenerate geometry in curvature",
			zap.String("basis", basis), zap.Error(err))
	}
	return vals, err
}

// Torsion writes the per-cell path torsion for a 3-dimensional basis
// and returns it, with the same degenerate-point contract as
// Curvature.
func (s *Session) Torsion(basis string, method Method) ([]float64, error) {
	basis = s.basisOrDefault(basis)
	_, vf, jac, x, err := s.fieldParts(basis, method)
	if err != nil {
		return nil, err
	}
	vals, err := veccalc.ComputeTorsion(vf, jac, x)
	if vals == nil {
		return nil, err
	}
	if serr := s.store.SetObs(store.TorsionKey(basis), vals); serr != nil {
		return nil, serr
	}
	if err != nil {
		s.log.Warn("degenerate geometry in torsion",
			zap.String("basis", basis), zap.Error(err))
	}
	return vals, err
}

// fieldParts gathers the record, field function, derivative evaluator
// and embedding shared by the geometry operators.
func (s *Session) fieldParts(basis string, method Method) (*FieldRecord, func(*mat.Dense) *mat.Dense, veccalc.JacobianFunc, *mat.Dense, error) {
	rec, err := s.Field(basis)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	x, err := s.embedding(basis, rec)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	vf, err := kernel.FieldFunc(rec.Model, kernel.Full)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	jac, err := s.jacobianFunc(rec, method, s.cfg.Workers)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return rec, vf, jac, x, nil
}

// embedding returns the basis coordinates checked against the model
// dimension.
func (s *Session) embedding(basis string, rec *FieldRecord) (*mat.Dense, error) {
	x, err := s.store.Obsm(store.EmbeddingKey(basis))
	if err != nil {
		return nil, err
	}
	if _, xc := x.Dims(); xc != rec.Model.Dim() {
		return nil, fmt.Errorf("dynamo: %d-dimensional embedding against a %d-dimensional field: %w",
			xc, rec.Model.Dim(), kernel.ErrDimension)
	}
	return x, nil
}

// cachedJacobian returns the Jacobian record cached for the basis,
// nil when absent or foreign.
func (s *Session) cachedJacobian(basis string) *JacobianRecord {
	raw, err := s.store.Uns(store.JacobianKey(basis))
	if err != nil {
		return nil
	}
	rec, ok := raw.(*JacobianRecord)
	if !ok || rec.Raw == nil {
		return nil
	}
	return rec
}

// cachedOrFresh returns a derivative evaluator for the given cells,
// backed by the cached run when it covers every one of them and by
// fresh evaluation otherwise.
func (s *Session) cachedOrFresh(basis string, cells []int, fresh veccalc.JacobianFunc) veccalc.JacobianFunc {
	cached := s.cachedJacobian(basis)
	if cached == nil {
		return fresh
	}
	pos := make(map[int]int, len(cached.CellIdx))
	for p, c := range cached.CellIdx {
		pos[c] = p
	}
	picks := make([]int, 0, len(cells))
	for _, c := range cells {
		p, ok := pos[c]
		if !ok {
			return fresh
		}
		picks = append(picks, p)
	}
	s.log.Debug("reused cached Jacobians",
		zap.String("basis", basis), zap.String("run_id", cached.RunID),
		zap.Int("cells", len(cells)))
	return tensorFunc(cached.Raw.Pick(picks))
}

// loadings returns the gene loading matrix restricted to the field
// dimension.
func (s *Session) loadings(d int) (*mat.Dense, error) {
	q, err := s.store.Varm(store.KeyPCs)
	if err != nil {
		return nil, err
	}
	rows, cols := q.Dims()
	if cols < d {
		return nil, fmt.Errorf("dynamo: %d loading columns for a %d-dimensional field", cols, d)
	}
	if cols == d {
		return q, nil
	}
	return q.Slice(0, rows, 0, d).(*mat.Dense), nil
}

// pickLoadingRows gathers loading rows for a gene selection.
func pickLoadingRows(q *mat.Dense, genes []int) (*mat.Dense, error) {
	rows, d := q.Dims()
	out := mat.NewDense(len(genes), d, nil)
	for i, g := range genes {
		if g < 0 || g >= rows {
			return nil, fmt.Errorf("gene row %d of %d loadings: %w", g, rows, ErrGeneSelection)
		}
		out.SetRow(i, q.RawRowView(g))
	}
	return out, nil
}

// projectAcceleration back-projects embedding accelerations into the
// gene-space layer. The dynamics-gene columns take the projected
// values; the rest copy the velocity layer when present and NaN
// otherwise.
func (s *Session) projectAcceleration(vectors *mat.Dense, dim int) error {
	q, err := s.loadings(dim)
	if err != nil {
		return err
	}
	gene, err := transform.Vectors(vectors, q)
	if err != nil {
		return err
	}
	mask, err := s.store.VarMask(store.KeyDynamicsMask)
	if err != nil {
		return err
	}
	nDyn := 0
	for _, m := range mask {
		if m {
			nDyn++
		}
	}
	gr, gc := gene.Dims()
	if gc != nDyn {
		return fmt.Errorf("dynamo: %d projected columns for %d dynamics genes", gc, nDyn)
	}

	n := s.store.NCells()
	data := make([]float64, n*len(mask))
	base := mat.NewDense(n, len(mask), data)
	if vel, err := s.store.Layer(store.KeyVelocityLayer); err == nil {
		_, vc := vel.Dims()
		if vc != len(mask) {
			return fmt.Errorf("dynamo: velocity layer has %d columns for %d genes", vc, len(mask))
		}
		base.Copy(vel)
	} else {
		for i := range data {
			data[i] = math.NaN()
		}
	}

	col := 0
	for j, m := range mask {
		if !m {
			continue
		}
		for i := 0; i < gr; i++ {
			base.Set(i, j, gene.At(i, col))
		}
		col++
	}
	return s.store.SetLayer(store.KeyAccelerationLayer, base)
}
