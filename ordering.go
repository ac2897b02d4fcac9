package dynamo

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YanshiHu/dynamo-release/ddrtree"
	"github.com/YanshiHu/dynamo-release/pseudotime"
	"github.com/YanshiHu/dynamo-release/store"
)

// OrderOptions configure one cell-ordering run.
type OrderOptions struct {
	// RootState roots the run in the cells carrying this label from a
	// previous run; nil picks a diameter endpoint instead.
	RootState *int
	// Reverse picks the far diameter endpoint.
	Reverse bool
	// Fit overrides the tree-learning options; nil uses the defaults
	// for the cell count.
	Fit *ddrtree.Options
}

// OrderRecord tags the persisted ordering metadata with the run that
// produced it.
type OrderRecord struct {
	RunID string
	Order *pseudotime.Record
}

// OrderCells learns a principal tree over the basis embedding and
// orders every cell along it, persisting the pseudotime column, the
// state labels of an unrooted run and the ordering metadata. Rooting
// in a state label requires an earlier unrooted run; its outcome is
// read back from the store.
func (s *Session) OrderCells(learner ddrtree.Learner, basis string, opts OrderOptions) (*pseudotime.Result, error) {
	basis = s.basisOrDefault(basis)
	x, err := s.store.Obsm(store.EmbeddingKey(basis))
	if err != nil {
		return nil, err
	}
	n, _ := x.Dims()

	fitOpts := ddrtree.DefaultOptions(n)
	if opts.Fit != nil {
		fitOpts = *opts.Fit
	}
	fit, err := learner.FitTree(x, fitOpts)
	if err != nil {
		return nil, err
	}
	if err := fit.Validate(); err != nil {
		return nil, err
	}

	ptOpts := pseudotime.Options{
		RootState: opts.RootState,
		Reverse:   opts.Reverse,
		Logger:    s.log,
	}
	if opts.RootState != nil {
		ptOpts.Prior = s.orderPrior()
	}
	res, err := pseudotime.OrderCells(fit.Z, fit.Y, fit.Stree, ptOpts)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetObs(store.KeyPseudotime, res.Pseudotime); err != nil {
		return nil, err
	}
	if res.State != nil {
		if err := s.store.SetObsInt(store.KeyCellPseudoState, res.State); err != nil {
			return nil, err
		}
	}
	rec := &OrderRecord{RunID: uuid.NewString(), Order: res.Record()}
	s.store.SetUns(store.KeyCellOrder, rec)
	s.log.Info("ordered cells",
		zap.String("basis", basis), zap.String("run_id", rec.RunID),
		zap.Int("root_cell", res.RootCell),
		zap.Int("branch_points", len(res.BranchPoints)))
	return res, nil
}

// orderPrior assembles the previous run's outcome from the store, nil
// when no run has happened yet.
func (s *Session) orderPrior() *pseudotime.Prior {
	pt, err := s.store.Obs(store.KeyPseudotime)
	if err != nil {
		return nil
	}
	state, err := s.store.ObsInt(store.KeyCellPseudoState)
	if err != nil {
		return nil
	}
	prior := &pseudotime.Prior{Pseudotime: pt, State: state, RootCell: -1}
	if raw, err := s.store.Uns(store.KeyCellOrder); err == nil {
		if rec, ok := raw.(*OrderRecord); ok && rec.Order != nil {
			prior.RootCell = rec.Order.RootCell
		}
	}
	return prior
}
