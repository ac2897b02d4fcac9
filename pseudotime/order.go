// Package pseudotime orders cells along a learned principal tree. A
// spanning tree over the tree's vertices fixes a root, a depth-first
// traversal assigns each vertex a pseudotime and a branch-segment
// state, and a re-projection of every cell onto the tree edges refines
// the ordering at single-cell resolution.
package pseudotime

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YanshiHu/dynamo-release/gonumext"
	"github.com/YanshiHu/dynamo-release/logging"
)

// Prior carries the per-cell outcome of an earlier ordering run, needed
// when a caller roots the next run in an existing state label.
// RootCell is -1 when no previous root is known.
type Prior struct {
	Pseudotime []float64
	State      []int
	RootCell   int
}

// Options control one ordering run.
type Options struct {
	// RootState roots the ordering in the cells carrying this state
	// label from a previous run. Nil picks a tree-diameter endpoint
	// instead.
	RootState *int
	// Reverse picks the far endpoint of the diameter path.
	Reverse bool
	// Prior is required when RootState is set.
	Prior *Prior
	// Logger receives diagnostics. Nil discards them.
	Logger *logging.Logger
}

// Record is the run-scoped ordering metadata a session persists:
// the final root, the refined spanning tree, each cell's nearest
// principal-tree vertex and the branch points.
type Record struct {
	RootCell      int
	Tree          *Tree
	ClosestVertex []int
	BranchPoints  []int
}

// Result is the outcome of OrderCells. State is nil when the run was
// rooted in an existing state label, in which case previous labels
// stand.
type Result struct {
	Pseudotime    []float64
	State         []int
	Parent        []int
	RootCell      int
	Tree          *Tree
	CellDistances *mat.Dense
	Projected     *mat.Dense
	ClosestVertex []int
	BranchPoints  []int
}

// Record extracts the persistable metadata of the run.
func (r *Result) Record() *Record {
	return &Record{
		RootCell:      r.RootCell,
		Tree:          r.Tree,
		ClosestVertex: r.ClosestVertex,
		BranchPoints:  r.BranchPoints,
	}
}

// SelectRootCell picks the vertex an ordering starts from. With a root
// state it returns a cell index: among the cells carrying that state it
// spans a minimum spanning tree, walks its diameter and tie-breaks by
// the previous pseudotime, minimal when the previous root already
// carried the state, maximal otherwise. Without a root state it
// returns an endpoint of the given tree's diameter, the far one when
// Reverse is set.
func SelectRootCell(z *mat.Dense, tree *Tree, opts Options) (int, error) {
	if opts.RootState == nil {
		if tree == nil {
			return 0, fmt.Errorf("select root: %w", ErrMissingPrerequisite)
		}
		path := tree.Diameter()
		if opts.Reverse {
			return path[len(path)-1], nil
		}
		return path[0], nil
	}

	n, _ := z.Dims()
	p := opts.Prior
	if p == nil || p.State == nil {
		return 0, fmt.Errorf("select root for state %d: %w", *opts.RootState, ErrPrecedence)
	}
	if len(p.State) != n || len(p.Pseudotime) != n {
		return 0, fmt.Errorf("%w: prior covers %d state and %d pseudotime values, want %d cells",
			ErrDimension, len(p.State), len(p.Pseudotime), n)
	}

	var cand []int
	for c, s := range p.State {
		if s == *opts.RootState {
			cand = append(cand, c)
		}
	}
	if len(cand) == 0 {
		return 0, fmt.Errorf("select root for state %d: %w", *opts.RootState, ErrEmptyCandidateSet)
	}

	_, d := z.Dims()
	sub := mat.NewDense(len(cand), d, nil)
	for i, c := range cand {
		sub.SetRow(i, z.RawRowView(c))
	}
	mst, err := MinimumSpanningTree(gonumext.PairwiseDistances(sub, sub))
	if err != nil {
		return 0, err
	}
	path := mst.Diameter()
	pt := make([]float64, len(path))
	for i, v := range path {
		pt[i] = p.Pseudotime[cand[v]]
	}
	prevShares := p.RootCell >= 0 && p.RootCell < n && p.State[p.RootCell] == *opts.RootState
	if prevShares {
		return cand[path[floats.MinIdx(pt)]], nil
	}
	return cand[path[floats.MaxIdx(pt)]], nil
}

// OrderCells runs one full ordering over reduced coordinates z (cells
// by dimensions), principal points y (vertices by dimensions) and the
// learned tree adjacency stree. It spans the principal points, selects
// a root, orders the vertices, re-projects every cell onto the tree
// and re-orders on the refined cell-level tree. When the root vertex
// does not survive re-projection as a tip, root selection reruns on the
// refined tree; that fallback is recoverable and only logged.
func OrderCells(z, y, stree *mat.Dense, opts Options) (*Result, error) {
	n, d := z.Dims()
	k, dy := y.Dims()
	sr, sc := stree.Dims()
	if d != dy {
		return nil, fmt.Errorf("%w: cells are %d-dimensional, principal points %d-dimensional", ErrDimension, d, dy)
	}
	if sr != k || sc != k {
		return nil, fmt.Errorf("%w: tree adjacency is %dx%d, want %dx%d", ErrDimension, sr, sc, k, k)
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}

	initial, err := MinimumSpanningTree(stree)
	if err != nil {
		return nil, err
	}

	root, err := SelectRootCell(z, initial, opts)
	if err != nil {
		return nil, err
	}
	rootVertex := root
	if opts.RootState != nil {
		// the selected cell anchors the vertex-level traversal at its
		// nearest principal point
		row := mat.NewDense(1, d, z.RawRowView(root))
		rootVertex = nearestVertices(row, y)[0]
	}

	initialOrd, err := OrderFrom(initial, gonumext.PairwiseDistances(y, y), rootVertex)
	if err != nil {
		return nil, err
	}

	prj, err := ProjectToMST(initial, z, y)
	if err != nil {
		return nil, err
	}

	rootCell := -1
	for c := 0; c < n; c++ {
		if prj.ClosestVertex[c] == rootVertex && prj.Tree.Degree(c) == 1 {
			rootCell = c
			break
		}
	}
	if rootCell < 0 {
		log.Warn("no tip cell maps to the root vertex, reselecting on the refined tree",
			zap.Int("root_vertex", rootVertex))
		rootCell, err = SelectRootCell(z, prj.Tree, opts)
		if err != nil {
			return nil, err
		}
	}

	finalOrd, err := OrderFrom(prj.Tree, prj.Distances, rootCell)
	if err != nil {
		return nil, err
	}

	var state []int
	if opts.RootState == nil {
		state = make([]int, n)
		for c := 0; c < n; c++ {
			state[c] = initialOrd.State[prj.ClosestVertex[c]]
		}
	}

	log.Debug("ordered cells",
		zap.Int("cells", n),
		zap.Int("principal_points", k),
		zap.Int("root_cell", rootCell),
		zap.Int("branch_points", len(prj.Tree.BranchPoints())))

	return &Result{
		Pseudotime:    finalOrd.Pseudotime,
		State:         state,
		Parent:        finalOrd.Parent,
		RootCell:      rootCell,
		Tree:          prj.Tree,
		CellDistances: prj.Distances,
		Projected:     prj.Points,
		ClosestVertex: prj.ClosestVertex,
		BranchPoints:  prj.Tree.BranchPoints(),
	}, nil
}
