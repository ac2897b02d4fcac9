package pseudotime

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/YanshiHu/dynamo-release/gonumext"
)

// vertex is a principal-tree vertex position carrying its index, so a
// nearest-neighbor query can report which vertex matched.
type vertex struct {
	coords []float64
	id     int
}

// Compare implements the kdtree.Comparable interface.
func (v vertex) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return v.coords[d] - c.(vertex).coords[d]
}

// Dims returns the embedding dimension.
func (v vertex) Dims() int { return len(v.coords) }

// Distance returns the squared Euclidean distance to c.
func (v vertex) Distance(c kdtree.Comparable) float64 {
	q := c.(vertex)
	var s float64
	for i, x := range v.coords {
		dx := x - q.coords[i]
		s += dx * dx
	}
	return s
}

// vertexSet is a collection of vertices satisfying kdtree.Interface.
type vertexSet []vertex

func (vs vertexSet) Index(i int) kdtree.Comparable         { return vs[i] }
func (vs vertexSet) Len() int                              { return len(vs) }
func (vs vertexSet) Slice(start, end int) kdtree.Interface { return vs[start:end] }

func (vs vertexSet) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(vertexPlane{vertexSet: vs, Dim: d}, kdtree.MedianOfRandoms(vertexPlane{vertexSet: vs, Dim: d}, 100))
}

// vertexPlane implements sort.Interface and kdtree.SortSlicer along one
// dimension.
type vertexPlane struct {
	vertexSet
	kdtree.Dim
}

func (p vertexPlane) Less(i, j int) bool {
	return p.vertexSet[i].coords[p.Dim] < p.vertexSet[j].coords[p.Dim]
}

func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	return vertexPlane{vertexSet: p.vertexSet[start:end], Dim: p.Dim}
}

func (p vertexPlane) Swap(i, j int) {
	p.vertexSet[i], p.vertexSet[j] = p.vertexSet[j], p.vertexSet[i]
}

// nearestVertices maps each row of z to the index of its nearest row of
// y, via a k-d tree over the vertices.
func nearestVertices(z, y *mat.Dense) []int {
	k, _ := y.Dims()
	vs := make(vertexSet, k)
	for i := 0; i < k; i++ {
		vs[i] = vertex{coords: y.RawRowView(i), id: i}
	}
	t := kdtree.New(vs, true)

	n, _ := z.Dims()
	closest := make([]int, n)
	for i := 0; i < n; i++ {
		got, _ := t.Nearest(vertex{coords: z.RawRowView(i), id: -1})
		closest[i] = got.(vertex).id
	}
	return closest
}

// projectToSegment returns the point on segment [a, b] closest to p.
func projectToSegment(p, a, b []float64) []float64 {
	ab := make([]float64, len(a))
	floats.SubTo(ab, b, a)
	denom := floats.Dot(ab, ab)
	q := make([]float64, len(a))
	if denom == 0 {
		copy(q, a)
		return q
	}
	ap := make([]float64, len(a))
	floats.SubTo(ap, p, a)
	t := floats.Dot(ap, ab) / denom
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	floats.AddScaledTo(q, a, t, ab)
	return q
}

// projectToLine returns the orthogonal projection of p onto the
// infinite line through a and b.
func projectToLine(p, a, b []float64) []float64 {
	ab := make([]float64, len(a))
	floats.SubTo(ab, b, a)
	denom := floats.Dot(ab, ab)
	q := make([]float64, len(a))
	if denom == 0 {
		copy(q, a)
		return q
	}
	ap := make([]float64, len(a))
	floats.SubTo(ap, p, a)
	t := floats.Dot(ap, ab) / denom
	floats.AddScaledTo(q, a, t, ab)
	return q
}

// Projection is the outcome of re-projecting cells onto a principal
// tree: projected coordinates, the floored pairwise distances among
// them, each cell's nearest tree vertex and a fresh spanning tree over
// the projected cells.
type Projection struct {
	Points        *mat.Dense
	Distances     *mat.Dense
	ClosestVertex []int
	Tree          *Tree
}

// ProjectToMST projects every cell (row of z) onto the principal tree
// spanned by the vertex rows of y. A cell first finds its nearest
// vertex, then the closest projection onto that vertex's incident
// edges wins: tip vertices (degree 1) project onto the infinite line
// through the edge, interior vertices clamp to the segment. Pairwise
// distances among the projected cells get the minimum positive
// distance added off-diagonal so no zero-weight edge can drop out of
// the following spanning-tree build.
func ProjectToMST(t *Tree, z, y *mat.Dense) (*Projection, error) {
	n, d := z.Dims()
	k, dy := y.Dims()
	if d != dy {
		return nil, fmt.Errorf("%w: cells are %d-dimensional, vertices %d-dimensional", ErrDimension, d, dy)
	}
	if k != t.N() {
		return nil, fmt.Errorf("%w: %d vertex rows, tree has %d vertices", ErrDimension, k, t.N())
	}

	closest := nearestVertices(z, y)

	tips := make(map[int]bool)
	for _, v := range t.Tips() {
		tips[v] = true
	}

	proj := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		zi := z.RawRowView(i)
		cv := closest[i]
		nbs := t.Neighbors(cv)
		if len(nbs) == 0 {
			proj.SetRow(i, y.RawRowView(cv))
			continue
		}
		cands := make([][]float64, len(nbs))
		dists := make([]float64, len(nbs))
		for j, nb := range nbs {
			var q []float64
			if tips[cv] {
				q = projectToLine(zi, y.RawRowView(cv), y.RawRowView(nb))
			} else {
				q = projectToSegment(zi, y.RawRowView(cv), y.RawRowView(nb))
			}
			cands[j] = q
			dists[j] = floats.Distance(zi, q, 2)
		}
		proj.SetRow(i, cands[gonumext.ArgMin(dists)])
	}

	dp := gonumext.PairwiseDistances(proj, proj)
	floor := gonumext.MinPositive(dp)
	if math.IsInf(floor, 1) {
		return nil, errors.New("pseudotime: all projected cells coincide")
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				dp.Set(i, j, dp.At(i, j)+floor)
			}
		}
	}

	refined, err := MinimumSpanningTree(dp)
	if err != nil {
		return nil, err
	}
	return &Projection{
		Points:        proj,
		Distances:     dp,
		ClosestVertex: closest,
		Tree:          refined,
	}, nil
}
