package pseudotime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// yTree builds a ten-vertex Y: a stem 0-1-2-3 with unit steps joined at
// vertex 3 by two diagonal branches 3-4-5-6 and 3-7-8-9 with edge
// length sqrt(2).
func yTree() (y, stree *mat.Dense) {
	coords := [][]float64{
		{0, 0}, {1, 0}, {2, 0}, {3, 0},
		{4, 1}, {5, 2}, {6, 3},
		{4, -1}, {5, -2}, {6, -3},
	}
	y = mat.NewDense(10, 2, nil)
	for i, c := range coords {
		y.SetRow(i, c)
	}
	edges := [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 6}, {3, 7}, {7, 8}, {8, 9}}
	stree = mat.NewDense(10, 10, nil)
	for _, e := range edges {
		w := floats.Distance(y.RawRowView(e[0]), y.RawRowView(e[1]), 2)
		stree.Set(e[0], e[1], w)
		stree.Set(e[1], e[0], w)
	}
	return y, stree
}

func TestNewTreeSymmetrizes(t *testing.T) {
	w := mat.NewDense(3, 3, nil)
	w.Set(0, 1, 2.5)
	w.Set(2, 1, 1.5)

	tr, err := NewTree(w)
	require.NoError(t, err)

	assert.True(t, tr.HasEdge(0, 1))
	assert.True(t, tr.HasEdge(1, 0))
	assert.Equal(t, 2.5, tr.Weight(1, 0))
	assert.Equal(t, 1.5, tr.Weight(1, 2))
	assert.False(t, tr.HasEdge(0, 2))

	_, err = NewTree(mat.NewDense(2, 3, nil))
	assert.ErrorIs(t, err, ErrDimension)
}

func TestTreeQueries(t *testing.T) {
	_, stree := yTree()
	tr, err := NewTree(stree)
	require.NoError(t, err)

	assert.Equal(t, 10, tr.N())
	assert.Equal(t, 3, tr.Degree(3))
	assert.Equal(t, 1, tr.Degree(0))
	assert.Equal(t, 2, tr.Degree(5))
	assert.Equal(t, []int{2, 4, 7}, tr.Neighbors(3))
	assert.Equal(t, []int{0, 6, 9}, tr.Tips())
	assert.Equal(t, []int{3}, tr.BranchPoints())
}

func TestMinimumSpanningTree(t *testing.T) {
	// four points in the plane with a unique spanning tree 0-1, 1-2, 1-3
	pts := mat.NewDense(4, 2, []float64{0, 0, 1, 0, 1, 1, 5, 0})
	n, _ := pts.Dims()
	w := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				w.Set(i, j, floats.Distance(pts.RawRowView(i), pts.RawRowView(j), 2))
			}
		}
	}

	mst, err := MinimumSpanningTree(w)
	require.NoError(t, err)

	assert.True(t, mst.HasEdge(0, 1))
	assert.True(t, mst.HasEdge(1, 2))
	assert.True(t, mst.HasEdge(1, 3))
	assert.False(t, mst.HasEdge(0, 2))
	assert.False(t, mst.HasEdge(2, 3))
	assert.Equal(t, 4.0, mst.Weight(1, 3))

	edges := 0
	for i := 0; i < 4; i++ {
		edges += mst.Degree(i)
	}
	assert.Equal(t, 6, edges, "a spanning tree on 4 vertices has 3 edges")
}

func TestMinimumSpanningTreeNoEdges(t *testing.T) {
	mst, err := MinimumSpanningTree(mat.NewDense(3, 3, nil))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, mst.Degree(i))
	}
}

func TestDiameter(t *testing.T) {
	chain := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		chain.Set(i, i+1, 1)
		chain.Set(i+1, i, 1)
	}
	tr, err := NewTree(chain)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1, 0}, tr.Diameter())

	_, stree := yTree()
	yt, err := NewTree(stree)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 5, 4, 3, 2, 1, 0}, yt.Diameter())
}

func TestOrderFromYTree(t *testing.T) {
	y, stree := yTree()
	tr, err := NewTree(stree)
	require.NoError(t, err)

	n, _ := y.Dims()
	dist := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dist.Set(i, j, floats.Distance(y.RawRowView(i), y.RawRowView(j), 2))
		}
	}

	ord, err := OrderFrom(tr, dist, 0)
	require.NoError(t, err)

	s2 := math.Sqrt2
	wantPT := []float64{0, 1, 2, 3, 3 + s2, 3 + 2*s2, 3 + 3*s2, 3 + s2, 3 + 2*s2, 3 + 3*s2}
	for i, want := range wantPT {
		assert.InDelta(t, want, ord.Pseudotime[i], 1e-12, "vertex %d", i)
	}
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 2, 2, 2}, ord.State)
	assert.Equal(t, []int{-1, 0, 1, 2, 3, 4, 5, 3, 7, 8}, ord.Parent)

	assert.Zero(t, ord.Pseudotime[0])
	for i, p := range ord.Parent {
		if p >= 0 {
			assert.GreaterOrEqual(t, ord.Pseudotime[i], ord.Pseudotime[p],
				"pseudotime must not decrease from parent %d to child %d", p, i)
		}
	}
}

func TestOrderFromErrors(t *testing.T) {
	_, stree := yTree()
	tr, err := NewTree(stree)
	require.NoError(t, err)

	_, err = OrderFrom(tr, mat.NewDense(10, 10, nil), 10)
	assert.ErrorIs(t, err, ErrDimension)
	_, err = OrderFrom(tr, mat.NewDense(10, 10, nil), -1)
	assert.ErrorIs(t, err, ErrDimension)
	_, err = OrderFrom(tr, mat.NewDense(4, 4, nil), 0)
	assert.ErrorIs(t, err, ErrDimension)
}
