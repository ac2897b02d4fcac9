package pseudotime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestProjectToSegment(t *testing.T) {
	a := []float64{0, 0}
	b := []float64{2, 0}

	assert.InDeltaSlice(t, []float64{1, 0}, projectToSegment([]float64{1, 0.5}, a, b), 1e-12)
	assert.InDeltaSlice(t, a, projectToSegment([]float64{-1, 1}, a, b), 1e-12, "before the segment clamps to a")
	assert.InDeltaSlice(t, b, projectToSegment([]float64{3, 1}, a, b), 1e-12, "past the segment clamps to b")
	assert.InDeltaSlice(t, a, projectToSegment([]float64{1, 1}, a, a), 1e-12, "zero-length segment")
}

func TestProjectToLine(t *testing.T) {
	a := []float64{0, 0}
	b := []float64{1, 0}

	assert.InDeltaSlice(t, []float64{3, 0}, projectToLine([]float64{3, 1}, a, b), 1e-12, "no clamping on the line")
	assert.InDeltaSlice(t, []float64{-1, 0}, projectToLine([]float64{-1, 0.5}, a, b), 1e-12)
	assert.InDeltaSlice(t, a, projectToLine([]float64{1, 1}, a, a), 1e-12)
}

func TestNearestVertices(t *testing.T) {
	y := mat.NewDense(3, 2, []float64{0, 0, 5, 0, 10, 0})
	z := mat.NewDense(4, 2, []float64{1, 1, 4, -1, 11, 0, 6, 2})

	assert.Equal(t, []int{0, 1, 2, 1}, nearestVertices(z, y))
}

func TestProjectToMSTOnTreeVertices(t *testing.T) {
	y, stree := yTree()
	tr, err := NewTree(stree)
	require.NoError(t, err)

	// cells sitting exactly on the vertices project to themselves
	prj, err := ProjectToMST(tr, y, y)
	require.NoError(t, err)

	n, _ := y.Dims()
	for i := 0; i < n; i++ {
		assert.Equal(t, i, prj.ClosestVertex[i])
		assert.InDeltaSlice(t, y.RawRowView(i), prj.Points.RawRowView(i), 1e-12, "cell %d", i)
	}

	// the minimum positive spacing of 1 is added off-diagonal
	assert.InDelta(t, 2.0, prj.Distances.At(0, 1), 1e-12)
	assert.Zero(t, prj.Distances.At(4, 4))

	// the refined tree recovers the Y topology over the cells
	assert.Equal(t, []int{3}, prj.Tree.BranchPoints())
	assert.Equal(t, []int{0, 6, 9}, prj.Tree.Tips())
	assert.True(t, prj.Tree.HasEdge(2, 3))
	assert.True(t, prj.Tree.HasEdge(3, 4))
	assert.True(t, prj.Tree.HasEdge(3, 7))
	assert.False(t, prj.Tree.HasEdge(4, 7))
}

func TestProjectToMSTOffTreeCells(t *testing.T) {
	y, stree := yTree()
	tr, err := NewTree(stree)
	require.NoError(t, err)

	z := mat.NewDense(3, 2, []float64{
		1.4, 0.2, // near interior vertex 1, lands on segment 1-2
		-1, 0.5, // past tip 0, lands on the infinite stem line
		3.2, 0.3, // near the junction, lands on segment 3-4
	})

	prj, err := ProjectToMST(tr, z, y)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 0, 3}, prj.ClosestVertex)
	assert.InDeltaSlice(t, []float64{1.4, 0}, prj.Points.RawRowView(0), 1e-12)
	assert.InDeltaSlice(t, []float64{-1, 0}, prj.Points.RawRowView(1), 1e-12)
	assert.InDeltaSlice(t, []float64{3.25, 0.25}, prj.Points.RawRowView(2), 1e-12)
}

func TestProjectToMSTAllCoincide(t *testing.T) {
	y := mat.NewDense(2, 2, []float64{0, 0, 1, 0})
	stree := mat.NewDense(2, 2, []float64{0, 1, 1, 0})
	tr, err := NewTree(stree)
	require.NoError(t, err)

	z := mat.NewDense(3, 2, []float64{0.5, 0, 0.5, 0, 0.5, 0})
	_, err = ProjectToMST(tr, z, y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coincide")
}

func TestProjectToMSTDimensionErrors(t *testing.T) {
	y, stree := yTree()
	tr, err := NewTree(stree)
	require.NoError(t, err)

	_, err = ProjectToMST(tr, mat.NewDense(2, 3, nil), y)
	assert.ErrorIs(t, err, ErrDimension)
	_, err = ProjectToMST(tr, mat.NewDense(2, 2, nil), mat.NewDense(4, 2, nil))
	assert.ErrorIs(t, err, ErrDimension)
}
