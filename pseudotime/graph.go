package pseudotime

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Tree is an undirected weighted graph over vertex indices 0..n-1,
// stored as a dense symmetric weight matrix. Entries <= 0 mean no edge,
// following the sparse-adjacency convention of principal-graph learners.
type Tree struct {
	w *mat.Dense
	n int
}

// NewTree wraps a weight matrix as a tree. One-sided inputs are
// symmetrized, an edge taking its weight from whichever entry is
// positive.
func NewTree(w *mat.Dense) (*Tree, error) {
	r, c := w.Dims()
	if r != c {
		return nil, fmt.Errorf("%w: weight matrix is %dx%d, want square", ErrDimension, r, c)
	}
	s := mat.NewDense(r, r, nil)
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			if v := edgeWeight(w, i, j); v > 0 {
				s.Set(i, j, v)
				s.Set(j, i, v)
			}
		}
	}
	return &Tree{w: s, n: r}, nil
}

func edgeWeight(w *mat.Dense, i, j int) float64 {
	if v := w.At(i, j); v > 0 {
		return v
	}
	return w.At(j, i)
}

// N returns the number of vertices.
func (t *Tree) N() int { return t.n }

// Weight returns the weight of edge (i, j), zero when absent.
func (t *Tree) Weight(i, j int) float64 { return t.w.At(i, j) }

// HasEdge reports whether vertices i and j are adjacent.
func (t *Tree) HasEdge(i, j int) bool { return t.w.At(i, j) > 0 }

// Degree returns the number of edges incident to vertex i.
func (t *Tree) Degree(i int) int {
	deg := 0
	for j := 0; j < t.n; j++ {
		if t.w.At(i, j) > 0 {
			deg++
		}
	}
	return deg
}

// Neighbors returns the vertices adjacent to i in ascending order.
func (t *Tree) Neighbors(i int) []int {
	var nbs []int
	for j := 0; j < t.n; j++ {
		if t.w.At(i, j) > 0 {
			nbs = append(nbs, j)
		}
	}
	return nbs
}

// Tips returns all vertices of degree 1, ascending.
func (t *Tree) Tips() []int {
	var tips []int
	for i := 0; i < t.n; i++ {
		if t.Degree(i) == 1 {
			tips = append(tips, i)
		}
	}
	return tips
}

// BranchPoints returns all vertices of degree > 2, ascending.
func (t *Tree) BranchPoints() []int {
	var bps []int
	for i := 0; i < t.n; i++ {
		if t.Degree(i) > 2 {
			bps = append(bps, i)
		}
	}
	return bps
}

// bfs runs a breadth-first search from start, returning hop counts and
// parents. Unreached vertices get dist -1 and parent -1.
func (t *Tree) bfs(start int) (dist, parent []int) {
	dist = make([]int, t.n)
	parent = make([]int, t.n)
	for i := range dist {
		dist[i] = -1
		parent[i] = -1
	}
	dist[start] = 0
	queue := []int{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, u := range t.Neighbors(v) {
			if dist[u] < 0 {
				dist[u] = dist[v] + 1
				parent[u] = v
				queue = append(queue, u)
			}
		}
	}
	return dist, parent
}

func farthest(dist []int) int {
	best, bestDist := 0, -1
	for i, d := range dist {
		if d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Diameter returns the vertex path of a longest shortest path, measured
// in hops, found with two breadth-first searches
// (https://en.wikipedia.org/wiki/Distance_(graph_theory)). On a
// disconnected graph only the component holding vertex 0 is searched.
func (t *Tree) Diameter() []int {
	if t.n == 0 {
		return nil
	}
	dist, _ := t.bfs(0)
	u := farthest(dist)
	dist, parent := t.bfs(u)
	v := farthest(dist)
	var path []int
	for c := v; c >= 0; c = parent[c] {
		path = append(path, c)
	}
	// parents run v -> u, so the path reads u -> v after reversal
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// MinimumSpanningTree builds an MST over the component of vertex 0
// using Prim's algorithm
// (https://en.wikipedia.org/wiki/Prim%27s_algorithm). Entries <= 0 of
// the weight matrix mean no edge. Kept edges carry their input weight.
func MinimumSpanningTree(w *mat.Dense) (*Tree, error) {
	r, c := w.Dims()
	if r != c {
		return nil, fmt.Errorf("%w: weight matrix is %dx%d, want square", ErrDimension, r, c)
	}
	key := make([]float64, r)
	parent := make([]int, r)
	inTree := make([]bool, r)
	for i := range key {
		key[i] = math.Inf(1)
		parent[i] = -1
	}
	key[0] = 0

	s := mat.NewDense(r, r, nil)
	for iter := 0; iter < r; iter++ {
		v := -1
		for i := 0; i < r; i++ {
			if !inTree[i] && (v < 0 || key[i] < key[v]) {
				v = i
			}
		}
		if v < 0 || math.IsInf(key[v], 1) {
			break
		}
		inTree[v] = true
		if p := parent[v]; p >= 0 {
			wv := edgeWeight(w, v, p)
			s.Set(v, p, wv)
			s.Set(p, v, wv)
		}
		for u := 0; u < r; u++ {
			if inTree[u] {
				continue
			}
			if wv := edgeWeight(w, v, u); wv > 0 && wv < key[u] {
				key[u] = wv
				parent[u] = v
			}
		}
	}
	return &Tree{w: s, n: r}, nil
}

// Ordering is the outcome of one depth-first traversal: per vertex a
// pseudotime, a branch-segment state id and a parent (-1 for the root
// and for unreached vertices).
type Ordering struct {
	Pseudotime []float64
	State      []int
	Parent     []int
}

// OrderFrom traverses the tree depth first from root, visiting
// neighbors in ascending index order. Each vertex gets
// pseudotime(parent) + dist(vertex, parent), with edge lengths read
// from dist rather than the tree weights. The state id is a running
// counter over the traversal that increments each time a visited
// vertex's parent has degree > 2, so every branch crossing starts a new
// segment. The traversal is inherently sequential: a vertex's
// pseudotime needs its parent's.
func OrderFrom(t *Tree, dist *mat.Dense, root int) (*Ordering, error) {
	r, c := dist.Dims()
	if r != t.n || c != t.n {
		return nil, fmt.Errorf("%w: distance matrix is %dx%d, tree has %d vertices", ErrDimension, r, c, t.n)
	}
	if root < 0 || root >= t.n {
		return nil, fmt.Errorf("%w: root %d out of range [0,%d)", ErrDimension, root, t.n)
	}

	ord := &Ordering{
		Pseudotime: make([]float64, t.n),
		State:      make([]int, t.n),
		Parent:     make([]int, t.n),
	}
	for i := range ord.Parent {
		ord.Parent[i] = -1
	}

	type frame struct{ v, parent int }
	stack := []frame{{root, -1}}
	visited := make([]bool, t.n)
	state := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[f.v] {
			continue
		}
		visited[f.v] = true
		if f.parent >= 0 {
			ord.Parent[f.v] = f.parent
			ord.Pseudotime[f.v] = ord.Pseudotime[f.parent] + dist.At(f.v, f.parent)
			if t.Degree(f.parent) > 2 {
				state++
			}
		}
		ord.State[f.v] = state
		nbs := t.Neighbors(f.v)
		// push in reverse so the lowest-index neighbor pops first
		for i := len(nbs) - 1; i >= 0; i-- {
			if !visited[nbs[i]] {
				stack = append(stack, frame{nbs[i], f.v})
			}
		}
	}
	return ord, nil
}
