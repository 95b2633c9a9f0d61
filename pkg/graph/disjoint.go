package graph

// DisjointSet is a union-find forest over voxel ids 0..n-1 with union by
// size and path halving.
type DisjointSet struct {
	parent []int32
	size   []int32
}

// NewDisjointSet creates n singleton sets.
func NewDisjointSet(n int) *DisjointSet {
	ds := &DisjointSet{
		parent: make([]int32, n),
		size:   make([]int32, n),
	}
	for i := range ds.parent {
		ds.parent[i] = int32(i)
		ds.size[i] = 1
	}
	return ds
}

// Len returns the number of elements.
func (ds *DisjointSet) Len() int {
	return len(ds.parent)
}

// Find returns the root of the set containing v.
func (ds *DisjointSet) Find(v int) int {
	p := ds.parent
	for int(p[v]) != v {
		p[v] = p[p[v]]
		v = int(p[v])
	}
	return v
}

// Size returns the size of the set rooted at root.
func (ds *DisjointSet) Size(root int) int {
	return int(ds.size[root])
}

// Link merges the sets rooted at ra and rb, which must be distinct roots,
// and returns the surviving root. The larger set absorbs the smaller;
// ties keep ra.
func (ds *DisjointSet) Link(ra, rb int) int {
	if ds.size[ra] < ds.size[rb] {
		ra, rb = rb, ra
	}
	ds.parent[rb] = int32(ra)
	ds.size[ra] += ds.size[rb]
	return ra
}

// Union merges the sets containing a and b. It reports false when they
// were already joined.
func (ds *DisjointSet) Union(a, b int) bool {
	ra, rb := ds.Find(a), ds.Find(b)
	if ra == rb {
		return false
	}
	ds.Link(ra, rb)
	return true
}
