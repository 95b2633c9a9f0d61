package malis

import (
	"malisweight/pkg/graph"
)

// composition is the ground-truth make-up of a domain. n counts its
// labeled voxels. A pure domain has them all under id; a domain spanning
// several ids keeps the per-id histogram in counts.
type composition struct {
	id     uint32
	n      int64
	counts map[uint32]int64
}

func (c *composition) labeled() int64 {
	return c.n
}

// pairs returns the number of (a, b) pairs, a from c and b from o, whose
// non-zero ids match and whose ids differ.
func (c *composition) pairs(o *composition) (same, diff int64) {
	if c.n == 0 || o.n == 0 {
		return 0, 0
	}

	switch {
	case c.counts == nil && o.counts == nil:
		if c.id == o.id {
			same = c.n * o.n
		}
	case c.counts == nil:
		same = c.n * o.counts[c.id]
	case o.counts == nil:
		same = o.n * c.counts[o.id]
	default:
		small, large := c.counts, o.counts
		if len(small) > len(large) {
			small, large = large, small
		}
		for id, n := range small {
			same += n * large[id]
		}
	}
	return same, c.n*o.n - same
}

// absorb folds o into c.
func (c *composition) absorb(o *composition) {
	if o.n == 0 {
		return
	}
	if c.n == 0 {
		*c = *o
		return
	}
	if c.counts == nil && o.counts == nil && c.id == o.id {
		c.n += o.n
		return
	}

	if c.counts == nil {
		c.counts = map[uint32]int64{c.id: c.n}
	}
	if o.counts == nil {
		c.counts[o.id] += o.n
	} else {
		for id, n := range o.counts {
			c.counts[id] += n
		}
	}
	c.n += o.n
}

// Tracker maintains the evolving partition of voxels into domains while
// edges are visited, and counts the voxel pairs each union connects for
// the first time.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	ds   *graph.DisjointSet
	comp []composition
}

// NewTracker creates one singleton domain per voxel, labeled with that
// voxel's ground-truth segment id (0 for unlabeled).
func NewTracker(labels []uint32) *Tracker {
	t := &Tracker{
		ds:   graph.NewDisjointSet(len(labels)),
		comp: make([]composition, len(labels)),
	}
	for v, id := range labels {
		if id != 0 {
			t.comp[v] = composition{id: id, n: 1}
		}
	}
	return t
}

// Find returns the representative voxel of the domain containing v.
func (t *Tracker) Find(v int) int {
	return t.ds.Find(v)
}

// Size returns the number of voxels in the domain containing v.
func (t *Tracker) Size(v int) int {
	return t.ds.Size(t.ds.Find(v))
}

// Labeled returns the number of labeled voxels in the domain containing v.
func (t *Tracker) Labeled(v int) int64 {
	return t.comp[t.ds.Find(v)].labeled()
}

// Union joins the domains containing a and b. When they were distinct it
// returns the number of newly connected voxel pairs with matching
// non-zero ids (same) and with differing non-zero ids (diff); pairs that
// involve an unlabeled voxel count toward neither. When a and b already
// share a domain it returns merged == false and zero counts.
func (t *Tracker) Union(a, b int) (same, diff int64, merged bool) {
	ra, rb := t.ds.Find(a), t.ds.Find(b)
	if ra == rb {
		return 0, 0, false
	}

	same, diff = t.comp[ra].pairs(&t.comp[rb])

	root := t.ds.Link(ra, rb)
	child := ra
	if root == ra {
		child = rb
	}
	t.comp[root].absorb(&t.comp[child])
	t.comp[child] = composition{}

	return same, diff, true
}
