package malis

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"malisweight/pkg/graph"
)

func TestTrackerUnionCounts(t *testing.T) {
	tr := NewTracker([]uint32{1, 1, 2, 0, 2})

	tests := []struct {
		a, b       int
		same, diff int64
		merged     bool
	}{
		{0, 1, 1, 0, true},
		{2, 3, 0, 0, true}, // voxel 3 is unlabeled
		{0, 2, 0, 2, true},
		{4, 0, 1, 2, true},
		{1, 4, 0, 0, false},
	}
	for _, tt := range tests {
		same, diff, merged := tr.Union(tt.a, tt.b)
		assert.Equal(t, tt.same, same, "union(%d,%d) same", tt.a, tt.b)
		assert.Equal(t, tt.diff, diff, "union(%d,%d) diff", tt.a, tt.b)
		assert.Equal(t, tt.merged, merged, "union(%d,%d) merged", tt.a, tt.b)
	}

	assert.Equal(t, 5, tr.Size(3))
	assert.Equal(t, int64(4), tr.Labeled(3))
	for v := 1; v < 5; v++ {
		assert.Equal(t, tr.Find(0), tr.Find(v))
	}
}

func TestTrackerUnlabeledDomains(t *testing.T) {
	tr := NewTracker([]uint32{0, 0, 0})
	for _, pair := range [][2]int{{0, 1}, {1, 2}} {
		same, diff, merged := tr.Union(pair[0], pair[1])
		assert.True(t, merged)
		assert.Zero(t, same)
		assert.Zero(t, diff)
	}
	assert.Equal(t, int64(0), tr.Labeled(0))
}

// bruteForce tracks explicit member lists and counts pairs directly.
type bruteForce struct {
	labels  []uint32
	members map[int][]int
	owner   []int
}

func newBruteForce(labels []uint32) *bruteForce {
	b := &bruteForce{labels: labels, members: map[int][]int{}, owner: make([]int, len(labels))}
	for v := range labels {
		b.members[v] = []int{v}
		b.owner[v] = v
	}
	return b
}

func (b *bruteForce) union(x, y int) (same, diff int64, merged bool) {
	ox, oy := b.owner[x], b.owner[y]
	if ox == oy {
		return 0, 0, false
	}
	for _, u := range b.members[ox] {
		for _, v := range b.members[oy] {
			lu, lv := b.labels[u], b.labels[v]
			switch {
			case lu == 0 || lv == 0:
			case lu == lv:
				same++
			default:
				diff++
			}
		}
	}
	for _, v := range b.members[oy] {
		b.owner[v] = ox
	}
	b.members[ox] = append(b.members[ox], b.members[oy]...)
	delete(b.members, oy)
	return same, diff, true
}

func TestTrackerMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	const n = 60

	labels := make([]uint32, n)
	for i := range labels {
		labels[i] = uint32(r.Intn(5)) // 0..4, 0 unlabeled
	}

	tr := NewTracker(labels)
	bf := newBruteForce(labels)
	for i := 0; i < 4*n; i++ {
		a, b := r.Intn(n), r.Intn(n)
		s1, d1, m1 := tr.Union(a, b)
		s2, d2, m2 := bf.union(a, b)
		require.Equal(t, m2, m1, "step %d", i)
		require.Equal(t, s2, s1, "step %d same", i)
		require.Equal(t, d2, d1, "step %d diff", i)
	}
}

func TestTrackerLabeledCountInMixedDomains(t *testing.T) {
	r := rand.New(rand.NewSource(17))
	const n = 40

	labels := make([]uint32, n)
	for i := range labels {
		labels[i] = uint32(r.Intn(4))
	}

	tr := NewTracker(labels)
	bf := newBruteForce(labels)
	for i := 0; i < 2*n; i++ {
		a, b := r.Intn(n), r.Intn(n)
		tr.Union(a, b)
		bf.union(a, b)

		var want int64
		for _, v := range bf.members[bf.owner[a]] {
			if labels[v] != 0 {
				want++
			}
		}
		require.Equal(t, want, tr.Labeled(a), "step %d", i)
	}
}

func TestTrackerBuildsMaximumSpanningForest(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	const h, w = 9, 13
	bdm := make([]float64, h*w)
	for i := range bdm {
		bdm[i] = r.Float64()
	}
	edges := graph.BoundaryEdges2D(bdm, h, w)
	want := graph.MaxSpanningForestWeight(edges, h*w)

	graph.SortDescending(edges)
	tr := NewTracker(make([]uint32, h*w))
	var got float64
	unions := 0
	for _, e := range edges {
		if _, _, merged := tr.Union(e.V1, e.V2); merged {
			got += e.Value
			unions++
		}
	}

	assert.Equal(t, h*w-1, unions)
	assert.InDelta(t, want, got, 1e-9)
	assert.Equal(t, h*w, tr.Size(0))
}

func BenchmarkTrackerAffinity(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	const d, h, w = 16, 64, 64
	labels := make([]uint32, d*h*w)
	for i := range labels {
		labels[i] = uint32(r.Intn(50))
	}
	edges := graph.BoundaryEdges2D(make([]float64, h*w), h, w)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr := NewTracker(labels[:h*w])
		for _, e := range edges {
			tr.Union(e.V1, e.V2)
		}
	}
}
