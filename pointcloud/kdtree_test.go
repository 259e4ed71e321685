package pointcloud

import (
	"sort"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func bruteNearest(pc *PointCloud, q r3.Vector) (int, float64) {
	bestIdx := -1
	bestDist := 0.
	pc.Iterate(0, 0, func(i int, p r3.Vector) bool {
		d := p.Sub(q).Norm2()
		if bestIdx == -1 || d < bestDist {
			bestIdx = i
			bestDist = d
		}
		return true
	})
	return bestIdx, bestDist
}

func TestKDTreeNearest(t *testing.T) {
	pc := NewSphereCloud(300, 2, r3.Vector{X: 0.5, Y: -1})
	tree := ToKDTree(pc)
	test.That(t, tree.Size(), test.ShouldEqual, 300)

	queries := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 3, Y: -1, Z: 0.2},
		{X: 0.5, Y: 1, Z: -2},
	}
	for _, q := range queries {
		idx, p, dist, ok := tree.Nearest(q)
		test.That(t, ok, test.ShouldBeTrue)
		wantIdx, wantDist := bruteNearest(pc, q)
		test.That(t, dist, test.ShouldAlmostEqual, wantDist)
		test.That(t, idx, test.ShouldEqual, wantIdx)
		test.That(t, p, test.ShouldResemble, pc.At(idx))
	}
}

func TestKDTreeKNearest(t *testing.T) {
	pc := NewCubeCloud(5, 2, r3.Vector{})
	tree := ToKDTree(pc)

	q := r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}
	k := 7
	got := tree.KNearest(q, k)
	test.That(t, len(got), test.ShouldEqual, k)

	// results sorted by distance
	for i := 1; i < len(got); i++ {
		test.That(t, got[i-1].SqDist, test.ShouldBeLessThanOrEqualTo, got[i].SqDist)
	}

	// compare against brute force
	type distIdx struct {
		d   float64
		idx int
	}
	all := make([]distIdx, 0, pc.Size())
	pc.Iterate(0, 0, func(i int, p r3.Vector) bool {
		all = append(all, distIdx{p.Sub(q).Norm2(), i})
		return true
	})
	sort.Slice(all, func(i, j int) bool {
		if all[i].d != all[j].d {
			return all[i].d < all[j].d
		}
		return all[i].idx < all[j].idx
	})
	for i := 0; i < k; i++ {
		test.That(t, got[i].SqDist, test.ShouldAlmostEqual, all[i].d)
	}

	// k larger than cloud clamps
	got = tree.KNearest(q, pc.Size()+10)
	test.That(t, len(got), test.ShouldEqual, pc.Size())

	// no results for k <= 0
	test.That(t, tree.KNearest(q, 0), test.ShouldBeNil)
}

func TestKDTreeEmpty(t *testing.T) {
	tree := ToKDTree(New(nil))
	_, _, _, ok := tree.Nearest(r3.Vector{})
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, tree.KNearest(r3.Vector{}, 3), test.ShouldBeNil)
}
