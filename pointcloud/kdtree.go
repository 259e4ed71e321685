package pointcloud

import (
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// treePoint adapts a cloud point for the kd-tree, carrying its cloud index so
// query results can be mapped back to the cloud.
type treePoint struct {
	pos r3.Vector
	idx int
}

func (p treePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(treePoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	default:
		return p.pos.Z - q.pos.Z
	}
}

func (p treePoint) Dims() int { return 3 }

func (p treePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(treePoint)
	return p.pos.Sub(q.pos).Norm2()
}

type treePoints []treePoint

func (p treePoints) Index(i int) kdtree.Comparable { return p[i] }

func (p treePoints) Len() int { return len(p) }

func (p treePoints) Pivot(d kdtree.Dim) int {
	return plane{Dim: d, treePoints: p}.Pivot()
}

func (p treePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane is a helper for satisfying kdtree.SortSlicer, following the
// gonum kd-tree user-type pattern.
type plane struct {
	kdtree.Dim
	treePoints
}

func (p plane) Less(i, j int) bool {
	return p.treePoints[i].Compare(p.treePoints[j], p.Dim) < 0
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.treePoints = p.treePoints[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.treePoints[i], p.treePoints[j] = p.treePoints[j], p.treePoints[i]
}

// KDTree is a spatial index over a PointCloud for nearest-neighbour queries.
// It references the cloud's points by index and holds no copies of the cloud.
type KDTree struct {
	tree *kdtree.Tree
	size int
}

// ToKDTree creates a KDTree from a PointCloud.
func ToKDTree(cloud *PointCloud) *KDTree {
	pts := make(treePoints, cloud.Size())
	cloud.Iterate(0, 0, func(i int, p r3.Vector) bool {
		pts[i] = treePoint{pos: p, idx: i}
		return true
	})
	return &KDTree{tree: kdtree.New(pts, false), size: cloud.Size()}
}

// Size returns the number of indexed points.
func (t *KDTree) Size() int {
	return t.size
}

// Nearest returns the cloud index and position of the point nearest to p,
// along with the squared distance. ok is false for an empty tree.
func (t *KDTree) Nearest(p r3.Vector) (int, r3.Vector, float64, bool) {
	if t.size == 0 {
		return 0, r3.Vector{}, 0, false
	}
	got, dist := t.tree.Nearest(treePoint{pos: p, idx: -1})
	tp, ok := got.(treePoint)
	if !ok {
		return 0, r3.Vector{}, 0, false
	}
	return tp.idx, tp.pos, dist, true
}

// Neighbor is one result of a k-nearest-neighbours query.
type Neighbor struct {
	Index  int
	Point  r3.Vector
	SqDist float64
}

// KNearest returns up to k nearest neighbours of p, ordered by increasing
// squared distance with cloud index as the tie-break.
func (t *KDTree) KNearest(p r3.Vector, k int) []Neighbor {
	if k <= 0 || t.size == 0 {
		return nil
	}
	if k > t.size {
		k = t.size
	}
	keeper := kdtree.NewNKeeper(k)
	t.tree.NearestSet(keeper, treePoint{pos: p, idx: -1})

	out := make([]Neighbor, 0, k)
	for _, cd := range keeper.Heap {
		tp, ok := cd.Comparable.(treePoint)
		if !ok {
			continue
		}
		out = append(out, Neighbor{Index: tp.idx, Point: tp.pos, SqDist: cd.Dist})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SqDist != out[j].SqDist {
			return out[i].SqDist < out[j].SqDist
		}
		return out[i].Index < out[j].Index
	})
	return out
}
