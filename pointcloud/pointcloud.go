// Package pointcloud defines an immutable ordered point cloud and provides
// file IO and spatial indexing for it.
//
// A PointCloud is never mutated after construction; transforming one produces
// a new cloud. This keeps every intermediate step of an alignment pipeline a
// pure function of its inputs.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/viam-labs/cloudalign/spatialmath"
)

// NewVector convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewMetaData creates a new MetaData.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the metadata with the new point.
func (meta *MetaData) Merge(v r3.Vector) {
	if v.X > meta.MaxX {
		meta.MaxX = v.X
	}
	if v.Y > meta.MaxY {
		meta.MaxY = v.Y
	}
	if v.Z > meta.MaxZ {
		meta.MaxZ = v.Z
	}

	if v.X < meta.MinX {
		meta.MinX = v.X
	}
	if v.Y < meta.MinY {
		meta.MinY = v.Y
	}
	if v.Z < meta.MinZ {
		meta.MinZ = v.Z
	}
}

// PointCloud is an ordered sequence of 3D points. Point order is preserved
// from construction so that per-point data computed elsewhere (features,
// scores) can stay index-aligned with the cloud.
type PointCloud struct {
	points []r3.Vector
	meta   MetaData
}

// New returns a PointCloud containing the given points. The slice is copied;
// the cloud does not alias the caller's memory.
func New(points []r3.Vector) *PointCloud {
	owned := make([]r3.Vector, len(points))
	copy(owned, points)
	meta := NewMetaData()
	for _, p := range owned {
		meta.Merge(p)
	}
	return &PointCloud{points: owned, meta: meta}
}

// Size returns the number of points in the cloud.
func (cloud *PointCloud) Size() int {
	return len(cloud.points)
}

// MetaData returns the bounding metadata of the cloud.
func (cloud *PointCloud) MetaData() MetaData {
	return cloud.meta
}

// At returns the point at the given index.
func (cloud *PointCloud) At(i int) r3.Vector {
	return cloud.points[i]
}

// Points returns a copy of all points in order.
func (cloud *PointCloud) Points() []r3.Vector {
	out := make([]r3.Vector, len(cloud.points))
	copy(out, cloud.points)
	return out
}

// Iterate iterates over all points in the cloud and calls the given function
// for each point. If the supplied function returns false, iteration will stop
// after the function returns.
// numBatches lets you divide up the work. 0 means don't divide.
// myBatch is used iff numBatches > 0 and is which batch you want.
func (cloud *PointCloud) Iterate(numBatches, myBatch int, fn func(i int, p r3.Vector) bool) {
	from := 0
	to := len(cloud.points)
	if numBatches > 0 {
		batchSize := (len(cloud.points) + numBatches - 1) / numBatches
		from = myBatch * batchSize
		to = from + batchSize
		if to > len(cloud.points) {
			to = len(cloud.points)
		}
	}
	for i := from; i < to; i++ {
		if !fn(i, cloud.points[i]) {
			return
		}
	}
}

// Centroid returns the arithmetic mean of all points, or the zero vector for
// an empty cloud.
func (cloud *PointCloud) Centroid() r3.Vector {
	if len(cloud.points) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range cloud.points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(cloud.points)))
}

// Transform returns a new cloud with every point moved by the given transform.
// The receiver is unchanged.
func (cloud *PointCloud) Transform(tf *spatialmath.RigidTransform) *PointCloud {
	moved := make([]r3.Vector, len(cloud.points))
	meta := NewMetaData()
	for i, p := range cloud.points {
		moved[i] = tf.TransformPoint(p)
		meta.Merge(moved[i])
	}
	return &PointCloud{points: moved, meta: meta}
}
