package registration

import (
	"math"

	"github.com/pkg/errors"
)

// FeatureSet is a sequence of fixed-dimension feature vectors, index-aligned
// with the point cloud it was computed from.
type FeatureSet struct {
	vecs [][]float64
	dim  int
}

// NewFeatureSet wraps the given vectors, validating that all share one
// dimension. The slice is not copied.
func NewFeatureSet(vecs [][]float64) (*FeatureSet, error) {
	if len(vecs) == 0 {
		return &FeatureSet{}, nil
	}
	dim := len(vecs[0])
	if dim == 0 {
		return nil, errors.Wrap(ErrDimensionMismatch, "feature vectors must be non-empty")
	}
	for i, v := range vecs {
		if len(v) != dim {
			return nil, errors.Wrapf(ErrDimensionMismatch,
				"feature %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return &FeatureSet{vecs: vecs, dim: dim}, nil
}

// Len returns the number of feature vectors.
func (fs *FeatureSet) Len() int {
	return len(fs.vecs)
}

// Dim returns the dimensionality of each vector.
func (fs *FeatureSet) Dim() int {
	return fs.dim
}

// Vector returns the i-th feature vector without copying. Callers must not
// modify it.
func (fs *FeatureSet) Vector(i int) []float64 {
	return fs.vecs[i]
}

// Norm returns the L2 norm of the i-th feature vector.
func (fs *FeatureSet) Norm(i int) float64 {
	sum := 0.
	for _, x := range fs.vecs[i] {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Gather returns a new FeatureSet with the vectors at the given indices, in
// the given order. The vectors are shared, not copied.
func (fs *FeatureSet) Gather(indices []int) *FeatureSet {
	vecs := make([][]float64, len(indices))
	for i, idx := range indices {
		vecs[i] = fs.vecs[idx]
	}
	return &FeatureSet{vecs: vecs, dim: fs.dim}
}

func sqDist(a, b []float64) float64 {
	sum := 0.
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
