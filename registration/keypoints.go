package registration

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viam-labs/cloudalign/pointcloud"
)

// SaliencyFunc scores a single feature vector; higher means more likely to lie
// in the overlap region.
type SaliencyFunc func(feature []float64) float64

// KeypointSet is a subset of cloud indices with their selection scores.
// Indices are unique and scores are non-increasing in selection order.
type KeypointSet struct {
	Indices []int
	Scores  []float64
}

// Len returns the number of selected keypoints.
func (ks *KeypointSet) Len() int {
	return len(ks.Indices)
}

// Points gathers the selected points from the cloud in selection order.
func (ks *KeypointSet) Points(cloud *pointcloud.PointCloud) []r3.Vector {
	out := make([]r3.Vector, len(ks.Indices))
	for i, idx := range ks.Indices {
		out[i] = cloud.At(idx)
	}
	return out
}

// Selector picks the k most salient points of a cloud.
type Selector struct {
	// Saliency overrides the default score, which is the L2 norm of the
	// feature vector (the convention of norm-scored learned embeddings).
	Saliency SaliencyFunc
}

// Select scores every point and returns the top k by score, breaking ties by
// original index so selection is deterministic.
func (s Selector) Select(cloud *pointcloud.PointCloud, features *FeatureSet, k int) (*KeypointSet, error) {
	n := cloud.Size()
	if k <= 0 || k > n {
		return nil, errors.Wrapf(ErrInvalidConfig, "cannot select %d keypoints from %d points", k, n)
	}
	if features.Len() != n {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"have %d features for %d points", features.Len(), n)
	}

	scores := make([]float64, n)
	if s.Saliency != nil {
		for i := 0; i < n; i++ {
			scores[i] = s.Saliency(features.Vector(i))
		}
	} else {
		for i := 0; i < n; i++ {
			scores[i] = features.Norm(i)
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		return order[a] < order[b]
	})

	ks := &KeypointSet{
		Indices: make([]int, k),
		Scores:  make([]float64, k),
	}
	for i := 0; i < k; i++ {
		ks.Indices[i] = order[i]
		ks.Scores[i] = scores[order[i]]
	}
	return ks, nil
}

// SelectKeypoints selects the top-k points by feature norm saliency.
func SelectKeypoints(cloud *pointcloud.PointCloud, features *FeatureSet, k int) (*KeypointSet, error) {
	return Selector{}.Select(cloud, features, k)
}
