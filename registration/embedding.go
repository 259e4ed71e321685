package registration

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/cloudalign/pointcloud"
	"github.com/viam-labs/cloudalign/utils"
)

// Embedder maps a point cloud to one feature vector per point. Implementations
// must be deterministic pure functions of the cloud for a fixed embedder so
// registration results are reproducible.
type Embedder interface {
	Embed(ctx context.Context, cloud *pointcloud.PointCloud) (*FeatureSet, error)
}

// EmbedderFunc adapts a plain function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, cloud *pointcloud.PointCloud) (*FeatureSet, error)

// Embed calls the wrapped function.
func (f EmbedderFunc) Embed(ctx context.Context, cloud *pointcloud.PointCloud) (*FeatureSet, error) {
	return f(ctx, cloud)
}

// CoordinateEmbedder embeds each point as its own coordinates (D=3). Matching
// on these features reduces soft correspondence to soft nearest-point search,
// which is what the registration tests and plain ICP-style use cases want.
type CoordinateEmbedder struct{}

// Embed implements the Embedder interface.
func (CoordinateEmbedder) Embed(_ context.Context, cloud *pointcloud.PointCloud) (*FeatureSet, error) {
	vecs := make([][]float64, cloud.Size())
	cloud.Iterate(0, 0, func(i int, p r3.Vector) bool {
		vecs[i] = []float64{p.X, p.Y, p.Z}
		return true
	})
	return NewFeatureSet(vecs)
}

// GeometricEmbedder embeds each point with a 9-dimensional local-geometry
// descriptor: position relative to the cloud centroid, the normalized
// eigenvalues of the neighborhood covariance, and the derived linearity,
// planarity, and sphericity shape measures. It is a deterministic, non-learned
// stand-in for a trained feature network.
type GeometricEmbedder struct {
	// Neighbors is the local neighborhood size; values below 4 are raised to 4
	// so the covariance has a chance of being full rank.
	Neighbors int
	// Workers bounds the parallelism; zero means one worker per point chunk up
	// to GOMAXPROCS.
	Workers int
}

// GeometricFeatureDim is the dimensionality of GeometricEmbedder features.
const GeometricFeatureDim = 9

// Embed implements the Embedder interface.
func (g GeometricEmbedder) Embed(ctx context.Context, cloud *pointcloud.PointCloud) (*FeatureSet, error) {
	n := cloud.Size()
	if n == 0 {
		return NewFeatureSet(nil)
	}
	neighbors := g.Neighbors
	if neighbors < 4 {
		neighbors = 4
	}
	if neighbors > n {
		neighbors = n
	}

	tree := pointcloud.ToKDTree(cloud)
	centroid := cloud.Centroid()
	vecs := make([][]float64, n)

	workers := g.Workers
	if workers <= 0 {
		workers = utils.ParallelFactor
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	group, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		from := w * chunk
		to := from + chunk
		if to > n {
			to = n
		}
		if from >= to {
			break
		}
		group.Go(func() error {
			for i := from; i < to; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				feat, err := localGeometryFeature(cloud.At(i), centroid, tree, neighbors)
				if err != nil {
					return err
				}
				vecs[i] = feat
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return NewFeatureSet(vecs)
}

func localGeometryFeature(p, centroid r3.Vector, tree *pointcloud.KDTree, neighbors int) ([]float64, error) {
	nbrs := tree.KNearest(p, neighbors)
	if len(nbrs) == 0 {
		return nil, errors.New("no neighbors found for point")
	}

	var mean r3.Vector
	for _, nb := range nbrs {
		mean = mean.Add(nb.Point)
	}
	mean = mean.Mul(1 / float64(len(nbrs)))

	// neighborhood covariance
	var cxx, cxy, cxz, cyy, cyz, czz float64
	for _, nb := range nbrs {
		d := nb.Point.Sub(mean)
		cxx += d.X * d.X
		cxy += d.X * d.Y
		cxz += d.X * d.Z
		cyy += d.Y * d.Y
		cyz += d.Y * d.Z
		czz += d.Z * d.Z
	}
	inv := 1 / float64(len(nbrs))
	cov := mat.NewSymDense(3, []float64{
		cxx * inv, cxy * inv, cxz * inv,
		cxy * inv, cyy * inv, cyz * inv,
		cxz * inv, cyz * inv, czz * inv,
	})

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		return nil, errors.New("failed to factorize neighborhood covariance")
	}
	vals := eig.Values(nil) // ascending
	// tiny negative eigenvalues happen numerically on flat neighborhoods
	for i, v := range vals {
		if v < 0 {
			vals[i] = 0
		}
	}
	l1, l2, l3 := vals[2], vals[1], vals[0]
	sum := l1 + l2 + l3
	var n1, n2, n3, linearity, planarity, sphericity float64
	if sum > 0 {
		n1, n2, n3 = l1/sum, l2/sum, l3/sum
	}
	if l1 > 0 {
		linearity = (l1 - l2) / l1
		planarity = (l2 - l3) / l1
		sphericity = l3 / l1
	}

	rel := p.Sub(centroid)
	return []float64{
		rel.X, rel.Y, rel.Z,
		n1, n2, n3,
		linearity, planarity, sphericity,
	}, nil
}
