package pointcloud

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
)

// NewSphereCloud returns n points spread over a sphere of the given radius
// centered at center, using a Fibonacci lattice so the sampling is both
// deterministic and close to uniform.
func NewSphereCloud(n int, radius float64, center r3.Vector) *PointCloud {
	points := make([]r3.Vector, n)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < n; i++ {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		points[i] = r3.Vector{
			X: radius*r*math.Cos(theta) + center.X,
			Y: radius*y + center.Y,
			Z: radius*r*math.Sin(theta) + center.Z,
		}
	}
	return New(points)
}

// NewCubeCloud returns a solid grid of perAxis^3 points filling a cube with
// the given side length centered at center.
func NewCubeCloud(perAxis int, side float64, center r3.Vector) *PointCloud {
	points := make([]r3.Vector, 0, perAxis*perAxis*perAxis)
	step := side / float64(perAxis-1)
	half := side / 2
	for i := 0; i < perAxis; i++ {
		for j := 0; j < perAxis; j++ {
			for k := 0; k < perAxis; k++ {
				points = append(points, r3.Vector{
					X: float64(i)*step - half + center.X,
					Y: float64(j)*step - half + center.Y,
					Z: float64(k)*step - half + center.Z,
				})
			}
		}
	}
	return New(points)
}

// Jitter returns a copy of the cloud with seeded Gaussian noise of the given
// standard deviation added to every coordinate.
func Jitter(cloud *PointCloud, sigma float64, seed int64) *PointCloud {
	//nolint:gosec
	r := rand.New(rand.NewSource(seed))
	points := make([]r3.Vector, cloud.Size())
	cloud.Iterate(0, 0, func(i int, p r3.Vector) bool {
		points[i] = r3.Vector{
			X: p.X + r.NormFloat64()*sigma,
			Y: p.Y + r.NormFloat64()*sigma,
			Z: p.Z + r.NormFloat64()*sigma,
		}
		return true
	})
	return New(points)
}

// CropHalfSpace returns a new cloud keeping only the points p with
// p·normal <= offset. Useful for synthesizing partial overlap.
func CropHalfSpace(cloud *PointCloud, normal r3.Vector, offset float64) *PointCloud {
	var points []r3.Vector
	cloud.Iterate(0, 0, func(_ int, p r3.Vector) bool {
		if p.Dot(normal) <= offset {
			points = append(points, p)
		}
		return true
	})
	return New(points)
}
