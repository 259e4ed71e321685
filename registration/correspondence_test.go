package registration

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func mustFeatureSet(t *testing.T, vecs [][]float64) *FeatureSet {
	t.Helper()
	fs, err := NewFeatureSet(vecs)
	test.That(t, err, test.ShouldBeNil)
	return fs
}

func TestMatchFeaturesRowStochastic(t *testing.T) {
	src := mustFeatureSet(t, [][]float64{{0, 0}, {1, 0}, {0.5, 2}})
	tgt := mustFeatureSet(t, [][]float64{{0, 0.1}, {1.1, 0}, {0.4, 2}, {3, 3}})

	m, err := MatchFeatures(context.Background(), src, tgt, 0.5, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Rows(), test.ShouldEqual, 3)
	test.That(t, m.Cols(), test.ShouldEqual, 4)

	for i := 0; i < m.Rows(); i++ {
		sum := 0.0
		for j := 0; j < m.Cols(); j++ {
			w := m.At(i, j)
			test.That(t, w, test.ShouldBeGreaterThanOrEqualTo, 0)
			sum += w
		}
		test.That(t, sum, test.ShouldAlmostEqual, 1, 1e-12)
	}
}

func TestMatchFeaturesTemperatureSharpness(t *testing.T) {
	src := mustFeatureSet(t, [][]float64{{0, 0}})
	tgt := mustFeatureSet(t, [][]float64{{0.1, 0}, {1, 0}, {2, 0}})

	soft, err := MatchFeatures(context.Background(), src, tgt, 10, 1)
	test.That(t, err, test.ShouldBeNil)
	sharp, err := MatchFeatures(context.Background(), src, tgt, 0.01, 1)
	test.That(t, err, test.ShouldBeNil)

	// lower temperature concentrates mass on the nearest target
	test.That(t, sharp.At(0, 0), test.ShouldBeGreaterThan, soft.At(0, 0))
	test.That(t, sharp.At(0, 0), test.ShouldBeGreaterThan, 0.99)
}

func TestMatchFeaturesNumericalStability(t *testing.T) {
	// widely separated features in a near-zero temperature regime must not
	// produce NaN or Inf weights
	src := mustFeatureSet(t, [][]float64{{1e4, 0, 0}, {0, 1e4, 0}})
	tgt := mustFeatureSet(t, [][]float64{{1e4, 1, 0}, {0, 1e4, 1}, {-1e4, -1e4, -1e4}})

	m, err := MatchFeatures(context.Background(), src, tgt, 1e-4, 1)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < m.Rows(); i++ {
		sum := 0.0
		for j := 0; j < m.Cols(); j++ {
			w := m.At(i, j)
			test.That(t, math.IsNaN(w), test.ShouldBeFalse)
			test.That(t, math.IsInf(w, 0), test.ShouldBeFalse)
			sum += w
		}
		test.That(t, sum, test.ShouldAlmostEqual, 1, 1e-12)
	}
	test.That(t, m.At(0, 0), test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, m.At(1, 1), test.ShouldAlmostEqual, 1, 1e-9)
}

func TestMatchFeaturesValidation(t *testing.T) {
	a := mustFeatureSet(t, [][]float64{{1, 2}})
	b := mustFeatureSet(t, [][]float64{{1, 2, 3}})

	_, err := MatchFeatures(context.Background(), a, b, 0.1, 1)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = MatchFeatures(context.Background(), a, a, 0, 1)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = MatchFeatures(context.Background(), a, a, -1, 1)
	test.That(t, err, test.ShouldNotBeNil)

	empty := mustFeatureSet(t, nil)
	_, err = MatchFeatures(context.Background(), empty, a, 0.1, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMatchFeaturesWorkerIndependence(t *testing.T) {
	vecs := make([][]float64, 17)
	for i := range vecs {
		vecs[i] = []float64{float64(i) * 0.3, float64(i%5) * 0.7}
	}
	fs := mustFeatureSet(t, vecs)

	serial, err := MatchFeatures(context.Background(), fs, fs, 0.2, 1)
	test.That(t, err, test.ShouldBeNil)
	parallel, err := MatchFeatures(context.Background(), fs, fs, 0.2, 8)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < serial.Rows(); i++ {
		for j := 0; j < serial.Cols(); j++ {
			test.That(t, parallel.At(i, j), test.ShouldEqual, serial.At(i, j))
		}
	}
}

func TestVirtualPoints(t *testing.T) {
	src := mustFeatureSet(t, [][]float64{{0, 0}})
	tgt := mustFeatureSet(t, [][]float64{{0, 0}, {5, 5}})
	tgtPts := []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: 10, Y: 20, Z: 30}}

	// a near one-hot row makes the virtual point coincide with the matched
	// target point
	m, err := MatchFeatures(context.Background(), src, tgt, 0.01, 1)
	test.That(t, err, test.ShouldBeNil)
	virtual, confidence, err := m.VirtualPoints(tgtPts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(virtual), test.ShouldEqual, 1)
	test.That(t, virtual[0].X, test.ShouldAlmostEqual, 1, 1e-6)
	test.That(t, virtual[0].Y, test.ShouldAlmostEqual, 2, 1e-6)
	test.That(t, virtual[0].Z, test.ShouldAlmostEqual, 3, 1e-6)
	test.That(t, confidence[0], test.ShouldBeGreaterThan, 0.99)

	// a uniform row lands on the mean of the targets with low confidence
	uniform, err := MatchFeatures(context.Background(), mustFeatureSet(t, [][]float64{{2.5, 2.5}}), tgt, 1e6, 1)
	test.That(t, err, test.ShouldBeNil)
	virtual, confidence, err = uniform.VirtualPoints(tgtPts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, virtual[0].X, test.ShouldAlmostEqual, 5.5, 1e-6)
	test.That(t, confidence[0], test.ShouldAlmostEqual, 0.5, 1e-6)

	_, _, err = m.VirtualPoints(tgtPts[:1])
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMutualBestMask(t *testing.T) {
	src := mustFeatureSet(t, [][]float64{{0, 0}, {0.2, 0}, {9, 9}})
	tgt := mustFeatureSet(t, [][]float64{{0.05, 0}, {10, 10}})

	m, err := MatchFeatures(context.Background(), src, tgt, 0.05, 1)
	test.That(t, err, test.ShouldBeNil)
	mask := m.MutualBestMask()
	test.That(t, len(mask), test.ShouldEqual, 3)

	// rows 0 and 1 both prefer target 0; the column tie resolves to row 0
	test.That(t, mask[0], test.ShouldBeTrue)
	test.That(t, mask[1], test.ShouldBeFalse)
	test.That(t, mask[2], test.ShouldBeTrue)
}
