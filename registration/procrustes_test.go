package registration

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/viam-labs/cloudalign/spatialmath"
)

func randomTransform(r *rand.Rand, maxAngle, maxTrans float64) *spatialmath.RigidTransform {
	axis := r3.Vector{X: r.NormFloat64(), Y: r.NormFloat64(), Z: r.NormFloat64()}
	if axis.Norm() < 1e-9 {
		axis = r3.Vector{X: 1}
	}
	axis = axis.Normalize()
	aa := spatialmath.R4AA{Theta: r.Float64() * maxAngle, RX: axis.X, RY: axis.Y, RZ: axis.Z}
	trans := r3.Vector{
		X: (r.Float64()*2 - 1) * maxTrans,
		Y: (r.Float64()*2 - 1) * maxTrans,
		Z: (r.Float64()*2 - 1) * maxTrans,
	}
	return spatialmath.NewRigidTransform(spatialmath.QuatToRotationMatrix(aa.ToQuat()), trans)
}

func randomPoints(r *rand.Rand, n int, scale float64) []r3.Vector {
	pts := make([]r3.Vector, n)
	for i := range pts {
		pts[i] = r3.Vector{
			X: (r.Float64()*2 - 1) * scale,
			Y: (r.Float64()*2 - 1) * scale,
			Z: (r.Float64()*2 - 1) * scale,
		}
	}
	return pts
}

func TestSolveRigidExactRecovery(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		src := randomPoints(r, 30, 2)
		tf := randomTransform(r, math.Pi, 5)

		tgt := make([]r3.Vector, len(src))
		for i, p := range src {
			tgt[i] = tf.TransformPoint(p)
		}
		weights := make([]float64, len(src))
		for i := range weights {
			weights[i] = 1
		}

		got, err := SolveRigid(src, tgt, weights)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.AlmostEqual(tf, 1e-9), test.ShouldBeTrue)
	}
}

func TestSolveRigidRotationValidity(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	src := randomPoints(r, 40, 1)
	tf := randomTransform(r, 2, 1)
	tgt := make([]r3.Vector, len(src))
	for i, p := range src {
		tgt[i] = tf.TransformPoint(p)
	}

	weightProfiles := [][]float64{
		make([]float64, len(src)),
		make([]float64, len(src)),
		make([]float64, len(src)),
	}
	for i := range src {
		weightProfiles[0][i] = 1
		weightProfiles[1][i] = math.Pow(10, -float64(i%8))
	}
	// only three pairs carry weight
	weightProfiles[2][0] = 1
	weightProfiles[2][1] = 1
	weightProfiles[2][2] = 1

	for _, weights := range weightProfiles {
		got, err := SolveRigid(src, tgt, weights)
		test.That(t, err, test.ShouldBeNil)
		rot := got.Rotation()
		test.That(t, rot.OrthogonalityError(), test.ShouldBeLessThan, 1e-9)
		test.That(t, rot.Det(), test.ShouldAlmostEqual, 1, 1e-9)
	}
}

func TestSolveRigidWeighting(t *testing.T) {
	// two well-matched pairs plus one wild outlier with zero weight; the
	// outlier must not influence the result
	src := []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}, {X: 100, Y: -50, Z: 3}}
	offset := r3.Vector{X: 0.5, Y: -0.25, Z: 1}
	tgt := make([]r3.Vector, len(src))
	for i, p := range src {
		tgt[i] = p.Add(offset)
	}
	tgt[3] = r3.Vector{X: -999}

	got, err := SolveRigid(src, tgt, []float64{1, 1, 1, 0})
	test.That(t, err, test.ShouldBeNil)
	want := spatialmath.NewRigidTransform(spatialmath.NewIdentityRotationMatrix(), offset)
	test.That(t, got.AlmostEqual(want, 1e-9), test.ShouldBeTrue)
}

func TestSolveRigidDegenerateWeights(t *testing.T) {
	src := []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}
	tgt := []r3.Vector{{X: 2}, {Y: 2}, {Z: 2}}

	_, err := SolveRigid(src, tgt, []float64{0, 0, 0})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrDegenerateInput), test.ShouldBeTrue)

	_, err = SolveRigid(src, tgt, []float64{1e-13, 0, 0})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrDegenerateInput), test.ShouldBeTrue)

	_, err = SolveRigid(nil, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrDegenerateInput), test.ShouldBeTrue)
}

func TestSolveRigidInputValidation(t *testing.T) {
	src := []r3.Vector{{X: 1}, {Y: 1}}
	tgt := []r3.Vector{{X: 1}}
	_, err := SolveRigid(src, tgt, []float64{1})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = SolveRigid(tgt, tgt, []float64{-1})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSolveRigidRankDeficient(t *testing.T) {
	// collinear points: the cross-covariance is rank 1, there is a family of
	// optimal rotations, but the returned one must still be proper
	src := []r3.Vector{{X: -1}, {X: 0}, {X: 1}, {X: 2}}
	tgt := []r3.Vector{{Y: -1}, {Y: 0}, {Y: 1}, {Y: 2}}
	weights := []float64{1, 1, 1, 1}

	got, err := SolveRigid(src, tgt, weights)
	test.That(t, err, test.ShouldBeNil)
	rot := got.Rotation()
	test.That(t, rot.OrthogonalityError(), test.ShouldBeLessThan, 1e-9)
	test.That(t, rot.Det(), test.ShouldAlmostEqual, 1, 1e-9)

	// the x axis must map onto the y axis regardless of which rotation of the
	// family came back
	mapped := rot.Mul(r3.Vector{X: 1})
	test.That(t, mapped.Y, test.ShouldAlmostEqual, 1, 1e-9)
}

func TestSolveRigidReflectionCorrection(t *testing.T) {
	// a mirrored correspondence tempts the solver toward det=-1; it must
	// return a proper rotation anyway
	src := []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}, {X: -1}, {Y: -1}, {Z: -1}}
	tgt := []r3.Vector{{X: -1}, {Y: 1}, {Z: 1}, {X: 1}, {Y: -1}, {Z: -1}}
	weights := []float64{1, 1, 1, 1, 1, 1}

	got, err := SolveRigid(src, tgt, weights)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Rotation().Det(), test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, got.Rotation().OrthogonalityError(), test.ShouldBeLessThan, 1e-9)
}
