package registration

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/cloudalign/spatialmath"
)

// degenerateWeightSum is the total weight below which the weighted Procrustes
// problem has no usable solution.
const degenerateWeightSum = 1e-12

// SolveRigid computes the weighted least-squares rigid motion taking src onto
// tgt, minimizing sum w_i * ||R*src_i + t - tgt_i||^2 over proper rotations R
// and translations t (Kabsch/Umeyama via SVD of the weighted cross-covariance).
//
// The returned rotation is orthonormal with determinant +1 even when the
// cross-covariance is rank deficient; the reflection case is corrected by
// negating the last column of V. A near-zero weight sum returns an error
// wrapping ErrDegenerateInput.
func SolveRigid(src, tgt []r3.Vector, weights []float64) (*spatialmath.RigidTransform, error) {
	if len(src) != len(tgt) || len(src) != len(weights) {
		return nil, errors.Errorf("matched inputs must have equal lengths, got %d src, %d tgt, %d weights",
			len(src), len(tgt), len(weights))
	}
	if len(src) == 0 {
		return nil, errors.Wrap(ErrDegenerateInput, "no matched pairs")
	}

	sumW := 0.
	for i, w := range weights {
		if w < 0 {
			return nil, errors.Errorf("weight %d is negative (%f)", i, w)
		}
		sumW += w
	}
	if sumW < degenerateWeightSum {
		return nil, errors.Wrapf(ErrDegenerateInput, "total weight %g", sumW)
	}

	// weighted centroids
	var srcCentroid, tgtCentroid r3.Vector
	for i := range src {
		srcCentroid = srcCentroid.Add(src[i].Mul(weights[i]))
		tgtCentroid = tgtCentroid.Add(tgt[i].Mul(weights[i]))
	}
	srcCentroid = srcCentroid.Mul(1 / sumW)
	tgtCentroid = tgtCentroid.Mul(1 / sumW)

	// weighted cross-covariance H = sum w_i * (src_i - sc) (tgt_i - tc)^T
	var h [9]float64
	for i := range src {
		s := src[i].Sub(srcCentroid)
		d := tgt[i].Sub(tgtCentroid)
		w := weights[i]
		h[0] += w * s.X * d.X
		h[1] += w * s.X * d.Y
		h[2] += w * s.X * d.Z
		h[3] += w * s.Y * d.X
		h[4] += w * s.Y * d.Y
		h[5] += w * s.Y * d.Z
		h[6] += w * s.Z * d.X
		h[7] += w * s.Z * d.Y
		h[8] += w * s.Z * d.Z
	}
	hMat := mat.NewDense(3, 3, h[:])

	var svd mat.SVD
	if ok := svd.Factorize(hMat, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize cross-covariance matrix")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		// mirror case: flip the axis with the least support
		for row := 0; row < 3; row++ {
			v.Set(row, 2, -v.At(row, 2))
		}
		r.Mul(&v, u.T())
	}

	rotation, err := spatialmath.NewRotationMatrix(r.RawMatrix().Data)
	if err != nil {
		return nil, err
	}
	translation := tgtCentroid.Sub(rotation.Mul(srcCentroid))
	return spatialmath.NewRigidTransform(rotation, translation), nil
}
