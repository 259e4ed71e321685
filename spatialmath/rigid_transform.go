package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// RigidTransform represents a distance-preserving 3D transform: a proper
// rotation followed by a translation. The zero value is not usable; construct
// with NewRigidTransform or NewZeroRigidTransform.
type RigidTransform struct {
	rotation    *RotationMatrix
	translation r3.Vector
}

// NewRigidTransform creates a transform from a rotation and a translation.
// The rotation is not copied; callers must not modify it afterwards.
func NewRigidTransform(rotation *RotationMatrix, translation r3.Vector) *RigidTransform {
	return &RigidTransform{rotation: rotation, translation: translation}
}

// NewZeroRigidTransform returns the identity transform.
func NewZeroRigidTransform() *RigidTransform {
	return &RigidTransform{rotation: NewIdentityRotationMatrix()}
}

// Rotation returns the rotation component.
func (tf *RigidTransform) Rotation() *RotationMatrix {
	return tf.rotation
}

// Translation returns the translation component.
func (tf *RigidTransform) Translation() r3.Vector {
	return tf.translation
}

// TransformPoint applies the transform to a point: R*p + t.
func (tf *RigidTransform) TransformPoint(p r3.Vector) r3.Vector {
	return tf.rotation.Mul(p).Add(tf.translation)
}

// Invert returns the inverse transform, such that
// tf.Invert().TransformPoint(tf.TransformPoint(p)) == p.
func (tf *RigidTransform) Invert() *RigidTransform {
	rInv := tf.rotation.Transpose()
	return &RigidTransform{
		rotation:    rInv,
		translation: rInv.Mul(tf.translation).Mul(-1),
	}
}

// Compose returns the single transform equivalent to applying a first and
// then b, so Compose(a, b).TransformPoint(p) == b.TransformPoint(a.TransformPoint(p)).
func Compose(a, b *RigidTransform) *RigidTransform {
	return &RigidTransform{
		rotation:    b.rotation.MatMul(a.rotation),
		translation: b.rotation.Mul(a.translation).Add(b.translation),
	}
}

// AlmostEqual returns whether the two transforms agree to within tol, compared
// entrywise on the rotation and componentwise on the translation.
func (tf *RigidTransform) AlmostEqual(other *RigidTransform, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(tf.rotation.At(i, j)-other.rotation.At(i, j)) > tol {
				return false
			}
		}
	}
	diff := tf.translation.Sub(other.translation)
	return math.Abs(diff.X) <= tol && math.Abs(diff.Y) <= tol && math.Abs(diff.Z) <= tol
}

// String provides an easy way to view the transform while debugging.
func (tf *RigidTransform) String() string {
	euler := QuatToEuler(tf.rotation.Quaternion())
	return fmt.Sprintf("RigidTransform(rpy deg: %.4f %.4f %.4f, t: %.4f %.4f %.4f)",
		euler[0], euler[1], euler[2], tf.translation.X, tf.translation.Y, tf.translation.Z)
}
