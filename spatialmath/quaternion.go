package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/viam-labs/cloudalign/utils"
)

// Norm returns the norm of the quaternion.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// Normalize a quaternion, returning a unit quaternion.
func Normalize(q quat.Number) quat.Number {
	length := Norm(q)
	if math.Abs(length-1.0) < 1e-10 {
		return q
	}
	if length == 0 {
		return quat.Number{Real: 1}
	}
	if length == math.Inf(1) {
		length = float64(math.MaxFloat64)
	}
	return quat.Number{Real: q.Real / length, Imag: q.Imag / length, Jmag: q.Jmag / length, Kmag: q.Kmag / length}
}

// QuatToEuler converts a rotation unit quaternion to euler angles in degrees,
// ordered roll (x), pitch (y), yaw (z).
// See https://en.wikipedia.org/wiki/Conversion_between_quaternions_and_Euler_angles
func QuatToEuler(q quat.Number) []float64 {
	w := q.Real
	x := q.Imag
	y := q.Jmag
	z := q.Kmag

	angles := []float64{
		math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y)),
		math.Asin(utils.Clamp(2*(w*y-x*z), -1, 1)),
		math.Atan2(2*(w*z+y*x), 1-2*(y*y+z*z)),
	}
	for i := range angles {
		angles[i] = utils.RadToDeg(angles[i])
	}
	return angles
}
