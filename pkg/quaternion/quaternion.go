// Package quaternion implements the small amount of quaternion algebra the
// tracker server needs to translate device-reported orientation into the
// host's world frame. No example in the reference corpus ships a
// quaternion type, so this is built directly on the standard math package.
package quaternion

import "math"

// Quaternion is a Hamilton quaternion (w + xi + yj + zk).
type Quaternion struct {
	W, X, Y, Z float64
}

// Identity is the no-rotation quaternion.
var Identity = Quaternion{W: 1}

// FromRotationVector builds the quaternion representing a rotation of
// |v| radians about the axis v/|v|, matching the construction the
// owoTrack/SlimeVR wire protocol uses for its axes-offset constant.
func FromRotationVector(x, y, z float64) Quaternion {
	angle := math.Sqrt(x*x + y*y + z*z)
	if angle == 0 {
		return Identity
	}

	half := angle / 2
	s := math.Sin(half) / angle

	return Quaternion{
		W: math.Cos(half),
		X: x * s,
		Y: y * s,
		Z: z * s,
	}
}

// Mul returns q*r (Hamilton product), i.e. applying r first, then q.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}
