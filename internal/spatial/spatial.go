// Package spatial holds the small amount of 3-D rigid-body algebra the
// dynamics engine needs: rotation matrices, poses and inertia bodies.
// Vectors are gonum r3.Vec values.
package spatial

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mat3 is a row-major 3×3 matrix.
type Mat3 [3][3]float64

// Identity returns the 3×3 identity.
func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Diag returns diag(x, y, z).
func Diag(x, y, z float64) Mat3 {
	return Mat3{{x, 0, 0}, {0, y, 0}, {0, 0, z}}
}

// Symmetric builds a symmetric tensor from its six independent entries.
func Symmetric(xx, yy, zz, xy, xz, yz float64) Mat3 {
	return Mat3{{xx, xy, xz}, {xy, yy, yz}, {xz, yz, zz}}
}

// MulVec returns m·v.
func (m Mat3) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// MulVecT returns mᵀ·v.
func (m Mat3) MulVecT(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[1][0]*v.Y + m[2][0]*v.Z,
		Y: m[0][1]*v.X + m[1][1]*v.Y + m[2][1]*v.Z,
		Z: m[0][2]*v.X + m[1][2]*v.Y + m[2][2]*v.Z,
	}
}

// Mul returns m·n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return out
}

func (m Mat3) T() Mat3 {
	return Mat3{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}

func (m Mat3) Add(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][j] + n[i][j]
		}
	}
	return out
}

func (m Mat3) Scale(f float64) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][j] * f
		}
	}
	return out
}

// IsSymmetric reports whether m equals its transpose within tol.
func (m Mat3) IsSymmetric(tol float64) bool {
	return math.Abs(m[0][1]-m[1][0]) <= tol &&
		math.Abs(m[0][2]-m[2][0]) <= tol &&
		math.Abs(m[1][2]-m[2][1]) <= tol
}

func RotX(a float64) Mat3 {
	s, c := math.Sincos(a)
	return Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

func RotY(a float64) Mat3 {
	s, c := math.Sincos(a)
	return Mat3{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

func RotZ(a float64) Mat3 {
	s, c := math.Sincos(a)
	return Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

// RotAxis is the rotation by angle about a unit axis (Rodrigues' formula).
func RotAxis(axis r3.Vec, angle float64) Mat3 {
	s, c := math.Sincos(angle)
	v := 1 - c
	x, y, z := axis.X, axis.Y, axis.Z
	return Mat3{
		{c + x*x*v, x*y*v - z*s, x*z*v + y*s},
		{y*x*v + z*s, c + y*y*v, y*z*v - x*s},
		{z*x*v - y*s, z*y*v + x*s, c + z*z*v},
	}
}

// RPY is the URDF roll-pitch-yaw rotation Rz(yaw)·Ry(pitch)·Rx(roll).
func RPY(roll, pitch, yaw float64) Mat3 {
	return RotZ(yaw).Mul(RotY(pitch)).Mul(RotX(roll))
}

// Pose is a rigid transform: a point p in the child frame maps to R·p + P in the parent.
type Pose struct {
	R Mat3
	P r3.Vec
}

// IdentityPose returns the transform that changes nothing.
func IdentityPose() Pose {
	return Pose{R: Identity()}
}

// Compose returns the pose of a frame given relative to q, expressed in p's parent.
func (p Pose) Compose(q Pose) Pose {
	return Pose{R: p.R.Mul(q.R), P: r3.Add(p.P, p.R.MulVec(q.P))}
}

// Apply maps a child-frame point into the parent frame.
func (p Pose) Apply(v r3.Vec) r3.Vec {
	return r3.Add(p.P, p.R.MulVec(v))
}
