package marker

import "math"

// IdentityQuaternion returns the no-rotation orientation.
func IdentityQuaternion() Quaternion {
	return Quaternion{X: 0, Y: 0, Z: 0, W: 1}
}

// IdentityPose returns a pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: IdentityQuaternion()}
}

// Norm returns the quaternion's Euclidean norm.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalized returns a unit-length copy of q. A zero quaternion normalizes
// to the identity so a default-constructed orientation stays renderable.
func (q Quaternion) Normalized() Quaternion {
	n := q.Norm()
	if n == 0 {
		return IdentityQuaternion()
	}
	return Quaternion{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

// Distance returns the Euclidean distance between two points.
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Add returns the point translated by v.
func (p Point) Add(v Vector3) Point {
	return Point{X: p.X + v.X, Y: p.Y + v.Y, Z: p.Z + v.Z}
}

// Sub returns the vector from other to p.
func (p Point) Sub(other Point) Vector3 {
	return Vector3{X: p.X - other.X, Y: p.Y - other.Y, Z: p.Z - other.Z}
}

// Scaled returns the vector scaled by f.
func (v Vector3) Scaled(f float64) Vector3 {
	return Vector3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// Uniform returns a vector with all three components set to s.
func Uniform(s float64) Vector3 {
	return Vector3{X: s, Y: s, Z: s}
}
