package mathx

import "math"

// Epsilon is the tolerance used by the approximate comparisons below.
const Epsilon = 1e-6

type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) Len() float64 { return math.Sqrt(a.Dot(a)) }

func (a Vec3) ApproxEqual(b Vec3, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

// Quat is a rotation quaternion (X, Y, Z vector part, W scalar part).
type Quat struct {
	X, Y, Z, W float64
}

// Identity rotation.
var Identity = Quat{W: 1}

// AxisAngle builds a rotation of rad radians about axis.
func AxisAngle(axis Vec3, rad float64) Quat {
	l := axis.Len()
	if l == 0 {
		return Identity
	}
	s := math.Sin(rad/2) / l
	return Quat{axis.X * s, axis.Y * s, axis.Z * s, math.Cos(rad / 2)}
}

// Mul returns q*r: applying r first, then q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

func (q Quat) Conjugate() Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

func (q Quat) norm2() float64 { return q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W }

func (q Quat) Inverse() Quat {
	n := q.norm2()
	if n == 0 {
		return Identity
	}
	c := q.Conjugate()
	return Quat{c.X / n, c.Y / n, c.Z / n, c.W / n}
}

func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.norm2())
	if n == 0 {
		return Identity
	}
	return Quat{q.X / n, q.Y / n, q.Z / n, q.W / n}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// ApproxEqual treats q and -q as the same rotation.
func (q Quat) ApproxEqual(r Quat, eps float64) bool {
	d := math.Abs(q.X*r.X + q.Y*r.Y + q.Z*r.Z + q.W*r.W)
	return math.Abs(d-math.Sqrt(q.norm2()*r.norm2())) <= eps
}

// Pose is a position and rotation, either world space or relative to a parent.
type Pose struct {
	Pos Vec3
	Rot Quat
}

// Compose returns the absolute pose of a child with local pose local under parent.
func Compose(parent, local Pose) Pose {
	return Pose{
		Pos: parent.Pos.Add(parent.Rot.Rotate(local.Pos)),
		Rot: parent.Rot.Mul(local.Rot).Normalize(),
	}
}

// Relative returns the local pose that places abs under parent.
// Compose(parent, Relative(parent, abs)) == abs.
func Relative(parent, abs Pose) Pose {
	inv := parent.Rot.Inverse()
	return Pose{
		Pos: inv.Rotate(abs.Pos.Sub(parent.Pos)),
		Rot: inv.Mul(abs.Rot).Normalize(),
	}
}

func (p Pose) ApproxEqual(o Pose, eps float64) bool {
	return p.Pos.ApproxEqual(o.Pos, eps) && p.Rot.ApproxEqual(o.Rot, eps)
}
