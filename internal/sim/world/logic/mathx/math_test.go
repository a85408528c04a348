package mathx

import (
	"math"
	"testing"
)

func TestQuatRotate(t *testing.T) {
	q := AxisAngle(Vec3{Z: 1}, math.Pi/2)
	got := q.Rotate(Vec3{X: 1})
	if !got.ApproxEqual(Vec3{Y: 1}, Epsilon) {
		t.Fatalf("rotate x by 90deg about z: got %+v", got)
	}
	back := q.Inverse().Rotate(got)
	if !back.ApproxEqual(Vec3{X: 1}, Epsilon) {
		t.Fatalf("inverse rotate: got %+v", back)
	}
}

func TestComposeRelative_RoundTrip(t *testing.T) {
	parents := []Pose{
		{Pos: Vec3{}, Rot: Identity},
		{Pos: Vec3{10, 20, 30}, Rot: AxisAngle(Vec3{Z: 1}, math.Pi/3)},
		{Pos: Vec3{-4, 2, 128}, Rot: AxisAngle(Vec3{1, 1, 0}, 1.2)},
	}
	locals := []Pose{
		{Pos: Vec3{1, 0, 0}, Rot: Identity},
		{Pos: Vec3{0.5, -2, 3}, Rot: AxisAngle(Vec3{Y: 1}, 0.7)},
	}
	for i, parent := range parents {
		for j, local := range locals {
			abs := Compose(parent, local)
			rel := Relative(parent, abs)
			if !rel.ApproxEqual(local, 1e-9) {
				t.Fatalf("parent %d local %d: Relative(Compose)=%+v want %+v", i, j, rel, local)
			}
		}
	}
}

func TestQuatApproxEqual_Sign(t *testing.T) {
	q := AxisAngle(Vec3{X: 1}, 0.4)
	neg := Quat{-q.X, -q.Y, -q.Z, -q.W}
	if !q.ApproxEqual(neg, Epsilon) {
		t.Fatalf("q and -q should be the same rotation")
	}
	if q.ApproxEqual(Identity, Epsilon) {
		t.Fatalf("rotation should differ from identity")
	}
}
