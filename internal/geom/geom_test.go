package geom

import (
	"math"
	"testing"
)

func TestToLocal(t *testing.T) {
	pose := Pose{X: 1, Y: 2, Psi: math.Pi / 2}
	got := ToLocal(pose, []Point{{1, 3}, {0, 2}})

	// straight ahead of a north-facing vehicle
	if math.Abs(got[0].X-1) > 1e-12 || math.Abs(got[0].Y) > 1e-12 {
		t.Errorf("ahead point = %+v, want (1, 0)", got[0])
	}
	// to the west is to the left
	if math.Abs(got[1].X) > 1e-12 || math.Abs(got[1].Y-1) > 1e-12 {
		t.Errorf("left point = %+v, want (0, 1)", got[1])
	}
}

func TestToWorldInvertsToLocal(t *testing.T) {
	pose := Pose{X: -3, Y: 7, Psi: 0.7}
	pts := []Point{{0, 0}, {10, -4}, {-2.5, 3.3}}

	back := ToWorld(pose, ToLocal(pose, pts))
	for i := range pts {
		if pts[i].Dist(back[i]) > 1e-9 {
			t.Errorf("point %d: got %+v, want %+v", i, back[i], pts[i])
		}
	}
}

func TestSplitZip(t *testing.T) {
	pts := []Point{{1, 2}, {3, 4}}
	xs, ys := Split(pts)
	if xs[1] != 3 || ys[0] != 2 {
		t.Errorf("Split = %v %v", xs, ys)
	}
	if z := Zip(xs, ys[:1]); len(z) != 1 || z[0] != pts[0] {
		t.Errorf("Zip = %v", z)
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-5 * math.Pi / 2, -math.Pi / 2},
	}
	for _, tt := range tests {
		if got := NormalizeAngle(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
