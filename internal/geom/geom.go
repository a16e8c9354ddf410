// Package geom holds 2-D points and the transforms between the world frame
// and the vehicle-local frame (origin at the vehicle, x axis along its heading).
package geom

import (
	"math"

	"github.com/samber/lo"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Pose is a position plus heading in the world frame.
type Pose struct {
	X   float64
	Y   float64
	Psi float64
}

// ToLocal expresses world points in the frame of pose.
func ToLocal(pose Pose, pts []Point) []Point {
	c, s := math.Cos(pose.Psi), math.Sin(pose.Psi)
	return lo.Map(pts, func(p Point, _ int) Point {
		dx, dy := p.X-pose.X, p.Y-pose.Y
		return Point{X: dx*c + dy*s, Y: -dx*s + dy*c}
	})
}

// ToWorld is the inverse of ToLocal.
func ToWorld(pose Pose, pts []Point) []Point {
	c, s := math.Cos(pose.Psi), math.Sin(pose.Psi)
	return lo.Map(pts, func(p Point, _ int) Point {
		return Point{X: pose.X + p.X*c - p.Y*s, Y: pose.Y + p.X*s + p.Y*c}
	})
}

// Split returns the x and y coordinates as separate slices.
func Split(pts []Point) (xs, ys []float64) {
	xs = lo.Map(pts, func(p Point, _ int) float64 { return p.X })
	ys = lo.Map(pts, func(p Point, _ int) float64 { return p.Y })
	return xs, ys
}

// Zip is the inverse of Split; the shorter slice bounds the result.
func Zip(xs, ys []float64) []Point {
	n := min(len(xs), len(ys))
	out := make([]Point, n)
	for i := 0; i < n; i++ {
		out[i] = Point{X: xs[i], Y: ys[i]}
	}
	return out
}

// NormalizeAngle wraps a to (-pi, pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
