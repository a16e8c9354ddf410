// Package track provides reference paths as ordered waypoints and the
// lookahead window the tracker fits its cubic to.
package track

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/san-kum/mpctrack/internal/geom"
)

var (
	ErrTooShort    = errors.New("track: need at least 4 waypoints")
	ErrUnknown     = errors.New("track: unknown track")
	ErrBadSpacing  = errors.New("track: spacing must be positive")
	ErrBadWaypoint = errors.New("track: malformed waypoint")
)

type Track struct {
	Name   string
	Points []geom.Point
	// Closed tracks wrap around; open ones end at their last point.
	Closed bool
}

func New(name string, pts []geom.Point, closed bool) (*Track, error) {
	if len(pts) < 4 {
		return nil, fmt.Errorf("%s has %d points: %w", name, len(pts), ErrTooShort)
	}
	return &Track{Name: name, Points: pts, Closed: closed}, nil
}

func (t *Track) Len() int { return len(t.Points) }

func (t *Track) index(i int) int {
	n := len(t.Points)
	if t.Closed {
		return ((i % n) + n) % n
	}
	return min(max(i, 0), n-1)
}

func (t *Track) At(i int) geom.Point { return t.Points[t.index(i)] }

// Length is the polyline length, including the closing segment when closed.
func (t *Track) Length() float64 {
	var l float64
	for i := 1; i < len(t.Points); i++ {
		l += t.Points[i-1].Dist(t.Points[i])
	}
	if t.Closed {
		l += t.Points[len(t.Points)-1].Dist(t.Points[0])
	}
	return l
}

// searchSpan bounds the forward search from a hint so that crossings on a
// figure eight do not snap to the other lobe.
const searchSpan = 40

// Nearest returns the index of the waypoint closest to p. A negative hint
// searches the whole track; otherwise only a window around the hint.
func (t *Track) Nearest(p geom.Point, hint int) int {
	n := len(t.Points)
	from, to := 0, n-1
	if hint >= 0 && n > 2*searchSpan {
		from, to = hint-2, hint+searchSpan
		if !t.Closed {
			from, to = max(from, 0), min(to, n-1)
		}
	}
	best, bestD := t.index(from), math.Inf(1)
	for i := from; i <= to; i++ {
		if d := t.At(i).Dist(p); d < bestD {
			best, bestD = t.index(i), d
		}
	}
	return best
}

// Window returns count waypoints starting one before from, so the vehicle
// always sits inside the fitted span. Open tracks return fewer points near
// their end.
func (t *Track) Window(from, count int) []geom.Point {
	start := from - 1
	if !t.Closed {
		start = max(start, 0)
		count = min(count, len(t.Points)-start)
	}
	return lo.Times(max(count, 0), func(i int) geom.Point {
		return t.At(start + i)
	})
}

// Done reports whether an open track has too few points left ahead of idx
// to fit a cubic.
func (t *Track) Done(idx int) bool {
	return !t.Closed && len(t.Points)-idx < 4
}

// Heading is the direction of the segment leaving waypoint i.
func (t *Track) Heading(i int) float64 {
	a, b := t.At(i), t.At(i+1)
	if !t.Closed && t.index(i) == len(t.Points)-1 {
		a, b = t.At(i-1), t.At(i)
	}
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

// Start is a pose on the first waypoint facing along the track, shifted
// sideways by offset (positive to the left).
func (t *Track) Start(offset float64) geom.Pose {
	p, psi := t.At(0), t.Heading(0)
	return geom.Pose{
		X:   p.X - offset*math.Sin(psi),
		Y:   p.Y + offset*math.Cos(psi),
		Psi: psi,
	}
}

// Errors measures the pose against the segment around waypoint idx: the
// signed lateral distance (positive when the vehicle is left of the track)
// and the heading error.
func (t *Track) Errors(pose geom.Pose, idx int) (cte, epsi float64) {
	a := t.At(idx)
	psi := t.Heading(idx)
	dx, dy := pose.X-a.X, pose.Y-a.Y
	cte = -dx*math.Sin(psi) + dy*math.Cos(psi)
	epsi = geom.NormalizeAngle(pose.Psi - psi)
	return cte, epsi
}
