package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/mpctrack/internal/actuator"
	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/polyfit"
)

var ErrNoWaypoints = errors.New("control: not enough waypoints to fit a path")

// Observation is what the vehicle reports at the start of a cycle.
type Observation struct {
	Pose      geom.Pose
	Speed     float64
	Waypoints []geom.Point
	// Active is the command in effect until the new one lands.
	Active actuator.Command
}

// Plan is the outcome of one cycle. Local, Predicted and State are in the
// vehicle frame at observation time.
type Plan struct {
	Command   actuator.Command
	Path      polyfit.Poly
	Local     []geom.Point
	Predicted []geom.Point
	State     mpc.State
	Status    mpc.Status
	Cost      float64
	SolveTime time.Duration
	Fallback  bool
}

type Planner interface {
	Plan(ctx context.Context, obs Observation) (*Plan, error)
}

// fit moves the waypoints into the vehicle frame and fits the cubic.
func fit(obs Observation) ([]geom.Point, polyfit.Poly, error) {
	if len(obs.Waypoints) < 4 {
		return nil, nil, fmt.Errorf("%d waypoints: %w", len(obs.Waypoints), ErrNoWaypoints)
	}
	local := geom.ToLocal(obs.Pose, obs.Waypoints)
	xs, ys := geom.Split(local)
	path, err := polyfit.Fit(xs, ys, 3)
	if err != nil {
		return nil, nil, fmt.Errorf("fit waypoints: %w", err)
	}
	return local, path, nil
}
