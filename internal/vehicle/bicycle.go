// Package vehicle is the plant side of the loop: a continuous kinematic
// bicycle integrated by the simulator, and the latency prediction the
// tracker applies before each solve.
package vehicle

import (
	"fmt"
	"math"

	"github.com/san-kum/mpctrack/internal/dynamo"
	"github.com/san-kum/mpctrack/internal/geom"
)

// State layout: [x, y, psi, v]. Control layout: [steer, accel].
const (
	IdxX = iota
	IdxY
	IdxPsi
	IdxV
)

const (
	IdxSteer = iota
	IdxAccel
)

type Bicycle struct {
	Lf float64
	// MinSpeed stops the plant from reversing under sustained braking.
	MinSpeed float64
}

func NewBicycle(lf float64) *Bicycle {
	return &Bicycle{Lf: lf}
}

func (b *Bicycle) StateDim() int {
	return 4
}

func (b *Bicycle) ControlDim() int {
	return 2
}

// Derive uses the same steering sign as the predictor: positive steer
// turns clockwise.
func (b *Bicycle) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	psi, v := x[IdxPsi], x[IdxV]
	steer, accel := u[IdxSteer], u[IdxAccel]

	if v <= b.MinSpeed && accel < 0 {
		accel = 0
	}
	return dynamo.State{
		v * math.Cos(psi),
		v * math.Sin(psi),
		-v / b.Lf * steer,
		accel,
	}
}

func (b *Bicycle) GetParams() map[string]float64 {
	return map[string]float64{
		"lf":        b.Lf,
		"min_speed": b.MinSpeed,
	}
}

func (b *Bicycle) SetParam(name string, value float64) error {
	switch name {
	case "lf":
		if value <= 0 {
			return fmt.Errorf("lf must be positive, got %g", value)
		}
		b.Lf = value
	case "min_speed":
		b.MinSpeed = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}

// NewState packs a world pose and speed into a plant state.
func NewState(p geom.Pose, v float64) dynamo.State {
	return dynamo.State{p.X, p.Y, p.Psi, v}
}

func PoseOf(x dynamo.State) geom.Pose {
	return geom.Pose{X: x[IdxX], Y: x[IdxY], Psi: x[IdxPsi]}
}

func SpeedOf(x dynamo.State) float64 {
	return x[IdxV]
}
