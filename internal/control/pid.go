package control

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/san-kum/mpctrack/internal/actuator"
	"github.com/san-kum/mpctrack/internal/mpc"
)

type PID struct {
	Kp       float64
	Ki       float64
	Kd       float64
	integral float64
	prevErr  float64
	first    bool
}

func NewPID(kp, ki, kd float64) *PID {
	return &PID{
		Kp:    kp,
		Ki:    ki,
		Kd:    kd,
		first: true,
	}
}

// Update advances the controller by dt with the new error.
func (p *PID) Update(err, dt float64) float64 {
	if p.first || dt <= 0 {
		p.prevErr = err
		p.first = false
		return p.Kp * err
	}

	p.integral += err * dt
	derivative := (err - p.prevErr) / dt
	p.prevErr = err

	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"kp": p.Kp,
		"ki": p.Ki,
		"kd": p.Kd,
	}
}

func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "kp":
		p.Kp = value
	case "ki":
		p.Ki = value
	case "kd":
		p.Kd = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}

// PIDTracker steers on cross-track error and throttles on speed error,
// both read off the same fitted cubic the predictive tracker uses.
type PIDTracker struct {
	Steer    *PID
	Speed    *PID
	Params   mpc.Params
	Interval float64
}

func NewPIDTracker(p mpc.Params, interval float64) *PIDTracker {
	return &PIDTracker{
		Steer:    NewPID(0.15, 0.001, 0.5),
		Speed:    NewPID(0.5, 0.01, 0),
		Params:   p,
		Interval: interval,
	}
}

func (c *PIDTracker) Plan(_ context.Context, obs Observation) (*Plan, error) {
	local, path, err := fit(obs)
	if err != nil {
		return nil, err
	}
	state := mpc.InitialState(path, obs.Speed)

	// path to the left (positive cte) needs negative steer
	steer := -c.Steer.Update(state.CTE, c.Interval)
	accel := c.Speed.Update(c.Params.RefSpeed-obs.Speed, c.Interval)

	return &Plan{
		Command: actuator.Command{
			Steer: lo.Clamp(steer, -c.Params.MaxSteer, c.Params.MaxSteer),
			Accel: lo.Clamp(accel, -c.Params.MaxAccel, c.Params.MaxAccel),
		},
		Path:   path,
		Local:  local,
		State:  state,
		Status: mpc.Converged,
	}, nil
}
