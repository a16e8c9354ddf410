package mpc

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
)

// Weights scale the squared deviations summed into the cost.
type Weights struct {
	CTE       float64 `yaml:"cte" json:"cte"`
	EPsi      float64 `yaml:"epsi" json:"epsi"`
	Speed     float64 `yaml:"speed" json:"speed"`
	Steer     float64 `yaml:"steer" json:"steer"`
	Accel     float64 `yaml:"accel" json:"accel"`
	SteerRate float64 `yaml:"steer_rate" json:"steer_rate"`
	AccelRate float64 `yaml:"accel_rate" json:"accel_rate"`
}

// Params are fixed for the lifetime of a Driver.
type Params struct {
	Horizon  int           `yaml:"horizon" json:"horizon"`
	Dt       float64       `yaml:"dt" json:"dt"`
	Lf       float64       `yaml:"lf" json:"lf"`
	RefSpeed float64       `yaml:"ref_speed" json:"ref_speed"`
	MaxSteer float64       `yaml:"max_steer" json:"max_steer"`
	MaxAccel float64       `yaml:"max_accel" json:"max_accel"`
	Budget   time.Duration `yaml:"solve_budget" json:"solve_budget"`
	Weights  Weights       `yaml:"weights" json:"weights"`
}

// defaultLf is the front axle to centre of gravity distance giving the turning
// radius observed in the reference simulator.
const defaultLf = 2.67

func DefaultParams() Params {
	return Params{
		Horizon:  15,
		Dt:       0.1,
		Lf:       defaultLf,
		RefSpeed: 40,
		MaxSteer: math.Pi / 8,
		MaxAccel: 1,
		Budget:   500 * time.Millisecond,
		Weights: Weights{
			CTE:       3000,
			EPsi:      500,
			Speed:     1,
			Steer:     1,
			Accel:     1,
			SteerRate: 200,
			AccelRate: 1,
		},
	}
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be positive and finite, got %g: %w", name, v, ErrInvalidParams)
	}
	return nil
}

func nonNegative(name string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be non-negative and finite, got %g: %w", name, v, ErrInvalidParams)
	}
	return nil
}

// Validate reports every out-of-range field at once.
func (p Params) Validate() error {
	var err error
	if p.Horizon < 2 {
		err = multierr.Append(err, fmt.Errorf("horizon must be at least 2, got %d: %w", p.Horizon, ErrInvalidParams))
	}
	if p.Budget <= 0 {
		err = multierr.Append(err, fmt.Errorf("solve budget must be positive, got %v: %w", p.Budget, ErrInvalidParams))
	}
	err = multierr.Combine(err,
		nonNegative("reference speed", p.RefSpeed),
		positive("dt", p.Dt),
		positive("lf", p.Lf),
		positive("max steer", p.MaxSteer),
		positive("max accel", p.MaxAccel),
		nonNegative("cte weight", p.Weights.CTE),
		nonNegative("epsi weight", p.Weights.EPsi),
		nonNegative("speed weight", p.Weights.Speed),
		nonNegative("steer weight", p.Weights.Steer),
		nonNegative("accel weight", p.Weights.Accel),
		nonNegative("steer rate weight", p.Weights.SteerRate),
		nonNegative("accel rate weight", p.Weights.AccelRate),
	)
	return err
}
