package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/nlp"
	"github.com/san-kum/mpctrack/internal/sim"
)

const (
	DefaultLatency     = 100 * time.Millisecond
	DefaultCycle       = 100 * time.Millisecond
	DefaultMaxSteerDeg = 25.0
	DefaultSubsteps    = 10
	DefaultDuration    = 60.0
	DefaultLookahead   = 6
	DefaultTrack       = "sine"
)

type Config struct {
	MPC     mpc.Params    `yaml:"mpc"`
	Solver  nlp.Options   `yaml:"solver"`
	Vehicle VehicleConfig `yaml:"vehicle"`
	Sim     SimConfig     `yaml:"sim"`
}

type VehicleConfig struct {
	// MaxSteerDeg is the steering angle the actuator reports as full lock.
	MaxSteerDeg float64       `yaml:"max_steer_deg"`
	InvertSteer bool          `yaml:"invert_steer"`
	Latency     time.Duration `yaml:"latency"`
	Fallback    string        `yaml:"fallback"`
}

type SimConfig struct {
	Track        string        `yaml:"track"`
	TrackFile    string        `yaml:"track_file"`
	Integrator   string        `yaml:"integrator"`
	Cycle        time.Duration `yaml:"cycle"`
	Substeps     int           `yaml:"substeps"`
	Duration     float64       `yaml:"duration"`
	InitialSpeed float64       `yaml:"initial_speed"`
	Offset       float64       `yaml:"offset"`
	Lookahead    int           `yaml:"lookahead"`
}

func DefaultConfig() *Config {
	return &Config{
		MPC:    mpc.DefaultParams(),
		Solver: nlp.DefaultOptions(),
		Vehicle: VehicleConfig{
			MaxSteerDeg: DefaultMaxSteerDeg,
			Latency:     DefaultLatency,
			Fallback:    "hold",
		},
		Sim: SimConfig{
			Track:      DefaultTrack,
			Integrator: "rk4",
			Cycle:      DefaultCycle,
			Substeps:   DefaultSubsteps,
			Duration:   DefaultDuration,
			Lookahead:  DefaultLookahead,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid field, not just the first.
func (c *Config) Validate() error {
	err := c.MPC.Validate()

	s := c.Solver
	if s.Tolerance <= 0 || s.UsableTolerance < s.Tolerance {
		err = multierr.Append(err, fmt.Errorf("solver: need 0 < tolerance <= usable_tolerance, got %g and %g", s.Tolerance, s.UsableTolerance))
	}
	if !slices.Contains(nlp.Engines(), s.Engine) {
		err = multierr.Append(err, fmt.Errorf("solver: unknown engine %q (want one of %v)", s.Engine, nlp.Engines()))
	}
	if s.Accuracy <= 0 || s.MaxIterations < 1 {
		err = multierr.Append(err, fmt.Errorf("solver: slsqp needs positive accuracy and max_iterations, got %g and %d", s.Accuracy, s.MaxIterations))
	}
	if s.InitialPenalty <= 0 || s.PenaltyGrowth <= 1 || s.MaxPenalty < s.InitialPenalty {
		err = multierr.Append(err, fmt.Errorf("solver: invalid penalty schedule %g x%g up to %g", s.InitialPenalty, s.PenaltyGrowth, s.MaxPenalty))
	}
	if s.MaxOuter < 1 || s.MaxInner < 1 {
		err = multierr.Append(err, fmt.Errorf("solver: iteration limits must be positive"))
	}

	v := c.Vehicle
	if v.MaxSteerDeg <= 0 {
		err = multierr.Append(err, fmt.Errorf("vehicle: max_steer_deg must be positive, got %g", v.MaxSteerDeg))
	}
	if v.Latency < 0 {
		err = multierr.Append(err, fmt.Errorf("vehicle: latency must not be negative, got %v", v.Latency))
	}
	if v.Fallback != "hold" && v.Fallback != "brake" {
		err = multierr.Append(err, fmt.Errorf("vehicle: unknown fallback %q (want hold or brake)", v.Fallback))
	}

	sc := c.Sim
	if sc.Cycle <= 0 {
		err = multierr.Append(err, fmt.Errorf("sim: cycle must be positive, got %v", sc.Cycle))
	}
	if sc.Substeps < 1 {
		err = multierr.Append(err, fmt.Errorf("sim: substeps must be at least 1, got %d", sc.Substeps))
	}
	if sc.Duration <= 0 {
		err = multierr.Append(err, fmt.Errorf("sim: duration must be positive, got %g", sc.Duration))
	}
	if sc.Lookahead < 4 {
		err = multierr.Append(err, fmt.Errorf("sim: lookahead must cover at least 4 waypoints for a cubic, got %d", sc.Lookahead))
	}
	if sc.Integrator != "rk4" && sc.Integrator != "euler" {
		err = multierr.Append(err, fmt.Errorf("sim: unknown integrator %q", sc.Integrator))
	}
	return err
}

func (c *Config) MPCParams() mpc.Params { return c.MPC }

func (c *Config) SolverOptions() nlp.Options { return c.Solver }

// RunConfig is the simulator's view of the sim and vehicle sections.
func (c *Config) RunConfig() sim.Config {
	return sim.Config{
		Cycle:        c.Sim.Cycle,
		Substeps:     c.Sim.Substeps,
		Duration:     c.Sim.Duration,
		Latency:      c.Vehicle.Latency,
		Lookahead:    c.Sim.Lookahead,
		InitialSpeed: c.Sim.InitialSpeed,
		Offset:       c.Sim.Offset,
	}
}
