// Package automation runs scripted batches of simulations: named scenario
// files and Monte Carlo robustness trials over the initial conditions.
package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/mpctrack/internal/config"
	"github.com/san-kum/mpctrack/internal/optim"
	"github.com/san-kum/mpctrack/internal/sim"
)

var ErrInvalidScenario = errors.New("automation: invalid scenario")

// Scenario defines a scripted batch of simulations.
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Workers     int       `yaml:"workers"`
	Runs        []RunSpec `yaml:"runs"`
}

// RunSpec is one simulation in a scenario. Unset fields keep the base
// configuration.
type RunSpec struct {
	Name       string             `yaml:"name"`
	Preset     string             `yaml:"preset"`
	Track      string             `yaml:"track"`
	TrackFile  string             `yaml:"track_file"`
	Controller string             `yaml:"controller"`
	Latency    *time.Duration     `yaml:"latency"`
	Duration   float64            `yaml:"duration"`
	Offset     float64            `yaml:"offset"`
	Params     map[string]float64 `yaml:"params"`
	Save       bool               `yaml:"save"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if len(s.Runs) == 0 {
		return fmt.Errorf("%w: no runs", ErrInvalidScenario)
	}
	seen := make(map[string]bool, len(s.Runs))
	for i, r := range s.Runs {
		if r.Name == "" {
			return fmt.Errorf("%w: run %d has no name", ErrInvalidScenario, i+1)
		}
		if seen[r.Name] {
			return fmt.Errorf("%w: duplicate run %q", ErrInvalidScenario, r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// ControllerName defaults to the predictive tracker.
func (r RunSpec) ControllerName() string {
	if r.Controller == "" {
		return "mpc"
	}
	return r.Controller
}

// Resolve applies the run on top of base, or on top of its preset.
func (r RunSpec) Resolve(base *config.Config) (*config.Config, error) {
	cfg := *base
	if r.Preset != "" {
		p := config.GetPreset(r.Preset)
		if p == nil {
			return nil, fmt.Errorf("run %s: unknown preset %q", r.Name, r.Preset)
		}
		cfg = *p
	}

	if r.Track != "" {
		cfg.Sim.Track = r.Track
	}
	if r.TrackFile != "" {
		cfg.Sim.TrackFile = r.TrackFile
	}
	if r.Latency != nil {
		cfg.Vehicle.Latency = *r.Latency
	}
	if r.Duration > 0 {
		cfg.Sim.Duration = r.Duration
	}
	if r.Offset != 0 {
		cfg.Sim.Offset = r.Offset
	}
	for name, v := range r.Params {
		if err := optim.SetParam(&cfg.MPC, name, v); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.Name, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("run %s: %w", r.Name, err)
	}
	return &cfg, nil
}

// Runner builds and runs the simulation for one resolved run.
type Runner func(ctx context.Context, spec RunSpec, cfg *config.Config) (*sim.Result, error)

type Outcome struct {
	Spec   RunSpec
	Config *config.Config
	Result *sim.Result
	Err    error
}

// RunScenario executes every run, scenario.Workers at a time. Outcomes are
// in scenario order; a failed run does not stop the others.
func RunScenario(ctx context.Context, scenario *Scenario, base *config.Config, run Runner) []Outcome {
	outcomes := make([]Outcome, len(scenario.Runs))
	jobs := make([]sim.Job, 0, len(scenario.Runs))
	index := make([]int, 0, len(scenario.Runs))

	for i, spec := range scenario.Runs {
		outcomes[i].Spec = spec
		cfg, err := spec.Resolve(base)
		if err != nil {
			outcomes[i].Err = err
			continue
		}
		outcomes[i].Config = cfg
		jobs = append(jobs, func(ctx context.Context) (*sim.Result, error) {
			return run(ctx, spec, cfg)
		})
		index = append(index, i)
	}

	results, errs := sim.RunAll(ctx, jobs, scenario.Workers)
	for j, i := range index {
		outcomes[i].Result = results[j]
		outcomes[i].Err = errs[j]
	}
	return outcomes
}

// MonteCarloConfig perturbs the starting offset and speed uniformly within
// the given spreads.
type MonteCarloConfig struct {
	Trials       int
	OffsetSpread float64
	SpeedSpread  float64
	// MaxCTE is the largest cross-track error a stable trial may reach.
	MaxCTE  float64
	Seed    int64
	Workers int
}

// MonteCarloResult holds statistics from Monte Carlo runs
type MonteCarloResult struct {
	Trial        int
	Offset       float64
	InitialSpeed float64
	MaxCTE       float64
	Stable       bool
	Err          error
}

// RunMonteCarlo executes Trials perturbed copies of base. Perturbations are
// drawn up front, so a seed fixes them regardless of scheduling.
func RunMonteCarlo(ctx context.Context, mc MonteCarloConfig, base *config.Config, controller string, run Runner) []MonteCarloResult {
	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	results := make([]MonteCarloResult, mc.Trials)
	jobs := make([]sim.Job, mc.Trials)
	for trial := range results {
		cfg := *base
		cfg.Sim.Offset = base.Sim.Offset + (rng.Float64()-0.5)*2*mc.OffsetSpread
		cfg.Sim.InitialSpeed = math.Max(0, base.Sim.InitialSpeed+(rng.Float64()-0.5)*2*mc.SpeedSpread)
		results[trial] = MonteCarloResult{Trial: trial, Offset: cfg.Sim.Offset, InitialSpeed: cfg.Sim.InitialSpeed}

		spec := RunSpec{Name: fmt.Sprintf("trial-%d", trial), Controller: controller}
		jobs[trial] = func(ctx context.Context) (*sim.Result, error) {
			return run(ctx, spec, &cfg)
		}
	}

	res, errs := sim.RunAll(ctx, jobs, mc.Workers)
	for i := range results {
		results[i].Err = errs[i]
		if res[i] == nil {
			continue
		}
		for _, st := range res[i].Steps {
			results[i].MaxCTE = math.Max(results[i].MaxCTE, math.Abs(st.CTE))
		}
		results[i].Stable = errs[i] == nil && results[i].MaxCTE <= mc.MaxCTE
	}
	return results
}

// StableFraction is the share of trials that stayed on the track.
func StableFraction(results []MonteCarloResult) float64 {
	if len(results) == 0 {
		return 0
	}
	n := 0
	for _, r := range results {
		if r.Stable {
			n++
		}
	}
	return float64(n) / float64(len(results))
}
