// Package optim tunes controller parameters by exhaustive grid search over
// closed-loop simulations.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/sim"
)

var (
	ErrEmptyGrid    = errors.New("optim: empty grid")
	ErrUnknownParam = errors.New("optim: unknown parameter")
	ErrNoTrial      = errors.New("optim: no trial produced the metric")
)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64, workers int) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: workers}
}

// Trial is one grid point and its score; Err is set when the run failed.
type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

// Points enumerates every combination in grid order.
func (g *GridSearch) Points() []map[string]float64 {
	if len(g.paramNames) == 0 || len(g.paramNames) != len(g.ranges) {
		return nil
	}
	var out []map[string]float64
	g.enumerate(0, map[string]float64{}, &out)
	return out
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val
		g.enumerate(depth+1, newParams, out)
	}
}

// Search runs one simulation per grid point and returns the trials sorted
// by ascending metric, failures last.
func (g *GridSearch) Search(
	ctx context.Context,
	build func(params map[string]float64) (sim.Job, error),
	metricName string,
) ([]Trial, error) {
	points := g.Points()
	if len(points) == 0 {
		return nil, ErrEmptyGrid
	}

	trials := make([]Trial, len(points))
	jobs := make([]sim.Job, len(points))
	for i, p := range points {
		trials[i].Params = p
		job, err := build(p)
		if err != nil {
			return nil, fmt.Errorf("build %v: %w", p, err)
		}
		jobs[i] = job
	}

	results, errs := sim.RunAll(ctx, jobs, g.workers)
	for i := range trials {
		trials[i].Score = math.Inf(1)
		switch {
		case errs[i] != nil:
			trials[i].Err = errs[i]
		case results[i] == nil:
			trials[i].Err = ErrNoTrial
		default:
			v, ok := results[i].Metrics[metricName]
			if !ok {
				trials[i].Err = fmt.Errorf("metric %q: %w", metricName, ErrNoTrial)
				continue
			}
			trials[i].Score = v
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Score < trials[j].Score })
	if trials[0].Err != nil {
		return trials, ErrNoTrial
	}
	return trials, nil
}

// SetParam sets a tunable parameter by name: any weight key or one of
// ref_speed, max_steer and max_accel.
func SetParam(p *mpc.Params, name string, v float64) error {
	w := &p.Weights
	switch name {
	case "cte":
		w.CTE = v
	case "epsi":
		w.EPsi = v
	case "speed":
		w.Speed = v
	case "steer":
		w.Steer = v
	case "accel":
		w.Accel = v
	case "steer_rate":
		w.SteerRate = v
	case "accel_rate":
		w.AccelRate = v
	case "ref_speed":
		p.RefSpeed = v
	case "max_steer":
		p.MaxSteer = v
	case "max_accel":
		p.MaxAccel = v
	default:
		return fmt.Errorf("%q: %w", name, ErrUnknownParam)
	}
	return nil
}

// ParseAxis reads "name=v1,v2,..." into a name and its values.
func ParseAxis(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("axis %q: want name=v1,v2", s)
	}
	var vals []float64
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("axis %q: %w", s, err)
		}
		vals = append(vals, v)
	}
	if err := SetParam(&mpc.Params{}, name, 0); err != nil {
		return "", nil, err
	}
	return name, vals, nil
}
