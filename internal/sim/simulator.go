package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/mpctrack/internal/actuator"
	"github.com/san-kum/mpctrack/internal/control"
	"github.com/san-kum/mpctrack/internal/dynamo"
	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/logging"
	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/track"
	"github.com/san-kum/mpctrack/internal/vehicle"
)

// divergence bounds the plant state norm; beyond it the run is abandoned.
const divergence = 1e7

// pending is a command that has been issued but not yet reached the wheels.
type pending struct {
	at  float64
	cmd actuator.Command
}

type Simulator struct {
	plant      dynamo.System
	integrator dynamo.Integrator
	planner    control.Planner
	track      *track.Track
	sink       actuator.Sink
	metrics    []Metric
	observers  []Observer
	logger     *zap.Logger
}

func New(plant dynamo.System, integrator dynamo.Integrator, planner control.Planner, trk *track.Track) *Simulator {
	return &Simulator{
		plant:      plant,
		integrator: integrator,
		planner:    planner,
		track:      trk,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		logger:     zap.NewNop(),
	}
}

func (s *Simulator) AddMetric(m Metric)         { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)     { s.observers = append(s.observers, o) }
func (s *Simulator) SetSink(sink actuator.Sink) { s.sink = sink }
func (s *Simulator) SetLogger(l *zap.Logger)    { s.logger = logging.OrNop(l) }

func (s *Simulator) Track() *track.Track { return s.track }

// Run drives the plant around the track. Each cycle observes the plant,
// plans, and hands the command to the plant Latency later; until then the
// previous command stays on the wheels.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cycle := cfg.Cycle.Seconds()
	cycles := int(math.Round(cfg.Duration / cycle))
	h := cycle / float64(cfg.Substeps)
	latency := cfg.Latency.Seconds()

	result := &Result{
		Steps:   make([]Step, 0, cycles),
		Metrics: make(map[string]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	x := vehicle.NewState(s.track.Start(cfg.Offset), cfg.InitialSpeed)
	if err := dynamo.CheckDims(s.plant, x, dynamo.Control{0, 0}); err != nil {
		return nil, err
	}
	// active is on the wheels; issued is the newest command, which is the
	// one in effect while the next command is in flight.
	var active, issued actuator.Command
	var queue []pending
	idx := -1

	for k := 0; k < cycles; k++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		t := float64(k) * cycle
		pose := vehicle.PoseOf(x)
		idx = s.track.Nearest(geom.Point{X: pose.X, Y: pose.Y}, idx)
		if s.track.Done(idx) {
			result.Completed = true
			break
		}

		obs := control.Observation{
			Pose:      pose,
			Speed:     vehicle.SpeedOf(x),
			Waypoints: s.track.Window(idx, cfg.Lookahead),
			Active:    issued,
		}
		plan, err := s.planner.Plan(ctx, obs)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Warn("planning failed, keeping active command", zap.Int("cycle", k), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Errorf("cycle %d: %w", k, err))
			plan = &control.Plan{Command: issued, Status: mpc.Infeasible, Fallback: true}
		}

		if s.sink != nil {
			if err := s.sink.Send(ctx, plan.Command); err != nil {
				s.logger.Warn("actuator sink", zap.Error(err))
				result.Errors = append(result.Errors, fmt.Errorf("cycle %d: sink: %w", k, err))
			}
		}

		cte, epsi := s.track.Errors(pose, idx)
		step := Step{
			Index:     k,
			Time:      t,
			Pose:      pose,
			Speed:     obs.Speed,
			CTE:       cte,
			EPsi:      epsi,
			Command:   plan.Command,
			Status:    plan.Status,
			Cost:      plan.Cost,
			SolveTime: plan.SolveTime,
			Fallback:  plan.Fallback,
			Predicted: geom.ToWorld(pose, plan.Predicted),
			Reference: obs.Waypoints,
		}
		for _, m := range s.metrics {
			m.Observe(step)
		}
		for _, o := range s.observers {
			o.OnStep(step)
		}
		result.Steps = append(result.Steps, step)

		issued = plan.Command
		queue = append(queue, pending{at: t + latency, cmd: plan.Command})
		for j := 0; j < cfg.Substeps; j++ {
			ts := t + float64(j)*h
			for len(queue) > 0 && queue[0].at <= ts+h/2 {
				active, queue = queue[0].cmd, queue[1:]
			}
			u := dynamo.Control{active.Steer, active.Accel}
			next := s.integrator.Step(s.plant, x, u, ts, h)
			if !next.IsValid() {
				return result, &dynamo.StepError{Step: k, Time: ts, State: x, Wrapped: dynamo.ErrInvalidState}
			}
			if next.Norm() > divergence {
				return result, &dynamo.StepError{Step: k, Time: ts, State: x, Wrapped: dynamo.ErrUnstable}
			}
			x = next
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

// RunWithCallback runs like Run but hands every step to callback, stopping
// early when it returns false.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg Config, callback func(Step) bool) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopped := false
	s.observers = append(s.observers, ObserverFunc(func(st Step) {
		if !stopped && !callback(st) {
			stopped = true
			cancel()
		}
	}))
	defer func() { s.observers = s.observers[:len(s.observers)-1] }()

	res, err := s.Run(ctx, cfg)
	if stopped && errors.Is(err, context.Canceled) {
		err = nil
	}
	return res, err
}

// Realtime is an Observer that sleeps so steps are delivered no faster than
// wall-clock time, for live views.
type Realtime struct {
	start time.Time
	scale float64
}

func NewRealtime(scale float64) *Realtime {
	return &Realtime{scale: scale}
}

func (r *Realtime) OnStep(st Step) {
	if r.start.IsZero() {
		r.start = time.Now()
	}
	due := r.start.Add(time.Duration(st.Time / r.scale * float64(time.Second)))
	if d := time.Until(due); d > 0 {
		time.Sleep(d)
	}
}
