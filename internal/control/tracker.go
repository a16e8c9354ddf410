package control

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/mpctrack/internal/actuator"
	"github.com/san-kum/mpctrack/internal/logging"
	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/vehicle"
)

// Tracker plans with the predictive controller.
type Tracker struct {
	driver   *mpc.Driver
	latency  time.Duration
	fallback Fallback
	logger   *zap.Logger
}

type TrackerOption func(*Tracker)

func WithLatency(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.latency = d }
}

func WithFallback(f Fallback) TrackerOption {
	return func(t *Tracker) { t.fallback = f }
}

func WithLogger(l *zap.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = logging.OrNop(l) }
}

func NewTracker(drv *mpc.Driver, opts ...TrackerOption) *Tracker {
	t := &Tracker{driver: drv, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Latency() time.Duration { return t.latency }

func (t *Tracker) Plan(ctx context.Context, obs Observation) (*Plan, error) {
	local, path, err := fit(obs)
	if err != nil {
		return nil, err
	}

	p := t.driver.Params()
	now := mpc.InitialState(path, obs.Speed)
	state := vehicle.Predict(now, obs.Active.Steer, obs.Active.Accel, t.latency, p.Lf, path)

	sol, err := t.driver.Solve(ctx, state, path)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Command:   actuator.Command{Steer: sol.Steer, Accel: sol.Accel},
		Path:      path,
		Local:     local,
		Predicted: sol.Predicted,
		State:     state,
		Status:    sol.Status,
		Cost:      sol.Cost,
		SolveTime: sol.Elapsed,
	}
	if !sol.Status.Usable() {
		plan.Command = t.fallback.Command(obs.Active, p.MaxAccel)
		plan.Fallback = true
		t.logger.Warn("solver result unusable, falling back",
			zap.Stringer("policy", t.fallback),
			zap.Float64("violation", sol.Violation),
			zap.Float64("steer", plan.Command.Steer),
			zap.Float64("accel", plan.Command.Accel),
		)
	}
	t.logger.Debug("cycle",
		zap.Float64("cost", sol.Cost),
		zap.Float64("cte", state.CTE),
		zap.Float64("epsi", state.EPsi),
		zap.Duration("solve", sol.Elapsed),
	)
	return plan, nil
}
