// Package actuator delivers steering and acceleration commands to whatever
// drives the vehicle: a CAN bus, a simulator socket or a log.
package actuator

import (
	"context"
	"math"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/mpctrack/internal/logging"
)

// Command is a physical actuation: steering in radians with the predictor's
// sign convention and acceleration in the range the planner was bounded to.
type Command struct {
	Steer float64 `json:"steer"`
	Accel float64 `json:"accel"`
}

type Sink interface {
	Send(ctx context.Context, cmd Command) error
}

// Normalizer maps a Command onto the [-1, 1] ranges most actuators take.
type Normalizer struct {
	// MaxSteer is the steering angle in radians reported as full lock.
	MaxSteer float64
	// Invert flips the steering sign for actuators where positive is left.
	Invert bool
}

func NewNormalizer(maxSteerDeg float64, invert bool) Normalizer {
	return Normalizer{MaxSteer: maxSteerDeg * math.Pi / 180, Invert: invert}
}

func (n Normalizer) sign() float64 {
	if n.Invert {
		return -1
	}
	return 1
}

func (n Normalizer) Normalize(cmd Command) Command {
	return Command{
		Steer: lo.Clamp(n.sign()*cmd.Steer/n.MaxSteer, -1, 1),
		Accel: lo.Clamp(cmd.Accel, -1, 1),
	}
}

// Denormalize inverts Normalize for commands inside the clamp range.
func (n Normalizer) Denormalize(cmd Command) Command {
	return Command{
		Steer: n.sign() * cmd.Steer * n.MaxSteer,
		Accel: cmd.Accel,
	}
}

// LogSink writes each command to a logger.
type LogSink struct {
	logger *zap.Logger
	norm   Normalizer
}

func NewLogSink(logger *zap.Logger, norm Normalizer) *LogSink {
	return &LogSink{logger: logging.OrNop(logger), norm: norm}
}

func (s *LogSink) Send(_ context.Context, cmd Command) error {
	n := s.norm.Normalize(cmd)
	s.logger.Info("actuate",
		zap.Float64("steer_rad", cmd.Steer),
		zap.Float64("accel", cmd.Accel),
		zap.Float64("steer_norm", n.Steer),
		zap.Float64("throttle", n.Accel),
	)
	return nil
}

// Multi sends every command to all sinks and reports every failure.
type Multi []Sink

func (m Multi) Send(ctx context.Context, cmd Command) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Send(ctx, cmd))
	}
	return err
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, cmd Command) error

func (f Func) Send(ctx context.Context, cmd Command) error { return f(ctx, cmd) }
