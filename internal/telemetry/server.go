// Package telemetry serves the planner to an external simulator over a
// websocket. Each message carries the vehicle pose and upcoming waypoints
// and is answered with normalized actuator commands plus the predicted
// and reference paths in the vehicle frame.
package telemetry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/san-kum/mpctrack/internal/actuator"
	"github.com/san-kum/mpctrack/internal/control"
	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/logging"
)

var ErrMismatchedWaypoints = errors.New("telemetry: ptsx and ptsy differ in length")

// Request is one telemetry message. Steering and throttle are the
// normalized values the vehicle is currently applying.
type Request struct {
	PtsX          []float64 `json:"ptsx"`
	PtsY          []float64 `json:"ptsy"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	Psi           float64   `json:"psi"`
	Speed         float64   `json:"speed"`
	SteeringAngle float64   `json:"steering_angle"`
	Throttle      float64   `json:"throttle"`
}

type Reply struct {
	SteeringAngle float64   `json:"steering_angle"`
	Throttle      float64   `json:"throttle"`
	MpcX          []float64 `json:"mpc_x"`
	MpcY          []float64 `json:"mpc_y"`
	NextX         []float64 `json:"next_x"`
	NextY         []float64 `json:"next_y"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}

type Server struct {
	planner control.Planner
	norm    actuator.Normalizer
	logger  *zap.Logger

	// plans are serialised; a planner may keep state between cycles
	mu sync.Mutex
}

func NewServer(planner control.Planner, norm actuator.Normalizer, logger *zap.Logger) *Server {
	return &Server{planner: planner, norm: norm, logger: logging.OrNop(logger)}
}

// Handle plans one cycle for req.
func (s *Server) Handle(ctx context.Context, req Request) (Reply, error) {
	if len(req.PtsX) != len(req.PtsY) {
		return Reply{}, ErrMismatchedWaypoints
	}

	obs := control.Observation{
		Pose:      geom.Pose{X: req.X, Y: req.Y, Psi: req.Psi},
		Speed:     req.Speed,
		Waypoints: geom.Zip(req.PtsX, req.PtsY),
		Active:    s.norm.Denormalize(actuator.Command{Steer: req.SteeringAngle, Accel: req.Throttle}),
	}

	s.mu.Lock()
	plan, err := s.planner.Plan(ctx, obs)
	s.mu.Unlock()
	if err != nil {
		return Reply{}, err
	}

	out := s.norm.Normalize(plan.Command)
	reply := Reply{
		SteeringAngle: out.Steer,
		Throttle:      out.Accel,
		Status:        plan.Status.String(),
	}
	reply.MpcX, reply.MpcY = geom.Split(plan.Predicted)
	reply.NextX, reply.NextY = geom.Split(plan.Local)
	if plan.Fallback {
		reply.Status = "fallback"
	}

	s.logger.Debug("telemetry cycle",
		zap.String("status", reply.Status),
		zap.Float64("cost", plan.Cost),
		zap.Duration("solve", plan.SolveTime),
		zap.Float64("steering_angle", reply.SteeringAngle),
		zap.Float64("throttle", reply.Throttle),
	)
	return reply, nil
}

func (s *Server) serve(ws *websocket.Conn) {
	remote := ws.Request().RemoteAddr
	s.logger.Info("connect", zap.String("remote", remote))
	defer s.logger.Info("disconnect", zap.String("remote", remote))

	ctx := ws.Request().Context()
	for {
		var req Request
		if err := websocket.JSON.Receive(ws, &req); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("receive", zap.String("remote", remote), zap.Error(err))
			}
			return
		}

		reply, err := s.Handle(ctx, req)
		if err != nil {
			s.logger.Warn("plan failed", zap.Error(err))
			reply = Reply{Status: "error", Error: err.Error()}
		}
		if err := websocket.JSON.Send(ws, reply); err != nil {
			s.logger.Warn("send", zap.String("remote", remote), zap.Error(err))
			return
		}
	}
}

// Handler serves the websocket at /ws and a liveness probe at /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.Handler(s.serve))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

// Serve accepts connections on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()
	s.logger.Info("listening", zap.String("addr", l.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		<-errc
		return nil
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}
