package telemetry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/san-kum/mpctrack/internal/actuator"
	"github.com/san-kum/mpctrack/internal/control"
	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/nlp"
)

type stubPlanner struct {
	seen control.Observation
	plan control.Plan
	err  error
}

func (p *stubPlanner) Plan(_ context.Context, obs control.Observation) (*control.Plan, error) {
	p.seen = obs
	if p.err != nil {
		return nil, p.err
	}
	plan := p.plan
	return &plan, nil
}

func norm() actuator.Normalizer { return actuator.NewNormalizer(25, false) }

func request() Request {
	return Request{
		PtsX:          []float64{10, 20, 30, 40, 50},
		PtsY:          []float64{0, 0, 0, 0, 0},
		X:             5,
		Y:             0,
		Psi:           0,
		Speed:         10,
		SteeringAngle: 0.5,
		Throttle:      0.25,
	}
}

func TestHandle(t *testing.T) {
	p := &stubPlanner{plan: control.Plan{
		Command:   actuator.Command{Steer: 25 * math.Pi / 180 / 2, Accel: 2},
		Local:     []geom.Point{{X: 5, Y: 0}, {X: 15, Y: 0}},
		Predicted: []geom.Point{{X: 1, Y: 0.1}, {X: 2, Y: 0.2}, {X: 3, Y: 0.3}},
		Status:    mpc.Degraded,
	}}
	s := NewServer(p, norm(), nil)

	reply, err := s.Handle(context.Background(), request())
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if math.Abs(reply.SteeringAngle-0.5) > 1e-12 {
		t.Errorf("expected normalized steer 0.5, got %f", reply.SteeringAngle)
	}
	if reply.Throttle != 1 {
		t.Errorf("expected throttle clamped to 1, got %f", reply.Throttle)
	}
	if reply.Status != "degraded" {
		t.Errorf("expected degraded, got %s", reply.Status)
	}
	if len(reply.MpcX) != 3 || reply.MpcY[2] != 0.3 || len(reply.NextX) != 2 || reply.NextX[1] != 15 {
		t.Errorf("unexpected paths %+v", reply)
	}

	// the active command reaches the planner in radians
	if want := 0.5 * 25 * math.Pi / 180; math.Abs(p.seen.Active.Steer-want) > 1e-12 {
		t.Errorf("expected active steer %f, got %f", want, p.seen.Active.Steer)
	}
	if p.seen.Pose.X != 5 || len(p.seen.Waypoints) != 5 || p.seen.Speed != 10 {
		t.Errorf("unexpected observation %+v", p.seen)
	}
}

func TestHandleFallbackAndErrors(t *testing.T) {
	p := &stubPlanner{plan: control.Plan{Status: mpc.Infeasible, Fallback: true}}
	s := NewServer(p, norm(), nil)

	reply, err := s.Handle(context.Background(), request())
	if err != nil {
		t.Fatal(err)
	}
	if reply.Status != "fallback" {
		t.Errorf("expected fallback, got %s", reply.Status)
	}

	bad := request()
	bad.PtsY = bad.PtsY[:2]
	if _, err := s.Handle(context.Background(), bad); !errors.Is(err, ErrMismatchedWaypoints) {
		t.Errorf("expected ErrMismatchedWaypoints, got %v", err)
	}

	p.err = control.ErrNoWaypoints
	if _, err := s.Handle(context.Background(), request()); !errors.Is(err, control.ErrNoWaypoints) {
		t.Errorf("expected planner error, got %v", err)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, err := websocket.Dial(url, "", srv.URL)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestWebsocketRoundTrip(t *testing.T) {
	p := &stubPlanner{plan: control.Plan{Status: mpc.Converged, Command: actuator.Command{Accel: 0.3}}}
	srv := httptest.NewServer(NewServer(p, norm(), nil).Handler())
	defer srv.Close()

	ws := dial(t, srv)
	for i := 0; i < 3; i++ {
		if err := websocket.JSON.Send(ws, request()); err != nil {
			t.Fatal(err)
		}
		var reply Reply
		if err := websocket.JSON.Receive(ws, &reply); err != nil {
			t.Fatal(err)
		}
		if reply.Status != "converged" || reply.Throttle != 0.3 {
			t.Errorf("unexpected reply %+v", reply)
		}
	}

}

func TestWebsocketReportsPlanErrors(t *testing.T) {
	p := &stubPlanner{err: control.ErrNoWaypoints}
	srv := httptest.NewServer(NewServer(p, norm(), nil).Handler())
	defer srv.Close()

	// a failed plan is reported and the connection stays open
	ws := dial(t, srv)
	for i := 0; i < 2; i++ {
		if err := websocket.JSON.Send(ws, request()); err != nil {
			t.Fatal(err)
		}
		var reply Reply
		if err := websocket.JSON.Receive(ws, &reply); err != nil {
			t.Fatal(err)
		}
		if reply.Status != "error" || reply.Error == "" {
			t.Errorf("expected error reply, got %+v", reply)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewServer(&stubPlanner{}, norm(), nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(&stubPlanner{}, norm(), nil).Serve(ctx, l) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestTrackerStraightRoad(t *testing.T) {
	drv, err := mpc.NewDriver(mpc.DefaultParams(), nlp.NewAugLag(nlp.DefaultOptions(), nil))
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(control.NewTracker(drv), norm(), nil)

	req := request()
	req.SteeringAngle, req.Throttle = 0, 0
	reply, err := s.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if reply.SteeringAngle < -1 || reply.SteeringAngle > 1 || reply.Throttle < -1 || reply.Throttle > 1 {
		t.Errorf("commands out of range: %+v", reply)
	}
	if len(reply.MpcX) != mpc.DefaultParams().Horizon-1 {
		t.Errorf("expected %d predicted points, got %d", mpc.DefaultParams().Horizon-1, len(reply.MpcX))
	}
}
