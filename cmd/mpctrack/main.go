package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/mpctrack/internal/actuator"
	"github.com/san-kum/mpctrack/internal/config"
	"github.com/san-kum/mpctrack/internal/control"
	"github.com/san-kum/mpctrack/internal/integrators"
	"github.com/san-kum/mpctrack/internal/logging"
	"github.com/san-kum/mpctrack/internal/metrics"
	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/nlp"
	"github.com/san-kum/mpctrack/internal/sim"
	"github.com/san-kum/mpctrack/internal/track"
	"github.com/san-kum/mpctrack/internal/vehicle"
)

var (
	dataDir    string
	configFile string
	logLevel   string
	preset     string

	// overrides, applied only when the flag is set
	trackName    string
	trackFile    string
	controller   string
	integrator   string
	engine       string
	duration     float64
	latencyMs    int
	refSpeed     float64
	horizon      int
	fallback     string
	offset       float64
	initialSpeed float64

	canIface string
	canID    uint32
	echo     bool

	logger *zap.Logger
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := &cobra.Command{
		Use:           "mpctrack",
		Short:         "model predictive path tracking for a kinematic bicycle",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(logLevel)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mpctrack", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(
		solveCommand(),
		runCommand(),
		liveCommand(),
		listCommand(),
		plotCommand(),
		exportJSONCommand(),
		exportPlotCommand(),
		serveCommand(),
		tuneCommand(),
		presetsCommand(),
		batchCommand(),
		monteCarloCommand(),
		analyzeCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// addScenarioFlags registers the flags that override config values.
func addScenarioFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&preset, "preset", "", "start from a named preset")
	f.StringVar(&trackName, "track", config.DefaultTrack, "built-in track")
	f.StringVar(&trackFile, "track-file", "", "track csv (x,y per line), overrides --track")
	f.StringVar(&controller, "controller", "mpc", "mpc or pid")
	f.StringVar(&integrator, "integrator", "rk4", "plant integrator (rk4, euler)")
	f.StringVar(&engine, "engine", nlp.EngineSLSQP, "solver engine (slsqp, auglag)")
	f.Float64Var(&duration, "time", config.DefaultDuration, "simulated seconds")
	f.IntVar(&latencyMs, "latency", int(config.DefaultLatency.Milliseconds()), "actuation latency in ms")
	f.Float64Var(&refSpeed, "ref-speed", mpc.DefaultParams().RefSpeed, "reference speed")
	f.IntVar(&horizon, "horizon", mpc.DefaultParams().Horizon, "prediction horizon")
	f.StringVar(&fallback, "fallback", "hold", "policy on infeasible solves (hold, brake)")
	f.Float64Var(&offset, "offset", 0, "initial lateral offset from the track")
	f.Float64Var(&initialSpeed, "initial-speed", 0, "initial speed")
}

func addSinkFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&canIface, "can", "", "socketcan interface to send commands on")
	cmd.Flags().Uint32Var(&canID, "can-id", actuator.DefaultFrameID, "CAN frame id")
	cmd.Flags().BoolVar(&echo, "echo", false, "log every actuator command")
}

// loadConfig resolves preset, then config file, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("track") {
		cfg.Sim.Track = trackName
	}
	if flags.Changed("track-file") {
		cfg.Sim.TrackFile = trackFile
	}
	if flags.Changed("integrator") {
		cfg.Sim.Integrator = integrator
	}
	if flags.Changed("time") {
		cfg.Sim.Duration = duration
	}
	if flags.Changed("latency") {
		cfg.Vehicle.Latency = msDuration(latencyMs)
	}
	if flags.Changed("engine") {
		cfg.Solver.Engine = engine
	}
	if flags.Changed("ref-speed") {
		cfg.MPC.RefSpeed = refSpeed
	}
	if flags.Changed("horizon") {
		cfg.MPC.Horizon = horizon
	}
	if flags.Changed("fallback") {
		cfg.Vehicle.Fallback = fallback
	}
	if flags.Changed("offset") {
		cfg.Sim.Offset = offset
	}
	if flags.Changed("initial-speed") {
		cfg.Sim.InitialSpeed = initialSpeed
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadTrack(name, file string) (*track.Track, error) {
	if file != "" {
		trk, err := track.Load(file)
		if err != nil {
			return nil, err
		}
		trk.Name = filepath.Base(file)
		return trk, nil
	}
	return track.ByName(name)
}

func newPlanner(cfg *config.Config, name string, l *zap.Logger) (control.Planner, error) {
	switch name {
	case "mpc":
		solver, err := nlp.New(cfg.SolverOptions(), l.Named("nlp"))
		if err != nil {
			return nil, err
		}
		drv, err := mpc.NewDriver(cfg.MPCParams(), solver, mpc.WithLogger(l.Named("mpc")))
		if err != nil {
			return nil, err
		}
		fb, err := control.ParseFallback(cfg.Vehicle.Fallback)
		if err != nil {
			return nil, err
		}
		return control.NewTracker(drv,
			control.WithLatency(cfg.Vehicle.Latency),
			control.WithFallback(fb),
			control.WithLogger(l.Named("tracker")),
		), nil
	case "pid":
		return control.NewPIDTracker(cfg.MPCParams(), cfg.Sim.Cycle.Seconds()), nil
	}
	return nil, fmt.Errorf("unknown controller: %s (want mpc or pid)", name)
}

// scenario is a simulator wired from config plus whatever it holds open.
type scenario struct {
	sim   *sim.Simulator
	track *track.Track
	close func() error
}

func newScenario(ctx context.Context, cfg *config.Config, ctrl string, l *zap.Logger) (*scenario, error) {
	trk, err := loadTrack(cfg.Sim.Track, cfg.Sim.TrackFile)
	if err != nil {
		return nil, err
	}
	planner, err := newPlanner(cfg, ctrl, l)
	if err != nil {
		return nil, err
	}
	integ, err := integrators.ByName(cfg.Sim.Integrator)
	if err != nil {
		return nil, err
	}

	s := sim.New(vehicle.NewBicycle(cfg.MPC.Lf), integ, planner, trk)
	s.SetLogger(l.Named("sim"))
	for _, m := range metrics.Default() {
		s.AddMetric(m)
	}

	sc := &scenario{sim: s, track: trk, close: func() error { return nil }}
	norm := actuator.NewNormalizer(cfg.Vehicle.MaxSteerDeg, cfg.Vehicle.InvertSteer)
	var sinks actuator.Multi
	if echo {
		sinks = append(sinks, actuator.NewLogSink(l.Named("actuator"), norm))
	}
	if canIface != "" {
		can, err := actuator.DialCAN(ctx, canIface, canID, norm)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", canIface, err)
		}
		sinks = append(sinks, can)
		sc.close = can.Close
	}
	if len(sinks) > 0 {
		s.SetSink(sinks)
	}
	return sc, nil
}
