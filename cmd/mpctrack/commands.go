package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/mpctrack/internal/actuator"
	"github.com/san-kum/mpctrack/internal/config"
	"github.com/san-kum/mpctrack/internal/export"
	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/nlp"
	"github.com/san-kum/mpctrack/internal/optim"
	"github.com/san-kum/mpctrack/internal/polyfit"
	"github.com/san-kum/mpctrack/internal/sim"
	"github.com/san-kum/mpctrack/internal/storage"
	"github.com/san-kum/mpctrack/internal/telemetry"
	"github.com/san-kum/mpctrack/internal/viz"
)

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

func solveCommand() *cobra.Command {
	var (
		coeffs string
		speed  float64
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "solve one horizon for a path polynomial and speed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path, err := parseCoeffs(coeffs)
			if err != nil {
				return err
			}
			solver, err := nlp.New(cfg.SolverOptions(), logger.Named("nlp"))
			if err != nil {
				return err
			}
			drv, err := mpc.NewDriver(cfg.MPCParams(), solver, mpc.WithLogger(logger.Named("mpc")))
			if err != nil {
				return err
			}

			state := mpc.InitialState(path, speed)
			sol, err := drv.Solve(cmd.Context(), state, path)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(sol)
			}

			fmt.Printf("status: %s (%s, %d iterations, %v)\n", sol.Status, sol.Solver, sol.Iterations, sol.Elapsed)
			fmt.Printf("cost: %.4f  violation: %.2e\n", sol.Cost, sol.Violation)
			fmt.Printf("steer: %+.5f rad  accel: %+.5f\n\n", sol.Steer, sol.Accel)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "T\tX\tY\tPSI\tV\tCTE\tEPSI\tSTEER\tACCEL")
			for t, s := range sol.Trajectory {
				steer, accel := "", ""
				if t < len(sol.Steers) {
					steer = fmt.Sprintf("%+.4f", sol.Steers[t])
					accel = fmt.Sprintf("%+.4f", sol.Accels[t])
				}
				fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.4f\t%.3f\t%+.4f\t%+.4f\t%s\t%s\n",
					t, s.X, s.Y, s.Psi, s.V, s.CTE, s.EPsi, steer, accel)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&coeffs, "coeffs", "0,0,0,0", "cubic coefficients c0,c1,c2,c3 in the vehicle frame")
	cmd.Flags().Float64Var(&speed, "speed", 10, "current speed")
	cmd.Flags().IntVar(&horizon, "horizon", mpc.DefaultParams().Horizon, "prediction horizon")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the solution as json")
	cmd.Flags().StringVar(&preset, "preset", "", "start from a named preset")
	cmd.Flags().StringVar(&engine, "engine", nlp.EngineSLSQP, "solver engine (slsqp, auglag)")
	return cmd
}

func parseCoeffs(s string) (polyfit.Poly, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return nil, fmt.Errorf("want 4 coefficients, got %d", len(fields))
	}
	p := make(polyfit.Poly, 4)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("coefficient %d: %w", i, err)
		}
		p[i] = v
	}
	return p, nil
}

func runCommand() *cobra.Command {
	var noSave bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a closed-loop simulation and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sc, err := newScenario(cmd.Context(), cfg, controller, logger)
			if err != nil {
				return err
			}
			defer sc.close()

			fmt.Printf("running %s on %s...\n", controller, sc.track.Name)
			start := time.Now()
			result, err := sc.sim.Run(cmd.Context(), cfg.RunConfig())
			if err != nil {
				return err
			}
			fmt.Printf("completed in %v\n", time.Since(start))
			fmt.Printf("steps: %d  failed cycles: %d  finished track: %v\n", len(result.Steps), len(result.Errors), result.Completed)
			printMetrics(result.Metrics)

			if noSave {
				return nil
			}
			runID, err := saveRun(sc, cfg, controller, result)
			if err != nil {
				return err
			}
			fmt.Printf("run id: %s\n", runID)
			return nil
		},
	}
	addScenarioFlags(cmd)
	addSinkFlags(cmd)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	return cmd
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %-16s %.6f\n", name, m[name])
	}
}

func liveCommand() *cobra.Command {
	var speedup float64
	cmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with a live terminal view",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// the alt screen owns the terminal; keep logs quiet
			sc, err := newScenario(cmd.Context(), cfg, controller, zap.NewNop())
			if err != nil {
				return err
			}
			defer sc.close()
			sc.sim.AddObserver(sim.NewRealtime(speedup))

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			steps := make(chan sim.Step)
			done := make(chan viz.DoneMsg, 1)
			go func() {
				res, err := sc.sim.RunWithCallback(ctx, cfg.RunConfig(), func(st sim.Step) bool {
					select {
					case steps <- st:
						return true
					case <-ctx.Done():
						return false
					}
				})
				done <- viz.DoneMsg{Result: res, Err: err}
			}()

			title := fmt.Sprintf("%s on %s", controller, sc.track.Name)
			final, err := tea.NewProgram(viz.NewLive(title, sc.track, steps, done), tea.WithAltScreen()).Run()
			cancel()
			if err != nil {
				return err
			}
			if live, ok := final.(viz.Live); ok {
				if res, _ := live.Result(); res != nil {
					printMetrics(res.Metrics)
				}
			}
			return nil
		},
	}
	addScenarioFlags(cmd)
	addSinkFlags(cmd)
	cmd.Flags().Float64Var(&speedup, "speedup", 1, "simulated seconds per wall-clock second")
	return cmd
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(dataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTRACK\tCTRL\tTIME\tSTEPS\tLATENCY\tCTE_RMS\tDEGRADED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%v\t%.3f\t%.1f%%\n",
					run.ID,
					run.Track,
					run.Controller,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.Steps,
					run.Latency,
					run.Metrics["cte_rms"],
					100*run.Metrics["degraded_ratio"],
				)
			}
			return w.Flush()
		},
	}
}

func plotCommand() *cobra.Command {
	var width, height int
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run signals in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			steps, err := st.LoadSteps(args[0])
			if err != nil {
				return err
			}
			if len(steps) < 2 {
				return fmt.Errorf("run %s has %d steps, nothing to plot", meta.ID, len(steps))
			}
			fmt.Printf("%s: %s on %s, %d steps\n\n", meta.ID, meta.Controller, meta.Track, meta.Steps)
			fmt.Print(viz.Charts(steps, width, height))
			printMetrics(meta.Metrics)
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 70, "chart width")
	cmd.Flags().IntVar(&height, "height", 8, "chart height")
	return cmd
}

func exportJSONCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run as json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			steps, err := st.LoadSteps(args[0])
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				return storage.ExportJSON(os.Stdout, *meta, steps)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := storage.ExportJSON(f, *meta, steps); err != nil {
				return err
			}
			fmt.Printf("exported %d steps to %s\n", len(steps), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (stdout when empty)")
	return cmd
}

func exportPlotCommand() *cobra.Command {
	var dir, format string
	cmd := &cobra.Command{
		Use:   "export-plot [run_id]",
		Short: "render a run to image files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			steps, err := st.LoadSteps(args[0])
			if err != nil {
				return err
			}
			trk, err := loadTrack(meta.Track, meta.TrackFile)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = meta.ID
			}

			files, err := export.Run(dir, format, trk, steps)
			for _, f := range files {
				fmt.Println(f)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (defaults to the run id)")
	cmd.Flags().StringVar(&format, "format", "png", "png, svg or pdf")
	return cmd
}

func serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the planner over a telemetry websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			planner, err := newPlanner(cfg, controller, logger)
			if err != nil {
				return err
			}
			norm := actuator.NewNormalizer(cfg.Vehicle.MaxSteerDeg, cfg.Vehicle.InvertSteer)
			srv := telemetry.NewServer(planner, norm, logger.Named("telemetry"))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	addScenarioFlags(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":4567", "listen address")
	return cmd
}

func tuneCommand() *cobra.Command {
	var (
		axes     []string
		metric   string
		workers  int
		top      int
		saveBest string
	)
	cmd := &cobra.Command{
		Use:     "tune",
		Short:   "grid search cost weights against a run metric",
		Example: `  mpctrack tune --axis cte=1000,3000 --axis steer_rate=50,200,800 --metric cte_rms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(axes) == 0 {
				return fmt.Errorf("at least one --axis is required")
			}
			names := make([]string, len(axes))
			ranges := make([][]float64, len(axes))
			for i, a := range axes {
				if names[i], ranges[i], err = optim.ParseAxis(a); err != nil {
					return err
				}
			}

			paramsFor := func(point map[string]float64) (*config.Config, error) {
				c := *cfg
				for name, v := range point {
					if err := optim.SetParam(&c.MPC, name, v); err != nil {
						return nil, err
					}
				}
				return &c, c.MPC.Validate()
			}

			build := func(point map[string]float64) (sim.Job, error) {
				c, err := paramsFor(point)
				if err != nil {
					return nil, err
				}
				return func(ctx context.Context) (*sim.Result, error) {
					sc, err := newScenario(ctx, c, controller, zap.NewNop())
					if err != nil {
						return nil, err
					}
					defer sc.close()
					return sc.sim.Run(ctx, c.RunConfig())
				}, nil
			}

			g := optim.NewGridSearch(names, ranges, workers)
			fmt.Printf("tuning %d combinations on %s...\n", len(g.Points()), cfg.Sim.Track)
			trials, searchErr := g.Search(cmd.Context(), build, metric)
			if searchErr != nil && trials == nil {
				return searchErr
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(metric), strings.ToUpper(strings.Join(names, "\t")))
			for i, tr := range trials {
				if i == top {
					break
				}
				row := []string{fmt.Sprintf("%.4f", tr.Score)}
				if tr.Err != nil {
					row[0] = "failed"
				}
				for _, n := range names {
					row = append(row, strconv.FormatFloat(tr.Params[n], 'g', -1, 64))
				}
				fmt.Fprintln(w, strings.Join(row, "\t"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if searchErr != nil {
				return searchErr
			}

			if saveBest != "" {
				best, err := paramsFor(trials[0].Params)
				if err != nil {
					return err
				}
				if err := config.Save(saveBest, best); err != nil {
					return err
				}
				fmt.Printf("best config written to %s\n", saveBest)
			}
			return nil
		},
	}
	addScenarioFlags(cmd)
	cmd.Flags().StringArrayVar(&axes, "axis", nil, "parameter and values, e.g. cte=1000,3000 (repeatable)")
	cmd.Flags().StringVar(&metric, "metric", "cte_rms", "metric to minimise")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallel simulations")
	cmd.Flags().IntVar(&top, "top", 10, "rows to print")
	cmd.Flags().StringVar(&saveBest, "save-best", "", "write the best configuration to this yaml file")
	return cmd
}

func presetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list configuration presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREF_SPEED\tCTE\tEPSI\tSTEER_RATE\tACCEL_RATE\tLATENCY")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%g\t%g\t%v\n",
					name, p.MPC.RefSpeed, p.MPC.Weights.CTE, p.MPC.Weights.EPsi,
					p.MPC.Weights.SteerRate, p.MPC.Weights.AccelRate, p.Vehicle.Latency)
			}
			return w.Flush()
		},
	}
}
