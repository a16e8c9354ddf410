package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/mpctrack/internal/analysis"
	"github.com/san-kum/mpctrack/internal/automation"
	"github.com/san-kum/mpctrack/internal/config"
	"github.com/san-kum/mpctrack/internal/sim"
	"github.com/san-kum/mpctrack/internal/storage"
)

// runStored runs one configured simulation, storing it when asked.
func runStored(ctx context.Context, spec automation.RunSpec, cfg *config.Config) (*sim.Result, error) {
	sc, err := newScenario(ctx, cfg, spec.ControllerName(), zap.NewNop())
	if err != nil {
		return nil, err
	}
	defer sc.close()

	result, err := sc.sim.Run(ctx, cfg.RunConfig())
	if err != nil || !spec.Save {
		return result, err
	}

	id, err := saveRun(sc, cfg, spec.ControllerName(), result)
	if err == nil {
		logger.Info("stored run", zap.String("run", spec.Name), zap.String("id", id))
	}
	return result, err
}

func saveRun(sc *scenario, cfg *config.Config, ctrl string, result *sim.Result) (string, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return "", err
	}
	return st.Save(storage.RunMetadata{
		Track:      sc.track.Name,
		TrackFile:  cfg.Sim.TrackFile,
		Controller: ctrl,
		Params:     cfg.MPCParams(),
		Latency:    cfg.Vehicle.Latency,
		Cycle:      cfg.Sim.Cycle,
		Duration:   cfg.Sim.Duration,
		Integrator: cfg.Sim.Integrator,
	}, result)
}

func batchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run every simulation in a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			base, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			fmt.Printf("running %d simulations from %s...\n", len(scenario.Runs), scenario.Name)
			outcomes := automation.RunScenario(cmd.Context(), scenario, base, runStored)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCTRL\tTRACK\tLATENCY\tCTE_RMS\tMAX_CTE\tDEGRADED\tRESULT")
			failed := 0
			for _, o := range outcomes {
				if o.Err != nil || o.Result == nil {
					failed++
					fmt.Fprintf(w, "%s\t%s\t\t\t\t\t\t%v\n", o.Spec.Name, o.Spec.ControllerName(), o.Err)
					continue
				}
				m := o.Result.Metrics
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%.3f\t%.3f\t%.1f%%\tok\n",
					o.Spec.Name, o.Spec.ControllerName(), o.Config.Sim.Track, o.Config.Vehicle.Latency,
					m["cte_rms"], m["max_cte"], 100*m["degraded_ratio"])
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(outcomes))
			}
			return nil
		},
	}
}

func monteCarloCommand() *cobra.Command {
	var mc automation.MonteCarloConfig
	cmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "estimate how often the tracker recovers from perturbed starts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if mc.Trials < 1 {
				return fmt.Errorf("trials must be positive, got %d", mc.Trials)
			}

			fmt.Printf("running %d trials on %s...\n", mc.Trials, cfg.Sim.Track)
			results := automation.RunMonteCarlo(cmd.Context(), mc, cfg, controller, runStored)

			worst := lo.MaxBy(results, func(a, b automation.MonteCarloResult) bool { return a.MaxCTE > b.MaxCTE })
			failures := lo.CountBy(results, func(r automation.MonteCarloResult) bool { return r.Err != nil })
			fmt.Printf("stable: %.1f%%  failed runs: %d\n", 100*automation.StableFraction(results), failures)
			fmt.Printf("worst trial %d: offset %+.2f m, speed %.2f, max cte %.2f m\n",
				worst.Trial, worst.Offset, worst.InitialSpeed, worst.MaxCTE)
			return nil
		},
	}
	addScenarioFlags(cmd)
	cmd.Flags().IntVar(&mc.Trials, "trials", 20, "number of trials")
	cmd.Flags().Float64Var(&mc.OffsetSpread, "offset-spread", 2, "max lateral offset perturbation")
	cmd.Flags().Float64Var(&mc.SpeedSpread, "speed-spread", 5, "max initial speed perturbation")
	cmd.Flags().Float64Var(&mc.MaxCTE, "max-cte", 3, "cross-track error a stable trial must stay within")
	cmd.Flags().Int64Var(&mc.Seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().IntVar(&mc.Workers, "workers", 4, "parallel simulations")
	return cmd
}

func analyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of steering and cross-track error",
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
			if len(steps) < 8 {
				return fmt.Errorf("run %s has %d steps, too short to analyse", meta.ID, len(steps))
			}

			dt := meta.Cycle.Seconds()
			for _, sig := range []struct {
				name  string
				value func(sim.Step) float64
			}{
				{"steering", func(s sim.Step) float64 { return s.Command.Steer }},
				{"cross-track error", func(s sim.Step) float64 { return s.CTE }},
			} {
				spec := analysis.NewSpectrum(lo.Map(steps, func(s sim.Step, _ int) float64 { return sig.value(s) }), dt)
				freq, share := spec.Dominant()
				fmt.Printf("%s: dominant %.3f Hz (%.0f%% of energy), rms above 1 Hz %.4f\n",
					sig.name, freq, 100*share, spec.Band(1, math.Inf(1)))
				if len(spec.Amps) > 2 {
					fmt.Println(asciigraph.Plot(spec.Amps[1:],
						asciigraph.Height(6),
						asciigraph.Width(60),
						asciigraph.Caption(fmt.Sprintf("%s amplitude, 0 to %.1f Hz", sig.name, 0.5/dt)),
					))
				}
				fmt.Println()
			}
			return nil
		},
	}
}
