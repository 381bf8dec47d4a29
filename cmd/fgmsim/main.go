package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/fgmsim/internal/config"
	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/experiment"
	"github.com/san-kum/fgmsim/internal/export"
	"github.com/san-kum/fgmsim/internal/optim"
	"github.com/san-kum/fgmsim/internal/storage"
	"github.com/san-kum/fgmsim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	preset     string
	omega      float64
	particles  int
	iterations int
	seed       int64
	workers    int
	replicas   int
	parallel   int
	noSave     bool
	verbose    bool
	// sweep
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	// optimize
	grid     []string
	metric   string
	maximize bool
	// output
	svgPath   string
	frameRate int
	theme     string
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "fgmsim",
})

func main() {
	rootCmd := &cobra.Command{
		Use:           "fgmsim",
		Short:         "centrifugal blending of functionally graded materials",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".fgmsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a blending simulation to convergence",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	scenarioFlags(runCmd)
	runCmd.Flags().IntVar(&replicas, "replicas", 1, "independent runs with consecutive seeds")
	runCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent runs (0 = NumCPU)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the results")
	runCmd.Flags().StringVar(&svgPath, "svg", "", "write the field slice of the first run to this SVG file")
	runCmd.Flags().StringVar(&theme, "theme", "forge", "SVG color theme")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with the live terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	scenarioFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")
	liveCmd.Flags().StringVar(&theme, "theme", "forge", fmt.Sprintf("color theme %v", viz.ThemeNames()))

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run the scenario over a range of one parameter",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	scenarioFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "omega", fmt.Sprintf("parameter %v", experiment.NewRegistry().ListParams()))
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 20, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")
	sweepCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent runs (0 = NumCPU)")
	sweepCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the results")

	optimizeCmd := &cobra.Command{
		Use:     "optimize",
		Short:   "grid search parameters for the best scoring run",
		Example: "  fgmsim optimize --preset stratify --grid omega=5:20:4 --metric stratification --maximize",
		Args:    cobra.NoArgs,
		RunE:    runOptimize,
	}
	scenarioFlags(optimizeCmd)
	optimizeCmd.Flags().StringArrayVar(&grid, "grid", nil, "param=min:max:steps (repeatable)")
	optimizeCmd.Flags().StringVar(&metric, "metric", optim.Stratification, "metric to score runs by")
	optimizeCmd.Flags().BoolVar(&maximize, "maximize", false, "prefer larger scores")
	optimizeCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent runs (0 = NumCPU)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the kinetic energy of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the plot to this SVG file")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportStored(os.Stdout, args[0])
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMATERIALS\tSEEDS\tOMEGA")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				ids := make([]string, len(p.Materials))
				for i, m := range p.Materials {
					ids[i] = m.ID
				}
				fmt.Fprintf(w, "%s\t%v\t%d\t%.1f\n", name, ids, len(p.Seeds), p.Run.Omega)
			}
			return w.Flush()
		},
	}

	materialsCmd := &cobra.Command{
		Use:   "materials",
		Short: "list the material catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDENSITY\tSTIFFNESS\tGAMMA\tVISCOSITY\tSOUND")
			for _, name := range config.ListMaterials() {
				m, _ := config.LookupMaterial(name)
				fmt.Fprintf(w, "%s\t%.2f\t%.0f\t%.0f\t%.3f\t%.2f\n",
					m.ID, m.RestDensity, m.Stiffness, m.Gamma, m.Viscosity, m.SoundSpeed())
			}
			return w.Flush()
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a scenario file (.yaml or .toml)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if preset != "" {
				if cfg = config.GetPreset(preset); cfg == nil {
					return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
				}
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			logger.Info("wrote scenario", "path", args[0], "name", cfg.Name)
			return nil
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")

	rootCmd.AddCommand(runCmd, liveCmd, sweepCmd, optimizeCmd, listCmd, plotCmd, exportJSONCmd, presetsCmd, materialsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func scenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml or toml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use a built-in scenario")
	cmd.Flags().Float64Var(&omega, "omega", 0, "angular velocity (rad/s)")
	cmd.Flags().IntVar(&particles, "particles", config.DefaultParticles, "particle count")
	cmd.Flags().IntVar(&iterations, "iterations", config.DefaultIterations, "iteration cap")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for jittered placement")
	cmd.Flags().IntVar(&workers, "workers", 0, "force evaluation workers (0 = NumCPU)")
}

// loadScenario resolves the preset or config file and applies the flags the
// user set explicitly; the file wins over the preset.
func loadScenario(cmd *cobra.Command) (*config.Scenario, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("omega") {
		cfg.Run.Omega = omega
	}
	if flags.Changed("particles") {
		cfg.Run.ParticleCount = particles
	}
	if flags.Changed("iterations") {
		cfg.Run.MaxIterations = iterations
	}
	if flags.Changed("seed") {
		cfg.Run.Seed = seed
	}
	if flags.Changed("workers") {
		cfg.Run.Workers = workers
	}
	return cfg.Build()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	s, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("starting", "scenario", s.Name, "particles", s.Params.ParticleCount,
		"materials", len(s.Materials), "omega", s.Params.Omega, "replicas", replicas)

	scenarios := []*config.Scenario{s}
	if replicas > 1 {
		scenarios = experiment.Replicas(s, replicas, s.Params.RandSeed)
	}
	ens := &experiment.Ensemble{Parallel: parallel, Logger: logger}
	outcomes, err := ens.Run(ctx, scenarios)
	if err != nil {
		var div *dynamo.DivergenceError
		if errors.As(err, &div) {
			logger.Error("diverged", "iteration", div.Iteration, "particle", div.Particle, "quantity", div.Quantity)
		}
		return err
	}

	for _, out := range outcomes {
		printOutcome(out)
		if err := save(out); err != nil {
			return err
		}
	}
	if svgPath != "" {
		u, v := viz.ViewPlane(s.Params.Axis)
		doc := export.FieldSliceToSVG(outcomes[0].Result.Field, 3-u-v, 12, viz.GetTheme(theme))
		if err := os.WriteFile(svgPath, []byte(doc), 0644); err != nil {
			return err
		}
		logger.Info("wrote field slice", "path", svgPath)
	}
	return nil
}

// parseGrid reads "name=min:max:steps" into a parameter name and its values.
func parseGrid(spec string) (string, []float64, error) {
	name, rng, ok := strings.Cut(spec, "=")
	parts := strings.Split(rng, ":")
	if !ok || len(parts) != 3 {
		return "", nil, fmt.Errorf("bad grid %q, want param=min:max:steps", spec)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("bad grid %q: %w", spec, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("bad grid %q: %w", spec, err)
	}
	steps, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", nil, fmt.Errorf("bad grid %q: %w", spec, err)
	}
	return name, experiment.Sweep{Param: name, Min: lo, Max: hi, Steps: steps}.Values(), nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	if len(grid) == 0 {
		return fmt.Errorf("at least one --grid is required")
	}
	s, err := loadScenario(cmd)
	if err != nil {
		return err
	}

	names := make([]string, len(grid))
	ranges := make([][]float64, len(grid))
	for i, g := range grid {
		if names[i], ranges[i], err = parseGrid(g); err != nil {
			return err
		}
	}
	search, err := optim.NewGridSearch(names, ranges, maximize)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	logger.Info("searching", "scenario", s.Name, "params", names, "metric", metric, "maximize", maximize)

	best, all, err := search.Search(ctx, &experiment.Ensemble{Parallel: parallel, Logger: logger}, s, experiment.NewRegistry(), metric)
	for _, c := range all {
		logger.Debug("candidate", "params", c.Params, "score", c.Score)
	}
	if err != nil {
		return err
	}

	fmt.Printf("best %s = %.4g\n", metric, best.Score)
	for _, name := range names {
		fmt.Printf("  %s = %.4g\n", name, best.Params[name])
	}
	return save(best.Outcome)
}

func runLive(cmd *cobra.Command, args []string) error {
	s, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	res, err := viz.RunLive(s, theme, frameRate)
	if err != nil {
		return err
	}
	if res != nil {
		fmt.Printf("%s after %d iterations: %s\n", s.Name, res.Iterations, res.Reason)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	s, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	sw := experiment.Sweep{Param: sweepParam, Min: sweepMin, Max: sweepMax, Steps: sweepSteps}
	logger.Info("sweeping", "scenario", s.Name, "param", sw.Param, "values", sw.Values())

	points, err := experiment.RunSweep(ctx, &experiment.Ensemble{Parallel: parallel, Logger: logger}, s, sw, experiment.NewRegistry())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tITERATIONS\tCONVERGED\tSTRATIFICATION\tSTABILITY\tRUN\n", sw.Param)
	for _, p := range points {
		id := "-"
		if !noSave {
			if id, err = storage.New(dataDir).Save(p.Outcome); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%.4g\t%d\t%v\t%.3f\t%.3f\t%s\n", p.Value,
			p.Outcome.Result.Iterations, p.Outcome.Result.Converged,
			p.Outcome.Stratification, p.Outcome.Metrics["density_stability"], id)
	}
	return w.Flush()
}

func save(out *experiment.Outcome) error {
	if noSave {
		return nil
	}
	id, err := storage.New(dataDir).Save(out)
	if err != nil {
		return err
	}
	logger.Info("saved", "run", id, "dir", dataDir)
	return nil
}

func printOutcome(out *experiment.Outcome) {
	res := out.Result
	fmt.Printf("\n%s: %s after %d iterations (%s)\n", out.Scenario.Name, res.Reason, res.Iterations, out.Elapsed.Round(time.Millisecond))
	fmt.Printf("stratification: %.3f  coverage: %.1f%%\n", out.Stratification, 100*res.Field.Coverage())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MATERIAL\tMASS\tVOLUME\tCELLS\tMEAN R\tSTD R")
	for k, v := range res.Field.Volumes {
		p := out.Profile[k]
		fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%d\t%.3f\t%.3f\n", v.Material, v.Mass, v.CellVolume, v.Cells, p.Mean, p.Std)
	}
	w.Flush()

	for name, v := range out.Metrics {
		fmt.Printf("%s: %.4g\n", name, v)
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tPARTICLES\tOMEGA\tITER\tCONVERGED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%d\t%v\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.ParticleCount,
			run.Omega,
			run.Iterations,
			run.Converged,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	energy, err := st.Energy(args[0])
	if err != nil {
		return err
	}
	if len(energy) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("iterations: %d (%s)\n\n", meta.Iterations, meta.Reason)
	fmt.Println(asciigraph.Plot(energy,
		asciigraph.Height(12),
		asciigraph.Width(70),
		asciigraph.Caption("kinetic energy vs iteration")))

	if svgPath != "" {
		doc := export.EnergyToSVG(energy, 800, 300, string(viz.ThemeForge.Primary))
		if err := os.WriteFile(svgPath, []byte(doc), 0644); err != nil {
			return err
		}
		logger.Info("wrote energy plot", "path", svgPath)
	}
	return nil
}
