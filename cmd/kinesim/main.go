package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/san-kum/kinesim/internal/automation"
	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/experiment"
	"github.com/san-kum/kinesim/internal/logging"
	"github.com/san-kum/kinesim/internal/observability"
	"github.com/san-kum/kinesim/internal/optim"
	"github.com/san-kum/kinesim/internal/sim"
	"github.com/san-kum/kinesim/internal/storage"
	"github.com/san-kum/kinesim/internal/viz"
)

var (
	dataDir     string
	logLevel    string
	logFormat   string
	metricsAddr string
	tracing     bool

	configFile     string
	preset         string
	mode           string
	seed           int64
	durationNs     float64
	nsPerStep      float64
	timeMultiplier float64
	rateFlags      map[string]string
	pathEvery      int64
	runName        string

	sweepLabel  string
	sweepMin    float64
	sweepMax    float64
	sweepSteps  int
	metricName  string
	gridFlags   map[string]string
	trials      int
	outFile     string
	svgKind     string
	adaptive    bool
	compareSeed int64

	log           logging.Logger = logging.Noop()
	traceShutdown func(context.Context) error
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "kinesim",
		Short:         "stochastic kinesin motor simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log = logging.New(logging.Config{Level: logLevel, Format: logFormat})
			tcfg := observability.TracingConfigFromEnv()
			tcfg.Enabled = tcfg.Enabled || tracing
			shutdown, err := observability.InitTracing(cmd.Context(), tcfg, log)
			if err != nil {
				return err
			}
			traceShutdown = shutdown
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if traceShutdown != nil {
				observability.ShutdownWithTimeout(context.Background(), traceShutdown, log)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".kinesim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&tracing, "trace", false, "export OpenTelemetry spans (see KINESIM_TRACING_EXPORTER)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().StringVar(&runName, "name", "kinesin", "run name")
	runCmd.Flags().Int64Var(&pathEvery, "path-every", 100, "sample the hips every n steps")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run with the live terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)
	liveCmd.Flags().BoolVar(&adaptive, "adaptive", true, "tune ns per step to the frame rate")
	liveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the hips position of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "dwell times, rates and stepping spectrum of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the event log of a run to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export the hips path or the state timeline to SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().StringVar(&svgKind, "kind", "path", "path or states")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.ListPresets() {
				cfg := config.GetPreset(p)
				fmt.Printf("  %-16s mode=%s duration=%.0fns\n", p, cfg.Mode, cfg.DurationNs)
			}
			return nil
		},
	}

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "compare live sampling with the event cache",
		Args:  cobra.NoArgs,
		RunE:  compareModes,
	}
	addConfigFlags(compareCmd)
	compareCmd.Flags().Int64Var(&compareSeed, "cached-seed", 0, "seed for the cached run (default same as live)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one rate constant",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "default", "setup to sweep")
	sweepCmd.Flags().StringVar(&sweepLabel, "label", "A", "rate label")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 50, "lowest rate")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1000, "highest rate")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of points")
	sweepCmd.Flags().Float64Var(&durationNs, "duration", 0, "simulated ns per point (default from setup)")
	sweepCmd.Flags().StringVar(&metricName, "metric", "speed_um_per_s", "metric to report")

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "grid search rate constants for the best metric",
		Args:  cobra.NoArgs,
		RunE:  runOptimize,
	}
	addConfigFlags(optimizeCmd)
	optimizeCmd.Flags().StringToStringVar(&gridFlags, "grid", map[string]string{"A": "100:1000:4"}, "label=lo:hi:n per rate")
	optimizeCmd.Flags().StringVar(&metricName, "metric", "speed_um_per_s", "metric to maximise")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "run one setup under many seeds",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	monteCarloCmd.Flags().StringVar(&preset, "preset", "default", "setup to run")
	monteCarloCmd.Flags().IntVar(&trials, "trials", 8, "number of seeds")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 1, "first seed")
	monteCarloCmd.Flags().Float64Var(&durationNs, "duration", 0, "simulated ns per trial (default from setup)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted YAML scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd,
		presetsCmd, compareCmd, sweepCmd, optimizeCmd, monteCarloCmd, scenarioCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	cmd.Flags().StringVar(&mode, "mode", config.ModeLive, "live or cached")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().Float64Var(&durationNs, "duration", config.DefaultDurationNs, "simulated nanoseconds")
	cmd.Flags().Float64Var(&nsPerStep, "ns-per-step", 0, "fixed nanoseconds per step")
	cmd.Flags().Float64Var(&timeMultiplier, "time-multiplier", 0, "simulated seconds per wall second")
	cmd.Flags().StringToStringVar(&rateFlags, "rate", nil, "rate override, label=value (repeatable)")
}

// resolveConfig layers preset, config file and explicitly set flags, in
// that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		log.Info(cmd.Context(), "config loaded", logging.String("path", configFile))
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("duration") {
		cfg.DurationNs = durationNs
	}
	if flags.Changed("ns-per-step") {
		cfg.NanosecondsPerStep = nsPerStep
	}
	if flags.Changed("time-multiplier") {
		cfg.TimeMultiplier = timeMultiplier
	}
	for label, raw := range rateFlags {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("rate %s: %w", label, err)
		}
		cfg.Rates[label] = v
	}
	return cfg, nil
}

// startMetrics registers a collector and serves it when --metrics-addr is
// set. The returned recorder is nil otherwise.
func startMetrics(ctx context.Context) (sim.Recorder, error) {
	if metricsAddr == "" {
		return nil, nil
	}
	collector, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	go func() {
		if err := collector.Serve(ctx, metricsAddr, log); err != nil {
			log.Error(ctx, "metrics server stopped", logging.Err(err))
		}
	}()
	return collector, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	opts := []sim.Option{
		sim.WithLogger(log),
		sim.WithMetrics(registry.DefaultMetrics(cfg)...),
		sim.WithPathEvery(pathEvery),
	}
	recorder, err := startMetrics(ctx)
	if err != nil {
		return err
	}
	if recorder != nil {
		opts = append(opts, sim.WithRecorder(recorder))
	}

	exp := experiment.New(cfg)
	if err := exp.Setup(opts...); err != nil {
		return err
	}

	fmt.Printf("running %s simulation for %.3g ns...\n", cfg.Mode, cfg.DurationNs)
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	runID, err := st.Save(runName, cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.Steps)
	fmt.Printf("events: %d\n", len(result.Events))
	fmt.Printf("displacement: %.2f nm\n", result.Displacement)
	fmt.Printf("walking speed: %.4f µm/s\n", result.WalkingSpeed)
	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)

	return nil
}

func printMetrics(metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, metrics[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if adaptive && !cmd.Flags().Changed("ns-per-step") {
		cfg.NanosecondsPerStep = 0
	}

	// The terminal belongs to the view; only errors reach the log.
	quiet := logging.New(logging.Config{Level: "error", Format: logFormat})
	opts := []sim.Option{sim.WithLogger(quiet)}
	recorder, err := startMetrics(cmd.Context())
	if err != nil {
		return err
	}
	if recorder != nil {
		opts = append(opts, sim.WithRecorder(recorder))
	}

	s, err := sim.New(cfg, opts...)
	if err != nil {
		return err
	}
	return viz.Run(s)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tTIME\tSIMULATED\tSEED\tEVENTS\tSPEED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3gms\t%d\t%d\t%.3fµm/s\n",
			run.ID,
			run.Mode,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.SimulatedNanoseconds*1e-6,
			run.Seed,
			run.Events,
			run.WalkingSpeed,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	path, err := st.LoadPath(runID)
	if err != nil {
		return err
	}
	if len(path) < 2 {
		return fmt.Errorf("no path to plot (cached runs have no geometry)")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("mode: %s\n", meta.Mode)
	fmt.Printf("samples: %d\n\n", len(path))

	xs := make([]float64, len(path))
	bound := make([]float64, len(path))
	for i, p := range path {
		xs[i] = p.X
		bound[i] = float64(p.Bound)
	}

	fmt.Println(asciigraph.Plot(xs,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption("hips x (nm)"),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(bound,
		asciigraph.Height(3),
		asciigraph.Width(80),
		asciigraph.Caption("heads bound"),
	))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	runner := automation.NewRunner(experiment.NewRegistry(), nil, log)
	results, err := runner.RunSweep(cmd.Context(), &automation.ParameterSweep{
		Setup:      preset,
		Label:      sweepLabel,
		Min:        sweepMin,
		Max:        sweepMax,
		NumSteps:   sweepSteps,
		DurationNs: durationNs,
		Metric:     metricName,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RATE %s\t%s\tSPEED\tEVENTS\n", sweepLabel, strings.ToUpper(metricName))
	values := make([]float64, len(results))
	for i, r := range results {
		values[i] = r.Metric
		fmt.Fprintf(w, "%.1f\t%.4f\t%.4f\t%d\n", r.Rate, r.Metric, r.WalkingSpeed, r.Events)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(values, asciigraph.Height(8), asciigraph.Caption(metricName+" vs rate "+sweepLabel)))
	return nil
}

// parseGrid reads "lo:hi:n" into n evenly spaced values.
func parseGrid(s string) ([]float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("grid %q: want lo:hi:n", s)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, err
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, err
	}
	return optim.Linspace(lo, hi, n), nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	labels := make([]string, 0, len(gridFlags))
	for label := range gridFlags {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	ranges := make([][]float64, len(labels))
	for i, label := range labels {
		if ranges[i], err = parseGrid(gridFlags[label]); err != nil {
			return err
		}
	}

	search, err := optim.NewGridSearch(labels, ranges)
	if err != nil {
		return err
	}
	registry := experiment.NewRegistry()
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		for k, v := range params {
			cfg.Rates[k] = v
		}
		exp := experiment.New(cfg)
		if err := exp.Setup(sim.WithMetrics(registry.DefaultMetrics(cfg)...)); err != nil {
			return nil, err
		}
		return exp, nil
	}

	best, score, err := search.Maximize().Search(cmd.Context(), build, metricName)
	if err != nil {
		return err
	}

	for _, tr := range search.Trials() {
		if tr.Err != nil {
			log.Warn(cmd.Context(), "trial failed", logging.Any("params", tr.Params), logging.Err(tr.Err))
		}
	}
	fmt.Printf("evaluated %d points\n", len(search.Trials()))
	fmt.Printf("best %s: %.6f\n", metricName, score)
	for _, label := range labels {
		fmt.Printf("  %s = %.2f\n", label, best[label])
	}
	return nil
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	runner := automation.NewRunner(experiment.NewRegistry(), nil, log)
	results, err := runner.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
		Setup:      preset,
		NumTrials:  trials,
		SeedStart:  seed,
		DurationNs: durationNs,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tSPEED\tDISPLACEMENT\tEVENTS")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%.4f\t%.2f\t%d\n", r.Seed, r.WalkingSpeed, r.Displacement, r.Events)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	mean, std := automation.MonteCarloStats(results)
	fmt.Printf("\nwalking speed: %.4f ± %.4f µm/s over %d seeds\n", mean, std, len(results))
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runner := automation.NewRunner(experiment.NewRegistry(), st, log)

	results, err := runner.RunScenario(cmd.Context(), scenario)
	if err != nil {
		return err
	}

	failed := 0
	for i, r := range results {
		status := "ok"
		if len(r.Failures) > 0 {
			status = "FAILED"
			failed++
		}
		fmt.Printf("step %d (%s): %s  speed=%.4f µm/s events=%d %s\n",
			i+1, r.Setup, status, r.Result.WalkingSpeed, len(r.Result.Events), r.RunID)
		for _, f := range r.Failures {
			fmt.Printf("    %s\n", f)
		}
	}
	if failed > 0 {
		return fmt.Errorf("scenario %s: %d of %d steps failed", scenario.Name, failed, len(results))
	}
	return nil
}
