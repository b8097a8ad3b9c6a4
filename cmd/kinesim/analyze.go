package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/kinesim/internal/analysis"
	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/export"
	"github.com/san-kum/kinesim/internal/motor"
	"github.com/san-kum/kinesim/internal/sim"
	"github.com/san-kum/kinesim/internal/storage"
)

const ksAlpha = 0.05

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return err
	}
	events, err := st.LoadEvents(runID)
	if err != nil {
		return err
	}

	fmt.Printf("analysis: %s\n", meta.ID)
	fmt.Printf("mode: %s, %d events over %.3g ms\n\n", meta.Mode, len(events), meta.SimulatedNanoseconds*1e-6)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tVISITS\tMEAN DWELL\tEXPECTED\tKS D\tCRITICAL")
	for _, s := range motor.States() {
		dwell := analysis.DwellTimes(events, s)
		if len(dwell) == 0 {
			fmt.Fprintf(w, "%s\t0\t-\t-\t-\t-\n", s)
			continue
		}
		mean := 0.0
		for _, d := range dwell {
			mean += d
		}
		mean /= float64(len(dwell))

		exit, ok := analysis.UngatedExitRate(s, cfg.Rates)
		if !ok {
			fmt.Fprintf(w, "%s\t%d\t%.3gms\tgated\t-\t-\n", s, len(dwell), mean*1e3)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%.3gms\t%.3gms\t%.4f\t%.4f\n", s, len(dwell), mean*1e3, 1e3/exit,
			analysis.KSExponential(dwell, exit), analysis.KSCritical(len(dwell), 0, ksAlpha))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	printRates(cfg, analysis.EmpiricalRates(events, meta.SimulatedNanoseconds))

	path, err := st.LoadPath(runID)
	if err != nil || len(path) < 4 {
		return nil
	}
	xs := make([]float64, len(path))
	for i, p := range path {
		xs[i] = p.X
	}
	spectrum := analysis.PowerSpectrum(analysis.Velocities(xs))
	if len(spectrum) < 2 {
		return nil
	}
	peak := 1
	for i := 2; i < len(spectrum); i++ {
		if spectrum[i] > spectrum[peak] {
			peak = i
		}
	}
	n := 2 * len(spectrum)
	sampleSeconds := (path[1].TimeNanoseconds - path[0].TimeNanoseconds) * 1e-9
	if sampleSeconds > 0 {
		freq := float64(peak) / (float64(n) * sampleSeconds)
		fmt.Printf("\ndominant stepping frequency: %.3g Hz\n", freq)
	}
	fmt.Println(asciigraph.Plot(spectrum[1:], asciigraph.Height(6), asciigraph.Width(64), asciigraph.Caption("hips velocity power spectrum")))
	return nil
}

func printRates(cfg *config.Config, observed map[string]float64) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tTRANSITION\tCONFIGURED\tOBSERVED")
	for _, t := range motor.Transitions() {
		obs := "-"
		if v, ok := observed[t.Label]; ok {
			obs = fmt.Sprintf("%.1f", v)
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\n", t.Label, t.Kind, cfg.Rates[t.Label], obs)
	}
	w.Flush()
}

// compareModes runs the same configuration live and from the event cache
// and compares the dwell time distributions of every state.
func compareModes(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	liveCfg := base.Clone()
	liveCfg.Mode = config.ModeLive
	cachedCfg := base.Clone()
	cachedCfg.Mode = config.ModeCached
	if compareSeed != 0 {
		cachedCfg.Seed = compareSeed
	}

	var live, cached *sim.Result
	g, ctx := errgroup.WithContext(cmd.Context())
	run := func(cfg *config.Config, out **sim.Result) func() error {
		return func() error {
			s, err := sim.New(cfg, sim.WithLogger(log))
			if err != nil {
				return err
			}
			res, err := s.Run(ctx)
			*out = res
			return err
		}
	}
	g.Go(run(liveCfg, &live))
	g.Go(run(cachedCfg, &cached))
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("live: %d events, cached: %d events over %.3g ms\n\n",
		len(live.Events), len(cached.Events), base.DurationNs*1e-6)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tLIVE N\tCACHED N\tKS D\tCRITICAL\tSAME?")
	for _, s := range motor.States() {
		dl := analysis.DwellTimes(live.Events, s)
		dc := analysis.DwellTimes(cached.Events, s)
		if len(dl) == 0 || len(dc) == 0 {
			fmt.Fprintf(w, "%s\t%d\t%d\t-\t-\t-\n", s, len(dl), len(dc))
			continue
		}
		d := analysis.KSDistance(dl, dc)
		crit := analysis.KSCritical(len(dl), len(dc), ksAlpha)
		same := "yes"
		if d > crit {
			same = "no"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.4f\t%.4f\t%s\n", s, len(dl), len(dc), d, crit, same)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	lr := analysis.EmpiricalRates(live.Events, live.SimulatedNanoseconds)
	cr := analysis.EmpiricalRates(cached.Events, cached.SimulatedNanoseconds)
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tCONFIGURED\tLIVE\tCACHED")
	labels := append([]string(nil), motor.RateLabels...)
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\n", label, base.Rates[label], rateCell(lr, label), rateCell(cr, label))
	}
	return w.Flush()
}

func rateCell(rates map[string]float64, label string) string {
	v, ok := rates[label]
	if !ok || math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}

// output returns stdout or the --out file.
func output() (io.WriteCloser, error) {
	if outFile == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outFile)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeOutput(write func(w io.Writer) error) error {
	w, err := output()
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if outFile != "" {
		fmt.Fprintf(os.Stderr, "exported to %s\n", outFile)
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	events, err := storage.New(dataDir).LoadEvents(args[0])
	if err != nil {
		return err
	}
	return writeOutput(func(w io.Writer) error {
		return storage.WriteEventsCSV(w, events)
	})
}

// loadResult rebuilds what a stored run kept of its result.
func loadResult(st *storage.Store, runID string) (*config.Config, *sim.Result, error) {
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return nil, nil, err
	}
	events, err := st.LoadEvents(runID)
	if err != nil {
		return nil, nil, err
	}
	path, err := st.LoadPath(runID)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &sim.Result{
		Mode:                 meta.Mode,
		Seed:                 meta.Seed,
		Steps:                meta.Steps,
		SimulatedNanoseconds: meta.SimulatedNanoseconds,
		Events:               events,
		Displacement:         meta.Displacement,
		WalkingSpeed:         meta.WalkingSpeed,
		HipsPath:             path,
		Metrics:              meta.Metrics,
	}, nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	cfg, result, err := loadResult(storage.New(dataDir), args[0])
	if err != nil {
		return err
	}
	return writeOutput(func(w io.Writer) error {
		return storage.ExportJSON(w, cfg, result)
	})
}

func exportSVG(cmd *cobra.Command, args []string) error {
	_, result, err := loadResult(storage.New(dataDir), args[0])
	if err != nil {
		return err
	}

	var svg string
	switch svgKind {
	case "path":
		svg = export.PathToSVG(result.HipsPath, 800, 300)
	case "states":
		svg = export.StatesToSVG(result.Events, result.SimulatedNanoseconds, 800, 40)
	default:
		return fmt.Errorf("unknown svg kind %q (path or states)", svgKind)
	}
	if svg == "" {
		return fmt.Errorf("nothing to draw for %s", args[0])
	}
	return writeOutput(func(w io.Writer) error {
		_, err := io.WriteString(w, svg)
		return err
	})
}
