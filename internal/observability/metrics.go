// Package observability exposes a running simulation to Prometheus and
// OpenTelemetry.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/kinesim/internal/kinetics"
	"github.com/san-kum/kinesim/internal/logging"
	"github.com/san-kum/kinesim/internal/motor"
)

// Collector bundles the Prometheus metrics of one simulation process. It
// satisfies sim.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	Transitions        *prometheus.CounterVec
	StepsPerFrame      prometheus.Gauge
	NanosecondsPerStep prometheus.Gauge
	CacheDepth         prometheus.Gauge
	CacheHorizon       prometheus.Gauge
	ObservedRate       *prometheus.GaugeVec
	TheoreticalRate    *prometheus.GaugeVec
	WalkingSpeed       prometheus.Gauge
}

// NewCollector registers the simulation metrics against reg, defaulting to
// the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kinesim_transitions_total",
		Help: "State changes applied, labeled by motor and start and end state.",
	}, []string{"motor", "from", "to"}), "kinesim_transitions_total")
	if err != nil {
		return nil, err
	}

	observed, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kinesim_observed_rate",
		Help: "Observed events per simulated second, labeled by motor and rate label.",
	}, []string{"motor", "label"}), "kinesim_observed_rate")
	if err != nil {
		return nil, err
	}
	theoretical, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kinesim_theoretical_rate",
		Help: "Configured events per simulated second, labeled by motor and rate label.",
	}, []string{"motor", "label"}), "kinesim_theoretical_rate")
	if err != nil {
		return nil, err
	}

	c := &Collector{
		gatherer:        gatherer,
		Transitions:     transitions,
		ObservedRate:    observed,
		TheoreticalRate: theoretical,
	}
	gauge := func(name, help string) (prometheus.Gauge, error) {
		return registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help}), name)
	}
	if c.StepsPerFrame, err = gauge("kinesim_steps_per_frame", "Simulation steps run per rendered frame."); err != nil {
		return nil, err
	}
	if c.NanosecondsPerStep, err = gauge("kinesim_nanoseconds_per_step", "Simulated nanoseconds covered by one step."); err != nil {
		return nil, err
	}
	if c.CacheDepth, err = gauge("kinesim_cache_depth", "Events queued in the event cache."); err != nil {
		return nil, err
	}
	if c.CacheHorizon, err = gauge("kinesim_cache_horizon_nanoseconds", "Simulated time up to which the event cache is complete."); err != nil {
		return nil, err
	}
	if c.WalkingSpeed, err = gauge("kinesim_walking_speed_micrometers_per_second", "Hips displacement over simulated time."); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collector) ObserveTransition(agent int, from, to motor.State) {
	if c == nil || c.Transitions == nil {
		return
	}
	c.Transitions.WithLabelValues(strconv.Itoa(agent), from.String(), to.String()).Inc()
}

func (c *Collector) ObserveFrame(stepsPerFrame int, nanosecondsPerStep float64) {
	if c == nil {
		return
	}
	c.StepsPerFrame.Set(float64(stepsPerFrame))
	c.NanosecondsPerStep.Set(nanosecondsPerStep)
}

func (c *Collector) ObserveCache(depth int, horizonNanoseconds float64) {
	if c == nil {
		return
	}
	c.CacheDepth.Set(float64(depth))
	c.CacheHorizon.Set(horizonNanoseconds)
}

func (c *Collector) ObserveRates(agent int, stats []kinetics.Stats) {
	if c == nil {
		return
	}
	m := strconv.Itoa(agent)
	for _, s := range stats {
		c.ObservedRate.WithLabelValues(m, s.Label).Set(s.ObservedRate)
		c.TheoreticalRate.WithLabelValues(m, s.Label).Set(s.TheoreticalRate)
	}
}

func (c *Collector) ObserveWalkingSpeed(micrometersPerSecond float64) {
	if c == nil {
		return
	}
	c.WalkingSpeed.Set(micrometersPerSecond)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, log logging.Logger) error {
	log = logging.OrNoop(log)
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "serving metrics", logging.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("observability: metrics server: %w", err)
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
