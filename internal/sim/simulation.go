package sim

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/kinesim/internal/cache"
	"github.com/san-kum/kinesim/internal/clock"
	"github.com/san-kum/kinesim/internal/config"
	"github.com/san-kum/kinesim/internal/environment"
	"github.com/san-kum/kinesim/internal/kinetics"
	"github.com/san-kum/kinesim/internal/logging"
	"github.com/san-kum/kinesim/internal/metrics"
	"github.com/san-kum/kinesim/internal/motor"
)

const tracerName = "github.com/san-kum/kinesim/internal/sim"

// Recorder receives measurements as the simulation runs. The Prometheus
// collector in the observability package implements it.
type Recorder interface {
	ObserveTransition(agent int, from, to motor.State)
	ObserveFrame(stepsPerFrame int, nanosecondsPerStep float64)
	ObserveCache(depth int, horizonNanoseconds float64)
	ObserveRates(agent int, stats []kinetics.Stats)
	ObserveWalkingSpeed(micrometersPerSecond float64)
}

// Event is one state change as seen by the simulation.
type Event struct {
	Step            int64
	TimeNanoseconds float64
	Agent           int
	From            motor.State
	To              motor.State
}

// Result summarises a finished run.
type Result struct {
	Mode                 string
	Seed                 int64
	Steps                int64
	SimulatedNanoseconds float64
	Events               []Event
	Stats                [2][]kinetics.Stats
	Displacement         float64 // nm
	WalkingSpeed         float64 // µm/s
	HipsPath             []PathPoint
	Metrics              map[string]float64
	Duration             time.Duration
}

// PathPoint is a sample of the hips position along the run.
type PathPoint struct {
	TimeNanoseconds float64
	X, Y, Z         float64
	Bound           int
}

type Option func(*Simulation)

func WithLogger(l logging.Logger) Option {
	return func(s *Simulation) { s.log = logging.OrNoop(l) }
}

func WithRecorder(r Recorder) Option {
	return func(s *Simulation) { s.recorder = r }
}

// WithObserver adds a state change observer next to the built-in event log.
func WithObserver(o motor.Observer) Option {
	return func(s *Simulation) { s.observers = append(s.observers, o) }
}

// WithMetrics adds metrics observed after every step.
func WithMetrics(ms ...metrics.Metric) Option {
	return func(s *Simulation) { s.metrics = append(s.metrics, ms...) }
}

// WithPathEvery samples the hips position every n steps during Run. Zero
// disables the path.
func WithPathEvery(n int64) Option {
	return func(s *Simulation) { s.pathEvery = n }
}

// Simulation owns one kinesin on one track and drives it either by live
// sampling or by playing back the event cache.
type Simulation struct {
	cfg     *config.Config
	scene   *Scene
	env     *environment.Environment
	kinesin *motor.Kinesin
	cache   *cache.Cache

	log       logging.Logger
	tracer    trace.Tracer
	recorder  Recorder
	observers []motor.Observer
	metrics   []metrics.Metric
	pathEvery int64

	events []Event
	path   []PathPoint
}

// New validates cfg and assembles the simulation. Nothing is stepped before
// the configuration, the rate table included, has been accepted.
func New(cfg *config.Config, opts ...Option) (*Simulation, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg = cfg.Clone()

	s := &Simulation{
		cfg:    cfg,
		log:    logging.Noop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	clockOpts := []clock.Option{clock.WithLogger(s.log)}
	if cfg.NanosecondsPerStep > 0 {
		clockOpts = append(clockOpts, clock.WithFixedStep(cfg.NanosecondsPerStep))
	}
	c := clock.New(cfg.TimeMultiplier, cfg.TargetFrameRate, clockOpts...)

	s.scene = BuildScene(cfg)
	s.env = environment.New(c, s.scene.World, cfg.Seed,
		environment.WithLogger(s.log),
		environment.WithWalkerLimits(cfg.MaxIterationsPerStep, cfg.JitterMean),
	)

	k, err := motor.NewKinesin(s.env, motor.Parts{
		Hips:   s.scene.Hips,
		Motors: s.scene.Motors,
		Sites:  s.scene.World,
	}, motor.Config{
		Rates:                     cfg.RateTable(),
		SnapDistance:              cfg.SnapDistance,
		ExpectedCollisionsPerBind: cfg.ExpectedCollisionsPerBind,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.kinesin = k
	k.AddObserver(motor.ObserverFunc(s.onStateChanged))
	for _, o := range s.observers {
		k.AddObserver(o)
	}

	switch cfg.Mode {
	case config.ModeLive:
	case config.ModeCached:
		s.cache = cache.New(k, cfg.Cache, s.log)
		if err := s.cache.Seed(); err != nil {
			return nil, fmt.Errorf("sim: seed event cache: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMode, cfg.Mode)
	}

	s.log.Info(context.Background(), "simulation ready",
		logging.String("mode", cfg.Mode),
		logging.Any("seed", cfg.Seed),
		logging.Int("sites", len(s.scene.Track)),
		logging.Float("ns_per_step", c.NanosecondsPerStep()),
	)
	return s, nil
}

func (s *Simulation) onStateChanged(agent int, old, new motor.State) {
	c := s.env.Clock
	s.events = append(s.events, Event{
		Step:            c.Steps(),
		TimeNanoseconds: c.NanosecondsSinceStart(),
		Agent:           agent,
		From:            old,
		To:              new,
	})
	if s.recorder != nil {
		s.recorder.ObserveTransition(agent, old, new)
	}
}

// Step advances simulated time by one step and moves the kinesin on.
func (s *Simulation) Step() error {
	c := s.env.Clock
	c.AdvanceStep()

	if s.cache == nil {
		s.kinesin.Step()
	} else {
		if err := s.cache.Tick(c.NanosecondsSinceStart()); err != nil {
			return &StepError{Step: c.Steps(), TimeNanoseconds: c.NanosecondsSinceStart(), Wrapped: err}
		}
		s.kinesin.UpdateObservedRates()
	}

	if len(s.metrics) > 0 {
		s.observeMetrics()
	}
	if s.pathEvery > 0 && c.Steps()%s.pathEvery == 0 {
		s.samplePath()
	}
	return nil
}

func (s *Simulation) observeMetrics() {
	sample := metrics.Sample{
		TimeNanoseconds: s.env.Clock.NanosecondsSinceStart(),
		HipsX:           s.kinesin.Hips().Position.X,
		Bound:           s.kinesin.BoundCount(),
	}
	for i, m := range s.kinesin.Motors() {
		sample.States[i] = m.State
	}
	for _, m := range s.metrics {
		m.Observe(sample)
	}
}

// Frame runs one rendered frame: the clock re-tunes its step budget from the
// wall time the frame took, then that many steps execute.
func (s *Simulation) Frame(wallDelta time.Duration) error {
	c := s.env.Clock
	c.Advance(wallDelta)
	for i := 0; i < c.StepsPerFrame(); i++ {
		if err := s.Step(); err != nil {
			return err
		}
	}
	s.report()
	return nil
}

func (s *Simulation) report() {
	if s.recorder == nil {
		return
	}
	c := s.env.Clock
	s.recorder.ObserveFrame(c.StepsPerFrame(), c.NanosecondsPerStep())
	if s.cache != nil {
		s.recorder.ObserveCache(s.cache.Len(), s.cache.Horizon())
	}
	for i, m := range s.kinesin.Motors() {
		s.recorder.ObserveRates(i, m.Stats())
	}
	s.recorder.ObserveWalkingSpeed(s.kinesin.WalkingSpeed())
}

func (s *Simulation) samplePath() {
	p := s.kinesin.Hips().Position
	s.path = append(s.path, PathPoint{
		TimeNanoseconds: s.env.Clock.NanosecondsSinceStart(),
		X:               p.X,
		Y:               p.Y,
		Z:               p.Z,
		Bound:           s.kinesin.BoundCount(),
	})
}

// Run steps until the configured duration of simulated time has passed.
// Frames are paced at the target frame rate, so an adaptive clock keeps its
// step budget. Cancelling ctx stops between frames.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	if s.cfg.DurationNs <= 0 {
		return nil, ErrNoDuration
	}
	ctx, span := s.tracer.Start(ctx, "sim.Run", trace.WithAttributes(
		attribute.String("kinesim.mode", s.cfg.Mode),
		attribute.Int64("kinesim.seed", s.cfg.Seed),
		attribute.Float64("kinesim.duration_ns", s.cfg.DurationNs),
	))
	defer span.End()

	started := time.Now()
	frame := time.Duration(float64(time.Second) / s.env.Clock.TargetFrameRate())
	c := s.env.Clock
	if s.pathEvery > 0 && len(s.path) == 0 {
		s.samplePath()
	}

	for c.NanosecondsSinceStart() < s.cfg.DurationNs {
		select {
		case <-ctx.Done():
			span.SetStatus(codes.Error, "canceled")
			return s.result(started), ctx.Err()
		default:
		}

		if err := s.Frame(frame); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.log.Error(ctx, "simulation aborted", logging.Err(err))
			return s.result(started), err
		}
	}

	res := s.result(started)
	span.SetAttributes(
		attribute.Int64("kinesim.steps", res.Steps),
		attribute.Int("kinesim.events", len(res.Events)),
	)
	s.log.Info(ctx, "run complete",
		logging.Any("steps", res.Steps),
		logging.Int("events", len(res.Events)),
		logging.Float("walking_speed_um_s", res.WalkingSpeed),
	)
	return res, nil
}

func (s *Simulation) result(started time.Time) *Result {
	c := s.env.Clock
	res := &Result{
		Mode:                 s.cfg.Mode,
		Seed:                 s.cfg.Seed,
		Steps:                c.Steps(),
		SimulatedNanoseconds: c.NanosecondsSinceStart(),
		Events:               s.Events(),
		Displacement:         s.kinesin.Displacement(),
		WalkingSpeed:         s.kinesin.WalkingSpeed(),
		HipsPath:             append([]PathPoint(nil), s.path...),
		Metrics:              make(map[string]float64, len(s.metrics)),
		Duration:             time.Since(started),
	}
	for _, m := range s.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	for i, m := range s.kinesin.Motors() {
		res.Stats[i] = m.Stats()
	}
	return res
}

// Reset puts every agent back at its starting pose and state, zeroes the
// clock and every counter, and reseeds the event cache. It runs between
// steps, never inside one.
func (s *Simulation) Reset() error {
	ctx, span := s.tracer.Start(context.Background(), "sim.Reset")
	defer span.End()

	s.kinesin.Reset()
	s.scene.World.FreeSites()
	s.env.Clock.Reset()
	s.env.Reseed(s.cfg.Seed)
	s.events = s.events[:0]
	s.path = s.path[:0]
	for _, m := range s.metrics {
		m.Reset()
	}

	if s.cache != nil {
		if err := s.cache.Seed(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("sim: reseed event cache: %w", err)
		}
	}
	s.log.Info(ctx, "simulation reset", logging.String("mode", s.cfg.Mode))
	return nil
}

func (s *Simulation) SetTimeMultiplier(v float64) {
	s.env.Clock.SetTimeMultiplier(v)
}

// SetRate changes one rate constant while running. In cached mode events
// already queued keep the waits they were drawn with.
func (s *Simulation) SetRate(label string, rate float64) error {
	if err := s.kinesin.SetRate(label, rate); err != nil {
		return err
	}
	s.cfg.Rates[label] = rate
	s.log.Debug(context.Background(), "rate changed",
		logging.String("label", label),
		logging.Float("rate", rate),
	)
	return nil
}

func (s *Simulation) Config() *config.Config  { return s.cfg.Clone() }
func (s *Simulation) Clock() *clock.Clock     { return s.env.Clock }
func (s *Simulation) Kinesin() *motor.Kinesin { return s.kinesin }
func (s *Simulation) Scene() *Scene           { return s.scene }
func (s *Simulation) Cache() *cache.Cache     { return s.cache }
func (s *Simulation) Cached() bool            { return s.cache != nil }
func (s *Simulation) Path() []PathPoint       { return append([]PathPoint(nil), s.path...) }
func (s *Simulation) Events() []Event         { return append([]Event(nil), s.events...) }
