package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/kinesim/internal/cache"
	"github.com/san-kum/kinesim/internal/clock"
	"github.com/san-kum/kinesim/internal/kinetics"
	"github.com/san-kum/kinesim/internal/motor"
	"github.com/san-kum/kinesim/internal/spatial"
)

const (
	ModeLive   = "live"
	ModeCached = "cached"

	DefaultDurationNs   = 1e9
	DefaultMeanStepSize = 0.8 // nm
	DefaultMeanRotation = 10  // degrees
	DefaultLeashMin     = 2
	DefaultLeashMax     = 6
	DefaultTrackSites   = 40
)

var ErrInvalidParameter = errors.New("config: invalid parameter")

type Config struct {
	Seed                      int64              `yaml:"seed"`
	Mode                      string             `yaml:"mode"`
	TimeMultiplier            float64            `yaml:"time_multiplier"`
	TargetFrameRate           float64            `yaml:"target_frame_rate"`
	NanosecondsPerStep        float64            `yaml:"nanoseconds_per_step"` // 0 adapts to the frame rate
	MaxIterationsPerStep      int                `yaml:"max_iterations_per_step"`
	DurationNs                float64            `yaml:"duration_ns"`
	Rates                     map[string]float64 `yaml:"rates"`
	Leash                     spatial.Leash      `yaml:"leash"`
	MeanStepSize              float64            `yaml:"mean_step_size"`
	MeanRotation              float64            `yaml:"mean_rotation"`
	JitterMean                float64            `yaml:"jitter_mean"`
	SnapDistance              float64            `yaml:"snap_distance"`
	ExpectedCollisionsPerBind float64            `yaml:"expected_collisions_per_bind"`
	Cache                     cache.Config       `yaml:"cache"`
	Track                     TrackConfig        `yaml:"track"`
}

type TrackConfig struct {
	Sites   int     `yaml:"sites"`
	Spacing float64 `yaml:"spacing"`
}

// DefaultRates are events per simulated second for each labelled transition.
func DefaultRates() map[string]float64 {
	return map[string]float64{
		"A": 500, // BindATP
		"B": 50,  // ReleaseATP
		"C": 200, // Hydrolyze
		"D": 300, // ReleasePhosphate, bound
		"E": 100, // BindTrack from ADP+Pi
		"F": 10,  // ReleaseTrack from ADP+Pi
		"G": 100, // ReleasePhosphate, free
		"H": 50,  // BindTrack from ADP
		"I": 50,  // ReleaseTrack from ADP
		"J": 200, // ReleaseADP
	}
}

func DefaultConfig() *Config {
	return &Config{
		Seed:                      1,
		Mode:                      ModeLive,
		TimeMultiplier:            clock.DefaultTimeMultiplier,
		TargetFrameRate:           clock.DefaultTargetFrameRate,
		NanosecondsPerStep:        clock.DefaultNanosecondsPerStep,
		MaxIterationsPerStep:      spatial.DefaultMaxIterationsPerStep,
		DurationNs:                DefaultDurationNs,
		Rates:                     DefaultRates(),
		Leash:                     spatial.Leash{Min: DefaultLeashMin, Max: DefaultLeashMax},
		MeanStepSize:              DefaultMeanStepSize,
		MeanRotation:              DefaultMeanRotation,
		JitterMean:                spatial.DefaultJitterMean,
		SnapDistance:              motor.DefaultSnapDistance,
		ExpectedCollisionsPerBind: motor.DefaultExpectedCollisionsPerBind,
		Cache:                     cache.DefaultConfig(),
		Track: TrackConfig{
			Sites:   DefaultTrackSites,
			Spacing: spatial.DefaultSiteSpacing,
		},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Rates = make(map[string]float64, len(c.Rates))
	for k, v := range c.Rates {
		out.Rates[k] = v
	}
	return &out
}

func (c *Config) RateTable() kinetics.RateTable {
	return kinetics.RateTable(c.Rates).Clone()
}

// Validate rejects configurations the simulation cannot start from. Rate
// problems are reported with the kinetics sentinel errors.
func (c *Config) Validate() error {
	if err := c.RateTable().Validate(motor.RateLabels); err != nil {
		return err
	}

	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Mode == ModeLive || c.Mode == ModeCached, fmt.Sprintf("mode %q is not live or cached", c.Mode)},
		{c.TimeMultiplier > 0, "time_multiplier must be positive"},
		{c.TargetFrameRate > 0, "target_frame_rate must be positive"},
		{c.NanosecondsPerStep >= 0, "nanoseconds_per_step must not be negative"},
		{c.MaxIterationsPerStep >= 1, "max_iterations_per_step must be at least 1"},
		{c.DurationNs >= 0, "duration_ns must not be negative"},
		{c.Leash.Min >= 0 && c.Leash.Min < c.Leash.Max, "leash needs 0 <= min < max"},
		{c.MeanStepSize > 0, "mean_step_size must be positive"},
		{c.MeanRotation >= 0, "mean_rotation must not be negative"},
		{c.JitterMean > 0, "jitter_mean must be positive"},
		{c.SnapDistance >= 0, "snap_distance must not be negative"},
		{c.ExpectedCollisionsPerBind > 0, "expected_collisions_per_bind must be positive"},
		{c.Cache.InitialHorizon > 0, "cache.initial_horizon must be positive"},
		{c.Cache.MinimumTime > 0, "cache.minimum_time must be positive"},
		{c.Cache.IncreaseIncrement >= 0, "cache.increase_increment must not be negative"},
		{c.Track.Sites >= 2, "track.sites must be at least 2"},
		{c.Track.Spacing > 0, "track.spacing must be positive"},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%w: %s", ErrInvalidParameter, check.msg)
		}
	}
	return nil
}

// Load reads a YAML file over the defaults, so a file only needs the keys it
// changes. Rates merge label by label.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto reads a YAML file over cfg, typically a preset.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
