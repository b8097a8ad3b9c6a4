package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/kinesim/internal/kinetics"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != ModeLive {
		t.Errorf("expected mode live, got %s", cfg.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.NanosecondsPerStep != 1e5 {
		t.Errorf("expected 1e5 ns per step, got %g", cfg.NanosecondsPerStep)
	}
}

func TestValidateRates(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(c *Config)
		wantErr error
	}{
		{"missing label", func(c *Config) { delete(c.Rates, "J") }, kinetics.ErrMissingRate},
		{"zero rate", func(c *Config) { c.Rates["A"] = 0 }, kinetics.ErrInvalidRate},
		{"negative rate", func(c *Config) { c.Rates["E"] = -1 }, kinetics.ErrInvalidRate},
		{"bad mode", func(c *Config) { c.Mode = "replay" }, ErrInvalidParameter},
		{"inverted leash", func(c *Config) { c.Leash.Min, c.Leash.Max = 6, 2 }, ErrInvalidParameter},
		{"no minimum cache time", func(c *Config) { c.Cache.MinimumTime = 0 }, ErrInvalidParameter},
		{"no iterations", func(c *Config) { c.MaxIterationsPerStep = 0 }, ErrInvalidParameter},
		{"short track", func(c *Config) { c.Track.Sites = 1 }, ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte("mode: cached\nseed: 42\nrates:\n  A: 1000\nleash:\n  min: 1\n  max: 5\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode != ModeCached || cfg.Seed != 42 {
		t.Errorf("mode=%s seed=%d", cfg.Mode, cfg.Seed)
	}
	if cfg.Rates["A"] != 1000 || cfg.Rates["B"] != 50 {
		t.Errorf("rates = %v, want A overridden and B kept", cfg.Rates)
	}
	if cfg.Leash.Min != 1 || cfg.Leash.Max != 5 {
		t.Errorf("leash = %+v", cfg.Leash)
	}
	if cfg.Cache.InitialHorizon != 1e8 {
		t.Errorf("cache defaults lost: %+v", cfg.Cache)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := GetPreset("weak-binding")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Rates["H"] != 10 || got.ExpectedCollisionsPerBind != 4 {
		t.Errorf("loaded %+v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("cached")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Mode != ModeCached {
		t.Errorf("expected cached mode, got %s", cfg.Mode)
	}

	cfg.Rates["A"] = 1
	if Presets["cached"].Rates["A"] == 1 {
		t.Error("GetPreset returned a shared rate table")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range ListPresets() {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestLoadIntoKeepsBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "over.yaml")
	if err := os.WriteFile(path, []byte("seed: 9\nrates:\n  B: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := GetPreset("low-atp")
	if err := LoadInto(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Seed != 9 || cfg.Rates["B"] != 7 {
		t.Errorf("file values not applied: seed %d, B %v", cfg.Seed, cfg.Rates["B"])
	}
	if cfg.Rates["A"] != 20 {
		t.Errorf("preset rate A lost, got %v", cfg.Rates["A"])
	}
}
