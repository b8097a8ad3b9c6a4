package config

import "sort"

func preset(edit func(c *Config)) *Config {
	c := DefaultConfig()
	edit(c)
	return c
}

var Presets = map[string]*Config{
	"default": DefaultConfig(),
	"cached": preset(func(c *Config) {
		c.Mode = ModeCached
	}),
	"saturating-atp": preset(func(c *Config) {
		c.Rates["A"] = 2000
	}),
	"low-atp": preset(func(c *Config) {
		c.Rates["A"] = 20
	}),
	"weak-binding": preset(func(c *Config) {
		c.Rates["E"] = 20
		c.Rates["H"] = 10
		c.ExpectedCollisionsPerBind = 4
	}),
	"long-run": preset(func(c *Config) {
		c.DurationNs = 1e10
		c.NanosecondsPerStep = 1e6
		c.Track.Sites = 400
	}),
	"scenario-a": preset(func(c *Config) {
		c.DurationNs = 1e10
		c.NanosecondsPerStep = 1e6
		c.Rates["C"] = 10
	}),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
