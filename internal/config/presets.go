package config

import (
	"maps"
	"slices"
)

// Presets are complete configurations named after their driving style.
var Presets = map[string]*Config{
	"reference": DefaultConfig(),
	"gentle": preset(func(c *Config) {
		c.MPC.RefSpeed = 25
		c.MPC.Weights.CTE = 2000
		c.MPC.Weights.SteerRate = 500
		c.Sim.Track = "circle"
	}),
	"aggressive": preset(func(c *Config) {
		c.MPC.RefSpeed = 60
		c.MPC.Weights.CTE = 4000
		c.MPC.Weights.EPsi = 800
		c.MPC.Weights.SteerRate = 100
		c.Sim.Track = "figure8"
	}),
	"smooth": preset(func(c *Config) {
		c.MPC.Weights.Steer = 50
		c.MPC.Weights.SteerRate = 1000
		c.MPC.Weights.AccelRate = 50
		c.Vehicle.Fallback = "brake"
	}),
}

func preset(apply func(*Config)) *Config {
	c := DefaultConfig()
	apply(c)
	return c
}

// GetPreset returns a copy so callers may override fields freely.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	cp := *cfg
	return &cp
}

func ListPresets() []string {
	return slices.Sorted(maps.Keys(Presets))
}
