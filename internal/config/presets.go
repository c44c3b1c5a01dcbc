package config

import "sort"

// Presets are named adjustments of DefaultConfig, grouped by model.
var Presets = map[string]map[string]func(*Config){
	"pendulum": {
		"reach": func(c *Config) {},
		"hang": func(c *Config) {
			c.ControllerParams.TrackTarget = false
			c.ControllerParams.CompensateGravity = false
		},
		"limp": func(c *Config) {
			c.Controller = ControllerNone
			c.Duration = 10
		},
	},
	"two-link": {
		"reach": func(c *Config) {},
		"stiff": func(c *Config) {
			c.ControllerParams.Kp = 400
			c.ControllerParams.Kd = 40
		},
		"heavy": func(c *Config) {
			c.MassScale = 1.2
			c.Duration = 8
		},
		"elbow": func(c *Config) {
			c.ControllerParams.Secondary.Enabled = true
		},
	},
	"spatial4": {
		"reach": func(c *Config) {},
		"forearm": func(c *Config) {
			c.ControllerParams.Secondary.Enabled = true
		},
		"float": func(c *Config) {
			c.ControllerParams.TrackTarget = false
		},
	},
	"ur10": {
		"reach": func(c *Config) {},
		"forearm": func(c *Config) {
			c.ControllerParams.Secondary.Enabled = true
		},
		"float": func(c *Config) {
			c.ControllerParams.TrackTarget = false
		},
		"mismatch": func(c *Config) {
			c.MassScale = 1.1
		},
		"drop": func(c *Config) {
			c.Controller = ControllerNone
			c.Duration = 2
		},
		"unregularized": func(c *Config) {
			c.ControllerParams.Regularization = 0
			c.HoldOnRecoverable = true
		},
	},
}

// GetPreset returns a fresh config for the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	apply, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Model = model
	apply(cfg)
	return cfg
}

// ListPresets returns the sorted preset names of model, or nil.
func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
