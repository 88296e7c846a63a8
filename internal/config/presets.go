package config

import "sort"

// Presets are named run settings.
var Presets = map[string]*Config{
	"quick": {
		Integrator: "euler", Dt: 0.01, Duration: 5.0,
	},
	"default": {
		Integrator: "rk4", Dt: DefaultDt, Duration: DefaultDuration,
	},
	"precise": {
		Integrator: "rk45", Dt: 0.001, Duration: DefaultDuration,
		Adaptive: true, Tolerance: 1e-9,
	},
	"long": {
		Integrator: "rk4", Dt: 0.05, Duration: 200.0,
	},
}

// GetPreset returns a copy of the named preset over the defaults, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Integrator = p.Integrator
	cfg.Dt = p.Dt
	cfg.Duration = p.Duration
	cfg.Adaptive = p.Adaptive
	if p.Tolerance > 0 {
		cfg.Tolerance = p.Tolerance
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
