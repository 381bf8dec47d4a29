package config

import "sort"

var Presets = map[string]*Config{
	"steel-sphere": DefaultConfig(),
	"stratify": {
		Name:      "stratify",
		Domain:    DomainConfig{Max: [3]float64{1, 1, 1}, Damping: DefaultDamping},
		Materials: []MaterialConfig{{ID: "copper"}, {ID: "polymer"}},
		Seeds: []SeedConfig{
			{Material: "copper", Position: [3]float64{0.5, 0.5, 0.5}, Radius: 0.22, Strength: 1, Roughness: 0.3},
			{Material: "polymer", Position: [3]float64{0.5, 0.5, 0.5}, Radius: 0.3, Strength: 0.6},
		},
		Run:    withRun(func(r *RunConfig) { r.Omega = 8; r.ParticleCount = 6000 }),
		Output: OutputConfig{Resolution: [3]int{32, 32, 32}},
	},
	"gradient": {
		Name:      "gradient",
		Domain:    DomainConfig{Max: [3]float64{1, 1, 1}, Damping: DefaultDamping},
		Materials: []MaterialConfig{{ID: "titanium"}, {ID: "aluminum"}, {ID: "ceramic"}},
		Seeds: []SeedConfig{
			{Material: "ceramic", Position: [3]float64{0.5, 0.5, 0.3}, Radius: 0.2, Strength: 1},
			{Material: "titanium", Position: [3]float64{0.5, 0.5, 0.5}, Radius: 0.2, Strength: 1},
			{Material: "aluminum", Position: [3]float64{0.5, 0.5, 0.7}, Radius: 0.2, Strength: 1},
		},
		Run:    withRun(func(r *RunConfig) { r.Omega = 4; r.Axis = [3]float64{1, 0, 0}; r.ParticleCount = 6000 }),
		Output: OutputConfig{Resolution: [3]int{24, 24, 48}},
	},
	"soft-core": {
		Name:      "soft-core",
		Domain:    DomainConfig{Max: [3]float64{1, 1, 1}, Damping: 0.3},
		Materials: []MaterialConfig{{ID: "steel"}, {ID: "polymer"}},
		Seeds: []SeedConfig{
			{Material: "polymer", Position: [3]float64{0.5, 0.5, 0.5}, Radius: 0.12, Strength: 2},
			{Material: "steel", Position: [3]float64{0.5, 0.5, 0.5}, Radius: 0.28, Strength: 1},
		},
		Run:    withRun(func(r *RunConfig) { r.Omega = 6 }),
		Output: OutputConfig{Resolution: [3]int{32, 32, 32}},
	},
}

func withRun(edit func(*RunConfig)) RunConfig {
	r := DefaultRun()
	edit(&r)
	return r
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	cfg.Materials = append([]MaterialConfig(nil), p.Materials...)
	cfg.Seeds = append([]SeedConfig(nil), p.Seeds...)
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
