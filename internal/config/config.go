// Package config loads run descriptions from YAML or TOML files and turns
// them into the inputs of a simulation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/san-kum/fgmsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultParticles  = 4000
	DefaultH          = 0.05
	DefaultDt         = 0.001
	DefaultTolerance  = 1e-3
	DefaultWindow     = 20
	DefaultIterations = 2000
	DefaultDamping    = 0.5
	DefaultResolution = 32
)

type Config struct {
	Name      string           `yaml:"name" toml:"name"`
	Domain    DomainConfig     `yaml:"domain" toml:"domain"`
	Materials []MaterialConfig `yaml:"materials" toml:"materials"`
	Seeds     []SeedConfig     `yaml:"seeds" toml:"seeds"`
	Run       RunConfig        `yaml:"run" toml:"run"`
	Output    OutputConfig     `yaml:"output" toml:"output"`
}

type DomainConfig struct {
	Min     [3]float64 `yaml:"min" toml:"min"`
	Max     [3]float64 `yaml:"max" toml:"max"`
	Damping float64    `yaml:"damping" toml:"damping"`
}

// MaterialConfig describes one material. Fields left unset are filled
// from the catalog entry named by Catalog, or by ID when Catalog is empty.
// An explicit zero overrides the catalog.
type MaterialConfig struct {
	ID          string   `yaml:"id" toml:"id"`
	Catalog     string   `yaml:"catalog,omitempty" toml:"catalog,omitempty"`
	RestDensity *float64 `yaml:"rest_density,omitempty" toml:"rest_density,omitempty"`
	Stiffness   *float64 `yaml:"stiffness,omitempty" toml:"stiffness,omitempty"`
	Gamma       *float64 `yaml:"gamma,omitempty" toml:"gamma,omitempty"`
	Viscosity   *float64 `yaml:"viscosity,omitempty" toml:"viscosity,omitempty"`
}

// Float returns a pointer to v, for setting optional material fields.
func Float(v float64) *float64 { return &v }

type SeedConfig struct {
	Material string     `yaml:"material" toml:"material"`
	Position [3]float64 `yaml:"position" toml:"position"`
	Radius   float64    `yaml:"radius" toml:"radius"`
	Strength float64    `yaml:"strength" toml:"strength"`

	Roughness float64 `yaml:"roughness,omitempty" toml:"roughness,omitempty"`
}

type RunConfig struct {
	ParticleCount int        `yaml:"particle_count" toml:"particle_count"`
	H             float64    `yaml:"h" toml:"h"`
	Dt            float64    `yaml:"dt" toml:"dt"`
	Omega         float64    `yaml:"omega" toml:"omega"`
	Axis          [3]float64 `yaml:"axis" toml:"axis"`
	Center        [3]float64 `yaml:"center" toml:"center"`
	Tolerance     float64    `yaml:"tolerance" toml:"tolerance"`
	Window        int        `yaml:"window" toml:"window"`
	MaxIterations int        `yaml:"max_iterations" toml:"max_iterations"`
	Jitter        float64    `yaml:"jitter,omitempty" toml:"jitter,omitempty"`
	Seed          int64      `yaml:"seed,omitempty" toml:"seed,omitempty"`
	MaxSpeed      float64    `yaml:"max_speed,omitempty" toml:"max_speed,omitempty"`
	Workers       int        `yaml:"workers,omitempty" toml:"workers,omitempty"`
}

type OutputConfig struct {
	Resolution [3]int `yaml:"resolution" toml:"resolution"`
}

// Scenario is a Config resolved into simulation inputs.
type Scenario struct {
	Name       string
	Seeds      []dynamo.Seed
	Domain     dynamo.Domain
	Materials  []dynamo.Material
	Params     dynamo.Params
	Resolution [3]int
}

func DefaultConfig() *Config {
	return &Config{
		Name: "steel-sphere",
		Domain: DomainConfig{
			Max:     [3]float64{1, 1, 1},
			Damping: DefaultDamping,
		},
		Materials: []MaterialConfig{{ID: "steel"}},
		Seeds: []SeedConfig{
			{Material: "steel", Position: [3]float64{0.5, 0.5, 0.5}, Radius: 0.3, Strength: 1},
		},
		Run:    DefaultRun(),
		Output: OutputConfig{Resolution: [3]int{DefaultResolution, DefaultResolution, DefaultResolution}},
	}
}

func DefaultRun() RunConfig {
	return RunConfig{
		ParticleCount: DefaultParticles,
		H:             DefaultH,
		Dt:            DefaultDt,
		Axis:          [3]float64{0, 0, 1},
		Center:        [3]float64{0.5, 0.5, 0.5},
		Tolerance:     DefaultTolerance,
		Window:        DefaultWindow,
		MaxIterations: DefaultIterations,
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a YAML file, or TOML when the extension is .toml. Missing
// fields keep their DefaultConfig values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Materials, cfg.Seeds = nil, nil
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	var data []byte
	var err error
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Build resolves material references and converts the config into a
// Scenario. Range checks on the numbers are left to the controller.
func (c *Config) Build() (*Scenario, error) {
	s := &Scenario{
		Name: c.Name,
		Domain: dynamo.Domain{
			Bounds:  r3.Box{Min: vec(c.Domain.Min), Max: vec(c.Domain.Max)},
			Damping: c.Domain.Damping,
		},
		Resolution: c.Output.Resolution,
	}

	index := make(map[string]int, len(c.Materials))
	for i, mc := range c.Materials {
		if mc.ID == "" {
			return nil, dynamo.Invalid("materials", "%d: missing id", i)
		}
		if _, dup := index[mc.ID]; dup {
			return nil, dynamo.Invalid("materials", "duplicate id %q", mc.ID)
		}
		m, err := mc.resolve()
		if err != nil {
			return nil, err
		}
		index[mc.ID] = i
		s.Materials = append(s.Materials, m)
	}

	for i, sc := range c.Seeds {
		k, ok := index[sc.Material]
		if !ok {
			return nil, dynamo.Invalid("seeds", "%d: unknown material %q", i, sc.Material)
		}
		strength := sc.Strength
		if strength == 0 {
			strength = 1
		}
		s.Seeds = append(s.Seeds, dynamo.Seed{
			Position:  vec(sc.Position),
			Radius:    sc.Radius,
			Material:  k,
			Strength:  strength,
			Roughness: sc.Roughness,
		})
	}

	r := c.Run
	s.Params = dynamo.Params{
		ParticleCount: r.ParticleCount,
		H:             r.H,
		Dt:            r.Dt,
		Omega:         r.Omega,
		Axis:          vec(r.Axis),
		Center:        vec(r.Center),
		Tolerance:     r.Tolerance,
		Window:        r.Window,
		MaxIterations: r.MaxIterations,
		Jitter:        r.Jitter,
		RandSeed:      r.Seed,
		MaxSpeed:      r.MaxSpeed,
		Workers:       r.Workers,
	}
	return s, nil
}

func (mc MaterialConfig) resolve() (dynamo.Material, error) {
	ref := mc.Catalog
	if ref == "" {
		ref = mc.ID
	}
	base, known := LookupMaterial(ref)
	if !known && mc.Catalog != "" {
		return dynamo.Material{}, dynamo.Invalid("materials", "%s: unknown catalog entry %q", mc.ID, mc.Catalog)
	}

	m := dynamo.Material{
		ID:          mc.ID,
		RestDensity: pick(mc.RestDensity, base.RestDensity),
		Stiffness:   pick(mc.Stiffness, base.Stiffness),
		Gamma:       pick(mc.Gamma, base.Gamma),
		Viscosity:   pick(mc.Viscosity, base.Viscosity),
	}
	if mc.Gamma == nil && m.Gamma == 0 {
		m.Gamma = DefaultGamma
	}
	return m, nil
}

func pick(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}
