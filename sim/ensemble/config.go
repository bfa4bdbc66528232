package ensemble

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/mcsim/sim"
	"github.com/inference-sim/mcsim/sim/accept"
	"github.com/inference-sim/mcsim/sim/box"
	"github.com/inference-sim/mcsim/sim/samples"
	"github.com/inference-sim/mcsim/sim/trace"
)

// Config describes an ensemble run: the model, the move and sample
// templates, and how many replicas to run for how long.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Seed     int64  `yaml:"seed"`
	Steps    int64  `yaml:"steps"`
	Replicas int    `yaml:"replicas"`
	Workers  int    `yaml:"workers"` // 0 runs every replica at once
	LogLevel string `yaml:"log_level"`
	// Equilibration steps run before sampling starts; histograms gathered
	// during them are cleared.
	Equilibration int64 `yaml:"equilibration"`

	Length    float64            `yaml:"length"`
	Systems   []SystemConfig     `yaml:"systems"`
	Types     []TypeConfig       `yaml:"types"`
	Molecules []box.Molecule     `yaml:"molecules"`
	Moves     MovesConfig        `yaml:"moves"`
	Samples   []samples.Settings `yaml:"samples"`
	Trace     TraceConfig        `yaml:"trace"`
}

// SystemConfig is one independent system.
type SystemConfig struct {
	Temperature float64 `yaml:"temperature"`
}

// TypeConfig is one site type.
type TypeConfig struct {
	Name     string  `yaml:"name"`
	Diameter float64 `yaml:"diameter"`
}

// MovesConfig configures the displacement move template. Zero values take
// the template defaults.
type MovesConfig struct {
	Frequency *int    `yaml:"frequency"`
	StepSize  float64 `yaml:"step_size"`
	NCheck    uint64  `yaml:"ncheck"`
	Magic     float64 `yaml:"magic"`
}

// TraceConfig configures rescale tracing.
type TraceConfig struct {
	Level      string `yaml:"level"`
	MaxRecords int    `yaml:"max_records"`
}

// envOverrides are the settings that may be overridden from the environment.
type envOverrides struct {
	Seed     *int64  `env:"MCSIM_SEED"`
	Steps    *int64  `env:"MCSIM_STEPS"`
	Replicas *int    `env:"MCSIM_REPLICAS"`
	LogLevel *string `env:"MCSIM_LOG_LEVEL"`
}

// DefaultConfig is the configuration a YAML file is decoded over.
func DefaultConfig() Config {
	return Config{
		Steps:    1000,
		Replicas: 1,
		LogLevel: "info",
		Length:   10,
		Systems:  []SystemConfig{{Temperature: 1}},
		Types:    []TypeConfig{{Name: "A", Diameter: 1}},
		Trace:    TraceConfig{Level: string(trace.TraceLevelNone)},
	}
}

// LoadConfig reads a YAML configuration with strict field checking, then
// applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	defer f.Close()
	cfg, err := DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config %s: %w", path, err)
	}
	return cfg, nil
}

// DecodeConfig decodes YAML over DefaultConfig. Unknown fields are errors.
func DecodeConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from MCSIM_* variables. A nil environ reads the
// process environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.Steps != nil {
		c.Steps = *o.Steps
	}
	if o.Replicas != nil {
		c.Replicas = *o.Replicas
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
	return nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if c.Steps < 0 {
		return fmt.Errorf("steps must be >= 0, got %d", c.Steps)
	}
	if c.Equilibration < 0 {
		return fmt.Errorf("equilibration must be >= 0, got %d", c.Equilibration)
	}
	if c.Replicas < 1 {
		return fmt.Errorf("replicas must be >= 1, got %d", c.Replicas)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	if len(c.Systems) == 0 {
		return fmt.Errorf("at least one system is required")
	}
	for i, s := range c.Systems {
		if !(s.Temperature >= 0) || math.IsInf(s.Temperature, 0) {
			return fmt.Errorf("system %d: temperature must be finite and >= 0, got %v", i, s.Temperature)
		}
	}
	if len(c.Types) == 0 {
		return fmt.Errorf("at least one site type is required")
	}
	for i, t := range c.Types {
		if t.Name == "" {
			return fmt.Errorf("type %d: name is required", i)
		}
		if !(t.Diameter >= 0) || math.IsInf(t.Diameter, 0) {
			return fmt.Errorf("type %s: diameter must be finite and >= 0, got %v", t.Name, t.Diameter)
		}
	}
	if _, err := box.New(c.Length, c.siteTypes(), len(c.Systems), c.Molecules); err != nil {
		return err
	}
	if c.Moves.Frequency != nil && *c.Moves.Frequency < 0 {
		return fmt.Errorf("moves: frequency must be >= 0, got %d", *c.Moves.Frequency)
	}
	if c.Moves.StepSize < 0 {
		return fmt.Errorf("moves: step_size must be >= 0, got %v", c.Moves.StepSize)
	}
	if err := c.Moves.params().Validate(); err != nil {
		return fmt.Errorf("moves: %w", err)
	}
	seen := make(map[int64]bool, len(c.Samples))
	for _, s := range c.Samples {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.ID] {
			return fmt.Errorf("sample %d: duplicate id", s.ID)
		}
		seen[s.ID] = true
	}
	if !trace.IsValidTraceLevel(c.Trace.Level) {
		return fmt.Errorf("trace: unknown level %q", c.Trace.Level)
	}
	if c.Trace.MaxRecords < 0 {
		return fmt.Errorf("trace: max_records must be >= 0, got %d", c.Trace.MaxRecords)
	}
	return nil
}

func (c *Config) siteTypes() []sim.SiteType {
	out := make([]sim.SiteType, len(c.Types))
	for i, t := range c.Types {
		out[i] = sim.SiteType{Name: t.Name, Diameter: t.Diameter}
	}
	return out
}

func (c *Config) systems() []sim.System {
	out := make([]sim.System, len(c.Systems))
	for i, s := range c.Systems {
		out[i] = sim.System{ID: i, Temperature: s.Temperature}
	}
	return out
}

func (m MovesConfig) params() accept.Params {
	p := accept.DefaultParams()
	if m.NCheck != 0 {
		p.NCheck = m.NCheck
	}
	if m.Magic != 0 {
		p.Magic = m.Magic
	}
	return p
}
