// Package config provides configuration loading, validation and access for
// the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/broth/particles"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure. Validation errors are
// fatal: the simulation must not start on a config that fails Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all simulation configuration parameters.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Collision CollisionConfig `yaml:"collision"`
	Species   []SpeciesConfig `yaml:"species"`
	Rules     []RuleConfig    `yaml:"rules"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds the simulation volume. The boundary is an axis-aligned
// box centered at the origin with these full extents.
type WorldConfig struct {
	Bounds [3]float64 `yaml:"bounds"`
}

// PhysicsConfig holds force evaluation and integration parameters.
type PhysicsConfig struct {
	DT                  float64 `yaml:"dt"`
	CellSize            float64 `yaml:"cell_size"`            // Spatial grid cell edge length
	InteractionRadius   float64 `yaml:"interaction_radius"`   // Pairwise force cutoff distance
	InteractionStrength float64 `yaml:"interaction_strength"` // Global force scale
	MinDistance         float64 `yaml:"min_distance"`         // Distance clamp, prevents blow-up near contact
	MaxForce            float64 `yaml:"max_force"`            // Net force magnitude cap per particle
	MaxAcceleration     float64 `yaml:"max_acceleration"`     // Acceleration magnitude cap
	MaxVelocity         float64 `yaml:"max_velocity"`         // Velocity magnitude cap
	Dampening           float64 `yaml:"dampening"`            // Per-step multiplicative velocity decay
	BounceForce         float64 `yaml:"bounce_force"`         // Boundary reflection coefficient in [0,1]
	Partitioning        bool    `yaml:"partitioning"`         // false = all-pairs evaluation
}

// CollisionConfig holds the overlap relaxation parameters.
type CollisionConfig struct {
	Elasticity float64 `yaml:"elasticity"` // Separation correction scale in (0,1]
	Iterations int     `yaml:"iterations"` // Fixed relaxation passes per step
}

// SpeciesConfig describes one species and its initial population.
type SpeciesConfig struct {
	Name   string  `yaml:"name"`
	Color  string  `yaml:"color"` // "#rrggbb" or "#rrggbbaa"; display only
	Mass   float64 `yaml:"mass"`
	Radius float64 `yaml:"radius"`
	Count  int     `yaml:"count"`
}

// RuleConfig sets one entry of the interaction matrix by species name.
// Rules are directional: the rule (a, b) affects what a feels from b only.
type RuleConfig struct {
	A           string  `yaml:"a"`
	B           string  `yaml:"b"`
	Coefficient float64 `yaml:"coefficient"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // Seconds of sim time between stats records
	PerfWindow  int     `yaml:"perf_window"`  // Steps in the perf rolling window
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32           float32
	Bounds         particles.Vec3 // Full extents as float32
	Half           particles.Vec3 // Half extents
	TotalParticles int
	SpeciesIndex   map[string]int
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults
// if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults, then validates it. If path is empty, only defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ComputeDerived()

	return cfg, nil
}

// Validate checks every constraint the kernels rely on. All failures are
// configuration errors: fatal at initialization, never detected mid-step.
func (c *Config) Validate() error {
	for i, b := range c.World.Bounds {
		if b <= 0 {
			return fmt.Errorf("%w: world bounds axis %d must be positive, got %v", ErrInvalid, i, b)
		}
	}

	p := &c.Physics
	if p.DT <= 0 {
		return fmt.Errorf("%w: physics dt must be positive, got %v", ErrInvalid, p.DT)
	}
	if p.CellSize <= 0 {
		return fmt.Errorf("%w: cell_size must be positive, got %v", ErrInvalid, p.CellSize)
	}
	if p.InteractionRadius <= 0 {
		return fmt.Errorf("%w: interaction_radius must be positive, got %v", ErrInvalid, p.InteractionRadius)
	}
	// With a 27-cell neighborhood, a cell smaller than the interaction
	// radius silently misses neighbors two cells away.
	if p.Partitioning && p.CellSize < p.InteractionRadius {
		return fmt.Errorf("%w: cell_size %v is smaller than interaction_radius %v; neighbor enumeration would miss pairs",
			ErrInvalid, p.CellSize, p.InteractionRadius)
	}
	if p.MinDistance <= 0 {
		return fmt.Errorf("%w: min_distance must be positive, got %v", ErrInvalid, p.MinDistance)
	}
	if p.MaxForce <= 0 {
		return fmt.Errorf("%w: max_force must be positive, got %v", ErrInvalid, p.MaxForce)
	}
	if p.MaxAcceleration <= 0 {
		return fmt.Errorf("%w: max_acceleration must be positive, got %v", ErrInvalid, p.MaxAcceleration)
	}
	if p.MaxVelocity <= 0 {
		return fmt.Errorf("%w: max_velocity must be positive, got %v", ErrInvalid, p.MaxVelocity)
	}
	if p.Dampening < 0 || p.Dampening > 1 {
		return fmt.Errorf("%w: dampening must be in [0,1], got %v", ErrInvalid, p.Dampening)
	}
	if p.BounceForce < 0 || p.BounceForce > 1 {
		return fmt.Errorf("%w: bounce_force must be in [0,1], got %v", ErrInvalid, p.BounceForce)
	}

	col := &c.Collision
	if col.Elasticity <= 0 || col.Elasticity > 1 {
		return fmt.Errorf("%w: collision elasticity must be in (0,1], got %v", ErrInvalid, col.Elasticity)
	}
	if col.Iterations < 1 {
		return fmt.Errorf("%w: collision iterations must be at least 1, got %d", ErrInvalid, col.Iterations)
	}

	if len(c.Species) == 0 {
		return fmt.Errorf("%w: at least one species required", ErrInvalid)
	}
	minBound := c.World.Bounds[0]
	for _, b := range c.World.Bounds[1:] {
		if b < minBound {
			minBound = b
		}
	}
	seen := make(map[string]bool, len(c.Species))
	total := 0
	for i, sp := range c.Species {
		if sp.Name == "" {
			return fmt.Errorf("%w: species %d has no name", ErrInvalid, i)
		}
		if seen[sp.Name] {
			return fmt.Errorf("%w: duplicate species name %q", ErrInvalid, sp.Name)
		}
		seen[sp.Name] = true
		if sp.Mass <= 0 {
			return fmt.Errorf("%w: species %q mass must be positive, got %v", ErrInvalid, sp.Name, sp.Mass)
		}
		if sp.Radius <= 0 {
			return fmt.Errorf("%w: species %q radius must be positive, got %v", ErrInvalid, sp.Name, sp.Radius)
		}
		if 2*sp.Radius > minBound {
			return fmt.Errorf("%w: species %q radius %v does not fit inside bounds", ErrInvalid, sp.Name, sp.Radius)
		}
		if sp.Count < 0 {
			return fmt.Errorf("%w: species %q count must not be negative, got %d", ErrInvalid, sp.Name, sp.Count)
		}
		if sp.Color != "" {
			if _, err := ParseColor(sp.Color); err != nil {
				return fmt.Errorf("%w: species %q: %v", ErrInvalid, sp.Name, err)
			}
		}
		total += sp.Count
	}
	if total == 0 {
		return fmt.Errorf("%w: total particle count is zero", ErrInvalid)
	}

	// The collision passes reuse the grid built before integration, so a
	// contact pair must stay within one cell of each other even after both
	// particles move a full velocity-capped step.
	if p.Partitioning {
		maxRadius := 0.0
		for _, sp := range c.Species {
			if sp.Radius > maxRadius {
				maxRadius = sp.Radius
			}
		}
		reach := 2*maxRadius + 2*p.MaxVelocity*p.DT
		if reach > p.CellSize {
			return fmt.Errorf("%w: collision reach %v (2*max radius %v + 2*max_velocity*dt %v) exceeds cell_size %v; neighbor enumeration would miss contacts",
				ErrInvalid, reach, maxRadius, 2*p.MaxVelocity*p.DT, p.CellSize)
		}
	}

	for i, r := range c.Rules {
		if !seen[r.A] {
			return fmt.Errorf("%w: rule %d references unknown species %q", ErrInvalid, i, r.A)
		}
		if !seen[r.B] {
			return fmt.Errorf("%w: rule %d references unknown species %q", ErrInvalid, i, r.B)
		}
	}

	if c.Telemetry.StatsWindow < 0 {
		return fmt.Errorf("%w: telemetry stats_window must not be negative, got %v", ErrInvalid, c.Telemetry.StatsWindow)
	}
	if c.Telemetry.PerfWindow < 0 {
		return fmt.Errorf("%w: telemetry perf_window must not be negative, got %d", ErrInvalid, c.Telemetry.PerfWindow)
	}

	return nil
}

// ComputeDerived calculates values derived from the loaded config. Load
// calls it automatically; hand-built configs must call it after Validate.
func (c *Config) ComputeDerived() {
	c.Derived.DT32 = float32(c.Physics.DT)
	c.Derived.Bounds = particles.Vec3{
		X: float32(c.World.Bounds[0]),
		Y: float32(c.World.Bounds[1]),
		Z: float32(c.World.Bounds[2]),
	}
	c.Derived.Half = c.Derived.Bounds.Scale(0.5)

	c.Derived.TotalParticles = 0
	c.Derived.SpeciesIndex = make(map[string]int, len(c.Species))
	for i, sp := range c.Species {
		c.Derived.SpeciesIndex[sp.Name] = i
		c.Derived.TotalParticles += sp.Count
	}
}

// SpeciesTable builds the particles.Table described by this config,
// including all interaction rules. The config must already be validated.
func (c *Config) SpeciesTable() (*particles.Table, error) {
	entries := make([]particles.Species, len(c.Species))
	for i, sp := range c.Species {
		color := particles.Color{R: 255, G: 255, B: 255, A: 255}
		if sp.Color != "" {
			parsed, err := ParseColor(sp.Color)
			if err != nil {
				return nil, fmt.Errorf("%w: species %q: %v", ErrInvalid, sp.Name, err)
			}
			color = parsed
		}
		entries[i] = particles.Species{
			Name:   sp.Name,
			Color:  color,
			Mass:   float32(sp.Mass),
			Radius: float32(sp.Radius),
			Count:  sp.Count,
		}
	}

	table, err := particles.NewTable(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, r := range c.Rules {
		a := c.Derived.SpeciesIndex[r.A]
		b := c.Derived.SpeciesIndex[r.B]
		if err := table.SetRule(a, b, float32(r.Coefficient)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return table, nil
}

// ParseColor parses "#rrggbb" or "#rrggbbaa" hex notation.
func ParseColor(s string) (particles.Color, error) {
	if len(s) == 0 || s[0] != '#' || (len(s) != 7 && len(s) != 9) {
		return particles.Color{}, fmt.Errorf("color %q: expected #rrggbb or #rrggbbaa", s)
	}
	var bytes [4]uint8
	bytes[3] = 255
	for i := 0; i < (len(s)-1)/2; i++ {
		hi, ok1 := hexNibble(s[1+2*i])
		lo, ok2 := hexNibble(s[2+2*i])
		if !ok1 || !ok2 {
			return particles.Color{}, fmt.Errorf("color %q: invalid hex digit", s)
		}
		bytes[i] = hi<<4 | lo
	}
	return particles.Color{R: bytes[0], G: bytes[1], B: bytes[2], A: bytes[3]}, nil
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
