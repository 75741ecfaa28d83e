package config

import (
	"errors"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	if cfg.Physics.DT <= 0 {
		t.Error("expected positive dt in defaults")
	}
	if len(cfg.Species) == 0 {
		t.Error("expected species in defaults")
	}
	if cfg.Derived.TotalParticles == 0 {
		t.Error("expected derived total particle count")
	}
	if cfg.Derived.Half.X != cfg.Derived.Bounds.X/2 {
		t.Errorf("Half.X = %v, want %v", cfg.Derived.Half.X, cfg.Derived.Bounds.X/2)
	}
	for name, i := range cfg.Derived.SpeciesIndex {
		if cfg.Species[i].Name != name {
			t.Errorf("SpeciesIndex[%q] = %d, points at %q", name, i, cfg.Species[i].Name)
		}
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero bounds axis", func(c *Config) { c.World.Bounds[1] = 0 }},
		{"negative dt", func(c *Config) { c.Physics.DT = -0.01 }},
		{"zero cell size", func(c *Config) { c.Physics.CellSize = 0 }},
		{"cell smaller than interaction radius", func(c *Config) {
			c.Physics.Partitioning = true
			c.Physics.CellSize = c.Physics.InteractionRadius / 2
		}},
		{"zero min distance", func(c *Config) { c.Physics.MinDistance = 0 }},
		{"zero max force", func(c *Config) { c.Physics.MaxForce = 0 }},
		{"zero max acceleration", func(c *Config) { c.Physics.MaxAcceleration = 0 }},
		{"zero max velocity", func(c *Config) { c.Physics.MaxVelocity = 0 }},
		{"dampening above one", func(c *Config) { c.Physics.Dampening = 1.1 }},
		{"negative bounce", func(c *Config) { c.Physics.BounceForce = -0.1 }},
		{"zero elasticity", func(c *Config) { c.Collision.Elasticity = 0 }},
		{"zero iterations", func(c *Config) { c.Collision.Iterations = 0 }},
		{"no species", func(c *Config) { c.Species = nil }},
		{"duplicate species name", func(c *Config) { c.Species[1].Name = c.Species[0].Name }},
		{"unnamed species", func(c *Config) { c.Species[0].Name = "" }},
		{"zero mass", func(c *Config) { c.Species[0].Mass = 0 }},
		{"zero radius", func(c *Config) { c.Species[0].Radius = 0 }},
		{"radius exceeds bounds", func(c *Config) { c.Species[0].Radius = c.World.Bounds[0] }},
		{"negative count", func(c *Config) { c.Species[0].Count = -5 }},
		{"zero total particles", func(c *Config) {
			for i := range c.Species {
				c.Species[i].Count = 0
			}
		}},
		{"bad color", func(c *Config) { c.Species[0].Color = "red" }},
		{"contact distance exceeds cell size", func(c *Config) {
			// Two radius-6 particles can overlap at distance 11, landing
			// two cells apart in a cell_size-10 grid.
			c.Species[0].Radius = 6
		}},
		{"staleness margin exceeds cell size", func(c *Config) {
			c.Physics.MaxVelocity = 400
		}},
		{"rule with unknown species", func(c *Config) {
			c.Rules = append(c.Rules, RuleConfig{A: "nope", B: c.Species[0].Name, Coefficient: 1})
		}},
		{"negative stats window", func(c *Config) { c.Telemetry.StatsWindow = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load defaults: %v", err)
			}
			tc.mutate(cfg)

			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestSpeciesTable_AppliesRules(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	table, err := cfg.SpeciesTable()
	if err != nil {
		t.Fatalf("SpeciesTable: %v", err)
	}

	if table.Len() != len(cfg.Species) {
		t.Fatalf("table len = %d, want %d", table.Len(), len(cfg.Species))
	}

	for _, r := range cfg.Rules {
		a := int32(cfg.Derived.SpeciesIndex[r.A])
		b := int32(cfg.Derived.SpeciesIndex[r.B])
		if got := table.Coefficient(a, b); got != float32(r.Coefficient) {
			t.Errorf("coefficient %s->%s = %v, want %v", r.A, r.B, got, r.Coefficient)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    [4]uint8
		wantErr bool
	}{
		{"#ff0080", [4]uint8{255, 0, 128, 255}, false},
		{"#FF0080", [4]uint8{255, 0, 128, 255}, false},
		{"#11223344", [4]uint8{17, 34, 51, 68}, false},
		{"ff0080", [4]uint8{}, true},
		{"#f08", [4]uint8{}, true},
		{"#gg0000", [4]uint8{}, true},
		{"", [4]uint8{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			c, err := ParseColor(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			got := [4]uint8{c.R, c.G, c.B, c.A}
			if got != tc.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
