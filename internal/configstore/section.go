package configstore

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/calibright/internal/calibration"
)

// Section is a partially specified display configuration. Nil fields
// inherit from the level above (global inherits from defaults).
type Section struct {
	RootScaling            *float64    `toml:"root_scaling" yaml:"root_scaling,omitempty" json:"root_scaling,omitempty"`
	DDCCISleepMultiplier   *float64    `toml:"ddcci_sleep_multiplier" yaml:"ddcci_sleep_multiplier,omitempty" json:"ddcci_sleep_multiplier,omitempty"`
	DDCCIMaxTriesWriteRead *int        `toml:"ddcci_max_tries_write_read" yaml:"ddcci_max_tries_write_read,omitempty" json:"ddcci_max_tries_write_read,omitempty"`
	Calibration            Calibration `toml:"calibration" yaml:"calibration,omitempty" json:"calibration,omitzero"`
}

// Resolve applies s on top of base.
func (s Section) Resolve(base calibration.DisplayConfig) calibration.DisplayConfig {
	out := base
	if s.RootScaling != nil {
		out.RootScaling = *s.RootScaling
	}
	if s.DDCCISleepMultiplier != nil {
		out.DDCCISleepMultiplier = *s.DDCCISleepMultiplier
	}
	if s.DDCCIMaxTriesWriteRead != nil {
		out.DDCCIMaxTriesWriteRead = *s.DDCCIMaxTriesWriteRead
	}
	if s.Calibration.Min != nil {
		out.Calibration.Min = *s.Calibration.Min
	}
	if s.Calibration.Max != nil {
		out.Calibration.Max = *s.Calibration.Max
	}
	return out
}

// Calibration is a calibration band as written in configuration: either
// a scalar (the maximum only) or a [min, max] pair. The zero value means
// not set.
type Calibration struct {
	Min *float64
	Max *float64
}

// Scalar returns a calibration that sets only the maximum.
func Scalar(maxPct float64) Calibration {
	return Calibration{Max: &maxPct}
}

// Pair returns a calibration that sets both ends.
func Pair(minPct, maxPct float64) Calibration {
	return Calibration{Min: &minPct, Max: &maxPct}
}

// IsZero reports whether no calibration was given.
func (c Calibration) IsZero() bool {
	return c.Min == nil && c.Max == nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (c *Calibration) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case []any:
		vals := make([]float64, 0, len(x))
		for _, e := range x {
			f, ok := number(e)
			if !ok {
				return fmt.Errorf("calibration: %v is not a number", e)
			}
			vals = append(vals, f)
		}
		return c.set(vals)
	default:
		f, ok := number(v)
		if !ok {
			return fmt.Errorf("calibration: expected number or [min, max], got %T", v)
		}
		return c.set([]float64{f})
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Calibration) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var f float64
		if err := node.Decode(&f); err != nil {
			return fmt.Errorf("calibration: %w", err)
		}
		return c.set([]float64{f})
	case yaml.SequenceNode:
		var vals []float64
		if err := node.Decode(&vals); err != nil {
			return fmt.Errorf("calibration: %w", err)
		}
		return c.set(vals)
	default:
		return fmt.Errorf("calibration: expected number or [min, max] at line %d", node.Line)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Calibration) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		return c.set([]float64{f})
	}
	var vals []float64
	if err := json.Unmarshal(b, &vals); err != nil {
		return fmt.Errorf("calibration: expected number or [min, max]")
	}
	return c.set(vals)
}

// MarshalJSON writes the same shape that was read.
func (c Calibration) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.value())
}

// MarshalYAML writes the same shape that was read.
func (c Calibration) MarshalYAML() (any, error) {
	return c.value(), nil
}

func (c Calibration) value() any {
	switch {
	case c.Min != nil && c.Max != nil:
		return []float64{*c.Min, *c.Max}
	case c.Max != nil:
		return *c.Max
	default:
		return nil
	}
}

func (c *Calibration) set(vals []float64) error {
	switch len(vals) {
	case 1:
		c.Min, c.Max = nil, &vals[0]
	case 2:
		c.Min, c.Max = &vals[0], &vals[1]
	default:
		return fmt.Errorf("calibration: expected 1 or 2 values, got %d", len(vals))
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
