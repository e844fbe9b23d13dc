package calibration

import (
	"fmt"
	"strings"
)

// Limits enforced by Validate.
const (
	MinRootScaling = 0.1
	MaxRootScaling = 10.0
	MinPercent     = 0.0
	MaxPercent     = 100.0
)

// Defaults applied to anything not set in configuration.
const (
	DefaultRootScaling            = 1.0
	DefaultDDCCISleepMultiplier   = 1.0
	DefaultDDCCIMaxTriesWriteRead = 10
)

// Range is a calibration band in percent of the hardware maximum.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DisplayConfig is the fully resolved per-display configuration.
type DisplayConfig struct {
	RootScaling            float64 `json:"root_scaling"`
	DDCCISleepMultiplier   float64 `json:"ddcci_sleep_multiplier"`
	DDCCIMaxTriesWriteRead int     `json:"ddcci_max_tries_write_read"`
	Calibration            Range   `json:"calibration"`
}

// Default returns the configuration used when nothing is configured.
func Default() DisplayConfig {
	return DisplayConfig{
		RootScaling:            DefaultRootScaling,
		DDCCISleepMultiplier:   DefaultDDCCISleepMultiplier,
		DDCCIMaxTriesWriteRead: DefaultDDCCIMaxTriesWriteRead,
		Calibration:            Range{Min: MinPercent, Max: MaxPercent},
	}
}

// Validate checks every field and reports all problems at once.
func (c DisplayConfig) Validate() error {
	var errs []string

	if !inRange(c.RootScaling, MinRootScaling, MaxRootScaling) {
		errs = append(errs, fmt.Sprintf("root_scaling %g outside [%g, %g]", c.RootScaling, MinRootScaling, MaxRootScaling))
	}
	if !(c.DDCCISleepMultiplier > 0) {
		errs = append(errs, fmt.Sprintf("ddcci_sleep_multiplier %g must be positive", c.DDCCISleepMultiplier))
	}
	if c.DDCCIMaxTriesWriteRead < 1 {
		errs = append(errs, fmt.Sprintf("ddcci_max_tries_write_read %d must be at least 1", c.DDCCIMaxTriesWriteRead))
	}

	cal := c.Calibration
	if !inRange(cal.Min, MinPercent, MaxPercent) {
		errs = append(errs, fmt.Sprintf("calibration min %g outside [0, 100]", cal.Min))
	}
	if !inRange(cal.Max, MinPercent, MaxPercent) {
		errs = append(errs, fmt.Sprintf("calibration max %g outside [0, 100]", cal.Max))
	}
	if !(cal.Min < cal.Max) {
		errs = append(errs, fmt.Sprintf("calibration min %g must be below max %g", cal.Min, cal.Max))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// inRange is false for NaN.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
