package calibration

import "math"

// ScaleUp converts a logical brightness (0-100) into a physical percentage
// inside the display's calibration band.
func ScaleUp(logical float64, cfg DisplayConfig) float64 {
	lo, hi := cfg.Calibration.Min, cfg.Calibration.Max
	x := clamp(logical, MinPercent, MaxPercent) / MaxPercent

	physical := lo + (hi-lo)*math.Pow(x, 1/cfg.RootScaling)
	return clamp(physical, lo, hi)
}

// ScaleDown converts a physical percentage back into logical brightness.
// Values outside the calibration band are clamped to its edges first.
func ScaleDown(physical float64, cfg DisplayConfig) float64 {
	lo, hi := cfg.Calibration.Min, cfg.Calibration.Max
	if hi <= lo {
		return MinPercent
	}
	p := clamp(physical, lo, hi)

	logical := MaxPercent * math.Pow((p-lo)/(hi-lo), cfg.RootScaling)
	return clamp(logical, MinPercent, MaxPercent)
}

// ToRaw converts a percentage of the hardware maximum into a raw value.
func ToRaw(percent float64, hwMax uint32) uint32 {
	if hwMax == 0 {
		return 0
	}
	p := clamp(percent, MinPercent, MaxPercent)
	return uint32(math.Round(p / MaxPercent * float64(hwMax)))
}

// FromRaw converts a raw hardware value into a percentage of hwMax.
func FromRaw(raw, hwMax uint32) float64 {
	if hwMax == 0 {
		return 0
	}
	return clamp(float64(raw)/float64(hwMax)*MaxPercent, MinPercent, MaxPercent)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
