package calibration

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func withBand(minPct, maxPct, root float64) DisplayConfig {
	c := Default()
	c.Calibration = Range{Min: minPct, Max: maxPct}
	c.RootScaling = root
	return c
}

func TestScaleUp(t *testing.T) {
	tests := []struct {
		name    string
		logical float64
		cfg     DisplayConfig
		want    float64
	}{
		{name: "identity midpoint", logical: 50, cfg: Default(), want: 50},
		{name: "band max 90 at 50", logical: 50, cfg: withBand(0, 90, 1), want: 45},
		{name: "zero lands on min", logical: 0, cfg: withBand(10, 90, 2), want: 10},
		{name: "hundred lands on max", logical: 100, cfg: withBand(10, 90, 2), want: 90},
		{name: "above range clamps", logical: 150, cfg: withBand(0, 80, 1), want: 80},
		{name: "below range clamps", logical: -5, cfg: withBand(20, 80, 1), want: 20},
		{name: "root 2 lifts midpoint", logical: 25, cfg: withBand(0, 100, 2), want: 50},
		{name: "root 0.5 lowers midpoint", logical: 50, cfg: withBand(0, 100, 0.5), want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScaleUp(tt.logical, tt.cfg)
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("ScaleUp(%g) = %g, want %g", tt.logical, got, tt.want)
			}
		})
	}
}

func TestScaleDown(t *testing.T) {
	tests := []struct {
		name     string
		physical float64
		cfg      DisplayConfig
		want     float64
	}{
		{name: "band max 90 reads 45 as 50", physical: 45, cfg: withBand(0, 90, 1), want: 50},
		{name: "above band clamps to 100", physical: 95, cfg: withBand(0, 90, 1), want: 100},
		{name: "below band clamps to 0", physical: 5, cfg: withBand(10, 90, 1), want: 0},
		{name: "root 2", physical: 50, cfg: withBand(0, 100, 2), want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScaleDown(tt.physical, tt.cfg)
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("ScaleDown(%g) = %g, want %g", tt.physical, got, tt.want)
			}
		})
	}
}

func TestScaleRoundTrip(t *testing.T) {
	configs := []DisplayConfig{
		Default(),
		withBand(0, 90, 1),
		withBand(0, 70, 0.1),
		withBand(5, 95, 10),
		withBand(33, 34, 3.3),
	}
	for _, cfg := range configs {
		for x := 0.0; x <= 100; x += 0.5 {
			got := ScaleDown(ScaleUp(x, cfg), cfg)
			if math.Abs(got-x) > 1e-6 {
				t.Fatalf("cfg %+v: ScaleDown(ScaleUp(%g)) = %g", cfg, x, got)
			}
		}
	}
}

func TestScaleMonotone(t *testing.T) {
	cfg := withBand(12, 88, 2.5)
	prevUp, prevDown := -1.0, -1.0
	for x := -10.0; x <= 110; x += 0.25 {
		up := ScaleUp(x, cfg)
		down := ScaleDown(x, cfg)
		if up < prevUp {
			t.Fatalf("ScaleUp not monotone at %g: %g < %g", x, up, prevUp)
		}
		if down < prevDown {
			t.Fatalf("ScaleDown not monotone at %g: %g < %g", x, down, prevDown)
		}
		if up < cfg.Calibration.Min || up > cfg.Calibration.Max {
			t.Fatalf("ScaleUp(%g) = %g escapes band", x, up)
		}
		prevUp, prevDown = up, down
	}
}

func TestToRawFromRaw(t *testing.T) {
	tests := []struct {
		percent float64
		hwMax   uint32
		want    uint32
	}{
		{percent: 45, hwMax: 100, want: 45},
		{percent: 50, hwMax: 255, want: 128},
		{percent: 100, hwMax: 19393, want: 19393},
		{percent: 0, hwMax: 19393, want: 0},
		{percent: 120, hwMax: 10, want: 10},
		{percent: 50, hwMax: 0, want: 0},
	}
	for _, tt := range tests {
		if got := ToRaw(tt.percent, tt.hwMax); got != tt.want {
			t.Errorf("ToRaw(%g, %d) = %d, want %d", tt.percent, tt.hwMax, got, tt.want)
		}
	}

	if got := FromRaw(45, 100); got != 45 {
		t.Errorf("FromRaw(45, 100) = %g, want 45", got)
	}
	if got := FromRaw(5, 0); got != 0 {
		t.Errorf("FromRaw with zero max = %g, want 0", got)
	}
}
