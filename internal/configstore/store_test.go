package configstore

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/calibright/internal/calibration"
	"github.com/nerrad567/calibright/internal/device"
)

func ptr[T any](v T) *T { return &v }

func TestEffectiveForDefaults(t *testing.T) {
	s := NewStore()
	eff := s.EffectiveFor("ddcci6")
	if eff.Overridden {
		t.Error("Overridden = true on empty store")
	}
	if eff.Config != calibration.Default() {
		t.Errorf("Config = %+v, want defaults", eff.Config)
	}
}

func TestReplaceResolvesOverrides(t *testing.T) {
	s := NewStore()
	changed, err := s.Replace(
		Section{RootScaling: ptr(2.0), Calibration: Pair(10, 100)},
		map[device.ID]Section{
			"ddcci6":          {Calibration: Scalar(90)},
			"intel_backlight": {DDCCISleepMultiplier: ptr(1.5)},
		},
	)
	if err != nil {
		t.Fatalf("Replace() error: %v", err)
	}
	if !changed {
		t.Fatal("Replace() changed = false")
	}

	tests := []struct {
		id        device.ID
		want      calibration.DisplayConfig
		overriden bool
	}{
		{
			id:        "ddcci6",
			overriden: true,
			want: calibration.DisplayConfig{
				RootScaling: 2, DDCCISleepMultiplier: 1, DDCCIMaxTriesWriteRead: 10,
				Calibration: calibration.Range{Min: 10, Max: 90},
			},
		},
		{
			id:        "intel_backlight",
			overriden: true,
			want: calibration.DisplayConfig{
				RootScaling: 2, DDCCISleepMultiplier: 1.5, DDCCIMaxTriesWriteRead: 10,
				Calibration: calibration.Range{Min: 10, Max: 100},
			},
		},
		{
			id: "ddcci9",
			want: calibration.DisplayConfig{
				RootScaling: 2, DDCCISleepMultiplier: 1, DDCCIMaxTriesWriteRead: 10,
				Calibration: calibration.Range{Min: 10, Max: 100},
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			eff := s.EffectiveFor(tt.id)
			if eff.Config != tt.want {
				t.Errorf("Config = %+v, want %+v", eff.Config, tt.want)
			}
			if eff.Overridden != tt.overriden {
				t.Errorf("Overridden = %v, want %v", eff.Overridden, tt.overriden)
			}
		})
	}
}

func TestReplaceScalarCalibrationMidpoint(t *testing.T) {
	s := NewStore()
	if _, err := s.Replace(Section{}, map[device.ID]Section{"ddcci6": {Calibration: Scalar(90)}}); err != nil {
		t.Fatal(err)
	}
	cfg := s.EffectiveFor("ddcci6").Config
	if got := calibration.ScaleUp(50, cfg); got != 45 {
		t.Errorf("ScaleUp(50) = %g, want 45", got)
	}
}

func TestReplaceInvalidKeepsPrevious(t *testing.T) {
	s := NewStore()
	if _, err := s.Replace(Section{RootScaling: ptr(2.0)}, nil); err != nil {
		t.Fatal(err)
	}
	before := s.Current()

	_, err := s.Replace(
		Section{RootScaling: ptr(3.0)},
		map[device.ID]Section{
			"ddcci6": {RootScaling: ptr(50.0)},
			"ddcci7": {Calibration: Pair(80, 20)},
		},
	)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Replace() error = %v, want ErrInvalidConfig", err)
	}
	if !errors.Is(err, calibration.ErrInvalidConfig) {
		t.Errorf("Replace() error should wrap calibration.ErrInvalidConfig")
	}
	for _, want := range []string{"ddcci6", "ddcci7", "root_scaling", "below max"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
	if s.Current() != before {
		t.Error("snapshot changed after rejected reload")
	}
	if got := s.EffectiveFor("ddcci6").Config.RootScaling; got != 2 {
		t.Errorf("root_scaling = %g, want 2 (last known good)", got)
	}
}

func TestReplaceIdenticalIsNoop(t *testing.T) {
	s := NewStore()
	global := Section{RootScaling: ptr(1.5)}
	overrides := map[device.ID]Section{"ddcci6": {Calibration: Scalar(80)}}

	if changed, err := s.Replace(global, overrides); err != nil || !changed {
		t.Fatalf("first Replace() = %v, %v", changed, err)
	}
	v := s.Current().Version

	changed, err := s.Replace(global, overrides)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("identical Replace() reported a change")
	}
	if s.Current().Version != v {
		t.Errorf("version bumped from %d to %d", v, s.Current().Version)
	}
}

func TestReplaceRejectsReservedID(t *testing.T) {
	s := NewStore()
	_, err := s.Replace(Section{}, map[device.ID]Section{"global": {}})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestConcurrentReadersDuringReplace(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cfg := s.EffectiveFor("ddcci6").Config
				if err := cfg.Validate(); err != nil {
					t.Errorf("reader saw invalid config: %v", err)
					return
				}
			}
		}()
	}

	for i := range 50 {
		root := 1 + float64(i%5)
		if _, err := s.Replace(Section{RootScaling: &root}, nil); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}
