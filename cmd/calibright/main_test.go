package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeDisplayConfig writes a calibration file with short DDC/CI delays.
func writeDisplayConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[global]\nddcci_sleep_multiplier = 0.01\n" + extra
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	plain := writeDisplayConfig(t, "")
	squared := writeDisplayConfig(t, "root_scaling = 2.0\n")

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"get", []string{"--config", plain, "--get"}, exitOK, "50\n", ""},
		{"get with root scaling", []string{"--config", squared, "--get"}, exitOK, "25\n", ""},
		{"set", []string{"--config", plain, "--set", "30"}, exitOK, "", ""},
		{"set clamps", []string{"--config", plain, "--set", "250"}, exitOK, "", ""},
		{"inc", []string{"--config", plain, "--inc", "10"}, exitOK, "", ""},
		{"dec", []string{"--config", plain, "--device", "sim1", "--dec", "10"}, exitOK, "", ""},
		{"missing config is defaults", []string{"--config", filepath.Join(t.TempDir(), "none.toml"), "--device", "sim0", "--get"}, exitOK, "50\n", ""},
		{"no action", []string{"--config", plain}, exitUsage, "", "exactly one"},
		{"two actions", []string{"--config", plain, "--get", "--set", "5"}, exitUsage, "", "exactly one"},
		{"stray argument", []string{"--config", plain, "--get", "extra"}, exitUsage, "", "unexpected argument"},
		{"bad regex", []string{"--config", plain, "--device", "(", "--get"}, exitError, "", "invalid --device regex"},
		{"no match", []string{"--config", plain, "--device", "ddcci", "--get"}, exitError, "", "no displays matched"},
		{"bad value", []string{"--config", plain, "--set", "abc"}, exitUsage, "", "invalid value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--no-hardware", "--simulate", "2"}, tt.args...)
			var stdout, stderr bytes.Buffer

			code := run(context.Background(), args, &stdout, &stderr)
			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr.String())
			}
			if stdout.String() != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.wantStdout)
			}
			if tt.wantStderr != "" && !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeDisplayConfig(t, "root_scaling = -1\n")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--no-hardware", "--simulate", "1", "--config", path, "--get"}, &stdout, &stderr)
	if code != exitError {
		t.Fatalf("exit code = %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr.String(), "root_scaling") {
		t.Errorf("stderr = %q, want the offending field", stderr.String())
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args       []string
		wantAction action
		wantValue  float64
	}{
		{[]string{"--get"}, actionGet, 0},
		{[]string{"--set", "40"}, actionSet, 40},
		{[]string{"--inc=5"}, actionInc, 5},
		{[]string{"--dec", "7.5"}, actionDec, 7.5},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			opts, err := parseArgs(tt.args, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("parseArgs() error = %v", err)
			}
			if opts.action != tt.wantAction || opts.value != tt.wantValue {
				t.Errorf("got action %d value %g, want %d %g", opts.action, opts.value, tt.wantAction, tt.wantValue)
			}
			if opts.device != "." {
				t.Errorf("device = %q, want default \".\"", opts.device)
			}
		})
	}
}
