package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/calibright/internal/infrastructure/config"
	"github.com/nerrad567/calibright/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records /api/v2/write bodies.
func fakeInflux(t *testing.T, healthy bool) (*httptest.Server, <-chan string) {
	t.Helper()
	writes := make(chan string, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/ping":
			if healthy {
				w.WriteHeader(http.StatusNoContent)
			} else {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		case r.URL.Path == "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			writes <- string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, writes
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "calibright-test-token",
		Org:           "calibright",
		Bucket:        "telemetry",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := influxdb.Connect(context.Background(), cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(context.Background(), testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteAndFlush(t *testing.T) {
	srv, writes := fakeInflux(t, true)

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.Write("link",
		map[string]string{"display": "ddcci6", "op": "set"},
		map[string]any{"attempts": 2, "ok": true},
		time.Unix(1700000000, 0))
	client.Flush()

	select {
	case body := <-writes:
		if !strings.Contains(body, "link,display=ddcci6,op=set") {
			t.Errorf("line protocol = %q", body)
		}
		if !strings.Contains(body, "attempts=2i") || !strings.Contains(body, "ok=true") {
			t.Errorf("fields missing in %q", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no write reached the server")
	}
}

func TestClose(t *testing.T) {
	srv, _ := fakeInflux(t, true)

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Writes and flushes after Close are dropped.
	client.Write("link", map[string]string{"display": "x"}, map[string]any{"ok": true}, time.Now())
	client.Flush()
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	srv, _ := fakeInflux(t, false)

	_, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}
