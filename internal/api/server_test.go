package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/calibright/internal/configstore"
	"github.com/nerrad567/calibright/internal/device"
	"github.com/nerrad567/calibright/internal/engine"
	"github.com/nerrad567/calibright/internal/infrastructure/config"
	"github.com/nerrad567/calibright/internal/infrastructure/database"
	"github.com/nerrad567/calibright/internal/infrastructure/logging"
	"github.com/nerrad567/calibright/internal/inventory"
	"github.com/nerrad567/calibright/migrations"
)

func ptr[T any](v T) *T { return &v }

// testServer creates a Server over an engine with two simulated monitors,
// sim0 and sim1, both at 50%.
func testServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()

	disc := &device.StaticDiscoverer{Label: "sim", Devices: device.NewSimulatedMonitors(2)}
	eng := engine.New(configstore.NewStore(), device.NewRegistry(nil, disc), engine.Options{})
	fast := configstore.Section{DDCCISleepMultiplier: ptr(0.01), DDCCIMaxTriesWriteRead: ptr(3)}
	if _, err := eng.ReloadConfig(fast, nil); err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}
	if err := eng.Rediscover(context.Background()); err != nil {
		t.Fatalf("Rediscover: %v", err)
	}
	t.Cleanup(eng.Close)

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:  logging.Discard(),
		Engine:  eng,
		Version: "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

// do sends a request through the router and decodes the JSON response.
func do(t *testing.T, srv *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func approx(got any, want float64) bool {
	f, ok := got.(float64)
	return ok && math.Abs(f-want) < 1e-6
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Engine: &engine.Engine{}}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without engine should fail")
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t, nil)

	w, resp := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("body = %v", resp)
	}
	if !approx(resp["displays"], 2) {
		t.Errorf("displays = %v, want 2", resp["displays"])
	}
}

func TestRequestID(t *testing.T) {
	srv := testServer(t, nil)

	w, _ := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id" {
		t.Errorf("X-Request-ID = %q, want client-id", got)
	}
}

func TestCORS(t *testing.T) {
	srv := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://allowed.test"}
	})

	tests := []struct {
		origin    string
		wantAllow string
	}{
		{"http://allowed.test", "http://allowed.test"},
		{"http://other.test", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Errorf("status = %d, want 204", w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	srv := testServer(t, nil)

	w, resp := do(t, srv, http.MethodGet, "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if resp["code"] != ErrCodeNotFound {
		t.Errorf("code = %v", resp["code"])
	}
}

func TestListDisplays(t *testing.T) {
	srv := testServer(t, nil)

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantCount float64
	}{
		{"all", "/api/v1/displays", http.StatusOK, 2},
		{"filtered", "/api/v1/displays?device=1$", http.StatusOK, 1},
		{"no match", "/api/v1/displays?device=ddcci", http.StatusOK, 0},
		{"bad regex", "/api/v1/displays?device=(", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, srv, http.MethodGet, tt.target, "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && !approx(resp["count"], tt.wantCount) {
				t.Errorf("count = %v, want %v", resp["count"], tt.wantCount)
			}
		})
	}
}

func TestGetDisplay(t *testing.T) {
	srv := testServer(t, nil)

	w, resp := do(t, srv, http.MethodGet, "/api/v1/displays/sim0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp["id"] != "sim0" || resp["kind"] != "ddcci" {
		t.Errorf("id/kind = %v/%v", resp["id"], resp["kind"])
	}
	if !approx(resp["brightness"], 50) {
		t.Errorf("brightness = %v, want 50", resp["brightness"])
	}
	if _, ok := resp["effective"].(map[string]any); !ok {
		t.Errorf("effective missing: %v", resp)
	}
	if _, ok := resp["inventory"]; ok {
		t.Error("inventory present without a repository")
	}

	w, _ = do(t, srv, http.MethodGet, "/api/v1/displays/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown display status = %d, want 404", w.Code)
	}
}

func TestSetAndGetBrightness(t *testing.T) {
	srv := testServer(t, nil)

	w, resp := do(t, srv, http.MethodPut, "/api/v1/displays/sim0/brightness", `{"brightness": 150}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", w.Code, w.Body.String())
	}
	if !approx(resp["brightness"], 100) {
		t.Errorf("PUT brightness = %v, want clamped 100", resp["brightness"])
	}

	w, resp = do(t, srv, http.MethodGet, "/api/v1/displays/sim0/brightness", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	if !approx(resp["brightness"], 100) {
		t.Errorf("GET brightness = %v, want 100", resp["brightness"])
	}

	// sim1 untouched
	_, resp = do(t, srv, http.MethodGet, "/api/v1/displays/sim1/brightness", "")
	if !approx(resp["brightness"], 50) {
		t.Errorf("sim1 brightness = %v, want 50", resp["brightness"])
	}
}

func TestSetBrightness_BadRequests(t *testing.T) {
	srv := testServer(t, nil)

	tests := []struct {
		name     string
		target   string
		body     string
		wantCode int
	}{
		{"invalid json", "/api/v1/displays/sim0/brightness", "not json", http.StatusBadRequest},
		{"missing field", "/api/v1/displays/sim0/brightness", `{}`, http.StatusBadRequest},
		{"unknown field", "/api/v1/displays/sim0/brightness", `{"brightness": 5, "x": 1}`, http.StatusBadRequest},
		{"unknown display", "/api/v1/displays/nope/brightness", `{"brightness": 5}`, http.StatusNotFound},
		{"aggregate missing", "/api/v1/brightness", `{"delta": 5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, srv, http.MethodPut, tt.target, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	srv := testServer(t, nil)

	w, _ := do(t, srv, http.MethodPut, "/api/v1/displays/sim0/brightness", `{"brightness": 20}`)
	if w.Code != http.StatusOK {
		t.Fatalf("setup PUT status = %d", w.Code)
	}

	_, resp := do(t, srv, http.MethodGet, "/api/v1/brightness", "")
	if !approx(resp["brightness"], 35) {
		t.Errorf("mean = %v, want 35", resp["brightness"])
	}

	w, _ = do(t, srv, http.MethodPut, "/api/v1/brightness?device=^sim", `{"brightness": 70}`)
	if w.Code != http.StatusOK {
		t.Fatalf("aggregate PUT status = %d", w.Code)
	}
	for _, id := range []string{"sim0", "sim1"} {
		_, resp = do(t, srv, http.MethodGet, "/api/v1/displays/"+id+"/brightness", "")
		if !approx(resp["brightness"], 70) {
			t.Errorf("%s = %v, want 70", id, resp["brightness"])
		}
	}

	w, resp = do(t, srv, http.MethodPost, "/api/v1/brightness/adjust", `{"delta": 50}`)
	if w.Code != http.StatusOK || !approx(resp["brightness"], 100) {
		t.Errorf("adjust = %d %v, want 200 and 100", w.Code, resp["brightness"])
	}

	w, _ = do(t, srv, http.MethodGet, "/api/v1/brightness?device=ddcci", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("no match status = %d, want 404", w.Code)
	}
}

func TestAdjustDisplay(t *testing.T) {
	srv := testServer(t, nil)

	w, resp := do(t, srv, http.MethodPost, "/api/v1/displays/sim1/adjust", `{"delta": -20}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !approx(resp["brightness"], 30) {
		t.Errorf("brightness = %v, want 30", resp["brightness"])
	}

	w, _ = do(t, srv, http.MethodPost, "/api/v1/displays/sim1/adjust", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing delta status = %d, want 400", w.Code)
	}
}

func TestDiscover(t *testing.T) {
	srv := testServer(t, nil)

	w, resp := do(t, srv, http.MethodPost, "/api/v1/displays/discover", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !approx(resp["count"], 2) {
		t.Errorf("count = %v, want 2", resp["count"])
	}
}

func TestConfigReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	srv := testServer(t, func(d *Deps) { d.ConfigFile = path })

	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	write("[global]\nddcci_sleep_multiplier = 0.01\n\n[sim0]\ncalibration = [10, 90]\n")
	w, resp := do(t, srv, http.MethodPost, "/api/v1/config/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp["changed"] != true {
		t.Errorf("changed = %v, want true", resp["changed"])
	}

	_, resp = do(t, srv, http.MethodGet, "/api/v1/config", "")
	if resp["file"] != path {
		t.Errorf("file = %v", resp["file"])
	}
	overrides, _ := resp["overrides"].(map[string]any)
	if _, ok := overrides["sim0"]; !ok {
		t.Errorf("overrides = %v, want sim0", resp["overrides"])
	}

	write("[global]\nroot_scaling = -1\n")
	w, _ = do(t, srv, http.MethodPost, "/api/v1/config/reload", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid reload status = %d, want 422", w.Code)
	}

	write("[global\n")
	w, _ = do(t, srv, http.MethodPost, "/api/v1/config/reload", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unparsable reload status = %d, want 400", w.Code)
	}
}

func TestConfigReload_NoFile(t *testing.T) {
	srv := testServer(t, nil)

	w, _ := do(t, srv, http.MethodPost, "/api/v1/config/reload", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestListReloads(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	repo := inventory.NewSQLiteRepository(db.DB)
	for _, src := range []string{engine.ReloadStartup, engine.ReloadWatch} {
		if err := repo.RecordReload(ctx, &inventory.Reload{Source: src, Accepted: true, Changed: true, Version: 2}); err != nil {
			t.Fatal(err)
		}
	}

	srv := testServer(t, func(d *Deps) { d.Inventory = repo })

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantCount float64
	}{
		{"default limit", "/api/v1/reloads", http.StatusOK, 2},
		{"limit", "/api/v1/reloads?limit=1", http.StatusOK, 1},
		{"bad limit", "/api/v1/reloads?limit=x", http.StatusBadRequest, 0},
		{"zero limit", "/api/v1/reloads?limit=0", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, srv, http.MethodGet, tt.target, "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && !approx(resp["count"], tt.wantCount) {
				t.Errorf("count = %v, want %v", resp["count"], tt.wantCount)
			}
		})
	}

	// Inventory shows up on the display detail once the display is recorded.
	if err := repo.UpsertSeen(ctx, "sim0", device.KindDDCCI, time.Now()); err != nil {
		t.Fatal(err)
	}
	_, resp := do(t, srv, http.MethodGet, "/api/v1/displays/sim0", "")
	if _, ok := resp["inventory"].(map[string]any); !ok {
		t.Errorf("inventory missing: %v", resp)
	}
}

func TestListReloads_NoDatabase(t *testing.T) {
	srv := testServer(t, nil)

	w, resp := do(t, srv, http.MethodGet, "/api/v1/reloads", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if resp["code"] != ErrCodeUnavailable {
		t.Errorf("code = %v", resp["code"])
	}
}

func TestStartAndClose(t *testing.T) {
	srv := testServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if srv.Addr() == "" {
		t.Error("Addr() empty after Start")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
