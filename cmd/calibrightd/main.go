// calibrightd is the calibright brightness daemon.
//
// It discovers DDC/CI monitors and backlight panels, applies per-display
// calibration from a hot-reloaded config file, and exposes control over
// HTTP, WebSocket and MQTT. Display inventory and config reloads are kept
// in SQLite; link telemetry can be sent to InfluxDB.
//
// Usage:
//
//	calibrightd               run the daemon
//	calibrightd migrate-down  roll back the latest inventory migration
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/calibright/internal/api"
	"github.com/nerrad567/calibright/internal/bridge"
	"github.com/nerrad567/calibright/internal/configstore"
	"github.com/nerrad567/calibright/internal/device"
	"github.com/nerrad567/calibright/internal/engine"
	"github.com/nerrad567/calibright/internal/infrastructure/config"
	"github.com/nerrad567/calibright/internal/infrastructure/database"
	"github.com/nerrad567/calibright/internal/infrastructure/influxdb"
	"github.com/nerrad567/calibright/internal/infrastructure/logging"
	"github.com/nerrad567/calibright/internal/infrastructure/mqtt"
	"github.com/nerrad567/calibright/internal/inventory"
	"github.com/nerrad567/calibright/internal/link"
	"github.com/nerrad567/calibright/internal/telemetry"
	"github.com/nerrad567/calibright/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		err = migrateDown(ctx)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// migrateDown rolls back the most recent inventory migration and exits.
// Run it with the daemon stopped.
func migrateDown(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("migration rolled back",
		"path", cfg.Database.Path,
		"applied", len(applied),
		"pending", len(pending),
	)
	return nil
}

// run is the daemon, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup wiring is linear
	log := logging.Default()
	log.Info("starting calibrightd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"display_config", cfg.Displays.ConfigFile,
	)

	// Inventory (optional)
	var db *database.DB
	var repo inventory.Repository
	var recorder *inventory.Recorder
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		sqliteRepo := inventory.NewSQLiteRepository(db.DB)
		if err := sqliteRepo.ResetPresence(ctx); err != nil {
			return fmt.Errorf("resetting display presence: %w", err)
		}
		repo = sqliteRepo
		recorder = inventory.NewRecorder(repo, inventory.DefaultBuffer)
		recorder.SetLogger(log)
	} else {
		log.Info("database disabled")
	}

	// Displays
	store := configstore.NewStore()
	registry, closeBus := buildRegistry(cfg, store, log)
	defer closeBus()

	eng := engine.New(store, registry, engine.Options{
		DiscoveryInterval: cfg.Displays.DiscoveryInterval,
	})
	eng.SetLogger(log)
	if recorder != nil {
		eng.Subscribe(recorder.Observe)
	}

	// Telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		eng.Subscribe(telemetry.NewRecorder(influxClient, cfg.Site.ID).Observe)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	var mqttBridge *bridge.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, mqtt.Topics{Site: cfg.Site.ID})
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)

		mqttBridge = bridge.New(mqttClient, mqttClient.Topics(), eng, byte(cfg.MQTT.QoS)) //nolint:gosec // qos validated 0..2
		mqttBridge.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
			go mqttBridge.RefreshAll()
		})
		eng.Subscribe(mqttBridge.Observe)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// HTTP API (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log,
			Engine:     eng,
			Inventory:  repo,
			ConfigFile: cfg.Displays.ConfigFile,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Observers are in place; load the calibration file before the first
	// discovery so no display starts on defaults.
	if _, err := eng.ReloadFile(cfg.Displays.ConfigFile, engine.ReloadStartup); err != nil {
		return fmt.Errorf("loading display config %s: %w", cfg.Displays.ConfigFile, err)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	if recorder != nil {
		g.Go(func() error { return recorder.Run(gctx) })
	}
	g.Go(func() error { return eng.Run(gctx) })

	if cfg.Displays.Watch {
		watcher := configstore.NewWatcher(cfg.Displays.ConfigFile, func() {
			//nolint:errcheck // outcome is logged and emitted by the engine
			eng.ReloadFile(cfg.Displays.ConfigFile, engine.ReloadWatch)
		})
		watcher.SetLogger(log)
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil {
				log.Warn("config watcher stopped, hot reload disabled", "error", err)
			}
			return nil
		})
	}

	if mqttBridge != nil {
		if err := mqttBridge.Start(gctx); err != nil {
			return fmt.Errorf("starting MQTT bridge: %w", err)
		}
		g.Go(func() error { return mqttBridge.Run(gctx) })
	}

	if apiServer != nil {
		if err := apiServer.Start(gctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("calibrightd stopped")
	return nil
}

// healthCheck verifies the optional infrastructure connections. Nil
// components are disabled and skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// buildRegistry assembles the discoverers enabled in cfg. Monitors are
// probed with their effective settings from store. The returned func
// releases the backlight bus.
func buildRegistry(cfg *config.Config, store *configstore.Store, log *logging.Logger) (*device.Registry, func()) {
	var discoverers []device.Discoverer
	closeBus := func() {}

	if cfg.Displays.DDCCI.Enabled {
		discoverers = append(discoverers, &device.DDCDiscoverer{
			Buses:      cfg.Displays.DDCCI.Buses,
			ProbeRetry: cfg.Displays.DDCCI.ProbeRetry,
			ProbeParams: func(id device.ID) link.Params {
				return link.ParamsFrom(store.EffectiveFor(id).Config)
			},
		})
	}
	if cfg.Displays.Backlight.Enabled {
		bus := device.NewLogindBus(cfg.Displays.Backlight.SysfsPath, cfg.Displays.Backlight.UseLogind)
		bus.SetLogger(log)
		discoverers = append(discoverers, &device.BacklightDiscoverer{Bus: bus})
		closeBus = func() {
			if err := bus.Close(); err != nil {
				log.Warn("closing logind connection", "error", err)
			}
		}
	}
	if cfg.Displays.Simulate > 0 {
		discoverers = append(discoverers, &device.StaticDiscoverer{
			Label:   "simulated",
			Devices: device.NewSimulatedMonitors(cfg.Displays.Simulate),
		})
		log.Info("simulated displays enabled", "count", cfg.Displays.Simulate)
	}

	registry := device.NewRegistry(cfg.DeviceFilter(), discoverers...)
	registry.SetLogger(log)
	return registry, closeBus
}

// getConfigPath returns the configuration file path.
// Uses CALIBRIGHT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CALIBRIGHT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
