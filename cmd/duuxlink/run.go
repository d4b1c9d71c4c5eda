package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/duuxlink/internal/api"
	"github.com/nerrad567/duuxlink/internal/device"
	"github.com/nerrad567/duuxlink/internal/dispatch"
	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
	"github.com/nerrad567/duuxlink/internal/infrastructure/database"
	"github.com/nerrad567/duuxlink/internal/infrastructure/influxdb"
	"github.com/nerrad567/duuxlink/internal/infrastructure/logging"
	"github.com/nerrad567/duuxlink/internal/integration"
	"github.com/nerrad567/duuxlink/internal/probe"
	"github.com/nerrad567/duuxlink/internal/profile"
	"github.com/nerrad567/duuxlink/internal/session"
)

const (
	// dispatchQueueSize is the capacity of the shared listener job queue.
	dispatchQueueSize = 256

	// sessionReportSpec is the cron schedule for session counts in InfluxDB.
	sessionReportSpec = "@every 1m"
)

func runCommand(c *cli.Context) error {
	log := logging.Default()
	log.Info("starting duuxlink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := c.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	return run(c.Context, cfg)
}

// run is the service logic, separated from the CLI for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, registry, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	created, updated, err := registry.SyncConfigFile(ctx, cfg.Devices)
	if err != nil {
		return fmt.Errorf("syncing configured devices: %w", err)
	}
	log.Info("device registry initialised",
		"devices", registry.Count(),
		"created_from_config", created,
		"updated_from_config", updated,
	)

	profiles, err := profile.Builtin(log.Component("profile"))
	if err != nil {
		return fmt.Errorf("loading device profiles: %w", err)
	}
	log.Info("device profiles loaded",
		"models", len(profiles.Models()),
		"rejected", len(profiles.Rejected()),
	)

	loop := dispatch.NewLoop(dispatchQueueSize)
	loop.SetLogger(log.Component("dispatch"))

	manager := integration.NewManager(profiles, cfg.Broker, loop, integration.MQTTClientFactory)
	manager.SetLogger(log.Component("integration"))

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		var connErr error
		influxClient, connErr = influxdb.Connect(ctx, cfg.InfluxDB, func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		manager.SetTelemetry(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if influxClient != nil {
		reports := cron.New()
		if _, err := reports.AddFunc(sessionReportSpec, func() {
			writeSessionReport(manager, influxClient)
		}); err != nil {
			return fmt.Errorf("scheduling session reports: %w", err)
		}
		reports.Start()
		defer func() { <-reports.Stop().Done() }()
	}

	// stop also ends the dispatch loop when startup fails below.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	eg, egCtx := errgroup.WithContext(runCtx)
	eg.Go(func() error {
		loop.Run(egCtx) //nolint:errcheck // only ever returns the context error
		log.Info("dispatch loop stopped")
		return nil
	})

	// The server registers its live update hook on the manager, so it is
	// built before any device is set up.
	var server *api.Server
	if cfg.API.Enabled {
		prober := probe.New(probe.MQTTDialer, cfg.GetProbeTimeout())
		prober.SetLogger(log.Component("probe"))

		deps := api.Deps{
			Config:   cfg.API,
			Broker:   cfg.Broker,
			Logger:   log.Component("api"),
			Registry: registry,
			Manager:  manager,
			Profiles: profiles,
			Prober:   prober,
			DB:       db,
			Version:  version,
		}
		if influxClient != nil {
			deps.Influx = influxClient
		}
		server, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
	}

	if setupErr := manager.SetupAll(egCtx, registry.List()); setupErr != nil {
		log.Warn("some devices were not set up", "error", setupErr)
	}
	log.Info("device sessions started", "sessions", len(manager.Devices()))

	if server != nil {
		if err := server.Start(egCtx); err != nil {
			manager.Close() //nolint:errcheck // startup failure path
			return fmt.Errorf("starting API server: %w", err)
		}
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	eg.Go(func() error {
		<-egCtx.Done()
		log.Info("shutdown signal received, cleaning up")

		if server != nil {
			if err := server.Close(); err != nil {
				log.Error("error closing API server", "error", err)
			}
		}
		if err := manager.Close(); err != nil {
			log.Error("error closing device sessions", "error", err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	log.Info("duuxlink stopped")
	return nil
}

// openStore opens and migrates the database and loads the device registry.
// Legacy entries are upgraded before the registry cache is filled.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, *device.Registry, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	repo := device.NewSQLiteRepository(db.DB)
	upgraded, err := repo.UpgradeEntries(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("upgrading device entries: %w", err)
	}
	if upgraded > 0 {
		log.Info("legacy device entries upgraded", "count", upgraded)
	}

	registry := device.NewRegistry(repo)
	registry.SetLogger(log.Component("device"))
	if err := registry.RefreshCache(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("loading device registry: %w", err)
	}
	return db, registry, nil
}

// writeSessionReport writes the number of live and connected sessions to
// InfluxDB.
func writeSessionReport(manager *integration.Manager, influx *influxdb.Client) {
	devices := manager.Devices()
	connected := lo.CountBy(devices, func(d *integration.Device) bool {
		return d.Session.State() == session.StateConnected
	})
	influx.ReportSessions(len(devices), connected)
}
