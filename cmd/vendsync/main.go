// vendsync - vending fleet synchronization service
//
// This is the main entry point for the vendsync service. It keeps a fleet of
// vending machines in sync with the admin dashboard over MQTT:
//   - Dispatches slot, product, and reboot commands to machines
//   - Runs the interactive broker connection test for operators
//   - Subscribes to the payment/sale event stream, persists records, and
//     relays them live to dashboard WebSocket clients
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/idea-vending/vendsync/migrations"

	"github.com/idea-vending/vendsync/internal/api"
	"github.com/idea-vending/vendsync/internal/command"
	"github.com/idea-vending/vendsync/internal/credentials"
	"github.com/idea-vending/vendsync/internal/diagnostic"
	"github.com/idea-vending/vendsync/internal/infrastructure/config"
	"github.com/idea-vending/vendsync/internal/infrastructure/database"
	"github.com/idea-vending/vendsync/internal/infrastructure/influxdb"
	"github.com/idea-vending/vendsync/internal/infrastructure/logging"
	"github.com/idea-vending/vendsync/internal/infrastructure/mqtt"
	"github.com/idea-vending/vendsync/internal/payment"
	"github.com/idea-vending/vendsync/internal/stream"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting vendsync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	repo := payment.NewSQLiteRepository(db)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT command/diagnostic components. These open short-lived broker
	// sessions on demand, so there is no connection to establish here.
	publisher := command.NewPublisher(cfg.MQTT, log)
	diagSession := diagnostic.NewSession(cfg.MQTT, log)
	fallback := credentials.NewStaticResolver(cfg.MQTT.Credentials)

	var dispatch *command.DispatchPolicy
	if cfg.Dispatch.Enabled {
		dispatch = command.NewDispatchPolicy(cfg.Dispatch.OperationsPerSec, cfg.Dispatch.Burst)
	}

	// API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Publisher:  publisher,
		Diagnostic: diagSession,
		Payments:   repo,
		Dispatch:   dispatch,
		Fallback:   fallback,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Event stream: persist every payment, mirror to InfluxDB when enabled,
	// and broadcast to WebSocket clients.
	var subscriber *stream.Subscriber
	if cfg.Stream.Enabled {
		sinks := stream.MultiSink{
			payment.NewStoreSink(repo, log),
			server.Hub(),
		}
		if influxClient != nil {
			sinks = append(sinks, payment.NewMetricsSink(influxClient))
		}

		onStatus := func(status stream.Status) {
			log.Info("stream status changed", "status", status)
			if influxClient != nil {
				influxClient.WriteStreamStatus(string(status))
			}
		}

		subscriber = stream.NewSubscriber(cfg.MQTT, cfg.Stream.Topics, sinks, onStatus, log)

		// A stream that cannot start must not take the service down with it:
		// payment history, diagnostics, and per-user command dispatch all work
		// without the shared stream session. The stream reports "disconnected"
		// through the API until the configuration is fixed.
		if startErr := subscriber.Start(fallback.Resolve()); startErr != nil {
			if errors.Is(startErr, mqtt.ErrMissingCredentials) {
				log.Warn("event stream not started: fallback broker credentials not configured")
			} else {
				log.Error("event stream failed to start", "error", startErr)
			}
		} else {
			log.Info("event stream started")
		}
		defer func() {
			log.Info("disconnecting event stream")
			subscriber.Disconnect()
		}()
	} else {
		log.Info("event stream disabled")
	}

	if subscriber != nil {
		// Surface stream state through the API once both exist.
		// (api.New ran before Start so the hub could be wired as a sink.)
		server.SetStream(subscriber)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify infrastructure is healthy
	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Tear down the diagnostic session if an operator left one open.
	diagSession.Disconnect()

	// Deferred Close() calls run in reverse order:
	// 1. API server (drains in-flight requests, closes WebSocket clients)
	// 2. Event stream
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("vendsync stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VENDSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VENDSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
// The MQTT broker is deliberately not checked here: command and diagnostic
// sessions are opened per operation and report their own failures.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
