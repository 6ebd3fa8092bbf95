// doorlockd is the smart-lock delegation and relay service.
//
// It registers locks, turns lock-signed invites into durable authorizations,
// answers locks' authorization queries, and relays app commands to each
// lock's live socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/doorlock-core/migrations"

	"github.com/nerrad567/doorlock-core/internal/access"
	"github.com/nerrad567/doorlock-core/internal/account"
	"github.com/nerrad567/doorlock-core/internal/api"
	"github.com/nerrad567/doorlock-core/internal/auth"
	"github.com/nerrad567/doorlock-core/internal/events"
	"github.com/nerrad567/doorlock-core/internal/infrastructure/config"
	"github.com/nerrad567/doorlock-core/internal/infrastructure/database"
	"github.com/nerrad567/doorlock-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/doorlock-core/internal/infrastructure/logging"
	"github.com/nerrad567/doorlock-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/doorlock-core/internal/invite"
	"github.com/nerrad567/doorlock-core/internal/lock"
	"github.com/nerrad567/doorlock-core/internal/relay"
	"github.com/nerrad567/doorlock-core/internal/store"
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
	flags := pflag.NewFlagSet("doorlockd", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to config.yaml (default $DOORLOCK_CONFIG or "+defaultConfigPath+")")
	showVersion := flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Printf("doorlockd %s (%s, %s)\n", version, commit, date)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, resolveConfigPath(*configPath)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath prefers the flag, then DOORLOCK_CONFIG, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("DOORLOCK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting doorlockd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// Document store
	db, err := database.Open(ctx, database.Config{
		Driver:      cfg.Database.Driver,
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
		DSN:         cfg.Database.DSN,
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
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	st, err := store.NewSQLStore(db.DB, db.Driver())
	if err != nil {
		return err
	}
	log.Info("document store ready", "driver", db.Driver())

	// MQTT (optional): event publishing and lock check-ins
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(ctx, cfg.MQTT)
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
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional): relay and lock event telemetry
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
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	emitter := newEmitter(mqttClient, influxClient, log)
	defer emitter.Close()

	// Domain services
	locks := lock.NewRegistry(st)
	locks.SetLogger(log.With("component", "locks"))
	locks.SetEvents(emitter)

	directory := access.NewDirectory(st, locks)
	accounts := account.NewService(st, directory)

	invites := invite.NewService(st, locks, directory, accounts, invite.Options{
		EnforceExpiration: cfg.Invites.EnforceExpiration,
	})
	invites.SetLogger(log.With("component", "invites"))
	invites.SetEvents(emitter)

	pool := relay.NewPool(locks, relay.Config{
		LockPort:       cfg.Relay.LockPort,
		DialTimeout:    cfg.RelayDialTimeout(),
		ReadTimeout:    cfg.RelayReadTimeout(),
		ReadBufferSize: cfg.Relay.ReadBufferSize,
	})
	pool.SetLogger(log.With("component", "relay"))
	pool.SetEvents(emitter)
	if influxClient != nil {
		pool.SetMetrics(influxClient)
	}
	defer pool.CloseAll()

	if mqttClient != nil {
		if subErr := events.SubscribeCheckIns(ctx, mqttClient, byte(cfg.MQTT.QoS), locks); subErr != nil {
			return fmt.Errorf("subscribing to lock check-ins: %w", subErr)
		}
	}

	// HTTP API
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log.With("component", "api"),
		Verifier: auth.NewJWTVerifier(cfg.Identity.Secret, cfg.Identity.Issuer),
		Locks:    locks,
		Access:   directory,
		Invites:  invites,
		Accounts: accounts,
		Relay:    pool,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, relay pool, emitter, InfluxDB, MQTT, database.
	return nil
}

// newEmitter wires the event sinks that are enabled. Typed nil clients are
// kept out of the interfaces.
func newEmitter(mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) *events.Emitter {
	var pub events.Publisher
	if mqttClient != nil {
		pub = mqttClient
	}
	var rec events.Recorder
	if influxClient != nil {
		rec = influxClient
	}
	return events.NewEmitter(pub, rec, log.With("component", "events"))
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - mqttClient, influxClient: may be nil when disabled
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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
