// VenueCore - Venue and Events Platform Functions
//
// This is the main entry point for the VenueCore function host. It serves
// the catalog functions (countries, regions, banners, points of sale and
// the rest) over HTTP, authenticating every call as a user session, an
// anonymous caller, or a signed POS device.
//
// Configuration is read from configs/config.yaml, overridable with the
// VENUECORE_CONFIG environment variable.
//
// "venuecore migrate [status|up|down]" inspects or changes the sqlite
// schema without starting the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/venue-core/migrations"

	"github.com/nerrad567/venue-core/internal/api"
	"github.com/nerrad567/venue-core/internal/auth"
	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/events"
	"github.com/nerrad567/venue-core/internal/infrastructure/config"
	"github.com/nerrad567/venue-core/internal/infrastructure/database"
	"github.com/nerrad567/venue-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/venue-core/internal/infrastructure/logging"
	"github.com/nerrad567/venue-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/venue-core/internal/resource"
	"github.com/nerrad567/venue-core/internal/storage"
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

// configEnvVar overrides defaultConfigPath.
const configEnvVar = "VENUECORE_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		err = runMigrate(ctx, os.Args[2:], os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// backend is the store the process runs against plus the client
// factories the authenticator draws from.
type backend struct {
	store     datastore.Store
	sessions  auth.SessionClientFactory
	anonymous auth.AnonymousClientFactory
	pos       auth.PosClientFactory
	close     func() error
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting VenueCore",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"environment", cfg.Service.Environment,
	)

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing store")
		if closeErr := be.close(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()

	objects, err := openObjectStorage(cfg)
	if err != nil {
		return fmt.Errorf("opening object storage: %w", err)
	}
	log.Info("object storage ready", "driver", cfg.Storage.Driver)

	health := map[string]api.HealthChecker{"store": be.store}
	var publishers events.Multi

	// MQTT (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		publishers = append(publishers, events.NewMQTTPublisher(mqttClient))
		health["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var telemetry api.InvocationWriter
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB, influxdb.WithDefaultTags(map[string]string{
			"service":     cfg.Service.Name,
			"environment": cfg.Service.Environment,
		}))
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
			var werr *influxdb.WriteError
			if !errors.As(err, &werr) {
				log.Error("InfluxDB write error", "error", err)
				return
			}
			attrs := []any{
				"error", werr.Err,
				"measurements", werr.Measurements,
				"status", werr.Status,
				"attempt", werr.Attempt,
			}
			if werr.Dropped {
				log.Error("InfluxDB batch dropped", append(attrs, "dropped_total", influxClient.Dropped())...)
				return
			}
			log.Warn("InfluxDB write failed, retrying", attrs...)
		})

		publishers = append(publishers, events.NewTelemetryPublisher(influxClient))
		telemetry = influxClient
		health["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	authenticator := auth.NewAuthenticator(auth.Deps{
		Devices:   auth.NewDeviceRepository(be.store),
		Sessions:  be.sessions,
		Anonymous: be.anonymous,
		POS:       be.pos,
		Logger:    log,
	})

	var publisher events.Publisher = events.Nop{}
	if len(publishers) > 0 {
		publisher = publishers
	}
	functions := resource.Catalog(objects, resource.Deps{
		Policy: auth.NewStorePolicy(be.store),
		Events: publisher,
		Logger: log,
	})
	log.Info("function catalog built", "functions", len(functions))

	deps := api.Deps{
		Config:        cfg.API,
		RateLimit:     cfg.Security.RateLimit,
		Logger:        log,
		Authenticator: authenticator,
		Functions:     functions,
		Health:        health,
		Telemetry:     telemetry,
		Version:       version,
	}
	if disk, ok := objects.(*storage.Disk); ok {
		deps.Objects = disk.Handler()
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Store

	log.Info("VenueCore stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VENUECORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// openBackend connects the configured store driver.
//
// The sqlite driver opens the database file and applies the embedded
// migrations. The postgres driver connects directly and assumes the schema
// is managed elsewhere. Both validate user sessions locally with the JWT
// secret. The postgrest driver talks to Supabase over HTTP and uses its
// service role store for device lookups and permissions.
//
// Parameters:
//   - ctx: Context for migrations
//   - cfg: Application configuration
//   - log: Logger instance
//
// Returns:
//   - *backend: Connected store and client factories
//   - error: If the store cannot be opened
func openBackend(ctx context.Context, cfg *config.Config, log *logging.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgREST:
		factory, err := auth.NewRESTFactory(auth.RESTFactoryConfig{
			URL:            cfg.Store.URL,
			AnonKey:        cfg.Store.AnonKey,
			ServiceRoleKey: cfg.Store.ServiceRoleKey,
		})
		if err != nil {
			return nil, fmt.Errorf("creating PostgREST clients: %w", err)
		}
		store, err := factory.ServiceStore()
		if err != nil {
			return nil, fmt.Errorf("creating service store: %w", err)
		}
		log.Info("PostgREST store configured", "url", cfg.Store.URL)
		return &backend{
			store:     store,
			sessions:  factory,
			anonymous: factory,
			pos:       factory,
			close:     func() error { return nil },
		}, nil

	case config.DriverPostgres:
		db, err := database.Open(database.Config{
			Driver: database.DriverPostgres,
			DSN:    cfg.Store.DSN,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		log.Info("database connected", "driver", cfg.Store.Driver)
		return localBackend(db, cfg), nil

	default:
		db, err := database.Open(database.Config{
			Driver:      database.DriverSQLite,
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		log.Info("database connected", "path", cfg.Database.Path)

		applied, migrateErr := db.Migrate(ctx)
		if migrateErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("running migrations: %w", migrateErr)
		}
		for _, m := range applied {
			log.Info("migration applied", "version", m.Version, "name", m.Name)
		}
		status, statusErr := db.MigrationStatus(ctx)
		if statusErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("reading migration status: %w", statusErr)
		}
		log.Info("database migrations complete",
			"schema_version", status.Current(),
			"applied", len(status.Applied),
		)
		return localBackend(db, cfg), nil
	}
}

func localBackend(db *database.DB, cfg *config.Config) *backend {
	store := datastore.NewSQLStore(db.DB)
	factory := auth.NewLocalFactory(store, cfg.Security.JWT.Secret)
	return &backend{
		store:     store,
		sessions:  factory,
		anonymous: factory,
		pos:       factory,
		close:     db.Close,
	}
}

// openObjectStorage returns the configured object storage.
func openObjectStorage(cfg *config.Config) (storage.ObjectStorage, error) {
	if cfg.Storage.Driver == config.StorageSupabase {
		return storage.NewSupabase(storage.SupabaseConfig{
			URL:    cfg.Store.URL,
			APIKey: cfg.Store.ServiceRoleKey,
		})
	}
	return storage.NewDisk(cfg.Storage.Dir, cfg.Storage.PublicURL)
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - checks: Components keyed by name
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
