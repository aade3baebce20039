package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers understood by the data layer.
const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverPostgREST = "postgrest"
)

// Object storage drivers.
const (
	StorageSupabase = "supabase"
	StorageDisk     = "disk"
)

// Config is the root configuration structure for venuecore.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// ServiceConfig identifies the running deployment.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	EnvFile     string `yaml:"env_file"`
}

// StoreConfig selects the backing store used by every function.
//
// With the postgrest driver the URL and keys point at a Supabase project and
// every request is executed with the caller's credentials. The sqlite and
// postgres drivers talk to the database directly.
type StoreConfig struct {
	Driver         string `yaml:"driver"`
	URL            string `yaml:"url"`
	AnonKey        string `yaml:"anon_key"`
	ServiceRoleKey string `yaml:"service_role_key"`
	DSN            string `yaml:"dsn"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host         string           `yaml:"host"`
	Port         int              `yaml:"port"`
	BasePath     string           `yaml:"base_path"`
	MaxBodyBytes int64            `yaml:"max_body_bytes"`
	TLS          TLSConfig        `yaml:"tls"`
	Timeouts     APITimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// StorageConfig selects where uploaded objects (banner images) live.
type StorageConfig struct {
	Driver    string `yaml:"driver"`
	Dir       string `yaml:"dir"`
	PublicURL string `yaml:"public_url"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains settings for validating user session tokens.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// supabaseEnv mirrors the variables a Supabase edge runtime exposes.
type supabaseEnv struct {
	URL            string `env:"SUPABASE_URL"`
	AnonKey        string `env:"SUPABASE_ANON_KEY"`
	ServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	JWTSecret      string `env:"SUPABASE_JWT_SECRET"`
	DBURL          string `env:"SUPABASE_DB_URL"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Dotenv file (service.env_file or VENUECORE_ENV_FILE), never overriding real env
//  4. SUPABASE_* variables
//  5. VENUECORE_* variables
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadEnvFile(cfg); err != nil {
		return nil, err
	}

	if err := applySupabaseEnv(cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "venuecore",
			Environment: "development",
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
		},
		Database: DatabaseConfig{
			Path:        "./data/venuecore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "venuecore",
			},
			QoS:         1,
			TopicPrefix: "venuecore",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			BasePath:     "/functions/v1",
			MaxBodyBytes: 10 << 20,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Org:           "venuecore",
			Bucket:        "functions",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Storage: StorageConfig{
			Driver: StorageDisk,
			Dir:    "./data/objects",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 300,
				Burst:             50,
			},
		},
	}
}

// loadEnvFile loads a dotenv file into the process environment.
// A missing default file is not an error; a missing explicit file is.
func loadEnvFile(cfg *Config) error {
	path := cfg.Service.EnvFile
	if v := os.Getenv("VENUECORE_ENV_FILE"); v != "" {
		path = v
	}
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// applySupabaseEnv copies the Supabase runtime variables into the store settings.
func applySupabaseEnv(cfg *Config) error {
	var env supabaseEnv
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("decoding supabase environment: %w", err)
	}

	if env.URL != "" {
		cfg.Store.URL = env.URL
	}
	if env.AnonKey != "" {
		cfg.Store.AnonKey = env.AnonKey
	}
	if env.ServiceRoleKey != "" {
		cfg.Store.ServiceRoleKey = env.ServiceRoleKey
	}
	if env.JWTSecret != "" {
		cfg.Security.JWT.Secret = env.JWTSecret
	}
	if env.DBURL != "" {
		cfg.Store.DSN = env.DBURL
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VENUECORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Store
	if v := os.Getenv("VENUECORE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("VENUECORE_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}

	// Database
	if v := os.Getenv("VENUECORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VENUECORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VENUECORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VENUECORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("VENUECORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VENUECORE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("VENUECORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("VENUECORE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.Name == "" {
		errs = append(errs, "service.name is required")
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required for the postgres driver (or set SUPABASE_DB_URL)")
		}
	case DriverPostgREST:
		if c.Store.URL == "" {
			errs = append(errs, "store.url is required for the postgrest driver (or set SUPABASE_URL)")
		}
		if c.Store.AnonKey == "" {
			errs = append(errs, "store.anon_key is required for the postgrest driver (or set SUPABASE_ANON_KEY)")
		}
		if c.Store.ServiceRoleKey == "" {
			errs = append(errs, "store.service_role_key is required for the postgrest driver (or set SUPABASE_SERVICE_ROLE_KEY)")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be one of sqlite, postgres, postgrest", c.Store.Driver))
	}

	// Direct database drivers validate user sessions locally.
	const minJWTSecretLength = 32
	if c.Store.Driver != DriverPostgREST {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set VENUECORE_JWT_SECRET or SUPABASE_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	switch c.Storage.Driver {
	case StorageDisk:
		if c.Storage.Dir == "" {
			errs = append(errs, "storage.dir is required for the disk driver")
		}
	case StorageSupabase:
		if c.Store.URL == "" || c.Store.ServiceRoleKey == "" {
			errs = append(errs, "storage.driver supabase needs store.url and store.service_role_key")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q must be one of disk, supabase", c.Storage.Driver))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.API.BasePath, "/") {
		errs = append(errs, "api.base_path must start with /")
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, "security.rate_limit.requests_per_minute must be positive when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
