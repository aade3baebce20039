package main

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/venue-core/internal/api"
	"github.com/nerrad567/venue-core/internal/infrastructure/config"
	"github.com/nerrad567/venue-core/internal/storage"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(configEnvVar, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config", err)
	}
}

// TestRun_MissingJWTSecret verifies the sqlite driver refuses to start
// without a session secret.
func TestRun_MissingJWTSecret(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
store:
  driver: sqlite
database:
  path: "`+filepath.Join(dir, "venuecore.db")+`"
storage:
  driver: disk
  dir: "`+filepath.Join(dir, "objects")+`"
logging:
  level: error
  format: text
`)
	t.Setenv(configEnvVar, path)
	t.Setenv("VENUECORE_JWT_SECRET", "")
	t.Setenv("SUPABASE_JWT_SECRET", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a jwt secret")
	}
	if !strings.Contains(err.Error(), "security.jwt.secret") {
		t.Errorf("error = %v, want jwt secret validation", err)
	}
}

// TestRun_StartupAndShutdown starts the full process against a temporary
// sqlite database and stops it by cancelling the context.
func TestRun_StartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
store:
  driver: sqlite
database:
  path: "`+filepath.Join(dir, "venuecore.db")+`"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
influxdb:
  enabled: false
storage:
  driver: disk
  dir: "`+filepath.Join(dir, "objects")+`"
  public_url: "http://127.0.0.1"
api:
  host: "127.0.0.1"
  port: `+strconv.Itoa(freePort(t))+`
logging:
  level: error
  format: text
security:
  jwt:
    secret: "test-secret-for-development-only-0123456789"
`)
	t.Setenv(configEnvVar, path)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "venuecore.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv(configEnvVar, "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv(configEnvVar, expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestOpenObjectStorage(t *testing.T) {
	t.Run("disk", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{
			Driver: config.StorageDisk,
			Dir:    t.TempDir(),
		}}
		objects, err := openObjectStorage(cfg)
		if err != nil {
			t.Fatalf("openObjectStorage() error = %v", err)
		}
		if _, ok := objects.(*storage.Disk); !ok {
			t.Errorf("openObjectStorage() = %T, want *storage.Disk", objects)
		}
	})

	t.Run("supabase", func(t *testing.T) {
		cfg := &config.Config{
			Store: config.StoreConfig{
				URL:            "https://project.supabase.co",
				ServiceRoleKey: "service-role",
			},
			Storage: config.StorageConfig{Driver: config.StorageSupabase},
		}
		objects, err := openObjectStorage(cfg)
		if err != nil {
			t.Fatalf("openObjectStorage() error = %v", err)
		}
		if _, ok := objects.(*storage.Supabase); !ok {
			t.Errorf("openObjectStorage() = %T, want *storage.Supabase", objects)
		}
	})
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	ok := checkFunc(func(context.Context) error { return nil })
	down := checkFunc(func(context.Context) error { return errors.New("connection refused") })

	if err := healthCheck(t.Context(), map[string]api.HealthChecker{"store": ok}); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}

	err := healthCheck(t.Context(), map[string]api.HealthChecker{"store": ok, "mqtt": down})
	if err == nil {
		t.Fatal("healthCheck() should fail when a component is down")
	}
	if !strings.HasPrefix(err.Error(), "mqtt: ") {
		t.Errorf("error = %v, want mqtt prefix", err)
	}
}
