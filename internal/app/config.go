// Package app wires the process together: environment configuration, the
// logger, the middleware stack, and the two HTTP routers.
package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds process-level runtime configuration. The mutable server
// configuration aggregate (registries, policy, host) is a domain object
// persisted by the snapshot store, not part of this struct.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AdminAddr         string        `envconfig:"ADMIN_ADDR" default:":8081"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// Snapshot persistence: "file" keeps one JSON document, "sqlite"
	// keeps a single-row snapshot table in an embedded database.
	SnapshotBackend string `envconfig:"SNAPSHOT_BACKEND" default:"file"`
	SnapshotPath    string `envconfig:"SNAPSHOT_PATH" default:"data/conceptforge-config.json"`

	// Defaults used only when no snapshot exists yet.
	BootstrapHostURI       string `envconfig:"BOOTSTRAP_HOST_URI" default:"http://localhost:8080"`
	BootstrapRoot          string `envconfig:"BOOTSTRAP_ROOT" default:"data/projects"`
	BootstrapAdminUser     string `envconfig:"BOOTSTRAP_ADMIN_USER" default:"admin"`
	BootstrapAdminPassword string `envconfig:"BOOTSTRAP_ADMIN_PASSWORD"`

	AuthStrategy string `envconfig:"AUTH_STRATEGY" default:"local"`

	// Session table: "memory" or "redis".
	SessionStore  string        `envconfig:"SESSION_STORE" default:"memory"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	SessionSweep  time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	LoginRateCap  int           `envconfig:"LOGIN_RATE_LIMIT" default:"10"`
	LoginRateSpan time.Duration `envconfig:"LOGIN_RATE_WINDOW" default:"1m"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	switch cfg.SnapshotBackend {
	case "file", "sqlite":
	default:
		return nil, errors.New("snapshot backend must be file or sqlite")
	}
	switch cfg.SessionStore {
	case "memory", "redis":
	default:
		return nil, errors.New("session store must be memory or redis")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
