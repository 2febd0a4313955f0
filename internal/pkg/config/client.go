package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// State drivers accepted by OPWAY_STATE_DRIVER.
const (
	StateDriverFile   = "file"
	StateDriverSQLite = "sqlite"
	StateDriverMemory = "memory"
)

// ClientConfig holds the settings of the command-line client (cmd/opway).
type ClientConfig struct {
	APIURL         string        `env:"OPWAY_API_URL,         default=http://localhost:8080"`
	StateDriver    string        `env:"OPWAY_STATE_DRIVER,    default=file"`
	StatePath      string        `env:"OPWAY_STATE_PATH"`
	RequestTimeout time.Duration `env:"OPWAY_REQUEST_TIMEOUT, default=10s"`
	InitTimeout    time.Duration `env:"OPWAY_INIT_TIMEOUT,    default=2s"`
	LogLevel       string        `env:"OPWAY_LOG_LEVEL,       default=warn"`
}

// LoadClient reads the client configuration from the environment.
func LoadClient(ctx context.Context) (*ClientConfig, error) {
	return LoadClientWith(ctx, envconfig.OsLookuper())
}

// LoadClientWith resolves the client configuration through l, filling in the
// default state path for the selected driver.
func LoadClientWith(ctx context.Context, l envconfig.Lookuper) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.StatePath == "" && cfg.StateDriver != StateDriverMemory {
		cfg.StatePath = DefaultStatePath(cfg.StateDriver)
	}
	return &cfg, nil
}

// Validate checks values that envconfig cannot express as defaults.
func (c *ClientConfig) Validate() error {
	switch c.StateDriver {
	case StateDriverFile, StateDriverSQLite, StateDriverMemory:
	default:
		return fmt.Errorf("config: unknown state driver %q", c.StateDriver)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request timeout must be positive")
	}
	if c.InitTimeout <= 0 {
		return fmt.Errorf("config: init timeout must be positive")
	}
	return nil
}

// DefaultStatePath places the session mirror under the user config directory.
func DefaultStatePath(driver string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	name := "session.json"
	if driver == StateDriverSQLite {
		name = "session.db"
	}
	return filepath.Join(dir, "opway", name)
}
