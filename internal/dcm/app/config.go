package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/dcm/pkg/httpx"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

type Config struct {
	UsersFile    string   `yaml:"users_file" json:"users_file" env:"DCM_USERS_FILE" env-description:"Users file (default: <user config dir>/dcm/users.json)"`
	HistoryFile  string   `yaml:"history_file" json:"history_file" env:"DCM_HISTORY_FILE" env-description:"History file (default: <executable dir>/parameterHistory.json)"`
	ExportDir    string   `yaml:"export_dir" json:"export_dir" env:"DCM_EXPORT_DIR" env-description:"CSV export directory (default: ~/Downloads)"`
	StoreDriver  string   `yaml:"store_driver" json:"store_driver" env:"DCM_STORE_DRIVER" env-default:"json" env-description:"Store driver (json, sqlite)"`
	DatabaseFile string   `yaml:"database_file" json:"database_file" env:"DCM_DATABASE_FILE" env-default:"dcm.db" env-description:"SQLite database file, sqlite driver only"`
	PepperFile   string   `yaml:"pepper_file" json:"pepper_file" env:"DCM_PEPPER_FILE" env-description:"Password pepper file, created on first start (default: pepper next to the default users file)"`
	AuxCommand   string   `yaml:"aux_command" json:"aux_command" env:"DCM_AUX_COMMAND" env-description:"Auxiliary process to supervise (empty: none)"`
	AuxArgs      []string `yaml:"aux_args" json:"aux_args" env:"DCM_AUX_ARGS" env-separator:" " env-description:"Space separated auxiliary process arguments"`

	Env                  string        `yaml:"env" json:"env" env:"ENV" env-default:"dev" env-description:"Environment (dev, staging, prod)"`
	LogLevel             string        `yaml:"log_level" json:"log_level" env:"LOG_LEVEL" env-default:"info" env-description:"Log level (debug, info, warn, error)"`
	LogFormat            string        `yaml:"log_format" json:"log_format" env:"LOG_FORMAT" env-default:"json" env-description:"Log format (json, text)"`
	Host                 string        `yaml:"host" json:"host" env:"DCM_HOST" env-default:"127.0.0.1" env-description:"HTTP listen address (0.0.0.0 to accept remote clients)"`
	Port                 int           `yaml:"port" json:"port" env:"PORT" env-default:"8080" env-description:"HTTP server port"`
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period" json:"shutdown_grace_period" env:"SHUTDOWN_GRACE_PERIOD" env-default:"10s" env-description:"Graceful shutdown timeout"`
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval" json:"housekeeping_interval" env:"HOUSEKEEPING_INTERVAL" env-default:"1h" env-description:"History reconciliation interval"`
	TrustProxyHeaders    bool          `yaml:"trust_proxy_headers" json:"trust_proxy_headers" env:"DCM_TRUST_PROXY" env-default:"false" env-description:"Rate limit by X-Forwarded-For / X-Real-IP; enable only behind a proxy that sets them"`

	// Defaults come from httpx.DefaultRateLimits; any field can be overridden,
	// e.g. RATELIMIT_STRICT_REQUESTS or RATELIMIT_PUBLIC_WINDOW.
	RateLimits httpx.RateLimits `yaml:"rate_limits" json:"rate_limits" env-prefix:"RATELIMIT_"`
}

// LoadConfig reads an optional .env file, then the file named by
// DCM_CONFIG_FILE if set, then the environment. Later sources win.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{RateLimits: httpx.DefaultRateLimits()}
	if path := os.Getenv("DCM_CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	cfg.applyPathDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverJSON, DriverSQLite:
	default:
		return fmt.Errorf("DCM_STORE_DRIVER: unknown driver %q (want %s or %s)", c.StoreDriver, DriverJSON, DriverSQLite)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT: %d out of range", c.Port)
	}
	return c.RateLimits.Validate()
}

// applyPathDefaults fills the file locations that depend on the host.
func (c *Config) applyPathDefaults() {
	if c.UsersFile == "" {
		c.UsersFile = filepath.Join("userData", "users.json")
		if dir, err := os.UserConfigDir(); err == nil {
			c.UsersFile = filepath.Join(dir, "dcm", "users.json")
		}
	}
	if c.PepperFile == "" {
		c.PepperFile = filepath.Join(filepath.Dir(c.UsersFile), "pepper")
	}
	if abs, err := filepath.Abs(c.PepperFile); err == nil {
		c.PepperFile = abs
	}
	if c.HistoryFile == "" {
		c.HistoryFile = "parameterHistory.json"
		if exe, err := os.Executable(); err == nil {
			c.HistoryFile = filepath.Join(filepath.Dir(exe), "parameterHistory.json")
		}
	}
	if c.ExportDir == "" {
		c.ExportDir = "Downloads"
		if home, err := os.UserHomeDir(); err == nil {
			c.ExportDir = filepath.Join(home, "Downloads")
		}
	}
}

// Usage describes every environment variable, for --help output.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return text
}
