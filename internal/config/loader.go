package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Storage drivers accepted by LFG_STORAGE_DRIVER.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config captures the settings of the availability CLI.
type Config struct {
	StorageDriver     string
	SQLitePath        string
	SQLiteBusyTimeout time.Duration
	DefaultTimezone   string
	MinimumOverlap    time.Duration
	LogLevel          string
	MetricsPushURL    string
	MetricsJob        string
}

// fileConfig mirrors the optional TOML file named by LFG_CONFIG_FILE.
type fileConfig struct {
	Storage struct {
		Driver      string `toml:"driver"`
		SQLitePath  string `toml:"sqlite_path"`
		BusyTimeout string `toml:"busy_timeout"`
	} `toml:"storage"`
	Matching struct {
		DefaultTimezone string `toml:"default_timezone"`
		MinimumOverlap  string `toml:"minimum_overlap"`
	} `toml:"matching"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
	Metrics struct {
		PushURL string `toml:"push_url"`
		Job     string `toml:"job"`
	} `toml:"metrics"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		StorageDriver:     DriverSQLite,
		SQLitePath:        "lfg.db",
		SQLiteBusyTimeout: 5 * time.Second,
		DefaultTimezone:   "UTC",
		MinimumOverlap:    0,
		LogLevel:          "info",
		MetricsJob:        "lfg_availability",
	}
}

// Load reads .env from the working directory when present and then resolves
// the configuration.
func Load() (Config, error) {
	return LoadFiles(".env")
}

// LoadFiles loads the given dotenv files (missing ones are skipped), then the
// TOML file named by LFG_CONFIG_FILE, then the LFG_* environment variables.
// Later layers win. Invalid values are collected and reported together.
func LoadFiles(envFiles ...string) (Config, error) {
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := Default()
	invalid := make([]string, 0, 2)
	missing := make([]string, 0, 1)

	if path := strings.TrimSpace(os.Getenv("LFG_CONFIG_FILE")); path != "" {
		fileInvalid, err := applyFile(&cfg, path)
		if err != nil {
			return Config{}, err
		}
		invalid = append(invalid, fileInvalid...)
	}

	if value, ok := os.LookupEnv("LFG_STORAGE_DRIVER"); ok && strings.TrimSpace(value) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(value))
	}
	if cfg.StorageDriver != DriverSQLite && cfg.StorageDriver != DriverMemory {
		invalid = append(invalid, "LFG_STORAGE_DRIVER")
	}

	if value, ok := os.LookupEnv("LFG_SQLITE_PATH"); ok {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, "LFG_SQLITE_PATH")
		} else {
			cfg.SQLitePath = strings.TrimSpace(value)
		}
	}

	if value := strings.TrimSpace(os.Getenv("LFG_SQLITE_BUSY_TIMEOUT")); value != "" {
		if d, ok := parsePositiveDuration(value); ok {
			cfg.SQLiteBusyTimeout = d
		} else {
			invalid = append(invalid, "LFG_SQLITE_BUSY_TIMEOUT")
		}
	}

	if value := strings.TrimSpace(os.Getenv("LFG_DEFAULT_TIMEZONE")); value != "" {
		cfg.DefaultTimezone = value
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		invalid = append(invalid, "LFG_DEFAULT_TIMEZONE")
	}

	if value := strings.TrimSpace(os.Getenv("LFG_MINIMUM_OVERLAP")); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			cfg.MinimumOverlap = d
		} else {
			invalid = append(invalid, "LFG_MINIMUM_OVERLAP")
		}
	}

	if value := strings.TrimSpace(os.Getenv("LFG_LOG_LEVEL")); value != "" {
		cfg.LogLevel = strings.ToLower(value)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		invalid = append(invalid, "LFG_LOG_LEVEL")
	}

	if value := strings.TrimSpace(os.Getenv("LFG_METRICS_PUSH_URL")); value != "" {
		cfg.MetricsPushURL = value
	}
	if value := strings.TrimSpace(os.Getenv("LFG_METRICS_JOB")); value != "" {
		cfg.MetricsJob = value
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var file fileConfig
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var invalid []string
	if v := strings.TrimSpace(file.Storage.Driver); v != "" {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(file.Storage.SQLitePath); v != "" {
		cfg.SQLitePath = v
	}
	if v := strings.TrimSpace(file.Storage.BusyTimeout); v != "" {
		if d, ok := parsePositiveDuration(v); ok {
			cfg.SQLiteBusyTimeout = d
		} else {
			invalid = append(invalid, "storage.busy_timeout")
		}
	}
	if v := strings.TrimSpace(file.Matching.DefaultTimezone); v != "" {
		cfg.DefaultTimezone = v
	}
	if v := strings.TrimSpace(file.Matching.MinimumOverlap); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.MinimumOverlap = d
		} else {
			invalid = append(invalid, "matching.minimum_overlap")
		}
	}
	if v := strings.TrimSpace(file.Log.Level); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(file.Metrics.PushURL); v != "" {
		cfg.MetricsPushURL = v
	}
	if v := strings.TrimSpace(file.Metrics.Job); v != "" {
		cfg.MetricsJob = v
	}
	return invalid, nil
}

func parsePositiveDuration(value string) (time.Duration, bool) {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
