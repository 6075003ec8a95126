// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort              = 3318
	defaultDatabaseType      = "sqlite"
	defaultSQLitePath        = "dashboard.db"
	defaultRedisAddr         = "localhost:6379"
	defaultPollInterval      = 2 * time.Second
	defaultSlowThreshold     = 60 * time.Second
	defaultPollFailureBudget = 1
	defaultRequestTimeout    = 30 * time.Second
	defaultDownloadDir       = "."
)

type Config struct {
	Port              int
	BackendURL        string
	DatabaseType      string
	DatabaseURL       string
	PollInterval      time.Duration
	SlowThreshold     time.Duration
	PollFailureBudget int
	RequestTimeout    time.Duration
	UnlockPassphrase  string
	UnlockSalt        string
	DownloadDir       string
}

// fileConfig mirrors the optional YAML config file.
// The unlock passphrase is deliberately absent: it comes from env or flags.
type fileConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Backend struct {
		URL               string        `yaml:"url"`
		Timeout           time.Duration `yaml:"timeout"`
		PollInterval      time.Duration `yaml:"poll_interval"`
		SlowThreshold     time.Duration `yaml:"slow_threshold"`
		PollFailureBudget int           `yaml:"poll_failure_budget"`
	} `yaml:"backend"`
	Store struct {
		Type string `yaml:"type"`
		URL  string `yaml:"url"`
	} `yaml:"store"`
	Unlock struct {
		Salt string `yaml:"salt"`
	} `yaml:"unlock"`
	DownloadDir string `yaml:"download_dir"`
}

// ParseFlags resolves configuration: flags, then env (.env included), then
// the YAML file, then defaults.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var configPath, envFile string

	flags := flag.NewFlagSet("usdt-elasticity", flag.ContinueOnError)

	flags.StringVar(&configPath, "c", "", "YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment if present")

	// Network config (can be CLI args or env)
	flags.IntVar(&cfg.Port, "p", 0, "Server port")
	flags.StringVar(&cfg.BackendURL, "b", "", "Elasticity backend base URL")
	flags.DurationVar(&cfg.RequestTimeout, "timeout", 0, "Backend request timeout")

	// Preference store
	flags.StringVar(&cfg.DatabaseType, "t", "", "Store type (sqlite, postgres or redis)")
	flags.StringVar(&cfg.DatabaseURL, "d", "", "Store URL or path")

	// Polling
	flags.DurationVar(&cfg.PollInterval, "poll-interval", 0, "Status poll interval")
	flags.DurationVar(&cfg.SlowThreshold, "slow-threshold", 0, "Elapsed time before a calculation is reported as slow")
	flags.IntVar(&cfg.PollFailureBudget, "poll-failures", 0, "Consecutive failed polls tolerated before failing")

	// Unlock gate (prefer env for the passphrase)
	flags.StringVar(&cfg.UnlockPassphrase, "unlock-passphrase", "", "Pass-phrase for advanced features (prefer env)")
	flags.StringVar(&cfg.UnlockSalt, "unlock-salt", "", "Salt for the unlock digest")

	flags.StringVar(&cfg.DownloadDir, "download-dir", "", "Directory reports are saved to")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var file fileConfig
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Fall back to environment variables, then the file, then defaults
	var err error
	if cfg.Port, err = intSetting(cfg.Port, "PORT", file.Server.Port, defaultPort); err != nil {
		return Config{}, err
	}
	if cfg.PollFailureBudget, err = intSetting(cfg.PollFailureBudget, "POLL_FAILURE_BUDGET", file.Backend.PollFailureBudget, defaultPollFailureBudget); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = durationSetting(cfg.PollInterval, "POLL_INTERVAL", file.Backend.PollInterval, defaultPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.SlowThreshold, err = durationSetting(cfg.SlowThreshold, "SLOW_THRESHOLD", file.Backend.SlowThreshold, defaultSlowThreshold); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = durationSetting(cfg.RequestTimeout, "REQUEST_TIMEOUT", file.Backend.Timeout, defaultRequestTimeout); err != nil {
		return Config{}, err
	}

	cfg.BackendURL = stringSetting(cfg.BackendURL, "BACKEND_URL", file.Backend.URL, "")
	if cfg.BackendURL == "" {
		return Config{}, errors.New("backend URL required (use -b or BACKEND_URL env)")
	}

	cfg.DatabaseType = stringSetting(cfg.DatabaseType, "DATABASE_TYPE", file.Store.Type, defaultDatabaseType)
	cfg.DatabaseURL = stringSetting(cfg.DatabaseURL, "DATABASE_URL", file.Store.URL, "")
	switch cfg.DatabaseType {
	case "sqlite":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = defaultSQLitePath
		}
	case "redis":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = defaultRedisAddr
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("database URL required for postgres (use -d or DATABASE_URL env)")
		}
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_TYPE %q", cfg.DatabaseType)
	}

	cfg.UnlockPassphrase = stringSetting(cfg.UnlockPassphrase, "UNLOCK_PASSPHRASE", "", "")
	cfg.UnlockSalt = stringSetting(cfg.UnlockSalt, "UNLOCK_SALT", file.Unlock.Salt, "")
	if cfg.UnlockPassphrase != "" && cfg.UnlockSalt == "" {
		return Config{}, errors.New("UNLOCK_SALT required when UNLOCK_PASSPHRASE is set")
	}

	cfg.DownloadDir = stringSetting(cfg.DownloadDir, "DOWNLOAD_DIR", file.DownloadDir, defaultDownloadDir)

	return cfg, nil
}

func stringSetting(flagVal, envKey, fileVal, def string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fileVal != "" {
		return fileVal
	}
	return def
}

func intSetting(flagVal int, envKey string, fileVal, def int) (int, error) {
	if flagVal != 0 {
		return flagVal, nil
	}
	if s := os.Getenv(envKey); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid %s env variable", envKey)
		}
		return v, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return def, nil
}

func durationSetting(flagVal time.Duration, envKey string, fileVal, def time.Duration) (time.Duration, error) {
	if flagVal != 0 {
		return flagVal, nil
	}
	if s := os.Getenv(envKey); s != "" {
		v, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid %s env variable", envKey)
		}
		return v, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return def, nil
}
