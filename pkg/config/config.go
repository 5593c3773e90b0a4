package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"soltabs/pkg/solana"
	"soltabs/pkg/store"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = ".soltabs.yaml"
	DataDirName    = ".soltabs"
)

// Environment variables that take precedence over the config file.
const (
	EnvAPIKey       = "SOLTABS_API_KEY"
	EnvBaseURL      = "SOLTABS_BASE_URL"
	EnvStoreBackend = "SOLTABS_STORE_BACKEND"
	EnvLogLevel     = "SOLTABS_LOG_LEVEL"
)

type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RefreshConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type SwapConfig struct {
	FixedMint string `yaml:"fixed_mint"`
}

type ChartConfig struct {
	Timezone string `yaml:"timezone"`
	Theme    string `yaml:"theme"`
	Interval string `yaml:"interval"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config holds application-wide settings.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Refresh RefreshConfig `yaml:"refresh"`
	Store   StoreConfig   `yaml:"store"`
	Swap    SwapConfig    `yaml:"swap"`
	Chart   ChartConfig   `yaml:"chart"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		API:     APIConfig{TimeoutSeconds: 10},
		Refresh: RefreshConfig{IntervalSeconds: 5},
		Store:   StoreConfig{Backend: store.BackendFile},
		Swap:    SwapConfig{FixedMint: solana.WrappedSOLMint},
		Chart:   ChartConfig{Timezone: "Europe/Zagreb", Theme: "dark", Interval: "15"},
		Server:  ServerConfig{Port: 8080},
		Log:     LogConfig{Level: "info"},
	}
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalSeconds) * time.Second
}

// StorePath returns the configured store location or the default for the backend.
func (c Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return expandHome(c.Store.Path)
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	switch c.Store.Backend {
	case store.BackendBadger:
		return filepath.Join(dir, "badger"), nil
	case store.BackendSQLite:
		return filepath.Join(dir, "state.db"), nil
	default:
		return filepath.Join(dir, "state.json"), nil
	}
}

// LogPath returns the log file, defaulting to soltabs.log in the data dir.
func (c Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return expandHome(c.Log.File)
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "soltabs.log"), nil
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error
	if !store.ValidBackend(c.Store.Backend) {
		errs = append(errs, fmt.Errorf("unknown store backend %q (want one of %s)", c.Store.Backend, strings.Join(store.Backends, ", ")))
	}
	if c.Refresh.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("refresh interval must be positive"))
	}
	if c.API.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("api timeout must be positive"))
	}
	if c.API.BaseURL != "" && !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("invalid api base url: %s", c.API.BaseURL))
	}
	if err := solana.ValidateMint(c.Swap.FixedMint); err != nil {
		errs = append(errs, fmt.Errorf("swap fixed mint: %w", err))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port out of range: %d", c.Server.Port))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	if c.Chart.Theme != "" && c.Chart.Theme != "dark" && c.Chart.Theme != "light" {
		errs = append(errs, fmt.Errorf("unknown chart theme %q", c.Chart.Theme))
	}
	return errors.Join(errs...)
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// DataDir is where state and logs live by default.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DataDirName), nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		cfg := Default()
		overrideWithEnv(&cfg)
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

// LoadConfig decodes YAML on top of the defaults and applies env overrides.
// An empty document yields the defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	overrideWithEnv(&cfg)
	return cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.API.APIKey = key
	}
	if u := os.Getenv(EnvBaseURL); u != "" {
		cfg.API.BaseURL = u
	}
	if b := os.Getenv(EnvStoreBackend); b != "" {
		cfg.Store.Backend = b
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.Log.Level = lvl
	}
}

func SaveConfig(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RestoreLastBackup copies the newest backup over the config file and
// returns the backup used.
func RestoreLastBackup(configPath string) (string, error) {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return "", err
	}
	return lastBackup, os.WriteFile(configPath, data, 0600)
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
