package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/livecode/livecode"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	LiveCode LiveCodeConfig `mapstructure:"livecode"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LiveCodeConfig locates the source tree and the artifacts derived from it.
type LiveCodeConfig struct {
	SourceDir    string `mapstructure:"sourceDir"`
	SnapshotFile string `mapstructure:"snapshotFile"`
	PatchFile    string `mapstructure:"patchFile"`
	// ReloadLibs also invalidates library namespaces on reload.
	ReloadLibs bool `mapstructure:"reloadLibs"`
}

// WatchConfig tunes the artifact watch loop.
type WatchConfig struct {
	DebounceMs    int `mapstructure:"debounceMs"`
	MaxDebounceMs int `mapstructure:"maxDebounceMs"`
	QueueCapacity int `mapstructure:"queueCapacity"`
}

// JournalConfig stores patch journal settings.
type JournalConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"inMemory"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig enables the prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
// Environment variables use the LIVECODE_ prefix with dots replaced by
// underscores, e.g. LIVECODE_WATCH_DEBOUNCEMS.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("livecode")
		v.SetConfigType("yaml")
	}

	v.SetDefault("livecode.sourceDir", internal.DefaultSourceDir)
	v.SetDefault("livecode.snapshotFile", internal.DefaultSnapshotFile)
	v.SetDefault("livecode.patchFile", internal.DefaultPatchFile)
	v.SetDefault("livecode.reloadLibs", false)

	v.SetDefault("watch.debounceMs", internal.DefaultDebounceMs)
	v.SetDefault("watch.maxDebounceMs", internal.DefaultMaxDebounceMs)
	v.SetDefault("watch.queueCapacity", internal.DefaultQueueCapacity)

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", internal.DefaultJournalPath)
	v.SetDefault("journal.inMemory", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.addr", "")

	v.SetEnvPrefix(strings.ToUpper(internal.DefaultAppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file, defaults and environment apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return &cfg, nil
}

// Validate rejects settings the watch loop cannot run with.
func (c *Config) Validate() error {
	if c.LiveCode.SourceDir == "" {
		return errors.New("livecode.sourceDir cannot be empty")
	}
	if c.Watch.DebounceMs < 0 || c.Watch.MaxDebounceMs < 0 {
		return fmt.Errorf("watch debounce values must not be negative, got %d/%d", c.Watch.DebounceMs, c.Watch.MaxDebounceMs)
	}
	if c.Watch.MaxDebounceMs > 0 && c.Watch.MaxDebounceMs < c.Watch.DebounceMs {
		return fmt.Errorf("watch.maxDebounceMs (%d) is smaller than watch.debounceMs (%d)", c.Watch.MaxDebounceMs, c.Watch.DebounceMs)
	}
	if c.Watch.QueueCapacity <= 0 {
		return fmt.Errorf("watch.queueCapacity must be positive, got %d", c.Watch.QueueCapacity)
	}
	return nil
}

// SnapshotPath is the materialized snapshot next to the source directory.
func (c *Config) SnapshotPath() string {
	return filepath.Join(filepath.Dir(filepath.Clean(c.LiveCode.SourceDir)), c.LiveCode.SnapshotFile)
}

// PatchPath is the incremental change-set artifact next to the snapshot.
func (c *Config) PatchPath() string {
	return filepath.Join(filepath.Dir(filepath.Clean(c.LiveCode.SourceDir)), c.LiveCode.PatchFile)
}
