// Package config loads the engine's own process configuration (as
// opposed to a run's AnalyzeSettings, which arrives as opaque JSON
// and is never routed through viper).
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config is the engine process configuration: where artifacts and the
// results store live, how many workers to run, and how to reach the
// optional shared-state backends.
type Config struct {
	WorkingDirectory string `mapstructure:"working_directory"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Threads struct {
		Min int `mapstructure:"min"`
		Max int `mapstructure:"max"`
	} `mapstructure:"threads"`

	Redis struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
	} `mapstructure:"redis"`

	MinIO struct {
		Enabled   bool   `mapstructure:"enabled"`
		Endpoint  string `mapstructure:"endpoint"`
		Bucket    string `mapstructure:"bucket"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		UseSSL    bool   `mapstructure:"use_ssl"`
	} `mapstructure:"minio"`

	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
	} `mapstructure:"metrics"`

	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

func defaults() *Config {
	c := &Config{}
	c.WorkingDirectory = "."
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Threads.Min = 1
	c.Threads.Max = 0 // 0 == derive from cpuCores at runtime, see internal/planner
	c.Metrics.Addr = ":9090"
	c.ShutdownGrace = 30 * time.Second
	return c
}

var (
	once   sync.Once
	loaded *Config
	loadEr error
)

// Load reads configuration from path (if non-empty) and environment
// variables prefixed IMAGEC_ (e.g. IMAGEC_LOG_LEVEL), falling back to
// defaults() for anything unset. Safe to call repeatedly; the file is
// only read once per process.
func Load(path string) (*Config, error) {
	once.Do(func() {
		loaded, loadEr = load(path)
	})
	return loaded, loadEr
}

func load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IMAGEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"working_directory", "log.level", "log.format", "threads.min", "threads.max",
		"redis.enabled", "redis.addr",
		"minio.enabled", "minio.endpoint", "minio.bucket", "minio.access_key", "minio.secret_key", "minio.use_ssl",
		"metrics.enabled", "metrics.addr", "shutdown_grace",
	} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
