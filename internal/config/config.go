package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "pricebench/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. PRICEBENCH_POOL_SIZE.
const EnvPrefix = "PRICEBENCH"

// Bench selects what is priced and which strategies run.
type Bench struct {
	ProductID    string        `mapstructure:"product_id" json:"product_id"`
	Providers    int           `mapstructure:"providers" json:"providers"`
	NamePrefix   string        `mapstructure:"name_prefix" json:"name_prefix"`
	Strategies   []string      `mapstructure:"strategies" json:"strategies"`
	DeferredWork time.Duration `mapstructure:"deferred_work" json:"deferred_work"`
}

// Provider configures every simulated provider and its decorators.
type Provider struct {
	Delay                time.Duration `mapstructure:"delay" json:"delay"`
	Fallback             string        `mapstructure:"fallback" json:"fallback"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
	CacheMaxItems        int           `mapstructure:"cache_max_items" json:"cache_max_items"`
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute" json:"max_requests_per_minute"`
	Burst                int           `mapstructure:"burst" json:"burst"`
	MinInterval          time.Duration `mapstructure:"min_interval" json:"min_interval"`
}

// Pool sizes the bounded worker pool.
type Pool struct {
	Size int `mapstructure:"size" json:"size"`
}

// Parallel tunes the data-parallel strategy.
type Parallel struct {
	// Parallelism below the provider count is raised to it.
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
}

// Log selects the log level and output format.
type Log struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// Config is the full benchmark configuration.
type Config struct {
	Bench    Bench    `mapstructure:"bench" json:"bench"`
	Provider Provider `mapstructure:"provider" json:"provider"`
	Pool     Pool     `mapstructure:"pool" json:"pool"`
	Parallel Parallel `mapstructure:"parallel" json:"parallel"`
	Log      Log      `mapstructure:"log" json:"log"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Bench: Bench{
			ProductID:    "ProductName",
			Providers:    10,
			NamePrefix:   "Provider",
			Strategies:   []string{"sequential", "parallel", "deferred", "fanout", "fanout-pool"},
			DeferredWork: 500 * time.Millisecond,
		},
		Provider: Provider{
			Delay:         time.Second,
			Fallback:      "testval",
			CacheMaxItems: 10000,
			Burst:         1,
		},
		Pool:     Pool{Size: 100},
		Parallel: Parallel{},
		Log:      Log{Level: "info", Format: "console"},
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("bench.product_id", d.Bench.ProductID)
	v.SetDefault("bench.providers", d.Bench.Providers)
	v.SetDefault("bench.name_prefix", d.Bench.NamePrefix)
	v.SetDefault("bench.strategies", d.Bench.Strategies)
	v.SetDefault("bench.deferred_work", d.Bench.DeferredWork)
	v.SetDefault("provider.delay", d.Provider.Delay)
	v.SetDefault("provider.fallback", d.Provider.Fallback)
	v.SetDefault("provider.cache_ttl", d.Provider.CacheTTL)
	v.SetDefault("provider.cache_max_items", d.Provider.CacheMaxItems)
	v.SetDefault("provider.max_requests_per_minute", d.Provider.MaxRequestsPerMinute)
	v.SetDefault("provider.burst", d.Provider.Burst)
	v.SetDefault("provider.min_interval", d.Provider.MinInterval)
	v.SetDefault("pool.size", d.Pool.Size)
	v.SetDefault("parallel.parallelism", d.Parallel.Parallelism)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads JSON config from path. If path is empty, CONFIG_FILE is used, then
// ./config.json when it exists. A missing file yields defaults. Environment
// variables (PRICEBENCH_<SECTION>_<KEY>) override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Default(), fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Bench.Providers < 1:
		return apperrors.NewConfigError("bench.providers", "must be at least 1, got %d", c.Bench.Providers)
	case len(c.Bench.Strategies) == 0:
		return apperrors.NewConfigError("bench.strategies", "at least one strategy is required")
	case c.Bench.DeferredWork < 0:
		return apperrors.NewConfigError("bench.deferred_work", "must not be negative")
	case c.Provider.Delay < 0:
		return apperrors.NewConfigError("provider.delay", "must not be negative")
	case c.Provider.CacheTTL < 0:
		return apperrors.NewConfigError("provider.cache_ttl", "must not be negative")
	case c.Provider.MaxRequestsPerMinute < 0:
		return apperrors.NewConfigError("provider.max_requests_per_minute", "must not be negative")
	case c.Provider.MinInterval < 0:
		return apperrors.NewConfigError("provider.min_interval", "must not be negative")
	case c.Pool.Size < 1:
		return apperrors.NewConfigError("pool.size", "must be at least 1, got %d", c.Pool.Size)
	case c.Parallel.Parallelism < 0:
		return apperrors.NewConfigError("parallel.parallelism", "must not be negative")
	}
	return nil
}

// SplitCSV splits a comma-separated list, dropping blanks.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
