// Package config loads the throughput-tester settings through viper.
package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"throughput-tester/pkg/fetch"
)

// Config holds every setting of the service.
type Config struct {
	Listen string
	// Upper bound on workers per session.
	MaxWorkers int
	// Number of finished records kept in memory, 0 for all.
	RecordRetention int
	StatsInterval   time.Duration
	Fetch           FetchConfig
}

type FetchConfig struct {
	Transport        string
	Address          string
	Method           string
	Headers          []string
	HeaderTimeoutSec int
	BufferSize       int
	RetryDelay       time.Duration
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":3000")
	v.SetDefault("workers.max", 8)
	v.SetDefault("records.retention", 0)
	v.SetDefault("stats.interval", time.Second)
	v.SetDefault("fetch.transport", "")
	v.SetDefault("fetch.address", "")
	v.SetDefault("fetch.method", http.MethodGet)
	v.SetDefault("fetch.headers", []string{})
	v.SetDefault("fetch.header_timeout_sec", 10)
	v.SetDefault("fetch.buffer_size", fetch.DefaultBufferSize)
	v.SetDefault("fetch.retry_delay", fetch.DefaultRetryDelay)
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Config{
		Listen:          v.GetString("listen"),
		MaxWorkers:      v.GetInt("workers.max"),
		RecordRetention: v.GetInt("records.retention"),
		StatsInterval:   v.GetDuration("stats.interval"),
		Fetch: FetchConfig{
			Transport:        v.GetString("fetch.transport"),
			Address:          v.GetString("fetch.address"),
			Method:           v.GetString("fetch.method"),
			Headers:          v.GetStringSlice("fetch.headers"),
			HeaderTimeoutSec: v.GetInt("fetch.header_timeout_sec"),
			BufferSize:       v.GetInt("fetch.buffer_size"),
			RetryDelay:       v.GetDuration("fetch.retry_delay"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaxWorkers < 1 {
		return fmt.Errorf("workers.max must be at least 1, got %d", c.MaxWorkers)
	}
	if c.RecordRetention < 0 {
		return fmt.Errorf("records.retention must not be negative, got %d", c.RecordRetention)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats.interval must be positive, got %s", c.StatsInterval)
	}
	if c.Fetch.BufferSize < 1 {
		return fmt.Errorf("fetch.buffer_size must be positive, got %d", c.Fetch.BufferSize)
	}
	if c.Fetch.RetryDelay <= 0 {
		return fmt.Errorf("fetch.retry_delay must be positive, got %s", c.Fetch.RetryDelay)
	}
	if c.Fetch.HeaderTimeoutSec < 0 {
		return fmt.Errorf("fetch.header_timeout_sec must not be negative, got %d", c.Fetch.HeaderTimeoutSec)
	}
	if _, err := fetch.ParseHeaders(c.Fetch.Headers); err != nil {
		return fmt.Errorf("fetch.headers: %w", err)
	}
	return nil
}

// FetchOptions returns the client options for the resolved transport.
func (c FetchConfig) FetchOptions(transport string) fetch.Options {
	return fetch.Options{
		Transport:        transport,
		Address:          c.Address,
		Method:           c.Method,
		Headers:          c.Headers,
		HeaderTimeoutSec: c.HeaderTimeoutSec,
	}
}
