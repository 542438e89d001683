// ============================================================================
// Breakwater Config - YAML Configuration
// ============================================================================
//
// Package: config
// File: config.go
// Purpose: Load pool and metrics settings from a YAML file
//
// Example:
//
//	pools:
//	  - name: default
//	    max_queue_size: 10
//	    max_pool_size: 10
//	    max_worker_idle: 60s
//	  - name: slow
//	    max_queue_size: 100
//	    max_pool_size: 4
//	metrics:
//	  enabled: true
//	  port: 9090
//
// ============================================================================

// Package config loads runner configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/breakwater/pool"
)

// Duration is a time.Duration that unmarshals from YAML strings like "60s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// PoolConfig configures a single named pool.
type PoolConfig struct {
	Name          string   `yaml:"name"`
	MaxQueueSize  int      `yaml:"max_queue_size"`
	MaxPoolSize   int      `yaml:"max_pool_size"`
	MaxWorkerIdle Duration `yaml:"max_worker_idle"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Config is the root configuration document.
type Config struct {
	Pools   []PoolConfig  `yaml:"pools"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Pools: []PoolConfig{{
			Name:          "default",
			MaxQueueSize:  pool.DefaultMaxQueueSize,
			MaxPoolSize:   pool.DefaultMaxPoolSize,
			MaxWorkerIdle: Duration(pool.DefaultMaxWorkerIdle),
		}},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Load reads a YAML configuration file. Unset pool fields fall back to the
// pool package defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for i := range cfg.Pools {
		applyPoolDefaults(&cfg.Pools[i])
	}
	return cfg, nil
}

func applyPoolDefaults(pc *PoolConfig) {
	if pc.Name == "" {
		pc.Name = "default"
	}
	if pc.MaxQueueSize <= 0 {
		pc.MaxQueueSize = pool.DefaultMaxQueueSize
	}
	if pc.MaxPoolSize <= 0 {
		pc.MaxPoolSize = pool.DefaultMaxPoolSize
	}
	if pc.MaxWorkerIdle <= 0 {
		pc.MaxWorkerIdle = Duration(pool.DefaultMaxWorkerIdle)
	}
}

// Apply creates (or fetches) every configured pool and applies its limits.
// The configured pools are returned in declaration order.
func (c *Config) Apply() []*pool.Pool {
	pools := make([]*pool.Pool, 0, len(c.Pools))
	for _, pc := range c.Pools {
		p := pool.New(pc.Name)
		p.MaxQueueSize = pc.MaxQueueSize
		p.MaxPoolSize = pc.MaxPoolSize
		p.MaxWorkerIdle = time.Duration(pc.MaxWorkerIdle)
		pools = append(pools, p)
	}
	return pools
}
