// Package config handles loading and hot-reloading of the balancer's YAML
// configuration via Viper. All struct fields map 1-to-1 with balancer.yaml.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DiscoveryCfg controls how the backend URL set is obtained.
type DiscoveryCfg struct {
	Strategy string `mapstructure:"strategy"` // static | file; anything else falls back to static
	FilePath string `mapstructure:"file_path"`
}

// HealthCheckCfg controls active health probing.
type HealthCheckCfg struct {
	IntervalMs     int `mapstructure:"interval_ms"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Interval returns the configured probe period as a time.Duration.
func (h HealthCheckCfg) Interval() time.Duration {
	return time.Duration(h.IntervalMs) * time.Millisecond
}

// Timeout returns the configured per-probe timeout as a time.Duration.
func (h HealthCheckCfg) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// SlownessCfg controls the slowness detector and its cooldown.
type SlownessCfg struct {
	ThresholdMs     int     `mapstructure:"threshold_ms"`
	WindowSize      int     `mapstructure:"window_size"`
	WindowTimeMs    int     `mapstructure:"window_time_ms"`
	ThresholdRatio  float64 `mapstructure:"threshold_ratio"`
	CooldownSeconds int     `mapstructure:"cooldown_seconds"`
}

// WindowHorizon returns the configured window time horizon as a
// time.Duration.
func (s SlownessCfg) WindowHorizon() time.Duration {
	return time.Duration(s.WindowTimeMs) * time.Millisecond
}

// Cooldown returns the configured cooldown period as a time.Duration.
func (s SlownessCfg) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

// RateLimitCfg controls per-IP token-bucket rate limiting on the forwarding
// path.
type RateLimitCfg struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// AuthCfg controls JWT Bearer-token authentication on the forwarding path.
type AuthCfg struct {
	Enabled bool     `mapstructure:"enabled"`
	Secret  string   `mapstructure:"secret"`
	Exclude []string `mapstructure:"exclude"`
}

// Config is the top-level balancer configuration.
type Config struct {
	ListenAddr      string   `mapstructure:"listen_addr"`
	AdminListenAddr string   `mapstructure:"admin_listen_addr"`
	LogLevel        string   `mapstructure:"log_level"`
	Servers         []string `mapstructure:"servers"`

	Discovery      DiscoveryCfg   `mapstructure:"discovery"`
	HealthCheck    HealthCheckCfg `mapstructure:"health_check"`
	Slowness       SlownessCfg    `mapstructure:"slowness"`
	RateLimit      RateLimitCfg   `mapstructure:"rate_limit"`
	Auth           AuthCfg        `mapstructure:"auth"`
	Strategy       string         `mapstructure:"strategy"` // round-robin | least-response-time
	RequestTimeout int            `mapstructure:"request_timeout_seconds"`
	InitialLatency int            `mapstructure:"initial_latency_ms"`
}

// RequestTimeoutDuration returns the configured per-forward timeout as a
// time.Duration.
func (c Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Default returns the spec's documented defaults with a single localhost
// backend, suitable for a first run with no config file present.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		AdminListenAddr: ":9090",
		LogLevel:        "info",
		Servers:         []string{"http://localhost:8081"},
		Discovery:       DiscoveryCfg{Strategy: "static", FilePath: "servers.txt"},
		HealthCheck:     HealthCheckCfg{IntervalMs: 10000, TimeoutSeconds: 3},
		Slowness: SlownessCfg{
			ThresholdMs:     1000,
			WindowSize:      5,
			WindowTimeMs:    30000,
			ThresholdRatio:  0.6,
			CooldownSeconds: 60,
		},
		RateLimit:      RateLimitCfg{Enabled: false, RPS: 100, Burst: 200},
		Auth:           AuthCfg{Enabled: false},
		Strategy:       "round-robin",
		RequestTimeout: 5,
		InitialLatency: 200,
	}
}

// Load reads and parses the YAML file at path using Viper.
// It returns the parsed Config and the Viper instance (needed for Watch).
func Load(path string) (Config, *viper.Viper, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, v, nil
}

// Watch registers an onChange callback that fires whenever the config file is
// saved. The callback receives a freshly parsed Config. Invalid reloads are
// logged and silently skipped (the previous config stays active).
func Watch(v *viper.Viper, onChange func(Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshal(v)
		if err != nil {
			slog.Error("config hot-reload failed", "error", err)
			return
		}
		slog.Info("config hot-reloaded",
			"servers", len(cfg.Servers),
			"discovery", cfg.Discovery.Strategy,
			"strategy", cfg.Strategy,
		)
		onChange(cfg)
	})
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)

	d := Default()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("admin_listen_addr", d.AdminListenAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("discovery.strategy", d.Discovery.Strategy)
	v.SetDefault("discovery.file_path", d.Discovery.FilePath)
	v.SetDefault("health_check.interval_ms", d.HealthCheck.IntervalMs)
	v.SetDefault("health_check.timeout_seconds", d.HealthCheck.TimeoutSeconds)
	v.SetDefault("slowness.threshold_ms", d.Slowness.ThresholdMs)
	v.SetDefault("slowness.window_size", d.Slowness.WindowSize)
	v.SetDefault("slowness.window_time_ms", d.Slowness.WindowTimeMs)
	v.SetDefault("slowness.threshold_ratio", d.Slowness.ThresholdRatio)
	v.SetDefault("slowness.cooldown_seconds", d.Slowness.CooldownSeconds)
	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.rps", d.RateLimit.RPS)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("auth.enabled", d.Auth.Enabled)
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("request_timeout_seconds", d.RequestTimeout)
	v.SetDefault("initial_latency_ms", d.InitialLatency)

	return v
}

// unmarshal decodes the Viper instance and normalizes an unrecognized
// discovery strategy to "static" per the spec's fallback rule.
func unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing: %w", err)
	}
	if cfg.Discovery.Strategy != "static" && cfg.Discovery.Strategy != "file" {
		cfg.Discovery.Strategy = "static"
	}
	if cfg.Discovery.Strategy == "static" && len(cfg.Servers) == 0 {
		return Config{}, fmt.Errorf("config: static discovery requires at least one server")
	}
	return cfg, nil
}
