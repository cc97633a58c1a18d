// Package config loads and validates resolver configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/paste-resolver/internal/adapters/static"
	"github.com/JakeFAU/paste-resolver/internal/gate"
	"github.com/JakeFAU/paste-resolver/internal/policy/ratelimit"
	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

// DefaultBrowserUserAgent is a desktop Chrome user agent sent by gate sessions
// so pages do not see the HeadlessChrome token.
const DefaultBrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

// Artifact backends.
const (
	ArtifactsMemory = "memory"
	ArtifactsLocal  = "local"
	ArtifactsGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Auth      AuthConfig            `mapstructure:"auth"`
	Logging   LoggingConfig         `mapstructure:"logging"`
	HTTP      HTTPConfig            `mapstructure:"http"`
	Headless  HeadlessConfig        `mapstructure:"headless"`
	Registry  RegistryConfig        `mapstructure:"registry"`
	Adapters  []static.Config       `mapstructure:"adapters"`
	Gates     map[string]GateConfig `mapstructure:"gates"`
	Artifacts ArtifactsConfig       `mapstructure:"artifacts"`
	Alerts    AlertsConfig          `mapstructure:"alerts"`
	Journal   JournalConfig         `mapstructure:"journal"`
	RateLimit ratelimit.Config      `mapstructure:"ratelimit"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures static fetches.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
	UserAgent      string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the browser and the gate engine.
type HeadlessConfig struct {
	ExecPath               string         `mapstructure:"exec_path"`
	UserAgent              string         `mapstructure:"user_agent"`
	MaxParallel            int            `mapstructure:"max_parallel"`
	DeadlineSeconds        int            `mapstructure:"deadline_seconds"`
	PageLoadTimeoutSeconds int            `mapstructure:"page_load_timeout_seconds"`
	SettleMinMillis        int            `mapstructure:"settle_min_ms"`
	SettleMaxMillis        int            `mapstructure:"settle_max_ms"`
	SnapshotTimeoutSeconds int            `mapstructure:"snapshot_timeout_seconds"`
	Flags                  map[string]any `mapstructure:"flags"`
}

// RegistryConfig holds the ordered domain table.
type RegistryConfig struct {
	MatchHost bool                  `mapstructure:"match_host"`
	Rows      []resolver.Descriptor `mapstructure:"rows"`
}

// GateConfig is one configured gate sequence; its map key is the adapter id.
type GateConfig struct {
	Steps []GateStepConfig `mapstructure:"steps"`
}

// GateStepConfig is one click-through step.
type GateStepConfig struct {
	Locator        string `mapstructure:"locator"`
	By             string `mapstructure:"by"`
	MaxWaitSeconds int    `mapstructure:"max_wait_seconds"`
	Description    string `mapstructure:"description"`
}

// ArtifactsConfig selects where diagnostic snapshots go.
type ArtifactsConfig struct {
	Backend   string `mapstructure:"backend"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// AlertsConfig routes structural failure alerts. Without a project id alerts
// are kept in memory.
type AlertsConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	Topic          string `mapstructure:"topic"`
	MemoryCapacity int    `mapstructure:"memory_capacity"`
}

// JournalConfig controls the optional Postgres outcome journal.
type JournalConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxConns     int32  `mapstructure:"max_conns"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RESOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	applyBuiltins(&cfg)

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("http.timeout_seconds", 5)
	v.SetDefault("http.max_body_bytes", 2<<20)
	v.SetDefault("http.user_agent", "paste-resolver/0.1")
	v.SetDefault("headless.user_agent", DefaultBrowserUserAgent)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.deadline_seconds", 90)
	v.SetDefault("headless.page_load_timeout_seconds", 30)
	v.SetDefault("headless.settle_min_ms", 1000)
	v.SetDefault("headless.settle_max_ms", 3000)
	v.SetDefault("headless.snapshot_timeout_seconds", 10)
	v.SetDefault("registry.match_host", false)
	v.SetDefault("artifacts.backend", ArtifactsMemory)
	v.SetDefault("artifacts.prefix", "diagnostics")
	v.SetDefault("alerts.topic", "resolver-alerts")
	v.SetDefault("alerts.memory_capacity", 256)
	v.SetDefault("journal.table", "resolution_outcomes")
	v.SetDefault("ratelimit.default_rps", 2)
	v.SetDefault("ratelimit.default_burst", 4)
}

// applyBuiltins fills tables that were not configured at all. A configured
// table replaces the built-in one entirely.
func applyBuiltins(cfg *Config) {
	if len(cfg.Adapters) == 0 {
		cfg.Adapters = static.Defaults()
	}
	if len(cfg.Gates) == 0 {
		cfg.Gates = DefaultGates()
	}
	if len(cfg.Registry.Rows) == 0 {
		cfg.Registry.Rows = DefaultRows()
	}
}

// DefaultRows is the built-in registry table, checked in order.
func DefaultRows() []resolver.Descriptor {
	return []resolver.Descriptor{
		{DomainMatch: "pastebin.com", Kind: resolver.KindStatic, AdapterID: "pastebin"},
		{DomainMatch: "pastedrop.net", Kind: resolver.KindStatic, AdapterID: "pastedrop"},
		{DomainMatch: "hastebin.com", Kind: resolver.KindStatic, AdapterID: "hastebin"},
		{DomainMatch: "rentry.co", Kind: resolver.KindStatic, AdapterID: "rentry"},
		{DomainMatch: "linkvertise.com", Kind: resolver.KindDynamic, AdapterID: "linkvertise"},
	}
}

// DefaultGates holds the built-in gate sequences keyed by adapter id.
func DefaultGates() map[string]GateConfig {
	return map[string]GateConfig{
		"linkvertise": {Steps: []GateStepConfig{
			{Locator: "connect-button", By: string(gate.ByID), MaxWaitSeconds: 20, Description: "free access"},
			{Locator: "link-success", By: string(gate.ByID), MaxWaitSeconds: 20, Description: "continue"},
		}},
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0")
	}
	if c.Headless.DeadlineSeconds <= 0 {
		return fmt.Errorf("headless.deadline_seconds must be > 0")
	}
	if c.Headless.SettleMinMillis < 0 || c.Headless.SettleMaxMillis < c.Headless.SettleMinMillis {
		return fmt.Errorf("headless settle range must satisfy 0 <= settle_min_ms <= settle_max_ms")
	}
	switch c.Artifacts.Backend {
	case ArtifactsMemory:
	case ArtifactsLocal:
		if c.Artifacts.LocalDir == "" {
			return fmt.Errorf("artifacts.local_dir is required for the local backend")
		}
	case ArtifactsGCS:
		if c.Artifacts.GCSBucket == "" {
			return fmt.Errorf("artifacts.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown artifacts.backend %q", c.Artifacts.Backend)
	}
	if c.Alerts.ProjectID != "" && c.Alerts.Topic == "" {
		return fmt.Errorf("alerts.topic is required when alerts.project_id is set")
	}
	if _, err := c.Sequences(); err != nil {
		return err
	}
	return nil
}

// Sequences converts the configured gates into engine sequences.
func (c Config) Sequences() (map[string]gate.Sequence, error) {
	out := make(map[string]gate.Sequence, len(c.Gates))
	for name, g := range c.Gates {
		seq := gate.Sequence{Name: name, Steps: make([]gate.Step, 0, len(g.Steps))}
		for _, s := range g.Steps {
			by := gate.Strategy(s.By)
			if by == "" {
				by = gate.ByID
			}
			seq.Steps = append(seq.Steps, gate.Step{
				Locator:     gate.Locator{Strategy: by, Value: strings.TrimPrefix(s.Locator, "#")},
				MaxWait:     time.Duration(s.MaxWaitSeconds) * time.Second,
				Description: s.Description,
			})
		}
		if err := seq.Validate(); err != nil {
			return nil, fmt.Errorf("gates.%s: %w", name, err)
		}
		out[name] = seq
	}
	return out, nil
}

// StaticTimeout is the per-fetch budget for static adapters.
func (c Config) StaticTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// EngineConfig derives the gate engine settings.
func (c Config) EngineConfig() gate.Config {
	return gate.Config{
		Launch: gate.LaunchOptions{
			ExecPath:        c.Headless.ExecPath,
			UserAgent:       c.Headless.UserAgent,
			PageLoadTimeout: time.Duration(c.Headless.PageLoadTimeoutSeconds) * time.Second,
			Flags:           c.Headless.Flags,
		},
		MaxParallel:     c.Headless.MaxParallel,
		SettleMin:       time.Duration(c.Headless.SettleMinMillis) * time.Millisecond,
		SettleMax:       time.Duration(c.Headless.SettleMaxMillis) * time.Millisecond,
		SnapshotTimeout: time.Duration(c.Headless.SnapshotTimeoutSeconds) * time.Second,
		ArtifactPrefix:  c.Artifacts.Prefix,
		Deadline:        time.Duration(c.Headless.DeadlineSeconds) * time.Second,
	}
}
