package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/paste-resolver/internal/adapters/static"
	"github.com/JakeFAU/paste-resolver/internal/gate"
	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.TimeoutSeconds != 5 || cfg.HTTP.MaxBodyBytes != 2<<20 {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if got := cfg.StaticTimeout(); got != 5*time.Second {
		t.Fatalf("expected static timeout 5s, got %v", got)
	}
	if len(cfg.Registry.Rows) != len(DefaultRows()) || cfg.Registry.Rows[0].AdapterID != "pastebin" {
		t.Fatalf("expected built-in registry rows, got %+v", cfg.Registry.Rows)
	}
	if len(cfg.Adapters) != len(static.Defaults()) {
		t.Fatalf("expected built-in adapters, got %d", len(cfg.Adapters))
	}
	seqs, err := cfg.Sequences()
	if err != nil {
		t.Fatalf("Sequences() error = %v", err)
	}
	lv, ok := seqs["linkvertise"]
	if !ok || len(lv.Steps) != 2 {
		t.Fatalf("expected default linkvertise sequence, got %+v", seqs)
	}
	if lv.Steps[0].Locator != (gate.Locator{Strategy: gate.ByID, Value: "connect-button"}) ||
		lv.Steps[0].MaxWait != 20*time.Second || lv.Steps[0].Description != "free access" {
		t.Fatalf("unexpected first step %+v", lv.Steps[0])
	}
	ec := cfg.EngineConfig()
	if ec.SettleMin != time.Second || ec.SettleMax != 3*time.Second || ec.MaxParallel != 2 {
		t.Fatalf("unexpected engine config %+v", ec)
	}
	if ec.Deadline != 90*time.Second || ec.ArtifactPrefix != "diagnostics" {
		t.Fatalf("unexpected engine deadline/prefix %+v", ec)
	}
	if ec.Launch.UserAgent != DefaultBrowserUserAgent || strings.Contains(ec.Launch.UserAgent, "Headless") {
		t.Fatalf("expected desktop browser user agent, got %q", ec.Launch.UserAgent)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
http:
  timeout_seconds: 8
  user_agent: test-agent
headless:
  max_parallel: 4
  exec_path: /usr/bin/chromium
  flags:
    lang: en-US
registry:
  match_host: true
  rows:
    - domain_match: service-a.example
      kind: static
      adapter_id: service-a
    - domain_match: service-b.example
      kind: dynamic
      adapter_id: service-b
adapters:
  - id: service-a
    pattern: 'service-a\.example/([a-z]+)'
    template: 'https://service-a.example/raw/{id}'
    strategy: raw
gates:
  service-b:
    steps:
      - locator: "#start"
        max_wait_seconds: 5
        description: start
      - locator: "a.next"
        by: css
        max_wait_seconds: 3
        description: next
artifacts:
  backend: local
  local_dir: /tmp/diag
ratelimit:
  default_rps: 1
  domains:
    - host: service-a.example
      rps: 5
      burst: 2
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if !cfg.Registry.MatchHost || len(cfg.Registry.Rows) != 2 {
		t.Fatalf("expected registry override, got %+v", cfg.Registry)
	}
	if cfg.Registry.Rows[1] != (resolver.Descriptor{DomainMatch: "service-b.example", Kind: resolver.KindDynamic, AdapterID: "service-b"}) {
		t.Fatalf("unexpected row %+v", cfg.Registry.Rows[1])
	}
	if len(cfg.Adapters) != 1 || cfg.Adapters[0].Template != "https://service-a.example/raw/{id}" {
		t.Fatalf("expected adapters to replace defaults, got %+v", cfg.Adapters)
	}
	seqs, err := cfg.Sequences()
	if err != nil {
		t.Fatalf("Sequences() error = %v", err)
	}
	seq := seqs["service-b"]
	if len(seq.Steps) != 2 || seq.Steps[0].Locator.Value != "start" || seq.Steps[1].Locator.Strategy != gate.ByCSS {
		t.Fatalf("unexpected sequence %+v", seq)
	}
	if _, ok := seqs["linkvertise"]; ok {
		t.Fatal("configured gates must replace the built-in ones")
	}
	if cfg.Headless.Flags["lang"] != "en-US" || cfg.EngineConfig().Launch.ExecPath != "/usr/bin/chromium" {
		t.Fatalf("unexpected headless config %+v", cfg.Headless)
	}
	if len(cfg.RateLimit.Domains) != 1 || cfg.RateLimit.Domains[0].Host != "service-a.example" || cfg.RateLimit.Domains[0].RPS != 5 {
		t.Fatalf("unexpected rate limit rule %+v", cfg.RateLimit)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RESOLVER_HTTP_TIMEOUT_SECONDS", "9")
	t.Setenv("PORT", "7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.TimeoutSeconds != 9 {
		t.Fatalf("expected env timeout override, got %d", cfg.HTTP.TimeoutSeconds)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected PORT override, got %d", cfg.Server.Port)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "eighty")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		HTTP:      HTTPConfig{TimeoutSeconds: 5, MaxBodyBytes: 1024},
		Headless:  HeadlessConfig{MaxParallel: 1, DeadlineSeconds: 60, SettleMinMillis: 10, SettleMaxMillis: 20},
		Artifacts: ArtifactsConfig{Backend: ArtifactsMemory},
		Gates:     DefaultGates(),
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"invalid body cap", func(c *Config) { c.HTTP.MaxBodyBytes = 0 }, "http.max_body_bytes"},
		{"max parallel", func(c *Config) { c.Headless.MaxParallel = 0 }, "headless.max_parallel"},
		{"deadline", func(c *Config) { c.Headless.DeadlineSeconds = 0 }, "headless.deadline_seconds"},
		{"settle range", func(c *Config) { c.Headless.SettleMaxMillis = 5 }, "settle"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"local without dir", func(c *Config) { c.Artifacts.Backend = ArtifactsLocal }, "artifacts.local_dir"},
		{"gcs without bucket", func(c *Config) { c.Artifacts.Backend = ArtifactsGCS }, "artifacts.gcs_bucket"},
		{"unknown backend", func(c *Config) { c.Artifacts.Backend = "s3" }, "artifacts.backend"},
		{"alerts without topic", func(c *Config) { c.Alerts.ProjectID = "proj" }, "alerts.topic"},
		{"bad gate", func(c *Config) {
			c.Gates = map[string]GateConfig{"broken": {Steps: []GateStepConfig{{Locator: "x", By: "name", MaxWaitSeconds: 1}}}}
		}, "gates.broken"},
		{"gate without wait", func(c *Config) {
			c.Gates = map[string]GateConfig{"slow": {Steps: []GateStepConfig{{Locator: "x"}}}}
		}, "gates.slow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
