// Package ratelimit keeps outbound fetches polite with per-domain token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/paste-resolver/internal/metrics"
)

// Rule is a token bucket definition. Host is only set on per-domain overrides.
type Rule struct {
	Host  string  `mapstructure:"host"`
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Config holds rate limiter configuration. Domains overrides the default rule
// for exact hostnames.
type Config struct {
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst int     `mapstructure:"default_burst"`
	Domains      []Rule  `mapstructure:"domains"`
}

// Limiter manages per-domain rate limits. Safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	fallback Rule
	rules    map[string]Rule
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	rules := make(map[string]Rule, len(cfg.Domains))
	for _, rule := range cfg.Domains {
		rules[strings.ToLower(rule.Host)] = rule
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		fallback: Rule{RPS: cfg.DefaultRPS, Burst: cfg.DefaultBurst},
		rules:    rules,
	}
}

// Wait blocks until a token is available for the URL's host or ctx ends.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := domainOf(rawURL)
	limiter := l.limiterFor(domain)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(domain, waited)
	}
	return nil
}

func (l *Limiter) limiterFor(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[domain]; ok {
		return limiter
	}
	rule, ok := l.rules[domain]
	if !ok {
		rule = l.fallback
	}
	limiter := rate.NewLimiter(limitOf(rule.RPS), burstOf(rule.Burst))
	l.limiters[domain] = limiter
	return limiter
}

func limitOf(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

func burstOf(burst int) int {
	if burst <= 0 {
		return 1
	}
	return burst
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
