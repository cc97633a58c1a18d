package server

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/paste-resolver/internal/adapters/static"
	"github.com/JakeFAU/paste-resolver/internal/clock/system"
	"github.com/JakeFAU/paste-resolver/internal/config"
	collyfetcher "github.com/JakeFAU/paste-resolver/internal/fetcher/colly"
	"github.com/JakeFAU/paste-resolver/internal/gate"
	chromedpdriver "github.com/JakeFAU/paste-resolver/internal/gate/chromedp"
	"github.com/JakeFAU/paste-resolver/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/paste-resolver/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/paste-resolver/internal/publisher/pubsub"
	"github.com/JakeFAU/paste-resolver/internal/resolver"
	gcsstorage "github.com/JakeFAU/paste-resolver/internal/storage/gcs"
	localstorage "github.com/JakeFAU/paste-resolver/internal/storage/local"
	memorystorage "github.com/JakeFAU/paste-resolver/internal/storage/memory"
	pgstore "github.com/JakeFAU/paste-resolver/internal/storage/postgres"
)

func (a *App) buildService(ctx context.Context, idGen resolver.IDGenerator) (*resolver.Service, error) {
	cfg := a.cfg
	artifacts, err := a.buildArtifacts(ctx, cfg.Artifacts)
	if err != nil {
		return nil, err
	}
	alerts, err := a.buildAlerts(ctx, cfg.Alerts)
	if err != nil {
		return nil, err
	}
	journal, err := a.buildJournal(ctx, cfg.Journal)
	if err != nil {
		return nil, err
	}

	adapters, err := a.buildStaticAdapters(cfg)
	if err != nil {
		return nil, err
	}
	gates, err := a.buildGateAdapters(cfg, artifacts)
	if err != nil {
		return nil, err
	}
	adapters = append(adapters, gates...)

	registry, err := resolver.NewRegistry(cfg.Registry.Rows, cfg.Registry.MatchHost)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	svc, err := resolver.NewService(
		registry,
		adapters,
		alerts,
		journal,
		idGen,
		system.New(),
		resolver.ServiceConfig{
			// Covers the rate limit wait as well as the fetch itself.
			StaticDeadline: 2 * cfg.StaticTimeout(),
			AlertTopic:     cfg.Alerts.Topic,
		},
		a.logger.Named("resolver"),
	)
	if err != nil {
		return nil, fmt.Errorf("build resolver service: %w", err)
	}
	return svc, nil
}

func (a *App) buildArtifacts(ctx context.Context, cfg config.ArtifactsConfig) (resolver.BlobStore, error) {
	switch cfg.Backend {
	case "", config.ArtifactsMemory:
		return memorystorage.NewBlobStore(), nil
	case config.ArtifactsLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local artifacts: %w", err)
		}
		return store, nil
	case config.ArtifactsGCS:
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs artifacts: %w", err)
		}
		a.onClose("gcs", store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown artifacts backend %q", cfg.Backend)
	}
}

func (a *App) buildAlerts(ctx context.Context, cfg config.AlertsConfig) (resolver.Publisher, error) {
	if cfg.ProjectID == "" {
		a.logger.Info("alerts kept in memory; set alerts.project_id to publish to pubsub")
		return memorypublisher.New(cfg.MemoryCapacity), nil
	}
	pub, err := gcppublisher.Open(ctx, gcppublisher.Config{ProjectID: cfg.ProjectID, TopicID: cfg.Topic})
	if err != nil {
		return nil, fmt.Errorf("init alert publisher: %w", err)
	}
	a.onClose("pubsub", pub.Close)
	return pub, nil
}

func (a *App) buildJournal(ctx context.Context, cfg config.JournalConfig) (resolver.Journal, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	store, err := pgstore.NewJournalStore(ctx, pgstore.JournalStoreConfig{
		DSN:      cfg.DSN,
		Table:    cfg.Table,
		MaxConns: cfg.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	a.onClose("journal", func() error {
		store.Close()
		return nil
	})
	if cfg.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure journal schema: %w", err)
		}
	}
	return store, nil
}

func (a *App) buildStaticAdapters(cfg config.Config) ([]resolver.Adapter, error) {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.StaticTimeout(),
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
	})
	limiter := ratelimit.New(cfg.RateLimit)
	logger := a.logger.Named("static")

	out := make([]resolver.Adapter, 0, len(cfg.Adapters))
	for _, ac := range cfg.Adapters {
		adapter, err := static.New(ac, fetcher, limiter, logger)
		if err != nil {
			return nil, fmt.Errorf("adapter %q: %w", ac.ID, err)
		}
		out = append(out, adapter)
	}
	return out, nil
}

func (a *App) buildGateAdapters(cfg config.Config, artifacts resolver.BlobStore) ([]resolver.Adapter, error) {
	sequences, err := cfg.Sequences()
	if err != nil {
		return nil, err
	}
	if len(sequences) == 0 {
		return nil, nil
	}
	engine, err := gate.NewEngine(
		chromedpdriver.New(a.logger.Named("chromedp")),
		artifacts,
		cfg.EngineConfig(),
		a.logger.Named("gate"),
	)
	if err != nil {
		return nil, fmt.Errorf("init gate engine: %w", err)
	}

	names := make([]string, 0, len(sequences))
	for name := range sequences {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]resolver.Adapter, 0, len(names))
	for _, name := range names {
		adapter, err := gate.NewAdapter(name, engine, sequences[name])
		if err != nil {
			return nil, fmt.Errorf("gate %q: %w", name, err)
		}
		a.logger.Debug("gate adapter registered", zap.String("adapter", name), zap.Int("steps", len(sequences[name].Steps)))
		out = append(out, adapter)
	}
	return out, nil
}
