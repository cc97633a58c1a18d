package static

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

// Config declares one static adapter.
type Config struct {
	ID           string   `mapstructure:"id"`
	Pattern      string   `mapstructure:"pattern"`
	Template     string   `mapstructure:"template"`
	AppendSuffix string   `mapstructure:"append_suffix"`
	Strategy     Strategy `mapstructure:"strategy"`
	Selector     string   `mapstructure:"selector"`
	Field        string   `mapstructure:"field"`
}

// Adapter resolves a paste URL with one rewritten fetch.
type Adapter struct {
	id        string
	rewrite   Rewrite
	extractor Extractor
	fetcher   resolver.Fetcher
	limiter   resolver.RateLimiter
	logger    *zap.Logger
}

// New builds an Adapter. limiter may be nil.
func New(cfg Config, fetcher resolver.Fetcher, limiter resolver.RateLimiter, logger *zap.Logger) (*Adapter, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("adapter id is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("adapter %q: fetcher is required", cfg.ID)
	}
	rw, err := NewRewrite(cfg.Pattern, cfg.Template, cfg.AppendSuffix)
	if err != nil {
		return nil, fmt.Errorf("adapter %q: %w", cfg.ID, err)
	}
	ex, err := NewExtractor(cfg.Strategy, cfg.Selector, cfg.Field)
	if err != nil {
		return nil, fmt.Errorf("adapter %q: %w", cfg.ID, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		id:        cfg.ID,
		rewrite:   rw,
		extractor: ex,
		fetcher:   fetcher,
		limiter:   limiter,
		logger:    logger.With(zap.String("adapter", cfg.ID)),
	}, nil
}

// ID returns the adapter identifier used by registry rows.
func (a *Adapter) ID() string { return a.id }

// Kind reports that the adapter serves static registry rows.
func (a *Adapter) Kind() resolver.Kind { return resolver.KindStatic }

// Resolve fetches the paste behind req.RawURL and returns its text.
func (a *Adapter) Resolve(ctx context.Context, req resolver.Request) (resolver.Result, error) {
	target, err := a.rewrite.Apply(req.RawURL)
	if err != nil {
		return resolver.Result{}, err
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, target); err != nil {
			return resolver.Result{}, a.ctxOr(ctx, resolver.NewError(resolver.KindFetchError, "rate limited", err))
		}
	}

	a.logger.Debug("fetching", zap.String("request_id", req.ID), zap.String("target", target))
	body, err := a.fetcher.Get(ctx, target)
	if err != nil {
		return resolver.Result{}, a.ctxOr(ctx, fetchError(err))
	}
	content, err := a.extractor.Extract(body)
	if err != nil {
		return resolver.Result{}, err
	}
	return resolver.Result{Content: content}, nil
}

// ctxOr reports the caller's deadline or cancellation in place of fallback.
func (a *Adapter) ctxOr(ctx context.Context, fallback *resolver.Error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return resolver.NewError(resolver.KindUnexpectedError, "request deadline reached", ctxErr)
	}
	return fallback
}

func fetchError(err error) *resolver.Error {
	rerr := resolver.NewError(resolver.KindFetchError, "failed to fetch content", err)
	var statusErr *resolver.HTTPStatusError
	switch {
	case errors.As(err, &statusErr):
		rerr.StatusCode = statusErr.StatusCode
		rerr.Message = fmt.Sprintf("upstream returned status %d", statusErr.StatusCode)
	case errors.Is(err, resolver.ErrBodyTooLarge):
		rerr.Message = "upstream content exceeds size limit"
	}
	return rerr
}
