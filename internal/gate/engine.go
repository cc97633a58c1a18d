package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/paste-resolver/internal/metrics"
	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

var (
	// ErrEmptyDestination is returned when the browser reports no current URL.
	ErrEmptyDestination = errors.New("browser reported an empty destination url")
	// ErrNoSlot is returned when the caller gives up waiting for a browser slot.
	ErrNoSlot = errors.New("no browser slot available")
)

const defaultSnapshotTimeout = 10 * time.Second

// Config controls Engine behavior.
type Config struct {
	Launch LaunchOptions
	// MaxParallel bounds concurrent browser sessions; 0 means unbounded.
	MaxParallel int
	// SettleMin and SettleMax bound the random pause after each click.
	SettleMin time.Duration
	SettleMax time.Duration
	// SnapshotTimeout bounds diagnostic capture after a failed step.
	SnapshotTimeout time.Duration
	// ArtifactPrefix is prepended to stored snapshot paths.
	ArtifactPrefix string
	// Deadline bounds a whole Bypass call including the slot wait; 0 disables it.
	Deadline time.Duration
}

// Engine executes gate sequences against fresh browser sessions.
type Engine struct {
	driver    Driver
	artifacts resolver.BlobStore
	cfg       Config
	limiter   chan struct{}
	jitter    func() time.Duration
	logger    *zap.Logger
}

// NewEngine builds an Engine. artifacts may be nil, in which case snapshots
// are captured and logged but not stored.
func NewEngine(driver Driver, artifacts resolver.BlobStore, cfg Config, logger *zap.Logger) (*Engine, error) {
	if driver == nil {
		return nil, fmt.Errorf("browser driver is required")
	}
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.SettleMin < 0 || cfg.SettleMax < cfg.SettleMin {
		return nil, fmt.Errorf("invalid settle range [%s, %s]", cfg.SettleMin, cfg.SettleMax)
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = defaultSnapshotTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	e := &Engine{
		driver:    driver,
		artifacts: artifacts,
		cfg:       cfg,
		limiter:   limiter,
		logger:    logger,
	}
	e.jitter = e.uniformSettle
	return e, nil
}

// Bypass launches a session, walks seq in order and returns the URL the
// browser ends up on. No step is retried; callers retry by calling Bypass
// again, which starts from a fresh session.
func (e *Engine) Bypass(ctx context.Context, req resolver.Request, seq Sequence) (resolved string, err error) {
	logger := e.logger.With(
		zap.String("request_id", req.ID),
		zap.String("sequence", seq.Name),
		zap.String("url", req.RawURL),
	)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("gate bypass panicked", zap.Any("panic", rec))
			resolved = ""
			err = resolver.NewError(resolver.KindUnexpectedError, "gate bypass panicked", fmt.Errorf("panic: %v", rec))
		}
	}()

	if e.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Deadline)
		defer cancel()
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return "", resolver.NewError(resolver.KindUnexpectedError, "no browser slot available", err)
	}
	defer release()

	start := time.Now()
	session, err := e.driver.Launch(ctx, e.cfg.Launch)
	if session != nil {
		l := newLease(session)
		metrics.IncBrowserSessions()
		defer func() {
			l.release(logger, sessionResult(resolved, err))
		}()
	}
	if err != nil {
		return "", classify(ctx, resolver.KindSessionInitFailed, "browser launch failed", err)
	}
	logger.Debug("browser session started", zap.Duration("launch", time.Since(start)))

	if err := session.Navigate(ctx, req.RawURL); err != nil {
		return "", classify(ctx, resolver.KindNavigationFailed, "navigation failed", err)
	}

	for i, step := range seq.Steps {
		stepLogger := logger.With(zap.Int("step", i), zap.String("description", step.Description))
		if err := e.runStep(ctx, session, seq.Name, step); err != nil {
			if ctx.Err() != nil {
				return "", classify(ctx, resolver.KindGateStepFailed, "gate step interrupted", err)
			}
			serr := resolver.StepError(i, step.Description, err)
			serr.Diagnostic = e.captureDiagnostic(ctx, session, req, seq.Name, i, stepLogger)
			stepLogger.Warn("gate step failed", zap.String("locator", step.Locator.String()), zap.Error(err))
			return "", serr
		}
		stepLogger.Debug("gate step passed")
	}

	current, err := session.CurrentURL(ctx)
	if err == nil && strings.TrimSpace(current) == "" {
		err = ErrEmptyDestination
	}
	if err != nil {
		return "", classify(ctx, resolver.KindUnexpectedError, "read destination url", err)
	}
	logger.Info("gate sequence traversed",
		zap.String("resolved_url", current),
		zap.Duration("duration", time.Since(start)),
	)
	return current, nil
}

func (e *Engine) runStep(ctx context.Context, session Session, sequence string, step Step) error {
	start := time.Now()
	el, err := session.WaitUntilClickable(ctx, step.Locator, step.MaxWait)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", step.Locator, err)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("click %s: %w", step.Locator, err)
	}
	metrics.ObserveGateStep(sequence, time.Since(start))
	return e.settle(ctx)
}

func (e *Engine) settle(ctx context.Context) error {
	d := e.jitter()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("settle interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (e *Engine) uniformSettle() time.Duration {
	spread := e.cfg.SettleMax - e.cfg.SettleMin
	if spread <= 0 {
		return e.cfg.SettleMin
	}
	return e.cfg.SettleMin + rand.N(spread+1)
}

// captureDiagnostic snapshots the page and stores it, returning the URI of
// the HTML snapshot (or the screenshot when no HTML was captured).
func (e *Engine) captureDiagnostic(
	ctx context.Context,
	session Session,
	req resolver.Request,
	sequence string,
	step int,
	logger *zap.Logger,
) string {
	snapCtx, cancel := context.WithTimeout(ctx, e.cfg.SnapshotTimeout)
	defer cancel()

	snap, err := session.CaptureSnapshot(snapCtx)
	if err != nil {
		logger.Warn("diagnostic snapshot failed", zap.Error(err))
		return ""
	}
	if e.artifacts == nil {
		logger.Info("diagnostic snapshot captured but no artifact store configured",
			zap.Int("html_bytes", len(snap.HTML)),
			zap.Int("screenshot_bytes", len(snap.Screenshot)),
			zap.String("page_url", snap.URL),
		)
		return ""
	}

	base := e.artifactBase(req.ID, sequence, step)
	var primary string
	if len(snap.HTML) > 0 {
		uri, err := e.artifacts.PutObject(snapCtx, base+".html", "text/html; charset=utf-8", bytes.NewReader(snap.HTML))
		if err != nil {
			logger.Warn("store html snapshot failed", zap.Error(err))
		} else {
			primary = uri
		}
	}
	if len(snap.Screenshot) > 0 {
		uri, err := e.artifacts.PutObject(snapCtx, base+".png", "image/png", bytes.NewReader(snap.Screenshot))
		if err != nil {
			logger.Warn("store screenshot failed", zap.Error(err))
		} else if primary == "" {
			primary = uri
		}
	}
	logger.Info("diagnostic snapshot stored", zap.String("artifact", primary), zap.String("page_url", snap.URL))
	return primary
}

func (e *Engine) artifactBase(requestID, sequence string, step int) string {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return path.Join(strings.Trim(e.cfg.ArtifactPrefix, "/"), sequence, requestID, fmt.Sprintf("step-%d", step))
}

func (e *Engine) acquire(ctx context.Context) (func(), error) {
	if e.limiter == nil {
		return func() {}, nil
	}
	select {
	case e.limiter <- struct{}{}:
		return func() { <-e.limiter }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrNoSlot, ctx.Err())
	}
}

// classify maps a phase failure to its kind unless the caller's context
// ended first, in which case the failure is reported as unexpected and keeps
// the context error in its chain.
func classify(ctx context.Context, kind resolver.ErrorKind, msg string, err error) *resolver.Error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return resolver.NewError(resolver.KindUnexpectedError, msg, fmt.Errorf("%w: %w", ctxErr, err))
	}
	if ctx.Err() != nil {
		return resolver.NewError(resolver.KindUnexpectedError, msg, err)
	}
	return resolver.NewError(kind, msg, err)
}

func sessionResult(resolved string, err error) string {
	switch {
	case err != nil:
		return string(resolver.KindOf(err))
	case resolved == "":
		return string(resolver.KindUnexpectedError)
	default:
		return "resolved"
	}
}

// lease guarantees a session is terminated exactly once.
type lease struct {
	session Session
	once    sync.Once
}

func newLease(s Session) *lease {
	return &lease{session: s}
}

func (l *lease) release(logger *zap.Logger, result string) {
	l.once.Do(func() {
		if err := l.session.Terminate(); err != nil {
			logger.Warn("browser session terminate failed", zap.Error(err))
		}
		metrics.DecBrowserSessions(result)
		logger.Debug("browser session terminated", zap.String("result", result))
	})
}
