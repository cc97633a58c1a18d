package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/paste-resolver/internal/metrics"
)

const sideEffectTimeout = 5 * time.Second

// ServiceConfig holds the per-call budgets and alert routing.
type ServiceConfig struct {
	// StaticDeadline bounds a whole static resolution, 0 disables it.
	StaticDeadline time.Duration
	// DynamicDeadline bounds a whole gate bypass, 0 disables it.
	DynamicDeadline time.Duration
	AlertTopic      string
}

// Service is the request-scoped entry into the registry and adapters. It is
// built once at startup and shared by all handlers; it holds no mutable state.
type Service struct {
	registry  *Registry
	adapters  map[string]Adapter
	publisher Publisher
	journal   Journal
	idGen     IDGenerator
	clock     Clock
	cfg       ServiceConfig
	logger    *zap.Logger
}

// NewService wires the registry to its adapters. Every registry row must name
// a registered adapter. publisher and journal are optional.
func NewService(
	registry *Registry,
	adapters []Adapter,
	publisher Publisher,
	journal Journal,
	idGen IDGenerator,
	clock Clock,
	cfg ServiceConfig,
	logger *zap.Logger,
) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if idGen == nil || clock == nil {
		return nil, fmt.Errorf("id generator and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byID := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		if _, dup := byID[a.ID()]; dup {
			return nil, fmt.Errorf("duplicate adapter id %q", a.ID())
		}
		byID[a.ID()] = a
	}
	for _, row := range registry.Rows() {
		a, ok := byID[row.AdapterID]
		if !ok {
			return nil, fmt.Errorf("registry row %q references unknown adapter %q", row.DomainMatch, row.AdapterID)
		}
		if kr, ok := a.(KindReporter); ok && kr.Kind() != row.Kind {
			return nil, fmt.Errorf("registry row %q is %s but adapter %q is %s", row.DomainMatch, row.Kind, row.AdapterID, kr.Kind())
		}
	}
	return &Service{
		registry:  registry,
		adapters:  byID,
		publisher: publisher,
		journal:   journal,
		idGen:     idGen,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Resolve validates rawURL, dispatches it to the matching adapter and returns
// the normalized outcome. It never returns partial content on failure.
func (s *Service) Resolve(ctx context.Context, rawURL string) Outcome {
	start := s.clock.Now()
	outcome := Outcome{URL: rawURL, StartedAt: start}
	id := RequestIDFrom(ctx)
	if id == "" {
		var err error
		if id, err = s.idGen.NewID(); err != nil {
			s.logger.Warn("request id generation failed", zap.Error(err))
		}
	}
	outcome.RequestID = id

	result, adapterID, err := s.dispatch(ctx, Request{ID: id, RawURL: rawURL})
	outcome.AdapterID = adapterID
	outcome.Duration = s.clock.Now().Sub(start)
	if err != nil {
		outcome.Err = AsError(err)
	} else {
		outcome.Success = true
		outcome.Content = result.Content
		outcome.ResolvedURL = result.ResolvedURL
	}

	s.report(ctx, outcome)
	return outcome
}

func (s *Service) dispatch(ctx context.Context, req Request) (res Result, adapterID string, err error) {
	if verr := validateURL(req.RawURL); verr != nil {
		return Result{}, "", verr
	}
	row, lookupErr := s.registry.Resolve(req.RawURL)
	if lookupErr != nil {
		return Result{}, "", NewError(KindUnsupportedTarget, "unsupported url", lookupErr)
	}
	adapter := s.adapters[row.AdapterID]

	if deadline := s.deadlineFor(row.Kind); deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = NewError(KindUnexpectedError, "adapter panicked", fmt.Errorf("panic: %v", rec))
			res = Result{}
		}
	}()

	s.logger.Debug("dispatching",
		zap.String("request_id", req.ID),
		zap.String("adapter", row.AdapterID),
		zap.String("kind", string(row.Kind)),
	)
	res, err = adapter.Resolve(ctx, req)
	if err != nil {
		return Result{}, row.AdapterID, AsError(err)
	}
	if row.Kind == KindDynamic && res.ResolvedURL == "" {
		return Result{}, row.AdapterID, NewError(KindUnexpectedError, "adapter returned no destination", nil)
	}
	return res, row.AdapterID, nil
}

func (s *Service) deadlineFor(kind Kind) time.Duration {
	if kind == KindDynamic {
		return s.cfg.DynamicDeadline
	}
	return s.cfg.StaticDeadline
}

func (s *Service) report(ctx context.Context, outcome Outcome) {
	adapter := outcome.AdapterID
	if adapter == "" {
		adapter = "none"
	}
	label := "success"
	if kind := outcome.ErrorKind(); kind != "" {
		label = string(kind)
	}
	metrics.ObserveResolution(adapter, label, outcome.Duration)

	fields := []zap.Field{
		zap.String("request_id", outcome.RequestID),
		zap.String("url", outcome.URL),
		zap.String("adapter", adapter),
		zap.Duration("duration", outcome.Duration),
	}
	switch {
	case outcome.Err == nil:
		s.logger.Info("resolved", fields...)
	case outcome.Err.Kind.Structural():
		s.logger.Error("structural resolution failure; remote page may have changed",
			append(fields, zap.String("error_kind", outcome.Err.Code()), zap.Error(outcome.Err))...)
	default:
		s.logger.Warn("resolution failed",
			append(fields, zap.String("error_kind", outcome.Err.Code()), zap.Error(outcome.Err))...)
	}

	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if outcome.Err != nil && outcome.Err.Kind.Structural() && s.publisher != nil {
		s.publishAlert(sideCtx, outcome)
	}
	if s.journal != nil {
		if err := s.journal.Record(sideCtx, outcome); err != nil {
			s.logger.Warn("journal record failed", zap.String("request_id", outcome.RequestID), zap.Error(err))
		}
	}
}

func (s *Service) publishAlert(ctx context.Context, outcome Outcome) {
	rerr := outcome.Err
	alert := Alert{
		RequestID:   outcome.RequestID,
		URL:         outcome.URL,
		AdapterID:   outcome.AdapterID,
		Kind:        rerr.Kind,
		Description: rerr.Description,
		Diagnostic:  rerr.Diagnostic,
		Message:     rerr.Error(),
		OccurredAt:  s.clock.Now(),
	}
	if rerr.Step >= 0 {
		step := rerr.Step
		alert.Step = &step
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.AlertTopic, alert); err != nil {
		s.logger.Warn("alert publish failed", zap.String("request_id", outcome.RequestID), zap.Error(err))
	}
}

func validateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return NewError(KindInputInvalid, "missing 'url' parameter", nil)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return NewError(KindInputInvalid, "invalid 'url' parameter", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return NewError(KindInputInvalid, "invalid 'url' parameter: scheme and host are required", nil)
	}
	return nil
}
