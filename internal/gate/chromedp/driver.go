// Package chromedpdriver drives headless Chrome through chromedp for gate
// bypass sessions. Every Launch starts a fresh browser process; nothing is
// pooled or reused between requests.
package chromedpdriver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/paste-resolver/internal/gate"
)

const (
	defaultPageLoadTimeout = 30 * time.Second
	defaultActionTimeout   = 10 * time.Second
	// startDrainTimeout bounds the wait for an aborted startup to return.
	startDrainTimeout = 5 * time.Second
	// Full page screenshots at quality 100 are encoded as PNG.
	screenshotQuality = 100
)

// Driver implements gate.Driver on chromedp.
type Driver struct {
	logger *zap.Logger
}

// New returns a Driver.
func New(logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{logger: logger}
}

// Launch starts a browser and opens one tab. On failure after the allocator
// exists the partially built session is returned with the error so the caller
// can terminate it.
func (d *Driver) Launch(ctx context.Context, opts gate.LaunchOptions) (gate.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(d.logger.Sugar().Debugf))

	s := &session{
		tabCtx:          tabCtx,
		tabCancel:       tabCancel,
		allocCancel:     allocCancel,
		pageLoadTimeout: opts.PageLoadTimeout,
		logger:          d.logger,
	}
	if s.pageLoadTimeout <= 0 {
		s.pageLoadTimeout = defaultPageLoadTimeout
	}

	// The first Run starts the browser. It must run on the un-timed tab
	// context or the browser would die with the launch deadline.
	started := make(chan struct{})
	var startErr error
	s.started = started
	go func() {
		defer close(started)
		startErr = chromedp.Run(tabCtx, setupAction(opts.UserAgent))
	}()
	select {
	case <-ctx.Done():
		// Abort the startup and let it unwind before anyone touches the tab.
		s.tabCancel()
		if !s.waitStarted(startDrainTimeout) {
			d.logger.Warn("browser startup still running after launch was canceled")
		}
		return s, fmt.Errorf("browser launch canceled: %w", ctx.Err())
	case <-started:
		if startErr != nil {
			return s, fmt.Errorf("start browser: %w", startErr)
		}
	}
	return s, nil
}

func allocatorOptions(opts gate.LaunchOptions) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out,
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	for name, value := range opts.Flags {
		out = append(out, chromedp.Flag(name, value))
	}
	return out
}

func setupAction(userAgent string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

type session struct {
	tabCtx          context.Context
	tabCancel       context.CancelFunc
	allocCancel     context.CancelFunc
	pageLoadTimeout time.Duration
	logger          *zap.Logger
	// started is closed once the browser startup Run has returned.
	started <-chan struct{}

	once    sync.Once
	termErr error
}

// waitStarted reports whether the startup Run returned within timeout.
func (s *session) waitStarted(timeout time.Duration) bool {
	if s.started == nil {
		return true
	}
	select {
	case <-s.started:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.started:
		return true
	case <-timer.C:
		return false
	}
}

// run executes actions on the tab bounded by timeout and by the caller's ctx.
// Operation contexts derive from the tab so canceling them never closes it.
func (s *session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	if opErr := opCtx.Err(); opErr != nil {
		return fmt.Errorf("%w: %w", opErr, err)
	}
	return err
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.pageLoadTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *session) WaitUntilClickable(ctx context.Context, locator gate.Locator, timeout time.Duration) (gate.Element, error) {
	by, err := queryOption(locator.Strategy)
	if err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	if err := s.run(ctx, timeout,
		chromedp.WaitVisible(locator.Value, by),
		chromedp.WaitEnabled(locator.Value, by),
		chromedp.Nodes(locator.Value, &nodes, by),
	); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", locator, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("wait for %s: no matching node", locator)
	}
	return &element{session: s, node: nodes[0], locator: locator}, nil
}

func (s *session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, defaultActionTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (s *session) CaptureSnapshot(ctx context.Context) (gate.Snapshot, error) {
	var (
		html string
		shot []byte
		loc  string
	)
	if err := s.run(ctx, defaultActionTimeout,
		chromedp.Location(&loc),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return gate.Snapshot{}, fmt.Errorf("capture html: %w", err)
	}
	snap := gate.Snapshot{HTML: []byte(html), URL: loc}
	// A page that renders HTML but refuses a screenshot still yields a usable artifact.
	if err := s.run(ctx, defaultActionTimeout, chromedp.FullScreenshot(&shot, screenshotQuality)); err != nil {
		s.logger.Debug("screenshot failed", zap.Error(err))
		return snap, nil
	}
	snap.Screenshot = shot
	return snap, nil
}

// Terminate closes the browser once. Later calls return the first result.
func (s *session) Terminate() error {
	s.once.Do(func() {
		defer s.allocCancel()
		if !s.waitStarted(0) {
			s.tabCancel()
			if !s.waitStarted(startDrainTimeout) {
				s.termErr = errors.New("close browser: startup did not return")
				return
			}
		}
		if err := chromedp.Cancel(s.tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.termErr = fmt.Errorf("close browser: %w", err)
		}
		s.tabCancel()
	})
	return s.termErr
}

type element struct {
	session *session
	node    *cdp.Node
	locator gate.Locator
}

func (e *element) Click(ctx context.Context) error {
	if err := e.session.run(ctx, defaultActionTimeout, chromedp.MouseClickNode(e.node)); err != nil {
		return fmt.Errorf("click %s: %w", e.locator, err)
	}
	return nil
}

func queryOption(strategy gate.Strategy) (chromedp.QueryOption, error) {
	switch strategy {
	case gate.ByID:
		return chromedp.ByID, nil
	case gate.ByCSS:
		return chromedp.ByQuery, nil
	case gate.ByXPath:
		return chromedp.BySearch, nil
	default:
		return nil, fmt.Errorf("unknown locator strategy %q", strategy)
	}
}

// forwardCancel cancels the operation when parent ends; the returned func stops forwarding.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
