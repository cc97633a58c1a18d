// Package collyfetcher implements resolver.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/paste-resolver/internal/metrics"
	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultMaxBodySize = 2 << 20
)

// Config controls collector behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int
	Headers     http.Header
}

// Fetcher performs single GET requests through a colly collector. Each call
// clones the base collector so requests share the transport but no state.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	status int
	body   []byte
	err    error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Get fetches url and returns the response body. Non-2xx responses yield a
// *resolver.HTTPStatusError and bodies over MaxBodySize yield
// resolver.ErrBodyTooLarge.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	collector, out := f.buildCollector()

	done := make(chan fetchResult, 1)
	go func() {
		visitErr := collector.Visit(url)
		res := *out
		if visitErr != nil && res.err == nil {
			res.err = visitErr
		}
		done <- res
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("colly visit failed: %w", res.err)
		}
		if res.status < 200 || res.status > 299 {
			return nil, &resolver.HTTPStatusError{URL: url, StatusCode: res.status}
		}
		if len(res.body) > f.cfg.MaxBodySize {
			return nil, fmt.Errorf("%w: %s is larger than %d bytes", resolver.ErrBodyTooLarge, url, f.cfg.MaxBodySize)
		}
		metrics.ObserveFetch(metrics.SanitizeSite(url), len(res.body))
		return res.body, nil
	}
}

func (f *Fetcher) buildCollector() (*colly.Collector, *fetchResult) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	// One byte over the cap tells a full body from a truncated one.
	collector.MaxBodySize = f.cfg.MaxBodySize + 1
	collector.SetRequestTimeout(f.cfg.Timeout)

	out := &fetchResult{}
	f.configureCollectorHooks(collector, out)
	return collector, out
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, out *fetchResult) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range f.cfg.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		out.status = r.StatusCode
		out.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			out.status = r.StatusCode
		}
		out.err = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
