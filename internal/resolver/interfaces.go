package resolver

import (
	"context"
	"io"
	"time"
)

// Adapter resolves a URL for one service. Static and dynamic adapters are
// treated the same way by the Service.
type Adapter interface {
	ID() string
	Resolve(ctx context.Context, req Request) (Result, error)
}

// KindReporter is implemented by adapters that only serve one registry kind.
// NewService rejects rows whose kind disagrees with the adapter.
type KindReporter interface {
	Kind() Kind
}

// Fetcher performs a single HTTP GET and returns the body of a 2xx response.
// Non-2xx responses are reported as *HTTPStatusError.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// RateLimiter blocks until an outbound request to url may proceed.
type RateLimiter interface {
	Wait(ctx context.Context, url string) error
}

// BlobStore writes diagnostic artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes structural failure alerts to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Journal appends resolution outcomes to an audit trail.
type Journal interface {
	Record(ctx context.Context, outcome Outcome) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces request IDs.
type IDGenerator interface {
	NewID() (string, error)
}
