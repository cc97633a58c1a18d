package gate

import (
	"context"
	"time"
)

// Driver launches browser sessions.
type Driver interface {
	// Launch starts one browser process. When a process was partially started
	// before the failure, the returned Session is non-nil and must still be
	// terminated by the caller.
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is one browser process with a single navigation context.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitUntilClickable(ctx context.Context, locator Locator, timeout time.Duration) (Element, error)
	CurrentURL(ctx context.Context) (string, error)
	CaptureSnapshot(ctx context.Context) (Snapshot, error)
	Terminate() error
}

// Element is an interactable node returned by WaitUntilClickable.
type Element interface {
	Click(ctx context.Context) error
}
