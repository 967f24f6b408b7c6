package atlas

import (
	"context"
	"net/http"
	"time"
)

// Requester is the already-authorized HTTP primitive supplied by the
// credential provider. Token acquisition and refresh happen behind it;
// the indexing core never sees credentials.
type Requester interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Clock returns the current time (swappable in tests).
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for a duration or until the context ends. The crawl
// engine routes every backoff through it so tests run instantly.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RetryPolicy decides whether and when a throttled call is retried.
// Backend throttling is a scheduling event, not an error, so the
// production policy retries without bound; tests swap in a capped one.
type RetryPolicy interface {
	// ShouldRetry reports whether attempt (0-based) may be retried.
	ShouldRetry(attempt int) bool
	// Backoff returns the wait before the given attempt.
	Backoff(attempt int) time.Duration
}

// ProgressSink receives crawl progress: human-readable status lines
// and incremental batches of newly-resolved items, enabling rendering
// before the crawl completes. Each item batch carries the folder-path
// table its FolderIndex values refer to; consumers re-base the indices
// into their own table. Implementations must not block.
type ProgressSink interface {
	Status(message string)
	Items(batch []GeoItem, folders []string)
}

// NopProgress discards all progress notifications.
type NopProgress struct{}

// Status implements ProgressSink.
func (NopProgress) Status(string) {}

// Items implements ProgressSink.
func (NopProgress) Items([]GeoItem, []string) {}
