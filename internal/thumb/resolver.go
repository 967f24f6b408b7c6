// Package thumb resolves remote thumbnail URLs into inline data URIs
// with an adaptive concurrency controller that backs off under backend
// rate limiting.
package thumb

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"photomap/internal/atlas"
)

const (
	maxConcurrent = 6
	throttleDelay = 10 * time.Second
	// maxThumbnailBytes caps a single inlined thumbnail; anything
	// bigger keeps its remote URL.
	maxThumbnailBytes = 1 << 20
)

// Job pairs a thumbnail URL with the item to update in place.
type Job struct {
	URL  string
	Item *atlas.GeoItem
}

// ProgressFunc is invoked on every resolver state change.
type ProgressFunc func(resolved, total int, throttled bool)

// controller holds the adaptive fetch schedule. Its state is always
// either (limit, 0) for 1 <= limit <= maxConcurrent, or (1, throttleDelay).
type controller struct {
	limit int
	delay time.Duration
}

func newController() controller {
	return controller{limit: 1}
}

// onSuccess first clears an active delay, then grows concurrency.
func (c *controller) onSuccess() {
	switch {
	case c.delay > 0:
		c.delay = 0
	case c.limit < maxConcurrent:
		c.limit++
	}
}

// onRateLimit first shrinks concurrency, then falls back to a fixed
// inter-fetch delay once already serialized.
func (c *controller) onRateLimit() {
	if c.limit > 1 {
		c.limit = 1
		return
	}
	c.delay = throttleDelay
}

func (c controller) throttled() bool {
	return c.delay > 0
}

// Resolver fetches thumbnails through the authorized requester.
type Resolver struct {
	requester atlas.Requester
	sleeper   atlas.Sleeper
	logger    *zap.Logger
}

// New constructs a Resolver. A nil logger defaults to a no-op.
func New(requester atlas.Requester, sleeper atlas.Sleeper, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{requester: requester, sleeper: sleeper, logger: logger}
}

type fetchOutcome int

const (
	fetchOK fetchOutcome = iota
	fetchRateLimited
	fetchFailed
)

type fetchResult struct {
	job     int
	outcome fetchOutcome
	dataURI string
	err     error
}

// Resolve fetches every job's thumbnail, updating items in place. Up
// to the controller's limit of fetches run concurrently; a replacement
// is launched as soon as the earliest in-flight fetch finishes, so the
// pipeline stays saturated. Rate-limited fetches are requeued; other
// failures are logged and the item keeps its remote URL. Resolve only
// returns an error when the context ends.
func (r *Resolver) Resolve(ctx context.Context, jobs []Job, progress ProgressFunc) error {
	if progress == nil {
		progress = func(int, int, bool) {}
	}
	total := len(jobs)
	if total == 0 {
		return nil
	}

	ctrl := newController()
	pending := make([]int, 0, total)
	for i := range jobs {
		pending = append(pending, i)
	}

	results := make(chan fetchResult)
	inFlight := 0
	resolved := 0
	completed := 0

	launch := func(idx int) {
		inFlight++
		go func() {
			res := r.fetch(ctx, idx, jobs[idx])
			select {
			case results <- res:
			case <-ctx.Done():
			}
		}()
	}

	for completed < total {
		for inFlight < ctrl.limit && len(pending) > 0 {
			if ctrl.throttled() {
				if err := r.sleeper.Sleep(ctx, ctrl.delay); err != nil {
					return err
				}
			}
			idx := pending[0]
			pending = pending[1:]
			launch(idx)
		}

		select {
		case res := <-results:
			inFlight--
			switch res.outcome {
			case fetchOK:
				jobs[res.job].Item.Thumbnail = res.dataURI
				resolved++
				completed++
				ctrl.onSuccess()
			case fetchRateLimited:
				pending = append(pending, res.job)
				ctrl.onRateLimit()
			case fetchFailed:
				completed++
				r.logger.Warn("thumbnail fetch failed",
					zap.String("item_id", jobs[res.job].Item.ID),
					zap.Error(res.err),
				)
			}
			progress(resolved, total, ctrl.throttled())
		case <-ctx.Done():
			return fmt.Errorf("thumbnail resolve: %w", ctx.Err())
		}
	}
	return nil
}

func (r *Resolver) fetch(ctx context.Context, idx int, job Job) fetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return fetchResult{job: idx, outcome: fetchFailed, err: fmt.Errorf("build request: %w", err)}
	}
	resp, err := r.requester.Do(ctx, req)
	if err != nil {
		return fetchResult{job: idx, outcome: fetchFailed, err: fmt.Errorf("fetch thumbnail: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fetchResult{job: idx, outcome: fetchRateLimited}
	}
	if resp.StatusCode != http.StatusOK {
		return fetchResult{job: idx, outcome: fetchFailed, err: fmt.Errorf("thumbnail status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes+1))
	if err != nil {
		return fetchResult{job: idx, outcome: fetchFailed, err: fmt.Errorf("read thumbnail: %w", err)}
	}
	if len(body) > maxThumbnailBytes {
		return fetchResult{job: idx, outcome: fetchFailed, err: fmt.Errorf("thumbnail exceeds %d bytes", maxThumbnailBytes)}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	uri := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(body)
	return fetchResult{job: idx, outcome: fetchOK, dataURI: uri}
}
