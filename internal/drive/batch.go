package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"photomap/internal/atlas"
	"photomap/internal/metrics"
)

const (
	// MaxSubRequests is how many sub-requests are packed into one
	// batch call. The backend's hard cap is 20; staying under it
	// leaves headroom for the occasional oversized sub-request.
	MaxSubRequests = 18
	// MaxWritePayload is the largest document the batch write path
	// accepts. Bigger documents go through the chunked Uploader.
	MaxWritePayload = 4 << 20
)

// Batcher packs logical sub-requests into bounded batch calls, retries
// whole calls on backend throttling, and demultiplexes responses back
// to their originators by request ID.
type Batcher struct {
	requester atlas.Requester
	sleeper   atlas.Sleeper
	retry     atlas.RetryPolicy
	baseURL   string
	logger    *zap.Logger
}

// NewBatcher constructs a Batcher. A nil logger defaults to a no-op.
func NewBatcher(
	requester atlas.Requester,
	sleeper atlas.Sleeper,
	retry atlas.RetryPolicy,
	baseURL string,
	logger *zap.Logger,
) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{
		requester: requester,
		sleeper:   sleeper,
		retry:     retry,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// Execute runs one batch call and returns sub-responses keyed by
// sub-request ID. The entire call is retried with backoff while the
// backend reports it throttled; any other non-success outer status is
// fatal. Sub-response quirks (content redirects, base64 bodies claiming
// JSON) are repaired before return.
func (b *Batcher) Execute(ctx context.Context, subs []SubRequest) (map[string]SubResponse, error) {
	if len(subs) == 0 {
		return map[string]SubResponse{}, nil
	}
	if len(subs) > MaxSubRequests {
		return nil, fmt.Errorf("batch of %d exceeds limit %d", len(subs), MaxSubRequests)
	}

	payload, err := json.Marshal(batchEnvelope{Requests: subs})
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	for attempt := 0; ; attempt++ {
		body, status, err := b.post(ctx, payload)
		if err != nil {
			return nil, err
		}
		if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
			metrics.ThrottleEvents.WithLabelValues("batch").Inc()
			if !b.retry.ShouldRetry(attempt) {
				return nil, fmt.Errorf("batch call throttled after %d attempts", attempt+1)
			}
			delay := b.retry.Backoff(attempt)
			b.logger.Info("batch call throttled, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			if err := b.sleeper.Sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("batch call returned status %d", status)
		}

		var result batchPayload
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decode batch response: %w", err)
		}
		out := make(map[string]SubResponse, len(result.Responses))
		for _, sub := range result.Responses {
			repaired, err := b.repair(ctx, sub)
			if err != nil {
				return nil, err
			}
			out[sub.ID] = repaired
		}
		metrics.BatchCalls.Inc()
		return out, nil
	}
}

func (b *Batcher) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/batch", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.requester.Do(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("batch call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read batch response: %w", err)
	}
	return body, resp.StatusCode, nil
}
