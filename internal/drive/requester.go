package drive

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPRequester is the authorized HTTP primitive backing every remote
// call: it attaches the bearer credential so the rest of the client
// never sees it.
type HTTPRequester struct {
	client *http.Client
	token  string
}

// NewHTTPRequester builds a requester with the given per-call timeout.
// An empty token sends unauthenticated requests, which some test
// backends accept.
func NewHTTPRequester(token string, timeout time.Duration) *HTTPRequester {
	return &HTTPRequester{
		client: &http.Client{Timeout: timeout},
		token:  token,
	}
}

// Do implements atlas.Requester.
func (r *HTTPRequester) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote request: %w", err)
	}
	return resp, nil
}
