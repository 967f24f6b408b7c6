package drive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// repair fixes two backend quirks in batch sub-responses:
//
//  1. Content-fetch sub-requests come back as a redirect instead of
//     the bytes; the Location is followed with a direct request and
//     the fetched body substituted.
//  2. Some sub-responses claim a JSON content type but carry an opaque
//     base64 string body. If the body is a JSON string that decodes as
//     base64, the decoded bytes are substituted. This is a heuristic:
//     a response that is legitimately a base64-decodable string would
//     be mis-decoded. No fully general fix exists.
func (b *Batcher) repair(ctx context.Context, sub SubResponse) (SubResponse, error) {
	if sub.Status >= 300 && sub.Status < 400 {
		location := headerValue(sub.Headers, "Location")
		if location != "" {
			body, err := b.fetchDirect(ctx, location)
			if err != nil {
				return sub, fmt.Errorf("follow batch redirect for %s: %w", sub.ID, err)
			}
			sub.Status = http.StatusOK
			sub.Body = body
			return sub, nil
		}
	}

	if claimsJSON(sub.Headers) {
		if decoded, ok := decodeBase64String(sub.Body); ok {
			b.logger.Debug("decoded base64 batch body claiming JSON", zap.String("sub_id", sub.ID))
			sub.Body = decoded
		}
	}
	return sub, nil
}

func (b *Batcher) fetchDirect(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.requester.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("redirect target returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read redirect body: %w", err)
	}
	return body, nil
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func claimsJSON(headers map[string]string) bool {
	return strings.Contains(strings.ToLower(headerValue(headers, "Content-Type")), "application/json")
}

// decodeBase64String returns the decoded bytes when body is a JSON
// string whose content parses as standard base64.
func decodeBase64String(body json.RawMessage) (json.RawMessage, bool) {
	var s string
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return decoded, true
}
