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
)

// ChunkSize is the fixed upload chunk: 10 fragments of 320 KiB, the
// granularity the backend's upload sessions require.
const ChunkSize = 10 * 320 * 1024

// UploadProgressFunc reports (bytesSent, total) after each chunk.
type UploadProgressFunc func(sent, total int64)

// Uploader is the sequential chunked fallback for cache documents too
// large for the batch write path.
type Uploader struct {
	requester atlas.Requester
	baseURL   string
	logger    *zap.Logger
}

// NewUploader constructs an Uploader. A nil logger defaults to a no-op.
func NewUploader(requester atlas.Requester, baseURL string, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{requester: requester, baseURL: baseURL, logger: logger}
}

// Upload creates an upload session for docPath and PUTs data in
// order-dependent fixed-size chunks, each carrying its byte range and
// the total size. A chunk failure is fatal: the document write for
// that folder does not survive a partial session.
func (u *Uploader) Upload(ctx context.Context, docPath string, data []byte, progress UploadProgressFunc) error {
	if progress == nil {
		progress = func(int64, int64) {}
	}

	sessionURL, err := u.createSession(ctx, docPath)
	if err != nil {
		return err
	}

	total := int64(len(data))
	for sent := int64(0); sent < total; {
		end := sent + ChunkSize
		if end > total {
			end = total
		}
		if err := u.putChunk(ctx, sessionURL, data[sent:end], sent, end-1, total); err != nil {
			return fmt.Errorf("upload chunk %d-%d: %w", sent, end-1, err)
		}
		sent = end
		progress(sent, total)
	}

	u.logger.Debug("chunked upload complete",
		zap.String("doc", docPath),
		zap.Int64("bytes", total),
	)
	return nil
}

func (u *Uploader) createSession(ctx context.Context, docPath string) (string, error) {
	url := u.baseURL + docPath + ":/createUploadSession"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	resp, err := u.requester.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create upload session: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create upload session: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read session response: %w", err)
	}
	var session uploadSession
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	if session.UploadURL == "" {
		return "", fmt.Errorf("upload session missing url")
	}
	return session.UploadURL, nil
}

func (u *Uploader) putChunk(ctx context.Context, url string, chunk []byte, first, last, total int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(chunk))
	if err != nil {
		return fmt.Errorf("build chunk request: %w", err)
	}
	req.ContentLength = int64(len(chunk))
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", first, last, total))

	resp, err := u.requester.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
