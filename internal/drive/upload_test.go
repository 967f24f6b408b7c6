package drive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func sessionResponse(url string) *http.Response {
	return jsonResponse(200, uploadSession{UploadURL: url})
}

func emptyResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}
}

func TestUploadChunksSequentially(t *testing.T) {
	t.Parallel()

	data := make([]byte, ChunkSize+ChunkSize/2)
	for i := range data {
		data[i] = byte(i)
	}
	req := &fakeRequester{responses: []*http.Response{
		sessionResponse("https://upload.example/session-1"),
		emptyResponse(202),
		emptyResponse(201),
	}}
	u := NewUploader(req, "https://api.example", nil)

	var reports [][2]int64
	err := u.Upload(context.Background(), "/docs/map-cache-pictures", data, func(sent, total int64) {
		reports = append(reports, [2]int64{sent, total})
	})
	require.NoError(t, err)
	require.Len(t, req.requests, 3)

	require.Equal(t, http.MethodPost, req.requests[0].Method)
	require.Contains(t, req.requests[0].URL.String(), "createUploadSession")

	first := req.requests[1]
	require.Equal(t, http.MethodPut, first.Method)
	require.Equal(t, "https://upload.example/session-1", first.URL.String())
	require.Equal(t,
		"bytes 0-"+strconv.Itoa(ChunkSize-1)+"/"+strconv.Itoa(len(data)),
		first.Header.Get("Content-Range"))
	require.Len(t, req.bodies[1], ChunkSize)
	require.Len(t, req.bodies[2], ChunkSize/2)

	require.Equal(t, [][2]int64{
		{ChunkSize, int64(len(data))},
		{int64(len(data)), int64(len(data))},
	}, reports)
}

func TestUploadChunkFailureIsFatal(t *testing.T) {
	t.Parallel()

	req := &fakeRequester{responses: []*http.Response{
		sessionResponse("https://upload.example/session-2"),
		emptyResponse(500),
	}}
	u := NewUploader(req, "https://api.example", nil)

	err := u.Upload(context.Background(), "/docs/map-cache", make([]byte, ChunkSize*2), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "upload chunk")
	require.Len(t, req.requests, 2)
}

func TestUploadSessionFailure(t *testing.T) {
	t.Parallel()

	req := &fakeRequester{errs: []error{errors.New("network down")}}
	u := NewUploader(req, "https://api.example", nil)

	err := u.Upload(context.Background(), "/docs/map-cache", []byte("x"), nil)
	require.Error(t, err)
}
