package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"photomap/internal/atlas"
	"photomap/internal/config"
	"photomap/internal/index"
)

func testConfig() config.Config {
	return config.Config{
		Server:    config.ServerConfig{Port: 8080},
		Drive:     config.DriveConfig{BaseURL: "https://drive.test", TimeoutSeconds: 30},
		Store:     config.StoreConfig{Driver: "memory"},
		RateLimit: config.RateLimitConfig{PerSecond: 100, Burst: 100},
	}
}

func populatedIndex() *index.Index {
	ix := index.New()
	ix.Add([]atlas.GeoItem{
		{
			ID:        "p1",
			Position:  atlas.Position{Lat: 10, Lng: 20},
			Date:      20240704,
			Thumbnail: "data:image/jpeg;base64,QUJD",
			Name:      "beach.jpg",
			Tags:      []string{"ocean"},
		},
		{
			ID:       "p2",
			Position: atlas.Position{Lat: -30, Lng: 150},
			Date:     20230115,
			Name:     "reef.jpg",
		},
	}, []string{"trips"})
	ix.SetStatus("index complete")
	return ix
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(index.New(), testConfig(), nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzColdThenWarm(t *testing.T) {
	t.Parallel()

	ix := index.New()
	srv := NewServer(ix, testConfig(), nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ix.Add([]atlas.GeoItem{{ID: "a"}}, []string{""})
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestQueryTilesReturnsTileAndTally(t *testing.T) {
	t.Parallel()

	srv := NewServer(populatedIndex(), testConfig(), nil)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/query/tiles", tilesRequest{
		Viewport: atlas.Viewport{
			SW: atlas.Position{Lat: 9, Lng: 19},
			NE: atlas.Position{Lat: 11, Lng: 21},
		},
		PixelWidth: 600,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp tilesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tiles, 1)
	require.Equal(t, 1, resp.Tiles[0].Total)
	require.Equal(t, "p1", resp.Tiles[0].Items[0].ID)
	// The tally covers every indexed item, including the off-screen one.
	require.Len(t, resp.Tally, 2)
}

func TestQueryTilesRejectsBadRequests(t *testing.T) {
	t.Parallel()

	srv := NewServer(populatedIndex(), testConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/query/tiles", bytes.NewBufferString("{not json"))
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/query/tiles", tilesRequest{
		Viewport: atlas.Viewport{
			SW: atlas.Position{Lat: 9, Lng: 19},
			NE: atlas.Position{Lat: 11, Lng: 21},
		},
		PixelWidth: 0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/query/tiles", tilesRequest{
		Viewport: atlas.Viewport{
			SW: atlas.Position{Lat: 20, Lng: 19},
			NE: atlas.Position{Lat: 11, Lng: 21},
		},
		PixelWidth: 600,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryBounds(t *testing.T) {
	t.Parallel()

	srv := NewServer(populatedIndex(), testConfig(), nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/query/bounds", boundsRequest{
		DateFrom: 20240101, DateTo: 20241231,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp boundsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Bounds)
	require.Equal(t, 10.0, resp.Bounds.South)
	require.Equal(t, 20.0, resp.Bounds.West)

	// No items in range: null bounds.
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/query/bounds", boundsRequest{
		DateFrom: 19900101, DateTo: 19901231,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = boundsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Bounds)
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	srv := NewServer(populatedIndex(), testConfig(), nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "index complete", resp.Status)
	require.Equal(t, 2, resp.Items)
	require.False(t, resp.Building)
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{PerSecond: 1, Burst: 2}
	srv := NewServer(populatedIndex(), cfg, nil)

	var last int
	for i := 0; i < 3; i++ {
		rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/status", nil)
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)

	// Probes are not rate limited.
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
