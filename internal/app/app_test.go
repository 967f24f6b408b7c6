package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"photomap/internal/atlas"
	"photomap/internal/config"
	"photomap/internal/store"
)

func testConfig() config.Config {
	return config.Config{
		Server:    config.ServerConfig{Port: 8080},
		Drive:     config.DriveConfig{BaseURL: "https://drive.test", TimeoutSeconds: 30},
		Store:     config.StoreConfig{Driver: "memory"},
		RateLimit: config.RateLimitConfig{PerSecond: 10, Burst: 10},
	}
}

func TestNewAppRejectsUnknownStoreDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Store.Driver = "postgres"
	_, err := New(cfg, nil, prometheus.NewRegistry())
	require.ErrorContains(t, err, "unknown store driver")
}

func TestWarmStartLoadsSavedDocument(t *testing.T) {
	t.Parallel()

	a, err := New(testConfig(), nil, prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close(context.Background())

	doc := &atlas.CacheDocument{
		SchemaVersion: atlas.SchemaVersion,
		FolderID:      "root",
		Folders:       []string{""},
		GeoItems:      []atlas.GeoItem{{ID: "p1"}},
	}
	require.NoError(t, a.store.Save(context.Background(), doc))

	a.WarmStart(context.Background())
	items, _ := a.Index().Snapshot()
	require.Len(t, items, 1)
	require.Equal(t, "p1", items[0].ID)

	status, _, _ := a.Index().Status()
	require.Equal(t, "serving saved index", status)
}

func TestWarmStartColdIsHarmless(t *testing.T) {
	t.Parallel()

	a, err := New(testConfig(), nil, prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close(context.Background())

	a.WarmStart(context.Background())
	items, _ := a.Index().Snapshot()
	require.Empty(t, items)
}

func TestCrawlFailureKeepsServiceAlive(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Drive.BaseURL = "http://127.0.0.1:1"
	cfg.Drive.TimeoutSeconds = 1
	cfg.Drive.MaxRetries = 1
	a, err := New(cfg, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close(context.Background())

	// The unreachable backend makes the crawl fail fast; RunCrawler
	// must return (no refresh configured) instead of panicking.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.RunCrawler(ctx)

	_, err = a.store.Load(context.Background())
	require.ErrorIs(t, err, store.ErrNotFound)
}
