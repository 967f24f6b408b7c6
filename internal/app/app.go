// Package app initializes and holds the long-lived services of the
// index service, and supervises the crawl lifecycle: warm start from
// the local store, initial crawl, and periodic refresh.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"photomap/internal/clock/system"
	"photomap/internal/config"
	"photomap/internal/crawl"
	"photomap/internal/drive"
	"photomap/internal/index"
	"photomap/internal/progress"
	"photomap/internal/progress/sinks"
	"photomap/internal/store"
	"photomap/internal/thumb"
)

// App holds the shared, long-lived services of the index service. It is
// initialized once at startup and fails fast if any critical service
// cannot be constructed.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	store  store.DocumentStore
	index  *index.Index
	hub    *progress.Hub
}

// New creates and initializes an App from the configuration. A nil
// registerer uses the default Prometheus registry.
func New(cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	docStore, err := newDocumentStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	ix := index.New()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		_ = docStore.Close()
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewIndexSink(ix),
		sinks.NewLogSink(logger.Named("crawl")),
		promSink,
	)

	return &App{
		cfg:    cfg,
		logger: logger,
		store:  docStore,
		index:  ix,
		hub:    hub,
	}, nil
}

func newDocumentStore(cfg config.Config, logger *zap.Logger) (store.DocumentStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		logger.Info("using sqlite document store", zap.String("path", cfg.Store.Path))
		s, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return s, nil
	case "memory":
		logger.Info("using in-memory document store")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// Index returns the live query index the API serves from.
func (a *App) Index() *index.Index {
	return a.index
}

// Close flushes progress and releases held resources.
func (a *App) Close(ctx context.Context) {
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("progress hub close failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("document store close failed", zap.Error(err))
	}
}

// WarmStart loads the last saved root document into the index, so a
// restarted service answers queries before its first crawl finishes.
func (a *App) WarmStart(ctx context.Context) {
	doc, err := a.store.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Info("no saved document, starting cold")
		return
	}
	if err != nil {
		a.logger.Warn("warm start load failed", zap.Error(err))
		return
	}
	a.index.Add(doc.GeoItems, doc.Folders)
	a.index.SetStatus("serving saved index")
	a.logger.Info("warm start complete", zap.Int("items", len(doc.GeoItems)))
}

// RunCrawler crawls the remote store, optionally repeating on the
// configured refresh interval, until the context ends. Crawl failures
// are logged and retried on the next interval; they never bring the
// service down.
func (a *App) RunCrawler(ctx context.Context) {
	for {
		a.crawlOnce(ctx)
		interval := a.cfg.RefreshInterval()
		if interval <= 0 {
			return
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) crawlOnce(ctx context.Context) {
	engine := a.newEngine()
	a.hub.CrawlStarted()
	doc, err := engine.Run(ctx)
	a.hub.CrawlFinished(err)
	if err != nil {
		a.logger.Error("crawl failed", zap.Error(err))
		return
	}

	if err := a.store.Save(ctx, doc); err != nil {
		// The in-memory index is still fully usable; only the next
		// warm start loses out.
		a.logger.Warn("saving index document failed", zap.Error(err))
	}
	a.logger.Info("crawl complete", zap.Int("items", len(doc.GeoItems)))
}

func (a *App) newEngine() *crawl.Engine {
	requester := drive.NewHTTPRequester(a.cfg.Drive.AccessToken, a.cfg.DriveTimeout())
	sleeper := system.NewSleeper()
	retry := drive.FixedDelayPolicy{
		Delay:       a.cfg.RetryDelay(),
		MaxAttempts: a.cfg.Drive.MaxRetries,
	}
	batcher := drive.NewBatcher(requester, sleeper, retry, a.cfg.Drive.BaseURL, a.logger.Named("batch"))
	uploader := drive.NewUploader(requester, a.cfg.Drive.BaseURL, a.logger.Named("upload"))
	resolver := thumb.New(requester, sleeper, a.logger.Named("thumb"))
	return crawl.New(
		batcher,
		uploader,
		resolver,
		system.New(),
		sleeper,
		a.hub,
		crawl.Config{ThrottleDelay: a.cfg.ThrottleDelay()},
		a.logger.Named("crawl"),
	)
}
