// Package metrics exposes Prometheus collectors for the indexer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchCalls counts successful batch calls to the remote store.
	BatchCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photomap_batch_calls_total",
		Help: "Total number of successful remote batch calls.",
	})

	// ThrottleEvents counts backend throttling signals by source
	// (batch, listing, document, thumbnail).
	ThrottleEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photomap_throttle_events_total",
		Help: "Total number of backend throttling signals, labeled by source.",
	}, []string{"source"})

	// CrawlBytes counts bytes of media metadata processed by the
	// crawl, used for ETA reporting and capacity planning.
	CrawlBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photomap_crawl_bytes_total",
		Help: "Total bytes of remote content processed by the crawl.",
	})

	// CacheHits counts folders served entirely from a valid cache
	// document (no enumeration needed).
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photomap_cache_folder_hits_total",
		Help: "Folders indexed from a valid cache document without enumeration.",
	})

	// ItemsIndexed counts geotagged items added to the index.
	ItemsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photomap_items_indexed_total",
		Help: "Total geotagged items added to the index.",
	})

	// Thumbnails counts thumbnail resolutions by outcome
	// (resolved, failed, reused).
	Thumbnails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photomap_thumbnails_total",
		Help: "Thumbnail resolutions, labeled by outcome.",
	}, []string{"outcome"})

	// QueryDuration observes tile/bounds query latency.
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "photomap_query_duration_seconds",
		Help:    "Latency of spatial queries, labeled by kind.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}, []string{"kind"})
)
