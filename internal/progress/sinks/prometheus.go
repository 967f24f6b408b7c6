package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"photomap/internal/progress"
)

// PrometheusSink exports crawl lifecycle metrics. It owns the collectors
// for crawl starts/completions and the streaming index size; the
// lower-level transport metrics live in the metrics package.
type PrometheusSink struct {
	crawlsStarted   prometheus.Counter
	crawlsCompleted *prometheus.CounterVec
	crawlRunning    prometheus.Gauge
	indexSize       prometheus.Gauge
	lastActivity    prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided
// registry; nil means the default registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		crawlsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photomap_crawls_started_total",
			Help: "Total index crawls that have started.",
		}),
		crawlsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photomap_crawls_completed_total",
			Help: "Total index crawls completed partitioned by result.",
		}, []string{"result"}),
		crawlRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photomap_crawl_running",
			Help: "Whether an index crawl is currently running.",
		}),
		indexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photomap_index_items",
			Help: "Items accumulated by the current crawl generation.",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photomap_crawl_last_activity_timestamp_seconds",
			Help: "Unix time of the most recent crawl progress event.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.crawlsStarted,
		s.crawlsCompleted,
		s.crawlRunning,
		s.indexSize,
		s.lastActivity,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent
// use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Kind {
		case progress.KindCrawlStart:
			s.crawlsStarted.Inc()
			s.crawlRunning.Set(1)
			s.indexSize.Set(0)
		case progress.KindItems:
			s.indexSize.Add(float64(len(evt.Items)))
		case progress.KindCrawlDone:
			s.crawlsCompleted.WithLabelValues("success").Inc()
			s.crawlRunning.Set(0)
		case progress.KindCrawlError:
			s.crawlsCompleted.WithLabelValues("error").Inc()
			s.crawlRunning.Set(0)
		}
		s.lastActivity.Set(float64(evt.TS.Unix()))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
