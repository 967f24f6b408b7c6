// Package progress provides the event primitives, non-blocking hub, and
// reporter interface the crawl uses to publish its progress. Events are
// batched on a background goroutine and fanned out to pluggable sinks
// such as the live query index, structured logs, or Prometheus metrics.
package progress
