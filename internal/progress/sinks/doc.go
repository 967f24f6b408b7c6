// Package sinks provides progress.Sink implementations: structured
// logging, Prometheus crawl metrics, and the live query index feed.
package sinks
