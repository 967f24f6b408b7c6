// Package main hosts the photomap service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, status, and
//     the tile/bounds query endpoints. Queries are answered from an
//     in-memory index snapshot; they never touch the remote store.
//   - Crawl: internal/crawl.Engine walks the remote photo store with
//     batched requests, validating per-folder cache documents so repeat
//     runs skip unchanged subtrees entirely. Finished folders stream
//     their items through the progress hub into the live index.
//   - Thumbnails: internal/thumb.Resolver inlines thumbnails with an
//     adaptive concurrency controller that backs off on rate limiting.
//   - Persistence: per-folder cache documents live next to the photos in
//     the remote store; the assembled root document is also saved to a
//     local SQLite file so restarts warm-start before the first crawl.
//   - Configuration & plumbing: Viper populates config from env/files
//     (PHOTOMAP_ prefix); zap provides structured logging; Prometheus
//     metrics are exported on /metrics.
//
// Operational notes:
//   - Concurrency model: the crawl is a sequential state machine over
//     batched reads; only thumbnail fetches fan out, bounded by the
//     adaptive controller. Shutdown is coordinated via context
//     cancellation from main.
//   - Throttling: backend 429/503 signals pause the crawl rather than
//     failing it; pauses surface in /v1/status and the logs.
//   - Run locally: go run ./cmd/photomap -config config.yaml (or rely
//     solely on PHOTOMAP_* env overrides).
package main
