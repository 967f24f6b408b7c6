// Package api hosts the HTTP server, middleware, and REST handlers for
// map clients. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/query/tiles for viewport tile queries.
//   - POST /v1/query/bounds for date-range bounds queries.
//   - GET /v1/status for crawl progress and index size.
package api
