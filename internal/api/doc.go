// Package api hosts the HTTP server, middleware, and handlers. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/resolve?url=... returning the resolution envelope.
//   - GET /api/apex and /api/apex-kazuma/bypass, older paths served by the
//     same handler.
package api
