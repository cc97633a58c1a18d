// Command resolver hosts the paste and link-gate resolver.
//
// Architecture overview:
//   - HTTP API: internal/api serves /v1/resolve plus the /api/apex and /api/apex-kazuma/bypass
//     compatibility routes. Every response is the same JSON envelope built by resolver.Assemble.
//   - Dispatch: internal/resolver.Service validates the URL, picks the first registry row whose
//     domain fragment matches, and hands the call to that adapter under a per-kind deadline.
//   - Static adapters: internal/adapters/static rewrite the URL to a raw endpoint, wait on the
//     per-domain rate limiter, fetch through colly, and extract raw, HTML or JSON content.
//   - Gate adapters: internal/gate drives a fresh chromedp browser per call through an ordered
//     click sequence, bounded by a session semaphore. Failed steps capture an HTML and PNG
//     snapshot to the artifact store (memory, local disk or GCS).
//   - Side effects: structural failures publish an alert (Pub/Sub or an in-memory ring) and
//     every outcome is appended to the optional Postgres journal.
//
// Quick checklist:
//   - Configure env vars: RESOLVER_SERVER_PORT or PORT, RESOLVER_HEADLESS_EXEC_PATH,
//     RESOLVER_ARTIFACTS_BACKEND, RESOLVER_ALERTS_PROJECT_ID, RESOLVER_JOURNAL_DSN.
//   - Run locally: go run ./cmd/resolver serve --config config.yaml
//   - One-shot: go run ./cmd/resolver resolve https://pastebin.com/abc123
package main
