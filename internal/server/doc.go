// Package server is adbridge's HTTP listener.
//
// Routes:
//
//	GET  /                   liveness check, always 200
//	GET  /oauth/callback     provider redirect, rate limited per client IP
//	POST /telegram/webhook   Telegram updates (webhook mode only)
//	GET  /metrics            Prometheus metrics (when enabled)
//
// Callback and webhook handlers run their work on the shared scheduler, so
// the listener keeps accepting requests while reports are being fetched.
//
// On shutdown the server stops accepting connections and waits up to the
// configured grace period for in-flight requests.
package server
