// Package status serves the progress of the running command over HTTP.
//
// Routes:
//
//	GET /healthz, /livez    liveness
//	GET /version            build version
//	GET /metrics            Prometheus metrics
//	GET /api/progress       current progress snapshot
//	GET /api/runs           recent runs from the history database
//	GET /api/runs/{id}      a single run
//	GET /ws/progress        websocket stream of progress snapshots
//
// Requests are logged in W3C Extended Log Format and counted per route.
// JSON responses are gzip-compressed for clients that accept it.
package status
