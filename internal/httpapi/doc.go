// Package httpapi serves the daemon's local status endpoint: /healthz,
// /status, /metrics, the current /heights.json and /chart.png, and
// optionally /debug/pprof when bound to loopback.
package httpapi
