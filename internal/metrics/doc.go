// Package metrics exposes monitor outcomes to Prometheus.
package metrics
