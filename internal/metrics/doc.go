// Package metrics exposes Prometheus metrics for Apply cycles and component
// transitions, plus an in-memory Summary of the same totals.
package metrics
