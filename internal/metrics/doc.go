// Package metrics exposes Prometheus instrumentation for the gateway,
// workflow runs, LLM calls, and usage metering.
package metrics
