// Package telemetry wraps OpenTelemetry SDK setup for OTLP trace export.
// When telemetry is disabled, no exporters are created and the global
// providers remain noop.
package telemetry
