// Package otel exposes goGuard engine counters as OpenTelemetry observable
// instruments. Callers own the MeterProvider and pass in a Meter.
//
// # What this package must NOT do
//
//   - Create or install a global MeterProvider.
//   - Mutate engine state.
package otel
