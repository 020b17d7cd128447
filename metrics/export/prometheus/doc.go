// Package prometheus renders goGuard engine counters in the Prometheus text
// exposition format.
//
// Counters are named goguard_*_total. The gate latency histogram,
// goguard_gate_latency_seconds, appears only when latency histograms are
// enabled.
//
// # What this package must NOT do
//
//   - Register anything in a global registry; callers mount Handler.
//   - Mutate engine state.
package prometheus
