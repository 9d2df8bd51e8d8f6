// Package otel publishes authcore metrics through an OpenTelemetry Meter.
//
// Related authcore counters share one instrument and are told apart by an
// attribute: authcore.tokens.verified carries outcome=success|expired|invalid,
// authcore.logins carries outcome=success|invalid_credentials|rate_limited|inactive,
// and so on. Verify latency is published as cumulative bucket gauges keyed
// by le. A single callback reads authcore.Service.MetricsSnapshot on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate service state.
package otel
