// Package prometheus publishes authcore metrics through
// github.com/prometheus/client_golang.
//
// [Collector] is a prometheus.Collector that reads
// authcore.Service.MetricsSnapshot on every scrape. Counters are named
// authcore_*_total; the single histogram is
// authcore_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register anything in the global Prometheus registry. Callers either
//     register the Collector themselves or mount [Handler].
//   - Mutate service state.
package prometheus
