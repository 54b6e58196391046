// Package prometheus provides Prometheus collectors for speakauth metrics.
//
// [NewPrometheusExporter] accepts an [speakauth.Engine] and exposes an [http.Handler]
// that renders all speakauth counters and histograms in Prometheus text exposition format.
// Counter names are prefixed speakauth_*_total; the single histogram is
// speakauth_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
