// Package prometheus renders sessionsync metrics in Prometheus text exposition format.
//
// Counters are prefixed sessionsync_*_total. Navigations are one family split by a
// route label, sessionsync_live_mounts is a gauge over the synchronizer's tracked
// mounts, and the audit dispatcher contributes delivered and dropped totals. The single
// histogram is sessionsync_bootstrap_latency_seconds. Nothing is registered globally;
// callers mount [PrometheusExporter.Handler] wherever they serve metrics.
package prometheus
