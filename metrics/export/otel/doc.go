// Package otel binds sessionsync metrics to OpenTelemetry observable instruments.
//
// [NewOTelExporter] creates one instrument per family (counters as
// Int64ObservableCounter, the live-mounts family as Int64ObservableGauge) plus one
// gauge per histogram bucket. A single callback fills them; navigation samples carry a
// "route" attribute. Callers own the MeterProvider.
package otel
