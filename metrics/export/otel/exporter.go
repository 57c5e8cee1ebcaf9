package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessionsync"
	"github.com/MrEthical07/sessionsync/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type observedHistogram struct {
	id      sessionsync.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter feeds synchronizer metrics to observable instruments on every collection.
type OTelExporter struct {
	source       internaldefs.Source
	registration metric.Registration
	families     map[string]metric.Int64Observable
	histograms   []observedHistogram
}

// NewOTelExporter registers instruments on meter that read from s.
func NewOTelExporter(meter metric.Meter, s *sessionsync.Synchronizer) (*OTelExporter, error) {
	if s == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, s)
}

// NewOTelExporterFromSource registers instruments on meter that read from source.
// The navigation family carries a route attribute per target route.
func NewOTelExporterFromSource(meter metric.Meter, source internaldefs.Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	defs := internaldefs.FamilyDefs()
	exporter := &OTelExporter{
		source:   source,
		families: make(map[string]metric.Int64Observable, len(defs)),
	}
	observables := make([]metric.Observable, 0, len(defs)+len(internaldefs.HistogramDefs)*9)

	for _, def := range defs {
		ins, err := newFamilyInstrument(meter, def)
		if err != nil {
			return nil, err
		}
		exporter.families[def.Name] = ins
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		exporter.histograms = append(exporter.histograms, h)
	}

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	exporter.registration = registration
	return exporter, nil
}

func newFamilyInstrument(meter metric.Meter, def internaldefs.FamilyDef) (metric.Int64Observable, error) {
	if def.Kind == internaldefs.KindGauge {
		ins, err := meter.Int64ObservableGauge(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable gauge %s: %w", def.Name, err)
		}
		return ins, nil
	}
	ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
	if err != nil {
		return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
	}
	return ins, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, family := range internaldefs.Gather(e.source, snapshot) {
		ins, ok := e.families[family.Name]
		if !ok {
			continue
		}
		for _, sample := range family.Samples {
			if len(sample.Labels) == 0 {
				observer.ObserveInt64(ins, int64(sample.Value))
				continue
			}
			attrs := make([]attribute.KeyValue, 0, len(sample.Labels))
			for _, l := range sample.Labels {
				attrs = append(attrs, attribute.String(l.Key, l.Value))
			}
			observer.ObserveInt64(ins, int64(sample.Value), metric.WithAttributes(attrs...))
		}
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(raw)
		for i := range cumulative {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	return nil
}

// Close unregisters the callback. The instruments stay registered with the meter.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
