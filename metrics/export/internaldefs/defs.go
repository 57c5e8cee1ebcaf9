package internaldefs

import (
	"github.com/MrEthical07/sessionsync"
)

// Source is everything an exporter reads from a synchronizer on each scrape.
type Source interface {
	MetricsSnapshot() sessionsync.MetricsSnapshot
	AuditDropped() uint64
	AuditDelivered() uint64
	LiveMounts() int
	Routes() sessionsync.Routes
}

// Kind is the exposition type of a family.
type Kind uint8

const (
	KindCounter Kind = iota
	KindGauge
)

// RouteLabel is the label key carried by per-route navigation samples.
const RouteLabel = "route"

// Label is one key/value pair on a sample.
type Label struct {
	Key   string
	Value string
}

// Sample is one series of a family.
type Sample struct {
	Labels []Label
	Value  uint64
}

// FamilyDef names one exported scalar family.
type FamilyDef struct {
	Name string
	Help string
	Kind Kind
}

// Family is a FamilyDef with the samples gathered for one scrape.
type Family struct {
	FamilyDef
	Samples []Sample
}

type counterDef struct {
	id sessionsync.MetricID
	FamilyDef
}

func counter(id sessionsync.MetricID, name, help string) counterDef {
	return counterDef{id: id, FamilyDef: FamilyDef{Name: name, Help: help, Kind: KindCounter}}
}

// Unlabeled counters, in exposition order. The two navigation counters are exported
// as one family split by route and are therefore absent here.
var counterDefs = []counterDef{
	counter(sessionsync.MetricMount, "sessionsync_mount_total", "Mounted scopes."),
	counter(sessionsync.MetricUnmount, "sessionsync_unmount_total", "Unmounted scopes."),
	counter(sessionsync.MetricBootstrapCommitted, "sessionsync_bootstrap_committed_total", "Bootstrap results committed to the store."),
	counter(sessionsync.MetricBootstrapSuperseded, "sessionsync_bootstrap_superseded_total", "Bootstrap results discarded because the listener committed first."),
	counter(sessionsync.MetricBootstrapFailure, "sessionsync_bootstrap_failure_total", "Bootstrap fetches that failed and resolved as signed out."),
	counter(sessionsync.MetricSubscribeFailure, "sessionsync_subscribe_failure_total", "Failed auth stream subscribe attempts."),
	counter(sessionsync.MetricListenerEvent, "sessionsync_listener_event_total", "Auth stream events received."),
	counter(sessionsync.MetricMalformedEvent, "sessionsync_malformed_event_total", "Auth stream events treated as signed out because they were unusable."),
	counter(sessionsync.MetricStaleWriteSuppressed, "sessionsync_stale_write_suppressed_total", "Writes suppressed after unmount."),
	counter(sessionsync.MetricNavigationFailure, "sessionsync_navigation_failure_total", "Navigator calls that returned an error."),
	counter(sessionsync.MetricSubscriptionReleased, "sessionsync_subscription_released_total", "Auth stream subscriptions released on unmount."),
	counter(sessionsync.MetricStreamClosed, "sessionsync_stream_closed_total", "Auth streams closed by the provider."),
	counter(sessionsync.MetricStreamUnavailable, "sessionsync_stream_unavailable_total", "Mounts whose auth stream subscribe gave up."),
}

var (
	navigationsDef = FamilyDef{
		Name: "sessionsync_navigations_total",
		Help: "Category transitions, by target route.",
		Kind: KindCounter,
	}
	liveMountsDef = FamilyDef{
		Name: "sessionsync_live_mounts",
		Help: "Mounts that have not been torn down.",
		Kind: KindGauge,
	}
	auditDeliveredDef = FamilyDef{
		Name: "sessionsync_audit_delivered_total",
		Help: "Audit events handed to the sink.",
		Kind: KindCounter,
	}
	auditDroppedDef = FamilyDef{
		Name: "sessionsync_audit_dropped_total",
		Help: "Dropped audit events due to dispatcher backpressure.",
		Kind: KindCounter,
	}
)

// FamilyDefs lists every scalar family in exposition order. The set is static, so
// exporters can create instruments once and fill them from Gather.
func FamilyDefs() []FamilyDef {
	out := make([]FamilyDef, 0, len(counterDefs)+4)
	for _, def := range counterDefs {
		out = append(out, def.FamilyDef)
	}
	return append(out, navigationsDef, liveMountsDef, auditDeliveredDef, auditDroppedDef)
}

// Gather reads src once and returns the scalar families in FamilyDefs order.
// Counters are omitted when the snapshot is empty, which is how a synchronizer with
// metrics disabled reports.
func Gather(src Source, snapshot sessionsync.MetricsSnapshot) []Family {
	out := make([]Family, 0, len(counterDefs)+4)
	if len(snapshot.Counters) > 0 {
		for _, def := range counterDefs {
			out = append(out, Family{
				FamilyDef: def.FamilyDef,
				Samples:   []Sample{{Value: snapshot.Counters[def.id]}},
			})
		}

		routes := src.Routes()
		out = append(out, Family{
			FamilyDef: navigationsDef,
			Samples: []Sample{
				routeSample(routes.AuthenticatedEntry, snapshot.Counters[sessionsync.MetricNavigateAuthenticated]),
				routeSample(routes.SignInEntry, snapshot.Counters[sessionsync.MetricNavigateSignIn]),
			},
		})
	}

	out = append(out,
		Family{FamilyDef: liveMountsDef, Samples: []Sample{{Value: uint64(max(src.LiveMounts(), 0))}}},
		Family{FamilyDef: auditDeliveredDef, Samples: []Sample{{Value: src.AuditDelivered()}}},
		Family{FamilyDef: auditDroppedDef, Samples: []Sample{{Value: src.AuditDropped()}}},
	)
	return out
}

func routeSample(route sessionsync.Route, value uint64) Sample {
	return Sample{Labels: []Label{{Key: RouteLabel, Value: string(route)}}, Value: value}
}

// HistogramDef maps a histogram to its exported name.
type HistogramDef struct {
	ID   sessionsync.MetricID
	Name string
	Help string
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessionsync.MetricBootstrapLatency, Name: "sessionsync_bootstrap_latency_seconds", Help: "Bootstrap fetch latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the core's eight buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// CumulativeBuckets pads raw to the eight core buckets and converts per-bucket counts
// to running totals.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(out); i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
