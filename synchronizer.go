package sessionsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/sessionsync/internal/audit"
	"github.com/MrEthical07/sessionsync/provider"
	"github.com/MrEthical07/sessionsync/session"
	"github.com/jonboulle/clockwork"
)

// Synchronizer is the configured, reusable half of the session synchronizer. It is
// created by Builder.Build and hands out independent Mounts.
type Synchronizer struct {
	config    Config
	client    provider.Client
	navigator Navigator
	boot      bootstrapper
	listen    listener
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	clock     clockwork.Clock

	mu     sync.Mutex
	closed bool
	mounts map[*Mount]struct{}
}

// Routes returns the configured navigation targets.
func (s *Synchronizer) Routes() Routes {
	if s == nil {
		return Routes{}
	}
	return s.config.Routes
}

// Close unmounts every live mount, waits for their loops to exit and flushes the audit
// dispatcher. Mount fails with ErrMountClosed afterwards. Close must not be called from
// a Navigator.
func (s *Synchronizer) Close() {
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	live := make([]*Mount, 0, len(s.mounts))
	for m := range s.mounts {
		live = append(live, m)
	}
	s.mu.Unlock()

	for _, m := range live {
		m.Unmount()
	}
	for _, m := range live {
		<-m.Done()
	}

	s.audit.Close()
}

// MetricsSnapshot returns a copy of the synchronizer's counters.
func (s *Synchronizer) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// AuditDropped reports audit events lost to dispatcher backpressure.
func (s *Synchronizer) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// AuditDelivered reports audit events handed to the sink.
func (s *Synchronizer) AuditDelivered() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Delivered()
}

// LiveMounts reports mounts that have not been torn down yet.
func (s *Synchronizer) LiveMounts() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mounts)
}

func (s *Synchronizer) track(m *Mount) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.mounts[m] = struct{}{}
	return true
}

func (s *Synchronizer) forget(m *Mount) {
	s.mu.Lock()
	delete(s.mounts, m)
	s.mu.Unlock()
}

func (s *Synchronizer) emitAudit(
	eventType string,
	success bool,
	mountID string,
	src Source,
	sess *session.Session,
	err error,
	metadataBuilder func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: s.clock.Now().UTC(),
		EventType: eventType,
		MountID:   mountID,
		Success:   success,
		Metadata:  metadata,
	}
	if src != SourceNone {
		event.Source = src.String()
	}
	if sess != nil {
		event.UserID = sess.UserID
		event.SessionID = sess.SessionID
	}
	if err != nil {
		event.Error = err.Error()
	}

	// Mount contexts are usually cancelled by the time teardown events are emitted.
	if !s.audit.Emit(context.Background(), event) {
		s.logger.Debug("audit event not accepted",
			slog.String("event_type", eventType),
			slog.String("mount_id", mountID),
		)
	}
}

func durationMillis(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
