package sessionsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/MrEthical07/sessionsync/provider"
	"github.com/google/uuid"
)

// Mount is one owning scope of the synchronizer: a fresh Store fed by one bootstrap fetch
// and one stream subscription, torn down by Unmount. All commits happen on the mount's
// loop goroutine.
type Mount struct {
	id        string
	sync      *Synchronizer
	store     *Store
	reactor   *RouteReactor
	lifecycle *Lifecycle
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	teardownOnce sync.Once
}

// Mount starts a new scope. The bootstrap fetch and the subscription start immediately
// and concurrently. Cancelling ctx has the same effect as Unmount.
func (s *Synchronizer) Mount(ctx context.Context) (*Mount, error) {
	if s == nil {
		return nil, ErrMountClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	mctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	m := &Mount{
		id:        id,
		sync:      s,
		store:     newStore(),
		reactor:   NewRouteReactor(s.config.Routes),
		lifecycle: &Lifecycle{},
		logger:    s.logger.With(slog.String("mount_id", id)),
		ctx:       mctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	if !s.track(m) {
		cancel()
		return nil, ErrMountClosed
	}

	s.metrics.Inc(MetricMount)
	s.emitAudit(auditEventMount, true, id, SourceNone, nil, nil, nil)
	m.logger.Debug("mounted")

	bootCh := make(chan bootstrapResult, 1)
	subCh := make(chan subscribeResult, 1)

	go func() {
		bootCh <- s.boot.fetch(mctx)
	}()
	go func() {
		res := s.listen.subscribe(mctx, m.reportSubscribeFailure)
		if res.sub != nil {
			res.acquired = m.lifecycle.Acquire(res.sub)
		}
		subCh <- res
	}()
	go m.run(bootCh, subCh)

	return m, nil
}

// ID returns the mount's unique identifier, as carried by its audit events.
func (m *Mount) ID() string {
	return m.id
}

// State returns the current snapshot of the mount's store. A nil Mount reports a
// loading snapshot.
func (m *Mount) State() State {
	if m == nil {
		return State{Loading: true}
	}
	return m.store.State()
}

// Store exposes the mount's store for read access.
func (m *Mount) Store() *Store {
	return m.store
}

// Resolved is closed when Loading first becomes false.
func (m *Mount) Resolved() <-chan struct{} {
	return m.store.Resolved()
}

// Done is closed when the mount's loop has exited after Unmount.
func (m *Mount) Done() <-chan struct{} {
	return m.done
}

// Unmount ends the scope: the store stops accepting writes, in-flight provider calls are
// cancelled and the subscription is released. It is idempotent, does not wait for the
// loop, and may be called from a Navigator.
func (m *Mount) Unmount() {
	m.teardown()
}

func (m *Mount) teardown() {
	m.teardownOnce.Do(func() {
		m.store.close()
		m.cancel()
		if m.lifecycle.Release() {
			m.sync.metrics.Inc(MetricSubscriptionReleased)
		}

		m.sync.metrics.Inc(MetricUnmount)
		m.sync.emitAudit(auditEventUnmount, true, m.id, SourceNone, nil, nil, nil)
		m.sync.forget(m)
		m.logger.Debug("unmounted")
	})
}

func (m *Mount) run(bootCh <-chan bootstrapResult, subCh <-chan subscribeResult) {
	defer close(m.done)
	defer m.teardown()

	var events <-chan provider.Event

	for {
		select {
		case <-m.ctx.Done():
			return

		case res := <-bootCh:
			bootCh = nil
			if m.stopped() {
				return
			}
			m.handleBootstrap(res)

		case res := <-subCh:
			subCh = nil
			if res.err != nil {
				if m.ctx.Err() != nil {
					return
				}
				m.handleSubscribeUnavailable(res)
				continue
			}
			if res.acquired {
				events = res.sub.Events()
				m.logger.Debug("auth stream subscribed", slog.Int("attempts", res.attempts))
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				m.handleStreamClosed()
				continue
			}
			if m.stopped() {
				return
			}
			m.handleEvent(ev)
		}
	}
}

// stopped reports whether the mount's context has ended. A parent cancellation tears the
// mount down here, so the pending write is suppressed exactly as after Unmount.
func (m *Mount) stopped() bool {
	if m.ctx.Err() == nil {
		return false
	}
	m.teardown()
	m.sync.metrics.Inc(MetricStaleWriteSuppressed)
	return true
}

func (m *Mount) handleBootstrap(res bootstrapResult) {
	s := m.sync
	s.metrics.Observe(MetricBootstrapLatency, res.latency)

	sess := res.session
	if res.err != nil {
		if m.ctx.Err() != nil {
			s.metrics.Inc(MetricStaleWriteSuppressed)
			return
		}
		s.metrics.Inc(MetricBootstrapFailure)
		s.emitAudit(auditEventBootstrapFailed, false, m.id, SourceBootstrap, nil, res.err, func() map[string]string {
			return map[string]string{"latency": durationMillis(res.latency)}
		})
		m.logger.Warn("bootstrap fetch failed, resolving as signed out",
			slog.String("source", SourceBootstrap.String()),
			slog.Any("err", res.err),
		)
		sess = nil
	}

	state, err := m.store.commit(SourceBootstrap, sess)
	switch {
	case errors.Is(err, ErrSuperseded):
		s.metrics.Inc(MetricBootstrapSuperseded)
		m.logger.Debug("bootstrap result superseded by listener")
		return
	case errors.Is(err, ErrStaleWrite):
		s.metrics.Inc(MetricStaleWriteSuppressed)
		return
	case err != nil:
		return
	}

	s.metrics.Inc(MetricBootstrapCommitted)
	m.react(state)
}

func (m *Mount) handleEvent(ev provider.Event) {
	s := m.sync
	s.metrics.Inc(MetricListenerEvent)

	sess, malformed := interpret(ev)
	if malformed != nil {
		if m.ctx.Err() == nil {
			s.metrics.Inc(MetricMalformedEvent)
			s.emitAudit(auditEventMalformedEvent, false, m.id, SourceListener, nil, malformed, func() map[string]string {
				if ev.ID == "" {
					return nil
				}
				return map[string]string{"event_id": ev.ID}
			})
			m.logger.Warn("malformed auth event, treating as signed out",
				slog.String("source", SourceListener.String()),
				slog.Any("err", malformed),
			)
		}
	}

	state, err := m.store.commit(SourceListener, sess)
	if err != nil {
		s.metrics.Inc(MetricStaleWriteSuppressed)
		return
	}
	m.react(state)
}

// handleSubscribeUnavailable runs once the subscribe call has given up. A mount that is
// still loading resolves as signed out through the listener path, so a bootstrap result
// arriving later is superseded. A mount that already resolved keeps its state.
func (m *Mount) handleSubscribeUnavailable(res subscribeResult) {
	m.sync.metrics.Inc(MetricStreamUnavailable)
	if !m.store.State().Loading {
		m.logger.Warn("auth stream unavailable",
			slog.Int("attempts", res.attempts),
			slog.Any("err", res.err),
		)
		return
	}

	m.logger.Warn("auth stream unavailable while loading, resolving as signed out",
		slog.String("source", SourceListener.String()),
		slog.Int("attempts", res.attempts),
		slog.Any("err", res.err),
	)
	state, err := m.store.commit(SourceListener, nil)
	if err != nil {
		m.sync.metrics.Inc(MetricStaleWriteSuppressed)
		return
	}
	m.react(state)
}

func (m *Mount) handleStreamClosed() {
	if m.ctx.Err() != nil {
		return
	}
	m.sync.metrics.Inc(MetricStreamClosed)
	m.sync.emitAudit(auditEventStreamClosed, false, m.id, SourceListener, nil, nil, nil)
	m.logger.Warn("auth stream closed by provider")
}

// reportSubscribeFailure runs on the subscribe goroutine for every failed attempt.
func (m *Mount) reportSubscribeFailure(attempt int, err error) {
	if m.ctx.Err() != nil {
		return
	}
	s := m.sync
	s.metrics.Inc(MetricSubscribeFailure)
	s.emitAudit(auditEventSubscribeFailed, false, m.id, SourceListener, nil, err, func() map[string]string {
		return map[string]string{"attempt": strconv.Itoa(attempt)}
	})
	m.logger.Warn("auth stream subscribe failed",
		slog.String("source", SourceListener.String()),
		slog.Int("attempt", attempt),
		slog.Any("err", err),
	)
}

func (m *Mount) react(state State) {
	route, ok := m.reactor.Observe(state)
	if !ok {
		return
	}

	s := m.sync
	if route == s.config.Routes.AuthenticatedEntry {
		s.metrics.Inc(MetricNavigateAuthenticated)
	} else {
		s.metrics.Inc(MetricNavigateSignIn)
	}

	if s.navigator == nil {
		m.logger.Debug("transition without navigator", slog.String("route", string(route)))
		return
	}

	src := m.store.LastSource()
	if err := s.navigator.Navigate(m.ctx, route); err != nil {
		err = fmt.Errorf("%w: %v", ErrNavigationFailed, err)
		s.metrics.Inc(MetricNavigationFailure)
		s.emitAudit(auditEventNavigationFailed, false, m.id, src, state.Session, err, routeMetadata(route))
		m.logger.Error("navigation failed", slog.String("route", string(route)), slog.Any("err", err))
		return
	}

	s.emitAudit(auditEventNavigation, true, m.id, src, state.Session, nil, routeMetadata(route))
	m.logger.Info("navigated", slog.String("route", string(route)))
}

func routeMetadata(route Route) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"route": string(route)}
	}
}
