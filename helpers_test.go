package sessionsync

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessionsync/provider/providertest"
)

type recordingNavigator struct {
	mu     sync.Mutex
	routes []Route
	hook   func(Route) error
}

func (n *recordingNavigator) Navigate(_ context.Context, route Route) error {
	n.mu.Lock()
	n.routes = append(n.routes, route)
	hook := n.hook
	n.mu.Unlock()
	if hook != nil {
		return hook(route)
	}
	return nil
}

func (n *recordingNavigator) Routes() []Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Route, len(n.routes))
	copy(out, n.routes)
	return out
}

func (n *recordingNavigator) count(route Route) int {
	c := 0
	for _, r := range n.Routes() {
		if r == route {
			c++
		}
	}
	return c
}

type testHarness struct {
	provider *providertest.Provider
	nav      *recordingNavigator
	audit    *ChannelSink
	sync     *Synchronizer
	routes   Routes
}

func newHarness(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	if mutate != nil {
		mutate(&cfg)
	}

	h := &testHarness{
		provider: providertest.New(),
		nav:      &recordingNavigator{},
		audit:    NewChannelSink(128),
		routes:   cfg.Routes,
	}

	s, err := New().
		WithConfig(cfg).
		WithProvider(h.provider).
		WithNavigator(h.nav).
		WithAuditSink(h.audit).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	h.sync = s
	t.Cleanup(s.Close)
	return h
}

func (h *testHarness) mount(t *testing.T) *Mount {
	t.Helper()
	m, err := h.sync.Mount(context.Background())
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	return m
}

func (h *testHarness) subscription(t *testing.T) *providertest.Subscription {
	t.Helper()
	select {
	case sub := <-h.provider.Subscribed():
		return sub
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription")
	}
	return nil
}

func (h *testHarness) metric(id MetricID) uint64 {
	return h.sync.MetricsSnapshot().Counters[id]
}

func (h *testHarness) awaitAudit(t *testing.T, eventType string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.audit.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for audit event %q", eventType)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitClosed(t *testing.T, what string, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func routesEqual(got, want []Route) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
