/*
Package sessionsync keeps a single consistent view of the signed-in session for a client
application that learns about it from two asynchronous sources: a one-shot fetch of any
session persisted by a previous run, and a long-lived stream of auth-change events pushed by
the identity provider.

# Architecture boundaries

A Synchronizer is built once and mounted per owning scope (a screen stack, a request, a
process). Each Mount owns:

  - a Store holding {Loading, Session}, written only through one internal entry point
  - a bootstrap fetch, run once
  - a stream subscription, held by a Lifecycle that releases it exactly once
  - a RouteReactor that turns category transitions into Navigator calls

All writes for a mount are applied by a single loop goroutine, so stream events are
committed strictly in delivery order.

# Flow

Mount starts the bootstrap fetch and the subscription concurrently. The first commit from
either source clears Loading. Stream commits always win: a bootstrap result that arrives
after any stream event is discarded. A failed bootstrap resolves to a signed-out state and is
reported; a malformed stream event is treated as a sign-out. After Unmount every late
callback is a suppressed write.

# Observability

Failures and transitions are reported to an optional audit sink through a buffered
dispatcher, counted by the in-process Metrics, and logged through log/slog. The metrics can
be exported with metrics/export/prometheus or metrics/export/otel.

# Usage

	sync, err := sessionsync.New().
		WithProvider(client).
		WithNavigator(nav).
		Build()
	if err != nil {
		return err
	}
	defer sync.Close()

	m, err := sync.Mount(ctx)
	if err != nil {
		return err
	}
	defer m.Unmount()
	<-m.Resolved()
	state := m.State()
*/
package sessionsync
