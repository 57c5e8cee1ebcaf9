package provider

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionsync/session"
)

var (
	// ErrUnavailable reports that the provider could not be reached or failed a call.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrMalformedEvent reports a stream message the provider could not turn into a session.
	ErrMalformedEvent = errors.New("malformed auth event")
)

// Client is the identity-provider surface the synchronizer depends on.
type Client interface {
	// FetchSession returns the persisted session, or (nil, nil) when there is none.
	FetchSession(ctx context.Context) (*session.Session, error)
	// SubscribeAuthChanges opens the auth-change stream. ctx bounds only the
	// establishment of the stream; the returned subscription lives until Unsubscribe.
	SubscribeAuthChanges(ctx context.Context) (Subscription, error)
}

// Subscription is a live auth-change stream handle.
type Subscription interface {
	// Events delivers events in order. The channel is closed once the stream ends.
	Events() <-chan Event
	// Unsubscribe releases the stream. Calls after the first are no-ops.
	Unsubscribe()
}

// EventKind tags the variant held by an [Event].
type EventKind uint8

const (
	// EventResolved carries a session value; a nil Session means signed out.
	EventResolved EventKind = iota
	// EventError carries a failure in Err.
	EventError
)

// String returns the kind name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventResolved:
		return "resolved"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one auth-change notification.
type Event struct {
	ID      string
	Kind    EventKind
	Session *session.Session
	Err     error
}

// Resolved builds an event carrying sess (nil for signed out).
func Resolved(sess *session.Session) Event {
	return Event{Kind: EventResolved, Session: sess}
}

// Failed builds an error event.
func Failed(err error) Event {
	return Event{Kind: EventError, Err: err}
}
