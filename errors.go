package sessionsync

import (
	"errors"

	"github.com/MrEthical07/sessionsync/provider"
)

var (
	// ErrProviderUnavailable reports that the identity provider could not be reached for a
	// bootstrap fetch or a stream subscription.
	ErrProviderUnavailable = provider.ErrUnavailable
	// ErrMalformedEvent reports a stream event that carried no usable session payload.
	ErrMalformedEvent = provider.ErrMalformedEvent
	// ErrStaleWrite is returned by the store for writes attempted after the mount ended.
	// It is counted and never surfaced to consumers.
	ErrStaleWrite = errors.New("stale write after unmount")
	// ErrSuperseded is returned when a bootstrap result arrives after the listener has
	// already committed.
	ErrSuperseded = errors.New("bootstrap result superseded by listener")
	// ErrNoProvider is returned by Build when no provider client was configured.
	ErrNoProvider = errors.New("provider client required")
	// ErrMountClosed is returned when mounting on a closed synchronizer.
	ErrMountClosed = errors.New("synchronizer closed")
	// ErrNavigationFailed wraps a Navigator error in audit and log output.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
)
