package sessionsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessionsync/provider"
	"github.com/MrEthical07/sessionsync/session"
	"github.com/cenkalti/backoff/v5"
)

type subscribeResult struct {
	sub      provider.Subscription
	acquired bool
	attempts int
	err      error
}

type listener struct {
	client provider.Client
	cfg    SubscribeConfig
}

// subscribe establishes the auth-change stream, retrying up to cfg.MaxAttempts times.
// onFailure runs once per failed attempt, from the calling goroutine.
func (l listener) subscribe(ctx context.Context, onFailure func(attempt int, err error)) subscribeResult {
	attempts := 0
	op := func() (provider.Subscription, error) {
		attempts++
		sub, err := l.client.SubscribeAuthChanges(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			if !errors.Is(err, ErrProviderUnavailable) {
				err = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
			}
			if onFailure != nil {
				onFailure(attempts, err)
			}
			return nil, err
		}
		if sub == nil {
			err := fmt.Errorf("%w: provider returned no subscription", ErrProviderUnavailable)
			if onFailure != nil {
				onFailure(attempts, err)
			}
			return nil, backoff.Permanent(err)
		}
		return sub, nil
	}

	policy := backoff.NewExponentialBackOff()
	if l.cfg.InitialBackoff > 0 {
		policy.InitialInterval = l.cfg.InitialBackoff
	}
	if l.cfg.MaxBackoff > 0 {
		policy.MaxInterval = l.cfg.MaxBackoff
	}

	maxTries := l.cfg.MaxAttempts
	if maxTries < 1 {
		maxTries = 1
	}
	sub, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(maxTries)),
	)
	return subscribeResult{sub: sub, attempts: attempts, err: err}
}

// interpret maps a stream event to the value to commit. Error events and events of an
// unknown kind commit as signed out and return an error wrapping ErrMalformedEvent.
func interpret(ev provider.Event) (*session.Session, error) {
	switch ev.Kind {
	case provider.EventResolved:
		return ev.Session, nil
	case provider.EventError:
		err := ev.Err
		if err == nil {
			err = ErrMalformedEvent
		} else if !errors.Is(err, ErrMalformedEvent) {
			err = fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return nil, err
	default:
		return nil, fmt.Errorf("%w: unknown event kind %d", ErrMalformedEvent, ev.Kind)
	}
}
