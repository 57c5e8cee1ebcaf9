package sessionsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionsync/provider"
	"github.com/MrEthical07/sessionsync/session"
	"github.com/jonboulle/clockwork"
)

type bootstrapResult struct {
	session *session.Session
	err     error
	latency time.Duration
}

type bootstrapper struct {
	client provider.Client
	clock  clockwork.Clock
}

// fetch performs the one provider fetch for a mount. Any provider failure is reported
// as ErrProviderUnavailable; a cancelled ctx is returned as is.
func (b bootstrapper) fetch(ctx context.Context) bootstrapResult {
	start := b.clock.Now()
	sess, err := b.client.FetchSession(ctx)
	latency := b.clock.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return bootstrapResult{err: ctx.Err(), latency: latency}
		}
		if !errors.Is(err, ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return bootstrapResult{err: err, latency: latency}
	}

	return bootstrapResult{session: sess, latency: latency}
}
