package sessionsync

import (
	"sync"

	"github.com/MrEthical07/sessionsync/provider"
)

// Lifecycle owns a mount's stream subscription and guarantees that Unsubscribe is called
// exactly once for every handle it is given, whichever of Acquire and Release runs first.
type Lifecycle struct {
	mu       sync.Mutex
	sub      provider.Subscription
	released bool
}

// Acquire takes ownership of sub. If the lifecycle was already released, or already holds
// a subscription, sub is unsubscribed immediately and Acquire returns false.
func (l *Lifecycle) Acquire(sub provider.Subscription) bool {
	if sub == nil {
		return false
	}

	l.mu.Lock()
	if l.released || l.sub != nil {
		l.mu.Unlock()
		sub.Unsubscribe()
		return false
	}
	l.sub = sub
	l.mu.Unlock()
	return true
}

// Release unsubscribes the held subscription, if any. Only the first call has an effect;
// it reports whether a subscription was released.
func (l *Lifecycle) Release() bool {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return false
	}
	l.released = true
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()

	if sub == nil {
		return false
	}
	sub.Unsubscribe()
	return true
}

// Released reports whether Release has taken effect.
func (l *Lifecycle) Released() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}
