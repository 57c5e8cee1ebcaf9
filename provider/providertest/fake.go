// Package providertest provides a scriptable in-memory provider.Client for tests.
package providertest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/sessionsync/provider"
	"github.com/MrEthical07/sessionsync/session"
)

type fetchReply struct {
	sess *session.Session
	err  error
}

// Provider is a provider.Client whose fetch results and stream events are driven by
// the test. FetchSession blocks until ResolveFetch is called or its context ends.
type Provider struct {
	fetch      chan fetchReply
	fetchCalls atomic.Int32

	mu             sync.Mutex
	subscribeErrs  []error
	subscribeCalls int
	subscribeGate  chan struct{}
	subs           []*Subscription
	subscribed     chan *Subscription
}

// New returns an idle fake provider.
func New() *Provider {
	return &Provider{
		fetch:      make(chan fetchReply, 1),
		subscribed: make(chan *Subscription, 8),
	}
}

// ResolveFetch completes the pending (or next) FetchSession call.
func (p *Provider) ResolveFetch(sess *session.Session, err error) {
	p.fetch <- fetchReply{sess: sess, err: err}
}

// FetchCalls reports how many times FetchSession was invoked.
func (p *Provider) FetchCalls() int {
	return int(p.fetchCalls.Load())
}

// FailSubscribe queues errors returned by the next SubscribeAuthChanges calls, in order.
func (p *Provider) FailSubscribe(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribeErrs = append(p.subscribeErrs, errs...)
}

// HoldSubscribe makes SubscribeAuthChanges block until the returned release func is called.
func (p *Provider) HoldSubscribe() (release func()) {
	gate := make(chan struct{})
	p.mu.Lock()
	p.subscribeGate = gate
	p.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SubscribeCalls reports how many times SubscribeAuthChanges was invoked.
func (p *Provider) SubscribeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribeCalls
}

// Subscribed delivers each subscription as soon as it is established.
func (p *Provider) Subscribed() <-chan *Subscription {
	return p.subscribed
}

// Subscriptions returns every subscription handed out so far.
func (p *Provider) Subscriptions() []*Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Subscription, len(p.subs))
	copy(out, p.subs)
	return out
}

// FetchSession blocks until ResolveFetch supplies a reply or ctx ends.
func (p *Provider) FetchSession(ctx context.Context) (*session.Session, error) {
	p.fetchCalls.Add(1)
	select {
	case reply := <-p.fetch:
		return reply.sess, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubscribeAuthChanges returns the next queued error, or a new Subscription.
func (p *Provider) SubscribeAuthChanges(ctx context.Context) (provider.Subscription, error) {
	p.mu.Lock()
	p.subscribeCalls++
	gate := p.subscribeGate
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	if len(p.subscribeErrs) > 0 {
		err := p.subscribeErrs[0]
		p.subscribeErrs = p.subscribeErrs[1:]
		p.mu.Unlock()
		return nil, err
	}
	sub := &Subscription{events: make(chan provider.Event)}
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	select {
	case p.subscribed <- sub:
	default:
	}
	return sub, nil
}

// Subscription is a fake stream handle. Push blocks until the consumer receives the
// event, so pushes are observed in order.
type Subscription struct {
	events   chan provider.Event
	calls    atomic.Int32
	closed   chan struct{}
	initOnce sync.Once
	once     sync.Once
}

func (s *Subscription) closedCh() chan struct{} {
	s.initOnce.Do(func() { s.closed = make(chan struct{}) })
	return s.closed
}

// Events returns the stream fed by Push.
func (s *Subscription) Events() <-chan provider.Event {
	return s.events
}

// Unsubscribe counts every call and stops the stream on the first.
func (s *Subscription) Unsubscribe() {
	s.calls.Add(1)
	s.once.Do(func() { close(s.closedCh()) })
}

// UnsubscribeCalls reports how many times Unsubscribe was called.
func (s *Subscription) UnsubscribeCalls() int {
	return int(s.calls.Load())
}

// Push delivers ev to the consumer. It returns false if the subscription was
// released before the consumer took the event.
func (s *Subscription) Push(ev provider.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.closedCh():
		return false
	}
}

// End closes the event channel as a provider-side stream termination.
func (s *Subscription) End() {
	close(s.events)
}
