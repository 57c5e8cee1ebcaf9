package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/sessionsync/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisProviderTest(t *testing.T) (*Redis, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	p, err := NewRedis(rdb, tokens, RedisConfig{DeviceID: "device-1"}, nil)
	if err != nil {
		t.Fatalf("new redis provider: %v", err)
	}
	return p, rdb, mr
}

func nextEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestFetchSessionAbsentWhenNothingPersisted(t *testing.T) {
	p, _, _ := newRedisProviderTest(t)

	sess, err := p.FetchSession(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected absent session, got %+v", sess)
	}
}

func TestFetchSessionReturnsSignedInSession(t *testing.T) {
	p, _, _ := newRedisProviderTest(t)
	ctx := context.Background()

	signedIn, err := p.SignIn(ctx, "user-1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	sess, err := p.FetchSession(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sess == nil || sess.SessionID != signedIn.SessionID || sess.UserID != "user-1" {
		t.Fatalf("unexpected fetched session %+v", sess)
	}
}

func TestFetchSessionUnavailable(t *testing.T) {
	p, _, mr := newRedisProviderTest(t)
	mr.Close()

	_, err := p.FetchSession(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSubscribeDeliversEventsInOrder(t *testing.T) {
	p, _, _ := newRedisProviderTest(t)
	ctx := context.Background()

	sub, err := p.SubscribeAuthChanges(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	signedIn, err := p.SignIn(ctx, "user-1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	refreshed, err := p.RefreshToken(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	ev := nextEvent(t, sub)
	if ev.Kind != EventResolved || ev.Session == nil || ev.Session.SessionID != signedIn.SessionID {
		t.Fatalf("expected signed-in event, got %+v", ev)
	}
	if ev.ID == "" {
		t.Fatal("expected event id")
	}

	ev = nextEvent(t, sub)
	if ev.Kind != EventResolved || ev.Session == nil || ev.Session.AccessToken != refreshed.AccessToken {
		t.Fatalf("expected refreshed event, got %+v", ev)
	}
	if ev.Session.SessionID != signedIn.SessionID {
		t.Fatalf("refresh must keep the session id, got %q", ev.Session.SessionID)
	}

	ev = nextEvent(t, sub)
	if ev.Kind != EventResolved || ev.Session != nil {
		t.Fatalf("expected signed-out event, got %+v", ev)
	}

	sess, err := p.FetchSession(ctx)
	if err != nil || sess != nil {
		t.Fatalf("expected no persisted session after sign out, got %+v err=%v", sess, err)
	}
}

func TestSubscribeMapsBadPayloadsToMalformed(t *testing.T) {
	p, rdb, _ := newRedisProviderTest(t)
	ctx := context.Background()

	sub, err := p.SubscribeAuthChanges(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	payloads := []string{
		"{not json",
		`{"id":"1","type":"SIGNED_IN","access_token":"garbage"}`,
		`{"id":"2","type":"PASSWORD_RECOVERY"}`,
	}
	for _, payload := range payloads {
		if err := rdb.Publish(ctx, p.Channel(), payload).Err(); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	for range payloads {
		ev := nextEvent(t, sub)
		if ev.Kind != EventError || !errors.Is(ev.Err, ErrMalformedEvent) {
			t.Fatalf("expected malformed event, got %+v", ev)
		}
	}
}

func TestInitialSessionWithoutTokenIsSignedOut(t *testing.T) {
	p, rdb, _ := newRedisProviderTest(t)
	ctx := context.Background()

	sub, err := p.SubscribeAuthChanges(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := rdb.Publish(ctx, p.Channel(), `{"id":"1","type":"INITIAL_SESSION"}`).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ev := nextEvent(t, sub)
	if ev.Kind != EventResolved || ev.Session != nil {
		t.Fatalf("expected absent initial session, got %+v", ev)
	}
}

func TestUnsubscribeIsIdempotentAndClosesEvents(t *testing.T) {
	p, _, _ := newRedisProviderTest(t)

	sub, err := p.SubscribeAuthChanges(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed event channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after unsubscribe")
	}
}

func TestSubscribeUnavailable(t *testing.T) {
	p, _, mr := newRedisProviderTest(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := p.SubscribeAuthChanges(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	p, _, _ := newRedisProviderTest(t)
	if _, err := p.RefreshToken(context.Background()); err == nil {
		t.Fatal("expected refresh without session to fail")
	}
}

func TestNewRedisValidatesConfig(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	tokens, err := jwt.NewManager(jwt.Config{AccessTTL: time.Hour, SigningMethod: jwt.MethodHS256, PrivateKey: []byte("k")})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	if _, err := NewRedis(nil, tokens, RedisConfig{DeviceID: "d"}, nil); err == nil {
		t.Fatal("expected nil redis to be rejected")
	}
	if _, err := NewRedis(rdb, nil, RedisConfig{DeviceID: "d"}, nil); err == nil {
		t.Fatal("expected nil token manager to be rejected")
	}
	if _, err := NewRedis(rdb, tokens, RedisConfig{DeviceID: " "}, nil); err == nil {
		t.Fatal("expected blank device id to be rejected")
	}
	if _, err := NewRedis(rdb, tokens, RedisConfig{DeviceID: "a:b"}, nil); err == nil {
		t.Fatal("expected device id with ':' to be rejected")
	}
}

func TestSubscribeRejectsForeignSessionID(t *testing.T) {
	p, rdb, _ := newRedisProviderTest(t)
	ctx := context.Background()

	sub, err := p.SubscribeAuthChanges(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	token, _, err := p.tokens.Issue("user-1", "not-a-session-id")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	payload := `{"id":"1","type":"SIGNED_IN","access_token":"` + token + `"}`
	if err := rdb.Publish(ctx, p.Channel(), payload).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ev := nextEvent(t, sub)
	if ev.Kind != EventError || !errors.Is(ev.Err, ErrMalformedEvent) {
		t.Fatalf("expected malformed event, got %+v", ev)
	}
}

func TestPing(t *testing.T) {
	p, _, mr := newRedisProviderTest(t)
	if _, err := p.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	mr.Close()
	if _, err := p.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
