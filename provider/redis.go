package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/sessionsync/jwt"
	"github.com/MrEthical07/sessionsync/session"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix      = "ss"
	defaultEventBuffer = 16
)

// RedisConfig configures a [Redis] provider.
type RedisConfig struct {
	// DeviceID scopes the persisted session and the auth-change channel.
	DeviceID string
	// Prefix namespaces every key and channel. Defaults to "ss".
	Prefix string
	// EventBuffer sizes the subscription's event channel. Defaults to 16.
	EventBuffer int
}

// Redis is a [Client] backed by a Redis session blob and a Redis pub/sub channel.
// It also exposes the publishing half (SignIn, RefreshToken, SignOut) that an identity
// service would run.
type Redis struct {
	rdb    redis.UniversalClient
	store  *session.Store
	tokens *jwt.Manager
	clock  clockwork.Clock
	cfg    RedisConfig
}

// NewRedis builds a Redis provider. A nil clock uses the wall clock.
func NewRedis(rdb redis.UniversalClient, tokens *jwt.Manager, cfg RedisConfig, clock clockwork.Clock) (*Redis, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	if tokens == nil {
		return nil, errors.New("token manager is required")
	}
	cfg.DeviceID = strings.TrimSpace(cfg.DeviceID)
	if cfg.DeviceID == "" {
		return nil, errors.New("device id is required")
	}
	if strings.ContainsAny(cfg.DeviceID, ": ") {
		return nil, errors.New("device id must not contain ':' or spaces")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Redis{
		rdb:    rdb,
		store:  session.NewStore(rdb, cfg.Prefix, clock),
		tokens: tokens,
		clock:  clock,
		cfg:    cfg,
	}, nil
}

// Ping checks that the backing Redis is reachable and reports the round trip.
func (r *Redis) Ping(ctx context.Context) (time.Duration, error) {
	d, err := r.store.Ping(ctx)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return d, nil
}

// Channel returns the pub/sub channel carrying this device's auth changes.
func (r *Redis) Channel() string {
	return r.cfg.Prefix + ":auth:" + r.cfg.DeviceID
}

// FetchSession loads the persisted device session. Missing, expired, or no longer
// verifiable sessions resolve to (nil, nil).
func (r *Redis) FetchSession(ctx context.Context) (*session.Session, error) {
	sess, err := r.store.Get(ctx, r.cfg.DeviceID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := r.tokens.Parse(sess.AccessToken); err != nil {
		return nil, nil
	}
	return sess, nil
}

// SubscribeAuthChanges subscribes to the device channel and waits for Redis to
// confirm the subscription before returning.
func (r *Redis) SubscribeAuthChanges(ctx context.Context) (Subscription, error) {
	pubsub := r.rdb.Subscribe(ctx, r.Channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	relayCtx, cancel := context.WithCancel(context.Background())
	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, r.cfg.EventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.relay(relayCtx, pubsub.Channel(), r.decode)

	return sub, nil
}

func (r *Redis) decode(payload string) Event {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Failed(fmt.Errorf("%w: %v", ErrMalformedEvent, err))
	}

	switch {
	case msg.Type == EventSignedOut:
		ev := Resolved(nil)
		ev.ID = msg.ID
		return ev
	case msg.Type == EventInitialSession && msg.AccessToken == "":
		ev := Resolved(nil)
		ev.ID = msg.ID
		return ev
	case msg.Type.carriesSession():
		claims, err := r.tokens.Parse(msg.AccessToken)
		if err == nil {
			err = checkSessionID(claims.SID)
		}
		if err != nil {
			ev := Failed(fmt.Errorf("%w: %v", ErrMalformedEvent, err))
			ev.ID = msg.ID
			return ev
		}
		sess := &session.Session{
			SessionID:     claims.SID,
			UserID:        claims.UID,
			AccessToken:   msg.AccessToken,
			SchemaVersion: session.CurrentSchemaVersion,
		}
		if claims.IssuedAt != nil {
			sess.CreatedAt = claims.IssuedAt.Unix()
		}
		if claims.ExpiresAt != nil {
			sess.ExpiresAt = claims.ExpiresAt.Unix()
		}
		ev := Resolved(sess)
		ev.ID = msg.ID
		return ev
	default:
		ev := Failed(fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, msg.Type))
		ev.ID = msg.ID
		return ev
	}
}

// SignIn creates a new session for userID, persists it for the device and publishes
// SIGNED_IN.
func (r *Redis) SignIn(ctx context.Context, userID string) (*session.Session, error) {
	sid, err := newSessionID()
	if err != nil {
		return nil, err
	}
	sess, err := r.issue(userID, sid)
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = r.clock.Now().Unix()

	if err := r.store.Save(ctx, r.cfg.DeviceID, sess, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := r.publish(ctx, EventSignedIn, sess.AccessToken); err != nil {
		return nil, err
	}
	return sess, nil
}

// RefreshToken re-issues the current device session's token and publishes
// TOKEN_REFRESHED. It fails with session.ErrSessionNotFound when signed out.
func (r *Redis) RefreshToken(ctx context.Context) (*session.Session, error) {
	current, err := r.store.Get(ctx, r.cfg.DeviceID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	next, err := r.issue(current.UserID, current.SessionID)
	if err != nil {
		return nil, err
	}
	next.CreatedAt = current.CreatedAt

	if err := r.store.Save(ctx, r.cfg.DeviceID, next, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := r.publish(ctx, EventTokenRefreshed, next.AccessToken); err != nil {
		return nil, err
	}
	return next, nil
}

// SignOut removes the device session and publishes SIGNED_OUT. Signing out
// without a session still publishes, so every listener converges.
func (r *Redis) SignOut(ctx context.Context) error {
	current, err := r.store.Get(ctx, r.cfg.DeviceID)
	switch {
	case err == nil:
		if _, err := r.store.DeleteIfCurrent(ctx, r.cfg.DeviceID, current.SessionID); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	case errors.Is(err, session.ErrSessionNotFound):
	case errors.Is(err, session.ErrSessionCorrupt):
		if err := r.store.Delete(ctx, r.cfg.DeviceID); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return r.publish(ctx, EventSignedOut, "")
}

func (r *Redis) issue(userID, sessionID string) (*session.Session, error) {
	token, expiresAt, err := r.tokens.Issue(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return &session.Session{
		SessionID:     sessionID,
		UserID:        userID,
		AccessToken:   token,
		SchemaVersion: session.CurrentSchemaVersion,
		ExpiresAt:     expiresAt.Unix(),
	}, nil
}

func (r *Redis) publish(ctx context.Context, typ EventType, token string) error {
	data, err := json.Marshal(Message{
		ID:          uuid.NewString(),
		Type:        typ,
		AccessToken: token,
	})
	if err != nil {
		return fmt.Errorf("marshal auth event: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.Channel(), data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		_ = s.pubsub.Close()
		<-s.done
	})
}

// relay forwards messages strictly in order; a slow consumer applies backpressure
// instead of losing events.
func (s *redisSubscription) relay(ctx context.Context, msgs <-chan *redis.Message, decode func(string) Event) {
	defer close(s.done)
	defer close(s.events)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ev := decode(msg.Payload)
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
