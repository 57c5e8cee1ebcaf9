package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned (wrapped) when a Redis command fails.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned when no usable session is stored for the device.
// It is always joined with [redis.Nil].
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionCorrupt is returned when the stored blob cannot be decoded.
var ErrSessionCorrupt = errors.New("session corrupt")

const (
	deleteStatusMissing  int64 = 0
	deleteStatusDeleted  int64 = 1
	deleteStatusMismatch int64 = 2
)

// Deletes the device session only when the stored blob carries the expected
// session ID. Mirrors the v2 layout in encoder.go: version byte, sid length, sid.
const deleteIfCurrentScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local version = string.byte(data, 1)
if version == 2 then
  local sid_len = string.byte(data, 2)
  if not sid_len then
    return 2
  end
  local sid = string.sub(data, 3, 2 + sid_len)
  if sid ~= ARGV[1] then
    return 2
  end
elseif ARGV[1] ~= "" then
  return 2
end
redis.call("DEL", KEYS[1])
return 1
`

var deleteIfCurrentLua = redis.NewScript(deleteIfCurrentScript)

// Store persists one client session per device ID in Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	clock  clockwork.Clock
}

// NewStore creates a session [Store] backed by the given Redis client. prefix sets
// the key namespace; a nil clock uses the wall clock.
func NewStore(redis redis.UniversalClient, prefix string, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
		clock:  clock,
	}
}

func (s *Store) key(deviceID string) string {
	return s.prefix + ":dev:" + normalizeDeviceID(deviceID)
}

func normalizeDeviceID(deviceID string) string {
	if deviceID == "" {
		return "0"
	}
	return deviceID
}

// Save persists sess for deviceID. A non-positive ttl derives the TTL from the
// session's ExpiresAt; an already expired session is rejected.
func (s *Store) Save(ctx context.Context, deviceID string, sess *Session, ttl time.Duration) error {
	if sess == nil {
		return errors.New("nil session")
	}
	if ttl <= 0 {
		if sess.ExpiresAt <= 0 {
			return errors.New("session has no expiry and no ttl")
		}
		ttl = time.Unix(sess.ExpiresAt, 0).Sub(s.clock.Now())
		if ttl <= 0 {
			return errors.New("session already expired")
		}
	}

	data, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(deviceID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads the device session. Missing and expired sessions both return an error
// matching [redis.Nil] and [ErrSessionNotFound]; expired blobs are removed.
func (s *Store) Get(ctx context.Context, deviceID string) (*Session, error) {
	key := s.key(deviceID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Join(redis.Nil, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrSessionCorrupt, err)
	}

	if sess.Expired(s.clock.Now()) {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil, errors.Join(redis.Nil, ErrSessionNotFound)
	}

	if err := s.maybeMigrateSessionSchema(ctx, key, sess); err != nil {
		return nil, err
	}

	return sess, nil
}

// Delete removes the device session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, deviceID string) error {
	if err := s.redis.Del(ctx, s.key(deviceID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteIfCurrent removes the device session only if it is still sessionID.
// It reports whether a blob was deleted.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) DeleteIfCurrent(ctx context.Context, deviceID, sessionID string) (bool, error) {
	status, err := deleteIfCurrentLua.Run(ctx, s.redis, []string{s.key(deviceID)}, sessionID).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case deleteStatusDeleted:
		return true, nil
	case deleteStatusMissing, deleteStatusMismatch:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown delete script status", ErrRedisUnavailable)
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := s.clock.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return s.clock.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.clock.Since(start), nil
}

func (s *Store) maybeMigrateSessionSchema(ctx context.Context, key string, sess *Session) error {
	if sess == nil || sess.SchemaVersion == CurrentSchemaVersion {
		return nil
	}

	pttl, err := s.redis.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if pttl <= 0 {
		return nil
	}

	sess.SchemaVersion = CurrentSchemaVersion
	encoded, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, key, encoded, pttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
