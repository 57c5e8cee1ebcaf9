package session

import "time"

// Session is the opaque authenticated-identity handle shared between the provider
// and the synchronizer. A nil *Session means "no session".
//
// Session values are treated as immutable once handed to the synchronizer; use
// [Session.Clone] before mutating a copy.
type Session struct {
	SessionID     string
	UserID        string
	AccessToken   string
	SchemaVersion uint8

	CreatedAt int64
	ExpiresAt int64
}

// Expired reports whether the session's absolute expiry has passed at now.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return s.ExpiresAt > 0 && now.Unix() >= s.ExpiresAt
}

// Clone returns a shallow copy, or nil for a nil receiver.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
