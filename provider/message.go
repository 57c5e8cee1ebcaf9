package provider

// EventType is the auth-change message type on the wire.
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Message is the JSON payload published on the auth-change channel.
type Message struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	AccessToken string    `json:"access_token,omitempty"`
}

func (t EventType) carriesSession() bool {
	switch t {
	case EventInitialSession, EventSignedIn, EventTokenRefreshed, EventUserUpdated:
		return true
	default:
		return false
	}
}
