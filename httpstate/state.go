package httpstate

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/sessionsync"
	"github.com/MrEthical07/sessionsync/session"
)

// StateSource is anything that can report a session snapshot. *sessionsync.Mount
// satisfies it, and a nil *sessionsync.Mount reports loading. A nil interface makes
// both handlers answer 503.
type StateSource interface {
	State() sessionsync.State
}

type sessionContextKey struct{}

// SessionFromContext returns the session stored by RequireAuthenticated.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok && sess != nil
}

type sessionView struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	CreatedAt int64  `json:"created_at,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

type stateView struct {
	Loading       bool         `json:"loading"`
	Authenticated bool         `json:"authenticated"`
	Session       *sessionView `json:"session"`
}

func viewOf(st sessionsync.State) stateView {
	out := stateView{
		Loading:       st.Loading,
		Authenticated: st.Authenticated(),
	}
	if st.Session != nil {
		out.Session = &sessionView{
			SessionID: st.Session.SessionID,
			UserID:    st.Session.UserID,
			CreatedAt: st.Session.CreatedAt,
			ExpiresAt: st.Session.ExpiresAt,
		}
	}
	return out
}

// Handler serves the current snapshot of src as JSON.
func Handler(src StateSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(viewOf(src.State()))
	})
}

// RequireAuthenticated wraps next so it only runs for a resolved, signed-in snapshot.
func RequireAuthenticated(src StateSource, signIn sessionsync.Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src == nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}

			st := src.State()
			if st.Loading {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session loading", http.StatusServiceUnavailable)
				return
			}
			if st.Session == nil {
				http.Redirect(w, r, string(signIn), http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, st.Session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
