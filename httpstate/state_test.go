package httpstate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/sessionsync"
	"github.com/MrEthical07/sessionsync/session"
)

type fixedSource sessionsync.State

func (f fixedSource) State() sessionsync.State { return sessionsync.State(f) }

func signedIn() fixedSource {
	return fixedSource{Session: &session.Session{SessionID: "s1", UserID: "u1", AccessToken: "secret-token", ExpiresAt: 1700000000}}
}

func TestHandlerRendersSnapshot(t *testing.T) {
	tests := []struct {
		name          string
		src           StateSource
		loading       bool
		authenticated bool
		hasSession    bool
	}{
		{name: "loading", src: fixedSource{Loading: true}, loading: true},
		{name: "signed out", src: fixedSource{}},
		{name: "signed in", src: signedIn(), authenticated: true, hasSession: true},
		{name: "nil mount", src: (*sessionsync.Mount)(nil), loading: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Handler(tt.src).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if strings.Contains(rec.Body.String(), "secret-token") {
				t.Fatal("access token must not be rendered")
			}

			var body stateView
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Loading != tt.loading || body.Authenticated != tt.authenticated || (body.Session != nil) != tt.hasSession {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}
}

func TestHandlerRejectsWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(signedIn()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRequireAuthenticated(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			t.Fatal("expected session in context")
		}
		seen = sess.UserID
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		src      StateSource
		code     int
		location string
	}{
		{name: "nil source", src: nil, code: http.StatusServiceUnavailable},
		{name: "nil mount", src: (*sessionsync.Mount)(nil), code: http.StatusServiceUnavailable},
		{name: "loading", src: fixedSource{Loading: true}, code: http.StatusServiceUnavailable},
		{name: "signed out", src: fixedSource{}, code: http.StatusSeeOther, location: "/signin"},
		{name: "signed in", src: signedIn(), code: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RequireAuthenticated(tt.src, "/signin")(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile", nil))

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			if tt.location != "" && rec.Header().Get("Location") != tt.location {
				t.Fatalf("expected redirect to %s, got %q", tt.location, rec.Header().Get("Location"))
			}
		})
	}

	if seen != "u1" {
		t.Fatalf("expected handler to see u1, got %q", seen)
	}
}
