package sessionsync

import "sync"

// RouteReactor turns committed states into navigation targets. It remembers the last
// observed category and reports a route only when the category changes.
//
// Loading states are ignored, so CategoryUnknown is only ever the starting point and
// never the target of a transition.
type RouteReactor struct {
	mu     sync.Mutex
	routes Routes
	last   Category
}

// NewRouteReactor returns a reactor in the Unknown category.
func NewRouteReactor(routes Routes) *RouteReactor {
	return &RouteReactor{routes: routes}
}

// Observe records state and returns the route to navigate to, if any. Commits in the
// same category as the previous one, such as a token refresh, return false.
func (r *RouteReactor) Observe(state State) (Route, bool) {
	if state.Loading {
		return "", false
	}

	next := CategoryOf(state.Session)

	r.mu.Lock()
	defer r.mu.Unlock()

	if next == r.last {
		return "", false
	}
	r.last = next

	if next == CategoryAuthenticated {
		return r.routes.AuthenticatedEntry, true
	}
	return r.routes.SignInEntry, true
}

// Category returns the last observed category.
func (r *RouteReactor) Category() Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
