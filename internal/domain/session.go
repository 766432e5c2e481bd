package domain

// SessionState is the lifecycle state of the client session.
type SessionState string

const (
	// SessionLoading is the initial state until the first restore resolves.
	// Role and plan gated surfaces must not render while loading.
	SessionLoading SessionState = "loading"
	// SessionAuthenticated means an identity and token are held.
	SessionAuthenticated SessionState = "authenticated"
	// SessionUnauthenticated means no identity is held.
	SessionUnauthenticated SessionState = "unauthenticated"
)

// Resolved reports whether the first restore has completed.
func (s SessionState) Resolved() bool {
	return s != SessionLoading
}
