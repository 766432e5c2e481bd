package session

import "sync/atomic"

// Credentials holds the bearer token of the current session.
// It is the api.TokenSource; only the Store writes it.
type Credentials struct {
	token atomic.Pointer[string]
}

// NewCredentials creates an empty credential holder.
func NewCredentials() *Credentials {
	return &Credentials{}
}

// Token returns the current bearer token, "" when signed out.
func (c *Credentials) Token() string {
	if t := c.token.Load(); t != nil {
		return *t
	}
	return ""
}

func (c *Credentials) set(token string) {
	c.token.Store(&token)
}

func (c *Credentials) clear() {
	c.token.Store(nil)
}
