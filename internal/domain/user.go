package domain

import (
	"encoding/json"
	"strings"
)

// Role represents the user's permission level within their tenant.
type Role string

const (
	// RoleAdmin grants tenant administration (invites, plan upgrades).
	RoleAdmin Role = "admin"
	// RoleMember grants standard note access.
	RoleMember Role = "member"
)

// Valid reports whether r is a role the server understands.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Identity is the authenticated user as reported by the server.
// It is replaced wholesale on every server response, never patched field by field.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Tenant Tenant `json:"tenant"`
}

// IsAdmin returns true if the user administers their tenant.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// WithTenant returns a copy of the identity carrying tenant.
func (i Identity) WithTenant(tenant Tenant) *Identity {
	i.Tenant = tenant.Clone()
	return &i
}

// Clone returns a deep copy.
func (i Identity) Clone() *Identity {
	i.Tenant = i.Tenant.Clone()
	return &i
}

// UnmarshalJSON accepts both "id" and "_id" for the user id.
func (i *Identity) UnmarshalJSON(data []byte) error {
	type alias Identity
	var raw struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Identity(raw.alias)
	if i.UserID == "" {
		i.UserID = raw.MongoID
	}
	i.Role = Role(strings.ToLower(string(i.Role)))
	i.Tenant.Subscription = i.Tenant.Subscription.Normalize()
	return nil
}
