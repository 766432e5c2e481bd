package domain

import (
	"encoding/json"
	"strconv"
)

// Plan is a tenant subscription plan.
type Plan string

const (
	// PlanFree caps the number of notes a tenant may hold.
	PlanFree Plan = "free"
	// PlanPro removes the note cap.
	PlanPro Plan = "pro"
)

// Subscription describes the tenant's plan as computed by the server.
// CanCreateMore is authoritative at the moment it was fetched; the client never
// recomputes it from a local note count.
type Subscription struct {
	Plan          Plan `json:"plan"`
	MaxNotes      *int `json:"maxNotes"` // nil means unlimited
	IsPro         bool `json:"isPro"`
	CanCreateMore bool `json:"canCreateMore"`
}

// Normalize enforces isPro ⇒ unlimited notes and the ability to create more.
func (s Subscription) Normalize() Subscription {
	if s.Plan == PlanPro {
		s.IsPro = true
	}
	if s.IsPro {
		s.Plan = PlanPro
		s.MaxNotes = nil
		s.CanCreateMore = true
	}
	return s
}

// Unlimited reports whether the plan has no note cap.
func (s Subscription) Unlimited() bool {
	return s.IsPro || s.MaxNotes == nil
}

// LimitLabel renders the note cap for display.
func (s Subscription) LimitLabel() string {
	if s.Unlimited() {
		return "unlimited"
	}
	return strconv.Itoa(*s.MaxNotes)
}

// Clone returns a copy that shares no pointers with s.
func (s Subscription) Clone() Subscription {
	if s.MaxNotes != nil {
		n := *s.MaxNotes
		s.MaxNotes = &n
	}
	return s
}

// Tenant is the organization that owns users, notes and a subscription.
type Tenant struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Slug         string       `json:"slug"`
	Subscription Subscription `json:"subscription"`
}

// Clone returns a deep copy.
func (t Tenant) Clone() Tenant {
	t.Subscription = t.Subscription.Clone()
	return t
}

// UnmarshalJSON accepts both "id" and "_id" for the tenant id.
func (t *Tenant) UnmarshalJSON(data []byte) error {
	type alias Tenant
	var raw struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Tenant(raw.alias)
	if t.ID == "" {
		t.ID = raw.MongoID
	}
	t.Subscription = t.Subscription.Normalize()
	return nil
}
