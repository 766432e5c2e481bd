// Package authz derives what the current user may see and attempt.
//
// These checks shape the interface only. The server remains the authority and
// may still reject anything these functions allow.
package authz

import "github.com/tenantnotes/notes-client/internal/domain"

// Permissions is a snapshot of every gate, derived once per identity or stats change.
type Permissions struct {
	AdminSurface      bool `json:"adminSurface"`
	CreateNote        bool `json:"createNote"`
	Invite            bool `json:"invite"`
	Upgrade           bool `json:"upgrade"`
	ProPlan           bool `json:"proPlan"`
	ShowUpgradePrompt bool `json:"showUpgradePrompt"`
	// NoteLimit is the plan's cap for display, "unlimited" on pro.
	NoteLimit string `json:"noteLimit"`
}

// CanViewAdminSurface reports whether the admin screens may be shown.
func CanViewAdminSurface(identity *domain.Identity) bool {
	return identity.IsAdmin()
}

// CanCreateNote reports whether the create action is offered.
// Without stats it defaults to allowed and lets the server decide.
func CanCreateNote(_ *domain.Identity, stats *domain.Stats) bool {
	if stats == nil {
		return true
	}
	return stats.Subscription.CanCreateMore
}

// IsProPlan reports whether the user's tenant is on the pro plan.
func IsProPlan(identity *domain.Identity) bool {
	return identity != nil && identity.Tenant.Subscription.IsPro
}

// CanInvite reports whether the invite form may be shown.
func CanInvite(identity *domain.Identity) bool {
	return identity.IsAdmin()
}

// CanUpgrade reports whether the upgrade action is offered.
func CanUpgrade(identity *domain.Identity) bool {
	return identity.IsAdmin() && !IsProPlan(identity)
}

// ShowUpgradePrompt reports whether to nudge an admin whose free plan is full.
func ShowUpgradePrompt(identity *domain.Identity, stats *domain.Stats) bool {
	if !CanUpgrade(identity) || stats == nil {
		return false
	}
	return !stats.Subscription.IsPro && !stats.Subscription.CanCreateMore
}

// Derive computes all gates at once. Stats, when present, is the fresher source
// for the plan.
func Derive(identity *domain.Identity, stats *domain.Stats) Permissions {
	var limit string
	switch {
	case stats != nil:
		limit = stats.Subscription.LimitLabel()
	case identity != nil:
		limit = identity.Tenant.Subscription.LimitLabel()
	}

	return Permissions{
		AdminSurface:      CanViewAdminSurface(identity),
		CreateNote:        identity != nil && CanCreateNote(identity, stats),
		Invite:            CanInvite(identity),
		Upgrade:           CanUpgrade(identity),
		ProPlan:           IsProPlan(identity),
		ShowUpgradePrompt: ShowUpgradePrompt(identity, stats),
		NoteLimit:         limit,
	}
}
