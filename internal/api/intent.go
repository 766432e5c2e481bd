package api

// Intent names a single server call. It keys rate limiting, selects the retry
// policy and decides how a rejection is classified.
type Intent string

// Intents issued by the client.
const (
	IntentLogin         Intent = "login"
	IntentProfile       Intent = "profile"
	IntentListNotes     Intent = "list_notes"
	IntentCreateNote    Intent = "create_note"
	IntentUpdateNote    Intent = "update_note"
	IntentDeleteNote    Intent = "delete_note"
	IntentStats         Intent = "stats"
	IntentInvite        Intent = "invite"
	IntentUpgradeTenant Intent = "upgrade_tenant"
)

// Idempotent reports whether the intent may be retried automatically.
// Only reads qualify; a write is never re-sent.
func (i Intent) Idempotent() bool {
	switch i {
	case IntentProfile, IntentListNotes, IntentStats:
		return true
	default:
		return false
	}
}
