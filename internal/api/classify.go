package api

import (
	"net/http"
	"strings"

	clienterrors "github.com/tenantnotes/notes-client/internal/errors"
	"github.com/tenantnotes/notes-client/internal/http/response"
)

// quotaStatuses are the statuses a create-note rejection uses for a plan limit.
var quotaStatuses = map[int]bool{
	http.StatusPaymentRequired: true,
	http.StatusForbidden:       true,
	http.StatusTooManyRequests: true,
}

// quotaWords mark a reason string as a plan-limit rejection.
var quotaWords = []string{"limit", "quota", "upgrade"}

// authzWords mark a reason string as a role rejection.
var authzWords = []string{"admin", "forbidden", "permission", "not allowed", "access denied"}

// classify turns a failed response into a categorized error.
// env may be nil when the body could not be decoded.
func classify(intent Intent, status int, env *response.Envelope) *clienterrors.Error {
	var reason string
	if env != nil {
		reason = env.Reason()
	}

	if env == nil && status < http.StatusInternalServerError {
		return clienterrors.Transport("malformed response from server", nil).WithStatus(status)
	}

	if intent == IntentCreateNote && (quotaStatuses[status] || mentionsAny(reason, quotaWords)) {
		return clienterrors.Quota(reason).WithStatus(status)
	}

	var code clienterrors.Code
	switch {
	case status >= 200 && status < 300:
		// success:false inside a 2xx
		code = classifyReason(intent, reason)
	case status == http.StatusTooManyRequests:
		code = clienterrors.CodeTransport
	default:
		code = clienterrors.FromStatus(status)
	}
	// Any login rejection the server actually made means the credentials were refused.
	if intent == IntentLogin && code != clienterrors.CodeTransport {
		code = clienterrors.CodeAuthentication
	}

	return (&clienterrors.Error{Code: code, Message: reason}).WithStatus(status)
}

// classifyReason categorizes a rejection that arrived with a success status.
func classifyReason(intent Intent, reason string) clienterrors.Code {
	switch {
	case intent == IntentLogin:
		return clienterrors.CodeAuthentication
	case mentionsAny(reason, authzWords):
		return clienterrors.CodeAuthorization
	case mentionsAny(reason, []string{"token", "unauthorized", "expired"}):
		return clienterrors.CodeAuthentication
	case mentionsAny(reason, []string{"not found"}):
		return clienterrors.CodeNotFound
	case mentionsAny(reason, []string{"already exists"}):
		return clienterrors.CodeConflict
	default:
		return clienterrors.CodeValidation
	}
}

func mentionsAny(reason string, words []string) bool {
	if reason == "" {
		return false
	}
	lower := strings.ToLower(reason)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
