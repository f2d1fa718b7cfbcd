package authkit

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials  = "invalid_credentials"
	TextCodePopupBlocked        = "popup_blocked"
	TextCodePopupClosed         = "popup_closed"
	TextCodePopupTimeout        = "popup_timeout"
	TextCodeAttemptConsumed     = "popup_attempt_consumed"
	TextCodeUnknownProvider     = "unknown_provider"
	TextCodeSessionNotFound     = "session_not_found"
	TextCodeNetworkFailure      = "network_failure"
	TextCodeUnauthorized        = "unauthorized"
	TextCodeNoPrimaryCredential = "no_primary_credential"
	TextCodeImpersonationDenied = "impersonation_denied"
	TextCodeLogoutIncomplete    = "logout_incomplete"
	TextCodeUserNotFound        = "user_not_found"
	TextCodeRevokePartialFail   = "revoke_partial_failure"
)

// ErrInvalidCredentials is returned when the backend rejects a login pair.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrPopupBlocked is returned when the popup window could not be created.
var ErrPopupBlocked = errors.New("popup window blocked", errors.CategoryOperation).
	WithTextCode(TextCodePopupBlocked)

// ErrPopupClosed is returned when the user closes the popup before completion.
var ErrPopupClosed = errors.New("popup closed before completion", errors.CategoryOperation).
	WithTextCode(TextCodePopupClosed)

// ErrPopupTimeout is returned when no completion signal arrives in time.
var ErrPopupTimeout = errors.New("popup login timed out", errors.CategoryOperation).
	WithTextCode(TextCodePopupTimeout)

// ErrAttemptConsumed is returned when a coordinator is reused; each instance
// services exactly one attempt.
var ErrAttemptConsumed = errors.New("popup attempt already consumed", errors.CategoryConflict).
	WithTextCode(TextCodeAttemptConsumed).
	WithCode(errors.CodeConflict)

// ErrUnknownProvider is returned for provider codes the backend has no entry point for.
var ErrUnknownProvider = errors.New("unknown oauth provider", errors.CategoryBadInput).
	WithTextCode(TextCodeUnknownProvider).
	WithCode(errors.CodeBadRequest)

// ErrSessionNotFound is returned when a session id is not part of the last
// fetched registry view.
var ErrSessionNotFound = errors.New("session not found", errors.CategoryNotFound).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeNotFound)

// ErrUnauthorized is returned when the backend rejects the stored credential.
var ErrUnauthorized = errors.New("credential rejected by backend", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrNoPrimaryCredential is returned when impersonation is requested without a
// primary identity present.
var ErrNoPrimaryCredential = errors.New("no primary credential", errors.CategoryConflict).
	WithTextCode(TextCodeNoPrimaryCredential).
	WithCode(errors.CodeConflict)

// ErrImpersonationDenied is returned when the primary principal is not an administrator.
var ErrImpersonationDenied = errors.New("impersonation requires an administrator", errors.CategoryAuthz).
	WithTextCode(TextCodeImpersonationDenied).
	WithCode(errors.CodeForbidden)

// ErrUserNotFound is returned when the directory has no record for an id.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsInvalidCredentials checks for a rejected login pair.
func IsInvalidCredentials(err error) bool {
	return hasTextCode(err, TextCodeInvalidCredentials)
}

// IsPopupInterruption checks for any of the recoverable popup flow failures.
func IsPopupInterruption(err error) bool {
	return hasTextCode(err, TextCodePopupBlocked) ||
		hasTextCode(err, TextCodePopupClosed) ||
		hasTextCode(err, TextCodePopupTimeout)
}

// IsSessionNotFound checks for a stale local registry view.
func IsSessionNotFound(err error) bool {
	return hasTextCode(err, TextCodeSessionNotFound)
}

// IsUnauthorized checks for a backend credential rejection.
func IsUnauthorized(err error) bool {
	return hasTextCode(err, TextCodeUnauthorized)
}

// IsUserNotFound checks for a directory miss.
func IsUserNotFound(err error) bool {
	return hasTextCode(err, TextCodeUserNotFound)
}

// IsNetworkFailure checks for a transient transport failure.
func IsNetworkFailure(err error) bool {
	return hasTextCode(err, TextCodeNetworkFailure)
}
