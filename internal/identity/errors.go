package identity

import (
	"context"
	"errors"
	"fmt"

	"insightmcp/internal/api"
	"insightmcp/pkg/redact"

	"golang.org/x/oauth2"
)

// ErrNoRefreshCredential is returned by AcquireSilently when the session has
// no credential to redeem.
var ErrNoRefreshCredential = errors.New("session has no refresh credential")

// maxReasonLen bounds provider-supplied error descriptions in user-facing text.
const maxReasonLen = 160

// ClassifyDeviceFlowError turns a provider or transport error from the device
// flow into a DeviceFlowFailedError with a human-readable reason.
func ClassifyDeviceFlowError(err error) *api.DeviceFlowFailedError {
	if err == nil {
		return nil
	}

	var already *api.DeviceFlowFailedError
	if errors.As(err, &already) {
		return already
	}

	if errors.Is(err, context.Canceled) {
		return &api.DeviceFlowFailedError{Reason: "device authorization was cancelled", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &api.DeviceFlowFailedError{Reason: "device authorization timed out", Err: err}
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "authorization_declined", "access_denied":
			return &api.DeviceFlowFailedError{Reason: "the sign-in request was declined", Err: err}
		case "expired_token", "code_expired":
			return &api.DeviceFlowFailedError{Reason: "the device code expired before sign-in completed", Err: err}
		case "bad_verification_code":
			return &api.DeviceFlowFailedError{Reason: "the identity provider did not recognise the device code", Err: err}
		}
		reason := fmt.Sprintf("identity provider rejected the request (%s)", re.ErrorCode)
		if re.ErrorDescription != "" {
			reason = fmt.Sprintf("%s: %s", reason, redact.Truncate(re.ErrorDescription, maxReasonLen))
		}
		return &api.DeviceFlowFailedError{Reason: reason, Err: err}
	}

	return &api.DeviceFlowFailedError{
		Reason: "could not reach the identity provider: " + redact.Truncate(err.Error(), maxReasonLen),
		Err:    err,
	}
}

// IsInteractionRequired reports whether a silent acquisition failed because
// the user must sign in or consent again.
func IsInteractionRequired(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return errors.Is(err, ErrNoRefreshCredential)
	}
	switch re.ErrorCode {
	case "invalid_grant", "interaction_required", "consent_required", "login_required":
		return true
	}
	return false
}
