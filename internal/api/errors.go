package api

import (
	"errors"
	"fmt"
	"strings"
)

// DeviceFlowFailedError reports a terminal device-authorization failure:
// provider denial, device code expiry, code delivery timeout or network failure.
// It is never retried automatically; the caller must start a new flow.
type DeviceFlowFailedError struct {
	// Reason is a human-readable explanation safe to show to the user.
	Reason string
	// Err is the underlying provider or transport error, if any.
	Err error
}

func (e *DeviceFlowFailedError) Error() string {
	return fmt.Sprintf("device authorization failed: %s", e.Reason)
}

func (e *DeviceFlowFailedError) Unwrap() error {
	return e.Err
}

// AuthenticationRequiredError is returned when no valid token is cached and no
// session exists to acquire one silently. The caller must run the device flow.
type AuthenticationRequiredError struct {
	Kind ScopeKind
}

func (e *AuthenticationRequiredError) Error() string {
	return fmt.Sprintf("authentication required: no valid %s token and no active session; start the device login", e.Kind)
}

// AuthenticationExpiredError is returned when the query API rejects the bearer
// token. The caller must refresh rather than retry with the same token.
type AuthenticationExpiredError struct {
	Kind   ScopeKind
	Status int
	// Reason is taken from the WWW-Authenticate challenge, when present.
	Reason string
}

func (e *AuthenticationExpiredError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("authentication expired: %s token rejected by query API (status %d, %s)", e.Kind, e.Status, e.Reason)
	}
	return fmt.Sprintf("authentication expired: %s token rejected by query API (status %d)", e.Kind, e.Status)
}

// TokenAcquisitionError reports that silent acquisition for one scope kind
// failed, for example because consent was revoked. Callers can inspect Kind to
// decide whether the tool in hand needs that token at all.
type TokenAcquisitionError struct {
	Kind ScopeKind
	Err  error
}

func (e *TokenAcquisitionError) Error() string {
	return fmt.Sprintf("failed to acquire %s token: %v", e.Kind, e.Err)
}

func (e *TokenAcquisitionError) Unwrap() error {
	return e.Err
}

// CrossDomainViolationError is returned when a caller in one domain asks for a
// dataset that is not bound to it. IDs are always stored redacted.
type CrossDomainViolationError struct {
	Tenant string
	// RequestedID is the redacted dataset id the caller asked for.
	RequestedID string
	// OwnerTenant names the domain that owns the requested id, when known.
	OwnerTenant string
}

func (e *CrossDomainViolationError) Error() string {
	if e.OwnerTenant != "" {
		return fmt.Sprintf("cross-domain violation: domain %q may not query dataset %s bound to domain %q",
			e.Tenant, e.RequestedID, e.OwnerTenant)
	}
	return fmt.Sprintf("cross-domain violation: dataset %s is not bound to domain %q", e.RequestedID, e.Tenant)
}

// SchemaValidationFailedError is returned when the preflight check finds that a
// domain's bound dataset lacks the tables its tools expect. The domain stays
// unavailable for the rest of the process lifetime.
type SchemaValidationFailedError struct {
	Tenant         string
	DatasetID      string // redacted
	ExpectedTables []string
	Err            error
}

func (e *SchemaValidationFailedError) Error() string {
	return fmt.Sprintf("schema validation failed for domain %q (dataset %s, expected tables: %s): %v",
		e.Tenant, e.DatasetID, strings.Join(e.ExpectedTables, ", "), e.Err)
}

func (e *SchemaValidationFailedError) Unwrap() error {
	return e.Err
}

// UnknownDomainError is returned when a tenant has no binding.
type UnknownDomainError struct {
	Tenant string
}

func (e *UnknownDomainError) Error() string {
	return fmt.Sprintf("unknown domain %q: no dataset binding configured", e.Tenant)
}

// QueryFailedError is a non-authentication failure reported by the query API.
type QueryFailedError struct {
	Status  int
	Code    string
	Message string
}

func (e *QueryFailedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("query failed (status %d, %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("query failed (status %d): %s", e.Status, e.Message)
}

// IsDeviceFlowFailed checks if an error is or wraps a DeviceFlowFailedError.
func IsDeviceFlowFailed(err error) bool {
	var target *DeviceFlowFailedError
	return errors.As(err, &target)
}

// IsAuthenticationRequired checks if an error is or wraps an AuthenticationRequiredError.
func IsAuthenticationRequired(err error) bool {
	var target *AuthenticationRequiredError
	return errors.As(err, &target)
}

// IsAuthenticationExpired checks if an error is or wraps an AuthenticationExpiredError.
func IsAuthenticationExpired(err error) bool {
	var target *AuthenticationExpiredError
	return errors.As(err, &target)
}

// IsTokenAcquisition checks if an error is or wraps a TokenAcquisitionError.
func IsTokenAcquisition(err error) bool {
	var target *TokenAcquisitionError
	return errors.As(err, &target)
}

// IsCrossDomainViolation checks if an error is or wraps a CrossDomainViolationError.
func IsCrossDomainViolation(err error) bool {
	var target *CrossDomainViolationError
	return errors.As(err, &target)
}

// IsSchemaValidationFailed checks if an error is or wraps a SchemaValidationFailedError.
func IsSchemaValidationFailed(err error) bool {
	var target *SchemaValidationFailedError
	return errors.As(err, &target)
}

// IsUnknownDomain checks if an error is or wraps an UnknownDomainError.
func IsUnknownDomain(err error) bool {
	var target *UnknownDomainError
	return errors.As(err, &target)
}

// IsQueryFailed checks if an error is or wraps a QueryFailedError.
func IsQueryFailed(err error) bool {
	var target *QueryFailedError
	return errors.As(err, &target)
}

// IsAuthError reports whether err means the user has to (re)authenticate.
func IsAuthError(err error) bool {
	return IsAuthenticationRequired(err) || IsAuthenticationExpired(err) || IsTokenAcquisition(err)
}
