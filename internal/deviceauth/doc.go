// Package deviceauth drives the device authorization grant as explicit,
// polled state.
//
// Start requests a user code and returns it as soon as the identity provider
// supplies one, bounded by a configurable ceiling (20s by default). The wait
// for the user to finish signing in continues in a background goroutine.
// CheckStatus reports none, pending, failed or complete; a completed flow is
// only reported after the session has been handed to the token acquirer and
// all three tokens have been fetched or individually failed.
//
// Only one flow exists at a time. Calling Start while a flow is pending
// returns the same user code. Failures are terminal and never retried; the
// caller starts a new flow.
package deviceauth
