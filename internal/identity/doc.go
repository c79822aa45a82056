// Package identity is the boundary to the identity provider.
//
// Provider has two operations: BeginDeviceFlow drives the device
// authorization grant and returns an in-memory Session once the user has
// signed in, and AcquireSilently redeems the session's refresh credential for
// a token with a specific scope set. EntraProvider implements both against
// the Microsoft identity platform; tests use the mock server in
// internal/testing/mock.
package identity
