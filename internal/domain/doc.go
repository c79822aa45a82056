// Package domain holds the static tenant-to-dataset bindings and the guard
// that enforces them.
//
// Every query is resolved through Registry.Resolve before a token is attached
// or any request is sent. A dataset id outside the tenant's own binding is
// rejected with a CrossDomainViolationError; there is no fallback to another
// dataset. Registry.Preflight runs one schema check per tenant per process
// and remembers schema failures so a misconfigured domain stays unavailable.
package domain
