// Package acquirer implements the token acquirer: given the session held in
// an AuthState, it yields valid bearers for the Primary, Profile and
// DelegatedApi scope sets.
//
// Every request goes to the token cache first. On a miss the provider's
// silent acquisition is called for exactly that kind's scopes and the result
// is written back. Concurrent misses for one kind share a single provider
// call. Each kind expires and refreshes independently.
package acquirer
