// Package tokencache stores scoped access tokens keyed by
// (identity tenant, client id, scope set).
//
// Keys are a hash of the inputs with scopes sorted and de-duplicated, so the
// same logical request always hits the same slot. Entries are read before every
// acquisition and written after every successful one; an entry whose expiry
// has passed is skipped on read and simply overwritten later. There is no
// background eviction: the key space is three scope sets per tenant.
//
// With FileMode enabled each entry is also written to
// ~/.config/insightmcp/tokens/{key}.json (0600) so that a restarted process
// can reuse unexpired tokens without prompting the user again.
package tokencache
