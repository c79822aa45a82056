// Package api holds the types shared between insightmcp's components: the
// scope kinds of the three session tokens, the small interfaces through which
// the dispatcher reaches the token acquirer and the query client, and the
// error taxonomy.
//
// # Errors
//
// Every failure a tool caller can observe maps to one typed error:
//
//   - DeviceFlowFailedError: provider denial, device code expiry or timeout
//   - AuthenticationRequiredError: no cached token and no session
//   - AuthenticationExpiredError: the query API rejected the bearer (401)
//   - TokenAcquisitionError: silent acquisition failed for one scope kind
//   - CrossDomainViolationError: a dataset outside the caller's domain was requested
//   - SchemaValidationFailedError: preflight found missing tables
//   - UnknownDomainError, QueryFailedError
//
// Use the Is* helpers, which unwrap, rather than type assertions. Error text
// never contains bearer values or full dataset/workspace identifiers.
package api
