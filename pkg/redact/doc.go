// Package redact keeps secrets and tenant identifiers out of logs and error text.
//
// Bearer credentials travel as Token values, which print as "[REDACTED]".
// Dataset, workspace and account identifiers pass through ID before they
// appear in any log line or user-visible message.
package redact
