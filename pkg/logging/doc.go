// Package logging provides the process-wide structured logger for insightmcp.
//
// It is a thin layer over log/slog that tags every entry with a subsystem and
// accepts printf-style messages:
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("Dispatcher", "executing %s", toolName)
//	logging.Error("DeviceAuth", err, "device flow failed")
//
// Output always goes to the writer passed to Init. When running as an MCP
// server the writer must not be stdout, which carries the protocol.
//
// Security-sensitive operations (token writes, logouts, domain violations)
// use Audit, which emits a "SECURITY_AUDIT:" prefixed INFO entry with an
// "event" attribute for filtering. Callers are responsible for passing only
// redacted values.
package logging
