// Package server exposes insightmcp over the Model Context Protocol.
//
// Two groups of tools are registered on an mcp-go server:
//
//   - Authentication tools: start_login, check_login_status, auth_status and
//     logout. Sign-in is always an explicit, caller-visible step.
//   - Analytics tools declared per domain in the configuration. Each tool is
//     bound to its domain at registration; its query template is rendered
//     from the caller's arguments and sent through the dispatcher, which
//     enforces the domain binding.
//
// Every tool returns a JSON text payload or a tool error. Error text never
// includes bearer tokens or full dataset ids.
package server
