// Package app wires insightmcp together.
//
// NewApplication loads the configuration, sets up logging on stderr and
// builds the component graph: token cache, identity provider, token acquirer,
// device authenticator, domain registry, query client, dispatcher and the MCP
// server. Run serves MCP over stdio; the CLI login, status and logout
// commands use the same Services without serving.
package app
