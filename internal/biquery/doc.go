// Package biquery is a minimal client for the Power BI executeQueries API.
//
// The client is stateless apart from its base URL and timeout: the bearer is
// passed on every call and attached through an oauth2.Transport. Rows are
// returned exactly as the service sends them.
package biquery
