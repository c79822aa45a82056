// Package dispatcher routes analytics tool calls to the BI query API.
//
// Every call passes the domain preflight and the domain guard before a
// bearer token is fetched, and a rejected call never reaches the network.
// The dispatcher does not start interactive logins: a missing session
// surfaces as AuthenticationRequiredError and a rejected token as
// AuthenticationExpiredError.
package dispatcher
