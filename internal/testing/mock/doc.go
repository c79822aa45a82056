// Package mock provides test doubles for insightmcp's external collaborators.
//
// IdentityServer mimics the Microsoft identity platform device code and
// token endpoints: tests call Approve, Decline or RevokeConsent to steer the
// device flow and silent acquisition. QueryServer mimics the Power BI
// executeQueries endpoint, records every call, and can simulate expired
// bearers and missing tables. MockClock lets tests move time forward to
// expire cached tokens.
package mock
