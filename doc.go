// Package auth is the dvsa authentication and session core: password
// hashing, HS256 access tokens, bun backed stores for users, credentials,
// accounts, sessions, profiles and verification requests, and the fiber
// handlers for signup, login, logout and refresh.
//
// Sessions:
//   - A login creates one Session row whose access token expires at the
//     same second as the session. The token goes to the client in the
//     dvsa-auth cookie and response header.
//   - The middleware in middleware/jwtware only verifies the token. It
//     never reads the sessions table, so a deleted session keeps its token
//     usable until exp. Refresh and logout do consult the table.
//   - Expired rows are reaped when they are next looked at, or in bulk
//     through the admin endpoint.
//
// Activity sinks:
//   - ActivitySink receives signup, login, logout, refresh and account
//     events. Sinks run best effort (errors are logged) and are used to
//     feed counters, not as an audit trail.
//
// Errors:
//   - Every failure is a *goerrors.Error with a category, an HTTP code and
//     a text code. ErrorHandler is the single place that turns them into
//     responses.
package auth
