// Package auth issues and verifies bearer tokens for the control API.
//
// Tokens are HS256 JWTs carrying a subject, a role and a random JTI. There
// is no user store: an operator mints tokens with `probekit token` using
// the configured secret, and the API validates them by signature alone.
//
// Two roles exist. Viewers may read tester state, the archive and the
// event stream. Operators may additionally drive the testers.
package auth
