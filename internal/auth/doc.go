// Package auth authenticates function callers and hands out client handles.
//
// Every request is classified once as a POS device, a user session or an
// anonymous caller:
//   - POS devices prove possession of their registered RSA key by signing
//     the canonical JSON of the request body (or {"data": <posId>} for
//     bodiless verbs) and presenting an active, unexpired challenge token
//   - User sessions forward their Authorization header to a
//     SessionClientFactory; local deployments verify the HS256 token here
//   - Anonymous callers get a client from an AnonymousClientFactory
//
// The factories are injected, so the Authenticator never reaches for
// global clients. A Client is a datastore.Store bound to one caller plus
// the Principal it acts for; a Policy decides which tables that principal
// may change.
//
// Authentication failures are returned as *Error carrying the HTTP status
// and a stable code. Expired and unknown POS tokens share status 401 but
// differ in message so devices can tell them apart.
package auth
