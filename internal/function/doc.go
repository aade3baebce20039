// Package function is the request pipeline shared by every venuecore function.
//
// An Endpoint authenticates the caller, then hands the request to the
// Router, which:
//   - answers OPTIONS with the function's preflight metadata
//   - picks the API or web handler from the negotiated flavor
//   - extracts the id following /{function}/ in the path
//   - parses POST and PUT bodies (JSON, URL-encoded, multipart, or sniffed)
//   - calls the handler operation the verb selects, or answers 501/405
//
// Handlers are plain values implementing any subset of Reader, Creator,
// Updater and Deleter. They return a *Response or an error; *APIError
// values carry their own status and code, anything else becomes a 500.
//
// # Wire format
//
// Success: {"success": true, "data": ..., "meta": ...}
//
// Failure: {"status": 400, "code": "MISSING_ID", "message": "...", "details": {...}}
//
// Headers come from a Profile (api, web, pos, preflight) and depend only
// on the profile, never on the payload.
package function
