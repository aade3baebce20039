package function

import (
	"net/http"

	"github.com/nerrad567/venue-core/internal/auth"
)

// Profile selects the header set a response is written with.
type Profile string

const (
	// ProfileAPI is CORS, JSON and strict no-store security headers.
	ProfileAPI Profile = "api"

	// ProfileWeb is CORS, HTML content type, a CSP and cacheable headers.
	ProfileWeb Profile = "web"

	// ProfilePOS is the API profile for POS devices.
	ProfilePOS Profile = "pos"

	// ProfilePreflight is CORS and JSON only.
	ProfilePreflight Profile = "preflight"
)

// CORS header values shared by every profile.
const (
	CORSAllowOrigin  = "*"
	CORSAllowHeaders = "authorization, x-client-info, apikey, content-type, device-id, signature, pos-authorization, pos-id"
	CORSAllowMethods = "POST, GET, OPTIONS, PUT, DELETE"
)

const webCSP = "default-src 'self'; img-src 'self' data: https:; script-src 'self' 'unsafe-inline'"

// ProfileFor returns the profile for a request flavor and caller type.
func ProfileFor(flavor auth.Flavor, authType auth.AuthType) Profile {
	switch {
	case flavor == auth.FlavorWeb:
		return ProfileWeb
	case authType == auth.AuthPOS:
		return ProfilePOS
	default:
		return ProfileAPI
	}
}

// Headers returns the header set of profile p.
// The result is a fresh map and depends on nothing but p.
func (p Profile) Headers() http.Header {
	h := CORSHeaders()
	switch p {
	case ProfileWeb:
		h.Set("Content-Type", "text/html; charset=utf-8")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Content-Security-Policy", webCSP)
		h.Set("Cache-Control", "public, max-age=3600")
	case ProfilePreflight:
		h.Set("Content-Type", "application/json")
	default:
		h.Set("Content-Type", "application/json")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Cache-Control", "no-store, max-age=0")
	}
	return h
}

// CORSHeaders returns only the CORS headers.
func CORSHeaders() http.Header {
	h := http.Header{}
	h.Set("Access-Control-Allow-Origin", CORSAllowOrigin)
	h.Set("Access-Control-Allow-Headers", CORSAllowHeaders)
	h.Set("Access-Control-Allow-Methods", CORSAllowMethods)
	return h
}
