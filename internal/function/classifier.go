package function

import (
	"net/http"
	"strings"

	"github.com/nerrad567/venue-core/internal/auth"
)

// ajaxMarker is the conventional X-Requested-With value of script requests.
const ajaxMarker = "XMLHttpRequest"

// IsAPIRequest reports whether a request wants an API response.
//
// An x-client-type of "api" wins outright. A form or multipart body means
// a browser form post, so it is web even if JSON is accepted. Otherwise
// the request is API iff it accepts or sends JSON or is an AJAX call.
func IsAPIRequest(h http.Header) bool {
	if h.Get("X-Client-Type") == "api" {
		return true
	}

	contentType := h.Get("Content-Type")
	if isFormContentType(contentType) {
		return false
	}

	return strings.Contains(h.Get("Accept"), "application/json") ||
		strings.Contains(contentType, "application/json") ||
		h.Get("X-Requested-With") == ajaxMarker
}

// ResponseFlavor is IsAPIRequest expressed as a flavor.
func ResponseFlavor(h http.Header) auth.Flavor {
	if IsAPIRequest(h) {
		return auth.FlavorAPI
	}
	return auth.FlavorWeb
}

// SelectFlavor combines the flavor the authenticator detected with the
// request classifier. API wins when either of them asks for it.
func SelectFlavor(h http.Header, detected auth.Flavor) auth.Flavor {
	if detected == auth.FlavorAPI || IsAPIRequest(h) {
		return auth.FlavorAPI
	}
	return auth.FlavorWeb
}

func isFormContentType(contentType string) bool {
	return strings.Contains(contentType, "application/x-www-form-urlencoded") ||
		strings.Contains(contentType, "multipart/form-data")
}
