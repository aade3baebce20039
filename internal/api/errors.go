package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/venue-core/internal/function"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes e in the function error envelope with the API headers.
func writeError(w http.ResponseWriter, e *function.APIError) {
	function.ErrorResponse(e).Write(w)
}
