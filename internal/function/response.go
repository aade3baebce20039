package function

import (
	"encoding/json"
	"maps"
	"net/http"
)

// Envelope is the body of every successful response.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Response is a rendered function result.
type Response struct {
	Status int
	Body   any

	// Profile picks the header set. Empty means the router decides from
	// the request flavor and caller type.
	Profile Profile

	// Header holds extra headers written after the profile's.
	Header http.Header
}

// Success returns a 200 response wrapping data.
func Success(data any) *Response {
	return &Response{Status: http.StatusOK, Body: Envelope{Success: true, Data: data}}
}

// SuccessWithMeta returns a 200 response wrapping data and meta.
func SuccessWithMeta(data any, meta map[string]any) *Response {
	return &Response{Status: http.StatusOK, Body: Envelope{Success: true, Data: data, Meta: meta}}
}

// Created returns a 201 response. A non-empty id is merged into data.
func Created(data map[string]any, id string) *Response {
	out := make(map[string]any, len(data)+1)
	maps.Copy(out, data)
	if id != "" {
		out["id"] = id
	}
	return &Response{Status: http.StatusCreated, Body: Envelope{Success: true, Data: out}}
}

// ErrorResponse renders e as a failed response.
func ErrorResponse(e *APIError) *Response {
	return &Response{Status: e.Status, Body: e.Envelope()}
}

// With returns r using profile p.
func (r *Response) With(p Profile) *Response {
	r.Profile = p
	return r
}

// Write sends r on w. The profile headers are set first, then r.Header.
func (r *Response) Write(w http.ResponseWriter) {
	profile := r.Profile
	if profile == "" {
		profile = ProfileAPI
	}

	h := w.Header()
	for k, v := range profile.Headers() {
		h[k] = v
	}
	for k, v := range r.Header {
		h[k] = v
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Body != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(r.Body)
	}
}
