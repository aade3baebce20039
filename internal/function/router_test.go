package function

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/venue-core/internal/auth"
)

// recordingHandler implements every operation and remembers the last call.
type recordingHandler struct {
	name   string
	op     string
	id     string
	body   ParsedBody
	err    error
	panics bool
}

func (h *recordingHandler) result() (*Response, error) {
	if h.panics {
		panic("handler exploded")
	}
	if h.err != nil {
		return nil, h.err
	}
	return Success(map[string]any{"handler": h.name, "op": h.op, "id": h.id}), nil
}

func (h *recordingHandler) Read(_ context.Context, req *Request) (*Response, error) {
	h.op, h.id = "read", req.ID
	return h.result()
}

func (h *recordingHandler) Create(_ context.Context, req *Request, body ParsedBody) (*Response, error) {
	h.op, h.id, h.body = "create", req.ID, body
	return h.result()
}

func (h *recordingHandler) Update(_ context.Context, req *Request, body ParsedBody) (*Response, error) {
	h.op, h.id, h.body = "update", req.ID, body
	return h.result()
}

func (h *recordingHandler) Delete(_ context.Context, req *Request) (*Response, error) {
	h.op, h.id = "delete", req.ID
	return h.result()
}

// readOnlyHandler only serves GET.
type readOnlyHandler struct{}

func (readOnlyHandler) Read(context.Context, *Request) (*Response, error) {
	return Success([]any{}), nil
}

func apiContext() *auth.AuthContext {
	return &auth.AuthContext{Type: auth.AuthAnon, Flavor: auth.FlavorAPI}
}

func serve(t *testing.T, r *http.Request, ac *auth.AuthContext, api, web Handler) *httptest.ResponseRecorder {
	t.Helper()
	resp := NewRouter(nil).HandleRequest(r, ac, api, web, "countries")
	if resp == nil {
		t.Fatal("HandleRequest() returned nil")
	}
	rec := httptest.NewRecorder()
	resp.Write(rec)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding success body %q: %v", rec.Body.String(), err)
	}
	if !env.Success {
		t.Fatalf("success = false in %s", rec.Body.String())
	}
	return env.Data
}

func TestRouter_Preflight(t *testing.T) {
	r := httptest.NewRequest(http.MethodOptions, "/functions/v1/countries", nil)
	rec := serve(t, r, nil, readOnlyHandler{}, readOnlyHandler{})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body PreflightBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding preflight: %v", err)
	}
	if !body.Success || body.Status != "active" || body.Function != "countries" || body.Version != Version {
		t.Errorf("preflight = %+v", body)
	}
	want := []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	if strings.Join(body.Methods, ",") != strings.Join(want, ",") {
		t.Errorf("methods = %v, want %v", body.Methods, want)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "" {
		t.Errorf("preflight Cache-Control = %q, want none", got)
	}
}

func TestRouter_Dispatch(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		wantOp string
		wantID string
	}{
		{"collection read", http.MethodGet, "/functions/v1/countries", "", "read", ""},
		{"item read", http.MethodGet, "/functions/v1/countries/mt", "", "read", "mt"},
		{"escaped id", http.MethodGet, "/functions/v1/countries/a%2Fb", "", "read", "a/b"},
		{"create", http.MethodPost, "/functions/v1/countries", `{"name":"Malta"}`, "create", ""},
		{"update", http.MethodPut, "/functions/v1/countries/42", `{"name":"Malta"}`, "update", "42"},
		{"delete", http.MethodDelete, "/functions/v1/countries/42", "", "delete", "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{name: "api"}
			r := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			rec := serve(t, r, apiContext(), h, &recordingHandler{name: "web"})

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if h.op != tt.wantOp || h.id != tt.wantID {
				t.Errorf("op, id = %q, %q; want %q, %q", h.op, h.id, tt.wantOp, tt.wantID)
			}
			if tt.body != "" && h.body["name"] != "Malta" {
				t.Errorf("body = %#v", h.body)
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q", got)
			}
		})
	}
}

func TestRouter_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		handler    Handler
		wantStatus int
		wantCode   string
	}{
		{"put without id", http.MethodPut, "/functions/v1/countries", `{}`, &recordingHandler{}, 400, CodeMissingID},
		{"delete without id", http.MethodDelete, "/functions/v1/countries/", "", &recordingHandler{}, 400, CodeMissingID},
		{"invalid json", http.MethodPost, "/functions/v1/countries", "invalid json", &recordingHandler{}, 400, CodeInvalidPayload},
		{"no creator", http.MethodPost, "/functions/v1/countries", `{}`, readOnlyHandler{}, 501, CodeNotImplemented},
		{"no updater", http.MethodPut, "/functions/v1/countries/1", `{}`, readOnlyHandler{}, 501, CodeNotImplemented},
		{"no deleter", http.MethodDelete, "/functions/v1/countries/1", "", readOnlyHandler{}, 501, CodeNotImplemented},
		{"nil handler", http.MethodGet, "/functions/v1/countries", "", nil, 501, CodeNotImplemented},
		{"patch", http.MethodPatch, "/functions/v1/countries/1", `{}`, &recordingHandler{}, 405, CodeMethodNotAllowed},
		{"typed error", http.MethodGet, "/functions/v1/countries/9", "", &recordingHandler{err: NotFound("Country not found")}, 404, CodeNotFound},
		{"untyped error", http.MethodGet, "/functions/v1/countries", "", &recordingHandler{err: errors.New("db down")}, 500, CodeInternal},
		{"forbidden", http.MethodDelete, "/functions/v1/countries/1", "", &recordingHandler{err: auth.ErrForbidden}, 403, CodeForbidden},
		{"panic", http.MethodGet, "/functions/v1/countries", "", &recordingHandler{panics: true}, 500, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			rec := serve(t, r, apiContext(), tt.handler, nil)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			env := decodeError(t, rec)
			if env.Status != tt.wantStatus || env.Code != tt.wantCode {
				t.Errorf("envelope = %+v, want %d %s", env, tt.wantStatus, tt.wantCode)
			}
			if env.Message == "" {
				t.Error("message is empty")
			}
		})
	}
}

func TestRouter_InternalErrorDetails(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/functions/v1/countries", nil)
	rec := serve(t, r, apiContext(), &recordingHandler{err: errors.New("db down")}, nil)

	env := decodeError(t, rec)
	if env.Message != "Internal server error" {
		t.Errorf("message = %q", env.Message)
	}
	if env.Details["error"] != "db down" {
		t.Errorf("details = %v", env.Details)
	}
}

func TestRouter_FlavorSelectsHandler(t *testing.T) {
	tests := []struct {
		name        string
		ac          *auth.AuthContext
		accept      string
		wantHandler string
		wantType    string
	}{
		{"api context", &auth.AuthContext{Type: auth.AuthUser, Flavor: auth.FlavorAPI}, "text/html", "api", "application/json"},
		{"web context", &auth.AuthContext{Type: auth.AuthUser, Flavor: auth.FlavorWeb}, "text/html", "web", "text/html; charset=utf-8"},
		{"web context accepting json", &auth.AuthContext{Type: auth.AuthUser, Flavor: auth.FlavorWeb}, "application/json, text/html", "api", "application/json"},
		{"pos context", &auth.AuthContext{Type: auth.AuthPOS, Flavor: auth.FlavorAPI}, "", "api", "application/json"},
		{"no context json", nil, "application/json", "api", "application/json"},
		{"no context browser", nil, "text/html", "web", "text/html; charset=utf-8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/functions/v1/countries", nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			rec := serve(t, r, tt.ac, &recordingHandler{name: "api"}, &recordingHandler{name: "web"})

			data := decodeSuccess(t, rec)
			if data["handler"] != tt.wantHandler {
				t.Errorf("handler = %v, want %s", data["handler"], tt.wantHandler)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestRouter_ErrorUsesRequestProfile(t *testing.T) {
	r := httptest.NewRequest(http.MethodPut, "/functions/v1/countries", strings.NewReader(`{}`))
	ac := &auth.AuthContext{Type: auth.AuthUser, Flavor: auth.FlavorWeb}
	rec := serve(t, r, ac, nil, &recordingHandler{})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Security-Policy"); got == "" {
		t.Error("web error response missing Content-Security-Policy")
	}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/functions/v1/countries", ""},
		{"/functions/v1/countries/", ""},
		{"/functions/v1/countries/abc", "abc"},
		{"/functions/v1/countries/abc/", "abc"},
		{"/countries/abc", "abc"},
		{"/functions/v1/countries/abc/extra", ""},
		{"/functions/v1/countries/x/countries/y", "y"},
		{"/functions/v1/regions/abc", ""},
		{"/functions/v1/countries/New%20York", "New York"},
		{"/functions/v1/countries/bad%zz", "bad%zz"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ExtractID(tt.path, "countries"); got != tt.want {
				t.Errorf("ExtractID(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
