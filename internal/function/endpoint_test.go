package function

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/venue-core/internal/auth"
)

type stubAuthenticator struct {
	ac    *auth.AuthContext
	err   error
	calls int
}

func (s *stubAuthenticator) Authenticate(*http.Request) (*auth.AuthContext, error) {
	s.calls++
	return s.ac, s.err
}

type invocationLog struct {
	mu   sync.Mutex
	seen []Invocation
}

func (l *invocationLog) observe(inv Invocation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, inv)
}

func TestEndpoint_ServesAuthenticatedRequest(t *testing.T) {
	authn := &stubAuthenticator{ac: &auth.AuthContext{Type: auth.AuthUser, Flavor: auth.FlavorAPI}}
	log := &invocationLog{}
	ep := NewEndpoint("countries", &recordingHandler{name: "api"}, nil, EndpointDeps{
		Authenticator: authn,
		Observer:      log.observe,
	})
	if ep.Name() != "countries" {
		t.Errorf("Name() = %q", ep.Name())
	}

	rec := httptest.NewRecorder()
	ep.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/functions/v1/countries/mt", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if data := decodeSuccess(t, rec); data["id"] != "mt" {
		t.Errorf("data = %v", data)
	}
	if len(log.seen) != 1 {
		t.Fatalf("observer called %d times, want 1", len(log.seen))
	}
	inv := log.seen[0]
	if inv.Function != "countries" || inv.Method != http.MethodGet || inv.Status != http.StatusOK || inv.AuthType != auth.AuthUser {
		t.Errorf("invocation = %+v", inv)
	}
}

func TestEndpoint_PreflightSkipsAuthentication(t *testing.T) {
	authn := &stubAuthenticator{err: &auth.Error{Status: 401, Code: auth.CodeUnauthorized, Message: "nope"}}
	ep := NewEndpoint("countries", readOnlyHandler{}, readOnlyHandler{}, EndpointDeps{Authenticator: authn})

	rec := httptest.NewRecorder()
	ep.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/functions/v1/countries", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if authn.calls != 0 {
		t.Errorf("Authenticate called %d times on preflight", authn.calls)
	}
	if !strings.Contains(rec.Body.String(), `"status":"active"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestEndpoint_RendersAuthFailure(t *testing.T) {
	tests := []struct {
		name        string
		headers     map[string]string
		err         error
		wantStatus  int
		wantCode    string
		wantCSP     bool
		wantMessage string
	}{
		{
			name: "pos signature",
			headers: map[string]string{
				"pos-id": "pos-1", "pos-authorization": "tok", "signature": "!!",
			},
			err:         &auth.Error{Status: 401, Code: auth.CodeInvalidSignatureFormat, Message: "Signature is not valid base64"},
			wantStatus:  401,
			wantCode:    auth.CodeInvalidSignatureFormat,
			wantMessage: "Signature is not valid base64",
		},
		{
			name:        "browser user",
			headers:     map[string]string{"Authorization": "Bearer x", "Accept": "text/html"},
			err:         &auth.Error{Status: 401, Code: auth.CodeUnauthorized, Message: "Invalid authorization token"},
			wantStatus:  401,
			wantCode:    auth.CodeUnauthorized,
			wantCSP:     true,
			wantMessage: "Invalid authorization token",
		},
		{
			name:        "anonymous backend failure",
			err:         &auth.Error{Status: 500, Code: CodeInternal, Message: "Anonymous authentication failed"},
			wantStatus:  500,
			wantCode:    CodeInternal,
			wantMessage: "Anonymous authentication failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &invocationLog{}
			h := &recordingHandler{}
			ep := NewEndpoint("countries", h, h, EndpointDeps{
				Authenticator: &stubAuthenticator{err: tt.err},
				Observer:      log.observe,
			})

			r := httptest.NewRequest(http.MethodGet, "/functions/v1/countries", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			ep.ServeHTTP(rec, r)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			env := decodeError(t, rec)
			if env.Code != tt.wantCode || env.Message != tt.wantMessage {
				t.Errorf("envelope = %+v", env)
			}
			if hasCSP := rec.Header().Get("Content-Security-Policy") != ""; hasCSP != tt.wantCSP {
				t.Errorf("Content-Security-Policy present = %v, want %v", hasCSP, tt.wantCSP)
			}
			if h.op != "" {
				t.Errorf("handler ran (%s) after failed authentication", h.op)
			}
			if len(log.seen) != 1 || log.seen[0].Status != tt.wantStatus {
				t.Errorf("observed = %+v", log.seen)
			}
		})
	}
}

type anonymousFactory struct{}

func (anonymousFactory) Anonymous(context.Context) (*auth.Client, error) {
	return &auth.Client{}, nil
}

func TestEndpoint_ClassifierSelectsFlavor(t *testing.T) {
	authn := auth.NewAuthenticator(auth.Deps{Anonymous: anonymousFactory{}})

	tests := []struct {
		name        string
		headers     map[string]string
		wantHandler string
		wantType    string
		wantFlavor  auth.Flavor
	}{
		{"client type api over html", map[string]string{"X-Client-Type": "api", "Accept": "text/html"}, "api", "application/json", auth.FlavorAPI},
		{"json and html accepted", map[string]string{"Accept": "application/json, text/html"}, "api", "application/json", auth.FlavorAPI},
		{"ajax browser", map[string]string{"X-Requested-With": "XMLHttpRequest", "Accept": "text/html"}, "api", "application/json", auth.FlavorAPI},
		{"plain browser", map[string]string{"Accept": "text/html"}, "web", "text/html; charset=utf-8", auth.FlavorWeb},
		{"no headers", nil, "api", "application/json", auth.FlavorAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &invocationLog{}
			ep := NewEndpoint("countries", &recordingHandler{name: "api"}, &recordingHandler{name: "web"}, EndpointDeps{
				Authenticator: authn,
				Observer:      log.observe,
			})

			r := httptest.NewRequest(http.MethodGet, "/functions/v1/countries", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			ep.ServeHTTP(rec, r)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if data := decodeSuccess(t, rec); data["handler"] != tt.wantHandler {
				t.Errorf("handler = %v, want %s", data["handler"], tt.wantHandler)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if len(log.seen) != 1 || log.seen[0].Flavor != tt.wantFlavor {
				t.Errorf("observed = %+v, want flavor %s", log.seen, tt.wantFlavor)
			}
		})
	}
}

func TestEndpoint_AuthFailureUsesClassifier(t *testing.T) {
	ep := NewEndpoint("countries", readOnlyHandler{}, readOnlyHandler{}, EndpointDeps{
		Authenticator: &stubAuthenticator{err: &auth.Error{Status: 401, Code: auth.CodeUnauthorized, Message: "Invalid authorization token"}},
	})

	r := httptest.NewRequest(http.MethodGet, "/functions/v1/countries", nil)
	r.Header.Set("Authorization", "Bearer x")
	r.Header.Set("Accept", "text/html")
	r.Header.Set("X-Client-Type", "api")
	rec := httptest.NewRecorder()
	ep.ServeHTTP(rec, r)

	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if rec.Header().Get("Content-Security-Policy") != "" {
		t.Error("api error carries the web Content-Security-Policy")
	}
}
