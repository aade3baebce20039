package datastore

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestREST(t *testing.T, h http.HandlerFunc) *PostgREST {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := NewPostgREST(RESTConfig{
		URL:         srv.URL + "/",
		APIKey:      "anon-key",
		AccessToken: "user-jwt",
		Headers:     map[string]string{"pos-id": "pos-1"},
	})
	if err != nil {
		t.Fatalf("NewPostgREST() error = %v", err)
	}
	return p
}

func TestNewPostgREST_Validation(t *testing.T) {
	if _, err := NewPostgREST(RESTConfig{APIKey: "k"}); err == nil {
		t.Error("NewPostgREST() without URL should fail")
	}
	if _, err := NewPostgREST(RESTConfig{URL: "http://localhost"}); err == nil {
		t.Error("NewPostgREST() without API key should fail")
	}
}

func TestPostgREST_Select(t *testing.T) {
	p := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/banners" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-jwt" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("pos-id"); got != "pos-1" {
			t.Errorf("pos-id = %q", got)
		}

		q := r.URL.Query()
		want := map[string]string{
			"select":        "*",
			"deleted_at":    "is.null",
			"active":        "eq.true",
			"redirect_link": "ilike.*promo*",
			"max_clicks":    "gte.2.5",
			"order":         "created_at.desc",
			"limit":         "20",
			"offset":        "40",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("query %s = %q, want %q", k, got, v)
			}
		}
		w.Write([]byte(`[{"id":"b1","current_clicks":3,"ratio":0.5,"active":true}]`))
	})

	rows, err := p.Select(t.Context(), From("banners").
		IsNull("deleted_at").
		Eq("active", true).
		ILike("redirect_link", "promo").
		Gte("max_clicks", 2.5).
		OrderBy("created_at", true).
		Range(40, 20))
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if n, ok := rows[0].Int("current_clicks"); !ok || n != 3 {
		t.Errorf("current_clicks = %#v, want int64 3", rows[0]["current_clicks"])
	}
	if rows[0]["ratio"] != 0.5 {
		t.Errorf("ratio = %#v, want 0.5", rows[0]["ratio"])
	}
}

func TestPostgREST_Count(t *testing.T) {
	tests := []struct {
		name         string
		contentRange string
		want         int
		wantErr      bool
	}{
		{"total", "0-19/42", 42, false},
		{"empty", "*/0", 0, false},
		{"unknown total", "0-19/*", 0, true},
		{"missing", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("method = %s, want HEAD", r.Method)
				}
				if got := r.Header.Get("Prefer"); got != "count=exact" {
					t.Errorf("Prefer = %q", got)
				}
				if tt.contentRange != "" {
					w.Header().Set("Content-Range", tt.contentRange)
				}
			})

			got, err := p.Count(t.Context(), From("countries").IsNull("deleted_at"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Count() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPostgREST_InsertAndUpdate(t *testing.T) {
	p := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Prefer"); got != "return=representation" {
			t.Errorf("Prefer = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}

		switch r.Method {
		case http.MethodPost:
			payload["id"] = "new-id"
			json.NewEncoder(w).Encode([]map[string]any{payload})
		case http.MethodPatch:
			if got := r.URL.Query().Get("id"); got != "eq.c1" {
				t.Errorf("id filter = %q", got)
			}
			payload["id"] = "c1"
			json.NewEncoder(w).Encode([]map[string]any{payload})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	created, err := p.Insert(t.Context(), "countries", Row{"name": "Portugal"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if created.String("id") != "new-id" || created.String("name") != "Portugal" {
		t.Errorf("Insert() = %v", created)
	}

	updated, err := UpdateOne(t.Context(), p, From("countries").Eq("id", "c1"), Row{"name": "Spain"})
	if err != nil {
		t.Fatalf("UpdateOne() error = %v", err)
	}
	if updated.String("name") != "Spain" {
		t.Errorf("UpdateOne() = %v", updated)
	}
}

func TestPostgREST_RemoteErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"conflict", http.StatusConflict, `{"code":"23505","message":"duplicate key value"}`, ErrConflict},
		{"not found", http.StatusNotAcceptable, `{"code":"PGRST116","message":"0 rows"}`, ErrNotFound},
		{"forbidden", http.StatusForbidden, `{"code":"42501","message":"permission denied"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := p.Select(t.Context(), From("countries"))
			var re *RemoteError
			if !errors.As(err, &re) {
				t.Fatalf("Select() error = %v, want *RemoteError", err)
			}
			if re.Status != tt.status {
				t.Errorf("Status = %d, want %d", re.Status, tt.status)
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
		})
	}
}

func TestPostgREST_HealthCheck(t *testing.T) {
	p := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if err := p.HealthCheck(t.Context()); err == nil {
		t.Error("HealthCheck() error = nil for 503")
	}
}
