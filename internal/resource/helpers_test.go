package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/venue-core/internal/auth"
	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/events"
	"github.com/nerrad567/venue-core/internal/function"
	"github.com/nerrad567/venue-core/internal/infrastructure/database"
	_ "github.com/nerrad567/venue-core/migrations"
)

// testClock hands out strictly increasing times one second apart.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// openTestStore creates a temp-file SQLite store with the real migrations applied.
func openTestStore(t *testing.T) *datastore.SQLStore {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "resource.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Migrate(t.Context()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return datastore.NewSQLStore(db.DB)
}

// testEnv is a store, an admin client and the deps the handlers share.
type testEnv struct {
	store  *datastore.SQLStore
	admin  *auth.Client
	events *events.Recorder
	deps   Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := openTestStore(t)
	rec := &events.Recorder{}
	return &testEnv{
		store:  store,
		admin:  &auth.Client{Store: store, Principal: auth.Principal{ID: "user-1", Role: auth.RoleAdmin}},
		events: rec,
		deps: Deps{
			Policy: auth.NewStorePolicy(store),
			Events: rec,
			Now:    newTestClock().Now,
		},
	}
}

func (e *testEnv) clientWithRole(role string) *auth.Client {
	return &auth.Client{Store: e.store, Principal: auth.Principal{ID: "user-" + role, Role: role}}
}

// definition returns the named catalog definition.
func (e *testEnv) definition(t *testing.T, name string) *Definition {
	t.Helper()
	for _, d := range Definitions(nil, e.deps) {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no definition named %q", name)
	return nil
}

// newRequest builds a function request for client against /functions/v1/{path}.
func newRequest(client *auth.Client, method, path string) *function.Request {
	r := httptest.NewRequest(method, "/functions/v1/"+path, nil)
	resource, _, _ := strings.Cut(path, "/")
	resource, _, _ = strings.Cut(resource, "?")
	authType := auth.AuthUser
	if client != nil && client.Principal.Role == auth.RolePOS {
		authType = auth.AuthPOS
	}
	return &function.Request{
		HTTP:  r,
		Auth:  &auth.AuthContext{Client: client, Type: authType, Flavor: auth.FlavorAPI},
		ID:    function.ExtractID(r.URL.EscapedPath(), resource),
		Query: r.URL.Query(),
	}
}

// writeResponse writes resp and decodes its body into a generic map.
func writeResponse(t *testing.T, resp *function.Response) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	resp.Write(rec)
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding %s: %v", rec.Body.String(), err)
	}
	return rec.Code, body
}

// successData returns the envelope's data object.
func successData(t *testing.T, resp *function.Response) map[string]any {
	t.Helper()
	code, body := writeResponse(t, resp)
	if code >= http.StatusBadRequest {
		t.Fatalf("status = %d, body %v", code, body)
	}
	d, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %#v, want object", body["data"])
	}
	return d
}

// wantAPIError asserts err is an *function.APIError with status and code.
func wantAPIError(t *testing.T, err error, status int, code string) *function.APIError {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %d %s", status, code)
	}
	apiErr := function.AsAPIError(err)
	if apiErr.Status != status || apiErr.Code != code {
		t.Fatalf("error = %d %s (%v), want %d %s", apiErr.Status, apiErr.Code, err, status, code)
	}
	return apiErr
}

// mustCreate creates a row through the collection and returns its id.
func mustCreate(t *testing.T, c *Collection, client *auth.Client, body function.ParsedBody) string {
	t.Helper()
	resp, err := c.Create(context.Background(), newRequest(client, http.MethodPost, c.def.Name), body)
	if err != nil {
		t.Fatalf("Create(%v) error = %v", body, err)
	}
	id, _ := successData(t, resp)["id"].(string)
	if id == "" {
		t.Fatal("created row has no id")
	}
	return id
}
