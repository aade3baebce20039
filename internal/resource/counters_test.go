package resource

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/venue-core/internal/auth"
	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/function"
)

func createBanner(t *testing.T, env *testEnv, body function.ParsedBody) string {
	t.Helper()
	c := NewCollection(bannersDefinition(nil, env.deps.Now), env.deps)
	return mustCreate(t, c, env.admin, body)
}

func TestIncrementCounter(t *testing.T) {
	type step struct {
		wantClicks int64
		wantActive bool
	}
	tests := []struct {
		name   string
		banner function.ParsedBody
		steps  []step
	}{
		{
			name:   "unlimited",
			banner: function.ParsedBody{"name": "A"},
			steps:  []step{{1, true}, {2, true}, {3, true}},
		},
		{
			name:   "reaching max deactivates",
			banner: function.ParsedBody{"name": "B", "max_clicks": float64(2)},
			steps:  []step{{1, true}, {2, false}, {2, false}},
		},
		{
			name:   "over max only deactivates",
			banner: function.ParsedBody{"name": "C", "max_clicks": float64(2), "current_clicks": float64(5)},
			steps:  []step{{5, false}, {5, false}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			id := createBanner(t, env, tt.banner)

			for i, s := range tt.steps {
				row, err := IncrementCounter(t.Context(), env.store, ClicksCounter, id, env.deps.Now)
				if err != nil {
					t.Fatalf("step %d: IncrementCounter() error = %v", i, err)
				}
				clicks, _ := row.Int(colCurrentClicks)
				if clicks != s.wantClicks || row.Bool(colActive) != s.wantActive {
					t.Errorf("step %d: clicks=%d active=%v, want %d %v", i, clicks, row.Bool(colActive), s.wantClicks, s.wantActive)
				}
			}
		})
	}
}

func TestIncrementCounter_CountersAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	id := createBanner(t, env, function.ParsedBody{"name": "A", "max_displays": float64(1)})

	row, err := IncrementCounter(t.Context(), env.store, DisplaysCounter, id, env.deps.Now)
	if err != nil {
		t.Fatalf("IncrementCounter() error = %v", err)
	}
	displays, _ := row.Int(colCurrentDisplays)
	clicks, _ := row.Int(colCurrentClicks)
	if displays != 1 || clicks != 0 || row.Bool(colActive) {
		t.Errorf("displays=%d clicks=%d active=%v", displays, clicks, row.Bool(colActive))
	}
}

func TestIncrementCounter_Missing(t *testing.T) {
	env := newTestEnv(t)
	id := createBanner(t, env, function.ParsedBody{"name": "A"})
	c := NewCollection(bannersDefinition(nil, env.deps.Now), env.deps)
	if _, err := c.Delete(t.Context(), newRequest(env.admin, http.MethodDelete, "banners/"+id)); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	for _, target := range []string{id, "no-such-banner"} {
		_, err := IncrementCounter(t.Context(), env.store, ClicksCounter, target, env.deps.Now)
		if !errors.Is(err, datastore.ErrNotFound) {
			t.Errorf("IncrementCounter(%s) error = %v, want ErrNotFound", target, err)
		}
	}
}

// racingStore always reports that another writer changed the counter
// between the read and the conditional update.
type racingStore struct {
	datastore.Store
	updates int
	last    *datastore.Query
}

func (s *racingStore) Select(context.Context, *datastore.Query) ([]datastore.Row, error) {
	return []datastore.Row{{"id": "b1", "current_clicks": int64(3), "max_clicks": int64(0), "active": true}}, nil
}

func (s *racingStore) Update(_ context.Context, q *datastore.Query, _ datastore.Row) ([]datastore.Row, error) {
	s.updates++
	s.last = q
	return nil, nil
}

func TestIncrementCounter_Contention(t *testing.T) {
	store := &racingStore{}
	_, err := IncrementCounter(t.Context(), store, ClicksCounter, "b1", time.Now)
	if !errors.Is(err, ErrCounterContention) {
		t.Fatalf("error = %v, want ErrCounterContention", err)
	}
	if store.updates != maxCounterAttempts {
		t.Errorf("updates = %d, want %d", store.updates, maxCounterAttempts)
	}

	var conditioned bool
	for _, f := range store.last.Filters {
		if f.Column == colCurrentClicks && f.Op == datastore.OpEq && f.Value == int64(3) {
			conditioned = true
		}
	}
	if !conditioned {
		t.Errorf("update filters = %+v, want current_clicks = 3", store.last.Filters)
	}
}

func TestCounterHandler(t *testing.T) {
	env := newTestEnv(t)
	id := createBanner(t, env, function.ParsedBody{"name": "A"})
	h := NewCounterHandler(ClicksCounter, nil, env.deps)
	ctx := t.Context()

	resp, err := h.Read(ctx, newRequest(env.admin, http.MethodGet, "banners_increment_clicks/"+id))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	row := successData(t, resp)
	if row["current_clicks"] != float64(1) {
		t.Errorf("current_clicks = %v, want 1", row["current_clicks"])
	}
	if v, ok := row["image_url"]; !ok || v != nil {
		t.Errorf("image_url = %v, want null", v)
	}

	resp, err = h.Read(ctx, newRequest(env.admin, http.MethodGet, "banners_increment_clicks?id="+id))
	if err != nil {
		t.Fatalf("Read(?id) error = %v", err)
	}
	if got := successData(t, resp)["current_clicks"]; got != float64(2) {
		t.Errorf("current_clicks = %v, want 2", got)
	}

	resp, err = h.Create(ctx, newRequest(env.admin, http.MethodPost, "banners_increment_clicks"), function.ParsedBody{"id": id})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := successData(t, resp)["current_clicks"]; got != float64(3) {
		t.Errorf("current_clicks = %v, want 3", got)
	}

	_, err = h.Read(ctx, newRequest(env.admin, http.MethodGet, "banners_increment_clicks"))
	wantAPIError(t, err, http.StatusBadRequest, "BANNERS_INCREMENT_CLICKS_MISSING_ID")

	_, err = h.Create(ctx, newRequest(env.admin, http.MethodPost, "banners_increment_clicks"), function.ParsedBody{})
	wantAPIError(t, err, http.StatusBadRequest, "BANNERS_INCREMENT_CLICKS_MISSING_ID")

	_, err = h.Read(ctx, newRequest(env.admin, http.MethodGet, "banners_increment_clicks/missing"))
	wantAPIError(t, err, http.StatusNotFound, function.CodeNotFound)
}

func TestCounterHandler_ContentionError(t *testing.T) {
	env := newTestEnv(t)
	h := NewCounterHandler(DisplaysCounter, nil, env.deps)

	req := newRequest(env.admin, http.MethodGet, "banners_increment_displays/b1")
	req.Auth.Client = &auth.Client{Store: &racingStore{}, Principal: env.admin.Principal}

	_, err := h.Read(t.Context(), req)
	apiErr := wantAPIError(t, err, http.StatusBadRequest, "BANNERS_INCREMENT_DISPLAYS_ERROR")
	if apiErr.Message != "Error incrementing displays" {
		t.Errorf("message = %q", apiErr.Message)
	}
}
